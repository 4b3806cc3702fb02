package extraction

import (
	"context"
	"fmt"
	"strings"

	"trailscout/internal/articulation"
	"trailscout/internal/core"
	"trailscout/internal/logging"
	"trailscout/internal/scrape"
)

const analysisInstructions = `
DETERMINE PAGE TYPE:
1. individual_activity: page about one specific activity, trail, or route with detailed info.
   Examples: a single trail page, specific route details, one gym class.
   Usually has detailed metrics for that one activity.

2. activity_list: page listing multiple activities, trails, or routes.
   Examples: "Best 10 trails in Vienna", "Running routes near you", a category page.
   Contains multiple distinct activities and may link to individual activity pages.

3. mixed_content: page with general info, maybe some activities but not focused.
   Examples: blog posts, general location guides, mixed content.

For LIST pages, identify:
1. The individual activities mentioned (names, brief descriptions).
2. Any sub-URLs pointing to detail pages for those activities. Use the links listed above; report them in sub_urls.
3. Which sub-URL best matches the user intent; report it in best_match_url.

For INDIVIDUAL pages, check whether there is enough detail for direct extraction.

Be VERY careful about data mixing: if this is a list page, DO NOT try to extract metrics that might belong to different activities.

Respond with ONLY a JSON object. No prose, no markdown fences.`

// analyzePage classifies one page before any extraction runs.
func (a *Agent) analyzePage(ctx context.Context, intent *core.UserIntent, page *scrape.Page) (*core.PageAnalysis, error) {
	var b strings.Builder
	b.WriteString("Analyze this web page to determine the best strategy for extracting activity data.\n\n")
	fmt.Fprintf(&b, "USER INTENT: %s\n", intentJSON(intent))
	fmt.Fprintf(&b, "SOURCE URL: %s\n", page.URL)
	fmt.Fprintf(&b, "CONTENT:\n%s\n", page.Content)
	if len(page.Links) > 0 {
		b.WriteString("\nLINKS ON THIS PAGE:\n")
		for _, l := range page.Links {
			fmt.Fprintf(&b, "- %s (%s)\n", l.URL, l.Text)
		}
	}
	b.WriteString(analysisInstructions)

	var analysis core.PageAnalysis
	if err := a.structured(ctx, analysisSystemPrompt, b.String(), articulation.PageAnalysisSchema, &analysis); err != nil {
		return nil, fmt.Errorf("page analysis: %w", err)
	}
	return &analysis, nil
}

const extractionInstructions = `
CRITICAL WARNING ABOUT DATA MIXING:
If this page contains MULTIPLE activities or trails (e.g. "Best 10 trails", "Running routes list", a category page):
- DO NOT mix metrics from different activities.
- If you see metrics for multiple activities, leave all detail fields as null.
- Only extract metrics if they clearly belong to ONE specific activity.
- Set details_available=false for list pages unless metrics are clearly for one activity.

EXTRACT SPECIFIC ACTIVITIES:
- Look for named trails, routes, locations, or specific activities.
- Examples: "Donauinsel 5km Loop", "Prater Park Morning Run", "Schoenbrunn Palace Garden Walk".
- NOT: "Running Routes in Vienna" or "General Hiking Options".

DETAILED METRICS (ONLY if explicitly mentioned AND belonging to ONE activity):
- distance: exact distance or length if mentioned (e.g. "3.9 mi", "6.3 km", "5 kilometers")
- elevation_gain: elevation gain if mentioned (e.g. "301 ft", "91.7 m", "500 feet gain")
- estimated_time: completion time if mentioned (e.g. "1 hr 25 min", "45 minutes", "2 hours")
- average_rating: user rating if mentioned (e.g. "4.6/5 stars", "4.2 out of 5")
- surface_type: surface if mentioned (e.g. "paved paths", "trail", "mixed terrain")
- starting_point: specific start location if mentioned
- route_type: route type if mentioned (e.g. "loop", "out-and-back", "point-to-point")

ULTRA-CRITICAL RULES FOR DETAILED METRICS:
1. ONLY extract a metric if it is explicitly stated AND clearly belongs to ONE specific activity.
2. If this is a list page with multiple activities, set ALL detail fields to null.
3. Use the exact wording from the source for measurements.
4. Set details_available=true ONLY if at least 2 detailed metrics belong to the SAME activity.
5. If information is not available or ambiguous, leave the field null. DO NOT GUESS.
6. Be ultra-conservative: missing a detail is fine, mixing data from different activities is not.

RELEVANCE SCORING (be strict):
- 1.0: perfect match (exact specific activity, location, preferences)
- 0.8-0.9: very good (specific activity of the right type, good location match)
- 0.6-0.7: good (specific activity, related location or type)
- 0.4-0.5: partial (somewhat specific, loosely related)
- 0.2-0.3: weak (generic or barely related)
- 0.0-0.1: no match (unrelated or too generic)

Respond with ONLY a JSON object. No prose, no markdown fences.`

// extractActivity extracts one structured activity from page content.
// When focus is set the prompt pins extraction to that single list
// entry; everything else on the page is off limits.
func (a *Agent) extractActivity(ctx context.Context, intent *core.UserIntent, page *scrape.Page, focus *core.ActivityCandidate) (*core.ExtractedActivity, error) {
	var b strings.Builder
	system := extractionSystemPrompt

	if focus != nil {
		system = focusedSystemPrompt
		b.WriteString("Extract detailed information for this SPECIFIC activity from the content.\n\n")
		fmt.Fprintf(&b, "TARGET ACTIVITY: %s\n", focus.ActivityName)
		fmt.Fprintf(&b, "ACTIVITY DESCRIPTION: %s\n", focus.BriefDescription)
	} else {
		b.WriteString("Extract SPECIFIC activity information from this web content. Focus on individual, concrete activities rather than general categories.\n\n")
	}

	fmt.Fprintf(&b, "USER INTENT: %s\n", intentJSON(intent))
	fmt.Fprintf(&b, "SOURCE URL: %s\n", page.URL)
	fmt.Fprintf(&b, "CONTENT:\n%s\n", page.Content)

	if focus != nil {
		fmt.Fprintf(&b, `
FOCUS ONLY ON THE TARGET ACTIVITY ABOVE.
Do not mix in information from other activities mentioned in the content.

Extract detailed metrics ONLY if they clearly belong to %q:
- If a metric is ambiguous or could belong to multiple activities, leave it null.
- Be extremely conservative: better to miss details than to mix data.

Set details_available=true ONLY if you find specific metrics for this exact activity.
`, focus.ActivityName)
	}
	b.WriteString(extractionInstructions)

	var act core.ExtractedActivity
	if err := a.structured(ctx, system, b.String(), articulation.ActivitySchema, &act); err != nil {
		return nil, fmt.Errorf("activity extraction: %w", err)
	}

	act.ActivityName = strings.TrimSpace(act.ActivityName)
	if act.ActivityName == "" {
		return nil, fmt.Errorf("extracted activity has no name")
	}
	if act.SourceURL == "" {
		act.SourceURL = page.URL
	}
	return &act, nil
}

const candidateInstructions = `
Find distinct, individual activities mentioned on this page:
- Look for specific trail names, route names, activity titles.
- Extract a brief description for each.
- Score relevance to the user intent (0.0-1.0).
- Note whether the entry itself states concrete metrics (has_details).
- Identify any sub-URLs to detail pages when links are present.

Examples of good candidates:
- "Prater Hauptallee Loop - 4.2km easy running path"
- "Schoenbrunn Palace Run - moderate difficulty palace grounds route"
- "Donauinsel Long Trail - 21km flat running path along the Danube"

Return up to 5 best candidates, ranked by relevance to the user intent.

Respond with ONLY a JSON object of the form {"candidates": [...]}. No prose, no markdown fences.`

// extractCandidates pulls the distinct entries out of a list page.
func (a *Agent) extractCandidates(ctx context.Context, intent *core.UserIntent, page *scrape.Page) ([]core.ActivityCandidate, error) {
	var b strings.Builder
	b.WriteString("Extract individual activity candidates from this list page content.\n\n")
	fmt.Fprintf(&b, "USER INTENT: %s\n", intentJSON(intent))
	fmt.Fprintf(&b, "SOURCE URL: %s\n", page.URL)
	fmt.Fprintf(&b, "CONTENT:\n%s\n", page.Content)
	b.WriteString(candidateInstructions)

	var out struct {
		Candidates []core.ActivityCandidate `json:"candidates"`
	}
	if err := a.structured(ctx, candidateSystemPrompt, b.String(), articulation.CandidateListSchema, &out); err != nil {
		return nil, fmt.Errorf("candidate extraction: %w", err)
	}

	candidates := out.Candidates[:0]
	for _, c := range out.Candidates {
		c.ActivityName = strings.TrimSpace(c.ActivityName)
		if c.ActivityName == "" {
			continue
		}
		candidates = append(candidates, c)
	}
	if len(candidates) > maxCandidates {
		candidates = candidates[:maxCandidates]
	}
	logging.ExtractDebug("found %d activity candidates on %s", len(candidates), page.URL)
	return candidates, nil
}
