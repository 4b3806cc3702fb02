// Package extraction turns search results into structured activities.
// Each page is classified before anything is extracted; list pages are
// never mined for metrics directly, they either lead to a detail page
// or to a single focused candidate. The cost of that caution is a few
// extra LLM calls, the payoff is that no emitted metric can come from
// a different activity than the one named.
package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"trailscout/internal/articulation"
	"trailscout/internal/core"
	"trailscout/internal/logging"
	"trailscout/internal/scrape"
)

const (
	// minRelevance gates acceptance of an extracted activity.
	minRelevance = 0.3

	// confidenceGate is the analysis confidence below which a detail
	// classification is not trusted.
	confidenceGate = 0.6

	// maxCandidates bounds how many list entries are considered.
	maxCandidates = 5

	// maxActivities stops the search-result loop once enough confident
	// activities are collected.
	maxActivities = 3
)

const (
	analysisSystemPrompt   = "You are an expert at analyzing web page structure and content for activity extraction."
	extractionSystemPrompt = "You are an expert at extracting structured activity information from web content. NEVER mix data from different activities."
	candidateSystemPrompt  = "Extract individual activity candidates from list content."
	focusedSystemPrompt    = "Extract information for the specific target activity only. Do not mix data from multiple activities."
)

// PageFetcher fetches and reduces one page. Satisfied by scrape.Fetcher.
type PageFetcher interface {
	Page(ctx context.Context, pageURL string) (*scrape.Page, error)
}

// Agent runs the classify-then-extract strategy over search results.
type Agent struct {
	llm         core.LLMClient
	fetcher     PageFetcher
	ranker      Ranker
	proc        *articulation.Processor
	maxSubPages int
}

// NewAgent creates an extraction agent. ranker may be nil, in which
// case list candidates are ordered by their LLM-assigned relevance.
func NewAgent(llm core.LLMClient, fetcher PageFetcher, ranker Ranker, maxSubPages int) *Agent {
	if maxSubPages <= 0 {
		maxSubPages = 3
	}
	return &Agent{
		llm:         llm,
		fetcher:     fetcher,
		ranker:      ranker,
		proc:        articulation.NewProcessor(),
		maxSubPages: maxSubPages,
	}
}

// Outcome is what processing a batch of search results produced.
type Outcome struct {
	// Activities are the accepted extractions, best relevance first.
	Activities []core.ExtractedActivity

	// Attempts records the per-result outcome in search order,
	// including failures and their reasons.
	Attempts []core.SmartExtractionResult

	// PagesFetched counts every page fetch, sub-pages included.
	PagesFetched int
}

// Run processes search results in order until enough confident
// activities are collected or the results are exhausted. An empty
// outcome returns core.ErrNoConfidentExtraction; the attempts are
// still populated so the caller can log what was tried.
func (a *Agent) Run(ctx context.Context, intent *core.UserIntent, results []core.SearchResult) (*Outcome, error) {
	outcome := &Outcome{}

	for _, res := range results {
		if err := ctx.Err(); err != nil {
			return outcome, err
		}

		page, err := a.fetcher.Page(ctx, res.URL)
		if err != nil {
			logging.Extract("skipping %s: %v", res.URL, err)
			outcome.Attempts = append(outcome.Attempts, core.SmartExtractionResult{
				ExtractionStrategy: core.StrategyFailed,
				FailureReason:      fmt.Sprintf("fetch failed: %v", err),
			})
			continue
		}

		result := a.extractFromPage(ctx, intent, page)
		result.PagesFetched++ // the search result page itself
		outcome.PagesFetched += result.PagesFetched
		outcome.Attempts = append(outcome.Attempts, *result)

		if act := result.ExtractedActivity; result.Success && act != nil && act.RelevanceScore > minRelevance {
			logging.Extract("accepted %q from %s (strategy=%s relevance=%.2f)",
				act.ActivityName, act.SourceURL, result.ExtractionStrategy, act.RelevanceScore)
			outcome.Activities = append(outcome.Activities, *act)
			if len(outcome.Activities) >= maxActivities {
				break
			}
		}
	}

	sort.SliceStable(outcome.Activities, func(i, j int) bool {
		return outcome.Activities[i].RelevanceScore > outcome.Activities[j].RelevanceScore
	})

	if len(outcome.Activities) == 0 {
		return outcome, core.ErrNoConfidentExtraction
	}
	return outcome, nil
}

// extractFromPage classifies one fetched page and dispatches to the
// matching strategy.
func (a *Agent) extractFromPage(ctx context.Context, intent *core.UserIntent, page *scrape.Page) *core.SmartExtractionResult {
	analysis, err := a.analyzePage(ctx, intent, page)
	if err != nil {
		logging.Extract("page analysis failed for %s, conservative fallback: %v", page.URL, err)
		return a.analysisFallback(ctx, intent, page, err)
	}

	logging.Extract("page analysis for %s: %s, %d activities, confidence %.2f",
		page.URL, analysis.PageType, analysis.ActivityCount, analysis.Confidence)

	switch {
	case analysis.PageType == core.PageIndividualActivity && analysis.Confidence > confidenceGate:
		return a.extractDirect(ctx, intent, page, analysis)
	case analysis.PageType == core.PageActivityList && analysis.ActivityCount > 1:
		return a.extractFromList(ctx, intent, page, analysis)
	default:
		return a.extractConservative(ctx, intent, page, analysis)
	}
}

// analysisFallback runs when analysis itself failed: one conservative
// extraction attempt, recorded with a low-confidence mixed analysis.
func (a *Agent) analysisFallback(ctx context.Context, intent *core.UserIntent, page *scrape.Page, analysisErr error) *core.SmartExtractionResult {
	act, err := a.extractActivity(ctx, intent, page, nil)
	if err != nil {
		return &core.SmartExtractionResult{
			PageAnalysis:       core.PageAnalysis{PageType: core.PageMixedContent},
			ExtractionStrategy: core.StrategyFailed,
			FailureReason:      fmt.Sprintf("page analysis failed: %v", analysisErr),
		}
	}
	return &core.SmartExtractionResult{
		Success: true,
		PageAnalysis: core.PageAnalysis{
			PageType:      core.PageMixedContent,
			ActivityCount: 1,
			Confidence:    0.3,
		},
		ExtractedActivity:  act,
		ExtractionStrategy: core.StrategyDirect,
	}
}

// extractDirect extracts the single activity from a detail page.
func (a *Agent) extractDirect(ctx context.Context, intent *core.UserIntent, page *scrape.Page, analysis *core.PageAnalysis) *core.SmartExtractionResult {
	act, err := a.extractActivity(ctx, intent, page, nil)
	if err != nil {
		return &core.SmartExtractionResult{
			PageAnalysis:       *analysis,
			ExtractionStrategy: core.StrategyFailed,
			FailureReason:      fmt.Sprintf("extraction failed: %v", err),
		}
	}
	return &core.SmartExtractionResult{
		Success:            true,
		PageAnalysis:       *analysis,
		ExtractedActivity:  act,
		ExtractionStrategy: core.StrategyDirect,
	}
}

// extractFromList handles list pages: follow sub-URLs to a detail page
// when the list provides them, otherwise pick the best candidate from
// the list text itself. A list that yields neither usable sub-pages
// nor at least two distinct candidates is treated as mixed content.
func (a *Agent) extractFromList(ctx context.Context, intent *core.UserIntent, page *scrape.Page, analysis *core.PageAnalysis) *core.SmartExtractionResult {
	targets := a.subPageTargets(page, analysis)

	subFetched := 0
	if len(targets) > 0 {
		result, fetched := a.followSubPages(ctx, intent, analysis, targets)
		if result != nil {
			return result
		}
		subFetched = fetched
		logging.Extract("no sub-page of %s qualified, selecting from the list itself", page.URL)
	}

	result := a.selectFromList(ctx, intent, page, analysis)
	if result == nil {
		result = a.extractConservative(ctx, intent, page, analysis)
	}
	result.PagesFetched += subFetched
	return result
}

// selectFromList extracts candidates from the list text and runs a
// focused extraction on the best one. Returns nil when fewer than two
// candidates could be extracted, which hands the page to the
// conservative path.
func (a *Agent) selectFromList(ctx context.Context, intent *core.UserIntent, page *scrape.Page, analysis *core.PageAnalysis) *core.SmartExtractionResult {
	candidates, err := a.extractCandidates(ctx, intent, page)
	if err != nil {
		logging.Extract("candidate extraction failed for %s: %v", page.URL, err)
		return nil
	}
	if len(candidates) < 2 {
		return nil
	}

	ranked := a.rank(ctx, intent, candidates)
	best := ranked[0]
	logging.Extract("selected best candidate: %s (relevance %.2f)", best.ActivityName, best.RelevanceScore)

	act, err := a.extractActivity(ctx, intent, page, &best)
	if err != nil {
		return &core.SmartExtractionResult{
			PageAnalysis:        *analysis,
			CandidateActivities: ranked,
			ExtractionStrategy:  core.StrategyFailed,
			FailureReason:       fmt.Sprintf("focused extraction failed: %v", err),
		}
	}
	return &core.SmartExtractionResult{
		Success:             true,
		PageAnalysis:        *analysis,
		ExtractedActivity:   act,
		CandidateActivities: ranked,
		ExtractionStrategy:  core.StrategyListSelection,
	}
}

// followSubPages visits sub-URLs in order, best match first, within
// the sub-page budget. The first sub-page that classifies as a detail
// page with enough confidence gets a direct extraction. Returns nil
// and the fetch count when no sub-page qualified.
func (a *Agent) followSubPages(ctx context.Context, intent *core.UserIntent, analysis *core.PageAnalysis, targets []string) (*core.SmartExtractionResult, int) {
	if len(targets) > a.maxSubPages {
		targets = targets[:a.maxSubPages]
	}

	fetched := 0
	for _, target := range targets {
		logging.Extract("following sub-page: %s", target)
		sub, err := a.fetcher.Page(ctx, target)
		if err != nil {
			logging.ExtractDebug("sub-page fetch failed for %s: %v", target, err)
			continue
		}
		fetched++

		subAnalysis, err := a.analyzePage(ctx, intent, sub)
		if err != nil {
			logging.ExtractDebug("sub-page analysis failed for %s: %v", target, err)
			continue
		}
		if subAnalysis.PageType != core.PageIndividualActivity || subAnalysis.Confidence <= confidenceGate {
			logging.ExtractDebug("sub-page %s is %s (confidence %.2f), skipping",
				target, subAnalysis.PageType, subAnalysis.Confidence)
			continue
		}

		act, err := a.extractActivity(ctx, intent, sub, nil)
		if err != nil {
			logging.ExtractDebug("sub-page extraction failed for %s: %v", target, err)
			continue
		}
		if act.RelevanceScore <= minRelevance {
			continue
		}

		return &core.SmartExtractionResult{
			Success:            true,
			PageAnalysis:       *analysis,
			ExtractedActivity:  act,
			FollowUpURL:        target,
			ExtractionStrategy: core.StrategySubPageFollow,
			PagesFetched:       fetched,
		}, fetched
	}
	return nil, fetched
}

// extractConservative is the mixed-content path: one cautious
// extraction where the acceptance gate also demands that the metrics
// found belong to a single activity. Better to fail a page here than
// to present a record stitched from several list entries.
func (a *Agent) extractConservative(ctx context.Context, intent *core.UserIntent, page *scrape.Page, analysis *core.PageAnalysis) *core.SmartExtractionResult {
	act, err := a.extractActivity(ctx, intent, page, nil)
	if err != nil {
		return &core.SmartExtractionResult{
			PageAnalysis:       *analysis,
			ExtractionStrategy: core.StrategyFailed,
			FailureReason:      fmt.Sprintf("conservative extraction failed: %v", err),
		}
	}
	if act.RelevanceScore <= minRelevance {
		return &core.SmartExtractionResult{
			PageAnalysis:       *analysis,
			ExtractionStrategy: core.StrategyFailed,
			FailureReason:      fmt.Sprintf("low relevance (%.2f) from conservative extraction", act.RelevanceScore),
		}
	}
	if !act.DetailsAvailable {
		return &core.SmartExtractionResult{
			PageAnalysis:       *analysis,
			ExtractionStrategy: core.StrategyFailed,
			FailureReason:      "no metrics attributable to a single activity",
		}
	}
	return &core.SmartExtractionResult{
		Success:            true,
		PageAnalysis:       *analysis,
		ExtractedActivity:  act,
		ExtractionStrategy: core.StrategyDirect,
	}
}

// rank orders candidates by fit to the intent.
func (a *Agent) rank(ctx context.Context, intent *core.UserIntent, candidates []core.ActivityCandidate) []core.ActivityCandidate {
	if a.ranker != nil {
		return a.ranker.Rank(ctx, intent, candidates)
	}
	return SortByRelevance(candidates)
}

// subPageTargets builds the sub-page visit order: best match first,
// then remaining sub-URLs, resolved against the page URL, deduplicated
// and stripped of anything that is not plain http(s).
func (a *Agent) subPageTargets(page *scrape.Page, analysis *core.PageAnalysis) []string {
	base, _ := url.Parse(page.URL)

	ordered := make([]string, 0, len(analysis.SubURLs)+1)
	if analysis.BestMatchURL != "" {
		ordered = append(ordered, analysis.BestMatchURL)
	}
	ordered = append(ordered, analysis.SubURLs...)

	seen := map[string]bool{page.URL: true}
	var targets []string
	for _, raw := range ordered {
		abs := resolveSubURL(base, raw)
		if abs == "" || seen[abs] {
			continue
		}
		seen[abs] = true
		targets = append(targets, abs)
	}
	return targets
}

func resolveSubURL(base *url.URL, raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if base != nil {
		ref = base.ResolveReference(ref)
	}
	if ref.Scheme != "http" && ref.Scheme != "https" {
		return ""
	}
	ref.Fragment = ""
	return ref.String()
}

// structured runs one schema-constrained completion with a single
// corrective retry that quotes the validation failure back.
func (a *Agent) structured(ctx context.Context, systemPrompt, userPrompt, schema string, out interface{}) error {
	raw, err := a.complete(ctx, systemPrompt, userPrompt, schema)
	if err != nil {
		return err
	}

	result, perr := a.proc.Process(raw, schema)
	if perr != nil {
		logging.Extract("structured response rejected, retrying once: %v", perr)
		retryPrompt := fmt.Sprintf(`%s

PREVIOUS ATTEMPT FAILED - VALIDATION ERRORS DETECTED:
%s

Please correct the JSON output and try again.`, userPrompt, articulation.RetryDetail(perr))

		raw, err = a.complete(ctx, systemPrompt, retryPrompt, schema)
		if err != nil {
			return err
		}
		result, perr = a.proc.Process(raw, schema)
		if perr != nil {
			return fmt.Errorf("response invalid after retry: %w", perr)
		}
	}
	return result.Decode(out)
}

// complete prefers schema-enforced output and falls back to a plain
// completion when the provider rejects the response schema.
func (a *Agent) complete(ctx context.Context, systemPrompt, userPrompt, schema string) (string, error) {
	if sc, ok := core.AsSchemaCapable(a.llm); ok {
		raw, err := sc.CompleteWithSchema(ctx, systemPrompt, userPrompt, schema)
		if err == nil {
			return raw, nil
		}
		if !errors.Is(err, core.ErrSchemaNotSupported) {
			return "", err
		}
		logging.Extract("schema enforcement unsupported, falling back to plain completion")
	}
	return a.llm.CompleteWithSystem(ctx, systemPrompt, userPrompt)
}

// intentJSON renders the intent for prompts. The structured form keeps
// relevance scoring anchored to every stated preference, not just the
// query string.
func intentJSON(intent *core.UserIntent) string {
	data, err := json.Marshal(intent)
	if err != nil {
		return intent.SearchQuery
	}
	return string(data)
}
