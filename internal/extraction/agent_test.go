package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"trailscout/internal/core"
	"trailscout/internal/scrape"
)

// fakeLLM replays scripted responses, routed by which schema the call
// carries so tests stay readable regardless of call order.
type fakeLLM struct {
	analyses   []string
	candidates []string
	activities []string

	analysisCalls  int
	candidateCalls int
	activityCalls  int

	prompts []string
}

func (f *fakeLLM) Complete(ctx context.Context, prompt string) (string, error) {
	return f.CompleteWithSystem(ctx, "", prompt)
}

func (f *fakeLLM) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return "", errors.New("plain completion not scripted")
}

func (f *fakeLLM) CompleteWithSchema(ctx context.Context, systemPrompt, userPrompt, jsonSchema string) (string, error) {
	f.prompts = append(f.prompts, userPrompt)
	switch {
	case strings.Contains(jsonSchema, `"page_type"`):
		f.analysisCalls++
		return popResponse(&f.analyses)
	case strings.Contains(jsonSchema, `"candidates"`):
		f.candidateCalls++
		return popResponse(&f.candidates)
	default:
		f.activityCalls++
		return popResponse(&f.activities)
	}
}

func (f *fakeLLM) SchemaCapable() bool { return true }

func popResponse(queue *[]string) (string, error) {
	if len(*queue) == 0 {
		return "", errors.New("no scripted response left")
	}
	head := (*queue)[0]
	*queue = (*queue)[1:]
	return head, nil
}

type fakeFetcher struct {
	pages map[string]*scrape.Page
	errs  map[string]error
	order []string
}

func (f *fakeFetcher) Page(ctx context.Context, pageURL string) (*scrape.Page, error) {
	f.order = append(f.order, pageURL)
	if err, ok := f.errs[pageURL]; ok {
		return nil, err
	}
	p, ok := f.pages[pageURL]
	if !ok {
		return nil, fmt.Errorf("no page for %s", pageURL)
	}
	return p, nil
}

func testPage(url string) *scrape.Page {
	return &scrape.Page{
		URL:     url,
		Title:   "Test Page",
		Content: "Some page content about running routes in Vienna.",
	}
}

func testIntent() *core.UserIntent {
	return &core.UserIntent{
		ActivityType:  "running",
		Location:      "Vienna",
		SearchQuery:   "running routes Vienna",
		IndoorOutdoor: "outdoor",
	}
}

func analysisJSON(pageType string, count int, confidence float64, subURLs []string, bestMatch string) string {
	payload := map[string]interface{}{
		"page_type":               pageType,
		"has_multiple_activities": count > 1,
		"activity_count":          count,
		"has_detailed_metrics":    pageType == core.PageIndividualActivity,
		"confidence":              confidence,
	}
	if len(subURLs) > 0 {
		payload["sub_urls"] = subURLs
	}
	if bestMatch != "" {
		payload["best_match_url"] = bestMatch
	}
	data, _ := json.Marshal(payload)
	return string(data)
}

func activityJSON(name string, relevance float64, details bool, extra map[string]interface{}) string {
	payload := map[string]interface{}{
		"activity_name":         name,
		"location":              "Vienna",
		"description":           "A route along the Danube.",
		"relevance_score":       relevance,
		"extraction_confidence": "high",
		"details_available":     details,
	}
	for k, v := range extra {
		payload[k] = v
	}
	data, _ := json.Marshal(payload)
	return string(data)
}

func cand(name string, relevance float64) map[string]interface{} {
	return map[string]interface{}{
		"activity_name":     name,
		"brief_description": name + " route",
		"relevance_score":   relevance,
	}
}

func candidatesJSON(cands ...map[string]interface{}) string {
	data, _ := json.Marshal(map[string]interface{}{"candidates": cands})
	return string(data)
}

func TestRun_DirectExtraction(t *testing.T) {
	llm := &fakeLLM{
		analyses: []string{analysisJSON(core.PageIndividualActivity, 1, 0.9, nil, "")},
		activities: []string{activityJSON("Danube Island Loop", 0.85, true, map[string]interface{}{
			"distance":     "8 km",
			"surface_type": "paved",
		})},
	}
	fetcher := &fakeFetcher{pages: map[string]*scrape.Page{
		"https://trails.example/danube": testPage("https://trails.example/danube"),
	}}

	agent := NewAgent(llm, fetcher, nil, 3)
	outcome, err := agent.Run(context.Background(), testIntent(), []core.SearchResult{
		{URL: "https://trails.example/danube"},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(outcome.Activities) != 1 {
		t.Fatalf("expected 1 activity, got %d", len(outcome.Activities))
	}
	act := outcome.Activities[0]
	if act.ActivityName != "Danube Island Loop" {
		t.Errorf("activity name = %q", act.ActivityName)
	}
	if act.SourceURL != "https://trails.example/danube" {
		t.Errorf("source URL not filled from page: %q", act.SourceURL)
	}
	if act.Distance == nil || *act.Distance != "8 km" {
		t.Errorf("distance not carried through: %v", act.Distance)
	}
	if outcome.Attempts[0].ExtractionStrategy != core.StrategyDirect {
		t.Errorf("strategy = %s", outcome.Attempts[0].ExtractionStrategy)
	}
	if outcome.PagesFetched != 1 {
		t.Errorf("pages fetched = %d", outcome.PagesFetched)
	}
	if llm.candidateCalls != 0 {
		t.Errorf("candidate leg called %d times on a detail page", llm.candidateCalls)
	}
}

func TestRun_LowConfidenceDetailGoesConservative(t *testing.T) {
	llm := &fakeLLM{
		analyses:   []string{analysisJSON(core.PageIndividualActivity, 1, 0.5, nil, "")},
		activities: []string{activityJSON("Prater Run", 0.7, true, map[string]interface{}{"distance": "4 km", "estimated_time": "25 min"})},
	}
	fetcher := &fakeFetcher{pages: map[string]*scrape.Page{
		"https://trails.example/p": testPage("https://trails.example/p"),
	}}

	agent := NewAgent(llm, fetcher, nil, 3)
	outcome, err := agent.Run(context.Background(), testIntent(), []core.SearchResult{{URL: "https://trails.example/p"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(outcome.Activities) != 1 {
		t.Fatalf("expected 1 activity, got %d", len(outcome.Activities))
	}
	if got := outcome.Attempts[0].PageAnalysis.Confidence; got != 0.5 {
		t.Errorf("analysis confidence = %.2f", got)
	}
	if llm.activityCalls != 1 {
		t.Errorf("activity calls = %d", llm.activityCalls)
	}
}

func TestRun_ConservativeRejectsWithoutSingleActivityMetrics(t *testing.T) {
	llm := &fakeLLM{
		analyses:   []string{analysisJSON(core.PageMixedContent, 1, 0.9, nil, "")},
		activities: []string{activityJSON("Vienna Running Overview", 0.7, false, nil)},
	}
	fetcher := &fakeFetcher{pages: map[string]*scrape.Page{
		"https://blog.example/overview": testPage("https://blog.example/overview"),
	}}

	agent := NewAgent(llm, fetcher, nil, 3)
	outcome, err := agent.Run(context.Background(), testIntent(), []core.SearchResult{{URL: "https://blog.example/overview"}})
	if !errors.Is(err, core.ErrNoConfidentExtraction) {
		t.Fatalf("expected ErrNoConfidentExtraction, got %v", err)
	}

	attempt := outcome.Attempts[0]
	if attempt.ExtractionStrategy != core.StrategyFailed {
		t.Errorf("strategy = %s", attempt.ExtractionStrategy)
	}
	if !strings.Contains(attempt.FailureReason, "no metrics attributable") {
		t.Errorf("failure reason = %q", attempt.FailureReason)
	}
}

func TestRun_ConservativeRejectsLowRelevance(t *testing.T) {
	llm := &fakeLLM{
		analyses:   []string{analysisJSON(core.PageMixedContent, 1, 0.9, nil, "")},
		activities: []string{activityJSON("Unrelated Museum Tour", 0.2, true, map[string]interface{}{"distance": "1 km", "estimated_time": "2 hr"})},
	}
	fetcher := &fakeFetcher{pages: map[string]*scrape.Page{
		"https://blog.example/museums": testPage("https://blog.example/museums"),
	}}

	agent := NewAgent(llm, fetcher, nil, 3)
	outcome, err := agent.Run(context.Background(), testIntent(), []core.SearchResult{{URL: "https://blog.example/museums"}})
	if !errors.Is(err, core.ErrNoConfidentExtraction) {
		t.Fatalf("expected ErrNoConfidentExtraction, got %v", err)
	}
	if !strings.Contains(outcome.Attempts[0].FailureReason, "low relevance") {
		t.Errorf("failure reason = %q", outcome.Attempts[0].FailureReason)
	}
}

func TestRun_ListFollowsBestMatchFirst(t *testing.T) {
	listURL := "https://hub.example/best-runs"
	subA := "https://hub.example/routes/a"
	subB := "https://hub.example/routes/b"

	llm := &fakeLLM{
		analyses: []string{
			analysisJSON(core.PageActivityList, 5, 0.9, []string{subA, subB}, subB),
			analysisJSON(core.PageIndividualActivity, 1, 0.9, nil, ""),
		},
		activities: []string{activityJSON("Route B Loop", 0.8, true, map[string]interface{}{"distance": "6.3 km", "elevation_gain": "91.7 m"})},
	}
	fetcher := &fakeFetcher{pages: map[string]*scrape.Page{
		listURL: testPage(listURL),
		subB:    testPage(subB),
	}}

	agent := NewAgent(llm, fetcher, nil, 3)
	outcome, err := agent.Run(context.Background(), testIntent(), []core.SearchResult{{URL: listURL}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(fetcher.order) != 2 || fetcher.order[1] != subB {
		t.Fatalf("fetch order = %v, want best match %s fetched second", fetcher.order, subB)
	}
	attempt := outcome.Attempts[0]
	if attempt.ExtractionStrategy != core.StrategySubPageFollow {
		t.Errorf("strategy = %s", attempt.ExtractionStrategy)
	}
	if attempt.FollowUpURL != subB {
		t.Errorf("follow-up URL = %s", attempt.FollowUpURL)
	}
	if attempt.PagesFetched != 2 {
		t.Errorf("pages fetched = %d", attempt.PagesFetched)
	}
}

func TestRun_SubPageBudgetBounded(t *testing.T) {
	listURL := "https://hub.example/list"
	subB := "https://hub.example/routes/b"
	subC := "https://hub.example/routes/c"
	subD := "https://hub.example/routes/d"

	llm := &fakeLLM{
		analyses: []string{
			analysisJSON(core.PageActivityList, 4, 0.9, []string{subB, subC, subD}, ""),
			analysisJSON(core.PageIndividualActivity, 1, 0.4, nil, ""),
			analysisJSON(core.PageMixedContent, 1, 0.5, nil, ""),
		},
		candidates: []string{candidatesJSON(
			cand("Route B", 0.6),
			cand("Route C", 0.9),
			cand("Route D", 0.4),
		)},
		activities: []string{activityJSON("Route C Loop", 0.7, true, map[string]interface{}{"distance": "10 km", "route_type": "loop"})},
	}
	fetcher := &fakeFetcher{pages: map[string]*scrape.Page{
		listURL: testPage(listURL),
		subB:    testPage(subB),
		subC:    testPage(subC),
		subD:    testPage(subD),
	}}

	agent := NewAgent(llm, fetcher, nil, 2)
	outcome, err := agent.Run(context.Background(), testIntent(), []core.SearchResult{{URL: listURL}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	for _, fetched := range fetcher.order {
		if fetched == subD {
			t.Fatalf("sub-page budget exceeded: %v", fetcher.order)
		}
	}
	if len(fetcher.order) != 3 {
		t.Errorf("fetch order = %v", fetcher.order)
	}
	attempt := outcome.Attempts[0]
	if attempt.ExtractionStrategy != core.StrategyListSelection {
		t.Errorf("strategy = %s", attempt.ExtractionStrategy)
	}
	if attempt.PagesFetched != 3 {
		t.Errorf("pages fetched = %d", attempt.PagesFetched)
	}
}

func TestRun_ListSelectionCapsAndRanksCandidates(t *testing.T) {
	listURL := "https://hub.example/no-links"

	llm := &fakeLLM{
		analyses: []string{analysisJSON(core.PageActivityList, 6, 0.9, nil, "")},
		candidates: []string{candidatesJSON(
			cand("Trail One", 0.2),
			cand("Trail Two", 0.9),
			cand("Trail Three", 0.5),
			cand("Trail Four", 0.6),
			cand("Trail Five", 0.1),
			cand("Trail Six", 0.8),
			cand("Trail Seven", 0.7),
		)},
		activities: []string{activityJSON("Trail Two", 0.85, true, map[string]interface{}{"distance": "5 km", "estimated_time": "30 min"})},
	}
	fetcher := &fakeFetcher{pages: map[string]*scrape.Page{listURL: testPage(listURL)}}

	agent := NewAgent(llm, fetcher, nil, 3)
	outcome, err := agent.Run(context.Background(), testIntent(), []core.SearchResult{{URL: listURL}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	attempt := outcome.Attempts[0]
	if len(attempt.CandidateActivities) != 5 {
		t.Fatalf("candidates = %d, want capped at 5", len(attempt.CandidateActivities))
	}
	if attempt.CandidateActivities[0].ActivityName != "Trail Two" {
		t.Errorf("best candidate = %q", attempt.CandidateActivities[0].ActivityName)
	}

	focused := llm.prompts[len(llm.prompts)-1]
	if !strings.Contains(focused, "TARGET ACTIVITY: Trail Two") {
		t.Errorf("focused prompt missing target:\n%s", focused)
	}
	if !strings.Contains(focused, "Do not mix in information from other activities") {
		t.Errorf("focused prompt missing anti-mixing instruction")
	}
}

func TestRun_ListWithSingleCandidateFallsBackToConservative(t *testing.T) {
	listURL := "https://hub.example/thin-list"

	llm := &fakeLLM{
		analyses:   []string{analysisJSON(core.PageActivityList, 3, 0.9, nil, "")},
		candidates: []string{candidatesJSON(cand("Lone Trail", 0.7))},
		activities: []string{activityJSON("Lone Trail", 0.7, false, nil)},
	}
	fetcher := &fakeFetcher{pages: map[string]*scrape.Page{listURL: testPage(listURL)}}

	agent := NewAgent(llm, fetcher, nil, 3)
	outcome, err := agent.Run(context.Background(), testIntent(), []core.SearchResult{{URL: listURL}})
	if !errors.Is(err, core.ErrNoConfidentExtraction) {
		t.Fatalf("expected ErrNoConfidentExtraction, got %v", err)
	}

	if llm.candidateCalls != 1 {
		t.Errorf("candidate calls = %d", llm.candidateCalls)
	}
	if llm.activityCalls != 1 {
		t.Errorf("activity calls = %d", llm.activityCalls)
	}
	if outcome.Attempts[0].ExtractionStrategy != core.StrategyFailed {
		t.Errorf("strategy = %s", outcome.Attempts[0].ExtractionStrategy)
	}
}

func TestRun_FetchFailureSkipsToNextResult(t *testing.T) {
	dead := "https://dead.example/route"
	live := "https://live.example/route"

	llm := &fakeLLM{
		analyses:   []string{analysisJSON(core.PageIndividualActivity, 1, 0.9, nil, "")},
		activities: []string{activityJSON("Live Route", 0.8, true, map[string]interface{}{"distance": "3 km", "surface_type": "trail"})},
	}
	fetcher := &fakeFetcher{
		pages: map[string]*scrape.Page{live: testPage(live)},
		errs:  map[string]error{dead: errors.New("connection refused")},
	}

	agent := NewAgent(llm, fetcher, nil, 3)
	outcome, err := agent.Run(context.Background(), testIntent(), []core.SearchResult{{URL: dead}, {URL: live}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(outcome.Attempts) != 2 {
		t.Fatalf("attempts = %d", len(outcome.Attempts))
	}
	if !strings.Contains(outcome.Attempts[0].FailureReason, "fetch failed") {
		t.Errorf("first attempt reason = %q", outcome.Attempts[0].FailureReason)
	}
	if outcome.PagesFetched != 1 {
		t.Errorf("pages fetched = %d", outcome.PagesFetched)
	}
	if len(outcome.Activities) != 1 {
		t.Errorf("activities = %d", len(outcome.Activities))
	}
}

func TestRun_StopsOnceEnoughActivitiesCollected(t *testing.T) {
	var results []core.SearchResult
	pages := map[string]*scrape.Page{}
	var analyses, activities []string
	for i := 0; i < 5; i++ {
		u := fmt.Sprintf("https://trails.example/route-%d", i)
		results = append(results, core.SearchResult{URL: u})
		pages[u] = testPage(u)
		analyses = append(analyses, analysisJSON(core.PageIndividualActivity, 1, 0.9, nil, ""))
		activities = append(activities, activityJSON(fmt.Sprintf("Route %d", i), 0.8, true, map[string]interface{}{"distance": "5 km", "estimated_time": "30 min"}))
	}

	llm := &fakeLLM{analyses: analyses, activities: activities}
	fetcher := &fakeFetcher{pages: pages}

	agent := NewAgent(llm, fetcher, nil, 3)
	outcome, err := agent.Run(context.Background(), testIntent(), results)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(outcome.Activities) != maxActivities {
		t.Errorf("activities = %d, want %d", len(outcome.Activities), maxActivities)
	}
	if len(fetcher.order) != maxActivities {
		t.Errorf("fetches = %d, want early stop at %d", len(fetcher.order), maxActivities)
	}
}

func TestRun_AnalysisFailureFallsBackToConservativeDirect(t *testing.T) {
	llm := &fakeLLM{
		analyses:   []string{"not json at all", "still not json"},
		activities: []string{activityJSON("Fallback Route", 0.8, true, map[string]interface{}{"distance": "7 km", "estimated_time": "40 min"})},
	}
	fetcher := &fakeFetcher{pages: map[string]*scrape.Page{
		"https://odd.example/page": testPage("https://odd.example/page"),
	}}

	agent := NewAgent(llm, fetcher, nil, 3)
	outcome, err := agent.Run(context.Background(), testIntent(), []core.SearchResult{{URL: "https://odd.example/page"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if llm.analysisCalls != 2 {
		t.Errorf("analysis calls = %d, want initial plus one corrective retry", llm.analysisCalls)
	}
	attempt := outcome.Attempts[0]
	if attempt.PageAnalysis.PageType != core.PageMixedContent {
		t.Errorf("fallback page type = %s", attempt.PageAnalysis.PageType)
	}
	if attempt.PageAnalysis.Confidence != 0.3 {
		t.Errorf("fallback confidence = %.2f", attempt.PageAnalysis.Confidence)
	}
	if attempt.ExtractionStrategy != core.StrategyDirect {
		t.Errorf("strategy = %s", attempt.ExtractionStrategy)
	}
}

func TestRun_AnalysisCorrectiveRetryRecovers(t *testing.T) {
	llm := &fakeLLM{
		analyses: []string{
			"garbage reply",
			analysisJSON(core.PageIndividualActivity, 1, 0.9, nil, ""),
		},
		activities: []string{activityJSON("Recovered Route", 0.8, true, map[string]interface{}{"distance": "2 km", "surface_type": "paved"})},
	}
	fetcher := &fakeFetcher{pages: map[string]*scrape.Page{
		"https://flaky.example/route": testPage("https://flaky.example/route"),
	}}

	agent := NewAgent(llm, fetcher, nil, 3)
	outcome, err := agent.Run(context.Background(), testIntent(), []core.SearchResult{{URL: "https://flaky.example/route"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if llm.analysisCalls != 2 {
		t.Fatalf("analysis calls = %d", llm.analysisCalls)
	}
	retryPrompt := llm.prompts[1]
	if !strings.Contains(retryPrompt, "PREVIOUS ATTEMPT FAILED") {
		t.Errorf("retry prompt missing failure marker:\n%s", retryPrompt)
	}
	if outcome.Attempts[0].ExtractionStrategy != core.StrategyDirect {
		t.Errorf("strategy = %s", outcome.Attempts[0].ExtractionStrategy)
	}
}

func TestRun_SortsActivitiesByRelevance(t *testing.T) {
	first := "https://trails.example/ok"
	second := "https://trails.example/better"

	llm := &fakeLLM{
		analyses: []string{
			analysisJSON(core.PageIndividualActivity, 1, 0.9, nil, ""),
			analysisJSON(core.PageIndividualActivity, 1, 0.9, nil, ""),
		},
		activities: []string{
			activityJSON("Decent Route", 0.5, true, map[string]interface{}{"distance": "5 km", "estimated_time": "30 min"}),
			activityJSON("Great Route", 0.9, true, map[string]interface{}{"distance": "8 km", "estimated_time": "45 min"}),
		},
	}
	fetcher := &fakeFetcher{pages: map[string]*scrape.Page{
		first:  testPage(first),
		second: testPage(second),
	}}

	agent := NewAgent(llm, fetcher, nil, 3)
	outcome, err := agent.Run(context.Background(), testIntent(), []core.SearchResult{{URL: first}, {URL: second}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(outcome.Activities) != 2 {
		t.Fatalf("activities = %d", len(outcome.Activities))
	}
	if outcome.Activities[0].ActivityName != "Great Route" {
		t.Errorf("best first = %q", outcome.Activities[0].ActivityName)
	}
}

func TestRun_EmptyResults(t *testing.T) {
	agent := NewAgent(&fakeLLM{}, &fakeFetcher{}, nil, 3)
	outcome, err := agent.Run(context.Background(), testIntent(), nil)
	if !errors.Is(err, core.ErrNoConfidentExtraction) {
		t.Fatalf("expected ErrNoConfidentExtraction, got %v", err)
	}
	if len(outcome.Attempts) != 0 {
		t.Errorf("attempts = %d", len(outcome.Attempts))
	}
}

func TestRun_RelativeSubURLResolved(t *testing.T) {
	listURL := "https://hub.example/list"
	resolved := "https://hub.example/routes/prater"

	llm := &fakeLLM{
		analyses: []string{
			analysisJSON(core.PageActivityList, 3, 0.9, []string{"/routes/prater"}, ""),
			analysisJSON(core.PageIndividualActivity, 1, 0.9, nil, ""),
		},
		activities: []string{activityJSON("Prater Hauptallee", 0.8, true, map[string]interface{}{"distance": "4.2 km", "surface_type": "paved"})},
	}
	fetcher := &fakeFetcher{pages: map[string]*scrape.Page{
		listURL:  testPage(listURL),
		resolved: testPage(resolved),
	}}

	agent := NewAgent(llm, fetcher, nil, 3)
	_, err := agent.Run(context.Background(), testIntent(), []core.SearchResult{{URL: listURL}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(fetcher.order) != 2 || fetcher.order[1] != resolved {
		t.Errorf("fetch order = %v, want relative sub-URL resolved to %s", fetcher.order, resolved)
	}
}

func TestRun_ListSelectionKeepsEntriesSeparate(t *testing.T) {
	listURL := "https://hub.example/three-trails"

	llm := &fakeLLM{
		analyses: []string{analysisJSON(core.PageActivityList, 3, 0.9, nil, "")},
		candidates: []string{candidatesJSON(
			cand("Danube Island Loop", 0.9),
			cand("Prater Hauptallee", 0.6),
			cand("City Wall Circuit", 0.4),
		)},
		activities: []string{activityJSON("Danube Island Loop", 0.85, true, map[string]interface{}{
			"distance":       "4.2 km",
			"estimated_time": "25 min",
		})},
	}
	fetcher := &fakeFetcher{pages: map[string]*scrape.Page{listURL: testPage(listURL)}}

	agent := NewAgent(llm, fetcher, nil, 3)
	outcome, err := agent.Run(context.Background(), testIntent(), []core.SearchResult{{URL: listURL}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	act := outcome.Activities[0]
	if act.ActivityName != "Danube Island Loop" {
		t.Fatalf("extracted %q, want the single best candidate", act.ActivityName)
	}
	if act.Distance == nil || *act.Distance != "4.2 km" {
		t.Errorf("distance = %v", act.Distance)
	}

	focused := llm.prompts[len(llm.prompts)-1]
	if !strings.Contains(focused, `TARGET ACTIVITY: Danube Island Loop`) {
		t.Errorf("focused prompt not pinned to one entry:\n%s", focused)
	}
	if !strings.Contains(focused, `clearly belong to "Danube Island Loop"`) {
		t.Errorf("focused prompt missing per-metric attribution rule")
	}
}

func TestSubPageTargets(t *testing.T) {
	agent := NewAgent(&fakeLLM{}, &fakeFetcher{}, nil, 3)
	page := testPage("https://hub.example/list")
	analysis := &core.PageAnalysis{
		BestMatchURL: "/routes/b",
		SubURLs: []string{
			"https://hub.example/list", // the page itself
			"/routes/a",
			"mailto:info@hub.example",
			"/routes/b", // duplicate of best match
			"https://other.example/c#section",
		},
	}

	got := agent.subPageTargets(page, analysis)
	want := []string{
		"https://hub.example/routes/b",
		"https://hub.example/routes/a",
		"https://other.example/c",
	}
	if len(got) != len(want) {
		t.Fatalf("targets = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("targets[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}
