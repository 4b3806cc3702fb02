// Package pipeline orchestrates one conversation turn: intent, weather,
// search, extraction, and the feedback loop over the result. Weather,
// search, and persistence degrade on failure; only intent extraction
// and the LLM transport can fail a turn.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"trailscout/internal/config"
	"trailscout/internal/conversation"
	"trailscout/internal/core"
	"trailscout/internal/extraction"
	"trailscout/internal/logging"
	"trailscout/internal/perception"
	"trailscout/internal/scrape"
	"trailscout/internal/search"
	"trailscout/internal/store"
	"trailscout/internal/weather"
)

// SatisfiedMessage closes a conversation whose feedback classified as
// satisfied. The chat surface compares against it to end the session.
const SatisfiedMessage = "Wonderful! I'm glad I could help you find some great activities. Have an amazing time exploring!"

type intentExtractor interface {
	Extract(ctx context.Context, utterance string, prior *core.UserPreferences) (*core.UserIntent, error)
}

type feedbackClassifier interface {
	ClassifyFeedback(ctx context.Context, feedback string, state *core.ConversationState) (*core.TurnFeedback, error)
}

type weatherProvider interface {
	Current(ctx context.Context, location string) core.WeatherSnapshot
}

type searcher interface {
	Search(ctx context.Context, query string, limit int) ([]core.SearchResult, error)
}

type extractor interface {
	Run(ctx context.Context, intent *core.UserIntent, results []core.SearchResult) (*extraction.Outcome, error)
}

// SessionRecorder persists transcripts. Implemented by
// store.SessionStore; nil disables persistence.
type SessionRecorder interface {
	BeginSession(sessionID, originalRequest string) error
	RecordTurn(sessionID string, turnNumber int, role, content, intentJSON string) error
}

// Pipeline wires the agents together for sequential turn processing.
type Pipeline struct {
	mu       sync.RWMutex
	cfg      *config.Config
	intents  intentExtractor
	feedback feedbackClassifier
	weather  weatherProvider
	searcher searcher
	extract  extractor
	fetcher  *scrape.Fetcher
	sessions SessionRecorder
}

// New builds the production wiring on top of one LLM client. ranker may
// be nil; candidate ranking then falls back to relevance order.
func New(cfg *config.Config, llm core.LLMClient, ranker extraction.Ranker) *Pipeline {
	fetcher := scrape.NewFetcher(cfg)
	return &Pipeline{
		cfg:      cfg,
		intents:  perception.NewIntentAgent(llm),
		feedback: conversation.NewAgent(llm),
		weather:  weather.NewService(cfg),
		searcher: search.NewClient(cfg),
		extract:  extraction.NewAgent(llm, fetcher, ranker, cfg.Scrape.MaxSubPages),
		fetcher:  fetcher,
	}
}

// SetStore attaches transcript persistence.
func (p *Pipeline) SetStore(rec SessionRecorder) { p.sessions = rec }

// SetRenderer attaches the headless-browser fallback for pages that
// need JavaScript.
func (p *Pipeline) SetRenderer(r scrape.Renderer) { p.fetcher.SetFallback(r) }

// ReloadConfig swaps the configuration for subsequent turns. Turn and
// result limits pick up the new values; transport settings of already
// constructed clients are unaffected.
func (p *Pipeline) ReloadConfig(cfg *config.Config) {
	if cfg == nil {
		return
	}
	p.mu.Lock()
	p.cfg = cfg
	p.mu.Unlock()
}

func (p *Pipeline) config() *config.Config {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cfg
}

// Recommend runs one full recommendation turn. bypassClarification
// skips the generic-query gate, used when the user answered a
// clarification prompt with "proceed".
func (p *Pipeline) Recommend(ctx context.Context, request string, state *core.ConversationState, bypassClarification bool) (*core.ConversationalResponse, error) {
	request = strings.TrimSpace(request)
	if len([]rune(request)) < p.minRequestChars() {
		return nil, core.ErrRequestTooShort
	}

	timer := logging.StartTimer(logging.CategoryPipeline, "Recommend")
	defer timer.Stop()
	logging.Pipeline("recommendation turn started: %q", request)

	var prior *core.UserPreferences
	if state != nil && state.TurnCount > 0 {
		prefs := state.Preferences
		prior = &prefs
	}

	intent, err := p.intents.Extract(ctx, request, prior)
	if err != nil {
		return nil, err
	}
	if state != nil {
		applyIntent(&state.Preferences, intent)
	}

	if intent.NeedsClarification && !bypassClarification {
		logging.Pipeline("request too generic, asking for details")
		resp := &core.ConversationalResponse{
			ConversationMessage: conversation.ClarificationMessage(intent),
			NeedsClarification:  true,
		}
		p.persistExchange(state, request, intent, resp)
		return resp, nil
	}

	snapshot := p.weather.Current(ctx, intent.Location)
	if snapshot.Fetched {
		intent.WeatherCondition = snapshot.Description
	}

	intent.SearchQuery = EnhanceQuery(intent, time.Now())

	results, err := p.searcher.Search(ctx, intent.SearchQuery, p.maxResults())
	if err != nil {
		logging.Pipeline("search degraded, continuing without results: %v", err)
	}

	outcome, err := p.extract.Run(ctx, intent, results)
	if err != nil && !errors.Is(err, core.ErrNoConfidentExtraction) {
		return nil, err
	}

	var recs []core.ActivityRecommendation
	if outcome != nil {
		recs = buildRecommendations(outcome.Activities, snapshot)
	}

	resp := &core.ConversationalResponse{
		Recommendations:     recs,
		ConversationMessage: turnMessage(intent, recs),
	}
	p.persistExchange(state, request, intent, resp)
	logging.Pipeline("turn finished: %d recommendation(s)", len(recs))
	return resp, nil
}

// HandleFeedback classifies a feedback turn and dispatches on the
// result. Preference state changes only after classification succeeds,
// so a failed turn never corrupts what earlier turns accumulated.
func (p *Pipeline) HandleFeedback(ctx context.Context, feedback string, state *core.ConversationState) (*core.ConversationalResponse, error) {
	if state == nil {
		return nil, errors.New("feedback requires conversation state")
	}
	if state.TurnCount >= p.maxTurns(state) {
		return nil, core.ErrTurnBudget
	}

	turn, err := p.feedback.ClassifyFeedback(ctx, feedback, state)
	if err != nil {
		return nil, err
	}
	p.persistFeedback(state, turn)

	switch turn.FeedbackStatus {
	case core.FeedbackSatisfied:
		return &core.ConversationalResponse{ConversationMessage: SatisfiedMessage}, nil

	case core.FeedbackProceed:
		return p.Recommend(ctx, state.InitialRequest, state, true)

	case core.FeedbackNewSearch:
		*state = conversation.Reset(*state, feedback)
		return p.Recommend(ctx, state.InitialRequest, state, false)

	case core.FeedbackRefinement:
		state.Preferences = conversation.Merge(state.Preferences, turn.ExtractedUpdates)
		return p.Recommend(ctx, feedback, state, true)

	default:
		return &core.ConversationalResponse{ConversationMessage: conversation.RephraseMessage}, nil
	}
}

func (p *Pipeline) minRequestChars() int {
	if cfg := p.config(); cfg != nil && cfg.Conversation.MinRequestChars > 0 {
		return cfg.Conversation.MinRequestChars
	}
	return 5
}

func (p *Pipeline) maxResults() int {
	if cfg := p.config(); cfg != nil && cfg.Search.MaxResults > 0 {
		return cfg.Search.MaxResults
	}
	return 5
}

func (p *Pipeline) maxTurns(state *core.ConversationState) int {
	if state.MaxTurns > 0 {
		return state.MaxTurns
	}
	if cfg := p.config(); cfg != nil && cfg.Conversation.MaxTurns > 0 {
		return cfg.Conversation.MaxTurns
	}
	return 5
}

// applyIntent folds a successfully extracted intent into the carried
// preference state. Only fields the intent actually states overwrite.
func applyIntent(prefs *core.UserPreferences, intent *core.UserIntent) {
	if intent.ActivityType != "" && intent.ActivityType != string(core.ActivityGeneral) {
		prefs.ActivityType = intent.ActivityType
	}
	if intent.Location != "" {
		prefs.Location = intent.Location
	}
	if intent.SearchRadiusKm != nil && *intent.SearchRadiusKm > 0 {
		prefs.SearchRadiusKm = *intent.SearchRadiusKm
	}
	if intent.DifficultyPreference != "" {
		prefs.DifficultyLevel = intent.DifficultyPreference
	}
	if intent.DurationPreference != "" {
		prefs.DurationPreference = intent.DurationPreference
	}
	if intent.IndoorOutdoor != "" {
		prefs.IndoorOutdoor = intent.IndoorOutdoor
	}
	if intent.WeatherCondition != "" {
		prefs.WeatherPreference = intent.WeatherCondition
	}
}

// buildRecommendations converts extracted activities into rendered
// recommendations. Detail metrics copy through verbatim; absent basics
// get the documented defaults rather than empty strings.
func buildRecommendations(activities []core.ExtractedActivity, snapshot core.WeatherSnapshot) []core.ActivityRecommendation {
	recs := make([]core.ActivityRecommendation, 0, len(activities))
	for _, act := range activities {
		rec := core.ActivityRecommendation{
			ActivityName:       act.ActivityName,
			Location:           act.Location,
			Description:        act.Description,
			DifficultyLevel:    valueOr(act.DifficultyLevel, "not specified"),
			DurationEstimate:   valueOr(act.DurationEstimate, "varies"),
			EquipmentNeeded:    act.EquipmentNeeded,
			WeatherSuitability: valueOr(act.WeatherSuitability, "any weather"),
			IndoorOutdoor:      valueOr(act.IndoorOutdoor, "outdoor"),
			SourceURL:          act.SourceURL,

			Distance:      act.Distance,
			ElevationGain: act.ElevationGain,
			EstimatedTime: act.EstimatedTime,
			AverageRating: act.AverageRating,
			SurfaceType:   act.SurfaceType,
			StartingPoint: act.StartingPoint,
			RouteType:     act.RouteType,
		}
		rec.WeatherRecommendation = weather.Advice(snapshot, rec.IndoorOutdoor)
		recs = append(recs, rec)
	}
	return recs
}

func valueOr(s *string, fallback string) string {
	if s != nil && strings.TrimSpace(*s) != "" {
		return *s
	}
	return fallback
}

func turnMessage(intent *core.UserIntent, recs []core.ActivityRecommendation) string {
	subject := activityLabel(intent.ActivityType)
	place := strings.TrimSpace(intent.Location)
	if place == "" {
		place = "your area"
	}

	if len(recs) == 0 {
		return fmt.Sprintf("I couldn't find %s in %s with enough reliable detail right now (insufficient data from the sources I checked). Try broadening the area or rephrasing your request.", subject, place)
	}
	if hasDetailedMetrics(recs) {
		return fmt.Sprintf("Great! I found some perfect %s in %s with detailed information. Here are my top recommendations:", subject, place)
	}
	return fmt.Sprintf("I found some great %s in %s for you. Here are my recommendations:", subject, place)
}

func hasDetailedMetrics(recs []core.ActivityRecommendation) bool {
	for _, r := range recs {
		if r.Distance != nil || r.ElevationGain != nil || r.EstimatedTime != nil ||
			r.AverageRating != nil || r.SurfaceType != nil || r.RouteType != nil {
			return true
		}
	}
	return false
}

func activityLabel(activityType string) string {
	switch core.ParseActivityType(activityType) {
	case core.ActivityRunning:
		return "running routes"
	case core.ActivityHiking:
		return "hiking trails"
	case core.ActivityCycling:
		return "cycling routes"
	case core.ActivityWalking:
		return "walking routes"
	case core.ActivitySwimming:
		return "swimming options"
	case core.ActivityClimbing:
		return "climbing options"
	default:
		return "activities"
	}
}

// persistExchange records the user line and the agent reply. Best
// effort only; a dead store never fails the turn.
func (p *Pipeline) persistExchange(state *core.ConversationState, request string, intent *core.UserIntent, resp *core.ConversationalResponse) {
	if p.sessions == nil || state == nil {
		return
	}

	if state.TurnCount == 0 {
		if err := p.sessions.BeginSession(state.SessionID, state.InitialRequest); err != nil {
			logging.Get(logging.CategoryStore).Warn("session registration failed: %v", err)
		}
	}

	intentJSON := ""
	if data, err := json.Marshal(intent); err == nil {
		intentJSON = string(data)
	}
	if err := p.sessions.RecordTurn(state.SessionID, state.TurnCount, store.RoleUser, request, intentJSON); err != nil {
		logging.Get(logging.CategoryStore).Warn("user turn not recorded: %v", err)
	}
	if err := p.sessions.RecordTurn(state.SessionID, state.TurnCount, store.RoleAgent, resp.ConversationMessage, ""); err != nil {
		logging.Get(logging.CategoryStore).Warn("agent turn not recorded: %v", err)
	}
}

// persistFeedback records a classified feedback line under the user
// role with the classification attached.
func (p *Pipeline) persistFeedback(state *core.ConversationState, turn *core.TurnFeedback) {
	if p.sessions == nil || state == nil {
		return
	}
	turnJSON := ""
	if data, err := json.Marshal(turn); err == nil {
		turnJSON = string(data)
	}
	if err := p.sessions.RecordTurn(state.SessionID, state.TurnCount, store.RoleUser, turn.UserFeedback, turnJSON); err != nil {
		logging.Get(logging.CategoryStore).Warn("feedback turn not recorded: %v", err)
	}
}
