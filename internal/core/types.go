// Package core holds the shared data model for the recommendation
// pipeline: user intent, preference state, scraped-page analysis, and
// the structures the agents exchange. Optional fields are pointers so
// "absent from source" stays distinguishable from a zero value.
package core

import "strings"

// ActivityType enumerates the activity categories the agent understands.
type ActivityType string

const (
	ActivityHiking   ActivityType = "hiking"
	ActivityRunning  ActivityType = "running"
	ActivityCycling  ActivityType = "cycling"
	ActivitySwimming ActivityType = "swimming"
	ActivityClimbing ActivityType = "climbing"
	ActivityWalking  ActivityType = "walking"
	ActivityGeneral  ActivityType = "general"
)

// ParseActivityType normalizes a free-form activity label. Unknown
// labels collapse to ActivityGeneral rather than erroring; the model
// occasionally invents labels like "trail running".
func ParseActivityType(s string) ActivityType {
	switch v := ActivityType(strings.ToLower(strings.TrimSpace(s))); v {
	case ActivityHiking, ActivityRunning, ActivityCycling, ActivitySwimming, ActivityClimbing, ActivityWalking:
		return v
	}
	s = strings.ToLower(s)
	for _, known := range []ActivityType{ActivityHiking, ActivityRunning, ActivityCycling, ActivitySwimming, ActivityClimbing, ActivityWalking} {
		if strings.Contains(s, string(known)) {
			return known
		}
	}
	return ActivityGeneral
}

// UserIntent is the structured form of one activity request, produced
// by the intent extraction leg and validated against IntentSchema.
type UserIntent struct {
	ActivityType     string   `json:"activity_type"`
	Location         string   `json:"location"`
	WeatherCondition string   `json:"weather_condition,omitempty"`
	SearchQuery      string   `json:"search_query"`
	Preferences      []string `json:"preferences,omitempty"`
	SearchRadiusKm   *int     `json:"search_radius_km,omitempty"`
	IndoorOutdoor    string   `json:"indoor_outdoor,omitempty"`

	DifficultyPreference string `json:"difficulty_preference,omitempty"`
	DurationPreference   string `json:"duration_preference,omitempty"`
	ElevationPreference  string `json:"elevation_preference,omitempty"`
	SurfacePreference    string `json:"surface_preference,omitempty"`
	StartingPoint        string `json:"starting_point,omitempty"`
	DistancePreference   string `json:"distance_preference,omitempty"`

	// IsGeneric and NeedsClarification drive the clarification gate.
	IsGeneric          bool `json:"is_generic"`
	NeedsClarification bool `json:"needs_clarification"`
}

// WeatherSnapshot is one cached weather lookup. Fetched is false when
// every retry failed and the turn proceeded with degraded info.
type WeatherSnapshot struct {
	Location     string  `json:"location"`
	Description  string  `json:"description,omitempty"`
	TemperatureC float64 `json:"temperature_c"`
	WindMS       float64 `json:"wind_ms"`
	Fetched      bool    `json:"fetched"`
	Summary      string  `json:"summary"`
}

// SearchResult is one raw web search hit before any scraping.
type SearchResult struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// Page types assigned by page analysis.
const (
	PageIndividualActivity = "individual_activity"
	PageActivityList       = "activity_list"
	PageMixedContent       = "mixed_content"
)

// PageAnalysis classifies one fetched page before extraction.
type PageAnalysis struct {
	PageType              string   `json:"page_type"`
	HasMultipleActivities bool     `json:"has_multiple_activities"`
	ActivityCount         int      `json:"activity_count"`
	HasDetailedMetrics    bool     `json:"has_detailed_metrics"`
	Confidence            float64  `json:"confidence"`
	SubURLs               []string `json:"sub_urls,omitempty"`
	BestMatchURL          string   `json:"best_match_url,omitempty"`
}

// ActivityCandidate is one entry found on a list page before detailed
// extraction.
type ActivityCandidate struct {
	ActivityName     string  `json:"activity_name"`
	BriefDescription string  `json:"brief_description"`
	SubURL           string  `json:"sub_url,omitempty"`
	RelevanceScore   float64 `json:"relevance_score"`
	HasDetails       bool    `json:"has_details"`
}

// Extraction confidence labels.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// ExtractedActivity is the structured result of scraping one activity.
// The detail fields carry source text verbatim and stay nil when the
// page does not state them.
type ExtractedActivity struct {
	SourceURL    string `json:"source_url"`
	ActivityName string `json:"activity_name"`
	Location     string `json:"location"`
	Description  string `json:"description"`

	DifficultyLevel    *string  `json:"difficulty_level,omitempty"`
	DurationEstimate   *string  `json:"duration_estimate,omitempty"`
	EquipmentNeeded    []string `json:"equipment_needed,omitempty"`
	WeatherSuitability *string  `json:"weather_suitability,omitempty"`
	IndoorOutdoor      *string  `json:"indoor_outdoor,omitempty"`

	Distance      *string `json:"distance,omitempty"`
	ElevationGain *string `json:"elevation_gain,omitempty"`
	EstimatedTime *string `json:"estimated_time,omitempty"`
	AverageRating *string `json:"average_rating,omitempty"`
	SurfaceType   *string `json:"surface_type,omitempty"`
	StartingPoint *string `json:"starting_point,omitempty"`
	RouteType     *string `json:"route_type,omitempty"`

	RelevanceScore       float64 `json:"relevance_score"`
	ExtractionConfidence string  `json:"extraction_confidence"`
	DetailsAvailable     bool    `json:"details_available"`
}

// Extraction strategies recorded on SmartExtractionResult.
const (
	StrategyDirect        = "direct"
	StrategySubPageFollow = "sub_page_follow"
	StrategyListSelection = "list_selection"
	StrategyFailed        = "failed"
)

// SmartExtractionResult is the outcome of classify-then-extract over
// one search result, including any sub-page navigation.
type SmartExtractionResult struct {
	Success             bool                `json:"success"`
	PageAnalysis        PageAnalysis        `json:"page_analysis"`
	ExtractedActivity   *ExtractedActivity  `json:"extracted_activity,omitempty"`
	CandidateActivities []ActivityCandidate `json:"candidate_activities,omitempty"`
	FollowUpURL         string              `json:"follow_up_url,omitempty"`
	ExtractionStrategy  string              `json:"extraction_strategy"`
	FailureReason       string              `json:"failure_reason,omitempty"`
	PagesFetched        int                 `json:"pages_fetched"`
}

// ActivityRecommendation is one rendered recommendation: an extracted
// activity joined with the weather advice for its location.
type ActivityRecommendation struct {
	ActivityName          string   `json:"activity_name"`
	Location              string   `json:"location"`
	Description           string   `json:"description"`
	DifficultyLevel       string   `json:"difficulty_level"`
	DurationEstimate      string   `json:"duration_estimate"`
	EquipmentNeeded       []string `json:"equipment_needed,omitempty"`
	WeatherSuitability    string   `json:"weather_suitability"`
	IndoorOutdoor         string   `json:"indoor_outdoor"`
	WeatherRecommendation string   `json:"weather_recommendation,omitempty"`
	SourceURL             string   `json:"source_url"`

	Distance      *string `json:"distance,omitempty"`
	ElevationGain *string `json:"elevation_gain,omitempty"`
	EstimatedTime *string `json:"estimated_time,omitempty"`
	AverageRating *string `json:"average_rating,omitempty"`
	SurfaceType   *string `json:"surface_type,omitempty"`
	StartingPoint *string `json:"starting_point,omitempty"`
	RouteType     *string `json:"route_type,omitempty"`
}

// UserPreferences is the mutable conversation state carried across
// turns. Refinement deltas overwrite mentioned fields only; a new
// search discards the whole struct.
type UserPreferences struct {
	ActivityType       string `json:"activity_type"`
	Location           string `json:"location"`
	SearchRadiusKm     int    `json:"search_radius_km"`
	DifficultyLevel    string `json:"difficulty_level,omitempty"`
	DurationPreference string `json:"duration_preference,omitempty"`
	IndoorOutdoor      string `json:"indoor_outdoor"`
	WeatherPreference  string `json:"weather_preference,omitempty"`
}

// DefaultPreferences returns the zero conversation state with the
// defaults applied.
func DefaultPreferences() UserPreferences {
	return UserPreferences{
		SearchRadiusKm: 25,
		IndoorOutdoor:  "both",
	}
}

// PreferenceDelta is the field-wise update extracted from refinement
// feedback. Nil means the user did not mention that field.
type PreferenceDelta struct {
	ActivityType       *string `json:"activity_type,omitempty"`
	Location           *string `json:"location,omitempty"`
	SearchRadiusKm     *int    `json:"search_radius_km,omitempty"`
	DifficultyLevel    *string `json:"difficulty_level,omitempty"`
	DurationPreference *string `json:"duration_preference,omitempty"`
	IndoorOutdoor      *string `json:"indoor_outdoor,omitempty"`
	WeatherPreference  *string `json:"weather_preference,omitempty"`
}

// IsEmpty reports whether the delta mentions no field at all.
func (d PreferenceDelta) IsEmpty() bool {
	return d.ActivityType == nil && d.Location == nil && d.SearchRadiusKm == nil &&
		d.DifficultyLevel == nil && d.DurationPreference == nil &&
		d.IndoorOutdoor == nil && d.WeatherPreference == nil
}

// Feedback statuses assigned by feedback classification.
const (
	FeedbackSatisfied  = "satisfied"
	FeedbackNewSearch  = "new_search"
	FeedbackRefinement = "refinement"
	FeedbackProceed    = "proceed"
	FeedbackUnclear    = "unclear"
)

// TurnFeedback is one classified feedback turn.
type TurnFeedback struct {
	ConversationID   string          `json:"conversation_id"`
	TurnNumber       int             `json:"turn_number"`
	UserFeedback     string          `json:"user_feedback"`
	FeedbackStatus   string          `json:"feedback_status"`
	ExtractedUpdates PreferenceDelta `json:"extracted_updates"`
	Timestamp        string          `json:"timestamp,omitempty"`
}

// ConversationState tracks one chat session.
type ConversationState struct {
	SessionID      string          `json:"session_id"`
	InitialRequest string          `json:"initial_request"`
	Preferences    UserPreferences `json:"preferences"`
	TurnCount      int             `json:"turn_count"`
	MaxTurns       int             `json:"max_turns"`
}

// ConversationalResponse is what one pipeline turn hands back to the
// chat surface.
type ConversationalResponse struct {
	Recommendations     []ActivityRecommendation `json:"recommendations"`
	ConversationMessage string                   `json:"conversation_message"`
	NeedsClarification  bool                     `json:"needs_clarification,omitempty"`
}
