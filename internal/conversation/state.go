package conversation

import (
	"strings"

	"github.com/google/uuid"

	"trailscout/internal/core"
)

// NewState opens a session for an initial request.
func NewState(request string, maxTurns int) *core.ConversationState {
	return &core.ConversationState{
		SessionID:      uuid.NewString(),
		InitialRequest: strings.TrimSpace(request),
		Preferences:    core.DefaultPreferences(),
		MaxTurns:       maxTurns,
	}
}

// Merge applies a refinement delta to the prior preferences. Fields the
// delta sets overwrite; everything else keeps its prior value verbatim.
func Merge(prior core.UserPreferences, delta core.PreferenceDelta) core.UserPreferences {
	merged := prior
	if delta.ActivityType != nil {
		merged.ActivityType = *delta.ActivityType
	}
	if delta.Location != nil {
		merged.Location = *delta.Location
	}
	if delta.SearchRadiusKm != nil {
		merged.SearchRadiusKm = *delta.SearchRadiusKm
	}
	if delta.DifficultyLevel != nil {
		merged.DifficultyLevel = *delta.DifficultyLevel
	}
	if delta.DurationPreference != nil {
		merged.DurationPreference = *delta.DurationPreference
	}
	if delta.IndoorOutdoor != nil {
		merged.IndoorOutdoor = *delta.IndoorOutdoor
	}
	if delta.WeatherPreference != nil {
		merged.WeatherPreference = *delta.WeatherPreference
	}
	return merged
}

// Reset reopens the session around the feedback text as the new request.
// Preferences start over from the defaults; only the session identity
// and turn accounting carry across.
func Reset(state core.ConversationState, feedback string) core.ConversationState {
	fresh := state
	fresh.InitialRequest = strings.TrimSpace(feedback)
	fresh.Preferences = core.DefaultPreferences()
	return fresh
}
