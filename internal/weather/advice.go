package weather

import (
	"fmt"
	"strings"

	"trailscout/internal/core"
)

var adverseWords = []string{"rain", "drizzle", "snow", "storm", "thunder", "sleet", "hail"}

// Advice turns a snapshot into the weather_recommendation line for one
// activity. indoorOutdoor is the activity's setting ("indoor",
// "outdoor", or "both"). Returns "" when the weather is unknown.
func Advice(snapshot core.WeatherSnapshot, indoorOutdoor string) string {
	if !snapshot.Fetched {
		return ""
	}

	switch strings.ToLower(strings.TrimSpace(indoorOutdoor)) {
	case "indoor":
		return "Great indoor option regardless of weather"
	case "outdoor":
		if reason, bad := adverseCondition(snapshot); bad {
			return "Consider indoor alternatives due to " + reason
		}
		return "Perfect weather for this outdoor activity!"
	default:
		return fmt.Sprintf("Weather is %s - indoor/outdoor choice is yours", describeOrSummary(snapshot))
	}
}

// adverseCondition reports whether conditions argue against being
// outside, with a short reason.
func adverseCondition(snapshot core.WeatherSnapshot) (string, bool) {
	desc := strings.ToLower(snapshot.Description)
	for _, w := range adverseWords {
		if strings.Contains(desc, w) {
			return snapshot.Description, true
		}
	}
	if snapshot.WindMS >= 10 {
		return "strong wind", true
	}
	if snapshot.TemperatureC <= -5 {
		return "freezing temperatures", true
	}
	if snapshot.TemperatureC >= 35 {
		return "extreme heat", true
	}
	return "", false
}

func describeOrSummary(snapshot core.WeatherSnapshot) string {
	if snapshot.Description != "" {
		return snapshot.Description
	}
	return snapshot.Summary
}
