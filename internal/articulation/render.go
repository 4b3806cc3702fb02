package articulation

import (
	"fmt"
	"net/url"
	"strings"

	"trailscout/internal/core"
)

// Rendering helpers producing the markdown the chat surface feeds to
// glamour. Detail metrics render only when the source stated them; a
// card never pads missing fields with placeholders.

// maxDetailMetrics bounds the detailed-metrics block per card.
const maxDetailMetrics = 4

// maxEquipmentShown bounds the equipment list per card.
const maxEquipmentShown = 3

// descriptionLimit truncates long descriptions for the card view.
const descriptionLimit = 120

// RenderResponse renders a full turn response: the conversational
// message followed by one card per recommendation.
func RenderResponse(resp core.ConversationalResponse) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(resp.ConversationMessage))

	if len(resp.Recommendations) == 0 {
		return b.String()
	}

	b.WriteString("\n")
	for i, rec := range resp.Recommendations {
		b.WriteString("\n")
		b.WriteString(RecommendationCard(rec, i+1))
	}
	return b.String()
}

// RecommendationCard renders one recommendation as a markdown card.
func RecommendationCard(rec core.ActivityRecommendation, index int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "### %d. %s\n\n", index, rec.ActivityName)
	if rec.Location != "" {
		fmt.Fprintf(&b, "*%s*\n\n", rec.Location)
	}

	if desc := truncateDescription(rec.Description); desc != "" {
		b.WriteString(desc)
		b.WriteString("\n\n")
	}

	metrics := detailMetrics(rec)
	if len(metrics) > 0 {
		b.WriteString("**Details**\n")
		for _, m := range metrics {
			fmt.Fprintf(&b, "- %s\n", m)
		}
		if extras := basicExtras(rec); len(extras) > 0 {
			fmt.Fprintf(&b, "- %s\n", strings.Join(extras, ", "))
		}
		b.WriteString("\n")
	} else if basics := basicDetails(rec); len(basics) > 0 {
		b.WriteString(strings.Join(basics, " · "))
		b.WriteString("\n\n")
	}

	if rec.StartingPoint != nil && *rec.StartingPoint != "" {
		fmt.Fprintf(&b, "Start: %s\n\n", *rec.StartingPoint)
	}

	switch {
	case rec.WeatherRecommendation != "":
		fmt.Fprintf(&b, "Weather: %s\n\n", rec.WeatherRecommendation)
	case rec.WeatherSuitability != "" && rec.WeatherSuitability != "any weather":
		fmt.Fprintf(&b, "Weather: %s\n\n", rec.WeatherSuitability)
	}

	fmt.Fprintf(&b, "Equipment: %s\n\n", equipmentLine(rec.EquipmentNeeded))

	if rec.SourceURL != "" {
		fmt.Fprintf(&b, "Source: %s\n", ShortenURL(rec.SourceURL))
	}

	return b.String()
}

// detailMetrics collects the stated metrics in display order, capped at
// maxDetailMetrics.
func detailMetrics(rec core.ActivityRecommendation) []string {
	var metrics []string
	add := func(label string, v *string) {
		if v != nil && *v != "" {
			metrics = append(metrics, fmt.Sprintf("%s: %s", label, *v))
		}
	}
	add("Distance", rec.Distance)
	add("Elevation", rec.ElevationGain)
	add("Time", rec.EstimatedTime)
	add("Rating", rec.AverageRating)
	add("Surface", rec.SurfaceType)
	add("Route", rec.RouteType)

	if len(metrics) > maxDetailMetrics {
		metrics = metrics[:maxDetailMetrics]
	}
	return metrics
}

// basicExtras returns difficulty and setting lines shown alongside
// detailed metrics.
func basicExtras(rec core.ActivityRecommendation) []string {
	var extras []string
	if rec.DifficultyLevel != "" && rec.DifficultyLevel != "not specified" {
		extras = append(extras, "Difficulty: "+rec.DifficultyLevel)
	}
	if rec.IndoorOutdoor != "" {
		extras = append(extras, "Setting: "+rec.IndoorOutdoor)
	}
	return extras
}

// basicDetails is the fallback line for cards without detailed metrics.
func basicDetails(rec core.ActivityRecommendation) []string {
	var basics []string
	if rec.DurationEstimate != "" && rec.DurationEstimate != "varies" {
		basics = append(basics, rec.DurationEstimate)
	}
	if rec.DifficultyLevel != "" && rec.DifficultyLevel != "not specified" {
		basics = append(basics, rec.DifficultyLevel)
	}
	if rec.IndoorOutdoor != "" {
		basics = append(basics, rec.IndoorOutdoor)
	}
	return basics
}

// equipmentLine renders the equipment list capped at maxEquipmentShown
// entries.
func equipmentLine(equipment []string) string {
	if len(equipment) == 0 {
		return "None needed"
	}
	shown := equipment
	if len(shown) > maxEquipmentShown {
		shown = shown[:maxEquipmentShown]
	}
	line := strings.Join(shown, ", ")
	if extra := len(equipment) - len(shown); extra > 0 {
		line += fmt.Sprintf(" (+%d more)", extra)
	}
	return line
}

// truncateDescription caps a description at descriptionLimit runes for
// the card view.
func truncateDescription(desc string) string {
	desc = strings.TrimSpace(desc)
	runes := []rune(desc)
	if len(runes) <= descriptionLimit {
		return desc
	}
	return string(runes[:descriptionLimit]) + "..."
}

// ShortenURL compresses a long URL to host plus a truncated path so the
// card stays one line.
func ShortenURL(raw string) string {
	if len(raw) <= 80 {
		return raw
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return raw[:77] + "..."
	}
	display := parsed.Host + parsed.Path
	if len(display) > 70 {
		display = parsed.Host + truncatePath(parsed.Path, 50) + "..."
	}
	return display
}

func truncatePath(path string, n int) string {
	if len(path) <= n {
		return path
	}
	return path[:n]
}
