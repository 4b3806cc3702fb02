package pipeline

import (
	"strings"
	"time"

	"trailscout/internal/core"
	"trailscout/internal/logging"
)

// European cities that collide with US namesakes in web search. The
// display form is spliced over the bare city token in the query unless
// the country is already mentioned.
var cityCountries = []struct {
	city    string
	display string
}{
	{"vienna", "Vienna Austria"},
	{"prague", "Prague Czech Republic"},
	{"budapest", "Budapest Hungary"},
	{"berlin", "Berlin Germany"},
	{"munich", "Munich Germany"},
	{"zurich", "Zurich Switzerland"},
	{"amsterdam", "Amsterdam Netherlands"},
	{"stockholm", "Stockholm Sweden"},
	{"copenhagen", "Copenhagen Denmark"},
	{"oslo", "Oslo Norway"},
	{"helsinki", "Helsinki Finland"},
}

const maxEnhancements = 2

// EnhanceQuery sharpens the intent's search query: geographic
// disambiguation plus at most two suffixes derived from current weather
// and time of day.
func EnhanceQuery(intent *core.UserIntent, now time.Time) string {
	query := disambiguateLocation(intent.SearchQuery, intent.Location)

	var enhancements []string

	weather := strings.ToLower(intent.WeatherCondition)
	switch {
	case strings.Contains(weather, "sunny") || strings.Contains(weather, "clear"):
		enhancements = append(enhancements, "sunny weather")
	case strings.Contains(weather, "rain"):
		if intent.IndoorOutdoor == "outdoor" {
			enhancements = append(enhancements, "covered routes")
		}
	case strings.Contains(weather, "cloudy") || strings.Contains(weather, "overcast"):
		enhancements = append(enhancements, "day trip")
	}

	switch hour := now.Hour(); {
	case hour >= 6 && hour <= 10:
		enhancements = append(enhancements, "morning")
	case hour >= 17 && hour <= 20:
		enhancements = append(enhancements, "evening")
	case hour >= 21 || hour <= 5:
		if intent.ActivityType == string(core.ActivityRunning) || intent.ActivityType == string(core.ActivityCycling) {
			enhancements = append(enhancements, "well-lit safe routes")
		}
	}

	if len(enhancements) > maxEnhancements {
		enhancements = enhancements[:maxEnhancements]
	}
	if len(enhancements) > 0 {
		query = query + " " + strings.Join(enhancements, " ")
	}

	if query != intent.SearchQuery {
		logging.PipelineDebug("enhanced search query: %q -> %q", intent.SearchQuery, query)
	}
	return query
}

// disambiguateLocation widens a bare European city token to "City
// Country". Replacing only the token keeps qualifiers like "city
// center" intact.
func disambiguateLocation(query, location string) string {
	locLower := strings.ToLower(location)
	queryLower := strings.ToLower(query)

	for _, m := range cityCountries {
		if !strings.Contains(locLower, m.city) {
			continue
		}
		country := strings.TrimSpace(strings.TrimPrefix(strings.ToLower(m.display), m.city))
		if strings.Contains(locLower, country) || strings.Contains(queryLower, country) {
			return query
		}
		if idx := strings.Index(queryLower, m.city); idx >= 0 {
			return query[:idx] + m.display + query[idx+len(m.city):]
		}
		return query
	}
	return query
}
