package pipeline

import (
	"testing"
	"time"

	"trailscout/internal/core"
)

// neutralHour is inside 11-16 where no time-of-day suffix applies.
var neutralHour = time.Date(2026, 3, 14, 13, 0, 0, 0, time.UTC)

func TestEnhanceQuery_CityDisambiguation(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		location string
		want     string
	}{
		{
			name:     "BareCityWidened",
			query:    "running routes Vienna",
			location: "Vienna",
			want:     "running routes Vienna Austria",
		},
		{
			name:     "QualifierAfterCityPreserved",
			query:    "running routes Vienna city center",
			location: "Vienna city center",
			want:     "running routes Vienna Austria city center",
		},
		{
			name:     "CountryAlreadyInLocation",
			query:    "hiking trails Prague",
			location: "Prague Czech Republic",
			want:     "hiking trails Prague",
		},
		{
			name:     "CountryAlreadyInQuery",
			query:    "hiking trails Prague Czech Republic",
			location: "Prague",
			want:     "hiking trails Prague Czech Republic",
		},
		{
			name:     "CityAbsentFromQuery",
			query:    "best trails nearby",
			location: "Vienna",
			want:     "best trails nearby",
		},
		{
			name:     "CaseInsensitiveSplice",
			query:    "RUNNING IN VIENNA",
			location: "vienna",
			want:     "RUNNING IN Vienna Austria",
		},
		{
			name:     "UnknownCityUntouched",
			query:    "running routes Springfield",
			location: "Springfield",
			want:     "running routes Springfield",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			intent := &core.UserIntent{
				ActivityType: "hiking",
				Location:     tt.location,
				SearchQuery:  tt.query,
			}
			got := EnhanceQuery(intent, neutralHour)
			if got != tt.want {
				t.Errorf("EnhanceQuery() = %q, want %q", got, tt.want)
			}
			if intent.SearchQuery != tt.query {
				t.Errorf("input intent mutated: SearchQuery = %q", intent.SearchQuery)
			}
		})
	}
}

func TestEnhanceQuery_WeatherSuffixes(t *testing.T) {
	tests := []struct {
		name          string
		weather       string
		indoorOutdoor string
		want          string
	}{
		{"SunnyAddsSunnyWeather", "sunny", "outdoor", "trail run Graz sunny weather"},
		{"ClearCountsAsSunny", "clear sky", "outdoor", "trail run Graz sunny weather"},
		{"RainOutdoorAddsCoveredRoutes", "light rain", "outdoor", "trail run Graz covered routes"},
		{"RainIndoorOutdoorBothAddsNothing", "light rain", "both", "trail run Graz"},
		{"CloudyAddsDayTrip", "cloudy", "outdoor", "trail run Graz day trip"},
		{"OvercastAddsDayTrip", "overcast clouds", "outdoor", "trail run Graz day trip"},
		{"UnknownWeatherAddsNothing", "foggy", "outdoor", "trail run Graz"},
		{"EmptyWeatherAddsNothing", "", "outdoor", "trail run Graz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			intent := &core.UserIntent{
				ActivityType:     "running",
				Location:         "Graz",
				SearchQuery:      "trail run Graz",
				WeatherCondition: tt.weather,
				IndoorOutdoor:    tt.indoorOutdoor,
			}
			if got := EnhanceQuery(intent, neutralHour); got != tt.want {
				t.Errorf("EnhanceQuery() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEnhanceQuery_TimeOfDay(t *testing.T) {
	day := func(hour int) time.Time {
		return time.Date(2026, 3, 14, hour, 30, 0, 0, time.UTC)
	}

	tests := []struct {
		name     string
		hour     int
		activity string
		want     string
	}{
		{"MorningWindowStart", 6, "hiking", "trails Linz morning"},
		{"MorningWindowEnd", 10, "hiking", "trails Linz morning"},
		{"MiddayAddsNothing", 12, "hiking", "trails Linz"},
		{"EveningWindow", 18, "hiking", "trails Linz evening"},
		{"NightRunningAddsLitRoutes", 22, "running", "trails Linz well-lit safe routes"},
		{"EarlyMorningCyclingAddsLitRoutes", 5, "cycling", "trails Linz well-lit safe routes"},
		{"NightHikingAddsNothing", 22, "hiking", "trails Linz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			intent := &core.UserIntent{
				ActivityType: tt.activity,
				Location:     "Linz",
				SearchQuery:  "trails Linz",
			}
			if got := EnhanceQuery(intent, day(tt.hour)); got != tt.want {
				t.Errorf("EnhanceQuery() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEnhanceQuery_CombinesCityWeatherAndTime(t *testing.T) {
	intent := &core.UserIntent{
		ActivityType:     "running",
		Location:         "Vienna",
		SearchQuery:      "running routes Vienna",
		WeatherCondition: "sunny",
		IndoorOutdoor:    "outdoor",
	}
	morning := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)

	want := "running routes Vienna Austria sunny weather morning"
	if got := EnhanceQuery(intent, morning); got != want {
		t.Errorf("EnhanceQuery() = %q, want %q", got, want)
	}
}
