package weather

import (
	"testing"

	"trailscout/internal/core"
)

func fetchedSnapshot(desc string, temp, wind float64) core.WeatherSnapshot {
	return core.WeatherSnapshot{
		Location:     "Vienna",
		Description:  desc,
		TemperatureC: temp,
		WindMS:       wind,
		Fetched:      true,
		Summary:      desc,
	}
}

func TestAdvice(t *testing.T) {
	tests := []struct {
		name          string
		snapshot      core.WeatherSnapshot
		indoorOutdoor string
		want          string
	}{
		{
			name:          "indoor_any_weather",
			snapshot:      fetchedSnapshot("heavy rain", 8, 6),
			indoorOutdoor: "indoor",
			want:          "Great indoor option regardless of weather",
		},
		{
			name:          "outdoor_clear",
			snapshot:      fetchedSnapshot("clear sky", 20, 3),
			indoorOutdoor: "outdoor",
			want:          "Perfect weather for this outdoor activity!",
		},
		{
			name:          "outdoor_rain",
			snapshot:      fetchedSnapshot("light rain", 12, 4),
			indoorOutdoor: "outdoor",
			want:          "Consider indoor alternatives due to light rain",
		},
		{
			name:          "outdoor_strong_wind",
			snapshot:      fetchedSnapshot("clear sky", 18, 12),
			indoorOutdoor: "outdoor",
			want:          "Consider indoor alternatives due to strong wind",
		},
		{
			name:          "outdoor_freezing",
			snapshot:      fetchedSnapshot("clear sky", -8, 2),
			indoorOutdoor: "outdoor",
			want:          "Consider indoor alternatives due to freezing temperatures",
		},
		{
			name:          "outdoor_heat",
			snapshot:      fetchedSnapshot("clear sky", 38, 2),
			indoorOutdoor: "outdoor",
			want:          "Consider indoor alternatives due to extreme heat",
		},
		{
			name:          "both_reports_condition",
			snapshot:      fetchedSnapshot("scattered clouds", 15, 3),
			indoorOutdoor: "both",
			want:          "Weather is scattered clouds - indoor/outdoor choice is yours",
		},
		{
			name:          "unspecified_treated_as_both",
			snapshot:      fetchedSnapshot("clear sky", 20, 3),
			indoorOutdoor: "",
			want:          "Weather is clear sky - indoor/outdoor choice is yours",
		},
		{
			name:          "unknown_weather_no_advice",
			snapshot:      core.WeatherSnapshot{Location: "Vienna", Summary: "Weather data unavailable - API error 500"},
			indoorOutdoor: "outdoor",
			want:          "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Advice(tt.snapshot, tt.indoorOutdoor); got != tt.want {
				t.Errorf("Advice() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTitleCase(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"light rain", "Light Rain"},
		{"clear sky", "Clear Sky"},
		{"", ""},
		{"mist", "Mist"},
	}
	for _, tt := range tests {
		if got := titleCase(tt.in); got != tt.want {
			t.Errorf("titleCase(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
