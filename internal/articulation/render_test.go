package articulation

import (
	"strings"
	"testing"

	"trailscout/internal/core"
)

func strPtr(s string) *string { return &s }

func TestRecommendationCard_DetailedMetrics(t *testing.T) {
	rec := core.ActivityRecommendation{
		ActivityName:    "Donauinsel Long Trail",
		Location:        "Vienna, Austria",
		Description:     "Flat riverside running path along the Danube island.",
		DifficultyLevel: "easy",
		IndoorOutdoor:   "outdoor",
		SourceURL:       "https://example.com/trail",
		Distance:        strPtr("21 km"),
		ElevationGain:   strPtr("15 m"),
		EstimatedTime:   strPtr("2 hr"),
		AverageRating:   strPtr("4.6/5"),
		SurfaceType:     strPtr("paved"),
		RouteType:       strPtr("out-and-back"),
	}

	card := RecommendationCard(rec, 1)

	if !strings.Contains(card, "### 1. Donauinsel Long Trail") {
		t.Errorf("card missing heading:\n%s", card)
	}
	for _, want := range []string{"Distance: 21 km", "Elevation: 15 m", "Time: 2 hr", "Rating: 4.6/5"} {
		if !strings.Contains(card, want) {
			t.Errorf("card missing %q:\n%s", want, card)
		}
	}
	// Metric block caps at four entries; surface and route fall off.
	if strings.Contains(card, "Surface: paved") || strings.Contains(card, "Route: out-and-back") {
		t.Errorf("card shows more than %d detailed metrics:\n%s", maxDetailMetrics, card)
	}
	if !strings.Contains(card, "Difficulty: easy") {
		t.Errorf("card missing difficulty extra:\n%s", card)
	}
	if !strings.Contains(card, "Setting: outdoor") {
		t.Errorf("card missing setting extra:\n%s", card)
	}
}

func TestRecommendationCard_BasicFallback(t *testing.T) {
	rec := core.ActivityRecommendation{
		ActivityName:     "Schoenbrunn Garden Walk",
		Location:         "Vienna",
		Description:      "Palace garden loop.",
		DifficultyLevel:  "easy",
		DurationEstimate: "1 hour",
		IndoorOutdoor:    "outdoor",
		SourceURL:        "https://example.com/walk",
	}

	card := RecommendationCard(rec, 2)

	if strings.Contains(card, "**Details**") {
		t.Errorf("card shows details block without metrics:\n%s", card)
	}
	if !strings.Contains(card, "1 hour") || !strings.Contains(card, "easy") {
		t.Errorf("card missing basic details line:\n%s", card)
	}
}

func TestRecommendationCard_SkipsPlaceholderBasics(t *testing.T) {
	rec := core.ActivityRecommendation{
		ActivityName:     "City Pool Session",
		Location:         "Vienna",
		Description:      "Indoor lap swimming.",
		DifficultyLevel:  "not specified",
		DurationEstimate: "varies",
		IndoorOutdoor:    "indoor",
	}

	card := RecommendationCard(rec, 1)
	if strings.Contains(card, "varies") || strings.Contains(card, "not specified") {
		t.Errorf("card shows placeholder values:\n%s", card)
	}
}

func TestEquipmentLine(t *testing.T) {
	tests := []struct {
		name      string
		equipment []string
		want      string
	}{
		{"none", nil, "None needed"},
		{"few", []string{"shoes", "water"}, "shoes, water"},
		{"capped", []string{"shoes", "water", "helmet", "gloves", "lamp"}, "shoes, water, helmet (+2 more)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := equipmentLine(tt.equipment); got != tt.want {
				t.Errorf("equipmentLine(%v) = %q, want %q", tt.equipment, got, tt.want)
			}
		})
	}
}

func TestTruncateDescription(t *testing.T) {
	short := "A short description."
	if got := truncateDescription(short); got != short {
		t.Errorf("truncateDescription(short) = %q, want unchanged", got)
	}

	long := strings.Repeat("x", 200)
	got := truncateDescription(long)
	if len([]rune(got)) != descriptionLimit+3 {
		t.Errorf("truncated length = %d runes, want %d", len([]rune(got)), descriptionLimit+3)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("truncated description missing ellipsis: %q", got)
	}
}

func TestShortenURL(t *testing.T) {
	short := "https://example.com/trail"
	if got := ShortenURL(short); got != short {
		t.Errorf("ShortenURL(short) = %q, want unchanged", got)
	}

	long := "https://www.alltrails.com/explore/trail/austria/vienna/" + strings.Repeat("prater-hauptallee-", 5) + "loop?utm_source=share"
	got := ShortenURL(long)
	if len(got) >= len(long) {
		t.Errorf("ShortenURL did not shorten: %q", got)
	}
	if !strings.Contains(got, "www.alltrails.com") {
		t.Errorf("ShortenURL dropped host: %q", got)
	}
}

func TestRenderResponse_NoRecommendations(t *testing.T) {
	resp := core.ConversationalResponse{
		ConversationMessage: "I could not find enough reliable detail. Could you tell me more?",
	}
	out := RenderResponse(resp)
	if out != resp.ConversationMessage {
		t.Errorf("RenderResponse = %q, want message only", out)
	}
}

func TestRenderResponse_OrdersCards(t *testing.T) {
	resp := core.ConversationalResponse{
		ConversationMessage: "Here are two options.",
		Recommendations: []core.ActivityRecommendation{
			{ActivityName: "First Trail", Location: "Vienna"},
			{ActivityName: "Second Trail", Location: "Vienna"},
		},
	}
	out := RenderResponse(resp)
	first := strings.Index(out, "### 1. First Trail")
	second := strings.Index(out, "### 2. Second Trail")
	if first == -1 || second == -1 || second < first {
		t.Errorf("cards missing or out of order:\n%s", out)
	}
}
