package extraction

import (
	"context"
	"errors"
	"math"
	"testing"

	"trailscout/internal/core"
)

func TestEmbeddingRanker_BlendsEmbeddingAndRelevance(t *testing.T) {
	calls := 0
	r := &EmbeddingRanker{
		model: "test-model",
		embed: func(ctx context.Context, texts []string, task string) ([][]float32, error) {
			calls++
			if task == "RETRIEVAL_QUERY" {
				return [][]float32{{1, 0}}, nil
			}
			return [][]float32{{1, 0}, {0, 1}}, nil
		},
	}

	candidates := []core.ActivityCandidate{
		{ActivityName: "Danube Run", BriefDescription: "riverside loop", RelevanceScore: 0.2},
		{ActivityName: "Museum Walk", BriefDescription: "indoor tour", RelevanceScore: 0.9},
	}

	ranked := r.Rank(context.Background(), testIntent(), candidates)

	// Danube Run: 0.7*1.0 + 0.3*0.2 = 0.76 beats Museum Walk: 0.7*0.0 + 0.3*0.9 = 0.27.
	if ranked[0].ActivityName != "Danube Run" {
		t.Errorf("ranked[0] = %q, want embedding similarity to outweigh raw relevance", ranked[0].ActivityName)
	}
	if calls != 2 {
		t.Errorf("embed calls = %d", calls)
	}
}

func TestEmbeddingRanker_DegradesOnEmbeddingError(t *testing.T) {
	calls := 0
	r := &EmbeddingRanker{
		model: "test-model",
		embed: func(ctx context.Context, texts []string, task string) ([][]float32, error) {
			calls++
			return nil, errors.New("quota exceeded")
		},
	}

	candidates := []core.ActivityCandidate{
		{ActivityName: "Low", RelevanceScore: 0.3},
		{ActivityName: "High", RelevanceScore: 0.8},
	}

	ranked := r.Rank(context.Background(), testIntent(), candidates)

	if ranked[0].ActivityName != "High" {
		t.Errorf("ranked[0] = %q, want relevance order on embed failure", ranked[0].ActivityName)
	}
	if calls != 1 {
		t.Errorf("embed calls = %d, want no doc call after query failure", calls)
	}
}

func TestEmbeddingRanker_DegradesOnDocCountMismatch(t *testing.T) {
	r := &EmbeddingRanker{
		model: "test-model",
		embed: func(ctx context.Context, texts []string, task string) ([][]float32, error) {
			if task == "RETRIEVAL_QUERY" {
				return [][]float32{{1, 0}}, nil
			}
			return [][]float32{{1, 0}}, nil // one vector for two candidates
		},
	}

	candidates := []core.ActivityCandidate{
		{ActivityName: "Low", RelevanceScore: 0.3},
		{ActivityName: "High", RelevanceScore: 0.8},
	}

	ranked := r.Rank(context.Background(), testIntent(), candidates)
	if ranked[0].ActivityName != "High" {
		t.Errorf("ranked[0] = %q, want relevance order on mismatched batch", ranked[0].ActivityName)
	}
}

func TestEmbeddingRanker_SingleCandidatePassesThrough(t *testing.T) {
	calls := 0
	r := &EmbeddingRanker{
		model: "test-model",
		embed: func(ctx context.Context, texts []string, task string) ([][]float32, error) {
			calls++
			return nil, nil
		},
	}

	candidates := []core.ActivityCandidate{{ActivityName: "Only", RelevanceScore: 0.5}}
	ranked := r.Rank(context.Background(), testIntent(), candidates)

	if len(ranked) != 1 || ranked[0].ActivityName != "Only" {
		t.Errorf("ranked = %v", ranked)
	}
	if calls != 0 {
		t.Errorf("embed called %d times for a single candidate", calls)
	}
}

func TestNewEmbeddingRanker_RequiresKey(t *testing.T) {
	if _, err := NewEmbeddingRanker(context.Background(), "", "text-embedding-004"); err == nil {
		t.Error("expected error for missing API key")
	}
}

func TestSortByRelevance(t *testing.T) {
	input := []core.ActivityCandidate{
		{ActivityName: "Mid", RelevanceScore: 0.5},
		{ActivityName: "Top", RelevanceScore: 0.9},
		{ActivityName: "Bottom", RelevanceScore: 0.1},
	}

	sorted := SortByRelevance(input)

	wantOrder := []string{"Top", "Mid", "Bottom"}
	for i, want := range wantOrder {
		if sorted[i].ActivityName != want {
			t.Errorf("sorted[%d] = %q, want %q", i, sorted[i].ActivityName, want)
		}
	}
	if input[0].ActivityName != "Mid" {
		t.Error("input slice was mutated")
	}
}

func TestQueryText(t *testing.T) {
	tests := []struct {
		name   string
		intent *core.UserIntent
		want   string
	}{
		{
			name:   "NilIntent",
			intent: nil,
			want:   "",
		},
		{
			name:   "SearchQueryPreferred",
			intent: &core.UserIntent{SearchQuery: "running routes Vienna", ActivityType: "running", Location: "Vienna"},
			want:   "running routes Vienna",
		},
		{
			name:   "AssembledFallback",
			intent: &core.UserIntent{ActivityType: "hiking", Location: "Salzburg", Preferences: []string{"scenic", "easy"}},
			want:   "hiking Salzburg scenic easy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := queryText(tt.intent); got != tt.want {
				t.Errorf("queryText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a    []float32
		b    []float32
		want float64
	}{
		{
			name: "Identical",
			a:    []float32{1, 2, 3},
			b:    []float32{1, 2, 3},
			want: 1.0,
		},
		{
			name: "Orthogonal",
			a:    []float32{1, 0},
			b:    []float32{0, 1},
			want: 0.0,
		},
		{
			name: "Opposite",
			a:    []float32{1, 0},
			b:    []float32{-1, 0},
			want: -1.0,
		},
		{
			name: "ZeroVector",
			a:    []float32{0, 0},
			b:    []float32{1, 2},
			want: 0.0,
		},
		{
			name: "MismatchedLength",
			a:    []float32{1, 2},
			b:    []float32{1, 2, 3},
			want: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cosineSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("cosineSimilarity() = %f, want %f", got, tt.want)
			}
		})
	}
}
