package extraction

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"google.golang.org/genai"

	"trailscout/internal/core"
	"trailscout/internal/logging"
)

// Ranker orders list-page candidates by fit to the user intent.
type Ranker interface {
	Rank(ctx context.Context, intent *core.UserIntent, candidates []core.ActivityCandidate) []core.ActivityCandidate
}

// Blend weights for the embedding ranker. Embedding similarity
// dominates; the extraction model's own relevance score breaks ties
// and catches what the embedding space misses.
const (
	embeddingWeight = 0.7
	relevanceWeight = 0.3
)

type embedFunc func(ctx context.Context, texts []string, task string) ([][]float32, error)

// EmbeddingRanker ranks candidates by blending embedding similarity
// against the intent with the LLM-assigned relevance. Any embedding
// failure degrades to relevance order; ranking never fails a turn.
type EmbeddingRanker struct {
	model string
	embed embedFunc
}

// NewEmbeddingRanker creates a ranker backed by the Gemini embedding
// API.
func NewEmbeddingRanker(ctx context.Context, apiKey, model string) (*EmbeddingRanker, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("embedding API key is required")
	}
	if model == "" {
		model = "text-embedding-004"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding client: %w", err)
	}

	r := &EmbeddingRanker{model: model}
	r.embed = func(ctx context.Context, texts []string, task string) ([][]float32, error) {
		contents := make([]*genai.Content, len(texts))
		for i, text := range texts {
			contents[i] = genai.NewContentFromText(text, genai.RoleUser)
		}

		result, err := client.Models.EmbedContent(ctx,
			r.model,
			contents,
			&genai.EmbedContentConfig{
				TaskType: task,
			},
		)
		if err != nil {
			return nil, err
		}
		if len(result.Embeddings) != len(texts) {
			return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(result.Embeddings))
		}

		vectors := make([][]float32, len(result.Embeddings))
		for i, emb := range result.Embeddings {
			vectors[i] = emb.Values
		}
		return vectors, nil
	}
	return r, nil
}

// Rank returns the candidates ordered best first.
func (r *EmbeddingRanker) Rank(ctx context.Context, intent *core.UserIntent, candidates []core.ActivityCandidate) []core.ActivityCandidate {
	if len(candidates) < 2 {
		return candidates
	}

	query := queryText(intent)
	queryVecs, err := r.embed(ctx, []string{query}, "RETRIEVAL_QUERY")
	if err != nil || len(queryVecs) == 0 {
		logging.Extract("query embedding failed, ranking by relevance alone: %v", err)
		return SortByRelevance(candidates)
	}

	docs := make([]string, len(candidates))
	for i, c := range candidates {
		docs[i] = c.ActivityName + ": " + c.BriefDescription
	}
	docVecs, err := r.embed(ctx, docs, "RETRIEVAL_DOCUMENT")
	if err != nil || len(docVecs) != len(candidates) {
		logging.Extract("candidate embeddings failed, ranking by relevance alone: %v", err)
		return SortByRelevance(candidates)
	}

	scores := make([]float64, len(candidates))
	for i, c := range candidates {
		similarity := cosineSimilarity(queryVecs[0], docVecs[i])
		scores[i] = embeddingWeight*similarity + relevanceWeight*c.RelevanceScore
		logging.ExtractDebug("candidate %q: similarity=%.3f relevance=%.2f blended=%.3f",
			c.ActivityName, similarity, c.RelevanceScore, scores[i])
	}

	ranked := make([]core.ActivityCandidate, len(candidates))
	order := make([]int, len(candidates))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return scores[order[i]] > scores[order[j]]
	})
	for i, idx := range order {
		ranked[i] = candidates[idx]
	}
	return ranked
}

// SortByRelevance orders candidates by their LLM-assigned relevance,
// best first, without mutating the input.
func SortByRelevance(candidates []core.ActivityCandidate) []core.ActivityCandidate {
	out := make([]core.ActivityCandidate, len(candidates))
	copy(out, candidates)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RelevanceScore > out[j].RelevanceScore
	})
	return out
}

// queryText renders the intent as embedding input.
func queryText(intent *core.UserIntent) string {
	if intent == nil {
		return ""
	}
	if intent.SearchQuery != "" {
		return intent.SearchQuery
	}
	parts := make([]string, 0, 2+len(intent.Preferences))
	if intent.ActivityType != "" {
		parts = append(parts, intent.ActivityType)
	}
	if intent.Location != "" {
		parts = append(parts, intent.Location)
	}
	parts = append(parts, intent.Preferences...)
	return strings.Join(parts, " ")
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, aMagnitude, bMagnitude float64
	for i := 0; i < len(a); i++ {
		dotProduct += float64(a[i] * b[i])
		aMagnitude += float64(a[i] * a[i])
		bMagnitude += float64(b[i] * b[i])
	}

	if aMagnitude == 0 || bMagnitude == 0 {
		return 0
	}
	return dotProduct / (math.Sqrt(aMagnitude) * math.Sqrt(bMagnitude))
}
