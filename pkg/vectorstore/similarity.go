package vectorstore

import (
	"fmt"
	"math"
	"sort"
)

// ScoredChunk pairs a chunk's position in the document with its similarity
// to the query vector.
type ScoredChunk struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// CosineSimilarity returns dot(a,b) / (|a|*|b|). Accumulation runs in
// float64 so long vectors don't lose precision. A zero-length vector has no
// direction, so the similarity is defined as 0.
func CosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// RankChunks scores every document vector against the query and returns all
// chunks ordered by descending similarity, ties broken by ascending index so
// equal scores keep document order. A vector whose length disagrees with the
// query is a corrupt or mixed-model store and fails the whole call.
func RankChunks(query []float32, vectors [][]float32) ([]ScoredChunk, error) {
	scored := make([]ScoredChunk, 0, len(vectors))
	for i, vec := range vectors {
		if len(vec) != len(query) {
			return nil, fmt.Errorf("chunk %d has %d dimensions, query has %d: %w", i, len(vec), len(query), ErrDimensionMismatch)
		}
		scored = append(scored, ScoredChunk{Index: i, Score: CosineSimilarity(query, vec)})
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Index < scored[j].Index
	})
	return scored, nil
}

// TopK clamps k to the available chunks and returns the leading ranks.
func TopK(scored []ScoredChunk, k int) []ScoredChunk {
	if k <= 0 {
		return []ScoredChunk{}
	}
	if k > len(scored) {
		k = len(scored)
	}
	return scored[:k]
}
