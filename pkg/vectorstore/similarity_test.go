package vectorstore

import (
	"errors"
	"math"
	"testing"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a    []float32
		b    []float32
		want float64
	}{
		{name: "identical", a: []float32{1, 2, 3}, b: []float32{1, 2, 3}, want: 1},
		{name: "opposite", a: []float32{1, 0}, b: []float32{-1, 0}, want: -1},
		{name: "orthogonal", a: []float32{1, 0}, b: []float32{0, 1}, want: 0},
		{name: "zero vector", a: []float32{0, 0}, b: []float32{1, 2}, want: 0},
		{name: "scaled copies", a: []float32{1, 1}, b: []float32{5, 5}, want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("CosineSimilarity = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRankChunksOrdersByScore(t *testing.T) {
	query := []float32{1, 0}
	vectors := [][]float32{
		{0, 1},       // orthogonal, score 0
		{1, 0},       // identical, score 1
		{0.7, 0.7},   // diagonal, score ~0.707
		{-1, 0},      // opposite, score -1
	}

	scored, err := RankChunks(query, vectors)
	if err != nil {
		t.Fatalf("RankChunks: %v", err)
	}
	wantOrder := []int{1, 2, 0, 3}
	for i, want := range wantOrder {
		if scored[i].Index != want {
			t.Errorf("rank %d = chunk %d, want %d", i, scored[i].Index, want)
		}
	}
	for i := 1; i < len(scored); i++ {
		if scored[i].Score > scored[i-1].Score {
			t.Errorf("scores not descending at rank %d: %v > %v", i, scored[i].Score, scored[i-1].Score)
		}
	}
}

func TestRankChunksBreaksTiesByIndex(t *testing.T) {
	query := []float32{1, 0}
	// Three identical vectors tie exactly; order must follow document order.
	vectors := [][]float32{
		{2, 0},
		{3, 0},
		{1, 0},
	}

	scored, err := RankChunks(query, vectors)
	if err != nil {
		t.Fatalf("RankChunks: %v", err)
	}
	for i, sc := range scored {
		if sc.Index != i {
			t.Errorf("rank %d = chunk %d, want %d", i, sc.Index, i)
		}
	}
}

func TestRankChunksDimensionMismatch(t *testing.T) {
	query := []float32{1, 0, 0}
	vectors := [][]float32{
		{1, 0, 0},
		{1, 0}, // two dimensions against a three-dimensional query
	}

	_, err := RankChunks(query, vectors)
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("RankChunks err = %v, want ErrDimensionMismatch", err)
	}
}

func TestRankChunksDeterministic(t *testing.T) {
	query := []float32{0.3, 0.5, 0.2}
	vectors := make([][]float32, 50)
	for i := range vectors {
		vectors[i] = []float32{float32(i%7) * 0.1, float32(i%5) * 0.2, float32(i%3) * 0.3}
	}

	first, err := RankChunks(query, vectors)
	if err != nil {
		t.Fatalf("RankChunks: %v", err)
	}
	second, err := RankChunks(query, vectors)
	if err != nil {
		t.Fatalf("RankChunks: %v", err)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("rank %d differs between runs: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestTopK(t *testing.T) {
	scored := []ScoredChunk{
		{Index: 2, Score: 0.9},
		{Index: 0, Score: 0.5},
		{Index: 1, Score: 0.1},
	}

	tests := []struct {
		name string
		k    int
		want int
	}{
		{name: "k within range", k: 2, want: 2},
		{name: "k exceeds available", k: 10, want: 3},
		{name: "zero", k: 0, want: 0},
		{name: "negative", k: -1, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TopK(scored, tt.k)
			if len(got) != tt.want {
				t.Errorf("len(TopK) = %d, want %d", len(got), tt.want)
			}
		})
	}
}
