package embedding

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// stubProvider answers with vectors derived from the text so tests can check
// that every result landed at the index of its input.
type stubProvider struct {
	mu          sync.Mutex
	calls       int
	rateLimited int           // reject this many leading calls with ErrRateLimited
	err         error         // when set, every call fails with it
	shortBy     int           // drop this many vectors from each response
	delay       time.Duration // per-call latency, to force overlap

	inFlight    int32
	maxInFlight int32
}

func vecFor(text string) []float32 {
	h := fnv.New32a()
	h.Write([]byte(text))
	return []float32{float32(h.Sum32() % 104729), float32(len(text))}
}

func (s *stubProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	cur := atomic.AddInt32(&s.inFlight, 1)
	defer atomic.AddInt32(&s.inFlight, -1)
	for {
		old := atomic.LoadInt32(&s.maxInFlight)
		if cur <= old || atomic.CompareAndSwapInt32(&s.maxInFlight, old, cur) {
			break
		}
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	s.mu.Lock()
	s.calls++
	call := s.calls
	s.mu.Unlock()

	if s.err != nil {
		return nil, s.err
	}
	if call <= s.rateLimited {
		return nil, fmt.Errorf("quota exhausted: %w", ErrRateLimited)
	}

	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		out = append(out, vecFor(text))
	}
	if s.shortBy > 0 && len(out) >= s.shortBy {
		out = out[:len(out)-s.shortBy]
	}
	return out, nil
}

func (s *stubProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return vecFor(text), nil
}

func (s *stubProvider) Dimensions() int   { return 2 }
func (s *stubProvider) ModelName() string { return "stub" }

func fastEmbedder(provider EmbeddingProvider, opts BatchOptions) *BatchEmbedder {
	b := NewBatchEmbedder(provider, opts, nil)
	b.retryBase = time.Millisecond
	b.retryMax = 4 * time.Millisecond
	return b
}

func chunkList(n int) []string {
	chunks := make([]string, n)
	for i := range chunks {
		chunks[i] = fmt.Sprintf("chunk number %04d", i)
	}
	return chunks
}

func TestEmbedAllKeepsChunkOrder(t *testing.T) {
	provider := &stubProvider{}
	embedder := fastEmbedder(provider, BatchOptions{BatchSize: 7, MaxConcurrent: 4, DispatchDelay: 0, MaxRetries: 1})

	chunks := chunkList(100)
	vectors, err := embedder.EmbedAll(context.Background(), chunks, nil)
	if err != nil {
		t.Fatalf("EmbedAll: %v", err)
	}
	if len(vectors) != len(chunks) {
		t.Fatalf("got %d vectors, want %d", len(vectors), len(chunks))
	}
	for i, chunk := range chunks {
		want := vecFor(chunk)
		if vectors[i][0] != want[0] || vectors[i][1] != want[1] {
			t.Fatalf("vector %d does not match its chunk", i)
		}
	}
}

func TestEmbedAllRetriesRateLimit(t *testing.T) {
	// The first two calls are rejected; the run must recover and finish.
	provider := &stubProvider{rateLimited: 2}
	embedder := fastEmbedder(provider, BatchOptions{BatchSize: 50, MaxConcurrent: 1, DispatchDelay: 0, MaxRetries: 3})

	chunks := chunkList(10)
	vectors, err := embedder.EmbedAll(context.Background(), chunks, nil)
	if err != nil {
		t.Fatalf("EmbedAll after rate limits: %v", err)
	}
	if len(vectors) != 10 {
		t.Fatalf("got %d vectors, want 10", len(vectors))
	}
	if provider.calls != 3 {
		t.Errorf("provider calls = %d, want 3 (two rejections, one success)", provider.calls)
	}
}

func TestEmbedAllGivesUpAfterMaxRetries(t *testing.T) {
	provider := &stubProvider{rateLimited: 100}
	embedder := fastEmbedder(provider, BatchOptions{BatchSize: 50, MaxConcurrent: 1, DispatchDelay: 0, MaxRetries: 2})

	_, err := embedder.EmbedAll(context.Background(), chunkList(5), nil)
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("err = %v, want ErrRateLimited", err)
	}
	if provider.calls != 3 {
		t.Errorf("provider calls = %d, want 3 (initial try plus two retries)", provider.calls)
	}
}

func TestEmbedAllFailsFastOnOtherErrors(t *testing.T) {
	wantErr := errors.New("invalid api key")
	provider := &stubProvider{err: wantErr}
	embedder := fastEmbedder(provider, BatchOptions{BatchSize: 5, MaxConcurrent: 2, DispatchDelay: 0, MaxRetries: 5})

	_, err := embedder.EmbedAll(context.Background(), chunkList(20), nil)
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
	// Non rate-limit failures must not be retried.
	if provider.calls > 4 {
		t.Errorf("provider calls = %d, want at most one per dispatched batch", provider.calls)
	}
}

func TestEmbedAllReportsCumulativeProgress(t *testing.T) {
	provider := &stubProvider{}
	embedder := fastEmbedder(provider, BatchOptions{BatchSize: 10, MaxConcurrent: 3, DispatchDelay: 0, MaxRetries: 1})

	var mu sync.Mutex
	var reports [][2]int
	chunks := chunkList(35)
	_, err := embedder.EmbedAll(context.Background(), chunks, func(processed, total int) {
		mu.Lock()
		reports = append(reports, [2]int{processed, total})
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("EmbedAll: %v", err)
	}

	if len(reports) != 4 {
		t.Fatalf("got %d progress reports, want one per batch (4)", len(reports))
	}
	max := 0
	for _, r := range reports {
		if r[1] != 35 {
			t.Errorf("total = %d, want 35", r[1])
		}
		if r[0] <= 0 || r[0] > 35 {
			t.Errorf("processed = %d, want within (0, 35]", r[0])
		}
		if r[0] > max {
			max = r[0]
		}
	}
	if max != 35 {
		t.Errorf("final cumulative count = %d, want 35", max)
	}
}

func TestEmbedAllBoundsConcurrency(t *testing.T) {
	provider := &stubProvider{delay: 10 * time.Millisecond}
	embedder := fastEmbedder(provider, BatchOptions{BatchSize: 2, MaxConcurrent: 3, DispatchDelay: 0, MaxRetries: 1})

	if _, err := embedder.EmbedAll(context.Background(), chunkList(30), nil); err != nil {
		t.Fatalf("EmbedAll: %v", err)
	}
	if provider.maxInFlight > 3 {
		t.Errorf("max in-flight batches = %d, want at most 3", provider.maxInFlight)
	}
}

func TestEmbedAllEmptyInput(t *testing.T) {
	provider := &stubProvider{}
	embedder := fastEmbedder(provider, BatchOptions{})

	vectors, err := embedder.EmbedAll(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("EmbedAll: %v", err)
	}
	if len(vectors) != 0 {
		t.Fatalf("got %d vectors for empty input", len(vectors))
	}
	if provider.calls != 0 {
		t.Errorf("provider called %d times for empty input", provider.calls)
	}
}

func TestEmbedAllRejectsShortResponse(t *testing.T) {
	provider := &stubProvider{shortBy: 1}
	embedder := fastEmbedder(provider, BatchOptions{BatchSize: 10, MaxConcurrent: 1, DispatchDelay: 0, MaxRetries: 1})

	if _, err := embedder.EmbedAll(context.Background(), chunkList(10), nil); err == nil {
		t.Fatal("EmbedAll accepted a response with missing vectors")
	}
}
