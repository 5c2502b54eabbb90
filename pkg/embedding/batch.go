package embedding

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"ai-bookchat-be/internal/pkg/logger"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultBatchSize     = 40
	DefaultMaxConcurrent = 5
	DefaultDispatchDelay = 200 * time.Millisecond
	DefaultMaxRetries    = 5

	baseBackoff = 1 * time.Second
	maxBackoff  = 30 * time.Second
)

// BatchOptions tunes the batch embedder. Zero values fall back to the
// defaults above.
type BatchOptions struct {
	BatchSize     int
	MaxConcurrent int
	DispatchDelay time.Duration
	MaxRetries    int
}

// ProgressFunc receives the cumulative number of chunks embedded so far.
type ProgressFunc func(processed, total int)

// BatchEmbedder embeds a whole book's chunks through a provider. Chunks are
// grouped into batches that run with bounded concurrency; dispatches are
// spaced out so a large book doesn't land on the provider as one burst.
// Rate-limit rejections retry per batch with capped exponential backoff,
// any other failure cancels the remaining batches. The result is
// index-aligned with the input regardless of batch completion order.
type BatchEmbedder struct {
	provider EmbeddingProvider
	opts     BatchOptions
	log      logger.ILogger

	retryBase time.Duration
	retryMax  time.Duration
}

func NewBatchEmbedder(provider EmbeddingProvider, opts BatchOptions, log logger.ILogger) *BatchEmbedder {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = DefaultMaxConcurrent
	}
	if opts.DispatchDelay < 0 {
		opts.DispatchDelay = DefaultDispatchDelay
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	return &BatchEmbedder{
		provider:  provider,
		opts:      opts,
		log:       log,
		retryBase: baseBackoff,
		retryMax:  maxBackoff,
	}
}

// EmbedAll embeds every chunk and returns vectors in chunk order. onProgress
// fires after each batch with the cumulative count; pass nil to skip it.
func (b *BatchEmbedder) EmbedAll(ctx context.Context, chunks []string, onProgress ProgressFunc) ([][]float32, error) {
	total := len(chunks)
	if total == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, total)
	var processed int32

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.opts.MaxConcurrent)

	for start := 0; start < total; start += b.opts.BatchSize {
		if gctx.Err() != nil {
			break
		}
		start := start
		end := start + b.opts.BatchSize
		if end > total {
			end = total
		}
		batch := chunks[start:end]

		g.Go(func() error {
			vectors, err := b.embedBatch(gctx, batch)
			if err != nil {
				return fmt.Errorf("chunks %d-%d: %w", start, end-1, err)
			}
			for i, vec := range vectors {
				results[start+i] = vec
			}
			done := int(atomic.AddInt32(&processed, int32(len(batch))))
			if onProgress != nil {
				onProgress(done, total)
			}
			return nil
		})

		if end < total && b.opts.DispatchDelay > 0 {
			select {
			case <-time.After(b.opts.DispatchDelay):
			case <-gctx.Done():
			}
		}
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, vec := range results {
		if vec == nil {
			return nil, fmt.Errorf("embedding: no vector produced for chunk %d", i)
		}
	}
	return results, nil
}

// embedBatch runs one batch, retrying rate-limit rejections with capped
// exponential backoff and a little jitter so parallel batches don't retry
// in lockstep.
func (b *BatchEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	backoff := b.retryBase
	for attempt := 0; ; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		vectors, err := b.provider.EmbedDocuments(ctx, texts)
		if err == nil {
			if len(vectors) != len(texts) {
				return nil, fmt.Errorf("embedding: provider returned %d vectors for %d texts", len(vectors), len(texts))
			}
			return vectors, nil
		}

		if !errors.Is(err, ErrRateLimited) || attempt == b.opts.MaxRetries {
			return nil, err
		}

		sleep := backoff + time.Duration(rand.Int63n(int64(backoff)/4+1))
		if b.log != nil {
			b.log.Warn("BatchEmbedder", "Rate limited, backing off", map[string]interface{}{
				"attempt": attempt + 1,
				"sleep":   sleep.String(),
			})
		}
		select {
		case <-time.After(sleep):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		backoff *= 2
		if backoff > b.retryMax {
			backoff = b.retryMax
		}
	}
}
