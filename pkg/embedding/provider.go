package embedding

import (
	"context"
	"errors"
)

// Sentinel errors shared by all providers.
var (
	// ErrRateLimited marks a transient quota rejection. Batch embedding
	// retries these with backoff; everything else fails the run.
	ErrRateLimited = errors.New("embedding: rate limited")

	// ErrMissingCredential means neither the caller nor the process has an
	// API key for the requested provider.
	ErrMissingCredential = errors.New("embedding: missing credential")
)

// Task hints passed to providers that distinguish indexing from querying.
// Gemini uses them; the other providers ignore them.
const (
	TaskDocument = "RETRIEVAL_DOCUMENT"
	TaskQuery    = "RETRIEVAL_QUERY"
)

// EmbeddingProvider generates vectors for text. EmbedDocuments is the batch
// path used while indexing a book: the result is index-aligned with the
// input, one vector per text. EmbedQuery embeds a single search query.
type EmbeddingProvider interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
	ModelName() string
}
