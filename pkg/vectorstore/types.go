package vectorstore

import (
	"errors"
	"time"
)

// FormatVersion is recorded in every metadata file so a future layout change
// can migrate old artifacts instead of misreading them.
const FormatVersion = 1

var (
	ErrNotFound          = errors.New("vectorstore: document not found")
	ErrDimensionMismatch = errors.New("vectorstore: vector dimension mismatch")
	ErrCorrupted         = errors.New("vectorstore: artifacts inconsistent")
)

// Document is the fully materialized embedding state of one book: the ordered
// chunk texts and one vector per chunk at the same index.
type Document struct {
	Chunks     []string
	Vectors    [][]float32
	WordCount  int
	TokenCount int
}

// Meta is the small uncompressed record written beside the compressed
// artifacts. It is the commit marker: readers treat a book as present only
// when the metadata and both artifacts exist.
type Meta struct {
	FormatVersion int       `json:"format_version"`
	ChunkCount    int       `json:"chunk_count"`
	WordCount     int       `json:"word_count"`
	TokenCount    int       `json:"token_count"`
	Model         string    `json:"model"`
	Dimensions    int       `json:"dimensions"`
	CreatedAt     time.Time `json:"created_at"`
}
