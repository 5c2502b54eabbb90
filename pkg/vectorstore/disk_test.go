package vectorstore

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func testDoc() *Document {
	return &Document{
		Chunks: []string{"First chunk of the book.", "Second chunk of the book."},
		Vectors: [][]float32{
			{0.1, 0.2, 0.3},
			{0.4, 0.5, 0.6},
		},
		WordCount:  10,
		TokenCount: 7,
	}
}

func TestDiskStoreSaveLoadRoundtrip(t *testing.T) {
	store, err := NewDiskStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewDiskStore: %v", err)
	}

	doc := testDoc()
	if err := store.Save(42, doc, "text-embedding-3-small"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, meta, err := store.Load(42)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded.Chunks) != len(doc.Chunks) {
		t.Fatalf("chunk count = %d, want %d", len(loaded.Chunks), len(doc.Chunks))
	}
	for i, chunk := range loaded.Chunks {
		if chunk != doc.Chunks[i] {
			t.Errorf("chunk %d = %q, want %q", i, chunk, doc.Chunks[i])
		}
	}
	if len(loaded.Vectors) != len(doc.Vectors) {
		t.Fatalf("vector count = %d, want %d", len(loaded.Vectors), len(doc.Vectors))
	}
	for i, vec := range loaded.Vectors {
		for j, v := range vec {
			if v != doc.Vectors[i][j] {
				t.Errorf("vector[%d][%d] = %v, want %v", i, j, v, doc.Vectors[i][j])
			}
		}
	}
	if meta.ChunkCount != 2 {
		t.Errorf("meta.ChunkCount = %d, want 2", meta.ChunkCount)
	}
	if meta.Model != "text-embedding-3-small" {
		t.Errorf("meta.Model = %q, want text-embedding-3-small", meta.Model)
	}
	if meta.Dimensions != 3 {
		t.Errorf("meta.Dimensions = %d, want 3", meta.Dimensions)
	}
	if meta.WordCount != 10 || meta.TokenCount != 7 {
		t.Errorf("meta counts = (%d, %d), want (10, 7)", meta.WordCount, meta.TokenCount)
	}
}

func TestDiskStoreLoadMissing(t *testing.T) {
	store, err := NewDiskStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewDiskStore: %v", err)
	}

	_, _, err = store.Load(99)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load missing book err = %v, want ErrNotFound", err)
	}
}

func TestDiskStoreExistsRequiresAllArtifacts(t *testing.T) {
	store, err := NewDiskStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewDiskStore: %v", err)
	}

	if store.Exists(7) {
		t.Fatal("Exists = true before Save")
	}

	if err := store.Save(7, testDoc(), "test-model"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !store.Exists(7) {
		t.Fatal("Exists = false after Save")
	}

	// A book with a missing artifact is not processed.
	if err := os.Remove(filepath.Join(store.Root(), "book_7.vectors.json.gz")); err != nil {
		t.Fatalf("remove vectors artifact: %v", err)
	}
	if store.Exists(7) {
		t.Fatal("Exists = true with vectors artifact missing")
	}
}

func TestDiskStoreSaveRejectsMismatchedCounts(t *testing.T) {
	store, err := NewDiskStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewDiskStore: %v", err)
	}

	doc := testDoc()
	doc.Vectors = doc.Vectors[:1]
	if err := store.Save(1, doc, "test-model"); err == nil {
		t.Fatal("Save accepted mismatched chunk/vector counts")
	}

	empty := &Document{}
	if err := store.Save(2, empty, "test-model"); err == nil {
		t.Fatal("Save accepted an empty document")
	}
}

func TestDiskStoreClear(t *testing.T) {
	store, err := NewDiskStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewDiskStore: %v", err)
	}

	if err := store.Save(5, testDoc(), "test-model"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Clear(5); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if store.Exists(5) {
		t.Fatal("Exists = true after Clear")
	}

	// Clearing again, or clearing a book that was never saved, is a no-op.
	if err := store.Clear(5); err != nil {
		t.Fatalf("Clear idempotent: %v", err)
	}
	if err := store.Clear(12345); err != nil {
		t.Fatalf("Clear unknown book: %v", err)
	}
}

func TestDiskStoreClearRemovesPartialState(t *testing.T) {
	store, err := NewDiskStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewDiskStore: %v", err)
	}

	if err := store.Save(8, testDoc(), "test-model"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	// Simulate a previously interrupted clear that lost the meta file.
	if err := os.Remove(filepath.Join(store.Root(), "book_8.meta.json")); err != nil {
		t.Fatalf("remove meta: %v", err)
	}

	if err := store.Clear(8); err != nil {
		t.Fatalf("Clear with missing meta: %v", err)
	}
	entries, err := os.ReadDir(store.Root())
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, entry := range entries {
		t.Errorf("leftover artifact after Clear: %s", entry.Name())
	}
}

func TestDiskStoreStats(t *testing.T) {
	store, err := NewDiskStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewDiskStore: %v", err)
	}

	if err := store.Save(3, testDoc(), "test-model"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Save(1, testDoc(), "test-model"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	// Incomplete book: meta only, must not show up in stats.
	if err := store.Save(9, testDoc(), "test-model"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := os.Remove(filepath.Join(store.Root(), "book_9.chunks.json.gz")); err != nil {
		t.Fatalf("remove chunks: %v", err)
	}

	stats, err := store.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Documents != 2 {
		t.Fatalf("Documents = %d, want 2", stats.Documents)
	}
	if len(stats.Books) != 2 {
		t.Fatalf("len(Books) = %d, want 2", len(stats.Books))
	}
	if stats.Books[0].BookID != 1 || stats.Books[1].BookID != 3 {
		t.Errorf("book order = [%d %d], want [1 3]", stats.Books[0].BookID, stats.Books[1].BookID)
	}
	if stats.TotalBytes <= 0 {
		t.Errorf("TotalBytes = %d, want > 0", stats.TotalBytes)
	}
	for _, book := range stats.Books {
		if book.ChunkCount != 2 {
			t.Errorf("book %d ChunkCount = %d, want 2", book.BookID, book.ChunkCount)
		}
		if book.Bytes <= 0 {
			t.Errorf("book %d Bytes = %d, want > 0", book.BookID, book.Bytes)
		}
	}
}
