package vectorstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"ai-bookchat-be/internal/pkg/logger"

	"github.com/klauspost/compress/gzip"
)

// DiskStore keeps one book's chunks and vectors as gzipped JSON artifacts
// plus an uncompressed metadata file under a single storage root:
//
//	book_{id}.meta.json
//	book_{id}.chunks.json.gz
//	book_{id}.vectors.json.gz
//
// Writes go through temp-file + rename, metadata last, so a concurrent
// reader never observes a metadata record pointing at missing vectors.
// The processing queue guarantees a single writer per book; reads are
// unrestricted.
type DiskStore struct {
	root string
	log  logger.ILogger
}

func NewDiskStore(root string, log logger.ILogger) (*DiskStore, error) {
	if root == "" {
		return nil, errors.New("vectorstore: storage root is not configured")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("vectorstore: create storage root: %w", err)
	}
	return &DiskStore{root: root, log: log}, nil
}

// Root returns the storage directory, for operational tooling.
func (s *DiskStore) Root() string {
	return s.root
}

func (s *DiskStore) metaPath(bookID int64) string {
	return filepath.Join(s.root, fmt.Sprintf("book_%d.meta.json", bookID))
}

func (s *DiskStore) chunksPath(bookID int64) string {
	return filepath.Join(s.root, fmt.Sprintf("book_%d.chunks.json.gz", bookID))
}

func (s *DiskStore) vectorsPath(bookID int64) string {
	return filepath.Join(s.root, fmt.Sprintf("book_%d.vectors.json.gz", bookID))
}

// Exists reports whether the complete artifact set is on disk.
func (s *DiskStore) Exists(bookID int64) bool {
	for _, p := range []string{s.metaPath(bookID), s.chunksPath(bookID), s.vectorsPath(bookID)} {
		if _, err := os.Stat(p); err != nil {
			return false
		}
	}
	return true
}

// Save writes all three artifacts for a book. The compressed artifacts land
// first and the metadata rename is the commit point.
func (s *DiskStore) Save(bookID int64, doc *Document, model string) error {
	if len(doc.Chunks) == 0 {
		return fmt.Errorf("vectorstore: refusing to save book %d with no chunks", bookID)
	}
	if len(doc.Chunks) != len(doc.Vectors) {
		return fmt.Errorf("vectorstore: book %d has %d chunks but %d vectors: %w",
			bookID, len(doc.Chunks), len(doc.Vectors), ErrCorrupted)
	}

	if err := s.writeGzipJSON(s.chunksPath(bookID), doc.Chunks); err != nil {
		return err
	}
	if err := s.writeGzipJSON(s.vectorsPath(bookID), doc.Vectors); err != nil {
		return err
	}

	meta := Meta{
		FormatVersion: FormatVersion,
		ChunkCount:    len(doc.Chunks),
		WordCount:     doc.WordCount,
		TokenCount:    doc.TokenCount,
		Model:         model,
		Dimensions:    len(doc.Vectors[0]),
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.writeJSON(s.metaPath(bookID), meta); err != nil {
		return err
	}

	if s.log != nil {
		s.log.Info("VectorStore", "Saved embedding artifacts", map[string]interface{}{
			"book_id":    bookID,
			"chunks":     meta.ChunkCount,
			"dimensions": meta.Dimensions,
			"model":      model,
		})
	}
	return nil
}

// Load reads the complete artifact set. ErrNotFound means the book was never
// embedded (or was cleared); a count disagreement between the metadata and
// the artifacts is corruption and never silently repaired.
func (s *DiskStore) Load(bookID int64) (*Document, *Meta, error) {
	var meta Meta
	if err := s.readJSON(s.metaPath(bookID), &meta); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}

	var chunks []string
	if err := s.readGzipJSON(s.chunksPath(bookID), &chunks); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}

	var vectors [][]float32
	if err := s.readGzipJSON(s.vectorsPath(bookID), &vectors); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}

	if len(chunks) != meta.ChunkCount || len(vectors) != meta.ChunkCount {
		return nil, nil, fmt.Errorf("vectorstore: book %d metadata says %d chunks, found %d chunks and %d vectors: %w",
			bookID, meta.ChunkCount, len(chunks), len(vectors), ErrCorrupted)
	}

	return &Document{
		Chunks:     chunks,
		Vectors:    vectors,
		WordCount:  meta.WordCount,
		TokenCount: meta.TokenCount,
	}, &meta, nil
}

// Clear deletes every artifact for a book. The metadata goes first so
// concurrent readers stop seeing a complete set immediately. Missing files
// are fine; any other failure propagates.
func (s *DiskStore) Clear(bookID int64) error {
	for _, p := range []string{s.metaPath(bookID), s.chunksPath(bookID), s.vectorsPath(bookID)} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("vectorstore: remove %s: %w", filepath.Base(p), err)
		}
	}
	if s.log != nil {
		s.log.Info("VectorStore", "Cleared embedding artifacts", map[string]interface{}{"book_id": bookID})
	}
	return nil
}

// BookStats describes one stored book for the ops surface.
type BookStats struct {
	BookID     int64     `json:"book_id"`
	Bytes      int64     `json:"bytes"`
	ChunkCount int       `json:"chunk_count"`
	Model      string    `json:"model"`
	CreatedAt  time.Time `json:"created_at"`
}

// StoreStats summarizes the storage root.
type StoreStats struct {
	Documents  int         `json:"documents"`
	TotalBytes int64       `json:"total_bytes"`
	Books      []BookStats `json:"books"`
}

// Stats walks the storage root and reports every complete artifact set.
func (s *DiskStore) Stats() (*StoreStats, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: read storage root: %w", err)
	}

	stats := &StoreStats{Books: []BookStats{}}
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, "book_") || !strings.HasSuffix(name, ".meta.json") {
			continue
		}
		idStr := strings.TrimSuffix(strings.TrimPrefix(name, "book_"), ".meta.json")
		bookID, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			continue
		}
		if !s.Exists(bookID) {
			continue
		}

		var meta Meta
		if err := s.readJSON(s.metaPath(bookID), &meta); err != nil {
			continue
		}

		var size int64
		for _, p := range []string{s.metaPath(bookID), s.chunksPath(bookID), s.vectorsPath(bookID)} {
			if info, err := os.Stat(p); err == nil {
				size += info.Size()
			}
		}

		stats.Documents++
		stats.TotalBytes += size
		stats.Books = append(stats.Books, BookStats{
			BookID:     bookID,
			Bytes:      size,
			ChunkCount: meta.ChunkCount,
			Model:      meta.Model,
			CreatedAt:  meta.CreatedAt,
		})
	}

	sort.Slice(stats.Books, func(i, j int) bool { return stats.Books[i].BookID < stats.Books[j].BookID })
	return stats, nil
}

func (s *DiskStore) writeJSON(path string, v interface{}) error {
	tmp := path + ".tmp"
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("vectorstore: marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("vectorstore: write %s: %w", filepath.Base(tmp), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("vectorstore: commit %s: %w", filepath.Base(path), err)
	}
	return nil
}

func (s *DiskStore) writeGzipJSON(path string, v interface{}) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("vectorstore: create %s: %w", filepath.Base(tmp), err)
	}

	gz := gzip.NewWriter(f)
	if err := json.NewEncoder(gz).Encode(v); err != nil {
		gz.Close()
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("vectorstore: encode %s: %w", filepath.Base(path), err)
	}
	if err := gz.Close(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("vectorstore: flush %s: %w", filepath.Base(path), err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("vectorstore: close %s: %w", filepath.Base(path), err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("vectorstore: commit %s: %w", filepath.Base(path), err)
	}
	return nil
}

func (s *DiskStore) readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("vectorstore: read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("vectorstore: decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

func (s *DiskStore) readGzipJSON(path string, v interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("vectorstore: open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("vectorstore: gunzip %s: %w", filepath.Base(path), err)
	}
	defer gz.Close()

	if err := json.NewDecoder(gz).Decode(v); err != nil {
		return fmt.Errorf("vectorstore: decode %s: %w", filepath.Base(path), err)
	}
	return nil
}
