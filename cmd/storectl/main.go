package main

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"ai-bookchat-be/internal/config"
	"ai-bookchat-be/pkg/vectorstore"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
)

// storectl inspects and maintains the on-disk embedding storage without
// going through the API.
//
//	storectl stats
//	storectl inspect <book_id>
//	storectl clear <book_id>
func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Info: No .env file found, using system env")
	}
	cfg := config.Load()

	store, err := vectorstore.NewDiskStore(cfg.Pipeline.EmbeddingsDir, nil)
	if err != nil {
		color.Red("Failed to open embeddings store: %v", err)
		os.Exit(1)
	}

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "stats":
		runStats(store)
	case "inspect":
		runInspect(store, requireBookID())
	case "clear":
		runClear(store, requireBookID())
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("Usage: storectl <stats|inspect|clear> [book_id]")
}

func requireBookID() int64 {
	if len(os.Args) < 3 {
		usage()
		os.Exit(1)
	}
	id, err := strconv.ParseInt(os.Args[2], 10, 64)
	if err != nil || id <= 0 {
		color.Red("Invalid book id: %s", os.Args[2])
		os.Exit(1)
	}
	return id
}

func runStats(store *vectorstore.DiskStore) {
	stats, err := store.Stats()
	if err != nil {
		color.Red("Stats failed: %v", err)
		os.Exit(1)
	}

	color.Cyan("Storage root: %s", store.Root())
	color.Cyan("Documents: %d, total %s", stats.Documents, humanBytes(stats.TotalBytes))
	for _, b := range stats.Books {
		fmt.Printf("  book %-6d %4d chunks  %-10s model=%s  created=%s\n",
			b.BookID, b.ChunkCount, humanBytes(b.Bytes), b.Model, b.CreatedAt.Format("2006-01-02 15:04"))
	}
}

func runInspect(store *vectorstore.DiskStore, bookID int64) {
	doc, meta, err := store.Load(bookID)
	if err != nil {
		color.Red("Load failed: %v", err)
		os.Exit(1)
	}

	color.Green("Book %d", bookID)
	fmt.Printf("  model:       %s\n", meta.Model)
	fmt.Printf("  dimensions:  %d\n", meta.Dimensions)
	fmt.Printf("  chunks:      %d\n", meta.ChunkCount)
	fmt.Printf("  words:       %d\n", meta.WordCount)
	fmt.Printf("  tokens:      %d\n", meta.TokenCount)
	fmt.Printf("  created:     %s\n", meta.CreatedAt.Format("2006-01-02 15:04:05"))

	if len(doc.Chunks) > 0 {
		preview := doc.Chunks[0]
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		fmt.Printf("  first chunk: %q\n", preview)
	}
}

func runClear(store *vectorstore.DiskStore, bookID int64) {
	if !store.Exists(bookID) {
		color.Yellow("Book %d has no stored embeddings", bookID)
		return
	}
	if err := store.Clear(bookID); err != nil {
		color.Red("Clear failed: %v", err)
		os.Exit(1)
	}
	color.Green("Cleared embeddings for book %d", bookID)
}

func humanBytes(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
