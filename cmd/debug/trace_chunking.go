package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"ai-docqa-be/pkg/chunkstore"
	"ai-docqa-be/pkg/pagestore"
	"ai-docqa-be/pkg/splitter"

	"github.com/fatih/color"
)

// Walks a text file through the same splitter the ingestion pipeline uses
// and prints every chunk with its content-derived ID, so chunking behavior
// can be inspected without touching the database.
//
// Usage: go run ./cmd/debug <file.txt> [chunkSize] [overlap]
func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: trace_chunking <file.txt> [chunkSize] [overlap]")
	}

	chunkSize := 200
	overlap := 0
	if len(os.Args) > 2 {
		fmt.Sscanf(os.Args[2], "%d", &chunkSize)
	}
	if len(os.Args) > 3 {
		fmt.Sscanf(os.Args[3], "%d", &overlap)
	}

	raw, err := os.ReadFile(os.Args[1])
	if err != nil {
		log.Fatalf("Failed to read input file: %v", err)
	}
	text := string(raw)

	header := color.New(color.FgCyan, color.Bold)
	warn := color.New(color.FgYellow)
	ok := color.New(color.FgGreen)

	header.Println("--- INPUT ---")
	fmt.Printf("File: %s\n", os.Args[1])
	fmt.Printf("Total Length: %d chars\n", len(text))
	fmt.Printf("Chunk Size: %d, Overlap: %d\n", chunkSize, overlap)

	if pagestore.IsIndexPage(text, pagestore.DefaultFilterConfig()) {
		warn.Println("NOTE: this text would be flagged as an index page and skipped by ingestion")
	}

	split, err := splitter.NewRecursiveSplitter(
		splitter.WithChunkSize(chunkSize),
		splitter.WithChunkOverlap(overlap),
	)
	if err != nil {
		log.Fatalf("Failed to build splitter: %v", err)
	}

	chunks := split.Split(text)

	header.Println("--- CHUNKS ---")
	fmt.Printf("Produced %d chunks.\n\n", len(chunks))

	seen := map[string]int{}
	for i, c := range chunks {
		id := chunkstore.ChunkID(c, nil)
		fmt.Printf("[Chunk %d] Length: %d chars, ID: %s\n", i, len(c), id[:16])
		fmt.Printf("Preview: %s\n\n", preview(c, 80))
		seen[id]++
	}

	// Identical text collapses to the same ID at insert time
	header.Println("--- DEDUP ---")
	dupes := 0
	for _, n := range seen {
		if n > 1 {
			dupes += n - 1
		}
	}
	if dupes > 0 {
		warn.Printf("%d chunks share an ID with an earlier chunk and would be stored once.\n", dupes)
	} else {
		ok.Println("All chunk IDs are unique.")
	}
}

func preview(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
