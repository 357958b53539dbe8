// Package ingest turns raw document text into persisted pages and
// deduplicated, embedded chunks.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"

	"ai-docqa-be/pkg/chunkstore"
	"ai-docqa-be/pkg/pagestore"
	"ai-docqa-be/pkg/splitter"
)

// pageMarker matches the page boundaries the extraction service emits:
// `<|startofpage|>` or `<|startofpage:7|>` with an explicit page number.
var pageMarker = regexp.MustCompile(`<\|startofpage(?::(\d+))?\|>`)

// pseudoPageSize bounds one pseudo-page of an unpaged document. Large enough
// that a pseudo-page reads like a real page when handed to the completion
// backend as context.
const pseudoPageSize = 2000

// Result reports what one ingestion call actually did. ChunksAdded comes
// from diffing store counts, so re-ingesting an unchanged document reports
// zero even though chunks were offered to the store again.
type Result struct {
	PagesProcessed int `json:"pages_processed"`
	PagesSkipped   int `json:"pages_skipped"`
	ChunksAdded    int `json:"chunks_added"`
}

type page struct {
	key  string
	text string
}

// Pipeline composes the segmenter, chunk store, page store and index-page
// filter into the document ingestion flow.
type Pipeline struct {
	chunks    *chunkstore.Store
	pages     *pagestore.Store
	splitter  *splitter.RecursiveSplitter
	sectioner *splitter.RecursiveSplitter
	filter    pagestore.FilterConfig
	logger    *log.Logger
}

// Option tweaks pipeline construction.
type Option func(*options)

type options struct {
	chunkSize    int
	chunkOverlap int
}

func WithChunkSize(size int) Option {
	return func(o *options) { o.chunkSize = size }
}

func WithChunkOverlap(overlap int) Option {
	return func(o *options) { o.chunkOverlap = overlap }
}

func NewPipeline(
	chunks *chunkstore.Store,
	pages *pagestore.Store,
	filter pagestore.FilterConfig,
	logger *log.Logger,
	opts ...Option,
) (*Pipeline, error) {
	o := &options{
		chunkSize:    splitter.DefaultChunkSize,
		chunkOverlap: splitter.DefaultChunkOverlap,
	}
	for _, opt := range opts {
		opt(o)
	}
	if logger == nil {
		logger = log.Default()
	}

	chunkSplitter, err := splitter.NewRecursiveSplitter(
		splitter.WithChunkSize(o.chunkSize),
		splitter.WithChunkOverlap(o.chunkOverlap),
	)
	if err != nil {
		return nil, fmt.Errorf("chunk splitter: %w", err)
	}

	// Pseudo-pages only need the coarse separators; per-rune fallback still
	// guarantees termination on marker-free, newline-free input.
	sectioner, err := splitter.NewRecursiveSplitter(
		splitter.WithChunkSize(pseudoPageSize),
	)
	if err != nil {
		return nil, fmt.Errorf("section splitter: %w", err)
	}

	return &Pipeline{
		chunks:    chunks,
		pages:     pages,
		splitter:  chunkSplitter,
		sectioner: sectioner,
		filter:    filter,
		logger:    logger,
	}, nil
}

// Ingest splits rawText into pages, persists each page, and embeds every
// page the index-page filter lets through. Pages are processed strictly in
// source order. On error the returned Result still carries the progress made
// before the failure; pages committed earlier stay committed.
func (p *Pipeline) Ingest(ctx context.Context, documentID, rawText string) (*Result, error) {
	res := &Result{}
	if strings.TrimSpace(rawText) == "" {
		return res, nil
	}

	for _, pg := range p.splitPages(rawText) {
		if strings.TrimSpace(pg.text) == "" {
			continue
		}

		if err := p.pages.Save(documentID, pg.key, pg.text); err != nil {
			return res, err
		}

		if pagestore.IsIndexPage(pg.text, p.filter) {
			// Persisted for direct lookup but excluded from the searchable
			// corpus: index pages pollute similarity search.
			p.logger.Printf("[INGEST] document=%s page=%s looks like an index page, skipping embedding", documentID, pg.key)
			res.PagesSkipped++
			continue
		}

		added, err := p.embedPage(ctx, documentID, pg)
		res.ChunksAdded += added
		if err != nil {
			return res, err
		}
		res.PagesProcessed++
	}

	p.logger.Printf("[INGEST] document=%s pages=%d skipped=%d new_chunks=%d",
		documentID, res.PagesProcessed, res.PagesSkipped, res.ChunksAdded)
	return res, nil
}

// embedPage segments one page, drops chunks already stored for this
// document, and inserts the remainder. The reported delta comes from the
// store's count, which is authoritative because the index silently ignores
// duplicate ids.
func (p *Pipeline) embedPage(ctx context.Context, documentID string, pg page) (int, error) {
	texts := p.splitter.Split(pg.text)
	if len(texts) == 0 {
		return 0, nil
	}

	metadata := map[string]string{
		chunkstore.MetaDocumentID: documentID,
		chunkstore.MetaPageKey:    pg.key,
	}
	candidates := chunkstore.BuildChunks(texts, metadata)

	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID
	}
	existing, err := p.chunks.ExistingIDs(ctx, documentID, ids)
	if err != nil {
		return 0, err
	}

	fresh := candidates[:0]
	for _, c := range candidates {
		if existing[c.ID] {
			continue
		}
		fresh = append(fresh, c)
	}
	if len(fresh) == 0 {
		p.logger.Printf("[INGEST] document=%s page=%s all %d chunks already stored", documentID, pg.key, len(candidates))
		return 0, nil
	}

	before, err := p.chunks.Count(ctx)
	if err != nil {
		return 0, err
	}
	if err := p.chunks.AddChunks(ctx, fresh); err != nil {
		// Batches inserted before the failure are committed; report what
		// actually landed.
		after, countErr := p.chunks.Count(ctx)
		if countErr != nil {
			return 0, err
		}
		return int(after - before), err
	}
	after, err := p.chunks.Count(ctx)
	if err != nil {
		return 0, err
	}
	return int(after - before), nil
}

// splitPages cuts raw text on the extraction service's page markers. With no
// markers present the document is unpaged: the sectioner cuts it into
// pseudo-pages, each keyed with a short hash of its own text. The suffix
// keeps keys from colliding when the document changes between ingestion
// attempts while staying stable for identical content, so re-ingestion
// still dedups.
func (p *Pipeline) splitPages(rawText string) []page {
	matches := pageMarker.FindAllStringSubmatchIndex(rawText, -1)
	if len(matches) == 0 {
		sections := p.sectioner.Split(rawText)
		pages := make([]page, len(sections))
		for i, text := range sections {
			sum := sha256.Sum256([]byte(text))
			pages[i] = page{
				key:  fmt.Sprintf("sec-%d-%s", i, hex.EncodeToString(sum[:4])),
				text: text,
			}
		}
		return pages
	}

	// Text before the first marker is extraction preamble, not a page.
	var pages []page
	for i, m := range matches {
		start := m[1]
		end := len(rawText)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}

		// Explicit page number when the marker carries one; malformed or
		// absent numbers fall back to the sequential index.
		key := strconv.Itoa(i)
		if m[2] >= 0 {
			if n, err := strconv.Atoi(rawText[m[2]:m[3]]); err == nil {
				key = strconv.Itoa(n)
			}
		}
		pages = append(pages, page{key: key, text: rawText[start:end]})
	}
	return pages
}
