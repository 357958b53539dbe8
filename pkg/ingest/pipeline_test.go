package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"io"
	"log"
	"math"
	"strings"
	"testing"

	"ai-docqa-be/pkg/chunkstore"
	"ai-docqa-be/pkg/embedding"
	"ai-docqa-be/pkg/pagestore"
	"ai-docqa-be/pkg/vectorindex/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type hashProvider struct{}

func (hashProvider) Generate(text string, taskType string) (*embedding.EmbeddingResponse, error) {
	sum := sha256.Sum256([]byte(text))
	values := make([]float32, 8)
	var norm float64
	for i := range values {
		bits := binary.BigEndian.Uint32(sum[i*4 : i*4+4])
		values[i] = float32(bits%1000) + 1
		norm += float64(values[i]) * float64(values[i])
	}
	norm = math.Sqrt(norm)
	for i := range values {
		values[i] = float32(float64(values[i]) / norm)
	}
	return &embedding.EmbeddingResponse{
		Embedding: embedding.EmbeddingResponseEmbedding{Values: values},
	}, nil
}

func newTestPipeline(t *testing.T, opts ...Option) (*Pipeline, *chunkstore.Store, *pagestore.Store) {
	t.Helper()
	logger := log.New(io.Discard, "", 0)
	chunks := chunkstore.NewStore(memory.NewIndex(hashProvider{}), logger)
	pages := pagestore.NewStore(t.TempDir())
	p, err := NewPipeline(chunks, pages, pagestore.DefaultFilterConfig(), logger, opts...)
	require.NoError(t, err)
	return p, chunks, pages
}

func TestIngestEmptyDocument(t *testing.T) {
	p, chunks, _ := newTestPipeline(t)

	res, err := p.Ingest(context.Background(), "doc-1", "   \n\t  ")
	require.NoError(t, err)

	assert.Equal(t, 0, res.PagesProcessed)
	assert.Equal(t, 0, res.PagesSkipped)
	assert.Equal(t, 0, res.ChunksAdded)

	count, err := chunks.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestIngestMarkedPages(t *testing.T) {
	p, chunks, pages := newTestPipeline(t)

	raw := "extraction preamble, not a page" +
		"<|startofpage|>First page body about alpha subjects.\n" +
		"<|startofpage|>Second page body about beta subjects.\n"

	res, err := p.Ingest(context.Background(), "doc-1", raw)
	require.NoError(t, err)

	assert.Equal(t, 2, res.PagesProcessed)
	assert.Equal(t, 0, res.PagesSkipped)
	assert.Positive(t, res.ChunksAdded)

	text, found, err := pages.Load("doc-1", "0")
	require.NoError(t, err)
	require.True(t, found)
	assert.Contains(t, text, "alpha subjects")

	_, found, err = pages.Load("doc-1", "1")
	require.NoError(t, err)
	assert.True(t, found)

	// The preamble before the first marker is never persisted.
	_, found, err = pages.Load("doc-1", "preamble")
	require.NoError(t, err)
	assert.False(t, found)

	count, err := chunks.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(res.ChunksAdded), count)
}

func TestIngestExplicitPageNumbers(t *testing.T) {
	p, _, pages := newTestPipeline(t)

	raw := "<|startofpage:7|>Page seven content.\n" +
		"<|startofpage|>Next page without a number.\n"

	_, err := p.Ingest(context.Background(), "doc-1", raw)
	require.NoError(t, err)

	text, found, err := pages.Load("doc-1", "7")
	require.NoError(t, err)
	require.True(t, found)
	assert.Contains(t, text, "seven")

	// Unnumbered marker falls back to its sequential index.
	_, found, err = pages.Load("doc-1", "1")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestIngestSkipsEmptyPages(t *testing.T) {
	p, _, _ := newTestPipeline(t)

	raw := "<|startofpage|>Real content here.\n" +
		"<|startofpage|>   \n\t\n" +
		"<|startofpage|>More real content.\n"

	res, err := p.Ingest(context.Background(), "doc-1", raw)
	require.NoError(t, err)
	assert.Equal(t, 2, res.PagesProcessed)
}

func TestIngestIndexPagePersistedNotEmbedded(t *testing.T) {
	p, chunks, pages := newTestPipeline(t)

	var toc strings.Builder
	for i := 1; i <= 10; i++ {
		toc.WriteString("1. Chapter heading http://example.com/ch\n")
	}
	raw := "<|startofpage|>" + toc.String() +
		"<|startofpage|>Ordinary prose page that should be embedded normally.\n"

	res, err := p.Ingest(context.Background(), "doc-1", raw)
	require.NoError(t, err)

	assert.Equal(t, 1, res.PagesProcessed)
	assert.Equal(t, 1, res.PagesSkipped)

	// The index page is still readable by key even though it never reached
	// the vector store.
	_, found, err := pages.Load("doc-1", "0")
	require.NoError(t, err)
	assert.True(t, found)

	hits, err := chunks.Query(context.Background(), "Chapter heading", 5, []string{"doc-1"})
	require.NoError(t, err)
	for _, h := range hits {
		assert.NotContains(t, h.Text, "http://example.com")
	}
}

func TestIngestIdempotent(t *testing.T) {
	p, chunks, _ := newTestPipeline(t)
	ctx := context.Background()

	raw := "<|startofpage|>Stable content that does not change between runs.\n"

	first, err := p.Ingest(ctx, "doc-1", raw)
	require.NoError(t, err)
	require.Positive(t, first.ChunksAdded)

	second, err := p.Ingest(ctx, "doc-1", raw)
	require.NoError(t, err)
	assert.Equal(t, 0, second.ChunksAdded)
	assert.Equal(t, first.PagesProcessed, second.PagesProcessed)

	count, err := chunks.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(first.ChunksAdded), count)
}

func TestIngestUnpagedDocumentUsesPseudoPages(t *testing.T) {
	p, chunks, _ := newTestPipeline(t)

	// Well over one pseudo-page of marker-free text.
	para := "This paragraph repeats to exceed the pseudo-page budget. "
	raw := strings.Repeat(para+"\n\n", 80)

	res, err := p.Ingest(context.Background(), "doc-1", raw)
	require.NoError(t, err)

	assert.Greater(t, res.PagesProcessed, 1)

	count, err := chunks.Count(context.Background())
	require.NoError(t, err)
	assert.Positive(t, count)
}

func TestIngestUnpagedDocumentIdempotent(t *testing.T) {
	p, chunks, _ := newTestPipeline(t)
	ctx := context.Background()

	// Marker-free text spanning several pseudo-pages. Pseudo-page keys feed
	// the chunk id hash, so they must come out identical on every run.
	var sb strings.Builder
	for i := 0; i < 120; i++ {
		sb.WriteString("Section body number ")
		sb.WriteString(strings.Repeat("x", i%7))
		sb.WriteString(" with enough prose to fill pseudo-pages.\n\n")
	}
	raw := sb.String()

	first, err := p.Ingest(ctx, "doc-1", raw)
	require.NoError(t, err)
	require.Greater(t, first.PagesProcessed, 1)
	require.Positive(t, first.ChunksAdded)

	second, err := p.Ingest(ctx, "doc-1", raw)
	require.NoError(t, err)
	assert.Equal(t, 0, second.ChunksAdded)
	assert.Equal(t, first.PagesProcessed, second.PagesProcessed)

	count, err := chunks.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(first.ChunksAdded), count)
}
