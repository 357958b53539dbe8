package chunkstore

import (
	"context"
	"crypto/sha256"
	"math"
	"testing"

	"ai-docqa-be/pkg/docqa/errs"
	"ai-docqa-be/pkg/embedding"
	"ai-docqa-be/pkg/vectorindex/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// hashProvider derives a deterministic unit vector from the text content, so
// tests exercise the store without any embedding service.
type hashProvider struct {
	dimension int
}

func (p *hashProvider) Generate(text string, taskType string) (*embedding.EmbeddingResponse, error) {
	sum := sha256.Sum256([]byte(text))
	values := make([]float32, p.dimension)
	var norm float64
	for i := range values {
		values[i] = float32(sum[i%len(sum)]) / 255
		norm += float64(values[i]) * float64(values[i])
	}
	for i := range values {
		values[i] = float32(float64(values[i]) / math.Sqrt(norm))
	}
	return &embedding.EmbeddingResponse{
		Embedding: embedding.EmbeddingResponseEmbedding{Values: values},
	}, nil
}

func newTestStore() *Store {
	return NewStore(memory.NewIndex(&hashProvider{dimension: 8}), nil)
}

func TestChunkIDDeterministic(t *testing.T) {
	meta := map[string]string{MetaDocumentID: "doc1", MetaPageKey: "3"}

	first := ChunkID("some chunk text", meta)
	second := ChunkID("some chunk text", map[string]string{MetaPageKey: "3", MetaDocumentID: "doc1"})
	assert.Equal(t, first, second, "id must not depend on map iteration order")

	assert.NotEqual(t, first, ChunkID("other chunk text", meta))
	assert.NotEqual(t, first, ChunkID("some chunk text", map[string]string{MetaDocumentID: "doc2", MetaPageKey: "3"}))
}

func TestBuildChunksDropsInBatchDuplicates(t *testing.T) {
	meta := map[string]string{MetaDocumentID: "doc1"}
	chunks := BuildChunks([]string{"alpha", "beta", "alpha"}, meta)
	require.Len(t, chunks, 2)
	assert.Equal(t, "alpha", chunks[0].Text)
	assert.Equal(t, "beta", chunks[1].Text)
}

func TestAddSizeMismatch(t *testing.T) {
	store := newTestStore()

	err := store.Add(context.Background(),
		[]string{"one", "two"},
		[]map[string]string{{MetaDocumentID: "doc1"}},
		[]string{"id1", "id2"},
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrSizeMismatch)
}

func TestAddTwiceStoresOnce(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	meta := map[string]string{MetaDocumentID: "doc1"}
	chunks := BuildChunks([]string{"the same chunk"}, meta)
	require.NoError(t, store.AddChunks(ctx, chunks))
	require.NoError(t, store.AddChunks(ctx, chunks))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "duplicate id must not create a second record")
}

func TestAddBatchesLargeInput(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	texts := make([]string, 0, 250)
	for i := 0; i < 250; i++ {
		texts = append(texts, "chunk "+string(rune('a'+i%26))+string(rune('0'+i%10))+string(rune('0'+i/10)))
	}
	chunks := BuildChunks(texts, map[string]string{MetaDocumentID: "doc1"})
	require.NoError(t, store.AddChunks(ctx, chunks))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(len(chunks)), count)
}

func TestExistingIDsScopedToDocument(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	doc1 := BuildChunks([]string{"shared text"}, map[string]string{MetaDocumentID: "doc1"})
	require.NoError(t, store.AddChunks(ctx, doc1))

	existing, err := store.ExistingIDs(ctx, "doc1", []string{doc1[0].ID})
	require.NoError(t, err)
	assert.True(t, existing[doc1[0].ID])

	// Same text under another document has a different id and is absent.
	doc2 := BuildChunks([]string{"shared text"}, map[string]string{MetaDocumentID: "doc2"})
	existing, err = store.ExistingIDs(ctx, "doc2", []string{doc2[0].ID})
	require.NoError(t, err)
	assert.False(t, existing[doc2[0].ID])
}

func TestQueryScopesByDocumentIDs(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	require.NoError(t, store.AddChunks(ctx, BuildChunks(
		[]string{"first document body"}, map[string]string{MetaDocumentID: "doc1", MetaPageKey: "0"})))
	require.NoError(t, store.AddChunks(ctx, BuildChunks(
		[]string{"second document body"}, map[string]string{MetaDocumentID: "doc2", MetaPageKey: "0"})))
	require.NoError(t, store.AddChunks(ctx, BuildChunks(
		[]string{"third document body"}, map[string]string{MetaDocumentID: "doc3", MetaPageKey: "0"})))

	results, err := store.Query(ctx, "anything", 10, []string{"doc1"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "doc1", results[0].Metadata[MetaDocumentID])

	results, err = store.Query(ctx, "anything", 10, []string{"doc1", "doc3"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.NotEqual(t, "doc2", r.Metadata[MetaDocumentID])
	}
}

func TestQueryOrderedByDistance(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	require.NoError(t, store.AddChunks(ctx, BuildChunks(
		[]string{"aaa", "bbb", "ccc", "ddd"}, map[string]string{MetaDocumentID: "doc1"})))

	results, err := store.Query(ctx, "aaa", 4, []string{"doc1"})
	require.NoError(t, err)
	require.Len(t, results, 4)
	for i := 1; i < len(results); i++ {
		assert.LessOrEqual(t, results[i-1].Distance, results[i].Distance)
	}
	// Exact text match embeds identically, so it must rank first.
	assert.Equal(t, "aaa", results[0].Text)
}
