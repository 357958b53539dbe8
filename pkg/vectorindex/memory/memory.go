package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"ai-docqa-be/pkg/docqa/errs"
	"ai-docqa-be/pkg/embedding"
	"ai-docqa-be/pkg/vectorindex"
)

type record struct {
	vectorindex.Record
	vector []float32
}

// Index is a brute-force cosine-distance store. It backs tests and small
// single-process deployments; durability comes from the pgvector backend.
type Index struct {
	mu        sync.RWMutex
	provider  embedding.EmbeddingProvider
	dimension int
	byID      map[string]int
	records   []record
}

var _ vectorindex.Index = (*Index)(nil)

func NewIndex(provider embedding.EmbeddingProvider) *Index {
	return &Index{
		provider: provider,
		byID:     make(map[string]int),
	}
}

func (idx *Index) Add(ctx context.Context, ids []string, texts []string, metadatas []map[string]string) error {
	if len(ids) != len(texts) || len(ids) != len(metadatas) {
		return fmt.Errorf("%w: ids=%d texts=%d metadatas=%d", errs.ErrSizeMismatch, len(ids), len(texts), len(metadatas))
	}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		res, err := idx.provider.Generate(text, embedding.TaskRetrievalDocument)
		if err != nil {
			return fmt.Errorf("embed chunk %d: %w", i, err)
		}
		vectors[i] = res.Embedding.Values
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	for i, id := range ids {
		if err := idx.checkDimensionLocked(vectors[i]); err != nil {
			return err
		}
		if _, exists := idx.byID[id]; exists {
			// Duplicate ids are silently ignored, matching the backing
			// service contract the chunk store is written against.
			continue
		}
		idx.byID[id] = len(idx.records)
		idx.records = append(idx.records, record{
			Record: vectorindex.Record{ID: id, Text: texts[i], Metadata: metadatas[i]},
			vector: vectors[i],
		})
	}
	return nil
}

func (idx *Index) Get(ctx context.Context, opts vectorindex.GetOptions) ([]vectorindex.Record, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var out []vectorindex.Record
	appendIfMatch := func(r record) bool {
		if !opts.Where.Matches(r.Metadata) {
			return false
		}
		out = append(out, r.Record)
		return opts.Limit > 0 && len(out) >= opts.Limit
	}

	if len(opts.IDs) > 0 {
		for _, id := range opts.IDs {
			pos, ok := idx.byID[id]
			if !ok {
				continue
			}
			if appendIfMatch(idx.records[pos]) {
				break
			}
		}
		return out, nil
	}

	for _, r := range idx.records {
		if appendIfMatch(r) {
			break
		}
	}
	return out, nil
}

func (idx *Index) Query(ctx context.Context, text string, topK int, where *vectorindex.Where) ([]vectorindex.ScoredRecord, error) {
	res, err := idx.provider.Generate(text, embedding.TaskRetrievalQuery)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	query := res.Embedding.Values

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	// Read-only dimension check; only Add pins the dimension, so queries
	// never write under the read lock.
	if idx.dimension != 0 && len(query) != idx.dimension {
		return nil, dimensionMismatch(idx.dimension, len(query))
	}
	if topK <= 0 {
		topK = 5
	}

	var scored []vectorindex.ScoredRecord
	for _, r := range idx.records {
		if !where.Matches(r.Metadata) {
			continue
		}
		scored = append(scored, vectorindex.ScoredRecord{
			Record:   r.Record,
			Distance: cosineDistance(query, r.vector),
		})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Distance < scored[j].Distance
	})
	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

func (idx *Index) Count(ctx context.Context) (int64, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return int64(len(idx.records)), nil
}

func (idx *Index) Delete(ctx context.Context, where *vectorindex.Where) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	kept := idx.records[:0]
	for _, r := range idx.records {
		if where.Matches(r.Metadata) {
			continue
		}
		kept = append(kept, r)
	}
	idx.records = kept
	idx.byID = make(map[string]int, len(kept))
	for i, r := range kept {
		idx.byID[r.ID] = i
	}
	return nil
}

// checkDimensionLocked pins the index to the dimensionality of the first
// vector it sees. Callers must hold the write lock.
func (idx *Index) checkDimensionLocked(vec []float32) error {
	if idx.dimension == 0 {
		idx.dimension = len(vec)
		return nil
	}
	if len(vec) != idx.dimension {
		return dimensionMismatch(idx.dimension, len(vec))
	}
	return nil
}

// A mismatch almost always means the embedding provider changed between
// ingestion and query, so the error says so.
func dimensionMismatch(have, got int) error {
	return fmt.Errorf("%w: index holds %d-dimensional vectors but the embedding provider produced %d; "+
		"the same embedding function must be used for ingestion and query",
		errs.ErrDimensionMismatch, have, got)
}

// cosineDistance assumes L2-normalized vectors, matching the embedding
// providers which normalize on the way out.
func cosineDistance(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
	}
	return 1 - dot
}
