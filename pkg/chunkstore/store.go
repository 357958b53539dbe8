// Package chunkstore wraps the vector index with the chunk-level contract
// the ingestion pipeline and query router are written against:
// content-addressed ids, batched inserts, metadata-scoped queries and the
// dedup check that makes re-ingestion idempotent.
package chunkstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"sort"
	"strings"

	"ai-docqa-be/pkg/docqa/errs"
	"ai-docqa-be/pkg/vectorindex"
)

// Metadata keys every chunk carries.
const (
	MetaDocumentID = "document_id"
	MetaPageKey    = "page_key"
)

// insertBatchSize caps one index call; the backing services reject very
// large payloads.
const insertBatchSize = 100

// Chunk is one stored span of document text.
type Chunk struct {
	ID       string
	Text     string
	Metadata map[string]string
}

// ScoredChunk pairs a chunk with its query distance (lower = more relevant).
type ScoredChunk struct {
	Chunk
	Distance float64
}

// Store mediates all chunk access to the vector index.
type Store struct {
	index  vectorindex.Index
	logger *log.Logger
}

func NewStore(index vectorindex.Index, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.Default()
	}
	return &Store{
		index:  index,
		logger: logger,
	}
}

// ChunkID derives the content-addressed id: a hash of the chunk text and its
// metadata in sorted-key order. Identical content under identical metadata
// always maps to the same id, which is what makes ingestion idempotent.
func ChunkID(text string, metadata map[string]string) string {
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(text)
	for _, k := range keys {
		sb.WriteString("\x00")
		sb.WriteString(k)
		sb.WriteString("=")
		sb.WriteString(metadata[k])
	}

	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}

// BuildChunks turns segmented texts into chunks sharing one metadata map,
// dropping in-batch duplicates (two identical segments under the same
// metadata hash to the same id).
func BuildChunks(texts []string, metadata map[string]string) []Chunk {
	seen := make(map[string]bool, len(texts))
	chunks := make([]Chunk, 0, len(texts))
	for _, text := range texts {
		id := ChunkID(text, metadata)
		if seen[id] {
			continue
		}
		seen[id] = true
		chunks = append(chunks, Chunk{ID: id, Text: text, Metadata: metadata})
	}
	return chunks
}

// Add inserts parallel arrays of documents, metadata and ids in batches of
// insertBatchSize. Insertion is NOT transactional across batches: a failure
// partway through leaves earlier batches committed, and the caller reads the
// real delta via Count.
func (s *Store) Add(ctx context.Context, documents []string, metadatas []map[string]string, ids []string) error {
	size := len(documents)
	if len(metadatas) != size || len(ids) != size {
		return fmt.Errorf("%w: documents=%d metadatas=%d ids=%d",
			errs.ErrSizeMismatch, len(documents), len(metadatas), len(ids))
	}

	for start := 0; start < size; start += insertBatchSize {
		end := start + insertBatchSize
		if end > size {
			end = size
		}
		s.logger.Printf("[CHUNKSTORE] Inserting batch %d..%d of %d", start, end, size)
		if err := s.index.Add(ctx, ids[start:end], documents[start:end], metadatas[start:end]); err != nil {
			return fmt.Errorf("insert batch %d..%d: %w", start, end, err)
		}
	}
	return nil
}

// AddChunks is the Add convenience over pre-built chunks.
func (s *Store) AddChunks(ctx context.Context, chunks []Chunk) error {
	documents := make([]string, len(chunks))
	metadatas := make([]map[string]string, len(chunks))
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		documents[i] = c.Text
		metadatas[i] = c.Metadata
		ids[i] = c.ID
	}
	return s.Add(ctx, documents, metadatas, ids)
}

// ExistingIDs returns which of the candidate ids are already stored for the
// document. The ingestion pipeline excludes these before inserting so that
// re-ingesting the same content adds zero chunks.
func (s *Store) ExistingIDs(ctx context.Context, documentID string, ids []string) (map[string]bool, error) {
	if len(ids) == 0 {
		return map[string]bool{}, nil
	}
	records, err := s.index.Get(ctx, vectorindex.GetOptions{
		IDs:   ids,
		Where: scopeFilter([]string{documentID}),
	})
	if err != nil {
		return nil, fmt.Errorf("dedup lookup for document %s: %w", documentID, err)
	}
	existing := make(map[string]bool, len(records))
	for _, r := range records {
		existing[r.ID] = true
	}
	return existing, nil
}

// Query embeds text with the index's embedding function and returns the
// closest chunks scoped to the given document ids, ascending by distance.
func (s *Store) Query(ctx context.Context, text string, topK int, documentIDs []string) ([]ScoredChunk, error) {
	records, err := s.index.Query(ctx, text, topK, scopeFilter(documentIDs))
	if err != nil {
		return nil, err
	}
	scored := make([]ScoredChunk, len(records))
	for i, r := range records {
		scored[i] = ScoredChunk{
			Chunk:    Chunk{ID: r.ID, Text: r.Text, Metadata: r.Metadata},
			Distance: r.Distance,
		}
	}
	return scored, nil
}

// Count reports the total number of stored chunks. It is authoritative for
// "how many chunks did this ingestion actually add": the index silently
// ignores duplicate ids, so counting Add inputs would overstate.
func (s *Store) Count(ctx context.Context) (int64, error) {
	return s.index.Count(ctx)
}

// DeleteDocument removes every chunk belonging to one document.
func (s *Store) DeleteDocument(ctx context.Context, documentID string) error {
	return s.index.Delete(ctx, scopeFilter([]string{documentID}))
}

// scopeFilter builds the composite metadata predicate for one or many
// document ids. This is the one place the underlying index's AND/OR
// plumbing leaks through, so it stays private here.
func scopeFilter(documentIDs []string) *vectorindex.Where {
	switch len(documentIDs) {
	case 0:
		return nil
	case 1:
		return &vectorindex.Where{Equals: map[string]string{MetaDocumentID: documentIDs[0]}}
	default:
		alts := make([]map[string]string, len(documentIDs))
		for i, id := range documentIDs {
			alts[i] = map[string]string{MetaDocumentID: id}
		}
		return &vectorindex.Where{AnyOf: alts}
	}
}
