package pgvector

import (
	"context"
	"fmt"
	"strings"

	"ai-docqa-be/internal/model"
	"ai-docqa-be/pkg/docqa/errs"
	"ai-docqa-be/pkg/embedding"
	"ai-docqa-be/pkg/vectorindex"

	pgvec "github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Index stores chunk records in Postgres with a pgvector column and jsonb
// metadata. Similarity uses cosine distance (`<=>`), so returned distances
// are ascending and non-negative for the unit-length vectors the embedding
// providers produce.
type Index struct {
	db        *gorm.DB
	provider  embedding.EmbeddingProvider
	dimension int
}

var _ vectorindex.Index = (*Index)(nil)

// NewIndex wires the index to a gorm connection and the embedding provider
// shared with query time. dimension must match the vector column width.
func NewIndex(db *gorm.DB, provider embedding.EmbeddingProvider, dimension int) *Index {
	if dimension <= 0 {
		dimension = 768
	}
	return &Index{
		db:        db,
		provider:  provider,
		dimension: dimension,
	}
}

func (idx *Index) Add(ctx context.Context, ids []string, texts []string, metadatas []map[string]string) error {
	if len(ids) != len(texts) || len(ids) != len(metadatas) {
		return fmt.Errorf("%w: ids=%d texts=%d metadatas=%d", errs.ErrSizeMismatch, len(ids), len(texts), len(metadatas))
	}
	if len(ids) == 0 {
		return nil
	}

	rows := make([]*model.ChunkEmbedding, 0, len(ids))
	for i, text := range texts {
		res, err := idx.provider.Generate(text, embedding.TaskRetrievalDocument)
		if err != nil {
			return fmt.Errorf("embed chunk %d: %w", i, err)
		}
		if err := idx.checkDimension(res.Embedding.Values); err != nil {
			return err
		}
		rows = append(rows, &model.ChunkEmbedding{
			Id:             ids[i],
			Document:       text,
			EmbeddingValue: pgvec.NewVector(res.Embedding.Values),
			Metadata:       toJSONMap(metadatas[i]),
		})
	}

	// ON CONFLICT DO NOTHING: duplicate ids are silently ignored, which is
	// why callers measure "new chunks" by diffing Count before and after.
	if err := idx.db.WithContext(ctx).
		Exec(buildInsertSQL(rows), buildInsertArgs(rows)...).Error; err != nil {
		return fmt.Errorf("insert chunk embeddings: %w", err)
	}
	return nil
}

func (idx *Index) Get(ctx context.Context, opts vectorindex.GetOptions) ([]vectorindex.Record, error) {
	query := idx.db.WithContext(ctx).Model(&model.ChunkEmbedding{})
	if len(opts.IDs) > 0 {
		query = query.Where("id IN ?", opts.IDs)
	}
	query = applyWhere(query, opts.Where)
	if opts.Limit > 0 {
		query = query.Limit(opts.Limit)
	}

	var rows []*model.ChunkEmbedding
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("get chunk embeddings: %w", err)
	}

	records := make([]vectorindex.Record, len(rows))
	for i, row := range rows {
		records[i] = toRecord(row)
	}
	return records, nil
}

func (idx *Index) Query(ctx context.Context, text string, topK int, where *vectorindex.Where) ([]vectorindex.ScoredRecord, error) {
	res, err := idx.provider.Generate(text, embedding.TaskRetrievalQuery)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if err := idx.checkDimension(res.Embedding.Values); err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = 5
	}

	queryVector := pgvec.NewVector(res.Embedding.Values)

	type scoredRow struct {
		model.ChunkEmbedding
		Distance float64
	}
	var rows []scoredRow

	query := idx.db.WithContext(ctx).
		Table("chunk_embeddings").
		Select("chunk_embeddings.*, embedding_value <=> ? AS distance", queryVector)
	query = applyWhere(query, where)

	if err := query.
		Order("distance ASC").
		Limit(topK).
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("vector query: %w", err)
	}

	scored := make([]vectorindex.ScoredRecord, len(rows))
	for i, row := range rows {
		scored[i] = vectorindex.ScoredRecord{
			Record:   toRecord(&row.ChunkEmbedding),
			Distance: row.Distance,
		}
	}
	return scored, nil
}

func (idx *Index) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := idx.db.WithContext(ctx).Model(&model.ChunkEmbedding{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count chunk embeddings: %w", err)
	}
	return count, nil
}

func (idx *Index) Delete(ctx context.Context, where *vectorindex.Where) error {
	query := applyWhere(idx.db.WithContext(ctx), where)
	if err := query.Delete(&model.ChunkEmbedding{}).Error; err != nil {
		return fmt.Errorf("delete chunk embeddings: %w", err)
	}
	return nil
}

func (idx *Index) checkDimension(vec []float32) error {
	if len(vec) != idx.dimension {
		return fmt.Errorf("%w: column is vector(%d) but the embedding provider produced %d values; "+
			"the same embedding function must be used for ingestion and query",
			errs.ErrDimensionMismatch, idx.dimension, len(vec))
	}
	return nil
}

// applyWhere translates the metadata predicate into jsonb equality
// conditions: Equals entries are AND-ed, AnyOf alternatives are OR-ed.
func applyWhere(query *gorm.DB, where *vectorindex.Where) *gorm.DB {
	if where == nil {
		return query
	}
	for k, v := range where.Equals {
		query = query.Where("metadata ->> ? = ?", k, v)
	}
	if len(where.AnyOf) > 0 {
		var clauses []string
		var args []interface{}
		for _, alt := range where.AnyOf {
			var conds []string
			for k, v := range alt {
				conds = append(conds, "metadata ->> ? = ?")
				args = append(args, k, v)
			}
			clauses = append(clauses, "("+strings.Join(conds, " AND ")+")")
		}
		query = query.Where(strings.Join(clauses, " OR "), args...)
	}
	return query
}

func toRecord(row *model.ChunkEmbedding) vectorindex.Record {
	metadata := make(map[string]string, len(row.Metadata))
	for k, v := range row.Metadata {
		if s, ok := v.(string); ok {
			metadata[k] = s
		} else {
			metadata[k] = fmt.Sprint(v)
		}
	}
	return vectorindex.Record{
		ID:       row.Id,
		Text:     row.Document,
		Metadata: metadata,
	}
}

func toJSONMap(metadata map[string]string) datatypes.JSONMap {
	out := make(datatypes.JSONMap, len(metadata))
	for k, v := range metadata {
		out[k] = v
	}
	return out
}

func buildInsertSQL(rows []*model.ChunkEmbedding) string {
	var sb strings.Builder
	sb.WriteString("INSERT INTO chunk_embeddings (id, document, embedding_value, metadata, created_at) VALUES ")
	for i := range rows {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(?, ?, ?, ?, NOW())")
	}
	sb.WriteString(" ON CONFLICT (id) DO NOTHING")
	return sb.String()
}

func buildInsertArgs(rows []*model.ChunkEmbedding) []interface{} {
	args := make([]interface{}, 0, len(rows)*4)
	for _, row := range rows {
		args = append(args, row.Id, row.Document, row.EmbeddingValue, row.Metadata)
	}
	return args
}
