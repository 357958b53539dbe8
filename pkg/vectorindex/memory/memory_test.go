package memory

import (
	"context"
	"sync"
	"testing"

	"ai-docqa-be/pkg/docqa/errs"
	"ai-docqa-be/pkg/embedding"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// taskDimProvider returns vectors whose size depends on the task type, so a
// test can give queries and documents different dimensionality.
type taskDimProvider struct {
	queryDim    int
	documentDim int
}

func (p taskDimProvider) Generate(text string, taskType string) (*embedding.EmbeddingResponse, error) {
	dim := p.documentDim
	if taskType == embedding.TaskRetrievalQuery {
		dim = p.queryDim
	}
	values := make([]float32, dim)
	for i := range values {
		values[i] = 1
	}
	return &embedding.EmbeddingResponse{
		Embedding: embedding.EmbeddingResponseEmbedding{Values: values},
	}, nil
}

func TestQueryDoesNotPinDimension(t *testing.T) {
	idx := NewIndex(taskDimProvider{queryDim: 4, documentDim: 8})
	ctx := context.Background()

	// A query against the empty index must not fix the index dimension.
	res, err := idx.Query(ctx, "anything", 5, nil)
	require.NoError(t, err)
	assert.Empty(t, res)

	// Only Add pins: 8-dim documents land fine even after the 4-dim query.
	err = idx.Add(ctx, []string{"a"}, []string{"doc text"}, []map[string]string{{}})
	require.NoError(t, err)

	// Now the 4-dim query genuinely mismatches the stored vectors.
	_, err = idx.Query(ctx, "anything", 5, nil)
	require.ErrorIs(t, err, errs.ErrDimensionMismatch)
}

func TestConcurrentQueriesOnEmptyIndex(t *testing.T) {
	idx := NewIndex(taskDimProvider{queryDim: 4, documentDim: 4})
	ctx := context.Background()

	var wg sync.WaitGroup
	errCh := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := idx.Query(ctx, "parallel", 3, nil)
			errCh <- err
		}()
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		assert.NoError(t, err)
	}
}
