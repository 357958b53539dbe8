package vectorindex

import "context"

// Record is one stored item: text plus its metadata, keyed by a
// caller-supplied id.
type Record struct {
	ID       string
	Text     string
	Metadata map[string]string
}

// ScoredRecord pairs a record with its dissimilarity to a query. Distance is
// non-negative and lower means more relevant; ordering between equal
// distances follows the backend's native order and must be treated as
// unstable.
type ScoredRecord struct {
	Record
	Distance float64
}

// Where expresses a metadata predicate. All Equals entries are conjoined
// (AND); when AnyOf is set, each alternative map is itself conjoined and the
// alternatives are disjoined (OR). Both may be combined.
type Where struct {
	Equals map[string]string
	AnyOf  []map[string]string
}

// GetOptions narrows a Get call. Zero values mean "no constraint".
type GetOptions struct {
	IDs   []string
	Where *Where
	Limit int
}

// Index is the external vector service boundary: items carry text and
// metadata, similarity queries embed the query text with the same embedding
// function used at insert time. Implementations must surface a
// dimensionality mismatch distinctly from an empty result set.
type Index interface {
	Add(ctx context.Context, ids []string, texts []string, metadatas []map[string]string) error
	Get(ctx context.Context, opts GetOptions) ([]Record, error)
	Query(ctx context.Context, text string, topK int, where *Where) ([]ScoredRecord, error)
	Count(ctx context.Context) (int64, error)
	Delete(ctx context.Context, where *Where) error
}

// Matches reports whether metadata satisfies the predicate. Backends without
// native filtering evaluate it in-process.
func (w *Where) Matches(metadata map[string]string) bool {
	if w == nil {
		return true
	}
	for k, v := range w.Equals {
		if metadata[k] != v {
			return false
		}
	}
	if len(w.AnyOf) == 0 {
		return true
	}
	for _, alt := range w.AnyOf {
		ok := true
		for k, v := range alt {
			if metadata[k] != v {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}
