package memory

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// TaskStatus tracks one document's extraction/ingestion progress for the
// polling endpoint. Entries expire on their own, so a crashed consumer never
// leaves stale "processing" statuses behind forever.
type TaskStatus struct {
	DocumentId     string `json:"document_id"`
	Status         string `json:"status"`
	PagesProcessed int    `json:"pages_processed"`
	PagesSkipped   int    `json:"pages_skipped"`
	ChunksAdded    int    `json:"chunks_added"`
	Error          string `json:"error,omitempty"`
}

type TaskRepository struct {
	cache *cache.Cache
}

func NewTaskRepository() *TaskRepository {
	// Create a cache with a default expiration time of 1 hour, and which
	// purges expired items every 10 minutes
	c := cache.New(1*time.Hour, 10*time.Minute)
	return &TaskRepository{
		cache: c,
	}
}

func (r *TaskRepository) Save(status *TaskStatus) {
	r.cache.Set(status.DocumentId, status, cache.DefaultExpiration)
}

func (r *TaskRepository) Get(documentId string) (*TaskStatus, bool) {
	if x, found := r.cache.Get(documentId); found {
		return x.(*TaskStatus), true
	}
	return nil, false
}

func (r *TaskRepository) Delete(documentId string) {
	r.cache.Delete(documentId)
}
