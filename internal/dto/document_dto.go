package dto

import (
	"time"

	"github.com/google/uuid"
)

type UploadDocumentResponse struct {
	Id       uuid.UUID `json:"id"`
	Filename string    `json:"filename"`
	URL      string    `json:"url"`
}

type DocumentResponse struct {
	Id             uuid.UUID `json:"id"`
	Filename       string    `json:"filename"`
	URL            string    `json:"url"`
	Status         string    `json:"status"`
	PagesProcessed int       `json:"pages_processed"`
	PagesSkipped   int       `json:"pages_skipped"`
	ChunksAdded    int       `json:"chunks_added"`
	UploadedAt     time.Time `json:"uploaded_at"`
}

type PageResponse struct {
	DocumentId uuid.UUID `json:"document_id"`
	PageKey    string    `json:"page_key"`
	Text       string    `json:"text"`
}

// PublishIngestDocumentMessage is the payload queued when an upload needs
// extraction and ingestion.
type PublishIngestDocumentMessage struct {
	DocumentId uuid.UUID `json:"document_id"`
}

// IngestionEvent is pushed over the websocket while a document moves
// through the extraction/ingestion lifecycle.
type IngestionEvent struct {
	DocumentId     uuid.UUID `json:"document_id"`
	Status         string    `json:"status"`
	PagesProcessed int       `json:"pages_processed"`
	PagesSkipped   int       `json:"pages_skipped"`
	ChunksAdded    int       `json:"chunks_added"`
	Error          string    `json:"error,omitempty"`
}
