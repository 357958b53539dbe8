package model

import (
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

// ChunkEmbedding is one stored chunk record. The id is the content hash
// computed by the chunk store, so re-ingesting identical content hits the
// same row instead of creating a new one.
type ChunkEmbedding struct {
	Id             string            `gorm:"type:varchar(64);primaryKey"`
	Document       string            `gorm:"type:text"`
	EmbeddingValue pgvector.Vector   `gorm:"type:vector(768)"` // nomic-embed-text dimensionality
	Metadata       datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt      time.Time         `gorm:"autoCreateTime"`
}

func (ChunkEmbedding) TableName() string {
	return "chunk_embeddings"
}
