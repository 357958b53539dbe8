package model

import (
	"time"

	"github.com/google/uuid"
)

// Document lifecycle states.
const (
	DocumentStatusUploaded   = "uploaded"
	DocumentStatusExtracting = "extracting"
	DocumentStatusIngesting  = "ingesting"
	DocumentStatusReady      = "ready"
	DocumentStatusFailed     = "failed"
)

type UploadedFile struct {
	Id             uuid.UUID `gorm:"type:uuid;primaryKey"`
	Filename       string    `gorm:"type:varchar(512);not null"`
	StoredName     string    `gorm:"type:varchar(512);not null"`
	LocalPath      string    `gorm:"type:text;not null"`
	URL            string    `gorm:"type:text"`
	Status         string    `gorm:"type:varchar(32);not null;default:'uploaded'"`
	Selected       bool      `gorm:"not null;default:false"`
	PagesProcessed int       `gorm:"not null;default:0"`
	PagesSkipped   int       `gorm:"not null;default:0"`
	ChunksAdded    int       `gorm:"not null;default:0"`
	LastError      string    `gorm:"type:text"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (UploadedFile) TableName() string {
	return "uploaded_files"
}
