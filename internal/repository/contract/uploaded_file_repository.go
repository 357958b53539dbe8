package contract

import (
	"context"

	"ai-docqa-be/internal/model"

	"github.com/google/uuid"
)

type UploadedFileRepository interface {
	Create(ctx context.Context, file *model.UploadedFile) error
	Update(ctx context.Context, file *model.UploadedFile) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindById(ctx context.Context, id uuid.UUID) (*model.UploadedFile, error)
	FindAll(ctx context.Context) ([]*model.UploadedFile, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string, lastError string) error
}
