package implementation

import (
	"context"
	"errors"

	"ai-docqa-be/internal/model"
	"ai-docqa-be/internal/repository/contract"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UploadedFileRepositoryImpl struct {
	db *gorm.DB
}

func NewUploadedFileRepository(db *gorm.DB) contract.UploadedFileRepository {
	return &UploadedFileRepositoryImpl{db: db}
}

func (r *UploadedFileRepositoryImpl) Create(ctx context.Context, file *model.UploadedFile) error {
	return r.db.WithContext(ctx).Create(file).Error
}

func (r *UploadedFileRepositoryImpl) Update(ctx context.Context, file *model.UploadedFile) error {
	return r.db.WithContext(ctx).Save(file).Error
}

func (r *UploadedFileRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&model.UploadedFile{}, id).Error
}

func (r *UploadedFileRepositoryImpl) FindById(ctx context.Context, id uuid.UUID) (*model.UploadedFile, error) {
	var m model.UploadedFile
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

func (r *UploadedFileRepositoryImpl) FindAll(ctx context.Context) ([]*model.UploadedFile, error) {
	var models []*model.UploadedFile
	if err := r.db.WithContext(ctx).Order("created_at desc").Find(&models).Error; err != nil {
		return nil, err
	}
	return models, nil
}

func (r *UploadedFileRepositoryImpl) UpdateStatus(ctx context.Context, id uuid.UUID, status string, lastError string) error {
	return r.db.WithContext(ctx).Model(&model.UploadedFile{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     status,
			"last_error": lastError,
		}).Error
}
