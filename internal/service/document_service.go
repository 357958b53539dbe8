package service

import (
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"os"
	"path/filepath"
	"time"

	"ai-docqa-be/internal/dto"
	"ai-docqa-be/internal/model"
	"ai-docqa-be/internal/pkg/logger"
	"ai-docqa-be/internal/repository/contract"
	"ai-docqa-be/internal/repository/memory"
	"ai-docqa-be/pkg/chunkstore"
	"ai-docqa-be/pkg/docqa/errs"
	"ai-docqa-be/pkg/pagestore"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

type IDocumentService interface {
	Upload(ctx context.Context, fileHeader *multipart.FileHeader, save func(*multipart.FileHeader, string) error) (*dto.UploadDocumentResponse, error)
	List(ctx context.Context) ([]*dto.DocumentResponse, error)
	Show(ctx context.Context, id uuid.UUID) (*dto.DocumentResponse, error)
	Delete(ctx context.Context, id uuid.UUID) error
	GetPage(ctx context.Context, id uuid.UUID, pageKey string) (*dto.PageResponse, error)
	Status(ctx context.Context, id uuid.UUID) (*memory.TaskStatus, error)
	LoadText(ctx context.Context, documentID string) (string, error)
	SaveExtractedText(documentID, text string) error
}

type documentService struct {
	fileRepo  contract.UploadedFileRepository
	taskRepo  *memory.TaskRepository
	chunks    *chunkstore.Store
	pages     *pagestore.Store
	pubSub    *gochannel.GoChannel
	topicName string
	uploadDir string
	baseURL   string
	logger    logger.ILogger
}

func NewDocumentService(
	fileRepo contract.UploadedFileRepository,
	taskRepo *memory.TaskRepository,
	chunks *chunkstore.Store,
	pages *pagestore.Store,
	pubSub *gochannel.GoChannel,
	topicName string,
	uploadDir string,
	baseURL string,
	log logger.ILogger,
) IDocumentService {
	return &documentService{
		fileRepo:  fileRepo,
		taskRepo:  taskRepo,
		chunks:    chunks,
		pages:     pages,
		pubSub:    pubSub,
		topicName: topicName,
		uploadDir: uploadDir,
		baseURL:   baseURL,
		logger:    log,
	}
}

// Upload registers a document, stores the raw file under a month-bucketed
// directory and queues it for extraction and ingestion. The save callback
// comes from the controller because only fiber knows how to persist its
// multipart file handles.
func (s *documentService) Upload(ctx context.Context, fileHeader *multipart.FileHeader, save func(*multipart.FileHeader, string) error) (*dto.UploadDocumentResponse, error) {
	id := uuid.New()
	month := time.Now().Format("2006-01")
	storedName := fmt.Sprintf("%s%s", id, filepath.Ext(fileHeader.Filename))

	dir := filepath.Join(s.uploadDir, month)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	localPath := filepath.Join(dir, storedName)
	if err := save(fileHeader, localPath); err != nil {
		return nil, fmt.Errorf("save upload: %w", err)
	}

	file := &model.UploadedFile{
		Id:         id,
		Filename:   fileHeader.Filename,
		StoredName: storedName,
		LocalPath:  localPath,
		URL:        fmt.Sprintf("%s/uploads/%s/%s", s.baseURL, month, storedName),
		Status:     model.DocumentStatusUploaded,
	}
	if err := s.fileRepo.Create(ctx, file); err != nil {
		return nil, fmt.Errorf("register upload: %w", err)
	}

	s.taskRepo.Save(&memory.TaskStatus{
		DocumentId: id.String(),
		Status:     model.DocumentStatusUploaded,
	})

	payload, err := json.Marshal(dto.PublishIngestDocumentMessage{DocumentId: id})
	if err != nil {
		return nil, fmt.Errorf("marshal ingest message: %w", err)
	}
	if err := s.pubSub.Publish(s.topicName, message.NewMessage(uuid.NewString(), payload)); err != nil {
		return nil, fmt.Errorf("queue ingest message: %w", err)
	}

	s.logger.Info("DocumentService", "Document uploaded and queued", map[string]interface{}{
		"document_id": id,
		"filename":    fileHeader.Filename,
	})

	return &dto.UploadDocumentResponse{
		Id:       id,
		Filename: fileHeader.Filename,
		URL:      file.URL,
	}, nil
}

func (s *documentService) List(ctx context.Context) ([]*dto.DocumentResponse, error) {
	files, err := s.fileRepo.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*dto.DocumentResponse, len(files))
	for i, f := range files {
		out[i] = toDocumentResponse(f)
	}
	return out, nil
}

func (s *documentService) Show(ctx context.Context, id uuid.UUID) (*dto.DocumentResponse, error) {
	file, err := s.fileRepo.FindById(ctx, id)
	if err != nil {
		return nil, err
	}
	if file == nil {
		return nil, fmt.Errorf("document %s: %w", id, errs.ErrNotFound)
	}
	return toDocumentResponse(file), nil
}

// Delete removes the document's chunks from the vector index, its page
// files, the registry row and the stored files. The raw upload and extracted
// text are best-effort: a partial delete leaves orphaned text files, not
// dangling index entries or servable pages.
func (s *documentService) Delete(ctx context.Context, id uuid.UUID) error {
	file, err := s.fileRepo.FindById(ctx, id)
	if err != nil {
		return err
	}
	if file == nil {
		return fmt.Errorf("document %s: %w", id, errs.ErrNotFound)
	}

	if err := s.chunks.DeleteDocument(ctx, id.String()); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	if err := s.pages.DeleteDocument(id.String()); err != nil {
		return fmt.Errorf("delete pages: %w", err)
	}
	if err := s.fileRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete registry row: %w", err)
	}
	s.taskRepo.Delete(id.String())

	if err := os.Remove(file.LocalPath); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("DocumentService", "Failed to remove uploaded file", map[string]interface{}{
			"document_id": id,
			"error":       err.Error(),
		})
	}
	if err := os.Remove(s.extractedTextPath(id.String())); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("DocumentService", "Failed to remove extracted text", map[string]interface{}{
			"document_id": id,
			"error":       err.Error(),
		})
	}
	return nil
}

func (s *documentService) GetPage(ctx context.Context, id uuid.UUID, pageKey string) (*dto.PageResponse, error) {
	text, found, err := s.pages.Load(id.String(), pageKey)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("page %s of document %s: %w", pageKey, id, errs.ErrNotFound)
	}
	return &dto.PageResponse{
		DocumentId: id,
		PageKey:    pageKey,
		Text:       text,
	}, nil
}

func (s *documentService) Status(ctx context.Context, id uuid.UUID) (*memory.TaskStatus, error) {
	if status, found := s.taskRepo.Get(id.String()); found {
		return status, nil
	}

	// Cache entry expired; fall back to the durable registry row.
	file, err := s.fileRepo.FindById(ctx, id)
	if err != nil {
		return nil, err
	}
	if file == nil {
		return nil, fmt.Errorf("document %s: %w", id, errs.ErrNotFound)
	}
	return &memory.TaskStatus{
		DocumentId:     id.String(),
		Status:         file.Status,
		PagesProcessed: file.PagesProcessed,
		PagesSkipped:   file.PagesSkipped,
		ChunksAdded:    file.ChunksAdded,
		Error:          file.LastError,
	}, nil
}

// LoadText serves the full-summary strategy: it reads the extracted text the
// consumer wrote after conversion.
func (s *documentService) LoadText(ctx context.Context, documentID string) (string, error) {
	data, err := os.ReadFile(s.extractedTextPath(documentID))
	if err != nil {
		return "", fmt.Errorf("read extracted text for %s: %w", documentID, err)
	}
	return string(data), nil
}

func (s *documentService) extractedTextPath(documentID string) string {
	return filepath.Join(s.uploadDir, "extracted", documentID+".txt")
}

// SaveExtractedText persists the converted plain text so the full-summary
// strategy and re-ingestion can reread it without another conversion.
func (s *documentService) SaveExtractedText(documentID, text string) error {
	dir := filepath.Join(s.uploadDir, "extracted")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create extracted dir: %w", err)
	}
	return os.WriteFile(s.extractedTextPath(documentID), []byte(text), 0o644)
}

func toDocumentResponse(f *model.UploadedFile) *dto.DocumentResponse {
	return &dto.DocumentResponse{
		Id:             f.Id,
		Filename:       f.Filename,
		URL:            f.URL,
		Status:         f.Status,
		PagesProcessed: f.PagesProcessed,
		PagesSkipped:   f.PagesSkipped,
		ChunksAdded:    f.ChunksAdded,
		UploadedAt:     f.CreatedAt,
	}
}
