package service

import (
	"context"
	"testing"

	"ai-docqa-be/internal/model"
	"ai-docqa-be/internal/repository/memory"
	"ai-docqa-be/pkg/ingest"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFileRepo records which write path a transition used.
type fakeFileRepo struct {
	updateCalls       int
	updateStatusCalls int
	lastStatus        string
	lastRow           *model.UploadedFile
}

func (f *fakeFileRepo) Create(ctx context.Context, file *model.UploadedFile) error { return nil }

func (f *fakeFileRepo) Update(ctx context.Context, file *model.UploadedFile) error {
	f.updateCalls++
	f.lastRow = file
	return nil
}

func (f *fakeFileRepo) Delete(ctx context.Context, id uuid.UUID) error { return nil }

func (f *fakeFileRepo) FindById(ctx context.Context, id uuid.UUID) (*model.UploadedFile, error) {
	return nil, nil
}

func (f *fakeFileRepo) FindAll(ctx context.Context) ([]*model.UploadedFile, error) {
	return nil, nil
}

func (f *fakeFileRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string, lastError string) error {
	f.updateStatusCalls++
	f.lastStatus = status
	return nil
}

func TestTransitionStatusOnlyUsesTargetedUpdate(t *testing.T) {
	repo := &fakeFileRepo{}
	cs := &consumerService{
		fileRepo: repo,
		taskRepo: memory.NewTaskRepository(),
	}
	file := &model.UploadedFile{Id: uuid.New(), Status: model.DocumentStatusUploaded}

	cs.transition(context.Background(), file, model.DocumentStatusExtracting, nil, "")

	assert.Equal(t, 1, repo.updateStatusCalls)
	assert.Equal(t, 0, repo.updateCalls)
	assert.Equal(t, model.DocumentStatusExtracting, repo.lastStatus)

	// The in-memory task status tracks the transition as well.
	status, found := cs.taskRepo.Get(file.Id.String())
	require.True(t, found)
	assert.Equal(t, model.DocumentStatusExtracting, status.Status)
}

func TestTransitionWithResultWritesWholeRow(t *testing.T) {
	repo := &fakeFileRepo{}
	cs := &consumerService{
		fileRepo: repo,
		taskRepo: memory.NewTaskRepository(),
	}
	file := &model.UploadedFile{Id: uuid.New(), Status: model.DocumentStatusIngesting}
	result := &ingest.Result{PagesProcessed: 4, PagesSkipped: 1, ChunksAdded: 12}

	cs.transition(context.Background(), file, model.DocumentStatusReady, result, "")

	assert.Equal(t, 0, repo.updateStatusCalls)
	assert.Equal(t, 1, repo.updateCalls)
	require.NotNil(t, repo.lastRow)
	assert.Equal(t, model.DocumentStatusReady, repo.lastRow.Status)
	assert.Equal(t, 4, repo.lastRow.PagesProcessed)
	assert.Equal(t, 12, repo.lastRow.ChunksAdded)
}
