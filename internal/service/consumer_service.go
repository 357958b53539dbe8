package service

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"ai-docqa-be/internal/dto"
	"ai-docqa-be/internal/model"
	"ai-docqa-be/internal/repository/contract"
	"ai-docqa-be/internal/repository/memory"
	"ai-docqa-be/internal/websocket"
	"ai-docqa-be/pkg/events"
	"ai-docqa-be/pkg/extract"
	"ai-docqa-be/pkg/ingest"
	natsbus "ai-docqa-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

type consumerService struct {
	pubSub    *gochannel.GoChannel
	topicName string
	fileRepo  contract.UploadedFileRepository
	taskRepo  *memory.TaskRepository
	docs      IDocumentService
	extractor *extract.Client
	pipeline  *ingest.Pipeline
	publisher *natsbus.Publisher
	hub       *websocket.Hub
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	fileRepo contract.UploadedFileRepository,
	taskRepo *memory.TaskRepository,
	docs IDocumentService,
	extractor *extract.Client,
	pipeline *ingest.Pipeline,
	publisher *natsbus.Publisher,
	hub *websocket.Hub,
) IConsumerService {
	return &consumerService{
		pubSub:    pubSub,
		topicName: topicName,
		fileRepo:  fileRepo,
		taskRepo:  taskRepo,
		docs:      docs,
		extractor: extractor,
		pipeline:  pipeline,
		publisher: publisher,
		hub:       hub,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.PublishIngestDocumentMessage
	err := json.Unmarshal(msg.Payload, &payload)
	if err != nil {
		log.Printf("[ERROR] Failed to unmarshal message: %v", err)
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	log.Printf("[INFO] Processing document ingestion for DocumentId: %s", payload.DocumentId)

	file, err := cs.fileRepo.FindById(ctx, payload.DocumentId)
	if err != nil {
		log.Printf("[ERROR] Failed to load document %s: %v", payload.DocumentId, err)
		msg.Nack() // Nack for retriable errors
		return
	}
	if file == nil {
		log.Printf("[ERROR] Document not found: %s", payload.DocumentId)
		msg.Ack() // Deleted before processing? Ack.
		return
	}

	// Phase 1: extraction.
	cs.transition(ctx, file, model.DocumentStatusExtracting, nil, "")
	rawText, err := cs.extractor.ExtractText(ctx, file.LocalPath)
	if err != nil {
		log.Printf("[ERROR] Extraction failed for %s: %v", file.Id, err)
		cs.transition(ctx, file, model.DocumentStatusFailed, nil, err.Error())
		msg.Ack() // A broken file stays broken; retrying wastes the converter.
		return
	}
	if err := cs.docs.SaveExtractedText(file.Id.String(), rawText); err != nil {
		log.Printf("[ERROR] Failed to persist extracted text for %s: %v", file.Id, err)
		cs.transition(ctx, file, model.DocumentStatusFailed, nil, err.Error())
		msg.Nack()
		return
	}

	// Phase 2: ingestion.
	cs.transition(ctx, file, model.DocumentStatusIngesting, nil, "")
	result, err := cs.pipeline.Ingest(ctx, file.Id.String(), rawText)
	if err != nil {
		log.Printf("[ERROR] Ingestion failed for %s: %v", file.Id, err)
		cs.transition(ctx, file, model.DocumentStatusFailed, result, err.Error())
		msg.Nack() // Pages already committed stay committed; a retry dedups.
		return
	}

	cs.transition(ctx, file, model.DocumentStatusReady, result, "")
	log.Printf("[INFO] Document %s ready: pages=%d skipped=%d chunks=%d",
		file.Id, result.PagesProcessed, result.PagesSkipped, result.ChunksAdded)

	if cs.publisher != nil {
		event := events.BaseEvent{
			Type: "DOCUMENT_INGESTED",
			Data: map[string]interface{}{
				"document_id":  file.Id.String(),
				"chunks_added": result.ChunksAdded,
			},
			OccurredAt: time.Now(),
		}
		if err := cs.publisher.Publish(ctx, event); err != nil {
			// Observability event only; the ingestion itself succeeded.
			log.Printf("[WARN] Failed to publish DOCUMENT_INGESTED for %s: %v", file.Id, err)
		}
	}

	msg.Ack()
}

// transition records the document's state in the durable registry and the
// polling cache, and pushes it to websocket watchers.
func (cs *consumerService) transition(ctx context.Context, file *model.UploadedFile, status string, result *ingest.Result, lastError string) {
	file.Status = status
	file.LastError = lastError
	if result != nil {
		// Counters changed too, write the whole row.
		file.PagesProcessed = result.PagesProcessed
		file.PagesSkipped = result.PagesSkipped
		file.ChunksAdded = result.ChunksAdded
		if err := cs.fileRepo.Update(ctx, file); err != nil {
			log.Printf("[ERROR] Failed to update document %s: %v", file.Id, err)
		}
	} else {
		// Pure status transition, targeted update leaves counters alone.
		if err := cs.fileRepo.UpdateStatus(ctx, file.Id, status, lastError); err != nil {
			log.Printf("[ERROR] Failed to update document %s status: %v", file.Id, err)
		}
	}

	taskStatus := &memory.TaskStatus{
		DocumentId:     file.Id.String(),
		Status:         status,
		PagesProcessed: file.PagesProcessed,
		PagesSkipped:   file.PagesSkipped,
		ChunksAdded:    file.ChunksAdded,
		Error:          lastError,
	}
	cs.taskRepo.Save(taskStatus)

	if cs.hub != nil {
		cs.hub.Broadcast(dto.IngestionEvent{
			DocumentId:     file.Id,
			Status:         status,
			PagesProcessed: file.PagesProcessed,
			PagesSkipped:   file.PagesSkipped,
			ChunksAdded:    file.ChunksAdded,
			Error:          lastError,
		})
	}
}
