package service

import (
	"context"

	"ai-docqa-be/internal/pkg/logger"
	"ai-docqa-be/pkg/llm"
	"ai-docqa-be/pkg/rag/router"
)

type IChatService interface {
	// AskDocuments answers a question about selected documents with a
	// streamed completion. With no documents selected the question goes
	// straight to the completion backend.
	AskDocuments(ctx context.Context, documentIds []string, query string) (<-chan llm.StreamDelta, error)

	// Chat is the plain passthrough: no retrieval, the prompt goes straight
	// to the completion backend.
	Chat(ctx context.Context, prompt string, modelName string) (<-chan llm.StreamDelta, error)
}

type chatService struct {
	router      *router.Router
	llmProvider llm.LLMProvider
	logger      logger.ILogger
}

func NewChatService(r *router.Router, llmProvider llm.LLMProvider, log logger.ILogger) IChatService {
	return &chatService{
		router:      r,
		llmProvider: llmProvider,
		logger:      log,
	}
}

func (s *chatService) AskDocuments(ctx context.Context, documentIds []string, query string) (<-chan llm.StreamDelta, error) {
	if len(documentIds) == 0 {
		s.logger.Info("ChatService", "No documents selected, plain completion", map[string]interface{}{
			"query_len": len(query),
		})
		return s.Chat(ctx, query, "")
	}

	s.logger.Info("ChatService", "Answering document question", map[string]interface{}{
		"document_ids": documentIds,
		"query_len":    len(query),
	})
	return s.router.Answer(ctx, documentIds, query)
}

func (s *chatService) Chat(ctx context.Context, prompt string, modelName string) (<-chan llm.StreamDelta, error) {
	var opts []llm.Option
	if modelName != "" {
		opts = append(opts, llm.WithModel(modelName))
	}
	return s.llmProvider.ChatStream(ctx, []llm.Message{{Role: "user", Content: prompt}}, opts...)
}
