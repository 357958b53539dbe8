package controller

import (
	"bufio"
	"log"

	"ai-docqa-be/internal/dto"
	"ai-docqa-be/internal/pkg/serverutils"
	"ai-docqa-be/internal/service"
	"ai-docqa-be/pkg/llm"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
)

type IChatController interface {
	RegisterRoutes(r fiber.Router)
	AskDocuments(ctx *fiber.Ctx) error
	Chat(ctx *fiber.Ctx) error
}

type chatController struct {
	chatService service.IChatService
}

func NewChatController(chatService service.IChatService) IChatController {
	return &chatController{
		chatService: chatService,
	}
}

func (c *chatController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/chat/v1")
	h.Use(serverutils.JwtMiddleware)
	h.Post("ask", c.AskDocuments)
	h.Post("", c.Chat)
}

// AskDocuments streams the answer as plain text chunks. Strategy selection
// and context assembly happen before the stream starts, so classification
// failures still produce a proper error status instead of a broken stream.
func (c *chatController) AskDocuments(ctx *fiber.Ctx) error {
	var req dto.AskDocumentRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	stream, err := c.chatService.AskDocuments(ctx.Context(), req.DocumentIds, req.Query)
	if err != nil {
		return err
	}

	return streamResponse(ctx, stream)
}

func (c *chatController) Chat(ctx *fiber.Ctx) error {
	var req dto.ChatRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	stream, err := c.chatService.Chat(ctx.Context(), req.Prompt, req.Model)
	if err != nil {
		return err
	}

	return streamResponse(ctx, stream)
}

// streamResponse forwards deltas to the client as they arrive. Output
// already written is never retracted; a mid-stream backend failure truncates
// the response and is logged, matching the byte-stream contract.
func streamResponse(ctx *fiber.Ctx, stream <-chan llm.StreamDelta) error {
	ctx.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	ctx.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		for delta := range stream {
			if delta.Err != nil {
				log.Printf("[CHAT] stream terminated: %v", delta.Err)
				return
			}
			if _, err := w.WriteString(delta.Content); err != nil {
				// Client disconnected; the producer stops via context
				// cancellation.
				return
			}
			if err := w.Flush(); err != nil {
				return
			}
		}
	}))
	return nil
}
