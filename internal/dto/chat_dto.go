package dto

type AskDocumentRequest struct {
	DocumentIds []string `json:"document_ids"`
	Query       string   `json:"query" validate:"required"`
}

type ChatRequest struct {
	Prompt string `json:"prompt" validate:"required"`
	Model  string `json:"model"`
}
