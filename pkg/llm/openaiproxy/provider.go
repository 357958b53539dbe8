// Package openaiproxy talks to a completion relay that fronts the OpenAI
// API. The relay accepts a flattened prompt and answers with a raw text
// byte stream, which keeps API credentials off the application hosts.
package openaiproxy

import (
	"ai-docqa-be/pkg/llm"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultModel = "gpt-3.5-turbo"

type ProxyProvider struct {
	BaseURL   string
	ModelName string
	Client    *http.Client
}

var _ llm.LLMProvider = &ProxyProvider{}

func NewProxyProvider(baseURL, modelName string) *ProxyProvider {
	if modelName == "" {
		modelName = defaultModel
	}
	return &ProxyProvider{
		BaseURL:   baseURL,
		ModelName: modelName,
		Client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

type proxyRequest struct {
	Prompt string `json:"prompt"`
	User   string `json:"user,omitempty"`
	Model  string `json:"model"`
}

// flattenHistory folds a chat history into the single prompt the relay
// expects. System and assistant turns are labelled so the model keeps the
// conversational frame.
func flattenHistory(history []llm.Message) string {
	if len(history) == 1 && history[0].Role == "user" {
		return history[0].Content
	}
	var sb strings.Builder
	for _, msg := range history {
		switch msg.Role {
		case "system":
			sb.WriteString(msg.Content)
			sb.WriteString("\n\n")
		case "assistant", "model":
			sb.WriteString("Assistant: ")
			sb.WriteString(msg.Content)
			sb.WriteString("\n")
		default:
			sb.WriteString("User: ")
			sb.WriteString(msg.Content)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func (p *ProxyProvider) buildRequest(ctx context.Context, history []llm.Message, opts ...llm.Option) (*http.Request, error) {
	options := &llm.Options{}
	for _, opt := range opts {
		opt(options)
	}

	model := p.ModelName
	if options.Model != "" {
		model = options.Model
	}

	payload := proxyRequest{
		Prompt: flattenHistory(history),
		User:   options.User,
		Model:  model,
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.BaseURL, bytes.NewBuffer(payloadBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (p *ProxyProvider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	req, err := p.buildRequest(ctx, history, opts...)
	if err != nil {
		return "", err
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("proxy request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("proxy error: status %d, body: %s", resp.StatusCode, string(bodyBytes))
	}
	return string(bodyBytes), nil
}

// ChatStream forwards the relay's raw byte stream. The relay emits plain
// UTF-8 text with no framing, so each read becomes one delta.
func (p *ProxyProvider) ChatStream(ctx context.Context, history []llm.Message, opts ...llm.Option) (<-chan llm.StreamDelta, error) {
	req, err := p.buildRequest(ctx, history, opts...)
	if err != nil {
		return nil, err
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("proxy request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("proxy error: status %d, body: %s", resp.StatusCode, string(bodyBytes))
	}

	out := make(chan llm.StreamDelta)
	go func() {
		defer close(out)
		defer resp.Body.Close()

		buf := make([]byte, 4096)
		for {
			n, err := resp.Body.Read(buf)
			if n > 0 {
				select {
				case out <- llm.StreamDelta{Content: string(buf[:n])}:
				case <-ctx.Done():
					return
				}
			}
			if err == io.EOF {
				return
			}
			if err != nil {
				// Same cancellation guard as the content send; nobody may
				// be reading anymore.
				select {
				case out <- llm.StreamDelta{Err: fmt.Errorf("read stream: %w", err)}:
				case <-ctx.Done():
				}
				return
			}
		}
	}()

	return out, nil
}

func (p *ProxyProvider) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	return p.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}}, opts...)
}
