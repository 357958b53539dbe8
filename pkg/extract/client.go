// Package extract turns uploaded files into plain text by dispatching on
// file extension: local read for text files, audio transcription through the
// OpenAI API, and a separate parse service for documents, images and PDFs.
package extract

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const transcriptionURL = "https://api.openai.com/v1/audio/transcriptions"

var audioExtensions = map[string]bool{
	".mp3": true,
	".mp4": true,
	".m4a": true,
	".wav": true,
}

type Client struct {
	parseBaseURL string
	openAIKey    string
	httpClient   *http.Client
	logger       *log.Logger
}

func NewClient(parseBaseURL, openAIKey string, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.Default()
	}
	return &Client{
		parseBaseURL: parseBaseURL,
		openAIKey:    openAIKey,
		httpClient: &http.Client{
			// Large PDFs and long recordings take a while to convert.
			Timeout: 10 * time.Minute,
		},
		logger: logger,
	}
}

// ExtractText converts one local file to plain text. PDF output carries
// `<|startofpage|>` markers between pages; other formats return unpaged
// text.
func (c *Client) ExtractText(ctx context.Context, localPath string) (string, error) {
	ext := strings.ToLower(filepath.Ext(localPath))

	switch {
	case ext == ".txt":
		data, err := os.ReadFile(localPath)
		if err != nil {
			return "", fmt.Errorf("read text file: %w", err)
		}
		return string(data), nil
	case audioExtensions[ext]:
		return c.transcribeAudio(ctx, localPath)
	case ext == ".pdf":
		return c.parsePDFStream(ctx, localPath)
	default:
		return c.parseDocument(ctx, localPath)
	}
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

func (c *Client) transcribeAudio(ctx context.Context, localPath string) (string, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open audio file: %w", err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField("model", "whisper-1"); err != nil {
		return "", fmt.Errorf("write form field: %w", err)
	}
	part, err := writer.CreateFormFile("file", filepath.Base(localPath))
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", fmt.Errorf("copy audio payload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("finish form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", transcriptionURL, &body)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.openAIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcription request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("transcription error: status %d, body: %s", resp.StatusCode, string(bodyBytes))
	}

	var result transcriptionResponse
	if err := json.Unmarshal(bodyBytes, &result); err != nil {
		return "", fmt.Errorf("unmarshal transcription: %w", err)
	}
	return result.Text, nil
}

type parseRequest struct {
	LocalFile string `json:"local_file"`
}

type parseResponse struct {
	LocalTxtFile string `json:"local_txt_file"`
}

// parseDocument asks the parse service to convert an image or office
// document, then reads the text file it produced. The parse service shares
// a filesystem with this process.
func (c *Client) parseDocument(ctx context.Context, localPath string) (string, error) {
	payload, err := json.Marshal(parseRequest{LocalFile: localPath})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.parseBaseURL+"/parse_img_or_doc", bytes.NewBuffer(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("parse request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("parse error: status %d, body: %s", resp.StatusCode, string(bodyBytes))
	}

	var result parseResponse
	if err := json.Unmarshal(bodyBytes, &result); err != nil {
		return "", fmt.Errorf("unmarshal parse response: %w", err)
	}

	data, err := os.ReadFile(result.LocalTxtFile)
	if err != nil {
		return "", fmt.Errorf("read parsed text %s: %w", result.LocalTxtFile, err)
	}
	c.logger.Printf("[EXTRACT] parsed %s, text size %d", filepath.Base(localPath), len(data))
	return string(data), nil
}

// parsePDFStream consumes the parse service's progress stream. Each event
// carries one converted page; a literal "done" event terminates the stream.
func (c *Client) parsePDFStream(ctx context.Context, localPath string) (string, error) {
	endpoint := fmt.Sprintf("%s/parse_pdf_stream?%s", c.parseBaseURL,
		url.Values{"local_file": {localPath}}.Encode())

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("pdf stream request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("pdf stream error: status %d, body: %s", resp.StatusCode, string(bodyBytes))
	}

	var sb strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimPrefix(line, "data:")
		data = strings.TrimPrefix(data, " ")
		if data == "done" {
			return sb.String(), nil
		}
		sb.WriteString(data)
		sb.WriteString("\n")
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read pdf stream: %w", err)
	}
	// Stream ended without the terminal event; treat what arrived as the
	// full text rather than failing the conversion.
	c.logger.Printf("[EXTRACT] pdf stream for %s ended without done event", filepath.Base(localPath))
	return sb.String(), nil
}
