package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrEmptyReply is returned when the oracle answered without any content.
var ErrEmptyReply = errors.New("oracle returned an empty reply")

// OllamaConfig configures an OllamaClient.
type OllamaConfig struct {
	Endpoint      string
	Model         string
	Timeout       time.Duration
	ContextWindow int
}

// OllamaClient calls the /api/chat endpoint of an Ollama server with
// streaming disabled and JSON output forced.
type OllamaClient struct {
	baseURL       string
	model         string
	contextWindow int
	http          *http.Client
}

func NewOllamaClient(cfg OllamaConfig) *OllamaClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OllamaClient{
		baseURL:       strings.TrimRight(cfg.Endpoint, "/"),
		model:         cfg.Model,
		contextWindow: cfg.ContextWindow,
		http:          &http.Client{Timeout: timeout},
	}
}

// Model returns the model identifier sent with each request.
func (c *OllamaClient) Model() string {
	return c.model
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
	NumCtx      int     `json:"num_ctx,omitempty"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Options  chatOptions   `json:"options"`
	Format   string        `json:"format"`
	Stream   bool          `json:"stream"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
}

// Infer sends the instructions as the system message and the schema plus
// announcement as the user message, and returns the reply content.
func (c *OllamaClient) Infer(ctx context.Context, req Request) ([]byte, error) {
	payload := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: req.Instructions},
			{Role: "user", Content: UserContent(req)},
		},
		Options: chatOptions{
			Temperature: req.Temperature,
			NumPredict:  req.MaxTokens,
			NumCtx:      c.contextWindow,
		},
		Format: "json",
		Stream: false,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("oracle request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return nil, fmt.Errorf("failed to decode chat response: %w", err)
	}
	content := strings.TrimSpace(cr.Message.Content)
	if content == "" {
		return nil, ErrEmptyReply
	}
	return []byte(content), nil
}

// UserContent renders the user message: the schema followed by the
// announcement.
func UserContent(req Request) string {
	return fmt.Sprintf("Schema:\n%s\n\nAnnouncement:\n%s", req.Schema, req.Input)
}
