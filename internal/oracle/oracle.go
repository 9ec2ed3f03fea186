// Package oracle defines the language-model capability used to turn free
// text into JSON, and an HTTP client for an Ollama-compatible endpoint.
package oracle

import (
	"context"
	"encoding/json"
	"fmt"
)

// Request is one inference call.
type Request struct {
	// Instructions is the system prompt.
	Instructions string
	// Schema describes the JSON object the reply must match.
	Schema json.RawMessage
	// Input is the untrusted announcement text.
	Input string
	// Temperature 0 requests deterministic decoding.
	Temperature float64
	// MaxTokens bounds the length of the reply.
	MaxTokens int
}

// Oracle turns a request into the raw body of a JSON reply.
type Oracle interface {
	Infer(ctx context.Context, req Request) ([]byte, error)
}

// Func adapts an ordinary function to the Oracle interface.
type Func func(ctx context.Context, req Request) ([]byte, error)

func (f Func) Infer(ctx context.Context, req Request) ([]byte, error) {
	return f(ctx, req)
}

// StatusError is returned when the oracle answers with a non-success status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("oracle returned status %d: %s", e.StatusCode, e.Body)
}
