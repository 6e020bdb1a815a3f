// Package ai wraps the LLM provider HTTP APIs: chat completions,
// web-search completions with citations, and text embeddings.
package ai

import (
	"context"
	"errors"
	"fmt"
)

// ErrEmptyResponse is returned when a provider answers 2xx with no choices.
var ErrEmptyResponse = errors.New("empty response from provider")

// ProviderError carries the HTTP status of a failed provider call.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s api error (status %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s api error (status %d)", e.Provider, e.StatusCode)
}

// Message is one role/content pair in a chat-completions request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options tune a single completion call. Zero values fall back to
// provider-side defaults.
type Options struct {
	Model       string
	MaxTokens   int
	Temperature float64
}

// CompletionClient generates text from an ordered message list.
type CompletionClient interface {
	Complete(ctx context.Context, messages []Message, opts Options) (string, error)
}

// Embedder converts text into a fixed-length vector.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// SearchAnswer is a web-search completion: generated text plus the pages
// the provider consulted.
type SearchAnswer struct {
	Content string
	Sources []string
}

// SearchClient generates answers grounded in live web results.
type SearchClient interface {
	Search(ctx context.Context, systemPrompt, query string, opts Options) (SearchAnswer, error)
}
