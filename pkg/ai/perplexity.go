package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	defaultPerplexityBaseURL = "https://api.perplexity.ai"
	defaultPerplexityModel   = "llama-3.1-sonar-small-128k-online"
)

// PerplexityClient calls the Perplexity chat-completions API, whose online
// models answer with live web results and return the consulted pages as
// citations.
type PerplexityClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewPerplexityClient builds a web-search completion client.
func NewPerplexityClient(baseURL, apiKey, model string) (*PerplexityClient, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("perplexity api key required")
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultPerplexityBaseURL
	}
	model = strings.TrimSpace(model)
	if model == "" {
		model = defaultPerplexityModel
	}
	return &PerplexityClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}, nil
}

// Search implements SearchClient. Failure semantics match Complete:
// *ProviderError on HTTP/decoding failure, ErrEmptyResponse on no choices.
func (c *PerplexityClient) Search(ctx context.Context, systemPrompt, query string, opts Options) (SearchAnswer, error) {
	if strings.TrimSpace(query) == "" {
		return SearchAnswer{}, fmt.Errorf("query required")
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = c.model
	}
	messages := make([]Message, 0, 2)
	if strings.TrimSpace(systemPrompt) != "" {
		messages = append(messages, Message{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, Message{Role: "user", Content: query})

	body, err := json.Marshal(chatRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	})
	if err != nil {
		return SearchAnswer{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return SearchAnswer{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return SearchAnswer{}, fmt.Errorf("perplexity request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		return SearchAnswer{}, &ProviderError{Provider: "perplexity", StatusCode: resp.StatusCode, Message: errResp.Error.Message}
	}
	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return SearchAnswer{}, fmt.Errorf("perplexity decode: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return SearchAnswer{}, ErrEmptyResponse
	}
	content := strings.TrimSpace(chatResp.Choices[0].Message.Content)
	if content == "" {
		return SearchAnswer{}, ErrEmptyResponse
	}
	return SearchAnswer{Content: content, Sources: chatResp.Citations}, nil
}
