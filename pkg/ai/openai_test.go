package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCompleteReturnsFirstChoice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer key-1" {
			t.Errorf("missing bearer credential, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":" hola "}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient(srv.URL, "key-1", "gpt-4", "")
	got, err := c.Complete(context.Background(), []Message{{Role: "user", Content: "hola"}}, Options{})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got != "hola" {
		t.Fatalf("complete = %q, want %q", got, "hola")
	}
}

func TestCompleteProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited","type":"rate_limit"}}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient(srv.URL, "key-1", "gpt-4", "")
	_, err := c.Complete(context.Background(), []Message{{Role: "user", Content: "hola"}}, Options{})
	var provErr *ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if provErr.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", provErr.StatusCode)
	}
	if provErr.Message != "rate limited" {
		t.Fatalf("message = %q", provErr.Message)
	}
}

func TestCompleteEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient(srv.URL, "key-1", "gpt-4", "")
	_, err := c.Complete(context.Background(), []Message{{Role: "user", Content: "hola"}}, Options{})
	if !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
}

func TestEmbedTextStripsNewlines(t *testing.T) {
	var gotInput string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		gotInput = req.Input
		_, _ = w.Write([]byte(`{"data":[{"embedding":[0.1,0.2,0.3]}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient(srv.URL, "key-1", "", "text-embedding-3-small")
	vec, err := c.EmbedText(context.Background(), "línea uno\nlínea dos")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(vec) != 3 {
		t.Fatalf("vector length = %d, want 3", len(vec))
	}
	if gotInput != "línea uno línea dos" {
		t.Fatalf("input = %q, newlines not stripped", gotInput)
	}
}

func TestSearchReturnsCitations(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"respuesta"}}],"citations":["https://organojudicial.gob.pa/x"]}`))
	}))
	defer srv.Close()

	c, err := NewPerplexityClient(srv.URL, "key-2", "")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	ans, err := c.Search(context.Background(), "sistema", "¿plazo para apelar?", Options{})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if ans.Content != "respuesta" {
		t.Fatalf("content = %q", ans.Content)
	}
	if len(ans.Sources) != 1 || ans.Sources[0] != "https://organojudicial.gob.pa/x" {
		t.Fatalf("sources = %v", ans.Sources)
	}
}
