package core

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mohammad-safakhou/techbrief/config"
)

func TestOpenAICompatProviderComplete(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&attempts, 1)
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("missing bearer token")
		}
		var req chatReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request on attempt %d: %v", n, err)
		}
		if n == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Model != "llama-3.3-70b-versatile" {
			t.Errorf("unexpected request %+v", req)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model":   req.Model,
			"choices": []map[string]any{{"message": map[string]string{"content": `{"ok":true}`}}},
			"usage":   map[string]int{"prompt_tokens": 1000, "completion_tokens": 500},
		})
	}))
	defer srv.Close()

	p := NewOpenAICompatProvider("groq", config.LLMProvider{
		Type:            "groq",
		APIKey:          "secret",
		BaseURL:         srv.URL + "/v1/",
		Model:           "llama-3.3-70b-versatile",
		MaxRetries:      1,
		Timeout:         5 * time.Second,
		CostPer1K:       0.5,
		CostPer1KOutput: 1,
	})
	p.http.backoff = time.Millisecond
	c, err := p.Complete(context.Background(), Prompt{System: "json only", User: "hi", MaxTokens: 64, Temperature: 0.2})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if c.Text != `{"ok":true}` || c.InputTokens != 1000 || c.OutputTokens != 500 {
		t.Fatalf("unexpected completion %+v", c)
	}
	if c.Cost != 1.0 {
		t.Fatalf("expected cost 1.0, got %v", c.Cost)
	}
	if atomic.LoadInt32(&attempts) != 2 {
		t.Fatalf("expected one retry, got %d attempts", attempts)
	}
}

func TestOpenAICompatProviderClientErrorIsNotRetried(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := NewOpenAICompatProvider("openai", config.LLMProvider{Type: "openai", APIKey: "k", BaseURL: srv.URL, MaxRetries: 3})
	_, err := p.Complete(context.Background(), Prompt{User: "hi"})
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 status error, got %v", err)
	}
	if atomic.LoadInt32(&attempts) != 1 {
		t.Fatalf("expected no retries, got %d attempts", attempts)
	}
}

func TestProvidersWithoutKeysAreUnavailable(t *testing.T) {
	cfg := config.LLMConfig{Providers: map[string]config.LLMProvider{
		"groq":      {Type: "groq"},
		"anthropic": {Type: "anthropic"},
		"gemini":    {Type: "gemini"},
	}}.Normalize()
	providers, err := NewProviders(cfg)
	if err != nil {
		t.Fatalf("NewProviders: %v", err)
	}
	for name, p := range providers {
		if p.Available() {
			t.Fatalf("%s should be unavailable without a key", name)
		}
		if _, err := p.Complete(context.Background(), Prompt{User: "x"}); !errors.Is(err, ErrProviderUnavailable) {
			t.Fatalf("%s: expected ErrProviderUnavailable, got %v", name, err)
		}
	}
}

func TestNewProviderRejectsUnknownType(t *testing.T) {
	if _, err := NewProvider("x", config.LLMProvider{Type: "cohere"}); err == nil {
		t.Fatalf("expected error for unknown provider type")
	}
}
