package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"NeoX-Agent/internal/llm"
)

func completion(content string) map[string]any {
	return map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "gpt-4o-mini",
		"choices": []map[string]any{
			{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			},
		},
		"usage": map[string]any{"prompt_tokens": 3, "completion_tokens": 2, "total_tokens": 5},
	}
}

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Fatalf("expected error when api key is missing")
	}
}

func TestGenerateTextSuccess(t *testing.T) {
	var captured struct {
		Authorization string
		Path          string
		Body          map[string]any
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.Authorization = r.Header.Get("Authorization")
		captured.Path = r.URL.Path
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&captured.Body); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(completion("  hi there  "))
	}))
	defer srv.Close()

	client, err := NewClient(Config{APIKey: "test", BaseURL: srv.URL + "/v1", Timeout: time.Second, HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	text, err := client.GenerateText(context.Background(), llm.Request{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hello @neobot"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "hi there" {
		t.Fatalf("unexpected text: %q", text)
	}

	if captured.Authorization != "Bearer test" {
		t.Fatalf("authorization header missing: %q", captured.Authorization)
	}
	if !strings.HasSuffix(captured.Path, "/chat/completions") {
		t.Fatalf("unexpected path: %s", captured.Path)
	}
	if captured.Body["model"] != defaultModelName {
		t.Fatalf("unexpected model: %v", captured.Body["model"])
	}
	messages, _ := captured.Body["messages"].([]any)
	if len(messages) != 1 {
		t.Fatalf("expected exactly one message, got %v", captured.Body["messages"])
	}
	first, _ := messages[0].(map[string]any)
	if first["role"] != "user" || first["content"] != "hello @neobot" {
		t.Fatalf("unexpected message: %+v", first)
	}
}

func TestGenerateTextHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"boom"}}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	client, err := NewClient(Config{APIKey: "test", BaseURL: srv.URL, HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = client.GenerateText(context.Background(), llm.Request{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "test"}},
	})
	if err == nil {
		t.Fatalf("expected error when http status is not success")
	}
}

func TestGenerateTextRequiresMessages(t *testing.T) {
	client, err := NewClient(Config{APIKey: "test"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := client.GenerateText(context.Background(), llm.Request{}); err == nil {
		t.Fatalf("expected error for empty request")
	}
}
