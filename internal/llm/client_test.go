package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

var allowedCategories = []string{"sports", "music", "finance", "lifestyle"}

func chatServer(t *testing.T, answer string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("missing bearer token")
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Messages) != 2 {
			t.Errorf("expected system and user message, got %d", len(req.Messages))
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"` + answer + `"}}]}`))
	}))
}

func TestClassifyArticleReturnsAllowedLabel(t *testing.T) {
	t.Parallel()

	server := chatServer(t, "Sports.")
	defer server.Close()

	client := NewClient(server.URL, "test-key", "", time.Second)
	label, err := client.ClassifyArticle(context.Background(), "Final tonight", "Big match", allowedCategories)
	if err != nil {
		t.Fatalf("unexpected classify error: %v", err)
	}
	if label != "sports" {
		t.Fatalf("expected normalized sports label, got %q", label)
	}
}

func TestClassifyArticleOutOfListAnswerIsNone(t *testing.T) {
	t.Parallel()

	server := chatServer(t, "politics")
	defer server.Close()

	client := NewClient(server.URL, "test-key", "", time.Second)
	label, err := client.ClassifyArticle(context.Background(), "Election update", "", allowedCategories)
	if err != nil {
		t.Fatalf("unexpected classify error: %v", err)
	}
	if label != NoCategory {
		t.Fatalf("expected none for out-of-list answer, got %q", label)
	}
}

func TestClassifyArticleServerError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", "", time.Second)
	if _, err := client.ClassifyArticle(context.Background(), "t", "", allowedCategories); err == nil {
		t.Fatalf("expected error for non-2xx response")
	}
}

func TestUnconfiguredClient(t *testing.T) {
	t.Parallel()

	client := NewClient("", "", "", time.Second)
	if client.Configured() {
		t.Fatalf("expected unconfigured client")
	}
	if _, err := client.ClassifyArticle(context.Background(), "t", "", allowedCategories); err == nil {
		t.Fatalf("expected error from unconfigured client")
	}
}
