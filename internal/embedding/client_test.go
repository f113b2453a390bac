package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func vectorOfDim(dim int) []float64 {
	v := make([]float64, dim)
	v[0] = 1
	return v
}

func TestEmbedReturnsVector(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Texts) != 1 {
			t.Errorf("expected one text, got %d", len(req.Texts))
		}
		_ = json.NewEncoder(w).Encode(embedResponse{
			Embeddings: [][]float64{vectorOfDim(VectorDimensions)},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL+"/embed", "", time.Second)
	vector, err := client.Embed(context.Background(), "cricket final tonight")
	if err != nil {
		t.Fatalf("unexpected embed error: %v", err)
	}
	if len(vector) != VectorDimensions {
		t.Fatalf("expected %d dimensions, got %d", VectorDimensions, len(vector))
	}
}

func TestEmbedOpenAICompatibleResponse(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if len(req.Input) != 1 {
			t.Errorf("expected OpenAI-style input field, got %+v", req)
		}
		_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":` + encodeFloats(vectorOfDim(VectorDimensions)) + `}]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL+"/v1/embeddings", "", time.Second)
	vector, err := client.Embed(context.Background(), "cricket final tonight")
	if err != nil {
		t.Fatalf("unexpected embed error: %v", err)
	}
	if len(vector) != VectorDimensions {
		t.Fatalf("expected %d dimensions, got %d", VectorDimensions, len(vector))
	}
}

func encodeFloats(values []float64) string {
	payload, _ := json.Marshal(values)
	return string(payload)
}

func TestEmbedThrottleResponse(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(server.URL+"/embed", "", time.Second)
	_, err := client.Embed(context.Background(), "cricket")
	if !IsThrottle(err) {
		t.Fatalf("expected throttle error, got %v", err)
	}
}

func TestEmbedServerErrorIsNotThrottle(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL+"/embed", "", time.Second)
	_, err := client.Embed(context.Background(), "cricket")
	if err == nil || IsThrottle(err) {
		t.Fatalf("expected permanent error, got %v", err)
	}
}

func TestEmbedRejectsDimensionMismatch(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(embedResponse{
			Embeddings: [][]float64{{0.1, 0.2, 0.3}},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL+"/embed", "", time.Second)
	if _, err := client.Embed(context.Background(), "cricket"); err == nil {
		t.Fatalf("expected dimension mismatch error")
	}
}

func TestEmbedRejectsEmptyInput(t *testing.T) {
	t.Parallel()

	client := NewClient("http://127.0.0.1:1/embed", "", time.Second)
	if _, err := client.Embed(context.Background(), "   "); err == nil {
		t.Fatalf("expected empty input error before any network call")
	}
}

func TestNormalizeEndpoint(t *testing.T) {
	t.Parallel()

	if got := normalizeEndpoint("http://127.0.0.1:8844"); got != "http://127.0.0.1:8844/embed" {
		t.Fatalf("unexpected endpoint normalization: %q", got)
	}
	if got := normalizeEndpoint("http://127.0.0.1:8844/v1/embeddings"); got != "http://127.0.0.1:8844/v1/embeddings" {
		t.Fatalf("unexpected endpoint normalization for explicit path: %q", got)
	}
	if got := normalizeEndpoint(""); got != DefaultEndpoint {
		t.Fatalf("expected default endpoint, got %q", got)
	}
}

func TestToVectorLiteral(t *testing.T) {
	t.Parallel()

	literal, err := ToVectorLiteral(vectorOfDim(VectorDimensions))
	if err != nil {
		t.Fatalf("unexpected literal error: %v", err)
	}
	if !strings.HasPrefix(literal, "[1,") || !strings.HasSuffix(literal, "]") {
		t.Fatalf("unexpected literal shape: %.32s...", literal)
	}

	if _, err := ToVectorLiteral([]float64{0.1, 0.2}); err == nil {
		t.Fatalf("expected dimension validation error for short vector")
	}
}

func TestTruncateInputBound(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("x", MaxInputChars+100)
	if got := truncateInput(long); len(got) != MaxInputChars {
		t.Fatalf("expected truncation to %d chars, got %d", MaxInputChars, len(got))
	}
}
