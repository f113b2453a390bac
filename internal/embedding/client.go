// Package embedding calls an HTTP embedding service and converts its vectors
// into pgvector literals.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultEndpoint       = "http://127.0.0.1:8844/embed"
	DefaultRequestTimeout = 45 * time.Second

	// VectorDimensions is fixed by the embedding model and by the vector
	// column type in storage.
	VectorDimensions = 1024

	// MaxInputChars truncates oversized inputs before the request.
	MaxInputChars = 30000
)

// ThrottleError marks a rate-limit rejection from the embedding service.
// Callers treat it as transient and retry with their own budget.
type ThrottleError struct {
	StatusCode int
	Message    string
}

func (e *ThrottleError) Error() string {
	return fmt.Sprintf("embedding service throttled (status %d): %s", e.StatusCode, e.Message)
}

// IsThrottle reports whether err is a rate-limit rejection.
func IsThrottle(err error) bool {
	var throttle *ThrottleError
	return errors.As(err, &throttle)
}

// Client is a thin HTTP client for a single-text embedding endpoint. The
// endpoint accepts either {"texts": [...]} or, when its path ends with
// /v1/embeddings, the OpenAI-compatible {"input": [...]}.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

type embedRequest struct {
	Texts []string `json:"texts,omitempty"`
	Input []string `json:"input,omitempty"`
}

type embedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
	Data       []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

func NewClient(endpoint, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &Client{
		endpoint:   normalizeEndpoint(endpoint),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Endpoint returns the normalized endpoint URL the client calls.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Embed requests a vector for one text. The text is truncated to
// MaxInputChars before the call. Rate-limit responses come back as
// *ThrottleError; every other failure is permanent from the caller's view.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	text = truncateInput(text)
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("embedding input is empty")
	}

	payload := embedRequest{Texts: []string{text}}
	parsedEndpoint, err := url.Parse(c.endpoint)
	if err == nil && strings.HasSuffix(parsedEndpoint.Path, "/v1/embeddings") {
		payload = embedRequest{Input: []string{text}}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read embedding response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
		return nil, &ThrottleError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(respBody)),
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("embedding service status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var parsed embedResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("decode embedding response: %w", err)
	}

	vectors := parsed.Embeddings
	if len(vectors) == 0 && len(parsed.Data) > 0 {
		sort.Slice(parsed.Data, func(i, j int) bool {
			return parsed.Data[i].Index < parsed.Data[j].Index
		})
		vectors = make([][]float64, 0, len(parsed.Data))
		for _, row := range parsed.Data {
			vectors = append(vectors, row.Embedding)
		}
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedding response vector count mismatch: requested=1 returned=%d", len(vectors))
	}
	if len(vectors[0]) != VectorDimensions {
		return nil, fmt.Errorf("embedding has %d dimensions, expected %d", len(vectors[0]), VectorDimensions)
	}

	return vectors[0], nil
}

func truncateInput(text string) string {
	if len(text) <= MaxInputChars {
		return text
	}
	runes := []rune(text)
	if len(runes) <= MaxInputChars {
		return text
	}
	return string(runes[:MaxInputChars])
}

func normalizeEndpoint(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return DefaultEndpoint
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return trimmed
	}
	if parsed.Path == "" || parsed.Path == "/" {
		parsed.Path = "/embed"
	}
	return parsed.String()
}

// ToVectorLiteral renders a vector as a pgvector text literal for use with a
// ::vector cast in SQL.
func ToVectorLiteral(values []float64) (string, error) {
	if len(values) != VectorDimensions {
		return "", fmt.Errorf("expected %d dimensions, got %d", VectorDimensions, len(values))
	}

	var builder strings.Builder
	builder.Grow(len(values) * 8)
	builder.WriteByte('[')
	for i, value := range values {
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return "", fmt.Errorf("vector has non-finite value at index %d", i)
		}
		if i > 0 {
			builder.WriteByte(',')
		}
		builder.WriteString(strconv.FormatFloat(value, 'f', -1, 64))
	}
	builder.WriteByte(']')
	return builder.String(), nil
}
