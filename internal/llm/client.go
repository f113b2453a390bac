// Package llm classifies borderline articles through an OpenAI-compatible
// chat completions endpoint.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultModel   = "gpt-4o-mini"
	DefaultTimeout = 20 * time.Second

	// NoCategory is the sentinel the model returns when the article fits
	// none of the taxonomy labels.
	NoCategory = "none"

	systemPrompt = "You classify news articles into exactly one category. " +
		"Answer with a single lowercase word from the allowed list, or the word none if no category fits. " +
		"Do not explain."
)

// Client calls a chat completions API to resolve borderline classifications.
type Client struct {
	endpoint   string
	model      string
	apiKey     string
	httpClient *http.Client
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func NewClient(endpoint, apiKey, model string, timeout time.Duration) *Client {
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		endpoint:   strings.TrimSpace(endpoint),
		model:      model,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Configured reports whether the client has enough settings to make calls.
// An unconfigured client is a valid state: the caller then discards
// borderline articles instead of escalating them.
func (c *Client) Configured() bool {
	return c != nil && c.endpoint != "" && c.apiKey != ""
}

// ClassifyArticle asks the model to pick one of the allowed categories for
// the article. It returns one of the allowed labels, or NoCategory when the
// model declines or answers outside the list.
func (c *Client) ClassifyArticle(ctx context.Context, title, summary string, allowed []string) (string, error) {
	if !c.Configured() {
		return "", fmt.Errorf("llm client is not configured")
	}

	var prompt strings.Builder
	prompt.WriteString("Allowed categories: ")
	prompt.WriteString(strings.Join(allowed, ", "))
	prompt.WriteString("\n\nTitle: ")
	prompt.WriteString(strings.TrimSpace(title))
	if s := strings.TrimSpace(summary); s != "" {
		prompt.WriteString("\nSummary: ")
		prompt.WriteString(s)
	}

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt.String()},
		},
		Temperature: 0,
		MaxTokens:   8,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("chat completions status %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read chat response: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("chat response has no choices")
	}

	answer := strings.ToLower(strings.TrimSpace(parsed.Choices[0].Message.Content))
	answer = strings.Trim(answer, ".\"'")
	for _, label := range allowed {
		if answer == label {
			return label, nil
		}
	}
	return NoCategory, nil
}
