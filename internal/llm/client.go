// Package llm talks to an OpenAI-compatible chat-completions endpoint to score
// translations and write practice paragraphs.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vytor/lingorun/internal/logger"
)

type Options struct {
	URL     string
	APIKey  string
	Model   string
	Timeout time.Duration
}

type Client struct {
	httpClient *http.Client
	url        string
	apiKey     string
	model      string
}

func New(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		url:        opts.URL,
		apiKey:     opts.APIKey,
		model:      opts.Model,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// complete sends a single user prompt and returns the first choice's content.
func (c *Client) complete(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
	log := logger.FromContext(ctx).WithPrefix("llm").WithField("model", c.model)

	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		log.Error("failed to create request: %v", err)
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error("completion request failed: %v", err)
		return "", err
	}
	defer resp.Body.Close()

	log.Debug("completion response received in %v, status=%d", time.Since(start), resp.StatusCode)

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		log.Error("completion request failed: status=%d, body=%s", resp.StatusCode, string(b))
		return "", fmt.Errorf("completion status %d: %s", resp.StatusCode, string(b))
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		log.Error("failed to decode completion response: %v", err)
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("completion returned no choices")
	}
	return out.Choices[0].Message.Content, nil
}
