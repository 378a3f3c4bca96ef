// Package llm holds language-model clients: a Perplexity knowledge searcher
// for web-grounded questions and a Gemini client for structured extraction.
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

	"vcscout/internal/config"
	"vcscout/internal/ports"
)

// PerplexityClient implements ports.KnowledgeSearcher against the Perplexity
// OpenAI-compatible chat completions API.
type PerplexityClient struct {
	endpoint   string
	model      string
	apiKey     string
	httpClient *http.Client
}

var _ ports.KnowledgeSearcher = (*PerplexityClient)(nil)

// NewPerplexityClient builds a client from configuration.
func NewPerplexityClient(cfg config.KnowledgeConfig) *PerplexityClient {
	return &PerplexityClient{
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Query posts the prompt as a single user message and returns the first
// choice's content.
func (c *PerplexityClient) Query(ctx context.Context, prompt string) (string, error) {
	if c == nil {
		return "", fmt.Errorf("perplexity client is nil")
	}
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return "", fmt.Errorf("perplexity client misconfigured")
	}

	body, err := json.Marshal(map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal perplexity payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("query perplexity: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("perplexity error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var parsed chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode perplexity response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("perplexity returned no choices")
	}

	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}
