package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"vcscout/internal/config"
	"vcscout/internal/ports"
)

// GeminiClient implements ports.KnowledgeSearcher backed by the Gemini API.
// It is used for structured extraction over page text rather than live web
// search.
type GeminiClient struct {
	model  string
	client *genai.Client
}

var _ ports.KnowledgeSearcher = (*GeminiClient)(nil)

// NewGeminiClient builds the SDK client from configuration.
func NewGeminiClient(ctx context.Context, cfg config.ExtractionConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is not set")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &GeminiClient{model: cfg.Model, client: client}, nil
}

// Query sends the prompt as a single turn and returns the text of the reply.
func (c *GeminiClient) Query(ctx context.Context, prompt string) (string, error) {
	if c == nil || c.client == nil {
		return "", fmt.Errorf("gemini client is nil")
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("gemini returned empty response")
	}
	return text, nil
}
