package gemini

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/genai"

	"github.com/yegors/flightbrief/internal/analysis"
	"github.com/yegors/flightbrief/pkg/logger"
)

// DefaultModel is used when neither config nor runtime settings name one
const DefaultModel = "gemini-2.0-flash"

// Client represents a Google Gemini API client
type Client struct {
	client *genai.Client
	logger *logger.Logger
}

// NewClient creates a new Gemini client. baseURL may be empty.
func NewClient(ctx context.Context, apiKey string, logger *logger.Logger, baseURL string, timeout time.Duration) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("gemini API key is required")
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cfg.HTTPOptions.BaseURL = baseURL
	}
	if timeout > 0 {
		cfg.HTTPOptions.Timeout = &timeout
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Client{
		client: client,
		logger: logger.Named("gemini"),
	}, nil
}

// Complete implements analysis.Provider
func (c *Client) Complete(ctx context.Context, prompt analysis.Prompt, model string) (*analysis.Completion, error) {
	if model == "" {
		model = DefaultModel
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(prompt.System, genai.RoleUser),
		ResponseMIMEType:  "application/json",
	}

	resp, err := c.client.Models.GenerateContent(ctx, model, genai.Text(prompt.User), config)
	if err != nil {
		return nil, fmt.Errorf("gemini generate content failed: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return nil, fmt.Errorf("no content in gemini response")
	}

	out := &analysis.Completion{Text: text, Model: resp.ModelVersion}
	if resp.UsageMetadata != nil {
		out.Tokens = int(resp.UsageMetadata.TotalTokenCount)
	}
	if out.Model == "" {
		out.Model = model
	}

	c.logger.Debug("Generate content finished",
		logger.String("model", out.Model),
		logger.Int("tokens", out.Tokens))
	return out, nil
}
