// Package openai summarizes articles with the OpenAI chat completions API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/deusflow/newsbrief/internal/retry"
	"github.com/deusflow/newsbrief/internal/summary"
)

const DefaultModel = "gpt-4o-mini"

type Client struct {
	client    *openai.Client
	model     string
	maxTokens int
	retry     retry.Config
}

// NewClient creates a client for apiKey. baseURL may be empty; it is set in
// tests and for OpenAI-compatible gateways.
func NewClient(apiKey, model, baseURL string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("OPENAI_API_KEY is required")
	}
	if model == "" {
		model = DefaultModel
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Client{
		client:    openai.NewClientWithConfig(cfg),
		model:     model,
		maxTokens: 600,
		retry:     retry.Default,
	}, nil
}

func (c *Client) Summarize(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", summary.ErrNoContent
	}

	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: summary.Prompt(text),
			},
		},
		MaxCompletionTokens: c.maxTokens,
	}

	var out string
	err := retry.WithRetry(ctx, c.retry, func() error {
		resp, err := c.client.CreateChatCompletion(ctx, req)
		if err != nil {
			var apiErr *openai.APIError
			if errors.As(err, &apiErr) && apiErr.HTTPStatusCode >= 400 && apiErr.HTTPStatusCode < 500 && apiErr.HTTPStatusCode != 429 {
				return retry.Permanent(err)
			}
			return err
		}
		if len(resp.Choices) == 0 {
			return errors.New("no response from OpenAI")
		}
		out = strings.TrimSpace(resp.Choices[0].Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("openai: %w", err)
	}
	return out, nil
}
