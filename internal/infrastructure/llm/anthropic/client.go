package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	lcanthropic "github.com/tmc/langchaingo/llms/anthropic"

	"github.com/kirillkom/knowledge-pipeline/internal/infrastructure/llm"
)

var ErrMissingAPIKey = errors.New("anthropic api key required")

// Client adapts a langchaingo Anthropic model to llm.Completer.
type Client struct {
	model     llms.Model
	modelName string
}

func New(apiKey, model string, opts ...lcanthropic.Option) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrMissingAPIKey
	}
	options := append([]lcanthropic.Option{
		lcanthropic.WithToken(apiKey),
		lcanthropic.WithModel(model),
	}, opts...)
	m, err := lcanthropic.New(options...)
	if err != nil {
		return nil, fmt.Errorf("create anthropic model: %w", err)
	}
	return &Client{model: m, modelName: model}, nil
}

func (c *Client) Model() string {
	return c.modelName
}

func (c *Client) Complete(ctx context.Context, req llm.Request) (string, error) {
	var callOpts []llms.CallOption
	if req.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(req.MaxTokens))
	}
	if req.Temperature > 0 {
		callOpts = append(callOpts, llms.WithTemperature(req.Temperature))
	}

	resp, err := c.model.GenerateContent(ctx, buildMessages(req), callOpts...)
	if err != nil {
		return "", fmt.Errorf("anthropic %s: %w", req.Operation, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("anthropic %s: no response choices", req.Operation)
	}
	return strings.TrimSpace(resp.Choices[0].Content), nil
}

func buildMessages(req llm.Request) []llms.MessageContent {
	messages := make([]llms.MessageContent, 0, 2)
	if req.System != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, req.System))
	}

	parts := make([]llms.ContentPart, 0, 2)
	if req.Image != nil {
		parts = append(parts, llms.BinaryPart(req.Image.MediaType, req.Image.Data))
	}
	parts = append(parts, llms.TextPart(req.Prompt))
	messages = append(messages, llms.MessageContent{Role: llms.ChatMessageTypeHuman, Parts: parts})
	return messages
}
