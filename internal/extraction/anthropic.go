package extraction

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

type AnthropicExtractor struct {
	client anthropic.Client
	model  string
}

func NewAnthropicExtractor(apiKey, model string) *AnthropicExtractor {
	if model == "" {
		model = "claude-3-haiku-20240307"
	}
	return &AnthropicExtractor{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

func (e *AnthropicExtractor) Name() string { return "anthropic" }

func (e *AnthropicExtractor) Extract(ctx context.Context, req Request) (*Result, error) {
	resp, err := e.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(e.model),
		MaxTokens: 1024,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt(req.Content))),
		},
	})
	if err != nil {
		return nil, classifyAnthropic(err)
	}

	text := ""
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	res, err := parseResult(text)
	if err != nil {
		return nil, fmt.Errorf("anthropic extract: %w", err)
	}
	return res, nil
}

func classifyAnthropic(err error) error {
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		switch {
		case apierr.StatusCode == http.StatusRequestTimeout,
			apierr.StatusCode == http.StatusTooManyRequests,
			apierr.StatusCode >= 500:
			return fmt.Errorf("anthropic extract: %w", err)
		case apierr.StatusCode >= 400:
			return permanentErr("anthropic rejected content (%d): %v", apierr.StatusCode, err)
		}
	}
	return fmt.Errorf("anthropic extract: %w", err)
}
