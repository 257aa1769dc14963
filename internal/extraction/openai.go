package extraction

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

type OpenAIExtractor struct {
	client *openai.Client
	model  string
}

func NewOpenAIExtractor(apiKey, model string) *OpenAIExtractor {
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIExtractor{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

func (e *OpenAIExtractor) Name() string { return "openai" }

func (e *OpenAIExtractor) Extract(ctx context.Context, req Request) (*Result, error) {
	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt(req.Content)},
		},
		Temperature: 0.1,
	})
	if err != nil {
		return nil, classifyOpenAI(err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai extract: empty response")
	}

	res, err := parseResult(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, fmt.Errorf("openai extract: %w", err)
	}
	return res, nil
}

func classifyOpenAI(err error) error {
	var apierr *openai.APIError
	if errors.As(err, &apierr) {
		switch {
		case apierr.HTTPStatusCode == http.StatusRequestTimeout,
			apierr.HTTPStatusCode == http.StatusTooManyRequests,
			apierr.HTTPStatusCode >= 500:
			return fmt.Errorf("openai extract: %w", err)
		case apierr.HTTPStatusCode >= 400:
			return permanentErr("openai rejected content (%d): %v", apierr.HTTPStatusCode, err)
		}
	}
	return fmt.Errorf("openai extract: %w", err)
}
