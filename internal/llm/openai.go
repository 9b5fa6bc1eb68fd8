package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

const defaultOpenAIModel = "gpt-4o-mini"

// OpenAI is a Completer backed by any OpenAI-compatible chat endpoint.
type OpenAI struct {
	client *openai.Client
	model  string
}

// NewOpenAI builds a client. An empty baseURL targets api.openai.com.
func NewOpenAI(apiKey, baseURL, model string) *OpenAI {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAI{client: openai.NewClientWithConfig(cfg), model: model}
}

func (o *OpenAI) Complete(ctx context.Context, req Request) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		MaxTokens:   req.MaxTokens,
		Temperature: float32(req.Temperature),
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.User},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", classifyOpenAI(err))
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("chat completion: empty response: %w", ErrUnavailable)
	}
	return resp.Choices[0].Message.Content, nil
}

func classifyOpenAI(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if mapped := StatusError(apiErr.HTTPStatusCode); mapped != nil {
			return fmt.Errorf("%w: %s", mapped, apiErr.Message)
		}
		return err
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if mapped := StatusError(reqErr.HTTPStatusCode); mapped != nil {
			return fmt.Errorf("%w: status %d", mapped, reqErr.HTTPStatusCode)
		}
		return err
	}
	// transport failures and context expiry
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}
