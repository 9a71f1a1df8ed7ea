package openai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/kirillkom/plainlaw/internal/core/domain"
	"github.com/kirillkom/plainlaw/internal/core/ports"
	"github.com/kirillkom/plainlaw/internal/infrastructure/resilience"
)

const (
	DefaultBaseURL = "https://api.deepseek.com/v1"
	DefaultModel   = "deepseek-chat"
)

// Client is a CompletionService for any OpenAI-compatible chat endpoint.
type Client struct {
	api      *goopenai.Client
	model    string
	executor *resilience.Executor
}

func New(baseURL, apiKey, model string, executor *resilience.Executor) *Client {
	config := goopenai.DefaultConfig(apiKey)
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	config.BaseURL = strings.TrimRight(baseURL, "/")
	config.HTTPClient = &http.Client{Timeout: 120 * time.Second}
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}
	return &Client{
		api:      goopenai.NewClientWithConfig(config),
		model:    model,
		executor: executor,
	}
}

func (c *Client) Complete(ctx context.Context, req ports.CompletionRequest) (string, error) {
	operation := strings.TrimSpace(req.Operation)
	if operation == "" {
		operation = "complete"
	}

	messages := make([]goopenai.ChatCompletionMessage, 0, 2)
	if strings.TrimSpace(req.System) != "" {
		messages = append(messages, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleSystem, Content: req.System})
	}
	messages = append(messages, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleUser, Content: req.Prompt})

	chatReq := goopenai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.JSON {
		chatReq.ResponseFormat = &goopenai.ChatCompletionResponseFormat{Type: goopenai.ChatCompletionResponseFormatTypeJSONObject}
	}

	resp, err := resilience.Call(ctx, c.executor, "openai."+operation, func(callCtx context.Context) (goopenai.ChatCompletionResponse, error) {
		return c.api.CreateChatCompletion(callCtx, chatReq)
	}, classifyOpenAIError)
	if err != nil {
		return "", wrapCompletionError(operation, err)
	}

	if len(resp.Choices) == 0 {
		return "", domain.WrapError(domain.ErrMalformedCompletion, operation, errors.New("no choices in response"))
	}
	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	if out == "" {
		return "", domain.WrapError(domain.ErrMalformedCompletion, operation, errors.New("empty message content"))
	}
	return out, nil
}
