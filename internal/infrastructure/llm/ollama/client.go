package ollama

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/plainlaw/internal/core/domain"
	"github.com/kirillkom/plainlaw/internal/core/ports"
	"github.com/kirillkom/plainlaw/internal/infrastructure/resilience"
)

// Client is a CompletionService backed by a local Ollama server.
type Client struct {
	baseURL    string
	genModel   string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, genModel string) *Client {
	return NewWithResilience(baseURL, genModel, nil)
}

func NewWithResilience(baseURL, genModel string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		executor:   executor,
	}
}

type generateRequest struct {
	Model   string          `json:"model"`
	System  string          `json:"system,omitempty"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Format  string          `json:"format,omitempty"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float32 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

func (c *Client) Complete(ctx context.Context, req ports.CompletionRequest) (string, error) {
	operation := strings.TrimSpace(req.Operation)
	if operation == "" {
		operation = "complete"
	}

	body := generateRequest{
		Model:  c.genModel,
		System: req.System,
		Prompt: req.Prompt,
		Stream: false,
		Options: generateOptions{
			Temperature: req.Temperature,
			NumPredict:  req.MaxTokens,
		},
	}
	if req.JSON {
		body.Format = "json"
	}

	out, err := resilience.Call(ctx, c.executor, "ollama."+operation, func(callCtx context.Context) (string, error) {
		var response generateResponse
		if err := c.postJSON(callCtx, "/api/generate", body, &response, operation); err != nil {
			return "", err
		}
		return response.Response, nil
	}, classifyOllamaError)
	if err != nil {
		return "", wrapCompletionError(operation, err)
	}

	out = strings.TrimSpace(out)
	if out == "" {
		return "", domain.WrapError(domain.ErrMalformedCompletion, operation, errors.New("empty response"))
	}
	return out, nil
}
