package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kirillkom/plainlaw/internal/core/domain"
	"github.com/kirillkom/plainlaw/internal/infrastructure/resilience"
)

const (
	DefaultBaseURL = "https://api.mistral.ai/v1"
	DefaultModel   = "mistral-ocr-latest"
)

type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
	// RequestsPerSecond caps outbound OCR calls; zero disables the limit.
	RequestsPerSecond float64
}

// Client calls an OCR API speaking the Mistral OCR wire format.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	limiter    *rate.Limiter
	executor   *resilience.Executor
}

func New(cfg Config, executor *resilience.Executor) *Client {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	client := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		executor:   executor,
	}
	if cfg.RequestsPerSecond > 0 {
		client.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return client
}

type ocrRequest struct {
	Model    string      `json:"model"`
	Document ocrDocument `json:"document"`
}

type ocrDocument struct {
	Type        string       `json:"type"`
	ImageURL    *ocrImageURL `json:"image_url,omitempty"`
	DocumentURL string       `json:"document_url,omitempty"`
}

type ocrImageURL struct {
	URL string `json:"url"`
}

type ocrResponse struct {
	Model string    `json:"model"`
	Pages []ocrPage `json:"pages"`
}

type ocrPage struct {
	Index    int    `json:"index"`
	Markdown string `json:"markdown"`
}

type ocrErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Recognize returns the text of every page of an image or PDF, in page order.
func (c *Client) Recognize(ctx context.Context, data []byte, kind domain.SourceKind) (string, error) {
	if len(data) == 0 {
		return "", domain.WrapError(domain.ErrInvalidInput, "ocr", errors.New("empty upload"))
	}

	doc, err := buildDocument(data, kind)
	if err != nil {
		return "", domain.WrapError(domain.ErrInvalidInput, "ocr", err)
	}
	reqBody := ocrRequest{Model: c.model, Document: doc}

	resp, err := resilience.Call(ctx, c.executor, "ocr.recognize", func(callCtx context.Context) (*ocrResponse, error) {
		if c.limiter != nil {
			if err := c.limiter.Wait(callCtx); err != nil {
				return nil, err
			}
		}
		return c.doRequest(callCtx, reqBody)
	}, resilience.ClassifyTransportError)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return "", err
		}
		return "", domain.WrapError(domain.ErrOCRUnavailable, "ocr", err)
	}

	var b strings.Builder
	for _, page := range resp.Pages {
		text := strings.TrimSpace(page.Markdown)
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\f")
		}
		b.WriteString(text)
	}
	return b.String(), nil
}

func buildDocument(data []byte, kind domain.SourceKind) (ocrDocument, error) {
	encoded := base64.StdEncoding.EncodeToString(data)
	switch kind {
	case domain.SourcePDF:
		return ocrDocument{Type: "document_url", DocumentURL: "data:application/pdf;base64," + encoded}, nil
	case domain.SourceImage:
		mime := http.DetectContentType(data)
		if !strings.HasPrefix(mime, "image/") {
			mime = "image/png"
		}
		return ocrDocument{Type: "image_url", ImageURL: &ocrImageURL{URL: "data:" + mime + ";base64," + encoded}}, nil
	default:
		return ocrDocument{}, fmt.Errorf("unsupported source kind %q", kind)
	}
}

func (c *Client) doRequest(ctx context.Context, body ocrRequest) (*ocrResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal ocr request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ocr", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create ocr request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ocr request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("read ocr response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := string(respBody)
		var errResp ocrErrorResponse
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error.Message != "" {
			msg = errResp.Error.Message
		}
		return nil, &resilience.HTTPStatusError{
			Service:    "ocr",
			Operation:  "recognize",
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       msg,
		}
	}

	var out ocrResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("decode ocr response: %w", err)
	}
	return &out, nil
}
