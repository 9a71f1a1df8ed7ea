package openai

import (
	"context"
	"errors"
	"net"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/kirillkom/plainlaw/internal/core/domain"
	"github.com/kirillkom/plainlaw/internal/infrastructure/resilience"
)

func classifyOpenAIError(err error) resilience.ErrorClassification {
	if status, ok := statusCode(err); ok {
		return resilience.ClassifyTransportError(&resilience.HTTPStatusError{Service: "openai", StatusCode: status})
	}
	return resilience.ClassifyTransportError(err)
}

func statusCode(err error) (int, bool) {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode > 0 {
		return apiErr.HTTPStatusCode, true
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		return reqErr.HTTPStatusCode, true
	}
	return 0, false
}

func wrapCompletionError(operation string, err error) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	switch {
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return domain.WrapError(domain.ErrCompletionTimeout, operation, err)
	default:
		return domain.WrapError(domain.ErrCompletionUnavailable, operation, err)
	}
}
