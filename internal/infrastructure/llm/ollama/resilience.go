package ollama

import (
	"context"
	"errors"
	"net"

	"github.com/kirillkom/plainlaw/internal/core/domain"
	"github.com/kirillkom/plainlaw/internal/infrastructure/resilience"
)

func classifyOllamaError(err error) resilience.ErrorClassification {
	if domain.IsKind(err, domain.ErrMalformedCompletion) {
		// The server answered; a garbled body says nothing about its health.
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	return resilience.ClassifyTransportError(err)
}

// wrapCompletionError maps transport failures onto the completion error kinds.
func wrapCompletionError(operation string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case domain.IsKind(err, domain.ErrMalformedCompletion),
		domain.IsKind(err, domain.ErrCompletionTimeout),
		domain.IsKind(err, domain.ErrCompletionUnavailable):
		return err
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, context.DeadlineExceeded), isTimeout(err):
		return domain.WrapError(domain.ErrCompletionTimeout, operation, err)
	default:
		return domain.WrapError(domain.ErrCompletionUnavailable, operation, err)
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
