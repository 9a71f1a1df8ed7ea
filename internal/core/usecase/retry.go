package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/kirillkom/plainlaw/internal/core/domain"
	"github.com/kirillkom/plainlaw/internal/core/ports"
)

// completionCaller bounds every completion call with a timeout and gives each
// stage at most one retry.
type completionCaller struct {
	llm         ports.CompletionService
	callTimeout time.Duration
	backoff     time.Duration
}

func newCompletionCaller(llm ports.CompletionService, opts PipelineOptions) completionCaller {
	return completionCaller{llm: llm, callTimeout: opts.CallTimeout, backoff: opts.RetryBackoff}
}

func (c completionCaller) call(ctx context.Context, req ports.CompletionRequest) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	out, err := c.llm.Complete(callCtx, req)
	if err == nil {
		return out, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}
	if errors.Is(err, context.DeadlineExceeded) && !domain.IsKind(err, domain.ErrCompletionTimeout) {
		return "", domain.WrapError(domain.ErrCompletionTimeout, req.Operation, err)
	}
	return "", err
}

// withRetry runs fn, and runs it once more after the backoff when retryable(err).
// fn receives the attempt number starting at 1.
func (c completionCaller) withRetry(ctx context.Context, operation string, retryable func(error) bool, fn func(attempt int) error) error {
	attempt := 0
	return retry.Do(
		func() error {
			attempt++
			return fn(attempt)
		},
		retry.Context(ctx),
		retry.Attempts(2),
		retry.Delay(c.backoff),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return ctx.Err() == nil && retryable(err)
		}),
		retry.OnRetry(func(n uint, err error) {
			slog.Warn("completion_attempt_failed",
				"operation", operation,
				"attempt", n+1,
				"error", err,
			)
		}),
	)
}

// isTransportFailure matches failures where the model never produced an answer.
func isTransportFailure(err error) bool {
	return domain.IsKind(err, domain.ErrCompletionTimeout) || domain.IsKind(err, domain.ErrCompletionUnavailable)
}
