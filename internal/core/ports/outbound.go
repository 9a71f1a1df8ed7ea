package ports

import (
	"context"
	"time"

	"github.com/kirillkom/plainlaw/internal/core/domain"
)

// TextExtractor maps an uploaded PDF or image to text.
// Failures wrap domain.ErrOCRUnavailable or domain.ErrLowConfidenceExtraction.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte, kind domain.SourceKind) (string, error)
}

// CompletionRequest is the prompt context handed to a language model.
type CompletionRequest struct {
	// Operation names the calling stage for logs, metrics and circuit breakers.
	Operation   string
	System      string
	Prompt      string
	Temperature float32
	JSON        bool
	MaxTokens   int
}

// CompletionService produces a text completion.
// Failures wrap domain.ErrCompletionTimeout, domain.ErrCompletionUnavailable or domain.ErrMalformedCompletion.
type CompletionService interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// PipelineObserver receives per-stage timings from the orchestrator.
type PipelineObserver interface {
	ObserveStage(stage domain.PipelineState, duration time.Duration, failed bool)
}
