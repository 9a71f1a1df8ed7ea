package ports

import (
	"context"

	"github.com/kirillkom/plainlaw/internal/core/domain"
)

// DocumentProcessor is the inbound contract for the clarification pipeline.
type DocumentProcessor interface {
	Process(ctx context.Context, input domain.RawInput) (*domain.ProcessDocumentResult, error)
}
