package httpadapter

import (
	"context"
	"errors"
	"net/http"

	"github.com/kirillkom/plainlaw/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytesErr):
		return http.StatusRequestEntityTooLarge
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrEmptyDocument),
		domain.IsKind(err, domain.ErrIngestionFailed):
		return http.StatusUnprocessableEntity
	case domain.IsKind(err, domain.ErrClassificationUnavailable),
		domain.IsKind(err, domain.ErrSimplificationFailed),
		domain.IsKind(err, domain.ErrGuideIncomplete):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

type errorResponse struct {
	ErrorKind string `json:"errorKind"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), errorResponse{
		ErrorKind: domain.ErrorKindName(err),
		Message:   domain.UserMessage(err),
		RequestID: requestIDFromContext(r.Context()),
	})
}
