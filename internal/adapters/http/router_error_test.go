package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/plainlaw/internal/config"
	"github.com/kirillkom/plainlaw/internal/core/domain"
)

func TestProcessMapsPipelineErrorsToStatus(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{"empty document", &domain.PipelineError{Kind: domain.ErrEmptyDocument, Stage: domain.StateNormalizing}, http.StatusUnprocessableEntity, "EmptyDocument"},
		{"ingestion", &domain.PipelineError{Kind: domain.ErrIngestionFailed, Stage: domain.StateIngesting, Err: errors.New("ocr down")}, http.StatusUnprocessableEntity, "IngestionFailed"},
		{"classification", &domain.PipelineError{Kind: domain.ErrClassificationUnavailable, Stage: domain.StateClassifying}, http.StatusServiceUnavailable, "ClassificationUnavailable"},
		{"simplification", &domain.PipelineError{Kind: domain.ErrSimplificationFailed, Stage: domain.StateSimplifying}, http.StatusServiceUnavailable, "SimplificationFailed"},
		{"guide", &domain.PipelineError{Kind: domain.ErrGuideIncomplete, Stage: domain.StateBuildingGuide}, http.StatusServiceUnavailable, "GuideIncomplete"},
		{"timeout", &domain.PipelineError{Kind: context.DeadlineExceeded, Stage: domain.StateSimplifying}, http.StatusGatewayTimeout, "Timeout"},
		{"invalid", &domain.PipelineError{Kind: domain.ErrInvalidInput, Stage: domain.StateIngesting}, http.StatusBadRequest, "InvalidInput"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "InternalError"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := NewRouter(config.Config{}, processorFake{err: tc.err}, nil).Handler()
			res := httptest.NewRecorder()
			handler.ServeHTTP(res, textRequest("SENTENCIA"))

			if res.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, res.Code)
			}
			var body errorResponse
			if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
				t.Fatalf("decode error response: %v", err)
			}
			if body.ErrorKind != tc.kind || body.Message == "" || body.RequestID == "" {
				t.Fatalf("unexpected error body %+v", body)
			}
			if strings.Contains(body.Message, "boom") || strings.Contains(body.Message, "ocr down") {
				t.Fatalf("internal detail leaked into message %q", body.Message)
			}
		})
	}
}

func TestProcessRejectsUnknownSourceType(t *testing.T) {
	processor := &recordingProcessor{}
	handler := NewRouter(config.Config{}, processor, nil).Handler()

	req := httptest.NewRequest(http.MethodPost, "/v1/documents/process", strings.NewReader(`{"sourceType":"docx","fileContent":"AAAA"}`))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	if len(processor.inputs) != 0 {
		t.Fatalf("processor must not run for invalid requests")
	}
}

func TestProcessRejectsMalformedJSON(t *testing.T) {
	handler := NewRouter(config.Config{}, &recordingProcessor{}, nil).Handler()

	req := httptest.NewRequest(http.MethodPost, "/v1/documents/process", strings.NewReader(`{"sourceType":`))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestProcessRejectsOversizedBody(t *testing.T) {
	handler := NewRouter(config.Config{APIMaxUploadBytes: 64}, &recordingProcessor{}, nil).Handler()

	body := `{"sourceType":"text","plainText":"` + strings.Repeat("a", 200) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/documents/process", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", res.Code)
	}
}

func TestProcessRejectsWrongMethod(t *testing.T) {
	handler := NewRouter(config.Config{}, &recordingProcessor{}, nil).Handler()
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/documents/process", nil))

	if res.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", res.Code)
	}
}
