package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/kirillkom/plainlaw/internal/config"
	"github.com/kirillkom/plainlaw/internal/core/domain"
	"github.com/kirillkom/plainlaw/internal/core/ports"
	"github.com/kirillkom/plainlaw/internal/infrastructure/extractor/plaintext"
	"github.com/kirillkom/plainlaw/internal/observability/metrics"
)

const (
	serviceName       = "plainlaw-api"
	multipartMemLimit = 8 << 20
)

type Router struct {
	cfg       config.Config
	processor ports.DocumentProcessor
	metrics   *metrics.HTTPServerMetrics
}

// NewRouter wires the HTTP surface. httpMetrics may be nil.
func NewRouter(cfg config.Config, processor ports.DocumentProcessor, httpMetrics *metrics.HTTPServerMetrics) *Router {
	return &Router{
		cfg:       cfg,
		processor: processor,
		metrics:   httpMetrics,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.Handle("/v1/documents/process", rt.trafficControl(http.HandlerFunc(rt.processDocument)))
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) trafficControl(next http.Handler) http.Handler {
	handler := next
	if rt.cfg.APIMaxInFlight > 0 {
		handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, backpressureWait)
	}
	if rt.cfg.APIRateLimitRPS > 0 {
		handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	}
	return rejectionCounter(handler, rt.metrics)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type processRequest struct {
	SourceType  string `json:"sourceType"`
	PlainText   string `json:"plainText"`
	FileContent []byte `json:"fileContent"`
	Filename    string `json:"filename"`
}

func (rt *Router) processDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if rt.cfg.APIMaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, rt.cfg.APIMaxUploadBytes)
	}

	input, err := rt.decodeInput(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordUpload(serviceName, string(input.SourceKind), len(input.Data)+len(input.Text))
	}

	result, err := rt.processor.Process(r.Context(), input)
	if rt.metrics != nil {
		rt.metrics.Pipeline().RecordOutcome(result, err)
	}
	if err != nil {
		slog.Warn("process_document_failed",
			"request_id", requestIDFromContext(r.Context()),
			"error_kind", domain.ErrorKindName(err),
			"error", err,
		)
		writeError(w, r, err)
		return
	}
	if result.Findings == nil {
		result.Findings = []domain.SafetyFinding{}
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) decodeInput(r *http.Request) (domain.RawInput, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	var (
		req processRequest
		err error
	)
	switch mediaType {
	case "multipart/form-data":
		req, err = decodeMultipart(r)
	case "application/json", "":
		err = decodeJSON(r.Body, &req)
	default:
		return domain.RawInput{}, domain.WrapError(domain.ErrInvalidInput, "decode request", fmt.Errorf("unsupported content type %q", mediaType))
	}
	if err != nil {
		return domain.RawInput{}, err
	}

	sourceType := strings.ToLower(strings.TrimSpace(req.SourceType))
	if sourceType == "" && req.Filename != "" {
		sourceType = string(domain.SourceKindForFilename(req.Filename))
	}
	kind, ok := domain.ParseSourceKind(sourceType)
	if !ok {
		return domain.RawInput{}, domain.WrapError(domain.ErrInvalidInput, "decode request", fmt.Errorf("sourceType must be text, pdf or image, got %q", req.SourceType))
	}
	input := domain.RawInput{SourceKind: kind, Filename: req.Filename}
	if kind == domain.SourceText {
		input.Text = req.PlainText
	} else {
		input.Data = req.FileContent
	}
	return input, nil
}

func decodeJSON(body io.Reader, req *processRequest) error {
	if err := json.NewDecoder(body).Decode(req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return err
		}
		return domain.WrapError(domain.ErrInvalidInput, "decode request", fmt.Errorf("invalid json: %w", err))
	}
	return nil
}

// decodeMultipart reads the sourceType field and an optional file part. Without
// sourceType the kind follows the file extension. Text uploads are decoded to
// UTF-8 here; binary files are passed on untouched.
func decodeMultipart(r *http.Request) (processRequest, error) {
	if err := r.ParseMultipartForm(multipartMemLimit); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return processRequest{}, err
		}
		return processRequest{}, domain.WrapError(domain.ErrInvalidInput, "decode request", fmt.Errorf("invalid multipart form: %w", err))
	}
	req := processRequest{
		SourceType: r.FormValue("sourceType"),
		PlainText:  r.FormValue("plainText"),
	}

	file, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return req, nil
	}
	if err != nil {
		return processRequest{}, domain.WrapError(domain.ErrInvalidInput, "decode request", err)
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return processRequest{}, fmt.Errorf("read upload: %w", err)
	}
	req.Filename = header.Filename
	if strings.TrimSpace(req.SourceType) == "" {
		req.SourceType = string(domain.SourceKindForFilename(req.Filename))
	}
	if strings.EqualFold(strings.TrimSpace(req.SourceType), string(domain.SourceText)) {
		text, err := plaintext.Decode(raw)
		if err != nil {
			return processRequest{}, err
		}
		req.PlainText = text
		return req, nil
	}
	req.FileContent = raw
	return req, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
