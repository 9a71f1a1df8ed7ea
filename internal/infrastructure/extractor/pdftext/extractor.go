package pdftext

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/kirillkom/plainlaw/internal/core/domain"
)

// Result is the text layer of a PDF with its quality metrics.
type Result struct {
	Text    string
	Quality Quality
}

// Extractor reads the embedded text layer of a PDF.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extract(ctx context.Context, data []byte) (Result, error) {
	if len(data) == 0 {
		return Result{}, domain.WrapError(domain.ErrInvalidInput, "extract pdf", errors.New("empty pdf"))
	}

	pageCount, hasImages, err := inspect(data)
	if err != nil {
		// pdfcpu is strict; a PDF it rejects may still carry a readable text layer.
		slog.Warn("pdf_validation_failed", "error", err)
	}

	text, pages, err := readTextLayer(ctx, data)
	if err != nil {
		return Result{}, domain.WrapError(domain.ErrLowConfidenceExtraction, "extract pdf", err)
	}
	if pageCount == 0 {
		pageCount = pages
	}

	return Result{Text: text, Quality: Assess(text, pageCount, hasImages)}, nil
}

// inspect validates the document and reports its page count and whether any
// page carries image XObjects.
func inspect(data []byte) (int, bool, error) {
	conf := model.NewDefaultConfiguration()
	pdfCtx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		return 0, false, fmt.Errorf("pdfcpu read: %w", err)
	}
	hasImages := false
	for pageNr := 1; pageNr <= pdfCtx.PageCount; pageNr++ {
		if len(pdfcpu.ImageObjNrs(pdfCtx, pageNr)) > 0 {
			hasImages = true
			break
		}
	}
	return pdfCtx.PageCount, hasImages, nil
}

func readTextLayer(ctx context.Context, data []byte) (text string, pages int, err error) {
	defer func() {
		// ledongthuc/pdf panics on some malformed streams.
		if r := recover(); r != nil {
			err = fmt.Errorf("read pdf text: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, fmt.Errorf("open pdf: %w", err)
	}

	pages = reader.NumPage()
	var b strings.Builder
	for i := 1; i <= pages; i++ {
		if err := ctx.Err(); err != nil {
			return "", 0, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			slog.Debug("pdf_page_skipped", "page", i, "error", err)
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\f")
		}
		b.WriteString(strings.TrimSpace(pageText))
	}
	return strings.TrimSpace(b.String()), pages, nil
}
