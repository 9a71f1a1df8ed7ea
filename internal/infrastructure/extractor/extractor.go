package extractor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kirillkom/plainlaw/internal/core/domain"
	"github.com/kirillkom/plainlaw/internal/infrastructure/extractor/pdftext"
)

type textLayerReader interface {
	Extract(ctx context.Context, data []byte) (pdftext.Result, error)
}

type recognizer interface {
	Recognize(ctx context.Context, data []byte, kind domain.SourceKind) (string, error)
}

// Extractor reads PDFs through their text layer first and falls back to OCR
// for scanned or garbled pages. Images always go to OCR.
type Extractor struct {
	pdf        textLayerReader
	ocr        recognizer
	minQuality float64
}

// New builds an Extractor. ocr may be nil, in which case only PDFs with a
// usable text layer can be read.
func New(pdf textLayerReader, ocr recognizer, minQuality float64) *Extractor {
	return &Extractor{pdf: pdf, ocr: ocr, minQuality: minQuality}
}

func (e *Extractor) Extract(ctx context.Context, data []byte, kind domain.SourceKind) (string, error) {
	switch kind {
	case domain.SourcePDF:
		return e.extractPDF(ctx, data)
	case domain.SourceImage:
		return e.recognize(ctx, data, kind)
	default:
		return "", domain.WrapError(domain.ErrInvalidInput, "extract", fmt.Errorf("unsupported source kind %q", kind))
	}
}

func (e *Extractor) extractPDF(ctx context.Context, data []byte) (string, error) {
	layer, err := e.pdf.Extract(ctx, data)
	if err == nil && layer.Text != "" && !layer.Quality.NeedsOCR() {
		return layer.Text, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}

	slog.Info("pdf_ocr_fallback",
		"pages", layer.Quality.PageCount,
		"chars_per_page", layer.Quality.CharsPerPage,
		"printable_ratio", layer.Quality.PrintableRatio,
		"layer_error", err,
	)
	if e.ocr == nil {
		if err != nil {
			return "", err
		}
		if layer.Text == "" {
			return "", domain.WrapError(domain.ErrEmptyDocument, "extract pdf", errors.New("no text layer and no ocr backend"))
		}
		return "", domain.WrapError(domain.ErrLowConfidenceExtraction, "extract pdf", errors.New("text layer is unreadable and no ocr backend"))
	}
	return e.recognize(ctx, data, domain.SourcePDF)
}

func (e *Extractor) recognize(ctx context.Context, data []byte, kind domain.SourceKind) (string, error) {
	if e.ocr == nil {
		return "", domain.WrapError(domain.ErrOCRUnavailable, "extract "+string(kind), errors.New("no ocr backend configured"))
	}
	text, err := e.ocr.Recognize(ctx, data, kind)
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", domain.WrapError(domain.ErrEmptyDocument, "extract "+string(kind), errors.New("ocr found no text"))
	}
	if score := pdftext.Assess(text, 1, false).Score(); score < e.minQuality {
		return "", domain.WrapError(domain.ErrLowConfidenceExtraction, "extract "+string(kind), fmt.Errorf("ocr quality %.2f below %.2f", score, e.minQuality))
	}
	return text, nil
}
