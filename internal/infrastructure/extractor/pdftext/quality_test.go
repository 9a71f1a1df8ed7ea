package pdftext

import (
	"context"
	"strings"
	"testing"

	"github.com/kirillkom/plainlaw/internal/core/domain"
)

func TestAssessCleanText(t *testing.T) {
	text := strings.Repeat("El juzgado desestima la demanda y condena en costas. ", 10)
	q := Assess(text, 1, false)

	if q.NeedsOCR() {
		t.Fatalf("clean text must not need OCR: %+v", q)
	}
	if q.PrintableRatio != 1.0 {
		t.Fatalf("PrintableRatio = %v", q.PrintableRatio)
	}
	if q.Score() < 0.9 {
		t.Fatalf("Score() = %v", q.Score())
	}
}

func TestAssessScannedPages(t *testing.T) {
	q := Assess("12", 3, true)
	if !q.NeedsOCR() {
		t.Fatalf("sparse text with images must need OCR: %+v", q)
	}
}

func TestAssessGarbledText(t *testing.T) {
	text := strings.Repeat("\uFFFD\uFFFDa", 30)
	q := Assess(text, 1, false)
	if !q.NeedsOCR() {
		t.Fatalf("garbled text must need OCR: %+v", q)
	}
	if q.PrintableRatio > 0.34 {
		t.Fatalf("PrintableRatio = %v", q.PrintableRatio)
	}
}

func TestExtractRejectsEmptyData(t *testing.T) {
	_, err := NewExtractor().Extract(context.Background(), nil)
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("Extract() error = %v, want ErrInvalidInput", err)
	}
}

func TestExtractNonPDFIsLowConfidence(t *testing.T) {
	_, err := NewExtractor().Extract(context.Background(), []byte("this is not a pdf"))
	if !domain.IsKind(err, domain.ErrLowConfidenceExtraction) {
		t.Fatalf("Extract() error = %v, want ErrLowConfidenceExtraction", err)
	}
}
