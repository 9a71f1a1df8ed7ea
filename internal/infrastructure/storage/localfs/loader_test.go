package localfs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/kirillkom/plainlaw/internal/core/domain"
)

func writeFile(t *testing.T, dir, name string, data []byte) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestLoadInfersKindFromExtension(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "notice.pdf", []byte("%PDF-1.7"))
	writeFile(t, dir, "scan.JPG", []byte{0xFF, 0xD8, 0xFF})
	writeFile(t, dir, "auto.txt", []byte("AUTO\r\nSe acuerda el archivo.\n"))

	loader := New(dir, 0)

	pdf, err := loader.Load(context.Background(), "notice.pdf", "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if pdf.SourceKind != domain.SourcePDF || string(pdf.Data) != "%PDF-1.7" || pdf.Filename != "notice.pdf" {
		t.Fatalf("unexpected pdf input %+v", pdf)
	}

	img, err := loader.Load(context.Background(), "scan.JPG", "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if img.SourceKind != domain.SourceImage || len(img.Data) != 3 {
		t.Fatalf("unexpected image input %+v", img)
	}

	text, err := loader.Load(context.Background(), filepath.Join(dir, "auto.txt"), "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if text.SourceKind != domain.SourceText || text.Text != "AUTO\r\nSe acuerda el archivo." || text.Data != nil {
		t.Fatalf("unexpected text input %+v", text)
	}
}

func TestLoadExplicitKindWins(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "upload.bin", []byte("%PDF-1.4"))

	input, err := New(dir, 0).Load(context.Background(), "upload.bin", domain.SourcePDF)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if input.SourceKind != domain.SourcePDF {
		t.Fatalf("expected explicit pdf kind, got %q", input.SourceKind)
	}
}

func TestLoadRejectsMissingAndOversizedFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "big.pdf", make([]byte, 64))
	loader := New(dir, 32)

	if _, err := loader.Load(context.Background(), "missing.pdf", ""); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("Load(missing) error = %v, want ErrInvalidInput", err)
	}
	if _, err := loader.Load(context.Background(), "big.pdf", ""); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("Load(big) error = %v, want ErrInvalidInput", err)
	}
	if _, err := loader.Load(context.Background(), "", ""); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("Load(empty) error = %v, want ErrInvalidInput", err)
	}
}
