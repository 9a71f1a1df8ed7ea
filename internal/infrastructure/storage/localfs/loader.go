package localfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/kirillkom/plainlaw/internal/core/domain"
	"github.com/kirillkom/plainlaw/internal/infrastructure/extractor/plaintext"
)

const defaultMaxBytes = 20 << 20

// Loader reads documents from the local disk for the CLI and the MCP tool.
type Loader struct {
	basePath string
	maxBytes int64
}

// New returns a Loader. Relative paths are resolved against basePath when it
// is set; maxBytes <= 0 uses the 20 MiB default.
func New(basePath string, maxBytes int64) *Loader {
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	return &Loader{basePath: basePath, maxBytes: maxBytes}
}

// Load reads path into a RawInput. An empty kind is inferred from the file
// extension; text files are decoded to UTF-8.
func (l *Loader) Load(_ context.Context, path string, kind domain.SourceKind) (domain.RawInput, error) {
	if path == "" {
		return domain.RawInput{}, domain.WrapError(domain.ErrInvalidInput, "load file", errors.New("path is empty"))
	}
	if l.basePath != "" && !filepath.IsAbs(path) {
		path = filepath.Join(l.basePath, path)
	}
	if kind == "" {
		kind = domain.SourceKindForFilename(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return domain.RawInput{}, domain.WrapError(domain.ErrInvalidInput, "load file", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, l.maxBytes+1))
	if err != nil {
		return domain.RawInput{}, fmt.Errorf("read file: %w", err)
	}
	if int64(len(data)) > l.maxBytes {
		return domain.RawInput{}, domain.WrapError(domain.ErrInvalidInput, "load file", fmt.Errorf("%s is larger than %d bytes", filepath.Base(path), l.maxBytes))
	}

	input := domain.RawInput{SourceKind: kind, Filename: filepath.Base(path)}
	if kind != domain.SourceText {
		input.Data = data
		return input, nil
	}
	text, err := plaintext.Decode(data)
	if err != nil {
		return domain.RawInput{}, err
	}
	input.Text = text
	return input, nil
}
