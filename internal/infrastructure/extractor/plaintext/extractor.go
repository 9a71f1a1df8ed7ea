package plaintext

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/kirillkom/plainlaw/internal/core/domain"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// Decode turns an uploaded text file into a UTF-8 string. UTF-16 needs a BOM;
// bytes that are not valid UTF-8 are read as Windows-1252, the usual encoding
// of documents exported from older office suites.
func Decode(raw []byte) (string, error) {
	if len(raw) == 0 {
		return "", domain.WrapError(domain.ErrInvalidInput, "decode text", errors.New("empty upload"))
	}

	var (
		text string
		err  error
	)
	switch {
	case bytes.HasPrefix(raw, bomUTF8):
		text = string(raw[len(bomUTF8):])
	case bytes.HasPrefix(raw, bomUTF16LE), bytes.HasPrefix(raw, bomUTF16BE):
		text, err = decodeWith(raw, unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder())
	case utf8.Valid(raw):
		text = string(raw)
	default:
		if isBinary(raw) {
			return "", domain.WrapError(domain.ErrInvalidInput, "decode text", errors.New("upload is a binary file"))
		}
		text, err = decodeWith(raw, charmap.Windows1252.NewDecoder())
	}
	if err != nil {
		return "", domain.WrapError(domain.ErrInvalidInput, "decode text", err)
	}
	return strings.TrimSpace(text), nil
}

func decodeWith(raw []byte, decoder transform.Transformer) (string, error) {
	out, _, err := transform.Bytes(decoder, raw)
	if err != nil {
		return "", fmt.Errorf("transcode: %w", err)
	}
	return string(out), nil
}

// isBinary flags NUL bytes, which never appear in legacy single-byte text.
func isBinary(raw []byte) bool {
	head := raw
	if len(head) > 8192 {
		head = head[:8192]
	}
	return bytes.IndexByte(head, 0) >= 0
}
