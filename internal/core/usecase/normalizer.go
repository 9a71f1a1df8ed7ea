package usecase

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kirillkom/plainlaw/internal/core/domain"
)

const (
	pageBreak = "\f"

	runningLineMinRunes = 8
	runningLineMaxRunes = 80
	runningLineRepeats  = 3
)

var (
	pageLabelLine   = regexp.MustCompile(`(?i)^(?:-\s*\d{1,4}\s*-|(?:page|p[aá]g(?:ina)?\.?|hoja|folio)\s*\d{1,4}(?:\s*(?:of|de|/)\s*\d{1,4})?|\d{1,4}\s+(?:of|de)\s+\d{1,4})$`)
	bareNumberLine  = regexp.MustCompile(`^(\d{1,4})(?:\s*/\s*\d{1,3})?$`)
	horizontalSpace = regexp.MustCompile(`[ \t\x{00A0}]+`)
)

// TextNormalizer cleans OCR or typed text without touching substantive content.
type TextNormalizer struct{}

func NewTextNormalizer() *TextNormalizer {
	return &TextNormalizer{}
}

// Normalize strips page artifacts, repeated running headers and control characters,
// collapses whitespace and keeps paragraph boundaries.
func (n *TextNormalizer) Normalize(raw string) (string, error) {
	if !utf8.ValidString(raw) {
		raw = strings.ToValidUTF8(raw, "")
	}
	text := strings.ReplaceAll(raw, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.ReplaceAll(text, "\f", "\n"+pageBreak+"\n")
	text = stripControl(text)

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if line == pageBreak {
			continue
		}
		lines[i] = strings.TrimSpace(horizontalSpace.ReplaceAllString(line, " "))
	}
	lines = dropPageNumbers(lines)
	lines = dropRunningLines(lines)

	out := collapseBlankLines(lines)
	if !hasAlnum(out) {
		return "", domain.WrapError(domain.ErrEmptyDocument, "normalize text", errors.New("no alphanumeric content"))
	}
	return out, nil
}

func stripControl(text string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\f':
			return r
		case r == '\t':
			return ' '
		case r == utf8.RuneError:
			return -1
		case r >= 0xE000 && r <= 0xF8FF:
			return -1
		case r == '\u200b' || r == '\ufeff':
			return -1
		case unicode.IsControl(r):
			return -1
		default:
			return r
		}
	}, text)
}

// dropPageNumbers removes page labels ("Page 2 of 5", "- 3 -") everywhere. A line
// holding only a number is dropped only when it sits next to a page break or the
// document edge, or when all such lines count pages 1, 2, 3... Other bare numbers
// are content. Page breaks become blank lines.
func dropPageNumbers(lines []string) []string {
	var bare []int
	hasBreaks := false
	for i, line := range lines {
		switch {
		case line == pageBreak:
			hasBreaks = true
		case bareNumberLine.MatchString(line):
			bare = append(bare, i)
		}
	}
	counting := isPageSequence(lines, bare)

	drop := make(map[int]bool, len(bare))
	for _, i := range bare {
		if counting || (hasBreaks && atPageEdge(lines, i)) {
			drop[i] = true
		}
	}

	out := lines[:0:0]
	for i, line := range lines {
		switch {
		case line == pageBreak:
			out = append(out, "")
		case drop[i]:
		case line != "" && pageLabelLine.MatchString(line):
		default:
			out = append(out, line)
		}
	}
	return out
}

func isPageSequence(lines []string, bare []int) bool {
	if len(bare) < 2 {
		return false
	}
	prev := 0
	for k, i := range bare {
		n, err := strconv.Atoi(bareNumberLine.FindStringSubmatch(lines[i])[1])
		if err != nil {
			return false
		}
		if k == 0 && n > 2 || k > 0 && n != prev+1 {
			return false
		}
		prev = n
	}
	return true
}

// atPageEdge reports whether the nearest non-blank line on either side of i is a
// page break or the start or end of the document.
func atPageEdge(lines []string, i int) bool {
	before := i - 1
	for before >= 0 && lines[before] == "" {
		before--
	}
	if before < 0 || lines[before] == pageBreak {
		return true
	}
	after := i + 1
	for after < len(lines) && lines[after] == "" {
		after++
	}
	return after == len(lines) || lines[after] == pageBreak
}

// dropRunningLines keeps the first occurrence of a short line that repeats across
// the document (court letterheads, footers) and drops the rest.
func dropRunningLines(lines []string) []string {
	counts := make(map[string]int)
	for _, line := range lines {
		if isRunningCandidate(line) {
			counts[squash(line)]++
		}
	}

	seen := make(map[string]bool)
	out := lines[:0:0]
	for _, line := range lines {
		if isRunningCandidate(line) {
			key := squash(line)
			if counts[key] >= runningLineRepeats {
				if seen[key] {
					continue
				}
				seen[key] = true
			}
		}
		out = append(out, line)
	}
	return out
}

func isRunningCandidate(line string) bool {
	n := runeLen(line)
	if n < runningLineMinRunes || n > runningLineMaxRunes {
		return false
	}
	for _, r := range line {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

func collapseBlankLines(lines []string) string {
	var b strings.Builder
	blank := true
	pendingBreak := false
	for _, line := range lines {
		if line == "" {
			if !blank {
				pendingBreak = true
			}
			blank = true
			continue
		}
		if b.Len() > 0 {
			if pendingBreak {
				b.WriteString("\n\n")
			} else {
				b.WriteString("\n")
			}
		}
		b.WriteString(line)
		blank = false
		pendingBreak = false
	}
	return b.String()
}
