package usecase

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/kirillkom/plainlaw/internal/core/domain"
)

const headingMaxRunes = 80

type sectionMarker struct {
	phrase string
	label  domain.SectionLabel
	// formula markers open a section even when the line reads like a sentence.
	formula bool
}

// Phrases are folded (lowercase, no diacritics).
var sectionMarkers = sortMarkers([]sectionMarker{
	{phrase: "partes", label: domain.SectionParties},
	{phrase: "parties", label: domain.SectionParties},
	{phrase: "comparecen", label: domain.SectionParties},
	{phrase: "comparece", label: domain.SectionParties},
	{phrase: "demandante", label: domain.SectionParties},
	{phrase: "demandantes", label: domain.SectionParties},
	{phrase: "demandado", label: domain.SectionParties},
	{phrase: "demandada", label: domain.SectionParties},
	{phrase: "demandados", label: domain.SectionParties},
	{phrase: "plaintiff", label: domain.SectionParties},
	{phrase: "plaintiffs", label: domain.SectionParties},
	{phrase: "defendant", label: domain.SectionParties},
	{phrase: "defendants", label: domain.SectionParties},
	{phrase: "petitioner", label: domain.SectionParties},
	{phrase: "respondent", label: domain.SectionParties},
	{phrase: "between", label: domain.SectionParties},

	{phrase: "antecedentes de hecho", label: domain.SectionFacts},
	{phrase: "antecedentes", label: domain.SectionFacts},
	{phrase: "hechos probados", label: domain.SectionFacts},
	{phrase: "hechos", label: domain.SectionFacts},
	{phrase: "facts", label: domain.SectionFacts},
	{phrase: "statement of facts", label: domain.SectionFacts},
	{phrase: "findings of fact", label: domain.SectionFacts},
	{phrase: "background", label: domain.SectionFacts},

	{phrase: "fundamentos de derecho", label: domain.SectionLegalGrounds},
	{phrase: "fundamentos juridicos", label: domain.SectionLegalGrounds},
	{phrase: "fundamentos", label: domain.SectionLegalGrounds},
	{phrase: "considerando", label: domain.SectionLegalGrounds},
	{phrase: "considerandos", label: domain.SectionLegalGrounds},
	{phrase: "consideraciones juridicas", label: domain.SectionLegalGrounds},
	{phrase: "razonamientos juridicos", label: domain.SectionLegalGrounds},
	{phrase: "legal grounds", label: domain.SectionLegalGrounds},
	{phrase: "conclusions of law", label: domain.SectionLegalGrounds},
	{phrase: "reasoning", label: domain.SectionLegalGrounds},
	{phrase: "analysis", label: domain.SectionLegalGrounds},
	{phrase: "discussion", label: domain.SectionLegalGrounds},

	{phrase: "parte dispositiva", label: domain.SectionDisposition},
	{phrase: "fallo", label: domain.SectionDisposition},
	{phrase: "fallamos", label: domain.SectionDisposition, formula: true},
	{phrase: "resuelvo", label: domain.SectionDisposition, formula: true},
	{phrase: "resuelve", label: domain.SectionDisposition},
	{phrase: "dispongo", label: domain.SectionDisposition, formula: true},
	{phrase: "acuerdo", label: domain.SectionDisposition},
	{phrase: "suplico", label: domain.SectionDisposition, formula: true},
	{phrase: "solicito", label: domain.SectionDisposition},
	{phrase: "disposition", label: domain.SectionDisposition},
	{phrase: "it is ordered", label: domain.SectionDisposition, formula: true},
	{phrase: "it is hereby ordered", label: domain.SectionDisposition, formula: true},
	{phrase: "order", label: domain.SectionDisposition},
	{phrase: "ruling", label: domain.SectionDisposition},
	{phrase: "judgment", label: domain.SectionDisposition},
	{phrase: "decision", label: domain.SectionDisposition},
	{phrase: "conclusion", label: domain.SectionDisposition},
	{phrase: "petition", label: domain.SectionDisposition},
	{phrase: "prayer for relief", label: domain.SectionDisposition},
	{phrase: "relief requested", label: domain.SectionDisposition},
	{phrase: "wherefore", label: domain.SectionDisposition, formula: true},

	{phrase: "otrosi digo", label: domain.SectionBody},
	{phrase: "anexos", label: domain.SectionBody},
	{phrase: "exhibits", label: domain.SectionBody},
})

var enumerationPrefix = regexp.MustCompile(`^(?:[ivx]{1,5}|\d{1,3}|[a-h])\s*[.)\-–]+\s*-?\s*`)

func sortMarkers(markers []sectionMarker) []sectionMarker {
	sort.SliceStable(markers, func(i, j int) bool {
		return len(markers[i].phrase) > len(markers[j].phrase)
	})
	return markers
}

// SectionSegmenter splits normalized text into labelled sections that cover it completely.
type SectionSegmenter struct{}

func NewSectionSegmenter() *SectionSegmenter {
	return &SectionSegmenter{}
}

type sectionOpening struct {
	offset int
	label  domain.SectionLabel
}

func (s *SectionSegmenter) Segment(text string) domain.NormalizedDocument {
	doc := domain.NormalizedDocument{RawText: text}
	if text == "" {
		return doc
	}

	var openings []sectionOpening
	current := domain.SectionHeader
	offset := 0
	for _, line := range strings.SplitAfter(text, "\n") {
		if label, ok := detectSectionMarker(line); ok && label != current {
			openings = append(openings, sectionOpening{offset: offset, label: label})
			current = label
		}
		offset += len(line)
	}

	if len(openings) == 0 {
		doc.Sections = []domain.Section{newSection(text, domain.SectionBody, 0, len(text))}
		return doc
	}

	if openings[0].offset > 0 {
		doc.Sections = append(doc.Sections, newSection(text, domain.SectionHeader, 0, openings[0].offset))
	}
	for i, o := range openings {
		end := len(text)
		if i+1 < len(openings) {
			end = openings[i+1].offset
		}
		doc.Sections = append(doc.Sections, newSection(text, o.label, o.offset, end))
	}
	return doc
}

func newSection(text string, label domain.SectionLabel, start, end int) domain.Section {
	return domain.Section{
		Label: label,
		Text:  text[start:end],
		Range: domain.Range{Start: start, End: end},
	}
}

// detectSectionMarker reports whether line opens a known section. A marker must
// start the line (after any enumeration like "I." or "2)") and the line must read
// as a heading, carry the marker followed by a colon or dash, or be a formula.
func detectSectionMarker(line string) (domain.SectionLabel, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return "", false
	}
	folded := fold(trimmed)
	folded = enumerationPrefix.ReplaceAllString(folded, "")

	for _, m := range sectionMarkers {
		if !strings.HasPrefix(folded, m.phrase) {
			continue
		}
		rest := folded[len(m.phrase):]
		if rest != "" {
			r := []rune(rest)[0]
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				continue
			}
		}
		restTrim := strings.TrimSpace(rest)
		switch {
		case m.formula:
			return m.label, true
		case strings.Trim(restTrim, ":.-–— ") == "":
			return m.label, true
		case strings.HasPrefix(restTrim, ":") || strings.HasPrefix(restTrim, ".-") || strings.HasPrefix(restTrim, "-"):
			return m.label, true
		case isHeadingLike(trimmed):
			return m.label, true
		}
		return "", false
	}
	return "", false
}

// isHeadingLike reports whether a line is short and mostly uppercase.
func isHeadingLike(line string) bool {
	if runeLen(line) > headingMaxRunes {
		return false
	}
	letters, upper := 0, 0
	for _, r := range line {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	if letters == 0 {
		return false
	}
	return float64(upper)/float64(letters) >= 0.6
}
