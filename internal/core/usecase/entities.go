package usecase

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/kirillkom/plainlaw/internal/core/domain"
)

const maxParties = 8

var monthNumbers = map[string]int{
	"january": 1, "jan": 1, "enero": 1,
	"february": 2, "feb": 2, "febrero": 2,
	"march": 3, "mar": 3, "marzo": 3,
	"april": 4, "apr": 4, "abril": 4,
	"may": 5, "mayo": 5,
	"june": 6, "jun": 6, "junio": 6,
	"july": 7, "jul": 7, "julio": 7,
	"august": 8, "aug": 8, "agosto": 8,
	"september": 9, "sept": 9, "sep": 9, "septiembre": 9, "setiembre": 9,
	"october": 10, "oct": 10, "octubre": 10,
	"november": 11, "nov": 11, "noviembre": 11,
	"december": 12, "dec": 12, "diciembre": 12,
}

var numberWords = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6, "seven": 7,
	"eight": 8, "nine": 9, "ten": 10, "eleven": 11, "twelve": 12, "thirteen": 13,
	"fourteen": 14, "fifteen": 15, "sixteen": 16, "seventeen": 17, "eighteen": 18,
	"nineteen": 19, "twenty": 20, "thirty": 30, "sixty": 60, "ninety": 90,
	"un": 1, "uno": 1, "una": 1, "dos": 2, "tres": 3, "cuatro": 4, "cinco": 5,
	"seis": 6, "siete": 7, "ocho": 8, "nueve": 9, "diez": 10, "once": 11,
	"doce": 12, "trece": 13, "catorce": 14, "quince": 15, "dieciseis": 16,
	"dieciséis": 16, "diecisiete": 17, "dieciocho": 18, "diecinueve": 19,
	"veinte": 20, "treinta": 30, "sesenta": 60, "noventa": 90,
}

var (
	monthAlternation  = alternation(monthNumbers)
	numberAlternation = alternation(numberWords)

	numericDatePattern = regexp.MustCompile(`\b(\d{1,2})[/.\-](\d{1,2})[/.\-](\d{4}|\d{2})\b`)
	isoDatePattern     = regexp.MustCompile(`\b(\d{4})-(\d{1,2})-(\d{1,2})\b`)
	monthDayPattern    = regexp.MustCompile(`(?i)\b(` + monthAlternation + `)\.?\s+(\d{1,2})(?:st|nd|rd|th)?\b(?:,?\s+(\d{4})\b)?`)
	dayMonthPattern    = regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th|º|°)?\s+(?:of\s+|de\s+)?(` + monthAlternation + `)\b\.?(?:,?\s+(?:de(?:l)?\s+|of\s+)?(\d{4})\b)?`)

	deadlinePattern = regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}])(\d{1,3}|` + numberAlternation + `)\s+(?:\(\d{1,3}\)\s+)?(?:(?:business|calendar|working|court)\s+)?(days?|d[ií]as|weeks?|semanas?|months?|mes(?:es)?)\b`)

	amountPattern = regexp.MustCompile(`(?i)(?:(us\$|\$|€|£|\b(?:usd|eur|gbp)\b)\s?(\d[\d.,]*\d|\d)|(\d[\d.,]*\d|\d)\s?(€|(?:euros?|dollars?|d[oó]lares|pesos|usd|eur|gbp|libras)\b))`)

	partyNamePattern = regexp.MustCompile(`\p{Lu}[\p{L}'’\-]+(?:[ \t]+(?:(?:de|del|la|las|los|y|van|von|da|and|&)[ \t]+)?(?:\p{Lu}[\p{L}'’\-]+|\p{Lu}\.))+`)
)

var partyStopwords = map[string]bool{
	"demandante": true, "demandantes": true, "demandado": true, "demandada": true,
	"demandados": true, "partes": true, "parties": true, "plaintiff": true,
	"plaintiffs": true, "defendant": true, "defendants": true, "petitioner": true,
	"respondent": true, "appellant": true, "appellee": true, "court": true,
	"juzgado": true, "tribunal": true, "procurador": true, "procuradora": true,
	"abogado": true, "abogada": true, "letrado": true, "letrada": true, "don": true,
	"dona": true, "mr": true, "mrs": true, "ms": true, "sr": true, "sra": true,
	"between": true, "and": true, "the": true, "of": true, "de": true, "del": true,
	"la": true, "los": true, "las": true, "y": true, "representado": true,
	"representada": true, "comparecen": true, "comparece": true, "contra": true,
	"versus": true, "vs": true, "inc": true, "ltd": true, "llc": true, "sl": true,
	"sa": true,
}

func alternation(words map[string]int) string {
	keys := make([]string, 0, len(words))
	for k := range words {
		keys = append(keys, regexp.QuoteMeta(k))
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return strings.Join(keys, "|")
}

// mention is an entity-like span found in free text, used both for extraction
// from the original and for matching against generated text.
type mention struct {
	kind       domain.EntityKind
	value      string
	normalized []string
	start      int
	end        int
}

// ExtractEntities finds dates, deadlines, amounts, parties and outcome statements.
// Dates, deadlines, amounts and outcomes inside the disposition are critical; when
// the document has no disposition section every one of them is.
func ExtractEntities(doc domain.NormalizedDocument) []domain.Entity {
	hasDisposition := doc.HasDisposition()
	var out []domain.Entity
	for _, section := range doc.Sections {
		criticalScope := !hasDisposition || section.Label == domain.SectionDisposition

		for _, m := range findDetailMentions(section.Text) {
			out = append(out, domain.Entity{
				Kind:          m.kind,
				Value:         m.value,
				Normalized:    m.normalized,
				SourceSection: section.Label,
				Range:         domain.Range{Start: section.Range.Start + m.start, End: section.Range.Start + m.end},
				Critical:      criticalScope,
			})
		}

		if criticalScope {
			out = append(out, outcomeEntities(section)...)
		}
		if section.Label == domain.SectionParties {
			out = append(out, partyEntities(section)...)
		}
	}
	return dedupeEntities(out)
}

func outcomeEntities(section domain.Section) []domain.Entity {
	var out []domain.Entity
	for _, c := range splitClauses(section.Text) {
		polarity := clausePolarity(c.text)
		if polarity == domain.PolarityNone {
			continue
		}
		out = append(out, domain.Entity{
			Kind:          domain.EntityOutcome,
			Value:         c.text,
			Polarity:      polarity,
			SourceSection: section.Label,
			Range:         domain.Range{Start: section.Range.Start + c.start, End: section.Range.Start + c.end},
			Critical:      true,
		})
	}
	return out
}

func partyEntities(section domain.Section) []domain.Entity {
	var out []domain.Entity
	seen := make(map[string]bool)
	for _, loc := range partyNamePattern.FindAllStringIndex(section.Text, -1) {
		name := strings.TrimSpace(section.Text[loc[0]:loc[1]])
		tokens := partyTokens(name)
		if len(tokens) == 0 {
			continue
		}
		key := strings.Join(tokens, " ")
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, domain.Entity{
			Kind:          domain.EntityParty,
			Value:         name,
			Normalized:    tokens,
			SourceSection: section.Label,
			Range:         domain.Range{Start: section.Range.Start + loc[0], End: section.Range.Start + loc[1]},
		})
		if len(out) == maxParties {
			break
		}
	}
	return out
}

// partyTokens returns the distinctive folded words of a name.
func partyTokens(name string) []string {
	var out []string
	for _, w := range wordPattern.FindAllString(fold(name), -1) {
		w = strings.Trim(w, "'")
		if len([]rune(w)) < 3 || partyStopwords[w] {
			continue
		}
		out = append(out, w)
	}
	return out
}

func dedupeEntities(in []domain.Entity) []domain.Entity {
	sort.SliceStable(in, func(i, j int) bool {
		return in[i].Range.Start < in[j].Range.Start
	})
	out := in[:0]
	seen := make(map[string]bool)
	for _, e := range in {
		key := fmt.Sprintf("%s|%d|%d", e.Kind, e.Range.Start, e.Range.End)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, e)
	}
	return out
}

// findDetailMentions returns date, deadline and amount mentions in text ordered by position.
// Overlapping matches keep the earliest, longest span.
func findDetailMentions(text string) []mention {
	var all []mention
	all = append(all, findDates(text)...)
	all = append(all, findDeadlines(text)...)
	all = append(all, findAmounts(text)...)

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].start != all[j].start {
			return all[i].start < all[j].start
		}
		return all[i].end-all[i].start > all[j].end-all[j].start
	})
	var out []mention
	lastEnd := -1
	for _, m := range all {
		if m.start < lastEnd {
			continue
		}
		out = append(out, m)
		lastEnd = m.end
	}
	return out
}

func findDates(text string) []mention {
	var out []mention
	for _, g := range isoDatePattern.FindAllStringSubmatchIndex(text, -1) {
		y, m, d := atoi(text[g[2]:g[3]]), atoi(text[g[4]:g[5]]), atoi(text[g[6]:g[7]])
		if validDay(m, d) {
			out = append(out, dateMention(text, g, []string{dateKey(y, m, d)}))
		}
	}
	for _, g := range numericDatePattern.FindAllStringSubmatchIndex(text, -1) {
		a, b, y := atoi(text[g[2]:g[3]]), atoi(text[g[4]:g[5]]), expandYear(text[g[6]:g[7]])
		var keys []string
		if validDay(b, a) {
			keys = append(keys, dateKey(y, b, a))
		}
		if a != b && validDay(a, b) {
			keys = append(keys, dateKey(y, a, b))
		}
		if len(keys) > 0 {
			out = append(out, dateMention(text, g, keys))
		}
	}
	for _, g := range monthDayPattern.FindAllStringSubmatchIndex(text, -1) {
		m := monthNumbers[strings.ToLower(text[g[2]:g[3]])]
		d := atoi(text[g[4]:g[5]])
		y := 0
		if g[6] >= 0 {
			y = atoi(text[g[6]:g[7]])
		}
		if validDay(m, d) {
			out = append(out, dateMention(text, g, []string{dateKey(y, m, d)}))
		}
	}
	for _, g := range dayMonthPattern.FindAllStringSubmatchIndex(text, -1) {
		d := atoi(text[g[2]:g[3]])
		m := monthNumbers[strings.ToLower(text[g[4]:g[5]])]
		y := 0
		if g[6] >= 0 {
			y = atoi(text[g[6]:g[7]])
		}
		if validDay(m, d) {
			out = append(out, dateMention(text, g, []string{dateKey(y, m, d)}))
		}
	}
	return out
}

func dateMention(text string, g []int, keys []string) mention {
	return mention{
		kind:       domain.EntityDate,
		value:      strings.TrimSpace(text[g[0]:g[1]]),
		normalized: keys,
		start:      g[0],
		end:        g[1],
	}
}

func findDeadlines(text string) []mention {
	var out []mention
	for _, g := range deadlinePattern.FindAllStringSubmatchIndex(text, -1) {
		n, ok := parseCount(text[g[2]:g[3]])
		if !ok || n == 0 {
			continue
		}
		unit := deadlineUnit(text[g[4]:g[5]])
		out = append(out, mention{
			kind:       domain.EntityDeadline,
			value:      text[g[2]:g[5]],
			normalized: []string{fmt.Sprintf("%d %s", n, unit)},
			start:      g[2],
			end:        g[5],
		})
	}
	return out
}

func findAmounts(text string) []mention {
	var out []mention
	for _, g := range amountPattern.FindAllStringSubmatchIndex(text, -1) {
		number := ""
		if g[4] >= 0 {
			number = text[g[4]:g[5]]
		} else if g[6] >= 0 {
			number = text[g[6]:g[7]]
		}
		canonical, ok := canonicalAmount(number)
		if !ok {
			continue
		}
		out = append(out, mention{
			kind:       domain.EntityAmount,
			value:      strings.TrimSpace(text[g[0]:g[1]]),
			normalized: []string{canonical},
			start:      g[0],
			end:        g[1],
		})
	}
	return out
}

// canonicalAmount turns "1.250,00", "1,250.00" and "1250" into "1250".
func canonicalAmount(raw string) (string, bool) {
	raw = strings.Trim(raw, ".,")
	if raw == "" {
		return "", false
	}
	intPart, frac := raw, ""
	lastDot, lastComma := strings.LastIndex(raw, "."), strings.LastIndex(raw, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		sep := lastDot
		if lastComma > lastDot {
			sep = lastComma
		}
		intPart, frac = raw[:sep], raw[sep+1:]
	case lastDot >= 0 || lastComma >= 0:
		sep := lastDot
		sepChar := "."
		if lastComma >= 0 {
			sep = lastComma
			sepChar = ","
		}
		tail := raw[sep+1:]
		if strings.Count(raw, sepChar) == 1 && len(tail) != 3 {
			intPart, frac = raw[:sep], tail
		}
	}
	intPart = strings.NewReplacer(".", "", ",", "").Replace(intPart)
	n, err := strconv.ParseUint(intPart, 10, 64)
	if err != nil {
		return "", false
	}
	frac = strings.TrimRight(frac, "0")
	if frac == "" {
		return strconv.FormatUint(n, 10), true
	}
	if _, err := strconv.ParseUint(frac, 10, 64); err != nil {
		return "", false
	}
	return strconv.FormatUint(n, 10) + "." + frac, true
}

func parseCount(raw string) (int, bool) {
	if n, err := strconv.Atoi(raw); err == nil {
		return n, true
	}
	n, ok := numberWords[strings.ToLower(raw)]
	return n, ok
}

func deadlineUnit(raw string) string {
	switch u := fold(raw); {
	case strings.HasPrefix(u, "week"), strings.HasPrefix(u, "semana"):
		return "weeks"
	case strings.HasPrefix(u, "month"), strings.HasPrefix(u, "mes"):
		return "months"
	default:
		return "days"
	}
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func expandYear(raw string) int {
	y := atoi(raw)
	if len(raw) == 2 {
		if y < 70 {
			return 2000 + y
		}
		return 1900 + y
	}
	return y
}

func validDay(month, day int) bool {
	return month >= 1 && month <= 12 && day >= 1 && day <= 31
}

// dateKey encodes a date as "y-m-d" with "?" for an unknown year.
func dateKey(year, month, day int) string {
	if year == 0 {
		return fmt.Sprintf("?-%02d-%02d", month, day)
	}
	return fmt.Sprintf("%04d-%02d-%02d", year, month, day)
}

// datesCompatible reports whether two date keys can denote the same day.
func datesCompatible(a, b string) bool {
	ya, mda, okA := strings.Cut(a, "-")
	yb, mdb, okB := strings.Cut(b, "-")
	if !okA || !okB || mda != mdb {
		return false
	}
	return ya == "?" || yb == "?" || ya == yb
}
