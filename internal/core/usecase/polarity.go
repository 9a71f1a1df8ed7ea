package usecase

import (
	"regexp"
	"strings"

	"github.com/kirillkom/plainlaw/internal/core/domain"
)

// outcomeLexicon maps folded keyword phrases to the outcome they announce.
// A trailing "*" matches any word starting with the stem.
var outcomeLexicon = []struct {
	polarity domain.Polarity
	phrases  []string
}{
	{domain.PolarityDeny, []string{
		"deny*", "denied", "dismiss*", "reject*", "overrul*", "refus*", "turned down",
		"desestim*", "deneg*", "rechaz*", "inadmit*", "no ha lugar", "lost the case",
		"lose the case", "loses the case", "you lost", "pierde el pleito", "perdio el pleito",
	}},
	{domain.PolarityGrant, []string{
		"grant*", "upheld", "uphold*", "sustain*", "approv*", "appeal allowed",
		"claim allowed", "accepted your claim", "accepted the claim", "accepts the claim",
		"estima", "estimo", "estimamos", "estimando", "estimada", "estimado", "estimar", "se estima",
		"acoge*", "accede*", "concede*", "won the case", "wins the case", "you won",
		"in your favor", "a su favor", "a tu favor", "da la razon",
	}},
	{domain.PolarityAcquit, []string{
		"acquit*", "absuel*", "absolv*", "exonerat*", "not guilty", "free of charge*",
		"libre de", "not liable",
	}},
	{domain.PolarityCondemn, []string{
		"condemn*", "conden*", "convict*", "guilty", "is liable", "are liable", "found liable",
		"held liable", "shall pay", "must pay", "ordered to pay", "has to pay", "have to pay",
		"need to pay", "debe pagar", "debera pagar", "tiene que pagar", "tendra que pagar",
		"abonar", "abone",
	}},
	{domain.PolarityTerminate, []string{
		"terminat*", "evict*", "desahuc*", "lanzamiento", "desaloj*", "rescind*",
		"rescision", "extingu*", "vacate*", "tenancy ends", "tenancy will end",
		"tenancy ended", "lease ends", "lease will end", "contract ends", "contract will end",
		"contrato termina", "contrato terminara", "arrendamiento termina", "se acaba",
		"lose the tenancy", "lose your home", "leave the property", "pierde la vivienda",
	}},
	{domain.PolarityContinue, []string{
		"continu* in force", "tenancy continu*", "lease continu*", "contract continu*",
		"remain* in force", "stays in force", "renew*", "prorrog*", "se mantiene el contrato",
		"subsiste el contrato", "sigue vigente",
	}},
}

var negationWords = map[string]bool{
	"not": true, "no": true, "never": true, "neither": true, "nor": true, "without": true,
	"sin": true, "nunca": true, "ni": true, "don't": true, "doesn't": true, "won't": true,
}

var (
	clauseSeparator = regexp.MustCompile(`(?i)[;:!?\n]+|\.+(?:\s+|$)|\s+(?:or|and|but|otherwise|y|pero|sino|de lo contrario)\s+`)
	wordPattern     = regexp.MustCompile(`[\p{L}\p{N}']+`)
)

type phraseWord struct {
	text   string
	prefix bool
}

type compiledPhrase struct {
	polarity domain.Polarity
	words    []phraseWord
	negated  bool
}

var compiledLexicon = compileLexicon()

func compileLexicon() []compiledPhrase {
	var out []compiledPhrase
	for _, entry := range outcomeLexicon {
		for _, phrase := range entry.phrases {
			p := compiledPhrase{polarity: entry.polarity}
			for _, w := range strings.Fields(phrase) {
				p.words = append(p.words, phraseWord{
					text:   strings.TrimSuffix(w, "*"),
					prefix: strings.HasSuffix(w, "*"),
				})
			}
			p.negated = negationWords[p.words[0].text]
			out = append(out, p)
		}
	}
	return out
}

// clauseSpan is a clause of text with its byte range inside the text it was cut from.
type clauseSpan struct {
	text  string
	start int
	end   int
}

func splitClauses(text string) []clauseSpan {
	var out []clauseSpan
	prev := 0
	for _, loc := range clauseSeparator.FindAllStringIndex(text, -1) {
		out = appendClause(out, text, prev, loc[0])
		prev = loc[1]
	}
	return appendClause(out, text, prev, len(text))
}

func appendClause(out []clauseSpan, text string, start, end int) []clauseSpan {
	raw := text[start:end]
	trimmedLeft := strings.TrimLeft(raw, " \t,")
	start += len(raw) - len(trimmedLeft)
	trimmed := strings.TrimRight(trimmedLeft, " \t,")
	if trimmed == "" {
		return out
	}
	return append(out, clauseSpan{text: trimmed, start: start, end: start + len(trimmed)})
}

// clausePolarity returns the outcome announced by a clause, PolarityNone when it has none.
// A negation up to three words before the keyword flips the outcome.
func clausePolarity(clause string) domain.Polarity {
	words := wordPattern.FindAllString(fold(clause), -1)
	for i := range words {
		for _, p := range compiledLexicon {
			if !matchPhraseAt(words, i, p) {
				continue
			}
			if !p.negated && negatedBefore(words, i) {
				return p.polarity.Opposite()
			}
			return p.polarity
		}
	}
	return domain.PolarityNone
}

func matchPhraseAt(words []string, i int, p compiledPhrase) bool {
	if i+len(p.words) > len(words) {
		return false
	}
	for j, w := range p.words {
		got := words[i+j]
		if w.prefix {
			if !strings.HasPrefix(got, w.text) {
				return false
			}
			continue
		}
		if got != w.text {
			return false
		}
	}
	return true
}

func negatedBefore(words []string, i int) bool {
	from := i - 3
	if from < 0 {
		from = 0
	}
	for _, w := range words[from:i] {
		if negationWords[w] {
			return true
		}
	}
	return false
}

// polaritiesIn collects every outcome announced anywhere in text.
func polaritiesIn(text string) map[domain.Polarity]bool {
	out := make(map[domain.Polarity]bool)
	for _, c := range splitClauses(text) {
		if p := clausePolarity(c.text); p != domain.PolarityNone {
			out[p] = true
		}
	}
	return out
}
