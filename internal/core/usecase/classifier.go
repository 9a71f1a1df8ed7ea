package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/kirillkom/plainlaw/internal/core/domain"
	"github.com/kirillkom/plainlaw/internal/core/ports"
)

const (
	headerEvidenceLines = 20
	minRuleConfidence   = 0.2
)

var typeKeywords = map[domain.DocType][]string{
	domain.DocTypeResolution: {
		"sentencia", "fallo", "fallamos", "auto", "decreto", "resuelvo", "providencia",
		"judgment", "judgement", "ruling", "decree", "it is ordered", "so ordered",
	},
	domain.DocTypeProceduralWriting: {
		"demanda", "escrito", "recurso", "suplico", "solicito", "otrosi",
		"complaint", "motion", "petition", "appeal", "wherefore", "respectfully submitted",
	},
}

// Order matters: the first subtype found in the header wins.
var subtypeKeywords = []struct {
	subtype  domain.DocSubtype
	keywords []string
}{
	{domain.SubtypeJudgment, []string{"sentencia", "judgment", "judgement"}},
	{domain.SubtypeOrder, []string{"auto", "providencia", "order"}},
	{domain.SubtypeDecree, []string{"decreto", "decree"}},
	{domain.SubtypeRuling, []string{"ruling", "resolucion"}},
	{domain.SubtypeComplaint, []string{"demanda", "complaint"}},
	{domain.SubtypeAppeal, []string{"recurso", "appeal"}},
	{domain.SubtypeOpposition, []string{"oposicion", "opposition", "impugnacion"}},
	{domain.SubtypePleading, []string{"escrito", "pleading", "motion", "contestacion"}},
}

var docTypeAliases = map[string]domain.DocType{
	"resolution":          domain.DocTypeResolution,
	"resolucion_juridica": domain.DocTypeResolution,
	"procedural_writing":  domain.DocTypeProceduralWriting,
	"escrito_procesal":    domain.DocTypeProceduralWriting,
}

var subtypeAliases = map[string]domain.DocSubtype{
	"sentencia":   domain.SubtypeJudgment,
	"auto":        domain.SubtypeOrder,
	"providencia": domain.SubtypeOrder,
	"decreto":     domain.SubtypeDecree,
	"demanda":     domain.SubtypeComplaint,
	"recurso":     domain.SubtypeAppeal,
	"escrito":     domain.SubtypePleading,
}

type ruleEvidence struct {
	typeScores   map[domain.DocType]int
	bestType     domain.DocType
	subtype      domain.DocSubtype
	confidence   float64
	explanations []string
}

type classificationAnswer struct {
	DocType    string  `json:"doc_type"`
	DocSubtype *string `json:"doc_subtype"`
	Confidence float64 `json:"confidence"`
}

// DocumentClassifier assigns a document type by combining keyword evidence with one model call.
type DocumentClassifier struct {
	caller      completionCaller
	temperature float32
}

func NewDocumentClassifier(llm ports.CompletionService, opts PipelineOptions) *DocumentClassifier {
	opts = opts.withDefaults()
	return &DocumentClassifier{
		caller:      newCompletionCaller(llm, opts),
		temperature: opts.ClassificationTemperature,
	}
}

func (c *DocumentClassifier) Classify(ctx context.Context, doc domain.NormalizedDocument) (domain.Classification, error) {
	evidence := collectRuleEvidence(doc)
	system, prompt := classificationPrompt(doc, evidence)
	req := ports.CompletionRequest{
		Operation:   "classify",
		System:      system,
		Prompt:      prompt,
		Temperature: c.temperature,
		JSON:        true,
	}

	var raw string
	err := c.caller.withRetry(ctx, req.Operation, isTransportFailure, func(int) error {
		out, err := c.caller.call(ctx, req)
		raw = out
		return err
	})
	if err != nil {
		if ctx.Err() != nil {
			return domain.Classification{}, ctx.Err()
		}
		if isTransportFailure(err) {
			return domain.Classification{}, domain.WrapError(domain.ErrClassificationUnavailable, "classify document", err)
		}
		return fallbackClassification(evidence, err), nil
	}

	var answer classificationAnswer
	if err := decodeStructured(raw, classificationSchema, &answer); err != nil {
		return fallbackClassification(evidence, err), nil
	}
	docType, ok := docTypeAliases[strings.ToLower(strings.TrimSpace(answer.DocType))]
	if !ok {
		return fallbackClassification(evidence, fmt.Errorf("label %q outside enumeration", answer.DocType)), nil
	}

	explanations := append([]string{}, evidence.explanations...)
	explanations = append(explanations, fmt.Sprintf("model: %s", docType))
	return domain.Classification{
		DocType:      docType,
		DocSubtype:   pickSubtype(docType, answer.DocSubtype, evidence.subtype),
		Confidence:   clampConfidence(answer.Confidence),
		Source:       domain.ClassificationSourceLLM,
		Explanations: explanations,
	}, nil
}

// fallbackClassification routes an unusable answer to the procedural writing branch.
func fallbackClassification(evidence ruleEvidence, cause error) domain.Classification {
	err := domain.WrapError(domain.ErrClassificationAmbiguous, "classify document", cause)
	slog.Warn("classification_ambiguous", "error", err, "rule_type", evidence.bestType)

	subtype := domain.DocSubtype("")
	if domain.DocTypeProceduralWriting.Permits(evidence.subtype) {
		subtype = evidence.subtype
	}
	explanations := append([]string{}, evidence.explanations...)
	explanations = append(explanations, "fallback: "+cause.Error())
	return domain.Classification{
		DocType:      domain.DocTypeProceduralWriting,
		DocSubtype:   subtype,
		Confidence:   evidence.confidence,
		Source:       domain.ClassificationSourceFallback,
		Ambiguous:    true,
		Explanations: explanations,
	}
}

func pickSubtype(docType domain.DocType, fromModel *string, fromRules domain.DocSubtype) domain.DocSubtype {
	if fromModel != nil {
		raw := strings.ToLower(strings.TrimSpace(*fromModel))
		candidate := domain.DocSubtype(raw)
		if alias, ok := subtypeAliases[raw]; ok {
			candidate = alias
		}
		if docType.Permits(candidate) {
			return candidate
		}
	}
	if docType.Permits(fromRules) {
		return fromRules
	}
	return ""
}

// clampConfidence maps the reported confidence into [0, 1]. Values up to 100
// are read as percentages.
func clampConfidence(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 && v <= 100 {
		v /= 100
	}
	if v > 1 {
		return 1
	}
	return v
}

// collectRuleEvidence scores keyword hits per type and picks a subtype, letting a
// subtype named in the header override everything else.
func collectRuleEvidence(doc domain.NormalizedDocument) ruleEvidence {
	text := " " + squash(doc.RawText) + " "
	lines := strings.Split(doc.RawText, "\n")
	if len(lines) > headerEvidenceLines {
		lines = lines[:headerEvidenceLines]
	}
	header := " " + squash(strings.Join(lines, " ")) + " "

	ev := ruleEvidence{typeScores: make(map[domain.DocType]int)}
	var matches []string
	for _, t := range domain.DocTypes {
		for _, kw := range typeKeywords[t] {
			if containsWord(text, kw) {
				ev.typeScores[t]++
				matches = append(matches, fmt.Sprintf("%s:%s", t, kw))
			}
		}
	}
	ev.bestType = domain.DocTypeProceduralWriting
	if ev.typeScores[domain.DocTypeResolution] > ev.typeScores[domain.DocTypeProceduralWriting] {
		ev.bestType = domain.DocTypeResolution
	}
	typeScore := math.Min(1, 0.2*float64(ev.typeScores[ev.bestType]))

	subtypeScore := 0.0
	for _, st := range subtypeKeywords {
		if anyWord(header, st.keywords) {
			ev.subtype = st.subtype
			subtypeScore = 1
			ev.explanations = append(ev.explanations, fmt.Sprintf("subtype %s from header", st.subtype))
			break
		}
	}
	if ev.subtype == "" {
		for _, st := range subtypeKeywords {
			if ev.bestType.Permits(st.subtype) && anyWord(text, st.keywords) {
				ev.subtype = st.subtype
				subtypeScore = 0.25
				break
			}
		}
	}

	ev.confidence = math.Round(math.Min(1, math.Max(typeScore, minRuleConfidence)+subtypeScore*0.5)*100) / 100
	if len(matches) > 5 {
		matches = matches[:5]
	}
	if len(matches) > 0 {
		ev.explanations = append([]string{"rules: " + strings.Join(matches, ", ")}, ev.explanations...)
	}
	return ev
}

// containsWord matches a folded phrase on word boundaries inside a space-padded squashed text.
func containsWord(padded, phrase string) bool {
	return strings.Contains(padded, " "+phrase+" ") ||
		strings.Contains(padded, " "+phrase+",") ||
		strings.Contains(padded, " "+phrase+".") ||
		strings.Contains(padded, " "+phrase+":")
}

func anyWord(padded string, phrases []string) bool {
	for _, p := range phrases {
		if containsWord(padded, p) {
			return true
		}
	}
	return false
}
