package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/plainlaw/internal/core/domain"
	"github.com/kirillkom/plainlaw/internal/core/ports"
)

const defaultSemanticCode = "semantic_discrepancy"

var (
	barePattern     = regexp.MustCompile(`\d[\d.,]*\d|\d`)
	findingCodeJunk = regexp.MustCompile(`[^a-z0-9]+`)
)

type semanticAnswer struct {
	Findings []struct {
		Code                   string `json:"code"`
		Message                string `json:"message"`
		ContradictsDisposition bool   `json:"contradicts_disposition"`
		OriginalSpan           string `json:"original_span"`
		SimplifiedSpan         string `json:"simplified_span"`
	} `json:"findings"`
}

// SafetyVerifier checks generated text against the original with a deterministic
// rule pass and a model-based semantic pass.
type SafetyVerifier struct {
	caller      completionCaller
	temperature float32
}

func NewSafetyVerifier(llm ports.CompletionService, opts PipelineOptions) *SafetyVerifier {
	opts = opts.withDefaults()
	return &SafetyVerifier{
		caller:      newCompletionCaller(llm, opts),
		temperature: opts.SafetyTemperature,
	}
}

// Verify runs both passes concurrently and merges their findings. It never fails:
// an unusable semantic pass is reported as a verification_unavailable warning.
func (v *SafetyVerifier) Verify(ctx context.Context, doc domain.NormalizedDocument, simplified domain.SimplifiedText, guide domain.LegalGuide) []domain.SafetyFinding {
	var rule, semantic []domain.SafetyFinding
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rule = RuleFindings(doc, simplified, guide)
		return nil
	})
	g.Go(func() error {
		semantic = v.SemanticFindings(gctx, doc, simplified, guide)
		return nil
	})
	_ = g.Wait()
	return MergeFindings(rule, semantic)
}

// SemanticFindings asks the model once, with no retry, for discrepancies between
// the original and the generated text.
func (v *SafetyVerifier) SemanticFindings(ctx context.Context, doc domain.NormalizedDocument, simplified domain.SimplifiedText, guide domain.LegalGuide) []domain.SafetyFinding {
	req := ports.CompletionRequest{
		Operation:   "verify",
		System:      safetySystemPrompt,
		Prompt:      safetyPrompt(doc, simplified, guide),
		Temperature: v.temperature,
		JSON:        true,
	}
	out, err := v.caller.call(ctx, req)
	if err != nil {
		return verificationUnavailable(err)
	}
	var answer semanticAnswer
	if err := decodeStructured(out, semanticFindingsSchema, &answer); err != nil {
		return verificationUnavailable(domain.WrapError(domain.ErrMalformedCompletion, req.Operation, err))
	}

	findings := make([]domain.SafetyFinding, 0, len(answer.Findings))
	for _, f := range answer.Findings {
		finding := domain.SafetyFinding{
			Code:     normalizeFindingCode(f.Code),
			Severity: domain.SeverityWarning,
			Message:  strings.TrimSpace(f.Message),
		}
		if f.ContradictsDisposition {
			finding.Code = domain.FindingDispositionContradicted
			finding.Severity = domain.SeverityCritical
		}
		if f.OriginalSpan != "" || f.SimplifiedSpan != "" {
			finding.Evidence = []domain.Evidence{{
				Original:   strings.TrimSpace(f.OriginalSpan),
				Simplified: strings.TrimSpace(f.SimplifiedSpan),
			}}
		}
		findings = append(findings, finding)
	}
	return findings
}

func verificationUnavailable(cause error) []domain.SafetyFinding {
	err := domain.WrapError(domain.ErrVerificationUnavailable, "semantic verification", cause)
	slog.Warn("semantic_verification_unavailable", "error", err)
	return []domain.SafetyFinding{{
		Code:     domain.FindingVerificationUnavailable,
		Severity: domain.SeverityWarning,
		Message:  "The semantic safety check could not run; only the rule-based checks were applied.",
	}}
}

func normalizeFindingCode(raw string) string {
	code := strings.Trim(findingCodeJunk.ReplaceAllString(strings.ToLower(raw), "_"), "_")
	if code == "" {
		return defaultSemanticCode
	}
	return code
}

// generatedFacts indexes what the simplified text and the guide mention.
type generatedFacts struct {
	mentions   []mention
	numbers    mapset.Set[string]
	words      mapset.Set[string]
	polarities map[domain.Polarity]bool
}

func indexGenerated(text string) generatedFacts {
	facts := generatedFacts{
		mentions:   findDetailMentions(text),
		numbers:    mapset.NewThreadUnsafeSet[string](),
		words:      mapset.NewThreadUnsafeSet[string](wordPattern.FindAllString(fold(text), -1)...),
		polarities: polaritiesIn(text),
	}
	for _, loc := range barePattern.FindAllStringIndex(text, -1) {
		if insideDateOrDeadline(facts.mentions, loc[0], loc[1]) {
			continue
		}
		if n, ok := canonicalAmount(text[loc[0]:loc[1]]); ok {
			facts.numbers.Add(n)
		}
	}
	return facts
}

// insideDateOrDeadline reports whether text[start:end] belongs to a date or a
// deadline mention, so "30 days" never stands in for an amount of 30.
func insideDateOrDeadline(mentions []mention, start, end int) bool {
	for _, m := range mentions {
		if m.kind != domain.EntityDate && m.kind != domain.EntityDeadline {
			continue
		}
		if m.start <= start && end <= m.end {
			return true
		}
	}
	return false
}

// RuleFindings compares critical entities of the original with the simplified text
// and the guide. It is deterministic and makes no calls.
func RuleFindings(doc domain.NormalizedDocument, simplified domain.SimplifiedText, guide domain.LegalGuide) []domain.SafetyFinding {
	entities := simplified.PreservedEntities
	if entities == nil {
		entities = ExtractEntities(doc)
	}
	generatedText := simplified.PlainLanguageText + "\n" + strings.Join(guide.Blocks(), "\n")
	generated := indexGenerated(generatedText)

	var findings []domain.SafetyFinding
	for _, e := range entities {
		switch {
		case e.Kind == domain.EntityParty:
			if !generated.mentionsParty(e) {
				findings = append(findings, domain.SafetyFinding{
					Code:     domain.FindingPartyDropped,
					Severity: domain.SeverityWarning,
					Message:  fmt.Sprintf("The party %q is not mentioned in the simplified text.", e.Value),
					Evidence: []domain.Evidence{{Original: e.Value}},
				})
			}
		case !e.Critical:
			continue
		case e.Kind == domain.EntityOutcome:
			if f, ok := outcomeFinding(e, generated.polarities); ok {
				findings = append(findings, f)
			}
		default:
			if !generated.mentionsDetail(e) {
				findings = append(findings, domain.SafetyFinding{
					Code:     domain.FindingEntityDropped,
					Severity: domain.SeverityCritical,
					Message:  fmt.Sprintf("The %s %q from the original is missing in the simplified text.", e.Kind, e.Value),
					Evidence: []domain.Evidence{{Original: e.Value}},
				})
			}
		}
	}
	return append(findings, ungroundedFindings(doc, generated)...)
}

// outcomeFinding reports an outcome that is missing from the generated text or
// contradicted anywhere in it. Stating the original outcome does not excuse a
// contradiction elsewhere.
func outcomeFinding(e domain.Entity, polarities map[domain.Polarity]bool) (domain.SafetyFinding, bool) {
	var message string
	switch opposite := e.Polarity.Opposite(); {
	case opposite != domain.PolarityNone && polarities[opposite]:
		message = fmt.Sprintf("The simplified text states the opposite outcome (%s) of %q.", opposite, e.Value)
	case polarities[e.Polarity]:
		return domain.SafetyFinding{}, false
	default:
		message = fmt.Sprintf("The outcome %q (%s) is not stated in the simplified text.", e.Value, e.Polarity)
	}
	return domain.SafetyFinding{
		Code:     domain.FindingOutcomeMismatch,
		Severity: domain.SeverityCritical,
		Message:  message,
		Evidence: []domain.Evidence{{Original: e.Value}},
	}, true
}

func (g generatedFacts) mentionsDetail(e domain.Entity) bool {
	for _, m := range g.mentions {
		if m.kind == e.Kind && normalizedMatch(e.Kind, m.normalized, e.Normalized) {
			return true
		}
	}
	if e.Kind == domain.EntityAmount {
		for _, n := range e.Normalized {
			if g.numbers.Contains(n) {
				return true
			}
		}
	}
	return false
}

func (g generatedFacts) mentionsParty(e domain.Entity) bool {
	for _, token := range e.Normalized {
		if g.words.Contains(token) {
			return true
		}
	}
	return false
}

func normalizedMatch(kind domain.EntityKind, a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if kind == domain.EntityDate {
				if datesCompatible(x, y) {
					return true
				}
				continue
			}
			if x == y {
				return true
			}
		}
	}
	return false
}

// ungroundedFindings flags dates and amounts in the generated text that do not
// appear anywhere in the original.
func ungroundedFindings(doc domain.NormalizedDocument, generated generatedFacts) []domain.SafetyFinding {
	original := indexGenerated(doc.RawText)
	var findings []domain.SafetyFinding
	for _, m := range generated.mentions {
		if m.kind != domain.EntityDate && m.kind != domain.EntityAmount {
			continue
		}
		candidate := domain.Entity{Kind: m.kind, Normalized: m.normalized}
		if original.mentionsDetail(candidate) {
			continue
		}
		findings = append(findings, domain.SafetyFinding{
			Code:     domain.FindingUngroundedDetail,
			Severity: domain.SeverityWarning,
			Message:  fmt.Sprintf("The %s %q does not appear in the original document.", m.kind, m.value),
			Evidence: []domain.Evidence{{Simplified: m.value}},
		})
	}
	return findings
}

// MergeFindings folds rule findings and semantic findings into one list with a
// single entry per code. The higher severity wins, messages and evidence are
// merged, and critical findings come first. Order is otherwise stable, rule
// findings before semantic ones.
func MergeFindings(rule, semantic []domain.SafetyFinding) []domain.SafetyFinding {
	type group struct {
		finding  domain.SafetyFinding
		messages mapset.Set[string]
		evidence mapset.Set[domain.Evidence]
	}
	var order []string
	groups := make(map[string]*group)

	for _, f := range append(append([]domain.SafetyFinding{}, rule...), semantic...) {
		g, ok := groups[f.Code]
		if !ok {
			g = &group{
				finding:  domain.SafetyFinding{Code: f.Code, Severity: f.Severity},
				messages: mapset.NewThreadUnsafeSet[string](),
				evidence: mapset.NewThreadUnsafeSet[domain.Evidence](),
			}
			groups[f.Code] = g
			order = append(order, f.Code)
		}
		if f.Severity.Rank() < g.finding.Severity.Rank() {
			g.finding.Severity = f.Severity
		}
		if msg := strings.TrimSpace(f.Message); msg != "" && g.messages.Add(msg) {
			if g.finding.Message != "" {
				g.finding.Message += " "
			}
			g.finding.Message += msg
		}
		for _, ev := range f.Evidence {
			if g.evidence.Add(ev) {
				g.finding.Evidence = append(g.finding.Evidence, ev)
			}
		}
	}

	out := make([]domain.SafetyFinding, 0, len(order))
	for _, code := range order {
		out = append(out, groups[code].finding)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Severity.Rank() < out[j].Severity.Rank()
	})
	return out
}
