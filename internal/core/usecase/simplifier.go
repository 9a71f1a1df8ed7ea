package usecase

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/kirillkom/plainlaw/internal/core/domain"
	"github.com/kirillkom/plainlaw/internal/core/ports"
)

type simplificationStrategy struct {
	name string
}

type strategyPair struct {
	specific string
	generic  string
}

// simplificationStrategies is keyed by the closed DocType enumeration; a known
// subtype selects the specific instructions, otherwise the generic ones apply.
var simplificationStrategies = map[domain.DocType]strategyPair{
	domain.DocTypeResolution:        {specific: "resolution", generic: "resolution_generic"},
	domain.DocTypeProceduralWriting: {specific: "procedural_filing", generic: "procedural_generic"},
}

func selectStrategy(cls domain.Classification) simplificationStrategy {
	pair, ok := simplificationStrategies[cls.DocType]
	if !ok {
		pair = simplificationStrategies[domain.DocTypeProceduralWriting]
	}
	if cls.DocSubtype != "" && cls.DocType.Permits(cls.DocSubtype) {
		return simplificationStrategy{name: pair.specific}
	}
	return simplificationStrategy{name: pair.generic}
}

var (
	leadingMetaLine  = regexp.MustCompile(`(?i)^\s*(?:here is|here's|below is|sure|certainly|of course|aqu[ií] (?:tienes|est[aá])|a continuaci[oó]n|claro|por supuesto|este es el texto|texto simplificado)\b[^\n]*:\s*$`)
	trailingMetaLine = regexp.MustCompile(`(?i)^\s*(?:note|nota|i hope|espero que|let me know|if you (?:have|need)|si (?:tienes|necesitas)|please note)\b[^\n]*$`)
)

// SimplificationEngine rewrites a classified document in plain language with a
// strategy chosen by document type.
type SimplificationEngine struct {
	caller      completionCaller
	temperature float32
	softChars   int
	hardChars   int
}

func NewSimplificationEngine(llm ports.CompletionService, opts PipelineOptions) *SimplificationEngine {
	opts = opts.withDefaults()
	return &SimplificationEngine{
		caller:      newCompletionCaller(llm, opts),
		temperature: opts.SimplificationTemperature,
		softChars:   opts.ChunkChars,
		hardChars:   opts.HardChunkChars,
	}
}

func (e *SimplificationEngine) Simplify(ctx context.Context, doc domain.NormalizedDocument, cls domain.Classification) (domain.SimplifiedText, error) {
	strategy := selectStrategy(cls)
	entities := ExtractEntities(doc)
	chunks, truncated := chunkSections(orderedForPrompt(doc.Sections), e.softChars, e.hardChars)
	if len(chunks) == 0 {
		return domain.SimplifiedText{}, domain.WrapError(domain.ErrSimplificationFailed, "simplify document", domain.ErrEmptyDocument)
	}

	parts := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		text, err := e.simplifyChunk(ctx, strategy, cls.DocSubtype, chunk, entitiesIn(entities, chunk), i+1, len(chunks))
		if err != nil {
			if ctx.Err() != nil {
				return domain.SimplifiedText{}, ctx.Err()
			}
			return domain.SimplifiedText{}, domain.WrapError(domain.ErrSimplificationFailed, "simplify document", err)
		}
		parts = append(parts, text)
	}

	result := domain.SimplifiedText{
		PlainLanguageText: strings.Join(parts, "\n\n"),
		PreservedEntities: entities,
		Strategy:          strategy.name,
		Truncated:         truncated,
	}
	if truncated {
		result.Warnings = append(result.Warnings, fmt.Sprintf("sections longer than %d characters were truncated", e.hardChars))
	}
	return result, nil
}

func (e *SimplificationEngine) simplifyChunk(
	ctx context.Context,
	strategy simplificationStrategy,
	subtype domain.DocSubtype,
	chunk []domain.Section,
	entities []domain.Entity,
	part, parts int,
) (string, error) {
	req := ports.CompletionRequest{
		Operation:   "simplify",
		System:      simplificationSystemPrompt,
		Prompt:      simplificationPrompt(strategy, subtype, chunk, entities, part, parts),
		Temperature: e.temperature,
	}
	inputRunes := 0
	for _, s := range chunk {
		inputRunes += runeLen(strings.TrimSpace(s.Text))
	}

	var text string
	err := e.caller.withRetry(ctx, req.Operation, domain.IsTransientCompletion, func(int) error {
		out, err := e.caller.call(ctx, req)
		if err != nil {
			return err
		}
		cleaned := stripMetaComments(out)
		if minRunes := max(1, inputRunes/10); runeLen(cleaned) < minRunes {
			return domain.WrapError(domain.ErrMalformedCompletion, req.Operation,
				fmt.Errorf("output has %d characters, want at least %d", runeLen(cleaned), minRunes))
		}
		text = cleaned
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("chunk %d/%d: %w", part, parts, err)
	}
	return text, nil
}

// chunkSections packs sections into chunks of about soft characters. A section
// longer than hard is cut to hard characters.
func chunkSections(sections []domain.Section, soft, hard int) ([][]domain.Section, bool) {
	var chunks [][]domain.Section
	var current []domain.Section
	size := 0
	truncated := false

	for _, s := range sections {
		if strings.TrimSpace(s.Text) == "" {
			continue
		}
		n := runeLen(s.Text)
		if n > hard {
			s.Text = truncateRunes(s.Text, hard)
			s.Range.End = s.Range.Start + len(s.Text)
			n = hard
			truncated = true
		}
		if len(current) > 0 && size+n > soft {
			chunks = append(chunks, current)
			current, size = nil, 0
		}
		current = append(current, s)
		size += n
	}
	if len(current) > 0 {
		chunks = append(chunks, current)
	}
	return chunks, truncated
}

func entitiesIn(entities []domain.Entity, chunk []domain.Section) []domain.Entity {
	var out []domain.Entity
	for _, e := range entities {
		for _, s := range chunk {
			if e.Range.Start >= s.Range.Start && e.Range.Start < s.Range.End {
				out = append(out, e)
				break
			}
		}
	}
	return out
}

// stripMetaComments drops code fences and chatty lines a model adds around its answer.
func stripMetaComments(out string) string {
	text := strings.TrimSpace(out)
	if stripped := stripCodeFences(text); stripped != "" {
		text = stripped
	}
	lines := strings.Split(text, "\n")
	for len(lines) > 0 && (strings.TrimSpace(lines[0]) == "" || leadingMetaLine.MatchString(lines[0])) {
		lines = lines[1:]
	}
	for len(lines) > 0 {
		last := lines[len(lines)-1]
		if strings.TrimSpace(last) != "" && !trailingMetaLine.MatchString(last) {
			break
		}
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
