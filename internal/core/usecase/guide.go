package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/kirillkom/plainlaw/internal/core/domain"
	"github.com/kirillkom/plainlaw/internal/core/ports"
)

type guideAnswer struct {
	MeaningForYou     string `json:"meaning_for_you"`
	WhatToDoNow       string `json:"what_to_do_now"`
	WhatHappensNext   string `json:"what_happens_next"`
	DeadlinesAndRisks string `json:"deadlines_and_risks"`
}

// LegalGuideBuilder produces the four-block action guide from the simplified text
// and the salient sections of the original.
type LegalGuideBuilder struct {
	caller      completionCaller
	temperature float32
}

func NewLegalGuideBuilder(llm ports.CompletionService, opts PipelineOptions) *LegalGuideBuilder {
	opts = opts.withDefaults()
	return &LegalGuideBuilder{
		caller:      newCompletionCaller(llm, opts),
		temperature: opts.GuideTemperature,
	}
}

// Build never returns a partial guide: anything short of four distinct, non-empty
// blocks after the single regeneration is ErrGuideIncomplete.
func (b *LegalGuideBuilder) Build(ctx context.Context, simplified domain.SimplifiedText, doc domain.NormalizedDocument) (domain.LegalGuide, error) {
	var (
		guide   domain.LegalGuide
		defects []string
	)
	err := b.caller.withRetry(ctx, "build_guide", domain.IsTransientCompletion, func(int) error {
		req := ports.CompletionRequest{
			Operation:   "build_guide",
			System:      guideSystemPrompt,
			Prompt:      guidePrompt(simplified, doc, defects),
			Temperature: b.temperature,
			JSON:        true,
		}
		out, err := b.caller.call(ctx, req)
		if err != nil {
			return err
		}

		var answer guideAnswer
		if err := decodeStructured(out, guideSchema, &answer); err != nil {
			return domain.WrapError(domain.ErrMalformedCompletion, req.Operation, err)
		}
		candidate := domain.LegalGuide{
			MeaningForYou:     strings.TrimSpace(answer.MeaningForYou),
			WhatToDoNow:       strings.TrimSpace(answer.WhatToDoNow),
			WhatHappensNext:   strings.TrimSpace(answer.WhatHappensNext),
			DeadlinesAndRisks: strings.TrimSpace(answer.DeadlinesAndRisks),
		}
		if defects = guideDefects(candidate); len(defects) > 0 {
			return domain.WrapError(domain.ErrMalformedCompletion, req.Operation,
				fmt.Errorf("defective blocks: %s", strings.Join(defects, ", ")))
		}
		guide = candidate
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return domain.LegalGuide{}, ctx.Err()
		}
		return domain.LegalGuide{}, domain.WrapError(domain.ErrGuideIncomplete, "build guide", err)
	}
	return guide, nil
}

// guideDefects names blocks that are empty or repeat an earlier block, ignoring case and spacing.
func guideDefects(g domain.LegalGuide) []string {
	var defects []string
	seen := make(map[string]bool)
	for i, block := range g.Blocks() {
		key := squash(block)
		if key == "" || seen[key] {
			defects = append(defects, domain.GuideBlockNames[i])
			continue
		}
		seen[key] = true
	}
	return defects
}
