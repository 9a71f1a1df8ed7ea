package usecase

import (
	"context"
	"strings"
	"testing"

	"github.com/kirillkom/plainlaw/internal/core/domain"
)

func TestBuildGuideRetriesAfterTimeout(t *testing.T) {
	llm := newCompletionFake().enqueue("build_guide", timedOut("build_guide"), completionStep{out: validGuideJSON})
	doc := segment(spanishJudgment)

	guide, err := NewLegalGuideBuilder(llm, testOptions()).Build(context.Background(), simplifiedFor(doc, "The court accepted the claim."), doc)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if guide.DeadlinesAndRisks != "You have 20 days to appeal." {
		t.Fatalf("unexpected guide: %+v", guide)
	}
	for i, block := range guide.Blocks() {
		if strings.TrimSpace(block) == "" {
			t.Fatalf("block %s is empty", domain.GuideBlockNames[i])
		}
	}
	if llm.callCount("build_guide") != 2 {
		t.Fatalf("expected two calls, got %d", llm.callCount("build_guide"))
	}
}

func TestBuildGuideRegeneratesDefectiveBlocks(t *testing.T) {
	duplicated := `{"meaning_for_you":"You lost.","what_to_do_now":"you  LOST.","what_happens_next":"","deadlines_and_risks":"Appeal in 20 days."}`
	llm := newCompletionFake().enqueue("build_guide", completionStep{out: duplicated}, completionStep{out: validGuideJSON})
	doc := segment(spanishJudgment)

	if _, err := NewLegalGuideBuilder(llm, testOptions()).Build(context.Background(), simplifiedFor(doc, "x"), doc); err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	prompts := llm.promptsFor("build_guide")
	if len(prompts) != 2 {
		t.Fatalf("expected regeneration, got %d prompts", len(prompts))
	}
	if strings.Contains(prompts[0], "rejected") {
		t.Fatalf("first prompt must not mention defects")
	}
	if !strings.Contains(prompts[1], "what_to_do_now, what_happens_next") {
		t.Fatalf("regeneration prompt must name the defective blocks:\n%s", prompts[1])
	}
}

func TestBuildGuideIncompleteAfterRetry(t *testing.T) {
	missing := `{"meaning_for_you":"You lost.","what_to_do_now":"Appeal.","what_happens_next":"Nothing."}`
	llm := newCompletionFake().enqueue("build_guide", completionStep{out: missing}, completionStep{out: missing})
	doc := segment(spanishJudgment)

	_, err := NewLegalGuideBuilder(llm, testOptions()).Build(context.Background(), simplifiedFor(doc, "x"), doc)
	if !domain.IsKind(err, domain.ErrGuideIncomplete) {
		t.Fatalf("Build() error = %v, want ErrGuideIncomplete", err)
	}
	if llm.callCount("build_guide") != 2 {
		t.Fatalf("expected exactly one regeneration, got %d calls", llm.callCount("build_guide"))
	}
}

func TestGuidePromptIncludesDispositionHints(t *testing.T) {
	doc := segment(spanishJudgment)
	prompt := guidePrompt(simplifiedFor(doc, "The court accepted the claim."), doc, nil)

	for _, want := range []string{"The court accepted the claim.", "1.500,00 €", "quince días"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("guide prompt missing %q:\n%s", want, prompt)
		}
	}
}
