package domain

import "testing"

func TestPipelineStateTransitions(t *testing.T) {
	order := []PipelineState{
		StateIngesting, StateNormalizing, StateSegmenting, StateClassifying,
		StateSimplifying, StateBuildingGuide, StateVerifying, StateDone,
	}
	for i := 0; i+1 < len(order); i++ {
		if !order[i].CanTransition(order[i+1]) {
			t.Fatalf("%s -> %s must be allowed", order[i], order[i+1])
		}
		if !order[i].CanTransition(StateFailed) {
			t.Fatalf("%s -> failed must be allowed", order[i])
		}
		if i+2 < len(order) && order[i].CanTransition(order[i+2]) {
			t.Fatalf("%s -> %s skips a stage", order[i], order[i+2])
		}
		if order[i+1].CanTransition(order[i]) {
			t.Fatalf("%s -> %s moves backwards", order[i+1], order[i])
		}
	}
	for _, terminal := range []PipelineState{StateDone, StateFailed} {
		if !terminal.Terminal() {
			t.Fatalf("%s must be terminal", terminal)
		}
		for _, next := range order {
			if terminal.CanTransition(next) {
				t.Fatalf("%s -> %s leaves a terminal state", terminal, next)
			}
		}
	}
}

func TestSourceKindForFilename(t *testing.T) {
	cases := map[string]SourceKind{
		"sentencia.PDF":   SourcePDF,
		"scan.jpeg":       SourceImage,
		"photo.webp":      SourceImage,
		"auto.txt":        SourceText,
		"no-extension":    SourceText,
		"dir.pdf/doc.tif": SourceImage,
	}
	for name, want := range cases {
		if got := SourceKindForFilename(name); got != want {
			t.Fatalf("SourceKindForFilename(%q) = %q, want %q", name, got, want)
		}
	}
}
