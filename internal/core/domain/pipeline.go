package domain

type PipelineState string

const (
	StateIngesting     PipelineState = "ingesting"
	StateNormalizing   PipelineState = "normalizing"
	StateSegmenting    PipelineState = "segmenting"
	StateClassifying   PipelineState = "classifying"
	StateSimplifying   PipelineState = "simplifying"
	StateBuildingGuide PipelineState = "building_guide"
	StateVerifying     PipelineState = "verifying"
	StateDone          PipelineState = "done"
	StateFailed        PipelineState = "failed"
)

var stateOrder = map[PipelineState]int{
	StateIngesting:     0,
	StateNormalizing:   1,
	StateSegmenting:    2,
	StateClassifying:   3,
	StateSimplifying:   4,
	StateBuildingGuide: 5,
	StateVerifying:     6,
	StateDone:          7,
}

// CanTransition reports whether the pipeline may move from s to next.
// Transitions only move forward by one stage, and any non-terminal state may fail.
func (s PipelineState) CanTransition(next PipelineState) bool {
	if s == StateDone || s == StateFailed {
		return false
	}
	if next == StateFailed {
		return true
	}
	from, ok := stateOrder[s]
	if !ok {
		return false
	}
	to, ok := stateOrder[next]
	return ok && to == from+1
}

func (s PipelineState) Terminal() bool {
	return s == StateDone || s == StateFailed
}
