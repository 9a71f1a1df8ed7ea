package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/kirillkom/plainlaw/internal/core/domain"
	"github.com/kirillkom/plainlaw/internal/core/ports"
)

const (
	validClassificationJSON = `{"doc_type":"resolution","doc_subtype":"judgment","confidence":0.9}`
	validGuideJSON          = `{"meaning_for_you":"The court rejected your claim.","what_to_do_now":"Read the decision and talk to a lawyer.","what_happens_next":"The decision becomes final unless someone appeals.","deadlines_and_risks":"You have 20 days to appeal."}`
	emptyFindingsJSON       = `{"findings":[]}`
)

type completionStep struct {
	out string
	err error
}

// completionFake answers per operation from a queue, then from a default.
type completionFake struct {
	mu       sync.Mutex
	queued   map[string][]completionStep
	defaults map[string]completionStep
	calls    map[string]int
	prompts  map[string][]string
	block    bool
}

func newCompletionFake() *completionFake {
	return &completionFake{
		queued:   make(map[string][]completionStep),
		defaults: make(map[string]completionStep),
		calls:    make(map[string]int),
		prompts:  make(map[string][]string),
	}
}

// happyCompletionFake answers every stage with a valid response.
func happyCompletionFake(simplified string) *completionFake {
	f := newCompletionFake()
	f.defaults["classify"] = completionStep{out: validClassificationJSON}
	f.defaults["simplify"] = completionStep{out: simplified}
	f.defaults["build_guide"] = completionStep{out: validGuideJSON}
	f.defaults["verify"] = completionStep{out: emptyFindingsJSON}
	return f
}

func (f *completionFake) enqueue(operation string, steps ...completionStep) *completionFake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queued[operation] = append(f.queued[operation], steps...)
	return f
}

func (f *completionFake) callCount(operation string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[operation]
}

func (f *completionFake) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

func (f *completionFake) promptsFor(operation string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.prompts[operation]...)
}

func (f *completionFake) Complete(ctx context.Context, req ports.CompletionRequest) (string, error) {
	f.mu.Lock()
	f.calls[req.Operation]++
	f.prompts[req.Operation] = append(f.prompts[req.Operation], req.Prompt)
	block := f.block
	var step completionStep
	var ok bool
	if queue := f.queued[req.Operation]; len(queue) > 0 {
		step, ok = queue[0], true
		f.queued[req.Operation] = queue[1:]
	} else {
		step, ok = f.defaults[req.Operation]
	}
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if !ok {
		return "", domain.WrapError(domain.ErrCompletionUnavailable, req.Operation, errors.New("no scripted answer"))
	}
	return step.out, step.err
}

func unavailable(operation string) completionStep {
	return completionStep{err: domain.WrapError(domain.ErrCompletionUnavailable, operation, errors.New("connection refused"))}
}

func timedOut(operation string) completionStep {
	return completionStep{err: domain.WrapError(domain.ErrCompletionTimeout, operation, context.DeadlineExceeded)}
}

type extractorFake struct {
	text  string
	err   error
	calls int
}

func (f *extractorFake) Extract(context.Context, []byte, domain.SourceKind) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

type observerFake struct {
	mu     sync.Mutex
	stages []domain.PipelineState
	failed []domain.PipelineState
}

func (f *observerFake) ObserveStage(stage domain.PipelineState, _ time.Duration, failed bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stages = append(f.stages, stage)
	if failed {
		f.failed = append(f.failed, stage)
	}
}

func testOptions() PipelineOptions {
	return PipelineOptions{
		CallTimeout:     2 * time.Second,
		PipelineTimeout: 10 * time.Second,
		RetryBackoff:    0,
	}
}

func segment(text string) domain.NormalizedDocument {
	return NewSectionSegmenter().Segment(text)
}
