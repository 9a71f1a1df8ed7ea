package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/plainlaw/internal/core/domain"
	"github.com/kirillkom/plainlaw/internal/core/ports"
)

// ProcessDocumentUseCase runs the clarification pipeline for one document. It keeps
// no request state, so a single instance serves concurrent requests.
type ProcessDocumentUseCase struct {
	extractor  ports.TextExtractor
	observer   ports.PipelineObserver
	normalizer *TextNormalizer
	segmenter  *SectionSegmenter
	classifier *DocumentClassifier
	simplifier *SimplificationEngine
	guides     *LegalGuideBuilder
	verifier   *SafetyVerifier
	timeout    time.Duration
}

func NewProcessDocumentUseCase(
	extractor ports.TextExtractor,
	llm ports.CompletionService,
	opts PipelineOptions,
	observer ports.PipelineObserver,
) *ProcessDocumentUseCase {
	opts = opts.withDefaults()
	if observer == nil {
		observer = noopObserver{}
	}
	return &ProcessDocumentUseCase{
		extractor:  extractor,
		observer:   observer,
		normalizer: NewTextNormalizer(),
		segmenter:  NewSectionSegmenter(),
		classifier: NewDocumentClassifier(llm, opts),
		simplifier: NewSimplificationEngine(llm, opts),
		guides:     NewLegalGuideBuilder(llm, opts),
		verifier:   NewSafetyVerifier(llm, opts),
		timeout:    opts.PipelineTimeout,
	}
}

// Process returns either a complete result or a *domain.PipelineError, never both.
func (uc *ProcessDocumentUseCase) Process(ctx context.Context, input domain.RawInput) (*domain.ProcessDocumentResult, error) {
	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	run := &pipelineRun{state: domain.StateIngesting, started: time.Now(), observer: uc.observer}
	slog.Debug("pipeline_started", "input", describeInput(input))
	result, err := uc.processPipeline(ctx, run, input)
	if err != nil {
		return nil, run.fail(err)
	}
	return result, nil
}

func (uc *ProcessDocumentUseCase) processPipeline(ctx context.Context, run *pipelineRun, input domain.RawInput) (*domain.ProcessDocumentResult, error) {
	raw, err := uc.ingest(ctx, input)
	if err != nil {
		return nil, err
	}

	if err := run.advance(ctx, domain.StateNormalizing); err != nil {
		return nil, err
	}
	text, err := uc.normalize(raw)
	if err != nil {
		return nil, err
	}

	if err := run.advance(ctx, domain.StateSegmenting); err != nil {
		return nil, err
	}
	doc := uc.segmenter.Segment(text)

	if err := run.advance(ctx, domain.StateClassifying); err != nil {
		return nil, err
	}
	classification, err := uc.classify(ctx, doc)
	if err != nil {
		return nil, err
	}

	if err := run.advance(ctx, domain.StateSimplifying); err != nil {
		return nil, err
	}
	simplified, err := uc.simplify(ctx, doc, classification)
	if err != nil {
		return nil, err
	}

	if err := run.advance(ctx, domain.StateBuildingGuide); err != nil {
		return nil, err
	}
	guide, err := uc.buildGuide(ctx, simplified, doc)
	if err != nil {
		return nil, err
	}

	if err := run.advance(ctx, domain.StateVerifying); err != nil {
		return nil, err
	}
	findings := uc.verifier.Verify(ctx, doc, simplified, guide)

	if err := run.advance(ctx, domain.StateDone); err != nil {
		return nil, err
	}
	slog.Info("pipeline_completed",
		"doc_type", classification.DocType,
		"doc_subtype", classification.DocSubtype,
		"classification_source", classification.Source,
		"strategy", simplified.Strategy,
		"findings", len(findings),
		"truncated", simplified.Truncated,
		"duration_ms", time.Since(run.started).Milliseconds(),
	)

	return &domain.ProcessDocumentResult{
		DocType:        classification.DocType,
		DocSubtype:     classification.DocSubtype,
		SimplifiedText: simplified.PlainLanguageText,
		LegalGuide:     guide,
		Findings:       findings,
	}, nil
}

func (uc *ProcessDocumentUseCase) ingest(ctx context.Context, input domain.RawInput) (string, error) {
	switch input.SourceKind {
	case domain.SourceText:
		return input.Text, nil
	case domain.SourcePDF, domain.SourceImage:
		if len(input.Data) == 0 {
			return "", domain.WrapError(domain.ErrInvalidInput, "ingest document", errors.New("file content is empty"))
		}
		if uc.extractor == nil {
			return "", domain.WrapError(domain.ErrIngestionFailed, "ingest document", errors.New("no text extractor configured"))
		}
		text, err := uc.extractor.Extract(ctx, input.Data, input.SourceKind)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			if domain.IsKind(err, domain.ErrEmptyDocument) {
				return "", err
			}
			return "", domain.WrapError(domain.ErrIngestionFailed, "extract text", err)
		}
		return text, nil
	default:
		return "", domain.WrapError(domain.ErrInvalidInput, "ingest document", fmt.Errorf("unsupported source kind %q", input.SourceKind))
	}
}

func (uc *ProcessDocumentUseCase) normalize(raw string) (string, error) {
	text, err := uc.normalizer.Normalize(raw)
	if err != nil {
		return "", fmt.Errorf("normalize text: %w", err)
	}
	return text, nil
}

func (uc *ProcessDocumentUseCase) classify(ctx context.Context, doc domain.NormalizedDocument) (domain.Classification, error) {
	classification, err := uc.classifier.Classify(ctx, doc)
	if err != nil {
		return domain.Classification{}, fmt.Errorf("classify document: %w", err)
	}
	return classification, nil
}

func (uc *ProcessDocumentUseCase) simplify(ctx context.Context, doc domain.NormalizedDocument, cls domain.Classification) (domain.SimplifiedText, error) {
	simplified, err := uc.simplifier.Simplify(ctx, doc, cls)
	if err != nil {
		return domain.SimplifiedText{}, fmt.Errorf("simplify document: %w", err)
	}
	for _, w := range simplified.Warnings {
		slog.Warn("simplification_warning", "warning", w)
	}
	return simplified, nil
}

func (uc *ProcessDocumentUseCase) buildGuide(ctx context.Context, simplified domain.SimplifiedText, doc domain.NormalizedDocument) (domain.LegalGuide, error) {
	guide, err := uc.guides.Build(ctx, simplified, doc)
	if err != nil {
		return domain.LegalGuide{}, fmt.Errorf("build guide: %w", err)
	}
	return guide, nil
}

// pipelineRun tracks the state machine of a single request.
type pipelineRun struct {
	state      domain.PipelineState
	started    time.Time
	stageStart time.Time
	observer   ports.PipelineObserver
}

func (r *pipelineRun) advance(ctx context.Context, next domain.PipelineState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !r.state.CanTransition(next) {
		return fmt.Errorf("invalid pipeline transition %s -> %s", r.state, next)
	}
	r.observe(false)
	slog.Debug("pipeline_stage", "from", r.state, "to", next)
	r.state = next
	return nil
}

func (r *pipelineRun) observe(failed bool) {
	start := r.stageStart
	if start.IsZero() {
		start = r.started
	}
	now := time.Now()
	r.observer.ObserveStage(r.state, now.Sub(start), failed)
	r.stageStart = now
}

// fail moves the run to the failed state and types the error by the first
// matching kind.
func (r *pipelineRun) fail(err error) error {
	stage := r.state
	r.observe(true)
	r.state = domain.StateFailed

	pipelineErr := &domain.PipelineError{Kind: pipelineErrorKind(err), Stage: stage, Err: err}
	slog.Warn("pipeline_failed",
		"stage", stage,
		"error_kind", domain.ErrorKindName(err),
		"error", err,
		"duration_ms", time.Since(r.started).Milliseconds(),
	)
	return pipelineErr
}

var pipelineKinds = []error{
	domain.ErrInvalidInput,
	domain.ErrEmptyDocument,
	domain.ErrIngestionFailed,
	domain.ErrClassificationUnavailable,
	domain.ErrSimplificationFailed,
	domain.ErrGuideIncomplete,
	context.DeadlineExceeded,
	context.Canceled,
}

var errInternal = errors.New("internal error")

func pipelineErrorKind(err error) error {
	for _, kind := range pipelineKinds {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return errInternal
}

type noopObserver struct{}

func (noopObserver) ObserveStage(domain.PipelineState, time.Duration, bool) {}

// describeInput is used in logs; it never includes document content.
func describeInput(input domain.RawInput) string {
	size := len(input.Data)
	if input.SourceKind == domain.SourceText {
		size = len(input.Text)
	}
	return strings.TrimSpace(fmt.Sprintf("%s %d bytes %s", input.SourceKind, size, input.Filename))
}
