package nats

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/plainlaw/internal/core/domain"
)

type processorFake struct {
	result    *domain.ProcessDocumentResult
	err       error
	inputs    []domain.RawInput
	deadlines []time.Time
}

func (f *processorFake) Process(ctx context.Context, input domain.RawInput) (*domain.ProcessDocumentResult, error) {
	f.inputs = append(f.inputs, input)
	deadline, _ := ctx.Deadline()
	f.deadlines = append(f.deadlines, deadline)
	if f.err == nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return f.result, f.err
}

func TestRequestCarriesRawInput(t *testing.T) {
	input := domain.RawInput{SourceKind: domain.SourcePDF, Data: []byte("%PDF-1.7"), Filename: "auto.pdf"}
	data, err := json.Marshal(requestFromInput("req-1", input, time.Unix(0, 0), time.Time{}))
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}

	req, got, err := decodeRequest(data)
	if err != nil {
		t.Fatalf("decodeRequest() error = %v", err)
	}
	if req.RequestID != "req-1" || got.SourceKind != domain.SourcePDF || string(got.Data) != "%PDF-1.7" || got.Filename != "auto.pdf" {
		t.Fatalf("unexpected decoded input %+v / %+v", req, got)
	}
	if !req.Deadline.IsZero() {
		t.Fatalf("request without deadline decoded as %v", req.Deadline)
	}
}

func TestHandleHonorsClientDeadline(t *testing.T) {
	deadline := time.Now().Add(time.Minute).Truncate(time.Millisecond)
	data, err := json.Marshal(requestFromInput("req-2", domain.RawInput{SourceKind: domain.SourceText, Text: "DEMANDA"}, time.Now(), deadline))
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	msg := nats.NewMsg("plainlaw.documents.process")
	msg.Data = data

	processor := &processorFake{result: &domain.ProcessDocumentResult{DocType: domain.DocTypeProceduralWriting}}
	(&Queue{}).handle(context.Background(), processor, msg, ServeHooks{})

	if len(processor.deadlines) != 1 || !processor.deadlines[0].Equal(deadline) {
		t.Fatalf("processor deadline = %v, want %v", processor.deadlines, deadline)
	}
}

func TestHandleAbandonsExpiredRequest(t *testing.T) {
	data, err := json.Marshal(requestFromInput("req-3", domain.RawInput{SourceKind: domain.SourceText, Text: "DEMANDA"}, time.Now(), time.Now().Add(-time.Second)))
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	msg := nats.NewMsg("plainlaw.documents.process")
	msg.Data = data

	var finishErr error
	hooks := ServeHooks{OnFinish: func(_ ProcessRequest, _ time.Duration, err error) { finishErr = err }}
	processor := &processorFake{result: &domain.ProcessDocumentResult{DocType: domain.DocTypeProceduralWriting}}
	(&Queue{}).handle(context.Background(), processor, msg, hooks)

	if !errors.Is(finishErr, context.DeadlineExceeded) {
		t.Fatalf("OnFinish error = %v, want context.DeadlineExceeded", finishErr)
	}
}

func TestDecodeRequestRejectsUnknownSource(t *testing.T) {
	_, _, err := decodeRequest([]byte(`{"requestId":"r","sourceType":"docx"}`))
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("decodeRequest() error = %v, want ErrInvalidInput", err)
	}
}

func TestReplyRebuildsPipelineError(t *testing.T) {
	original := &domain.PipelineError{Kind: domain.ErrSimplificationFailed, Stage: domain.StateSimplifying, Err: errors.New("model down")}

	var reply ProcessReply
	if err := json.Unmarshal(encodeReply(nil, original), &reply); err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	result, err := reply.outcome()
	if result != nil {
		t.Fatalf("expected no result, got %+v", result)
	}
	var pipelineErr *domain.PipelineError
	if !errors.As(err, &pipelineErr) {
		t.Fatalf("expected *domain.PipelineError, got %T", err)
	}
	if !domain.IsKind(err, domain.ErrSimplificationFailed) || pipelineErr.Stage != domain.StateSimplifying {
		t.Fatalf("unexpected rebuilt error %v", err)
	}
	if domain.UserMessage(err) != reply.Message {
		t.Fatalf("user message changed across the wire: %q vs %q", domain.UserMessage(err), reply.Message)
	}
}

func TestReplyCarriesResult(t *testing.T) {
	want := &domain.ProcessDocumentResult{DocType: domain.DocTypeResolution, SimplifiedText: "You won.", Findings: []domain.SafetyFinding{}}

	var reply ProcessReply
	if err := json.Unmarshal(encodeReply(want, nil), &reply); err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	got, err := reply.outcome()
	if err != nil {
		t.Fatalf("outcome() error = %v", err)
	}
	if got.DocType != want.DocType || got.SimplifiedText != want.SimplifiedText {
		t.Fatalf("unexpected result %+v", got)
	}
}

func TestHandleRunsProcessorAndHooks(t *testing.T) {
	processor := &processorFake{result: &domain.ProcessDocumentResult{DocType: domain.DocTypeProceduralWriting}}
	msg := nats.NewMsg("plainlaw.documents.process")
	msg.Header.Set(requestIDHeader, "from-header")
	msg.Data = []byte(`{"sourceType":"text","plainText":"DEMANDA"}`)

	var started, finished []string
	hooks := ServeHooks{
		OnStart: func(req ProcessRequest) { started = append(started, req.RequestID) },
		OnFinish: func(req ProcessRequest, _ time.Duration, err error) {
			if err != nil {
				t.Errorf("unexpected error %v", err)
			}
			finished = append(finished, req.RequestID)
		},
	}
	(&Queue{}).handle(context.Background(), processor, msg, hooks)

	if len(processor.inputs) != 1 || processor.inputs[0].Text != "DEMANDA" {
		t.Fatalf("unexpected processor inputs %+v", processor.inputs)
	}
	if len(started) != 1 || started[0] != "from-header" || len(finished) != 1 {
		t.Fatalf("hooks not called as expected: started=%v finished=%v", started, finished)
	}
}

func TestWrapRequestError(t *testing.T) {
	if err := wrapRequestError(nats.ErrTimeout); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("nats timeout must read as a deadline, got %v", err)
	}
	if err := wrapRequestError(nats.ErrNoResponders); !errors.Is(err, errWorkersUnavailable) {
		t.Fatalf("no responders must read as unavailable workers, got %v", err)
	}
	if class := classifyNATSError(context.Canceled); class.Retryable || class.RecordFailure {
		t.Fatalf("cancellation must not count as failure: %+v", class)
	}
}
