package nats

import (
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/plainlaw/internal/core/domain"
)

const requestIDHeader = "X-Request-Id"

// ProcessRequest is the JSON message a client publishes to the process subject.
type ProcessRequest struct {
	RequestID   string    `json:"requestId"`
	SourceType  string    `json:"sourceType"`
	PlainText   string    `json:"plainText,omitempty"`
	FileContent []byte    `json:"fileContent,omitempty"`
	Filename    string    `json:"filename,omitempty"`
	PublishedAt time.Time `json:"publishedAt"`
	// Deadline is when the client stops waiting; workers abandon the request then.
	Deadline time.Time `json:"deadline,omitzero"`
}

// ProcessReply carries either a result or the error contract fields.
type ProcessReply struct {
	Result    *domain.ProcessDocumentResult `json:"result,omitempty"`
	ErrorKind string                        `json:"errorKind,omitempty"`
	Message   string                        `json:"message,omitempty"`
	Stage     string                        `json:"stage,omitempty"`
	Detail    string                        `json:"detail,omitempty"`
}

func requestFromInput(requestID string, input domain.RawInput, now, deadline time.Time) ProcessRequest {
	if !deadline.IsZero() {
		deadline = deadline.UTC()
	}
	return ProcessRequest{
		RequestID:   requestID,
		SourceType:  string(input.SourceKind),
		PlainText:   input.Text,
		FileContent: input.Data,
		Filename:    input.Filename,
		PublishedAt: now.UTC(),
		Deadline:    deadline,
	}
}

func (r ProcessRequest) rawInput() (domain.RawInput, error) {
	kind, ok := domain.ParseSourceKind(r.SourceType)
	if !ok {
		return domain.RawInput{}, domain.WrapError(domain.ErrInvalidInput, "decode request", fmt.Errorf("unsupported source type %q", r.SourceType))
	}
	return domain.RawInput{SourceKind: kind, Text: r.PlainText, Data: r.FileContent, Filename: r.Filename}, nil
}

func replyFromOutcome(result *domain.ProcessDocumentResult, err error) ProcessReply {
	if err == nil {
		return ProcessReply{Result: result}
	}
	reply := ProcessReply{
		ErrorKind: domain.ErrorKindName(err),
		Message:   domain.UserMessage(err),
		Detail:    err.Error(),
	}
	var pipelineErr *domain.PipelineError
	if errors.As(err, &pipelineErr) {
		reply.Stage = string(pipelineErr.Stage)
	}
	return reply
}

// outcome turns a reply back into the processor contract: a result or a
// *domain.PipelineError.
func (r ProcessReply) outcome() (*domain.ProcessDocumentResult, error) {
	if r.ErrorKind == "" {
		if r.Result == nil {
			return nil, errors.New("nats reply has neither result nor error")
		}
		return r.Result, nil
	}
	kind := domain.KindByName(r.ErrorKind)
	if kind == nil {
		kind = errors.New(r.ErrorKind)
	}
	detail := r.Detail
	if detail == "" {
		detail = r.Message
	}
	return nil, &domain.PipelineError{
		Kind:  kind,
		Stage: domain.PipelineState(r.Stage),
		Err:   errors.New(detail),
	}
}
