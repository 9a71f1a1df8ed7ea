package domain

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrInvalidInput = errors.New("invalid input")

	ErrIngestionFailed           = errors.New("ingestion failed")
	ErrEmptyDocument             = errors.New("empty document")
	ErrClassificationAmbiguous   = errors.New("classification ambiguous")
	ErrClassificationUnavailable = errors.New("classification unavailable")
	ErrSimplificationFailed      = errors.New("simplification failed")
	ErrGuideIncomplete           = errors.New("guide incomplete")
	ErrVerificationUnavailable   = errors.New("verification unavailable")

	ErrOCRUnavailable          = errors.New("ocr unavailable")
	ErrLowConfidenceExtraction = errors.New("low confidence extraction")

	ErrCompletionTimeout     = errors.New("completion timeout")
	ErrCompletionUnavailable = errors.New("completion unavailable")
	ErrMalformedCompletion   = errors.New("malformed completion")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// IsTransientCompletion reports whether a completion failure deserves the single retry.
func IsTransientCompletion(err error) bool {
	return IsKind(err, ErrCompletionTimeout) ||
		IsKind(err, ErrCompletionUnavailable) ||
		IsKind(err, ErrMalformedCompletion)
}

// PipelineError is the typed failure returned by the orchestrator.
type PipelineError struct {
	Kind  error
	Stage PipelineState
	Err   error
}

func (e *PipelineError) Error() string {
	if e == nil {
		return "pipeline error"
	}
	if e.Err == nil {
		return fmt.Sprintf("pipeline %s: %v", e.Stage, e.Kind)
	}
	return fmt.Sprintf("pipeline %s: %v: %v", e.Stage, e.Kind, e.Err)
}

func (e *PipelineError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

var kindNames = []struct {
	kind error
	name string
}{
	{ErrInvalidInput, "InvalidInput"},
	{ErrEmptyDocument, "EmptyDocument"},
	{ErrIngestionFailed, "IngestionFailed"},
	{ErrClassificationUnavailable, "ClassificationUnavailable"},
	{ErrSimplificationFailed, "SimplificationFailed"},
	{ErrGuideIncomplete, "GuideIncomplete"},
	{ErrClassificationAmbiguous, "ClassificationAmbiguous"},
	{ErrVerificationUnavailable, "VerificationUnavailable"},
	{context.DeadlineExceeded, "Timeout"},
	{context.Canceled, "Canceled"},
}

// ErrorKindName returns the response contract name of the first matching kind.
func ErrorKindName(err error) string {
	for _, k := range kindNames {
		if errors.Is(err, k.kind) {
			return k.name
		}
	}
	return "InternalError"
}

// KindByName is the inverse of ErrorKindName. Unknown names yield nil.
func KindByName(name string) error {
	for _, k := range kindNames {
		if k.name == name {
			return k.kind
		}
	}
	return nil
}

var userMessages = map[string]string{
	"InvalidInput":              "The request is missing a document or uses an unsupported source type.",
	"EmptyDocument":             "The document appears to be empty. Please check the file or paste the text again.",
	"IngestionFailed":           "We could not read this document. Try a clearer scan or paste the text directly.",
	"ClassificationUnavailable": "We could not identify this document type right now. Please try again in a few minutes.",
	"SimplificationFailed":      "We could not produce a reliable explanation right now. Please try again later.",
	"GuideIncomplete":           "We could not build a complete guide for this document. Please try again later.",
	"Timeout":                   "Processing took too long. Please try again.",
	"Canceled":                  "The request was canceled before it finished.",
	"InternalError":             "Something went wrong while processing the document.",
}

// UserMessage returns a short actionable message for a fatal pipeline error.
func UserMessage(err error) string {
	if msg, ok := userMessages[ErrorKindName(err)]; ok {
		return msg
	}
	return userMessages["InternalError"]
}
