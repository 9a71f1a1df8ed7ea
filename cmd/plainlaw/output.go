package main

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/plainlaw/internal/core/domain"
)

type errorOutput struct {
	ErrorKind string `json:"errorKind" yaml:"errorKind"`
	Message   string `json:"message" yaml:"message"`
}

func writeOutput(w io.Writer, format string, data any) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(data)
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
}

func errorEnvelope(err error) errorOutput {
	return errorOutput{
		ErrorKind: domain.ErrorKindName(err),
		Message:   domain.UserMessage(err),
	}
}
