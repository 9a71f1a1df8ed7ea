package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/kirillkom/plainlaw/internal/config"
	"github.com/kirillkom/plainlaw/internal/core/domain"
)

func resetProcessFlags(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		processFile, processType, processText, processNATSURL = "", "", "", ""
	})
}

func testCommand(stdin string) *cobra.Command {
	cmd := &cobra.Command{}
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&bytes.Buffer{})
	return cmd
}

func TestReadProcessInputFromStdin(t *testing.T) {
	resetProcessFlags(t)

	input, err := readProcessInput(testCommand("AUTO 12/2024"), config.Config{})
	if err != nil {
		t.Fatalf("readProcessInput() error = %v", err)
	}
	if input.SourceKind != domain.SourceText || input.Text != "AUTO 12/2024" {
		t.Fatalf("unexpected input %+v", input)
	}
}

func TestReadProcessInputFromFile(t *testing.T) {
	resetProcessFlags(t)
	path := filepath.Join(t.TempDir(), "sentencia.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.7"), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	processFile = path

	input, err := readProcessInput(testCommand(""), config.Config{})
	if err != nil {
		t.Fatalf("readProcessInput() error = %v", err)
	}
	if input.SourceKind != domain.SourcePDF || input.Filename != "sentencia.pdf" {
		t.Fatalf("unexpected input %+v", input)
	}
}

func TestReadProcessInputRejectsBadType(t *testing.T) {
	resetProcessFlags(t)
	processType = "docx"

	_, err := readProcessInput(testCommand("x"), config.Config{})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("readProcessInput() error = %v, want ErrInvalidInput", err)
	}

	processType = "pdf"
	processText = "SENTENCIA"
	if _, err := readProcessInput(testCommand(""), config.Config{}); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("readProcessInput() error = %v, want ErrInvalidInput", err)
	}
}

func TestWriteOutputFormats(t *testing.T) {
	result := &domain.ProcessDocumentResult{
		DocType:        domain.DocTypeResolution,
		SimplifiedText: "You lost the case.",
		LegalGuide:     domain.LegalGuide{WhatToDoNow: "Talk to your lawyer."},
		Findings:       []domain.SafetyFinding{},
	}

	var yamlOut bytes.Buffer
	if err := writeOutput(&yamlOut, "yaml", result); err != nil {
		t.Fatalf("writeOutput(yaml) error = %v", err)
	}
	for _, want := range []string{"docType: resolution", "simplifiedText: You lost the case.", "  whatToDoNow: Talk to your lawyer.", "safetyFindings: []"} {
		if !strings.Contains(yamlOut.String(), want) {
			t.Fatalf("yaml output missing %q:\n%s", want, yamlOut.String())
		}
	}

	var jsonOut bytes.Buffer
	if err := writeOutput(&jsonOut, "json", result); err != nil {
		t.Fatalf("writeOutput(json) error = %v", err)
	}
	if !strings.Contains(jsonOut.String(), `"docType": "resolution"`) {
		t.Fatalf("unexpected json output:\n%s", jsonOut.String())
	}

	if err := writeOutput(&bytes.Buffer{}, "xml", result); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}

func TestErrorEnvelope(t *testing.T) {
	env := errorEnvelope(&domain.PipelineError{Kind: domain.ErrEmptyDocument, Stage: domain.StateNormalizing, Err: errors.New("blank")})
	if env.ErrorKind != "EmptyDocument" || env.Message == "" {
		t.Fatalf("unexpected envelope %+v", env)
	}
}
