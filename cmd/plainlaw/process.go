package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/kirillkom/plainlaw/internal/bootstrap"
	"github.com/kirillkom/plainlaw/internal/config"
	"github.com/kirillkom/plainlaw/internal/core/domain"
	"github.com/kirillkom/plainlaw/internal/infrastructure/storage/localfs"
)

var (
	processFile    string
	processType    string
	processText    string
	processNATSURL string
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Process one document",
	Long: `Process one document and print the result.

The document comes from --file, --text or, when neither is given, stdin.
With --nats-url the document is sent to running workers instead of being
processed locally.

Examples:
  plainlaw process --file sentencia.pdf
  plainlaw process --file scan.jpg --type image -o json
  cat auto.txt | plainlaw process`,
	RunE: runProcess,
}

func init() {
	processCmd.Flags().StringVarP(&processFile, "file", "f", "", "document file (pdf, image or text)")
	processCmd.Flags().StringVarP(&processType, "type", "t", "", "source type: text, pdf or image (default: from file extension)")
	processCmd.Flags().StringVar(&processText, "text", "", "document text")
	processCmd.Flags().StringVar(&processNATSURL, "nats-url", "", "send the document to workers at this NATS url")
	processCmd.MarkFlagsMutuallyExclusive("file", "text")
}

func runProcess(cmd *cobra.Command, _ []string) error {
	cfg := config.Load()

	input, err := readProcessInput(cmd, cfg)
	if err != nil {
		_ = writeOutput(cmd.OutOrStdout(), outputFormat, errorEnvelope(err))
		return err
	}

	build := bootstrap.New
	if processNATSURL != "" {
		cfg.NATSURL = processNATSURL
		build = bootstrap.NewRemote
	}
	app, err := build(cfg, bootstrap.Hooks{})
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer app.Close()

	result, err := app.Processor.Process(cmd.Context(), input)
	if err != nil {
		slog.Error("process_failed", "error_kind", domain.ErrorKindName(err), "error", err)
		_ = writeOutput(cmd.OutOrStdout(), outputFormat, errorEnvelope(err))
		return err
	}
	if result.Findings == nil {
		result.Findings = []domain.SafetyFinding{}
	}
	return writeOutput(cmd.OutOrStdout(), outputFormat, result)
}

func readProcessInput(cmd *cobra.Command, cfg config.Config) (domain.RawInput, error) {
	var kind domain.SourceKind
	if processType != "" {
		parsed, ok := domain.ParseSourceKind(processType)
		if !ok {
			return domain.RawInput{}, domain.WrapError(domain.ErrInvalidInput, "read input", fmt.Errorf("unsupported --type %q", processType))
		}
		kind = parsed
	}

	switch {
	case processFile != "":
		return localfs.New("", cfg.APIMaxUploadBytes).Load(cmd.Context(), processFile, kind)
	case processText != "":
		if kind != "" && kind != domain.SourceText {
			return domain.RawInput{}, domain.WrapError(domain.ErrInvalidInput, "read input", errors.New("--text requires --type text"))
		}
		return domain.RawInput{SourceKind: domain.SourceText, Text: processText}, nil
	default:
		raw, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return domain.RawInput{}, fmt.Errorf("read stdin: %w", err)
		}
		if kind == "" {
			kind = domain.SourceText
		}
		if kind != domain.SourceText {
			return domain.RawInput{SourceKind: kind, Data: raw}, nil
		}
		return domain.RawInput{SourceKind: kind, Text: string(raw)}, nil
	}
}
