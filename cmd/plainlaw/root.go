package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/kirillkom/plainlaw/internal/config"
	"github.com/kirillkom/plainlaw/internal/observability/logging"
)

const version = "0.1.0"

var (
	outputFormat string
	logLevel     string
)

var rootCmd = &cobra.Command{
	Use:   "plainlaw",
	Short: "Explain court documents in plain language",
	Long: `plainlaw reads a court resolution or procedural filing and returns
its document type, a plain-language rewrite, a four-part guide for the
reader and the safety findings of the rewrite check.

Configuration comes from the same environment variables as the API
(LLM_PROVIDER, LLM_API_KEY, OCR_API_KEY, ...).`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "yaml", "output format: yaml or json")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (default: LOG_LEVEL or info)")

	// Logs go to stderr; stdout carries results and the MCP protocol.
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		level := logLevel
		if level == "" {
			level = config.Load().LogLevel
		}
		slog.SetDefault(logging.NewJSONLoggerTo(os.Stderr, "plainlaw-cli", level))
	}

	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(mcpCmd)
}
