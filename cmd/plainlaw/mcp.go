package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	mcpadapter "github.com/kirillkom/plainlaw/internal/adapters/mcp"
	"github.com/kirillkom/plainlaw/internal/bootstrap"
	"github.com/kirillkom/plainlaw/internal/config"
	"github.com/kirillkom/plainlaw/internal/infrastructure/storage/localfs"
)

var mcpRoot string

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the process_document tool over MCP stdio",
	Long: `Serve the pipeline as an MCP server on stdin/stdout.

The server exposes one tool, process_document. Relative file_path
arguments are resolved against --root.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg := config.Load()
		app, err := bootstrap.New(cfg, bootstrap.Hooks{})
		if err != nil {
			return fmt.Errorf("bootstrap: %w", err)
		}
		defer app.Close()

		s := mcpadapter.NewServer(app.Processor, localfs.New(mcpRoot, cfg.APIMaxUploadBytes), version)
		slog.Info("mcp_serving", "root", mcpRoot, "llm_provider", cfg.LLMProvider)
		return s.ServeStdio()
	},
}

func init() {
	mcpCmd.Flags().StringVar(&mcpRoot, "root", "", "directory for relative file_path arguments")
}
