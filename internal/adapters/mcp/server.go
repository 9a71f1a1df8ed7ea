package mcpadapter

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/plainlaw/internal/core/domain"
	"github.com/kirillkom/plainlaw/internal/core/ports"
)

const toolProcessDocument = "process_document"

type fileLoader interface {
	Load(ctx context.Context, path string, kind domain.SourceKind) (domain.RawInput, error)
}

// Server exposes the pipeline as an MCP tool.
type Server struct {
	processor ports.DocumentProcessor
	files     fileLoader
	mcp       *server.MCPServer
}

// NewServer registers the process_document tool. files may be nil, which
// disables the file_path argument.
func NewServer(processor ports.DocumentProcessor, files fileLoader, version string) *Server {
	s := &Server{
		processor: processor,
		files:     files,
		mcp: server.NewMCPServer(
			"plainlaw",
			version,
			server.WithToolCapabilities(false),
			server.WithLogging(),
		),
	}
	s.mcp.AddTool(processDocumentTool(), s.handleProcessDocument)
	return s
}

func processDocumentTool() mcp.Tool {
	return mcp.NewTool(toolProcessDocument,
		mcp.WithDescription("Explain a court document in plain language: document type, simplified text, a four-part guide and safety findings."),
		mcp.WithString("source_type", mcp.Required(), mcp.Enum("text", "pdf", "image"), mcp.Description("Kind of document being sent")),
		mcp.WithString("text", mcp.Description("Document text, for source_type text")),
		mcp.WithString("file_path", mcp.Description("Path to a local document file")),
		mcp.WithString("file_base64", mcp.Description("Base64 encoded PDF or image content")),
	)
}

func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// ServeStdio blocks serving JSON-RPC over stdin and stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

func (s *Server) handleProcessDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := s.inputFromArguments(ctx, request)
	if err != nil {
		return toolError(err), nil
	}

	result, err := s.processor.Process(ctx, input)
	if err != nil {
		slog.Warn("mcp_process_failed", "error_kind", domain.ErrorKindName(err), "error", err)
		return toolError(err), nil
	}
	if result.Findings == nil {
		result.Findings = []domain.SafetyFinding{}
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) inputFromArguments(ctx context.Context, request mcp.CallToolRequest) (domain.RawInput, error) {
	rawKind, err := request.RequireString("source_type")
	if err != nil {
		return domain.RawInput{}, domain.WrapError(domain.ErrInvalidInput, "read arguments", err)
	}
	kind, ok := domain.ParseSourceKind(strings.ToLower(strings.TrimSpace(rawKind)))
	if !ok {
		return domain.RawInput{}, domain.WrapError(domain.ErrInvalidInput, "read arguments", fmt.Errorf("unsupported source_type %q", rawKind))
	}

	if path := strings.TrimSpace(request.GetString("file_path", "")); path != "" {
		if s.files == nil {
			return domain.RawInput{}, domain.WrapError(domain.ErrInvalidInput, "read arguments", errors.New("file_path is not available on this server"))
		}
		return s.files.Load(ctx, path, kind)
	}

	if kind == domain.SourceText {
		return domain.RawInput{SourceKind: kind, Text: request.GetString("text", "")}, nil
	}
	data, err := base64.StdEncoding.DecodeString(request.GetString("file_base64", ""))
	if err != nil {
		return domain.RawInput{}, domain.WrapError(domain.ErrInvalidInput, "read arguments", fmt.Errorf("file_base64: %w", err))
	}
	return domain.RawInput{SourceKind: kind, Data: data}, nil
}

func toolError(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(fmt.Sprintf("%s: %s", domain.ErrorKindName(err), domain.UserMessage(err)))
}
