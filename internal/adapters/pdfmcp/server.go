// Package pdfmcp exposes the PDF reader as a stdio MCP server.
package pdfmcp

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const serverName = "pdf-reader"

type Server struct {
	mcp    *server.MCPServer
	logger *slog.Logger
}

func New(version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		mcp: server.NewMCPServer(serverName, version,
			server.WithToolCapabilities(false),
			server.WithRecovery(),
		),
		logger: logger,
	}
	s.registerTools()
	return s
}

// Run serves on stdin/stdout until the client disconnects or ctx ends.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("mcp_server_started", "name", serverName, "transport", "stdio")
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(log.New(os.Stderr, "", log.LstdFlags))
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) registerTools() {
	pathArg := mcp.WithString("file_path", mcp.Required(), mcp.Description("Absolute or relative path to the PDF file"))

	s.mcp.AddTool(mcp.NewTool("read_pdf",
		mcp.WithDescription("Read the text of a PDF, whole or a page range. Use start_page/end_page for large files."),
		pathArg,
		mcp.WithNumber("start_page", mcp.Description("First page, 1-based (default 1)")),
		mcp.WithNumber("end_page", mcp.Description("Last page (default: last page)")),
	), s.handle("read_pdf", func(req mcp.CallToolRequest) (string, error) {
		path, err := req.RequireString("file_path")
		if err != nil {
			return "", err
		}
		return readPDF(path, req.GetInt("start_page", 1), req.GetInt("end_page", 0))
	}))

	s.mcp.AddTool(mcp.NewTool("get_pdf_info",
		mcp.WithDescription("Return PDF metadata: page count, title, author and file size."),
		pathArg,
	), s.handle("get_pdf_info", func(req mcp.CallToolRequest) (string, error) {
		path, err := req.RequireString("file_path")
		if err != nil {
			return "", err
		}
		return pdfInfo(path)
	}))

	s.mcp.AddTool(mcp.NewTool("search_pdf",
		mcp.WithDescription("Case-insensitive text search; returns matching pages with a snippet."),
		pathArg,
		mcp.WithString("query", mcp.Required(), mcp.Description("Text to search for")),
		mcp.WithNumber("max_results", mcp.Description("Maximum number of pages returned (default 20)")),
	), s.handle("search_pdf", func(req mcp.CallToolRequest) (string, error) {
		path, err := req.RequireString("file_path")
		if err != nil {
			return "", err
		}
		query, err := req.RequireString("query")
		if err != nil {
			return "", err
		}
		return searchPDF(path, query, req.GetInt("max_results", 20))
	}))

	s.mcp.AddTool(mcp.NewTool("convert_pdf_to_markdown",
		mcp.WithDescription("Convert the whole PDF to Markdown with a metadata header and one section per page."),
		pathArg,
	), s.handle("convert_pdf_to_markdown", func(req mcp.CallToolRequest) (string, error) {
		path, err := req.RequireString("file_path")
		if err != nil {
			return "", err
		}
		return convertToMarkdown(path)
	}))

	s.mcp.AddTool(mcp.NewTool("list_pdfs",
		mcp.WithDescription("Recursively list PDF files in a directory with size and page count."),
		mcp.WithString("directory", mcp.Description("Directory to search (default: current directory)")),
	), s.handle("list_pdfs", func(req mcp.CallToolRequest) (string, error) {
		return listPDFs(req.GetString("directory", "."))
	}))
}

// handle turns tool failures into error results so the client sees the
// message instead of a protocol error.
func (s *Server) handle(name string, fn func(mcp.CallToolRequest) (string, error)) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text, err := fn(req)
		if err != nil {
			s.logger.Warn("tool_failed", "tool", name, "error", err)
			return mcp.NewToolResultError("Error: " + err.Error()), nil
		}
		s.logger.Debug("tool_completed", "tool", name, "bytes", len(text))
		return mcp.NewToolResultText(text), nil
	}
}
