package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/kirillkom/knowledge-pipeline/internal/adapters/pdfmcp"
	"github.com/kirillkom/knowledge-pipeline/internal/config"
	"github.com/kirillkom/knowledge-pipeline/internal/observability/logging"
)

var version = "dev"

func main() {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// stdout carries the protocol, so logs go to stderr.
	logger := logging.NewJSONLogger(os.Stderr, "pdf-mcp", cfg.LogLevel)
	if err := pdfmcp.New(version, logger).Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("pdf-mcp server error: %v", err)
	}
}
