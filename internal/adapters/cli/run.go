package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kirillkom/knowledge-pipeline/internal/core/domain"
	"github.com/kirillkom/knowledge-pipeline/internal/core/ports"
	"github.com/kirillkom/knowledge-pipeline/internal/core/usecase"
	"github.com/kirillkom/knowledge-pipeline/internal/observability/logging"
)

type runFlags struct {
	dryRun       bool
	fileType     string
	noVerify     bool
	workers      int
	whisperModel string
	metricsAddr  string
}

func newRunCommand(c *cliContext) *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process every file in intake/raw/",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPipeline(cmd, c, f)
		},
	}
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "list the files that would be processed and exit")
	cmd.Flags().StringVar(&f.fileType, "type", "", "only process one kind: text, audio, video, image or media")
	cmd.Flags().BoolVar(&f.noVerify, "no-verify", false, "skip the verification pass")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "worker pool size (env PIPELINE_WORKERS)")
	cmd.Flags().StringVar(&f.whisperModel, "whisper-model", "", "whisper model size: tiny, base, small, medium or large")
	cmd.Flags().StringVar(&f.metricsAddr, "metrics-addr", "", "serve /metrics on this address while the run is in progress")
	return cmd
}

func runPipeline(cmd *cobra.Command, c *cliContext, f runFlags) error {
	filter, ok := domain.ParseTypeFilter(f.fileType)
	if !ok {
		return fmt.Errorf("%w: unknown --type %q", domain.ErrInvalidInput, f.fileType)
	}
	cfg := c.cfg
	if f.workers > 0 {
		cfg.Workers = f.workers
	}
	if f.whisperModel != "" {
		cfg.WhisperModel = f.whisperModel
	}
	c.cfg = cfg

	started := time.Now()
	var (
		logger   *slog.Logger
		closeLog = func() error { return nil }
	)
	if f.dryRun {
		logger = logging.NewConsoleLogger(serviceName, cfg.LogLevel)
	} else {
		logger, closeLog = logging.NewRunLogger(serviceName, cfg.LogLevel, cfg.LogDir, domain.NewRunReport(started).RunID)
	}
	defer func() { _ = closeLog() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := c.app(logger)
	if err != nil {
		return err
	}
	defer app.Close()

	var runner ports.PipelineRunner
	if f.dryRun {
		runner = usecase.NewPipelineUseCase(usecase.PipelineDeps{Scanner: app.ScanUC, Logger: logger})
	} else {
		pipeline, err := app.BuildPipeline(ctx)
		if err != nil {
			return err
		}
		runner = pipeline
		if f.metricsAddr != "" {
			shutdown := serveMetrics(f.metricsAddr, app.Metrics.Handler(), logger)
			defer shutdown()
		}
	}

	report, runErr := runner.Run(ctx, ports.RunOptions{
		DryRun:     f.dryRun,
		TypeFilter: filter,
		Verify:     cfg.Verify && !f.noVerify,
		StartedAt:  started,
	})
	out := cmd.OutOrStdout()
	if report != nil {
		if f.dryRun {
			printManifest(out, report)
		} else {
			printSummary(out, report, app.Reports.Path(report.RunID))
		}
	}
	if !f.dryRun {
		if err := app.WriteMetrics(); err != nil {
			logger.Warn("metrics_write_failed", "path", cfg.MetricsFile, "error", err)
		}
	}
	return runErr
}

func serveMetrics(addr string, handler http.Handler, logger *slog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("metrics_listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics_server_failed", "error", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}
}
