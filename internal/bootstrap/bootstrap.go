package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/kirillkom/knowledge-pipeline/internal/config"
	"github.com/kirillkom/knowledge-pipeline/internal/core/domain"
	"github.com/kirillkom/knowledge-pipeline/internal/core/ports"
	"github.com/kirillkom/knowledge-pipeline/internal/core/usecase"
	"github.com/kirillkom/knowledge-pipeline/internal/infrastructure/chunking"
	"github.com/kirillkom/knowledge-pipeline/internal/infrastructure/extractor"
	"github.com/kirillkom/knowledge-pipeline/internal/infrastructure/extractor/docx"
	"github.com/kirillkom/knowledge-pipeline/internal/infrastructure/extractor/image"
	"github.com/kirillkom/knowledge-pipeline/internal/infrastructure/extractor/media"
	"github.com/kirillkom/knowledge-pipeline/internal/infrastructure/extractor/pdfdoc"
	"github.com/kirillkom/knowledge-pipeline/internal/infrastructure/extractor/plaintext"
	"github.com/kirillkom/knowledge-pipeline/internal/infrastructure/extractor/spreadsheet"
	"github.com/kirillkom/knowledge-pipeline/internal/infrastructure/llm"
	"github.com/kirillkom/knowledge-pipeline/internal/infrastructure/llm/anthropic"
	"github.com/kirillkom/knowledge-pipeline/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/knowledge-pipeline/internal/infrastructure/queue/nats"
	"github.com/kirillkom/knowledge-pipeline/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/knowledge-pipeline/internal/infrastructure/resilience"
	"github.com/kirillkom/knowledge-pipeline/internal/infrastructure/storage/knowledgefs"
	"github.com/kirillkom/knowledge-pipeline/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/knowledge-pipeline/internal/infrastructure/storage/reportfs"
	"github.com/kirillkom/knowledge-pipeline/internal/observability/metrics"
)

const serviceName = "knowledge-pipeline"

// App holds the filesystem-backed services every command needs. The LLM,
// database and broker connections are only opened by BuildPipeline.
type App struct {
	Config   config.Config
	Logger   *slog.Logger
	Taxonomy domain.Taxonomy

	Intake  *localfs.IntakeStore
	Records *knowledgefs.RecordStore
	Reports *reportfs.Store
	Metrics *metrics.PipelineMetrics

	ScanUC      *usecase.ScanUseCase
	ReportUC    *usecase.ReportUseCase
	CatalogUC   *usecase.CatalogUseCase
	ReconcileUC *usecase.ReconcileUseCase

	closeFns []func()
}

func New(cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	tax, err := config.LoadTaxonomy(cfg.TaxonomyFile)
	if err != nil {
		return nil, fmt.Errorf("load taxonomy: %w", err)
	}

	intake, err := localfs.NewIntakeStore(cfg.IntakeDir)
	if err != nil {
		return nil, fmt.Errorf("init intake storage: %w", err)
	}
	records := knowledgefs.NewRecordStore(cfg.KnowledgeDir, filepath.Join(cfg.IntakeDir, "review"))
	reports := reportfs.New(cfg.LogDir)

	return &App{
		Config:   cfg,
		Logger:   logger,
		Taxonomy: tax,

		Intake:  intake,
		Records: records,
		Reports: reports,
		Metrics: metrics.NewPipelineMetrics(serviceName),

		ScanUC:      usecase.NewScanUseCase(intake),
		ReportUC:    usecase.NewReportUseCase(reports),
		CatalogUC:   usecase.NewCatalogUseCase(records),
		ReconcileUC: usecase.NewReconcileUseCase(intake, logger),
	}, nil
}

// BuildPipeline wires converters, the LLM provider and the optional report
// mirror and event publisher into a runnable pipeline.
func (a *App) BuildPipeline(ctx context.Context) (*usecase.PipelineUseCase, error) {
	cfg := a.Config

	executor := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    cfg.LLMRetryAttempts,
		RetryInitialBackoff: cfg.LLMRetryBackoff,
		RateLimitPerSecond:  cfg.LLMRateLimitRPS,
		BreakerEnabled:      true,
	},
		resilience.WithLogger(a.Logger),
		resilience.WithRetryObserver(a.Metrics.ObserveRetry),
	)

	completer, err := newCompleter(cfg)
	if err != nil {
		return nil, err
	}
	analyzer := llm.NewAnalyzer(completer, executor, a.Taxonomy, a.Logger)

	transcriber := media.NewWhisperTranscriber(media.WhisperConfig{
		Command:  cfg.WhisperCommand,
		Model:    cfg.WhisperModel,
		Language: cfg.WhisperLanguage,
		Timeout:  cfg.ToolTimeout,
	})
	router := extractor.NewRouter().
		Register(plaintext.NewExtractor(), domain.SourceText).
		Register(pdfdoc.NewConverter(), domain.SourcePDF).
		Register(docx.NewExtractor(), domain.SourceDocx).
		Register(spreadsheet.NewExtractor(0), domain.SourceSpreadsheet).
		Register(media.NewExtractor(media.Config{FFmpegCommand: cfg.FFmpegCommand, Timeout: cfg.ToolTimeout}, transcriber),
			domain.SourceAudio, domain.SourceVideo).
		Register(image.NewExtractor(analyzer), domain.SourceImage)

	gate := usecase.NewGate(cfg.MaxConcurrentCalls)
	sequences := knowledgefs.NewSequenceAllocator(cfg.KnowledgeDir, a.Records.MaxSequences)

	deps := usecase.PipelineDeps{
		Intake:    a.Intake,
		Records:   a.Records,
		Scanner:   a.ScanUC,
		Converter: usecase.NewConvertUseCase(router, gate),
		Analyzer: usecase.NewAnalyzeUseCase(analyzer, chunking.NewSplitter(0), gate, a.Taxonomy, usecase.AnalyzeOptions{
			ReviewConfidence: cfg.ReviewConfidence,
		}, a.Logger),
		Renderer: usecase.NewRenderUseCase(sequences, a.Records),
		Validator: usecase.NewValidateUseCase(a.Records, a.Taxonomy, usecase.ValidateOptions{
			MinContentChars:    cfg.MinContentChars,
			DuplicateThreshold: cfg.DuplicateThreshold,
		}),
		Reports: a.Reports,
		Metrics: a.Metrics,
		Logger:  a.Logger,
		Workers: cfg.Workers,
	}

	if cfg.PostgresDSN != "" {
		repo, err := a.openRunRepository(ctx)
		if err != nil {
			return nil, err
		}
		deps.RunRepo = repo
	}
	if cfg.NATSURL != "" {
		publisher, err := nats.New(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			ResilienceExecutor: resilience.NewExecutor(resilience.DefaultConfig(), resilience.WithLogger(a.Logger)),
			Logger:             a.Logger,
		})
		if err != nil {
			return nil, fmt.Errorf("init event publisher: %w", err)
		}
		a.closeFns = append(a.closeFns, publisher.Close)
		deps.Events = publisher
	}

	return usecase.NewPipelineUseCase(deps), nil
}

func (a *App) openRunRepository(ctx context.Context) (ports.ReportRepository, error) {
	db, err := postgres.OpenDB(a.Config.PostgresDSN)
	if err != nil {
		return nil, domain.WrapError(domain.ErrEnvironment, "open postgres", err)
	}
	a.closeFns = append(a.closeFns, func() { _ = db.Close() })
	repo := postgres.NewRunRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return repo, nil
}

func newCompleter(cfg config.Config) (llm.Completer, error) {
	switch cfg.LLMProvider {
	case config.ProviderOllama:
		return ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.LLMRequestTimeout), nil
	case config.ProviderAnthropic:
		client, err := anthropic.New(cfg.AnthropicAPIKey, cfg.AnthropicModel)
		if err != nil {
			return nil, domain.WrapError(domain.ErrEnvironment, "init anthropic", err)
		}
		return client, nil
	default:
		return nil, domain.WrapError(domain.ErrEnvironment, "init llm",
			fmt.Errorf("unknown LLM_PROVIDER %q", cfg.LLMProvider))
	}
}

// WriteMetrics dumps the registry to the configured node-exporter textfile.
func (a *App) WriteMetrics() error {
	if a.Config.MetricsFile == "" {
		return nil
	}
	return a.Metrics.WriteTextfile(a.Config.MetricsFile)
}

func (a *App) Close() {
	for i := len(a.closeFns) - 1; i >= 0; i-- {
		a.closeFns[i]()
	}
	a.closeFns = nil
}
