package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/knowledge-pipeline/internal/core/domain"
	"github.com/kirillkom/knowledge-pipeline/internal/core/ports"
)

const (
	stageIntake   = "intake"
	stageConvert  = "convert"
	stageAnalyze  = "analyze"
	stageRender   = "render"
	stageValidate = "validate"
	stageDone     = "completed"
	stageDryRun   = "dry_run"
	stageNotRun   = "not_started"
)

// PipelineDeps groups the collaborators of a run. Reports, Events and
// Metrics are optional.
type PipelineDeps struct {
	Intake    ports.IntakeStore
	Records   ports.RecordStore
	Scanner   *ScanUseCase
	Converter *ConvertUseCase
	Analyzer  *AnalyzeUseCase
	Renderer  *RenderUseCase
	Validator *ValidateUseCase
	Reports   ports.ReportStore
	RunRepo   ports.ReportRepository
	Events    ports.EventPublisher
	Metrics   ports.PipelineMetrics
	Logger    *slog.Logger
	Workers   int
}

type PipelineUseCase struct {
	deps PipelineDeps
	now  func() time.Time
}

func NewPipelineUseCase(deps PipelineDeps) *PipelineUseCase {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Workers <= 0 {
		deps.Workers = 5
	}
	return &PipelineUseCase{deps: deps, now: time.Now}
}

// Run processes every matching file of raw/ and writes the run report. Only
// environment failures and cancellation make Run return an error; per-file
// failures are recorded in the report.
func (uc *PipelineUseCase) Run(ctx context.Context, opts ports.RunOptions) (*domain.RunReport, error) {
	started := opts.StartedAt
	if started.IsZero() {
		started = uc.now()
	}
	opts.StartedAt = started
	report := domain.NewRunReport(started)
	report.DryRun = opts.DryRun
	log := uc.deps.Logger

	manifest, err := uc.deps.Scanner.Scan(ctx, opts.TypeFilter)
	if err != nil {
		return nil, err
	}
	report.InputFiles = len(manifest.Files)
	for _, f := range manifest.Unsupported {
		report.Unsupported = append(report.Unsupported, f.Name)
	}
	log.Info("run_started",
		"input_files", report.InputFiles,
		"unsupported", len(manifest.Unsupported),
		"filtered", len(manifest.Filtered),
		"dry_run", opts.DryRun,
	)

	if opts.DryRun {
		for _, f := range manifest.Files {
			report.Outcomes = append(report.Outcomes, domain.FileOutcome{Source: f.Name, State: f.State, Stage: stageDryRun})
		}
		report.Finalize(uc.now())
		return report, nil
	}

	if err := uc.deps.Intake.Check(ctx); err != nil {
		return nil, err
	}
	if err := uc.deps.Records.Check(ctx); err != nil {
		return nil, err
	}

	pool, err := ants.NewPool(uc.deps.Workers)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	collector := &reportCollector{report: report}
	g, gctx := errgroup.WithContext(ctx)
	byKind := manifest.ByKind()
	for _, kind := range []domain.FileKind{domain.KindText, domain.KindMedia, domain.KindImage} {
		files := byKind[kind]
		if len(files) == 0 {
			continue
		}
		g.Go(func() error {
			return uc.runBatch(gctx, pool, kind, files, opts, collector, log)
		})
	}
	runErr := g.Wait()

	collector.sort()
	report.Finalize(uc.now())
	if uc.deps.Metrics != nil {
		uc.deps.Metrics.ObserveRun(report)
	}

	if err := uc.persist(ctx, report, log); err != nil {
		return report, err
	}

	if ctx.Err() != nil {
		return report, domain.WrapError(domain.ErrCanceled, "run pipeline", ctx.Err())
	}
	if runErr != nil {
		return report, runErr
	}
	log.Info("run_completed",
		"success", report.Results.Success,
		"failed", report.Results.Failed,
		"manual_review", report.Results.ManualReview,
	)
	return report, nil
}

// runBatch submits the files of one kind to the shared pool and waits for
// all of them.
func (uc *PipelineUseCase) runBatch(
	ctx context.Context,
	pool *ants.Pool,
	kind domain.FileKind,
	files []domain.IntakeFile,
	opts ports.RunOptions,
	collector *reportCollector,
	log *slog.Logger,
) error {
	log.Debug("batch_started", "kind", kind, "files", len(files))
	var wg sync.WaitGroup
	for _, file := range files {
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			uc.processFile(ctx, file, opts, collector, log)
		})
		if err != nil {
			wg.Done()
			collector.notStarted(file)
			log.Error("worker_submit_failed", "file", file.Name, "error", err)
		}
	}
	wg.Wait()
	return nil
}

func (uc *PipelineUseCase) processFile(
	ctx context.Context,
	file domain.IntakeFile,
	opts ports.RunOptions,
	collector *reportCollector,
	log *slog.Logger,
) {
	if ctx.Err() != nil {
		collector.notStarted(file)
		return
	}

	start := uc.now()
	source := file.Name
	log = log.With("file", source, "kind", file.Kind)
	if uc.deps.Metrics != nil {
		uc.deps.Metrics.StartFile(file.Kind)
	}
	finish := func(stage string, err error) float64 {
		seconds := uc.now().Sub(start).Seconds()
		if uc.deps.Metrics != nil {
			uc.deps.Metrics.FinishFile(file.Kind, stage, err, seconds)
		}
		return seconds * 1000
	}

	var result domain.AnalysisResult
	fail := func(current domain.IntakeFile, stage string, err error, staged *domain.KnowledgeRecord) {
		if ctx.Err() != nil && !domain.IsKind(err, domain.ErrCanceled) {
			err = domain.WrapError(domain.ErrCanceled, stage, err)
		}
		entry := domain.ErrorEntry{
			Source: source,
			Stage:  stage,
			Kind:   domain.ErrorKindName(err),
			Error:  err.Error(),
		}
		var review *domain.ReviewEntry
		if staged != nil {
			entry.Review = staged.Path
			if result.NeedsReview {
				review = reviewEntry(source, *staged, result)
			}
		}
		state := current.State
		if moved, moveErr := uc.deps.Intake.Move(context.WithoutCancel(ctx), current, domain.StateFailed); moveErr != nil {
			log.Error("move_to_failed_failed", "error", moveErr)
		} else {
			entry.MovedTo = moved.Path
			state = moved.State
		}
		ms := finish(stage, err)
		collector.failed(entry, domain.FileOutcome{Source: source, State: state, Stage: stage, DurationMS: ms}, review)
		log.Warn("file_failed", "stage", stage, "error_kind", entry.Kind, "error", err)
	}

	current, err := uc.deps.Intake.Move(ctx, file, domain.StateProcessing)
	if err != nil {
		fail(file, stageIntake, err, nil)
		return
	}

	ext, err := uc.deps.Converter.Convert(ctx, current)
	if err != nil {
		fail(current, stageConvert, err, nil)
		return
	}

	result, err = uc.deps.Analyzer.Analyze(ctx, current, ext, opts.Verify)
	if err != nil {
		fail(current, stageAnalyze, err, nil)
		return
	}
	result.SourceName = source

	staged, err := uc.deps.Renderer.Render(ctx, file, result, opts.StartedAt)
	if err != nil {
		fail(current, stageRender, err, nil)
		return
	}

	filed, err := uc.deps.Validator.ValidateAndFile(ctx, staged)
	if err != nil {
		fail(current, stageValidate, err, &staged)
		return
	}

	done, err := uc.deps.Intake.Move(context.WithoutCancel(ctx), current, domain.StateCompleted)
	if err != nil {
		// The record is filed; the source stays in processing/ for reconcile.
		log.Error("move_to_completed_failed", "error", err)
		done = current
	}

	outcome := domain.FileOutcome{
		Source:       source,
		State:        done.State,
		Stage:        stageDone,
		Output:       filed.Path,
		RecordID:     filed.ID,
		Category:     filed.Category,
		SubCategory:  filed.SubCategory,
		Priority:     filed.Priority,
		Confidence:   filed.Confidence,
		QualityScore: filed.QualityScore,
	}
	outcome.DurationMS = finish(stageDone, nil)

	var review *domain.ReviewEntry
	if result.NeedsReview {
		review = reviewEntry(source, filed, result)
	}
	collector.succeeded(outcome, review)
	log.Info("file_completed", "entry_id", filed.ID, "output", filed.Path, "needs_review", result.NeedsReview)

	if uc.deps.Events != nil {
		if err := uc.deps.Events.PublishRecordFiled(context.WithoutCancel(ctx), filed); err != nil {
			log.Warn("record_event_failed", "entry_id", filed.ID, "error", err)
		}
	}
}

// reviewEntry lists a record for manual review whether it was filed or left
// staged in intake/review/ by a failed validation.
func reviewEntry(source string, record domain.KnowledgeRecord, result domain.AnalysisResult) *domain.ReviewEntry {
	return &domain.ReviewEntry{
		Source:     source,
		Output:     record.Path,
		RecordID:   record.ID,
		Confidence: record.Confidence,
		Reason:     strings.Join(result.ReviewReasons, "; "),
	}
}

func (uc *PipelineUseCase) persist(ctx context.Context, report *domain.RunReport, log *slog.Logger) error {
	ctx = context.WithoutCancel(ctx)
	if uc.deps.Reports != nil {
		path, err := uc.deps.Reports.Save(ctx, report)
		if err != nil {
			return fmt.Errorf("save run report: %w", err)
		}
		log.Info("report_written", "path", path)
	}
	if uc.deps.RunRepo != nil {
		if err := uc.deps.RunRepo.SaveReport(ctx, report); err != nil {
			log.Warn("report_mirror_failed", "error", err)
		}
	}
	return nil
}

// reportCollector serializes report mutations from the worker goroutines.
type reportCollector struct {
	mu     sync.Mutex
	report *domain.RunReport
}

func (c *reportCollector) succeeded(outcome domain.FileOutcome, review *domain.ReviewEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.report.FilesCreated = append(c.report.FilesCreated, outcome)
	c.report.Outcomes = append(c.report.Outcomes, outcome)
	if review != nil {
		c.report.ManualReview = append(c.report.ManualReview, *review)
	}
}

func (c *reportCollector) failed(entry domain.ErrorEntry, outcome domain.FileOutcome, review *domain.ReviewEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.report.Errors = append(c.report.Errors, entry)
	c.report.Outcomes = append(c.report.Outcomes, outcome)
	if review != nil {
		c.report.ManualReview = append(c.report.ManualReview, *review)
	}
}

func (c *reportCollector) notStarted(file domain.IntakeFile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.report.Outcomes = append(c.report.Outcomes, domain.FileOutcome{Source: file.Name, State: file.State, Stage: stageNotRun})
}

func (c *reportCollector) sort() {
	c.mu.Lock()
	defer c.mu.Unlock()
	r := c.report
	sort.Slice(r.FilesCreated, func(i, j int) bool { return r.FilesCreated[i].Source < r.FilesCreated[j].Source })
	sort.Slice(r.Outcomes, func(i, j int) bool { return r.Outcomes[i].Source < r.Outcomes[j].Source })
	sort.Slice(r.Errors, func(i, j int) bool { return r.Errors[i].Source < r.Errors[j].Source })
	sort.Slice(r.ManualReview, func(i, j int) bool { return r.ManualReview[i].Source < r.ManualReview[j].Source })
}

// IsAbort reports whether err ended the run as a whole rather than a file.
func IsAbort(err error) bool {
	return err != nil && (domain.IsKind(err, domain.ErrEnvironment) || domain.IsKind(err, domain.ErrCanceled) || errors.Is(err, context.Canceled))
}
