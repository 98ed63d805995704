package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kirillkom/knowledge-pipeline/internal/core/domain"
	"github.com/kirillkom/knowledge-pipeline/internal/core/ports"
	"github.com/kirillkom/knowledge-pipeline/internal/core/usecase"
	"github.com/kirillkom/knowledge-pipeline/internal/infrastructure/storage/knowledgefs"
	"github.com/kirillkom/knowledge-pipeline/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/knowledge-pipeline/internal/infrastructure/storage/reportfs"
	"github.com/kirillkom/knowledge-pipeline/internal/observability/logging"
)

// fileConverter reads text files from disk and fails on PDFs.
type fileConverter struct{}

func (fileConverter) Convert(_ context.Context, f domain.IntakeFile) (domain.Extraction, error) {
	if f.SourceType == domain.SourcePDF {
		return domain.Extraction{}, &domain.ConversionError{Tool: "pdf", Message: "malformed xref table"}
	}
	raw, err := os.ReadFile(f.Path)
	if err != nil {
		return domain.Extraction{}, domain.WrapError(domain.ErrFileRead, "read", err)
	}
	return domain.Extraction{Text: string(raw), SourceType: f.SourceType, Tool: "plaintext"}, nil
}

// lineAnalyzer takes the title from the first line and the confidence from
// a "confidence=" marker in the text.
type lineAnalyzer struct{}

func (lineAnalyzer) Classify(_ context.Context, text string) (domain.Classification, error) {
	conf := 0.9
	if strings.Contains(text, "confidence=low") {
		conf = 0.4
	}
	title := strings.TrimSpace(strings.SplitN(text, "\n", 2)[0])
	return domain.Classification{
		Category:    "sales-skills",
		SubCategory: "closing",
		Priority:    "high",
		Title:       title,
		Summary:     "Summary of " + title,
		Confidence:  conf,
	}, nil
}

func (lineAnalyzer) Structure(_ context.Context, text, _, _ string) (domain.Structure, error) {
	return domain.Structure{Sections: []domain.Section{{Heading: "Notes", Content: text}}}, nil
}

func (lineAnalyzer) Verify(context.Context, string, domain.AnalysisResult) (domain.Verification, error) {
	return domain.Verification{IsValid: true, QualityScore: 0.9}, nil
}

func (lineAnalyzer) CleanupTranscript(_ context.Context, text string) (string, error) {
	return text, nil
}

// cancelingConverter cancels the run once the file is already in
// processing/ and returns the cancellation.
type cancelingConverter struct {
	cancel context.CancelFunc
}

func (c cancelingConverter) Convert(ctx context.Context, _ domain.IntakeFile) (domain.Extraction, error) {
	c.cancel()
	<-ctx.Done()
	return domain.Extraction{}, ctx.Err()
}

type eventRecorder struct {
	mu  sync.Mutex
	ids []string
}

func (e *eventRecorder) PublishRecordFiled(_ context.Context, r domain.KnowledgeRecord) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ids = append(e.ids, r.ID)
	return nil
}

type workspace struct {
	root      string
	intake    *localfs.IntakeStore
	records   *knowledgefs.RecordStore
	reports   *reportfs.Store
	events    *eventRecorder
	pipeline  *usecase.PipelineUseCase
	knowledge string
}

type workspaceConfig struct {
	converter ports.Converter
	logger    *slog.Logger
}

func newWorkspace(t *testing.T, files map[string]string) *workspace {
	t.Helper()
	return newWorkspaceWith(t, files, workspaceConfig{})
}

func newWorkspaceWith(t *testing.T, files map[string]string, cfg workspaceConfig) *workspace {
	t.Helper()
	if cfg.converter == nil {
		cfg.converter = fileConverter{}
	}
	root := t.TempDir()
	raw := filepath.Join(root, "intake", "raw")
	if err := os.MkdirAll(raw, 0o755); err != nil {
		t.Fatalf("mkdir raw: %v", err)
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(raw, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	intake, err := localfs.NewIntakeStore(filepath.Join(root, "intake"))
	if err != nil {
		t.Fatalf("NewIntakeStore() error = %v", err)
	}
	knowledge := filepath.Join(root, "knowledge")
	records := knowledgefs.NewRecordStore(knowledge, filepath.Join(root, "intake", "review"))
	sequences := knowledgefs.NewSequenceAllocator(knowledge, records.MaxSequences)
	reports := reportfs.New(filepath.Join(root, "logs", "pipeline"))
	events := &eventRecorder{}
	gate := usecase.NewGate(3)
	tax := domain.DefaultTaxonomy()

	pipeline := usecase.NewPipelineUseCase(usecase.PipelineDeps{
		Intake:    intake,
		Records:   records,
		Scanner:   usecase.NewScanUseCase(intake),
		Converter: usecase.NewConvertUseCase(cfg.converter, gate),
		Analyzer:  usecase.NewAnalyzeUseCase(lineAnalyzer{}, nil, gate, tax, usecase.AnalyzeOptions{}, nil),
		Renderer:  usecase.NewRenderUseCase(sequences, records),
		Validator: usecase.NewValidateUseCase(records, tax, usecase.ValidateOptions{}),
		Reports:   reports,
		Events:    events,
		Logger:    cfg.logger,
		Workers:   4,
	})
	return &workspace{
		root:      root,
		intake:    intake,
		records:   records,
		reports:   reports,
		events:    events,
		pipeline:  pipeline,
		knowledge: knowledge,
	}
}

func (w *workspace) names(t *testing.T, state domain.IntakeState) []string {
	t.Helper()
	files, err := w.intake.List(context.Background(), state)
	if err != nil {
		t.Fatalf("List(%s) error = %v", state, err)
	}
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.Name)
	}
	return out
}

func (w *workspace) markdownFiles(t *testing.T) []string {
	t.Helper()
	var out []string
	err := filepath.WalkDir(w.knowledge, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, ".md") {
			rel, _ := filepath.Rel(w.knowledge, path)
			out = append(out, rel)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk knowledge: %v", err)
	}
	sort.Strings(out)
	return out
}

const notes = "Closing early\nAsk for the decision early and handle the objection calmly before the meeting ends.\n"

func TestRunFilesTextNote(t *testing.T) {
	w := newWorkspace(t, map[string]string{"notes.txt": notes})

	report, err := w.pipeline.Run(context.Background(), ports.RunOptions{Verify: true})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	md := w.markdownFiles(t)
	if len(md) != 1 || !strings.HasPrefix(md[0], filepath.Join("articles", "ML_")) || !strings.HasSuffix(md[0], "_001.md") {
		t.Fatalf("unexpected knowledge files %v", md)
	}
	raw, err := os.ReadFile(filepath.Join(w.knowledge, md[0]))
	if err != nil {
		t.Fatalf("read record: %v", err)
	}
	if !strings.Contains(string(raw), "status: draft") {
		t.Fatalf("record is not a draft:\n%s", raw)
	}
	if got := w.names(t, domain.StateCompleted); len(got) != 1 || got[0] != "notes.txt" {
		t.Fatalf("notes.txt not completed: %v", got)
	}
	if len(w.names(t, domain.StateRaw)) != 0 || len(w.names(t, domain.StateProcessing)) != 0 {
		t.Fatalf("files left behind in raw/ or processing/")
	}
	if report.Results.Success != 1 || report.Results.Failed != 0 {
		t.Fatalf("unexpected results %+v", report.Results)
	}
	if len(w.events.ids) != 1 || w.events.ids[0] != report.FilesCreated[0].RecordID {
		t.Fatalf("expected one filed event, got %v", w.events.ids)
	}

	saved, err := w.reports.Latest(context.Background())
	if err != nil {
		t.Fatalf("report not written: %v", err)
	}
	if saved.RunID != report.RunID {
		t.Fatalf("latest report %s, want %s", saved.RunID, report.RunID)
	}
}

func TestRunCorruptedPDFFails(t *testing.T) {
	w := newWorkspace(t, map[string]string{"broken.pdf": "%PDF-1.4 garbage"})

	report, err := w.pipeline.Run(context.Background(), ports.RunOptions{Verify: true})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(report.Errors) != 1 || report.Errors[0].Kind != "conversion" || report.Errors[0].Stage != "convert" {
		t.Fatalf("unexpected errors %+v", report.Errors)
	}
	if got := w.names(t, domain.StateFailed); len(got) != 1 || got[0] != "broken.pdf" {
		t.Fatalf("broken.pdf not in failed/: %v", got)
	}
	if md := w.markdownFiles(t); len(md) != 0 {
		t.Fatalf("knowledge written for a failed file: %v", md)
	}
}

func TestRunListsLowConfidenceForReview(t *testing.T) {
	w := newWorkspace(t, map[string]string{"vague.txt": "Vague idea\nconfidence=low but still long enough to pass the content checks easily.\n"})

	report, err := w.pipeline.Run(context.Background(), ports.RunOptions{Verify: true})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(report.ManualReview) != 1 || report.ManualReview[0].Source != "vague.txt" {
		t.Fatalf("low confidence record not in manual review: %+v", report.ManualReview)
	}
	if report.Results.Success != 1 {
		t.Fatalf("low confidence record should still be filed: %+v", report.Results)
	}
}

func TestRunNeverFilesDuplicates(t *testing.T) {
	w := newWorkspace(t, map[string]string{
		"a.txt": notes,
		"b.txt": notes,
	})

	report, err := w.pipeline.Run(context.Background(), ports.RunOptions{Verify: true})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if md := w.markdownFiles(t); len(md) != 1 {
		t.Fatalf("expected a single filed record, got %v", md)
	}
	if report.Results.Duplicates != 1 || report.Results.Failed != 1 {
		t.Fatalf("unexpected results %+v", report.Results)
	}
	dup := report.Errors[0]
	if dup.Kind != "duplicate" || dup.Review == "" {
		t.Fatalf("unexpected duplicate entry %+v", dup)
	}
	if _, err := os.Stat(dup.Review); err != nil {
		t.Fatalf("staged duplicate not kept for review: %v", err)
	}
	if len(w.names(t, domain.StateCompleted))+len(w.names(t, domain.StateFailed)) != 2 {
		t.Fatalf("every source must end in completed/ or failed/")
	}
}

func TestRunAllocatesUniqueSequences(t *testing.T) {
	titles := []string{
		"Approach scripts for first calls", "Budget planning with owners", "Cash flow reviews",
		"Doctor market entry", "Estate tax basics", "Family business succession",
		"Goal setting rituals", "Hearing skills drill", "Insurance act summary",
		"Joint venture benefits", "Key person coverage", "Liability claims handling",
	}
	files := map[string]string{}
	for i, title := range titles {
		files[fmt.Sprintf("note%02d.txt", i+1)] = title + "\nA distinct body of text for this record that is comfortably longer than fifty characters.\n"
	}
	w := newWorkspace(t, files)

	report, err := w.pipeline.Run(context.Background(), ports.RunOptions{Verify: false})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Results.Success != 12 {
		t.Fatalf("expected 12 records, got %+v with errors %+v", report.Results, report.Errors)
	}
	seen := map[int]bool{}
	for _, f := range report.FilesCreated {
		prefix, seq, ok := domain.ParseRecordID(f.RecordID)
		if !ok || prefix != "ML" {
			t.Fatalf("unexpected id %q", f.RecordID)
		}
		if seen[seq] {
			t.Fatalf("sequence %d allocated twice", seq)
		}
		seen[seq] = true
	}
	for i := 1; i <= 12; i++ {
		if !seen[i] {
			t.Fatalf("sequence %d missing", i)
		}
	}
}

func TestRunDryRunTouchesNothing(t *testing.T) {
	w := newWorkspace(t, map[string]string{"notes.txt": notes, "clip.xyz": "?"})

	report, err := w.pipeline.Run(context.Background(), ports.RunOptions{DryRun: true})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.InputFiles != 1 || len(report.Unsupported) != 1 {
		t.Fatalf("unexpected manifest counts %+v", report)
	}
	if got := w.names(t, domain.StateRaw); len(got) != 2 {
		t.Fatalf("dry run moved files: %v", got)
	}
	if ids, _ := w.reports.ListRunIDs(context.Background()); len(ids) != 0 {
		t.Fatalf("dry run wrote a report")
	}
}

func TestRunTypeFilterLeavesOtherFiles(t *testing.T) {
	w := newWorkspace(t, map[string]string{"notes.txt": notes, "call.mp3": "audio"})

	report, err := w.pipeline.Run(context.Background(), ports.RunOptions{TypeFilter: domain.FilterText, Verify: true})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.InputFiles != 1 {
		t.Fatalf("filtered file counted as input: %d", report.InputFiles)
	}
	if got := w.names(t, domain.StateRaw); len(got) != 1 || got[0] != "call.mp3" {
		t.Fatalf("filtered file should stay in raw/: %v", got)
	}
}

func TestRunCanceledBeforeStart(t *testing.T) {
	w := newWorkspace(t, map[string]string{"notes.txt": notes})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := w.pipeline.Run(ctx, ports.RunOptions{Verify: true})
	if !domain.IsKind(err, domain.ErrCanceled) {
		t.Fatalf("expected canceled run, got %v", err)
	}
	if got := w.names(t, domain.StateRaw); len(got) != 1 {
		t.Fatalf("unstarted file should stay in raw/: %v", got)
	}
}

func TestRunMissingIntakeAborts(t *testing.T) {
	w := newWorkspace(t, nil)
	if err := os.RemoveAll(filepath.Join(w.root, "intake", "raw")); err != nil {
		t.Fatalf("remove raw: %v", err)
	}

	_, err := w.pipeline.Run(context.Background(), ports.RunOptions{})
	if !domain.IsKind(err, domain.ErrEnvironment) {
		t.Fatalf("expected environment error, got %v", err)
	}
	if !usecase.IsAbort(err) {
		t.Fatalf("environment errors abort the run")
	}
}

func TestReconcileReturnsStrandedFiles(t *testing.T) {
	w := newWorkspace(t, nil)
	processing := filepath.Join(w.root, "intake", "processing")
	if err := os.MkdirAll(processing, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(processing, "stuck.txt"), []byte(notes), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	moved, err := usecase.NewReconcileUseCase(w.intake, nil).Reconcile(context.Background())
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if len(moved) != 1 || moved[0].State != domain.StateRaw {
		t.Fatalf("unexpected reconcile result %+v", moved)
	}
	if got := w.names(t, domain.StateRaw); len(got) != 1 || got[0] != "stuck.txt" {
		t.Fatalf("stuck.txt not back in raw/: %v", got)
	}
}

func TestRunListsRejectedLowConfidenceForReview(t *testing.T) {
	w := newWorkspace(t, map[string]string{"a.txt": notes})
	first := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	if _, err := w.pipeline.Run(context.Background(), ports.RunOptions{StartedAt: first}); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	dup := "Closing early\nconfidence=low and the same title as a record that is already filed.\n"
	if err := os.WriteFile(filepath.Join(w.root, "intake", "raw", "b.txt"), []byte(dup), 0o644); err != nil {
		t.Fatalf("write b.txt: %v", err)
	}

	report, err := w.pipeline.Run(context.Background(), ports.RunOptions{StartedAt: first.Add(time.Hour)})
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if len(report.Errors) != 1 || report.Errors[0].Kind != "duplicate" {
		t.Fatalf("expected one duplicate error, got %+v", report.Errors)
	}
	if len(report.ManualReview) != 1 {
		t.Fatalf("low confidence duplicate missing from manual review: %+v", report.ManualReview)
	}
	review := report.ManualReview[0]
	if review.Source != "b.txt" || review.Output != report.Errors[0].Review || review.RecordID != "ML_202602_002" {
		t.Fatalf("unexpected review entry %+v", review)
	}
	if _, err := os.Stat(review.Output); err != nil {
		t.Fatalf("staged record not kept: %v", err)
	}
	if report.Results.ManualReview != 1 {
		t.Fatalf("unexpected results %+v", report.Results)
	}
}

func TestRunNamesRecordsByRunStartMonth(t *testing.T) {
	w := newWorkspace(t, map[string]string{"notes.txt": notes})

	report, err := w.pipeline.Run(context.Background(), ports.RunOptions{StartedAt: time.Date(2026, 2, 28, 23, 59, 59, 0, time.UTC)})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(report.FilesCreated) != 1 || report.FilesCreated[0].RecordID != "ML_202602_001" {
		t.Fatalf("unexpected records %+v", report.FilesCreated)
	}
}

func TestRunCanceledInFlightMovesFileToFailed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w := newWorkspaceWith(t, map[string]string{"notes.txt": notes}, workspaceConfig{converter: cancelingConverter{cancel: cancel}})

	report, err := w.pipeline.Run(ctx, ports.RunOptions{Verify: true})
	if !domain.IsKind(err, domain.ErrCanceled) {
		t.Fatalf("expected canceled run, got %v", err)
	}
	if report == nil || len(report.Errors) != 1 {
		t.Fatalf("expected one error entry, got %+v", report)
	}
	entry := report.Errors[0]
	if entry.Kind != "canceled" || entry.Stage != "convert" || entry.MovedTo == "" {
		t.Fatalf("unexpected error entry %+v", entry)
	}
	if got := w.names(t, domain.StateFailed); len(got) != 1 || got[0] != "notes.txt" {
		t.Fatalf("in-flight file not moved to failed/: %v", got)
	}
	if got := w.names(t, domain.StateProcessing); len(got) != 0 {
		t.Fatalf("files left in processing/: %v", got)
	}
	if md := w.markdownFiles(t); len(md) != 0 {
		t.Fatalf("knowledge written for a canceled file: %v", md)
	}
}

func TestRunLogCarriesRunIDOnce(t *testing.T) {
	started := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	runID := domain.NewRunReport(started).RunID
	dir := t.TempDir()
	logger, closeLog := logging.NewRunLogger("pipeline", "info", dir, runID)
	w := newWorkspaceWith(t, map[string]string{"notes.txt": notes}, workspaceConfig{logger: logger})

	if _, err := w.pipeline.Run(context.Background(), ports.RunOptions{StartedAt: started}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if err := closeLog(); err != nil {
		t.Fatalf("close run log: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "run_"+runID+".log"))
	if err != nil {
		t.Fatalf("read run log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if len(lines) < 2 {
		t.Fatalf("expected several log lines, got %q", raw)
	}
	for _, line := range lines {
		if n := strings.Count(line, `"run_id"`); n != 1 {
			t.Fatalf("run_id appears %d times in %s", n, line)
		}
	}
}
