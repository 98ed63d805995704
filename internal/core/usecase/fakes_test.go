package usecase

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/kirillkom/knowledge-pipeline/internal/core/domain"
)

type analyzerFake struct {
	mu sync.Mutex

	cls     domain.Classification
	clsErr  error
	st      domain.Structure
	stErr   error
	ver     domain.Verification
	verErr  error
	cleanup func(text string) (string, error)

	classifiedText []string
	verifyCalls    int
	cleanupCalls   int
}

func (f *analyzerFake) Classify(_ context.Context, text string) (domain.Classification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.classifiedText = append(f.classifiedText, text)
	if f.clsErr != nil {
		return domain.Classification{}, f.clsErr
	}
	return f.cls, nil
}

func (f *analyzerFake) Structure(context.Context, string, string, string) (domain.Structure, error) {
	if f.stErr != nil {
		return domain.Structure{}, f.stErr
	}
	return f.st, nil
}

func (f *analyzerFake) Verify(context.Context, string, domain.AnalysisResult) (domain.Verification, error) {
	f.mu.Lock()
	f.verifyCalls++
	f.mu.Unlock()
	if f.verErr != nil {
		return domain.Verification{}, f.verErr
	}
	return f.ver, nil
}

func (f *analyzerFake) CleanupTranscript(_ context.Context, text string) (string, error) {
	f.mu.Lock()
	f.cleanupCalls++
	f.mu.Unlock()
	if f.cleanup == nil {
		return text, nil
	}
	return f.cleanup(text)
}

type chunkerFake struct {
	chunks []string
}

func (f chunkerFake) Split(string) []string { return f.chunks }

type sequenceFake struct {
	mu   sync.Mutex
	next map[string]int
	err  error
}

func (f *sequenceFake) Next(_ context.Context, prefix string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	if f.next == nil {
		f.next = map[string]int{}
	}
	f.next[prefix]++
	return f.next[prefix], nil
}

// recordStoreFake keeps staged and filed records in memory.
type recordStoreFake struct {
	mu      sync.Mutex
	staged  map[string]domain.KnowledgeRecord
	filed   []domain.KnowledgeRecord
	listErr error
	fileErr error
	index   []domain.KnowledgeRecord
}

func newRecordStoreFake(existing ...domain.KnowledgeRecord) *recordStoreFake {
	return &recordStoreFake{staged: map[string]domain.KnowledgeRecord{}, filed: existing}
}

func (f *recordStoreFake) Check(context.Context) error { return nil }

func (f *recordStoreFake) Stage(_ context.Context, r domain.KnowledgeRecord) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	path := filepath.Join("review", r.ID+".md")
	if _, ok := f.staged[path]; ok {
		return "", domain.WrapError(domain.ErrValidation, "stage", errors.New("exists"))
	}
	f.staged[path] = r
	return path, nil
}

func (f *recordStoreFake) File(_ context.Context, staged string, r domain.KnowledgeRecord) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fileErr != nil {
		return "", f.fileErr
	}
	delete(f.staged, staged)
	r.Path = filepath.Join("knowledge", domain.KnowledgeDirFor(prefixOf(r.ID)), r.ID+".md")
	f.filed = append(f.filed, r)
	return r.Path, nil
}

func (f *recordStoreFake) List(context.Context) ([]domain.KnowledgeRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]domain.KnowledgeRecord(nil), f.filed...), nil
}

func (f *recordStoreFake) Get(_ context.Context, id string) (*domain.KnowledgeRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.filed {
		if r.ID == id {
			rec := r
			return &rec, nil
		}
	}
	return nil, domain.WrapError(domain.ErrRecordNotFound, "get", fmt.Errorf("%s", id))
}

func (f *recordStoreFake) UpdateStatus(_ context.Context, id string, status domain.RecordStatus) (*domain.KnowledgeRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, r := range f.filed {
		if r.ID != id {
			continue
		}
		if !r.Status.CanTransitionTo(status) {
			return nil, domain.WrapError(domain.ErrInvalidTransition, "update", fmt.Errorf("%s -> %s", r.Status, status))
		}
		f.filed[i].Status = status
		rec := f.filed[i]
		return &rec, nil
	}
	return nil, domain.WrapError(domain.ErrRecordNotFound, "update", fmt.Errorf("%s", id))
}

func (f *recordStoreFake) WriteIndex(_ context.Context, records []domain.KnowledgeRecord) (string, error) {
	f.index = records
	return filepath.Join("knowledge", "INDEX.md"), nil
}

func prefixOf(id string) string {
	prefix, _, _ := domain.ParseRecordID(id)
	return prefix
}

type reportStoreFake struct {
	reports map[string]*domain.RunReport
	ids     []string
}

func (f *reportStoreFake) Save(_ context.Context, r *domain.RunReport) (string, error) {
	if f.reports == nil {
		f.reports = map[string]*domain.RunReport{}
	}
	f.reports[r.RunID] = r
	f.ids = append(f.ids, r.RunID)
	return "report_" + r.RunID + ".json", nil
}

func (f *reportStoreFake) Load(_ context.Context, id string) (*domain.RunReport, error) {
	r, ok := f.reports[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrRecordNotFound, "load", fmt.Errorf("%s", id))
	}
	return r, nil
}

func (f *reportStoreFake) Latest(ctx context.Context) (*domain.RunReport, error) {
	if len(f.ids) == 0 {
		return nil, domain.WrapError(domain.ErrRecordNotFound, "latest", errors.New("none"))
	}
	return f.Load(ctx, f.ids[len(f.ids)-1])
}

func (f *reportStoreFake) ListRunIDs(context.Context) ([]string, error) {
	return f.ids, nil
}

func textFile(name string) domain.IntakeFile {
	st, kind := domain.ClassifyPath(name)
	return domain.IntakeFile{Name: name, Path: filepath.Join("intake", "processing", name), State: domain.StateProcessing, Kind: kind, SourceType: st}
}

func testTime(day int) time.Time {
	return time.Date(2026, 3, day, 9, 0, 0, 0, time.UTC)
}
