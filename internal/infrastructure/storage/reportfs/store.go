package reportfs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kirillkom/knowledge-pipeline/internal/core/domain"
)

const (
	filePrefix = "report_"
	fileSuffix = ".json"
)

// Store writes one JSON file per run. Reports are written once and never
// rewritten.
type Store struct {
	dir string
}

func New(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) Path(runID string) string {
	return filepath.Join(s.dir, filePrefix+runID+fileSuffix)
}

func (s *Store) Save(_ context.Context, report *domain.RunReport) (string, error) {
	if report == nil || report.RunID == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, "save report", errors.New("report without run id"))
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", domain.WrapError(domain.ErrEnvironment, "save report", err)
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}

	path := s.Path(report.RunID)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return "", domain.WrapError(domain.ErrInvalidInput, "save report", fmt.Errorf("report %s already written", report.RunID))
		}
		return "", domain.WrapError(domain.ErrEnvironment, "save report", err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		f.Close()
		return "", domain.WrapError(domain.ErrEnvironment, "save report", err)
	}
	if err := f.Close(); err != nil {
		return "", domain.WrapError(domain.ErrEnvironment, "save report", err)
	}
	return path, nil
}

func (s *Store) Load(_ context.Context, runID string) (*domain.RunReport, error) {
	raw, err := os.ReadFile(s.Path(runID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.WrapError(domain.ErrRecordNotFound, "load report", fmt.Errorf("run %q", runID))
		}
		return nil, domain.WrapError(domain.ErrFileRead, "load report", err)
	}
	var report domain.RunReport
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil, domain.WrapError(domain.ErrFileRead, "decode report", err)
	}
	return &report, nil
}

func (s *Store) Latest(ctx context.Context) (*domain.RunReport, error) {
	ids, err := s.ListRunIDs(ctx)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, domain.WrapError(domain.ErrRecordNotFound, "latest report", errors.New("no reports"))
	}
	return s.Load(ctx, ids[len(ids)-1])
}

// ListRunIDs returns run ids in chronological order.
func (s *Store) ListRunIDs(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, domain.WrapError(domain.ErrFileRead, "list reports", err)
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix))
	}
	sort.Strings(ids)
	return ids, nil
}
