package knowledgefs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/kirillkom/knowledge-pipeline/internal/core/domain"
)

const IndexFile = "INDEX.md"

// RecordStore keeps filed records under knowledge/<dir>/<id>.md and staged
// ones under the review directory.
type RecordStore struct {
	root      string
	reviewDir string

	mu sync.Mutex
}

func NewRecordStore(root, reviewDir string) *RecordStore {
	return &RecordStore{root: root, reviewDir: reviewDir}
}

func (s *RecordStore) Root() string { return s.root }

// Check creates the directory layout and proves it is writable.
func (s *RecordStore) Check(_ context.Context) error {
	dirs := []string{s.reviewDir}
	for _, d := range domain.KnowledgeDirs() {
		dirs = append(dirs, filepath.Join(s.root, d))
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return domain.WrapError(domain.ErrEnvironment, "create knowledge dir", err)
		}
	}
	probe, err := os.CreateTemp(s.root, ".probe-*")
	if err != nil {
		return domain.WrapError(domain.ErrEnvironment, "knowledge dir not writable", err)
	}
	probe.Close()
	return os.Remove(probe.Name())
}

// Stage writes the record into the review directory and returns its path.
func (s *RecordStore) Stage(_ context.Context, record domain.KnowledgeRecord) (string, error) {
	data, err := Marshal(record)
	if err != nil {
		return "", err
	}
	path := filepath.Join(s.reviewDir, record.ID+".md")
	if err := writeFileExclusive(path, data); err != nil {
		if errors.Is(err, os.ErrExist) {
			return "", domain.WrapError(domain.ErrValidation, "stage record", fmt.Errorf("%s already staged", record.ID))
		}
		return "", domain.WrapError(domain.ErrEnvironment, "stage record", err)
	}
	return path, nil
}

// File moves a staged record into its knowledge subdirectory. An existing
// record with the same id is never overwritten.
func (s *RecordStore) File(_ context.Context, stagedPath string, record domain.KnowledgeRecord) (string, error) {
	target := s.recordPath(record.ID)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", domain.WrapError(domain.ErrEnvironment, "file record", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := os.Stat(target); err == nil {
		return "", domain.WrapError(domain.ErrValidation, "file record", fmt.Errorf("%s already exists", target))
	}
	if err := os.Rename(stagedPath, target); err != nil {
		return "", domain.WrapError(domain.ErrEnvironment, "file record", err)
	}
	return target, nil
}

// List reads every filed record. Files that fail to parse are skipped.
func (s *RecordStore) List(ctx context.Context) ([]domain.KnowledgeRecord, error) {
	paths, err := s.recordFiles(s.root)
	if err != nil {
		return nil, err
	}
	records := make([]domain.KnowledgeRecord, 0, len(paths))
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := readRecord(p)
		if err != nil {
			continue
		}
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records, nil
}

func (s *RecordStore) Get(ctx context.Context, id string) (*domain.KnowledgeRecord, error) {
	if p := s.recordPath(id); fileExists(p) {
		rec, err := readRecord(p)
		if err == nil && rec.ID == id {
			return &rec, nil
		}
	}
	records, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range records {
		if records[i].ID == id {
			return &records[i], nil
		}
	}
	return nil, domain.WrapError(domain.ErrRecordNotFound, "get record", fmt.Errorf("id %q", id))
}

// UpdateStatus rewrites only the status field; the transition must be the
// single allowed forward step.
func (s *RecordStore) UpdateStatus(ctx context.Context, id string, status domain.RecordStatus) (*domain.KnowledgeRecord, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	current := rec.Status
	if current == "" {
		current = domain.RecordDraft
	}
	if !current.CanTransitionTo(status) {
		return nil, domain.WrapError(domain.ErrInvalidTransition, "update status", fmt.Errorf("%s -> %s", current, status))
	}

	rec.Status = status
	data, err := Marshal(*rec)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := writeFileAtomic(rec.Path, data); err != nil {
		return nil, domain.WrapError(domain.ErrEnvironment, "update status", err)
	}
	return rec, nil
}

// MaxSequences scans filed and staged records for the highest sequence per
// id prefix.
func (s *RecordStore) MaxSequences(_ context.Context) (map[string]int, error) {
	out := make(map[string]int)
	for _, dir := range []string{s.root, s.reviewDir} {
		paths, err := s.recordFiles(dir)
		if err != nil {
			return nil, err
		}
		for _, p := range paths {
			id := strings.TrimSuffix(filepath.Base(p), ".md")
			if rec, err := readRecord(p); err == nil && rec.ID != "" {
				id = rec.ID
			}
			if prefix, seq, ok := domain.ParseRecordID(id); ok && seq > out[prefix] {
				out[prefix] = seq
			}
		}
	}
	return out, nil
}

func (s *RecordStore) recordPath(id string) string {
	dir := "articles"
	if prefix, _, ok := domain.ParseRecordID(id); ok {
		dir = domain.KnowledgeDirFor(prefix)
	}
	return filepath.Join(s.root, dir, id+".md")
}

func (s *RecordStore) recordFiles(root string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path != root && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			if path != root && filepath.Clean(path) == filepath.Clean(s.reviewDir) && root != s.reviewDir {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") || name == IndexFile || filepath.Ext(name) != ".md" {
			return nil
		}
		out = append(out, path)
		return nil
	})
	if err != nil {
		return nil, domain.WrapError(domain.ErrFileRead, "scan records", err)
	}
	sort.Strings(out)
	return out, nil
}

func readRecord(path string) (domain.KnowledgeRecord, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.KnowledgeRecord{}, err
	}
	rec, err := Parse(raw)
	if err != nil {
		return domain.KnowledgeRecord{}, fmt.Errorf("%s: %w", path, err)
	}
	rec.Path = path
	return rec, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
