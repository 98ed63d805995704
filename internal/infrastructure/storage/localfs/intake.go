package localfs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kirillkom/knowledge-pipeline/internal/core/domain"
)

// IntakeStore keeps one directory per intake state under basePath. Moving a
// file between states is a rename; file content is never touched.
type IntakeStore struct {
	basePath string
}

func NewIntakeStore(basePath string) (*IntakeStore, error) {
	if basePath == "" {
		basePath = "./intake"
	}
	return &IntakeStore{basePath: basePath}, nil
}

func (s *IntakeStore) Dir(state domain.IntakeState) string {
	return filepath.Join(s.basePath, string(state))
}

// Check requires raw/ to exist and creates the remaining state directories.
func (s *IntakeStore) Check(_ context.Context) error {
	info, err := os.Stat(s.Dir(domain.StateRaw))
	if err != nil {
		return domain.WrapError(domain.ErrEnvironment, "check intake dir", err)
	}
	if !info.IsDir() {
		return domain.WrapError(domain.ErrEnvironment, "check intake dir", fmt.Errorf("%s is not a directory", s.Dir(domain.StateRaw)))
	}
	for _, state := range []domain.IntakeState{domain.StateProcessing, domain.StateCompleted, domain.StateFailed} {
		if err := os.MkdirAll(s.Dir(state), 0o755); err != nil {
			return domain.WrapError(domain.ErrEnvironment, "create intake dir", err)
		}
	}
	return nil
}

// List returns regular, non-hidden files of one state directory sorted by
// name.
func (s *IntakeStore) List(_ context.Context, state domain.IntakeState) ([]domain.IntakeFile, error) {
	dir := s.Dir(state)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.WrapError(domain.ErrEnvironment, "list intake", err)
		}
		return nil, domain.WrapError(domain.ErrFileRead, "list intake", err)
	}

	files := make([]domain.IntakeFile, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") || !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		st, kind := domain.ClassifyPath(name)
		files = append(files, domain.IntakeFile{
			Name:       name,
			Path:       filepath.Join(dir, name),
			State:      state,
			Kind:       kind,
			SourceType: st,
			Size:       info.Size(),
			ModTime:    info.ModTime(),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// Move renames file into the directory of state. A name collision in the
// target directory gets a numeric suffix instead of overwriting.
func (s *IntakeStore) Move(_ context.Context, file domain.IntakeFile, to domain.IntakeState) (domain.IntakeFile, error) {
	if file.State == to {
		return file, nil
	}
	dir := s.Dir(to)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return file, domain.WrapError(domain.ErrEnvironment, "move intake file", err)
	}
	target := uniquePath(dir, file.Name)
	if err := os.Rename(file.Path, target); err != nil {
		return file, domain.WrapError(domain.ErrFileRead, "move intake file", err)
	}

	moved := file
	moved.Path = target
	moved.Name = filepath.Base(target)
	moved.State = to
	return moved, nil
}

func uniquePath(dir, name string) string {
	target := filepath.Join(dir, name)
	if _, err := os.Stat(target); errors.Is(err, os.ErrNotExist) {
		return target
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 1; ; i++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, i, ext))
		if _, err := os.Stat(candidate); errors.Is(err, os.ErrNotExist) {
			return candidate
		}
	}
}
