package knowledgefs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/knowledge-pipeline/internal/core/domain"
)

const SequenceFile = ".sequences.yaml"

const (
	lockFileSuffix  = ".lock"
	lockRetryMin    = 2 * time.Millisecond
	lockRetryMax    = 50 * time.Millisecond
	lockWaitTimeout = 10 * time.Second
	staleLockAge    = 30 * time.Second
)

type sequenceState struct {
	Version  int64          `yaml:"version"`
	Counters map[string]int `yaml:"counters"`
}

// SeedFunc reports the highest sequence already used per prefix.
type SeedFunc func(ctx context.Context) (map[string]int, error)

// SequenceAllocator is the single writer of the persisted per-prefix
// counter. Every allocation holds an exclusive lock file next to the counter
// for the whole read, increment and rename, so allocators in separate
// processes sharing one knowledge dir never hand out the same number.
type SequenceAllocator struct {
	path     string
	lockPath string
	seed     SeedFunc

	mu sync.Mutex
}

func NewSequenceAllocator(knowledgeDir string, seed SeedFunc) *SequenceAllocator {
	return &SequenceAllocator{
		path:     filepath.Join(knowledgeDir, SequenceFile),
		lockPath: filepath.Join(knowledgeDir, SequenceFile+lockFileSuffix),
		seed:     seed,
	}
}

func (a *SequenceAllocator) Next(ctx context.Context, prefix string) (int, error) {
	if prefix == "" {
		return 0, domain.WrapError(domain.ErrInvalidInput, "allocate sequence", errors.New("empty prefix"))
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	unlock, err := a.lock(ctx)
	if err != nil {
		return 0, err
	}
	defer unlock()

	state, err := a.load()
	if err != nil {
		return 0, err
	}
	current, known := state.Counters[prefix]
	if !known && a.seed != nil {
		seeded, err := a.seed(ctx)
		if err != nil {
			return 0, domain.WrapError(domain.ErrEnvironment, "seed sequence", err)
		}
		current = seeded[prefix]
	}

	next := current + 1
	state.Counters[prefix] = next
	state.Version++
	if err := a.store(state); err != nil {
		return 0, err
	}
	return next, nil
}

// Current returns the persisted counters without allocating.
func (a *SequenceAllocator) Current() (map[string]int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	state, err := a.load()
	if err != nil {
		return nil, err
	}
	return state.Counters, nil
}

func (a *SequenceAllocator) load() (sequenceState, error) {
	state := sequenceState{Counters: map[string]int{}}
	raw, err := os.ReadFile(a.path)
	if errors.Is(err, os.ErrNotExist) {
		return state, nil
	}
	if err != nil {
		return state, domain.WrapError(domain.ErrEnvironment, "read sequence file", err)
	}
	if err := yaml.Unmarshal(raw, &state); err != nil {
		return state, domain.WrapError(domain.ErrEnvironment, "parse sequence file", err)
	}
	if state.Counters == nil {
		state.Counters = map[string]int{}
	}
	return state, nil
}

func (a *SequenceAllocator) store(state sequenceState) error {
	data, err := yaml.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode sequence file: %w", err)
	}
	if err := writeFileAtomic(a.path, data); err != nil {
		return domain.WrapError(domain.ErrEnvironment, "write sequence file", err)
	}
	return nil
}

// lock creates the lock file exclusively, backing off while another writer
// holds it. A lock older than staleLockAge is left over from a crashed
// process and is removed.
func (a *SequenceAllocator) lock(ctx context.Context) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(a.lockPath), 0o755); err != nil {
		return nil, domain.WrapError(domain.ErrEnvironment, "lock sequence file", err)
	}
	owner := []byte(strconv.Itoa(os.Getpid()))
	deadline := time.Now().Add(lockWaitTimeout)
	wait := lockRetryMin
	for {
		err := writeFileExclusive(a.lockPath, owner)
		if err == nil {
			return func() { _ = os.Remove(a.lockPath) }, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, domain.WrapError(domain.ErrEnvironment, "lock sequence file", err)
		}
		if info, statErr := os.Stat(a.lockPath); statErr == nil && time.Since(info.ModTime()) > staleLockAge {
			_ = os.Remove(a.lockPath)
			continue
		}
		if time.Now().After(deadline) {
			return nil, domain.WrapError(domain.ErrTemporary, "lock sequence file",
				fmt.Errorf("%s held for more than %s", a.lockPath, lockWaitTimeout))
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		if wait *= 2; wait > lockRetryMax {
			wait = lockRetryMax
		}
	}
}
