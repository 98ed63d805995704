package knowledgefs

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/knowledge-pipeline/internal/core/domain"
)

func newStore(t *testing.T) (*RecordStore, string) {
	t.Helper()
	root := t.TempDir()
	store := NewRecordStore(filepath.Join(root, "knowledge"), filepath.Join(root, "intake", "review"))
	require.NoError(t, store.Check(context.Background()))
	return store, root
}

func sampleRecord(id, title string) domain.KnowledgeRecord {
	return domain.KnowledgeRecord{
		FrontMatter: domain.FrontMatter{
			ID:          id,
			Title:       title,
			Category:    "sales-skills",
			SubCategory: "closing",
			Source:      "notes.txt",
			Priority:    "high",
			Tags:        []string{"logical"},
			Status:      domain.RecordDraft,
			Confidence:  0.9,
			GeneratedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
			SourceFile:  "notes.txt",
		},
		Body: "# " + title + "\n\nBody text for the record.",
	}
}

func TestMarshalParseRoundTrip(t *testing.T) {
	rec := sampleRecord("ML_202603_001", "Closing: the last step")

	data, err := Marshal(rec)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "---\nid: ML_202603_001\n"))
	assert.Contains(t, string(data), "status: draft")

	got, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, rec.FrontMatter, got.FrontMatter)
	assert.Equal(t, rec.Body+"\n", got.Body)
}

func TestParseNormalizesLegacyRawStatus(t *testing.T) {
	got, err := Parse([]byte("---\nid: QA_001\nstatus: raw\n---\n\nbody\n"))
	require.NoError(t, err)
	assert.Equal(t, domain.RecordDraft, got.Status)

	_, err = Parse([]byte("no front matter"))
	assert.Error(t, err)
}

func TestStageAndFile(t *testing.T) {
	store, root := newStore(t)
	ctx := context.Background()
	rec := sampleRecord("VID_202603_01_01", "Seminar")

	staged, err := store.Stage(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "intake", "review", "VID_202603_01_01.md"), staged)

	_, err = store.Stage(ctx, rec)
	assert.True(t, domain.IsKind(err, domain.ErrValidation), "restaging the same id must fail")

	filed, err := store.File(ctx, staged, rec)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "knowledge", "seminars", "VID_202603_01_01.md"), filed)
	_, err = os.Stat(staged)
	assert.True(t, os.IsNotExist(err))

	records, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, filed, records[0].Path)
}

func TestFileRefusesOverwrite(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()
	rec := sampleRecord("ML_202603_001", "First")

	staged, err := store.Stage(ctx, rec)
	require.NoError(t, err)
	_, err = store.File(ctx, staged, rec)
	require.NoError(t, err)

	second := filepath.Join(t.TempDir(), "other.md")
	require.NoError(t, os.WriteFile(second, []byte("x"), 0o644))
	_, err = store.File(ctx, second, rec)
	assert.True(t, domain.IsKind(err, domain.ErrValidation))
}

func TestUpdateStatusForwardOnly(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()
	rec := sampleRecord("QA_004", "Question")
	staged, err := store.Stage(ctx, rec)
	require.NoError(t, err)
	_, err = store.File(ctx, staged, rec)
	require.NoError(t, err)

	_, err = store.UpdateStatus(ctx, "QA_004", domain.RecordIntegrated)
	assert.True(t, domain.IsKind(err, domain.ErrInvalidTransition))

	updated, err := store.UpdateStatus(ctx, "QA_004", domain.RecordRefined)
	require.NoError(t, err)
	assert.Equal(t, domain.RecordRefined, updated.Status)

	got, err := store.Get(ctx, "QA_004")
	require.NoError(t, err)
	assert.Equal(t, domain.RecordRefined, got.Status)
	assert.Equal(t, rec.Title, got.Title)

	_, err = store.Get(ctx, "QA_999")
	assert.True(t, domain.IsKind(err, domain.ErrRecordNotFound))
}

func TestMaxSequencesIncludesStaged(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	for _, id := range []string{"ML_202601_007", "BK_012_P001"} {
		staged, err := store.Stage(ctx, sampleRecord(id, id))
		require.NoError(t, err)
		_, err = store.File(ctx, staged, sampleRecord(id, id))
		require.NoError(t, err)
	}
	_, err := store.Stage(ctx, sampleRecord("ML_202602_009", "left in review"))
	require.NoError(t, err)

	got, err := store.MaxSequences(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"ML": 9, "BK": 12}, got)
}

func TestWriteIndexGroupsByDirectory(t *testing.T) {
	store, root := newStore(t)
	ctx := context.Background()
	for _, id := range []string{"ML_202603_001", "AUD_202603_01_01"} {
		staged, err := store.Stage(ctx, sampleRecord(id, "Title | "+id))
		require.NoError(t, err)
		_, err = store.File(ctx, staged, sampleRecord(id, "Title | "+id))
		require.NoError(t, err)
	}
	records, err := store.List(ctx)
	require.NoError(t, err)

	path, err := store.WriteIndex(ctx, records)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "knowledge", IndexFile), path)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	index := string(raw)
	assert.Contains(t, index, "## articles (1)")
	assert.Contains(t, index, "## trainings (1)")
	assert.Contains(t, index, `Title \| ML_202603_001`)

	again, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, again, 2, "index file must not be listed as a record")
}

func TestSequenceAllocatorSeedsAndPersists(t *testing.T) {
	dir := t.TempDir()
	seeds := 0
	seed := func(context.Context) (map[string]int, error) {
		seeds++
		return map[string]int{"ML": 41}, nil
	}
	ctx := context.Background()

	alloc := NewSequenceAllocator(dir, seed)
	n, err := alloc.Next(ctx, "ML")
	require.NoError(t, err)
	assert.Equal(t, 42, n)
	n, err = alloc.Next(ctx, "ML")
	require.NoError(t, err)
	assert.Equal(t, 43, n)
	n, err = alloc.Next(ctx, "QA")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 2, seeds, "seed only runs for prefixes missing from the counter file")

	reopened := NewSequenceAllocator(dir, func(context.Context) (map[string]int, error) {
		t.Fatal("persisted prefixes must not be reseeded")
		return nil, nil
	})
	n, err = reopened.Next(ctx, "ML")
	require.NoError(t, err)
	assert.Equal(t, 44, n)

	current, err := reopened.Current()
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"ML": 44, "QA": 1}, current)
}

func TestSequenceAllocatorConcurrentUnique(t *testing.T) {
	alloc := NewSequenceAllocator(t.TempDir(), nil)
	ctx := context.Background()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = map[int]bool{}
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := alloc.Next(ctx, "PR")
			if err != nil {
				t.Errorf("Next() error = %v", err)
				return
			}
			mu.Lock()
			seen[n] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 20)
	for i := 1; i <= 20; i++ {
		assert.True(t, seen[i], "missing sequence %d", i)
	}
}

func TestSequenceAllocatorsSharingDirNeverCollide(t *testing.T) {
	dir := t.TempDir()
	allocators := []*SequenceAllocator{NewSequenceAllocator(dir, nil), NewSequenceAllocator(dir, nil)}
	ctx := context.Background()
	const perAllocator = 150

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = map[int]int{}
	)
	for _, alloc := range allocators {
		for g := 0; g < 3; g++ {
			wg.Add(1)
			go func(alloc *SequenceAllocator) {
				defer wg.Done()
				for i := 0; i < perAllocator/3; i++ {
					n, err := alloc.Next(ctx, "ML")
					if err != nil {
						t.Errorf("Next() error = %v", err)
						return
					}
					mu.Lock()
					seen[n]++
					mu.Unlock()
				}
			}(alloc)
		}
	}
	wg.Wait()

	total := perAllocator * len(allocators)
	require.Len(t, seen, total)
	for n := 1; n <= total; n++ {
		assert.Equal(t, 1, seen[n], "sequence %d", n)
	}
	assert.NoFileExists(t, filepath.Join(dir, SequenceFile+lockFileSuffix))
}

func TestSequenceAllocatorBreaksStaleLock(t *testing.T) {
	dir := t.TempDir()
	lockPath := filepath.Join(dir, SequenceFile+lockFileSuffix)
	require.NoError(t, os.WriteFile(lockPath, []byte("1"), 0o644))
	old := time.Now().Add(-2 * staleLockAge)
	require.NoError(t, os.Chtimes(lockPath, old, old))

	n, err := NewSequenceAllocator(dir, nil).Next(context.Background(), "QA")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSequenceAllocatorWaitHonoursContext(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, SequenceFile+lockFileSuffix), []byte("1"), 0o644))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := NewSequenceAllocator(dir, nil).Next(ctx, "QA")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
