package reportfs

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/knowledge-pipeline/internal/core/domain"
)

func TestSaveLoadLatest(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs", "pipeline")
	store := New(dir)
	ctx := context.Background()

	first := domain.NewRunReport(time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC))
	first.Errors = append(first.Errors, domain.ErrorEntry{Source: "bad.pdf", Stage: "convert", Kind: "conversion", Error: "broken"})
	first.Finalize(first.StartedAt.Add(time.Minute))
	second := domain.NewRunReport(time.Date(2026, 1, 6, 9, 0, 0, 0, time.UTC))
	second.Finalize(second.StartedAt.Add(time.Minute))

	path, err := store.Save(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "report_20260105_090000.json"), path)
	_, err = store.Save(ctx, second)
	require.NoError(t, err)

	ids, err := store.ListRunIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"20260105_090000", "20260106_090000"}, ids)

	latest, err := store.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "20260106_090000", latest.RunID)

	loaded, err := store.Load(ctx, "20260105_090000")
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Results.Failed)
	assert.Equal(t, "bad.pdf", loaded.Errors[0].Source)
}

func TestSaveNeverOverwrites(t *testing.T) {
	store := New(t.TempDir())
	report := domain.NewRunReport(time.Now())

	_, err := store.Save(context.Background(), report)
	require.NoError(t, err)
	_, err = store.Save(context.Background(), report)
	assert.Error(t, err)
}

func TestLatestWithoutReports(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "missing"))

	_, err := store.Latest(context.Background())
	assert.True(t, domain.IsKind(err, domain.ErrRecordNotFound))

	ids, err := store.ListRunIDs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestLoadIgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "run_20260101_000000.log"), []byte("{}"), 0o644))

	ids, err := New(dir).ListRunIDs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}
