package image

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/knowledge-pipeline/internal/core/domain"
)

type fakeVision struct {
	description string
	err         error
	mediaType   string
}

func (f *fakeVision) DescribeImage(_ context.Context, mediaType string, _ []byte) (string, error) {
	f.mediaType = mediaType
	return f.description, f.err
}

func writeImage(t *testing.T, name string) domain.IntakeFile {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte{0x89, 'P', 'N', 'G'}, 0o644))
	return domain.IntakeFile{Name: name, Path: path, SourceType: domain.SourceImage}
}

func TestConvertUsesDescription(t *testing.T) {
	vision := &fakeVision{description: " A whiteboard with a sales funnel. "}

	got, err := NewExtractor(vision).Convert(context.Background(), writeImage(t, "board.JPG"))
	require.NoError(t, err)
	assert.Equal(t, "A whiteboard with a sales funnel.", got.Text)
	assert.Empty(t, got.ImageDescriptions, "the description is already the text")
	assert.Equal(t, "image/jpeg", vision.mediaType)
}

func TestConvertWrapsVisionFailure(t *testing.T) {
	_, err := NewExtractor(&fakeVision{err: errors.New("model offline")}).Convert(context.Background(), writeImage(t, "a.png"))
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.ErrConversion))
}

func TestConvertKeepsRateLimitKind(t *testing.T) {
	rateErr := domain.WrapError(domain.ErrRateLimited, "describe", errors.New("429"))
	_, err := NewExtractor(&fakeVision{err: rateErr}).Convert(context.Background(), writeImage(t, "a.png"))
	assert.True(t, domain.IsKind(err, domain.ErrRateLimited))
}
