package usecase

import (
	"context"
	"fmt"

	"github.com/kirillkom/knowledge-pipeline/internal/core/domain"
	"github.com/kirillkom/knowledge-pipeline/internal/core/ports"
)

type ScanUseCase struct {
	intake ports.IntakeStore
}

func NewScanUseCase(intake ports.IntakeStore) *ScanUseCase {
	return &ScanUseCase{intake: intake}
}

// Scan lists raw/ and sorts every file into the manifest. Nothing is moved.
func (uc *ScanUseCase) Scan(ctx context.Context, filter domain.TypeFilter) (domain.Manifest, error) {
	files, err := uc.intake.List(ctx, domain.StateRaw)
	if err != nil {
		return domain.Manifest{}, fmt.Errorf("scan intake: %w", err)
	}

	var manifest domain.Manifest
	for _, f := range files {
		switch {
		case f.Kind == domain.KindUnsupported:
			manifest.Unsupported = append(manifest.Unsupported, f)
		case !filter.Matches(f.SourceType):
			manifest.Filtered = append(manifest.Filtered, f)
		default:
			manifest.Files = append(manifest.Files, f)
		}
	}
	return manifest, nil
}
