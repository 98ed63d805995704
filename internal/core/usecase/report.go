package usecase

import (
	"context"
	"strings"

	"github.com/kirillkom/knowledge-pipeline/internal/core/domain"
	"github.com/kirillkom/knowledge-pipeline/internal/core/ports"
)

const LatestReport = "latest"

type ReportUseCase struct {
	store ports.ReportStore
}

func NewReportUseCase(store ports.ReportStore) *ReportUseCase {
	return &ReportUseCase{store: store}
}

// Show loads the report of a run id, or the newest one for "latest" or "".
func (uc *ReportUseCase) Show(ctx context.Context, which string) (*domain.RunReport, error) {
	which = strings.TrimSpace(which)
	if which == "" || strings.EqualFold(which, LatestReport) {
		return uc.store.Latest(ctx)
	}
	which = strings.TrimSuffix(strings.TrimPrefix(which, "report_"), ".json")
	return uc.store.Load(ctx, which)
}

func (uc *ReportUseCase) List(ctx context.Context) ([]string, error) {
	return uc.store.ListRunIDs(ctx)
}
