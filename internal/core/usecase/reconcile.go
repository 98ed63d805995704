package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/knowledge-pipeline/internal/core/domain"
	"github.com/kirillkom/knowledge-pipeline/internal/core/ports"
)

type ReconcileUseCase struct {
	intake ports.IntakeStore
	logger *slog.Logger
}

func NewReconcileUseCase(intake ports.IntakeStore, logger *slog.Logger) *ReconcileUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReconcileUseCase{intake: intake, logger: logger}
}

// Reconcile returns files stranded in processing/ by an aborted run to raw/.
func (uc *ReconcileUseCase) Reconcile(ctx context.Context) ([]domain.IntakeFile, error) {
	if err := uc.intake.Check(ctx); err != nil {
		return nil, err
	}
	stranded, err := uc.intake.List(ctx, domain.StateProcessing)
	if err != nil {
		return nil, fmt.Errorf("list processing: %w", err)
	}
	moved := make([]domain.IntakeFile, 0, len(stranded))
	for _, f := range stranded {
		back, err := uc.intake.Move(ctx, f, domain.StateRaw)
		if err != nil {
			return moved, fmt.Errorf("return %s to raw: %w", f.Name, err)
		}
		uc.logger.Info("file_reconciled", "file", f.Name, "path", back.Path)
		moved = append(moved, back)
	}
	return moved, nil
}
