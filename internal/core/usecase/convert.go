package usecase

import (
	"context"
	"strings"

	"github.com/kirillkom/knowledge-pipeline/internal/core/domain"
	"github.com/kirillkom/knowledge-pipeline/internal/core/ports"
)

type ConvertUseCase struct {
	converter ports.Converter
	gate      *Gate
}

func NewConvertUseCase(converter ports.Converter, gate *Gate) *ConvertUseCase {
	if gate == nil {
		gate = NewGate(0)
	}
	return &ConvertUseCase{converter: converter, gate: gate}
}

func (uc *ConvertUseCase) Convert(ctx context.Context, file domain.IntakeFile) (domain.Extraction, error) {
	var out domain.Extraction
	err := uc.gate.Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = uc.converter.Convert(ctx, file)
		return err
	})
	if err != nil {
		return domain.Extraction{}, err
	}
	if strings.TrimSpace(out.Text) == "" {
		tool := out.Tool
		if tool == "" {
			tool = string(file.SourceType)
		}
		return domain.Extraction{}, &domain.ConversionError{Tool: tool, Message: "no text extracted from " + file.Name}
	}
	if out.SourceType == domain.SourceUnknown {
		out.SourceType = file.SourceType
	}
	return out, nil
}
