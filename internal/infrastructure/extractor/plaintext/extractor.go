package plaintext

import (
	"context"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/knowledge-pipeline/internal/core/domain"
)

const toolName = "plaintext"

// Extractor reads .txt, .md and .csv sources as UTF-8.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Convert(ctx context.Context, file domain.IntakeFile) (domain.Extraction, error) {
	if err := ctx.Err(); err != nil {
		return domain.Extraction{}, err
	}
	raw, err := os.ReadFile(file.Path)
	if err != nil {
		return domain.Extraction{}, domain.WrapError(domain.ErrFileRead, "read source", err)
	}

	raw = []byte(strings.TrimPrefix(string(raw), "\ufeff"))
	if !utf8.Valid(raw) {
		return domain.Extraction{}, &domain.ConversionError{Tool: toolName, Message: fmt.Sprintf("%s is not valid UTF-8", file.Name)}
	}

	text := strings.TrimSpace(string(raw))
	if text == "" {
		return domain.Extraction{}, &domain.ConversionError{Tool: toolName, Message: fmt.Sprintf("%s is empty", file.Name)}
	}
	return domain.Extraction{
		Text:       text,
		SourceType: domain.SourceText,
		Tool:       toolName,
	}, nil
}
