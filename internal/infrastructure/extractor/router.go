package extractor

import (
	"context"
	"fmt"

	"github.com/kirillkom/knowledge-pipeline/internal/core/domain"
	"github.com/kirillkom/knowledge-pipeline/internal/core/ports"
)

// Router dispatches conversion on the file's source type.
type Router struct {
	byType map[domain.SourceType]ports.Converter
}

func NewRouter() *Router {
	return &Router{byType: make(map[domain.SourceType]ports.Converter)}
}

func (r *Router) Register(converter ports.Converter, types ...domain.SourceType) *Router {
	for _, t := range types {
		r.byType[t] = converter
	}
	return r
}

func (r *Router) Convert(ctx context.Context, file domain.IntakeFile) (domain.Extraction, error) {
	converter, ok := r.byType[file.SourceType]
	if !ok {
		return domain.Extraction{}, &domain.ConversionError{
			Tool:    "router",
			Message: fmt.Sprintf("no converter for %q (%s)", file.SourceType, file.Name),
		}
	}
	return converter.Convert(ctx, file)
}
