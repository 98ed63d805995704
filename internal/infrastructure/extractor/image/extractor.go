package image

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/kirillkom/knowledge-pipeline/internal/core/domain"
	"github.com/kirillkom/knowledge-pipeline/internal/core/ports"
)

const toolName = "vision"

var mediaTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".bmp":  "image/bmp",
}

func MediaType(name string) string {
	if mt, ok := mediaTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return mt
	}
	return "image/png"
}

// Extractor asks a vision model to describe an image; the description is
// the extracted text. ImageDescriptions stays empty so the description is not
// appended to the analysis input or rendered a second time.
type Extractor struct {
	vision ports.VisionDescriber
}

func NewExtractor(vision ports.VisionDescriber) *Extractor {
	return &Extractor{vision: vision}
}

func (e *Extractor) Convert(ctx context.Context, file domain.IntakeFile) (domain.Extraction, error) {
	data, err := os.ReadFile(file.Path)
	if err != nil {
		return domain.Extraction{}, domain.WrapError(domain.ErrFileRead, "read image", err)
	}
	if len(data) == 0 {
		return domain.Extraction{}, &domain.ConversionError{Tool: toolName, Message: file.Name + " is empty"}
	}

	description, err := e.vision.DescribeImage(ctx, MediaType(file.Name), data)
	if err != nil {
		if errors.Is(err, domain.ErrRateLimited) || errors.Is(err, context.Canceled) {
			return domain.Extraction{}, err
		}
		return domain.Extraction{}, &domain.ConversionError{Tool: toolName, Message: "describe " + file.Name, Err: err}
	}
	description = strings.TrimSpace(description)
	if description == "" {
		return domain.Extraction{}, &domain.ConversionError{Tool: toolName, Message: "empty description for " + file.Name}
	}

	return domain.Extraction{
		Text:       description,
		SourceType: domain.SourceImage,
		Tool:       toolName,
		Metadata:   map[string]string{"media_type": MediaType(file.Name)},
	}, nil
}
