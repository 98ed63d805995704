package pdfdoc

import (
	"context"
	"strconv"
	"strings"

	"github.com/kirillkom/knowledge-pipeline/internal/core/domain"
)

const toolName = "pdf"

type Converter struct{}

func NewConverter() *Converter {
	return &Converter{}
}

func (c *Converter) Convert(ctx context.Context, file domain.IntakeFile) (domain.Extraction, error) {
	if err := ctx.Err(); err != nil {
		return domain.Extraction{}, err
	}
	doc, err := Open(file.Path)
	if err != nil {
		return domain.Extraction{}, &domain.ConversionError{Tool: toolName, Message: "open " + file.Name, Err: err}
	}
	defer doc.Close()

	text, err := doc.AllText()
	if err != nil {
		return domain.Extraction{}, &domain.ConversionError{Tool: toolName, Message: "extract " + file.Name, Err: err}
	}
	if !hasPageText(text) {
		return domain.Extraction{}, &domain.ConversionError{Tool: toolName, Message: "no extractable text in " + file.Name}
	}

	return domain.Extraction{
		Text:       text,
		SourceType: domain.SourcePDF,
		Tool:       toolName,
		Metadata: map[string]string{
			"pages": strconv.Itoa(doc.PageCount()),
		},
	}, nil
}

func hasPageText(joined string) bool {
	for _, line := range strings.Split(joined, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || (strings.HasPrefix(line, "--- Page ") && strings.HasSuffix(line, " ---")) {
			continue
		}
		return true
	}
	return false
}
