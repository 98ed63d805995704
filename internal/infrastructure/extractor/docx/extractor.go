package docx

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/kirillkom/knowledge-pipeline/internal/core/domain"
)

const (
	toolName     = "docx"
	documentPart = "word/document.xml"
)

// Extractor reads paragraph text from the main document part of a .docx
// package. Paragraphs styled HeadingN become Markdown headings.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Convert(ctx context.Context, file domain.IntakeFile) (domain.Extraction, error) {
	if err := ctx.Err(); err != nil {
		return domain.Extraction{}, err
	}
	archive, err := zip.OpenReader(file.Path)
	if err != nil {
		return domain.Extraction{}, &domain.ConversionError{Tool: toolName, Message: "open " + file.Name, Err: err}
	}
	defer archive.Close()

	var part *zip.File
	for _, f := range archive.File {
		if f.Name == documentPart {
			part = f
			break
		}
	}
	if part == nil {
		return domain.Extraction{}, &domain.ConversionError{Tool: toolName, Message: file.Name + " has no " + documentPart}
	}

	rc, err := part.Open()
	if err != nil {
		return domain.Extraction{}, &domain.ConversionError{Tool: toolName, Message: "open " + documentPart, Err: err}
	}
	defer rc.Close()

	paragraphs, images, err := parseDocument(rc)
	if err != nil {
		return domain.Extraction{}, &domain.ConversionError{Tool: toolName, Message: "parse " + documentPart, Err: err}
	}
	text := strings.Join(paragraphs, "\n\n")
	if strings.TrimSpace(text) == "" {
		return domain.Extraction{}, &domain.ConversionError{Tool: toolName, Message: "no text in " + file.Name}
	}

	return domain.Extraction{
		Text:       text,
		SourceType: domain.SourceDocx,
		Tool:       toolName,
		Metadata: map[string]string{
			"paragraphs": strconv.Itoa(len(paragraphs)),
			"images":     strconv.Itoa(images),
		},
	}, nil
}

// parseDocument walks WordprocessingML tokens and returns non-empty
// paragraphs plus the number of embedded drawings.
func parseDocument(r io.Reader) ([]string, int, error) {
	dec := xml.NewDecoder(r)

	var (
		paragraphs []string
		current    strings.Builder
		level      int
		inPara     bool
		inText     bool
		images     int
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				inPara = true
				level = 0
				current.Reset()
			case "pStyle":
				level = headingLevel(attr(t, "val"))
			case "t":
				inText = true
			case "tab":
				if inPara {
					current.WriteByte('\t')
				}
			case "br", "cr":
				if inPara {
					current.WriteByte('\n')
				}
			case "drawing", "pict":
				images++
			}
		case xml.CharData:
			if inText && inPara {
				current.Write(t)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				inPara = false
				text := strings.TrimSpace(current.String())
				if text == "" {
					continue
				}
				if level > 0 {
					text = strings.Repeat("#", level) + " " + text
				}
				paragraphs = append(paragraphs, text)
			}
		}
	}
	return paragraphs, images, nil
}

func headingLevel(style string) int {
	lower := strings.ToLower(strings.ReplaceAll(style, " ", ""))
	switch {
	case lower == "title":
		return 1
	case strings.HasPrefix(lower, "heading"):
		n, err := strconv.Atoi(strings.TrimPrefix(lower, "heading"))
		if err != nil || n < 1 {
			return 1
		}
		return min(n, 6)
	default:
		return 0
	}
}

func attr(el xml.StartElement, local string) string {
	for _, a := range el.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

