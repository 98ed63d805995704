package spreadsheet

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/knowledge-pipeline/internal/core/domain"
)

const toolName = "excelize"

// Extractor renders every sheet of a workbook as a Markdown table.
type Extractor struct {
	maxRows int
}

func NewExtractor(maxRows int) *Extractor {
	if maxRows <= 0 {
		maxRows = 500
	}
	return &Extractor{maxRows: maxRows}
}

func (e *Extractor) Convert(ctx context.Context, file domain.IntakeFile) (domain.Extraction, error) {
	if err := ctx.Err(); err != nil {
		return domain.Extraction{}, err
	}
	wb, err := excelize.OpenFile(file.Path)
	if err != nil {
		return domain.Extraction{}, &domain.ConversionError{Tool: toolName, Message: "open " + file.Name, Err: err}
	}
	defer wb.Close()

	var b strings.Builder
	sheets := wb.GetSheetList()
	rendered := 0
	for _, sheet := range sheets {
		rows, err := wb.GetRows(sheet)
		if err != nil {
			return domain.Extraction{}, &domain.ConversionError{Tool: toolName, Message: "read sheet " + sheet, Err: err}
		}
		table := renderTable(rows, e.maxRows)
		if table == "" {
			continue
		}
		if rendered > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "## %s\n\n%s", sheet, table)
		rendered++
	}
	if rendered == 0 {
		return domain.Extraction{}, &domain.ConversionError{Tool: toolName, Message: "no cell data in " + file.Name}
	}

	return domain.Extraction{
		Text:       b.String(),
		SourceType: domain.SourceSpreadsheet,
		Tool:       toolName,
		Metadata: map[string]string{
			"sheets": strconv.Itoa(len(sheets)),
		},
	}, nil
}

// renderTable treats the first non-empty row as the header. Rows beyond
// maxRows are dropped with a trailing note.
func renderTable(rows [][]string, maxRows int) string {
	rows = trimEmptyRows(rows)
	if len(rows) == 0 {
		return ""
	}
	width := 0
	for _, r := range rows {
		width = max(width, len(r))
	}

	var b strings.Builder
	writeRow := func(cells []string) {
		b.WriteString("|")
		for i := 0; i < width; i++ {
			cell := ""
			if i < len(cells) {
				cell = escapeCell(cells[i])
			}
			b.WriteString(" " + cell + " |")
		}
		b.WriteString("\n")
	}

	writeRow(rows[0])
	b.WriteString("|" + strings.Repeat(" --- |", width) + "\n")
	body := rows[1:]
	truncated := 0
	if len(body) > maxRows {
		truncated = len(body) - maxRows
		body = body[:maxRows]
	}
	for _, r := range body {
		writeRow(r)
	}
	if truncated > 0 {
		fmt.Fprintf(&b, "\n_%d more rows omitted_\n", truncated)
	}
	return strings.TrimRight(b.String(), "\n")
}

func trimEmptyRows(rows [][]string) [][]string {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		for _, c := range r {
			if strings.TrimSpace(c) != "" {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

func escapeCell(v string) string {
	v = strings.TrimSpace(v)
	v = strings.ReplaceAll(v, "|", `\|`)
	return strings.ReplaceAll(v, "\n", " ")
}
