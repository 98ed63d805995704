package pdfmcp

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kirillkom/knowledge-pipeline/internal/infrastructure/extractor/pdfdoc"
)

// Documents up to this many pages are returned whole by read_pdf without
// an explicit range.
const wholeDocumentPages = 50

func readPDF(path string, startPage, endPage int) (string, error) {
	doc, err := openDocument(path)
	if err != nil {
		return "", err
	}
	defer doc.Close()

	if startPage <= 1 && endPage <= 0 && doc.PageCount() <= wholeDocumentPages {
		return doc.AllText()
	}
	if startPage > doc.PageCount() {
		return "", fmt.Errorf("%w: start page %d (1-%d)", pdfdoc.ErrPageOutOfRange, startPage, doc.PageCount())
	}
	pages, err := doc.Pages(startPage, endPage)
	if err != nil {
		return "", err
	}
	return formatPages(pages), nil
}

func formatPages(pages []pdfdoc.PageContent) string {
	var b strings.Builder
	for i, p := range pages {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "--- Page %d ---\n%s", p.Number, p.Text)
		if p.ImageCount > 0 {
			fmt.Fprintf(&b, "\n[%d image(s) on this page]", p.ImageCount)
		}
	}
	return b.String()
}

type infoView struct {
	Path      string `json:"path"`
	PageCount int    `json:"page_count"`
	FileSize  string `json:"file_size"`
	Title     string `json:"title,omitempty"`
	Author    string `json:"author,omitempty"`
	Subject   string `json:"subject,omitempty"`
	Keywords  string `json:"keywords,omitempty"`
}

func pdfInfo(path string) (string, error) {
	doc, err := openDocument(path)
	if err != nil {
		return "", err
	}
	defer doc.Close()

	info, err := doc.Info()
	if err != nil {
		return "", err
	}
	return formatInfo(info)
}

func formatInfo(info pdfdoc.Info) (string, error) {
	out, err := json.MarshalIndent(infoView{
		Path:      info.Path,
		PageCount: info.PageCount,
		FileSize:  fmt.Sprintf("%.1f KB", float64(info.SizeBytes)/1024),
		Title:     info.Title,
		Author:    info.Author,
		Subject:   info.Subject,
		Keywords:  info.Keywords,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode pdf info: %w", err)
	}
	return string(out), nil
}

func searchPDF(path, query string, maxResults int) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", errors.New("query is empty")
	}
	doc, err := openDocument(path)
	if err != nil {
		return "", err
	}
	defer doc.Close()

	results, err := doc.Search(query, maxResults)
	if err != nil {
		return "", err
	}
	return formatSearch(query, results), nil
}

func formatSearch(query string, results []pdfdoc.SearchResult) string {
	if len(results) == 0 {
		return fmt.Sprintf("No matches found for '%s'", query)
	}
	total := 0
	for _, r := range results {
		total += r.MatchCount
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d match(es) across %d page(s):\n", total, len(results))
	for _, r := range results {
		fmt.Fprintf(&b, "\n[Page %d] (%d match(es))\n  %s\n", r.Page, r.MatchCount, r.Snippet)
	}
	return b.String()
}

func convertToMarkdown(path string) (string, error) {
	doc, err := openDocument(path)
	if err != nil {
		return "", err
	}
	defer doc.Close()
	return doc.Markdown()
}

func listPDFs(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve directory: %w", err)
	}
	if st, err := os.Stat(abs); err != nil || !st.IsDir() {
		return "", fmt.Errorf("directory not found: %s", abs)
	}

	var paths []string
	err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".pdf") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("walk %s: %w", abs, err)
	}
	if len(paths) == 0 {
		return fmt.Sprintf("No PDF files found in %s", abs), nil
	}
	sort.Strings(paths)

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d PDF file(s) in %s:\n", len(paths), abs)
	for _, path := range paths {
		size := "unknown size"
		if st, err := os.Stat(path); err == nil {
			size = formatSize(st.Size())
		}
		doc, err := pdfdoc.Open(path)
		if err != nil {
			fmt.Fprintf(&b, "\n  %s  (%s, unable to read)", path, size)
			continue
		}
		fmt.Fprintf(&b, "\n  %s  (%s, %d pages)", path, size, doc.PageCount())
		_ = doc.Close()
	}
	return b.String(), nil
}

func formatSize(n int64) string {
	if n < 1024*1024 {
		return fmt.Sprintf("%.1f KB", float64(n)/1024)
	}
	return fmt.Sprintf("%.1f MB", float64(n)/(1024*1024))
}

func openDocument(path string) (*pdfdoc.Document, error) {
	doc, err := pdfdoc.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("file not found: %s", path)
	}
	return doc, err
}
