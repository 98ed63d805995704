package pdfdoc

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
)

var ErrPageOutOfRange = errors.New("page out of range")

type Info struct {
	Path      string `json:"path"`
	PageCount int    `json:"page_count"`
	Title     string `json:"title,omitempty"`
	Author    string `json:"author,omitempty"`
	Subject   string `json:"subject,omitempty"`
	Keywords  string `json:"keywords,omitempty"`
	SizeBytes int64  `json:"file_size_bytes"`
}

type PageContent struct {
	Number     int
	Text       string
	ImageCount int
}

type SearchResult struct {
	Page       int
	Snippet    string
	MatchCount int
}

// Document is an opened PDF file. It is not safe for concurrent use.
type Document struct {
	path   string
	file   *os.File
	reader *pdf.Reader
}

func Open(path string) (doc *Document, err error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve pdf path: %w", err)
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, err
	}

	// The parser panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			doc = nil
			err = fmt.Errorf("cannot open as pdf: %v", r)
		}
	}()

	f, r, err := pdf.Open(abs)
	if err != nil {
		return nil, fmt.Errorf("cannot open as pdf: %w", err)
	}
	return &Document{path: abs, file: f, reader: r}, nil
}

func (d *Document) Close() error {
	if d == nil || d.file == nil {
		return nil
	}
	return d.file.Close()
}

func (d *Document) Path() string { return d.path }

func (d *Document) PageCount() int {
	return d.reader.NumPage()
}

func (d *Document) Info() (Info, error) {
	stat, err := d.file.Stat()
	if err != nil {
		return Info{}, fmt.Errorf("stat pdf: %w", err)
	}
	meta := d.reader.Trailer().Key("Info")
	return Info{
		Path:      d.path,
		PageCount: d.PageCount(),
		Title:     strings.TrimSpace(meta.Key("Title").Text()),
		Author:    strings.TrimSpace(meta.Key("Author").Text()),
		Subject:   strings.TrimSpace(meta.Key("Subject").Text()),
		Keywords:  strings.TrimSpace(meta.Key("Keywords").Text()),
		SizeBytes: stat.Size(),
	}, nil
}

// Page extracts one page; numbering starts at 1.
func (d *Document) Page(number int) (content PageContent, err error) {
	if number < 1 || number > d.PageCount() {
		return PageContent{}, fmt.Errorf("%w: %d (1-%d)", ErrPageOutOfRange, number, d.PageCount())
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("extract page %d: %v", number, r)
		}
	}()

	p := d.reader.Page(number)
	if p.V.IsNull() {
		return PageContent{Number: number}, nil
	}
	text, err := p.GetPlainText(nil)
	if err != nil {
		return PageContent{}, fmt.Errorf("extract page %d: %w", number, err)
	}
	return PageContent{
		Number:     number,
		Text:       text,
		ImageCount: countImages(p),
	}, nil
}

// Pages extracts the inclusive range [start, end]. end <= 0 means the last
// page. The range is clamped to the document.
func (d *Document) Pages(start, end int) ([]PageContent, error) {
	total := d.PageCount()
	if end <= 0 || end > total {
		end = total
	}
	if start < 1 {
		start = 1
	}
	out := make([]PageContent, 0, max(0, end-start+1))
	for i := start; i <= end; i++ {
		page, err := d.Page(i)
		if err != nil {
			return nil, err
		}
		out = append(out, page)
	}
	return out, nil
}

func (d *Document) AllText() (string, error) {
	pages, err := d.Pages(1, 0)
	if err != nil {
		return "", err
	}
	return JoinPages(pages), nil
}

func (d *Document) Search(query string, maxResults int) ([]SearchResult, error) {
	pages, err := d.Pages(1, 0)
	if err != nil {
		return nil, err
	}
	return SearchPages(pages, query, maxResults), nil
}

func (d *Document) Markdown() (string, error) {
	info, err := d.Info()
	if err != nil {
		return "", err
	}
	pages, err := d.Pages(1, 0)
	if err != nil {
		return "", err
	}
	return RenderMarkdown(info, pages), nil
}

// JoinPages concatenates page texts under "--- Page N ---" markers.
func JoinPages(pages []PageContent) string {
	var b strings.Builder
	for i, p := range pages {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "--- Page %d ---\n%s", p.Number, strings.TrimSpace(p.Text))
	}
	return b.String()
}

const snippetRadius = 80

// SearchPages does a case-insensitive substring search and returns one
// result per matching page with a snippet around the first hit.
func SearchPages(pages []PageContent, query string, maxResults int) []SearchResult {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	if maxResults <= 0 {
		maxResults = 20
	}
	needle := lowerRunes([]rune(query))

	var results []SearchResult
	for _, p := range pages {
		text := []rune(p.Text)
		lower := lowerRunes(text)
		count := strings.Count(string(lower), string(needle))
		if count == 0 {
			continue
		}
		pos := runeIndex(lower, needle)
		from := max(0, pos-snippetRadius)
		to := min(len(text), pos+len(needle)+snippetRadius)
		snippet := strings.TrimSpace(string(text[from:to]))
		if from > 0 {
			snippet = "..." + snippet
		}
		if to < len(text) {
			snippet += "..."
		}
		results = append(results, SearchResult{Page: p.Number, Snippet: snippet, MatchCount: count})
		if len(results) >= maxResults {
			break
		}
	}
	return results
}

func RenderMarkdown(info Info, pages []PageContent) string {
	title := info.Title
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(info.Path), filepath.Ext(info.Path))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)
	if info.Author != "" {
		fmt.Fprintf(&b, "**Author**: %s\n", info.Author)
	}
	if info.Subject != "" {
		fmt.Fprintf(&b, "**Subject**: %s\n", info.Subject)
	}
	fmt.Fprintf(&b, "**Pages**: %d\n\n---\n", info.PageCount)
	for _, p := range pages {
		fmt.Fprintf(&b, "\n## Page %d\n\n%s\n", p.Number, strings.TrimSpace(p.Text))
	}
	return b.String()
}

func lowerRunes(in []rune) []rune {
	out := make([]rune, len(in))
	for i, r := range in {
		out[i] = unicode.ToLower(r)
	}
	return out
}

func runeIndex(haystack, needle []rune) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

func countImages(p pdf.Page) int {
	xobjects := p.Resources().Key("XObject")
	n := 0
	for _, name := range xobjects.Keys() {
		if xobjects.Key(name).Key("Subtype").Name() == "Image" {
			n++
		}
	}
	return n
}
