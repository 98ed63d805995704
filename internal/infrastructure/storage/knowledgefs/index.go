package knowledgefs

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kirillkom/knowledge-pipeline/internal/core/domain"
)

// WriteIndex regenerates knowledge/INDEX.md, one table per subdirectory.
func (s *RecordStore) WriteIndex(_ context.Context, records []domain.KnowledgeRecord) (string, error) {
	byDir := make(map[string][]domain.KnowledgeRecord)
	for _, r := range records {
		dir := filepath.Base(filepath.Dir(r.Path))
		if r.Path == "" {
			dir = "articles"
		}
		byDir[dir] = append(byDir[dir], r)
	}
	dirs := make([]string, 0, len(byDir))
	for d := range byDir {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)

	var b strings.Builder
	fmt.Fprintf(&b, "# Knowledge Index\n\n%d records\n", len(records))
	for _, d := range dirs {
		fmt.Fprintf(&b, "\n## %s (%d)\n\n", d, len(byDir[d]))
		b.WriteString("| ID | Title | Category | Sub-category | Priority | Status |\n")
		b.WriteString("| --- | --- | --- | --- | --- | --- |\n")
		for _, r := range byDir[d] {
			fmt.Fprintf(&b, "| [%s](%s/%s.md) | %s | %s | %s | %s | %s |\n",
				r.ID, d, r.ID, cell(r.Title), cell(r.Category), cell(r.SubCategory), r.Priority, r.Status)
		}
	}

	path := filepath.Join(s.root, IndexFile)
	if err := writeFileAtomic(path, []byte(b.String())); err != nil {
		return "", domain.WrapError(domain.ErrEnvironment, "write index", err)
	}
	return path, nil
}

func cell(v string) string {
	return strings.ReplaceAll(strings.ReplaceAll(v, "|", `\|`), "\n", " ")
}
