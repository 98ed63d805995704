package knowledgefs

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/knowledge-pipeline/internal/core/domain"
)

const delimiter = "---"

// Marshal renders front matter and body as a Markdown document.
func Marshal(record domain.KnowledgeRecord) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(delimiter + "\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(record.FrontMatter); err != nil {
		return nil, fmt.Errorf("encode front matter: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode front matter: %w", err)
	}
	buf.WriteString(delimiter + "\n\n")
	buf.WriteString(strings.TrimRight(record.Body, "\n"))
	buf.WriteString("\n")
	return buf.Bytes(), nil
}

// Parse splits a Markdown document into front matter and body. The legacy
// "raw" status is normalized to draft.
func Parse(content []byte) (domain.KnowledgeRecord, error) {
	text := strings.ReplaceAll(string(content), "\r\n", "\n")
	if !strings.HasPrefix(text, delimiter+"\n") {
		return domain.KnowledgeRecord{}, fmt.Errorf("missing front matter")
	}
	rest := text[len(delimiter)+1:]
	end := strings.Index(rest, "\n"+delimiter)
	if end < 0 {
		return domain.KnowledgeRecord{}, fmt.Errorf("unterminated front matter")
	}

	var fm domain.FrontMatter
	if err := yaml.Unmarshal([]byte(rest[:end]), &fm); err != nil {
		return domain.KnowledgeRecord{}, fmt.Errorf("decode front matter: %w", err)
	}
	if fm.Status != "" {
		status, err := domain.ParseRecordStatus(string(fm.Status))
		if err != nil {
			return domain.KnowledgeRecord{}, err
		}
		fm.Status = status
	}

	body := rest[end+1+len(delimiter):]
	body = strings.TrimPrefix(body, "\n")
	return domain.KnowledgeRecord{
		FrontMatter: fm,
		Body:        strings.TrimLeft(body, "\n"),
	}, nil
}
