package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type RecordStatus string

const (
	RecordDraft      RecordStatus = "draft"
	RecordRefined    RecordStatus = "refined"
	RecordIntegrated RecordStatus = "integrated"
)

// ParseRecordStatus accepts the legacy "raw" spelling for drafts.
func ParseRecordStatus(raw string) (RecordStatus, error) {
	switch s := strings.ToLower(strings.TrimSpace(raw)); s {
	case "draft", "raw":
		return RecordDraft, nil
	case "refined":
		return RecordRefined, nil
	case "integrated":
		return RecordIntegrated, nil
	default:
		return "", WrapError(ErrInvalidInput, "parse record status", fmt.Errorf("unknown status %q", raw))
	}
}

// Next returns the only status a record may move to from s.
func (s RecordStatus) Next() (RecordStatus, error) {
	switch s {
	case RecordDraft:
		return RecordRefined, nil
	case RecordRefined:
		return RecordIntegrated, nil
	default:
		return "", WrapError(ErrInvalidTransition, "advance status", fmt.Errorf("%q is terminal", s))
	}
}

func (s RecordStatus) CanTransitionTo(target RecordStatus) bool {
	next, err := s.Next()
	return err == nil && next == target
}

// FrontMatter is the YAML header of a knowledge record.
type FrontMatter struct {
	ID           string       `yaml:"id" json:"id"`
	Title        string       `yaml:"title" json:"title"`
	Category     string       `yaml:"category" json:"category"`
	SubCategory  string       `yaml:"sub_category" json:"sub_category"`
	Source       string       `yaml:"source" json:"source"`
	Priority     string       `yaml:"priority" json:"priority"`
	Tags         []string     `yaml:"tags" json:"tags"`
	Status       RecordStatus `yaml:"status" json:"status"`
	Confidence   float64      `yaml:"confidence" json:"confidence"`
	QualityScore float64      `yaml:"quality_score" json:"quality_score"`
	GeneratedAt  time.Time    `yaml:"generated_at" json:"generated_at"`
	SourceFile   string       `yaml:"source_file" json:"source_file"`
	NeedsReview  bool         `yaml:"needs_review" json:"needs_review"`
}

type KnowledgeRecord struct {
	FrontMatter
	Body string `json:"-"`
	Path string `json:"path"`
}

// FormatRecordID renders the identifier for a prefix, month and sequence.
func FormatRecordID(prefix string, at time.Time, seq int) string {
	ym := at.Format("200601")
	switch prefix {
	case "QA":
		return fmt.Sprintf("QA_%03d", seq)
	case "VID", "AUD":
		return fmt.Sprintf("%s_%s_%02d_01", prefix, ym, seq)
	case "BK":
		return fmt.Sprintf("BK_%03d_P001", seq)
	default:
		return fmt.Sprintf("%s_%s_%03d", prefix, ym, seq)
	}
}

// ParseRecordID extracts the prefix and sequence number from an identifier
// produced by FormatRecordID.
func ParseRecordID(id string) (string, int, bool) {
	parts := strings.Split(strings.TrimSpace(id), "_")
	if len(parts) < 2 || parts[0] == "" {
		return "", 0, false
	}
	prefix := parts[0]
	idx := 2
	switch prefix {
	case "QA", "BK":
		idx = 1
	}
	if idx >= len(parts) {
		return "", 0, false
	}
	seq, err := strconv.Atoi(parts[idx])
	if err != nil || seq < 0 {
		return "", 0, false
	}
	return prefix, seq, true
}

// BodyLength counts the runes of the body without surrounding whitespace.
func (r KnowledgeRecord) BodyLength() int {
	return len([]rune(strings.TrimSpace(r.Body)))
}
