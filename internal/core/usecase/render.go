package usecase

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/kirillkom/knowledge-pipeline/internal/core/domain"
	"github.com/kirillkom/knowledge-pipeline/internal/core/ports"
)

type RenderUseCase struct {
	sequences ports.SequenceAllocator
	records   ports.RecordStore
	now       func() time.Time
}

func NewRenderUseCase(sequences ports.SequenceAllocator, records ports.RecordStore) *RenderUseCase {
	return &RenderUseCase{
		sequences: sequences,
		records:   records,
		now:       time.Now,
	}
}

// Render allocates the record id and stages the Markdown in the review area.
// The id month and generated_at come from runStarted so that every record of
// one run shares them; a zero runStarted falls back to the clock.
// The returned record carries the staged path.
func (uc *RenderUseCase) Render(ctx context.Context, file domain.IntakeFile, result domain.AnalysisResult, runStarted time.Time) (domain.KnowledgeRecord, error) {
	now := runStarted
	if now.IsZero() {
		now = uc.now()
	}
	prefix := result.IDPrefix
	if prefix == "" {
		prefix = domain.IDPrefixFor(result.SourceType)
	}
	seq, err := uc.sequences.Next(ctx, prefix)
	if err != nil {
		return domain.KnowledgeRecord{}, fmt.Errorf("allocate sequence: %w", err)
	}

	record := BuildRecord(domain.FormatRecordID(prefix, now, seq), file.Name, result, now)
	staged, err := uc.records.Stage(ctx, record)
	if err != nil {
		return domain.KnowledgeRecord{}, fmt.Errorf("stage record: %w", err)
	}
	record.Path = staged
	return record, nil
}

// BuildRecord assembles front matter and body for an analysis result.
func BuildRecord(id, sourceFile string, result domain.AnalysisResult, now time.Time) domain.KnowledgeRecord {
	title := result.Title
	if title == "" {
		title = stem(sourceFile)
	}
	tags := result.Tags
	if tags == nil {
		tags = []string{}
	}
	return domain.KnowledgeRecord{
		FrontMatter: domain.FrontMatter{
			ID:           id,
			Title:        title,
			Category:     result.Category,
			SubCategory:  result.SubCategory,
			Source:       InferSourceName(sourceFile),
			Priority:     result.Priority,
			Tags:         tags,
			Status:       domain.RecordDraft,
			Confidence:   round2(result.Confidence),
			QualityScore: round2(result.QualityScore),
			GeneratedAt:  now.UTC().Truncate(time.Second),
			SourceFile:   sourceFile,
			NeedsReview:  result.NeedsReview,
		},
		Body: RenderBody(title, result),
	}
}

// RenderBody lays out title, summary, sections, Q&A and image descriptions.
func RenderBody(title string, result domain.AnalysisResult) string {
	var b strings.Builder
	b.WriteString("# " + title + "\n\n")
	if result.Summary != "" {
		b.WriteString("> " + result.Summary + "\n\n")
	}
	for _, s := range result.Sections {
		if s.Heading != "" {
			b.WriteString("## " + s.Heading + "\n\n")
		}
		if s.Content != "" {
			b.WriteString(strings.TrimSpace(s.Content) + "\n\n")
		}
	}

	var qa []domain.QAPair
	for _, p := range result.QAPairs {
		if strings.TrimSpace(p.Question) != "" && strings.TrimSpace(p.Answer) != "" {
			qa = append(qa, p)
		}
	}
	if len(qa) > 0 {
		b.WriteString("---\n\n## Q&A\n\n")
		for _, p := range qa {
			b.WriteString("### Q: " + strings.TrimSpace(p.Question) + "\n\n")
			b.WriteString(strings.TrimSpace(p.Answer) + "\n\n")
		}
	}

	if len(result.ImageDescriptions) > 0 {
		b.WriteString("---\n\n## Images\n\n")
		for _, d := range result.ImageDescriptions {
			b.WriteString(strings.TrimSpace(d) + "\n\n")
		}
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

var seminarName = regexp.MustCompile(`(?i)seminar.*?vol\.?(\d+).*?(\d{4})`)

// InferSourceName turns recognisable file names into a readable source,
// e.g. seminar_vol5_2024.mp4 becomes "Seminar Vol.5 (2024)".
func InferSourceName(fileName string) string {
	if m := seminarName.FindStringSubmatch(stem(fileName)); m != nil {
		return fmt.Sprintf("Seminar Vol.%s (%s)", m[1], m[2])
	}
	return fileName
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
