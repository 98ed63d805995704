package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/agnivade/levenshtein"

	"github.com/kirillkom/knowledge-pipeline/internal/core/domain"
	"github.com/kirillkom/knowledge-pipeline/internal/core/ports"
)

type ValidateOptions struct {
	MinContentChars    int
	DuplicateThreshold float64
}

// ValidateUseCase checks staged records and files the ones that pass. Titles
// of existing records are loaded once and extended as records are filed, so
// two files of the same run cannot both pass as originals.
type ValidateUseCase struct {
	records  ports.RecordStore
	taxonomy domain.Taxonomy
	opts     ValidateOptions

	mu     sync.Mutex
	loaded bool
	titles []titleEntry
}

type titleEntry struct {
	id    string
	title string
}

func NewValidateUseCase(records ports.RecordStore, taxonomy domain.Taxonomy, opts ValidateOptions) *ValidateUseCase {
	if opts.MinContentChars <= 0 {
		opts.MinContentChars = 50
	}
	if opts.DuplicateThreshold <= 0 {
		opts.DuplicateThreshold = 0.8
	}
	return &ValidateUseCase{
		records:  records,
		taxonomy: taxonomy,
		opts:     opts,
	}
}

// Check returns every front matter and content problem of record.
func (uc *ValidateUseCase) Check(record domain.KnowledgeRecord) []string {
	var problems []string
	required := []struct {
		name  string
		value string
	}{
		{"id", record.ID},
		{"title", record.Title},
		{"category", record.Category},
		{"sub_category", record.SubCategory},
		{"source", record.Source},
		{"priority", record.Priority},
		{"status", string(record.Status)},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			problems = append(problems, "missing "+f.name)
		}
	}
	if record.Priority != "" && !uc.taxonomy.HasPriority(record.Priority) {
		problems = append(problems, fmt.Sprintf("invalid priority %q", record.Priority))
	}
	if n := record.BodyLength(); n < uc.opts.MinContentChars {
		problems = append(problems, fmt.Sprintf("content too short (%d < %d characters)", n, uc.opts.MinContentChars))
	}
	return problems
}

// ValidateAndFile moves the staged record into the knowledge store when it
// passes every check. On failure the staged file is left where it is.
func (uc *ValidateUseCase) ValidateAndFile(ctx context.Context, record domain.KnowledgeRecord) (domain.KnowledgeRecord, error) {
	if problems := uc.Check(record); len(problems) > 0 {
		return record, domain.WrapError(domain.ErrValidation, "validate record", errors.New(strings.Join(problems, "; ")))
	}

	uc.mu.Lock()
	defer uc.mu.Unlock()

	if err := uc.loadTitles(ctx); err != nil {
		return record, err
	}
	if match, score := uc.closestTitle(record.Title); score >= uc.opts.DuplicateThreshold {
		return record, domain.WrapError(domain.ErrDuplicate, "validate record",
			fmt.Errorf("title %q matches %s (similarity %.2f)", record.Title, match.id, score))
	}

	path, err := uc.records.File(ctx, record.Path, record)
	if err != nil {
		return record, fmt.Errorf("file record: %w", err)
	}
	record.Path = path
	uc.titles = append(uc.titles, titleEntry{id: record.ID, title: normalizeTitle(record.Title)})
	return record, nil
}

func (uc *ValidateUseCase) loadTitles(ctx context.Context) error {
	if uc.loaded {
		return nil
	}
	existing, err := uc.records.List(ctx)
	if err != nil {
		return fmt.Errorf("load existing titles: %w", err)
	}
	for _, r := range existing {
		uc.titles = append(uc.titles, titleEntry{id: r.ID, title: normalizeTitle(r.Title)})
	}
	uc.loaded = true
	return nil
}

func (uc *ValidateUseCase) closestTitle(title string) (titleEntry, float64) {
	norm := normalizeTitle(title)
	var best titleEntry
	bestScore := 0.0
	for _, t := range uc.titles {
		if s := TitleSimilarity(norm, t.title); s > bestScore {
			best, bestScore = t, s
		}
	}
	return best, bestScore
}

// TitleSimilarity is 1 minus the Levenshtein distance over the longer
// title's rune length.
func TitleSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	longest := len([]rune(a))
	if n := len([]rune(b)); n > longest {
		longest = n
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

func normalizeTitle(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), " ")
}
