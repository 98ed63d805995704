package usecase

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kirillkom/knowledge-pipeline/internal/core/domain"
	"github.com/kirillkom/knowledge-pipeline/internal/core/ports"
)

// CatalogUseCase is the maintenance surface over filed records.
type CatalogUseCase struct {
	records ports.RecordStore
}

func NewCatalogUseCase(records ports.RecordStore) *CatalogUseCase {
	return &CatalogUseCase{records: records}
}

func (uc *CatalogUseCase) List(ctx context.Context, filter ports.RecordFilter) ([]domain.KnowledgeRecord, error) {
	all, err := uc.records.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.KnowledgeRecord, 0, len(all))
	for _, r := range all {
		if filter.Category != "" && r.Category != filter.Category {
			continue
		}
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		if filter.Tag != "" && !containsString(r.Tags, filter.Tag) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// Search matches query case-insensitively against id, title, tags and body.
func (uc *CatalogUseCase) Search(ctx context.Context, query string) ([]domain.KnowledgeRecord, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "search records", fmt.Errorf("empty query"))
	}
	all, err := uc.records.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []domain.KnowledgeRecord
	for _, r := range all {
		haystack := strings.ToLower(strings.Join([]string{
			r.ID, r.Title, r.Category, r.SubCategory, strings.Join(r.Tags, " "), r.Body,
		}, "\n"))
		if strings.Contains(haystack, q) {
			out = append(out, r)
		}
	}
	return out, nil
}

// Promote moves a record one step along draft, refined, integrated.
func (uc *CatalogUseCase) Promote(ctx context.Context, id string) (*domain.KnowledgeRecord, error) {
	rec, err := uc.records.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	next, err := rec.Status.Next()
	if err != nil {
		return nil, err
	}
	return uc.records.UpdateStatus(ctx, id, next)
}

func (uc *CatalogUseCase) RebuildIndex(ctx context.Context) (string, error) {
	all, err := uc.records.List(ctx)
	if err != nil {
		return "", err
	}
	return uc.records.WriteIndex(ctx, all)
}

func (uc *CatalogUseCase) Stats(ctx context.Context) (ports.CatalogStats, error) {
	all, err := uc.records.List(ctx)
	if err != nil {
		return ports.CatalogStats{}, err
	}
	stats := ports.CatalogStats{
		Total:      len(all),
		ByCategory: map[string]int{},
		ByStatus:   map[domain.RecordStatus]int{},
		ByDir:      map[string]int{},
	}
	for _, r := range all {
		stats.ByCategory[r.Category]++
		stats.ByStatus[r.Status]++
		stats.ByDir[filepath.Base(filepath.Dir(r.Path))]++
	}
	return stats, nil
}

func containsString(values []string, want string) bool {
	for _, v := range values {
		if strings.EqualFold(v, want) {
			return true
		}
	}
	return false
}
