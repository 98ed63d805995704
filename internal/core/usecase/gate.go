package usecase

import (
	"context"

	"golang.org/x/sync/semaphore"

	"github.com/kirillkom/knowledge-pipeline/internal/core/domain"
)

// Gate bounds the number of external calls (conversion tools and LLM
// requests) in flight across the whole run.
type Gate struct {
	sem *semaphore.Weighted
}

func NewGate(limit int) *Gate {
	if limit <= 0 {
		limit = 5
	}
	return &Gate{sem: semaphore.NewWeighted(int64(limit))}
}

func (g *Gate) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return domain.WrapError(domain.ErrCanceled, "acquire call slot", err)
	}
	defer g.sem.Release(1)
	return fn(ctx)
}
