package ports

import (
	"context"
	"time"

	"github.com/kirillkom/knowledge-pipeline/internal/core/domain"
)

// RunOptions tunes a single pipeline invocation.
type RunOptions struct {
	DryRun     bool
	TypeFilter domain.TypeFilter
	Verify     bool
	// StartedAt fixes the run id; zero means now.
	StartedAt time.Time
}

// PipelineRunner is the inbound contract for a batch run.
type PipelineRunner interface {
	Run(ctx context.Context, opts RunOptions) (*domain.RunReport, error)
}

// IntakeScanner lists and classifies raw files without side effects.
type IntakeScanner interface {
	Scan(ctx context.Context, filter domain.TypeFilter) (domain.Manifest, error)
}

// ReportReader serves stored run reports.
type ReportReader interface {
	Show(ctx context.Context, which string) (*domain.RunReport, error)
	List(ctx context.Context) ([]string, error)
}

// RecordCatalog is the read/maintenance surface of the knowledge store.
type RecordCatalog interface {
	List(ctx context.Context, filter RecordFilter) ([]domain.KnowledgeRecord, error)
	Search(ctx context.Context, query string) ([]domain.KnowledgeRecord, error)
	Promote(ctx context.Context, id string) (*domain.KnowledgeRecord, error)
	RebuildIndex(ctx context.Context) (string, error)
	Stats(ctx context.Context) (CatalogStats, error)
}

type RecordFilter struct {
	Category string
	Status   domain.RecordStatus
	Tag      string
}

type CatalogStats struct {
	Total      int                         `json:"total"`
	ByCategory map[string]int              `json:"by_category"`
	ByStatus   map[domain.RecordStatus]int `json:"by_status"`
	ByDir      map[string]int              `json:"by_dir"`
}
