package ports

import (
	"context"

	"github.com/kirillkom/knowledge-pipeline/internal/core/domain"
)

// IntakeStore owns the raw/processing/completed/failed directory layout.
type IntakeStore interface {
	Check(ctx context.Context) error
	List(ctx context.Context, state domain.IntakeState) ([]domain.IntakeFile, error)
	Move(ctx context.Context, file domain.IntakeFile, to domain.IntakeState) (domain.IntakeFile, error)
}

// Converter turns one intake file into plain text.
type Converter interface {
	Convert(ctx context.Context, file domain.IntakeFile) (domain.Extraction, error)
}

// Transcriber is the external speech-to-text collaborator.
type Transcriber interface {
	Transcribe(ctx context.Context, path string) (string, error)
}

// VisionDescriber is the external image description collaborator.
type VisionDescriber interface {
	DescribeImage(ctx context.Context, mimeType string, data []byte) (string, error)
}

// ContentAnalyzer wraps the hosted LLM passes.
type ContentAnalyzer interface {
	Classify(ctx context.Context, text string) (domain.Classification, error)
	Structure(ctx context.Context, text, category, subCategory string) (domain.Structure, error)
	Verify(ctx context.Context, text string, result domain.AnalysisResult) (domain.Verification, error)
	CleanupTranscript(ctx context.Context, text string) (string, error)
}

// SequenceAllocator hands out per-prefix record sequence numbers.
type SequenceAllocator interface {
	Next(ctx context.Context, prefix string) (int, error)
}

// RecordStore persists knowledge records and the review staging area.
type RecordStore interface {
	Check(ctx context.Context) error
	Stage(ctx context.Context, record domain.KnowledgeRecord) (string, error)
	File(ctx context.Context, stagedPath string, record domain.KnowledgeRecord) (string, error)
	List(ctx context.Context) ([]domain.KnowledgeRecord, error)
	Get(ctx context.Context, id string) (*domain.KnowledgeRecord, error)
	UpdateStatus(ctx context.Context, id string, status domain.RecordStatus) (*domain.KnowledgeRecord, error)
	WriteIndex(ctx context.Context, records []domain.KnowledgeRecord) (string, error)
}

// ReportStore writes and reads run reports.
type ReportStore interface {
	Save(ctx context.Context, report *domain.RunReport) (string, error)
	Load(ctx context.Context, runID string) (*domain.RunReport, error)
	Latest(ctx context.Context) (*domain.RunReport, error)
	ListRunIDs(ctx context.Context) ([]string, error)
}

// ReportRepository mirrors reports into a database.
type ReportRepository interface {
	SaveReport(ctx context.Context, report *domain.RunReport) error
}

// EventPublisher announces filed records to downstream consumers.
type EventPublisher interface {
	PublishRecordFiled(ctx context.Context, record domain.KnowledgeRecord) error
}

// PipelineMetrics records per-file outcomes.
type PipelineMetrics interface {
	StartFile(kind domain.FileKind)
	FinishFile(kind domain.FileKind, stage string, err error, seconds float64)
	ObserveRun(report *domain.RunReport)
}

// Chunker splits long text into pieces a single LLM call can handle.
type Chunker interface {
	Split(text string) []string
}
