package domain

import "time"

// FileOutcome is one per-file entry of the run report.
type FileOutcome struct {
	Source       string      `json:"source"`
	State        IntakeState `json:"state"`
	Stage        string      `json:"stage"`
	Output       string      `json:"output,omitempty"`
	RecordID     string      `json:"entry_id,omitempty"`
	Category     string      `json:"category,omitempty"`
	SubCategory  string      `json:"sub_category,omitempty"`
	Priority     string      `json:"priority,omitempty"`
	Confidence   float64     `json:"confidence,omitempty"`
	QualityScore float64     `json:"quality_score,omitempty"`
	DurationMS   float64     `json:"duration_ms"`
}

type ErrorEntry struct {
	Source  string `json:"source"`
	Stage   string `json:"stage"`
	Kind    string `json:"kind"`
	Error   string `json:"error"`
	MovedTo string `json:"moved_to,omitempty"`
	Review  string `json:"review_file,omitempty"`
}

type ReviewEntry struct {
	Source     string  `json:"source"`
	Output     string  `json:"output"`
	RecordID   string  `json:"entry_id"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

type ResultCounts struct {
	Success      int `json:"success"`
	Failed       int `json:"failed"`
	Skipped      int `json:"skipped"`
	Duplicates   int `json:"skipped_duplicate"`
	ManualReview int `json:"manual_review"`
}

type ReportStats struct {
	ByCategory map[string]int `json:"by_category"`
	ByPrefix   map[string]int `json:"by_type"`
}

// RunReport aggregates one pipeline invocation. It is written once and never
// changed afterwards.
type RunReport struct {
	RunID        string        `json:"run_id"`
	StartedAt    time.Time     `json:"started_at"`
	CompletedAt  time.Time     `json:"completed_at"`
	DryRun       bool          `json:"dry_run,omitempty"`
	InputFiles   int           `json:"input_files"`
	Results      ResultCounts  `json:"results"`
	FilesCreated []FileOutcome `json:"files_created"`
	Outcomes     []FileOutcome `json:"outcomes"`
	Errors       []ErrorEntry  `json:"errors"`
	ManualReview []ReviewEntry `json:"manual_review"`
	Unsupported  []string      `json:"unsupported,omitempty"`
	Stats        ReportStats   `json:"stats"`
}

// NewRunReport stamps a report with a timestamp-based run id.
func NewRunReport(now time.Time) *RunReport {
	now = now.UTC()
	return &RunReport{
		RunID:        now.Format("20060102_150405"),
		StartedAt:    now,
		FilesCreated: []FileOutcome{},
		Outcomes:     []FileOutcome{},
		Errors:       []ErrorEntry{},
		ManualReview: []ReviewEntry{},
		Stats: ReportStats{
			ByCategory: map[string]int{},
			ByPrefix:   map[string]int{},
		},
	}
}

// Finalize recomputes counts and statistics from the collected entries.
func (r *RunReport) Finalize(now time.Time) {
	r.CompletedAt = now.UTC()
	r.Results = ResultCounts{
		Success:      len(r.FilesCreated),
		Failed:       len(r.Errors),
		Skipped:      len(r.Unsupported),
		ManualReview: len(r.ManualReview),
	}
	for _, e := range r.Errors {
		if e.Kind == "duplicate" {
			r.Results.Duplicates++
		}
	}
	r.Stats = ReportStats{ByCategory: map[string]int{}, ByPrefix: map[string]int{}}
	for _, f := range r.FilesCreated {
		r.Stats.ByCategory[f.Category]++
		if prefix, _, ok := ParseRecordID(f.RecordID); ok {
			r.Stats.ByPrefix[prefix]++
		} else {
			r.Stats.ByPrefix["OTHER"]++
		}
	}
}
