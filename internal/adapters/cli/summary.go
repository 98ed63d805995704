package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/kirillkom/knowledge-pipeline/internal/core/domain"
)

var rule = strings.Repeat("=", 60)

func printSummary(w io.Writer, r *domain.RunReport, reportPath string) {
	fmt.Fprintf(w, "\n%s\n  Knowledge pipeline run [%s]\n%s\n", rule, r.RunID, rule)
	fmt.Fprintf(w, "  Input files:     %d\n", r.InputFiles)
	fmt.Fprintf(w, "  Succeeded:       %d\n", r.Results.Success)
	fmt.Fprintf(w, "  Failed:          %d\n", r.Results.Failed)
	fmt.Fprintf(w, "  Duplicates:      %d\n", r.Results.Duplicates)
	fmt.Fprintf(w, "  Manual review:   %d\n", r.Results.ManualReview)
	fmt.Fprintf(w, "  Unsupported:     %d\n", r.Results.Skipped)
	if !r.CompletedAt.IsZero() {
		fmt.Fprintf(w, "  Duration:        %s\n", r.CompletedAt.Sub(r.StartedAt).Round(time.Millisecond))
	}
	fmt.Fprintln(w, strings.Repeat("-", 60))

	if len(r.FilesCreated) > 0 {
		fmt.Fprintln(w, "\n  [Filed]")
		for _, f := range r.FilesCreated {
			fmt.Fprintf(w, "    %s  (%s  conf=%.2f)\n", f.Output, f.Category, f.Confidence)
		}
	}
	if len(r.ManualReview) > 0 {
		fmt.Fprintln(w, "\n  [Manual review]")
		for _, m := range r.ManualReview {
			fmt.Fprintf(w, "    %s\n      reason: %s\n", m.Output, m.Reason)
		}
	}
	if len(r.Errors) > 0 {
		fmt.Fprintln(w, "\n  [Failed]")
		for _, e := range r.Errors {
			fmt.Fprintf(w, "    %s [%s/%s]: %s\n", e.Source, e.Stage, e.Kind, e.Error)
		}
	}
	if len(r.Unsupported) > 0 {
		fmt.Fprintln(w, "\n  [Unsupported, left in raw/]")
		for _, name := range r.Unsupported {
			fmt.Fprintf(w, "    %s\n", name)
		}
	}
	if reportPath != "" {
		fmt.Fprintf(w, "\n  Report: %s\n", reportPath)
	}
	fmt.Fprintf(w, "%s\n\n", rule)
}

func printManifest(w io.Writer, r *domain.RunReport) {
	fmt.Fprintf(w, "Dry run: %d file(s) would be processed\n", r.InputFiles)
	for _, o := range r.Outcomes {
		fmt.Fprintf(w, "  %s\n", o.Source)
	}
	if len(r.Unsupported) > 0 {
		fmt.Fprintf(w, "Unsupported (%d):\n", len(r.Unsupported))
		for _, name := range r.Unsupported {
			fmt.Fprintf(w, "  %s\n", name)
		}
	}
}
