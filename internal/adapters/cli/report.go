package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kirillkom/knowledge-pipeline/internal/core/domain"
	"github.com/kirillkom/knowledge-pipeline/internal/core/usecase"
)

func newReportCommand(c *cliContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Inspect stored run reports",
	}

	var asJSON bool
	show := &cobra.Command{
		Use:   "show [latest|RUN_ID]",
		Short: "Print a run report",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			which := usecase.LatestReport
			if len(args) == 1 {
				which = args[0]
			}
			app, err := c.app(nil)
			if err != nil {
				return err
			}
			defer app.Close()

			report, err := app.ReportUC.Show(cmd.Context(), which)
			if errors.Is(err, domain.ErrRecordNotFound) {
				ids, _ := app.ReportUC.List(cmd.Context())
				return fmt.Errorf("report %q not found (available: %v)", which, lastN(ids, 10))
			}
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			printSummary(out, report, app.Reports.Path(report.RunID))
			return nil
		},
	}
	show.Flags().BoolVar(&asJSON, "json", false, "print the raw JSON report")

	list := &cobra.Command{
		Use:   "list",
		Short: "List run ids, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := c.app(nil)
			if err != nil {
				return err
			}
			defer app.Close()

			ids, err := app.ReportUC.List(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(ids) == 0 {
				fmt.Fprintln(out, "No reports found.")
				return nil
			}
			for _, id := range ids {
				fmt.Fprintln(out, id)
			}
			return nil
		},
	}

	cmd.AddCommand(show, list)
	return cmd
}

func lastN(ids []string, n int) []string {
	if len(ids) <= n {
		return ids
	}
	return ids[len(ids)-n:]
}
