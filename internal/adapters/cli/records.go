package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kirillkom/knowledge-pipeline/internal/core/domain"
	"github.com/kirillkom/knowledge-pipeline/internal/core/ports"
)

func newRecordsCommand(c *cliContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "records",
		Short: "Browse and maintain filed knowledge records",
	}
	cmd.AddCommand(
		newRecordsListCommand(c),
		newRecordsSearchCommand(c),
		newRecordsPromoteCommand(c),
		newRecordsIndexCommand(c),
		newRecordsStatsCommand(c),
	)
	return cmd
}

func newRecordsListCommand(c *cliContext) *cobra.Command {
	var category, status, tag string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List records, optionally filtered",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter := ports.RecordFilter{Category: category, Tag: tag}
			if status != "" {
				st, err := domain.ParseRecordStatus(status)
				if err != nil {
					return err
				}
				filter.Status = st
			}
			app, err := c.app(nil)
			if err != nil {
				return err
			}
			defer app.Close()

			records, err := app.CatalogUC.List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, "No records found.")
				return nil
			}
			printRecords(out, records)
			fmt.Fprintf(out, "\nTotal: %d\n", len(records))
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "filter by category")
	cmd.Flags().StringVar(&status, "status", "", "filter by status: draft, refined or integrated")
	cmd.Flags().StringVar(&tag, "tag", "", "filter by tag")
	return cmd
}

func newRecordsSearchCommand(c *cliContext) *cobra.Command {
	return &cobra.Command{
		Use:   "search QUERY",
		Short: "Search ids, titles, tags and bodies",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			app, err := c.app(nil)
			if err != nil {
				return err
			}
			defer app.Close()

			records, err := app.CatalogUC.Search(cmd.Context(), query)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintf(out, "No records match %q.\n", query)
				return nil
			}
			fmt.Fprintf(out, "%d record(s) match %q:\n\n", len(records), query)
			printRecords(out, records)
			return nil
		},
	}
}

func newRecordsPromoteCommand(c *cliContext) *cobra.Command {
	return &cobra.Command{
		Use:   "promote ID",
		Short: "Advance a record from draft to refined, or refined to integrated",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := c.app(nil)
			if err != nil {
				return err
			}
			defer app.Close()

			rec, err := app.CatalogUC.Promote(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", rec.ID, rec.Status)
			return nil
		},
	}
}

func newRecordsIndexCommand(c *cliContext) *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Regenerate knowledge/INDEX.md",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := c.app(nil)
			if err != nil {
				return err
			}
			defer app.Close()

			path, err := app.CatalogUC.RebuildIndex(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Index written: %s\n", path)
			return nil
		},
	}
}

func newRecordsStatsCommand(c *cliContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count records by category, status and directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := c.app(nil)
			if err != nil {
				return err
			}
			defer app.Close()

			stats, err := app.CatalogUC.Stats(cmd.Context())
			if err != nil {
				return err
			}
			printStats(cmd.OutOrStdout(), stats)
			return nil
		},
	}
}

func printRecords(w io.Writer, records []domain.KnowledgeRecord) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tCATEGORY\tSTATUS\tPATH")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s/%s\t%s\t%s\n", r.ID, r.Title, r.Category, r.SubCategory, r.Status, r.Path)
	}
	_ = tw.Flush()
}

func printStats(w io.Writer, stats ports.CatalogStats) {
	fmt.Fprintf(w, "Total records: %d\n", stats.Total)
	printCounts(w, "By category", stats.ByCategory)
	byStatus := make(map[string]int, len(stats.ByStatus))
	for k, v := range stats.ByStatus {
		byStatus[string(k)] = v
	}
	printCounts(w, "By status", byStatus)
	printCounts(w, "By directory", stats.ByDir)
}

func printCounts(w io.Writer, title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprintf(w, "\n%s:\n", title)
	for _, k := range keys {
		fmt.Fprintf(w, "  %s: %d\n", k, counts[k])
	}
}
