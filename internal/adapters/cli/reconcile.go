package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newReconcileCommand(c *cliContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Move files left in intake/processing/ by an aborted run back to raw/",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := c.app(nil)
			if err != nil {
				return err
			}
			defer app.Close()

			moved, err := app.ReconcileUC.Reconcile(cmd.Context())
			out := cmd.OutOrStdout()
			for _, f := range moved {
				fmt.Fprintf(out, "  %s -> %s\n", f.Name, f.Path)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Reconciled %d file(s).\n", len(moved))
			return nil
		},
	}
}
