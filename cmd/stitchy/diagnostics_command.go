package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDiagnosticsCommand(ctx *commandContext) *cobra.Command {
	var fix bool

	cmd := &cobra.Command{
		Use:   "diagnostics",
		Short: "Check the stitch engine and storage directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			report, err := app.RefreshDiagnostics()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if fix {
				for _, item := range report.Failed() {
					if !item.Fixable {
						continue
					}
					fixed, fixErr := app.InstallOrFixDiagnostic(item.ID)
					if fixErr != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "fix %s: %v\n", item.ID, fixErr)
						continue
					}
					report = fixed
				}
			}

			rows := make([][]string, 0, len(report.Items))
			for _, item := range report.Items {
				rows = append(rows, []string{item.Name, string(item.Status), item.Message, item.Hint})
			}
			fmt.Fprintln(out, renderTable([]string{"Check", "Status", "Details", "Hint"}, rows, nil))

			if failed := len(report.Failed()); failed > 0 {
				return fmt.Errorf("%d diagnostic check(s) failed", failed)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&fix, "fix", false, "Try to fix failed checks that can be fixed automatically")
	return cmd
}
