package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bobmcallan/tamreport/internal/app"
	"github.com/bobmcallan/tamreport/internal/services/reconcile"
)

func newReconcileCmd(flags *rootFlags) *cobra.Command {
	var (
		reportPath string
		dryRun     bool
		showDiff   bool
	)

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Update JIRA statuses in an existing report to match the authority",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Reconcile(cmd.Context(), flags.customer, reportPath,
				app.RunOptions{Refresh: flags.refresh},
				reconcile.Options{DryRun: dryRun})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printRunSummary(out, res.RunResult)
			printChanges(out, res.Reconcile)
			if showDiff && res.Reconcile.Diff != "" {
				fmt.Fprintf(out, "\n%s\n", res.Reconcile.Diff)
			}
			for _, w := range res.Reconcile.Warnings {
				fmt.Fprintf(out, "warning: %s\n", w)
			}
			printIssues(out, res.Model.Issues)
			return statusResult(res.Model.Status)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&reportPath, "report", "r", "", "Report file to reconcile (required)")
	f.BoolVar(&dryRun, "dry-run", false, "Show the change set without writing")
	f.BoolVar(&showDiff, "diff", false, "Print a unified diff of the proposed edit")
	_ = cmd.MarkFlagRequired("report")
	return cmd
}
