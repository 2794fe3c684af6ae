package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bobmcallan/tamreport/internal/app"
)

func newGenerateCmd(flags *rootFlags) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Build the customer report and write it as Markdown",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Generate(cmd.Context(), flags.customer, output, app.RunOptions{Refresh: flags.refresh})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printRunSummary(out, res.RunResult)
			fmt.Fprintf(out, "Report:     %s\n", res.ReportPath)
			if res.BackupPath != "" {
				fmt.Fprintf(out, "Backup:     %s\n", res.BackupPath)
			}
			printIssues(out, res.Model.Issues)
			return statusResult(res.Model.Status)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Report file to write (required)")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}
