package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/bobmcallan/tamreport/internal/app"
)

func newValidateCmd(flags *rootFlags) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the customer's cases and persist the validation report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Validate(cmd.Context(), flags.customer, app.RunOptions{Refresh: flags.refresh})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(res.Validation); err != nil {
					return err
				}
			} else {
				printRunSummary(out, res)
				printIssues(out, res.Model.Issues)
			}
			return statusResult(res.Model.Status)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the validation report as JSON")
	return cmd
}
