package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bobmcallan/tamreport/internal/common"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			common.LoadVersionFromBuildInfo()
			fmt.Fprintf(cmd.OutOrStdout(), "tamreport %s\n", common.GetFullVersion())
		},
	}
}
