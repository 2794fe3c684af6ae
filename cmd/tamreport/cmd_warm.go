package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bobmcallan/tamreport/internal/app"
	"github.com/bobmcallan/tamreport/internal/common"
)

func newWarmCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "warm",
		Short: "Pre-fetch case snapshots for every configured customer",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := app.NewApp(flags.configPath)
			if err != nil {
				return err
			}
			defer a.Close()
			if !flags.noBanner {
				common.PrintBanner(cmd.ErrOrStderr(), a.Config, cmd.Name(), "all", a.Logger)
			}

			s := a.WarmSnapshots(cmd.Context(), flags.refresh)
			fmt.Fprintf(cmd.OutOrStdout(), "Accounts: %d, fetched: %d, failed: %d\n", s.Accounts, s.Fetched, s.Failed)
			if s.Failed > 0 {
				return common.Errorf(common.KindSourceUnavailable, "rhcase", "%d of %d accounts could not be fetched", s.Failed, s.Accounts)
			}
			return nil
		},
	}
}
