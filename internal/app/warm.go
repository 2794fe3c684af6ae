package app

import (
	"context"
	"sort"
	"time"

	"github.com/bobmcallan/tamreport/internal/interfaces"
)

// WarmSummary counts the outcome of one warm pass
type WarmSummary struct {
	Accounts int
	Fetched  int
	Failed   int
}

// WarmSnapshots pre-fetches case snapshots for every configured customer so
// later runs are served from the cache. Accounts with a fresh snapshot are
// skipped unless refresh is set. Failures are logged and counted.
func (a *App) WarmSnapshots(ctx context.Context, refresh bool) WarmSummary {
	start := time.Now()
	a.CaseSource.Refresh = refresh

	keys := make([]string, 0, len(a.Config.Customers))
	for k := range a.Config.Customers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var summary WarmSummary
	seen := make(map[string]struct{})
	for _, key := range keys {
		for _, acct := range a.Config.Customers[key].AccountNumbers {
			if _, ok := seen[acct]; ok {
				continue
			}
			seen[acct] = struct{}{}
			if ctx.Err() != nil {
				a.Logger.Info().Msg("Warm cache: cancelled")
				return summary
			}
			summary.Accounts++

			fetch, err := a.CaseSource.ListCases(ctx, interfaces.CaseQuery{
				AccountNumber:  acct,
				LookbackMonths: a.Config.Source.LookbackMonths,
				SBRGroupFilter: a.Config.Source.SBRGroupFilter,
			})
			if err != nil {
				summary.Failed++
				a.Logger.Warn().Err(err).Str("customer", key).Str("account", acct).Msg("Warm cache: fetch failed")
				continue
			}
			summary.Fetched++
			a.Logger.Debug().
				Str("customer", key).
				Str("account", acct).
				Str("source", fetch.Source).
				Int("cases", len(fetch.Cases)).
				Msg("Warm cache: account ready")
		}
	}

	a.Logger.Info().
		Int("accounts", summary.Accounts).
		Int("fetched", summary.Fetched).
		Int("failed", summary.Failed).
		Dur("elapsed", time.Since(start)).
		Msg("Warm cache: complete")
	return summary
}
