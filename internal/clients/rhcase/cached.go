package rhcase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bobmcallan/tamreport/internal/common"
	"github.com/bobmcallan/tamreport/internal/interfaces"
	"github.com/bobmcallan/tamreport/internal/models"
)

// CachedSource serves case enumerations from day-bucketed snapshots and
// falls back to the latest snapshot when the tool is unavailable.
type CachedSource struct {
	source interfaces.CaseSource
	store  interfaces.SnapshotStore
	ttl    time.Duration
	now    func() time.Time
	logger *common.Logger
	// Refresh bypasses fresh snapshots.
	Refresh bool
}

// NewCachedSource wraps source with a snapshot cache
func NewCachedSource(source interfaces.CaseSource, store interfaces.SnapshotStore, ttl time.Duration, logger *common.Logger) *CachedSource {
	if ttl <= 0 {
		ttl = common.FreshnessCaseSnapshot
	}
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &CachedSource{
		source: source,
		store:  store,
		ttl:    ttl,
		now:    time.Now,
		logger: logger,
	}
}

// WithClock replaces the clock, for tests
func (s *CachedSource) WithClock(now func() time.Time) *CachedSource {
	s.now = now
	return s
}

// SnapshotPrefix identifies snapshots for (account, lookback, filter) across days
func SnapshotPrefix(q interfaces.CaseQuery) string {
	filter := "all"
	if len(q.SBRGroupFilter) > 0 {
		groups := make([]string, len(q.SBRGroupFilter))
		for i, g := range q.SBRGroupFilter {
			groups[i] = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(g), " ", "-"))
		}
		sort.Strings(groups)
		filter = strings.Join(groups, "+")
	}
	return fmt.Sprintf("%s_%dm_%s_", q.AccountNumber, q.LookbackMonths, filter)
}

// SnapshotKey identifies the snapshot for a query on the day of t
func SnapshotKey(q interfaces.CaseQuery, t time.Time) string {
	return SnapshotPrefix(q) + common.DayBucket(t)
}

// ListCases returns a fresh snapshot when one exists, otherwise invokes the
// source and stores the result.
func (s *CachedSource) ListCases(ctx context.Context, q interfaces.CaseQuery) (*interfaces.CaseFetch, error) {
	now := s.now()
	key := SnapshotKey(q, now)

	if !s.Refresh {
		if snap, err := s.store.GetSnapshot(ctx, key); err == nil && common.IsFresh(snap.FetchedAt, now, s.ttl) {
			s.logger.Debug().Str("key", key).Time("fetched_at", snap.FetchedAt).Msg("Using cached case snapshot")
			return &interfaces.CaseFetch{Cases: snap.Cases, Source: models.SourceCache}, nil
		}
	}

	fetch, err := s.source.ListCases(ctx, q)
	if err != nil {
		if common.IsKind(err, common.KindSourceUnavailable) {
			if snap, serr := s.store.LatestSnapshot(ctx, SnapshotPrefix(q)); serr == nil {
				s.logger.Warn().
					Err(err).
					Str("key", snap.Key).
					Time("fetched_at", snap.FetchedAt).
					Msg("Case tool unavailable, using stale snapshot")
				return &interfaces.CaseFetch{Cases: snap.Cases, Source: models.SourceFallback}, nil
			}
		}
		return nil, err
	}

	snap := &interfaces.CaseSnapshot{
		Key:            key,
		AccountNumber:  q.AccountNumber,
		LookbackMonths: q.LookbackMonths,
		SBRGroupFilter: q.SBRGroupFilter,
		DayBucket:      common.DayBucket(now),
		FetchedAt:      now,
		Cases:          fetch.Cases,
	}
	if err := s.store.SaveSnapshot(ctx, snap); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("Failed to save case snapshot")
	}

	return fetch, nil
}
