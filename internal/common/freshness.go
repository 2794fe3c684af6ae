// Package common provides shared utilities for tamreport
package common

import "time"

// Freshness TTLs for cached artifacts
const (
	FreshnessCaseSnapshot = 24 * time.Hour
)

// IsFresh returns true if the given timestamp is within the TTL of now
func IsFresh(updated, now time.Time, ttl time.Duration) bool {
	if updated.IsZero() {
		return false
	}
	return now.Sub(updated) < ttl
}

// DayBucket returns the UTC calendar day of t as YYYYMMDD
func DayBucket(t time.Time) string {
	return t.UTC().Format("20060102")
}

// FileTimestamp formats t for artifact names (YYYYMMDD_HHMMSS)
func FileTimestamp(t time.Time) string {
	return t.Format("20060102_150405")
}
