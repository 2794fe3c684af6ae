package interfaces

import (
	"context"
	"time"

	"github.com/bobmcallan/tamreport/internal/models"
)

// CaseSnapshot is a serialized case enumeration kept for caching and fallback
type CaseSnapshot struct {
	Key            string              `json:"key"`
	AccountNumber  string              `json:"account_number"`
	LookbackMonths int                 `json:"lookback_months"`
	SBRGroupFilter []string            `json:"sbr_group_filter,omitempty"`
	DayBucket      string              `json:"day_bucket"`
	FetchedAt      time.Time           `json:"fetched_at"`
	Cases          []models.CaseRecord `json:"cases"`
}

// SnapshotStore persists case snapshots
type SnapshotStore interface {
	// GetSnapshot returns the snapshot stored under key
	GetSnapshot(ctx context.Context, key string) (*CaseSnapshot, error)
	// SaveSnapshot stores a snapshot under its key, atomically
	SaveSnapshot(ctx context.Context, snap *CaseSnapshot) error
	// LatestSnapshot returns the most recently fetched snapshot whose key has the prefix
	LatestSnapshot(ctx context.Context, prefix string) (*CaseSnapshot, error)
}

// ValidationReportStore persists validation report artifacts
type ValidationReportStore interface {
	// SaveValidationReport writes the report and returns its path
	SaveValidationReport(ctx context.Context, report *models.ValidationReport) (string, error)
	// LoadValidationReport reads a persisted report
	LoadValidationReport(ctx context.Context, path string) (*models.ValidationReport, error)
}
