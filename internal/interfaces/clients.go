// Package interfaces defines service contracts for tamreport
package interfaces

import (
	"context"

	"github.com/bobmcallan/tamreport/internal/models"
)

// CaseQuery selects the cases to enumerate for one account
type CaseQuery struct {
	AccountNumber  string
	LookbackMonths int
	SBRGroupFilter []string
}

// CaseFetch is the result of one case enumeration
type CaseFetch struct {
	Cases []models.CaseRecord
	// Source is models.SourceLive, SourceCache or SourceFallback.
	Source string
}

// CaseSource enumerates support cases for an account
type CaseSource interface {
	// ListCases returns the cases for the query, in source order
	ListCases(ctx context.Context, q CaseQuery) (*CaseFetch, error)
}

// JiraAuthority resolves the authoritative state of JIRA issues
type JiraAuthority interface {
	// GetIssue fetches one issue. Errors carry a common.ErrorKind
	// (AuthorityNotFound, AuthorityDenied, AuthorityTransient,
	// AuthorityMalformed, CircuitOpen).
	GetIssue(ctx context.Context, id string) (*models.JiraIssueState, error)
}
