// Package models defines data structures for tamreport
package models

import (
	"time"
)

// CaseKind tags a classified case
type CaseKind string

const (
	KindRFE   CaseKind = "RFE"
	KindBug   CaseKind = "Bug"
	KindOther CaseKind = "Other"
)

// IsDefinite reports whether the kind is RFE or Bug
func (k CaseKind) IsDefinite() bool {
	return k == KindRFE || k == KindBug
}

// CasePhase is the lifecycle phase of a case
type CasePhase string

const (
	PhaseActive CasePhase = "Active"
	PhaseClosed CasePhase = "Closed"
)

// CasePriority is derived from severity or status keywords
type CasePriority string

const (
	PriorityHigh   CasePriority = "High"
	PriorityMedium CasePriority = "Medium"
	PriorityLow    CasePriority = "Low"
)

// CaseRecord is a support case as produced by the case source
type CaseRecord struct {
	CaseNumber    string   `json:"case_number"`
	Summary       string   `json:"summary"`
	Description   string   `json:"description,omitempty"`
	Status        string   `json:"status"`
	SBRGroup      string   `json:"sbr_group,omitempty"`
	AccountNumber string   `json:"account_number,omitempty"`
	CaseType      string   `json:"case_type,omitempty"`
	Product       string   `json:"product,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	Severity      string   `json:"severity,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`

	// Raw date strings as emitted by the source, kept for date-format validation.
	CreatedRaw string `json:"created_raw,omitempty"`
	UpdatedRaw string `json:"updated_raw,omitempty"`
	ClosedRaw  string `json:"closed_raw,omitempty"`

	// IsClosed is nil when the source did not say.
	IsClosed *bool `json:"is_closed,omitempty"`

	Raw map[string]any `json:"raw,omitempty"`
}

// ClassifiedCase is a CaseRecord with classification results attached
type ClassifiedCase struct {
	CaseRecord
	Kind                CaseKind     `json:"kind"`
	Phase               CasePhase    `json:"phase"`
	Priority            CasePriority `json:"priority"`
	JiraRefs            []string     `json:"jira_refs"`
	ExternalTrackerFlag bool         `json:"external_tracker_flag"`

	// StatusConflict is set when an explicit closed flag disagrees with the status domain.
	StatusConflict bool `json:"status_conflict,omitempty"`
}

// PrimaryJiraRef returns the first JIRA reference, or "" when there is none
func (c *ClassifiedCase) PrimaryJiraRef() string {
	if len(c.JiraRefs) == 0 {
		return ""
	}
	return c.JiraRefs[0]
}

// EnrichmentError records a JIRA reference that could not be resolved
type EnrichmentError struct {
	JiraID string `json:"jira_id"`
	Reason string `json:"reason"`
}

// Enrichment failure reasons
const (
	ReasonNotFound    = "not_found"
	ReasonDenied      = "denied"
	ReasonTransient   = "transient"
	ReasonMalformed   = "malformed"
	ReasonCircuitOpen = "circuit_open"
)

// EnrichedCase is a ClassifiedCase with authoritative JIRA state attached
type EnrichedCase struct {
	ClassifiedCase
	Jira             map[string]JiraIssueState `json:"jira"`
	EnrichmentErrors []EnrichmentError         `json:"enrichment_errors,omitempty"`
}

// JiraStatus returns the authoritative status of id, if resolved
func (c *EnrichedCase) JiraStatus(id string) (string, bool) {
	st, ok := c.Jira[id]
	if !ok {
		return "", false
	}
	return st.Status, true
}

// ReferencedIDs returns resolved references followed by unresolved ones
func (c *EnrichedCase) ReferencedIDs() []string {
	ids := make([]string, 0, len(c.JiraRefs)+len(c.EnrichmentErrors))
	ids = append(ids, c.JiraRefs...)
	for _, e := range c.EnrichmentErrors {
		ids = append(ids, e.JiraID)
	}
	return ids
}
