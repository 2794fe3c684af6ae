package models

import "time"

// IssueSeverity grades a validation issue
type IssueSeverity string

const (
	SeverityCritical IssueSeverity = "Critical"
	SeverityHigh     IssueSeverity = "High"
	SeverityMedium   IssueSeverity = "Medium"
	SeverityLow      IssueSeverity = "Low"
)

// AllSeverities lists severities from most to least serious
var AllSeverities = []IssueSeverity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow}

// ValidationStatus is the verdict derived from the accuracy score
type ValidationStatus string

const (
	StatusAccurate     ValidationStatus = "Accurate"
	StatusInconsistent ValidationStatus = "Inconsistent"
	StatusInaccurate   ValidationStatus = "Inaccurate"
)

// Issue types
const (
	IssueInvalidCaseNumber       = "invalid_case_number"
	IssueInvalidRFEIdentifier    = "invalid_rfe_identifier"
	IssueInvalidBugIdentifier    = "invalid_bug_identifier"
	IssueInvalidDateFormat       = "invalid_date_format"
	IssueFutureClosureDate       = "future_closure_date"
	IssueUpdatedBeforeCreated    = "updated_before_created"
	IssueInvalidSeverity         = "invalid_severity"
	IssueProductTitleMismatch    = "product_title_mismatch"
	IssueDuplicateCaseNumber     = "duplicate_case_number"
	IssueCaseStatusInconsistency = "case_status_inconsistency"
	IssueJiraNotFound            = "jira_not_found"
	IssueJiraEnrichmentFailed    = "jira_enrichment_failed"
	IssueReportParseError        = "report_parse_error"
)

// ValidationIssue is one rule violation
type ValidationIssue struct {
	IssueType      string        `json:"issue_type"`
	Severity       IssueSeverity `json:"severity"`
	Description    string        `json:"description"`
	Location       string        `json:"location"`
	ExpectedValue  string        `json:"expected_value,omitempty"`
	ActualValue    string        `json:"actual_value,omitempty"`
	Recommendation string        `json:"recommendation,omitempty"`
}

// ValidationReport is the persisted audit artifact for one run
type ValidationReport struct {
	ReportID               string                `json:"report_id"`
	Customer               string                `json:"customer,omitempty"`
	ValidationTimestamp    time.Time             `json:"validation_timestamp"`
	OverallAccuracyScore   float64               `json:"overall_accuracy_score"`
	ValidationStatus       ValidationStatus      `json:"validation_status"`
	ItemsValidated         int                   `json:"items_validated"`
	IssueCounts            map[IssueSeverity]int `json:"issue_counts"`
	Issues                 []ValidationIssue     `json:"issues"`
	Recommendations        []string              `json:"recommendations"`
	Summary                string                `json:"summary"`
	Warnings               []string              `json:"warnings,omitempty"`
	Source                 string                `json:"source,omitempty"`
	ExternalTrackerExclude []string              `json:"external_tracker_excluded,omitempty"`
}
