package models

import (
	"time"
)

// Case source labels carried into the report model
const (
	SourceLive     = "live"
	SourceCache    = "cache"
	SourceFallback = "fallback"
)

// Customer identifies who a report is for
type Customer struct {
	AccountNumbers []string `json:"account_numbers"`
	DisplayName    string   `json:"display_name"`
	TemplateKey    string   `json:"template_key"`
}

// AccountNumber returns the primary account number
func (c Customer) AccountNumber() string {
	if len(c.AccountNumbers) == 0 {
		return ""
	}
	return c.AccountNumbers[0]
}

// Report section names, used in issue locations
const (
	SectionActiveRFEs  = "active_rfes"
	SectionActiveBugs  = "active_bugs"
	SectionClosedCases = "closed_cases"
	SectionOtherActive = "other_active"
)

// ReportModel is the typed structure consumed by renderers and the reconciliation engine
type ReportModel struct {
	Customer    Customer  `json:"customer"`
	GeneratedAt time.Time `json:"generated_at"`
	Source      string    `json:"source"`

	ActiveRFEs  []EnrichedCase `json:"active_rfes"`
	ActiveBugs  []EnrichedCase `json:"active_bugs"`
	ClosedCases []EnrichedCase `json:"closed_cases"`
	OtherActive []EnrichedCase `json:"other_active"`

	// ExternalTrackerExcluded holds Other-kind active cases kept out of other_active.
	ExternalTrackerExcluded []EnrichedCase `json:"external_tracker_excluded,omitempty"`

	AccuracyScore float64           `json:"accuracy_score"`
	Status        ValidationStatus  `json:"status"`
	Issues        []ValidationIssue `json:"issues"`
}

// Sections returns the four sequences keyed by section name, in render order
func (m *ReportModel) Sections() []ReportSection {
	return []ReportSection{
		{Name: SectionActiveRFEs, Title: "Active RFEs", Cases: m.ActiveRFEs},
		{Name: SectionActiveBugs, Title: "Active Bugs", Cases: m.ActiveBugs},
		{Name: SectionOtherActive, Title: "Other Active Cases", Cases: m.OtherActive},
		{Name: SectionClosedCases, Title: "Closed Cases", Cases: m.ClosedCases},
	}
}

// AllCases returns every case in the four sequences
func (m *ReportModel) AllCases() []EnrichedCase {
	all := make([]EnrichedCase, 0, len(m.ActiveRFEs)+len(m.ActiveBugs)+len(m.ClosedCases)+len(m.OtherActive))
	for _, s := range m.Sections() {
		all = append(all, s.Cases...)
	}
	return all
}

// DistinctCaseCount returns the number of distinct case numbers across all sections
func (m *ReportModel) DistinctCaseCount() int {
	seen := make(map[string]struct{})
	for _, c := range m.AllCases() {
		seen[c.CaseNumber] = struct{}{}
	}
	return len(seen)
}

// ReportSection is one named sequence of the report model
type ReportSection struct {
	Name  string
	Title string
	Cases []EnrichedCase
}
