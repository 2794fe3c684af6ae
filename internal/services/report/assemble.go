// Package report assembles enriched cases into the report model and renders
// it as Markdown.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bobmcallan/tamreport/internal/models"
)

// Assemble partitions cases into the four report sections, orders each by
// updated_at descending then case number ascending, and records cross-section
// duplicates as Critical issues.
func Assemble(cases []models.EnrichedCase, customer models.Customer, generatedAt time.Time, source string) *models.ReportModel {
	m := &models.ReportModel{
		Customer:    customer,
		GeneratedAt: generatedAt,
		Source:      source,
		ActiveRFEs:  []models.EnrichedCase{},
		ActiveBugs:  []models.EnrichedCase{},
		ClosedCases: []models.EnrichedCase{},
		OtherActive: []models.EnrichedCase{},
		Issues:      []models.ValidationIssue{},
	}
	if m.Source == "" {
		m.Source = models.SourceLive
	}

	for _, c := range cases {
		// 1. Phase first: closed cases ignore kind and tracker flag
		if c.Phase == models.PhaseClosed {
			m.ClosedCases = append(m.ClosedCases, c)
			continue
		}
		// 2. Active cases by kind
		switch c.Kind {
		case models.KindRFE:
			m.ActiveRFEs = append(m.ActiveRFEs, c)
		case models.KindBug:
			m.ActiveBugs = append(m.ActiveBugs, c)
		default:
			// 3. Tracker-flagged Other cases are kept for audit only
			if c.ExternalTrackerFlag {
				m.ExternalTrackerExcluded = append(m.ExternalTrackerExcluded, c)
				continue
			}
			m.OtherActive = append(m.OtherActive, c)
		}
	}

	// 4. Deterministic order
	for _, seq := range [][]models.EnrichedCase{m.ActiveRFEs, m.ActiveBugs, m.ClosedCases, m.OtherActive, m.ExternalTrackerExcluded} {
		SortCases(seq)
	}

	// 5. Cross-section uniqueness
	m.Issues = append(m.Issues, CrossSectionIssues(m)...)
	return m
}

// SortCases orders cases by updated_at descending, then case number ascending
func SortCases(cases []models.EnrichedCase) {
	sort.SliceStable(cases, func(i, j int) bool {
		if !cases[i].UpdatedAt.Equal(cases[j].UpdatedAt) {
			return cases[i].UpdatedAt.After(cases[j].UpdatedAt)
		}
		return cases[i].CaseNumber < cases[j].CaseNumber
	})
}

// CrossSectionIssues reports one Critical issue per case number that occurs
// more than once across the sections: case_status_inconsistency when it is
// both closed and active, duplicate_case_number otherwise.
func CrossSectionIssues(m *models.ReportModel) []models.ValidationIssue {
	type occurrence struct {
		sections []string
	}
	seen := make(map[string]*occurrence)
	var order []string
	for _, section := range m.Sections() {
		for _, c := range section.Cases {
			occ, ok := seen[c.CaseNumber]
			if !ok {
				occ = &occurrence{}
				seen[c.CaseNumber] = occ
				order = append(order, c.CaseNumber)
			}
			occ.sections = append(occ.sections, section.Name)
		}
	}

	var issues []models.ValidationIssue
	for _, number := range order {
		occ := seen[number]
		if len(occ.sections) < 2 {
			continue
		}
		closed, active := false, false
		for _, s := range occ.sections {
			if s == models.SectionClosedCases {
				closed = true
			} else {
				active = true
			}
		}
		location := fmt.Sprintf("case %s in %s", number, strings.Join(occ.sections, ", "))
		if closed && active {
			issues = append(issues, models.ValidationIssue{
				IssueType:      models.IssueCaseStatusInconsistency,
				Severity:       models.SeverityCritical,
				Description:    fmt.Sprintf("Case %s is listed as both active and closed", number),
				Location:       location,
				ExpectedValue:  "exactly one section",
				ActualValue:    strings.Join(occ.sections, ", "),
				Recommendation: "Confirm the case state and remove the stale entry",
			})
			continue
		}
		issues = append(issues, models.ValidationIssue{
			IssueType:      models.IssueDuplicateCaseNumber,
			Severity:       models.SeverityCritical,
			Description:    fmt.Sprintf("Case %s appears %d times in the report", number, len(occ.sections)),
			Location:       location,
			ExpectedValue:  "exactly one section",
			ActualValue:    strings.Join(occ.sections, ", "),
			Recommendation: "Remove duplicate case entries before publishing",
		})
	}
	return issues
}

// Verify checks the structural invariants of an assembled model and returns
// one message per violation. Duplicates are excluded; they are issues, not
// violations.
func Verify(m *models.ReportModel) []string {
	var problems []string
	for _, section := range m.Sections() {
		for _, c := range section.Cases {
			closedSection := section.Name == models.SectionClosedCases
			if closedSection != (c.Phase == models.PhaseClosed) {
				problems = append(problems, fmt.Sprintf("case %s with phase %s is in %s", c.CaseNumber, c.Phase, section.Name))
			}
			if section.Name == models.SectionOtherActive && c.ExternalTrackerFlag {
				problems = append(problems, fmt.Sprintf("case %s has the external tracker flag but is in %s", c.CaseNumber, section.Name))
			}
			for _, id := range c.JiraRefs {
				if _, ok := c.Jira[id]; !ok {
					problems = append(problems, fmt.Sprintf("case %s references %s without enrichment", c.CaseNumber, id))
				}
			}
			if !c.CreatedAt.IsZero() && c.UpdatedAt.Before(c.CreatedAt) {
				problems = append(problems, fmt.Sprintf("case %s was updated before it was created", c.CaseNumber))
			}
			if c.ClosedAt != nil && c.ClosedAt.After(m.GeneratedAt) {
				problems = append(problems, fmt.Sprintf("case %s closes after the report was generated", c.CaseNumber))
			}
		}
	}
	return problems
}
