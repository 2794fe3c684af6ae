package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/bobmcallan/tamreport/internal/models"
)

// DefaultAuthorMarker labels the line reconciliation anchors its
// "Last Updated" line to
const DefaultAuthorMarker = "Prepared by"

// TableHeader is the column layout of every case table
const TableHeader = "| JIRA | Case | Summary | JIRA Status | Case Status | Updated |"

const tableRule = "|------|------|---------|-------------|-------------|---------|"

// unresolvedStatus is rendered for references the authority could not resolve
const unresolvedStatus = "Unresolved"

// FormatMarkdown renders the model. Each JIRA reference gets its own row so
// reconciliation can track every referenced issue; cases without references
// render once with N/A.
func FormatMarkdown(m *models.ReportModel, authorMarker string) string {
	if authorMarker == "" {
		authorMarker = DefaultAuthorMarker
	}
	var sb strings.Builder

	// Header
	title := m.Customer.DisplayName
	if title == "" {
		title = m.Customer.AccountNumber()
	}
	sb.WriteString(fmt.Sprintf("# TAM RFE/Bug Report: %s\n\n", title))
	sb.WriteString(fmt.Sprintf("**%s:** tamreport\n", authorMarker))
	sb.WriteString(fmt.Sprintf("**Accounts:** %s\n", strings.Join(m.Customer.AccountNumbers, ", ")))
	sb.WriteString(fmt.Sprintf("**Generated:** %s\n", m.GeneratedAt.UTC().Format("2006-01-02 15:04 UTC")))
	sb.WriteString(fmt.Sprintf("**Case Source:** %s\n", m.Source))
	if m.Status != "" {
		sb.WriteString(fmt.Sprintf("**Accuracy:** %.1f%% (%s)\n", m.AccuracyScore*100, m.Status))
	}
	sb.WriteString("\n")

	// Sections
	for _, section := range m.Sections() {
		sb.WriteString(fmt.Sprintf("## %s (%d)\n\n", section.Title, len(section.Cases)))
		if len(section.Cases) == 0 {
			sb.WriteString("_No cases._\n\n")
			continue
		}
		sb.WriteString(TableHeader + "\n")
		sb.WriteString(tableRule + "\n")
		for i := range section.Cases {
			for _, row := range caseRows(&section.Cases[i]) {
				sb.WriteString(row + "\n")
			}
		}
		sb.WriteString("\n")
	}

	// Validation notes
	if len(m.Issues) > 0 {
		sb.WriteString("## Validation Notes\n\n")
		for _, issue := range m.Issues {
			sb.WriteString(fmt.Sprintf("- **%s** %s (%s)\n", issue.Severity, cell(issue.Description), cell(issue.Location)))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

func caseRows(c *models.EnrichedCase) []string {
	updated := formatDate(c.UpdatedAt)
	summary := cell(c.Summary)
	status := cell(c.Status)
	if status == "" {
		status = "-"
	}

	ids := c.ReferencedIDs()
	if len(ids) == 0 {
		return []string{fmt.Sprintf("| N/A | %s | %s | N/A | %s | %s |", c.CaseNumber, summary, status, updated)}
	}
	rows := make([]string, 0, len(ids))
	for _, id := range ids {
		jiraStatus := unresolvedStatus
		if st, ok := c.JiraStatus(id); ok && st != "" {
			jiraStatus = cell(st)
		}
		rows = append(rows, fmt.Sprintf("| %s | %s | %s | %s | %s | %s |", id, c.CaseNumber, summary, jiraStatus, status, updated))
	}
	return rows
}

// cell flattens text so it stays inside one table cell
func cell(s string) string {
	s = strings.NewReplacer("|", "/", "\r\n", " ", "\n", " ", "\r", " ", "\t", " ").Replace(s)
	return strings.TrimSpace(s)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("2006-01-02")
}
