package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/bobmcallan/tamreport/internal/app"
	"github.com/bobmcallan/tamreport/internal/models"
)

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	return t
}

func printRunSummary(w io.Writer, run *app.RunResult) {
	m := run.Model
	name := m.Customer.DisplayName
	if name == "" {
		name = run.CustomerKey
	}
	fmt.Fprintf(w, "Customer:   %s (%d accounts, source %s)\n", name, len(m.Customer.AccountNumbers), m.Source)

	t := newTable()
	t.AppendHeader(table.Row{"Section", "Cases"})
	for _, s := range m.Sections() {
		t.AppendRow(table.Row{s.Title, len(s.Cases)})
	}
	if len(m.ExternalTrackerExcluded) > 0 {
		t.AppendRow(table.Row{"Excluded (external tracker)", len(m.ExternalTrackerExcluded)})
	}
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})
	fmt.Fprintln(w, t.Render())

	fmt.Fprintf(w, "Accuracy:   %.1f%% (%s)\n", m.AccuracyScore*100, m.Status)
	if run.ValidationPath != "" {
		fmt.Fprintf(w, "Validation: %s\n", run.ValidationPath)
	}
	for _, warn := range run.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warn)
	}
}

func printIssues(w io.Writer, issues []models.ValidationIssue) {
	if len(issues) == 0 {
		return
	}
	rank := make(map[models.IssueSeverity]int, len(models.AllSeverities))
	for i, s := range models.AllSeverities {
		rank[s] = i
	}
	sorted := make([]models.ValidationIssue, len(issues))
	copy(sorted, issues)
	sort.SliceStable(sorted, func(i, j int) bool {
		return rank[sorted[i].Severity] < rank[sorted[j].Severity]
	})

	t := newTable()
	t.AppendHeader(table.Row{"Severity", "Issue", "Location", "Description"})
	for _, issue := range sorted {
		t.AppendRow(table.Row{issue.Severity, issue.IssueType, issue.Location, issue.Description})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, WidthMax: 40},
		{Number: 4, WidthMax: 60},
	})
	fmt.Fprintln(w, t.Render())
}

func printChanges(w io.Writer, res *models.ReconcileResult) {
	switch {
	case res.UpdatesMade == 0:
		fmt.Fprintf(w, "No status changes for %s\n", res.ReportPath)
		return
	case res.Applied:
		fmt.Fprintf(w, "Updated %s (%d changes, backup %s)\n", res.ReportPath, res.UpdatesMade, res.BackupPath)
	default:
		fmt.Fprintf(w, "Dry run: %d changes proposed for %s\n", res.UpdatesMade, res.ReportPath)
	}

	t := newTable()
	t.AppendHeader(table.Row{"JIRA", "Report", "Authority"})
	for _, c := range res.Changes {
		t.AppendRow(table.Row{c.JiraID, c.Old, c.New})
	}
	fmt.Fprintln(w, t.Render())
}
