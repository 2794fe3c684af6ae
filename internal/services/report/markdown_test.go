package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/tamreport/internal/common"
	"github.com/bobmcallan/tamreport/internal/models"
)

func sampleModel() *models.ReportModel {
	rfe := mkCase("04244831", models.KindRFE, models.PhaseActive, now.AddDate(0, 0, -17))
	rfe.Summary = "[RFE] Add widget | with pipes"
	rfe.JiraRefs = []string{"AAPRFE-762"}
	rfe.Jira["AAPRFE-762"] = models.JiraIssueState{Key: "AAPRFE-762", Status: "Backlog"}
	rfe.EnrichmentErrors = []models.EnrichmentError{{JiraID: "AAP-404", Reason: models.ReasonNotFound}}

	closed := mkCase("04200000", models.KindOther, models.PhaseClosed, now.AddDate(0, -1, 0))
	closed.Status = "Closed"

	m := Assemble([]models.EnrichedCase{rfe, closed}, models.Customer{
		AccountNumbers: []string{"1234567", "7654321"},
		DisplayName:    "Acme Corp",
	}, now, models.SourceFallback)
	m.AccuracyScore = 1
	m.Status = models.StatusAccurate
	return m
}

func TestFormatMarkdown(t *testing.T) {
	out := FormatMarkdown(sampleModel(), "")

	assert.True(t, strings.HasPrefix(out, "# TAM RFE/Bug Report: Acme Corp\n\n**Prepared by:** tamreport\n"))
	assert.Contains(t, out, "**Accounts:** 1234567, 7654321\n")
	assert.Contains(t, out, "**Generated:** 2026-10-18 12:00 UTC\n")
	assert.Contains(t, out, "**Case Source:** fallback\n")
	assert.Contains(t, out, "**Accuracy:** 100.0% (Accurate)\n")

	assert.Contains(t, out, "## Active RFEs (1)\n\n"+TableHeader+"\n")
	assert.Contains(t, out, "| AAPRFE-762 | 04244831 | [RFE] Add widget / with pipes | Backlog | Waiting on Red Hat | 2026-10-01 |\n")
	assert.Contains(t, out, "| AAP-404 | 04244831 | [RFE] Add widget / with pipes | Unresolved | Waiting on Red Hat | 2026-10-01 |\n")
	assert.Contains(t, out, "## Active Bugs (0)\n\n_No cases._\n")
	assert.Contains(t, out, "| N/A | 04200000 | case 04200000 | N/A | Closed | 2026-09-18 |\n")
	assert.NotContains(t, out, "## Validation Notes")
}

func TestFormatMarkdown_CustomMarkerAndIssues(t *testing.T) {
	m := sampleModel()
	m.Issues = append(m.Issues, models.ValidationIssue{
		Severity:    models.SeverityHigh,
		Description: "Closure date is after the report generation time",
		Location:    "closed_cases: case 04200000 closed_at",
	})
	out := FormatMarkdown(m, "Author")
	assert.Contains(t, out, "**Author:** tamreport\n")
	assert.Contains(t, out, "## Validation Notes\n\n- **High** Closure date is after the report generation time (closed_cases: case 04200000 closed_at)\n")
}

func TestWriteReport_BacksUpExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "acme.md")

	backup, err := WriteReport(path, "first\n", now)
	require.NoError(t, err)
	assert.Empty(t, backup, "no backup for a new file")

	backup, err = WriteReport(path, "second\n", now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "acme_backup_20261018_120000.md"), backup)

	old, err := os.ReadFile(backup)
	require.NoError(t, err)
	assert.Equal(t, "first\n", string(old))
	cur, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second\n", string(cur))
}

func TestWriteReport_UnwritableDirectory(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	_, err := WriteReport(filepath.Join(blocker, "report.md"), "content", now)
	require.Error(t, err)
	assert.Equal(t, common.KindReportWriteError, common.KindOf(err))
}
