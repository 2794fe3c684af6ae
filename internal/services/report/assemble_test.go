package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/tamreport/internal/models"
)

var now = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

func mkCase(number string, kind models.CaseKind, phase models.CasePhase, updated time.Time) models.EnrichedCase {
	return models.EnrichedCase{
		ClassifiedCase: models.ClassifiedCase{
			CaseRecord: models.CaseRecord{
				CaseNumber: number,
				Summary:    "case " + number,
				Status:     "Waiting on Red Hat",
				CreatedAt:  updated.AddDate(0, 0, -7),
				UpdatedAt:  updated,
			},
			Kind:     kind,
			Phase:    phase,
			JiraRefs: []string{},
		},
		Jira: map[string]models.JiraIssueState{},
	}
}

func numbers(cases []models.EnrichedCase) []string {
	out := make([]string, 0, len(cases))
	for _, c := range cases {
		out = append(out, c.CaseNumber)
	}
	return out
}

func TestAssemble_Partition(t *testing.T) {
	day := func(d int) time.Time { return now.AddDate(0, 0, -d) }

	tracked := mkCase("00000006", models.KindOther, models.PhaseActive, day(1))
	tracked.ExternalTrackerFlag = true
	trackedRFE := mkCase("00000007", models.KindRFE, models.PhaseActive, day(1))
	trackedRFE.ExternalTrackerFlag = true
	closedTracked := mkCase("00000008", models.KindOther, models.PhaseClosed, day(3))
	closedTracked.ExternalTrackerFlag = true

	m := Assemble([]models.EnrichedCase{
		mkCase("00000001", models.KindRFE, models.PhaseActive, day(2)),
		mkCase("00000002", models.KindBug, models.PhaseActive, day(2)),
		mkCase("00000003", models.KindRFE, models.PhaseClosed, day(5)),
		mkCase("00000004", models.KindOther, models.PhaseActive, day(4)),
		mkCase("00000005", models.KindBug, models.PhaseClosed, day(1)),
		tracked, trackedRFE, closedTracked,
	}, models.Customer{AccountNumbers: []string{"1234567"}, DisplayName: "Acme"}, now, "")

	assert.Equal(t, []string{"00000007", "00000001"}, numbers(m.ActiveRFEs))
	assert.Equal(t, []string{"00000002"}, numbers(m.ActiveBugs))
	assert.Equal(t, []string{"00000005", "00000008", "00000003"}, numbers(m.ClosedCases))
	assert.Equal(t, []string{"00000004"}, numbers(m.OtherActive))
	assert.Equal(t, []string{"00000006"}, numbers(m.ExternalTrackerExcluded))
	assert.Equal(t, models.SourceLive, m.Source)
	assert.Empty(t, m.Issues)
	assert.Empty(t, Verify(m))
}

func TestAssemble_OrderTieBreakByCaseNumber(t *testing.T) {
	m := Assemble([]models.EnrichedCase{
		mkCase("00000009", models.KindBug, models.PhaseActive, now),
		mkCase("00000003", models.KindBug, models.PhaseActive, now),
		mkCase("00000005", models.KindBug, models.PhaseActive, now.Add(time.Hour)),
	}, models.Customer{}, now, models.SourceCache)

	assert.Equal(t, []string{"00000005", "00000003", "00000009"}, numbers(m.ActiveBugs))
	assert.Equal(t, models.SourceCache, m.Source)
}

func TestAssemble_Empty(t *testing.T) {
	m := Assemble(nil, models.Customer{}, now, models.SourceLive)
	assert.NotNil(t, m.ActiveRFEs)
	assert.NotNil(t, m.ClosedCases)
	assert.Equal(t, 0, m.DistinctCaseCount())
	assert.Empty(t, m.Issues)
}

func TestAssemble_DuplicateAcrossActiveSections(t *testing.T) {
	m := Assemble([]models.EnrichedCase{
		mkCase("04244831", models.KindRFE, models.PhaseActive, now),
		mkCase("04244831", models.KindBug, models.PhaseActive, now),
	}, models.Customer{}, now, models.SourceLive)

	require.Len(t, m.Issues, 1)
	assert.Equal(t, models.IssueDuplicateCaseNumber, m.Issues[0].IssueType)
	assert.Equal(t, models.SeverityCritical, m.Issues[0].Severity)
	assert.Equal(t, "case 04244831 in active_rfes, active_bugs", m.Issues[0].Location)
	assert.Equal(t, 1, m.DistinctCaseCount())
}

func TestAssemble_DuplicateActiveAndClosed(t *testing.T) {
	m := Assemble([]models.EnrichedCase{
		mkCase("04244831", models.KindRFE, models.PhaseActive, now),
		mkCase("04244831", models.KindRFE, models.PhaseClosed, now),
	}, models.Customer{}, now, models.SourceLive)

	require.Len(t, m.Issues, 1)
	assert.Equal(t, models.IssueCaseStatusInconsistency, m.Issues[0].IssueType)
	assert.Equal(t, models.SeverityCritical, m.Issues[0].Severity)
}

func TestVerify_DetectsViolations(t *testing.T) {
	bad := mkCase("00000001", models.KindOther, models.PhaseClosed, now)
	bad.ExternalTrackerFlag = true
	bad.JiraRefs = []string{"AAP-1"}
	future := now.Add(time.Hour)
	bad.ClosedAt = &future

	m := &models.ReportModel{GeneratedAt: now, OtherActive: []models.EnrichedCase{bad}}
	assert.Len(t, Verify(m), 4)
}
