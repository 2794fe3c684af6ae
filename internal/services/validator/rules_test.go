package validator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/tamreport/internal/common"
	"github.com/bobmcallan/tamreport/internal/models"
)

var generatedAt = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

func enriched(number string, kind models.CaseKind, refs ...string) models.EnrichedCase {
	c := models.EnrichedCase{
		ClassifiedCase: models.ClassifiedCase{
			CaseRecord: models.CaseRecord{
				CaseNumber: number,
				Summary:    "Ansible job template fails",
				CreatedAt:  generatedAt.AddDate(0, -1, 0),
				UpdatedAt:  generatedAt.AddDate(0, 0, -1),
				CreatedRaw: "2026-09-18",
				UpdatedRaw: "2026-10-17T09:00:00Z",
			},
			Kind:     kind,
			Phase:    models.PhaseActive,
			JiraRefs: refs,
		},
		Jira: map[string]models.JiraIssueState{},
	}
	for _, r := range refs {
		c.Jira[r] = models.JiraIssueState{Key: r, Status: "New"}
	}
	return c
}

func issueTypes(issues []models.ValidationIssue) []string {
	out := make([]string, 0, len(issues))
	for _, i := range issues {
		out = append(out, i.IssueType)
	}
	return out
}

func newRules() *RuleSet {
	return NewRuleSet(common.NewDefaultConfig().Validation)
}

func TestCheckCase_CleanCase(t *testing.T) {
	c := enriched("04244831", models.KindRFE, "AAPRFE-762")
	assert.Empty(t, newRules().CheckCase(&c, models.SectionActiveRFEs, generatedAt))
}

func TestCheckCase_IdentifierRules(t *testing.T) {
	rfe := enriched("04244831", models.KindRFE, "AAP-762")
	issues := newRules().CheckCase(&rfe, models.SectionActiveRFEs, generatedAt)
	assert.Equal(t, []string{models.IssueInvalidRFEIdentifier}, issueTypes(issues))
	assert.Equal(t, models.SeverityHigh, issues[0].Severity)

	bug := enriched("04244832", models.KindBug, "AAPRFE-1")
	assert.Empty(t, newRules().CheckCase(&bug, models.SectionActiveBugs, generatedAt), "AAPRFE-1 is also a valid bug id shape")

	other := enriched("04244833", models.KindOther, "whatever")
	assert.Empty(t, newRules().CheckCase(&other, models.SectionOtherActive, generatedAt))
}

func TestCheckCase_UnresolvedPrimaryStillChecked(t *testing.T) {
	c := enriched("04244831", models.KindRFE)
	c.EnrichmentErrors = []models.EnrichmentError{{JiraID: "AAP-5", Reason: models.ReasonNotFound}}
	issues := newRules().CheckCase(&c, models.SectionActiveRFEs, generatedAt)
	assert.Equal(t, []string{models.IssueInvalidRFEIdentifier}, issueTypes(issues))
}

func TestCheckCase_CaseNumberAndDates(t *testing.T) {
	c := enriched("4244831", models.KindOther)
	c.CreatedRaw = "18.09.2026"
	c.ClosedRaw = "10/19/2026"
	closed := generatedAt.Add(24 * time.Hour)
	c.ClosedAt = &closed

	issues := newRules().CheckCase(&c, models.SectionClosedCases, generatedAt)
	assert.Equal(t, []string{
		models.IssueInvalidCaseNumber,
		models.IssueInvalidDateFormat,
		models.IssueFutureClosureDate,
	}, issueTypes(issues))
}

func TestCheckCase_UpdatedBeforeCreated(t *testing.T) {
	c := enriched("04244831", models.KindOther)
	c.UpdatedAt = c.CreatedAt.Add(-time.Hour)
	issues := newRules().CheckCase(&c, models.SectionOtherActive, generatedAt)
	assert.Equal(t, []string{models.IssueUpdatedBeforeCreated}, issueTypes(issues))
	assert.Equal(t, models.SeverityMedium, issues[0].Severity)
}

func TestCheckCase_Severity(t *testing.T) {
	for sev, valid := range map[string]bool{
		"1": true, "4": true, "3 (Normal)": true, "Urgent": true, "low": true,
		"5": false, "Critical": false, "Severe": false,
	} {
		c := enriched("04244831", models.KindOther)
		c.Severity = sev
		issues := newRules().CheckCase(&c, models.SectionOtherActive, generatedAt)
		if valid {
			assert.Empty(t, issues, sev)
		} else {
			assert.Equal(t, []string{models.IssueInvalidSeverity}, issueTypes(issues), sev)
		}
	}
}

func TestCheckCase_ProductTitle(t *testing.T) {
	c := enriched("04244831", models.KindOther)
	c.Product = "ansible"
	assert.Empty(t, newRules().CheckCase(&c, models.SectionOtherActive, generatedAt))

	c.Summary = "OpenShift router drops connections"
	issues := newRules().CheckCase(&c, models.SectionOtherActive, generatedAt)
	assert.Equal(t, []string{models.IssueProductTitleMismatch}, issueTypes(issues))

	c.Product = "Unconfigured Product"
	assert.Empty(t, newRules().CheckCase(&c, models.SectionOtherActive, generatedAt))
}

func TestCheckCase_StatusConflictIsCritical(t *testing.T) {
	c := enriched("04244831", models.KindOther)
	c.Status = "Closed"
	c.StatusConflict = true
	issues := newRules().CheckCase(&c, models.SectionOtherActive, generatedAt)
	require.Len(t, issues, 1)
	assert.Equal(t, models.IssueCaseStatusInconsistency, issues[0].IssueType)
	assert.Equal(t, models.SeverityCritical, issues[0].Severity)
}

func TestEvaluate_FutureClosureDate(t *testing.T) {
	closed := generatedAt.Add(24 * time.Hour)
	c := enriched("04244831", models.KindBug, "AAP-1")
	c.Phase = models.PhaseClosed
	c.ClosedAt = &closed
	m := &models.ReportModel{GeneratedAt: generatedAt, ClosedCases: []models.EnrichedCase{c}}

	NewValidator(common.NewDefaultConfig(), nil).Evaluate(m)
	assert.Equal(t, []string{models.IssueFutureClosureDate}, issueTypes(m.Issues))
	assert.GreaterOrEqual(t, m.AccuracyScore, 0.7-1e-9)
	assert.LessOrEqual(t, m.AccuracyScore, 0.95)
	assert.Contains(t, []models.ValidationStatus{models.StatusInaccurate, models.StatusInconsistent}, m.Status)
}

func TestEvaluate_EmptyModelIsAccurate(t *testing.T) {
	m := &models.ReportModel{GeneratedAt: generatedAt}
	v := NewValidator(common.NewDefaultConfig(), nil)
	v.Evaluate(m)
	assert.Equal(t, 1.0, m.AccuracyScore)
	assert.Equal(t, models.StatusAccurate, m.Status)

	r := v.BuildReport(m, nil, generatedAt)
	assert.NotEmpty(t, r.ReportID)
	assert.Equal(t, 0, r.ItemsValidated)
	assert.NotNil(t, r.Issues)
	assert.Equal(t, []string{"Report meets the customer-facing threshold and is safe to publish"}, r.Recommendations)
	assert.Equal(t, "Validated 0 items: 0 issues (0 critical, 0 high, 0 medium, 0 low); accuracy 100.0%, status Accurate", r.Summary)
}

func TestRecommendations_MostSevereFirstAndDistinct(t *testing.T) {
	issues := []models.ValidationIssue{
		{Severity: models.SeverityMedium, Recommendation: "medium fix"},
		{Severity: models.SeverityCritical, Recommendation: "critical fix"},
		{Severity: models.SeverityMedium, Recommendation: "medium fix"},
	}
	recs := Recommendations(issues, models.StatusInaccurate)
	assert.Equal(t, []string{
		"critical fix",
		"medium fix",
		"Do not publish: resolve critical and high issues and re-run validation",
	}, recs)
}
