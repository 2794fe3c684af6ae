package validator

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/bobmcallan/tamreport/internal/common"
	"github.com/bobmcallan/tamreport/internal/models"
)

// Validator scores a report model and builds its validation report
type Validator struct {
	rules      *RuleSet
	thresholds common.AccuracyThresholds
	logger     *common.Logger
}

// NewValidator creates a validator from config
func NewValidator(config *common.Config, logger *common.Logger) *Validator {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &Validator{
		rules:      NewRuleSet(config.Validation),
		thresholds: config.AccuracyThresholds,
		logger:     logger,
	}
}

// Thresholds returns the configured accuracy thresholds
func (v *Validator) Thresholds() common.AccuracyThresholds {
	return v.thresholds
}

// Evaluate appends content-rule issues to the model's existing issues and
// sets its accuracy score and status.
func (v *Validator) Evaluate(m *models.ReportModel) {
	m.Issues = append(m.Issues, v.rules.CheckModel(m)...)
	m.AccuracyScore = Score(m.Issues, m.DistinctCaseCount())
	m.Status = Status(m.AccuracyScore, m.Issues, v.thresholds)

	counts := CountBySeverity(m.Issues)
	v.logger.Info().
		Str("customer", m.Customer.DisplayName).
		Int("cases", m.DistinctCaseCount()).
		Int("critical", counts[models.SeverityCritical]).
		Int("high", counts[models.SeverityHigh]).
		Int("medium", counts[models.SeverityMedium]).
		Int("low", counts[models.SeverityLow]).
		Float64("score", m.AccuracyScore).
		Str("status", string(m.Status)).
		Msg("Report validated")
}

// BuildReport creates the persisted validation artifact for a scored model
func (v *Validator) BuildReport(m *models.ReportModel, warnings []string, now time.Time) *models.ValidationReport {
	issues := m.Issues
	if issues == nil {
		issues = []models.ValidationIssue{}
	}
	excluded := make([]string, 0, len(m.ExternalTrackerExcluded))
	for _, c := range m.ExternalTrackerExcluded {
		excluded = append(excluded, c.CaseNumber)
	}

	r := &models.ValidationReport{
		ReportID:               uuid.NewString(),
		Customer:               m.Customer.DisplayName,
		ValidationTimestamp:    now,
		OverallAccuracyScore:   m.AccuracyScore,
		ValidationStatus:       m.Status,
		ItemsValidated:         m.DistinctCaseCount(),
		IssueCounts:            CountBySeverity(issues),
		Issues:                 issues,
		Warnings:               warnings,
		Source:                 m.Source,
		ExternalTrackerExclude: excluded,
	}
	r.Recommendations = Recommendations(issues, m.Status)
	r.Summary = Summary(r)
	return r
}

// Recommendations lists distinct issue recommendations, most severe first,
// followed by the publishing verdict
func Recommendations(issues []models.ValidationIssue, status models.ValidationStatus) []string {
	sorted := make([]models.ValidationIssue, len(issues))
	copy(sorted, issues)
	rank := make(map[models.IssueSeverity]int, len(models.AllSeverities))
	for i, s := range models.AllSeverities {
		rank[s] = i
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return rank[sorted[i].Severity] < rank[sorted[j].Severity]
	})

	seen := make(map[string]struct{})
	recs := []string{}
	for _, issue := range sorted {
		if issue.Recommendation == "" {
			continue
		}
		if _, dup := seen[issue.Recommendation]; dup {
			continue
		}
		seen[issue.Recommendation] = struct{}{}
		recs = append(recs, issue.Recommendation)
	}

	switch status {
	case models.StatusAccurate:
		recs = append(recs, "Report meets the customer-facing threshold and is safe to publish")
	case models.StatusInconsistent:
		recs = append(recs, "Review the listed issues before sharing the report with the customer")
	case models.StatusInaccurate:
		recs = append(recs, "Do not publish: resolve critical and high issues and re-run validation")
	}
	return recs
}

// Summary renders a one-line description of a validation report
func Summary(r *models.ValidationReport) string {
	total := 0
	for _, n := range r.IssueCounts {
		total += n
	}
	return fmt.Sprintf("Validated %d items: %d issues (%d critical, %d high, %d medium, %d low); accuracy %.1f%%, status %s",
		r.ItemsValidated,
		total,
		r.IssueCounts[models.SeverityCritical],
		r.IssueCounts[models.SeverityHigh],
		r.IssueCounts[models.SeverityMedium],
		r.IssueCounts[models.SeverityLow],
		r.OverallAccuracyScore*100,
		r.ValidationStatus,
	)
}

// AddIssues appends issues found after Evaluate and rescores the model.
func (v *Validator) AddIssues(m *models.ReportModel, issues ...models.ValidationIssue) {
	m.Issues = append(m.Issues, issues...)
	m.AccuracyScore = Score(m.Issues, m.DistinctCaseCount())
	m.Status = Status(m.AccuracyScore, m.Issues, v.thresholds)
}
