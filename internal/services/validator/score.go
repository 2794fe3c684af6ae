package validator

import (
	"github.com/bobmcallan/tamreport/internal/common"
	"github.com/bobmcallan/tamreport/internal/models"
)

// Severity weights subtracted from the accuracy score
var severityWeights = map[models.IssueSeverity]float64{
	models.SeverityCritical: 0.5,
	models.SeverityHigh:     0.3,
	models.SeverityMedium:   0.1,
	models.SeverityLow:      0.05,
}

// Weight returns the score weight of a severity
func Weight(s models.IssueSeverity) float64 {
	return severityWeights[s]
}

// Score starts at 1.0, subtracts each issue's weight divided by
// max(1, itemCount), and clamps to [0, 1].
func Score(issues []models.ValidationIssue, itemCount int) float64 {
	divisor := float64(itemCount)
	if divisor < 1 {
		divisor = 1
	}
	score := 1.0
	for _, issue := range issues {
		score -= Weight(issue.Severity) / divisor
	}
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// Status maps a score and its issues to a verdict
func Status(score float64, issues []models.ValidationIssue, t common.AccuracyThresholds) models.ValidationStatus {
	counts := CountBySeverity(issues)
	switch {
	case counts[models.SeverityCritical] > 0:
		return models.StatusInaccurate
	case counts[models.SeverityHigh] > 0 && score < t.Minimum:
		return models.StatusInaccurate
	case score < t.Minimum:
		return models.StatusInaccurate
	case score < t.CustomerFacing || score < t.Accurate:
		return models.StatusInconsistent
	}
	return models.StatusAccurate
}

// CountBySeverity counts issues per severity; every severity has an entry
func CountBySeverity(issues []models.ValidationIssue) map[models.IssueSeverity]int {
	counts := make(map[models.IssueSeverity]int, len(models.AllSeverities))
	for _, s := range models.AllSeverities {
		counts[s] = 0
	}
	for _, issue := range issues {
		counts[issue.Severity]++
	}
	return counts
}

// RecomputeScore derives the score from a persisted validation report
func RecomputeScore(r *models.ValidationReport) float64 {
	return Score(r.Issues, r.ItemsValidated)
}
