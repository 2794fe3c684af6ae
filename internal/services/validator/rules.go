package validator

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/bobmcallan/tamreport/internal/common"
	"github.com/bobmcallan/tamreport/internal/models"
)

var (
	caseNumberPattern = regexp.MustCompile(`^\d{8}$`)
	rfeIDPattern      = regexp.MustCompile(`^[A-Z]+RFE-\d+$`)
	bugIDPattern      = regexp.MustCompile(`^[A-Z]+-\d+$`)
)

var validSeverities = map[string]struct{}{
	"1": {}, "2": {}, "3": {}, "4": {},
	"urgent": {}, "high": {}, "medium": {}, "low": {},
}

// RuleSet applies per-case content rules
type RuleSet struct {
	productKeywords map[string][]string
}

// NewRuleSet creates a rule set from the [validation] section
func NewRuleSet(cfg common.ValidationConfig) *RuleSet {
	keywords := make(map[string][]string, len(cfg.ProductKeywords))
	for product, kws := range cfg.ProductKeywords {
		lowered := make([]string, 0, len(kws))
		for _, kw := range kws {
			if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
				lowered = append(lowered, kw)
			}
		}
		keywords[strings.ToLower(strings.TrimSpace(product))] = lowered
	}
	return &RuleSet{productKeywords: keywords}
}

// CheckModel applies the content rules to every case in the model, in
// section order
func (r *RuleSet) CheckModel(m *models.ReportModel) []models.ValidationIssue {
	var issues []models.ValidationIssue
	for _, section := range m.Sections() {
		for i := range section.Cases {
			issues = append(issues, r.CheckCase(&section.Cases[i], section.Name, m.GeneratedAt)...)
		}
	}
	return issues
}

// CheckCase applies the content rules to one case
func (r *RuleSet) CheckCase(c *models.EnrichedCase, section string, generatedAt time.Time) []models.ValidationIssue {
	var issues []models.ValidationIssue
	loc := fmt.Sprintf("%s: case %s", section, c.CaseNumber)

	// 1. Case number format
	if !caseNumberPattern.MatchString(c.CaseNumber) {
		issues = append(issues, models.ValidationIssue{
			IssueType:      models.IssueInvalidCaseNumber,
			Severity:       models.SeverityHigh,
			Description:    fmt.Sprintf("Case number %q is not an 8-digit identifier", c.CaseNumber),
			Location:       loc,
			ExpectedValue:  "8 digits",
			ActualValue:    c.CaseNumber,
			Recommendation: "Verify the case number against the support portal",
		})
	}

	// 2. Primary JIRA identifier shape for kind-definite cases
	if ids := c.ReferencedIDs(); len(ids) > 0 {
		primary := ids[0]
		switch c.Kind {
		case models.KindRFE:
			if !rfeIDPattern.MatchString(primary) {
				issues = append(issues, models.ValidationIssue{
					IssueType:      models.IssueInvalidRFEIdentifier,
					Severity:       models.SeverityHigh,
					Description:    fmt.Sprintf("RFE case references %s, which is not an RFE identifier", primary),
					Location:       loc,
					ExpectedValue:  "<PROJECT>RFE-<number>",
					ActualValue:    primary,
					Recommendation: "Link the case to its RFE project issue",
				})
			}
		case models.KindBug:
			if !bugIDPattern.MatchString(primary) {
				issues = append(issues, models.ValidationIssue{
					IssueType:      models.IssueInvalidBugIdentifier,
					Severity:       models.SeverityHigh,
					Description:    fmt.Sprintf("Bug case references %s, which is not a bug identifier", primary),
					Location:       loc,
					ExpectedValue:  "<PROJECT>-<number>",
					ActualValue:    primary,
					Recommendation: "Link the case to its bug tracker issue",
				})
			}
		}
	}

	// 3. Date formats
	for _, d := range []struct{ field, raw string }{
		{"created_at", c.CreatedRaw},
		{"updated_at", c.UpdatedRaw},
		{"closed_at", c.ClosedRaw},
	} {
		if d.raw != "" && !common.IsValidReportDate(d.raw) {
			issues = append(issues, models.ValidationIssue{
				IssueType:      models.IssueInvalidDateFormat,
				Severity:       models.SeverityMedium,
				Description:    fmt.Sprintf("%s %q is not a recognised date", d.field, d.raw),
				Location:       loc + " " + d.field,
				ExpectedValue:  "YYYY-MM-DD, MM/DD/YYYY or YYYY/MM/DD",
				ActualValue:    d.raw,
				Recommendation: "Normalise the date to YYYY-MM-DD",
			})
		}
	}

	// 4. Closure date not in the future
	if c.ClosedAt != nil && !generatedAt.IsZero() && c.ClosedAt.After(generatedAt) {
		issues = append(issues, models.ValidationIssue{
			IssueType:      models.IssueFutureClosureDate,
			Severity:       models.SeverityHigh,
			Description:    "Closure date is after the report generation time",
			Location:       loc + " closed_at",
			ExpectedValue:  "<= " + generatedAt.UTC().Format(time.RFC3339),
			ActualValue:    c.ClosedAt.UTC().Format(time.RFC3339),
			Recommendation: "Check the case closure date in the support portal",
		})
	}

	// 5. Updated not before created
	if !c.CreatedAt.IsZero() && !c.UpdatedAt.IsZero() && c.UpdatedAt.Before(c.CreatedAt) {
		issues = append(issues, models.ValidationIssue{
			IssueType:      models.IssueUpdatedBeforeCreated,
			Severity:       models.SeverityMedium,
			Description:    "Last update precedes creation",
			Location:       loc + " updated_at",
			ExpectedValue:  ">= " + c.CreatedAt.UTC().Format(time.RFC3339),
			ActualValue:    c.UpdatedAt.UTC().Format(time.RFC3339),
			Recommendation: "Re-fetch the case; the source returned inconsistent timestamps",
		})
	}

	// 6. Severity domain
	if sev := strings.TrimSpace(c.Severity); sev != "" {
		if _, ok := validSeverities[severityKey(sev)]; !ok {
			issues = append(issues, models.ValidationIssue{
				IssueType:      models.IssueInvalidSeverity,
				Severity:       models.SeverityMedium,
				Description:    fmt.Sprintf("Severity %q is outside the known domain", sev),
				Location:       loc + " severity",
				ExpectedValue:  "1-4, Urgent, High, Medium or Low",
				ActualValue:    sev,
				Recommendation: "Correct the case severity",
			})
		}
	}

	// 7. Product-title consistency
	if product := strings.TrimSpace(c.Product); product != "" {
		if keywords, ok := r.productKeywords[strings.ToLower(product)]; ok && len(keywords) > 0 {
			title := strings.ToLower(c.Summary)
			matched := false
			for _, kw := range keywords {
				if strings.Contains(title, kw) {
					matched = true
					break
				}
			}
			if !matched {
				issues = append(issues, models.ValidationIssue{
					IssueType:      models.IssueProductTitleMismatch,
					Severity:       models.SeverityMedium,
					Description:    fmt.Sprintf("Title does not mention product %s", product),
					Location:       loc + " summary",
					ExpectedValue:  "one of: " + strings.Join(keywords, ", "),
					ActualValue:    c.Summary,
					Recommendation: "Confirm the product label or update the case title",
				})
			}
		}
	}

	// 8. Closed flag contradicts status
	if c.StatusConflict {
		issues = append(issues, models.ValidationIssue{
			IssueType:      models.IssueCaseStatusInconsistency,
			Severity:       models.SeverityCritical,
			Description:    fmt.Sprintf("Case is flagged %s but its status is %q", c.Phase, c.Status),
			Location:       loc,
			ActualValue:    c.Status,
			Recommendation: "Resolve the case state in the support portal before publishing",
		})
	}

	return issues
}

// severityKey reduces "3 (Normal)" style severities to their leading token
func severityKey(sev string) string {
	fields := strings.FieldsFunc(strings.ToLower(sev), func(r rune) bool {
		return r == ' ' || r == '(' || r == ')' || r == '-'
	})
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
