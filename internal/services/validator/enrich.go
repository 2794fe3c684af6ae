// Package validator enriches classified cases with authoritative JIRA state,
// applies content rules and scores report accuracy.
package validator

import (
	"context"
	"fmt"
	"strings"

	"github.com/bobmcallan/tamreport/internal/common"
	"github.com/bobmcallan/tamreport/internal/interfaces"
	"github.com/bobmcallan/tamreport/internal/models"
)

// Enricher resolves JIRA references against the authority
type Enricher struct {
	authority interfaces.JiraAuthority
	observer  interfaces.Observer
	logger    *common.Logger
}

// NewEnricher creates an enricher. A nil observer discards events.
func NewEnricher(authority interfaces.JiraAuthority, observer interfaces.Observer, logger *common.Logger) *Enricher {
	if observer == nil {
		observer = interfaces.NopObserver
	}
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &Enricher{authority: authority, observer: observer, logger: logger}
}

// EnrichmentResult is the output of one enrichment pass
type EnrichmentResult struct {
	Cases  []models.EnrichedCase
	Issues []models.ValidationIssue
	// Resolved maps each successfully looked-up id to its state.
	Resolved map[string]models.JiraIssueState
	// Failed maps each unresolved id to its failure reason.
	Failed map[string]string
	// Order lists distinct ids in first-encounter order.
	Order []string
}

// Enrich looks up every distinct JIRA id once, in first-encounter order, and
// attaches the results to each case. Per-id failures become enrichment errors
// and Medium issues. The run halts with AuthorityTransient only when ids were
// looked up, none resolved, and every failure was transient or circuit-open.
func (e *Enricher) Enrich(ctx context.Context, cases []models.ClassifiedCase) (*EnrichmentResult, error) {
	res := &EnrichmentResult{
		Resolved: make(map[string]models.JiraIssueState),
		Failed:   make(map[string]string),
	}

	// 1. Distinct ids, first-encounter order, with referencing cases
	referencedBy := make(map[string][]string)
	for _, c := range cases {
		for _, id := range c.JiraRefs {
			if _, ok := referencedBy[id]; !ok {
				res.Order = append(res.Order, id)
			}
			referencedBy[id] = appendUnique(referencedBy[id], c.CaseNumber)
		}
	}

	// 2. One lookup per id
	var lastUnavailable error
	for _, id := range res.Order {
		if err := ctx.Err(); err != nil {
			return nil, common.NewError(common.KindAuthorityTransient, "validator", fmt.Errorf("enrichment cancelled: %w", err))
		}
		state, err := e.authority.GetIssue(ctx, id)
		if err != nil {
			reason := Reason(err)
			res.Failed[id] = reason
			if reason == models.ReasonTransient || reason == models.ReasonCircuitOpen {
				lastUnavailable = err
			}
			e.observer.Observe(models.Event{
				Level:     models.EventLevelWarn,
				Component: "validator",
				Stage:     "enrich",
				Message:   "JIRA lookup failed",
				Fields:    map[string]any{"jira_id": id, "reason": reason, "error": err.Error()},
			})
			res.Issues = append(res.Issues, enrichmentIssue(id, reason, referencedBy[id]))
			continue
		}
		res.Resolved[id] = *state
		e.observer.Observe(models.Event{
			Level:     models.EventLevelDebug,
			Component: "validator",
			Stage:     "enrich",
			Message:   "JIRA lookup resolved",
			Fields:    map[string]any{"jira_id": id, "status": state.Status},
		})
	}

	if len(res.Order) > 0 && len(res.Resolved) == 0 && allUnavailable(res.Failed) {
		return nil, &common.Error{
			Kind:      common.KindAuthorityTransient,
			Component: "validator",
			Stage:     "enrich",
			Err:       fmt.Errorf("no JIRA reference could be resolved (%d ids): %w", len(res.Order), lastUnavailable),
		}
	}

	// 3. Attach per case; unresolved ids move to enrichment errors
	res.Cases = make([]models.EnrichedCase, 0, len(cases))
	for _, c := range cases {
		ec := models.EnrichedCase{
			ClassifiedCase: c,
			Jira:           make(map[string]models.JiraIssueState, len(c.JiraRefs)),
		}
		resolvedRefs := make([]string, 0, len(c.JiraRefs))
		for _, id := range c.JiraRefs {
			if state, ok := res.Resolved[id]; ok {
				ec.Jira[id] = state
				resolvedRefs = append(resolvedRefs, id)
				continue
			}
			ec.EnrichmentErrors = append(ec.EnrichmentErrors, models.EnrichmentError{JiraID: id, Reason: res.Failed[id]})
		}
		ec.JiraRefs = resolvedRefs
		res.Cases = append(res.Cases, ec)
	}

	e.logger.Info().
		Int("ids", len(res.Order)).
		Int("resolved", len(res.Resolved)).
		Int("failed", len(res.Failed)).
		Msg("JIRA enrichment complete")

	return res, nil
}

// Reason maps an authority error to an enrichment failure reason
func Reason(err error) string {
	switch common.KindOf(err) {
	case common.KindAuthorityNotFound:
		return models.ReasonNotFound
	case common.KindAuthorityDenied:
		return models.ReasonDenied
	case common.KindAuthorityMalformed:
		return models.ReasonMalformed
	case common.KindCircuitOpen:
		return models.ReasonCircuitOpen
	default:
		return models.ReasonTransient
	}
}

func allUnavailable(failed map[string]string) bool {
	if len(failed) == 0 {
		return false
	}
	for _, reason := range failed {
		if reason != models.ReasonTransient && reason != models.ReasonCircuitOpen {
			return false
		}
	}
	return true
}

func enrichmentIssue(id, reason string, caseNumbers []string) models.ValidationIssue {
	location := "jira " + id
	if len(caseNumbers) > 0 {
		location = fmt.Sprintf("jira %s (case %s)", id, strings.Join(caseNumbers, ", "))
	}
	if reason == models.ReasonNotFound {
		return models.ValidationIssue{
			IssueType:      models.IssueJiraNotFound,
			Severity:       models.SeverityMedium,
			Description:    fmt.Sprintf("JIRA issue %s does not exist in the authority", id),
			Location:       location,
			ActualValue:    id,
			Recommendation: "Correct or remove the JIRA reference on the case",
		}
	}
	return models.ValidationIssue{
		IssueType:      models.IssueJiraEnrichmentFailed,
		Severity:       models.SeverityMedium,
		Description:    fmt.Sprintf("JIRA issue %s could not be resolved: %s", id, reason),
		Location:       location,
		ActualValue:    reason,
		Recommendation: "Verify JIRA access and re-run the report",
	}
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}
