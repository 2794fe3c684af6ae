// Package classifier assigns kind, phase, priority, JIRA references and the
// external-tracker flag to case records.
package classifier

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bobmcallan/tamreport/internal/common"
	"github.com/bobmcallan/tamreport/internal/models"
)

// Classifier holds the compiled vocabularies from a ClassifierConfig
type Classifier struct {
	rfeTypes        []string
	bugTypes        []string
	rfeTokens       []string
	bugTokens       []string
	closedStatuses  map[string]struct{}
	trackers        []string
	jiraPattern     *regexp.Regexp
	allowedProjects map[string]struct{}
	logger          *common.Logger
}

// NewClassifier compiles cfg. An empty jira_id_regex uses the default pattern.
func NewClassifier(cfg common.ClassifierConfig, logger *common.Logger) (*Classifier, error) {
	pattern := cfg.JiraIDRegex
	if pattern == "" {
		pattern = common.DefaultJiraIDPattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, common.NewError(common.KindConfigInvalid, "classifier", fmt.Errorf("compile jira_id_regex: %w", err))
	}
	if logger == nil {
		logger = common.NewSilentLogger()
	}

	c := &Classifier{
		rfeTypes:        trimAll(cfg.RFETypeNames),
		bugTypes:        trimAll(cfg.BugTypeNames),
		rfeTokens:       lowerAll(cfg.RFESubjectTokens),
		bugTokens:       lowerAll(cfg.BugSubjectTokens),
		closedStatuses:  make(map[string]struct{}, len(cfg.ClosedStatusSet)),
		trackers:        lowerAll(cfg.ExternalTrackerSubstrings),
		jiraPattern:     re,
		allowedProjects: make(map[string]struct{}, len(cfg.AllowedJiraProjects)),
		logger:          logger,
	}
	for _, s := range cfg.ClosedStatusSet {
		c.closedStatuses[strings.ToLower(strings.TrimSpace(s))] = struct{}{}
	}
	for _, p := range cfg.AllowedJiraProjects {
		c.allowedProjects[strings.ToUpper(strings.TrimSpace(p))] = struct{}{}
	}
	return c, nil
}

// Classify derives every classification field for one record
func (c *Classifier) Classify(rec models.CaseRecord) models.ClassifiedCase {
	phase, conflict := c.Phase(rec)
	cc := models.ClassifiedCase{
		CaseRecord:          rec,
		Kind:                c.Kind(rec),
		Phase:               phase,
		Priority:            Priority(rec.Severity, rec.Status),
		JiraRefs:            c.ExtractJiraRefs(append([]string{rec.Summary, rec.Description}, rec.Tags...)...),
		ExternalTrackerFlag: c.IsExternalTracker(rec),
		StatusConflict:      conflict,
	}
	if conflict {
		c.logger.Debug().
			Str("case", rec.CaseNumber).
			Str("status", rec.Status).
			Msg("Closed flag disagrees with status")
	}
	return cc
}

// ClassifyAll classifies records in order
func (c *Classifier) ClassifyAll(records []models.CaseRecord) []models.ClassifiedCase {
	out := make([]models.ClassifiedCase, 0, len(records))
	for _, rec := range records {
		out = append(out, c.Classify(rec))
	}
	return out
}

// Kind applies explicit case type first, then subject tokens, then Other.
// When both RFE and Bug tokens occur the earliest one in the subject wins.
func (c *Classifier) Kind(rec models.CaseRecord) models.CaseKind {
	caseType := strings.TrimSpace(rec.CaseType)
	if caseType != "" {
		if containsFold(c.rfeTypes, caseType) {
			return models.KindRFE
		}
		if containsFold(c.bugTypes, caseType) {
			return models.KindBug
		}
	}

	subject := strings.ToLower(rec.Summary)
	rfeAt := firstIndex(subject, c.rfeTokens)
	bugAt := firstIndex(subject, c.bugTokens)
	switch {
	case rfeAt >= 0 && (bugAt < 0 || rfeAt <= bugAt):
		return models.KindRFE
	case bugAt >= 0:
		return models.KindBug
	}
	return models.KindOther
}

// Phase uses the explicit closed flag when present, else the closed status
// set. conflict is true when an explicit flag contradicts a non-empty status.
func (c *Classifier) Phase(rec models.CaseRecord) (phase models.CasePhase, conflict bool) {
	status := strings.ToLower(strings.TrimSpace(rec.Status))
	_, statusClosed := c.closedStatuses[status]

	if rec.IsClosed != nil {
		if status != "" && *rec.IsClosed != statusClosed {
			conflict = true
		}
		if *rec.IsClosed {
			return models.PhaseClosed, conflict
		}
		return models.PhaseActive, conflict
	}
	if statusClosed {
		return models.PhaseClosed, false
	}
	return models.PhaseActive, false
}

// IsClosedStatus reports membership of status in the closed status set
func (c *Classifier) IsClosedStatus(status string) bool {
	_, ok := c.closedStatuses[strings.ToLower(strings.TrimSpace(status))]
	return ok
}

var (
	highSeverity   = map[string]struct{}{"1": {}, "urgent": {}, "critical": {}, "high": {}}
	mediumSeverity = map[string]struct{}{"2": {}, "medium": {}, "normal": {}}
	lowSeverity    = map[string]struct{}{"3": {}, "4": {}, "low": {}, "minor": {}}
)

// Priority maps severity to a priority. Severities such as "2 (High)" are
// judged by their leading token. Without a recognised severity, escalation
// keywords in the status raise the priority to High; otherwise Medium.
func Priority(severity, status string) models.CasePriority {
	if token := severityToken(severity); token != "" {
		if _, ok := highSeverity[token]; ok {
			return models.PriorityHigh
		}
		if _, ok := mediumSeverity[token]; ok {
			return models.PriorityMedium
		}
		if _, ok := lowSeverity[token]; ok {
			return models.PriorityLow
		}
	}
	s := strings.ToLower(status)
	for _, kw := range []string{"urgent", "critical", "escalat"} {
		if strings.Contains(s, kw) {
			return models.PriorityHigh
		}
	}
	return models.PriorityMedium
}

func severityToken(severity string) string {
	fields := strings.FieldsFunc(strings.ToLower(severity), func(r rune) bool {
		return r == ' ' || r == '(' || r == ')' || r == '-' || r == '\t'
	})
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// ExtractJiraRefs returns JIRA ids found in texts, deduplicated in
// first-occurrence order and restricted to allowed projects when configured.
func (c *Classifier) ExtractJiraRefs(texts ...string) []string {
	seen := make(map[string]struct{})
	refs := []string{}
	for _, text := range texts {
		if text == "" {
			continue
		}
		for _, m := range c.jiraPattern.FindAllStringSubmatch(text, -1) {
			id := m[0]
			if len(m) > 1 && m[1] != "" {
				id = m[1]
			}
			if _, dup := seen[id]; dup {
				continue
			}
			if !c.projectAllowed(id) {
				continue
			}
			seen[id] = struct{}{}
			refs = append(refs, id)
		}
	}
	return refs
}

// ProjectOf returns the project prefix of a JIRA id
func ProjectOf(id string) string {
	if i := strings.LastIndex(id, "-"); i > 0 {
		return id[:i]
	}
	return id
}

func (c *Classifier) projectAllowed(id string) bool {
	if len(c.allowedProjects) == 0 {
		return true
	}
	_, ok := c.allowedProjects[ProjectOf(id)]
	return ok
}

// IsExternalTracker reports whether the subject, description or tags mention
// a configured tracker substring
func (c *Classifier) IsExternalTracker(rec models.CaseRecord) bool {
	if len(c.trackers) == 0 {
		return false
	}
	texts := append([]string{rec.Summary, rec.Description}, rec.Tags...)
	for _, text := range texts {
		lower := strings.ToLower(text)
		for _, t := range c.trackers {
			if strings.Contains(lower, t) {
				return true
			}
		}
	}
	return false
}

func firstIndex(s string, tokens []string) int {
	best := -1
	for _, tok := range tokens {
		if tok == "" {
			continue
		}
		if i := strings.Index(s, tok); i >= 0 && (best < 0 || i < best) {
			best = i
		}
	}
	return best
}

func containsFold(list []string, s string) bool {
	for _, item := range list {
		if strings.EqualFold(item, s) {
			return true
		}
	}
	return false
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func lowerAll(in []string) []string {
	out := trimAll(in)
	for i := range out {
		out[i] = strings.ToLower(out[i])
	}
	return out
}
