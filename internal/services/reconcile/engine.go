package reconcile

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/bobmcallan/tamreport/internal/common"
	"github.com/bobmcallan/tamreport/internal/models"
	"github.com/bobmcallan/tamreport/internal/storage/snapshotfs"
)

// LastUpdatedLayout formats the timestamp on the "Last Updated" line
const LastUpdatedLayout = "2006-01-02 15:04:05"

var lastUpdatedPattern = regexp.MustCompile(`(?m)^([*_ ]*Last Updated:[*_]*[ \t]*)[^\r\n]*`)

// Authority is the resolved JIRA state a report is reconciled against
type Authority struct {
	// Status maps resolved ids to their authoritative status.
	Status map[string]string
	// Failed maps unresolved ids to the failure reason.
	Failed map[string]string
}

// AuthorityFromCases collects resolved statuses and failures from enriched cases
func AuthorityFromCases(cases []models.EnrichedCase) Authority {
	a := Authority{Status: make(map[string]string), Failed: make(map[string]string)}
	for _, c := range cases {
		for id, st := range c.Jira {
			a.Status[id] = st.Status
		}
		for _, e := range c.EnrichmentErrors {
			a.Failed[e.JiraID] = e.Reason
		}
	}
	for id := range a.Status {
		delete(a.Failed, id)
	}
	return a
}

// ComputeChanges compares each distinct row's reported status with the
// authority (case-insensitive). Ids without an authoritative status never
// produce changes; ids the authority failed on produce warnings.
func ComputeChanges(rows []models.ReportRow, authority Authority) ([]models.StatusChange, []string) {
	changes := []models.StatusChange{}
	var warnings []string
	for _, row := range DistinctRows(rows) {
		status, ok := authority.Status[row.JiraID]
		if !ok {
			if reason, failed := authority.Failed[row.JiraID]; failed {
				warnings = append(warnings, fmt.Sprintf("%s (line %d) not reconciled: authority lookup %s", row.JiraID, row.Line, reason))
			}
			continue
		}
		if strings.EqualFold(strings.TrimSpace(row.ReportedStatus), strings.TrimSpace(status)) {
			continue
		}
		changes = append(changes, models.StatusChange{JiraID: row.JiraID, Old: row.ReportedStatus, New: status})
	}
	return changes, warnings
}

// Apply rewrites the status cells named by changes and returns the new
// content with the number of rows edited. Every row of a changed id whose
// status equals the change's old value is edited. When any row changes the
// "Last Updated" line is refreshed or inserted.
func Apply(content string, rows []models.ReportRow, changes []models.StatusChange, authorMarker string, ts time.Time) (string, int) {
	byID := make(map[string]models.StatusChange, len(changes))
	for _, c := range changes {
		byID[c.JiraID] = c
	}

	type edit struct {
		start, end int
		text       string
	}
	var edits []edit
	for _, r := range rows {
		c, ok := byID[r.JiraID]
		if !ok || !strings.EqualFold(r.ReportedStatus, c.Old) {
			continue
		}
		edits = append(edits, edit{start: r.StatusStart, end: r.StatusEnd, text: c.New})
	}
	if len(edits) == 0 {
		return content, 0
	}

	// Back to front keeps earlier offsets valid
	sort.Slice(edits, func(i, j int) bool { return edits[i].start > edits[j].start })
	out := content
	for _, e := range edits {
		out = out[:e.start] + e.text + out[e.end:]
	}
	return SetLastUpdated(out, authorMarker, ts), len(edits)
}

// SetLastUpdated replaces the timestamp of an existing "Last Updated" line or
// inserts one after the first line containing authorMarker, or at the top
// when no line does.
func SetLastUpdated(content, authorMarker string, ts time.Time) string {
	stamp := ts.Format(LastUpdatedLayout)
	if loc := lastUpdatedPattern.FindStringSubmatchIndex(content); loc != nil {
		return content[:loc[0]] + content[loc[2]:loc[3]] + stamp + content[loc[1]:]
	}

	newline := lineEnding(content)
	line := "Last Updated: " + stamp + newline
	if authorMarker != "" {
		if i := strings.Index(content, authorMarker); i >= 0 {
			eol := strings.IndexByte(content[i:], '\n')
			if eol < 0 {
				return content + newline + line
			}
			at := i + eol + 1
			return content[:at] + line + content[at:]
		}
	}
	return line + content
}

// lineEnding reports the line terminator of the first line in content
func lineEnding(content string) string {
	if i := strings.IndexByte(content, '\n'); i > 0 && content[i-1] == '\r' {
		return "\r\n"
	}
	return "\n"
}

// Engine reconciles report files on disk
type Engine struct {
	authorMarker string
	now          func() time.Time
	logger       *common.Logger
}

// NewEngine creates an engine anchoring "Last Updated" to authorMarker
func NewEngine(authorMarker string, logger *common.Logger) *Engine {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &Engine{authorMarker: authorMarker, now: time.Now, logger: logger}
}

// WithClock replaces the clock, for tests
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Options controls one reconciliation
type Options struct {
	DryRun bool
}

// Reconcile parses the report at path, computes the change set against
// authority and, unless DryRun is set, backs the file up and writes the
// edited content atomically. Parse failures yield an empty change set and a
// report_parse_error issue. A failed write after the backup returns a
// ReportWriteError carrying the backup path.
func (e *Engine) Reconcile(path string, authority Authority, opts Options) (*models.ReconcileResult, error) {
	result := &models.ReconcileResult{
		ReportPath: path,
		Changes:    []models.StatusChange{},
	}

	content, err := os.ReadFile(path)
	if err != nil {
		err = common.NewError(common.KindReportParseError, "reconcile", fmt.Errorf("failed to read report: %w", err))
		e.logger.Warn().Err(err).Str("path", path).Msg("Report unreadable, no changes proposed")
		result.Issues = append(result.Issues, parseIssue(path, err))
		return result, nil
	}
	rows, err := ParseReport(content)
	if err != nil {
		e.logger.Warn().Err(err).Str("path", path).Msg("Report unparseable, no changes proposed")
		result.Issues = append(result.Issues, parseIssue(path, err))
		return result, nil
	}

	changes, warnings := ComputeChanges(rows, authority)
	result.Changes = changes
	result.Warnings = warnings
	result.UpdatesMade = len(changes)

	e.logger.Info().
		Str("path", path).
		Int("rows", len(rows)).
		Int("changes", len(changes)).
		Int("warnings", len(warnings)).
		Bool("dry_run", opts.DryRun).
		Msg("Report reconciled against authority")

	if len(changes) == 0 {
		result.Content = string(content)
		return result, nil
	}

	now := e.now()
	updated, edited := Apply(string(content), rows, changes, e.authorMarker, now)
	result.Content = updated
	result.Diff = unifiedDiff(path, string(content), updated)
	if opts.DryRun {
		return result, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return result, &common.Error{Kind: common.KindReportWriteError, Component: "reconcile", Stage: "backup", Err: err}
	}
	backup, err := snapshotfs.BackupFile(path, now)
	if err != nil {
		return result, &common.Error{Kind: common.KindReportWriteError, Component: "reconcile", Stage: "backup", Err: err}
	}
	result.BackupPath = backup

	if err := snapshotfs.WriteFileAtomic(path, []byte(updated), info.Mode().Perm()); err != nil {
		return result, &common.Error{
			Kind:       common.KindReportWriteError,
			Component:  "reconcile",
			Stage:      "write",
			BackupPath: backup,
			Err:        err,
		}
	}
	result.Applied = true

	e.logger.Info().
		Str("path", path).
		Str("backup", backup).
		Int("rows_edited", edited).
		Msg("Report updated")
	return result, nil
}

// unifiedDiff renders the edit as a unified diff with one line of context
func unifiedDiff(path, before, after string) string {
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(before),
		B:        difflib.SplitLines(after),
		FromFile: path,
		ToFile:   path + " (reconciled)",
		Context:  1,
	})
	if err != nil {
		return ""
	}
	return diff
}
