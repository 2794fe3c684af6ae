// Package reconcile brings the JIRA statuses of an existing Markdown report
// in line with the authority by editing only the affected status cells.
package reconcile

import (
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/bobmcallan/tamreport/internal/common"
	"github.com/bobmcallan/tamreport/internal/models"
)

const idPattern = `[A-Z]{2,}(?:RFE)?-\d+`

var (
	// | ID | col | col | status |
	pipeRowPattern = regexp.MustCompile(`\| *(` + idPattern + `) *\|[^|\n]*\|[^|\n]*\| *([^|\n]+?) *\|`)
	// ID<ws>case-number<ws>...<ws>status
	tabRowPattern = regexp.MustCompile(`(?m)(` + idPattern + `)[ \t]+\d+[ \t]+.*?[ \t]+(\w+)[ \t]*\r?$`)
)

// ParseReport locates every JIRA row in content, in file order. Rows are not
// deduplicated; see DistinctRows.
func ParseReport(content []byte) ([]models.ReportRow, error) {
	if !utf8.Valid(content) {
		return nil, common.Errorf(common.KindReportParseError, "reconcile", "report is not valid UTF-8 text")
	}
	if bytes.IndexByte(content, 0) >= 0 {
		return nil, common.Errorf(common.KindReportParseError, "reconcile", "report contains binary data")
	}

	text := string(content)
	var rows []models.ReportRow
	for _, re := range []*regexp.Regexp{pipeRowPattern, tabRowPattern} {
		for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
			rows = append(rows, models.ReportRow{
				JiraID:         text[m[2]:m[3]],
				ReportedStatus: text[m[4]:m[5]],
				Line:           strings.Count(text[:m[0]], "\n") + 1,
				StatusStart:    m[4],
				StatusEnd:      m[5],
			})
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].StatusStart < rows[j].StatusStart
	})
	return rows, nil
}

// DistinctRows keeps the first row of each JIRA id
func DistinctRows(rows []models.ReportRow) []models.ReportRow {
	seen := make(map[string]struct{}, len(rows))
	out := make([]models.ReportRow, 0, len(rows))
	for _, r := range rows {
		if _, ok := seen[r.JiraID]; ok {
			continue
		}
		seen[r.JiraID] = struct{}{}
		out = append(out, r)
	}
	return out
}

func parseIssue(path string, err error) models.ValidationIssue {
	return models.ValidationIssue{
		IssueType:      models.IssueReportParseError,
		Severity:       models.SeverityMedium,
		Description:    fmt.Sprintf("Report could not be parsed: %v", err),
		Location:       path,
		Recommendation: "Check the report file is a readable Markdown report",
	}
}
