package rhcase

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/bobmcallan/tamreport/internal/common"
	"github.com/bobmcallan/tamreport/internal/models"
)

// Normalized source key names per canonical field, most preferred first
var fieldAliases = map[string][]string{
	"case_number":    {"casenumber", "case", "number", "caseid"},
	"summary":        {"summary", "subject", "title"},
	"description":    {"description"},
	"status":         {"status", "internalstatus"},
	"sbr_group":      {"sbrgroup", "sbrgroups", "sbr"},
	"account_number": {"accountnumber", "account"},
	"case_type":      {"casetype", "type"},
	"product":        {"product"},
	"tags":           {"tags", "keywords"},
	"severity":       {"severity"},
	"created_at":     {"createddate", "createdat", "created"},
	"updated_at":     {"lastmodifieddate", "lastmodified", "updateddate", "updatedat", "updated"},
	"closed_at":      {"closeddate", "closedat"},
	"is_closed":      {"isclosed", "closed"},
}

// canonicalField maps a normalized alias back to its canonical field
var canonicalField = func() map[string]string {
	m := make(map[string]string)
	for canon, aliases := range fieldAliases {
		for _, a := range aliases {
			m[a] = canon
		}
	}
	return m
}()

// Column order assumed for columnar output without a header line
var defaultColumns = []string{"case_number", "status", "severity", "sbr_group", "created_at", "updated_at", "summary"}

var (
	recordLinePattern = regexp.MustCompile(`^\s*\d{8}\t`)
	nonAlnum          = regexp.MustCompile(`[^a-z0-9]`)
)

func normalizeKey(k string) string {
	return nonAlnum.ReplaceAllString(strings.ToLower(k), "")
}

func malformed(format string, args ...any) error {
	return common.Errorf(common.KindSourceMalformed, "rhcase", format, args...)
}

// ParseOutput decodes case tool output. JSON-shaped output must be an array
// of objects; anything else is parsed as tab-separated rows.
func ParseOutput(out []byte) ([]models.CaseRecord, error) {
	trimmed := bytes.TrimSpace(out)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] == '[' || trimmed[0] == '{' {
		return ParseJSON(trimmed)
	}
	return ParseColumnar(trimmed)
}

// ParseJSON decodes a JSON array of case objects
func ParseJSON(data []byte) ([]models.CaseRecord, error) {
	var payload any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil {
		return nil, malformed("decode case list: %v", err)
	}
	items, ok := payload.([]any)
	if !ok {
		return nil, malformed("expected a JSON array of cases, got %T", payload)
	}

	records := make([]models.CaseRecord, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, malformed("case %d: expected object, got %T", i, item)
		}
		rec, err := recordFromFields(obj)
		if err != nil {
			return nil, malformed("case %d: %v", i, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// ParseColumnar parses tab-separated rows, skipping banner and header lines.
// A header line, when present, names the columns; otherwise defaultColumns applies.
func ParseColumnar(data []byte) ([]models.CaseRecord, error) {
	columns := defaultColumns
	var records []models.CaseRecord
	unparsedRows := 0

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if !recordLinePattern.MatchString(line) {
			if header, ok := headerColumns(line); ok {
				columns = header
			} else if strings.Contains(line, "\t") {
				unparsedRows++
			}
			continue
		}

		cells := strings.Split(strings.TrimLeft(line, " "), "\t")
		fields := make(map[string]any, len(cells))
		for i, cell := range cells {
			cell = strings.TrimSpace(cell)
			if i < len(columns) {
				fields[columns[i]] = cell
			} else {
				fields[fmt.Sprintf("column_%d", i+1)] = cell
			}
		}
		rec, err := recordFromFields(fields)
		if err != nil {
			return nil, malformed("row %q: %v", line, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, malformed("read columnar output: %v", err)
	}
	if len(records) == 0 && unparsedRows > 0 {
		return nil, malformed("no case rows recognised in %d tab-separated lines", unparsedRows)
	}
	return records, nil
}

// headerColumns recognises a header line by its first cell naming the case number
func headerColumns(line string) ([]string, bool) {
	if !strings.Contains(line, "\t") {
		return nil, false
	}
	cells := strings.Split(line, "\t")
	if canonicalField[normalizeKey(cells[0])] != "case_number" {
		return nil, false
	}
	cols := make([]string, len(cells))
	for i, c := range cells {
		if canon, ok := canonicalField[normalizeKey(c)]; ok {
			cols[i] = canon
		} else {
			cols[i] = strings.TrimSpace(c)
		}
	}
	return cols, true
}

// recordFromFields maps a decoded source record to a CaseRecord. Unknown
// keys are kept only in Raw.
func recordFromFields(fields map[string]any) (models.CaseRecord, error) {
	// Sorted keys keep the choice deterministic when two spellings normalize alike
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	normalized := make(map[string]any, len(fields))
	for _, k := range keys {
		n := normalizeKey(k)
		if _, seen := normalized[n]; !seen {
			normalized[n] = fields[k]
		}
	}

	canon := make(map[string]any, len(fieldAliases))
	for field, aliases := range fieldAliases {
		for _, a := range aliases {
			if v, ok := normalized[a]; ok {
				canon[field] = v
				break
			}
		}
	}

	rec := models.CaseRecord{Raw: fields}

	number, err := caseNumber(canon["case_number"])
	if err != nil {
		return rec, err
	}
	rec.CaseNumber = number
	rec.Summary = asString(canon["summary"])
	rec.Description = asString(canon["description"])
	rec.Status = asString(canon["status"])
	rec.SBRGroup = joinList(canon["sbr_group"])
	rec.AccountNumber = asString(canon["account_number"])
	rec.CaseType = asString(canon["case_type"])
	rec.Product = asString(canon["product"])
	rec.Tags = asList(canon["tags"])
	rec.Severity = asString(canon["severity"])

	rec.CreatedRaw = asString(canon["created_at"])
	rec.UpdatedRaw = asString(canon["updated_at"])
	rec.ClosedRaw = asString(canon["closed_at"])
	if t, ok := common.ParseDate(rec.CreatedRaw); ok {
		rec.CreatedAt = t
	}
	if t, ok := common.ParseDate(rec.UpdatedRaw); ok {
		rec.UpdatedAt = t
	} else {
		rec.UpdatedAt = rec.CreatedAt
	}
	if t, ok := common.ParseDate(rec.ClosedRaw); ok {
		rec.ClosedAt = &t
	}

	if v, ok := canon["is_closed"]; ok {
		if b, ok := asBool(v); ok {
			rec.IsClosed = &b
		}
	}
	return rec, nil
}

func caseNumber(v any) (string, error) {
	switch n := v.(type) {
	case nil:
		return "", fmt.Errorf("missing case number")
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return "", fmt.Errorf("case number %q is not an integer", n.String())
		}
		return fmt.Sprintf("%08d", i), nil
	case float64:
		return fmt.Sprintf("%08d", int64(n)), nil
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return "", fmt.Errorf("empty case number")
		}
		return s, nil
	default:
		return "", fmt.Errorf("case number has unexpected type %T", v)
	}
}

func asString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(s)
	case json.Number:
		return s.String()
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	default:
		return strings.TrimSpace(fmt.Sprint(s))
	}
}

func asList(v any) []string {
	switch l := v.(type) {
	case nil:
		return nil
	case []any:
		out := make([]string, 0, len(l))
		for _, item := range l {
			if s := asString(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		var out []string
		for _, part := range strings.Split(l, ",") {
			if s := strings.TrimSpace(part); s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return []string{asString(v)}
	}
}

func joinList(v any) string {
	return strings.Join(asList(v), ", ")
}

func asBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "yes", "y", "1":
			return true, true
		case "false", "no", "n", "0":
			return false, true
		}
	case json.Number:
		return b.String() != "0", true
	}
	return false, false
}
