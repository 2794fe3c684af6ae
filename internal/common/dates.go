package common

import (
	"strings"
	"time"
)

// Date-only layouts accepted in reports: YYYY-MM-DD, MM/DD/YYYY, YYYY/MM/DD
var reportDateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"2006/01/02",
}

// Datetime layouts emitted by the case tool
var datetimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05.000Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseDate parses a date or datetime in any accepted layout
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range datetimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	for _, layout := range reportDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// IsValidReportDate reports whether s is a date in one of the report layouts.
// Datetimes are accepted when their date part is YYYY-MM-DD.
func IsValidReportDate(s string) bool {
	s = strings.TrimSpace(s)
	for _, layout := range reportDateLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	if len(s) > 10 {
		if _, err := time.Parse("2006-01-02", s[:10]); err == nil {
			_, ok := ParseDate(s)
			return ok
		}
	}
	return false
}
