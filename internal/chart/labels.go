package chart

import (
	"strconv"
	"strings"
	"time"
)

// MonthYearLayout renders dates as abbreviated month + 2-digit year ("Mar 24").
const MonthYearLayout = "Jan 06"

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// ParseDate accepts the date shapes the backend emits for the CPI index.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// FormatMonthYear renders a backend date string in the fixed en-US/UTC locale.
// Unparseable input is returned unchanged.
func FormatMonthYear(s string) string {
	t, ok := ParseDate(s)
	if !ok {
		return s
	}
	return t.Format(MonthYearLayout)
}

// FormatPercent renders v the way a JavaScript template literal would: the
// shortest decimal that round-trips, followed by "%".
func FormatPercent(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "%"
}

func monthYearValueFormatter(v interface{}) string {
	switch typed := v.(type) {
	case time.Time:
		return typed.UTC().Format(MonthYearLayout)
	case float64:
		return time.Unix(0, int64(typed)).UTC().Format(MonthYearLayout)
	case int64:
		return time.Unix(0, typed).UTC().Format(MonthYearLayout)
	}
	return ""
}
