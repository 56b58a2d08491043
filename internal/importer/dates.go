package importer

import (
	"fmt"
	"strings"
	"time"
)

// dateLayouts are tried in order and the first match wins: ISO 8601, then
// day-first with slashes, day-first with dashes, and a plain ISO date.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2/1/2006",
	"2-1-2006",
	"2006-01-02",
}

// ParseDate reads a date cell. The result is truncated to midnight UTC.
func ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("date is empty")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", raw)
}
