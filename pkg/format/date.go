package format

import (
	"strings"
	"time"
)

// Date output templates, keyed by the user-facing template names.
var dateTemplates = map[string]string{
	"MM/DD/YYYY":  "01/02/2006",
	"DD/MM/YYYY":  "02/01/2006",
	"YYYY-MM-DD":  "2006-01-02",
	"MMM D, YYYY": "Jan 2, 2006",
	"D MMM YYYY":  "2 Jan 2006",
}

// Input layouts tried in order when parsing a raw date value.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"2006/01/02",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
}

// formatDate renders a raw date per the configured template. Values that
// do not parse are returned unchanged.
func formatDate(raw, template string) string {
	t, ok := parseDate(raw)
	if !ok {
		return raw
	}
	layout, found := dateTemplates[template]
	if !found {
		layout = dateTemplates["MM/DD/YYYY"]
	}
	return t.Format(layout)
}

func parseDate(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// DateLike reports whether a value starts with a date-looking pattern,
// used by the sort comparator's per-pair type detection.
func DateLike(raw string) bool {
	_, ok := parseDate(raw)
	return ok
}
