package format

import (
	"strconv"
	"strings"
)

// ParseNumber parses a display-formatted number: currency symbols,
// grouping commas, and surrounding space are stripped first, so a value
// that is already formatted parses back to the same number.
func ParseNumber(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	for _, sym := range symbols {
		s = strings.ReplaceAll(s, sym, "")
	}
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func trimFixed(f float64, dec int) string {
	return strconv.FormatFloat(f, 'f', dec, 64)
}
