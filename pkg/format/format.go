// Package format renders raw cell values for display according to a
// column's data type, and extracts typed sort values so comparisons are
// type-correct rather than lexicographic.
package format

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/nestgrid-labs/nestgrid/pkg/core"
)

var printer = message.NewPrinter(language.English)

// Field renders a raw field value per the column config's data type.
// Formatting never fails: unparseable input is returned unchanged.
func Field(raw string, cfg core.ColumnConfig) string {
	if raw == "" {
		return ""
	}
	switch cfg.DataType {
	case core.DataNumber:
		return formatNumber(raw, decimals(cfg, 0), cfg.ThousandsSep)
	case core.DataCurrency:
		return formatCurrency(raw, cfg)
	case core.DataDate:
		return formatDate(raw, cfg.DateFormat)
	case core.DataCheckbox:
		if Truthy(raw) {
			return "true"
		}
		return "false"
	default:
		return raw
	}
}

// Truthy reports whether a raw checkbox value normalizes to true.
func Truthy(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1", "yes":
		return true
	}
	return false
}

// SortValue returns a typed value for sorting: float64 for number and
// currency, epoch seconds (float64) for date, 0/1 for checkbox, and a
// lower-cased string otherwise.
func SortValue(raw string, dt core.DataType) any {
	switch dt {
	case core.DataNumber, core.DataCurrency:
		if f, ok := ParseNumber(raw); ok {
			return f
		}
		return strings.ToLower(raw)
	case core.DataDate:
		if t, ok := parseDate(raw); ok {
			return float64(t.Unix())
		}
		return strings.ToLower(raw)
	case core.DataCheckbox:
		if Truthy(raw) {
			return float64(1)
		}
		return float64(0)
	default:
		return strings.ToLower(raw)
	}
}

func decimals(cfg core.ColumnConfig, def int) int {
	if cfg.Decimals != nil {
		return *cfg.Decimals
	}
	return def
}

func formatNumber(raw string, dec int, grouped bool) string {
	f, ok := ParseNumber(raw)
	if !ok {
		return raw
	}
	if grouped {
		return printer.Sprint(number.Decimal(f,
			number.MinFractionDigits(dec),
			number.MaxFractionDigits(dec)))
	}
	return trimFixed(f, dec)
}

func formatCurrency(raw string, cfg core.ColumnConfig) string {
	f, ok := ParseNumber(raw)
	if !ok {
		return raw
	}
	dec := decimals(cfg, 2)
	v := printer.Sprint(number.Decimal(f,
		number.MinFractionDigits(dec),
		number.MaxFractionDigits(dec)))

	sym := Symbol(cfg.CurrencyCode)
	if cfg.SymbolPosition == "after" {
		return v + sym
	}
	return sym + v
}
