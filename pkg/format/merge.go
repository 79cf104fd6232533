package format

import (
	"strings"

	"github.com/nestgrid-labs/nestgrid/pkg/core"
)

// Merge joins the raw values of a merge column's sources in order,
// honoring the configured separator, empty-value policy, and output
// shape.
func Merge(values []string, cfg core.ColumnConfig) string {
	sep := cfg.Separator
	if sep == "" {
		sep = ", "
	}

	var parts []string
	for _, v := range values {
		if v == "" {
			switch cfg.EmptyPolicy {
			case "include":
				parts = append(parts, "")
			case "placeholder":
				placeholder := cfg.Placeholder
				if placeholder == "" {
					placeholder = "-"
				}
				parts = append(parts, placeholder)
			default: // skip
			}
			continue
		}
		parts = append(parts, v)
	}

	if cfg.OutputShape == "bulleted" {
		for i, p := range parts {
			parts[i] = "• " + p
		}
		return strings.Join(parts, "\n")
	}
	return strings.Join(parts, sep)
}
