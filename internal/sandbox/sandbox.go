// Package sandbox provides the mock enrichment path: deterministic
// pseudo-random values derived from the cell identity, held in a
// non-persisted overlay so previewing a run costs nothing and mutates
// nothing.
package sandbox

import (
	"fmt"
	"hash/fnv"

	"github.com/nestgrid-labs/nestgrid/pkg/core"
)

var (
	firstNames = []string{"Ada", "Grace", "Alan", "Edsger", "Barbara", "Donald", "Radia", "Ken"}
	lastNames  = []string{"Lovelace", "Hopper", "Turing", "Dijkstra", "Liskov", "Knuth", "Perlman", "Thompson"}
	companies  = []string{"Acme Corp", "Globex", "Initech", "Umbrella Labs", "Stark Industries", "Wayne Enterprises"}
	titles     = []string{"CEO", "CTO", "VP Engineering", "Head of Growth", "Product Manager", "Data Analyst"}
	cities     = []string{"Berlin", "London", "New York", "San Francisco", "Amsterdam", "Lisbon"}
)

// hashCell folds the cell identity into a stable 64-bit seed.
func hashCell(rowID, columnID string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(rowID))
	h.Write([]byte{':'})
	h.Write([]byte(columnID))
	return h.Sum64()
}

func pick(seed uint64, salt uint64, list []string) string {
	return list[(seed^salt)%uint64(len(list))]
}

// Mock derives the stable mock value for a cell. Repeated calls with the
// same (rowID, columnID) return the identical value.
func Mock(rowID, columnID string, colType core.ColumnType) *core.CellValue {
	seed := hashCell(rowID, columnID)

	first := pick(seed, 0x9e3779b9, firstNames)
	last := pick(seed, 0x85ebca6b, lastNames)
	company := pick(seed, 0xc2b2ae35, companies)
	title := pick(seed, 0x27d4eb2f, titles)
	city := pick(seed, 0x165667b1, cities)

	switch colType {
	case core.ColumnAI:
		return core.ScalarValue(fmt.Sprintf("%s %s is a %s at %s based in %s.", first, last, title, company, city))
	case core.ColumnHTTP:
		return core.ObjectValue(map[string]any{
			"status": "ok",
			"id":     seed % 100000,
			"name":   first + " " + last,
		})
	case core.ColumnWaterfall:
		v := core.ObjectValue(map[string]any{
			"name":    first + " " + last,
			"company": company,
			"title":   title,
		})
		v.Meta = &core.ValueMeta{SourceUsed: "sandbox", Attempts: 1}
		return v
	default:
		return core.ObjectValue(map[string]any{
			"name":     first + " " + last,
			"email":    fmt.Sprintf("%s.%s@example.com", lower(first), lower(last)),
			"company":  company,
			"title":    title,
			"location": city,
		})
	}
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + 32
		}
	}
	return string(b)
}
