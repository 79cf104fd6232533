// Package jsonpath extracts values from nested JSON-like data by dot
// path. Lookups return an explicit found/not-found result instead of a
// nil that callers would have to interpret.
package jsonpath

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/tidwall/gjson"
)

// Result is one extracted value.
type Result struct {
	raw gjson.Result
}

// Lookup resolves a dot path (e.g. "company.location.city") against raw
// JSON. The boolean is false when any path segment is missing.
func Lookup(raw []byte, path string) (Result, bool) {
	if path == "" {
		return Result{}, false
	}
	r := gjson.GetBytes(raw, path)
	if !r.Exists() {
		return Result{}, false
	}
	return Result{raw: r}, true
}

// LookupValue resolves a dot path against an already-decoded value
// (maps, slices, scalars) by round-tripping it through JSON.
func LookupValue(v any, path string) (Result, bool) {
	b, err := json.Marshal(v)
	if err != nil {
		return Result{}, false
	}
	return Lookup(b, path)
}

// String renders the value as a string. Objects and arrays render as
// compact JSON.
func (r Result) String() string {
	if r.raw.Type == gjson.JSON {
		return r.raw.Raw
	}
	return r.raw.String()
}

// Float returns the value as a number; the boolean is false when the
// value is not numeric (numeric strings are accepted).
func (r Result) Float() (float64, bool) {
	switch r.raw.Type {
	case gjson.Number:
		return r.raw.Float(), true
	case gjson.String:
		f, err := strconv.ParseFloat(r.raw.Str, 64)
		return f, err == nil
	}
	return 0, false
}

// Bool returns the value as a boolean; the boolean is false when the
// value is not a recognizable truth value.
func (r Result) Bool() (bool, bool) {
	switch r.raw.Type {
	case gjson.True:
		return true, true
	case gjson.False:
		return false, true
	case gjson.String:
		b, err := strconv.ParseBool(r.raw.Str)
		return b, err == nil
	}
	return false, false
}

// IsObject reports whether the value is a JSON object.
func (r Result) IsObject() bool {
	return r.raw.IsObject()
}

// Value returns the decoded Go value.
func (r Result) Value() any {
	return r.raw.Value()
}

// StringAt is a convenience helper: extract path from v and render it as
// a string, or return an error naming the missing path.
func StringAt(v any, path string) (string, error) {
	res, ok := LookupValue(v, path)
	if !ok {
		return "", fmt.Errorf("path %q not found", path)
	}
	return res.String(), nil
}
