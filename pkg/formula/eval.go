// Package formula implements the spreadsheet expression language used by
// formula columns and by /ColumnName templating in prompts and requests.
//
// Evaluation is a pure function of (expression, column values): no I/O,
// no side effects, and failures surface as an inline "#ERROR: ..." string
// rather than an error so a bad formula can never break row rendering.
package formula

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/nestgrid-labs/nestgrid/pkg/token"
)

// ErrorPrefix marks an inline evaluation failure.
const ErrorPrefix = "#ERROR: "

// Evaluate resolves an expression against a column-name to value map.
// A leading "=" is stripped. Input that is not a recognized function call
// falls back to plain reference substitution, so "Hello /First" works
// without any function.
func Evaluate(expr string, columns map[string]string) string {
	src := strings.TrimSpace(expr)
	src = strings.TrimPrefix(src, "=")
	src = strings.TrimSpace(src)
	if src == "" {
		return ""
	}

	call, err := NewParser(src).ParseCall()
	if err != nil || !knownFunc(call.Name) {
		// In a formula every reference resolves; a name with no column
		// behind it yields the empty string rather than staying literal.
		return Substitute(src, func(name string) (string, bool) {
			return columns[name], true
		})
	}

	out, err := evalExpr(call, columns)
	if err != nil {
		return ErrorPrefix + err.Error()
	}
	return out
}

// Substitute replaces every /Column Name and {{Column Name}} reference in
// the template with the looked-up value. When the lookup does not
// recognize a name the reference stays literal, so URL path segments
// like "/lookup" survive templating; a recognized name with no value
// substitutes the empty string.
func Substitute(template string, lookup func(string) (string, bool)) string {
	var b strings.Builder
	for i := 0; i < len(template); {
		switch template[i] {
		case '/':
			if name, end, ok := scanRefName(template, i+1); ok {
				if v, found := lookup(name); found {
					b.WriteString(v)
				} else {
					b.WriteString(template[i:end])
				}
				i = end
				continue
			}
		case '{':
			if name, end, ok := scanLegacyRef(template, i); ok {
				if v, found := lookup(name); found {
					b.WriteString(v)
				} else {
					b.WriteString(template[i:end])
				}
				i = end
				continue
			}
		}
		b.WriteByte(template[i])
		i++
	}
	return b.String()
}

// References returns the column names referenced by an expression or
// template, in order of first appearance.
func References(template string) []string {
	var refs []string
	seen := make(map[string]bool)
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			refs = append(refs, name)
		}
	}
	for i := 0; i < len(template); {
		switch template[i] {
		case '/':
			if name, end, ok := scanRefName(template, i+1); ok {
				add(name)
				i = end
				continue
			}
		case '{':
			if name, end, ok := scanLegacyRef(template, i); ok {
				add(name)
				i = end
				continue
			}
		}
		i++
	}
	return refs
}

var funcs = map[string]struct{ min, max int }{
	"CONCAT":   {1, -1},
	"UPPER":    {1, 1},
	"LOWER":    {1, 1},
	"TRIM":     {1, 1},
	"LEN":      {1, 1},
	"LEFT":     {2, 2},
	"RIGHT":    {2, 2},
	"REPLACE":  {3, 3},
	"ROUND":    {1, 2},
	"CONTAINS": {2, 2},
	"IF":       {2, 3},
}

func knownFunc(name string) bool {
	_, ok := funcs[strings.ToUpper(name)]
	return ok
}

func evalExpr(e Expr, columns map[string]string) (string, error) {
	switch n := e.(type) {
	case *Literal:
		return n.Value, nil
	case *ColumnRef:
		return columns[n.Name], nil
	case *Compare:
		ok, err := evalCompare(n, columns)
		if err != nil {
			return "", err
		}
		if ok {
			return "TRUE", nil
		}
		return "FALSE", nil
	case *Call:
		return evalCall(n, columns)
	default:
		return "", fmt.Errorf("unsupported expression %q", e.String())
	}
}

func evalCall(c *Call, columns map[string]string) (string, error) {
	name := strings.ToUpper(c.Name)
	sig, ok := funcs[name]
	if !ok {
		return "", fmt.Errorf("unknown function %s", c.Name)
	}
	if len(c.Args) < sig.min || (sig.max >= 0 && len(c.Args) > sig.max) {
		return "", fmt.Errorf("%s: wrong number of arguments (%d)", name, len(c.Args))
	}

	// IF needs lazy branches and special condition handling.
	if name == "IF" {
		return evalIf(c, columns)
	}

	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		v, err := evalExpr(a, columns)
		if err != nil {
			return "", err
		}
		args[i] = v
	}

	switch name {
	case "CONCAT":
		return strings.Join(args, ""), nil
	case "UPPER":
		return strings.ToUpper(args[0]), nil
	case "LOWER":
		return strings.ToLower(args[0]), nil
	case "TRIM":
		return strings.TrimSpace(args[0]), nil
	case "LEN":
		return strconv.Itoa(len([]rune(args[0]))), nil
	case "LEFT":
		n, err := argInt(name, args[1])
		if err != nil {
			return "", err
		}
		r := []rune(args[0])
		if n > len(r) {
			n = len(r)
		}
		if n < 0 {
			n = 0
		}
		return string(r[:n]), nil
	case "RIGHT":
		n, err := argInt(name, args[1])
		if err != nil {
			return "", err
		}
		r := []rune(args[0])
		if n > len(r) {
			n = len(r)
		}
		if n < 0 {
			n = 0
		}
		return string(r[len(r)-n:]), nil
	case "REPLACE":
		return strings.ReplaceAll(args[0], args[1], args[2]), nil
	case "ROUND":
		f, err := strconv.ParseFloat(strings.TrimSpace(args[0]), 64)
		if err != nil {
			return "", fmt.Errorf("ROUND: %q is not a number", args[0])
		}
		decimals := 0
		if len(args) == 2 {
			decimals, err = argInt(name, args[1])
			if err != nil {
				return "", err
			}
		}
		shift := math.Pow(10, float64(decimals))
		return strconv.FormatFloat(math.Round(f*shift)/shift, 'f', decimals, 64), nil
	case "CONTAINS":
		if strings.Contains(strings.ToLower(args[0]), strings.ToLower(args[1])) {
			return "TRUE", nil
		}
		return "FALSE", nil
	}
	return "", fmt.Errorf("unknown function %s", c.Name)
}

func evalIf(c *Call, columns map[string]string) (string, error) {
	cond, err := evalCondition(c.Args[0], columns)
	if err != nil {
		return "", err
	}
	if cond {
		return evalExpr(c.Args[1], columns)
	}
	if len(c.Args) == 3 {
		return evalExpr(c.Args[2], columns)
	}
	return "", nil
}

func evalCondition(e Expr, columns map[string]string) (bool, error) {
	if cmp, ok := e.(*Compare); ok {
		return evalCompare(cmp, columns)
	}
	v, err := evalExpr(e, columns)
	if err != nil {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "false", "0":
		return false, nil
	}
	return true, nil
}

// evalCompare coerces both operands to numbers when both parse, otherwise
// compares them as strings.
func evalCompare(c *Compare, columns map[string]string) (bool, error) {
	left, err := evalExpr(c.Left, columns)
	if err != nil {
		return false, err
	}
	right, err := evalExpr(c.Right, columns)
	if err != nil {
		return false, err
	}

	lf, lerr := strconv.ParseFloat(strings.TrimSpace(left), 64)
	rf, rerr := strconv.ParseFloat(strings.TrimSpace(right), 64)
	if lerr == nil && rerr == nil {
		switch c.Op {
		case token.EQ:
			return lf == rf, nil
		case token.NE:
			return lf != rf, nil
		case token.LT:
			return lf < rf, nil
		case token.GT:
			return lf > rf, nil
		case token.LE:
			return lf <= rf, nil
		case token.GE:
			return lf >= rf, nil
		}
	}

	switch c.Op {
	case token.EQ:
		return left == right, nil
	case token.NE:
		return left != right, nil
	case token.LT:
		return left < right, nil
	case token.GT:
		return left > right, nil
	case token.LE:
		return left <= right, nil
	case token.GE:
		return left >= right, nil
	}
	return false, fmt.Errorf("unsupported comparison operator")
}

func argInt(fn, s string) (int, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not a number", fn, s)
	}
	return int(f), nil
}
