package formula

import (
	"fmt"
	"strings"

	"github.com/nestgrid-labs/nestgrid/pkg/token"
)

// Expr is a node of the parsed expression tree.
type Expr interface {
	// String renders the node back to formula syntax, for diagnostics.
	String() string
}

// Literal is a quoted string, number, or bare word.
type Literal struct {
	Value string
}

func (l *Literal) String() string { return l.Value }

// ColumnRef resolves a sibling column's value by name.
type ColumnRef struct {
	Name string
}

func (c *ColumnRef) String() string { return "/" + c.Name }

// Call is a function invocation, e.g. CONCAT(/A, " ", /B).
type Call struct {
	// Name is the function name as written; lookup is case-insensitive.
	Name string
	Args []Expr
}

func (c *Call) String() string {
	parts := make([]string, len(c.Args))
	for i, a := range c.Args {
		parts[i] = a.String()
	}
	return fmt.Sprintf("%s(%s)", c.Name, strings.Join(parts, ", "))
}

// Compare is a binary comparison between two operands, used as an IF
// condition.
type Compare struct {
	Op    token.Type
	Left  Expr
	Right Expr
}

func (c *Compare) String() string {
	return fmt.Sprintf("%s %s %s", c.Left.String(), c.Op.String(), c.Right.String())
}
