// Package token defines the lexical tokens of the formula language.
package token

import "fmt"

// Type identifies a lexical token.
type Type int

// Token types.
const (
	EOF Type = iota
	ILLEGAL

	// Literals
	IDENT  // function name
	NUMBER // 123, 45.67
	STRING // "hello" or 'hello'

	// References
	COLUMN_REF // /Column Name or {{Column Name}}

	// Delimiters
	LPAREN // (
	RPAREN // )
	COMMA  // ,

	// Comparison operators
	EQ // ==
	NE // !=
	LT // <
	GT // >
	LE // <=
	GE // >=
)

var names = map[Type]string{
	EOF:        "EOF",
	ILLEGAL:    "ILLEGAL",
	IDENT:      "IDENT",
	NUMBER:     "NUMBER",
	STRING:     "STRING",
	COLUMN_REF: "COLUMN_REF",
	LPAREN:     "(",
	RPAREN:     ")",
	COMMA:      ",",
	EQ:         "==",
	NE:         "!=",
	LT:         "<",
	GT:         ">",
	LE:         "<=",
	GE:         ">=",
}

// String returns a readable name for the token type.
func (t Type) String() string {
	if s, ok := names[t]; ok {
		return s
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// Comparison reports whether the type is a comparison operator.
func (t Type) Comparison() bool {
	switch t {
	case EQ, NE, LT, GT, LE, GE:
		return true
	}
	return false
}

// Token is one lexical token with its source position.
type Token struct {
	Type    Type
	Literal string
	// Pos is the byte offset of the token's first character.
	Pos int
}
