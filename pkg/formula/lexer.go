package formula

import (
	"github.com/nestgrid-labs/nestgrid/pkg/token"
)

// Lexer tokenizes a formula expression using byte-based scanning.
type Lexer struct {
	input   string
	pos     int  // current position (points to ch)
	readPos int  // next reading position
	ch      byte // current char (0 = EOF)
}

// NewLexer creates a lexer for the given expression.
func NewLexer(input string) *Lexer {
	l := &Lexer{input: input}
	l.readChar()
	return l
}

func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++
}

func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

func (l *Lexer) skipWhitespace() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
		l.readChar()
	}
}

// NextToken returns the next token in the input.
func (l *Lexer) NextToken() token.Token {
	l.skipWhitespace()

	pos := l.pos
	switch l.ch {
	case 0:
		return token.Token{Type: token.EOF, Pos: pos}
	case '(':
		l.readChar()
		return token.Token{Type: token.LPAREN, Literal: "(", Pos: pos}
	case ')':
		l.readChar()
		return token.Token{Type: token.RPAREN, Literal: ")", Pos: pos}
	case ',':
		l.readChar()
		return token.Token{Type: token.COMMA, Literal: ",", Pos: pos}
	case '"', '\'':
		lit := l.readString(l.ch)
		return token.Token{Type: token.STRING, Literal: lit, Pos: pos}
	case '/':
		name, ok := l.readColumnRef()
		if !ok {
			l.readChar()
			return token.Token{Type: token.ILLEGAL, Literal: "/", Pos: pos}
		}
		return token.Token{Type: token.COLUMN_REF, Literal: name, Pos: pos}
	case '{':
		if l.peekChar() == '{' {
			name, ok := l.readLegacyRef()
			if ok {
				return token.Token{Type: token.COLUMN_REF, Literal: name, Pos: pos}
			}
		}
		l.readChar()
		return token.Token{Type: token.ILLEGAL, Literal: "{", Pos: pos}
	case '=':
		if l.peekChar() == '=' {
			l.readChar()
			l.readChar()
			return token.Token{Type: token.EQ, Literal: "==", Pos: pos}
		}
		l.readChar()
		return token.Token{Type: token.ILLEGAL, Literal: "=", Pos: pos}
	case '!':
		if l.peekChar() == '=' {
			l.readChar()
			l.readChar()
			return token.Token{Type: token.NE, Literal: "!=", Pos: pos}
		}
		l.readChar()
		return token.Token{Type: token.ILLEGAL, Literal: "!", Pos: pos}
	case '<':
		if l.peekChar() == '=' {
			l.readChar()
			l.readChar()
			return token.Token{Type: token.LE, Literal: "<=", Pos: pos}
		}
		l.readChar()
		return token.Token{Type: token.LT, Literal: "<", Pos: pos}
	case '>':
		if l.peekChar() == '=' {
			l.readChar()
			l.readChar()
			return token.Token{Type: token.GE, Literal: ">=", Pos: pos}
		}
		l.readChar()
		return token.Token{Type: token.GT, Literal: ">", Pos: pos}
	}

	if isDigit(l.ch) || (l.ch == '.' && isDigit(l.peekChar())) {
		return token.Token{Type: token.NUMBER, Literal: l.readNumber(), Pos: pos}
	}
	if isWordChar(l.ch) {
		return token.Token{Type: token.IDENT, Literal: l.readWord(), Pos: pos}
	}

	ch := l.ch
	l.readChar()
	return token.Token{Type: token.ILLEGAL, Literal: string(ch), Pos: pos}
}

// readString consumes a quoted string, returning its unquoted content.
// An unterminated string runs to end of input.
func (l *Lexer) readString(quote byte) string {
	l.readChar()
	start := l.pos
	for l.ch != quote && l.ch != 0 {
		l.readChar()
	}
	s := l.input[start:l.pos]
	if l.ch == quote {
		l.readChar()
	}
	return s
}

func (l *Lexer) readNumber() string {
	start := l.pos
	for isDigit(l.ch) || l.ch == '.' {
		l.readChar()
	}
	return l.input[start:l.pos]
}

func (l *Lexer) readWord() string {
	start := l.pos
	for isWordChar(l.ch) {
		l.readChar()
	}
	return l.input[start:l.pos]
}

// readColumnRef consumes a /Column Name reference. The name is matched
// greedily over word characters with internal single spaces, terminated
// by a delimiter, comma, closing paren, quote, comparison operator, or
// end of input.
func (l *Lexer) readColumnRef() (string, bool) {
	name, end, ok := scanRefName(l.input, l.pos+1)
	if !ok {
		return "", false
	}
	for l.pos < end {
		l.readChar()
	}
	return name, true
}

// readLegacyRef consumes a {{Column Name}} reference.
func (l *Lexer) readLegacyRef() (string, bool) {
	name, end, ok := scanLegacyRef(l.input, l.pos)
	if !ok {
		return "", false
	}
	for l.pos < end {
		l.readChar()
	}
	return name, true
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isWordChar(ch byte) bool {
	return ch == '_' ||
		(ch >= 'a' && ch <= 'z') ||
		(ch >= 'A' && ch <= 'Z') ||
		(ch >= '0' && ch <= '9')
}

// scanRefName reads a column name starting at i (the character after the
// slash). Internal single spaces are part of the name only when followed
// by another word character.
func scanRefName(s string, i int) (name string, end int, ok bool) {
	start := i
	j := i
	for j < len(s) {
		ch := s[j]
		if isWordChar(ch) {
			j++
			continue
		}
		if ch == ' ' && j+1 < len(s) && isWordChar(s[j+1]) {
			j++
			continue
		}
		break
	}
	if j == start {
		return "", i, false
	}
	return s[start:j], j, true
}

// scanLegacyRef reads a {{Name}} reference starting at the first brace.
func scanLegacyRef(s string, i int) (name string, end int, ok bool) {
	if i+1 >= len(s) || s[i] != '{' || s[i+1] != '{' {
		return "", i, false
	}
	close := i + 2
	for close+1 < len(s) {
		if s[close] == '}' && s[close+1] == '}' {
			return s[i+2 : close], close + 2, true
		}
		close++
	}
	return "", i, false
}
