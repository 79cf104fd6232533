package formula

import (
	"fmt"

	"github.com/nestgrid-labs/nestgrid/pkg/token"
)

// Parser is a recursive-descent parser over the formula token stream.
//
// Grammar:
//
//	expr    := call
//	arg     := compare
//	compare := term (compop term)?
//	term    := call | STRING | NUMBER | COLUMN_REF | IDENT
//
// Anything that does not parse as a call is handled by the evaluator's
// plain-substitution fallback, not by the parser.
type Parser struct {
	lexer *Lexer
	cur   token.Token
	peek  token.Token
}

// NewParser creates a parser for the given expression.
func NewParser(input string) *Parser {
	p := &Parser{lexer: NewLexer(input)}
	p.nextToken()
	p.nextToken()
	return p
}

func (p *Parser) nextToken() {
	p.cur = p.peek
	p.peek = p.lexer.NextToken()
}

// ParseCall parses the whole input as a single function call. It returns
// an error when the input is not a call or has trailing tokens.
func (p *Parser) ParseCall() (*Call, error) {
	if p.cur.Type != token.IDENT || p.peek.Type != token.LPAREN {
		return nil, fmt.Errorf("not a function call")
	}
	call, err := p.parseCall()
	if err != nil {
		return nil, err
	}
	if p.cur.Type != token.EOF {
		return nil, fmt.Errorf("unexpected %q after call", p.cur.Literal)
	}
	return call, nil
}

// parseCall parses IDENT ( args ) with the cursor on the IDENT.
func (p *Parser) parseCall() (*Call, error) {
	call := &Call{Name: p.cur.Literal}
	p.nextToken() // onto (
	p.nextToken() // past (

	if p.cur.Type == token.RPAREN {
		p.nextToken()
		return call, nil
	}

	for {
		arg, err := p.parseCompare()
		if err != nil {
			return nil, err
		}
		call.Args = append(call.Args, arg)

		switch p.cur.Type {
		case token.COMMA:
			p.nextToken()
		case token.RPAREN:
			p.nextToken()
			return call, nil
		default:
			return nil, fmt.Errorf("expected ',' or ')' in %s(), got %q", call.Name, p.cur.Literal)
		}
	}
}

// parseCompare parses a term optionally followed by a comparison.
func (p *Parser) parseCompare() (Expr, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	if !p.cur.Type.Comparison() {
		return left, nil
	}
	op := p.cur.Type
	p.nextToken()
	right, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	return &Compare{Op: op, Left: left, Right: right}, nil
}

func (p *Parser) parseTerm() (Expr, error) {
	switch p.cur.Type {
	case token.IDENT:
		if p.peek.Type == token.LPAREN {
			return p.parseCall()
		}
		lit := &Literal{Value: p.cur.Literal}
		p.nextToken()
		return lit, nil
	case token.STRING, token.NUMBER:
		lit := &Literal{Value: p.cur.Literal}
		p.nextToken()
		return lit, nil
	case token.COLUMN_REF:
		ref := &ColumnRef{Name: p.cur.Literal}
		p.nextToken()
		return ref, nil
	default:
		return nil, fmt.Errorf("unexpected token %q", p.cur.Literal)
	}
}
