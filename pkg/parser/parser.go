package parser

import (
	"github.com/kartiknair/kaleido/pkg/ast"
	"github.com/kartiknair/kaleido/pkg/lexer"
	"github.com/kartiknair/kaleido/pkg/token"
)

// Error is a parse error at a token. Error returns only the message, so
// callers print positions only when they want them.
type Error struct {
	Pos token.Pos
	Msg string
}

func (e *Error) Error() string {
	return e.Msg
}

// Parser reads tokens lazily from a Lexer with one token of lookahead. It
// never backtracks. On error the offending token is left as the current
// token; the caller decides how to resynchronize.
type Parser struct {
	lexer   *lexer.Lexer
	current token.Token
}

// New returns a parser over l. The first token is not read until Next is
// called, so an interactive caller can print a prompt first.
func New(l *lexer.Lexer) *Parser {
	return &Parser{lexer: l}
}

// Current returns the lookahead token.
func (p *Parser) Current() token.Token {
	return p.current
}

// Next reads the next token into the lookahead and returns it.
func (p *Parser) Next() token.Token {
	p.current = p.lexer.Next()
	return p.current
}

func (p *Parser) parseError(t token.Token, message string) *Error {
	return &Error{Pos: t.Pos, Msg: message}
}

var operatorPrecedenceMap = map[byte]int{
	'<': 10,
	'+': 20,
	'-': 20,
	'*': 40,
	'/': 40,
}

// Precedence returns the binary precedence of op, or -1 when op is not a
// binary operator.
func Precedence(op byte) int {
	if prec, ok := operatorPrecedenceMap[op]; ok {
		return prec
	}

	return -1
}

func (p *Parser) tokenPrecedence() int {
	if p.current.Type != token.CHAR {
		return -1
	}

	return Precedence(p.current.Char)
}

// ParseExpression parses a primary followed by any number of binary
// operator/primary pairs.
func (p *Parser) ParseExpression() (ast.Expression, error) {
	lhs, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	return p.parsePrecedenceExpression(lhs, 0)
}

// parsePrecedenceExpression folds operators of precedence at least
// minPrecedence onto lhs. A tighter operator after the right operand
// claims that operand first; an equal one does not, which keeps every
// operator left associative.
func (p *Parser) parsePrecedenceExpression(lhs ast.Expression, minPrecedence int) (ast.Expression, error) {
	for {
		precedence := p.tokenPrecedence()
		if precedence < minPrecedence {
			return lhs, nil
		}

		op := p.current
		p.Next()

		rhs, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}

		if p.tokenPrecedence() > precedence {
			rhs, err = p.parsePrecedenceExpression(rhs, precedence+1)
			if err != nil {
				return nil, err
			}
		}

		lhs = &ast.BinaryExpression{
			Operator:      op.Char,
			Left:          lhs,
			Right:         rhs,
			OperatorToken: op,
		}
	}
}

func (p *Parser) parsePrimary() (ast.Expression, error) {
	switch {
	case p.current.Type == token.IDENTIFIER:
		return p.parseIdentifierOrCall()
	case p.current.Type == token.NUMBER:
		expr := &ast.NumberExpression{Value: p.current.Number, Token: p.current}
		p.Next()
		return expr, nil
	case p.current.Is('('):
		return p.parseGrouping()
	case p.current.Type == token.IF:
		return p.parseIf()
	}

	return nil, p.parseError(p.current, "Unknown token, expecting expr")
}

func (p *Parser) parseGrouping() (ast.Expression, error) {
	p.Next() // skip the `(`

	expr, err := p.ParseExpression()
	if err != nil {
		return nil, err
	}

	if !p.current.Is(')') {
		return nil, p.parseError(p.current, "Expected ')'")
	}
	p.Next()

	return expr, nil
}

func (p *Parser) parseIdentifierOrCall() (ast.Expression, error) {
	ident := p.current
	p.Next()

	if !p.current.Is('(') {
		return &ast.VariableExpression{Name: ident.Lexeme, Token: ident}, nil
	}
	p.Next() // skip the `(`

	arguments := []ast.Expression{}
	if !p.current.Is(')') {
		for {
			arg, err := p.ParseExpression()
			if err != nil {
				return nil, err
			}
			arguments = append(arguments, arg)

			if p.current.Is(')') {
				break
			}

			if !p.current.Is(',') {
				return nil, p.parseError(p.current, "Expected ',' or ')' in argument list")
			}
			p.Next() // skip the comma
		}
	}
	p.Next() // skip the `)`

	return &ast.CallExpression{
		Callee:      ident.Lexeme,
		Arguments:   arguments,
		CalleeToken: ident,
	}, nil
}

func (p *Parser) parseIf() (ast.Expression, error) {
	ifToken := p.current
	p.Next()

	condition, err := p.ParseExpression()
	if err != nil {
		return nil, err
	}

	if p.current.Type != token.THEN {
		return nil, p.parseError(p.current, "Expected 'then'")
	}
	p.Next()

	then, err := p.ParseExpression()
	if err != nil {
		return nil, err
	}

	if p.current.Type != token.ELSE {
		return nil, p.parseError(p.current, "Expected 'else'")
	}
	p.Next()

	els, err := p.ParseExpression()
	if err != nil {
		return nil, err
	}

	return &ast.IfExpression{
		Condition: condition,
		Then:      then,
		Else:      els,
		IfToken:   ifToken,
	}, nil
}

// ParsePrototype parses `name(a b c)`. Parameters are separated by
// whitespace, not commas.
func (p *Parser) ParsePrototype() (*ast.Prototype, error) {
	if p.current.Type != token.IDENTIFIER {
		return nil, p.parseError(p.current, "Expected function name in prototype")
	}

	name := p.current
	p.Next()

	if !p.current.Is('(') {
		return nil, p.parseError(p.current, "Expected '(' in prototype")
	}

	parameters := []string{}
	for p.Next().Type == token.IDENTIFIER {
		parameters = append(parameters, p.current.Lexeme)
	}

	if !p.current.Is(')') {
		return nil, p.parseError(p.current, "Expected ')' in prototype")
	}
	p.Next()

	return &ast.Prototype{
		Name:       name.Lexeme,
		Parameters: parameters,
		NameToken:  name,
	}, nil
}

// ParseDefinition parses `def proto expr`.
func (p *Parser) ParseDefinition() (*ast.Function, error) {
	p.Next() // skip `def`

	proto, err := p.ParsePrototype()
	if err != nil {
		return nil, err
	}

	body, err := p.ParseExpression()
	if err != nil {
		return nil, err
	}

	return &ast.Function{Prototype: proto, Body: body}, nil
}

// ParseExtern parses `extern proto`.
func (p *Parser) ParseExtern() (*ast.Prototype, error) {
	p.Next() // skip `extern`
	return p.ParsePrototype()
}

// ParseTopLevelExpression wraps an expression in an anonymous nullary
// function.
func (p *Parser) ParseTopLevelExpression() (*ast.Function, error) {
	start := p.current

	expr, err := p.ParseExpression()
	if err != nil {
		return nil, err
	}

	return &ast.Function{
		Prototype: &ast.Prototype{Name: "", Parameters: []string{}, NameToken: start},
		Body:      expr,
	}, nil
}

// ParseForm parses one top-level form starting at the current token. The
// current token must not be EOF or `;`, which the driver handles itself.
func (p *Parser) ParseForm() (ast.Form, error) {
	switch p.current.Type {
	case token.DEF:
		f, err := p.ParseDefinition()
		if err != nil {
			return nil, err
		}
		return &ast.Definition{Function: f}, nil
	case token.EXTERN:
		proto, err := p.ParseExtern()
		if err != nil {
			return nil, err
		}
		return &ast.Extern{Prototype: proto}, nil
	}

	f, err := p.ParseTopLevelExpression()
	if err != nil {
		return nil, err
	}
	return &ast.TopLevelExpression{Function: f}, nil
}

// ParseAll parses every form in the stream, skipping `;` separators. After
// an error it skips exactly one token and carries on, as the interactive
// driver does.
func (p *Parser) ParseAll() ([]ast.Form, []error) {
	var (
		forms []ast.Form
		errs  []error
	)

	p.Next()
	for p.current.Type != token.EOF {
		if p.current.Is(';') {
			p.Next()
			continue
		}

		form, err := p.ParseForm()
		if err != nil {
			errs = append(errs, err)
			p.Next()
			continue
		}

		forms = append(forms, form)
	}

	return forms, errs
}
