package ast

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kartiknair/kaleido/pkg/token"
)

type Expression interface {
	isExpression()
	String() string
	ErrorToken() token.Token
}

type NumberExpression struct {
	Value float64

	Token token.Token
}

type VariableExpression struct {
	Name string

	Token token.Token
}

type BinaryExpression struct {
	Operator byte
	Left     Expression
	Right    Expression

	OperatorToken token.Token
}

type CallExpression struct {
	Callee    string
	Arguments []Expression

	CalleeToken token.Token
}

type IfExpression struct {
	Condition Expression
	Then      Expression
	Else      Expression

	IfToken token.Token
}

func (*NumberExpression) isExpression()   {}
func (*VariableExpression) isExpression() {}
func (*BinaryExpression) isExpression()   {}
func (*CallExpression) isExpression()     {}
func (*IfExpression) isExpression()       {}

func (n *NumberExpression) ErrorToken() token.Token {
	return n.Token
}

func (v *VariableExpression) ErrorToken() token.Token {
	return v.Token
}

func (b *BinaryExpression) ErrorToken() token.Token {
	return b.OperatorToken
}

func (c *CallExpression) ErrorToken() token.Token {
	return c.CalleeToken
}

func (i *IfExpression) ErrorToken() token.Token {
	return i.IfToken
}

// The String methods print expressions as fully parenthesized
// s-expressions, which makes grouping visible.

func (n *NumberExpression) String() string {
	return strconv.FormatFloat(n.Value, 'g', -1, 64)
}

func (v *VariableExpression) String() string {
	return v.Name
}

func (b *BinaryExpression) String() string {
	return fmt.Sprintf("(%c %s %s)", b.Operator, b.Left, b.Right)
}

func (c *CallExpression) String() string {
	var sb strings.Builder
	sb.WriteString("(call ")
	sb.WriteString(c.Callee)
	for _, a := range c.Arguments {
		sb.WriteByte(' ')
		sb.WriteString(a.String())
	}
	sb.WriteByte(')')
	return sb.String()
}

func (i *IfExpression) String() string {
	return fmt.Sprintf("(if %s %s %s)", i.Condition, i.Then, i.Else)
}

// Prototype is a function's name and parameter names. The anonymous
// wrapper of a top-level expression has an empty Name.
type Prototype struct {
	Name       string
	Parameters []string

	NameToken token.Token
}

func (p *Prototype) IsAnonymous() bool {
	return p.Name == ""
}

func (p *Prototype) String() string {
	return fmt.Sprintf("%s(%s)", p.Name, strings.Join(p.Parameters, " "))
}

type Function struct {
	Prototype *Prototype
	Body      Expression
}

func (f *Function) String() string {
	return fmt.Sprintf("(def %s %s)", f.Prototype, f.Body)
}

// Form is one top-level input: a definition, an extern, or an anonymous
// expression wrapped in a Function.
type Form interface {
	isForm()
}

type Definition struct {
	Function *Function
}

type Extern struct {
	Prototype *Prototype
}

type TopLevelExpression struct {
	Function *Function
}

func (*Definition) isForm()         {}
func (*Extern) isForm()             {}
func (*TopLevelExpression) isForm() {}
