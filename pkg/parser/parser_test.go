package parser

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kartiknair/kaleido/pkg/ast"
	"github.com/kartiknair/kaleido/pkg/lexer"
	"github.com/kartiknair/kaleido/pkg/token"
)

func newParser(src string) *Parser {
	p := New(lexer.New(strings.NewReader(src)))
	p.Next()
	return p
}

func parseExpr(t *testing.T, src string) ast.Expression {
	t.Helper()

	expr, err := newParser(src).ParseExpression()
	require.NoError(t, err, src)
	return expr
}

func TestPrimaries(t *testing.T) {
	for src, want := range map[string]string{
		"4":                  "4",
		"x":                  "x",
		"(x)":                "x",
		"((1.5))":            "1.5",
		"f()":                "(call f)",
		"f(1, x, g(y))":      "(call f 1 x (call g y))",
		"if a then b else c": "(if a b c)",
	} {
		assert.Equal(t, want, parseExpr(t, src).String(), src)
	}
}

func TestPrecedence(t *testing.T) {
	for src, want := range map[string]string{
		"1+2*x":       "(+ 1 (* 2 x))",
		"1*2+x":       "(+ (* 1 2) x)",
		"a-b-c":       "(- (- a b) c)",
		"a/b/c":       "(/ (/ a b) c)",
		"a-b+c":       "(+ (- a b) c)",
		"a<b+c":       "(< a (+ b c))",
		"a+b<c":       "(< (+ a b) c)",
		"a<b<c":       "(< (< a b) c)",
		"a+b*c-d":     "(- (+ a (* b c)) d)",
		"a*b+c*d":     "(+ (* a b) (* c d))",
		"a<b*c+d":     "(< a (+ (* b c) d))",
		"(a+b)*c":     "(* (+ a b) c)",
		"f(a+b, c)*2": "(* (call f (+ a b) c) 2)",
		"a+b*c*d+e":   "(+ (+ a (* (* b c) d)) e)",
	} {
		assert.Equal(t, want, parseExpr(t, src).String(), src)
	}
}

// For every pair of operators, a op1 b op2 c groups to the right exactly
// when op2 binds tighter.
func TestPrecedenceLaw(t *testing.T) {
	ops := []byte{'<', '+', '-', '*', '/'}

	for _, op1 := range ops {
		for _, op2 := range ops {
			src := fmt.Sprintf("a %c b %c c", op1, op2)

			var want string
			if Precedence(op1) < Precedence(op2) {
				want = fmt.Sprintf("(%c a (%c b c))", op1, op2)
			} else {
				want = fmt.Sprintf("(%c (%c a b) c)", op2, op1)
			}

			assert.Equal(t, want, parseExpr(t, src).String(), src)
		}
	}
}

func TestIfBranchesAreFullExpressions(t *testing.T) {
	expr := parseExpr(t, "if x < 3 then 1+2 else if y then a*b else c")
	assert.Equal(t, "(if (< x 3) (+ 1 2) (if y (* a b) c))", expr.String())

	// an if expression is a primary, so it swallows trailing operators into
	// its else branch.
	expr = parseExpr(t, "if a then b else c + 1")
	assert.Equal(t, "(if a b (+ c 1))", expr.String())
}

func TestStopsAtNonOperator(t *testing.T) {
	p := newParser("a + b ; c")

	expr, err := p.ParseExpression()
	require.NoError(t, err)
	assert.Equal(t, "(+ a b)", expr.String())
	assert.True(t, p.Current().Is(';'))
}

func TestPrototype(t *testing.T) {
	p := newParser("foo(a b c)")

	proto, err := p.ParsePrototype()
	require.NoError(t, err)
	assert.Equal(t, "foo", proto.Name)
	assert.Equal(t, []string{"a", "b", "c"}, proto.Parameters)
	assert.Equal(t, token.EOF, p.Current().Type)

	proto, err = newParser("dup(x x)").ParsePrototype()
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "x"}, proto.Parameters)
}

func TestForms(t *testing.T) {
	form, err := newParser("def test(x) 1+2*x").ParseForm()
	require.NoError(t, err)
	def, ok := form.(*ast.Definition)
	require.True(t, ok)
	assert.Equal(t, "(def test(x) (+ 1 (* 2 x)))", def.Function.String())

	form, err = newParser("extern sin(x)").ParseForm()
	require.NoError(t, err)
	ext, ok := form.(*ast.Extern)
	require.True(t, ok)
	assert.Equal(t, "sin(x)", ext.Prototype.String())

	form, err = newParser("4+5").ParseForm()
	require.NoError(t, err)
	top, ok := form.(*ast.TopLevelExpression)
	require.True(t, ok)
	assert.True(t, top.Function.Prototype.IsAnonymous())
	assert.Empty(t, top.Function.Prototype.Parameters)
	assert.Equal(t, "(+ 4 5)", top.Function.Body.String())
}

func TestErrors(t *testing.T) {
	for src, want := range map[string]string{
		"(1+2":          "Expected ')'",
		"f(1 2)":        "Expected ',' or ')' in argument list",
		"f(1,)":         "Unknown token, expecting expr",
		")":             "Unknown token, expecting expr",
		"1 + ;":         "Unknown token, expecting expr",
		"if x 1 else 2": "Expected 'then'",
		"if x then 1 2": "Expected 'else'",
		"def (x) x":     "Expected function name in prototype",
		"def f x":       "Expected '(' in prototype",
		"def f(x, y) x": "Expected ')' in prototype",
		"extern 4(x)":   "Expected function name in prototype",
		"then":          "Unknown token, expecting expr",
	} {
		_, err := newParser(src).ParseForm()
		require.Error(t, err, src)
		assert.EqualError(t, err, want, src)

		var perr *Error
		require.ErrorAs(t, err, &perr, src)
	}
}

func TestErrorPosition(t *testing.T) {
	_, err := newParser("def f(x)\n  (x + 1 2").ParseForm()

	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, token.Pos{Line: 2, Column: 10}, perr.Pos)
}

func TestParseAll(t *testing.T) {
	p := New(lexer.New(strings.NewReader("def f(x) x; extern g(); ; f(1) ) 2")))

	forms, errs := p.ParseAll()
	require.Len(t, forms, 4)
	assert.IsType(t, &ast.Definition{}, forms[0])
	assert.IsType(t, &ast.Extern{}, forms[1])
	assert.IsType(t, &ast.TopLevelExpression{}, forms[2])
	assert.IsType(t, &ast.TopLevelExpression{}, forms[3])

	require.Len(t, errs, 1)
	assert.EqualError(t, errs[0], "Unknown token, expecting expr")
}
