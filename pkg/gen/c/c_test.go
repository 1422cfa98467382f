package cgen

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kartiknair/kaleido/pkg/ast"
	"github.com/kartiknair/kaleido/pkg/lexer"
	"github.com/kartiknair/kaleido/pkg/parser"
)

func parse(t *testing.T, src string) []ast.Form {
	t.Helper()

	forms, errs := parser.New(lexer.New(strings.NewReader(src))).ParseAll()
	require.Empty(t, errs, src)
	return forms
}

func TestGen(t *testing.T) {
	out, errs := Gen(parse(t, "def f(x) x+1*2; f(3)"))
	require.Empty(t, errs)

	assert.Equal(t, `int printf(const char *, ...);
int putchar(int);

double f(double x) {
	double tmp_0 = 1.0 * 2.0;
	double tmp_1 = x + tmp_0;
	return tmp_1;
}

static double anon_expr_0(void) {
	double tmp_0 = f(3.0);
	return tmp_0;
}

int main(void) {
	printf("%f\n", anon_expr_0());
	return 0;
}
`, out)
}

func TestGenIf(t *testing.T) {
	g := New()
	for _, form := range parse(t, "def f(x) if x < 3 then 1 else 2") {
		require.NoError(t, g.Gen(form))
	}

	assert.Contains(t, g.String(), `double f(double x) {
	double tmp_0 = !(x >= 3.0);
	double tmp_1;
	if (tmp_0 < 0.0 || tmp_0 > 0.0) {
		tmp_1 = 1.0;
	} else {
		tmp_1 = 2.0;
	}
	return tmp_1;
}
`)
}

func TestGenNestedIf(t *testing.T) {
	g := New()
	for _, form := range parse(t, "def f(x) if x then (if x < 1 then 2 else 3) else 4") {
		require.NoError(t, g.Gen(form))
	}

	assert.Contains(t, g.String(), `double f(double x) {
	double tmp_0;
	if (x < 0.0 || x > 0.0) {
		double tmp_1 = !(x >= 1.0);
		double tmp_2;
		if (tmp_1 < 0.0 || tmp_1 > 0.0) {
			tmp_2 = 2.0;
		} else {
			tmp_2 = 3.0;
		}
		tmp_0 = tmp_2;
	} else {
		tmp_0 = 4.0;
	}
	return tmp_0;
}
`)
}

func TestGenExterns(t *testing.T) {
	out, errs := Gen(parse(t, "extern sin(x); extern putchard(c); putchard(sin(0))"))
	require.Empty(t, errs)

	assert.Contains(t, out, "double sin(double x);\n")
	assert.Contains(t, out, "double putchard(double c);\n")
	assert.Contains(t, out, "double putchard(double x) {\n\tputchar((int)x);\n\treturn 0;\n}\n")
	assert.NotContains(t, out, "double printd(double x) {")

	// a user definition replaces the helper
	out, errs = Gen(parse(t, "extern printd(x); def printd(x) x"))
	require.Empty(t, errs)
	assert.NotContains(t, out, "printf(\"%f\\n\", x)")
}

func TestGenNames(t *testing.T) {
	out, errs := Gen(parse(t, "def int(x) x; def f(a a) a; def g(f) f; int(1)"))
	require.Empty(t, errs)

	assert.Contains(t, out, "double int_(double x) {")
	assert.Contains(t, out, "double tmp_0 = int_(1.0);")
	assert.Contains(t, out, "double f(double a_0, double a) {\n\treturn a;\n}")
	assert.Contains(t, out, "double g(double p_f) {\n\treturn p_f;\n}")
}

func TestGenErrors(t *testing.T) {
	for _, tc := range []struct {
		src string
		err string
	}{
		{"def f(x) y", "Undefined variable"},
		{"g(1)", "Call to undefined function"},
		{"extern g(a b); g(1)", "Incorrect arg count"},
		{"def f(x) x; def f(y) y", "Redefinition of function not allowed"},
		{"extern f(a); def f(a b) a", "Redefining function with arity mismatch"},
	} {
		_, errs := Gen(parse(t, tc.src))
		require.Len(t, errs, 1, tc.src)
		assert.EqualError(t, errs[0], tc.err, tc.src)
	}
}

func TestGenFailedFormLeavesNothing(t *testing.T) {
	g := New()
	before := g.String()

	for _, form := range parse(t, "def f(x) y; 1+q") {
		assert.Error(t, g.Gen(form))
	}
	assert.Equal(t, before, g.String())

	// the failed definition does not make f callable
	assert.EqualError(t, g.Gen(parse(t, "f(1)")[0]), "Call to undefined function")
}

func TestRecursion(t *testing.T) {
	out, errs := Gen(parse(t, "def fib(n) if n < 2 then n else fib(n-1)+fib(n-2)"))
	require.Empty(t, errs)
	assert.Contains(t, out, "= fib(tmp_")
}

func TestGenNumber(t *testing.T) {
	for x, want := range map[float64]string{
		0:           "0.0",
		5:           "5.0",
		0.5:         "0.5",
		1.25:        "1.25",
		1e21:        "1e+21",
		math.Inf(1): "(1.0 / 0.0)",
	} {
		assert.Equal(t, want, genNumber(x))
	}
}
