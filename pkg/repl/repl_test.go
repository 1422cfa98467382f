package repl

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/peterh/liner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	llvmgen "github.com/kartiknair/kaleido/pkg/gen/llvm"
)

type transcript struct {
	out bytes.Buffer
	err bytes.Buffer
	d   *Driver
}

func newTranscript(opts ...Option) *transcript {
	t := &transcript{}
	t.d = New(&t.out, &t.err, append([]Option{WithPrompt("")}, opts...)...)
	return t
}

func (tr *transcript) run(t *testing.T, src string) {
	t.Helper()

	err := tr.d.Run(context.Background(), strings.NewReader(src))
	require.NoError(t, err)
}

func TestScenarios(t *testing.T) {
	for _, tc := range []struct {
		src string
		out string
	}{
		{"4+5;", "-> 9.000000\n"},
		{"1 < 2;", "-> 1.000000\n"},
		{"2 < 1;", "-> 0.000000\n"},
		{"(1+2)*(3+4) - 1;", "-> 20.000000\n"},
		{"extern sin(x); sin(0);", "-> 0.000000\n"},
	} {
		tr := newTranscript()
		tr.run(t, tc.src)

		assert.Contains(t, tr.out.String(), tc.out, tc.src)
		assert.Empty(t, tr.err.String(), tc.src)
	}
}

func TestDefinitionThenCall(t *testing.T) {
	tr := newTranscript()
	tr.run(t, "def test(x) 1+2*x; test(4);")

	out := tr.out.String()
	assert.True(t, strings.HasPrefix(out, "Parsed a function definition\n"), out)
	assert.Contains(t, out, "@test(double %x)")
	assert.True(t, strings.HasSuffix(out, "-> 9.000000\n"), out)
}

func TestConditional(t *testing.T) {
	tr := newTranscript()
	tr.run(t, "def f(x) if x < 3 then 1 else 2; f(2); f(4);")

	assert.True(t, strings.HasSuffix(tr.out.String(), "-> 1.000000\n-> 2.000000\n"), tr.out.String())
}

func TestExtern(t *testing.T) {
	tr := newTranscript()
	tr.run(t, "extern sin(x);")

	out := tr.out.String()
	assert.True(t, strings.HasPrefix(out, "Parsed an extern expr\ndeclare "), out)
	assert.True(t, strings.HasSuffix(out, "double @sin(double %x)\n"), out)
}

func TestErrorKeepsGoing(t *testing.T) {
	tr := newTranscript()
	tr.run(t, "def f(x) y; 4+5;")

	assert.Equal(t, "Error: Undefined variable\n", tr.err.String())
	assert.Equal(t, "-> 9.000000\n", tr.out.String())
	assert.Nil(t, tr.d.Generator.Func("f"))
}

func TestParseErrorSkipsToken(t *testing.T) {
	tr := newTranscript()
	tr.run(t, "def 1; 4+5;")

	assert.Equal(t, "Error: Expected function name in prototype\n", tr.err.String())
	assert.Equal(t, "-> 9.000000\n", tr.out.String())

	tr = newTranscript()
	tr.run(t, ")4+5;")

	assert.Equal(t, "Error: Unknown token, expecting expr\n", tr.err.String())
	assert.Equal(t, "-> 9.000000\n", tr.out.String())
}

func TestLoweringErrors(t *testing.T) {
	for src, want := range map[string]string{
		"g(1);":                      "Error: Call to undefined function\n",
		"extern g(a b); g(1);":       "Error: Incorrect arg count\n",
		"def f(x) x; def f(y) y;":    "Error: Redefinition of function not allowed\n",
		"extern f(a); def f(a b) a;": "Error: Redefining function with arity mismatch\n",
		"extern foo(x); foo(1);":     "Error: unresolved external symbol foo\n",
	} {
		tr := newTranscript()
		tr.run(t, src)
		assert.Equal(t, want, tr.err.String(), src)
	}
}

func TestRebinding(t *testing.T) {
	tr := newTranscript()
	tr.run(t, "extern f(a); def f(b) b+1; f(1);")

	assert.Empty(t, tr.err.String())
	assert.Contains(t, tr.out.String(), "-> 2.000000\n")

	f := tr.d.Generator.Func("f")
	require.NotNil(t, f)
	assert.Len(t, f.Params, 1)
}

func TestAnonymousErased(t *testing.T) {
	tr := newTranscript()
	tr.run(t, "1; extern foo(x); foo(2);")

	assert.Nil(t, tr.d.Generator.Func(llvmgen.AnonymousName))
	assert.NotNil(t, tr.d.Generator.Func("foo"))
}

func TestReportMode(t *testing.T) {
	tr := newTranscript(WithoutJIT())
	tr.run(t, "4+5;")

	out := tr.out.String()
	assert.True(t, strings.HasPrefix(out, "Parsed a top-level expr\n"), out)
	assert.Contains(t, out, "@__anon_expr()")
	assert.Contains(t, out, "ret double")
	assert.NotContains(t, out, "fadd")
	assert.NotContains(t, out, "->")

	tr = newTranscript(WithoutJIT(), WithoutOptimization())
	tr.run(t, "4+5;")
	assert.Contains(t, tr.out.String(), "fadd double")

	// report mode keeps every top-level expression in the module
	tr = newTranscript(WithoutJIT())
	tr.run(t, "1; 2;")
	assert.NotNil(t, tr.d.Generator.Func("__anon_expr"))
	assert.NotNil(t, tr.d.Generator.Func("__anon_expr1"))
}

func TestNonFiniteResults(t *testing.T) {
	for _, opts := range [][]Option{nil, {WithoutOptimization()}} {
		tr := newTranscript(opts...)
		tr.run(t, "1/0; 0-1/0; 0/0;")

		assert.Regexp(t, `^-> inf\n-> -inf\n-> -?nan\n$`, tr.out.String())
		assert.Empty(t, tr.err.String())
	}
}

func TestSessionSpansInputs(t *testing.T) {
	tr := newTranscript()
	tr.run(t, "def sq(x) x*x;")
	tr.out.Reset()

	tr.run(t, "sq(3);")
	assert.Equal(t, "-> 9.000000\n", tr.out.String())
}

func TestOutputBuiltins(t *testing.T) {
	tr := newTranscript()
	tr.run(t, "extern putchard(c); extern printd(x); putchard(65); printd(1.5);")

	assert.Contains(t, tr.out.String(), "A-> 0.000000\n")
	assert.Contains(t, tr.out.String(), "1.500000\n-> 0.000000\n")
}

func TestCallDepth(t *testing.T) {
	tr := newTranscript(WithMaxDepth(50))
	tr.run(t, "def loop(x) loop(x); loop(1); 7;")

	assert.Equal(t, "Error: call depth exceeded\n", tr.err.String())
	assert.Contains(t, tr.out.String(), "-> 7.000000\n")
}

func TestPrompt(t *testing.T) {
	var out, errw bytes.Buffer

	d := New(&out, &errw)
	require.NoError(t, d.Run(context.Background(), strings.NewReader("4+5;")))

	assert.Equal(t, "ready> ready> -> 9.000000\nready> ready> ", out.String())

	out.Reset()
	require.NoError(t, d.Run(context.Background(), strings.NewReader("")))
	assert.Equal(t, "ready> ready> ", out.String())
}

func TestReadError(t *testing.T) {
	boom := errors.New("boom")

	tr := newTranscript()
	err := tr.d.Run(context.Background(), io.MultiReader(strings.NewReader("4+5;"), iotest.ErrReader(boom)))

	assert.Equal(t, boom, err)
	assert.Equal(t, "-> 9.000000\n", tr.out.String())
}

type fakePrompter struct {
	lines   []string
	prompts []string
	history []string
	err     error
}

func (p *fakePrompter) Prompt(prompt string) (string, error) {
	p.prompts = append(p.prompts, prompt)

	if len(p.lines) == 0 {
		if p.err != nil {
			return "", p.err
		}
		return "", io.EOF
	}

	line := p.lines[0]
	p.lines = p.lines[1:]
	return line, nil
}

func (p *fakePrompter) AppendHistory(item string) {
	p.history = append(p.history, item)
}

func TestLineReader(t *testing.T) {
	p := &fakePrompter{lines: []string{"def sq(x)", "  x*x;", "", "sq(4);"}}

	tr := newTranscript()
	require.NoError(t, tr.d.Run(context.Background(), NewLineReader(p, "ready> ")))

	assert.Contains(t, tr.out.String(), "-> 16.000000\n")
	assert.Equal(t, []string{"def sq(x)", "  x*x;", "sq(4);"}, p.history)
	assert.Len(t, p.prompts, 5)
}

func TestLineReaderAbort(t *testing.T) {
	p := &fakePrompter{lines: []string{"1+1;"}, err: liner.ErrPromptAborted}

	tr := newTranscript()
	require.NoError(t, tr.d.Run(context.Background(), NewLineReader(p, "")))
	assert.Equal(t, "-> 2.000000\n", tr.out.String())
}
