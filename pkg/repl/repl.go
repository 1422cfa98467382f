// Package repl implements the interactive top-level loop: it reads forms
// one at a time, lowers them into a shared module and either prints the
// emitted IR or executes top-level expressions right away.
package repl

import (
	"context"
	"fmt"
	"io"

	"github.com/llir/llvm/ir"
	"tlog.app/go/tlog"

	"github.com/kartiknair/kaleido/pkg/ast"
	"github.com/kartiknair/kaleido/pkg/engine"
	llvmgen "github.com/kartiknair/kaleido/pkg/gen/llvm"
	"github.com/kartiknair/kaleido/pkg/lexer"
	"github.com/kartiknair/kaleido/pkg/parser"
	"github.com/kartiknair/kaleido/pkg/token"
)

const DefaultPrompt = "ready> "

// Driver keeps the module and the engine alive across inputs, so functions
// defined while reading one input can be called from the next.
type Driver struct {
	Generator *llvmgen.Generator

	// Engine executes top-level expressions. When nil they are dumped
	// instead.
	Engine *engine.Engine

	// Prompt is written to Out before every form. Empty disables it.
	Prompt string

	Out io.Writer
	Err io.Writer

	parser *parser.Parser
}

type Option func(d *Driver)

// WithoutJIT switches to report mode.
func WithoutJIT() Option {
	return func(d *Driver) {
		d.Engine = nil
	}
}

func WithoutOptimization() Option {
	return func(d *Driver) {
		d.Generator.Passes = nil
	}
}

func WithPrompt(prompt string) Option {
	return func(d *Driver) {
		d.Prompt = prompt
	}
}

func WithMaxDepth(n int) Option {
	return func(d *Driver) {
		if d.Engine != nil {
			d.Engine.MaxDepth = n
		}
	}
}

func New(out, errw io.Writer, opts ...Option) *Driver {
	gen := llvmgen.New("kaleido")

	d := &Driver{
		Generator: gen,
		Engine:    engine.New(gen.Module, engine.WithOutput(out)),
		Prompt:    DefaultPrompt,
		Out:       out,
		Err:       errw,
	}

	for _, o := range opts {
		o(d)
	}

	return d
}

// Run drives the loop over r until end of input. It only fails when r
// does.
func (d *Driver) Run(ctx context.Context, r io.Reader) error {
	l := lexer.New(r)
	d.parser = parser.New(l)

	d.prompt()
	d.parser.Next()

	for {
		d.prompt()

		switch cur := d.parser.Current(); {
		case cur.Type == token.EOF:
			return l.Err()
		case cur.Is(';'):
			d.parser.Next()
		default:
			_ = d.handle(ctx, cur)
		}
	}
}

func (d *Driver) prompt() {
	if d.Prompt != "" {
		fmt.Fprint(d.Out, d.Prompt)
	}
}

func (d *Driver) handle(ctx context.Context, start token.Token) (err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "form", "token", start.String(), "pos", start.Pos.String())
	defer tr.Finish("err", &err)

	form, err := d.parser.ParseForm()
	if err != nil {
		if perr, ok := err.(*parser.Error); ok {
			tr.Printw("parse error", "pos", perr.Pos.String(), "msg", perr.Msg)
		}

		d.report(err)
		d.parser.Next()
		return err
	}

	f, err := d.Generator.Gen(form)
	if err != nil {
		if lerr, ok := err.(*llvmgen.Error); ok {
			tr.Printw("lowering error", "pos", lerr.Pos.String(), "msg", lerr.Msg)
		}

		d.report(err)
		return err
	}

	tr.Printw("lowered", "func", f.Name(), "blocks", len(f.Blocks))

	var header string
	switch form.(type) {
	case *ast.Definition:
		header = "Parsed a function definition\n"
	case *ast.Extern:
		header = "Parsed an extern expr\n"
	case *ast.TopLevelExpression:
		if d.Engine != nil {
			return d.execute(ctx, f)
		}
		header = "Parsed a top-level expr\n"
	}

	dump, err := llvmgen.Dump(f)
	if err != nil {
		d.report(err)
		return err
	}

	fmt.Fprint(d.Out, header)
	fmt.Fprintln(d.Out, dump)
	return nil
}

func (d *Driver) execute(ctx context.Context, f *ir.Func) (err error) {
	defer d.Generator.Erase(f)

	run, err := d.Engine.Compile(f)
	if err != nil {
		d.report(err)
		return err
	}

	v, err := run()
	if err != nil {
		d.report(err)
		return err
	}

	tlog.SpanFromContext(ctx).Printw("executed", "func", f.Name(), "result", v)
	fmt.Fprintf(d.Out, "-> %s\n", engine.FormatDouble(v))
	return nil
}

func (d *Driver) report(err error) {
	fmt.Fprintf(d.Err, "Error: %s\n", err.Error())
}
