// Package engine executes functions of an llir module in process.
//
// Functions with a body are interpreted block by block. Declarations
// resolve to host builtins by name, the way a JIT resolves external symbols
// against the host process.
package engine

import (
	"io"
	"os"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/value"
	"tlog.app/go/errors"

	"github.com/kartiknair/kaleido/pkg/gen/llvm/opt"
)

const DefaultMaxDepth = 10000

type Engine struct {
	Module   *ir.Module
	Builtins map[string]Builtin

	// MaxDepth bounds the number of nested calls.
	MaxDepth int

	// Out receives the output of builtins such as putchard.
	Out io.Writer
}

type Option func(e *Engine)

func WithOutput(w io.Writer) Option {
	return func(e *Engine) {
		e.Out = w
	}
}

func WithMaxDepth(n int) Option {
	return func(e *Engine) {
		e.MaxDepth = n
	}
}

func WithBuiltin(name string, b Builtin) Option {
	return func(e *Engine) {
		e.Builtins[name] = b
	}
}

func New(m *ir.Module, opts ...Option) *Engine {
	e := &Engine{
		Module:   m,
		Builtins: DefaultBuiltins(),
		MaxDepth: DefaultMaxDepth,
		Out:      os.Stdout,
	}

	for _, o := range opts {
		o(e)
	}

	return e
}

// Lookup returns the module's function called name, or nil.
func (e *Engine) Lookup(name string) *ir.Func {
	for _, f := range e.Module.Funcs {
		if f.Name() == name {
			return f
		}
	}

	return nil
}

// Compile prepares a function without parameters for execution. Every
// function reachable from f through calls must be defined or resolve to a
// builtin of the same arity.
func (e *Engine) Compile(f *ir.Func) (func() (float64, error), error) {
	if len(f.Params) != 0 {
		return nil, errors.New("%v takes %d arguments", f.Name(), len(f.Params))
	}

	if err := e.resolve(f, map[*ir.Func]bool{}); err != nil {
		return nil, err
	}

	return func() (float64, error) {
		return e.Call(f)
	}, nil
}

func (e *Engine) resolve(f *ir.Func, seen map[*ir.Func]bool) error {
	if seen[f] {
		return nil
	}
	seen[f] = true

	if len(f.Blocks) == 0 {
		b, ok := e.Builtins[f.Name()]
		if !ok || b.Arity != len(f.Params) {
			return errors.New("unresolved external symbol %v", f.Name())
		}
		return nil
	}

	for _, b := range f.Blocks {
		for _, inst := range b.Insts {
			call, ok := inst.(*ir.InstCall)
			if !ok {
				continue
			}

			callee, ok := call.Callee.(*ir.Func)
			if !ok {
				return errors.New("indirect call in %v", f.Name())
			}

			if err := e.resolve(callee, seen); err != nil {
				return err
			}
		}
	}

	return nil
}

// Call runs f with the given arguments.
func (e *Engine) Call(f *ir.Func, args ...float64) (float64, error) {
	return e.call(f, args, 0)
}

func (e *Engine) call(f *ir.Func, args []float64, depth int) (float64, error) {
	if len(args) != len(f.Params) {
		return 0, errors.New("%v takes %d arguments, got %d", f.Name(), len(f.Params), len(args))
	}

	if e.MaxDepth > 0 && depth >= e.MaxDepth {
		return 0, errors.New("call depth exceeded")
	}

	if len(f.Blocks) == 0 {
		b, ok := e.Builtins[f.Name()]
		if !ok || b.Arity != len(args) {
			return 0, errors.New("unresolved external symbol %v", f.Name())
		}
		return b.Fn(e.Out, args), nil
	}

	fr := &frame{
		e:      e,
		values: make(map[value.Value]float64, len(args)),
		depth:  depth,
	}
	for i, p := range f.Params {
		fr.values[p] = args[i]
	}

	return fr.run(f)
}

// frame holds the values computed by one activation of a function. Booleans
// are stored as 0 and 1.
type frame struct {
	e      *Engine
	values map[value.Value]float64
	depth  int
}

func (fr *frame) run(f *ir.Func) (float64, error) {
	var prev *ir.Block
	b := f.Blocks[0]

	for {
		if err := fr.enter(b, prev); err != nil {
			return 0, err
		}

		for _, inst := range b.Insts {
			if _, ok := inst.(*ir.InstPhi); ok {
				continue
			}

			if err := fr.exec(inst); err != nil {
				return 0, err
			}
		}

		switch term := b.Term.(type) {
		case *ir.TermRet:
			if term.X == nil {
				return 0, nil
			}
			return fr.eval(term.X)
		case *ir.TermBr:
			prev, b = b, term.Succs()[0]
		case *ir.TermCondBr:
			c, err := fr.eval(term.Cond)
			if err != nil {
				return 0, err
			}

			succs := term.Succs()
			prev = b
			if c != 0 {
				b = succs[0]
			} else {
				b = succs[1]
			}
		default:
			return 0, errors.New("%v: unsupported terminator %T", f.Name(), b.Term)
		}
	}
}

// enter evaluates the phis of b for the edge coming from prev. All phis
// read their operands before any of them is assigned.
func (fr *frame) enter(b, prev *ir.Block) error {
	var (
		phis []*ir.InstPhi
		vals []float64
	)

	for _, inst := range b.Insts {
		phi, ok := inst.(*ir.InstPhi)
		if !ok {
			continue
		}

		found := false
		for _, inc := range phi.Incs {
			if inc.Pred != prev {
				continue
			}

			v, err := fr.eval(inc.X)
			if err != nil {
				return err
			}

			phis = append(phis, phi)
			vals = append(vals, v)
			found = true
			break
		}

		if !found {
			return errors.New("phi %v has no incoming value for the taken edge", phi.Ident())
		}
	}

	for i, phi := range phis {
		fr.values[phi] = vals[i]
	}

	return nil
}

func (fr *frame) exec(inst ir.Instruction) (err error) {
	var r float64

	switch inst := inst.(type) {
	case *ir.InstFAdd:
		r, err = fr.binary(inst.X, inst.Y, func(x, y float64) float64 { return x + y })
	case *ir.InstFSub:
		r, err = fr.binary(inst.X, inst.Y, func(x, y float64) float64 { return x - y })
	case *ir.InstFMul:
		r, err = fr.binary(inst.X, inst.Y, func(x, y float64) float64 { return x * y })
	case *ir.InstFDiv:
		r, err = fr.binary(inst.X, inst.Y, func(x, y float64) float64 { return x / y })
	case *ir.InstFCmp:
		r, err = fr.binary(inst.X, inst.Y, func(x, y float64) float64 {
			if opt.CompareFloat(inst.Pred, x, y) {
				return 1
			}
			return 0
		})
	case *ir.InstUIToFP:
		r, err = fr.eval(inst.From)
	case *ir.InstCall:
		r, err = fr.callInst(inst)
	default:
		return errors.New("unsupported instruction %T", inst)
	}

	if err != nil {
		return err
	}

	fr.values[inst.(value.Value)] = r
	return nil
}

func (fr *frame) binary(x, y value.Value, op func(x, y float64) float64) (float64, error) {
	a, err := fr.eval(x)
	if err != nil {
		return 0, err
	}

	b, err := fr.eval(y)
	if err != nil {
		return 0, err
	}

	return op(a, b), nil
}

func (fr *frame) callInst(inst *ir.InstCall) (float64, error) {
	callee, ok := inst.Callee.(*ir.Func)
	if !ok {
		return 0, errors.New("indirect call")
	}

	args := make([]float64, len(inst.Args))
	for i, a := range inst.Args {
		v, err := fr.eval(a)
		if err != nil {
			return 0, err
		}
		args[i] = v
	}

	return fr.e.call(callee, args, fr.depth+1)
}

func (fr *frame) eval(v value.Value) (float64, error) {
	switch c := v.(type) {
	case *constant.Float:
		x, _ := c.X.Float64()
		return x, nil
	case *constant.Int:
		if c.X.Sign() != 0 {
			return 1, nil
		}
		return 0, nil
	}

	x, ok := fr.values[v]
	if !ok {
		return 0, errors.New("use of undefined value %v", v.Ident())
	}

	return x, nil
}
