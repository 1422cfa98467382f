// Package opt implements a small per-function optimization pipeline over
// llir functions. It understands exactly the instructions the code
// generator emits (floating point arithmetic and comparisons, uitofp,
// calls, phis, br, conditional br and ret) and leaves anything else
// alone.
package opt

import (
	"math"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
)

type Pass interface {
	Name() string
	// Run transforms f in place and reports whether it changed anything.
	Run(f *ir.Func) bool
}

type Pipeline struct {
	Passes []Pass
}

// Default returns basic-aa, instcombine, reassociate, gvn and simplifycfg,
// in that order.
func Default() *Pipeline {
	return &Pipeline{
		Passes: []Pass{
			BasicAA{},
			InstCombine{},
			Reassociate{},
			GVN{},
			SimplifyCFG{},
		},
	}
}

// Run applies every pass once, in order, and returns the names of the
// passes that changed f. Declarations are left untouched.
func (p *Pipeline) Run(f *ir.Func) []string {
	if len(f.Blocks) == 0 {
		return nil
	}

	var changed []string
	for _, pass := range p.Passes {
		if pass.Run(f) {
			changed = append(changed, pass.Name())
		}
	}

	return changed
}

func (p *Pipeline) Names() []string {
	names := make([]string, len(p.Passes))
	for i, pass := range p.Passes {
		names[i] = pass.Name()
	}
	return names
}

// operands returns pointers to the operand slots of inst so that they can be
// rewritten in place.
func operands(inst interface{}) []*value.Value {
	switch inst := inst.(type) {
	case *ir.InstFAdd:
		return []*value.Value{&inst.X, &inst.Y}
	case *ir.InstFSub:
		return []*value.Value{&inst.X, &inst.Y}
	case *ir.InstFMul:
		return []*value.Value{&inst.X, &inst.Y}
	case *ir.InstFDiv:
		return []*value.Value{&inst.X, &inst.Y}
	case *ir.InstFCmp:
		return []*value.Value{&inst.X, &inst.Y}
	case *ir.InstUIToFP:
		return []*value.Value{&inst.From}
	case *ir.InstCall:
		ops := make([]*value.Value, 0, len(inst.Args))
		for i := range inst.Args {
			ops = append(ops, &inst.Args[i])
		}
		return ops
	case *ir.InstPhi:
		ops := make([]*value.Value, 0, len(inst.Incs))
		for _, inc := range inst.Incs {
			ops = append(ops, &inc.X)
		}
		return ops
	case *ir.TermCondBr:
		return []*value.Value{&inst.Cond}
	case *ir.TermRet:
		if inst.X == nil {
			return nil
		}
		return []*value.Value{&inst.X}
	}

	return nil
}

// replaceAllUses rewrites every use of old in f to new.
func replaceAllUses(f *ir.Func, old, new value.Value) {
	for _, b := range f.Blocks {
		for _, inst := range b.Insts {
			for _, op := range operands(inst) {
				if *op == old {
					*op = new
				}
			}
		}

		for _, op := range operands(b.Term) {
			if *op == old {
				*op = new
			}
		}
	}
}

func useCounts(f *ir.Func) map[value.Value]int {
	uses := make(map[value.Value]int)
	for _, b := range f.Blocks {
		for _, inst := range b.Insts {
			for _, op := range operands(inst) {
				uses[*op]++
			}
		}

		for _, op := range operands(b.Term) {
			uses[*op]++
		}
	}

	return uses
}

func removeInst(b *ir.Block, inst ir.Instruction) {
	for i, other := range b.Insts {
		if other == inst {
			copy(b.Insts[i:], b.Insts[i+1:])
			b.Insts[len(b.Insts)-1] = nil
			b.Insts = b.Insts[:len(b.Insts)-1]
			return
		}
	}
}

// floatConst returns the value of a double constant.
func floatConst(v value.Value) (float64, bool) {
	c, ok := v.(*constant.Float)
	if !ok || c.X == nil {
		return 0, false
	}

	x, _ := c.X.Float64()
	return x, true
}

func boolConst(v value.Value) (bool, bool) {
	c, ok := v.(*constant.Int)
	if !ok || c.X == nil {
		return false, false
	}

	return c.X.Sign() != 0, true
}

func newFloat(x float64) value.Value {
	return constant.NewFloat(types.Double, x)
}

func newBool(b bool) value.Value {
	if b {
		return constant.True
	}
	return constant.False
}

// CompareFloat evaluates an fcmp predicate. Ordered predicates are false
// when either operand is NaN, unordered ones are true.
func CompareFloat(pred enum.FPred, x, y float64) bool {
	unordered := math.IsNaN(x) || math.IsNaN(y)

	switch pred {
	case enum.FPredFalse:
		return false
	case enum.FPredTrue:
		return true
	case enum.FPredOEQ:
		return !unordered && x == y
	case enum.FPredOGT:
		return !unordered && x > y
	case enum.FPredOGE:
		return !unordered && x >= y
	case enum.FPredOLT:
		return !unordered && x < y
	case enum.FPredOLE:
		return !unordered && x <= y
	case enum.FPredONE:
		return !unordered && x != y
	case enum.FPredORD:
		return !unordered
	case enum.FPredUEQ:
		return unordered || x == y
	case enum.FPredUGT:
		return unordered || x > y
	case enum.FPredUGE:
		return unordered || x >= y
	case enum.FPredULT:
		return unordered || x < y
	case enum.FPredULE:
		return unordered || x <= y
	case enum.FPredUNE:
		return unordered || x != y
	case enum.FPredUNO:
		return unordered
	}

	return false
}

// predecessors maps every block of f to the blocks branching to it.
func predecessors(f *ir.Func) map[*ir.Block][]*ir.Block {
	preds := make(map[*ir.Block][]*ir.Block, len(f.Blocks))
	for _, b := range f.Blocks {
		if b.Term == nil {
			continue
		}
		for _, succ := range b.Term.Succs() {
			preds[succ] = append(preds[succ], b)
		}
	}

	return preds
}

func successors(b *ir.Block) []*ir.Block {
	if b.Term == nil {
		return nil
	}
	return b.Term.Succs()
}

func phis(b *ir.Block) []*ir.InstPhi {
	var out []*ir.InstPhi
	for _, inst := range b.Insts {
		if phi, ok := inst.(*ir.InstPhi); ok {
			out = append(out, phi)
		}
	}
	return out
}
