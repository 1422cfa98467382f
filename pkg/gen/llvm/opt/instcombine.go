package opt

import (
	"math"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
)

// InstCombine folds constant operations, removes arithmetic identities,
// moves constants to the right of commutative operations and deletes
// instructions whose results are unused. Calls are never deleted since the
// callee may have side effects.
type InstCombine struct{}

func (InstCombine) Name() string {
	return "instcombine"
}

func (InstCombine) Run(f *ir.Func) bool {
	changed := false

	for {
		progress := false

		for _, b := range f.Blocks {
			for _, inst := range append([]ir.Instruction(nil), b.Insts...) {
				if v, ok := simplify(inst); ok {
					replaceAllUses(f, inst.(value.Value), v)
					removeInst(b, inst)
					progress = true
					continue
				}

				if commute(inst) {
					progress = true
				}
			}
		}

		if removeDead(f) {
			progress = true
		}

		if !progress {
			return changed
		}
		changed = true
	}
}

// simplify returns a value equivalent to inst when there is a simpler one.
func simplify(inst ir.Instruction) (value.Value, bool) {
	switch inst := inst.(type) {
	case *ir.InstFAdd:
		return simplifyArith(inst.X, inst.Y, func(x, y float64) float64 { return x + y },
			func(y float64) bool { return y == 0 && math.Signbit(y) })
	case *ir.InstFSub:
		return simplifyArith(inst.X, inst.Y, func(x, y float64) float64 { return x - y },
			func(y float64) bool { return y == 0 && !math.Signbit(y) })
	case *ir.InstFMul:
		return simplifyArith(inst.X, inst.Y, func(x, y float64) float64 { return x * y },
			func(y float64) bool { return y == 1 })
	case *ir.InstFDiv:
		return simplifyArith(inst.X, inst.Y, func(x, y float64) float64 { return x / y },
			func(y float64) bool { return y == 1 })
	case *ir.InstFCmp:
		x, xok := floatConst(inst.X)
		y, yok := floatConst(inst.Y)
		if xok && yok {
			return newBool(CompareFloat(inst.Pred, x, y)), true
		}
	case *ir.InstUIToFP:
		if !inst.To.Equal(types.Double) {
			return nil, false
		}
		if b, ok := boolConst(inst.From); ok {
			if b {
				return newFloat(1), true
			}
			return newFloat(0), true
		}
	case *ir.InstPhi:
		return uniqueIncoming(inst)
	}

	return nil, false
}

// simplifyArith folds x op y when both are constants, and returns x when y
// is the right identity of op.
func simplifyArith(x, y value.Value, op func(x, y float64) float64, identity func(y float64) bool) (value.Value, bool) {
	xc, xok := floatConst(x)
	yc, yok := floatConst(y)

	if xok && yok {
		r := op(xc, yc)
		if math.IsNaN(r) {
			// keep the instruction so the NaN is produced at run time.
			return nil, false
		}
		return newFloat(r), true
	}

	if yok && identity(yc) {
		return x, true
	}

	return nil, false
}

// uniqueIncoming returns the single value a phi can produce, ignoring
// incoming values that are the phi itself.
func uniqueIncoming(phi *ir.InstPhi) (value.Value, bool) {
	var unique value.Value

	for _, inc := range phi.Incs {
		if inc.X == value.Value(phi) {
			continue
		}

		if unique == nil {
			unique = inc.X
			continue
		}

		if !sameValue(unique, inc.X) {
			return nil, false
		}
	}

	return unique, unique != nil
}

// sameValue reports whether a and b are the same value or equal constants.
func sameValue(a, b value.Value) bool {
	if a == b {
		return true
	}

	if x, ok := floatConst(a); ok {
		if y, ok := floatConst(b); ok {
			return math.Float64bits(x) == math.Float64bits(y)
		}
	}

	if x, ok := boolConst(a); ok {
		if y, ok := boolConst(b); ok {
			return x == y
		}
	}

	return false
}

// commute moves a constant left operand of fadd or fmul to the right.
func commute(inst ir.Instruction) bool {
	switch inst := inst.(type) {
	case *ir.InstFAdd:
		if isConst(inst.X) && !isConst(inst.Y) {
			inst.X, inst.Y = inst.Y, inst.X
			return true
		}
	case *ir.InstFMul:
		if isConst(inst.X) && !isConst(inst.Y) {
			inst.X, inst.Y = inst.Y, inst.X
			return true
		}
	}

	return false
}

func isConst(v value.Value) bool {
	if _, ok := floatConst(v); ok {
		return true
	}
	_, ok := boolConst(v)
	return ok
}

// removeDead deletes unused instructions without side effects.
func removeDead(f *ir.Func) bool {
	changed := false

	for {
		uses := useCounts(f)
		progress := false

		for _, b := range f.Blocks {
			for _, inst := range append([]ir.Instruction(nil), b.Insts...) {
				if _, ok := inst.(*ir.InstCall); ok {
					continue
				}

				v, ok := inst.(value.Value)
				if !ok || uses[v] > 0 {
					continue
				}

				removeInst(b, inst)
				progress = true
			}
		}

		if !progress {
			return changed
		}
		changed = true
	}
}
