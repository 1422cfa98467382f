package opt

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/value"
)

// Reassociate puts the operands of commutative instructions into rank order
// so that later passes see `a+b` and `b+a` as the same expression. Constants
// have the lowest rank and end up on the right, parameters rank by position
// and instructions rank after all parameters in program order.
type Reassociate struct{}

func (Reassociate) Name() string {
	return "reassociate"
}

func (Reassociate) Run(f *ir.Func) bool {
	ranks := rankValues(f)
	changed := false

	for _, b := range f.Blocks {
		for _, inst := range b.Insts {
			var x, y *value.Value

			switch inst := inst.(type) {
			case *ir.InstFAdd:
				x, y = &inst.X, &inst.Y
			case *ir.InstFMul:
				x, y = &inst.X, &inst.Y
			default:
				continue
			}

			if ranks.of(*x) < ranks.of(*y) {
				*x, *y = *y, *x
				changed = true
			}
		}
	}

	return changed
}

type rankMap map[value.Value]int

func rankValues(f *ir.Func) rankMap {
	ranks := make(rankMap)

	rank := 1
	for _, p := range f.Params {
		ranks[p] = rank
		rank++
	}

	for _, b := range f.Blocks {
		for _, inst := range b.Insts {
			if v, ok := inst.(value.Value); ok {
				ranks[v] = rank
				rank++
			}
		}
	}

	return ranks
}

// of returns the rank of v. Constants and unknown values rank 0.
func (r rankMap) of(v value.Value) int {
	return r[v]
}
