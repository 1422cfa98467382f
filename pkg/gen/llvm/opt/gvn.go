package opt

import (
	"fmt"
	"math"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/value"
)

// GVN removes redundant computations. An instruction is replaced by an
// equivalent one in a dominating block, or earlier in the same block.
// Calls take part only when the callee is readnone.
type GVN struct{}

func (GVN) Name() string {
	return "gvn"
}

func (GVN) Run(f *ir.Func) bool {
	if len(f.Blocks) == 0 {
		return false
	}

	idom := dominators(f)
	children := make(map[*ir.Block][]*ir.Block)
	for _, b := range f.Blocks {
		if d, ok := idom[b]; ok && d != b {
			children[d] = append(children[d], b)
		}
	}

	g := &gvn{
		f:        f,
		children: children,
		ids:      make(map[value.Value]int),
	}
	g.walk(f.Blocks[0], map[string]value.Value{})

	return g.changed
}

type gvn struct {
	f        *ir.Func
	children map[*ir.Block][]*ir.Block
	ids      map[value.Value]int
	changed  bool
}

// walk visits the dominator tree in preorder. available holds the
// expressions computed in the blocks dominating b.
func (g *gvn) walk(b *ir.Block, available map[string]value.Value) {
	scope := make(map[string]value.Value, len(available))
	for k, v := range available {
		scope[k] = v
	}

	for _, inst := range append([]ir.Instruction(nil), b.Insts...) {
		key, ok := g.key(inst)
		if !ok {
			continue
		}

		if prev, ok := scope[key]; ok {
			replaceAllUses(g.f, inst.(value.Value), prev)
			removeInst(b, inst)
			g.changed = true
			continue
		}

		scope[key] = inst.(value.Value)
	}

	for _, child := range g.children[b] {
		g.walk(child, scope)
	}
}

// key describes the computation of inst. Two instructions with the same key
// compute the same value.
func (g *gvn) key(inst ir.Instruction) (string, bool) {
	switch inst := inst.(type) {
	case *ir.InstFAdd:
		return g.commutative("fadd", inst.X, inst.Y), true
	case *ir.InstFMul:
		return g.commutative("fmul", inst.X, inst.Y), true
	case *ir.InstFSub:
		return fmt.Sprintf("fsub %v %v", g.id(inst.X), g.id(inst.Y)), true
	case *ir.InstFDiv:
		return fmt.Sprintf("fdiv %v %v", g.id(inst.X), g.id(inst.Y)), true
	case *ir.InstFCmp:
		return fmt.Sprintf("fcmp %v %v %v", inst.Pred, g.id(inst.X), g.id(inst.Y)), true
	case *ir.InstUIToFP:
		return fmt.Sprintf("uitofp %v %v", g.id(inst.From), inst.To), true
	case *ir.InstCall:
		callee, ok := inst.Callee.(*ir.Func)
		if !ok || !IsReadNone(callee) {
			return "", false
		}

		key := "call " + callee.Name()
		for _, arg := range inst.Args {
			key += " " + g.id(arg)
		}
		return key, true
	}

	return "", false
}

func (g *gvn) commutative(op string, x, y value.Value) string {
	a, b := g.id(x), g.id(y)
	if a > b {
		a, b = b, a
	}
	return op + " " + a + " " + b
}

// id names a value for use in keys. Constants are named by their contents,
// everything else by identity.
func (g *gvn) id(v value.Value) string {
	if x, ok := floatConst(v); ok {
		return fmt.Sprintf("f%016x", math.Float64bits(x))
	}

	if b, ok := boolConst(v); ok {
		return fmt.Sprintf("b%v", b)
	}

	n, ok := g.ids[v]
	if !ok {
		n = len(g.ids)
		g.ids[v] = n
	}
	return fmt.Sprintf("v%06d", n)
}

// dominators computes the immediate dominator of every block reachable from
// the entry block. The entry block is its own immediate dominator.
func dominators(f *ir.Func) map[*ir.Block]*ir.Block {
	entry := f.Blocks[0]

	var order []*ir.Block
	visited := make(map[*ir.Block]bool)
	var visit func(b *ir.Block)
	visit = func(b *ir.Block) {
		visited[b] = true
		for _, succ := range successors(b) {
			if !visited[succ] {
				visit(succ)
			}
		}
		order = append(order, b)
	}
	visit(entry)

	// reverse postorder
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}

	index := make(map[*ir.Block]int, len(order))
	for i, b := range order {
		index[b] = i
	}

	preds := predecessors(f)
	idom := map[*ir.Block]*ir.Block{entry: entry}

	intersect := func(a, b *ir.Block) *ir.Block {
		for a != b {
			for index[a] > index[b] {
				a = idom[a]
			}
			for index[b] > index[a] {
				b = idom[b]
			}
		}
		return a
	}

	for changed := true; changed; {
		changed = false

		for _, b := range order[1:] {
			var next *ir.Block
			for _, p := range preds[b] {
				if _, ok := idom[p]; !ok {
					continue
				}
				if next == nil {
					next = p
				} else {
					next = intersect(p, next)
				}
			}

			if next != nil && idom[b] != next {
				idom[b] = next
				changed = true
			}
		}
	}

	return idom
}
