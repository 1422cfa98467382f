package opt

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/value"
)

// SimplifyCFG cleans up the control flow graph. Conditional branches on
// constants become unconditional, unreachable blocks are dropped, phis with
// a single incoming value are replaced by that value and a block is merged
// into its only predecessor when that predecessor branches nowhere else.
type SimplifyCFG struct{}

func (SimplifyCFG) Name() string {
	return "simplifycfg"
}

func (SimplifyCFG) Run(f *ir.Func) bool {
	if len(f.Blocks) == 0 {
		return false
	}

	changed := false
	for {
		progress := foldConstantBranches(f)
		progress = removeUnreachable(f) || progress
		progress = foldSingleIncoming(f) || progress
		progress = mergeBlocks(f) || progress

		if !progress {
			return changed
		}
		changed = true
	}
}

func foldConstantBranches(f *ir.Func) bool {
	changed := false

	for _, b := range f.Blocks {
		term, ok := b.Term.(*ir.TermCondBr)
		if !ok {
			continue
		}

		cond, ok := boolConst(term.Cond)
		if !ok {
			continue
		}

		succs := term.Succs()
		taken, dropped := succs[0], succs[1]
		if !cond {
			taken, dropped = dropped, taken
		}

		if dropped != taken {
			removeIncoming(dropped, b)
		}
		b.NewBr(taken)
		changed = true
	}

	return changed
}

func removeUnreachable(f *ir.Func) bool {
	reachable := map[*ir.Block]bool{}
	work := []*ir.Block{f.Blocks[0]}
	for len(work) != 0 {
		b := work[len(work)-1]
		work = work[:len(work)-1]

		if reachable[b] {
			continue
		}
		reachable[b] = true
		work = append(work, successors(b)...)
	}

	if len(reachable) == len(f.Blocks) {
		return false
	}

	kept := make([]*ir.Block, 0, len(reachable))
	for _, b := range f.Blocks {
		if reachable[b] {
			kept = append(kept, b)
			continue
		}

		for _, succ := range successors(b) {
			removeIncoming(succ, b)
		}
	}

	f.Blocks = kept
	return true
}

func foldSingleIncoming(f *ir.Func) bool {
	changed := false

	for _, b := range f.Blocks {
		for _, phi := range phis(b) {
			if len(phi.Incs) != 1 || phi.Incs[0].X == value.Value(phi) {
				continue
			}

			replaceAllUses(f, phi, phi.Incs[0].X)
			removeInst(b, phi)
			changed = true
		}
	}

	return changed
}

// mergeBlocks folds a block into its predecessor when the predecessor ends
// in an unconditional branch to it and nothing else branches to it.
func mergeBlocks(f *ir.Func) bool {
	changed := false

	for {
		preds := predecessors(f)
		merged := false

		for _, b := range f.Blocks {
			if _, ok := b.Term.(*ir.TermBr); !ok {
				continue
			}

			succ := successors(b)[0]
			if succ == b || succ == f.Blocks[0] || len(preds[succ]) != 1 || len(phis(succ)) != 0 {
				continue
			}

			b.Insts = append(b.Insts, succ.Insts...)
			b.Term = succ.Term

			for _, next := range successors(succ) {
				for _, phi := range phis(next) {
					for _, inc := range phi.Incs {
						if inc.Pred == succ {
							inc.Pred = b
						}
					}
				}
			}

			removeBlock(f, succ)
			merged = true
			break
		}

		if !merged {
			return changed
		}
		changed = true
	}
}

// removeIncoming drops the phi entries of b that come from pred.
func removeIncoming(b *ir.Block, pred *ir.Block) {
	for _, phi := range phis(b) {
		incs := phi.Incs[:0]
		for _, inc := range phi.Incs {
			if inc.Pred != pred {
				incs = append(incs, inc)
			}
		}
		phi.Incs = incs
	}
}

func removeBlock(f *ir.Func, b *ir.Block) {
	for i, other := range f.Blocks {
		if other == b {
			f.Blocks = append(f.Blocks[:i], f.Blocks[i+1:]...)
			return
		}
	}
}
