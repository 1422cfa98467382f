package opt

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/enum"
)

// BasicAA is the memory analysis of the pipeline. The language has no
// memory operations of its own, so the only fact worth recording is whether
// a function touches memory at all: a function whose calls all go to
// readnone functions is marked readnone itself.
type BasicAA struct{}

func (BasicAA) Name() string {
	return "basic-aa"
}

func (BasicAA) Run(f *ir.Func) bool {
	if IsReadNone(f) {
		return false
	}

	for _, b := range f.Blocks {
		for _, inst := range b.Insts {
			switch inst := inst.(type) {
			case *ir.InstCall:
				callee, ok := inst.Callee.(*ir.Func)
				if !ok || callee == f || !IsReadNone(callee) {
					return false
				}
			case *ir.InstLoad, *ir.InstStore, *ir.InstAlloca:
				return false
			}
		}
	}

	f.FuncAttrs = append(f.FuncAttrs, enum.FuncAttrReadNone)
	return true
}

func IsReadNone(f *ir.Func) bool {
	for _, attr := range f.FuncAttrs {
		if attr == enum.FuncAttrReadNone {
			return true
		}
	}

	return false
}
