// Package gen translates whole programs with either backend.
package gen

import (
	"github.com/kartiknair/kaleido/pkg/ast"
	cgen "github.com/kartiknair/kaleido/pkg/gen/c"
	llvmgen "github.com/kartiknair/kaleido/pkg/gen/llvm"
)

func C(forms []ast.Form) (string, []error) {
	return cgen.Gen(forms)
}

// LLVM lowers forms in order into a module called name. Forms that fail
// to lower are left out and their errors returned.
func LLVM(name string, forms []ast.Form, optimize bool) (string, []error) {
	g := llvmgen.New(name)
	if !optimize {
		g.Passes = nil
	}

	var errs []error
	for _, form := range forms {
		if _, err := g.Gen(form); err != nil {
			errs = append(errs, err)
		}
	}

	return g.String(), errs
}
