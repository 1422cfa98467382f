package llvmgen

import (
	"strconv"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
	"tlog.app/go/errors"

	"github.com/kartiknair/kaleido/pkg/ast"
	"github.com/kartiknair/kaleido/pkg/gen/llvm/opt"
)

// AnonymousName is the IR name given to the wrapper function of a top-level
// expression. A numeric suffix is added while an earlier one is still in the
// module.
const AnonymousName = "__anon_expr"

// Generator lowers syntax trees into functions of one long-lived module.
// It is not safe for concurrent use.
type Generator struct {
	Module *ir.Module

	// Passes is run over every completed function. Nil disables
	// optimization.
	Passes *opt.Pipeline

	block   *ir.Block
	symbols *SymbolTable
	names   map[string]bool
}

func New(name string) *Generator {
	module := ir.NewModule()
	module.SourceFilename = name

	return &Generator{
		Module:  module,
		Passes:  opt.Default(),
		symbols: NewSymbolTable(),
		names:   make(map[string]bool),
	}
}

// Symbols exposes the parameter environment of the function lowered last.
func (g *Generator) Symbols() *SymbolTable {
	return g.symbols
}

// Func returns the module's function called name, or nil.
func (g *Generator) Func(name string) *ir.Func {
	for _, f := range g.Module.Funcs {
		if f.Name() == name {
			return f
		}
	}

	return nil
}

// Erase removes f from the module.
func (g *Generator) Erase(f *ir.Func) {
	funcs := g.Module.Funcs[:0]
	for _, other := range g.Module.Funcs {
		if other != f {
			funcs = append(funcs, other)
		}
	}

	for i := len(funcs); i < len(g.Module.Funcs); i++ {
		g.Module.Funcs[i] = nil
	}
	g.Module.Funcs = funcs
}

// localName returns base, or base with the smallest numeric suffix that is
// not yet taken in the current function.
func (g *Generator) localName(base string) string {
	name := base
	for i := 1; g.names[name]; i++ {
		name = base + strconv.Itoa(i)
	}

	g.names[name] = true
	return name
}

func (g *Generator) anonymousName() string {
	name := AnonymousName
	for i := 1; g.Func(name) != nil; i++ {
		name = AnonymousName + strconv.Itoa(i)
	}

	return name
}

func appendBlock(f *ir.Func, b *ir.Block) {
	b.Parent = f
	f.Blocks = append(f.Blocks, b)
}

// GenPrototype materializes proto as a function `double(double, ...)` in the
// module and binds its parameters in the symbol table. An existing
// declaration of the same name and arity is reused, which is how a
// definition picks up an earlier extern.
func (g *Generator) GenPrototype(proto *ast.Prototype) (*ir.Func, error) {
	fun, _, err := g.genPrototype(proto)
	return fun, err
}

func (g *Generator) genPrototype(proto *ast.Prototype) (fun *ir.Func, created bool, err error) {
	for name := range g.names {
		delete(g.names, name)
	}

	if proto.IsAnonymous() {
		fun = g.newFunc(g.anonymousName(), len(proto.Parameters))
		created = true
	} else if existing := g.Func(proto.Name); existing != nil {
		if len(existing.Blocks) != 0 {
			return nil, false, errorAt(proto.NameToken, "Redefinition of function not allowed")
		}

		if len(existing.Params) != len(proto.Parameters) {
			return nil, false, errorAt(proto.NameToken, "Redefining function with arity mismatch")
		}

		fun = existing
	} else {
		fun = g.newFunc(proto.Name, len(proto.Parameters))
		created = true
	}

	for i, name := range proto.Parameters {
		param := fun.Params[i]
		param.SetName(g.localName(name))
		g.symbols.Declare(name, param)
	}

	return fun, created, nil
}

func (g *Generator) newFunc(name string, arity int) *ir.Func {
	params := make([]*ir.Param, arity)
	for i := range params {
		params[i] = ir.NewParam("", types.Double)
	}

	fun := g.Module.NewFunc(name, types.Double, params...)
	fun.Linkage = enum.LinkageExternal
	return fun
}

// GenExtern lowers an extern declaration.
func (g *Generator) GenExtern(proto *ast.Prototype) (*ir.Func, error) {
	g.symbols.Reset()
	return g.GenPrototype(proto)
}

// GenFunction lowers a definition or a wrapped top-level expression. On
// failure nothing of the function is left behind: a new function is erased
// and a reused declaration loses its half-built body again.
func (g *Generator) GenFunction(f *ast.Function) (*ir.Func, error) {
	g.symbols.Reset()

	fun, created, err := g.genPrototype(f.Prototype)
	if err != nil {
		return nil, err
	}

	entry := ir.NewBlock(g.localName("entry"))
	appendBlock(fun, entry)
	g.block = entry

	body, err := g.genExpression(f.Body)
	if err != nil {
		g.block = nil
		if created {
			g.Erase(fun)
		} else {
			fun.Blocks = nil
		}
		return nil, err
	}

	g.block.NewRet(body)
	g.block = nil

	if g.Passes != nil {
		g.Passes.Run(fun)
	}

	return fun, nil
}

// Gen lowers one top-level form.
func (g *Generator) Gen(form ast.Form) (*ir.Func, error) {
	switch form := form.(type) {
	case *ast.Definition:
		return g.GenFunction(form.Function)
	case *ast.Extern:
		return g.GenExtern(form.Prototype)
	case *ast.TopLevelExpression:
		return g.GenFunction(form.Function)
	}

	panic("Form node has invalid static type.")
}

func (g *Generator) genExpression(expr ast.Expression) (value.Value, error) {
	switch e := expr.(type) {
	case *ast.NumberExpression:
		return constant.NewFloat(types.Double, e.Value), nil
	case *ast.VariableExpression:
		v, err := g.symbols.Get(e.Name)
		if err != nil {
			return nil, errorAt(e.ErrorToken(), err.Error())
		}
		return v, nil
	case *ast.BinaryExpression:
		return g.genBinary(e)
	case *ast.CallExpression:
		return g.genCall(e)
	case *ast.IfExpression:
		return g.genIf(e)
	}

	panic("Expression node has invalid static type.")
}

func (g *Generator) genBinary(e *ast.BinaryExpression) (value.Value, error) {
	// left is always emitted before right.
	left, err := g.genExpression(e.Left)
	if err != nil {
		return nil, err
	}

	right, err := g.genExpression(e.Right)
	if err != nil {
		return nil, err
	}

	switch e.Operator {
	case '+':
		inst := g.block.NewFAdd(left, right)
		inst.SetName(g.localName("addtmp"))
		return inst, nil
	case '-':
		inst := g.block.NewFSub(left, right)
		inst.SetName(g.localName("subtmp"))
		return inst, nil
	case '*':
		inst := g.block.NewFMul(left, right)
		inst.SetName(g.localName("multmp"))
		return inst, nil
	case '/':
		inst := g.block.NewFDiv(left, right)
		inst.SetName(g.localName("divtmp"))
		return inst, nil
	case '<':
		cmp := g.block.NewFCmp(enum.FPredULT, left, right)
		cmp.SetName(g.localName("cmptmp"))
		// i1 to 0.0 or 1.0
		inst := g.block.NewUIToFP(cmp, types.Double)
		inst.SetName(g.localName("booltmp"))
		return inst, nil
	}

	return nil, errorAt(e.ErrorToken(), "Unsupported binary operator")
}

func (g *Generator) genCall(e *ast.CallExpression) (value.Value, error) {
	callee := g.Func(e.Callee)
	if callee == nil {
		return nil, errorAt(e.ErrorToken(), "Call to undefined function")
	}

	if len(callee.Params) != len(e.Arguments) {
		return nil, errorAt(e.ErrorToken(), "Incorrect arg count")
	}

	args := make([]value.Value, 0, len(e.Arguments))
	for _, a := range e.Arguments {
		arg, err := g.genExpression(a)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}

	inst := g.block.NewCall(callee, args...)
	inst.SetName(g.localName("calltmp"))
	return inst, nil
}

// genIf lowers a conditional into then/else blocks that meet at a phi. The
// incoming blocks of the phi are the blocks the builder is in after each
// branch was lowered, which differ from the fresh then/else blocks as soon
// as a branch contains its own conditional.
func (g *Generator) genIf(e *ast.IfExpression) (value.Value, error) {
	condition, err := g.genExpression(e.Condition)
	if err != nil {
		return nil, err
	}

	cond := g.block.NewFCmp(enum.FPredONE, condition, constant.NewFloat(types.Double, 0))
	cond.SetName(g.localName("ifcond"))

	fun := g.block.Parent

	thenBlock := ir.NewBlock(g.localName("then"))
	elseBlock := ir.NewBlock(g.localName("else"))
	afterBlock := ir.NewBlock(g.localName("ifcont"))

	g.block.NewCondBr(cond, thenBlock, elseBlock)

	appendBlock(fun, thenBlock)
	g.block = thenBlock
	thenValue, err := g.genExpression(e.Then)
	if err != nil {
		return nil, err
	}
	g.block.NewBr(afterBlock)
	thenEnd := g.block

	appendBlock(fun, elseBlock)
	g.block = elseBlock
	elseValue, err := g.genExpression(e.Else)
	if err != nil {
		return nil, err
	}
	g.block.NewBr(afterBlock)
	elseEnd := g.block

	appendBlock(fun, afterBlock)
	g.block = afterBlock

	phi := g.block.NewPhi(
		ir.NewIncoming(thenValue, thenEnd),
		ir.NewIncoming(elseValue, elseEnd),
	)
	phi.Typ = types.Double
	phi.SetName(g.localName("iftmp"))
	return phi, nil
}

// Dump returns the textual IR of f. Unnamed values are numbered first.
func Dump(f *ir.Func) (string, error) {
	if err := f.AssignIDs(); err != nil {
		return "", errors.Wrap(err, "assign ids of %v", f.Name())
	}

	return f.LLString(), nil
}

// String returns the textual IR of the whole module.
func (g *Generator) String() string {
	return g.Module.String()
}
