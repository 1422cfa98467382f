// Package cgen translates top-level forms into a self-contained C
// translation unit. Every intermediate result is bound to its own local
// so that operands are evaluated left to right exactly as in the IR, and
// conditionals become if statements assigning a shared local.
package cgen

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"tlog.app/go/errors"

	"github.com/kartiknair/kaleido/pkg/ast"
)

var reserved = map[string]bool{
	"auto": true, "break": true, "case": true, "char": true, "const": true,
	"continue": true, "default": true, "do": true, "double": true, "else": true,
	"enum": true, "extern": true, "float": true, "for": true, "goto": true,
	"if": true, "inline": true, "int": true, "long": true, "register": true,
	"restrict": true, "return": true, "short": true, "signed": true, "sizeof": true,
	"static": true, "struct": true, "switch": true, "typedef": true, "union": true,
	"unsigned": true, "void": true, "volatile": true, "while": true,

	// used by the generated code itself
	"main": true, "printf": true, "putchar": true,
}

// helpers are host functions with a C definition emitted on demand.
var helpers = map[string]string{
	"putchard": "double putchard(double x) {\n\tputchar((int)x);\n\treturn 0;\n}\n",
	"printd":   "double printd(double x) {\n\tprintf(\"%f\\n\", x);\n\treturn 0;\n}\n",
}

type function struct {
	arity   int
	defined bool
}

// Generator accumulates the C translation of a sequence of forms. A form
// that fails leaves the output untouched.
type Generator struct {
	funcs map[string]*function
	decls []string
	anons []string

	// per function
	lines  []string
	indent int
	temps  int
	params map[string]string
}

func New() *Generator {
	return &Generator{
		funcs: make(map[string]*function),
	}
}

// Mangle returns the C identifier used for a function named name.
func Mangle(name string) string {
	if reserved[name] {
		return name + "_"
	}
	return name
}

func (g *Generator) emit(format string, args ...interface{}) {
	g.lines = append(g.lines, strings.Repeat("\t", g.indent)+fmt.Sprintf(format, args...))
}

func (g *Generator) temp() string {
	name := "tmp_" + strconv.Itoa(g.temps)
	g.temps++
	return name
}

// Gen translates one top-level form.
func (g *Generator) Gen(form ast.Form) error {
	switch form := form.(type) {
	case *ast.Definition:
		return g.genFunction(form.Function, false)
	case *ast.Extern:
		return g.genExtern(form.Prototype)
	case *ast.TopLevelExpression:
		return g.genFunction(form.Function, true)
	}

	panic("Form node has invalid static type.")
}

func (g *Generator) declare(proto *ast.Prototype) (*function, error) {
	f, ok := g.funcs[proto.Name]
	if !ok {
		return &function{arity: len(proto.Parameters)}, nil
	}

	if f.defined {
		return nil, errors.New("Redefinition of function not allowed")
	}

	if f.arity != len(proto.Parameters) {
		return nil, errors.New("Redefining function with arity mismatch")
	}

	return f, nil
}

// genParameters binds the parameters and returns the C parameter list. Only
// the last of several parameters with the same name is visible.
func (g *Generator) genParameters(proto *ast.Prototype) string {
	g.params = make(map[string]string)

	if len(proto.Parameters) == 0 {
		return "void"
	}

	last := make(map[string]int)
	for i, name := range proto.Parameters {
		last[name] = i
	}

	params := make([]string, len(proto.Parameters))
	for i, name := range proto.Parameters {
		cname := name
		if last[name] != i {
			cname = fmt.Sprintf("%s_%d", name, i)
		} else if _, isFunc := g.funcs[name]; isFunc || reserved[name] || name == proto.Name {
			// C shares one namespace between functions and variables
			cname = "p_" + name
		}

		g.params[name] = cname
		params[i] = "double " + cname
	}

	return strings.Join(params, ", ")
}

func (g *Generator) genExtern(proto *ast.Prototype) error {
	f, err := g.declare(proto)
	if err != nil {
		return err
	}

	params := g.genParameters(proto)
	g.funcs[proto.Name] = f
	g.decls = append(g.decls, fmt.Sprintf("double %s(%s);\n", Mangle(proto.Name), params))
	return nil
}

func (g *Generator) genFunction(fn *ast.Function, anonymous bool) error {
	var (
		f    *function
		name string
		err  error
	)

	if anonymous {
		name = "anon_expr_" + strconv.Itoa(len(g.anons))
	} else {
		f, err = g.declare(fn.Prototype)
		if err != nil {
			return err
		}
		name = Mangle(fn.Prototype.Name)
	}

	params := g.genParameters(fn.Prototype)

	// a definition may call itself
	var prev *function
	if !anonymous {
		prev = g.funcs[fn.Prototype.Name]
		g.funcs[fn.Prototype.Name] = f
	}

	g.lines = nil
	g.indent = 1
	g.temps = 0

	result, err := g.genExpression(fn.Body)
	if err != nil {
		if !anonymous {
			if prev == nil {
				delete(g.funcs, fn.Prototype.Name)
			} else {
				g.funcs[fn.Prototype.Name] = prev
			}
		}
		return err
	}
	g.emit("return %s;", result)

	storage := ""
	if anonymous {
		storage = "static "
		g.anons = append(g.anons, name)
	} else {
		f.defined = true
	}

	g.decls = append(g.decls, fmt.Sprintf(
		"%sdouble %s(%s) {\n%s\n}\n",
		storage,
		name,
		params,
		strings.Join(g.lines, "\n"),
	))
	return nil
}

func (g *Generator) genExpression(expr ast.Expression) (string, error) {
	switch e := expr.(type) {
	case *ast.NumberExpression:
		return genNumber(e.Value), nil
	case *ast.VariableExpression:
		name, ok := g.params[e.Name]
		if !ok {
			return "", errors.New("Undefined variable")
		}
		return name, nil
	case *ast.BinaryExpression:
		return g.genBinaryExpression(e)
	case *ast.CallExpression:
		return g.genCallExpression(e)
	case *ast.IfExpression:
		return g.genIfExpression(e)
	}

	panic("Expression node has invalid static type.")
}

func genNumber(x float64) string {
	if math.IsInf(x, 1) {
		return "(1.0 / 0.0)"
	}

	s := strconv.FormatFloat(x, 'g', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

func (g *Generator) genBinaryExpression(e *ast.BinaryExpression) (string, error) {
	left, err := g.genExpression(e.Left)
	if err != nil {
		return "", err
	}

	right, err := g.genExpression(e.Right)
	if err != nil {
		return "", err
	}

	var value string
	switch e.Operator {
	case '+', '-', '*', '/':
		value = fmt.Sprintf("%s %c %s", left, e.Operator, right)
	case '<':
		// unordered less than: true when either side is NaN
		value = fmt.Sprintf("!(%s >= %s)", left, right)
	default:
		return "", errors.New("Unsupported binary operator")
	}

	t := g.temp()
	g.emit("double %s = %s;", t, value)
	return t, nil
}

func (g *Generator) genCallExpression(e *ast.CallExpression) (string, error) {
	f, ok := g.funcs[e.Callee]
	if !ok {
		return "", errors.New("Call to undefined function")
	}

	if f.arity != len(e.Arguments) {
		return "", errors.New("Incorrect arg count")
	}

	args := make([]string, 0, len(e.Arguments))
	for _, a := range e.Arguments {
		arg, err := g.genExpression(a)
		if err != nil {
			return "", err
		}
		args = append(args, arg)
	}

	t := g.temp()
	g.emit("double %s = %s(%s);", t, Mangle(e.Callee), strings.Join(args, ", "))
	return t, nil
}

func (g *Generator) genIfExpression(e *ast.IfExpression) (string, error) {
	cond, err := g.genExpression(e.Condition)
	if err != nil {
		return "", err
	}

	t := g.temp()
	g.emit("double %s;", t)

	// ordered not equal: false for NaN
	g.emit("if (%s < 0.0 || %s > 0.0) {", cond, cond)
	g.indent++
	then, err := g.genExpression(e.Then)
	if err != nil {
		return "", err
	}
	g.emit("%s = %s;", t, then)
	g.indent--

	g.emit("} else {")
	g.indent++
	els, err := g.genExpression(e.Else)
	if err != nil {
		return "", err
	}
	g.emit("%s = %s;", t, els)
	g.indent--
	g.emit("}")

	return t, nil
}

// String returns the complete translation unit. main prints the value of
// every top-level expression in order.
func (g *Generator) String() string {
	var b strings.Builder

	b.WriteString("int printf(const char *, ...);\n")
	b.WriteString("int putchar(int);\n")

	for _, decl := range g.decls {
		b.WriteString("\n")
		b.WriteString(decl)
	}

	for _, name := range []string{"putchard", "printd"} {
		if f, ok := g.funcs[name]; ok && !f.defined && f.arity == 1 {
			b.WriteString("\n")
			b.WriteString(helpers[name])
		}
	}

	b.WriteString("\nint main(void) {\n")
	for _, name := range g.anons {
		fmt.Fprintf(&b, "\tprintf(\"%%f\\n\", %s());\n", name)
	}
	b.WriteString("\treturn 0;\n}\n")

	return b.String()
}

// Gen translates forms and returns the translation unit together with the
// errors of the forms that were skipped.
func Gen(forms []ast.Form) (string, []error) {
	g := New()

	var errs []error
	for _, form := range forms {
		if err := g.Gen(form); err != nil {
			errs = append(errs, err)
		}
	}

	return g.String(), errs
}
