package scripting

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ehce/ehce/internal/expr"
	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/ast"
	"github.com/yuin/gopher-lua/parse"
	"go.uber.org/zap"
)

// Engine compiles formulas as Lua expressions.
//
// Each formula is compiled once into a function prototype. Evaluation borrows
// a VM from a pool, so compiled formulas may be evaluated from several
// goroutines at once even though a single gopher-lua state may not.
type Engine struct {
	pool sync.Pool
	log  *zap.Logger
}

// NewEngine creates a Lua formula engine. Only the math library is opened in
// the evaluation VMs.
func NewEngine(log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Engine{log: log}
	e.pool.New = func() any {
		vm := lua.NewState(lua.Options{SkipOpenLibs: true})
		vm.Push(vm.NewFunction(lua.OpenMath))
		vm.Push(lua.LString(lua.MathLibName))
		vm.Call(1, 0)
		return vm
	}
	return e
}

func (e *Engine) Name() string { return "lua" }

// Parse compiles text as the single returned expression of a chunk.
func (e *Engine) Parse(text string) (expr.Expr, error) {
	chunk, err := parse.Parse(strings.NewReader("return "+text), "formula")
	if err != nil {
		return nil, &expr.ParseError{Text: text, Err: err}
	}
	if len(chunk) != 1 {
		return nil, &expr.ParseError{Text: text, Err: errors.New("formula must be a single expression")}
	}
	ret, ok := chunk[0].(*ast.ReturnStmt)
	if !ok || len(ret.Exprs) != 1 {
		return nil, &expr.ParseError{Text: text, Err: errors.New("formula must be a single expression")}
	}

	var vars []string
	collectVars(ret.Exprs[0], &vars)

	proto, err := lua.Compile(chunk, "formula")
	if err != nil {
		return nil, &expr.ParseError{Text: text, Err: err}
	}
	e.log.Debug("compiled lua formula", zap.String("formula", text), zap.Strings("vars", vars))
	return &formula{engine: e, text: text, proto: proto, vars: vars}, nil
}

// collectVars records bare identifiers. Identifiers used as call targets or
// as the table of an attribute access (math.max) are library names, not
// variables.
func collectVars(x ast.Expr, vars *[]string) {
	switch n := x.(type) {
	case *ast.IdentExpr:
		for _, v := range *vars {
			if v == n.Value {
				return
			}
		}
		*vars = append(*vars, n.Value)
	case *ast.AttrGetExpr:
		if _, ok := n.Object.(*ast.IdentExpr); !ok {
			collectVars(n.Object, vars)
		}
		collectVars(n.Key, vars)
	case *ast.FuncCallExpr:
		if _, ok := n.Func.(*ast.IdentExpr); !ok && n.Func != nil {
			collectVars(n.Func, vars)
		}
		if n.Receiver != nil {
			collectVars(n.Receiver, vars)
		}
		for _, arg := range n.Args {
			collectVars(arg, vars)
		}
	case *ast.ArithmeticOpExpr:
		collectVars(n.Lhs, vars)
		collectVars(n.Rhs, vars)
	case *ast.RelationalOpExpr:
		collectVars(n.Lhs, vars)
		collectVars(n.Rhs, vars)
	case *ast.LogicalOpExpr:
		collectVars(n.Lhs, vars)
		collectVars(n.Rhs, vars)
	case *ast.StringConcatOpExpr:
		collectVars(n.Lhs, vars)
		collectVars(n.Rhs, vars)
	case *ast.UnaryMinusOpExpr:
		collectVars(n.Expr, vars)
	case *ast.UnaryNotOpExpr:
		collectVars(n.Expr, vars)
	case *ast.UnaryLenOpExpr:
		collectVars(n.Expr, vars)
	}
}

type formula struct {
	engine *Engine
	text   string
	proto  *lua.FunctionProto
	vars   []string
}

func (f *formula) Vars() []string  { return f.vars }
func (f *formula) String() string { return f.text }

// env returns a fresh environment holding the formula variables. Library
// names resolve through __index to the VM globals, which are never written,
// so a variable may shadow a library without affecting other formulas.
func (f *formula) env(vm *lua.LState, args []float64) *lua.LTable {
	env := vm.CreateTable(0, len(f.vars))
	for i, name := range f.vars {
		env.RawSetString(name, lua.LNumber(args[i]))
	}
	mt := vm.CreateTable(0, 1)
	mt.RawSetString("__index", vm.G.Global)
	vm.SetMetatable(env, mt)
	return env
}

func (f *formula) Eval(args []float64) (float64, error) {
	if len(args) != len(f.vars) {
		return 0, &expr.ArityError{Want: len(f.vars), Got: len(args)}
	}

	vm := f.engine.pool.Get().(*lua.LState)
	defer f.engine.pool.Put(vm)

	fn := vm.NewFunctionFromProto(f.proto)
	fn.Env = f.env(vm, args)
	vm.Push(fn)
	if err := vm.PCall(0, 1, nil); err != nil {
		return 0, &expr.EvalError{Text: f.text, Err: err}
	}
	ret := vm.Get(-1)
	vm.Pop(1)

	n, ok := ret.(lua.LNumber)
	if !ok {
		return 0, &expr.EvalError{Text: f.text, Err: fmt.Errorf("formula returned %s, not a number", ret.Type())}
	}
	return float64(n), nil
}
