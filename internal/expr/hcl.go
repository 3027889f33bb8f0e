package expr

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// HCL parses formulas as HCL native-syntax expressions.
//
// Variables are bare identifiers; attribute or index access on a variable is
// rejected at parse time. HCL identifiers may contain dashes, so a name
// like hull-damage is rejected rather than read as one variable; write
// subtraction as hull - damage.
type HCL struct {
	funcs map[string]function.Function
}

// NewHCL creates an engine exposing a small numeric function library.
func NewHCL() *HCL {
	return &HCL{
		funcs: map[string]function.Function{
			"abs":    stdlib.AbsoluteFunc,
			"ceil":   stdlib.CeilFunc,
			"floor":  stdlib.FloorFunc,
			"log":    stdlib.LogFunc,
			"max":    stdlib.MaxFunc,
			"min":    stdlib.MinFunc,
			"pow":    stdlib.PowFunc,
			"signum": stdlib.SignumFunc,
		},
	}
}

func (h *HCL) Name() string { return "hcl" }

func (h *HCL) Parse(text string) (Expr, error) {
	e, diags := hclsyntax.ParseExpression([]byte(text), "formula", hcl.InitialPos)
	if diags.HasErrors() {
		return nil, &ParseError{Text: text, Err: diags}
	}

	var vars []string
	for _, tr := range e.Variables() {
		if len(tr) != 1 {
			return nil, &ParseError{Text: text, Err: fmt.Errorf("variable %q: attribute and index access is not supported", tr.RootName())}
		}
		name := tr.RootName()
		if strings.Contains(name, "-") {
			return nil, &ParseError{Text: text, Err: fmt.Errorf("variable %q: names may not contain '-', write subtraction with spaces as in `a - b`", name)}
		}
		vars = appendUnique(vars, name)
	}
	return &hclExpr{text: text, expr: e, vars: vars, funcs: h.funcs}, nil
}

type hclExpr struct {
	text  string
	expr  hclsyntax.Expression
	vars  []string
	funcs map[string]function.Function
}

func (e *hclExpr) Vars() []string  { return e.vars }
func (e *hclExpr) String() string { return e.text }

func (e *hclExpr) Eval(args []float64) (float64, error) {
	if len(args) != len(e.vars) {
		return 0, &ArityError{Want: len(e.vars), Got: len(args)}
	}

	ctx := &hcl.EvalContext{
		Variables: make(map[string]cty.Value, len(args)),
		Functions: e.funcs,
	}
	for i, name := range e.vars {
		if math.IsNaN(args[i]) {
			return 0, &EvalError{Text: e.text, Err: fmt.Errorf("variable %q is NaN", name)}
		}
		ctx.Variables[name] = cty.NumberFloatVal(args[i])
	}

	v, diags := e.expr.Value(ctx)
	if diags.HasErrors() {
		return 0, &EvalError{Text: e.text, Err: diags}
	}
	if v.IsNull() || !v.IsKnown() {
		return 0, &EvalError{Text: e.text, Err: errors.New("formula produced no value")}
	}
	if !v.Type().Equals(cty.Number) {
		return 0, &EvalError{Text: e.text, Err: fmt.Errorf("formula produced %s, not a number", v.Type().FriendlyName())}
	}
	f, _ := v.AsBigFloat().Float64()
	return f, nil
}
