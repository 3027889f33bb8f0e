package model

import (
	"github.com/ehce/ehce/internal/expr"
	"github.com/ehce/ehce/internal/registry"
	"github.com/ehce/ehce/internal/slab"
	"gopkg.in/yaml.v3"
)

// RawFormula is a formula field as written: a number or an expression
// string.
type RawFormula struct {
	Text string
}

func (f *RawFormula) UnmarshalYAML(node *yaml.Node) error {
	var text string
	if err := node.Decode(&text); err != nil {
		return err
	}
	f.Text = text
	return nil
}

func (f RawFormula) MarshalYAML() (any, error) { return f.Text, nil }

// Formula is a parsed expression whose free variables are variable items.
// Args[i] is the variable bound to Expr.Vars()[i].
type Formula struct {
	Expr expr.Expr
	Args []slab.ID[Variable]
}

func (f *Formula) String() string { return f.Expr.String() }

// Eval evaluates the formula against values aligned to Args.
func (f *Formula) Eval(args []float64) (float64, error) {
	return f.Expr.Eval(args)
}

func (s *Schema) resolveFormula(p *registry.Partial, raw RawFormula) (*Formula, error) {
	e, err := s.Engine.Parse(raw.Text)
	if err != nil {
		return nil, registry.Fail(&registry.BadExpression{Err: err})
	}
	vars := e.Vars()
	f := &Formula{Expr: e, Args: make([]slab.ID[Variable], len(vars))}
	for i, name := range vars {
		id, err := s.Variables.Ref(p, name)
		if err != nil {
			return nil, registry.Context(err, registry.ExprVariable(name))
		}
		f.Args[i] = id
	}
	return f, nil
}

func (s *Schema) resolveOptionalFormula(p *registry.Partial, raw *RawFormula) (*Formula, error) {
	if raw == nil {
		return nil, nil
	}
	return s.resolveFormula(p, *raw)
}
