// Package attr evaluates the numeric attributes of a single entity.
//
// Every attribute is a variable of the content registry. Its value is its
// raw value plus, when the variable is computed, the result of its formula
// over other attributes. Results are cached per node and invalidated
// transitively when a raw value changes.
//
// A variable becomes a node the first time it is touched by Calculate, Set
// or Add, including as a dependency of another node. Read-only queries that
// must not grow the graph go through a Probe.
package attr

import (
	"slices"

	"github.com/ehce/ehce/internal/model"
	"github.com/ehce/ehce/internal/slab"
)

// VariableID identifies a variable of the content registry.
type VariableID = slab.ID[model.Variable]

// Stat is an initial raw value.
type Stat struct {
	Variable VariableID
	Value    float64
}

type node struct {
	variable VariableID
	cached   bool
	cache    float64
	value    float64
	formula  *model.Formula
	// deps[i] is the node bound to formula.Args[i].
	deps  []int
	rdeps []int
}

// Graph is the attribute graph of one entity. It is not safe for
// concurrent use; the registry it reads is.
type Graph struct {
	reg        *model.Registry
	ids        map[VariableID]int
	nodes      []node
	inProgress []VariableID
}

func New(reg *model.Registry) *Graph {
	return &Graph{reg: reg, ids: make(map[VariableID]int)}
}

// FromStats creates a graph whose raw values are increased by stats.
// Repeated variables accumulate.
func FromStats(reg *model.Registry, stats []Stat) (*Graph, error) {
	g := New(reg)
	for _, s := range stats {
		if err := g.Add(s.Variable, s.Value); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// StatsByKey converts key/value pairs into stats, in key order.
func StatsByKey(reg *model.Registry, values map[string]float64) ([]Stat, error) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	stats := make([]Stat, 0, len(keys))
	for _, k := range keys {
		id, ok := reg.Variables.ID(k)
		if !ok {
			return nil, &UnknownVariableError{Key: k}
		}
		stats = append(stats, Stat{Variable: id, Value: values[k]})
	}
	return stats, nil
}

// Registry returns the registry the graph reads formulas from.
func (g *Graph) Registry() *model.Registry { return g.reg }

// Lookup returns the id of the variable keyed by key.
func (g *Graph) Lookup(key string) (VariableID, error) {
	id, ok := g.reg.Variables.ID(key)
	if !ok {
		return VariableID{}, &UnknownVariableError{Key: key}
	}
	return id, nil
}

// Len returns the number of materialized nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// Materialized reports whether v has a node.
func (g *Graph) Materialized(v VariableID) bool {
	_, ok := g.ids[v]
	return ok
}

// Raw returns the raw value of a materialized variable.
func (g *Graph) Raw(v VariableID) (float64, bool) {
	idx, ok := g.ids[v]
	if !ok {
		return 0, false
	}
	return g.nodes[idx].value, true
}

// Calculate returns the value of v, materializing it first if needed.
func (g *Graph) Calculate(v VariableID) (float64, error) {
	idx, err := g.ensure(v)
	if err != nil {
		return 0, err
	}
	return g.calculate(idx)
}

// Set replaces the raw value of v.
func (g *Graph) Set(v VariableID, value float64) error {
	idx, err := g.ensure(v)
	if err != nil {
		return err
	}
	g.invalidate(idx)
	g.nodes[idx].value = value
	return nil
}

// Add increases the raw value of v by delta.
func (g *Graph) Add(v VariableID, delta float64) error {
	idx, err := g.ensure(v)
	if err != nil {
		return err
	}
	g.invalidate(idx)
	g.nodes[idx].value += delta
	return nil
}

// RecalculateDirty commits the given probes and then computes every node
// without a cached value.
func (g *Graph) RecalculateDirty(probes ...*Probe) error {
	for _, p := range probes {
		if err := g.Commit(p); err != nil {
			return err
		}
	}
	for idx := range g.nodes {
		if g.nodes[idx].cached {
			continue
		}
		if _, err := g.calculate(idx); err != nil {
			return err
		}
	}
	return nil
}

// Clear drops every node.
func (g *Graph) Clear() {
	clear(g.ids)
	g.nodes = g.nodes[:0]
	g.inProgress = g.inProgress[:0]
}

// Reset drops every node and switches to another registry, as after a
// content reload.
func (g *Graph) Reset(reg *model.Registry) {
	g.Clear()
	g.reg = reg
}

func (g *Graph) key(v VariableID) string { return g.reg.VariableKey(v) }

// ensure returns the node of v, materializing it and its dependencies.
// On failure every node created by the call is removed again, so the graph
// is left as it was.
func (g *Graph) ensure(v VariableID) (int, error) {
	if idx, ok := g.ids[v]; ok {
		return idx, nil
	}
	mark := len(g.nodes)
	idx, err := g.materialize(v)
	if err != nil {
		g.rollback(mark)
		return 0, err
	}
	return idx, nil
}

func (g *Graph) rollback(mark int) {
	for _, n := range g.nodes[mark:] {
		delete(g.ids, n.variable)
	}
	g.nodes = g.nodes[:mark]
	for idx := range g.nodes {
		n := &g.nodes[idx]
		n.rdeps = slices.DeleteFunc(n.rdeps, func(r int) bool { return r >= mark })
	}
	g.inProgress = g.inProgress[:0]
}

// dependency returns the node of arg, materialized as a dependency of the
// variable on top of the in-progress stack.
func (g *Graph) dependency(arg VariableID) (int, error) {
	if i := slices.Index(g.inProgress, arg); i >= 0 {
		keys := make([]string, 0, len(g.inProgress)-i+1)
		for _, v := range g.inProgress[i:] {
			keys = append(keys, g.key(v))
		}
		return 0, &CircularDependencyError{Keys: append(keys, g.key(arg))}
	}
	if idx, ok := g.ids[arg]; ok {
		return idx, nil
	}
	return g.materialize(arg)
}

func (g *Graph) materialize(v VariableID) (int, error) {
	variable := g.reg.Variables.MustGet(v)
	idx := len(g.nodes)
	g.nodes = append(g.nodes, node{variable: v, formula: variable.Computed})
	g.ids[v] = idx
	if variable.Computed == nil && variable.Default == nil {
		return idx, nil
	}

	g.inProgress = append(g.inProgress, v)
	if f := variable.Computed; f != nil {
		for _, arg := range f.Args {
			dep, err := g.dependency(arg)
			if err != nil {
				return 0, err
			}
			g.nodes[idx].deps = append(g.nodes[idx].deps, dep)
			g.nodes[dep].rdeps = append(g.nodes[dep].rdeps, idx)
		}
	}
	if f := variable.Default; f != nil {
		args := make([]float64, len(f.Args))
		for i, arg := range f.Args {
			dep, err := g.dependency(arg)
			if err != nil {
				return 0, err
			}
			if args[i], err = g.calculate(dep); err != nil {
				return 0, err
			}
		}
		value, err := f.Eval(args)
		if err != nil {
			return 0, &DefaultEvaluationError{Key: g.key(v), Err: err}
		}
		g.nodes[idx].value = value
	}
	g.inProgress = g.inProgress[:len(g.inProgress)-1]
	return idx, nil
}

func (g *Graph) calculate(idx int) (float64, error) {
	n := &g.nodes[idx]
	if n.cached {
		return n.cache, nil
	}
	value := n.value
	if n.formula != nil {
		args := make([]float64, len(n.deps))
		for i, dep := range n.deps {
			v, err := g.calculate(dep)
			if err != nil {
				return 0, err
			}
			args[i] = v
		}
		r, err := n.formula.Eval(args)
		if err != nil {
			return 0, &EvaluationError{Key: g.key(n.variable), Err: err}
		}
		value += r
	}
	n.cached, n.cache = true, value
	return value, nil
}

// invalidate clears the cache of idx and of every node depending on it.
// A cached node only ever depends on cached nodes, so an uncached dependent
// has no cached dependents left to clear.
func (g *Graph) invalidate(idx int) {
	g.nodes[idx].cached = false
	for _, r := range g.nodes[idx].rdeps {
		if g.nodes[r].cached {
			g.invalidate(r)
		}
	}
}
