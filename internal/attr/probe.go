package attr

import "slices"

// Probe is a read-only evaluation session over a Graph.
//
// Calculate on a probe never changes the graph: variables without a node
// are evaluated from the registry as if they had just been materialized,
// and recorded. Graph.Commit later materializes exactly the recorded
// variables. Values reflect the graph at the time of each query.
type Probe struct {
	g          *Graph
	memo       map[VariableID]float64
	wanted     []VariableID
	inProgress []VariableID
}

// Probe starts a read-only session.
func (g *Graph) Probe() *Probe {
	return &Probe{g: g, memo: make(map[VariableID]float64)}
}

// Wanted returns the variables queried without a node, dependencies first.
func (p *Probe) Wanted() []VariableID { return slices.Clone(p.wanted) }

// Calculate returns the value v would have.
func (p *Probe) Calculate(v VariableID) (float64, error) {
	if idx, ok := p.g.ids[v]; ok {
		return p.node(idx)
	}
	if value, ok := p.memo[v]; ok {
		return value, nil
	}
	if i := slices.Index(p.inProgress, v); i >= 0 {
		keys := make([]string, 0, len(p.inProgress)-i+1)
		for _, id := range p.inProgress[i:] {
			keys = append(keys, p.g.key(id))
		}
		return 0, &CircularDependencyError{Keys: append(keys, p.g.key(v))}
	}

	p.inProgress = append(p.inProgress, v)
	defer func() { p.inProgress = p.inProgress[:len(p.inProgress)-1] }()

	variable := p.g.reg.Variables.MustGet(v)
	var value float64
	if f := variable.Default; f != nil {
		args, err := p.args(f.Args)
		if err != nil {
			return 0, err
		}
		if value, err = f.Eval(args); err != nil {
			return 0, &DefaultEvaluationError{Key: p.g.key(v), Err: err}
		}
	}
	if f := variable.Computed; f != nil {
		args, err := p.args(f.Args)
		if err != nil {
			return 0, err
		}
		r, err := f.Eval(args)
		if err != nil {
			return 0, &EvaluationError{Key: p.g.key(v), Err: err}
		}
		value += r
	}

	p.memo[v] = value
	p.wanted = append(p.wanted, v)
	return value, nil
}

func (p *Probe) args(ids []VariableID) ([]float64, error) {
	args := make([]float64, len(ids))
	for i, id := range ids {
		v, err := p.Calculate(id)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return args, nil
}

// node evaluates a materialized node without storing the result.
func (p *Probe) node(idx int) (float64, error) {
	n := &p.g.nodes[idx]
	if n.cached {
		return n.cache, nil
	}
	if n.formula == nil {
		return n.value, nil
	}
	args := make([]float64, len(n.deps))
	for i, dep := range n.deps {
		v, err := p.node(dep)
		if err != nil {
			return 0, err
		}
		args[i] = v
	}
	r, err := n.formula.Eval(args)
	if err != nil {
		return 0, &EvaluationError{Key: p.g.key(n.variable), Err: err}
	}
	return r + n.value, nil
}

// Commit materializes the variables recorded by p and empties it.
func (g *Graph) Commit(p *Probe) error {
	if p.g != g {
		panic("attr: committing a probe of another graph")
	}
	for _, v := range p.wanted {
		if _, err := g.ensure(v); err != nil {
			return err
		}
	}
	p.wanted = p.wanted[:0]
	clear(p.memo)
	return nil
}
