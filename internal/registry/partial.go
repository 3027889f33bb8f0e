package registry

// Partial is a registry under construction. It is not safe for concurrent
// use, and it must not be used after Finish.
type Partial struct {
	schema *Schema
	states map[Descriptor]state
	assets map[AssetDescriptor]assetState
}

// Schema returns the schema the partial registry was created from.
func (p *Partial) Schema() *Schema { return p.schema }

// Insert adds a raw item of the kind registered under tag. decode fills the
// kind's raw shape. Singleton kinds ignore id.
func (p *Partial) Insert(tag, path, id string, decode Decoder) error {
	d, ok := p.schema.Lookup(tag)
	if !ok {
		return Context(fail(&UnknownKind{Tag: tag}), ItemByPath(path, tag))
	}
	return p.state(d).insert(path, id, decode)
}

// Pending returns the number of raw items not yet resolved.
func (p *Partial) Pending() int {
	n := 0
	for _, st := range p.states {
		n += st.pending()
	}
	return n
}

func (p *Partial) state(d Descriptor) state {
	if p.states == nil {
		panic("registry: partial registry used after Finish")
	}
	st, ok := p.states[d]
	if !ok {
		panic("registry: kind " + d.Tag() + " is not part of the schema")
	}
	return st
}

func (p *Partial) asset(a AssetDescriptor) assetState {
	if p.assets == nil {
		panic("registry: partial registry used after Finish")
	}
	st, ok := p.assets[a]
	if !ok {
		panic("registry: asset kind " + a.Tag() + " is not part of the schema")
	}
	return st
}

// Finish resolves every pending item and converts the partial stores into a
// Registry. The first error aborts the whole load. The Partial is unusable
// afterwards either way.
func (p *Partial) Finish() (*Registry, error) {
	defer func() {
		p.states = nil
		p.assets = nil
	}()
	for _, d := range p.schema.kinds {
		st := p.state(d)
		for st.pending() > 0 {
			if err := st.drainOne(p); err != nil {
				return nil, err
			}
		}
	}

	r := &Registry{
		schema:      p.schema,
		collections: make(map[Descriptor]collection, len(p.states)),
		assets:      make(map[AssetDescriptor]any, len(p.assets)),
	}
	for _, d := range p.schema.kinds {
		p.states[d].finish(r)
	}
	for _, a := range p.schema.assets {
		p.assets[a].finish(r)
	}
	return r, nil
}
