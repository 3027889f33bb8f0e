// Package registry resolves unordered, string-keyed content items into
// cross-referenced collections addressed by dense slot ids.
//
// A Schema lists the item kinds. Raw items are inserted into a Partial in any
// order; Finish drains every kind, resolving references through reservations
// so forward and backward references behave the same, and converts the
// partial stores into an immutable Registry.
package registry

import (
	"fmt"
	"slices"
)

// Decoder fills v with an item payload.
type Decoder func(v any) error

// Descriptor is an item kind registered in a Schema. It is implemented by
// *Kind and *Singleton.
type Descriptor interface {
	Tag() string
	newState() state
}

// AssetDescriptor is an asset kind registered in a Schema. It is implemented
// by *AssetKind.
type AssetDescriptor interface {
	Tag() string
	newAssetState() assetState
}

type state interface {
	insert(path, id string, decode Decoder) error
	pending() int
	drainOne(p *Partial) error
	finish(r *Registry)
	reopen(r *Registry)
}

type assetState interface {
	finish(r *Registry)
	reopen(r *Registry)
}

// Schema is the runtime table of item and asset kinds.
type Schema struct {
	kinds  []Descriptor
	tags   map[string]Descriptor
	assets []AssetDescriptor
}

func NewSchema() *Schema {
	return &Schema{tags: make(map[string]Descriptor)}
}

// Register adds an item kind under its tag and any aliases. Kinds are drained
// in registration order. Registering a tag twice panics.
func (s *Schema) Register(d Descriptor, aliases ...string) {
	for _, tag := range append([]string{d.Tag()}, aliases...) {
		if _, ok := s.tags[tag]; ok {
			panic(fmt.Sprintf("registry: kind tag %q registered twice", tag))
		}
		s.tags[tag] = d
	}
	s.kinds = append(s.kinds, d)
}

// RegisterAssets adds asset kinds.
func (s *Schema) RegisterAssets(a ...AssetDescriptor) {
	s.assets = append(s.assets, a...)
}

// Lookup returns the kind registered under tag.
func (s *Schema) Lookup(tag string) (Descriptor, bool) {
	d, ok := s.tags[tag]
	return d, ok
}

// Kinds returns the registered item kinds in drain order.
func (s *Schema) Kinds() []Descriptor { return slices.Clone(s.kinds) }

// Tags returns every accepted tag, aliases included, sorted.
func (s *Schema) Tags() []string {
	tags := make([]string, 0, len(s.tags))
	for tag := range s.tags {
		tags = append(tags, tag)
	}
	slices.Sort(tags)
	return tags
}

// NewPartial starts an empty load.
func (s *Schema) NewPartial() *Partial {
	p := &Partial{
		schema: s,
		states: make(map[Descriptor]state, len(s.kinds)),
		assets: make(map[AssetDescriptor]assetState, len(s.assets)),
	}
	for _, d := range s.kinds {
		p.states[d] = d.newState()
	}
	for _, a := range s.assets {
		p.assets[a] = a.newAssetState()
	}
	return p
}

// Reopen starts a load seeded with the contents of a finished registry.
// Items inserted into the returned Partial replace finished items with the
// same key in place, keeping their slot ids, and may reference any finished
// item. r itself is not modified.
func (s *Schema) Reopen(r *Registry) *Partial {
	if r.schema != s {
		panic("registry: reopening a registry built from another schema")
	}
	p := s.NewPartial()
	for _, d := range s.kinds {
		p.states[d].reopen(r)
	}
	for _, a := range s.assets {
		p.assets[a].reopen(r)
	}
	return p
}
