package model

import (
	"github.com/ehce/ehce/internal/registry"
	"github.com/ehce/ehce/internal/slab"
)

// Registry is the finished content of a mod with one typed collection per
// kind. It is read-only and safe for concurrent use.
type Registry struct {
	schema *Schema
	reg    *registry.Registry

	Images          *registry.Assets[Image]
	Characteristics *registry.Collection[Characteristic]
	ComponentStats  *registry.Collection[ComponentStats]
	Components      *registry.Collection[Component]
	Ships           *registry.Collection[Ship]
	ShipBuilds      *registry.Collection[ShipBuild]
	Fleets          *registry.Collection[Fleet]
	CombatSettings  *registry.Collection[CombatSettings]
	Variables       *registry.Collection[Variable]
	Devices         *registry.Collection[Device]

	Settings    ModSettings
	HasSettings bool
}

// Insert adds a decoded item file to a load.
func (s *Schema) Insert(p *registry.Partial, it Item) error {
	return p.Insert(it.Type, it.Path, it.ID, it.Decode)
}

// InsertImage adds an image asset to a load.
func (s *Schema) InsertImage(p *registry.Partial, path string, data []byte) error {
	return s.Images.Insert(p, path, Image{Data: data})
}

// Build finishes a load.
func (s *Schema) Build(p *registry.Partial) (*Registry, error) {
	r, err := p.Finish()
	if err != nil {
		return nil, err
	}
	return s.wrap(r), nil
}

func (s *Schema) wrap(r *registry.Registry) *Registry {
	out := &Registry{
		schema:          s,
		reg:             r,
		Images:          s.Images.Assets(r),
		Characteristics: s.Characteristics.Collection(r),
		ComponentStats:  s.ComponentStats.Collection(r),
		Components:      s.Components.Collection(r),
		Ships:           s.Ships.Collection(r),
		ShipBuilds:      s.ShipBuilds.Collection(r),
		Fleets:          s.Fleets.Collection(r),
		CombatSettings:  s.CombatSettings.Collection(r),
		Variables:       s.Variables.Collection(r),
		Devices:         s.Devices.Collection(r),
	}
	out.Settings, out.HasSettings = s.Settings.Get(r)
	return out
}

func (r *Registry) Schema() *Schema { return r.schema }

// Counts returns the number of items per kind.
func (r *Registry) Counts() map[string]int { return r.reg.Counts() }

// Lookup returns an item by kind tag and key.
func (r *Registry) Lookup(tag, key string) (any, bool) { return r.reg.Lookup(tag, key) }

// Replace returns a copy of the registry with items resolved into it. An
// item whose key already exists keeps its slot id; references may point at
// any item of r. r is left untouched, and a failure leaves no partial
// result.
func (r *Registry) Replace(items ...Item) (*Registry, error) {
	p := r.schema.Reopen(r.reg)
	for _, it := range items {
		if err := r.schema.Insert(p, it); err != nil {
			return nil, err
		}
	}
	return r.schema.Build(p)
}

// VariableKey returns the key of a variable, or its slot when it has none.
func (r *Registry) VariableKey(id slab.ID[Variable]) string {
	if key, ok := r.Variables.Key(id); ok {
		return key
	}
	return id.String()
}
