// Package model defines the content kinds of a mod and the typed registry
// built from them.
package model

import (
	"fmt"
	"math"

	"github.com/ehce/ehce/internal/expr"
	"github.com/ehce/ehce/internal/registry"
	"github.com/ehce/ehce/internal/slab"
)

// Kind tags as they appear in the type field of an item.
const (
	TagCharacteristic = "Characteristic"
	TagComponentStats = "ComponentStats"
	TagComponent      = "Component"
	TagShip           = "Ship"
	TagShipBuild      = "ShipBuild"
	TagFleet          = "Fleet"
	TagCombatSettings = "CombatSettings"
	TagVariable       = "Variable"
	TagResource       = "Resource"
	TagDevice         = "Device"
	TagModSettings    = "ModSettings"
	TagImage          = "Image"
)

// Schema binds every content kind to its resolver. Formulas are parsed
// with Engine.
type Schema struct {
	*registry.Schema
	Engine expr.Engine

	Images          *registry.AssetKind[Image]
	Characteristics *registry.Kind[RawCharacteristic, Characteristic]
	ComponentStats  *registry.Kind[RawComponentStats, ComponentStats]
	Components      *registry.Kind[RawComponent, Component]
	Ships           *registry.Kind[RawShip, Ship]
	ShipBuilds      *registry.Kind[RawShipBuild, ShipBuild]
	Fleets          *registry.Kind[RawFleet, Fleet]
	CombatSettings  *registry.Kind[RawCombatSettings, CombatSettings]
	Variables       *registry.Kind[RawVariable, Variable]
	Devices         *registry.Kind[RawDevice, Device]
	Settings        *registry.Singleton[RawModSettings, ModSettings]
}

func NewSchema(engine expr.Engine) *Schema {
	s := &Schema{Schema: registry.NewSchema(), Engine: engine}

	s.Images = registry.NewAssetKind[Image](TagImage)
	s.Characteristics = registry.NewKind[RawCharacteristic, Characteristic](TagCharacteristic, s.resolveCharacteristic)
	s.ComponentStats = registry.NewKind[RawComponentStats, ComponentStats](TagComponentStats, s.resolveComponentStats)
	s.Components = registry.NewKind[RawComponent, Component](TagComponent, s.resolveComponent)
	s.Ships = registry.NewKind[RawShip, Ship](TagShip, s.resolveShip)
	s.ShipBuilds = registry.NewKind[RawShipBuild, ShipBuild](TagShipBuild, s.resolveShipBuild)
	s.Fleets = registry.NewKind[RawFleet, Fleet](TagFleet, s.resolveFleet)
	s.CombatSettings = registry.NewKind[RawCombatSettings, CombatSettings](TagCombatSettings, s.resolveCombatSettings)
	s.Variables = registry.NewKind[RawVariable, Variable](TagVariable, s.resolveVariable)
	s.Devices = registry.NewKind[RawDevice, Device](TagDevice, s.resolveDevice)
	s.Settings = registry.NewSingleton[RawModSettings, ModSettings](TagModSettings, s.resolveModSettings)

	s.RegisterAssets(s.Images)
	s.Register(s.Characteristics)
	s.Register(s.ComponentStats)
	s.Register(s.Components)
	s.Register(s.Ships)
	s.Register(s.ShipBuilds)
	s.Register(s.Fleets)
	s.Register(s.CombatSettings)
	s.Register(s.Variables, TagResource)
	s.Register(s.Devices)
	s.Register(s.Settings)
	return s
}

func (s *Schema) resolveCharacteristic(_ *registry.Partial, raw RawCharacteristic) (Characteristic, error) {
	return Characteristic{Name: raw.Name}, nil
}

func (s *Schema) resolveComponentStats(p *registry.Partial, raw RawComponentStats) (ComponentStats, error) {
	stats, err := registry.ResolveMap(p, raw.Stats, s.Characteristics.Ref, func(_ *registry.Partial, v float64) (float64, error) {
		return v, nil
	})
	if err != nil {
		return ComponentStats{}, registry.Context(err, registry.Field("stats"))
	}
	return ComponentStats{Stats: stats}, nil
}

func (s *Schema) resolveComponent(p *registry.Partial, raw RawComponent) (Component, error) {
	stats, err := s.ComponentStats.Ref(p, raw.Stats)
	if err != nil {
		return Component{}, registry.Context(err, registry.Field("stats"))
	}
	return Component{Stats: stats}, nil
}

func (s *Schema) resolveShip(p *registry.Partial, raw RawShip) (Ship, error) {
	sprite, err := s.Images.Ref(p, raw.Sprite)
	if err != nil {
		return Ship{}, registry.Context(err, registry.Field("sprite"))
	}
	if err := registry.Range(float64(raw.ModelScale), 0.1, 100.0); err != nil {
		return Ship{}, registry.Context(err, registry.Field("modelScale"))
	}
	return Ship{Sprite: sprite, ModelScale: raw.ModelScale}, nil
}

func (s *Schema) resolveInstalledComponent(p *registry.Partial, raw RawInstalledComponent) (InstalledComponent, error) {
	component, err := s.Components.Ref(p, raw.Component)
	if err != nil {
		return InstalledComponent{}, registry.Context(err, registry.Field("component"))
	}
	pos, err := resolveUVec2(raw.Pos)
	if err != nil {
		return InstalledComponent{}, registry.Context(err, registry.Field("pos"))
	}
	return InstalledComponent{Component: component, Pos: pos}, nil
}

func resolveUVec2(raw []int64) (UVec2, error) {
	if len(raw) != 2 {
		return UVec2{}, registry.Fail(&registry.Malformed{Err: fmt.Errorf("expected 2 coordinates, got %d", len(raw))})
	}
	for i, v := range raw {
		if err := registry.Range(v, 0, math.MaxUint32); err != nil {
			return UVec2{}, registry.Context(err, registry.Index(i))
		}
	}
	return UVec2{X: uint32(raw[0]), Y: uint32(raw[1])}, nil
}

func (s *Schema) resolveShipBuild(p *registry.Partial, raw RawShipBuild) (ShipBuild, error) {
	ship, err := s.Ships.Ref(p, raw.Ship)
	if err != nil {
		return ShipBuild{}, registry.Context(err, registry.Field("ship"))
	}
	components, err := registry.ResolveSlice(p, raw.Components, s.resolveInstalledComponent)
	if err != nil {
		return ShipBuild{}, registry.Context(err, registry.Field("components"))
	}
	return ShipBuild{Ship: ship, Components: components}, nil
}

func (s *Schema) resolveFleet(p *registry.Partial, raw RawFleet) (Fleet, error) {
	builds, err := registry.ResolveSlice(p, raw.Builds, s.ShipBuilds.Ref)
	if err != nil {
		return Fleet{}, registry.Context(err, registry.Field("builds"))
	}
	return Fleet{Builds: builds}, nil
}

func (s *Schema) resolveCombatSettings(p *registry.Partial, raw RawCombatSettings) (CombatSettings, error) {
	var out CombatSettings
	var err error
	if out.Parent, err = registry.Optional(p, raw.Parent, s.CombatSettings.Ref); err != nil {
		return out, registry.Context(err, registry.Field("parent"))
	}
	if out.PlayerFleet, err = s.Fleets.InlineOrID(p, raw.PlayerFleet); err != nil {
		return out, registry.Context(err, registry.Field("playerFleet"))
	}
	if out.EnemyFleet, err = s.Fleets.InlineOrID(p, raw.EnemyFleet); err != nil {
		return out, registry.Context(err, registry.Field("enemyFleet"))
	}
	return out, nil
}

func (s *Schema) resolveVariable(p *registry.Partial, raw RawVariable) (Variable, error) {
	v := Variable{Name: raw.Name}
	var err error
	if v.Computed, err = s.resolveOptionalFormula(p, raw.Computed); err != nil {
		return v, registry.Context(err, registry.Field("computed"))
	}
	if v.Default, err = s.resolveOptionalFormula(p, raw.Default); err != nil {
		return v, registry.Context(err, registry.Field("default"))
	}
	return v, nil
}

func (s *Schema) resolveDevice(p *registry.Partial, raw RawDevice) (Device, error) {
	if raw.Engine == nil {
		return Device{}, registry.Fail(&registry.Malformed{Err: fmt.Errorf("unsupported deviceType %q", raw.DeviceType)})
	}
	var e EngineDevice
	for _, f := range []struct {
		name, key string
		dst       *slab.ID[Variable]
	}{
		{"acceleration", raw.Engine.Acceleration, &e.Acceleration},
		{"speedCap", raw.Engine.SpeedCap, &e.SpeedCap},
		{"angularAcceleration", raw.Engine.AngularAcceleration, &e.AngularAcceleration},
		{"angularSpeedCap", raw.Engine.AngularSpeedCap, &e.AngularSpeedCap},
	} {
		id, err := s.Variables.Ref(p, f.key)
		if err != nil {
			return Device{}, registry.Context(err, registry.Field(f.name))
		}
		*f.dst = id
	}
	return Device{Engine: &e}, nil
}

func (s *Schema) resolveModSettings(p *registry.Partial, raw RawModSettings) (ModSettings, error) {
	cs, err := s.CombatSettings.Ref(p, raw.Defaults.CombatSettings)
	if err != nil {
		return ModSettings{}, registry.Context(registry.Context(err, registry.Field("combatSettings")), registry.Field("defaults"))
	}
	return ModSettings{
		Name:     raw.Name,
		ModID:    raw.ModID,
		Defaults: Defaults{CombatSettings: cs},
	}, nil
}
