package model

import (
	"errors"
	"fmt"

	"github.com/ehce/ehce/internal/registry"
	"github.com/ehce/ehce/internal/slab"
	"gopkg.in/yaml.v3"
)

// Image is the raw content of an image asset. Decoding is left to the
// renderer.
type Image struct {
	Data []byte
}

type RawCharacteristic struct {
	Name string `yaml:"name"`
}

type Characteristic struct {
	Name string
}

type RawComponentStats struct {
	Stats map[string]float64 `yaml:"stats"`
}

// ComponentStats maps characteristics to the amount a component provides.
type ComponentStats struct {
	Stats map[slab.ID[Characteristic]]float64
}

type RawComponent struct {
	Stats string `yaml:"stats"`
}

type Component struct {
	Stats slab.ID[ComponentStats]
}

type RawShip struct {
	Sprite     string  `yaml:"sprite"`
	ModelScale float32 `yaml:"modelScale"`
}

type Ship struct {
	// Sprite is the case folded name of an Image asset.
	Sprite     string
	ModelScale float32
}

type RawInstalledComponent struct {
	Component string  `yaml:"component"`
	Pos       []int64 `yaml:"pos"`
}

type UVec2 struct {
	X, Y uint32
}

type InstalledComponent struct {
	Component slab.ID[Component]
	Pos       UVec2
}

type RawShipBuild struct {
	Ship       string                  `yaml:"ship"`
	Components []RawInstalledComponent `yaml:"components"`
}

type ShipBuild struct {
	Ship       slab.ID[Ship]
	Components []InstalledComponent
}

type RawFleet struct {
	Builds []string `yaml:"builds"`
}

type Fleet struct {
	Builds []slab.ID[ShipBuild]
}

type RawCombatSettings struct {
	Parent      *string                          `yaml:"parent"`
	PlayerFleet registry.RawInlineOrID[RawFleet] `yaml:"playerFleet"`
	EnemyFleet  registry.RawInlineOrID[RawFleet] `yaml:"enemyFleet"`
}

type CombatSettings struct {
	Parent      *slab.ID[CombatSettings]
	PlayerFleet registry.InlineOrID[Fleet]
	EnemyFleet  registry.InlineOrID[Fleet]
}

type RawVariable struct {
	Name     string      `yaml:"name"`
	Computed *RawFormula `yaml:"computed"`
	Default  *RawFormula `yaml:"default"`
}

// Variable is a named numeric attribute of an entity. Its value is the raw
// value plus Computed, when present. Default, when present, seeds the raw
// value the first time the attribute is used.
type Variable struct {
	Name     string
	Computed *Formula
	Default  *Formula
}

type RawEngineDevice struct {
	Acceleration        string `yaml:"acceleration"`
	SpeedCap            string `yaml:"speedCap"`
	AngularAcceleration string `yaml:"angularAcceleration"`
	AngularSpeedCap     string `yaml:"angularSpeedCap"`
}

type EngineDevice struct {
	Acceleration        slab.ID[Variable]
	SpeedCap            slab.ID[Variable]
	AngularAcceleration slab.ID[Variable]
	AngularSpeedCap     slab.ID[Variable]
}

const DeviceEngine = "Engine"

// RawDevice is tagged by deviceType.
type RawDevice struct {
	DeviceType string
	Engine     *RawEngineDevice
}

func (d *RawDevice) UnmarshalYAML(node *yaml.Node) error {
	var head struct {
		DeviceType string `yaml:"deviceType"`
	}
	if err := node.Decode(&head); err != nil {
		return err
	}
	switch head.DeviceType {
	case DeviceEngine:
		var e RawEngineDevice
		if err := node.Decode(&e); err != nil {
			return err
		}
		d.DeviceType, d.Engine = head.DeviceType, &e
	case "":
		return errors.New("device has no deviceType")
	default:
		return fmt.Errorf("unknown deviceType %q", head.DeviceType)
	}
	return nil
}

type Device struct {
	Engine *EngineDevice
}

type RawDefaults struct {
	CombatSettings string `yaml:"combatSettings"`
}

type Defaults struct {
	CombatSettings slab.ID[CombatSettings]
}

type RawModSettings struct {
	Name     string      `yaml:"name"`
	ModID    string      `yaml:"modId"`
	Defaults RawDefaults `yaml:"defaults"`
}

type ModSettings struct {
	Name     string
	ModID    string
	Defaults Defaults
}
