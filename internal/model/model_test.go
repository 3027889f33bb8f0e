package model

import (
	"fmt"
	"sort"
	"testing"

	"github.com/ehce/ehce/internal/expr"
	"github.com/ehce/ehce/internal/registry"
	"github.com/ehce/ehce/internal/scripting"
	"github.com/ehce/ehce/internal/slab"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const baseMod = `
- path: characteristics/thrust.yaml
  body: |
    version: "0"
    type: Characteristic
    id: thrust
    name: Thrust
- path: stats/small_engine.yaml
  body: |
    version: "0"
    type: ComponentStats
    id: small_engine_stats
    stats:
      thrust: 12.5
- path: components/small_engine.yaml
  body: |
    version: "0"
    type: Component
    id: small_engine
    stats: small_engine_stats
- path: ships/frigate.yaml
  body: |
    version: "0"
    type: Ship
    id: frigate
    sprite: Frigate.png
    modelScale: 1.5
- path: builds/frigate_default.yaml
  body: |
    version: "0"
    type: ShipBuild
    id: frigate_default
    ship: frigate
    components:
      - component: small_engine
        pos: [0, 0]
      - component: small_engine
        pos: [1, 0]
- path: fleets/player.yaml
  body: |
    version: "0"
    type: Fleet
    id: player
    builds: [frigate_default]
- path: combat/default.json
  body: |
    {"version": "0", "type": "CombatSettings", "id": "default",
     "playerFleet": "player", "enemyFleet": {"builds": ["frigate_default", "frigate_default"]}}
- path: combat/hard.yaml
  body: |
    version: "0"
    type: CombatSettings
    id: hard
    parent: default
    playerFleet: player
    enemyFleet: player
- path: variables/fuel.yaml
  body: |
    version: "0"
    type: Resource
    id: fuel
    name: Fuel
    default: 100
- path: variables/afterburner_cost.yaml
  body: |
    version: "0"
    type: Variable
    id: afterburner_cost
    computed: fuel * 2
- path: variables/thrust.yaml
  body: |
    version: "0"
    type: Variable
    id: thrust
- path: variables/zero.yaml
  body: |
    version: "0"
    type: Variable
    id: zero
    computed: 0
- path: devices/main_engine.yaml
  body: |
    version: "0"
    type: Device
    id: main_engine
    deviceType: Engine
    acceleration: thrust
    speedCap: afterburner_cost
    angularAcceleration: zero
    angularSpeedCap: zero
- path: settings.yaml
  body: |
    version: "0"
    type: ModSettings
    name: Base
    modId: base
    defaults:
      combatSettings: default
`

type file struct {
	Path string `yaml:"path"`
	Body string `yaml:"body"`
}

func parseFiles(t *testing.T, src string) []file {
	t.Helper()
	var files []file
	require.NoError(t, yaml.Unmarshal([]byte(src), &files))
	return files
}

func load(schema *Schema, files []file, extra ...file) (*Registry, error) {
	p := schema.NewPartial()
	if err := schema.InsertImage(p, "images/frigate.png", []byte("png")); err != nil {
		return nil, err
	}
	for _, f := range append(files, extra...) {
		it, err := DecodeItem(f.Path, []byte(f.Body))
		if err != nil {
			return nil, err
		}
		if err := schema.Insert(p, it); err != nil {
			return nil, err
		}
	}
	return schema.Build(p)
}

func item(path, body string) file { return file{Path: path, Body: body} }

func TestLoadAllKinds(t *testing.T) {
	schema := NewSchema(expr.NewHCL())
	r, err := load(schema, parseFiles(t, baseMod))
	require.NoError(t, err)

	assert.Equal(t, map[string]int{
		TagCharacteristic: 1,
		TagComponentStats: 1,
		TagComponent:      1,
		TagShip:           1,
		TagShipBuild:      1,
		TagFleet:          1,
		TagCombatSettings: 2,
		TagVariable:       4,
		TagDevice:         1,
		TagModSettings:    1,
	}, r.Counts())

	build, ok := r.ShipBuilds.GetByKey("frigate_default")
	require.True(t, ok)
	ship := r.Ships.MustGet(build.Data.Ship)
	assert.Equal(t, "frigate.png", ship.Sprite)
	assert.Equal(t, float32(1.5), ship.ModelScale)
	require.Len(t, build.Data.Components, 2)
	assert.Equal(t, UVec2{X: 1, Y: 0}, build.Data.Components[1].Pos)

	component := r.Components.MustGet(build.Data.Components[0].Component)
	stats := r.ComponentStats.MustGet(component.Stats)
	thrust, _ := r.Characteristics.ID("thrust")
	assert.Equal(t, map[slab.ID[Characteristic]]float64{thrust: 12.5}, stats.Stats)

	def, _ := r.CombatSettings.GetByKey("default")
	player := def.Data.PlayerFleet.Get(r.Fleets)
	assert.Equal(t, []slab.ID[ShipBuild]{build.ID}, player.Builds)
	require.NotNil(t, def.Data.EnemyFleet.Inline)
	assert.Len(t, def.Data.EnemyFleet.Get(r.Fleets).Builds, 2)
	assert.Equal(t, 1, r.Fleets.Len(), "inline fleets are not registered")

	hard, _ := r.CombatSettings.GetByKey("hard")
	require.NotNil(t, hard.Data.Parent)
	assert.Equal(t, def.ID, *hard.Data.Parent)

	cost, _ := r.Variables.GetByKey("afterburner_cost")
	require.NotNil(t, cost.Data.Computed)
	require.Len(t, cost.Data.Computed.Args, 1)
	assert.Equal(t, "fuel", r.VariableKey(cost.Data.Computed.Args[0]))
	v, err := cost.Data.Computed.Eval([]float64{10})
	require.NoError(t, err)
	assert.Equal(t, 20.0, v)

	fuel, _ := r.Variables.GetByKey("fuel")
	assert.Equal(t, "Fuel", fuel.Data.Name)
	assert.Nil(t, fuel.Data.Computed)
	require.NotNil(t, fuel.Data.Default)
	assert.Empty(t, fuel.Data.Default.Args)

	engine, _ := r.Devices.GetByKey("main_engine")
	require.NotNil(t, engine.Data.Engine)
	assert.Equal(t, "afterburner_cost", r.VariableKey(engine.Data.Engine.SpeedCap))
	assert.Equal(t, "zero", r.VariableKey(engine.Data.Engine.AngularSpeedCap))

	require.True(t, r.HasSettings)
	assert.Equal(t, "base", r.Settings.ModID)
	assert.Equal(t, def.ID, r.Settings.Defaults.CombatSettings)

	got, ok := r.Lookup(TagResource, "fuel")
	require.True(t, ok)
	assert.Equal(t, "Fuel", got.(Variable).Name)
}

func TestShipModelScaleBounds(t *testing.T) {
	tests := []struct {
		scale string
		check func(t *testing.T, err error)
	}{
		{"0.05", func(t *testing.T, err error) {
			var small *registry.ValueTooSmall
			require.ErrorAs(t, err, &small)
			assert.InDelta(t, 0.1, small.Limit, 1e-9)
			assert.InDelta(t, 0.05, small.Got, 1e-6)
		}},
		{"150", func(t *testing.T, err error) {
			var large *registry.ValueTooLarge
			require.ErrorAs(t, err, &large)
			assert.Equal(t, 100.0, large.Limit)
			assert.Equal(t, 150.0, large.Got)
		}},
		{"1.0", func(t *testing.T, err error) { require.NoError(t, err) }},
	}
	for _, tt := range tests {
		t.Run(tt.scale, func(t *testing.T) {
			schema := NewSchema(expr.NewHCL())
			r, err := load(schema, nil, item("ship.yaml", fmt.Sprintf(
				"version: \"0\"\ntype: Ship\nid: s\nsprite: frigate.png\nmodelScale: %s\n", tt.scale)))
			tt.check(t, err)
			if err == nil {
				s, _ := r.Ships.GetByKey("s")
				assert.Equal(t, float32(1.0), s.Data.ModelScale)
			} else {
				var lerr *registry.Error
				require.ErrorAs(t, err, &lerr)
				assert.Equal(t, []registry.Frame{registry.Field("modelScale"), registry.ItemByID("s", TagShip)}, lerr.Stack)
			}
		})
	}
}

func TestFormulaVariableFrames(t *testing.T) {
	schema := NewSchema(expr.NewHCL())
	_, err := load(schema, nil, item("boost.yaml", `
version: "0"
type: Variable
id: boost
computed: thrust + ghost
`), item("thrust.yaml", "version: \"0\"\ntype: Variable\nid: thrust\n"))

	var missing *registry.MissingItem
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, registry.MissingItem{ID: "ghost", Kind: TagVariable}, *missing)
	assert.Equal(t,
		"Item Variable(ghost) is missing\n"+
			"In expression variable `ghost`\n"+
			"In field `computed`\n"+
			"In item <Variable>`boost`",
		err.Error())
}

func TestBadExpression(t *testing.T) {
	schema := NewSchema(expr.NewHCL())
	_, err := load(schema, nil, item("v.yaml", "version: \"0\"\ntype: Variable\nid: v\ndefault: \"1 +\"\n"))

	var bad *registry.BadExpression
	require.ErrorAs(t, err, &bad)
	var perr *expr.ParseError
	require.ErrorAs(t, err, &perr)

	var lerr *registry.Error
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, []registry.Frame{registry.Field("default"), registry.ItemByID("v", TagVariable)}, lerr.Stack)
}

func TestEnvelopeErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want func(t *testing.T, err error)
	}{
		{"version", "version: \"1\"\ntype: Ship\nid: s\n", func(t *testing.T, err error) {
			var v *registry.UnsupportedVersion
			require.ErrorAs(t, err, &v)
			assert.Equal(t, "1", v.Version)
		}},
		{"no version", "type: Ship\nid: s\n", func(t *testing.T, err error) {
			var v *registry.UnsupportedVersion
			require.ErrorAs(t, err, &v)
		}},
		{"kind", "version: \"0\"\ntype: Planet\nid: p\n", func(t *testing.T, err error) {
			var k *registry.UnknownKind
			require.ErrorAs(t, err, &k)
			assert.Equal(t, "Planet", k.Tag)
		}},
		{"id", "version: \"0\"\ntype: Fleet\nbuilds: []\n", func(t *testing.T, err error) {
			var m *registry.Malformed
			require.ErrorAs(t, err, &m)
		}},
		{"scalar", "just text", func(t *testing.T, err error) {
			var m *registry.Malformed
			require.ErrorAs(t, err, &m)
		}},
		{"empty", "", func(t *testing.T, err error) {
			var m *registry.Malformed
			require.ErrorAs(t, err, &m)
		}},
		{"device type", "version: \"0\"\ntype: Device\nid: d\ndeviceType: Warp\n", func(t *testing.T, err error) {
			var m *registry.Malformed
			require.ErrorAs(t, err, &m)
			assert.ErrorContains(t, err, "Warp")
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			schema := NewSchema(expr.NewHCL())
			_, err := load(schema, nil, item("x.yaml", tt.body))
			tt.want(t, err)

			var lerr *registry.Error
			require.ErrorAs(t, err, &lerr)
			require.NotEmpty(t, lerr.Stack)
			assert.Equal(t, registry.FrameItemByPath, lerr.Stack[len(lerr.Stack)-1].Kind)
			assert.Equal(t, "x.yaml", lerr.Stack[len(lerr.Stack)-1].Name)
		})
	}
}

func TestInstalledComponentPosition(t *testing.T) {
	files := parseFiles(t, baseMod)
	schema := NewSchema(expr.NewHCL())
	_, err := load(schema, files, item("bad_build.yaml", `
version: "0"
type: ShipBuild
id: bad
ship: frigate
components:
  - component: small_engine
    pos: [0, -1]
`))
	var small *registry.ValueTooSmall
	require.ErrorAs(t, err, &small)
	var lerr *registry.Error
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, []registry.Frame{
		registry.Index(1),
		registry.Field("pos"),
		registry.Index(0),
		registry.Field("components"),
		registry.ItemByID("bad", TagShipBuild),
	}, lerr.Stack)
}

func TestDuplicateModSettings(t *testing.T) {
	files := parseFiles(t, baseMod)
	schema := NewSchema(expr.NewHCL())
	_, err := load(schema, files, item("settings2.yaml", `
version: "0"
type: ModSettings
name: Other
modId: other
defaults:
  combatSettings: default
`))
	var dup *registry.DuplicateSingleton
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "settings.yaml", dup.PathA)
	assert.Equal(t, "settings2.yaml", dup.PathB)
}

func TestResourceAndVariableShareKeys(t *testing.T) {
	schema := NewSchema(expr.NewHCL())
	_, err := load(schema, nil,
		item("a.yaml", "version: \"0\"\ntype: Resource\nid: fuel\n"),
		item("b.yaml", "version: \"0\"\ntype: Variable\nid: fuel\n"),
	)
	var dup *registry.DuplicateItem
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, TagVariable, dup.Kind)
}

func TestReplace(t *testing.T) {
	schema := NewSchema(expr.NewHCL())
	r, err := load(schema, parseFiles(t, baseMod))
	require.NoError(t, err)
	oldID, _ := r.Variables.ID("afterburner_cost")

	it, err := DecodeItem("variables/afterburner_cost.yaml", []byte("version: \"0\"\ntype: Variable\nid: afterburner_cost\ncomputed: fuel * 3 + thrust\n"))
	require.NoError(t, err)
	r2, err := r.Replace(it)
	require.NoError(t, err)

	newID, _ := r2.Variables.ID("afterburner_cost")
	assert.Equal(t, oldID, newID)
	cost := r2.Variables.MustGet(newID)
	assert.Equal(t, "fuel * 3 + thrust", cost.Computed.String())
	assert.Equal(t, r.Variables.Len(), r2.Variables.Len())
	assert.Equal(t, "fuel * 2", r.Variables.MustGet(oldID).Computed.String())

	engine, _ := r2.Devices.GetByKey("main_engine")
	assert.Equal(t, newID, engine.Data.Engine.SpeedCap)

	bad, err := DecodeItem("variables/x.yaml", []byte("version: \"0\"\ntype: Variable\nid: x\ncomputed: nothing\n"))
	require.NoError(t, err)
	_, err = r2.Replace(bad)
	var missing *registry.MissingItem
	require.ErrorAs(t, err, &missing)
}

func TestLuaFormulas(t *testing.T) {
	schema := NewSchema(scripting.NewEngine(nil))
	r, err := load(schema, nil,
		item("a.yaml", "version: \"0\"\ntype: Variable\nid: speed\n"),
		item("b.yaml", "version: \"0\"\ntype: Variable\nid: cap\ncomputed: \"math.min(speed, 10) * 2\"\n"),
	)
	require.NoError(t, err)
	c, _ := r.Variables.GetByKey("cap")
	var keys []string
	for _, id := range c.Data.Computed.Args {
		keys = append(keys, r.VariableKey(id))
	}
	sort.Strings(keys)
	assert.Equal(t, []string{"speed"}, keys)
	v, err := c.Data.Computed.Eval([]float64{25})
	require.NoError(t, err)
	assert.Equal(t, 20.0, v)
}
