package mods

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ehce/ehce/internal/attr"
	"github.com/ehce/ehce/internal/model"
	"github.com/ehce/ehce/internal/registry"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseCounts = map[string]int{
	model.TagCharacteristic: 1,
	model.TagComponentStats: 1,
	model.TagComponent:      1,
	model.TagShip:           1,
	model.TagShipBuild:      1,
	model.TagFleet:          1,
	model.TagCombatSettings: 1,
	model.TagVariable:       2,
	model.TagDevice:         0,
	model.TagModSettings:    1,
}

func readBase(t *testing.T) []File {
	t.Helper()
	files, err := ReadDir(filepath.Join("testdata", "base"))
	require.NoError(t, err)
	return files
}

func TestLoadDir(t *testing.T) {
	data, err := LoadDir(context.Background(), filepath.Join("testdata", "base"), Options{})
	require.NoError(t, err)

	assert.Equal(t, "base", data.ModID, "ModSettings name the mod")
	assert.Equal(t, baseCounts, data.Registry.Counts())
	assert.NotEqual(t, uuid.Nil, data.LoadID)
	assert.Len(t, data.Fingerprint, 64)
	assert.NotContains(t, data.Paths, "README.txt")
	assert.Contains(t, data.Paths, "images/frigate.png")
	assert.Contains(t, data.Paths, "builds/frigate_default.json")

	build, ok := data.Registry.ShipBuilds.GetByKey("frigate_default")
	require.True(t, ok)
	ship := data.Registry.Ships.MustGet(build.Data.Ship)
	assert.Equal(t, "frigate.png", ship.Sprite)
	_, ok = data.Registry.Images.Get(ship.Sprite)
	assert.True(t, ok)
}

func TestFingerprintIgnoresFileOrder(t *testing.T) {
	files := readBase(t)
	a, err := LoadFiles(context.Background(), files, Options{})
	require.NoError(t, err)

	reversed := make([]File, len(files))
	for i, f := range files {
		reversed[len(files)-1-i] = f
	}
	b, err := LoadFiles(context.Background(), reversed, Options{})
	require.NoError(t, err)
	assert.Equal(t, a.Fingerprint, b.Fingerprint)
	assert.Equal(t, a.Paths, b.Paths)
	assert.NotEqual(t, a.LoadID, b.LoadID)

	changed := append([]File(nil), files...)
	for i, f := range changed {
		if f.Path == "variables/speed.yaml" {
			changed[i].Data = []byte("version: \"0\"\ntype: Variable\nid: speed\ncomputed: thrust * 5\n")
		}
	}
	c, err := LoadFiles(context.Background(), changed, Options{})
	require.NoError(t, err)
	assert.NotEqual(t, a.Fingerprint, c.Fingerprint)
}

func TestLoadErrors(t *testing.T) {
	ship := File{Path: "ships/frigate.yaml", Data: []byte("version: \"0\"\ntype: Ship\nid: frigate\nsprite: frigate.png\nmodelScale: 1\n")}

	tests := []struct {
		name   string
		items  []File
		assets []File
		check  func(t *testing.T, err error)
	}{
		{
			name:  "missing asset",
			items: []File{ship},
			check: func(t *testing.T, err error) {
				var missing *registry.MissingAsset
				require.ErrorAs(t, err, &missing)
				assert.Equal(t, "frigate.png", missing.Name)
			},
		},
		{
			name:   "duplicate asset",
			items:  []File{ship},
			assets: []File{{Path: "a/frigate.png"}, {Path: "b/FRIGATE.png"}},
			check: func(t *testing.T, err error) {
				var dup *registry.DuplicateAsset
				require.ErrorAs(t, err, &dup)
				assert.Equal(t, "a/frigate.png", dup.PathA)
				assert.Equal(t, "b/FRIGATE.png", dup.PathB)
			},
		},
		{
			name:   "duplicate item",
			items:  []File{ship, {Path: "ships/copy.yaml", Data: ship.Data}},
			assets: []File{{Path: "frigate.png"}},
			check: func(t *testing.T, err error) {
				var dup *registry.DuplicateItem
				require.ErrorAs(t, err, &dup)
				assert.Equal(t, "ships/frigate.yaml", dup.PathA)
				assert.Equal(t, "ships/copy.yaml", dup.PathB)
			},
		},
		{
			name:  "malformed item",
			items: []File{{Path: "broken.yaml", Data: []byte("{")}},
			check: func(t *testing.T, err error) {
				var malformed *registry.Malformed
				require.ErrorAs(t, err, &malformed)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Load(context.Background(), tt.items, tt.assets, Options{})
			require.Error(t, err)
			assert.Nil(t, data)
			tt.check(t, err)
		})
	}
}

func TestLoadCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := LoadFiles(ctx, readBase(t), Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadDirMissing(t *testing.T) {
	_, err := LoadDir(context.Background(), filepath.Join(t.TempDir(), "nope"), Options{})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadWithLua(t *testing.T) {
	engine, err := NewEngine("lua", nil)
	require.NoError(t, err)
	data, err := LoadFiles(context.Background(), readBase(t), Options{Engine: engine})
	require.NoError(t, err)

	g := attr.New(data.Registry)
	thrust, err := g.Lookup("thrust")
	require.NoError(t, err)
	speed, err := g.Lookup("speed")
	require.NoError(t, err)
	require.NoError(t, g.Set(thrust, 2))
	got, err := g.Calculate(speed)
	require.NoError(t, err)
	assert.Equal(t, 8.0, got)

	_, err = NewEngine("python", nil)
	assert.Error(t, err)
}

func TestAvailable(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "alpha"), 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(root, "beta"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), nil, 0o644))

	assert.Equal(t, []string{"alpha", "beta"}, Available(root, filepath.Join(root, "missing")))
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg, "ehce")
	require.NoError(t, err)

	_, err = LoadFiles(context.Background(), readBase(t), Options{Metrics: m})
	require.NoError(t, err)
	_, err = Load(context.Background(), []File{{Path: "x.yaml", Data: []byte("[]")}}, nil, Options{Metrics: m})
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.loads.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.loads.WithLabelValues("error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.items.WithLabelValues(model.TagVariable)))

	m.AttributeError(&attr.CircularDependencyError{Keys: []string{"a", "a"}})
	m.AttributeError(&attr.EvaluationError{Key: "a", Err: errors.New("boom")})
	m.AttributeError(nil)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.attrErrors.WithLabelValues("circular_dependency")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.attrErrors.WithLabelValues("evaluation")))

	_, err = NewMetrics(reg, "ehce")
	assert.Error(t, err, "collectors register once")

	var nilMetrics *Metrics
	assert.NotPanics(t, func() { nilMetrics.AttributeError(errors.New("x")) })
}

func TestAttributeErrorKind(t *testing.T) {
	assert.Equal(t, "unknown_variable", AttributeErrorKind(&attr.UnknownVariableError{Key: "x"}))
	assert.Equal(t, "default", AttributeErrorKind(&attr.DefaultEvaluationError{Key: "x", Err: errors.New("x")}))
	assert.Equal(t, "other", AttributeErrorKind(errors.New("x")))
}
