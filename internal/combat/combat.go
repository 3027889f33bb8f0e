// Package combat spawns ship builds as entities with attribute graphs.
package combat

import (
	"fmt"
	"slices"

	"github.com/ehce/ehce/internal/attr"
	"github.com/ehce/ehce/internal/core/ecs"
	"github.com/ehce/ehce/internal/model"
	"github.com/ehce/ehce/internal/slab"
	"go.uber.org/zap"
)

type Team uint8

const (
	TeamPlayer Team = iota
	TeamEnemy
)

func (t Team) String() string {
	if t == TeamEnemy {
		return "enemy"
	}
	return "player"
}

// Unit is the content a spawned ship was built from.
type Unit struct {
	Build slab.ID[model.ShipBuild]
	Ship  slab.ID[model.Ship]
	Team  Team
}

// World holds spawned units and their attribute graphs.
type World struct {
	*ecs.World
	Units  *ecs.Store[Unit]
	Graphs *ecs.Store[attr.Graph]

	log *zap.Logger
}

func NewWorld(log *zap.Logger) *World {
	if log == nil {
		log = zap.NewNop()
	}
	w := &World{
		World:  ecs.NewWorld(),
		Units:  ecs.NewStore[Unit](),
		Graphs: ecs.NewStore[attr.Graph](),
		log:    log,
	}
	w.Register(w.Units)
	w.Register(w.Graphs)
	return w
}

// Graph returns the attribute graph of a unit.
func (w *World) Graph(id ecs.EntityID) (*attr.Graph, bool) {
	return w.Graphs.Get(id)
}

// BuildStats sums the characteristic stats of every installed component.
// Each characteristic feeds the variable with the same key. Stats are
// ordered by key.
func BuildStats(reg *model.Registry, build model.ShipBuild) ([]attr.Stat, error) {
	sums := make(map[string]float64)
	for _, installed := range build.Components {
		component := reg.Components.MustGet(installed.Component)
		stats := reg.ComponentStats.MustGet(component.Stats)
		for ch, v := range stats.Stats {
			key, ok := reg.Characteristics.Key(ch)
			if !ok {
				return nil, fmt.Errorf("characteristic %s is not registered", ch)
			}
			sums[key] += v
		}
	}
	keys := make([]string, 0, len(sums))
	for k := range sums {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	out := make([]attr.Stat, 0, len(keys))
	for _, k := range keys {
		v, ok := reg.Variables.ID(k)
		if !ok {
			return nil, &attr.UnknownVariableError{Key: k}
		}
		out = append(out, attr.Stat{Variable: v, Value: sums[k]})
	}
	return out, nil
}

// Spawn creates a player unit for a ship build.
func Spawn(w *World, reg *model.Registry, build slab.ID[model.ShipBuild]) (ecs.EntityID, error) {
	return spawn(w, reg, build, TeamPlayer)
}

func spawn(w *World, reg *model.Registry, buildID slab.ID[model.ShipBuild], team Team) (ecs.EntityID, error) {
	build := reg.ShipBuilds.MustGet(buildID)
	key, _ := reg.ShipBuilds.Key(buildID)

	stats, err := BuildStats(reg, build)
	if err != nil {
		return 0, fmt.Errorf("spawn %s: %w", key, err)
	}
	g, err := attr.FromStats(reg, stats)
	if err != nil {
		return 0, fmt.Errorf("spawn %s: %w", key, err)
	}

	id := w.CreateEntity()
	w.Units.Set(id, &Unit{Build: buildID, Ship: build.Ship, Team: team})
	w.Graphs.Set(id, g)
	w.log.Debug("unit spawned",
		zap.Stringer("entity", id),
		zap.String("build", key),
		zap.Stringer("team", team),
		zap.Int("stats", len(stats)),
	)
	return id, nil
}

// SpawnFleet spawns every build of a fleet. Nothing is spawned on error.
func SpawnFleet(w *World, reg *model.Registry, fleet model.Fleet, team Team) ([]ecs.EntityID, error) {
	ids := make([]ecs.EntityID, 0, len(fleet.Builds))
	for _, b := range fleet.Builds {
		id, err := spawn(w, reg, b, team)
		if err != nil {
			for _, done := range ids {
				w.Destroy(done)
			}
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Start spawns both fleets of a combat settings item.
func Start(w *World, reg *model.Registry, settings slab.ID[model.CombatSettings]) (player, enemy []ecs.EntityID, err error) {
	cs := reg.CombatSettings.MustGet(settings)
	player, err = SpawnFleet(w, reg, cs.PlayerFleet.Get(reg.Fleets), TeamPlayer)
	if err != nil {
		return nil, nil, err
	}
	enemy, err = SpawnFleet(w, reg, cs.EnemyFleet.Get(reg.Fleets), TeamEnemy)
	if err != nil {
		for _, id := range player {
			w.Destroy(id)
		}
		return nil, nil, err
	}
	return player, enemy, nil
}

// Reload moves every unit onto reg, rebuilding its graph from its build.
// Content replaced in place keeps its ids, so units stay valid.
func (w *World) Reload(reg *model.Registry) error {
	var firstErr error
	ecs.Each2(w.Units, w.Graphs, func(id ecs.EntityID, u *Unit, g *attr.Graph) {
		if firstErr != nil {
			return
		}
		build, ok := reg.ShipBuilds.Get(u.Build)
		if !ok {
			firstErr = fmt.Errorf("unit %s: build %s is gone", id, u.Build)
			return
		}
		stats, err := BuildStats(reg, build)
		if err == nil {
			g.Reset(reg)
			for _, s := range stats {
				if err = g.Add(s.Variable, s.Value); err != nil {
					break
				}
			}
		}
		if err != nil {
			firstErr = fmt.Errorf("unit %s: %w", id, err)
			return
		}
		u.Ship = build.Ship
	})
	return firstErr
}
