package mods

import (
	"context"
	"errors"
	"maps"
	"path/filepath"
	"sync"
	"time"

	"github.com/ehce/ehce/internal/core/event"
	"github.com/ehce/ehce/internal/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// State is the lifecycle state of a Manager.
type State int

const (
	// StateNone means no mod has been loaded.
	StateNone State = iota
	StateLoading
	StateReady
)

func (s State) String() string {
	switch s {
	case StateNone:
		return "none"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	}
	return "unknown"
}

var (
	ErrLoadInProgress = errors.New("a mod load is already in progress")
	ErrNoMod          = errors.New("no mod is loaded")
)

// Manager owns the active mod. A failed load keeps the previous mod
// active. Results are announced on the bus as ModLoaded or ModLoadFailed.
type Manager struct {
	bus  *event.Bus
	opts Options

	mu      sync.Mutex
	state   State
	current *ModData
}

func NewManager(bus *event.Bus, opts Options) *Manager {
	return &Manager{bus: bus, opts: opts.withDefaults()}
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Current returns the active mod, or nil.
func (m *Manager) Current() *ModData {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// begin moves to Loading and returns the state to restore on failure.
func (m *Manager) begin() (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateLoading {
		return 0, ErrLoadInProgress
	}
	prev := m.state
	m.state = StateLoading
	return prev, nil
}

func (m *Manager) end(prev State, opts Options, data *ModData, err error) (*ModData, error) {
	m.mu.Lock()
	if err != nil {
		m.state = prev
	} else {
		m.state = StateReady
		m.current = data
	}
	m.mu.Unlock()

	if err != nil {
		event.Emit(m.bus, event.ModLoadFailed{LoadID: opts.LoadID, ModID: opts.ModID, Err: err})
		return nil, err
	}
	items := 0
	for _, n := range data.Registry.Counts() {
		items += n
	}
	event.Emit(m.bus, event.ModLoaded{
		LoadID:      data.LoadID,
		ModID:       data.ModID,
		Fingerprint: data.Fingerprint,
		Items:       items,
	})
	return data, nil
}

// LoadDir replaces the active mod with the one rooted at dir.
func (m *Manager) LoadDir(ctx context.Context, dir string) (*ModData, error) {
	prev, err := m.begin()
	if err != nil {
		return nil, err
	}
	opts := m.loadOptions(filepath.Base(dir))
	data, err := LoadDir(ctx, dir, opts)
	return m.end(prev, opts, data, err)
}

// LoadFiles replaces the active mod with one built from files.
func (m *Manager) LoadFiles(ctx context.Context, modID string, files []File) (*ModData, error) {
	prev, err := m.begin()
	if err != nil {
		return nil, err
	}
	opts := m.loadOptions(modID)
	data, err := LoadFiles(ctx, files, opts)
	return m.end(prev, opts, data, err)
}

// Reload resolves changed item files into the active mod. Items keep their
// slot ids, so live attribute graphs can be reset onto the new registry.
// Asset files are ignored.
func (m *Manager) Reload(ctx context.Context, files []File) (*ModData, error) {
	prev, err := m.begin()
	if err != nil {
		return nil, err
	}
	cur := m.Current()
	if cur == nil {
		return m.end(prev, m.loadOptions(""), nil, ErrNoMod)
	}
	opts := m.loadOptions(cur.ModID)
	data, err := reload(ctx, cur, files, opts)
	return m.end(prev, opts, data, err)
}

func (m *Manager) loadOptions(modID string) Options {
	opts := m.opts
	if modID != "" {
		opts.ModID = modID
	}
	opts.LoadID = uuid.New()
	return opts
}

func reload(ctx context.Context, cur *ModData, files []File, opts Options) (data *ModData, err error) {
	start := time.Now()
	defer func() { opts.Metrics.observeLoad(start, err) }()

	itemFiles, assets := Classify(files, opts)
	for _, f := range assets {
		opts.Log.Warn("asset changes need a full load", zap.String("path", f.Path))
	}

	items := make([]model.Item, 0, len(itemFiles))
	sums := maps.Clone(cur.sums)
	for _, f := range itemFiles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		it, err := model.DecodeItem(f.Path, f.Data)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
		sums[f.Path] = sum(f.Data)
	}

	reg, err := cur.Registry.Replace(items...)
	if err != nil {
		return nil, err
	}
	data = &ModData{Registry: reg, ModID: cur.ModID, LoadID: opts.LoadID, sums: sums}
	data.fingerprint()
	opts.Metrics.setItems(reg.Counts())
	opts.Log.Info("mod reloaded",
		zap.Stringer("load", data.LoadID),
		zap.String("mod", data.ModID),
		zap.Int("changed", len(items)),
	)
	return data, nil
}
