// Package mods turns a mod's files into a content registry.
package mods

import (
	"context"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/ehce/ehce/internal/expr"
	"github.com/ehce/ehce/internal/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
)

// File is one file of a mod. Path is relative to the mod root and uses
// forward slashes.
type File struct {
	Path string
	Data []byte
}

var (
	DefaultItemExts  = []string{".yaml", ".yml", ".json"}
	DefaultImageExts = []string{".png", ".jpg", ".jpeg"}
)

type Options struct {
	// ModID names the mod when it carries no ModSettings.
	ModID string
	// LoadID tags log lines and events of this load. Zero draws a new one.
	LoadID uuid.UUID
	// Engine parses formulas. Nil selects HCL.
	Engine    expr.Engine
	ItemExts  []string
	ImageExts []string
	Log       *zap.Logger
	Metrics   *Metrics
}

func (o Options) withDefaults() Options {
	if o.Engine == nil {
		o.Engine = expr.NewHCL()
	}
	if o.ItemExts == nil {
		o.ItemExts = DefaultItemExts
	}
	if o.ImageExts == nil {
		o.ImageExts = DefaultImageExts
	}
	if o.Log == nil {
		o.Log = zap.NewNop()
	}
	return o
}

// ModData is a loaded mod.
type ModData struct {
	Registry *model.Registry
	ModID    string
	// Fingerprint is a hex blake2b-256 digest over every file path and body.
	Fingerprint string
	LoadID      uuid.UUID
	Paths       []string

	sums map[string][]byte
}

func (d *ModData) fingerprint() {
	h, _ := blake2b.New256(nil)
	d.Paths = d.Paths[:0]
	for path := range d.sums {
		d.Paths = append(d.Paths, path)
	}
	slices.Sort(d.Paths)
	for _, path := range d.Paths {
		h.Write([]byte(path))
		h.Write([]byte{0})
		h.Write(d.sums[path])
	}
	d.Fingerprint = hex.EncodeToString(h.Sum(nil))
}

func sum(data []byte) []byte {
	s := blake2b.Sum256(data)
	return s[:]
}

func hasExt(path string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return slices.Contains(exts, ext)
}

// Classify splits files into items and image assets by extension. Other
// files are dropped.
func Classify(files []File, opts Options) (items, assets []File) {
	opts = opts.withDefaults()
	for _, f := range files {
		switch {
		case hasExt(f.Path, opts.ItemExts):
			items = append(items, f)
		case hasExt(f.Path, opts.ImageExts):
			assets = append(assets, f)
		default:
			opts.Log.Debug("skipping file", zap.String("path", f.Path))
		}
	}
	return items, assets
}

// Load resolves a mod from its item files and image assets. The load is
// all or nothing: any error leaves no registry behind.
func Load(ctx context.Context, items, assets []File, opts Options) (data *ModData, err error) {
	opts = opts.withDefaults()
	start := time.Now()
	loadID := opts.LoadID
	if loadID == uuid.Nil {
		loadID = uuid.New()
	}
	log := opts.Log.With(zap.Stringer("load", loadID))
	defer func() {
		opts.Metrics.observeLoad(start, err)
		if err != nil {
			log.Warn("mod load failed", zap.Error(err))
		}
	}()

	schema := model.NewSchema(opts.Engine)
	p := schema.NewPartial()
	sums := make(map[string][]byte, len(items)+len(assets))

	for _, f := range assets {
		if err := schema.InsertImage(p, f.Path, f.Data); err != nil {
			return nil, err
		}
		sums[f.Path] = sum(f.Data)
	}
	for _, f := range items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		it, err := model.DecodeItem(f.Path, f.Data)
		if err != nil {
			return nil, err
		}
		if err := schema.Insert(p, it); err != nil {
			return nil, err
		}
		sums[f.Path] = sum(f.Data)
	}

	reg, err := schema.Build(p)
	if err != nil {
		return nil, err
	}

	data = &ModData{Registry: reg, ModID: opts.ModID, LoadID: loadID, sums: sums}
	if reg.HasSettings && reg.Settings.ModID != "" {
		data.ModID = reg.Settings.ModID
	}
	data.fingerprint()

	counts := reg.Counts()
	opts.Metrics.setItems(counts)
	log.Info("mod loaded",
		zap.String("mod", data.ModID),
		zap.String("engine", opts.Engine.Name()),
		zap.Int("files", len(data.Paths)),
		zap.Any("items", counts),
		zap.Duration("took", time.Since(start)),
	)
	return data, nil
}

// LoadFiles classifies files and loads them.
func LoadFiles(ctx context.Context, files []File, opts Options) (*ModData, error) {
	items, assets := Classify(files, opts)
	return Load(ctx, items, assets, opts)
}

// ReadDir reads every regular file below dir in lexical order.
func ReadDir(dir string) ([]File, error) {
	var files []File
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", rel, err)
		}
		files = append(files, File{Path: filepath.ToSlash(rel), Data: data})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read mod %s: %w", dir, err)
	}
	return files, nil
}

// LoadDir reads and loads the mod rooted at dir. ModID defaults to the
// directory name.
func LoadDir(ctx context.Context, dir string, opts Options) (*ModData, error) {
	files, err := ReadDir(dir)
	if err != nil {
		return nil, err
	}
	if opts.ModID == "" {
		opts.ModID = filepath.Base(dir)
	}
	return LoadFiles(ctx, files, opts)
}

// Available lists the mod directories under each root. Missing roots are
// skipped.
func Available(roots ...string) []string {
	var names []string
	for _, root := range roots {
		entries, err := os.ReadDir(root)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() {
				names = append(names, e.Name())
			}
		}
	}
	return names
}
