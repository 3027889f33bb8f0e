package registry

import (
	"path/filepath"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

// AssetKind describes a kind of binary companion file, such as images,
// referenced from items by file name.
type AssetKind[A any] struct {
	tag string
}

func NewAssetKind[A any](tag string) *AssetKind[A] {
	return &AssetKind[A]{tag: tag}
}

func (k *AssetKind[A]) Tag() string { return k.tag }

func (k *AssetKind[A]) newAssetState() assetState {
	return &assetStore[A]{kind: k, items: make(map[string]assetItem[A])}
}

func (k *AssetKind[A]) store(p *Partial) *assetStore[A] {
	return p.asset(k).(*assetStore[A])
}

// AssetName derives the registered name of an asset from its path: the file
// name, case folded.
func AssetName(path string) (string, error) {
	if !utf8.ValidString(path) {
		return "", fail(&NonUtf8Path{Path: path})
	}
	base := filepath.Base(path)
	if path == "" || base == "." || base == ".." || base == string(filepath.Separator) {
		return "", fail(&MissingName{Path: path})
	}
	return cases.Fold().String(base), nil
}

// Insert registers an asset under the name derived from path.
func (k *AssetKind[A]) Insert(p *Partial, path string, data A) error {
	name, err := AssetName(path)
	if err != nil {
		return err
	}
	st := k.store(p)
	if prev, ok := st.items[name]; ok && !prev.inherited {
		return fail(&DuplicateAsset{Name: name, Kind: k.tag, PathA: prev.path, PathB: path})
	}
	st.items[name] = assetItem[A]{path: path, data: data}
	return nil
}

// Ref checks that an asset named name is registered and returns its
// canonical name.
func (k *AssetKind[A]) Ref(p *Partial, name string) (string, error) {
	folded := cases.Fold().String(name)
	if _, ok := k.store(p).items[folded]; !ok {
		return "", fail(&MissingAsset{Name: name, Kind: k.tag})
	}
	return folded, nil
}

// Assets returns the finished assets of this kind.
func (k *AssetKind[A]) Assets(r *Registry) *Assets[A] {
	a, ok := r.assets[k]
	if !ok {
		panic("registry: asset kind " + k.tag + " is not part of the registry")
	}
	return a.(*Assets[A])
}

type assetItem[A any] struct {
	path      string
	data      A
	inherited bool
}

type assetStore[A any] struct {
	kind  *AssetKind[A]
	items map[string]assetItem[A]
}

func (st *assetStore[A]) finish(r *Registry) {
	a := &Assets[A]{items: make(map[string]A, len(st.items)), paths: make(map[string]string, len(st.items))}
	for name, item := range st.items {
		a.items[name] = item.data
		a.paths[name] = item.path
	}
	r.assets[st.kind] = a
}

func (st *assetStore[A]) reopen(r *Registry) {
	a := st.kind.Assets(r)
	for name, data := range a.items {
		st.items[name] = assetItem[A]{path: a.paths[name], data: data, inherited: true}
	}
}

// Assets is the finished, read-only store of one asset kind.
type Assets[A any] struct {
	items map[string]A
	paths map[string]string
}

// Get returns the asset registered under name. Names are case folded.
func (a *Assets[A]) Get(name string) (A, bool) {
	v, ok := a.items[cases.Fold().String(name)]
	return v, ok
}

func (a *Assets[A]) Len() int { return len(a.items) }

// Path returns the path the asset was loaded from.
func (a *Assets[A]) Path(name string) (string, bool) {
	p, ok := a.paths[cases.Fold().String(name)]
	return p, ok
}
