package registry

import (
	"errors"
	"fmt"
	"slices"

	"github.com/ehce/ehce/internal/slab"
)

// ResolveFunc turns a raw payload into its resolved form, resolving
// references through p.
type ResolveFunc[S, T any] func(p *Partial, raw S) (T, error)

// Kind describes a keyed item kind whose raw shape is S and resolved shape
// is T.
type Kind[S, T any] struct {
	tag     string
	resolve ResolveFunc[S, T]
}

// NewKind creates a kind. resolve may reference other kinds through their
// Ref methods; it is only called during Finish.
func NewKind[S, T any](tag string, resolve ResolveFunc[S, T]) *Kind[S, T] {
	return &Kind[S, T]{tag: tag, resolve: resolve}
}

func (k *Kind[S, T]) Tag() string { return k.tag }

func (k *Kind[S, T]) newState() state {
	return &kindState[S, T]{kind: k, raw: make(map[string]rawItem[S])}
}

func (k *Kind[S, T]) state(p *Partial) *kindState[S, T] {
	return p.state(k).(*kindState[S, T])
}

// Insert adds an already decoded raw item.
func (k *Kind[S, T]) Insert(p *Partial, path, id string, raw S) error {
	return k.state(p).insertRaw(path, id, raw)
}

// Ref resolves a reference to the item keyed by key. An item already
// reserved returns its slot id; an item still pending is resolved first.
func (k *Kind[S, T]) Ref(p *Partial, key string) (slab.ID[T], error) {
	st := k.state(p)
	if id, ok := st.items.KeyToID(key); ok && !st.stale[key] {
		return slab.Retype[T](id), nil
	}
	raw, ok := st.raw[key]
	if !ok {
		return slab.ID[T]{}, fail(&MissingItem{ID: key, Kind: k.tag})
	}
	delete(st.raw, key)
	return st.resolveItem(p, key, raw)
}

// Resolve resolves a raw payload without registering it.
func (k *Kind[S, T]) Resolve(p *Partial, raw S) (T, error) {
	return k.resolve(p, raw)
}

// Collection returns the kind's finished collection.
func (k *Kind[S, T]) Collection(r *Registry) *Collection[T] {
	c, ok := r.collections[k]
	if !ok {
		panic("registry: kind " + k.tag + " is not part of the registry")
	}
	return c.(*Collection[T])
}

type rawItem[S any] struct {
	path string
	data S
}

type kindState[S, T any] struct {
	kind *Kind[S, T]

	raw    map[string]rawItem[S]
	order  []string
	sorted bool
	next   int

	// items holds reservations as nil entries until they are filled.
	items slab.Map[*Entry[T]]

	reopened bool
	stale    map[string]bool
}

func (st *kindState[S, T]) insert(path, id string, decode Decoder) error {
	var raw S
	if err := decode(&raw); err != nil {
		return Context(fail(&Malformed{Err: err}), ItemByPath(path, st.kind.tag))
	}
	return st.insertRaw(path, id, raw)
}

func (st *kindState[S, T]) insertRaw(path, id string, raw S) error {
	if id == "" {
		return Context(fail(&Malformed{Err: errors.New("item has no id")}), ItemByPath(path, st.kind.tag))
	}
	if prev, ok := st.raw[id]; ok {
		return Context(fail(&DuplicateItem{
			ID:    id,
			Kind:  st.kind.tag,
			PathA: prev.path,
			PathB: path,
		}), ItemByPath(path, st.kind.tag))
	}
	if _, ok := st.items.KeyToID(id); ok {
		if !st.reopened {
			return Context(fail(&DuplicateItemLowInfo{ID: id, Kind: st.kind.tag}), ItemByPath(path, st.kind.tag))
		}
		st.stale[id] = true
	}
	st.raw[id] = rawItem[S]{path: path, data: raw}
	st.order = append(st.order, id)
	st.sorted = false
	return nil
}

func (st *kindState[S, T]) pending() int { return len(st.raw) }

// drainOne resolves the pending item with the smallest key, which keeps slot
// assignment and error reporting deterministic.
func (st *kindState[S, T]) drainOne(p *Partial) error {
	if !st.sorted {
		slices.Sort(st.order)
		st.order = slices.Compact(st.order)
		st.sorted = true
		st.next = 0
	}
	for st.next < len(st.order) {
		key := st.order[st.next]
		st.next++
		raw, ok := st.raw[key]
		if !ok {
			continue
		}
		delete(st.raw, key)
		_, err := st.resolveItem(p, key, raw)
		return err
	}
	return nil
}

func (st *kindState[S, T]) resolveItem(p *Partial, key string, raw rawItem[S]) (slab.ID[T], error) {
	var slot slab.ID[*Entry[T]]
	if id, ok := st.items.KeyToID(key); ok && st.stale[key] {
		delete(st.stale, key)
		*st.items.Ptr(id) = nil
		slot = id
	} else {
		id, err := st.items.InsertNew(key, nil)
		if err != nil {
			return slab.ID[T]{}, fail(&DuplicateItemLowInfo{ID: key, Kind: st.kind.tag})
		}
		slot = id
	}

	data, err := st.kind.resolve(p, raw.data)
	if err != nil {
		return slab.ID[T]{}, Context(err, ItemByID(key, st.kind.tag))
	}

	id := slab.Retype[T](slot)
	*st.items.Ptr(slot) = &Entry[T]{ID: id, Data: data}
	return id, nil
}

func (st *kindState[S, T]) finish(r *Registry) {
	c := &Collection[T]{tag: st.kind.tag, items: slab.New[Entry[T]](st.items.Cap())}
	st.items.Each(func(id slab.ID[*Entry[T]], key string, e *Entry[T]) bool {
		if e == nil {
			panic(fmt.Sprintf("registry: %s(%s) was reserved but never filled", st.kind.tag, key))
		}
		got, err := c.items.InsertNew(key, *e)
		if err != nil || got.Raw() != id.Raw() {
			panic(fmt.Sprintf("registry: slot of %s(%s) moved from %d while finishing", st.kind.tag, key, id.Raw()))
		}
		return true
	})
	r.collections[st.kind] = c
}

func (st *kindState[S, T]) reopen(r *Registry) {
	st.reopened = true
	st.stale = make(map[string]bool)
	st.kind.Collection(r).items.Each(func(id slab.ID[Entry[T]], key string, e Entry[T]) bool {
		got, err := st.items.InsertNew(key, &e)
		if err != nil || got.Raw() != id.Raw() {
			panic(fmt.Sprintf("registry: slot of %s(%s) moved from %d while reopening", st.kind.tag, key, id.Raw()))
		}
		return true
	})
}
