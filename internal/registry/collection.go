package registry

import (
	"fmt"

	"github.com/ehce/ehce/internal/slab"
)

// Entry pairs a resolved item with its slot id.
type Entry[T any] struct {
	ID   slab.ID[T]
	Data T
}

// Collection is the finished, read-only store of one item kind. It is safe
// for concurrent reads.
type Collection[T any] struct {
	tag   string
	items *slab.Map[Entry[T]]
}

func (c *Collection[T]) Tag() string { return c.tag }

func (c *Collection[T]) Len() int { return c.items.Len() }

// Get returns the item stored at id.
func (c *Collection[T]) Get(id slab.ID[T]) (T, bool) {
	e, ok := c.items.Get(slab.Retype[Entry[T]](id))
	return e.Data, ok
}

// MustGet returns the item stored at id. An id that was not minted by this
// collection is a programming error and panics.
func (c *Collection[T]) MustGet(id slab.ID[T]) T {
	e, ok := c.items.Get(slab.Retype[Entry[T]](id))
	if !ok {
		panic(fmt.Sprintf("registry: %s has no item at slot %d", c.tag, id.Raw()))
	}
	return e.Data
}

// GetByKey returns the entry keyed by key.
func (c *Collection[T]) GetByKey(key string) (Entry[T], bool) {
	return c.items.GetByKey(key)
}

// ID returns the slot id of the item keyed by key.
func (c *Collection[T]) ID(key string) (slab.ID[T], bool) {
	id, ok := c.items.KeyToID(key)
	return slab.Retype[T](id), ok
}

// Key returns the key of the item stored at id.
func (c *Collection[T]) Key(id slab.ID[T]) (string, bool) {
	return c.items.UntypedKey(id.Untyped())
}

// Each calls fn for every entry in slot order until fn returns false.
func (c *Collection[T]) Each(fn func(key string, e Entry[T]) bool) {
	c.items.Each(func(_ slab.ID[Entry[T]], key string, e Entry[T]) bool {
		return fn(key, e)
	})
}

// Keys returns every key in slot order.
func (c *Collection[T]) Keys() []string {
	keys := make([]string, 0, c.items.Len())
	c.items.Each(func(_ slab.ID[Entry[T]], key string, _ Entry[T]) bool {
		keys = append(keys, key)
		return true
	})
	return keys
}

type collection interface {
	Len() int
	lookup(key string) (any, bool)
}

func (c *Collection[T]) lookup(key string) (any, bool) {
	e, ok := c.items.GetByKey(key)
	if !ok {
		return nil, false
	}
	return e.Data, true
}

// Registry is the finished result of a load. It never changes after Finish
// and is safe for concurrent reads; typed access goes through the kinds.
type Registry struct {
	schema      *Schema
	collections map[Descriptor]collection
	assets      map[AssetDescriptor]any
}

func (r *Registry) Schema() *Schema { return r.schema }

// Lookup returns the item of kind tag keyed by key. Singletons ignore key.
func (r *Registry) Lookup(tag, key string) (any, bool) {
	d, ok := r.schema.Lookup(tag)
	if !ok {
		return nil, false
	}
	return r.collections[d].lookup(key)
}

// Counts returns the number of items per kind tag.
func (r *Registry) Counts() map[string]int {
	counts := make(map[string]int, len(r.collections))
	for d, c := range r.collections {
		counts[d.Tag()] = c.Len()
	}
	return counts
}
