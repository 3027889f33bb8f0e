package registry

import (
	"github.com/ehce/ehce/internal/slab"
	"gopkg.in/yaml.v3"
)

// RawInlineOrID is a field that holds either the id of an item or the
// item's payload written in place.
type RawInlineOrID[S any] struct {
	ID     string
	Inline *S
}

func (r *RawInlineOrID[S]) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		r.Inline = nil
		return node.Decode(&r.ID)
	}
	var s S
	if err := node.Decode(&s); err != nil {
		return err
	}
	r.ID, r.Inline = "", &s
	return nil
}

func (r RawInlineOrID[S]) MarshalYAML() (any, error) {
	if r.Inline != nil {
		return r.Inline, nil
	}
	return r.ID, nil
}

// InlineOrID is a resolved RawInlineOrID. Inline payloads are owned by the
// referencing item and never registered in the collection.
type InlineOrID[T any] struct {
	ID     slab.ID[T]
	Inline *T
}

// Get returns the referenced item.
func (v InlineOrID[T]) Get(c *Collection[T]) T {
	if v.Inline != nil {
		return *v.Inline
	}
	return c.MustGet(v.ID)
}

// InlineOrID resolves a field of this kind that may be written in place.
func (k *Kind[S, T]) InlineOrID(p *Partial, raw RawInlineOrID[S]) (InlineOrID[T], error) {
	if raw.Inline == nil {
		id, err := k.Ref(p, raw.ID)
		return InlineOrID[T]{ID: id}, err
	}
	t, err := k.resolve(p, *raw.Inline)
	if err != nil {
		return InlineOrID[T]{}, err
	}
	return InlineOrID[T]{Inline: &t}, nil
}
