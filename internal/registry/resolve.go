package registry

import (
	"maps"
	"slices"
)

// ResolveSlice resolves every element, tagging errors with the element's
// position.
func ResolveSlice[S, T any](p *Partial, raw []S, fn func(*Partial, S) (T, error)) ([]T, error) {
	if raw == nil {
		return nil, nil
	}
	out := make([]T, 0, len(raw))
	for i, s := range raw {
		t, err := fn(p, s)
		if err != nil {
			return nil, Context(err, Index(i))
		}
		out = append(out, t)
	}
	return out, nil
}

// ResolveMap resolves the values and then the keys of a string-keyed map.
// Entries are visited in key order.
func ResolveMap[K comparable, VS, V any](
	p *Partial,
	raw map[string]VS,
	key func(p *Partial, key string) (K, error),
	value func(p *Partial, raw VS) (V, error),
) (map[K]V, error) {
	out := make(map[K]V, len(raw))
	for _, ks := range slices.Sorted(maps.Keys(raw)) {
		v, err := value(p, raw[ks])
		if err != nil {
			return nil, Context(err, MapEntry(ks))
		}
		k, err := key(p, ks)
		if err != nil {
			return nil, Context(err, MapKey(ks))
		}
		out[k] = v
	}
	return out, nil
}

// Optional resolves raw when it is present.
func Optional[S, T any](p *Partial, raw *S, fn func(*Partial, S) (T, error)) (*T, error) {
	if raw == nil {
		return nil, nil
	}
	t, err := fn(p, *raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Number is any value a numeric bound can be applied to.
type Number interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// Min rejects values below limit.
func Min[N Number](v, limit N) error {
	if v < limit {
		return fail(&ValueTooSmall{Limit: float64(limit), Got: float64(v)})
	}
	return nil
}

// Max rejects values above limit.
func Max[N Number](v, limit N) error {
	if v > limit {
		return fail(&ValueTooLarge{Limit: float64(limit), Got: float64(v)})
	}
	return nil
}

// Range applies both bounds.
func Range[N Number](v, lo, hi N) error {
	if err := Min(v, lo); err != nil {
		return err
	}
	return Max(v, hi)
}
