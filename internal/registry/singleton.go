package registry

// Singleton describes an item kind declared at most once per load.
type Singleton[S, T any] struct {
	tag     string
	resolve ResolveFunc[S, T]
}

func NewSingleton[S, T any](tag string, resolve ResolveFunc[S, T]) *Singleton[S, T] {
	return &Singleton[S, T]{tag: tag, resolve: resolve}
}

func (k *Singleton[S, T]) Tag() string { return k.tag }

func (k *Singleton[S, T]) newState() state { return &singletonState[S, T]{kind: k} }

// Insert adds an already decoded raw singleton.
func (k *Singleton[S, T]) Insert(p *Partial, path string, raw S) error {
	return p.state(k).(*singletonState[S, T]).insertRaw(path, raw)
}

// Get returns the finished singleton and whether it was declared.
func (k *Singleton[S, T]) Get(r *Registry) (T, bool) {
	c, ok := r.collections[k]
	if !ok {
		panic("registry: singleton " + k.tag + " is not part of the registry")
	}
	v := c.(*singletonValue[T])
	return v.value, v.present
}

type singletonState[S, T any] struct {
	kind *Singleton[S, T]

	raw      *rawItem[S]
	path     string
	value    T
	present  bool
	reopened bool
}

func (st *singletonState[S, T]) insert(path, _ string, decode Decoder) error {
	var raw S
	if err := decode(&raw); err != nil {
		return Context(fail(&Malformed{Err: err}), ItemByPath(path, st.kind.tag))
	}
	return st.insertRaw(path, raw)
}

func (st *singletonState[S, T]) insertRaw(path string, raw S) error {
	if st.raw != nil || (st.present && !st.reopened) {
		prev := st.path
		if st.raw != nil {
			prev = st.raw.path
		}
		return Context(fail(&DuplicateSingleton{
			Kind:  st.kind.tag,
			PathA: prev,
			PathB: path,
		}), ItemByPath(path, st.kind.tag))
	}
	st.raw = &rawItem[S]{path: path, data: raw}
	return nil
}

func (st *singletonState[S, T]) pending() int {
	if st.raw != nil {
		return 1
	}
	return 0
}

func (st *singletonState[S, T]) drainOne(p *Partial) error {
	raw := st.raw
	st.raw = nil
	value, err := st.kind.resolve(p, raw.data)
	if err != nil {
		return Context(err, ItemByPath(raw.path, st.kind.tag))
	}
	st.value, st.present, st.path = value, true, raw.path
	return nil
}

func (st *singletonState[S, T]) finish(r *Registry) {
	r.collections[st.kind] = &singletonValue[T]{value: st.value, present: st.present, path: st.path}
}

func (st *singletonState[S, T]) reopen(r *Registry) {
	v := r.collections[st.kind].(*singletonValue[T])
	st.value, st.present, st.path = v.value, v.present, v.path
	st.reopened = true
}

type singletonValue[T any] struct {
	value   T
	present bool
	path    string
}

func (v *singletonValue[T]) lookup(string) (any, bool) {
	if !v.present {
		return nil, false
	}
	return v.value, true
}

func (v *singletonValue[T]) Len() int {
	if v.present {
		return 1
	}
	return 0
}
