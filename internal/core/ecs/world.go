package ecs

// World owns the entity pool, the registered component stores, and a
// deferred destruction queue.
type World struct {
	pool         *EntityPool
	stores       []Removable
	destroyQueue []EntityID
}

func NewWorld() *World {
	return &World{pool: NewEntityPool()}
}

func (w *World) Pool() *EntityPool { return w.pool }

// Register adds a component store whose entries are dropped when their
// entity is destroyed.
func (w *World) Register(store Removable) { w.stores = append(w.stores, store) }

func (w *World) CreateEntity() EntityID { return w.pool.Create() }

func (w *World) Alive(id EntityID) bool { return w.pool.Alive(id) }

// Destroy removes an entity and its components immediately.
func (w *World) Destroy(id EntityID) {
	if !w.pool.Alive(id) {
		return
	}
	for _, s := range w.stores {
		s.Remove(id)
	}
	w.pool.Destroy(id)
}

// MarkForDestruction queues an entity for FlushDestroyQueue.
func (w *World) MarkForDestruction(id EntityID) {
	w.destroyQueue = append(w.destroyQueue, id)
}

// FlushDestroyQueue destroys all queued entities and clears their components.
func (w *World) FlushDestroyQueue() {
	for _, id := range w.destroyQueue {
		w.Destroy(id)
	}
	w.destroyQueue = w.destroyQueue[:0]
}
