package motion

import "sync"

// Value is the tween-value boundary: a mutable scalar the presentation layer
// observes. The coordinator writes through this primitive; renderers attach
// change listeners and apply the result as a visual transform.
type Value interface {
	Get() float64
	Set(v float64)
	OnChange(cb func(float64)) (cancel func())
}

type basicValue struct {
	mu        sync.Mutex
	v         float64
	nextID    int
	listeners map[int]func(float64)
}

// NewValue creates a Value holding initial.
func NewValue(initial float64) Value {
	return &basicValue{v: initial, listeners: make(map[int]func(float64))}
}

func (b *basicValue) Get() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.v
}

func (b *basicValue) Set(v float64) {
	b.mu.Lock()
	if v == b.v {
		b.mu.Unlock()
		return
	}
	b.v = v
	cbs := make([]func(float64), 0, len(b.listeners))
	for _, cb := range b.listeners {
		cbs = append(cbs, cb)
	}
	b.mu.Unlock()

	for _, cb := range cbs {
		cb(v)
	}
}

func (b *basicValue) OnChange(cb func(float64)) (cancel func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = cb
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.listeners, id)
		b.mu.Unlock()
	}
}
