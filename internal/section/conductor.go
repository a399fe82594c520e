package section

import (
	"sync"
	"time"

	"github.com/surfsidere/kova-scroll/internal/events"
	"github.com/surfsidere/kova-scroll/internal/motion"
	"github.com/surfsidere/kova-scroll/internal/scroll"
)

// Conductor fans the adapter's tick out to every section manager in
// registration order, keeps the most-recently-entered section id on the
// scroll state, and advances the animation coordinator once per tick.
type Conductor struct {
	adapter     *scroll.Adapter
	registry    *Registry
	coordinator *motion.Coordinator
	bus         *events.Bus

	mu       sync.Mutex
	managers map[string]*Manager
	order    []string
	lastTick time.Time
	unsub    func()
	closed   bool
}

// NewConductor wires a conductor to the adapter. It owns exactly one
// adapter subscription, released by Close.
func NewConductor(a *scroll.Adapter, reg *Registry, c *motion.Coordinator, bus *events.Bus) *Conductor {
	cd := &Conductor{
		adapter:     a,
		registry:    reg,
		coordinator: c,
		bus:         bus,
		managers:    make(map[string]*Manager),
	}
	cd.unsub = a.Subscribe(cd.onScroll)
	return cd
}

// Watch creates (or returns) the manager for a registered section. Managers
// receive ticks in Watch order.
func (cd *Conductor) Watch(id string) *Manager {
	cd.mu.Lock()
	defer cd.mu.Unlock()

	if m, ok := cd.managers[id]; ok {
		return m
	}
	m := NewManager(cd.registry, id)
	cd.managers[id] = m
	cd.order = append(cd.order, id)
	return m
}

// Unwatch drops a manager. The registry entry is untouched.
func (cd *Conductor) Unwatch(id string) {
	cd.mu.Lock()
	defer cd.mu.Unlock()

	if _, ok := cd.managers[id]; !ok {
		return
	}
	delete(cd.managers, id)
	for i, v := range cd.order {
		if v == id {
			cd.order = append(cd.order[:i], cd.order[i+1:]...)
			break
		}
	}
}

// DeliverIntersection routes an intersection-observer entry to the registry.
// Visibility is decoupled from scroll activation: a section can intersect
// the viewport without being scroll-active, and vice versa.
func (cd *Conductor) DeliverIntersection(id string, intersecting bool, ratio float64) {
	cd.registry.SetIntersection(id, intersecting, ratio)
	cd.registry.SetVisible(id, intersecting)
}

// Close releases the adapter subscription. Idempotent.
func (cd *Conductor) Close() {
	cd.mu.Lock()
	if cd.closed {
		cd.mu.Unlock()
		return
	}
	cd.closed = true
	unsub := cd.unsub
	cd.unsub = nil
	cd.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

func (cd *Conductor) onScroll(st scroll.State) {
	cd.mu.Lock()
	if cd.closed {
		cd.mu.Unlock()
		return
	}
	now := time.Now()
	dt := 16 * time.Millisecond
	if !cd.lastTick.IsZero() {
		dt = now.Sub(cd.lastTick)
	}
	cd.lastTick = now
	ids := append([]string(nil), cd.order...)
	managers := make([]*Manager, 0, len(ids))
	for _, id := range ids {
		managers = append(managers, cd.managers[id])
	}
	cd.mu.Unlock()

	for _, m := range managers {
		entered, left := m.OnScroll(st)
		if entered {
			cd.adapter.SetActiveSection(m.ID())
			if cd.bus != nil {
				cd.bus.Publish(events.Event{Kind: events.SectionEntered, SectionID: m.ID(), Progress: st.Progress})
			}
		}
		if left && cd.bus != nil {
			cd.bus.Publish(events.Event{Kind: events.SectionLeft, SectionID: m.ID(), Progress: st.Progress})
		}
	}

	if cd.coordinator != nil {
		cd.coordinator.Advance(st.Progress, dt)
	}
}
