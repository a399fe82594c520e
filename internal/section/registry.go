// Package section is the single source of truth for which scrollable
// regions exist, where their trigger ranges sit on the global progress axis,
// and what activation state they are in. A Registry plus one Manager per
// section translate the scroll signal into enter/progress/leave callbacks.
package section

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/surfsidere/kova-scroll/internal/events"
	"github.com/surfsidere/kova-scroll/internal/motion"
)

// Callbacks are invoked synchronously as a section's activation changes.
// State is committed before any callback fires, so re-entrant calls back
// into the registry observe consistent data.
type Callbacks struct {
	OnEnter    func()
	OnLeave    func()
	OnProgress func(local float64)
}

// Config describes a section at registration time.
type Config struct {
	ID           string
	Layer        Layer
	TriggerStart float64
	TriggerEnd   float64
	// ZIndex, when non-nil, overrides the auto-assigned stacking value.
	ZIndex     *int
	Contrast   ContrastMode
	Animations []string
	// ElementRef is an opaque handle into the rendering layer's own lookup.
	// The registry never owns or destroys the rendered node.
	ElementRef string
	Callbacks  Callbacks
}

// Section is a read-only snapshot of one registered section.
type Section struct {
	ID                string
	Layer             Layer
	TriggerStart      float64
	TriggerEnd        float64
	ZIndex            int
	Contrast          ContrastMode
	Animations        []string
	ElementRef        string
	Active            bool
	Progress          float64
	Visible           bool
	Intersecting      bool
	IntersectionRatio float64
}

type entry struct {
	snap Section
	cb   Callbacks
	seq  int
}

// ErrEmptyID is returned when a section registers without an id.
var ErrEmptyID = errors.New("section id cannot be empty")

// ErrInvalidTrigger is returned when a trigger range is outside [0,1] or
// reversed.
var ErrInvalidTrigger = errors.New("trigger range must satisfy 0 <= start <= end <= 1")

// Registry holds all registered sections. One instance per page session,
// passed by reference to every consumer.
type Registry struct {
	mu         sync.Mutex
	sections   map[string]*entry
	nextSeq    int
	layerCount map[Layer]int

	bus         *events.Bus
	coordinator *motion.Coordinator
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithBus publishes registration lifecycle events to bus.
func WithBus(bus *events.Bus) RegistryOption {
	return func(r *Registry) { r.bus = bus }
}

// WithCoordinator purges a section's animations on unregistration, keeping
// the no-leak invariant without the caller having to remember it.
func WithCoordinator(c *motion.Coordinator) RegistryOption {
	return func(r *Registry) { r.coordinator = c }
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		sections:   make(map[string]*entry),
		layerCount: make(map[Layer]int),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a section. A duplicate id is last-write-wins: the previous
// registration is torn down exactly as Unregister would, then replaced. When
// cfg.ZIndex is nil the section gets layerBase + registration ordinal within
// its layer, so values within a layer are stable and never collide.
func (r *Registry) Register(cfg Config) (Section, error) {
	if cfg.ID == "" {
		return Section{}, ErrEmptyID
	}
	if cfg.TriggerStart < 0 || cfg.TriggerEnd > 1 || cfg.TriggerStart > cfg.TriggerEnd {
		return Section{}, fmt.Errorf("%w: [%f, %f]", ErrInvalidTrigger, cfg.TriggerStart, cfg.TriggerEnd)
	}

	r.mu.Lock()
	if _, exists := r.sections[cfg.ID]; exists {
		r.removeLocked(cfg.ID)
		r.mu.Unlock()
		r.purgeAnimations(cfg.ID)
		r.mu.Lock()
	}

	zIndex := 0
	if cfg.ZIndex != nil {
		zIndex = *cfg.ZIndex
	} else {
		ordinal := r.layerCount[cfg.Layer]
		zIndex = cfg.Layer.Base() + ordinal
	}
	r.layerCount[cfg.Layer]++

	e := &entry{
		snap: Section{
			ID:           cfg.ID,
			Layer:        cfg.Layer,
			TriggerStart: cfg.TriggerStart,
			TriggerEnd:   cfg.TriggerEnd,
			ZIndex:       zIndex,
			Contrast:     cfg.Contrast,
			Animations:   append([]string(nil), cfg.Animations...),
			ElementRef:   cfg.ElementRef,
		},
		cb:  cfg.Callbacks,
		seq: r.nextSeq,
	}
	r.nextSeq++
	r.sections[cfg.ID] = e
	snap := e.snap
	bus := r.bus
	r.mu.Unlock()

	if bus != nil {
		bus.Publish(events.Event{Kind: events.SectionRegistered, SectionID: cfg.ID})
	}
	return snap, nil
}

// Unregister removes a section and purges its animations. No-op when the id
// is absent, so calling it twice is safe.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	_, existed := r.sections[id]
	if existed {
		r.removeLocked(id)
	}
	bus := r.bus
	r.mu.Unlock()

	if !existed {
		return
	}
	r.purgeAnimations(id)
	if bus != nil {
		bus.Publish(events.Event{Kind: events.SectionUnregistered, SectionID: id})
	}
}

func (r *Registry) removeLocked(id string) {
	delete(r.sections, id)
}

func (r *Registry) purgeAnimations(id string) {
	if r.coordinator != nil {
		r.coordinator.PurgeSection(id)
	}
}

// UpdateProgress clamps value to [0,1], stores it, and invokes the
// section's OnProgress callback synchronously. Unknown ids are ignored.
func (r *Registry) UpdateProgress(id string, value float64) {
	if value < 0 {
		value = 0
	} else if value > 1 {
		value = 1
	}

	r.mu.Lock()
	e, ok := r.sections[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	e.snap.Progress = value
	cb := e.cb.OnProgress
	coord := r.coordinator
	r.mu.Unlock()

	if coord != nil {
		coord.SetSectionProgress(id, value)
	}
	if cb != nil {
		cb(value)
	}
}

// Get returns a snapshot of the section.
func (r *Registry) Get(id string) (Section, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sections[id]
	if !ok {
		return Section{}, false
	}
	return e.snap, true
}

// Snapshot returns all sections in registration order.
func (r *Registry) Snapshot() []Section {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := make([]*entry, 0, len(r.sections))
	for _, e := range r.sections {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })

	out := make([]Section, len(entries))
	for i, e := range entries {
		out[i] = e.snap
	}
	return out
}

// Len returns the number of registered sections.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sections)
}

// SetIntersection updates the viewport intersection flags, which are
// independent of scroll-progress activation.
func (r *Registry) SetIntersection(id string, intersecting bool, ratio float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.sections[id]; ok {
		e.snap.Intersecting = intersecting
		e.snap.IntersectionRatio = ratio
	}
}

// SetVisible updates the visibility flag.
func (r *Registry) SetVisible(id string, visible bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.sections[id]; ok {
		e.snap.Visible = visible
	}
}

// setActive flips activation; used by the manager.
func (r *Registry) setActive(id string, active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.sections[id]; ok {
		e.snap.Active = active
	}
}

// callbacks returns the callback set for a section.
func (r *Registry) callbacks(id string) (Callbacks, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sections[id]
	if !ok {
		return Callbacks{}, false
	}
	return e.cb, true
}
