// Package scroll normalizes a smooth-scroll engine into a single progress
// signal in [0,1] plus velocity and direction. One adapter exists per page
// session; it holds the only subscription to the engine tick event.
package scroll

import (
	"math"
	"sort"
	"sync"
)

// Direction of the last scroll delta.
type Direction int

const (
	Down Direction = iota
	Up
)

func (d Direction) String() string {
	if d == Up {
		return "up"
	}
	return "down"
}

// State is the normalized scroll snapshot read by every section manager.
type State struct {
	Progress        float64
	Velocity        float64
	Direction       Direction
	ActiveSectionID string
	IsScrolling     bool
}

// Adapter wraps an Engine and republishes its ticks as normalized State.
// A nil engine is allowed: the adapter then runs in fallback mode, fed by
// Pump, with smoothing unavailable but progress and velocity still live.
type Adapter struct {
	mu         sync.Mutex
	engine     Engine
	cancelTick func()
	ready      bool
	smooth     bool

	state      State
	lastOffset float64
	hasOffset  bool

	nextListener int
	listeners    map[int]func(State)
	closed       bool
}

// NewAdapter attaches to engine, or degrades to fallback mode when engine is
// nil or reports no smoothing. The adapter is ready immediately in fallback
// mode and after the first successful subscription otherwise.
func NewAdapter(engine Engine) *Adapter {
	a := &Adapter{
		engine:    engine,
		listeners: make(map[int]func(State)),
	}

	if engine == nil {
		a.ready = true
		return a
	}

	a.smooth = engine.IsSmooth()
	a.cancelTick = engine.OnScroll(a.onTick)
	a.ready = true
	return a
}

// Ready reports whether the adapter is producing state.
func (a *Adapter) Ready() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ready && !a.closed
}

// Smooth reports whether the underlying engine smoothing is active.
func (a *Adapter) Smooth() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.smooth
}

// Progress returns the current normalized progress in [0,1].
func (a *Adapter) Progress() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.Progress
}

// Velocity returns the offset delta of the last tick, normalized units.
func (a *Adapter) Velocity() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.Velocity
}

// State returns a copy of the full snapshot.
func (a *Adapter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Subscribe registers fn to run synchronously on every tick, after the
// snapshot has been committed. The returned function unsubscribes and is
// safe to call more than once.
func (a *Adapter) Subscribe(fn func(State)) (unsubscribe func()) {
	a.mu.Lock()
	id := a.nextListener
	a.nextListener++
	a.listeners[id] = fn
	a.mu.Unlock()

	return func() {
		a.mu.Lock()
		delete(a.listeners, id)
		a.mu.Unlock()
	}
}

// SetActiveSection records the most-recently-entered section id. Multiple
// sections may be active at once; this tracks only the latest entry.
func (a *Adapter) SetActiveSection(id string) {
	a.mu.Lock()
	a.state.ActiveSectionID = id
	a.mu.Unlock()
}

// Pump feeds an offset sample in fallback mode (native scroll position
// polling, simulations, tests). It goes through the same tick path as
// engine-driven samples.
func (a *Adapter) Pump(offset, limit float64) {
	a.onTick(Tick{Offset: offset, Limit: limit})
}

// Settle marks the end of a scroll gesture: velocity drops to zero and
// IsScrolling clears, without moving progress.
func (a *Adapter) Settle() {
	a.mu.Lock()
	a.state.Velocity = 0
	a.state.IsScrolling = false
	listeners := a.snapshotListeners()
	st := a.state
	a.mu.Unlock()

	for _, fn := range listeners {
		fn(st)
	}
}

// Close detaches the engine listener and drops all subscribers. Idempotent.
func (a *Adapter) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	a.ready = false
	cancel := a.cancelTick
	a.cancelTick = nil
	a.listeners = make(map[int]func(State))
	a.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

func (a *Adapter) onTick(t Tick) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}

	progress := 0.0
	if t.Limit > 0 {
		progress = t.Offset / t.Limit
	}
	progress = clamp01(progress)

	if a.hasOffset {
		delta := t.Offset - a.lastOffset
		a.state.Velocity = delta
		if delta < 0 {
			a.state.Direction = Up
		} else if delta > 0 {
			a.state.Direction = Down
		}
		a.state.IsScrolling = delta != 0
	} else {
		a.hasOffset = true
		a.state.IsScrolling = false
	}
	a.lastOffset = t.Offset
	a.state.Progress = progress

	// Commit state before callbacks so listeners re-reading the adapter
	// observe what they were called with.
	listeners := a.snapshotListeners()
	st := a.state
	a.mu.Unlock()

	for _, fn := range listeners {
		fn(st)
	}
}

// snapshotListeners must be called with the lock held. Order is stable so a
// tick is fanned out deterministically.
func (a *Adapter) snapshotListeners() []func(State) {
	ids := make([]int, 0, len(a.listeners))
	for id := range a.listeners {
		ids = append(ids, id)
	}
	// insertion order = ascending ids
	sort.Ints(ids)
	out := make([]func(State), 0, len(ids))
	for _, id := range ids {
		out = append(out, a.listeners[id])
	}
	return out
}

func clamp01(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}
