package section

import (
	"math"

	"github.com/surfsidere/kova-scroll/internal/scroll"
)

// Manager tracks one section's activation against the global scroll signal.
// Ordering is guaranteed per activation: OnEnter fires before the first
// OnProgress, OnLeave after the last one, even when a single tick jumps the
// entire trigger range.
type Manager struct {
	reg *Registry
	id  string

	wasInside bool
	lastGP    float64
	hasLast   bool
}

// NewManager creates a manager for a registered section id.
func NewManager(reg *Registry, id string) *Manager {
	return &Manager{reg: reg, id: id, lastGP: math.NaN()}
}

// ID returns the managed section id.
func (m *Manager) ID() string { return m.id }

// LocalProgress remaps global progress into the section's trigger range. A
// zero-width range is a step function: 0 before the trigger point, 1 at or
// after it.
func LocalProgress(globalProgress, start, end float64) float64 {
	if start == end {
		if globalProgress >= start {
			return 1
		}
		return 0
	}
	v := (globalProgress - start) / (end - start)
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// OnScroll processes one scroll tick. Returns whether the section entered or
// left during this tick; a fast jump across the whole range reports both.
func (m *Manager) OnScroll(st scroll.State) (entered, left bool) {
	snap, ok := m.reg.Get(m.id)
	if !ok {
		return false, false
	}
	cb, _ := m.reg.callbacks(m.id)

	gp := st.Progress
	inside := gp >= snap.TriggerStart && gp <= snap.TriggerEnd
	local := LocalProgress(gp, snap.TriggerStart, snap.TriggerEnd)

	jumped := false
	if m.hasLast && !m.wasInside && !inside {
		// A large delta can cross the entire range between two ticks.
		crossedDown := m.lastGP < snap.TriggerStart && gp > snap.TriggerEnd
		crossedUp := m.lastGP > snap.TriggerEnd && gp < snap.TriggerStart
		jumped = crossedDown || crossedUp
	}

	switch {
	case inside && !m.wasInside:
		m.wasInside = true
		m.reg.setActive(m.id, true)
		if cb.OnEnter != nil {
			cb.OnEnter()
		}
		m.reg.UpdateProgress(m.id, local)
		entered = true

	case inside && m.wasInside:
		m.reg.UpdateProgress(m.id, local)

	case !inside && m.wasInside:
		// Push the boundary value so the section lands exactly on 0 or 1
		// before deactivating.
		m.reg.UpdateProgress(m.id, local)
		m.wasInside = false
		m.reg.setActive(m.id, false)
		if cb.OnLeave != nil {
			cb.OnLeave()
		}
		left = true

	case jumped:
		// Synthetic pass-through within one tick preserves the
		// enter -> progress -> leave ordering without extra frames.
		m.reg.setActive(m.id, true)
		if cb.OnEnter != nil {
			cb.OnEnter()
		}
		m.reg.UpdateProgress(m.id, local)
		m.reg.setActive(m.id, false)
		if cb.OnLeave != nil {
			cb.OnLeave()
		}
		entered, left = true, true
	}

	m.lastGP = gp
	m.hasLast = true
	return entered, left
}

// IsInside reports whether the manager currently considers the section
// scroll-active.
func (m *Manager) IsInside() bool { return m.wasInside }
