// Package stacking resolves a deterministic z-index for every registered
// section. Each layer owns a base offset; within a layer rules are ordered
// by priority descending with registration order breaking ties, so the
// assignment is stable across re-renders.
package stacking

import (
	"math"
	"sort"
	"sync"

	"github.com/surfsidere/kova-scroll/internal/events"
	"github.com/surfsidere/kova-scroll/internal/section"
)

// DefaultTransitionEpsilon is the scroll-progress window within which two
// active neighboring sections are considered to be handing off.
const DefaultTransitionEpsilon = 0.02

// Rule places one section in the stacking order.
type Rule struct {
	SectionID string
	Layer     section.Layer
	Priority  int
}

// State is the resolved stacking answer for one section. IsTransitioning
// tells the renderer to cross-fade instead of hard-cutting, suppressing
// flicker while two sections overlap.
type State struct {
	AssignedIndex   int
	IsTransitioning bool
}

type rule struct {
	Rule
	seq int
}

// Orchestrator derives the stacking order from the current rule set and the
// registry's activation state.
type Orchestrator struct {
	mu      sync.Mutex
	rules   map[string]*rule
	nextSeq int
	epsilon float64

	registry *section.Registry
	bus      *events.Bus
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithTransitionEpsilon overrides the hand-off window.
func WithTransitionEpsilon(eps float64) Option {
	return func(o *Orchestrator) { o.epsilon = eps }
}

// WithBus reports stacking conflicts as events.
func WithBus(bus *events.Bus) Option {
	return func(o *Orchestrator) { o.bus = bus }
}

// NewOrchestrator creates an orchestrator reading activation state from reg.
func NewOrchestrator(reg *section.Registry, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		rules:    make(map[string]*rule),
		epsilon:  DefaultTransitionEpsilon,
		registry: reg,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// AddRule registers or replaces the rule for a section. Replacing keeps the
// original registration order so re-renders do not shuffle the stack.
func (o *Orchestrator) AddRule(r Rule) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if existing, ok := o.rules[r.SectionID]; ok {
		existing.Rule = r
		return
	}
	o.rules[r.SectionID] = &rule{Rule: r, seq: o.nextSeq}
	o.nextSeq++
}

// RemoveRule drops a section's rule. No-op when absent.
func (o *Orchestrator) RemoveRule(sectionID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.rules, sectionID)
}

// ZIndexState resolves the current stacking answer for sectionID.
func (o *Orchestrator) ZIndexState(sectionID string) (State, bool) {
	resolved := o.Resolve()
	st, ok := resolved[sectionID]
	return st, ok
}

// Resolve computes the full assignment. Within each layer, rules are sorted
// by priority descending, ties broken FIFO by registration order; position n
// from the top of that ordering gets layerBase + (count-1-n), so the highest
// priority holds the highest index in its layer.
func (o *Orchestrator) Resolve() map[string]State {
	o.mu.Lock()
	byLayer := make(map[section.Layer][]*rule)
	for _, r := range o.rules {
		byLayer[r.Layer] = append(byLayer[r.Layer], r)
	}
	epsilon := o.epsilon
	o.mu.Unlock()

	out := make(map[string]State)
	for layer, rules := range byLayer {
		sort.Slice(rules, func(i, j int) bool {
			if rules[i].Priority != rules[j].Priority {
				return rules[i].Priority > rules[j].Priority
			}
			return rules[i].seq < rules[j].seq
		})
		count := len(rules)
		for pos, r := range rules {
			out[r.SectionID] = State{AssignedIndex: layer.Base() + (count - 1 - pos)}
		}
	}

	o.markTransitions(out, epsilon)
	return out
}

// markTransitions flags sections whose activation overlaps a neighboring
// active section within the epsilon window.
func (o *Orchestrator) markTransitions(out map[string]State, epsilon float64) {
	if o.registry == nil {
		return
	}

	sections := o.registry.Snapshot()
	active := sections[:0]
	for _, s := range sections {
		if s.Active {
			active = append(active, s)
		}
	}

	for i := 0; i < len(active); i++ {
		for j := i + 1; j < len(active); j++ {
			a, b := active[i], active[j]
			if !rangesTouch(a.TriggerStart, a.TriggerEnd, b.TriggerStart, b.TriggerEnd, epsilon) {
				continue
			}
			for _, id := range []string{a.ID, b.ID} {
				if st, ok := out[id]; ok {
					st.IsTransitioning = true
					out[id] = st
				}
			}
			if o.bus != nil {
				o.bus.Publish(events.Event{
					Kind:      events.StackingConflict,
					SectionID: a.ID,
					Detail:    "overlaps " + b.ID,
				})
			}
		}
	}
}

// rangesTouch reports whether [aStart,aEnd] and [bStart,bEnd] overlap or sit
// within eps of each other.
func rangesTouch(aStart, aEnd, bStart, bEnd, eps float64) bool {
	gap := math.Max(aStart, bStart) - math.Min(aEnd, bEnd)
	return gap <= eps
}
