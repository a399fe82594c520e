// Package motion holds the animation coordinator: a registry of tweened
// values keyed by animation id. It creates scroll-mapped, parallax and
// spring animations, tracks their liveness and garbage-collects them when
// the owning section tears down. No animation outlives its owning section.
package motion

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrAnimationExists is returned when an explicit animation id collides.
var ErrAnimationExists = errors.New("animation id already registered")

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithReducedMotion collapses tween durations toward zero: springs snap to
// their target on the next advance. Scroll-mapped values are positional, not
// timed, so they are unaffected.
func WithReducedMotion(on bool) Option {
	return func(c *Coordinator) { c.reducedMotion = on }
}

// WithScrollDistance sets the total scrollable distance used to turn
// parallax strength into an offset.
func WithScrollDistance(px float64) Option {
	return func(c *Coordinator) { c.scrollDistance = px }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// Coordinator owns every animation handle. Constructed per page session and
// passed by reference; there is no package-level instance.
type Coordinator struct {
	mu             sync.Mutex
	anims          map[string]*Handle
	reducedMotion  bool
	scrollDistance float64
	now            func() time.Time
}

// NewCoordinator creates an empty coordinator.
func NewCoordinator(opts ...Option) *Coordinator {
	c := &Coordinator{
		anims:          make(map[string]*Handle),
		scrollDistance: 1,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ReducedMotion reports the reduced-motion setting.
func (c *Coordinator) ReducedMotion() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reducedMotion
}

// Create registers an animation with an explicit id and tagged params.
func (c *Coordinator) Create(id, sectionID string, p Params) (*Handle, error) {
	if id == "" {
		return nil, errors.New("animation id cannot be empty")
	}
	if _, ok := p.(scrollTransform); ok {
		return nil, errors.New("use CreateScrollTransform for scroll-mapped animations")
	}
	return c.insert(id, sectionID, p)
}

// CreateScrollTransform registers an anonymous animation that maps global
// scroll progress through a piecewise-linear interpolation. Out-of-range
// progress clamps to the nearest endpoint, never extrapolates.
func (c *Coordinator) CreateScrollTransform(sectionID string, input, output []float64) (*Handle, error) {
	if err := ValidateRanges(input, output); err != nil {
		return nil, err
	}
	in := append([]float64(nil), input...)
	out := append([]float64(nil), output...)
	return c.insert(uuid.NewString(), sectionID, scrollTransform{input: in, output: out})
}

// CreateParallax registers a parallax animation: offset = scrollDistance *
// progress * strength.
func (c *Coordinator) CreateParallax(id, sectionID string, strength float64) (*Handle, error) {
	return c.Create(id, sectionID, Parallax{Strength: strength})
}

// CreateSpring registers a spring animation seeded at target. Move the
// target later through Handle.Update.
func (c *Coordinator) CreateSpring(id, sectionID string, target float64, p Spring) (*Handle, error) {
	if p.Stiffness <= 0 || p.Damping <= 0 || p.Mass <= 0 {
		p = DefaultSpring()
	}
	h, err := c.Create(id, sectionID, p)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	h.springPos = target
	h.target = target
	h.mu.Unlock()
	h.write([]float64{target}, c.now())
	return h, nil
}

func (c *Coordinator) insert(id, sectionID string, p Params) (*Handle, error) {
	h := &Handle{
		id:        id,
		sectionID: sectionID,
		kind:      p.Kind(),
		params:    p,
		out:       NewValue(0),
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.anims[id]; exists {
		return nil, fmt.Errorf("%w: %q", ErrAnimationExists, id)
	}
	c.anims[id] = h
	return h, nil
}

// Get looks up a handle by id.
func (c *Coordinator) Get(id string) (*Handle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.anims[id]
	return h, ok
}

// Remove deletes the handle and leaves it inert. Safe to call with an id
// still referenced by a mounted section, and safe to call twice: the section
// simply stops receiving updates for it.
func (c *Coordinator) Remove(id string) {
	c.mu.Lock()
	h, ok := c.anims[id]
	delete(c.anims, id)
	c.mu.Unlock()

	if ok {
		h.retire()
	}
}

// PurgeSection removes every animation owned by sectionID and returns how
// many were dropped. Called on section unregistration; this is the
// leak-avoidance path.
func (c *Coordinator) PurgeSection(sectionID string) int {
	c.mu.Lock()
	var victims []*Handle
	for id, h := range c.anims {
		if h.sectionID == sectionID {
			victims = append(victims, h)
			delete(c.anims, id)
		}
	}
	c.mu.Unlock()

	for _, h := range victims {
		h.retire()
	}
	return len(victims)
}

// Active returns all live handles that have received at least one update,
// ordered by id for determinism.
func (c *Coordinator) Active() []*Handle {
	c.mu.Lock()
	handles := make([]*Handle, 0, len(c.anims))
	for _, h := range c.anims {
		handles = append(handles, h)
	}
	c.mu.Unlock()

	out := handles[:0]
	for _, h := range handles {
		if h.IsActive() {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// Len returns the number of registered handles, live or not yet updated.
func (c *Coordinator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.anims)
}

// Advance drives scroll transforms and parallax from global progress and
// integrates springs over dt. Called once per frame.
func (c *Coordinator) Advance(progress float64, dt time.Duration) {
	progress = clamp01(progress)
	now := c.now()

	c.mu.Lock()
	reduced := c.reducedMotion
	distance := c.scrollDistance
	handles := make([]*Handle, 0, len(c.anims))
	for _, h := range c.anims {
		handles = append(handles, h)
	}
	c.mu.Unlock()

	for _, h := range handles {
		switch p := h.params.(type) {
		case scrollTransform:
			h.write([]float64{Interpolate(progress, p.input, p.output)}, now)
		case Parallax:
			h.write([]float64{distance * progress * p.Strength}, now)
		case Spring:
			h.stepSpring(p, dt, reduced, now)
		}
	}
}

// SetSectionProgress drives the per-section tweens (fade, slide, scale,
// mask, color) owned by sectionID from its local progress in [0,1]. Called
// by the section manager on every progress change.
func (c *Coordinator) SetSectionProgress(sectionID string, local float64) {
	local = clamp01(local)
	t := easeInOutCubic(local)
	now := c.now()

	c.mu.Lock()
	handles := make([]*Handle, 0, 4)
	for _, h := range c.anims {
		if h.sectionID == sectionID {
			handles = append(handles, h)
		}
	}
	c.mu.Unlock()

	for _, h := range handles {
		switch p := h.params.(type) {
		case Fade:
			h.write([]float64{lerp(p.From, p.To, t)}, now)
		case Slide:
			h.write([]float64{lerp(p.FromX, p.ToX, t), lerp(p.FromY, p.ToY, t)}, now)
		case Scale:
			h.write([]float64{lerp(p.From, p.To, t)}, now)
		case Mask:
			h.write([]float64{lerp(p.From, p.To, t)}, now)
		case Color:
			h.write([]float64{
				lerp(p.From[0], p.To[0], t),
				lerp(p.From[1], p.To[1], t),
				lerp(p.From[2], p.To[2], t),
			}, now)
		}
	}
}

// stepSpring advances one spring with semi-implicit Euler integration.
func (h *Handle) stepSpring(p Spring, dt time.Duration, reduced bool, now time.Time) {
	h.mu.Lock()
	if h.removed {
		h.mu.Unlock()
		return
	}
	target := h.target
	if reduced {
		h.springPos = target
		h.springVel = 0
	} else {
		step := dt.Seconds()
		// Large frame gaps are subdivided to keep the integrator stable.
		const maxStep = 1.0 / 60.0
		for step > 0 {
			s := step
			if s > maxStep {
				s = maxStep
			}
			force := p.Stiffness*(target-h.springPos) - p.Damping*h.springVel
			h.springVel += force / p.Mass * s
			h.springPos += h.springVel * s
			step -= s
		}
	}
	pos := h.springPos
	h.mu.Unlock()

	h.write([]float64{pos}, now)
}
