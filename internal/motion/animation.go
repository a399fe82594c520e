package motion

import (
	"sync"
	"time"
)

// Kind tags an animation variant.
type Kind int

const (
	KindFade Kind = iota
	KindSlide
	KindScale
	KindMask
	KindColor
	KindParallax
	KindSpring
	KindScrollTransform
)

var kindNames = map[Kind]string{
	KindFade:            "fade",
	KindSlide:           "slide",
	KindScale:           "scale",
	KindMask:            "mask",
	KindColor:           "color",
	KindParallax:        "parallax",
	KindSpring:          "spring",
	KindScrollTransform: "scroll-transform",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "unknown"
}

// Params is the tagged parameter variant per animation kind. Each carries
// only the fields its kind needs.
type Params interface {
	Kind() Kind
}

// Fade animates opacity From -> To over section-local progress.
type Fade struct {
	From, To float64
}

func (Fade) Kind() Kind { return KindFade }

// Slide animates a 2D translation over section-local progress.
type Slide struct {
	FromX, FromY float64
	ToX, ToY     float64
}

func (Slide) Kind() Kind { return KindSlide }

// Scale animates uniform scale over section-local progress.
type Scale struct {
	From, To float64
}

func (Scale) Kind() Kind { return KindScale }

// Mask animates a clip inset percentage over section-local progress.
type Mask struct {
	From, To float64
}

func (Mask) Kind() Kind { return KindMask }

// Color animates an RGB triple over section-local progress, channels in
// [0,1].
type Color struct {
	From, To [3]float64
}

func (Color) Kind() Kind { return KindColor }

// Parallax derives an offset from scroll distance. Negative strength moves
// opposite to scroll (recedes, background depth); positive moves with it.
type Parallax struct {
	Strength float64
}

func (Parallax) Kind() Kind { return KindParallax }

// Spring is a physical tween toward a moving target. Values are a tuning
// surface; defaults give a critically-damped-capable integrator.
type Spring struct {
	Stiffness float64
	Damping   float64
	Mass      float64
}

func (Spring) Kind() Kind { return KindSpring }

// DefaultSpring mirrors the tuning used for section transitions.
func DefaultSpring() Spring {
	return Spring{Stiffness: 170, Damping: 26, Mass: 1}
}

// scrollTransform is created through CreateScrollTransform only.
type scrollTransform struct {
	input  []float64
	output []float64
}

func (scrollTransform) Kind() Kind { return KindScrollTransform }

// Handle is an animation owned by the coordinator. A section references
// handles by id only; the coordinator purges them when the owning section
// unregisters. After Remove a handle stays readable but inert: no further
// updates flow through it.
type Handle struct {
	id        string
	sectionID string
	kind      Kind
	params    Params

	mu         sync.Mutex
	vec        []float64
	out        Value // scalar mirror of vec[0]
	active     bool
	removed    bool
	lastUpdate time.Time

	// spring state
	springPos float64
	springVel float64
	target    float64
}

// ID returns the animation id.
func (h *Handle) ID() string { return h.id }

// SectionID returns the owning section id.
func (h *Handle) SectionID() string { return h.sectionID }

// Kind returns the animation variant tag.
func (h *Handle) Kind() Kind { return h.kind }

// IsActive reports whether the handle is live and has received an update.
func (h *Handle) IsActive() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.active && !h.removed
}

// LastUpdate returns the time of the most recent value write.
func (h *Handle) LastUpdate() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastUpdate
}

// Out exposes the scalar motion value (first vector component) for the
// renderer boundary.
func (h *Handle) Out() Value { return h.out }

// Vector returns a copy of the current value vector.
func (h *Handle) Vector() []float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]float64, len(h.vec))
	copy(out, h.vec)
	return out
}

// Scalar returns the first vector component.
func (h *Handle) Scalar() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.vec) == 0 {
		return 0
	}
	return h.vec[0]
}

// Update moves a spring handle's target. No-op for other kinds or after
// removal.
func (h *Handle) Update(target float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.removed || h.kind != KindSpring {
		return
	}
	h.target = target
}

// write commits a new value vector. Caller supplies the clock reading.
func (h *Handle) write(vec []float64, now time.Time) {
	h.mu.Lock()
	if h.removed {
		h.mu.Unlock()
		return
	}
	if cap(h.vec) < len(vec) {
		h.vec = make([]float64, len(vec))
	}
	h.vec = h.vec[:len(vec)]
	copy(h.vec, vec)
	h.active = true
	h.lastUpdate = now
	first := vec[0]
	out := h.out
	h.mu.Unlock()

	out.Set(first)
}

// retire makes the handle inert. Idempotent.
func (h *Handle) retire() {
	h.mu.Lock()
	h.removed = true
	h.active = false
	h.mu.Unlock()
}
