package scroll

// Tick is one sample from the underlying smooth-scroll engine.
type Tick struct {
	Offset float64 // current scroll offset in engine units
	Limit  float64 // total scrollable distance in the same units
}

// Engine is the boundary to the third-party smooth-scroll provider. The
// adapter owns the single OnScroll subscription; everything else in the
// module reads normalized state from the adapter, never from the engine.
type Engine interface {
	// ScrollTo asks the engine to animate to an absolute offset.
	ScrollTo(offset float64)

	// OnScroll registers cb for every engine tick and returns a cancel
	// function that detaches it.
	OnScroll(cb func(Tick)) (cancel func())

	// Raf advances the engine's internal animation clock, in seconds.
	Raf(now float64)

	// IsSmooth reports whether the engine initialized with smoothing.
	// False means the engine is running in a degraded pass-through mode.
	IsSmooth() bool

	// Destroy releases the engine. The adapter calls this on Close only
	// when it constructed the engine itself.
	Destroy()
}
