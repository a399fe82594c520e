package config

// Config carries the runtime settings of one page session.
type Config struct {
	ScrollDistance    float64 // pixels mapped onto progress [0,1]
	ReducedMotion     bool
	TransitionEpsilon float64 // trigger-range gap treated as a transition
	ConcurrentLoads   int
	PreloadDistance   int
	QueueIntervalMS   int // preload queue drain interval
	MemoryPollMS      int // memory monitor sample interval
	MemoryLimitMB     int // RSS above this reports pressure
	ManifestDir       string
	ShowStats         bool
	BuildVersion      string
}

// Default returns the settings used when nothing overrides them.
func Default() Config {
	return Config{
		ScrollDistance:    4000,
		TransitionEpsilon: 0.02,
		ConcurrentLoads:   4,
		PreloadDistance:   2,
		QueueIntervalMS:   250,
		MemoryPollMS:      1000,
		MemoryLimitMB:     512,
		ManifestDir:       "manifests",
	}
}
