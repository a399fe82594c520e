package loader

import (
	"errors"
	"fmt"
)

// Priority buckets. Each bucket owns an independent KB budget; eviction for
// one bucket never frees another bucket's budget.
type Priority int

const (
	PriorityCritical Priority = iota
	PriorityAboveFold
	PriorityBelowFold
	PriorityLazy
)

func (p Priority) String() string {
	switch p {
	case PriorityCritical:
		return "critical"
	case PriorityAboveFold:
		return "above-fold"
	case PriorityBelowFold:
		return "below-fold"
	}
	return "lazy"
}

// ParsePriority maps a manifest string to a Priority.
func ParsePriority(s string) (Priority, error) {
	switch s {
	case "critical":
		return PriorityCritical, nil
	case "above-fold":
		return PriorityAboveFold, nil
	case "below-fold", "":
		return PriorityBelowFold, nil
	case "lazy":
		return PriorityLazy, nil
	}
	return 0, fmt.Errorf("unknown priority %q", s)
}

// PreloadTrigger decides when a section is proactively fetched.
type PreloadTrigger int

const (
	TriggerViewport PreloadTrigger = iota
	TriggerImmediate
	TriggerInteraction
	TriggerIdle
)

func (t PreloadTrigger) String() string {
	switch t {
	case TriggerImmediate:
		return "immediate"
	case TriggerInteraction:
		return "interaction"
	case TriggerIdle:
		return "idle"
	}
	return "viewport"
}

// ParsePreloadTrigger maps a manifest string to a PreloadTrigger.
func ParsePreloadTrigger(s string) (PreloadTrigger, error) {
	switch s {
	case "viewport", "":
		return TriggerViewport, nil
	case "immediate":
		return TriggerImmediate, nil
	case "interaction":
		return TriggerInteraction, nil
	case "idle":
		return TriggerIdle, nil
	}
	return 0, fmt.Errorf("unknown preload trigger %q", s)
}

// CacheStrategy selects where a loaded section is retained. Disk and
// network caching are delegated to the host platform's own primitives; the
// loader only records that the section is cached.
type CacheStrategy int

const (
	CacheMemory CacheStrategy = iota
	CacheDisk
	CacheNetwork
	CacheNone
)

func (c CacheStrategy) String() string {
	switch c {
	case CacheDisk:
		return "disk"
	case CacheNetwork:
		return "network"
	case CacheNone:
		return "none"
	}
	return "memory"
}

// ParseCacheStrategy maps a manifest string to a CacheStrategy.
func ParseCacheStrategy(s string) (CacheStrategy, error) {
	switch s {
	case "memory", "":
		return CacheMemory, nil
	case "disk":
		return CacheDisk, nil
	case "network":
		return CacheNetwork, nil
	case "none":
		return CacheNone, nil
	}
	return 0, fmt.Errorf("unknown cache strategy %q", s)
}

// Metadata describes a loadable section. Distinct from the rendering-side
// section.Section: this is the loading domain's view.
type Metadata struct {
	ID              string
	Name            string
	Route           string
	Priority        Priority
	Dependencies    []string
	PreloadTrigger  PreloadTrigger
	EstimatedSizeKB int
	CacheStrategy   CacheStrategy
}

var (
	// ErrMissingField is returned when required metadata is absent.
	ErrMissingField = errors.New("metadata requires id, name and route")

	// ErrCircularDependency is returned when registering would close a
	// dependency cycle.
	ErrCircularDependency = errors.New("circular section dependency")
)

// validate checks required fields.
func (m Metadata) validate() error {
	if m.ID == "" || m.Name == "" || m.Route == "" {
		return fmt.Errorf("%w: id=%q name=%q route=%q", ErrMissingField, m.ID, m.Name, m.Route)
	}
	if m.EstimatedSizeKB < 0 {
		return fmt.Errorf("estimated size cannot be negative: %d", m.EstimatedSizeKB)
	}
	return nil
}

// findCycle runs a depth-first search over the dependency edges reachable
// from start and returns the cycle path if one exists. Dependencies not yet
// registered are skipped; they are re-checked when they register.
func findCycle(start string, meta map[string]*Metadata) []string {
	const (
		white = 0 // unvisited
		grey  = 1 // on stack
		black = 2 // done
	)
	colors := make(map[string]int)
	var path []string
	var cycle []string

	var visit func(id string) bool
	visit = func(id string) bool {
		m, ok := meta[id]
		if !ok {
			return false
		}
		colors[id] = grey
		path = append(path, id)
		for _, dep := range m.Dependencies {
			switch colors[dep] {
			case grey:
				cycle = append(append([]string(nil), path...), dep)
				return true
			case white:
				if visit(dep) {
					return true
				}
			}
		}
		colors[id] = black
		path = path[:len(path)-1]
		return false
	}

	if visit(start) {
		return cycle
	}
	return nil
}
