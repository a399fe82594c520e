// Package events carries cross-cutting notifications between the scroll
// orchestration components as a closed set of typed variants. Delivery is
// non-blocking fan-out: a subscriber whose channel is full loses the event
// rather than stalling the frame that produced it.
package events

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// Kind identifies an event variant.
type Kind int

const (
	SectionEntered Kind = iota
	SectionLeft
	SectionRegistered
	SectionUnregistered
	LoadStarted
	LoadFinished
	LoadFailed
	BudgetExceeded
	MemoryPressure
	StackingConflict
)

var kindNames = map[Kind]string{
	SectionEntered:      "section-entered",
	SectionLeft:         "section-left",
	SectionRegistered:   "section-registered",
	SectionUnregistered: "section-unregistered",
	LoadStarted:         "load-started",
	LoadFinished:        "load-finished",
	LoadFailed:          "load-failed",
	BudgetExceeded:      "budget-exceeded",
	MemoryPressure:      "memory-pressure",
	StackingConflict:    "stacking-conflict",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "unknown"
}

// Event is a single notification. Only the fields relevant to the Kind are
// populated; the rest stay zero.
type Event struct {
	Kind      Kind
	SectionID string
	Progress  float64
	SizeKB    int
	Err       error
	Detail    string
	Timestamp time.Time
}

var (
	ErrSubscriberExists   = errors.New("subscriber id already exists")
	ErrSubscriberNotFound = errors.New("subscriber id not found")
	ErrBusClosed          = errors.New("event bus is closed")
)

// SubscriberStats counts deliveries for one subscriber.
type SubscriberStats struct {
	Sent    uint64
	Dropped uint64
}

// Stats is a snapshot of bus counters.
type Stats struct {
	TotalPublished uint64
	TotalSent      uint64
	TotalDropped   uint64
	Subscribers    map[string]SubscriberStats
}

type subscriberCounters struct {
	sent    atomic.Uint64
	dropped atomic.Uint64
}

// Bus fans events out to registered subscriber channels.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]chan<- Event
	counters    map[string]*subscriberCounters
	closed      bool

	totalPublished atomic.Uint64
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[string]chan<- Event),
		counters:    make(map[string]*subscriberCounters),
	}
}

// Subscribe registers a channel under id. The caller owns the channel and its
// buffer size determines how much burst it can absorb before drops begin.
func (b *Bus) Subscribe(id string, ch chan<- Event) error {
	if ch == nil {
		return errors.New("subscriber channel cannot be nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBusClosed
	}
	if _, exists := b.subscribers[id]; exists {
		return ErrSubscriberExists
	}

	b.subscribers[id] = ch
	b.counters[id] = &subscriberCounters{}
	return nil
}

// Unsubscribe removes a subscriber. The channel is not closed; that remains
// the subscriber's responsibility.
func (b *Bus) Unsubscribe(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBusClosed
	}
	if _, exists := b.subscribers[id]; !exists {
		return ErrSubscriberNotFound
	}

	delete(b.subscribers, id)
	delete(b.counters, id)
	return nil
}

// Publish delivers ev to every subscriber without blocking. Publishing on a
// closed bus is a no-op so teardown ordering between components stays loose.
func (b *Bus) Publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	b.totalPublished.Add(1)

	for id, ch := range b.subscribers {
		select {
		case ch <- ev:
			b.counters[id].sent.Add(1)
		default:
			b.counters[id].dropped.Add(1)
		}
	}
}

// Stats returns a snapshot of the delivery counters.
func (b *Bus) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := Stats{
		TotalPublished: b.totalPublished.Load(),
		Subscribers:    make(map[string]SubscriberStats, len(b.counters)),
	}
	for id, c := range b.counters {
		sent := c.sent.Load()
		dropped := c.dropped.Load()
		out.TotalSent += sent
		out.TotalDropped += dropped
		out.Subscribers[id] = SubscriberStats{Sent: sent, Dropped: dropped}
	}
	return out
}

// Close stops the bus. Idempotent. Subscriber channels stay open.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	return nil
}
