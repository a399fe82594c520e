// Package loader decides which sections get fetched, mounted and unmounted.
// It tracks a per-priority-bucket KB budget with LRU eviction, dedupes
// concurrent loads per id, resolves dependencies before the section itself,
// and throttles preloading under slow networks or memory pressure. Actual
// mount/unmount is delegated to the Isolator boundary.
package loader

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/surfsidere/kova-scroll/internal/events"
)

// Isolator is the component-isolation boundary: it owns the real mount and
// unmount of section implementations.
type Isolator interface {
	Mount(ctx context.Context, id string) error
	Unmount(id string)
}

// Quality classifies the network connection.
type Quality int

const (
	QualityFast Quality = iota
	QualityModerate
	QualitySlow
)

var (
	// ErrNotRegistered is returned when loading an unknown section id.
	ErrNotRegistered = errors.New("section not registered with loader")

	// ErrBudgetExceeded is returned when eviction cannot free enough of
	// the bucket's budget.
	ErrBudgetExceeded = errors.New("priority bucket budget exceeded")
)

// Result is what a Load call resolves to. Callers sharing a deduplicated
// in-flight load all receive the same result.
type Result struct {
	ID        string
	FromCache bool
	SizeKB    int
}

// LoadOptions tune a single Load call.
type LoadOptions struct {
	// Preload marks this load as speculative: it does not move `current`.
	Preload bool
	// Force reloads even when the section is already loaded.
	Force bool
}

// Snapshot is the externally visible loading state.
type Snapshot struct {
	Loading    []string
	Preloading []string
	Loaded     []string
	Failed     []string
	Cached     []string
	Current    string
	UsedKB     map[Priority]int
}

type queued struct {
	id    string
	score int
	seq   int
}

// Option configures a Loader.
type Option func(*Loader)

// WithBudget sets the KB budget for one priority bucket. A zero or negative
// budget means the bucket is unbudgeted.
func WithBudget(p Priority, kb int) Option {
	return func(l *Loader) { l.budgets[p] = kb }
}

// WithConcurrentLoads caps simultaneous in-flight mounts.
func WithConcurrentLoads(n int) Option {
	return func(l *Loader) {
		if n > 0 {
			l.maxConcurrent = n
		}
	}
}

// WithPreloadDistance sets how many upcoming sections are preloaded after a
// successful load.
func WithPreloadDistance(n int) Option {
	return func(l *Loader) { l.basePreload = n }
}

// WithLoaderBus publishes load lifecycle events to bus.
func WithLoaderBus(bus *events.Bus) Option {
	return func(l *Loader) { l.bus = bus }
}

// WithQueueCapacity bounds the preload queue.
func WithQueueCapacity(n int) Option {
	return func(l *Loader) {
		if n > 0 {
			l.queueCap = n
		}
	}
}

// Loader is the progressive loading engine. One per page session.
type Loader struct {
	iso Isolator
	bus *events.Bus

	mu    sync.Mutex
	meta  map[string]*Metadata
	order []string

	loading    map[string]struct{}
	preloading map[string]struct{}
	loaded     map[string]struct{}
	failed     map[string]struct{}
	cached     map[string]struct{}
	current    string

	budgets map[Priority]int
	usedKB  map[Priority]int

	lastUse map[string]int64
	useTick int64

	queue    []queued
	queueSeq int
	queueCap int

	maxConcurrent int
	effective     int
	basePreload   int
	preloadDist   int
	pressured     bool

	group singleflight.Group
	sem   *semaphore.Weighted
}

// New creates a loader around an isolator.
func New(iso Isolator, opts ...Option) *Loader {
	l := &Loader{
		iso:        iso,
		meta:       make(map[string]*Metadata),
		loading:    make(map[string]struct{}),
		preloading: make(map[string]struct{}),
		loaded:     make(map[string]struct{}),
		failed:     make(map[string]struct{}),
		cached:     make(map[string]struct{}),
		budgets: map[Priority]int{
			PriorityCritical:  512,
			PriorityAboveFold: 1024,
			PriorityBelowFold: 1536,
		},
		usedKB:        make(map[Priority]int),
		lastUse:       make(map[string]int64),
		queueCap:      64,
		maxConcurrent: 4,
		basePreload:   2,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.effective = l.maxConcurrent
	l.preloadDist = l.basePreload
	l.sem = semaphore.NewWeighted(int64(l.maxConcurrent))
	return l
}

// Register adds section metadata. Required fields are id, name and route;
// missing any is fatal to this registration only. A dependency cycle is
// rejected and the tentative entry rolled back, leaving other sections
// untouched. Critical or immediate-trigger sections enqueue right away.
func (l *Loader) Register(m Metadata) error {
	if err := m.validate(); err != nil {
		return err
	}

	l.mu.Lock()
	_, existed := l.meta[m.ID]
	l.meta[m.ID] = &m
	if cycle := findCycle(m.ID, l.meta); cycle != nil {
		if !existed {
			delete(l.meta, m.ID)
		}
		l.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrCircularDependency, cycle)
	}
	if !existed {
		l.order = append(l.order, m.ID)
	}
	l.mu.Unlock()

	if m.Priority == PriorityCritical || m.PreloadTrigger == TriggerImmediate {
		l.enqueue(m.ID, scoreFor(m)+1000)
	}
	return nil
}

// Unregister forgets a section. An in-flight load for it settles harmlessly:
// the result is discarded and the mount undone.
func (l *Loader) Unregister(id string) {
	l.mu.Lock()
	_, existed := l.meta[id]
	if !existed {
		l.mu.Unlock()
		return
	}
	wasLoaded := l.dropLoadedLocked(id)
	delete(l.meta, id)
	delete(l.failed, id)
	delete(l.lastUse, id)
	for i, v := range l.order {
		if v == id {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
	l.removeQueuedLocked(id)
	if l.current == id {
		l.current = ""
	}
	l.mu.Unlock()

	if wasLoaded {
		l.iso.Unmount(id)
	}
}

// Load fetches and mounts a section. Already-loaded sections return a cached
// result immediately unless Force is set. Concurrent calls for the same id
// share a single underlying load; the shared flight is detached from any one
// caller's cancellation.
func (l *Loader) Load(ctx context.Context, id string, opts LoadOptions) (Result, error) {
	l.mu.Lock()
	m, ok := l.meta[id]
	if !ok {
		l.mu.Unlock()
		return Result{}, fmt.Errorf("%w: %q", ErrNotRegistered, id)
	}
	if _, isLoaded := l.loaded[id]; isLoaded && !opts.Force {
		l.touchLocked(id)
		if !opts.Preload {
			l.current = id
		}
		size := m.EstimatedSizeKB
		l.mu.Unlock()
		return Result{ID: id, FromCache: true, SizeKB: size}, nil
	}
	l.mu.Unlock()

	flight := context.WithoutCancel(ctx)
	v, err, _ := l.group.Do(id, func() (interface{}, error) {
		return l.doLoad(flight, id, opts)
	})
	if err != nil {
		return Result{}, err
	}
	res := v.(Result)

	if !opts.Preload {
		l.mu.Lock()
		if _, still := l.meta[id]; still {
			l.current = id
		}
		l.mu.Unlock()
	}
	return res, nil
}

// Unload removes a section from the loaded and cached sets and unmounts it.
// Safe on unregistered or already-unloaded ids.
func (l *Loader) Unload(id string) {
	l.mu.Lock()
	wasLoaded := l.dropLoadedLocked(id)
	delete(l.failed, id)
	if l.current == id {
		l.current = ""
	}
	l.mu.Unlock()

	if wasLoaded {
		l.iso.Unmount(id)
	}
}

func (l *Loader) doLoad(ctx context.Context, id string, opts LoadOptions) (Result, error) {
	l.mu.Lock()
	m, ok := l.meta[id]
	if !ok {
		l.mu.Unlock()
		return Result{}, fmt.Errorf("%w: %q", ErrNotRegistered, id)
	}
	meta := *m
	forceDropped := false
	if opts.Force {
		forceDropped = l.dropLoadedLocked(id)
	}
	delete(l.failed, id)
	if opts.Preload {
		l.preloading[id] = struct{}{}
	} else {
		l.loading[id] = struct{}{}
	}
	l.mu.Unlock()

	// A forced reload replaces the mounted instance, so the old one is
	// unmounted first.
	if forceDropped {
		l.iso.Unmount(id)
	}

	defer func() {
		l.mu.Lock()
		delete(l.loading, id)
		delete(l.preloading, id)
		l.mu.Unlock()
	}()

	l.publish(events.Event{Kind: events.LoadStarted, SectionID: id, SizeKB: meta.EstimatedSizeKB})

	if err := l.ensureBudget(meta); err != nil {
		return Result{}, err
	}

	// Dependencies load first, each as a preload. The graph is acyclic by
	// registration, so recursion terminates.
	for _, dep := range meta.Dependencies {
		if _, err := l.Load(ctx, dep, LoadOptions{Preload: true}); err != nil {
			err = fmt.Errorf("dependency %q of %q: %w", dep, id, err)
			l.markFailed(id, err)
			return Result{}, err
		}
	}

	if err := l.sem.Acquire(ctx, 1); err != nil {
		return Result{}, err
	}
	mountErr := l.iso.Mount(ctx, id)
	l.sem.Release(1)

	l.mu.Lock()
	if _, still := l.meta[id]; !still {
		l.mu.Unlock()
		// Unregistered mid-flight: discard the result without erroring
		// into the (gone) consumer.
		if mountErr == nil {
			l.iso.Unmount(id)
		}
		return Result{ID: id}, nil
	}
	if mountErr != nil {
		l.failed[id] = struct{}{}
		l.mu.Unlock()
		err := fmt.Errorf("load %q: %w", id, mountErr)
		l.publish(events.Event{Kind: events.LoadFailed, SectionID: id, Err: mountErr})
		return Result{}, err
	}
	l.loaded[id] = struct{}{}
	if meta.CacheStrategy != CacheNone {
		l.cached[id] = struct{}{}
	}
	l.usedKB[meta.Priority] += meta.EstimatedSizeKB
	l.touchLocked(id)
	l.mu.Unlock()

	l.publish(events.Event{Kind: events.LoadFinished, SectionID: id, SizeKB: meta.EstimatedSizeKB})
	l.schedulePreloads(id)
	return Result{ID: id, SizeKB: meta.EstimatedSizeKB}, nil
}

func (l *Loader) markFailed(id string, err error) {
	l.mu.Lock()
	if _, still := l.meta[id]; still {
		l.failed[id] = struct{}{}
	}
	l.mu.Unlock()
	l.publish(events.Event{Kind: events.LoadFailed, SectionID: id, Err: err})
}

// ensureBudget evicts least-recently-used loaded sections from the same
// priority bucket until meta fits. Eviction never crosses buckets: freeing
// below-fold space cannot help a critical load.
func (l *Loader) ensureBudget(meta Metadata) error {
	var victims []string

	l.mu.Lock()
	budget := l.budgets[meta.Priority]
	if budget <= 0 {
		l.mu.Unlock()
		return nil
	}
	if l.usedKB[meta.Priority]+meta.EstimatedSizeKB > budget {
		l.mu.Unlock()
		l.publish(events.Event{
			Kind:      events.BudgetExceeded,
			SectionID: meta.ID,
			SizeKB:    meta.EstimatedSizeKB,
			Detail:    meta.Priority.String(),
		})
		l.mu.Lock()
	}
	for l.usedKB[meta.Priority]+meta.EstimatedSizeKB > budget {
		victim := l.lruInBucketLocked(meta.Priority, meta.ID)
		if victim == "" {
			over := l.usedKB[meta.Priority] + meta.EstimatedSizeKB - budget
			l.mu.Unlock()
			return fmt.Errorf("%w: %s bucket over by %dKB loading %q",
				ErrBudgetExceeded, meta.Priority, over, meta.ID)
		}
		l.dropLoadedLocked(victim)
		victims = append(victims, victim)
	}
	l.mu.Unlock()

	for _, v := range victims {
		l.iso.Unmount(v)
	}
	return nil
}

// lruInBucketLocked picks the least-recently-used loaded section in bucket,
// never the one being loaded.
func (l *Loader) lruInBucketLocked(bucket Priority, exclude string) string {
	victim := ""
	var oldest int64
	for id := range l.loaded {
		if id == exclude {
			continue
		}
		m, ok := l.meta[id]
		if !ok || m.Priority != bucket {
			continue
		}
		use := l.lastUse[id]
		if victim == "" || use < oldest {
			victim = id
			oldest = use
		}
	}
	return victim
}

// dropLoadedLocked removes id from loaded/cached and returns whether it was
// loaded, releasing its budget share.
func (l *Loader) dropLoadedLocked(id string) bool {
	if _, ok := l.loaded[id]; !ok {
		delete(l.cached, id)
		return false
	}
	delete(l.loaded, id)
	delete(l.cached, id)
	if m, ok := l.meta[id]; ok {
		l.usedKB[m.Priority] -= m.EstimatedSizeKB
		if l.usedKB[m.Priority] < 0 {
			l.usedKB[m.Priority] = 0
		}
	}
	return true
}

func (l *Loader) touchLocked(id string) {
	l.useTick++
	l.lastUse[id] = l.useTick
}

func (l *Loader) publish(ev events.Event) {
	if l.bus != nil {
		l.bus.Publish(ev)
	}
}

// State returns a sorted snapshot of the loading sets.
func (l *Loader) State() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	snap := Snapshot{
		Loading:    sortedKeys(l.loading),
		Preloading: sortedKeys(l.preloading),
		Loaded:     sortedKeys(l.loaded),
		Failed:     sortedKeys(l.failed),
		Cached:     sortedKeys(l.cached),
		Current:    l.current,
		UsedKB:     make(map[Priority]int, len(l.usedKB)),
	}
	for p, kb := range l.usedKB {
		snap.UsedKB[p] = kb
	}
	return snap
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
