package loader

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surfsidere/kova-scroll/internal/events"
)

// fakeIsolator records mounts and unmounts and can fail or stall on demand.
type fakeIsolator struct {
	mu       sync.Mutex
	mounts   map[string]int
	unmounts map[string]int
	sequence []string
	failIDs  map[string]error
	delay    time.Duration
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func newFakeIsolator() *fakeIsolator {
	return &fakeIsolator{
		mounts:   make(map[string]int),
		unmounts: make(map[string]int),
		failIDs:  make(map[string]error),
	}
}

func (f *fakeIsolator) Mount(ctx context.Context, id string) error {
	cur := f.inFlight.Add(1)
	for {
		seen := f.maxSeen.Load()
		if cur <= seen || f.maxSeen.CompareAndSwap(seen, cur) {
			break
		}
	}
	defer f.inFlight.Add(-1)

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failIDs[id]; ok {
		return err
	}
	f.mounts[id]++
	f.sequence = append(f.sequence, id)
	return nil
}

func (f *fakeIsolator) Unmount(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unmounts[id]++
}

func (f *fakeIsolator) mountCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mounts[id]
}

func (f *fakeIsolator) unmountCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unmounts[id]
}

func meta(id string, p Priority, sizeKB int, deps ...string) Metadata {
	return Metadata{
		ID:              id,
		Name:            id,
		Route:           "/" + id,
		Priority:        p,
		Dependencies:    deps,
		EstimatedSizeKB: sizeKB,
	}
}

func TestRegisterValidation(t *testing.T) {
	l := New(newFakeIsolator())

	err := l.Register(Metadata{ID: "x", Name: "x"})
	require.ErrorIs(t, err, ErrMissingField)

	err = l.Register(Metadata{Name: "x", Route: "/x"})
	require.ErrorIs(t, err, ErrMissingField)

	require.NoError(t, l.Register(meta("ok", PriorityLazy, 10)))
}

func TestCircularDependencyRejected(t *testing.T) {
	l := New(newFakeIsolator())

	require.NoError(t, l.Register(meta("a", PriorityLazy, 10, "b")))
	require.NoError(t, l.Register(meta("b", PriorityLazy, 10, "c")))

	err := l.Register(meta("c", PriorityLazy, 10, "a"))
	require.ErrorIs(t, err, ErrCircularDependency)

	// "b" still declares the rolled-back "c": its whole subgraph stays
	// unloadable until "c" registers cleanly.
	_, err = l.Load(context.Background(), "b", LoadOptions{})
	require.ErrorIs(t, err, ErrNotRegistered)

	// The failed registration must not corrupt sections outside the
	// affected subgraph.
	require.NoError(t, l.Register(meta("standalone", PriorityLazy, 10)))
	_, err = l.Load(context.Background(), "standalone", LoadOptions{})
	require.NoError(t, err)
}

func TestSelfDependencyRejected(t *testing.T) {
	l := New(newFakeIsolator())
	err := l.Register(meta("a", PriorityLazy, 10, "a"))
	require.ErrorIs(t, err, ErrCircularDependency)
}

func TestLoadIdempotentFastPath(t *testing.T) {
	iso := newFakeIsolator()
	l := New(iso)
	require.NoError(t, l.Register(meta("a", PriorityLazy, 10)))

	first, err := l.Load(context.Background(), "a", LoadOptions{})
	require.NoError(t, err)
	assert.False(t, first.FromCache)

	second, err := l.Load(context.Background(), "a", LoadOptions{})
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, 1, iso.mountCount("a"))
}

func TestForceReloadReplacesMountedInstance(t *testing.T) {
	iso := newFakeIsolator()
	l := New(iso)
	require.NoError(t, l.Register(meta("a", PriorityLazy, 50)))

	_, err := l.Load(context.Background(), "a", LoadOptions{})
	require.NoError(t, err)

	res, err := l.Load(context.Background(), "a", LoadOptions{Force: true})
	require.NoError(t, err)
	assert.False(t, res.FromCache)

	assert.Equal(t, 2, iso.mountCount("a"))
	assert.Equal(t, 1, iso.unmountCount("a"), "the old instance is unmounted before remounting")

	snap := l.State()
	assert.Equal(t, []string{"a"}, snap.Loaded)
	assert.Equal(t, 50, snap.UsedKB[PriorityLazy], "budget share is not double counted")
}

func TestAtMostOneInFlightPerID(t *testing.T) {
	iso := newFakeIsolator()
	iso.delay = 30 * time.Millisecond
	l := New(iso)
	require.NoError(t, l.Register(meta("a", PriorityLazy, 10)))

	var wg sync.WaitGroup
	results := make([]Result, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = l.Load(context.Background(), "a", LoadOptions{})
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, results[0].ID, results[1].ID)
	assert.Equal(t, 1, iso.mountCount("a"), "concurrent loads must share one flight")
}

func TestDependenciesLoadFirst(t *testing.T) {
	iso := newFakeIsolator()
	l := New(iso)
	require.NoError(t, l.Register(meta("base", PriorityLazy, 10)))
	require.NoError(t, l.Register(meta("widgets", PriorityLazy, 10, "base")))
	require.NoError(t, l.Register(meta("page", PriorityLazy, 10, "widgets")))

	_, err := l.Load(context.Background(), "page", LoadOptions{})
	require.NoError(t, err)

	assert.Equal(t, []string{"base", "widgets", "page"}, iso.sequence)

	snap := l.State()
	assert.ElementsMatch(t, []string{"base", "widgets", "page"}, snap.Loaded)
	assert.Equal(t, "page", snap.Current, "preloaded dependencies must not become current")
}

func TestDependencyFailureAbortsSubgraph(t *testing.T) {
	iso := newFakeIsolator()
	iso.failIDs["base"] = errors.New("network down")
	l := New(iso)
	require.NoError(t, l.Register(meta("base", PriorityLazy, 10)))
	require.NoError(t, l.Register(meta("page", PriorityLazy, 10, "base")))

	_, err := l.Load(context.Background(), "page", LoadOptions{})
	require.Error(t, err)

	snap := l.State()
	assert.Contains(t, snap.Failed, "base")
	assert.Contains(t, snap.Failed, "page")
	assert.Empty(t, snap.Loaded)
}

func TestBudgetEvictionWithinBucket(t *testing.T) {
	iso := newFakeIsolator()
	bus := events.NewBus()
	defer bus.Close()
	sink := make(chan events.Event, 32)
	require.NoError(t, bus.Subscribe("test", sink))

	l := New(iso, WithBudget(PriorityCritical, 500), WithLoaderBus(bus))
	ctx := context.Background()

	require.NoError(t, l.Register(meta("one", PriorityCritical, 200)))
	require.NoError(t, l.Register(meta("two", PriorityCritical, 200)))
	require.NoError(t, l.Register(meta("three", PriorityCritical, 200)))

	_, err := l.Load(ctx, "one", LoadOptions{})
	require.NoError(t, err)
	_, err = l.Load(ctx, "two", LoadOptions{})
	require.NoError(t, err)
	_, err = l.Load(ctx, "three", LoadOptions{})
	require.NoError(t, err)

	snap := l.State()
	assert.Len(t, snap.Loaded, 2, "budget holds exactly two 200KB sections")
	assert.NotContains(t, snap.Loaded, "one", "least recently used is evicted")
	assert.Equal(t, 1, iso.unmountCount("one"))
	assert.Equal(t, 400, snap.UsedKB[PriorityCritical])

	var sawWarning bool
	for len(sink) > 0 {
		if (<-sink).Kind == events.BudgetExceeded {
			sawWarning = true
		}
	}
	assert.True(t, sawWarning, "budget pressure must be observable")
}

func TestEvictionNeverCrossesBuckets(t *testing.T) {
	iso := newFakeIsolator()
	l := New(iso,
		WithBudget(PriorityCritical, 300),
		WithBudget(PriorityBelowFold, 300),
	)
	ctx := context.Background()

	require.NoError(t, l.Register(meta("below", PriorityBelowFold, 250)))
	require.NoError(t, l.Register(meta("crit-a", PriorityCritical, 200)))
	require.NoError(t, l.Register(meta("crit-b", PriorityCritical, 200)))

	_, err := l.Load(ctx, "below", LoadOptions{})
	require.NoError(t, err)
	_, err = l.Load(ctx, "crit-a", LoadOptions{})
	require.NoError(t, err)
	_, err = l.Load(ctx, "crit-b", LoadOptions{})
	require.NoError(t, err)

	snap := l.State()
	assert.Contains(t, snap.Loaded, "below",
		"a critical eviction must not touch the below-fold bucket")
	assert.NotContains(t, snap.Loaded, "crit-a")
}

func TestBudgetExceededWhenNothingEvictable(t *testing.T) {
	l := New(newFakeIsolator(), WithBudget(PriorityCritical, 100))
	require.NoError(t, l.Register(meta("big", PriorityCritical, 400)))

	_, err := l.Load(context.Background(), "big", LoadOptions{})
	require.ErrorIs(t, err, ErrBudgetExceeded)

	// Not marked failed: a budget rejection is retryable after eviction.
	snap := l.State()
	assert.NotContains(t, snap.Failed, "big")
}

func TestLoadFailureIsRecordedNotRetried(t *testing.T) {
	iso := newFakeIsolator()
	iso.failIDs["flaky"] = errors.New("mount exploded")
	bus := events.NewBus()
	defer bus.Close()
	sink := make(chan events.Event, 8)
	require.NoError(t, bus.Subscribe("test", sink))

	l := New(iso, WithLoaderBus(bus))
	require.NoError(t, l.Register(meta("flaky", PriorityLazy, 10)))

	_, err := l.Load(context.Background(), "flaky", LoadOptions{})
	require.Error(t, err)
	assert.Contains(t, l.State().Failed, "flaky")

	var sawFailure bool
	for len(sink) > 0 {
		if (<-sink).Kind == events.LoadFailed {
			sawFailure = true
		}
	}
	assert.True(t, sawFailure)

	// Caller-initiated retry succeeds once the cause clears.
	iso.mu.Lock()
	delete(iso.failIDs, "flaky")
	iso.mu.Unlock()
	_, err = l.Load(context.Background(), "flaky", LoadOptions{})
	require.NoError(t, err)
	assert.NotContains(t, l.State().Failed, "flaky")
}

func TestUnloadIsSafeOnAnyState(t *testing.T) {
	iso := newFakeIsolator()
	l := New(iso)
	require.NoError(t, l.Register(meta("a", PriorityLazy, 10)))

	l.Unload("a")            // not loaded yet
	l.Unload("unregistered") // unknown id

	_, err := l.Load(context.Background(), "a", LoadOptions{})
	require.NoError(t, err)
	l.Unload("a")
	l.Unload("a") // already unloaded

	assert.Equal(t, 1, iso.unmountCount("a"))
	snap := l.State()
	assert.Empty(t, snap.Loaded)
	assert.Empty(t, snap.Cached)
	assert.Equal(t, "", snap.Current)
}

func TestUnregisterMidFlightDiscardsResult(t *testing.T) {
	iso := newFakeIsolator()
	iso.delay = 40 * time.Millisecond
	l := New(iso)
	require.NoError(t, l.Register(meta("gone", PriorityLazy, 10)))

	done := make(chan error, 1)
	go func() {
		_, err := l.Load(context.Background(), "gone", LoadOptions{})
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	l.Unregister("gone")

	require.NoError(t, <-done, "in-flight load must settle harmlessly")
	snap := l.State()
	assert.Empty(t, snap.Loaded)
	assert.Equal(t, 1, iso.unmountCount("gone"), "orphaned mount is undone")
}

func TestCallerCancellationDoesNotKillSharedFlight(t *testing.T) {
	iso := newFakeIsolator()
	iso.delay = 40 * time.Millisecond
	l := New(iso)
	require.NoError(t, l.Register(meta("shared", PriorityLazy, 10)))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()
	_, errA := l.Load(ctx, "shared", LoadOptions{})

	// The flight was detached from the cancelled caller, so it completed.
	require.NoError(t, errA)
	assert.Contains(t, l.State().Loaded, "shared")
}
