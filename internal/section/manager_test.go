package section

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surfsidere/kova-scroll/internal/scroll"
)

type recorder struct {
	events   []string
	progress []float64
}

func (rec *recorder) callbacks() Callbacks {
	return Callbacks{
		OnEnter:    func() { rec.events = append(rec.events, "enter") },
		OnLeave:    func() { rec.events = append(rec.events, "leave") },
		OnProgress: func(v float64) { rec.progress = append(rec.progress, v); rec.events = append(rec.events, "progress") },
	}
}

func feed(m *Manager, progresses ...float64) {
	for _, p := range progresses {
		m.OnScroll(scroll.State{Progress: p})
	}
}

func TestEnterProgressLeaveScenario(t *testing.T) {
	rec := &recorder{}
	r := NewRegistry()
	_, err := r.Register(Config{ID: "s", TriggerStart: 0.2, TriggerEnd: 0.8, Callbacks: rec.callbacks()})
	require.NoError(t, err)

	m := NewManager(r, "s")
	feed(m, 0, 0.1, 0.5, 0.9, 1.0)

	enters, leaves := 0, 0
	for _, e := range rec.events {
		switch e {
		case "enter":
			enters++
		case "leave":
			leaves++
		}
	}
	assert.Equal(t, 1, enters, "exactly one enter")
	assert.Equal(t, 1, leaves, "exactly one leave")

	// Ordering: enter before first progress, leave after last progress.
	assert.Equal(t, "enter", rec.events[0])
	assert.Equal(t, "leave", rec.events[len(rec.events)-1])

	require.Len(t, rec.progress, 2)
	assert.InDelta(t, 0.5, rec.progress[0], 1e-9)
	assert.InDelta(t, 1.0, rec.progress[1], 1e-9, "boundary value emitted before leave")
}

func TestLocalProgressMonotone(t *testing.T) {
	start, end := 0.3, 0.7
	prev := -1.0
	for gp := 0.0; gp <= 1.0; gp += 0.01 {
		v := LocalProgress(gp, start, end)
		if v < prev {
			t.Fatalf("local progress decreased at gp=%f: %f < %f", gp, v, prev)
		}
		if v < 0 || v > 1 || math.IsNaN(v) {
			t.Fatalf("local progress out of range at gp=%f: %f", gp, v)
		}
		prev = v
	}
}

func TestZeroWidthTriggerIsStep(t *testing.T) {
	if got := LocalProgress(0.49, 0.5, 0.5); got != 0 {
		t.Errorf("below trigger point: expected 0, got %f", got)
	}
	if got := LocalProgress(0.5, 0.5, 0.5); got != 1 {
		t.Errorf("at trigger point: expected 1, got %f", got)
	}
	if got := LocalProgress(0.51, 0.5, 0.5); got != 1 {
		t.Errorf("after trigger point: expected 1, got %f", got)
	}
	if math.IsNaN(LocalProgress(0.5, 0.5, 0.5)) {
		t.Fatal("zero-width trigger produced NaN")
	}
}

func TestSyntheticPassThroughOnJumpDown(t *testing.T) {
	rec := &recorder{}
	r := NewRegistry()
	_, err := r.Register(Config{ID: "s", TriggerStart: 0.4, TriggerEnd: 0.6, Callbacks: rec.callbacks()})
	require.NoError(t, err)

	m := NewManager(r, "s")
	m.OnScroll(scroll.State{Progress: 0.1})
	entered, left := m.OnScroll(scroll.State{Progress: 0.9, Direction: scroll.Down})

	assert.True(t, entered)
	assert.True(t, left)
	assert.Equal(t, []string{"enter", "progress", "leave"}, rec.events)
	require.Len(t, rec.progress, 1)
	assert.Equal(t, 1.0, rec.progress[0], "downward jump lands on 1")
	assert.False(t, m.IsInside())
}

func TestSyntheticPassThroughOnJumpUp(t *testing.T) {
	rec := &recorder{}
	r := NewRegistry()
	_, err := r.Register(Config{ID: "s", TriggerStart: 0.4, TriggerEnd: 0.6, Callbacks: rec.callbacks()})
	require.NoError(t, err)

	m := NewManager(r, "s")
	m.OnScroll(scroll.State{Progress: 0.9})
	m.OnScroll(scroll.State{Progress: 0.1, Direction: scroll.Up})

	assert.Equal(t, []string{"enter", "progress", "leave"}, rec.events)
	require.Len(t, rec.progress, 1)
	assert.Equal(t, 0.0, rec.progress[0], "upward jump lands on 0")
}

func TestBoundaryTicksCountAsInside(t *testing.T) {
	rec := &recorder{}
	r := NewRegistry()
	_, err := r.Register(Config{ID: "s", TriggerStart: 0.2, TriggerEnd: 0.8, Callbacks: rec.callbacks()})
	require.NoError(t, err)

	m := NewManager(r, "s")
	feed(m, 0.2, 0.8)

	assert.Equal(t, []string{"enter", "progress", "progress"}, rec.events)
	assert.Equal(t, []float64{0, 1}, rec.progress)
	assert.True(t, m.IsInside())
}

func TestOverlappingSectionsBothActive(t *testing.T) {
	r := NewRegistry()
	_, err := r.Register(Config{ID: "a", TriggerStart: 0.0, TriggerEnd: 0.6})
	require.NoError(t, err)
	_, err = r.Register(Config{ID: "b", TriggerStart: 0.4, TriggerEnd: 1.0})
	require.NoError(t, err)

	ma := NewManager(r, "a")
	mb := NewManager(r, "b")
	st := scroll.State{Progress: 0.5}
	ma.OnScroll(st)
	mb.OnScroll(st)

	sa, _ := r.Get("a")
	sb, _ := r.Get("b")
	assert.True(t, sa.Active)
	assert.True(t, sb.Active, "overlapping trigger ranges may be simultaneously active")
}
