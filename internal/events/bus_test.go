package events

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPublishFanOut(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	a := make(chan Event, 4)
	b := make(chan Event, 4)
	require.NoError(t, bus.Subscribe("a", a))
	require.NoError(t, bus.Subscribe("b", b))

	bus.Publish(Event{Kind: SectionEntered, SectionID: "hero"})

	require.Len(t, a, 1)
	require.Len(t, b, 1)

	got := <-a
	require.Equal(t, SectionEntered, got.Kind)
	require.Equal(t, "hero", got.SectionID)
	require.False(t, got.Timestamp.IsZero())
}

func TestPublishDropsWhenFull(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ch := make(chan Event, 1)
	require.NoError(t, bus.Subscribe("slow", ch))

	bus.Publish(Event{Kind: LoadStarted, SectionID: "one"})
	bus.Publish(Event{Kind: LoadStarted, SectionID: "two"})

	stats := bus.Stats()
	require.Equal(t, uint64(2), stats.TotalPublished)
	require.Equal(t, uint64(1), stats.Subscribers["slow"].Sent)
	require.Equal(t, uint64(1), stats.Subscribers["slow"].Dropped)
}

func TestDuplicateSubscriber(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ch := make(chan Event, 1)
	require.NoError(t, bus.Subscribe("x", ch))
	require.ErrorIs(t, bus.Subscribe("x", ch), ErrSubscriberExists)
}

func TestClosedBusIsInert(t *testing.T) {
	bus := NewBus()

	ch := make(chan Event, 1)
	require.NoError(t, bus.Subscribe("x", ch))
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close()) // idempotent

	bus.Publish(Event{Kind: LoadFailed})
	require.Len(t, ch, 0)

	require.ErrorIs(t, bus.Subscribe("y", ch), ErrBusClosed)
	require.ErrorIs(t, bus.Unsubscribe("x"), ErrBusClosed)
}
