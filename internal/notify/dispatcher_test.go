package notify

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Send(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return s.err
}

func (s *recordingSink) received() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

func TestDispatcher_DeliversToAllSinks(t *testing.T) {
	failing := &recordingSink{err: errors.New("unreachable")}
	ok := &recordingSink{}
	d := NewDispatcher(nil, 8, failing, ok)
	d.Start()

	d.Notify(Event{Type: TypeIngested, SimulationID: "s1"})
	d.Notify(Event{Type: TypeQuarantined, SimulationID: "s2", Detail: "empty result"})
	d.Close()

	got := ok.received()
	require.Len(t, got, 2)
	require.Len(t, failing.received(), 2)
	require.Equal(t, TypeIngested, got[0].Type)
	require.NotEmpty(t, got[0].EventID)
	require.False(t, got[0].Timestamp.IsZero())
	require.Equal(t, "empty result", got[1].Detail)
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(nil, 1, sink)

	// Not started: the first event fills the buffer, the second is dropped.
	d.Notify(Event{Type: TypeIngested, SimulationID: "s1"})
	d.Notify(Event{Type: TypeIngested, SimulationID: "s2"})
	d.Start()
	d.Close()

	got := sink.received()
	require.Len(t, got, 1)
	require.Equal(t, "s1", got[0].SimulationID)
}

func TestDispatcher_NotifyAfterClose(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(nil, 1, sink)
	d.Start()
	d.Close()

	require.NotPanics(t, func() {
		d.Notify(Event{Type: TypeFailed, SimulationID: "s1"})
	})
	require.Empty(t, sink.received())
}
