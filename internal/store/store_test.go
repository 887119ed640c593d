package store

import (
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, initial map[string]any) *Store {
	t.Helper()
	s, err := New(initial)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestGetSet(t *testing.T) {
	s := newStore(t, map[string]any{"name": "gray"})
	v, ok := s.Get("name")
	require.True(t, ok)
	require.Equal(t, "gray", v)

	require.NoError(t, s.Set("is_log", true))
	v, ok = s.Get("is_log")
	require.True(t, ok)
	require.Equal(t, true, v)

	_, ok = s.Get("missing")
	require.False(t, ok)
}

func TestUnsupportedValues(t *testing.T) {
	_, err := New(map[string]any{"bad": []int{1}})
	require.Error(t, err)

	s := newStore(t, nil)
	require.Error(t, s.Set("bad", map[string]int{}))
	require.Error(t, s.Set("int", 3))
}

func TestEventsDeliveredInOrder(t *testing.T) {
	s := newStore(t, map[string]any{"name": "gray"})

	var (
		mux sync.Mutex
		got []Event
	)
	s.Subscribe("name", func(ev Event) {
		mux.Lock()
		defer mux.Unlock()
		got = append(got, ev)
	})

	var want []Event
	prev := "gray"
	for i := range 100 {
		next := fmt.Sprintf("map-%d", i)
		require.NoError(t, s.Set("name", next))
		want = append(want, Event{Key: "name", Old: prev, New: next})
		prev = next
	}
	s.Sync()

	mux.Lock()
	defer mux.Unlock()
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("events (-want +got):\n%s", diff)
	}
	v, _ := s.Get("name")
	require.Equal(t, prev, v)
}

func TestUnchangedValueEmitsNothing(t *testing.T) {
	s := newStore(t, map[string]any{"is_log": false})
	calls := 0
	s.Subscribe("is_log", func(Event) { calls++ })

	require.NoError(t, s.Set("is_log", false))
	require.NoError(t, s.Set("is_log", true))
	require.NoError(t, s.Set("is_log", true))
	s.Sync()
	require.Equal(t, 1, calls)
}

func TestSubscriptionsAreKeyed(t *testing.T) {
	s := newStore(t, nil)
	var names, scales int
	s.Subscribe("name", func(Event) { names++ })
	s.Subscribe("is_log", func(Event) { scales++ })

	require.NoError(t, s.Set("name", "plasma"))
	require.NoError(t, s.Set("name", "magma"))
	require.NoError(t, s.Set("is_log", true))
	s.Sync()
	require.Equal(t, 2, names)
	require.Equal(t, 1, scales)
}

func TestCancelSubscription(t *testing.T) {
	s := newStore(t, nil)
	calls := 0
	cancel := s.Subscribe("name", func(Event) { calls++ })

	require.NoError(t, s.Set("name", "a"))
	s.Sync()
	cancel()
	cancel()
	require.NoError(t, s.Set("name", "b"))
	s.Sync()
	require.Equal(t, 1, calls)
}

func TestCloseDrainsQueue(t *testing.T) {
	s, err := New(nil)
	require.NoError(t, err)
	calls := 0
	s.Subscribe("name", func(Event) { calls++ })
	require.NoError(t, s.Set("name", "a"))
	require.NoError(t, s.Set("name", "b"))
	s.Close()
	s.Close()
	require.Equal(t, 2, calls)
	require.Error(t, s.Set("name", "c"))
}
