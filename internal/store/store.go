// Package store is an in-process host state store. It holds scalar
// properties and notifies subscribers of changes in the order they happened.
package store

import (
	"fmt"
	"sync"
)

// Event describes one property change.
type Event struct {
	Key string
	Old any
	New any
}

type subscriber struct {
	id int
	fn func(Event)
}

// Store is safe for concurrent use. Subscribers are called from a single
// dispatcher goroutine, one event at a time.
type Store struct {
	mux    sync.Mutex
	cond   *sync.Cond
	values map[string]any
	subs   map[string][]subscriber
	nextID int

	queue     []Event
	enqueued  uint64
	delivered uint64
	closed    bool
	stopped   chan struct{}
}

// New starts a store seeded with initial. Seeding emits no events.
func New(initial map[string]any) (*Store, error) {
	s := &Store{
		values:  map[string]any{},
		subs:    map[string][]subscriber{},
		stopped: make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mux)
	for k, v := range initial {
		if err := checkValue(k, v); err != nil {
			return nil, err
		}
		s.values[k] = v
	}
	go s.dispatch()
	return s, nil
}

func checkValue(key string, v any) error {
	switch v.(type) {
	case nil, bool, int64, float64, string:
		return nil
	}
	return fmt.Errorf("property %q: unsupported value type %T", key, v)
}

// Get returns the current value of key.
func (s *Store) Get(key string) (any, bool) {
	s.mux.Lock()
	defer s.mux.Unlock()
	v, ok := s.values[key]
	return v, ok
}

// Set stores v under key and queues a change event. Setting the current
// value again is not a change.
func (s *Store) Set(key string, v any) error {
	if err := checkValue(key, v); err != nil {
		return err
	}
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.closed {
		return fmt.Errorf("set %q: store is closed", key)
	}
	old, ok := s.values[key]
	if ok && old == v {
		return nil
	}
	s.values[key] = v
	s.queue = append(s.queue, Event{Key: key, Old: old, New: v})
	s.enqueued++
	s.cond.Broadcast()
	return nil
}

// Subscribe calls fn for every later change of key. The returned function
// removes the subscription.
func (s *Store) Subscribe(key string, fn func(Event)) (cancel func()) {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.nextID++
	id := s.nextID
	s.subs[key] = append(s.subs[key], subscriber{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mux.Lock()
			defer s.mux.Unlock()
			subs := s.subs[key]
			for i, sub := range subs {
				if sub.id == id {
					s.subs[key] = append(subs[:i:i], subs[i+1:]...)
					break
				}
			}
		})
	}
}

// Sync blocks until every change queued before the call has been delivered.
func (s *Store) Sync() {
	s.mux.Lock()
	defer s.mux.Unlock()
	target := s.enqueued
	for s.delivered < target && !s.closed {
		s.cond.Wait()
	}
}

// Values returns a copy of every property.
func (s *Store) Values() map[string]any {
	s.mux.Lock()
	defer s.mux.Unlock()
	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Close delivers what is already queued and stops the dispatcher.
func (s *Store) Close() {
	s.mux.Lock()
	if s.closed {
		s.mux.Unlock()
		<-s.stopped
		return
	}
	s.closed = true
	s.cond.Broadcast()
	s.mux.Unlock()
	<-s.stopped
}

func (s *Store) dispatch() {
	defer close(s.stopped)
	s.mux.Lock()
	for {
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if len(s.queue) == 0 {
			s.mux.Unlock()
			return
		}
		ev := s.queue[0]
		s.queue = s.queue[1:]
		subs := append([]subscriber(nil), s.subs[ev.Key]...)
		s.mux.Unlock()

		for _, sub := range subs {
			sub.fn(ev)
		}

		s.mux.Lock()
		s.delivered++
		s.cond.Broadcast()
	}
}
