package lockout

import (
	"context"
	"sync"
	"time"
)

// InMemoryStore keeps lockout state in process memory.
type InMemoryStore struct {
	mu     sync.Mutex
	states map[string]*State
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{states: make(map[string]*State)}
}

func (s *InMemoryStore) Get(_ context.Context, key string) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[key]
	if !ok {
		return nil, nil
	}
	cp := *st
	return &cp, nil
}

func (s *InMemoryStore) RecordFailure(_ context.Context, key string, now time.Time, window time.Duration) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[key]
	expired := ok && !st.IsLockedAt(now) && (st.LockedUntil != nil || now.Sub(st.WindowStart) >= window)
	if !ok || expired {
		st = &State{Key: key, WindowStart: now}
		s.states[key] = st
	}
	st.FailureCount++
	cp := *st
	return &cp, nil
}

func (s *InMemoryStore) Lock(_ context.Context, key string, now, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[key]
	if !ok {
		st = &State{Key: key, WindowStart: now}
		s.states[key] = st
	}
	st.LockedUntil = &until
	return nil
}

func (s *InMemoryStore) Clear(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, key)
	return nil
}
