package sessions

import (
	"context"
	"sync"
	"time"

	"burrow/internal/dict"
)

type memEntry struct {
	data    *dict.Dict
	expires time.Time
}

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	opts options

	mu       sync.Mutex
	sessions map[string]memEntry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	return &MemoryStore{
		opts:     buildOptions(opts),
		sessions: make(map[string]memEntry),
	}
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, id string) (*dict.Dict, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[id]
	if !ok {
		return nil, notFound(id)
	}
	if s.opts.expired(e.expires) {
		e.data.Destroy()
		delete(s.sessions, id)
		return nil, notFound(id)
	}
	return e.data.HardDup(), nil
}

// Save implements Store.
func (s *MemoryStore) Save(_ context.Context, id string, d *dict.Dict) error {
	cp := d.HardDup()

	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.sessions[id]; ok {
		old.data.Destroy()
	}
	s.sessions[id] = memEntry{data: cp, expires: s.opts.expiry()}
	return nil
}

// Remove implements Store.
func (s *MemoryStore) Remove(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.sessions[id]; ok {
		e.data.Destroy()
		delete(s.sessions, id)
	}
	return nil
}

// Purge implements Store.
func (s *MemoryStore) Purge(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, e := range s.sessions {
		if s.opts.expired(e.expires) {
			e.data.Destroy()
			delete(s.sessions, id)
			n++
		}
	}
	return n, nil
}

// Len reports how many sessions are held, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Close drops every session.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.sessions {
		e.data.Destroy()
		delete(s.sessions, id)
	}
	return nil
}
