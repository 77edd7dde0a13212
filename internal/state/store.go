package state

import (
	"context"
	"sync"
	"time"
)

// Store persists AppState per session. Update applies fn atomically: no other
// Update on the same id interleaves between the read and the write.
type Store interface {
	Load(ctx context.Context, id string) (*AppState, error)
	Save(ctx context.Context, s *AppState) error
	Update(ctx context.Context, id string, fn func(*AppState) error) (*AppState, error)
}

// MemoryStore keeps sessions in process memory. Entries idle for longer than
// the TTL are dropped on access and by Sweep.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]*AppState
	now     func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:     ttl,
		entries: make(map[string]*AppState),
		now:     time.Now,
	}
}

func (m *MemoryStore) Load(_ context.Context, id string) (*AppState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.get(id)
	if !ok {
		return nil, ErrStateNotFound
	}
	return s.clone(), nil
}

func (m *MemoryStore) Save(_ context.Context, s *AppState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[s.ID] = s.clone()
	return nil
}

func (m *MemoryStore) Update(_ context.Context, id string, fn func(*AppState) error) (*AppState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.get(id)
	if !ok {
		return nil, ErrStateNotFound
	}
	next := cur.clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	m.entries[id] = next
	return next.clone(), nil
}

// Sweep removes expired sessions and returns how many were dropped.
func (m *MemoryStore) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for id, s := range m.entries {
		if m.expired(s) {
			delete(m.entries, id)
			n++
		}
	}
	return n
}

// RunSweeper calls Sweep every interval until ctx is done.
func (m *MemoryStore) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// must hold m.mu
func (m *MemoryStore) get(id string) (*AppState, bool) {
	s, ok := m.entries[id]
	if !ok {
		return nil, false
	}
	if m.expired(s) {
		delete(m.entries, id)
		return nil, false
	}
	return s, true
}

func (m *MemoryStore) expired(s *AppState) bool {
	return m.ttl > 0 && m.now().Sub(s.UpdatedAt) > m.ttl
}

// clone copies the state deeply enough that callers cannot mutate stored
// entries. The analysis result is treated as immutable once resolved.
func (s *AppState) clone() *AppState {
	c := *s
	if s.Expanded != nil {
		i := *s.Expanded
		c.Expanded = &i
	}
	if s.Sources != nil {
		c.Sources = append(c.Sources[:0:0], s.Sources...)
	}
	return &c
}
