package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotFound is returned when a session id is unknown or expired.
var ErrNotFound = errors.New("session not found")

// Store persists sessions for the duration of a consult. Sessions are
// ephemeral working state; the durable record is what Apply writes to the
// EMR.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Put(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
}

// MemoryStore keeps sessions in process memory with a TTL. Suitable for a
// single-instance deployment; use the Redis store when running more than one
// replica.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]memoryEntry
	ttl      time.Duration
	done     chan struct{}
	closeOne sync.Once
}

type memoryEntry struct {
	session *Session
	expires time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	st := &MemoryStore{
		sessions: map[string]memoryEntry{},
		ttl:      ttl,
		done:     make(chan struct{}),
	}
	go st.sweep()
	return st
}

func (st *MemoryStore) sweep() {
	interval := st.ttl / 4
	if interval > time.Minute {
		interval = time.Minute
	}
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-st.done:
			return
		case now := <-ticker.C:
			st.mu.Lock()
			for id, entry := range st.sessions {
				if now.After(entry.expires) {
					delete(st.sessions, id)
				}
			}
			st.mu.Unlock()
		}
	}
}

func (st *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	st.mu.RLock()
	entry, ok := st.sessions[id]
	st.mu.RUnlock()
	if !ok || time.Now().After(entry.expires) {
		return nil, ErrNotFound
	}
	// Hand out a copy so callers can't race each other through shared
	// pointers; Put is the only way changes become visible.
	copied := *entry.session
	copied.Actions = append([]Action(nil), entry.session.Actions...)
	return &copied, nil
}

func (st *MemoryStore) Put(_ context.Context, s *Session) error {
	copied := *s
	copied.Actions = append([]Action(nil), s.Actions...)
	st.mu.Lock()
	st.sessions[s.ID] = memoryEntry{session: &copied, expires: time.Now().Add(st.ttl)}
	st.mu.Unlock()
	return nil
}

func (st *MemoryStore) Delete(_ context.Context, id string) error {
	st.mu.Lock()
	delete(st.sessions, id)
	st.mu.Unlock()
	return nil
}

// Close stops the sweeper.
func (st *MemoryStore) Close() {
	st.closeOne.Do(func() { close(st.done) })
}
