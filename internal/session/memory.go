package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps sessions in process memory. It backs tests and
// single-process runs where Postgres is not configured; state does not
// survive a restart.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	locks    map[string]*sync.Mutex
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
		locks:    make(map[string]*sync.Mutex),
	}
}

// keyLock returns the mutex serializing work for one pull request,
// creating it on first use.
func (m *MemoryStore) keyLock(pullRequestID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[pullRequestID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[pullRequestID] = l
	}
	return l
}

func (m *MemoryStore) load(pullRequestID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[pullRequestID]; ok {
		return s.clone()
	}
	return NewSession(pullRequestID)
}

func (m *MemoryStore) store(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.PullRequestID] = s.clone()
}

// Get returns the session for a pull request, creating an empty one if
// absent. Repeated calls without writes are idempotent.
func (m *MemoryStore) Get(_ context.Context, pullRequestID string) (*Session, error) {
	return m.load(pullRequestID), nil
}

// Save replaces the stored session atomically.
func (m *MemoryStore) Save(_ context.Context, s *Session) error {
	s.UpdatedAt = time.Now()
	m.store(s)
	return nil
}

// AppendHistory adds an entry to the session's history. Prior entries
// are never reordered or dropped.
func (m *MemoryStore) AppendHistory(ctx context.Context, pullRequestID string, entry HistoryEntry) error {
	return m.Mutate(ctx, pullRequestID, func(s *Session) error {
		s.History = append(s.History, entry)
		return nil
	})
}

// Mutate runs fn under the pull request's lock and persists the result
// when fn succeeds.
func (m *MemoryStore) Mutate(_ context.Context, pullRequestID string, fn func(*Session) error) error {
	l := m.keyLock(pullRequestID)
	l.Lock()
	defer l.Unlock()

	s := m.load(pullRequestID)
	if err := fn(s); err != nil {
		return err
	}
	s.UpdatedAt = time.Now()
	m.store(s)
	return nil
}

func (s *Session) clone() *Session {
	out := *s
	if s.PendingChange != nil {
		pc := *s.PendingChange
		out.PendingChange = &pc
	}
	out.History = make([]HistoryEntry, len(s.History))
	copy(out.History, s.History)
	return &out
}
