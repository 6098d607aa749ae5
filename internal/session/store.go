package session

import (
	"context"
	"sync"
	"time"

	"github.com/browsercore/browsercore/internal/coreerr"
)

// Store is the pluggable backend SS runs against. Every operation takes a
// context for cancellation; implementations must abort in-flight work when
// it's cancelled rather than leaking goroutines.
type Store interface {
	Create(ctx context.Context, data Session) (string, error)
	Get(ctx context.Context, id string) (*Session, error)
	Update(ctx context.Context, id string, patch Patch) (*Session, error)
	Delete(ctx context.Context, id string) (bool, error)
	Touch(ctx context.Context, id string) (bool, error)
	ListByUser(ctx context.Context, userID string) ([]*Session, error)
	Exists(ctx context.Context, id string) (bool, error)
	Clear(ctx context.Context) error
	Close() error

	// Dump enumerates every non-expired session, used by backup and by the
	// Migrator's batch-copy.
	Dump(ctx context.Context) ([]*Session, error)
	// Restore writes a previously dumped session set back into the store,
	// preserving each record's original id, timestamps, and TTL.
	Restore(ctx context.Context, sessions []*Session) error
}

// MemoryStore is an in-process map-backed Store: the dev/test/fallback
// backend. A single mutex guards the map per the pinned concurrency
// discipline (one mutex per owning component, never held across I/O).
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session)}
}

func (m *MemoryStore) Create(_ context.Context, data Session) (string, error) {
	if data.UserID == "" {
		return "", coreerr.New(coreerr.Invalid, "userId must not be empty")
	}
	now := time.Now()
	if data.ExpiresAt.IsZero() || !data.ExpiresAt.After(now) {
		return "", coreerr.New(coreerr.Invalid, "expiresAt must be in the future")
	}

	id, err := NewID()
	if err != nil {
		return "", coreerr.Wrap(coreerr.Internal, "generate session id", err)
	}

	data.ID = id
	data.CreatedAt = now
	data.LastAccessedAt = now

	m.mu.Lock()
	m.sessions[id] = &data
	m.mu.Unlock()
	return id, nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok && s.Expired(time.Now()) {
		delete(m.sessions, id)
		ok = false
	}
	m.mu.Unlock()

	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (m *MemoryStore) Update(_ context.Context, id string, patch Patch) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok || s.Expired(time.Now()) {
		delete(m.sessions, id)
		return nil, coreerr.New(coreerr.NotFound, "session not found")
	}

	if patch.Roles != nil {
		s.Roles = *patch.Roles
	}
	if patch.Metadata != nil {
		if s.Metadata == nil {
			s.Metadata = make(map[string]string, len(patch.Metadata))
		}
		for k, v := range patch.Metadata {
			s.Metadata[k] = v
		}
	}
	if patch.ExpiresAt != nil {
		if !patch.ExpiresAt.After(s.CreatedAt) {
			return nil, coreerr.New(coreerr.Invalid, "expiresAt must be after createdAt")
		}
		s.ExpiresAt = *patch.ExpiresAt
	}

	cp := *s
	return &cp, nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	return ok, nil
}

func (m *MemoryStore) Touch(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return false, nil
	}
	now := time.Now()
	if s.Expired(now) {
		delete(m.sessions, id)
		return false, nil
	}
	s.LastAccessedAt = now
	return true, nil
}

func (m *MemoryStore) ListByUser(_ context.Context, userID string) ([]*Session, error) {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*Session
	for id, s := range m.sessions {
		if s.Expired(now) {
			delete(m.sessions, id)
			continue
		}
		if s.UserID == userID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemoryStore) Exists(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok && s.Expired(time.Now()) {
		delete(m.sessions, id)
		ok = false
	}
	m.mu.Unlock()
	return ok, nil
}

func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Close() error { return nil }

// Snapshot returns every non-expired session, used by replication and
// migration to enumerate the full data set without an index scan API.
func (m *MemoryStore) Snapshot() []*Session {
	now := time.Now()
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		if !s.Expired(now) {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out
}

// Dump implements Store.
func (m *MemoryStore) Dump(_ context.Context) ([]*Session, error) {
	return m.Snapshot(), nil
}

// Restore implements Store.
func (m *MemoryStore) Restore(_ context.Context, sessions []*Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range sessions {
		if s.Expired(time.Now()) {
			continue
		}
		cp := *s
		m.sessions[s.ID] = &cp
	}
	return nil
}

// Count returns the number of non-expired sessions (size, active, expired
// store totals feed the monitor).
func (m *MemoryStore) Count() (active, expired int) {
	now := time.Now()
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.sessions {
		if s.Expired(now) {
			expired++
		} else {
			active++
		}
	}
	return active, expired
}
