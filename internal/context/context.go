// Package context implements the Context Store (CS): CRUD over isolated
// browser workspaces owned by exactly one session.
package context

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/browsercore/browsercore/internal/coreerr"
)

// NewID generates a 128-bit opaque context identifier.
func NewID() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}

// Status is a Context's position in its active/closed lifecycle.
type Status string

const (
	StatusActive Status = "active"
	StatusClosed Status = "closed"
)

// Context is an isolated workspace owned by exactly one session.
type Context struct {
	ID        string            `json:"id"`
	SessionID string            `json:"sessionId"`
	UserID    string            `json:"userId"`
	Name      string            `json:"name"`
	Type      string            `json:"type"`
	Config    map[string]any    `json:"config,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Status    Status            `json:"status"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// Stats summarizes the store's current contents.
type Stats struct {
	Total  int
	Active int
	Closed int
}

// Store is a map+mutex registry of Contexts, generalized from the shape of
// a session manager to CRUD + ownership + active/closed lifecycle instead
// of session reuse.
type Store struct {
	mu       sync.RWMutex
	contexts map[string]*Context
}

// New constructs an empty Store.
func New() *Store {
	return &Store{contexts: make(map[string]*Context)}
}

// Create inserts a new Context owned by sessionID/userID and returns it.
// typ defaults to "browser" if empty.
func (s *Store) Create(sessionID, userID, name, typ string, cfg map[string]any) (*Context, error) {
	if sessionID == "" || userID == "" {
		return nil, coreerr.New(coreerr.Invalid, "sessionId and userId are required")
	}
	if typ == "" {
		typ = "browser"
	}

	id, err := NewID()
	if err != nil {
		return nil, coreerr.Wrap(coreerr.Internal, "generate context id", err)
	}

	now := time.Now()
	s.mu.Lock()
	c := &Context{
		ID:        id,
		SessionID: sessionID,
		UserID:    userID,
		Name:      name,
		Type:      typ,
		Config:    cfg,
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.contexts[id] = c
	s.mu.Unlock()

	return c, nil
}

// Get returns the Context with the given id, or NotFound.
func (s *Store) Get(id string) (*Context, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.contexts[id]
	if !ok {
		return nil, coreerr.New(coreerr.NotFound, "context not found")
	}
	return c, nil
}

// AssertOwnership returns PermissionDenied if the context isn't owned by
// userID (admins should bypass this check at the caller).
func (s *Store) AssertOwnership(id, userID string) error {
	c, err := s.Get(id)
	if err != nil {
		return err
	}
	if c.UserID != userID {
		return coreerr.New(coreerr.PermissionDenied, "context is not owned by this user")
	}
	return nil
}

// AssertOpen returns Invalid if the context is closed; actions must not be
// dispatched against a closed context.
func (s *Store) AssertOpen(id string) error {
	c, err := s.Get(id)
	if err != nil {
		return err
	}
	if c.Status == StatusClosed {
		return coreerr.New(coreerr.Invalid, "context is closed")
	}
	return nil
}

// Update patches name/metadata on an open context and bumps UpdatedAt.
func (s *Store) Update(id string, name string, metadata map[string]string) (*Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.contexts[id]
	if !ok {
		return nil, coreerr.New(coreerr.NotFound, "context not found")
	}
	if c.Status == StatusClosed {
		return nil, coreerr.New(coreerr.Invalid, "context is closed")
	}
	if name != "" {
		c.Name = name
	}
	if metadata != nil {
		c.Metadata = metadata
	}
	c.UpdatedAt = time.Now()
	return c, nil
}

// Close transitions a Context to closed. Idempotent: closing an
// already-closed context is a no-op, not an error.
func (s *Store) Close(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.contexts[id]
	if !ok {
		return coreerr.New(coreerr.NotFound, "context not found")
	}
	if c.Status == StatusClosed {
		return nil
	}
	c.Status = StatusClosed
	c.UpdatedAt = time.Now()
	return nil
}

// Delete removes a Context from the store entirely.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.contexts[id]; !ok {
		return coreerr.New(coreerr.NotFound, "context not found")
	}
	delete(s.contexts, id)
	return nil
}

// ListBySession returns every Context owned by sessionID.
func (s *Store) ListBySession(sessionID string) []*Context {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Context
	for _, c := range s.contexts {
		if c.SessionID == sessionID {
			out = append(out, c)
		}
	}
	return out
}

// CloseBySession closes every Context owned by sessionID, used when the
// owning session terminates.
func (s *Store) CloseBySession(sessionID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	now := time.Now()
	for _, c := range s.contexts {
		if c.SessionID == sessionID && c.Status == StatusActive {
			c.Status = StatusClosed
			c.UpdatedAt = now
			n++
		}
	}
	return n
}

// DeleteBySession removes every Context owned by sessionID entirely, used
// when the owning session terminates.
func (s *Store) DeleteBySession(sessionID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, c := range s.contexts {
		if c.SessionID == sessionID {
			delete(s.contexts, id)
			n++
		}
	}
	return n
}

// GetStats returns a point-in-time summary of the store's contents.
func (s *Store) GetStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{Total: len(s.contexts)}
	for _, c := range s.contexts {
		if c.Status == StatusActive {
			stats.Active++
		} else {
			stats.Closed++
		}
	}
	return stats
}
