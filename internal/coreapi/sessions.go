package coreapi

import (
	"context"
	"time"

	"github.com/browsercore/browsercore/internal/auth"
	"github.com/browsercore/browsercore/internal/coreerr"
	"github.com/browsercore/browsercore/internal/eventbus"
	"github.com/browsercore/browsercore/internal/session"
)

// CreateSessionRequest is createSession's input: everything SS.Create needs
// plus a caller-supplied TTL (converted to an absolute ExpiresAt here, since
// the store only ever deals in absolute timestamps).
type CreateSessionRequest struct {
	UserID   string
	Username string
	Roles    []string
	TTL      time.Duration
	Metadata map[string]string
}

// CreateSession inserts a new session and returns its id. Requires
// SESSION_CREATE; principal.UserID need not match req.UserID (admin-provision
// flows create sessions on behalf of other users), but non-admins may only
// create a session for themselves.
func (a *API) CreateSession(ctx context.Context, principal auth.Context, req CreateSessionRequest) (string, error) {
	if !principal.HasPermission(auth.SessionCreate) {
		return "", coreerr.New(coreerr.PermissionDenied, "missing SESSION_CREATE")
	}
	if !principal.IsAdmin() && req.UserID != principal.UserID {
		return "", coreerr.New(coreerr.PermissionDenied, "cannot create a session for another user")
	}

	ttl := req.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	id, err := a.sessions.Active().Create(ctx, session.Session{
		UserID:    req.UserID,
		Username:  req.Username,
		Roles:     req.Roles,
		ExpiresAt: time.Now().Add(ttl),
		Metadata:  req.Metadata,
	})
	if err != nil {
		return "", err
	}
	a.bus.Publish(eventbus.TopicSessionCreated, id)
	return id, nil
}

// GetSession returns the session by id, or nil if absent/expired. Requires
// SESSION_READ plus ownership (admin, or the caller's own session).
func (a *API) GetSession(ctx context.Context, principal auth.Context, id string) (*session.Session, error) {
	if !principal.HasPermission(auth.SessionRead) {
		return nil, coreerr.New(coreerr.PermissionDenied, "missing SESSION_READ")
	}
	if !principal.OwnsSession(id) {
		return nil, coreerr.New(coreerr.PermissionDenied, "session is not owned by this caller")
	}
	return a.sessions.Active().Get(ctx, id)
}

// TouchSession renews a session's lastAccessedAt without extending its TTL.
// Requires SESSION_READ plus ownership, matching the touch-on-each-
// authenticated-request lifecycle rule.
func (a *API) TouchSession(ctx context.Context, principal auth.Context, id string) (bool, error) {
	if !principal.HasPermission(auth.SessionRead) {
		return false, coreerr.New(coreerr.PermissionDenied, "missing SESSION_READ")
	}
	if !principal.OwnsSession(id) {
		return false, coreerr.New(coreerr.PermissionDenied, "session is not owned by this caller")
	}
	return a.sessions.Active().Touch(ctx, id)
}

// RefreshSession extends a session's TTL by ttl from now. Requires
// SESSION_REFRESH, the explicit-refresh-path spec.md's SS lifecycle names as
// the only way ExpiresAt moves forward.
func (a *API) RefreshSession(ctx context.Context, principal auth.Context, id string, ttl time.Duration) (*session.Session, error) {
	if !principal.HasPermission(auth.SessionRefresh) {
		return nil, coreerr.New(coreerr.PermissionDenied, "missing SESSION_REFRESH")
	}
	if !principal.OwnsSession(id) {
		return nil, coreerr.New(coreerr.PermissionDenied, "session is not owned by this caller")
	}
	if ttl <= 0 {
		return nil, coreerr.New(coreerr.Invalid, "ttl must be positive")
	}
	expiresAt := time.Now().Add(ttl)
	return a.sessions.Active().Update(ctx, id, session.Patch{ExpiresAt: &expiresAt})
}

// DeleteSession removes a session and destroys every context it owns, per
// the context lifecycle rule that a context is destroyed on explicit delete
// or on owning session termination. Requires SESSION_DELETE plus ownership.
func (a *API) DeleteSession(ctx context.Context, principal auth.Context, id string) (bool, error) {
	if !principal.HasPermission(auth.SessionDelete) {
		return false, coreerr.New(coreerr.PermissionDenied, "missing SESSION_DELETE")
	}
	if !principal.OwnsSession(id) {
		return false, coreerr.New(coreerr.PermissionDenied, "session is not owned by this caller")
	}

	for _, c := range a.contexts.ListBySession(id) {
		a.pages.CloseContext(c.ID)
	}
	a.contexts.DeleteBySession(id)

	ok, err := a.sessions.Active().Delete(ctx, id)
	if err != nil {
		return false, err
	}
	if ok {
		a.bus.Publish(eventbus.TopicSessionDeleted, id)
	}
	return ok, nil
}

// ListSessionsByUser lists every non-expired session owned by userID.
// Requires SESSION_LIST; non-admins may only list their own sessions.
func (a *API) ListSessionsByUser(ctx context.Context, principal auth.Context, userID string) ([]*session.Session, error) {
	if !principal.HasPermission(auth.SessionList) {
		return nil, coreerr.New(coreerr.PermissionDenied, "missing SESSION_LIST")
	}
	if !principal.IsAdmin() && userID != principal.UserID {
		return nil, coreerr.New(coreerr.PermissionDenied, "cannot list another user's sessions")
	}
	return a.sessions.Active().ListByUser(ctx, userID)
}
