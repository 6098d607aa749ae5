package coreapi

import (
	"context"

	"github.com/browsercore/browsercore/internal/auth"
	coreContext "github.com/browsercore/browsercore/internal/context"
	"github.com/browsercore/browsercore/internal/coreerr"
	"github.com/browsercore/browsercore/internal/eventbus"
)

// CreateContextRequest is createContext's input.
type CreateContextRequest struct {
	Name   string
	Type   string
	Config map[string]any
}

// CreateContext opens a new context owned by sessionID/principal.UserID.
// Requires CONTEXT_CREATE plus session ownership.
func (a *API) CreateContext(ctx context.Context, principal auth.Context, sessionID string, req CreateContextRequest) (*coreContext.Context, error) {
	if !principal.HasPermission(auth.ContextCreate) {
		return nil, coreerr.New(coreerr.PermissionDenied, "missing CONTEXT_CREATE")
	}
	if !principal.OwnsSession(sessionID) {
		return nil, coreerr.New(coreerr.PermissionDenied, "session is not owned by this caller")
	}

	sess, err := a.sessions.Active().Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, coreerr.New(coreerr.NotFound, "session not found or expired")
	}

	c, err := a.contexts.Create(sessionID, sess.UserID, req.Name, req.Type, req.Config)
	if err != nil {
		return nil, err
	}
	a.bus.Publish(eventbus.TopicContextCreated, c.ID)
	return c, nil
}

// GetContext returns a context by id. Requires CONTEXT_READ plus ownership
// of the owning user (admin bypasses).
func (a *API) GetContext(ctx context.Context, principal auth.Context, id string) (*coreContext.Context, error) {
	if !principal.HasPermission(auth.ContextRead) {
		return nil, coreerr.New(coreerr.PermissionDenied, "missing CONTEXT_READ")
	}
	c, err := a.contexts.Get(id)
	if err != nil {
		return nil, err
	}
	if !principal.IsAdmin() && c.UserID != principal.UserID {
		return nil, coreerr.New(coreerr.PermissionDenied, "context is not owned by this user")
	}
	return c, nil
}

// UpdateContextRequest is updateContext's input; zero-valued fields are left
// unchanged by context.Store.Update.
type UpdateContextRequest struct {
	Name     string
	Metadata map[string]string
}

// UpdateContext patches a context's name/metadata. Requires CONTEXT_UPDATE
// plus ownership.
func (a *API) UpdateContext(ctx context.Context, principal auth.Context, id string, req UpdateContextRequest) (*coreContext.Context, error) {
	if !principal.HasPermission(auth.ContextUpdate) {
		return nil, coreerr.New(coreerr.PermissionDenied, "missing CONTEXT_UPDATE")
	}
	if err := a.assertContextOwner(id, principal); err != nil {
		return nil, err
	}
	return a.contexts.Update(id, req.Name, req.Metadata)
}

// DeleteContext closes the context's page (releasing its browser lease) and
// removes the context record entirely. Requires CONTEXT_DELETE plus
// ownership.
func (a *API) DeleteContext(ctx context.Context, principal auth.Context, id string) error {
	if !principal.HasPermission(auth.ContextDelete) {
		return coreerr.New(coreerr.PermissionDenied, "missing CONTEXT_DELETE")
	}
	if err := a.assertContextOwner(id, principal); err != nil {
		return err
	}

	a.pages.CloseContext(id)
	if err := a.contexts.Delete(id); err != nil {
		return err
	}
	a.bus.Publish(eventbus.TopicContextDeleted, id)
	return nil
}

// ContextFilter narrows a ListContexts result; zero-valued fields match
// every context.
type ContextFilter struct {
	Type   string
	Status coreContext.Status
}

// Page windows a ListContexts result; a zero-valued Page (Limit <= 0)
// returns every context matching filter, starting at Offset.
type Page struct {
	Offset int
	Limit  int
}

func (f ContextFilter) matches(c *coreContext.Context) bool {
	if f.Type != "" && c.Type != f.Type {
		return false
	}
	if f.Status != "" && c.Status != f.Status {
		return false
	}
	return true
}

// ListContexts lists contexts owned by sessionID, narrowed by filter and
// windowed by page. Requires CONTEXT_LIST plus session ownership.
func (a *API) ListContexts(ctx context.Context, principal auth.Context, sessionID string, filter ContextFilter, page Page) ([]*coreContext.Context, error) {
	if !principal.HasPermission(auth.ContextList) {
		return nil, coreerr.New(coreerr.PermissionDenied, "missing CONTEXT_LIST")
	}
	if !principal.OwnsSession(sessionID) {
		return nil, coreerr.New(coreerr.PermissionDenied, "session is not owned by this caller")
	}

	matched := make([]*coreContext.Context, 0)
	for _, c := range a.contexts.ListBySession(sessionID) {
		if filter.matches(c) {
			matched = append(matched, c)
		}
	}

	start := page.Offset
	if start < 0 || start > len(matched) {
		start = len(matched)
	}
	end := len(matched)
	if page.Limit > 0 && start+page.Limit < end {
		end = start + page.Limit
	}
	return matched[start:end], nil
}

func (a *API) assertContextOwner(id string, principal auth.Context) error {
	c, err := a.contexts.Get(id)
	if err != nil {
		return err
	}
	if !principal.IsAdmin() && c.UserID != principal.UserID {
		return coreerr.New(coreerr.PermissionDenied, "context is not owned by this user")
	}
	return nil
}
