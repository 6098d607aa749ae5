package coreapi

import (
	"context"
	"testing"
	"time"

	"github.com/browsercore/browsercore/internal/action"
	"github.com/browsercore/browsercore/internal/auth"
	"github.com/browsercore/browsercore/internal/browserpool"
	"github.com/browsercore/browsercore/internal/config"
)

// newTestAPI builds an API via NewForTesting, backed by
// browserpool.NewTestingPool so tests never need a real Chrome binary.
func newTestAPI(t *testing.T) *API {
	t.Helper()
	pool := browserpool.NewTestingPool(config.PoolConfig{MinBrowsers: 1, MaxBrowsers: 1}, "b1")
	a := NewForTesting(pool)
	t.Cleanup(func() { a.sessions.Close() })
	return a
}

func adminPrincipal() auth.Context {
	return auth.Context{UserID: "admin1", Roles: []string{"admin"}}
}

func TestCreateSessionRequiresPermission(t *testing.T) {
	a := newTestAPI(t)
	_, err := a.CreateSession(context.Background(), auth.Context{UserID: "u1"}, CreateSessionRequest{UserID: "u1"})
	if err == nil {
		t.Fatal("expected a permission error without SESSION_CREATE scope")
	}
}

func TestCreateSessionNonAdminCannotCreateForAnotherUser(t *testing.T) {
	a := newTestAPI(t)
	principal := auth.Context{UserID: "u1", Scopes: []string{string(auth.SessionCreate)}}
	_, err := a.CreateSession(context.Background(), principal, CreateSessionRequest{UserID: "someone-else"})
	if err == nil {
		t.Fatal("expected a permission error creating a session for another user")
	}
}

func TestCreateAndGetSessionRoundTrips(t *testing.T) {
	a := newTestAPI(t)
	admin := adminPrincipal()

	id, err := a.CreateSession(context.Background(), admin, CreateSessionRequest{UserID: "u1", TTL: time.Hour})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	owner := auth.Context{UserID: "u1", SessionID: id, Scopes: []string{string(auth.SessionRead)}}
	s, err := a.GetSession(context.Background(), owner, id)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if s == nil || s.UserID != "u1" {
		t.Fatalf("got session %+v", s)
	}
}

func TestGetSessionRejectsNonOwner(t *testing.T) {
	a := newTestAPI(t)
	admin := adminPrincipal()
	id, err := a.CreateSession(context.Background(), admin, CreateSessionRequest{UserID: "u1", TTL: time.Hour})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	stranger := auth.Context{UserID: "u2", SessionID: "other-session", Scopes: []string{string(auth.SessionRead)}}
	if _, err := a.GetSession(context.Background(), stranger, id); err == nil {
		t.Fatal("expected a permission error for a non-owning caller")
	}
}

func TestDeleteSessionDestroysOwnedContexts(t *testing.T) {
	a := newTestAPI(t)
	admin := adminPrincipal()

	id, err := a.CreateSession(context.Background(), admin, CreateSessionRequest{UserID: "u1", TTL: time.Hour})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	owner := auth.Context{UserID: "u1", SessionID: id, Scopes: []string{string(auth.ContextCreate)}}
	c, err := a.CreateContext(context.Background(), owner, id, CreateContextRequest{Name: "c1"})
	if err != nil {
		t.Fatalf("CreateContext: %v", err)
	}

	deleter := auth.Context{UserID: "u1", SessionID: id, Scopes: []string{string(auth.SessionDelete)}}
	ok, err := a.DeleteSession(context.Background(), deleter, id)
	if err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if !ok {
		t.Fatal("expected DeleteSession to report the session existed")
	}

	if _, err := a.contexts.Get(c.ID); err == nil {
		t.Fatal("expected the context to be destroyed alongside its session")
	}
}

func TestListContextsFiltersAndPaginates(t *testing.T) {
	a := newTestAPI(t)
	admin := adminPrincipal()
	id, err := a.CreateSession(context.Background(), admin, CreateSessionRequest{UserID: "u1", TTL: time.Hour})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	owner := auth.Context{UserID: "u1", SessionID: id, Scopes: []string{string(auth.ContextCreate), string(auth.ContextList)}}

	for i := 0; i < 3; i++ {
		if _, err := a.CreateContext(context.Background(), owner, id, CreateContextRequest{Name: "c", Type: "tabbed"}); err != nil {
			t.Fatalf("CreateContext: %v", err)
		}
	}
	if _, err := a.CreateContext(context.Background(), owner, id, CreateContextRequest{Name: "headless", Type: "headless"}); err != nil {
		t.Fatalf("CreateContext: %v", err)
	}

	all, err := a.ListContexts(context.Background(), owner, id, ContextFilter{}, Page{})
	if err != nil {
		t.Fatalf("ListContexts: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("len(all) = %d, want 4", len(all))
	}

	tabbed, err := a.ListContexts(context.Background(), owner, id, ContextFilter{Type: "tabbed"}, Page{})
	if err != nil {
		t.Fatalf("ListContexts: %v", err)
	}
	if len(tabbed) != 3 {
		t.Fatalf("len(tabbed) = %d, want 3", len(tabbed))
	}

	paged, err := a.ListContexts(context.Background(), owner, id, ContextFilter{}, Page{Offset: 1, Limit: 2})
	if err != nil {
		t.Fatalf("ListContexts: %v", err)
	}
	if len(paged) != 2 {
		t.Fatalf("len(paged) = %d, want 2", len(paged))
	}
}

func TestCreateContextRequiresOwnedSession(t *testing.T) {
	a := newTestAPI(t)
	admin := adminPrincipal()
	id, err := a.CreateSession(context.Background(), admin, CreateSessionRequest{UserID: "u1", TTL: time.Hour})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	stranger := auth.Context{UserID: "u2", SessionID: "not-" + id, Scopes: []string{string(auth.ContextCreate)}}
	if _, err := a.CreateContext(context.Background(), stranger, id, CreateContextRequest{Name: "c1"}); err == nil {
		t.Fatal("expected a permission error for a non-owning caller")
	}
}

func TestExecuteRejectsDeletedContext(t *testing.T) {
	a := newTestAPI(t)
	admin := adminPrincipal()
	id, err := a.CreateSession(context.Background(), admin, CreateSessionRequest{UserID: "u1", TTL: time.Hour})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	owner := auth.Context{UserID: "u1", SessionID: id, Scopes: []string{string(auth.ContextCreate), string(auth.ContextExecute), string(auth.ContextDelete)}}
	c, err := a.CreateContext(context.Background(), owner, id, CreateContextRequest{Name: "c1"})
	if err != nil {
		t.Fatalf("CreateContext: %v", err)
	}
	if err := a.DeleteContext(context.Background(), owner, c.ID); err != nil {
		t.Fatalf("DeleteContext: %v", err)
	}

	act := &action.Action{Type: action.KindContent, Content: &action.ContentParams{}}
	res := a.Execute(context.Background(), owner, c.ID, act, time.Time{})
	if res.Success {
		t.Fatal("expected execute against a deleted context to fail")
	}
}

func TestExecuteRejectsMissingPermission(t *testing.T) {
	a := newTestAPI(t)
	admin := adminPrincipal()
	id, err := a.CreateSession(context.Background(), admin, CreateSessionRequest{UserID: "u1", TTL: time.Hour})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	owner := auth.Context{UserID: "u1", SessionID: id, Scopes: []string{string(auth.ContextCreate)}}
	c, err := a.CreateContext(context.Background(), owner, id, CreateContextRequest{Name: "c1"})
	if err != nil {
		t.Fatalf("CreateContext: %v", err)
	}

	act := &action.Action{Type: action.KindContent, Content: &action.ContentParams{}}
	res := a.Execute(context.Background(), owner, c.ID, act, time.Time{})
	if res.Success {
		t.Fatal("expected execute without CONTEXT_EXECUTE scope to fail")
	}
}
