package pageman

import (
	"context"
	"testing"

	"github.com/browsercore/browsercore/internal/browserpool"
	"github.com/browsercore/browsercore/internal/config"
)

func TestResolveCreatesNewPageOnFirstCall(t *testing.T) {
	pool := browserpool.NewTestingPool(config.PoolConfig{MinBrowsers: 1, MaxBrowsers: 1}, "b1")
	m := New(pool)

	page, err := m.Resolve(context.Background(), "ctx1", "session1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if page.ContextID != "ctx1" || page.SessionID != "session1" {
		t.Fatalf("page = %+v", page)
	}
	if page.BrowserID != "b1" {
		t.Fatalf("BrowserID = %q, want b1", page.BrowserID)
	}
}

func TestResolveReturnsSamePageForSameContext(t *testing.T) {
	pool := browserpool.NewTestingPool(config.PoolConfig{MinBrowsers: 1, MaxBrowsers: 1}, "b1")
	m := New(pool)

	first, err := m.Resolve(context.Background(), "ctx1", "session1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	second, err := m.Resolve(context.Background(), "ctx1", "session1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected the same page to be returned, got %q and %q", first.ID, second.ID)
	}
}

func TestResolveRejectsCrossSessionAccess(t *testing.T) {
	pool := browserpool.NewTestingPool(config.PoolConfig{MinBrowsers: 1, MaxBrowsers: 1}, "b1")
	m := New(pool)

	if _, err := m.Resolve(context.Background(), "ctx1", "session1"); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if _, err := m.Resolve(context.Background(), "ctx1", "session2"); err == nil {
		t.Fatal("expected a page opened for session1 to be rejected for session2")
	}
}

func TestCloseContextReleasesBrowserAndForgetsPage(t *testing.T) {
	pool := browserpool.NewTestingPool(config.PoolConfig{MinBrowsers: 1, MaxBrowsers: 1}, "b1")
	m := New(pool)

	page, err := m.Resolve(context.Background(), "ctx1", "session1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	m.CloseContext(page.ContextID)

	// A fresh Resolve for the same context should mint a new page rather
	// than returning the closed one.
	again, err := m.Resolve(context.Background(), "ctx1", "session1")
	if err != nil {
		t.Fatalf("Resolve after close: %v", err)
	}
	if again.ID == page.ID {
		t.Fatal("expected CloseContext to forget the old page")
	}
}
