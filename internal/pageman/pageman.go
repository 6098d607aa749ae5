// Package pageman manages Page allocation: resolving an existing page for a
// context or opening a new one against a browser drawn from the pool.
package pageman

import (
	"context"
	cryptorand "crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/browsercore/browsercore/internal/browserpool"
	"github.com/browsercore/browsercore/internal/coreerr"
)

// Page is a tab belonging to some browser instance, pinned to one context.
type Page struct {
	ID        string
	BrowserID string
	ContextID string
	SessionID string
	CreatedAt time.Time

	tabCtx    context.Context
	tabCancel context.CancelFunc
}

// Context returns the chromedp context to run actions against this page.
func (p *Page) Context() context.Context { return p.tabCtx }

// Manager resolves (contextId, sessionId) to a Page, creating one on demand
// against a browser leased from the pool. At most one page exists per
// context at a time.
type Manager struct {
	pool *browserpool.Pool

	mu    sync.Mutex
	pages map[string]*Page // contextId -> page
}

// New constructs a Manager backed by pool.
func New(pool *browserpool.Pool) *Manager {
	return &Manager{pool: pool, pages: make(map[string]*Page)}
}

// Resolve returns the existing page for contextID if one is open and still
// owned by sessionID; otherwise it acquires a browser via the pool and opens
// a new page pinned to (contextID, sessionID).
func (m *Manager) Resolve(ctx context.Context, contextID, sessionID string) (*Page, error) {
	m.mu.Lock()
	if page, ok := m.pages[contextID]; ok {
		m.mu.Unlock()
		if page.SessionID != sessionID {
			return nil, coreerr.New(coreerr.PermissionDenied, "page belongs to a different session")
		}
		return page, nil
	}
	m.mu.Unlock()

	inst, err := m.pool.AcquireBrowser(ctx, sessionID, browserpool.PriorityNormal)
	if err != nil {
		return nil, err
	}

	if pages := inst.PageCount(); pages >= maxPagesPerBrowser(m.pool) {
		m.pool.ReleaseBrowser(inst.ID(), sessionID)
		return nil, coreerr.New(coreerr.Unavailable, "browser instance has reached its page cap")
	}

	tabCtx, tabCancel, err := inst.NewTab()
	if err != nil {
		m.pool.ReleaseBrowser(inst.ID(), sessionID)
		return nil, coreerr.Wrap(coreerr.Internal, "open new page", err)
	}
	inst.IncPageCount()

	id, err := newPageID()
	if err != nil {
		inst.DecPageCount()
		m.pool.ReleaseBrowser(inst.ID(), sessionID)
		return nil, coreerr.Wrap(coreerr.Internal, "generate page id", err)
	}

	m.mu.Lock()
	page := &Page{
		ID:        id,
		BrowserID: inst.ID(),
		ContextID: contextID,
		SessionID: sessionID,
		CreatedAt: time.Now(),
		tabCtx:    tabCtx,
		tabCancel: tabCancel,
	}
	m.pages[contextID] = page
	m.mu.Unlock()

	return page, nil
}

// CloseContext closes the page (if any) pinned to contextID, decrementing
// the owning browser's page-count bookkeeping and releasing the lease.
func (m *Manager) CloseContext(contextID string) {
	m.mu.Lock()
	page, ok := m.pages[contextID]
	if ok {
		delete(m.pages, contextID)
	}
	m.mu.Unlock()
	if !ok {
		return
	}

	if page.tabCancel != nil {
		page.tabCancel()
	}
	if inst, found := m.pool.GetBrowser(page.BrowserID); found {
		inst.DecPageCount()
	}
	m.pool.ReleaseBrowser(page.BrowserID, page.SessionID)
}

// RecordBrowserError feeds a dispatch failure on browserID into the pool's
// MaxBrowserErrors recycle threshold.
func (m *Manager) RecordBrowserError(browserID string) {
	if inst, ok := m.pool.GetBrowser(browserID); ok {
		inst.RecordError()
	}
}

// maxPagesPerBrowser reads the pool's configured per-browser page cap,
// falling back to a sane default if unset.
func maxPagesPerBrowser(pool *browserpool.Pool) int {
	if n := pool.Config().MaxPagesPerBrowser; n > 0 {
		return n
	}
	return 20
}

func newPageID() (string, error) {
	var b [16]byte
	if _, err := cryptorand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}
