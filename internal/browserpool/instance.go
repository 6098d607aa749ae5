// Package browserpool manages a pool of reusable headless Chrome instances,
// brokering access through a priority acquisition queue and periodic health
// checks.
package browserpool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/browsercore/browsercore/internal/config"
)

// State is a position in the browser instance's lifecycle state machine:
// idle -> active -> idle, any state -> restarting -> idle | dead.
type State string

const (
	StateIdle       State = "idle"
	StateActive     State = "active"
	StateRestarting State = "restarting"
	StateDraining   State = "draining"
	StateDead       State = "dead"
)

// Instance is one managed headless Chrome process leased to at most one
// session at a time.
type Instance struct {
	id string

	allocCtx    context.Context
	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc

	mu          sync.Mutex
	state       State
	sessionID   string
	pageCount   int32
	useCount    int32
	errorCount  int32
	createdAt   time.Time
	lastUsedAt  time.Time
}

// launchOptions builds the chromedp allocator flag set. Anti-automation and
// resource flags mirror a production headless deployment.
func launchOptions(cfg config.PoolConfig) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-background-timer-throttling", true),
		chromedp.Flag("disable-backgrounding-occluded-windows", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
		chromedp.Flag("disable-hang-monitor", true),
		chromedp.Flag("disable-prompt-on-repost", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-extensions", true),
	)
	for _, arg := range cfg.LaunchArgs {
		opts = append(opts, chromedp.Flag(arg, true))
	}
	return opts
}

func launchInstance(parent context.Context, id string, cfg config.PoolConfig) (*Instance, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, launchOptions(cfg)...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	// Force the allocator to actually launch the process now rather than
	// lazily on first use, so a launch failure surfaces to the caller
	// instead of the first Acquire() after it.
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	now := time.Now()
	return &Instance{
		id:          id,
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
		state:       StateIdle,
		createdAt:   now,
		lastUsedAt:  now,
	}, nil
}

// restart closes the underlying Chrome process and launches a fresh one in
// its place, preserving the instance's id slot.
func (inst *Instance) restart(parent context.Context, cfg config.PoolConfig) error {
	inst.mu.Lock()
	inst.state = StateRestarting
	inst.mu.Unlock()

	inst.close(5 * time.Second)

	fresh, err := launchInstance(parent, inst.id, cfg)
	if err != nil {
		inst.mu.Lock()
		inst.state = StateDead
		inst.mu.Unlock()
		return err
	}

	inst.mu.Lock()
	inst.allocCtx, inst.allocCancel = fresh.allocCtx, fresh.allocCancel
	inst.tabCtx, inst.tabCancel = fresh.tabCtx, fresh.tabCancel
	inst.createdAt = fresh.createdAt
	inst.lastUsedAt = fresh.lastUsedAt
	inst.useCount = 0
	inst.errorCount = 0
	inst.pageCount = 0
	inst.sessionID = ""
	inst.state = StateIdle
	inst.mu.Unlock()
	return nil
}

// close terminates the instance, escalating from the allocator's graceful
// cancel to a hard context cancel if it doesn't exit within grace.
func (inst *Instance) close(grace time.Duration) {
	inst.mu.Lock()
	tabCancel := inst.tabCancel
	allocCancel := inst.allocCancel
	inst.mu.Unlock()

	done := make(chan struct{})
	go func() {
		if tabCancel != nil {
			tabCancel()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(grace):
	}
	if allocCancel != nil {
		allocCancel()
	}
}

func (inst *Instance) needsRestart(cfg config.PoolConfig) bool {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	if cfg.MaxBrowserAge > 0 && time.Since(inst.createdAt) >= cfg.MaxBrowserAge {
		return true
	}
	if cfg.MaxBrowserUses > 0 && int(inst.useCount) >= cfg.MaxBrowserUses {
		return true
	}
	if cfg.MaxBrowserErrors > 0 && int(inst.errorCount) >= cfg.MaxBrowserErrors {
		return true
	}
	return false
}

func (inst *Instance) isIdleTooLong(idleTimeout time.Duration) bool {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return inst.state == StateIdle && time.Since(inst.lastUsedAt) >= idleTimeout
}

func (inst *Instance) recordError() {
	atomic.AddInt32(&inst.errorCount, 1)
}

// RecordError increments the instance's error counter, feeding the
// MaxBrowserErrors recycle threshold. Callers dispatching actions against
// the instance should call this whenever the underlying chromedp call fails.
func (inst *Instance) RecordError() { inst.recordError() }

// ID returns the stable pool-slot identifier for this instance.
func (inst *Instance) ID() string { return inst.id }

// Context returns the chromedp context to run actions against.
func (inst *Instance) Context() context.Context {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return inst.tabCtx
}

// AllocatorContext returns the allocator context, used to open additional
// tabs within the same browser process.
func (inst *Instance) AllocatorContext() context.Context {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return inst.allocCtx
}

func (inst *Instance) snapshotState() State {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return inst.state
}

// NewTab opens a fresh chromedp tab within this instance's browser process,
// independent of the instance's base tab context, so multiple pages can be
// open against one instance at once.
func (inst *Instance) NewTab() (context.Context, context.CancelFunc, error) {
	allocCtx := inst.AllocatorContext()
	if allocCtx == nil {
		return nil, nil, fmt.Errorf("browser instance not initialized")
	}
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)
	return tabCtx, tabCancel, nil
}

// PageCount returns the number of pages currently open against this
// instance, as tracked by the page manager through IncPageCount/DecPageCount.
func (inst *Instance) PageCount() int {
	return int(atomic.LoadInt32(&inst.pageCount))
}

// IncPageCount records that a new page was opened against this instance.
func (inst *Instance) IncPageCount() { atomic.AddInt32(&inst.pageCount, 1) }

// DecPageCount records that a page was closed against this instance.
func (inst *Instance) DecPageCount() {
	if atomic.AddInt32(&inst.pageCount, -1) < 0 {
		atomic.StoreInt32(&inst.pageCount, 0)
	}
}
