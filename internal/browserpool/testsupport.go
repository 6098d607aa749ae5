package browserpool

import (
	"context"
	"time"

	"github.com/browsercore/browsercore/internal/config"
	"github.com/browsercore/browsercore/internal/corelog"
)

// NewTestingPool builds a Pool with fake, already-"launched" idle instances
// injected directly, bypassing the real chromedp allocator. It exists so
// dependent packages (pageman, coreapi) can exercise pool bookkeeping in
// tests without a Chrome binary.
func NewTestingPool(cfg config.PoolConfig, instanceIDs ...string) *Pool {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		cfg:       cfg,
		log:       corelog.NewDefault(),
		hc:        NewHealthChecker(cfg, 0),
		queue:     NewAcquisitionQueue(),
		instances: make(map[string]*Instance),
		ctx:       ctx,
		cancel:    cancel,
	}
	now := time.Now()
	for _, id := range instanceIDs {
		// allocCtx is a plain background context rather than a real chromedp
		// allocator: chromedp.NewContext only dials out on the first Run, so
		// NewTab() can be exercised here without a Chrome binary.
		inst := &Instance{id: id, state: StateIdle, createdAt: now, lastUsedAt: now, allocCtx: context.Background()}
		p.instances[id] = inst
		p.idleIDs = append(p.idleIDs, id)
	}
	return p
}
