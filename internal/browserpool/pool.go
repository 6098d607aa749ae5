package browserpool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/browsercore/browsercore/internal/config"
	"github.com/browsercore/browsercore/internal/coreerr"
	"github.com/browsercore/browsercore/internal/corelog"
	"github.com/browsercore/browsercore/internal/eventbus"
	"github.com/browsercore/browsercore/internal/telemetry"
)

// Metrics is a point-in-time snapshot of pool state, returned by GetMetrics.
type Metrics struct {
	TotalBrowsers      int
	Active             int
	Idle               int
	Queued             int
	OldestQueueTime    time.Duration
	AvgPageCount       float64
	TotalErrors        int64
	BrowsersCreated    int64
	BrowsersDestroyed  int64
	AvgBrowserLifetime time.Duration
}

// Pool manages a set of reusable headless Chrome instances, brokering access
// through an AcquisitionQueue when the pool is at capacity.
type Pool struct {
	cfg   config.PoolConfig
	log   *corelog.Logger
	telem *telemetry.Collector
	bus   *eventbus.Bus
	hc    *HealthChecker
	queue *AcquisitionQueue

	mu        sync.Mutex
	instances map[string]*Instance
	idleIDs   []string
	counter   uint64
	draining  bool

	created    int64
	destroyed  int64
	totalErr   int64
	lifetimeNs int64
	lifetimeN  int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs a Pool and launches its minimum instance count plus the
// maintenance and health-check background loops.
func New(cfg config.PoolConfig, log *corelog.Logger, telem *telemetry.Collector, bus *eventbus.Bus) (*Pool, error) {
	ctx, cancel := context.WithCancel(context.Background())

	p := &Pool{
		cfg:       cfg,
		log:       log,
		telem:     telem,
		bus:       bus,
		hc:        NewHealthChecker(cfg, 0),
		queue:     NewAcquisitionQueue(),
		instances: make(map[string]*Instance),
		ctx:       ctx,
		cancel:    cancel,
	}

	for i := 0; i < cfg.MinBrowsers; i++ {
		if _, err := p.launchTracked(); err != nil {
			log.Warn("failed to pre-warm browser instance", zap.Error(err))
			continue
		}
	}

	p.wg.Add(2)
	go p.maintenanceLoop()
	go p.healthCheckLoop()

	return p, nil
}

func (p *Pool) nextID() string {
	return fmt.Sprintf("browser-%d", atomic.AddUint64(&p.counter, 1))
}

func (p *Pool) launchTracked() (*Instance, error) {
	id := p.nextID()
	inst, err := launchInstance(p.ctx, id, p.cfg)
	if err != nil {
		atomic.AddInt64(&p.totalErr, 1)
		return nil, err
	}

	p.mu.Lock()
	p.instances[id] = inst
	p.idleIDs = append(p.idleIDs, id)
	p.mu.Unlock()

	atomic.AddInt64(&p.created, 1)
	if p.telem != nil {
		p.telem.PoolBrowsersCreated.Inc()
	}
	if p.bus != nil {
		p.bus.Publish(eventbus.TopicBrowserCreated, id)
	}
	return inst, nil
}

// AcquireBrowser leases an idle instance to sessionID, launching a new one
// if the pool has capacity, or enqueuing the caller in the acquisition queue
// otherwise. Blocks until an instance is available, the acquisition timeout
// elapses, or ctx is cancelled.
func (p *Pool) AcquireBrowser(ctx context.Context, sessionID string, priority Priority) (*Instance, error) {
	start := time.Now()
	defer func() {
		if p.telem != nil {
			p.telem.PoolAcquireDuration.Observe(time.Since(start).Seconds())
		}
	}()

	p.mu.Lock()
	if p.draining {
		p.mu.Unlock()
		return nil, coreerr.New(coreerr.Unavailable, "pool is shutting down")
	}

	if len(p.idleIDs) > 0 {
		id := p.idleIDs[0]
		p.idleIDs = p.idleIDs[1:]
		inst := p.instances[id]
		p.mu.Unlock()
		return p.lease(inst, sessionID)
	}

	canCreate := len(p.instances) < p.cfg.MaxBrowsers
	p.mu.Unlock()

	if canCreate {
		inst, err := p.launchTracked()
		if err != nil {
			return nil, coreerr.Wrap(coreerr.Internal, "launch browser instance", err)
		}
		p.mu.Lock()
		p.idleIDs = removeID(p.idleIDs, inst.id)
		p.mu.Unlock()
		return p.lease(inst, sessionID)
	}

	timeout := p.cfg.AcquisitionTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	return p.queue.Enqueue(sessionID, priority, timeout)
}

func removeID(ids []string, target string) []string {
	out := ids[:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}

func (p *Pool) lease(inst *Instance, sessionID string) (*Instance, error) {
	if inst.needsRestart(p.cfg) {
		if err := inst.restart(p.ctx, p.cfg); err != nil {
			p.destroyInstance(inst.id)
			return nil, coreerr.Wrap(coreerr.Internal, "restart browser instance before lease", err)
		}
	}

	inst.mu.Lock()
	inst.state = StateActive
	inst.sessionID = sessionID
	inst.lastUsedAt = time.Now()
	inst.useCount++
	inst.mu.Unlock()

	return inst, nil
}

// ReleaseBrowser returns an instance to the idle pool after verifying
// sessionID still owns the lease. A waiting acquisition, if any, is served
// immediately instead of the instance going idle.
func (p *Pool) ReleaseBrowser(id, sessionID string) error {
	p.mu.Lock()
	inst, ok := p.instances[id]
	p.mu.Unlock()
	if !ok {
		return coreerr.New(coreerr.NotFound, "browser instance not found")
	}

	inst.mu.Lock()
	if inst.sessionID != sessionID {
		inst.mu.Unlock()
		return coreerr.New(coreerr.PermissionDenied, "browser instance is not leased to this session")
	}
	inst.sessionID = ""
	inst.state = StateIdle
	inst.lastUsedAt = time.Now()
	inst.mu.Unlock()

	if w := p.queue.popNext(); w != nil {
		leased, err := p.lease(inst, w.sessionID)
		if err != nil {
			w.resultCh <- waitResult{err: err}
			return nil
		}
		w.resultCh <- waitResult{instance: leased, sessionID: w.sessionID}
		return nil
	}

	p.mu.Lock()
	p.idleIDs = append(p.idleIDs, id)
	p.mu.Unlock()
	return nil
}

// Config returns the pool's effective configuration.
func (p *Pool) Config() config.PoolConfig { return p.cfg }

// GetBrowser returns a read-only handle to instance id, if tracked.
func (p *Pool) GetBrowser(id string) (*Instance, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	inst, ok := p.instances[id]
	return inst, ok
}

func (p *Pool) destroyInstance(id string) {
	p.mu.Lock()
	inst, ok := p.instances[id]
	if ok {
		delete(p.instances, id)
		p.idleIDs = removeID(p.idleIDs, id)
	}
	p.mu.Unlock()
	if !ok {
		return
	}

	inst.close(5 * time.Second)
	atomic.AddInt64(&p.destroyed, 1)
	atomic.AddInt64(&p.lifetimeNs, int64(time.Since(inst.createdAt)))
	atomic.AddInt64(&p.lifetimeN, 1)
	if p.telem != nil {
		p.telem.PoolBrowsersDestroyed.Inc()
	}
	if p.bus != nil {
		p.bus.Publish(eventbus.TopicBrowserDestroyed, id)
	}
}

// handleUnhealthyBrowser attempts a single restart; on failure the slot is
// removed entirely.
func (p *Pool) handleUnhealthyBrowser(inst *Instance) {
	if err := inst.restart(p.ctx, p.cfg); err != nil {
		p.log.Warn("browser failed to recover, removing from pool", zap.String("id", inst.id), zap.Error(err))
		p.destroyInstance(inst.id)
		atomic.AddInt64(&p.totalErr, 1)
		return
	}
	p.mu.Lock()
	p.idleIDs = append(removeID(p.idleIDs, inst.id), inst.id)
	p.mu.Unlock()
}

// maintenanceLoop evicts idle-too-long instances, recycles instances past
// their age/use/error thresholds, and tops the pool back up to minBrowsers.
// Collect-under-lock, act-outside-lock, matching the two-phase structure the
// pool's acquire/release paths already use.
func (p *Pool) maintenanceLoop() {
	defer p.wg.Done()

	idleTicker := time.NewTicker(p.maintenanceInterval())
	defer idleTicker.Stop()
	reapTicker := time.NewTicker(time.Second)
	defer reapTicker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-reapTicker.C:
			p.queue.reap()
		case <-idleTicker.C:
			p.performMaintenance()
		}
	}
}

func (p *Pool) maintenanceInterval() time.Duration {
	if p.cfg.IdleEvictionInterval > 0 {
		return p.cfg.IdleEvictionInterval
	}
	return 60 * time.Second
}

func (p *Pool) performMaintenance() {
	p.mu.Lock()
	if p.draining {
		p.mu.Unlock()
		return
	}

	var toEvict []string
	for _, id := range p.idleIDs {
		if len(p.instances)-len(toEvict) <= p.cfg.MinBrowsers {
			break
		}
		if inst, ok := p.instances[id]; ok && inst.isIdleTooLong(p.cfg.IdleTimeout) {
			toEvict = append(toEvict, id)
		}
	}

	var toRecycle []string
	for id, inst := range p.instances {
		if inst.snapshotState() != StateActive && inst.needsRestart(p.cfg) {
			alreadyMarked := false
			for _, e := range toEvict {
				if e == id {
					alreadyMarked = true
				}
			}
			if !alreadyMarked {
				toRecycle = append(toRecycle, id)
			}
		}
	}

	needed := p.cfg.MinBrowsers - (len(p.instances) - len(toEvict))
	p.mu.Unlock()

	for _, id := range toEvict {
		p.destroyInstance(id)
	}
	for _, id := range toRecycle {
		p.mu.Lock()
		inst := p.instances[id]
		p.mu.Unlock()
		if inst == nil {
			continue
		}
		p.handleUnhealthyBrowser(inst)
	}
	for i := 0; i < needed; i++ {
		if _, err := p.launchTracked(); err != nil {
			p.log.Warn("failed to top up pool to minBrowsers", zap.Error(err))
		}
	}
}

// healthCheckLoop periodically checks every idle instance and recovers
// unhealthy ones.
func (p *Pool) healthCheckLoop() {
	defer p.wg.Done()

	interval := p.cfg.HealthCheckInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.HealthCheck(p.ctx)
		}
	}
}

// HealthCheck runs the HC against every tracked instance and returns a
// per-id healthy map. Unhealthy idle instances are recovered automatically.
func (p *Pool) HealthCheck(ctx context.Context) map[string]bool {
	p.mu.Lock()
	ids := make([]string, 0, len(p.instances))
	insts := make([]*Instance, 0, len(p.instances))
	for id, inst := range p.instances {
		ids = append(ids, id)
		insts = append(insts, inst)
	}
	p.mu.Unlock()

	result := make(map[string]bool, len(ids))
	for i, inst := range insts {
		autoRecover := inst.snapshotState() != StateActive
		report := p.hc.checkAndRecover(ctx, p, inst, autoRecover)
		result[ids[i]] = report.IsHealthy
	}
	return result
}

// GetMetrics returns a snapshot of pool-wide counters, also publishing them
// to the telemetry collector.
func (p *Pool) GetMetrics() Metrics {
	p.mu.Lock()
	total := len(p.instances)
	idle := len(p.idleIDs)
	var pageSum int
	for _, inst := range p.instances {
		pageSum += inst.PageCount()
	}
	p.mu.Unlock()

	stats := p.queue.getStats()
	var avgLifetime time.Duration
	if n := atomic.LoadInt64(&p.lifetimeN); n > 0 {
		avgLifetime = time.Duration(atomic.LoadInt64(&p.lifetimeNs) / n)
	}
	var avgPages float64
	if total > 0 {
		avgPages = float64(pageSum) / float64(total)
	}

	m := Metrics{
		TotalBrowsers:      total,
		Active:             total - idle,
		Idle:               idle,
		Queued:             stats.Count,
		OldestQueueTime:    stats.OldestWaitAge,
		AvgPageCount:       avgPages,
		TotalErrors:        atomic.LoadInt64(&p.totalErr),
		BrowsersCreated:    atomic.LoadInt64(&p.created),
		BrowsersDestroyed:  atomic.LoadInt64(&p.destroyed),
		AvgBrowserLifetime: avgLifetime,
	}

	if p.telem != nil {
		p.telem.PoolTotalBrowsers.Set(float64(m.TotalBrowsers))
		p.telem.PoolActiveBrowsers.Set(float64(m.Active))
		p.telem.PoolIdleBrowsers.Set(float64(m.Idle))
		p.telem.PoolQueuedAcquisitions.Set(float64(m.Queued))
		p.telem.PoolOldestQueueWait.Set(m.OldestQueueTime.Seconds())
		p.telem.PoolAvgPageCount.Set(m.AvgPageCount)
	}
	return m
}

// Shutdown stops maintenance/health-check loops, rejects every queued
// waiter, and closes every instance. If drain is true, active instances are
// given a chance to be released before being forced closed.
func (p *Pool) Shutdown(drain bool) error {
	p.mu.Lock()
	p.draining = true
	ids := make([]string, 0, len(p.instances))
	for id := range p.instances {
		ids = append(ids, id)
	}
	p.mu.Unlock()

	if drain {
		deadline := time.Now().Add(10 * time.Second)
		for time.Now().Before(deadline) {
			if p.activeCount() == 0 {
				break
			}
			time.Sleep(100 * time.Millisecond)
		}
	}

	p.cancel()
	p.wg.Wait()
	p.queue.clear()

	for _, id := range ids {
		p.destroyInstance(id)
	}
	return nil
}

func (p *Pool) activeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	active := 0
	for _, inst := range p.instances {
		if inst.snapshotState() == StateActive {
			active++
		}
	}
	return active
}
