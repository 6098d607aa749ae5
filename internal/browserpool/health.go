package browserpool

import (
	"context"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/browsercore/browsercore/internal/config"
)

// HealthReport is the outcome of one health-check pass against an instance.
type HealthReport struct {
	IsHealthy        bool
	ConnectionHealth bool
	MemoryHealthy    bool
	PageCountHealthy bool
	Responsive       bool
	Reason           string
	MemoryMB         float64
	PageCount        int
}

// HealthChecker runs a four-step health procedure against pool instances:
// connectivity, responsiveness, memory, page count. It does not check
// whether the browser's OS process is still running.
type HealthChecker struct {
	responseTimeout time.Duration
	maxMemoryMB     float64
	maxPageCount    int
}

// NewHealthChecker builds a HealthChecker from pool configuration. A
// maxMemoryMB of 0 disables the memory check (not every deployment can read
// heap stats reliably headless).
func NewHealthChecker(cfg config.PoolConfig, maxMemoryMB float64) *HealthChecker {
	timeout := cfg.HealthCheckInterval / 3
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	maxPages := cfg.MaxPagesPerBrowser
	if maxPages <= 0 {
		maxPages = 20
	}
	return &HealthChecker{responseTimeout: timeout, maxMemoryMB: maxMemoryMB, maxPageCount: maxPages}
}

// Check runs the four checks against inst and returns a report. It never
// mutates inst's lifecycle state; callers decide whether to recover.
func (hc *HealthChecker) Check(ctx context.Context, inst *Instance) HealthReport {
	if inst == nil || inst.snapshotState() == StateDead {
		return HealthReport{Reason: "disconnected"}
	}

	select {
	case <-inst.AllocatorContext().Done():
		return HealthReport{Reason: "disconnected"}
	default:
	}

	report := HealthReport{ConnectionHealth: true}

	responsive := hc.probeResponsive(ctx, inst)
	report.Responsive = responsive
	if !responsive {
		report.Reason = "unresponsive"
	}

	memMB, memOK := hc.probeMemory(ctx, inst)
	report.MemoryMB = memMB
	report.MemoryHealthy = memOK
	if !memOK && report.Reason == "" {
		report.Reason = "memory exceeded"
	}

	pages := inst.PageCount()
	report.PageCount = pages
	report.PageCountHealthy = pages <= hc.maxPageCount
	if !report.PageCountHealthy && report.Reason == "" {
		report.Reason = "page count exceeded"
	}

	report.IsHealthy = report.ConnectionHealth && report.Responsive && report.MemoryHealthy && report.PageCountHealthy
	return report
}

// probeResponsive races a trivial JS evaluation against responseTimeout.
func (hc *HealthChecker) probeResponsive(ctx context.Context, inst *Instance) bool {
	probeCtx, cancel := context.WithTimeout(inst.Context(), hc.responseTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		var v int
		done <- chromedp.Run(probeCtx, chromedp.Evaluate("1+1", &v))
	}()

	select {
	case err := <-done:
		return err == nil
	case <-probeCtx.Done():
		return false
	case <-ctx.Done():
		return false
	}
}

// probeMemory reads the page's JS heap usage in MB. A zero maxMemoryMB means
// the check always passes.
func (hc *HealthChecker) probeMemory(ctx context.Context, inst *Instance) (float64, bool) {
	if hc.maxMemoryMB <= 0 {
		return 0, true
	}

	probeCtx, cancel := context.WithTimeout(inst.Context(), hc.responseTimeout)
	defer cancel()

	var usedBytes float64
	err := chromedp.Run(probeCtx, chromedp.Evaluate(
		`(performance.memory && performance.memory.usedJSHeapSize) || 0`, &usedBytes))
	if err != nil {
		return 0, false
	}

	mb := usedBytes / (1024 * 1024)
	return mb, mb <= hc.maxMemoryMB
}

// checkAndRecover runs Check and, if unhealthy and autoRecover is set, drives
// a restart through the given pool. Returns the report from before recovery
// was attempted.
func (hc *HealthChecker) checkAndRecover(ctx context.Context, p *Pool, inst *Instance, autoRecover bool) HealthReport {
	report := hc.Check(ctx, inst)
	if !report.IsHealthy && autoRecover {
		p.handleUnhealthyBrowser(inst)
	}
	return report
}
