package browserpool

import (
	"testing"
	"time"

	"github.com/browsercore/browsercore/internal/config"
)

func TestInstanceNeedsRestartOnAge(t *testing.T) {
	inst := &Instance{createdAt: time.Now().Add(-time.Hour), lastUsedAt: time.Now()}
	cfg := config.PoolConfig{MaxBrowserAge: time.Minute}
	if !inst.needsRestart(cfg) {
		t.Fatal("expected needsRestart to report true once age exceeds MaxBrowserAge")
	}
}

func TestInstanceNeedsRestartOnUseCount(t *testing.T) {
	inst := &Instance{createdAt: time.Now(), lastUsedAt: time.Now(), useCount: 10}
	cfg := config.PoolConfig{MaxBrowserUses: 5}
	if !inst.needsRestart(cfg) {
		t.Fatal("expected needsRestart to report true once useCount exceeds MaxBrowserUses")
	}
}

func TestInstanceDoesNotNeedRestartWithinThresholds(t *testing.T) {
	inst := &Instance{createdAt: time.Now(), lastUsedAt: time.Now(), useCount: 1, errorCount: 0}
	cfg := config.PoolConfig{MaxBrowserAge: time.Hour, MaxBrowserUses: 50, MaxBrowserErrors: 10}
	if inst.needsRestart(cfg) {
		t.Fatal("expected needsRestart to report false within thresholds")
	}
}

func TestInstanceIsIdleTooLong(t *testing.T) {
	inst := &Instance{state: StateIdle, lastUsedAt: time.Now().Add(-time.Minute)}
	if !inst.isIdleTooLong(10 * time.Millisecond) {
		t.Fatal("expected isIdleTooLong to report true")
	}
	if inst.isIdleTooLong(time.Hour) {
		t.Fatal("expected isIdleTooLong to report false under a longer timeout")
	}
}

func TestInstanceIsIdleTooLongOnlyWhenIdle(t *testing.T) {
	inst := &Instance{state: StateActive, lastUsedAt: time.Now().Add(-time.Hour)}
	if inst.isIdleTooLong(time.Millisecond) {
		t.Fatal("expected isIdleTooLong to report false for a non-idle instance")
	}
}

func TestInstancePageCountTracking(t *testing.T) {
	inst := &Instance{}
	inst.IncPageCount()
	inst.IncPageCount()
	inst.DecPageCount()
	if got := inst.PageCount(); got != 1 {
		t.Fatalf("PageCount() = %d, want 1", got)
	}

	inst.DecPageCount()
	inst.DecPageCount() // underflow guard
	if got := inst.PageCount(); got != 0 {
		t.Fatalf("PageCount() = %d, want 0 after underflow guard", got)
	}
}
