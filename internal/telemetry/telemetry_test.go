package telemetry

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNewRegistersWithoutPanicking(t *testing.T) {
	c := New()
	if c == nil {
		t.Fatal("expected non-nil collector")
	}
}

func TestHandlerServesExpositionFormat(t *testing.T) {
	c := New()
	c.PoolTotalBrowsers.Set(3)
	c.ObserveReplicationLatency("replica-1", 12*time.Millisecond)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "browsercore_pool_total_browsers 3") {
		t.Errorf("expected total_browsers gauge in output, got:\n%s", body)
	}
	if !strings.Contains(body, "browsercore_store_replication_latency_seconds") {
		t.Errorf("expected replication latency histogram in output")
	}
}

func TestMultipleCollectorsDoNotConflict(t *testing.T) {
	// Each Collector uses its own private registry, so constructing several
	// in the same process (as independent tests do) must never panic on
	// duplicate registration.
	a := New()
	b := New()
	a.PoolBrowsersCreated.Inc()
	b.PoolBrowsersCreated.Inc()
}
