package session

import (
	"testing"
	"time"

	"github.com/browsercore/browsercore/internal/config"
	"github.com/browsercore/browsercore/internal/corelog"
	"github.com/browsercore/browsercore/internal/telemetry"
)

func TestMonitorProbeReportsHealthy(t *testing.T) {
	f, err := New(config.StoreConfig{Type: "memory"})
	if err != nil {
		t.Fatalf("New factory: %v", err)
	}

	cfg := config.MonitoringConfig{
		Interval:             50 * time.Millisecond,
		LatencyWarnThreshold: time.Second,
		ErrorRateThreshold:   0.5,
	}
	m := NewMonitor(f, cfg, corelog.NewDefault(), telemetry.New())
	m.probe()

	report := m.GetReport()
	if report.Status != StatusHealthy {
		t.Fatalf("Status = %q, want healthy; alerts=%v", report.Status, report.Alerts)
	}
	if report.Metrics.OpCount != 1 {
		t.Fatalf("OpCount = %d, want 1", report.Metrics.OpCount)
	}
}

func TestMonitorStartStopDoesNotPanic(t *testing.T) {
	f, _ := New(config.StoreConfig{Type: "memory"})
	cfg := config.MonitoringConfig{Interval: 10 * time.Millisecond, LatencyWarnThreshold: time.Second, ErrorRateThreshold: 0.5}
	m := NewMonitor(f, cfg, corelog.NewDefault(), telemetry.New())

	m.Start()
	time.Sleep(35 * time.Millisecond)
	m.Stop()

	if m.GetReport().Metrics.OpCount == 0 {
		t.Fatal("expected at least one probe to have run")
	}
}
