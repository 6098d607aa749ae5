package session

import (
	"context"
	"sync"
	"time"

	"github.com/browsercore/browsercore/internal/config"
	"github.com/browsercore/browsercore/internal/corelog"
	"github.com/browsercore/browsercore/internal/telemetry"
	"go.uber.org/zap"
)

// Status is the Monitor's aggregated health verdict.
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// Metrics is the Monitor's rolling view of store performance.
type Metrics struct {
	OpCount      int64
	AvgLatency   time.Duration
	ErrorCount   int64
	CacheMisses  int64
	ActiveCount  int
	ExpiredCount int
}

// Report is one probe cycle's outcome.
type Report struct {
	Status    Status
	Metrics   Metrics
	Alerts    []string
	CheckedAt time.Time
}

// Monitor periodically probes the active store with a synthetic
// create->get->delete round trip, accumulating rolling metrics and raising
// alerts when configured thresholds are exceeded. It is the single writer
// of its metrics; GetReport takes a read lock and returns a copy of the
// latest report.
type Monitor struct {
	factory *Factory
	cfg     config.MonitoringConfig
	log     *corelog.Logger
	telem   *telemetry.Collector

	mu         sync.RWMutex
	report     Report
	opTotal    int64
	opErrors   int64
	latencySum time.Duration

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewMonitor constructs a Monitor bound to a Factory's active backend.
func NewMonitor(factory *Factory, cfg config.MonitoringConfig, log *corelog.Logger, telem *telemetry.Collector) *Monitor {
	return &Monitor{
		factory: factory,
		cfg:     cfg,
		log:     log,
		telem:   telem,
		stopCh:  make(chan struct{}),
	}
}

// Start begins the periodic probe loop.
func (m *Monitor) Start() {
	m.wg.Add(1)
	go m.loop()
}

// Stop halts the probe loop and waits for it to exit.
func (m *Monitor) Stop() {
	close(m.stopCh)
	m.wg.Wait()
}

func (m *Monitor) loop() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.probe()
		}
	}
}

func (m *Monitor) probe() {
	store := m.factory.Active()
	if store == nil {
		m.recordReport(StatusUnhealthy, []string{"no active store backend"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	start := time.Now()
	var alerts []string

	id, err := store.Create(ctx, Session{
		UserID:    "monitor-probe",
		ExpiresAt: time.Now().Add(time.Minute),
	})
	if err == nil {
		_, err = store.Get(ctx, id)
	}
	if err == nil {
		_, err = store.Delete(ctx, id)
	}
	latency := time.Since(start)

	m.mu.Lock()
	m.opTotal++
	m.latencySum += latency
	if err != nil {
		m.opErrors++
	}
	opTotal, opErrors := m.opTotal, m.opErrors
	avg := m.latencySum / time.Duration(maxInt64(opTotal, 1))
	m.mu.Unlock()

	if err != nil {
		alerts = append(alerts, "probe failed: "+err.Error())
		m.log.Warn("store probe failed", zap.Error(err))
	}
	if latency > m.cfg.LatencyWarnThreshold {
		alerts = append(alerts, "probe latency exceeded threshold")
	}
	if opTotal >= 10 {
		errRate := float64(opErrors) / float64(opTotal)
		if errRate > m.cfg.ErrorRateThreshold {
			alerts = append(alerts, "error rate exceeded threshold")
		}
	}

	active, expired := 0, 0
	if mem, ok := store.(*MemoryStore); ok {
		active, expired = mem.Count()
	}

	status := StatusHealthy
	if err != nil {
		status = StatusDegraded
	}
	if len(alerts) > 1 {
		status = StatusUnhealthy
	}

	if m.telem != nil {
		m.telem.StoreOpDuration.WithLabelValues("probe", m.factory.GetHealthStatus().ActiveType).Observe(latency.Seconds())
		if err != nil {
			m.telem.StoreOpErrors.WithLabelValues("probe", m.factory.GetHealthStatus().ActiveType).Inc()
		}
		m.telem.StoreActiveSessions.Set(float64(active))
	}

	m.mu.Lock()
	m.report = Report{
		Status: status,
		Metrics: Metrics{
			OpCount:      opTotal,
			AvgLatency:   avg,
			ErrorCount:   opErrors,
			ActiveCount:  active,
			ExpiredCount: expired,
		},
		Alerts:    alerts,
		CheckedAt: time.Now(),
	}
	m.mu.Unlock()
}

func (m *Monitor) recordReport(status Status, alerts []string) {
	m.mu.Lock()
	m.report = Report{Status: status, Alerts: alerts, CheckedAt: time.Now()}
	m.mu.Unlock()
}

// GetReport returns the most recent probe report.
func (m *Monitor) GetReport() Report {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.report
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
