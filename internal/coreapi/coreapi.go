// Package coreapi is the composition root wiring the Session Store,
// Context Store, Browser Pool, Page Manager, and Action Executor behind the
// single typed CoreAPI surface frontends adapt (HTTP/REST, RPC, WebSocket,
// or a model-context tool server).
package coreapi

import (
	"go.uber.org/zap"

	"github.com/browsercore/browsercore/internal/action"
	"github.com/browsercore/browsercore/internal/audit"
	"github.com/browsercore/browsercore/internal/auth"
	"github.com/browsercore/browsercore/internal/browserpool"
	coreContext "github.com/browsercore/browsercore/internal/context"
	"github.com/browsercore/browsercore/internal/config"
	"github.com/browsercore/browsercore/internal/coreerr"
	"github.com/browsercore/browsercore/internal/corelog"
	"github.com/browsercore/browsercore/internal/eventbus"
	"github.com/browsercore/browsercore/internal/executor"
	"github.com/browsercore/browsercore/internal/pageman"
	"github.com/browsercore/browsercore/internal/session"
	"github.com/browsercore/browsercore/internal/telemetry"
)

// API is the single typed surface frontends adapt. It owns every core
// component and enforces auth at the boundary; nothing downstream of API
// ever sees an unauthorized call.
type API struct {
	cfg config.CoreConfig
	log *corelog.Logger

	sessions *session.Factory
	monitor  *session.Monitor
	contexts *coreContext.Store
	pool     *browserpool.Pool
	pages    *pageman.Manager
	exec     *executor.Executor
	bus      *eventbus.Bus
	telem    *telemetry.Collector
	audit    *audit.Logger
}

// New wires every core component per cfg and starts their background loops:
// telemetry registry, SS (with SM probing), BP (launching minBrowsers), PM,
// AE. This is the "load config -> start telemetry -> build SS -> build BP ->
// bind frontends" init order; binding frontends is the caller's job once
// New returns.
func New(cfg config.CoreConfig, log *corelog.Logger) (*API, error) {
	if log == nil {
		log = corelog.NewDefault()
	}

	if err := action.Configure(action.Limits{
		MaxArgs:         cfg.Executor.MaxArgCount,
		MaxArgBytes:     cfg.Executor.MaxArgBytes,
		MaxNestingDepth: cfg.Executor.MaxNestingDepth,
		DenyPatternsJS:  cfg.Executor.DenyPatternsJS,
		DenyPatternsCSS: cfg.Executor.DenyPatternsCSS,
	}); err != nil {
		return nil, coreerr.Wrap(coreerr.Invalid, "configure security validator", err)
	}

	telem := telemetry.New()
	bus := eventbus.New()
	auditLog := audit.New(log)

	sessions, err := session.New(cfg.Store)
	if err != nil {
		return nil, err
	}
	monitor := session.NewMonitor(sessions, cfg.Store.Monitoring, log, telem)
	monitor.Start()

	pool, err := browserpool.New(cfg.Pool, log, telem, bus)
	if err != nil {
		sessions.Close()
		monitor.Stop()
		return nil, coreerr.Wrap(coreerr.Internal, "construct browser pool", err)
	}
	pages := pageman.New(pool)
	exec := executor.New(pages, auditLog, telem, log, cfg.Executor)

	return &API{
		cfg:      cfg,
		log:      log,
		sessions: sessions,
		monitor:  monitor,
		contexts: coreContext.New(),
		pool:     pool,
		pages:    pages,
		exec:     exec,
		bus:      bus,
		telem:    telem,
		audit:    auditLog,
	}, nil
}

// Shutdown tears components down in reverse init order: BP before SS, per
// the "BP.shutdown must complete before SS.close" ordering requirement.
func (a *API) Shutdown() error {
	a.monitor.Stop()
	if err := a.pool.Shutdown(true); err != nil {
		a.log.Warn("pool shutdown did not complete cleanly", zap.Error(err))
	}
	return a.sessions.Close()
}

// Telemetry exposes the Prometheus collector for a frontend's /metrics route.
func (a *API) Telemetry() *telemetry.Collector { return a.telem }

// GetPoolMetrics returns a snapshot of browser pool state.
func (a *API) GetPoolMetrics() browserpool.Metrics { return a.pool.GetMetrics() }

// GetStoreHealth returns the session store's current backend and health.
func (a *API) GetStoreHealth() session.HealthStatus { return a.sessions.GetHealthStatus() }

// GetStoreReport returns the monitor's most recent probe report.
func (a *API) GetStoreReport() session.Report { return a.monitor.GetReport() }

// StreamEvents subscribes to the in-process event bus, used by the
// WebSocket/event-bus frontend. An empty topics list subscribes to every
// topic.
func (a *API) StreamEvents(topics ...eventbus.Topic) *eventbus.Subscription {
	return a.bus.Subscribe(topics...)
}

// StopStream releases a subscription created by StreamEvents.
func (a *API) StopStream(sub *eventbus.Subscription) { a.bus.Unsubscribe(sub) }
