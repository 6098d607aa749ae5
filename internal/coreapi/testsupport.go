package coreapi

import (
	"github.com/browsercore/browsercore/internal/audit"
	"github.com/browsercore/browsercore/internal/browserpool"
	coreContext "github.com/browsercore/browsercore/internal/context"
	"github.com/browsercore/browsercore/internal/config"
	"github.com/browsercore/browsercore/internal/corelog"
	"github.com/browsercore/browsercore/internal/eventbus"
	"github.com/browsercore/browsercore/internal/executor"
	"github.com/browsercore/browsercore/internal/pageman"
	"github.com/browsercore/browsercore/internal/session"
)

// NewForTesting wires an API around pool instead of launching real browsers
// via New, so dependent packages (frontend, and tests here) can exercise
// the full permission/ownership surface without a Chrome binary.
func NewForTesting(pool *browserpool.Pool) *API {
	pages := pageman.New(pool)
	sessions, _ := session.New(config.StoreConfig{Type: "memory"})
	log := corelog.NewDefault()
	monitor := session.NewMonitor(sessions, config.MonitoringConfig{}, log, nil)
	return &API{
		cfg:      config.Default(),
		log:      log,
		sessions: sessions,
		monitor:  monitor,
		contexts: coreContext.New(),
		pool:     pool,
		pages:    pages,
		exec:     executor.New(pages, audit.New(log), nil, log, config.ExecutorConfig{}),
		bus:      eventbus.New(),
		telem:    nil,
		audit:    audit.New(log),
	}
}
