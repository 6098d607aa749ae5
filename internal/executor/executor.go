// Package executor runs a validated Action against a page and produces an
// ActionResult, following the validate -> acquire page -> deadline -> dispatch
// -> normalize -> truncate -> audit pipeline.
package executor

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/browsercore/browsercore/internal/action"
	"github.com/browsercore/browsercore/internal/audit"
	"github.com/browsercore/browsercore/internal/config"
	"github.com/browsercore/browsercore/internal/coreerr"
	"github.com/browsercore/browsercore/internal/corelog"
	"github.com/browsercore/browsercore/internal/pageman"
	"github.com/browsercore/browsercore/internal/telemetry"
)

// maxResultBytes is the truncate() fallback when the Executor wasn't built
// with a config.ExecutorConfig (e.g. in tests); New overrides this per
// instance from cfg.MaxResultBytes.
const maxResultBytes = 100 * 1024

// defaultTimeouts give each variant a sane per-page deadline when neither
// the caller's Action.Timeout nor the Executor's configured
// cfg.DefaultTimeouts names one for that variant.
var defaultTimeouts = map[action.Kind]time.Duration{
	action.KindNavigate:   30 * time.Second,
	action.KindWait:       30 * time.Second,
	action.KindEvaluate:   10 * time.Second,
	action.KindScreenshot: 30 * time.Second,
	action.KindClick:      15 * time.Second,
	action.KindType:       15 * time.Second,
	action.KindScroll:     10 * time.Second,
	action.KindSelect:     10 * time.Second,
	action.KindKeyboard:   5 * time.Second,
	action.KindMouse:      10 * time.Second,
	action.KindPDF:        30 * time.Second,
	action.KindCookie:     10 * time.Second,
	action.KindContent:    10 * time.Second,
	action.KindClose:      5 * time.Second,
}

// timeoutsFromConfig overrides the navigate/evaluate/screenshot/wait
// defaults from cfg.DefaultTimeouts, leaving the other variants at their
// package defaults.
func timeoutsFromConfig(cfg config.TimeoutsConfig) map[action.Kind]time.Duration {
	out := make(map[action.Kind]time.Duration, len(defaultTimeouts))
	for k, v := range defaultTimeouts {
		out[k] = v
	}
	if cfg.Navigate > 0 {
		out[action.KindNavigate] = cfg.Navigate
	}
	if cfg.Evaluate > 0 {
		out[action.KindEvaluate] = cfg.Evaluate
	}
	if cfg.Screenshot > 0 {
		out[action.KindScreenshot] = cfg.Screenshot
	}
	if cfg.Wait > 0 {
		out[action.KindWait] = cfg.Wait
	}
	return out
}

// Result is what the core boundary returns for one executed action, matching
// the {success, actionType, data, error?, duration, timestamp, metadata}
// wire shape.
type Result struct {
	Success    bool            `json:"success"`
	ActionType action.Kind     `json:"actionType"`
	Data       json.RawMessage `json:"data,omitempty"`
	Error      string          `json:"error,omitempty"`
	Duration   time.Duration   `json:"duration"`
	Timestamp  time.Time       `json:"timestamp"`
	Metadata   map[string]any  `json:"metadata,omitempty"`
}

// strategy runs one action variant against page and returns its raw data
// plus its own metadata (e.g. selector, or type and size for screenshot and
// pdf). The executor adds only truncated and size, and only when it
// truncates an oversized result.
type strategy func(ctx context.Context, page *pageman.Page, a *action.Action) (json.RawMessage, map[string]any, error)

var strategies = map[action.Kind]strategy{
	action.KindNavigate:   runNavigate,
	action.KindClick:      runClick,
	action.KindType:       runType,
	action.KindWait:       runWait,
	action.KindEvaluate:   runEvaluate,
	action.KindScreenshot: runScreenshot,
	action.KindScroll:     runScroll,
	action.KindSelect:     runSelect,
	action.KindKeyboard:   runKeyboard,
	action.KindMouse:      runMouse,
	action.KindPDF:        runPDF,
	action.KindCookie:     runCookie,
	action.KindContent:    runContent,
	action.KindClose:      runClose,
}

// Executor dispatches validated actions to their chromedp strategy and
// produces audited, size-capped results.
type Executor struct {
	pages *pageman.Manager
	audit *audit.Logger
	telem *telemetry.Collector
	log   *corelog.Logger

	maxResultBytes int
	timeouts       map[action.Kind]time.Duration
}

// New constructs an Executor backed by pages for page resolution, auditLog
// for per-action audit events, and telem for latency/error metrics (telem
// and log may be nil, disabling the corresponding instrumentation). cfg's
// DefaultTimeouts and MaxResultBytes override the package defaults; a zero
// cfg keeps them.
func New(pages *pageman.Manager, auditLog *audit.Logger, telem *telemetry.Collector, log *corelog.Logger, cfg config.ExecutorConfig) *Executor {
	if log == nil {
		log = corelog.NewDefault()
	}
	maxBytes := maxResultBytes
	if cfg.MaxResultBytes > 0 {
		maxBytes = cfg.MaxResultBytes
	}
	return &Executor{
		pages:          pages,
		audit:          auditLog,
		telem:          telem,
		log:            log,
		maxResultBytes: maxBytes,
		timeouts:       timeoutsFromConfig(cfg.DefaultTimeouts),
	}
}

// Execute runs a against the page pinned to contextID, owned by sessionID,
// attributed to userID in the audit trail.
func (e *Executor) Execute(ctx context.Context, contextID, sessionID, userID string, a *action.Action) Result {
	t0 := time.Now()

	if err := a.Validate(); err != nil {
		return e.finish(a, contextID, userID, "", t0, nil, nil, err)
	}

	page, err := e.pages.Resolve(ctx, contextID, sessionID)
	if err != nil {
		return e.finish(a, contextID, userID, "", t0, nil, nil, err)
	}

	timeout := a.Timeout
	if timeout <= 0 {
		timeout = e.timeouts[a.Type]
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	runCtx, cancel := context.WithTimeout(page.Context(), timeout)
	defer cancel()

	strat, ok := strategies[a.Type]
	if !ok {
		return e.finish(a, contextID, userID, page.ID, t0, nil, nil, coreerr.Newf(coreerr.Invalid, "no strategy registered for action type %q", a.Type))
	}

	data, meta, err := strat(runCtx, page, a)
	if err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			err = coreerr.Wrap(coreerr.Timeout, "action deadline exceeded", err)
		}
		e.pages.RecordBrowserError(page.BrowserID)
	}
	return e.finish(a, contextID, userID, page.ID, t0, data, meta, err)
}

func (e *Executor) finish(a *action.Action, contextID, userID, pageID string, t0 time.Time, data json.RawMessage, meta map[string]any, err error) Result {
	duration := time.Since(t0)
	res := Result{
		ActionType: a.Type,
		Duration:   duration,
		Timestamp:  t0,
	}

	if err != nil {
		res.Success = false
		res.Error = err.Error()
		e.log.Warn("action execution failed", zap.String("action_type", string(a.Type)), zap.String("page_id", pageID), zap.Error(err))
		if e.telem != nil {
			e.telem.ActionErrors.WithLabelValues(string(a.Type), string(coreerr.KindOf(err))).Inc()
		}
	} else {
		res.Success = true
		res.Data, res.Metadata = e.truncate(data, meta)
	}

	if e.telem != nil {
		e.telem.ActionDuration.WithLabelValues(string(a.Type)).Observe(duration.Seconds())
	}
	if e.audit != nil {
		e.audit.Record(audit.Event{
			UserID:     userID,
			ContextID:  contextID,
			PageID:     pageID,
			ActionType: string(a.Type),
			Success:    err == nil,
			Duration:   duration,
			ErrorKind:  string(coreerr.KindOf(err)),
		})
	}
	return res
}

// truncate replaces data with a {truncated, size} marker when its
// serialized size exceeds the Executor's configured maxResultBytes, so
// oversized payloads never reach logs or audit trails in full. The marker
// carries no type field.
func (e *Executor) truncate(data json.RawMessage, meta map[string]any) (json.RawMessage, map[string]any) {
	if len(data) <= e.maxResultBytes {
		return data, meta
	}
	if meta == nil {
		meta = map[string]any{}
	}
	meta["truncated"] = true
	meta["size"] = len(data)
	marker, _ := json.Marshal(map[string]any{
		"truncated": true,
		"size":      len(data),
	})
	return marker, meta
}
