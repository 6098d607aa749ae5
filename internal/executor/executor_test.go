package executor

import (
	"context"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/browsercore/browsercore/internal/action"
	"github.com/browsercore/browsercore/internal/audit"
	"github.com/browsercore/browsercore/internal/browserpool"
	"github.com/browsercore/browsercore/internal/config"
	"github.com/browsercore/browsercore/internal/corelog"
	"github.com/browsercore/browsercore/internal/pageman"
)

func newTestExecutor() (*Executor, *observer.ObservedLogs) {
	pool := browserpool.NewTestingPool(config.PoolConfig{MinBrowsers: 1, MaxBrowsers: 1}, "b1")
	pages := pageman.New(pool)
	core, logs := observer.New(zapcore.DebugLevel)
	auditLog := audit.New(corelog.FromZap(zap.New(core)))
	return New(pages, auditLog, nil, corelog.NewDefault(), config.ExecutorConfig{}), logs
}

func TestExecuteFailsValidationBeforeResolvingPage(t *testing.T) {
	e, logs := newTestExecutor()

	a := &action.Action{Type: action.KindClick, Click: &action.ClickParams{}}
	res := e.Execute(context.Background(), "ctx1", "session1", "user1", a)

	if res.Success {
		t.Fatal("expected a validation failure")
	}
	if res.Error == "" {
		t.Fatal("expected an error message")
	}
	if res.ActionType != action.KindClick {
		t.Fatalf("ActionType = %q, want click", res.ActionType)
	}

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(entries))
	}
	if entries[0].Level != zapcore.WarnLevel {
		t.Errorf("audit level = %v, want warn", entries[0].Level)
	}
}

func TestExecuteRejectsDangerousEvaluateBeforeResolvingPage(t *testing.T) {
	pool := browserpool.NewTestingPool(config.PoolConfig{MinBrowsers: 1, MaxBrowsers: 1}, "b1")
	pages := pageman.New(pool)
	auditLog := audit.New(corelog.NewDefault())
	e := New(pages, auditLog, nil, corelog.NewDefault(), config.ExecutorConfig{})

	a := &action.Action{Type: action.KindEvaluate, Evaluate: &action.EvaluateParams{Function: "eval('2+2')"}}
	res := e.Execute(context.Background(), "ctx-sv", "session1", "user1", a)

	if res.Success {
		t.Fatal("expected the dangerous evaluate to be rejected")
	}
	if !strings.Contains(res.Error, "eval") {
		t.Fatalf("Error = %q, want it to name the rejected eval() construct", res.Error)
	}
	if m := pool.GetMetrics(); m.Idle != 1 || m.Active != 0 {
		t.Fatalf("pool metrics = %+v, want idle=1 active=0: a security-rejected evaluate must never reach the page manager", m)
	}
}

func TestExecuteFailsOnCrossSessionPage(t *testing.T) {
	e, _ := newTestExecutor()

	first := &action.Action{Type: action.KindNavigate, Navigate: &action.NavigateParams{URL: "https://example.com"}}
	// Validation+strategy dispatch for navigate would require a real browser;
	// force the cross-session PermissionDenied path instead, which returns
	// before the strategy ever runs.
	_ = first

	pagesOwner := e.pages
	if _, err := pagesOwner.Resolve(context.Background(), "ctx1", "session1"); err != nil {
		t.Fatalf("seed Resolve: %v", err)
	}

	a := &action.Action{Type: action.KindContent, Content: &action.ContentParams{}}
	res := e.Execute(context.Background(), "ctx1", "session2", "user2", a)

	if res.Success {
		t.Fatal("expected a permission failure for a session mismatch")
	}
}

func TestExecuteRejectsUnknownStrategy(t *testing.T) {
	e, _ := newTestExecutor()

	// An action whose Type has no entry in the strategies table is rejected
	// by Action.Validate as an unknown type before any page is resolved.
	a := &action.Action{Type: action.Kind("nonexistent"), Close: &action.CloseParams{}}
	res := e.Execute(context.Background(), "ctx2", "session1", "user1", a)
	if res.Success {
		t.Fatal("expected failure for an unknown action type")
	}
}

func TestTruncateLeavesSmallDataAlone(t *testing.T) {
	e, _ := newTestExecutor()
	small := []byte(`{"ok":true}`)
	data, meta := e.truncate(small, map[string]any{"k": "v"})
	if string(data) != string(small) {
		t.Fatalf("data = %s, want unchanged", data)
	}
	if meta["truncated"] != nil {
		t.Fatal("did not expect a truncated marker for small data")
	}
}

func TestTruncateReplacesOversizedData(t *testing.T) {
	e, _ := newTestExecutor()
	big := []byte(`"` + strings.Repeat("a", maxResultBytes+1) + `"`)
	data, meta := e.truncate(big, nil)
	if len(data) >= len(big) {
		t.Fatal("expected truncated data to be much smaller than the original")
	}
	if meta["truncated"] != true {
		t.Fatalf("meta[truncated] = %v, want true", meta["truncated"])
	}
	if meta["size"] != len(big) {
		t.Fatalf("meta[size] = %v, want %d", meta["size"], len(big))
	}
}

func TestNewAppliesConfiguredResultByteCapAndTimeouts(t *testing.T) {
	pool := browserpool.NewTestingPool(config.PoolConfig{MinBrowsers: 1, MaxBrowsers: 1}, "b1")
	pages := pageman.New(pool)
	auditLog := audit.New(corelog.NewDefault())
	cfg := config.ExecutorConfig{
		MaxResultBytes:  16,
		DefaultTimeouts: config.TimeoutsConfig{Navigate: 7 * time.Second},
	}
	e := New(pages, auditLog, nil, corelog.NewDefault(), cfg)

	if e.maxResultBytes != 16 {
		t.Fatalf("maxResultBytes = %d, want 16", e.maxResultBytes)
	}
	if got := e.timeouts[action.KindNavigate]; got != 7*time.Second {
		t.Fatalf("navigate timeout = %v, want 7s", got)
	}
	if got := e.timeouts[action.KindClick]; got != defaultTimeouts[action.KindClick] {
		t.Fatalf("click timeout = %v, want unchanged default %v", got, defaultTimeouts[action.KindClick])
	}
}

func TestDefaultTimeoutsCoverEveryVariant(t *testing.T) {
	for _, kind := range []action.Kind{
		action.KindNavigate, action.KindClick, action.KindType, action.KindWait,
		action.KindEvaluate, action.KindScreenshot, action.KindScroll, action.KindSelect,
		action.KindKeyboard, action.KindMouse, action.KindPDF, action.KindCookie,
		action.KindContent, action.KindClose,
	} {
		if _, ok := defaultTimeouts[kind]; !ok {
			t.Errorf("no default timeout registered for %q", kind)
		}
	}
}

func TestStrategiesCoverEveryVariant(t *testing.T) {
	for kind := range defaultTimeouts {
		if _, ok := strategies[kind]; !ok {
			t.Errorf("no strategy registered for %q", kind)
		}
	}
}

func TestExecuteRecordsActionDuration(t *testing.T) {
	e, _ := newTestExecutor()
	a := &action.Action{Type: action.KindSelect, Select: &action.SelectParams{}}
	res := e.Execute(context.Background(), "ctx3", "session1", "user1", a)
	if res.Duration <= 0 {
		t.Fatal("expected a positive duration to be recorded even on failure")
	}
	if res.Timestamp.After(time.Now()) {
		t.Fatal("expected the timestamp to be in the past")
	}
}
