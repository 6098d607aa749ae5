package coreapi

import (
	"context"
	"time"

	"github.com/browsercore/browsercore/internal/action"
	"github.com/browsercore/browsercore/internal/auth"
	"github.com/browsercore/browsercore/internal/coreerr"
	"github.com/browsercore/browsercore/internal/eventbus"
	"github.com/browsercore/browsercore/internal/executor"
)

// Execute validates and runs a against the page pinned to contextID,
// honoring deadline, and returns the typed ActionResult. Requires
// CONTEXT_EXECUTE plus ownership of the context (same user id, or admin).
func (a *API) Execute(ctx context.Context, principal auth.Context, contextID string, act *action.Action, deadline time.Time) executor.Result {
	if !principal.HasPermission(auth.ContextExecute) {
		return failedResult(act, coreerr.New(coreerr.PermissionDenied, "missing CONTEXT_EXECUTE"))
	}

	c, err := a.contexts.Get(contextID)
	if err != nil {
		return failedResult(act, err)
	}
	if !principal.IsAdmin() && c.UserID != principal.UserID {
		return failedResult(act, coreerr.New(coreerr.PermissionDenied, "context is not owned by this user"))
	}
	if err := a.contexts.AssertOpen(contextID); err != nil {
		return failedResult(act, err)
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if !deadline.IsZero() {
		runCtx, cancel = context.WithDeadline(ctx, deadline)
		defer cancel()
	}

	res := a.exec.Execute(runCtx, contextID, c.SessionID, c.UserID, act)
	a.bus.Publish(eventbus.TopicActionExecuted, res)
	return res
}

func failedResult(act *action.Action, err error) executor.Result {
	kind := action.Kind("")
	if act != nil {
		kind = act.Type
	}
	return executor.Result{
		Success:    false,
		ActionType: kind,
		Error:      err.Error(),
		Timestamp:  time.Now(),
	}
}
