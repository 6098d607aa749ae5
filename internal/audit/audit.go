// Package audit emits structured audit events for executed actions. It
// never logs the action's full payload or result, only the facts needed to
// reconstruct who did what, when, and whether it succeeded.
package audit

import (
	"time"

	"go.uber.org/zap"

	"github.com/browsercore/browsercore/internal/corelog"
)

// Event is one audited action execution, per spec.md's
// (userId, contextId, pageId, actionType, success, duration) tuple.
type Event struct {
	UserID     string
	ContextID  string
	PageID     string
	ActionType string
	Success    bool
	Duration   time.Duration
	ErrorKind  string
}

// Logger emits audit events through a dedicated logger instance, kept
// separate from general application logging so audit output can be routed
// or retained independently.
type Logger struct {
	log *corelog.Logger
}

// New wraps a logger instance as an audit logger.
func New(log *corelog.Logger) *Logger {
	return &Logger{log: log.With(zap.String("channel", "audit"))}
}

// Record emits one audit event.
func (l *Logger) Record(e Event) {
	fields := []zap.Field{
		zap.String("user_id", e.UserID),
		zap.String("context_id", e.ContextID),
		zap.String("page_id", e.PageID),
		zap.String("action_type", e.ActionType),
		zap.Bool("success", e.Success),
		zap.Duration("duration", e.Duration),
	}
	if e.ErrorKind != "" {
		fields = append(fields, zap.String("error_kind", e.ErrorKind))
	}

	if e.Success {
		l.log.Info("action executed", fields...)
	} else {
		l.log.Warn("action failed", fields...)
	}
}
