// Package coreerr defines the error taxonomy shared by every core component.
// Components return *CoreError instead of ad hoc errors so callers and
// frontends can map failures to a stable, finite set of categories.
package coreerr

import (
	"errors"
	"fmt"
)

// Kind classifies a CoreError into one of a closed set of categories.
type Kind string

const (
	Invalid           Kind = "invalid"
	Unauthenticated   Kind = "unauthenticated"
	PermissionDenied  Kind = "permission_denied"
	NotFound          Kind = "not_found"
	Conflict          Kind = "conflict"
	Timeout           Kind = "timeout"
	Unavailable       Kind = "unavailable"
	Internal          Kind = "internal"
	Security          Kind = "security"
)

// CoreError is the error type returned by every core component. Rule names
// the specific validation or security rule that rejected the request, if any
// (e.g. a security-validator rule id); it is empty for errors that don't
// originate from a rule check.
type CoreError struct {
	Kind    Kind
	Message string
	Rule    string
	cause   error
}

func (e *CoreError) Error() string {
	if e.Rule != "" {
		return fmt.Sprintf("%s: %s (rule=%s)", e.Kind, e.Message, e.Rule)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *CoreError) Unwrap() error { return e.cause }

// Is reports whether target is a *CoreError with the same Kind, so
// errors.Is(err, coreerr.New(coreerr.NotFound, "")) works as a kind check.
func (e *CoreError) Is(target error) bool {
	var t *CoreError
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

// New constructs a CoreError with no wrapped cause.
func New(kind Kind, message string) *CoreError {
	return &CoreError{Kind: kind, Message: message}
}

// Newf constructs a CoreError with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *CoreError {
	return &CoreError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WithRule attaches a rule identifier (e.g. a security-validator rule name)
// to a CoreError and returns it for chaining.
func (e *CoreError) WithRule(rule string) *CoreError {
	e.Rule = rule
	return e
}

// Wrap constructs a CoreError that wraps an underlying cause, preserving it
// for errors.Unwrap/errors.As while presenting a stable Kind to callers.
func Wrap(kind Kind, message string, cause error) *CoreError {
	return &CoreError{Kind: kind, Message: message, cause: cause}
}

// KindOf extracts the Kind of err if it is (or wraps) a *CoreError, else
// returns Internal — the safe default for unclassified failures.
func KindOf(err error) Kind {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return Internal
}

// IsKind reports whether err is (or wraps) a *CoreError of the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
