package coreerr

import (
	"errors"
	"testing"
)

func TestErrorMessageIncludesRule(t *testing.T) {
	err := New(Security, "dangerous pattern detected").WithRule("js.eval")
	want := "security: dangerous pattern detected (rule=js.eval)"
	if err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestErrorMessageWithoutRule(t *testing.T) {
	err := New(NotFound, "session missing")
	want := "not_found: session missing"
	if err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestIsMatchesByKindOnly(t *testing.T) {
	a := New(Conflict, "first")
	b := New(Conflict, "second")
	if !errors.Is(a, b) {
		t.Fatal("expected errors of the same kind to match via errors.Is")
	}

	c := New(Timeout, "third")
	if errors.Is(a, c) {
		t.Fatal("expected errors of different kinds not to match")
	}
}

func TestWrapPreservesCauseForUnwrap(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := Wrap(Unavailable, "store unreachable", cause)

	if !errors.Is(err, cause) {
		t.Fatal("expected wrapped cause to be reachable via errors.Is")
	}
	if errors.Unwrap(err) != cause {
		t.Fatal("expected Unwrap to return the original cause")
	}
}

func TestKindOfUnclassifiedErrorIsInternal(t *testing.T) {
	if got := KindOf(errors.New("boom")); got != Internal {
		t.Fatalf("KindOf(plain error) = %q, want %q", got, Internal)
	}
}

func TestKindOfCoreErrorReturnsItsKind(t *testing.T) {
	err := New(PermissionDenied, "no scope")
	if got := KindOf(err); got != PermissionDenied {
		t.Fatalf("KindOf() = %q, want %q", got, PermissionDenied)
	}
}

func TestIsKindHelper(t *testing.T) {
	err := New(Invalid, "bad field")
	if !IsKind(err, Invalid) {
		t.Fatal("expected IsKind to report true for matching kind")
	}
	if IsKind(err, Internal) {
		t.Fatal("expected IsKind to report false for non-matching kind")
	}
}
