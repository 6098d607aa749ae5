package ratelimit

import "testing"

func TestAllowRespectsBurstPerKey(t *testing.T) {
	l := New(1, 2)

	if !l.Allow("a") {
		t.Fatal("expected first request for key a to be allowed")
	}
	if !l.Allow("a") {
		t.Fatal("expected second request for key a (within burst) to be allowed")
	}
	if l.Allow("a") {
		t.Fatal("expected third immediate request for key a to be denied")
	}
}

func TestAllowIsIndependentPerKey(t *testing.T) {
	l := New(1, 1)

	if !l.Allow("a") {
		t.Fatal("expected key a to be allowed")
	}
	if l.Allow("a") {
		t.Fatal("expected key a's second immediate request to be denied")
	}
	if !l.Allow("b") {
		t.Fatal("expected key b to have its own independent bucket")
	}
}

func TestForgetRemovesBucket(t *testing.T) {
	l := New(1, 1)
	l.Allow("a")
	if l.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", l.Len())
	}
	l.Forget("a")
	if l.Len() != 0 {
		t.Fatalf("Len() = %d, want 0 after Forget", l.Len())
	}
}
