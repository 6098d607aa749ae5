package session

import (
	"context"
	"testing"
	"time"

	"github.com/browsercore/browsercore/internal/config"
)

func TestFactoryMemoryType(t *testing.T) {
	f, err := New(config.StoreConfig{Type: "memory"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if f.GetHealthStatus().ActiveType != "memory" {
		t.Fatalf("ActiveType = %q, want memory", f.GetHealthStatus().ActiveType)
	}
	if f.GetHealthStatus().FallbackReason != "" {
		t.Fatalf("expected no fallback reason for explicit memory type")
	}
}

func TestFactoryAutoFallsBackToMemoryWithoutRedis(t *testing.T) {
	// The URL points at a port with no redis listening, so the startup ping
	// fails and auto-selection must fall back to memory with a recorded reason.
	f, err := New(config.StoreConfig{Type: "auto", URL: "redis://127.0.0.1:1/0"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	status := f.GetHealthStatus()
	if status.ActiveType != "memory" {
		t.Fatalf("ActiveType = %q, want memory fallback", status.ActiveType)
	}
	if status.FallbackReason == "" {
		t.Fatal("expected a fallback reason to be recorded")
	}
}

func TestFactoryUnknownTypeRejected(t *testing.T) {
	if _, err := New(config.StoreConfig{Type: "postgres"}); err == nil {
		t.Fatal("expected error for unknown store type")
	}
}

func TestFactoryBackupRestoreRoundTrip(t *testing.T) {
	f, err := New(config.StoreConfig{Type: "memory"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	id, err := f.Active().Create(ctx, Session{UserID: "u1", ExpiresAt: time.Now().Add(time.Hour)})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	backup, err := f.CreateBackup(ctx)
	if err != nil || len(backup) != 1 {
		t.Fatalf("CreateBackup: len=%d err=%v", len(backup), err)
	}

	if err := f.SwitchStoreType("memory"); err != nil {
		t.Fatalf("SwitchStoreType: %v", err)
	}
	if err := f.RestoreBackup(ctx, backup); err != nil {
		t.Fatalf("RestoreBackup: %v", err)
	}

	got, err := f.Active().Get(ctx, id)
	if err != nil || got == nil {
		t.Fatalf("expected session to survive backup/restore across switch: got=%v err=%v", got, err)
	}
}
