package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestApplyDefaultsFillsZeroValues(t *testing.T) {
	var cfg CoreConfig
	cfg.ApplyDefaults()

	if cfg.Pool.MinBrowsers != 1 {
		t.Errorf("MinBrowsers = %d, want 1", cfg.Pool.MinBrowsers)
	}
	if cfg.Pool.MaxBrowsers != 5 {
		t.Errorf("MaxBrowsers = %d, want 5", cfg.Pool.MaxBrowsers)
	}
	if cfg.Store.Type != "auto" {
		t.Errorf("Store.Type = %q, want auto", cfg.Store.Type)
	}
	if cfg.Store.Replication.ConflictResolution != "last-write-wins" {
		t.Errorf("ConflictResolution = %q, want last-write-wins", cfg.Store.Replication.ConflictResolution)
	}
	if cfg.Executor.MaxResultBytes != 100*1024 {
		t.Errorf("MaxResultBytes = %d, want %d", cfg.Executor.MaxResultBytes, 100*1024)
	}
}

func TestApplyDefaultsClampsMaxBelowMin(t *testing.T) {
	cfg := CoreConfig{Pool: PoolConfig{MinBrowsers: 10, MaxBrowsers: 2}}
	cfg.ApplyDefaults()
	if cfg.Pool.MaxBrowsers != 10 {
		t.Errorf("MaxBrowsers = %d, want clamped to MinBrowsers (10)", cfg.Pool.MaxBrowsers)
	}
}

func TestValidateRejectsUnknownStoreType(t *testing.T) {
	cfg := Default()
	cfg.Store.Type = "postgres"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown store type")
	}
}

func TestValidateRejectsUnknownConflictResolution(t *testing.T) {
	cfg := Default()
	cfg.Store.Replication.ConflictResolution = "coinflip"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown conflict resolution")
	}
}

func TestLoadFromFileRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "core.yaml")
	doc := `
pool:
  min_browsers: 2
  max_browsers: 8
store:
  type: redis
  url: "redis://localhost:6379/0"
executor:
  max_result_bytes: 2048
`
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if cfg.Pool.MinBrowsers != 2 || cfg.Pool.MaxBrowsers != 8 {
		t.Errorf("pool = %+v, want min=2 max=8", cfg.Pool)
	}
	if cfg.Store.Type != "redis" || cfg.Store.URL != "redis://localhost:6379/0" {
		t.Errorf("store = %+v", cfg.Store)
	}
	if cfg.Executor.MaxResultBytes != 2048 {
		t.Errorf("MaxResultBytes = %d, want 2048", cfg.Executor.MaxResultBytes)
	}
	// fields left unset in the YAML still get defaults applied.
	if cfg.Executor.DefaultTimeouts.Navigate != 30*time.Second {
		t.Errorf("Navigate timeout = %v, want default 30s", cfg.Executor.DefaultTimeouts.Navigate)
	}
}

func TestLoadFromFileMissingFile(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestReloaderDebouncesAndNotifies(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "core.yaml")
	if err := os.WriteFile(path, []byte("pool:\n  min_browsers: 1\n"), 0644); err != nil {
		t.Fatal(err)
	}

	r := NewReloader(path)
	r.SetDebounceDelay(20 * time.Millisecond)
	if err := r.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer r.Stop()

	changed := make(chan *CoreConfig, 1)
	r.OnChange(func(cfg *CoreConfig) {
		select {
		case changed <- cfg:
		default:
		}
	})

	if err := os.WriteFile(path, []byte("pool:\n  min_browsers: 4\n"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-changed:
		if cfg.Pool.MinBrowsers != 4 {
			t.Errorf("reloaded MinBrowsers = %d, want 4", cfg.Pool.MinBrowsers)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reload callback")
	}
}
