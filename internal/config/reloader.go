package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ChangeCallback is invoked with the newly loaded config whenever the file
// changes on disk.
type ChangeCallback func(newCfg *CoreConfig)

// Reloader watches a config file for changes and reloads it, debouncing
// bursts of filesystem events (editors frequently write a file twice in
// quick succession) before notifying subscribers. Only the fields documented
// as live-safe (logging level, pool min/max, store monitoring thresholds)
// should actually be applied by callbacks; the rest require a process
// restart even though the file is re-parsed in full.
type Reloader struct {
	configPath string

	mu     sync.RWMutex
	config *CoreConfig

	watcher *fsnotify.Watcher

	cbMu      sync.RWMutex
	callbacks []ChangeCallback

	debounceMu    sync.Mutex
	debounceTimer *time.Timer
	debounceDelay time.Duration

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewReloader creates a Reloader for the given path. Call Load once to
// obtain the initial config, then Start to begin watching for changes.
func NewReloader(configPath string) *Reloader {
	return &Reloader{
		configPath:    configPath,
		debounceDelay: time.Second,
		stopCh:        make(chan struct{}),
	}
}

// SetDebounceDelay overrides the default 1 second debounce window.
func (r *Reloader) SetDebounceDelay(delay time.Duration) {
	r.debounceMu.Lock()
	defer r.debounceMu.Unlock()
	r.debounceDelay = delay
}

// OnChange registers a callback fired after every successful reload.
func (r *Reloader) OnChange(cb ChangeCallback) {
	r.cbMu.Lock()
	defer r.cbMu.Unlock()
	r.callbacks = append(r.callbacks, cb)
}

// Config returns the current config snapshot.
func (r *Reloader) Config() *CoreConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.config
}

// Load performs the initial synchronous load.
func (r *Reloader) Load() error {
	cfg, err := LoadFromFile(r.configPath)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.config = cfg
	r.mu.Unlock()
	return nil
}

// Start loads the config and begins watching its containing directory for
// changes (directory watching survives editors that write via
// rename-over-original, which a direct file watch would miss).
func (r *Reloader) Start() error {
	if err := r.Load(); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	r.watcher = watcher

	dir := filepath.Dir(r.configPath)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch config directory: %w", err)
	}

	r.wg.Add(1)
	go r.watch()
	return nil
}

// Stop stops watching and waits for the watch goroutine to exit.
func (r *Reloader) Stop() error {
	close(r.stopCh)
	if r.watcher != nil {
		r.watcher.Close()
	}
	r.debounceMu.Lock()
	if r.debounceTimer != nil {
		r.debounceTimer.Stop()
	}
	r.debounceMu.Unlock()
	r.wg.Wait()
	return nil
}

func (r *Reloader) watch() {
	defer r.wg.Done()
	base := filepath.Base(r.configPath)

	for {
		select {
		case <-r.stopCh:
			return
		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				r.triggerReload()
			}
		case _, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

func (r *Reloader) triggerReload() {
	r.debounceMu.Lock()
	defer r.debounceMu.Unlock()
	if r.debounceTimer != nil {
		r.debounceTimer.Stop()
	}
	r.debounceTimer = time.AfterFunc(r.debounceDelay, r.reload)
}

func (r *Reloader) reload() {
	newCfg, err := LoadFromFile(r.configPath)
	if err != nil {
		return
	}

	r.mu.Lock()
	r.config = newCfg
	r.mu.Unlock()

	r.cbMu.RLock()
	callbacks := append([]ChangeCallback(nil), r.callbacks...)
	r.cbMu.RUnlock()

	for _, cb := range callbacks {
		cb(newCfg)
	}
}
