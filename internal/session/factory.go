package session

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/browsercore/browsercore/internal/config"
	"github.com/browsercore/browsercore/internal/coreerr"
)

// HealthStatus is the Factory's point-in-time view of which backend is
// actually serving traffic and why.
type HealthStatus struct {
	ActiveType     string
	FallbackReason string
	Healthy        bool
}

// Factory selects and owns the active Store backend per the configured
// Store.Type (redis|memory|auto), and supports an online cutover between
// backends for migration.
type Factory struct {
	cfg config.StoreConfig

	mu             sync.RWMutex
	active         Store
	activeType     string
	fallbackReason string
}

// New selects and constructs the active backend. For type "auto" it probes
// a redis backend within a short startup timeout and falls back to memory,
// recording why.
func New(cfg config.StoreConfig) (*Factory, error) {
	f := &Factory{cfg: cfg}

	switch cfg.Type {
	case "memory":
		f.setActive(NewMemoryStore(), "memory", "")
		return f, nil
	case "redis":
		store, err := newRedisFromConfig(cfg)
		if err != nil {
			return nil, coreerr.Wrap(coreerr.Unavailable, "construct redis store", err)
		}
		f.setActive(store, "redis", "")
		return f, nil
	case "auto":
		store, err := newRedisFromConfig(cfg)
		if err == nil {
			probeCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			pingErr := store.Ping(probeCtx)
			cancel()
			if pingErr == nil {
				f.setActive(store, "redis", "")
				return f, nil
			}
			store.Close()
		}
		f.setActive(NewMemoryStore(), "memory", "redis unavailable at startup, falling back to memory")
		return f, nil
	default:
		return nil, coreerr.Newf(coreerr.Invalid, "unknown store type %q", cfg.Type)
	}
}

func newRedisFromConfig(cfg config.StoreConfig) (*RedisStore, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	return NewRedisStore(client, cfg.Prefix), nil
}

func (f *Factory) setActive(s Store, typ, reason string) {
	f.mu.Lock()
	f.active = s
	f.activeType = typ
	f.fallbackReason = reason
	f.mu.Unlock()
}

// Active returns the currently active Store backend.
func (f *Factory) Active() Store {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.active
}

// SwitchStoreType performs an online cutover to a freshly constructed
// backend of the given type, closing the previous one afterward. Callers
// are expected to have already run a Migrator pass so the new backend holds
// an equivalent data set.
func (f *Factory) SwitchStoreType(typ string) error {
	var next Store
	switch typ {
	case "memory":
		next = NewMemoryStore()
	case "redis":
		store, err := newRedisFromConfig(f.cfg)
		if err != nil {
			return coreerr.Wrap(coreerr.Unavailable, "construct redis store", err)
		}
		next = store
	default:
		return coreerr.Newf(coreerr.Invalid, "unknown store type %q", typ)
	}

	f.mu.Lock()
	prev := f.active
	f.active = next
	f.activeType = typ
	f.fallbackReason = ""
	f.mu.Unlock()

	if prev != nil {
		prev.Close()
	}
	return nil
}

// GetHealthStatus reports which backend is active and whether it was a
// fallback choice.
func (f *Factory) GetHealthStatus() HealthStatus {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return HealthStatus{
		ActiveType:     f.activeType,
		FallbackReason: f.fallbackReason,
		Healthy:        f.active != nil,
	}
}

// CreateBackup dumps every session in the active backend to an
// in-memory snapshot the caller can persist wherever it likes.
func (f *Factory) CreateBackup(ctx context.Context) ([]*Session, error) {
	return f.Active().Dump(ctx)
}

// RestoreBackup writes a previously created backup into the active backend.
func (f *Factory) RestoreBackup(ctx context.Context, sessions []*Session) error {
	return f.Active().Restore(ctx, sessions)
}

// Close releases the active backend's resources.
func (f *Factory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.active == nil {
		return nil
	}
	return f.active.Close()
}
