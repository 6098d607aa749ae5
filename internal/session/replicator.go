package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/browsercore/browsercore/internal/config"
	"github.com/browsercore/browsercore/internal/corelog"
	"github.com/browsercore/browsercore/internal/telemetry"
)

// OpKind names the primary mutation a replication op replays.
type OpKind string

const (
	OpCreate OpKind = "create"
	OpUpdate OpKind = "update"
	OpDelete OpKind = "delete"
	OpTouch  OpKind = "touch"
)

// ReplicationOp is one primary mutation fanned out to every replica.
type ReplicationOp struct {
	Kind    OpKind
	Session Session
	Patch   Patch
}

const maxReplicationRetries = 5

// replica is one configured secondary backend with its own bounded worker
// and consecutive-failure count.
type replica struct {
	name    string
	store   Store
	ops     chan ReplicationOp
	failures int
	active   bool
}

// Replicator fans out primary mutations to a set of replica stores. Each
// replica has its own bounded worker goroutine that replays ops with
// retry/exponential-backoff, mirroring the per-replica serial-worker
// ordering guarantee: ops for one replica are always applied in the order
// the primary emitted them.
type Replicator struct {
	cfg   config.ReplicationConfig
	log   *corelog.Logger
	telem *telemetry.Collector

	mu       sync.RWMutex
	replicas map[string]*replica

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewReplicator constructs a Replicator with no replicas registered yet.
func NewReplicator(cfg config.ReplicationConfig, log *corelog.Logger, telem *telemetry.Collector) *Replicator {
	return &Replicator{
		cfg:      cfg,
		log:      log,
		telem:    telem,
		replicas: make(map[string]*replica),
		stopCh:   make(chan struct{}),
	}
}

// AddReplica registers a replica store and starts its worker goroutine.
func (r *Replicator) AddReplica(name string, store Store) {
	rep := &replica{name: name, store: store, ops: make(chan ReplicationOp, r.cfg.BatchSize), active: true}

	r.mu.Lock()
	r.replicas[name] = rep
	r.mu.Unlock()

	r.wg.Add(1)
	go r.worker(rep)
}

// Enqueue fans out one primary mutation to every active replica. Deletes
// are dropped unless SyncDeletions is set; callers filter expired sessions
// themselves before calling Enqueue for create/update ops when
// !SyncExpired.
func (r *Replicator) Enqueue(op ReplicationOp) {
	if op.Kind == OpDelete && !r.cfg.SyncDeletions {
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rep := range r.replicas {
		if !rep.active {
			continue
		}
		select {
		case rep.ops <- op:
		default:
			r.log.Warn("replication queue full, dropping op", zap.String("replica", rep.name))
		}
	}
}

func (r *Replicator) worker(rep *replica) {
	defer r.wg.Done()
	for {
		select {
		case <-r.stopCh:
			return
		case op, ok := <-rep.ops:
			if !ok {
				return
			}
			r.applyWithRetry(rep, op)
		}
	}
}

func (r *Replicator) applyWithRetry(rep *replica, op ReplicationOp) {
	ctx := context.Background()
	backoff := 100 * time.Millisecond

	for attempt := 0; attempt < maxReplicationRetries; attempt++ {
		start := time.Now()
		err := r.apply(ctx, rep.store, op)
		if r.telem != nil {
			r.telem.ObserveReplicationLatency(rep.name, time.Since(start))
		}
		if err == nil {
			r.mu.Lock()
			rep.failures = 0
			rep.active = true
			r.mu.Unlock()
			return
		}

		r.log.Warn("replication attempt failed",
			zap.String("replica", rep.name), zap.Int("attempt", attempt), zap.Error(err))
		if r.telem != nil {
			r.telem.ReplicationErrors.WithLabelValues(rep.name).Inc()
		}

		select {
		case <-time.After(backoff):
		case <-r.stopCh:
			return
		}
		backoff *= 2
	}

	r.mu.Lock()
	rep.failures++
	if rep.failures >= maxReplicationRetries {
		rep.active = false
		r.log.Error("replica marked inactive after repeated failures", zap.String("replica", rep.name))
	}
	r.mu.Unlock()
}

func (r *Replicator) apply(ctx context.Context, store Store, op ReplicationOp) error {
	switch op.Kind {
	case OpCreate:
		s := op.Session
		return store.Restore(ctx, []*Session{&s})
	case OpUpdate:
		_, err := store.Update(ctx, op.Session.ID, op.Patch)
		return err
	case OpDelete:
		_, err := store.Delete(ctx, op.Session.ID)
		return err
	case OpTouch:
		_, err := store.Touch(ctx, op.Session.ID)
		return err
	}
	return nil
}

// ReconcileReplica performs a bulk reconcile against one replica, applying
// the configured conflict resolution strategy to every divergence found
// between the primary's session set and the replica's.
func (r *Replicator) ReconcileReplica(ctx context.Context, primary Store, name string) error {
	r.mu.RLock()
	rep, ok := r.replicas[name]
	r.mu.RUnlock()
	if !ok {
		return nil
	}

	primarySessions, err := primary.Dump(ctx)
	if err != nil {
		return err
	}
	replicaSessions, err := rep.store.Dump(ctx)
	if err != nil {
		return err
	}

	byID := make(map[string]*Session, len(replicaSessions))
	for _, s := range replicaSessions {
		byID[s.ID] = s
	}

	for _, ps := range primarySessions {
		if !r.cfg.SyncExpired && ps.Expired(time.Now()) {
			continue
		}
		rs, exists := byID[ps.ID]
		if !exists {
			rep.store.Restore(ctx, []*Session{ps})
			continue
		}
		if sessionsDiverge(ps, rs) {
			r.resolveConflict(ctx, rep.store, ps, rs)
		}
	}
	return nil
}

func sessionsDiverge(a, b *Session) bool {
	return a.LastAccessedAt != b.LastAccessedAt || len(a.Roles) != len(b.Roles)
}

func (r *Replicator) resolveConflict(ctx context.Context, replicaStore Store, primary, replica *Session) {
	switch r.cfg.ConflictResolution {
	case "last-write-wins":
		if primary.LastAccessedAt.After(replica.LastAccessedAt) {
			replicaStore.Restore(ctx, []*Session{primary})
		}
	case "oldest-wins":
		if primary.CreatedAt.Before(replica.CreatedAt) {
			replicaStore.Restore(ctx, []*Session{primary})
		}
	case "manual":
		r.log.Warn("session divergence recorded for manual resolution",
			zap.String("session_id", primary.ID))
	}
}

// Stop halts every replica worker and waits for them to exit.
func (r *Replicator) Stop() {
	close(r.stopCh)
	r.wg.Wait()
}
