package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/browsercore/browsercore/internal/coreerr"
)

// RedisStore is the external-KV Store backend. Records live at
// session:{id} with TTL set to the session's remaining lifetime;
// user_sessions:{userId} holds a set of session ids with a TTL slightly
// longer than the longest-lived member, so the index never meaningfully
// outlives its sessions but tolerates slight clock skew between the two
// keys' expirations.
type RedisStore struct {
	client *redis.Client
	prefix string
}

const userIndexGrace = 5 * time.Minute

// NewRedisStore wraps an existing client. The caller owns the client's
// lifecycle (created by the Factory from Store config).
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "browsercore"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (r *RedisStore) sessionKey(id string) string { return fmt.Sprintf("%s:session:%s", r.prefix, id) }
func (r *RedisStore) userKey(userID string) string {
	return fmt.Sprintf("%s:user_sessions:%s", r.prefix, userID)
}

// Ping probes connectivity, used by the Factory's auto-selection startup
// probe and by the Monitor's periodic health check.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) Create(ctx context.Context, data Session) (string, error) {
	if data.UserID == "" {
		return "", coreerr.New(coreerr.Invalid, "userId must not be empty")
	}
	now := time.Now()
	if data.ExpiresAt.IsZero() || !data.ExpiresAt.After(now) {
		return "", coreerr.New(coreerr.Invalid, "expiresAt must be in the future")
	}

	id, err := NewID()
	if err != nil {
		return "", coreerr.Wrap(coreerr.Internal, "generate session id", err)
	}
	data.ID = id
	data.CreatedAt = now
	data.LastAccessedAt = now

	if err := r.writeIndexed(ctx, &data); err != nil {
		return "", err
	}
	return id, nil
}

// writeIndexed performs the session-record write and user-index update as a
// single pipelined round trip so the two keys never observe a torn state.
func (r *RedisStore) writeIndexed(ctx context.Context, s *Session) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return coreerr.Wrap(coreerr.Internal, "marshal session", err)
	}
	ttl := time.Until(s.ExpiresAt)
	if ttl <= 0 {
		return coreerr.New(coreerr.Invalid, "expiresAt must be in the future")
	}

	_, err = r.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, r.sessionKey(s.ID), payload, ttl)
		p.SAdd(ctx, r.userKey(s.UserID), s.ID)
		p.Expire(ctx, r.userKey(s.UserID), ttl+userIndexGrace)
		return nil
	})
	if err != nil {
		return coreerr.Wrap(coreerr.Unavailable, "redis pipeline failed", err)
	}
	return nil
}

func (r *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	raw, err := r.client.Get(ctx, r.sessionKey(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, coreerr.Wrap(coreerr.Unavailable, "redis get failed", err)
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, coreerr.Wrap(coreerr.Internal, "unmarshal session", err)
	}
	if s.Expired(time.Now()) {
		return nil, nil
	}
	return &s, nil
}

func (r *RedisStore) Update(ctx context.Context, id string, patch Patch) (*Session, error) {
	s, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, coreerr.New(coreerr.NotFound, "session not found")
	}

	if patch.Roles != nil {
		s.Roles = *patch.Roles
	}
	if patch.Metadata != nil {
		if s.Metadata == nil {
			s.Metadata = make(map[string]string, len(patch.Metadata))
		}
		for k, v := range patch.Metadata {
			s.Metadata[k] = v
		}
	}
	if patch.ExpiresAt != nil {
		if !patch.ExpiresAt.After(s.CreatedAt) {
			return nil, coreerr.New(coreerr.Invalid, "expiresAt must be after createdAt")
		}
		s.ExpiresAt = *patch.ExpiresAt
	}

	if err := r.writeIndexed(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *RedisStore) Delete(ctx context.Context, id string) (bool, error) {
	s, err := r.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if s == nil {
		return false, nil
	}

	_, err = r.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, r.sessionKey(id))
		p.SRem(ctx, r.userKey(s.UserID), id)
		return nil
	})
	if err != nil {
		return false, coreerr.Wrap(coreerr.Unavailable, "redis pipeline failed", err)
	}
	return true, nil
}

func (r *RedisStore) Touch(ctx context.Context, id string) (bool, error) {
	s, err := r.Get(ctx, id)
	if err != nil || s == nil {
		return false, err
	}
	s.LastAccessedAt = time.Now()
	if err := r.writeIndexed(ctx, s); err != nil {
		return false, err
	}
	return true, nil
}

func (r *RedisStore) ListByUser(ctx context.Context, userID string) ([]*Session, error) {
	ids, err := r.client.SMembers(ctx, r.userKey(userID)).Result()
	if err != nil {
		return nil, coreerr.Wrap(coreerr.Unavailable, "redis smembers failed", err)
	}

	out := make([]*Session, 0, len(ids))
	for _, id := range ids {
		s, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if s != nil {
			out = append(out, s)
		} else {
			r.client.SRem(ctx, r.userKey(userID), id)
		}
	}
	return out, nil
}

func (r *RedisStore) Exists(ctx context.Context, id string) (bool, error) {
	n, err := r.client.Exists(ctx, r.sessionKey(id)).Result()
	if err != nil {
		return false, coreerr.Wrap(coreerr.Unavailable, "redis exists failed", err)
	}
	return n > 0, nil
}

// Clear is an admin-only bulk wipe, scoped to this store's key prefix so it
// never touches unrelated keyspaces sharing the same Redis instance.
func (r *RedisStore) Clear(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, r.prefix+":*", 1000).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return coreerr.Wrap(coreerr.Unavailable, "redis scan failed", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return coreerr.Wrap(coreerr.Unavailable, "redis del failed", err)
	}
	return nil
}

// Dump scans every session key under this store's prefix. Scan is O(n) over
// the whole keyspace; acceptable for backup/migration, which are
// infrequent, bounded-size operations, not a hot path.
func (r *RedisStore) Dump(ctx context.Context) ([]*Session, error) {
	pattern := fmt.Sprintf("%s:session:*", r.prefix)
	iter := r.client.Scan(ctx, 0, pattern, 1000).Iterator()

	var out []*Session
	for iter.Next(ctx) {
		raw, err := r.client.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			continue
		}
		var s Session
		if err := json.Unmarshal(raw, &s); err != nil {
			continue
		}
		if !s.Expired(time.Now()) {
			out = append(out, &s)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, coreerr.Wrap(coreerr.Unavailable, "redis scan failed", err)
	}
	return out, nil
}

// Restore writes back a previously dumped session set, preserving each
// record's id and expiry.
func (r *RedisStore) Restore(ctx context.Context, sessions []*Session) error {
	for _, s := range sessions {
		if s.Expired(time.Now()) {
			continue
		}
		if err := r.writeIndexed(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func (r *RedisStore) Close() error { return r.client.Close() }
