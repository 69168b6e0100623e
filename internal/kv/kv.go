// Package kv is the thin shared key-value wrapper used by the rate limiter
// and session store (spec §5 "the key-value store is shared across
// processes; it is the only write-shared resource between the game server
// and bot workers", §6 persisted-state layout). It backs onto Redis via
// go-redis/v9, with a process-local in-memory fallback applied whenever the
// store is unreachable (spec §7 "key-value store failure... falls back to
// process-local").
package kv

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Store is the narrow surface every caller needs: atomic increment with a
// sliding expiry (C9) and plain get/set with TTL (C10 session records).
type Store interface {
	// Incr increments key by 1, re-arms its TTL to ttl on every call
	// (sliding expiry), and returns the post-increment count.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// RedisStore is the primary Store backed by a real Redis (or Redis-wire
// compatible) instance, as configured by spec §6's KV_URL.
type RedisStore struct {
	client *redis.Client
	logger zerolog.Logger
}

// NewRedisStore dials a Redis client from a redis:// URL. Connection is
// lazy: dialing errors surface on first use, letting callers degrade to a
// fallback rather than failing startup.
func NewRedisStore(rawURL string, logger zerolog.Logger) (*RedisStore, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, err
	}
	return &RedisStore{
		client: redis.NewClient(opts),
		logger: logger.With().Str("component", "kv_redis").Logger(),
	}, nil
}

func (s *RedisStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, ttl) // re-armed every hit; callers pass a fixed window length
	_, err := pipe.Exec(ctx)
	if err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

func (s *RedisStore) Del(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

// Close releases the underlying connection pool.
func (s *RedisStore) Close() error { return s.client.Close() }

// LocalStore is the process-local fallback: a mutex-guarded map with lazy
// expiry, used when Redis is unreachable (spec §7 transient-infrastructure
// degrade path) or in tests/single-process deployments.
type LocalStore struct {
	mu   sync.Mutex
	data map[string]localEntry
}

type localEntry struct {
	value   string
	count   int64
	expires time.Time
}

func NewLocalStore() *LocalStore {
	return &LocalStore{data: make(map[string]localEntry)}
}

func (s *LocalStore) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	e, ok := s.data[key]
	if !ok || now.After(e.expires) {
		e = localEntry{count: 0}
	}
	e.count++
	e.expires = now.Add(ttl)
	s.data[key] = e
	return e.count, nil
}

func (s *LocalStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.data[key]
	if !ok || (!e.expires.IsZero() && time.Now().After(e.expires)) {
		return "", false, nil
	}
	return e.value, true, nil
}

func (s *LocalStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var expires time.Time
	if ttl > 0 {
		expires = time.Now().Add(ttl)
	}
	s.data[key] = localEntry{value: value, expires: expires}
	return nil
}

func (s *LocalStore) Del(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// Fallback wraps a primary Store (normally RedisStore) and a LocalStore,
// routing to local whenever the primary call errors. Every degrade is
// logged once per call at warn level; it is not fatal (spec §7).
type Fallback struct {
	primary Store
	local   *LocalStore
	logger  zerolog.Logger
}

func NewFallback(primary Store, logger zerolog.Logger) *Fallback {
	return &Fallback{primary: primary, local: NewLocalStore(), logger: logger.With().Str("component", "kv_fallback").Logger()}
}

func (f *Fallback) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if f.primary == nil {
		return f.local.Incr(ctx, key, ttl)
	}
	n, err := f.primary.Incr(ctx, key, ttl)
	if err != nil {
		f.logger.Warn().Err(err).Str("key", key).Msg("kv store unreachable, using local fallback")
		return f.local.Incr(ctx, key, ttl)
	}
	return n, nil
}

func (f *Fallback) Get(ctx context.Context, key string) (string, bool, error) {
	if f.primary == nil {
		return f.local.Get(ctx, key)
	}
	v, ok, err := f.primary.Get(ctx, key)
	if err != nil {
		f.logger.Warn().Err(err).Str("key", key).Msg("kv store unreachable, using local fallback")
		return f.local.Get(ctx, key)
	}
	return v, ok, nil
}

func (f *Fallback) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if f.primary == nil {
		return f.local.Set(ctx, key, value, ttl)
	}
	if err := f.primary.Set(ctx, key, value, ttl); err != nil {
		f.logger.Warn().Err(err).Str("key", key).Msg("kv store unreachable, using local fallback")
		return f.local.Set(ctx, key, value, ttl)
	}
	// Best-effort mirror so a later primary outage still has a recent copy.
	_ = f.local.Set(ctx, key, value, ttl)
	return nil
}

func (f *Fallback) Del(ctx context.Context, key string) error {
	_ = f.local.Del(ctx, key)
	if f.primary == nil {
		return nil
	}
	if err := f.primary.Del(ctx, key); err != nil {
		f.logger.Warn().Err(err).Str("key", key).Msg("kv store unreachable on delete")
		return nil
	}
	return nil
}
