// Package ratelimit implements the sliding-window counters of spec §4.9:
// per (sessionId, eventKind) buckets backed by the shared key-value store's
// atomic increment+expire, degrading to a process-local counter when the
// store is unreachable (spec §7).
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/baloot/server/internal/apperr"
	"github.com/baloot/server/internal/kv"
)

// EventKind names a rate-limited event class (spec §4.9 default buckets).
type EventKind string

const (
	EventQueueJoin EventKind = "queue_join"
	EventPlay      EventKind = "play"
	EventChat      EventKind = "chat"
)

// Rule is one sliding-window bucket: at most Limit events per Window.
type Rule struct {
	Limit  int64
	Window time.Duration
}

// DefaultRules are spec §4.9's documented default buckets.
var DefaultRules = map[EventKind]Rule{
	EventQueueJoin: {Limit: 5, Window: time.Minute},
	EventPlay:      {Limit: 30, Window: time.Minute},
	EventChat:      {Limit: 20, Window: time.Minute},
}

// Limiter enforces DefaultRules (or a caller-supplied override set) against
// a kv.Store. One Limiter is shared by the whole gateway.
type Limiter struct {
	store kv.Store
	rules map[EventKind]Rule
}

func New(store kv.Store) *Limiter {
	return &Limiter{store: store, rules: DefaultRules}
}

// WithRules returns a copy of the limiter using a custom rule set, for
// tests or deployments that tune the defaults.
func (l *Limiter) WithRules(rules map[EventKind]Rule) *Limiter {
	return &Limiter{store: l.store, rules: rules}
}

// Allow increments the (sessionID, kind) counter and reports whether it is
// still within the configured limit. The store call itself is bounded by
// ctx (spec §5: "rate-limit store call: 200ms").
func (l *Limiter) Allow(ctx context.Context, sessionID string, kind EventKind) error {
	rule, ok := l.rules[kind]
	if !ok {
		return nil // unthrottled event kind
	}
	ctx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()

	key := fmt.Sprintf("rl:%s:%s", sessionID, kind)
	n, err := l.store.Incr(ctx, key, rule.Window)
	if err != nil {
		// The store's own Fallback already degraded internally; a bare
		// error here means even the local fallback failed, which we treat
		// as "allow" rather than locking every client out (spec §7 policy:
		// degrade, never compound into a client-visible outage).
		return nil
	}
	if n > rule.Limit {
		return apperr.New(apperr.RateLimited, fmt.Sprintf("%s exceeds %d per %s", kind, rule.Limit, rule.Window))
	}
	return nil
}
