// Package matchmaker implements the Matchmaker (C7, spec §4.7): a queue
// keyed by (bucket, joinedAt), progressively loosening bucket adjacency the
// longer the oldest entry has waited, and handing complete groups of four
// to the room registry to seat.
package matchmaker

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/baloot/server/internal/ratelimit"
	"github.com/baloot/server/internal/room"
)

// bucketWidth buckets players by Elo in bands of 100, an arbitrary but
// stable granularity; players with no Elo default to bucket 0.
const bucketWidth = 100

// Widening schedule (spec §4.7: "adjacency expands after 5/15/30s of wait").
var widenSchedule = []struct {
	after time.Duration
	width int
}{
	{0, 0},
	{5 * time.Second, 1},
	{15 * time.Second, 2},
	{30 * time.Second, 3},
}

// RoomCreator is the narrow registry capability the matchmaker needs (C6),
// kept as an interface for the same reason room.BotDispatcher is.
type RoomCreator interface {
	CreateRoom(ctx context.Context, settings room.Settings) (*room.Room, error)
}

// MatchFound is emitted to the gateway once a group of four is seated
// (spec §4.8 out-event "match_found{roomId, seatIndex}").
type MatchFound struct {
	SessionID string
	RoomID    string
	Seat      int
}

type entry struct {
	sessionID  string
	playerName string
	bucket     int
	joinedAt   time.Time
}

// Matchmaker owns the live queue. One instance serves the whole process.
type Matchmaker struct {
	mu      sync.Mutex
	buckets map[int][]*entry
	entries map[string]*entry // sessionID -> entry, for O(1) leave/status

	rooms    RoomCreator
	settings room.Settings
	limiter  *ratelimit.Limiter
	logger   zerolog.Logger

	wake  chan struct{}
	found chan MatchFound
}

func New(rooms RoomCreator, settings room.Settings, limiter *ratelimit.Limiter, logger zerolog.Logger) *Matchmaker {
	return &Matchmaker{
		buckets:  make(map[int][]*entry),
		entries:  make(map[string]*entry),
		rooms:    rooms,
		settings: settings,
		limiter:  limiter,
		logger:   logger.With().Str("component", "matchmaker").Logger(),
		wake:     make(chan struct{}, 1),
		found:    make(chan MatchFound, 16),
	}
}

func eloBucket(elo int) int {
	if elo <= 0 {
		return 0
	}
	return elo / bucketWidth
}

// Found is the channel the gateway reads match_found notifications from.
func (m *Matchmaker) Found() <-chan MatchFound { return m.found }

// Join enqueues sessionID (spec §4.7 queue_join, rate-limited ≤5/min).
// Idempotent: a session already queued just has its position preserved.
func (m *Matchmaker) Join(ctx context.Context, sessionID, playerName string, elo int) (queueSize int, err error) {
	if m.limiter != nil {
		if err := m.limiter.Allow(ctx, sessionID, ratelimit.EventQueueJoin); err != nil {
			return 0, err
		}
	}

	m.mu.Lock()
	if _, ok := m.entries[sessionID]; ok {
		size := m.queueSizeLocked()
		m.mu.Unlock()
		return size, nil
	}
	e := &entry{sessionID: sessionID, playerName: playerName, bucket: eloBucket(elo), joinedAt: time.Now()}
	m.entries[sessionID] = e
	m.buckets[e.bucket] = append(m.buckets[e.bucket], e)
	size := m.queueSizeLocked()
	m.mu.Unlock()

	m.signal()
	return size, nil
}

// Leave removes sessionID from the queue. Idempotent (spec §4.7).
func (m *Matchmaker) Leave(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[sessionID]
	if !ok {
		return
	}
	delete(m.entries, sessionID)
	bucket := m.buckets[e.bucket]
	for i, x := range bucket {
		if x == e {
			m.buckets[e.bucket] = append(bucket[:i], bucket[i+1:]...)
			break
		}
	}
}

// Status reports the current queue size and the average wait of everyone
// presently queued (spec §4.8 queue_status ack).
func (m *Matchmaker) Status() (queueSize int, avgWait time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.entries)
	if n == 0 {
		return 0, 0
	}
	var total time.Duration
	now := time.Now()
	for _, e := range m.entries {
		total += now.Sub(e.joinedAt)
	}
	return n, total / time.Duration(n)
}

func (m *Matchmaker) queueSizeLocked() int { return len(m.entries) }

func (m *Matchmaker) signal() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// Run is the pop/pair cycle (spec §5: "suspends on new-entry signals and a
// coarse timer to widen buckets"). It runs until ctx is cancelled.
func (m *Matchmaker) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.wake:
			m.tryPair(ctx)
		case <-ticker.C:
			m.tryPair(ctx)
		}
	}
}

// tryPair scans every bucket for a complete group of four, widening
// adjacency per widenSchedule based on how long the group's oldest member
// has waited, and forms a room for each group found until none is left.
func (m *Matchmaker) tryPair(ctx context.Context) {
	for {
		group, ok := m.popGroupOfFour()
		if !ok {
			return
		}
		m.formRoom(ctx, group)
	}
}

func (m *Matchmaker) popGroupOfFour() ([]*entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	buckets := make([]int, 0, len(m.buckets))
	for b, es := range m.buckets {
		if len(es) > 0 {
			buckets = append(buckets, b)
		}
	}
	sort.Ints(buckets)

	for _, b := range buckets {
		oldest := m.oldestInLocked(b)
		if oldest == nil {
			continue
		}
		width := widenFor(time.Since(oldest.joinedAt))
		group := m.collectAdjacentLocked(b, width)
		if len(group) >= 4 {
			chosen := group[:4]
			m.removeLocked(chosen)
			return chosen, true
		}
	}
	return nil, false
}

func (m *Matchmaker) oldestInLocked(bucket int) *entry {
	var oldest *entry
	for _, e := range m.buckets[bucket] {
		if oldest == nil || e.joinedAt.Before(oldest.joinedAt) {
			oldest = e
		}
	}
	return oldest
}

func (m *Matchmaker) collectAdjacentLocked(center, width int) []*entry {
	var out []*entry
	for b := center - width; b <= center+width; b++ {
		out = append(out, m.buckets[b]...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].joinedAt.Before(out[j].joinedAt) })
	return out
}

func (m *Matchmaker) removeLocked(chosen []*entry) {
	for _, e := range chosen {
		delete(m.entries, e.sessionID)
		bucket := m.buckets[e.bucket]
		for i, x := range bucket {
			if x == e {
				m.buckets[e.bucket] = append(bucket[:i], bucket[i+1:]...)
				break
			}
		}
	}
}

func widenFor(waited time.Duration) int {
	width := 0
	for _, step := range widenSchedule {
		if waited >= step.after {
			width = step.width
		}
	}
	return width
}

// formRoom asks the registry for a room and seats all four matched
// players concurrently, fanning the join submissions out via errgroup
// (spec §4.7: "Formation latency target ≤2s at steady state").
func (m *Matchmaker) formRoom(ctx context.Context, group []*entry) {
	r, err := m.rooms.CreateRoom(ctx, m.settings)
	if err != nil {
		m.logger.Warn().Err(err).Msg("failed to create room for matched group, re-queueing")
		m.requeue(group)
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, e := range group {
		e := e
		g.Go(func() error {
			return r.SubmitAction(gctx, room.Action{
				SessionID: e.sessionID,
				Kind:      room.ActionJoinSeat,
				Payload:   room.JoinSeatPayload{DisplayName: e.playerName},
			})
		})
	}
	if err := g.Wait(); err != nil {
		m.logger.Error().Err(err).Str("room_id", r.ID).Msg("failed to seat one or more matched players")
	}

	for i, e := range group {
		select {
		case m.found <- MatchFound{SessionID: e.sessionID, RoomID: r.ID, Seat: i}:
		default:
			m.logger.Warn().Str("session_id", e.sessionID).Msg("match_found channel full, notification dropped")
		}
	}
}

func (m *Matchmaker) requeue(group []*entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range group {
		e.joinedAt = time.Now()
		m.entries[e.sessionID] = e
		m.buckets[e.bucket] = append(m.buckets[e.bucket], e)
	}
}
