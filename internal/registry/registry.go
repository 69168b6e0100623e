// Package registry implements the Room Registry (C6, spec §4.6): the
// process-wide roomId -> Room map and its sessionId -> roomId index,
// capacity enforcement, and idle/crash eviction. Registry state is
// process-local; reads and writes are guarded by a lightweight mutex and
// are expected to complete in O(1) (spec §5).
package registry

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/baloot/server/internal/apperr"
	"github.com/baloot/server/internal/room"
)

// DefaultMaxRooms is spec §6's documented MAX_ROOMS default.
const DefaultMaxRooms = 500

// Registry owns every live Room and the session index pointing into it.
type Registry struct {
	mu           sync.RWMutex
	rooms        map[string]*room.Room
	sessionIndex map[string]string // sessionId -> roomId

	maxRooms  int
	idleEvict time.Duration
	bots      room.BotDispatcher
	logger    zerolog.Logger
}

func New(maxRooms int, idleEvict time.Duration, bots room.BotDispatcher, logger zerolog.Logger) *Registry {
	if maxRooms <= 0 {
		maxRooms = DefaultMaxRooms
	}
	return &Registry{
		rooms:        make(map[string]*room.Room),
		sessionIndex: make(map[string]string),
		maxRooms:     maxRooms,
		idleEvict:    idleEvict,
		bots:         bots,
		logger:       logger.With().Str("component", "registry").Logger(),
	}
}

// CreateRoom allocates and starts a new Room, failing with ROOM_LIMIT once
// the process-wide cap is reached (spec §4.2 Capacity, §4.6).
func (reg *Registry) CreateRoom(ctx context.Context, settings room.Settings) (*room.Room, error) {
	reg.mu.Lock()
	if len(reg.rooms) >= reg.maxRooms {
		reg.mu.Unlock()
		return nil, apperr.New(apperr.RoomLimit, "process-wide room cap reached")
	}
	r := room.New(reg.logger, settings, reg.bots)
	reg.rooms[r.ID] = r
	reg.mu.Unlock()

	go r.Run(ctx)
	reg.logger.Info().Str("room_id", r.ID).Int("rooms", reg.Count()).Msg("room created")
	return r, nil
}

// FindByRoom returns the live Room for roomID, or false if it has been
// evicted or never existed (callers surface ROOM_GONE).
func (reg *Registry) FindByRoom(roomID string) (*room.Room, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	r, ok := reg.rooms[roomID]
	return r, ok
}

// FindBySession resolves a session to its current room via the index.
func (reg *Registry) FindBySession(sessionID string) (*room.Room, bool) {
	reg.mu.RLock()
	roomID, ok := reg.sessionIndex[sessionID]
	reg.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return reg.FindByRoom(roomID)
}

// BindSession records that sessionID currently belongs to roomID.
func (reg *Registry) BindSession(sessionID, roomID string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.sessionIndex[sessionID] = roomID
}

// UnbindSession drops a session's index entry (on leave from the lobby).
func (reg *Registry) UnbindSession(sessionID string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	delete(reg.sessionIndex, sessionID)
}

// Count reports the number of live rooms.
func (reg *Registry) Count() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.rooms)
}

// Evict removes roomID from the registry and closes it. An evicted room's
// further actions are rejected with ROOM_GONE by the Room itself once it
// is closed, and here by simply being absent from FindByRoom.
func (reg *Registry) Evict(roomID string) {
	reg.mu.Lock()
	r, ok := reg.rooms[roomID]
	if ok {
		delete(reg.rooms, roomID)
	}
	for sid, rid := range reg.sessionIndex {
		if rid == roomID {
			delete(reg.sessionIndex, sid)
		}
	}
	reg.mu.Unlock()
	if ok {
		r.Close()
		reg.logger.Info().Str("room_id", roomID).Msg("room evicted")
	}
}

// roomIDs snapshots the current room id set under a read lock, the
// bounded copy that lets Sweep/Rooms iterate without holding the lock
// across each room's own (cheap) state reads.
func (reg *Registry) roomIDs() []string {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	ids := make([]string, 0, len(reg.rooms))
	for id := range reg.rooms {
		ids = append(ids, id)
	}
	return ids
}

// Rooms streams every live *room.Room without materializing a snapshot slice
// of full Room values, for the matchmaker and for callers that just need
// to visit each room (spec §4.6 "scanning iteration... without
// materializing the entire set in memory").
func (reg *Registry) Rooms(ctx context.Context) <-chan *room.Room {
	out := make(chan *room.Room)
	go func() {
		defer close(out)
		for _, id := range reg.roomIDs() {
			r, ok := reg.FindByRoom(id)
			if !ok {
				continue
			}
			select {
			case out <- r:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Sweep is the housekeeping pass (spec §4.6 evict on idle timeout, §7 an
// evicted-on-panic room is also reaped here): it fans out a liveness check
// across every room concurrently via errgroup and evicts whichever rooms
// are idle past idleEvict or have crashed.
func (reg *Registry) Sweep(ctx context.Context) error {
	ids := reg.roomIDs()
	g, ctx := errgroup.WithContext(ctx)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			r, ok := reg.FindByRoom(id)
			if !ok {
				return nil
			}
			if r.State() == room.StateGone {
				reg.Evict(id)
				return nil
			}
			if reg.idleEvict > 0 && time.Since(r.LastActivity()) > reg.idleEvict {
				reg.Evict(id)
			}
			return nil
		})
	}
	return g.Wait()
}

// RunHousekeeping sweeps on a fixed interval until ctx is cancelled; meant
// to be started once as a background goroutine by the server entrypoint.
func (reg *Registry) RunHousekeeping(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := reg.Sweep(ctx); err != nil {
				reg.logger.Warn().Err(err).Msg("housekeeping sweep returned an error")
			}
		}
	}
}
