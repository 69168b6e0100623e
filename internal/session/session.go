// Package session implements spec §4.10 "Session Recovery": the
// sessionId -> (roomId, seat) mapping that survives disconnects and, via
// the key-value store, a full server restart, plus the reconnect
// operation that resumes a held seat.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/baloot/server/internal/apperr"
	"github.com/baloot/server/internal/kv"
	"github.com/baloot/server/internal/room"
)

// recordTTL matches spec §6's persisted-state layout: session:<id>, TTL 24h.
const recordTTL = 24 * time.Hour

// Record is the persisted association for one session.
type Record struct {
	RoomID     string    `json:"roomId"`
	Seat       int       `json:"seatIndex"`
	LastSeenAt time.Time `json:"lastSeenAt"`
}

// RoomLookup is the narrow capability Store needs from the room registry
// (C6), kept as an interface so this package never imports internal/registry
// directly (same decoupling the room package uses for BotDispatcher).
type RoomLookup interface {
	FindByRoom(roomID string) (*room.Room, bool)
}

// Store is the session recovery service: a KV-backed record of where every
// session is seated, plus the Reconnect operation that resumes a seat.
type Store struct {
	kv     kv.Store
	rooms  RoomLookup
	logger zerolog.Logger
}

func New(store kv.Store, rooms RoomLookup, logger zerolog.Logger) *Store {
	return &Store{kv: store, rooms: rooms, logger: logger.With().Str("component", "session").Logger()}
}

func recordKey(sessionID string) string { return fmt.Sprintf("session:%s", sessionID) }

// Bind persists that sessionID currently occupies seat in roomID; the
// gateway calls it when it relays a queue match_found to the session.
func (s *Store) Bind(ctx context.Context, sessionID, roomID string, seat int) error {
	rec := Record{RoomID: roomID, Seat: seat, LastSeenAt: time.Now()}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, recordKey(sessionID), string(data), recordTTL)
}

// Forget removes a session's persisted seat association (clean leave while
// still in the lobby, or after a match concludes).
func (s *Store) Forget(ctx context.Context, sessionID string) error {
	return s.kv.Del(ctx, recordKey(sessionID))
}

// Lookup returns the persisted record for sessionID, if any.
func (s *Store) Lookup(ctx context.Context, sessionID string) (Record, bool, error) {
	raw, ok, err := s.kv.Get(ctx, recordKey(sessionID))
	if err != nil || !ok {
		return Record{}, false, err
	}
	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

// Reconnect resumes sessionID's held seat: it looks up the persisted
// record, finds the still-live room via the registry, and resubmits
// ActionReconnect through the room's own single-writer loop. Per spec
// §4.10, an evicted or never-existing room fails with ROOM_GONE and an
// unknown session fails with SESSION_UNKNOWN.
func (s *Store) Reconnect(ctx context.Context, sessionID string) (*room.Room, int, error) {
	rec, ok, err := s.Lookup(ctx, sessionID)
	if err != nil {
		return nil, 0, err
	}
	if !ok {
		return nil, 0, apperr.New(apperr.SessionUnknown, "no session record for reconnect")
	}

	rm, ok := s.rooms.FindByRoom(rec.RoomID)
	if !ok {
		_ = s.Forget(ctx, sessionID)
		return nil, 0, apperr.New(apperr.RoomGone, "room no longer exists")
	}

	if err := rm.SubmitAction(ctx, room.Action{SessionID: sessionID, Kind: room.ActionReconnect}); err != nil {
		return nil, 0, err
	}
	rec.LastSeenAt = time.Now()
	if data, err := json.Marshal(rec); err == nil {
		_ = s.kv.Set(ctx, recordKey(sessionID), string(data), recordTTL)
	}
	return rm, rec.Seat, nil
}
