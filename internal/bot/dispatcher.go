package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/baloot/server/internal/room"
	"github.com/baloot/server/internal/rules"
)

// RoomLookup is the narrow capability Dispatcher needs from the registry
// (C6), mirrored on session.RoomLookup so neither package imports registry
// directly.
type RoomLookup interface {
	FindByRoom(roomID string) (*room.Room, bool)
}

type pendingJob struct {
	roomID string
	seat   int
}

// Dispatcher implements room.BotDispatcher. It never blocks the caller: a
// full job queue just drops the dispatch and lets the room's own
// turn-timeout auto-play stand in (spec §4.5).
type Dispatcher struct {
	jobs chan Job

	mu      sync.Mutex
	pending map[string]pendingJob

	rooms  RoomLookup
	logger zerolog.Logger
}

// New builds a Dispatcher with the given outbound job queue depth.
func New(rooms RoomLookup, queueDepth int, logger zerolog.Logger) *Dispatcher {
	if queueDepth <= 0 {
		queueDepth = 64
	}
	return &Dispatcher{
		jobs:    make(chan Job, queueDepth),
		pending: make(map[string]pendingJob),
		rooms:   rooms,
		logger:  logger.With().Str("component", "bot_orchestrator").Logger(),
	}
}

// RequestDecision satisfies room.BotDispatcher: it is called from inside
// the room loop right after a transition lands on a bot seat, and must
// return immediately.
func (d *Dispatcher) RequestDecision(roomID string, seat int, snapshot room.Snapshot, deadline time.Time) {
	jobID := uuid.NewString()
	job := Job{
		ID:             jobID,
		RoomID:         roomID,
		Seat:           seat,
		Snapshot:       snapshot,
		AllowedActions: allowedActionsFor(snapshot),
		Deadline:       deadline,
	}

	d.mu.Lock()
	d.pending[jobID] = pendingJob{roomID: roomID, seat: seat}
	d.mu.Unlock()

	select {
	case d.jobs <- job:
	default:
		d.logger.Warn().Str("room_id", roomID).Int("seat", seat).Msg("bot job queue full, deferring to turn-timeout auto-play")
		d.mu.Lock()
		delete(d.pending, jobID)
		d.mu.Unlock()
	}
}

// SetRooms wires the registry after construction, breaking the
// Dispatcher/Registry initialization cycle: the registry needs a
// room.BotDispatcher to build rooms with, and the Dispatcher needs the
// registry to resolve a reply's room. The server entrypoint constructs the
// Dispatcher first with a nil registry, builds the Registry from it, then
// calls SetRooms before either is used.
func (d *Dispatcher) SetRooms(rooms RoomLookup) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rooms = rooms
}

// Jobs exposes the outbound queue to the in-process WorkerPool and to the
// gateway, for bridging to an out-of-process botsdk worker over the wire.
func (d *Dispatcher) Jobs() <-chan Job { return d.jobs }

// Submit applies a worker's reply, translating it into the matching
// room.Action and resubmitting through the room's single-writer loop
// (spec §4.5 point 4). An unknown or already-resolved job id is a no-op
// error: the job either never existed or the deadline already fired the
// auto-play fallback and resolved it.
func (d *Dispatcher) Submit(ctx context.Context, reply Reply) error {
	d.mu.Lock()
	pj, ok := d.pending[reply.JobID]
	if ok {
		delete(d.pending, reply.JobID)
	}
	d.mu.Unlock()
	if !ok {
		return fmt.Errorf("bot: job %s is unknown or already resolved", reply.JobID)
	}

	r, ok := d.rooms.FindByRoom(pj.roomID)
	if !ok {
		return nil // room evicted between dispatch and reply
	}

	action, err := translateReply(pj.seat, reply)
	if err != nil {
		d.logger.Warn().Err(err).Str("job_id", reply.JobID).Msg("bot reply rejected, deferring to turn-timeout auto-play")
		return nil
	}
	if reply.Reasoning != "" {
		d.logger.Debug().Str("room_id", pj.roomID).Int("seat", pj.seat).Str("reasoning", reply.Reasoning).Msg("bot_speak")
	}
	return r.SubmitAction(ctx, action)
}

func allowedActionsFor(snap room.Snapshot) []string {
	switch snap.Phase {
	case room.PhaseBidding:
		return []string{string(room.ActionBid), string(room.ActionKawesh)}
	case room.PhaseDoubling:
		return []string{string(room.ActionDouble)}
	case room.PhasePlaying:
		return []string{string(room.ActionPlay), string(room.ActionDeclareProject), string(room.ActionDeclareAkka), string(room.ActionClaimSawa)}
	default:
		return nil
	}
}

// translateReply turns a worker's wire-shaped Reply into the room.Action
// the room loop understands.
func translateReply(seat int, reply Reply) (room.Action, error) {
	base := room.Action{SessionID: "", Seat: seat, Kind: reply.Action}
	switch reply.Action {
	case room.ActionBid:
		payload := room.BidPayload{Type: reply.BidType}
		if reply.TrumpSuit != nil {
			payload.TrumpSuit = rules.Suit(*reply.TrumpSuit)
		}
		base.Payload = payload
	case room.ActionKawesh:
		// no payload
	case room.ActionDouble:
		raise := reply.Raise != nil && *reply.Raise
		base.Payload = room.DoublePayload{Raise: raise}
	case room.ActionPlay:
		if reply.CardID == nil {
			return room.Action{}, fmt.Errorf("bot: PLAY reply missing cardId")
		}
		base.Payload = room.PlayPayload{Card: rules.CardByID(*reply.CardID)}
	case room.ActionDeclareProject:
		projects := make([]rules.Project, 0, len(reply.Projects))
		for _, p := range reply.Projects {
			cards := make([]rules.Card, 0, len(p.Cards))
			for _, id := range p.Cards {
				cards = append(cards, rules.CardByID(id))
			}
			projects = append(projects, rules.Project{Type: rules.ProjectType(p.Type), Suit: rules.Suit(p.Suit), Cards: cards})
		}
		base.Payload = room.DeclareProjectPayload{Projects: projects}
	case room.ActionDeclareAkka:
		// no payload: eligibility is recomputed from the seat's hand.
	case room.ActionClaimSawa:
		// no payload
	case room.ActionSawaResponse:
		accept := reply.Accept != nil && *reply.Accept
		base.Payload = room.SawaResponsePayload{Accept: accept}
	default:
		return room.Action{}, fmt.Errorf("bot: unsupported reply action %q", reply.Action)
	}
	return base, nil
}

