package room

import (
	"context"
	"fmt"
	"math/rand"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/baloot/server/internal/apperr"
	"github.com/baloot/server/internal/rules"
)

// submissionCapacity is the bounded queue depth per room (spec §5
// Backpressure, default 64).
const submissionCapacity = 64

// BotDispatcher is the narrow capability the bot orchestrator (C5) exposes
// back into a Room, so the two packages don't import each other directly
// (spec §9 "break cyclic imports with an interface").
type BotDispatcher interface {
	// RequestDecision is called by the room loop right after a transition
	// lands on a bot seat. It must not block the room loop: implementations
	// dispatch to a worker and later call SubmitAction with the reply, or
	// the room's own turn-timeout fallback fires first.
	RequestDecision(roomID string, seat int, snapshot Snapshot, deadline time.Time)
}

// Action is one submitted event, tagged by Kind (spec §4.8 events-in).
type Action struct {
	SessionID string
	Kind      ActionKind
	Seat      int // resolved by the room loop from SessionID when the action is applied
	Payload   any
}

type ActionKind string

const (
	ActionJoinSeat       ActionKind = "JOIN_SEAT"
	ActionAddBotSeat     ActionKind = "ADD_BOT_SEAT"
	ActionLeave          ActionKind = "LEAVE"
	ActionBid            ActionKind = "BID"
	ActionDouble         ActionKind = "DOUBLE"
	ActionKawesh         ActionKind = "KAWESH"
	ActionPlay           ActionKind = "PLAY"
	ActionDeclareProject ActionKind = "DECLARE_PROJECT"
	ActionDeclareAkka    ActionKind = "DECLARE_AKKA"
	ActionClaimSawa      ActionKind = "CLAIM_SAWA"
	ActionSawaResponse   ActionKind = "SAWA_RESPONSE"
	ActionQaydTrigger    ActionKind = "QAYD_TRIGGER"
	ActionQaydMenu       ActionKind = "QAYD_MENU"
	ActionQaydViolation  ActionKind = "QAYD_VIOLATION"
	ActionQaydCrime      ActionKind = "QAYD_CRIME"
	ActionQaydProof      ActionKind = "QAYD_PROOF"
	ActionReconnect      ActionKind = "RECONNECT"
	ActionTurnTimeout    ActionKind = "_TURN_TIMEOUT"      // internal, synthesized by the room's own timer
	ActionBotConvert     ActionKind = "_BOT_CONVERT" // internal, synthesized when a disconnect grace deadline elapses
)

type submission struct {
	action Action
	result chan error
}

// RoomEvent is what a subscriber receives from Subscribe: either a fresh
// snapshot after a committed mutation, or a terminal Err once a panic in
// the room loop has evicted the room (spec §7: a panicking room loop is
// isolated, not fatal to the process). Exactly one of the two fields is
// set. After Err is sent the channel is closed. Close on its own (e.g.
// registry eviction) closes the channel without sending an Err.
type RoomEvent struct {
	Snapshot *Snapshot
	Err      *apperr.Error
}

// Room is one 4-seat game, mutated only by its own loop goroutine.
type Room struct {
	ID string

	logger zerolog.Logger
	rng    *rand.Rand
	clockFn func() time.Time

	submissions chan submission
	stopCh      chan struct{}
	stopOnce    sync.Once

	subsMu      sync.Mutex
	subscribers map[string]chan RoomEvent

	bots BotDispatcher

	settings Settings
	state    RegistryState

	mu           sync.RWMutex // guards the fields below for read-only external inspection (e.g. registry stats)
	seats        [4]*Player
	round        *Round
	match        *Match
	jeopardy     *DoubleJeopardyLedger
	version      uint64
	lastActivity time.Time
	createdAt    time.Time

	turnTimer        *time.Timer
	botConvertTimers [4]*time.Timer // per-seat, armed on disconnect (spec §4.10)
}

// New creates a Room in WAITING state.
func New(logger zerolog.Logger, settings Settings, bots BotDispatcher) *Room {
	id := uuid.NewString()
	r := &Room{
		ID:          id,
		logger:      logger.With().Str("component", "room").Str("room_id", id).Logger(),
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		clockFn:     time.Now,
		submissions: make(chan submission, submissionCapacity),
		stopCh:      make(chan struct{}),
		subscribers: make(map[string]chan RoomEvent),
		bots:        bots,
		settings:    settings,
		state:       StateLobby,
		jeopardy:    NewDoubleJeopardyLedger(),
		match:       &Match{TargetScore: 152, WinningTeam: -1},
		createdAt:   time.Now(),
	}
	r.lastActivity = r.createdAt
	return r
}

func (r *Room) clock() time.Time { return r.clockFn() }

// Run is the room loop: the only goroutine that ever mutates Room state.
// It returns when Close is called, or when a panic inside apply evicts the
// room (spec §7 "Unknown: log + isolate").
func (r *Room) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		case sub := <-r.submissions:
			err := r.safeApply(sub.action)
			if sub.result != nil {
				sub.result <- err
			}
			if err == nil {
				r.lastActivity = r.clock()
				r.version++
				r.broadcast()
				r.maybeDispatchBot()
				continue
			}
			if apperr.KindOf(err) == apperr.RoomGone {
				r.Close()
				return
			}
		}
	}
}

// safeApply runs apply with panic isolation: any panic is recovered, logged
// as a crash report, and converted into a RoomGone error that evicts the
// room instead of taking down the process (spec §7).
func (r *Room) safeApply(a Action) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Str("action", string(a.Kind)).
				Msg("room loop panic recovered, evicting room")
			r.mu.Lock()
			r.state = StateGone
			r.mu.Unlock()
			gone := apperrRoomGone("room crashed and was evicted")
			r.broadcastGone(gone)
			err = gone
		}
	}()
	return r.apply(a)
}

// SubmitAction enqueues action and blocks (bounded by ctx) until the room
// loop has processed it. Returns apperr.Busy if the queue is full, and
// apperr.RoomGone once the room has been closed.
func (r *Room) SubmitAction(ctx context.Context, a Action) error {
	select {
	case <-r.stopCh:
		return apperrRoomGone("room has been closed")
	default:
	}
	sub := submission{action: a, result: make(chan error, 1)}
	select {
	case r.submissions <- sub:
	default:
		return errBusy("room submission queue is full")
	}

	select {
	case err := <-sub.result:
		return err
	case <-r.stopCh:
		select {
		case err := <-sub.result:
			return err
		default:
			return apperrRoomGone("room has been closed")
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe registers sessionID for snapshot broadcasts. Callers must drain
// the returned channel or risk a dropped (non-blocking) broadcast.
func (r *Room) Subscribe(sessionID string) <-chan RoomEvent {
	r.subsMu.Lock()
	defer r.subsMu.Unlock()
	ch := make(chan RoomEvent, 4)
	r.subscribers[sessionID] = ch
	return ch
}

// Unsubscribe removes a subscriber.
func (r *Room) Unsubscribe(sessionID string) {
	r.subsMu.Lock()
	defer r.subsMu.Unlock()
	if ch, ok := r.subscribers[sessionID]; ok {
		delete(r.subscribers, sessionID)
		close(ch)
	}
}

func (r *Room) broadcast() {
	r.subsMu.Lock()
	defer r.subsMu.Unlock()
	for sessionID, ch := range r.subscribers {
		seat := r.seatOfSession(sessionID)
		snap := r.buildSnapshot(seat)
		select {
		case ch <- RoomEvent{Snapshot: &snap}:
		default:
			// Slow subscriber: drop, they'll get the next version.
		}
	}
}

// broadcastGone notifies every subscriber that the room has been evicted
// and closes their channels, per spec §7's "ROOM_GONE emitted to all
// subscribers".
func (r *Room) broadcastGone(e *apperr.Error) {
	r.subsMu.Lock()
	defer r.subsMu.Unlock()
	for id, ch := range r.subscribers {
		select {
		case ch <- RoomEvent{Err: e}:
		default:
		}
		delete(r.subscribers, id)
		close(ch)
	}
}

func (r *Room) seatOfSession(sessionID string) int {
	for i, p := range r.seats {
		if p != nil && p.SessionID == sessionID {
			return i
		}
	}
	return -1
}

// Close stops the room loop and closes all subscriber channels.
func (r *Room) Close() {
	r.stopOnce.Do(func() {
		close(r.stopCh)
		if r.turnTimer != nil {
			r.turnTimer.Stop()
		}
		for _, t := range r.botConvertTimers {
			if t != nil {
				t.Stop()
			}
		}
		r.subsMu.Lock()
		defer r.subsMu.Unlock()
		for id, ch := range r.subscribers {
			delete(r.subscribers, id)
			close(ch)
		}
	})
}

// Version returns the current broadcast version (monotonic per mutation).
func (r *Room) Version() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}

// State reports the room's coarse lifecycle state.
func (r *Room) State() RegistryState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// LastActivity reports when the room last accepted a mutation, used by the
// registry's idle eviction sweep.
func (r *Room) LastActivity() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastActivity
}

// apply is the single dispatch point for every Action kind. It runs
// exclusively inside the room loop.
func (r *Room) apply(a Action) error {
	// A session-originated action carries no seat of its own (the gateway
	// only knows the sessionId); resolve it here, inside the single-writer
	// loop, where reading r.seats needs no lock. Bot- and timer-synthesized
	// actions already carry their seat and have no SessionID to resolve.
	if a.SessionID != "" && a.Kind != ActionJoinSeat {
		if seat := r.seatOfSession(a.SessionID); seat != -1 {
			a.Seat = seat
		}
	}
	switch a.Kind {
	case ActionJoinSeat:
		return r.handleJoinSeat(a)
	case ActionAddBotSeat:
		return r.handleAddBotSeat(a)
	case ActionLeave:
		return r.handleLeave(a)
	case ActionBid:
		return r.handleBid(a)
	case ActionDouble:
		return r.handleDouble(a)
	case ActionKawesh:
		return r.handleKawesh(a)
	case ActionPlay:
		return r.handlePlay(a)
	case ActionDeclareProject:
		return r.handleDeclareProject(a)
	case ActionDeclareAkka:
		return r.handleDeclareAkka(a)
	case ActionClaimSawa:
		return r.handleClaimSawa(a)
	case ActionSawaResponse:
		return r.handleSawaResponse(a)
	case ActionQaydTrigger:
		return r.triggerQayd(a.Seat)
	case ActionQaydMenu:
		opt, _ := a.Payload.(QaydMenuOption)
		return r.qaydPickMenu(a.Seat, opt)
	case ActionQaydViolation:
		v, _ := a.Payload.(ViolationType)
		return r.qaydPickViolation(a.Seat, v)
	case ActionQaydCrime:
		c, _ := a.Payload.(CardRef)
		return r.qaydPickCrime(a.Seat, c)
	case ActionQaydProof:
		p, _ := a.Payload.(CardRef)
		return r.qaydPickProof(a.Seat, p)
	case ActionReconnect:
		return r.handleReconnect(a)
	case ActionTurnTimeout:
		return r.handleTurnTimeout()
	case ActionBotConvert:
		p, _ := a.Payload.(int)
		return r.handleBotConvert(p)
	default:
		return apperr.New(apperr.InvalidPayload, fmt.Sprintf("unknown action kind %q", a.Kind))
	}
}

func (r *Room) occupiedSeats() int {
	n := 0
	for _, p := range r.seats {
		if p != nil {
			n++
		}
	}
	return n
}

func (r *Room) maybeDispatchBot() {
	if r.round == nil || r.bots == nil {
		return
	}
	if r.round.Phase != PhaseBidding && r.round.Phase != PhaseDoubling && r.round.Phase != PhasePlaying {
		return
	}
	seat := r.round.CurrentTurn
	if seat < 0 || seat > 3 || r.seats[seat] == nil || !r.seats[seat].IsBot {
		return
	}
	deadline := r.clock().Add(r.settings.TurnDuration)
	if max := r.clock().Add(3 * time.Second); max.Before(deadline) {
		deadline = max
	}
	snap := r.buildSnapshot(seat)
	r.bots.RequestDecision(r.ID, seat, snap, deadline)
	r.scheduleTurnTimeout(deadline)
}

func (r *Room) scheduleTurnTimeout(deadline time.Time) {
	if r.turnTimer != nil {
		r.turnTimer.Stop()
	}
	d := time.Until(deadline)
	if d < 0 {
		d = 0
	}
	r.turnTimer = time.AfterFunc(d, func() {
		_ = r.SubmitAction(context.Background(), Action{Kind: ActionTurnTimeout})
	})
}

func (r *Room) handleTurnTimeout() error {
	if r.round == nil {
		return nil
	}
	switch r.round.Phase {
	case PhasePlaying:
		return r.autoPlayLowestImpact(r.round.CurrentTurn)
	case PhaseBidding:
		return r.advanceBidPass()
	case PhaseDoubling:
		return r.endDoublingStartPlay()
	default:
		return nil
	}
}

// autoPlayLowestImpact implements the §4.3 turn-timeout fallback: a legal
// card, ties broken by lowest point value then lowest rank.
func (r *Room) autoPlayLowestImpact(seat int) error {
	hand := r.round.Hands[seat]
	mode := rules.Sun
	if r.round.Bid.Type == BidHokum {
		mode = rules.Hokum
	}

	var best rules.Card
	found := false
	bestPoints := 1 << 30
	for _, c := range hand {
		ok, _ := rules.IsLegalMove(seat, c, hand, r.tablePlays(), mode, r.round.Bid.TrumpSuit, int(r.round.Bid.DoublingLevel))
		if !ok {
			continue
		}
		pts := cardPoints(c, mode, r.round.Bid.TrumpSuit)
		if !found || pts < bestPoints || (pts == bestPoints && int(c.Rank) < int(best.Rank)) {
			best, bestPoints, found = c, pts, true
		}
	}
	if !found {
		return nil
	}
	r.logger.Info().Int("seat", seat).Str("card", best.String()).Msg("turn timeout auto-play")
	return r.playCard(seat, best)
}

func cardPoints(c rules.Card, mode rules.Mode, trumpSuit rules.Suit) int {
	plays := []rules.TablePlay{{Seat: 0, Card: c}}
	return rules.TrickPoints(plays, mode, trumpSuit, false)
}

func (r *Room) tablePlays() []rules.TablePlay {
	out := make([]rules.TablePlay, len(r.round.Table))
	for i, p := range r.round.Table {
		out[i] = rules.TablePlay{Seat: p.Seat, Card: p.Card}
	}
	return out
}
