package room

import (
	"context"
	"math/rand"
	"time"

	"github.com/baloot/server/internal/rules"
)

// JoinSeatPayload is the payload for ActionJoinSeat.
type JoinSeatPayload struct {
	DisplayName string
}

// AddBotSeatPayload is the payload for ActionAddBotSeat.
type AddBotSeatPayload struct {
	Seat       int
	Difficulty string
}

func (r *Room) handleJoinSeat(a Action) error {
	if r.state == StateFinished {
		return errInvalidPayload("room has already finished its match")
	}
	if r.state == StateActive {
		return apperrRoomFull()
	}
	payload, _ := a.Payload.(JoinSeatPayload)

	seat := r.firstEmptySeat()
	if seat == -1 {
		return apperrRoomFull()
	}
	r.seats[seat] = &Player{
		Seat:        seat,
		DisplayName: sanitizeDisplayName(payload.DisplayName),
		SessionID:   a.SessionID,
	}

	if r.occupiedSeats() == 4 {
		r.startFirstRound()
	}
	return nil
}

func (r *Room) handleAddBotSeat(a Action) error {
	if r.state != StateLobby {
		return errInvalidPayload("bots may only be added in the lobby")
	}
	payload, _ := a.Payload.(AddBotSeatPayload)
	if payload.Seat < 0 || payload.Seat > 3 {
		return errInvalidPayload("seat out of range")
	}
	if r.seats[payload.Seat] != nil {
		return errInvalidPayload("seat already occupied")
	}
	difficulty := payload.Difficulty
	if difficulty == "" {
		difficulty = r.settings.BotDifficulty
	}
	r.seats[payload.Seat] = &Player{
		Seat:        payload.Seat,
		DisplayName: "bot-" + itoaSeat(payload.Seat),
		IsBot:       true,
	}

	if r.occupiedSeats() == 4 {
		r.startFirstRound()
	}
	return nil
}

func (r *Room) handleLeave(a Action) error {
	seat := r.seatOfSession(a.SessionID)
	if seat == -1 {
		return errNotSeated("session holds no seat in this room")
	}
	if r.state == StateLobby {
		r.seats[seat] = nil
		return nil
	}
	r.seats[seat].Disconnected = true
	grace := r.settings.DisconnectGrace
	if grace <= 0 {
		grace = 60 * time.Second
	}
	deadline := r.clock().Add(grace)
	r.seats[seat].DisconnectDeadline = deadline
	r.armBotConvertTimer(seat, grace)
	return nil
}

// handleReconnect resumes a held seat for a client presenting the same
// sessionId it disconnected under, clearing the disconnected flag and
// cancelling any pending bot-conversion (spec §4.10).
func (r *Room) handleReconnect(a Action) error {
	seat := r.seatOfSession(a.SessionID)
	if seat == -1 {
		return errSessionUnknown("no seat in this room is held by that session")
	}
	p := r.seats[seat]
	if !p.Disconnected {
		return nil
	}
	p.Disconnected = false
	p.DisconnectDeadline = time.Time{}
	r.disarmBotConvertTimer(seat)
	return nil
}

// handleBotConvert is the internal action synthesized by a disconnect-grace
// timer: the still-disconnected seat becomes a bot at the room's configured
// difficulty and the match continues (spec §4.10, §8 property 9).
func (r *Room) handleBotConvert(seat int) error {
	if seat < 0 || seat > 3 || r.seats[seat] == nil {
		return nil
	}
	p := r.seats[seat]
	if !p.Disconnected || p.IsBot {
		return nil
	}
	p.IsBot = true
	p.Disconnected = false
	p.DisconnectDeadline = time.Time{}
	p.SessionID = ""
	r.logger.Info().Int("seat", seat).Msg("disconnect grace elapsed, converting seat to bot")
	return nil
}

// armBotConvertTimer schedules the synthetic ActionBotConvert that fires
// grace after a seat disconnects. It preserves single-writer discipline the
// same way scheduleTurnTimeout does: the timer only ever calls back through
// SubmitAction.
func (r *Room) armBotConvertTimer(seat int, grace time.Duration) {
	r.disarmBotConvertTimer(seat)
	r.botConvertTimers[seat] = time.AfterFunc(grace, func() {
		_ = r.SubmitAction(context.Background(), Action{Kind: ActionBotConvert, Payload: seat})
	})
}

func (r *Room) disarmBotConvertTimer(seat int) {
	if t := r.botConvertTimers[seat]; t != nil {
		t.Stop()
		r.botConvertTimers[seat] = nil
	}
}

func (r *Room) firstEmptySeat() int {
	for i, p := range r.seats {
		if p == nil {
			return i
		}
	}
	return -1
}

func itoaSeat(n int) string {
	return string(rune('0' + n))
}

func sanitizeDisplayName(name string) string {
	if name == "" {
		return "player"
	}
	const maxLen = 24
	runes := []rune(name)
	if len(runes) > maxLen {
		runes = runes[:maxLen]
	}
	out := make([]rune, 0, len(runes))
	for _, c := range runes {
		if c == '\n' || c == '\r' || c == '\t' {
			continue
		}
		out = append(out, c)
	}
	return string(out)
}

func (r *Room) startFirstRound() {
	r.state = StateActive
	r.startRound(0)
}

// startRound deals a fresh round from dealerSeat, entering BIDDING.
func (r *Room) startRound(dealerSeat int) {
	seed := r.rng.Int63()
	deckRNG := rand.New(rand.NewSource(seed))
	deck := rules.NewDeck(deckRNG)

	var hands [4][]rules.Card
	for i := 0; i < 4; i++ {
		seat := (dealerSeat + 1 + i) % 4
		hands[seat] = deck.Deal(8)
	}
	floorCard, hasFloor := deck.FloorCard()

	r.round = &Round{
		DealerSeat:   dealerSeat,
		Bid:          Bid{Type: BidNone, BidderSeat: -1, DoublingLevel: DoublingNone, DoublerSeat: -1},
		Declarations: make(map[int][]rules.Project),
		FloorCard:    floorCard,
		HasFloorCard: hasFloor,
		Phase:        PhaseBidding,
		StartedAt:    r.clock(),
		Seed:         seed,
		Hands:        hands,
		CurrentTurn:     (dealerSeat + 1) % 4,
		BidRound:        1,
		SawaClaimSeat:   -1,
		SawaAwardedTeam: -1,
	}
	for seat := range r.seats {
		if r.seats[seat] != nil {
			r.seats[seat].Hand = hands[seat]
			r.seats[seat].TricksWon = 0
		}
	}
	r.jeopardy = NewDoubleJeopardyLedger()
}

func (r *Room) advanceToNextRoundOrGameOver() {
	if r.match.TeamScores.Us >= r.match.TargetScore || r.match.TeamScores.Them >= r.match.TargetScore {
		if r.match.TeamScores.Us != r.match.TeamScores.Them {
			r.match.Over = true
			if r.match.TeamScores.Us > r.match.TeamScores.Them {
				r.match.WinningTeam = 0
			} else {
				r.match.WinningTeam = 1
			}
			r.state = StateFinished
			r.round.Phase = PhaseGameOver
			return
		}
	}
	nextDealer := (r.round.DealerSeat + 1) % 4
	r.startRound(nextDealer)
}
