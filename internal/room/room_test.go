package room

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/baloot/server/internal/apperr"
	"github.com/baloot/server/internal/rules"
)

func testRoom() *Room {
	r := New(zerolog.Nop(), Settings{TurnDuration: 30 * time.Second, DisconnectGrace: 60 * time.Second}, nil)
	return r
}

func seatPlayers(r *Room) {
	for i := 0; i < 4; i++ {
		r.seats[i] = &Player{Seat: i, DisplayName: "p" + string(rune('0'+i)), SessionID: "s" + string(rune('0'+i))}
	}
	r.state = StateActive
}

func TestJoinSeatStartsRoundAtFourPlayers(t *testing.T) {
	r := testRoom()
	for i := 0; i < 3; i++ {
		if err := r.apply(Action{Kind: ActionJoinSeat, SessionID: "s" + string(rune('0'+i)), Payload: JoinSeatPayload{DisplayName: "p"}}); err != nil {
			t.Fatalf("join %d: %v", i, err)
		}
	}
	if r.round != nil {
		t.Fatalf("round should not start before the fourth seat joins")
	}
	if err := r.apply(Action{Kind: ActionJoinSeat, SessionID: "s3", Payload: JoinSeatPayload{DisplayName: "p3"}}); err != nil {
		t.Fatalf("join 3: %v", err)
	}
	if r.round == nil {
		t.Fatal("round should start once all four seats are filled")
	}
	if r.round.Phase != PhaseBidding {
		t.Fatalf("phase = %v, want BIDDING", r.round.Phase)
	}
	if r.state != StateActive {
		t.Fatalf("state = %v, want ACTIVE", r.state)
	}
}

func TestJoinSeatRejectsFifthPlayer(t *testing.T) {
	r := testRoom()
	seatPlayers(r)
	err := r.apply(Action{Kind: ActionJoinSeat, SessionID: "s4", Payload: JoinSeatPayload{DisplayName: "late"}})
	if apperr.KindOf(err) != apperr.RoomFull {
		t.Fatalf("err kind = %v, want ROOM_FULL", apperr.KindOf(err))
	}
}

// dealKnownHands bypasses the shuffled deal so tests can drive a fully
// deterministic round.
func dealKnownHands(r *Room, dealer int, hands [4][]rules.Card) {
	r.round = &Round{
		DealerSeat:      dealer,
		Bid:             Bid{Type: BidNone, BidderSeat: -1, DoublingLevel: DoublingNone, DoublerSeat: -1},
		Declarations:    make(map[int][]rules.Project),
		Phase:           PhaseBidding,
		StartedAt:       time.Now(),
		Hands:           hands,
		CurrentTurn:     (dealer + 1) % 4,
		BidRound:        1,
		SawaClaimSeat:   -1,
		SawaAwardedTeam: -1,
	}
	for i := range hands {
		if r.seats[i] != nil {
			r.seats[i].Hand = hands[i]
			r.seats[i].TricksWon = 0
		}
	}
	r.jeopardy = NewDoubleJeopardyLedger()
}

func c(suit rules.Suit, rank rules.Rank) rules.Card { return rules.Card{Suit: suit, Rank: rank} }

func TestBiddingSunThenFullRoundScores(t *testing.T) {
	r := testRoom()
	seatPlayers(r)

	hands := [4][]rules.Card{
		{c(rules.Clubs, rules.Ace), c(rules.Clubs, rules.Ten), c(rules.Clubs, rules.King), c(rules.Clubs, rules.Queen),
			c(rules.Clubs, rules.Jack), c(rules.Clubs, rules.Nine), c(rules.Clubs, rules.Eight), c(rules.Clubs, rules.Seven)},
		{c(rules.Diamonds, rules.Ace), c(rules.Diamonds, rules.Ten), c(rules.Diamonds, rules.King), c(rules.Diamonds, rules.Queen),
			c(rules.Diamonds, rules.Jack), c(rules.Diamonds, rules.Nine), c(rules.Diamonds, rules.Eight), c(rules.Diamonds, rules.Seven)},
		{c(rules.Hearts, rules.Ace), c(rules.Hearts, rules.Ten), c(rules.Hearts, rules.King), c(rules.Hearts, rules.Queen),
			c(rules.Hearts, rules.Jack), c(rules.Hearts, rules.Nine), c(rules.Hearts, rules.Eight), c(rules.Hearts, rules.Seven)},
		{c(rules.Spades, rules.Ace), c(rules.Spades, rules.Ten), c(rules.Spades, rules.King), c(rules.Spades, rules.Queen),
			c(rules.Spades, rules.Jack), c(rules.Spades, rules.Nine), c(rules.Spades, rules.Eight), c(rules.Spades, rules.Seven)},
	}
	dealKnownHands(r, 3, hands)

	// Seat 0 bids SUN.
	if err := r.apply(Action{Kind: ActionBid, Seat: 0, Payload: BidPayload{Type: BidSun}}); err != nil {
		t.Fatalf("bid: %v", err)
	}
	if r.round.Phase != PhaseDoubling {
		t.Fatalf("phase after bid = %v, want DOUBLING", r.round.Phase)
	}

	// Seat 1 stands (no double), moving into PLAYING.
	if err := r.apply(Action{Kind: ActionDouble, Seat: 1, Payload: DoublePayload{Raise: false}}); err != nil {
		t.Fatalf("double stand: %v", err)
	}
	if r.round.Phase != PhasePlaying {
		t.Fatalf("phase after stand = %v, want PLAYING", r.round.Phase)
	}
	if r.round.CurrentTurn != 0 {
		t.Fatalf("first lead = seat %d, want seat 0 (dealer+1)", r.round.CurrentTurn)
	}

	// Seat 0 leads every trick from its own suit in rank order and the other
	// seats discard from theirs; every trick is a suit-leads-and-nobody-can-
	// follow scenario (each hand is a single suit), so the leader always wins.
	leadOrder := []rules.Rank{rules.Ace, rules.Ten, rules.King, rules.Queen, rules.Jack, rules.Nine, rules.Eight, rules.Seven}
	for trick := 0; trick < 8; trick++ {
		for i := 0; i < 4; i++ {
			seat := (i) % 4
			rank := leadOrder[trick]
			var suit rules.Suit
			switch seat {
			case 0:
				suit = rules.Clubs
			case 1:
				suit = rules.Diamonds
			case 2:
				suit = rules.Hearts
			case 3:
				suit = rules.Spades
			}
			if err := r.apply(Action{Kind: ActionPlay, Seat: seat, Payload: PlayPayload{Card: c(suit, rank)}}); err != nil {
				t.Fatalf("trick %d seat %d play: %v", trick, seat, err)
			}
		}
	}

	if r.round.Phase != PhaseGameOver && r.round.Phase != PhaseBidding {
		t.Fatalf("round did not advance to scoring: phase=%v", r.round.Phase)
	}
	if len(r.match.RoundHistory) != 1 {
		t.Fatalf("round history len = %d, want 1", len(r.match.RoundHistory))
	}
	// Seat 0 leads every trick with the only club in play each time and no
	// other seat can follow suit, so seat 0's team sweeps all 8 tricks: a
	// Kaboot, scored as the flat 44 GP bonus rather than the normal 26 pool.
	entry := r.match.RoundHistory[0]
	if !entry.Kaboot {
		t.Fatal("seat 0 should have swept all 8 tricks")
	}
	if entry.UsGP+entry.ThemGP != 44 {
		t.Fatalf("SUN Kaboot GP sum = %d, want 44", entry.UsGP+entry.ThemGP)
	}
	if entry.UsGP != 44 || entry.ThemGP != 0 {
		t.Fatalf("UsGP/ThemGP = %d/%d, want 44/0 (bidder's team swept)", entry.UsGP, entry.ThemGP)
	}
}

func TestDoublingEscalationToGahwaEndsMatch(t *testing.T) {
	r := testRoom()
	seatPlayers(r)
	dealKnownHands(r, 3, [4][]rules.Card{{}, {}, {}, {}})

	if err := r.apply(Action{Kind: ActionBid, Seat: 0, Payload: BidPayload{Type: BidSun}}); err != nil {
		t.Fatalf("bid: %v", err)
	}
	levels := []DoublingLevel{DoublingDouble, DoublingTriple, DoublingQuad, DoublingGahwa}
	for _, want := range levels {
		if err := r.apply(Action{Kind: ActionDouble, Seat: 1, Payload: DoublePayload{Raise: true}}); err != nil {
			t.Fatalf("raise to %v: %v", want, err)
		}
		if r.round.Bid.DoublingLevel != want {
			t.Fatalf("level = %v, want %v", r.round.Bid.DoublingLevel, want)
		}
	}
	if !r.match.Over {
		t.Fatal("GAHWA should end the match immediately")
	}
	if r.match.WinningTeam != 0 {
		t.Fatalf("winning team = %d, want 0 (seat 1's team called GAHWA and loses)", r.match.WinningTeam)
	}
}

func TestDoublingOnlyOpposingTeamMayRaise(t *testing.T) {
	r := testRoom()
	seatPlayers(r)
	dealKnownHands(r, 3, [4][]rules.Card{{}, {}, {}, {}})
	if err := r.apply(Action{Kind: ActionBid, Seat: 0, Payload: BidPayload{Type: BidSun}}); err != nil {
		t.Fatalf("bid: %v", err)
	}
	err := r.apply(Action{Kind: ActionDouble, Seat: 2, Payload: DoublePayload{Raise: true}})
	if apperr.KindOf(err) != apperr.OutOfTurn {
		t.Fatalf("err kind = %v, want OUT_OF_TURN", apperr.KindOf(err))
	}
}

func TestQaydDoubleJeopardyRejectsRepeatAccusation(t *testing.T) {
	r := testRoom()
	seatPlayers(r)
	dealKnownHands(r, 3, [4][]rules.Card{{}, {}, {}, {}})
	r.round.Phase = PhasePlaying
	r.round.Tricks = []CompletedTrick{
		{Plays: []TrickPlay{{Seat: 0, Card: c(rules.Clubs, rules.Ace)}}, WinnerSeat: 0, Points: 11},
	}

	// proof.Seat != crime.Seat, so evaluateAccusation finds no contradiction
	// and the first accusation comes back not-guilty, resuming the same
	// round (a guilty verdict would instead end the round and hand the next
	// accusation a fresh jeopardy ledger, which is a separate scenario).
	crime := CardRef{TrickIndex: 0, Seat: 1, Card: c(rules.Hearts, rules.King)}
	proof := CardRef{TrickIndex: 0, Seat: 2, Card: c(rules.Spades, rules.King)}

	runAccusation := func() error {
		if err := r.triggerQayd(0); err != nil {
			return err
		}
		if err := r.qaydPickMenu(0, MenuRevealCards); err != nil {
			return err
		}
		if err := r.qaydPickViolation(0, ViolationRevoke); err != nil {
			return err
		}
		if err := r.qaydPickCrime(0, crime); err != nil {
			return err
		}
		return r.qaydPickProof(0, proof)
	}

	if err := runAccusation(); err != nil {
		t.Fatalf("first accusation: %v", err)
	}
	if len(r.match.RoundHistory) != 0 {
		t.Fatal("first accusation should resolve not-guilty, leaving the round in progress")
	}

	err := runAccusation()
	if apperr.KindOf(err) != apperr.DoubleJeopardy {
		t.Fatalf("second accusation on the same crime card: err kind = %v, want DOUBLE_JEOPARDY", apperr.KindOf(err))
	}
}

func TestSawaClaimAcceptedAwardsRemainingPoints(t *testing.T) {
	r := testRoom()
	seatPlayers(r)
	hands := [4][]rules.Card{
		{c(rules.Clubs, rules.Ace)},
		{c(rules.Clubs, rules.Ten)},
		{c(rules.Clubs, rules.King)},
		{c(rules.Clubs, rules.Queen)},
	}
	dealKnownHands(r, 3, hands)
	r.round.Bid = Bid{Type: BidSun, BidderSeat: 0, DoublingLevel: DoublingNone, DoublerSeat: -1}
	r.round.Phase = PhasePlaying

	if err := r.apply(Action{Kind: ActionClaimSawa, Seat: 0}); err != nil {
		t.Fatalf("claim sawa: %v", err)
	}
	if r.round.SawaClaimSeat != 0 {
		t.Fatalf("sawa claim seat = %d, want 0", r.round.SawaClaimSeat)
	}

	if err := r.apply(Action{Kind: ActionSawaResponse, Seat: 1, Payload: SawaResponsePayload{Accept: true}}); err != nil {
		t.Fatalf("accept sawa: %v", err)
	}
	if len(r.match.RoundHistory) != 1 {
		t.Fatalf("round history len = %d, want 1 after sawa ends the round", len(r.match.RoundHistory))
	}
	// Whichever way the 38 abnat (A+10+K+Q+10 bonus) split between bidder
	// and defender, the pool-complement construction in ComputeRoundScore
	// guarantees the GP halves still sum to the full 26-point pool.
	entry := r.match.RoundHistory[0]
	if entry.UsGP+entry.ThemGP != 26 {
		t.Fatalf("GP sum = %d, want 26", entry.UsGP+entry.ThemGP)
	}
}

func TestSubmitActionRejectsWhenQueueFull(t *testing.T) {
	r := testRoom()
	for i := 0; i < submissionCapacity; i++ {
		r.submissions <- submission{action: Action{Kind: ActionLeave}}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := r.SubmitAction(ctx, Action{Kind: ActionLeave})
	if apperr.KindOf(err) != apperr.Busy {
		t.Fatalf("err kind = %v, want BUSY", apperr.KindOf(err))
	}
}
