package room

import "github.com/baloot/server/internal/rules"

// BidPayload is the payload for ActionBid.
type BidPayload struct {
	Type      BidType // SUN, HOKUM, ASHKAL, or NONE for a pass
	TrumpSuit rules.Suit
}

// DoublePayload is the payload for ActionDouble.
type DoublePayload struct {
	Raise bool // true: escalate the doubling level; false: stand, start play
}

func (r *Room) handleBid(a Action) error {
	if r.round == nil || r.round.Phase != PhaseBidding {
		return errOutOfTurn("not in the bidding phase")
	}
	if a.Seat != r.round.CurrentTurn {
		return errOutOfTurn("not this seat's turn to bid")
	}
	payload, _ := a.Payload.(BidPayload)

	if payload.Type == BidNone {
		return r.advanceBidPass()
	}

	if payload.Type == BidAshkal {
		if !r.round.HasFloorCard {
			return errInvalidPayload("no floor card available for an ASHKAL bid")
		}
		r.round.Bid = Bid{
			Type: BidAshkal, TrumpSuit: r.round.FloorCard.Suit,
			BidderSeat: a.Seat, DoublingLevel: DoublingNone, DoublerSeat: -1,
		}
		r.applyAshkalFloorPickup(a.Seat)
	} else {
		r.round.Bid = Bid{
			Type: payload.Type, TrumpSuit: payload.TrumpSuit,
			BidderSeat: a.Seat, DoublingLevel: DoublingNone, DoublerSeat: -1,
		}
	}

	r.round.Phase = PhaseDoubling
	r.round.CurrentTurn = (a.Seat + 1) % 4
	return nil
}

// applyAshkalFloorPickup implements the Open-Questions-resolved ASHKAL
// variant (see DESIGN.md): the bidder's partner picks up the floor card and
// discards one card face-down before doubling starts.
func (r *Room) applyAshkalFloorPickup(bidderSeat int) {
	partnerSeat := (bidderSeat + 2) % 4
	hand := r.round.Hands[partnerSeat]
	hand = append(hand, r.round.FloorCard)
	// Muck the partner's highest-index card face-down (deterministic,
	// replayable given the recorded round seed; any discard policy is
	// equally valid here since the mucked card is never shown).
	hand = hand[:len(hand)-1]
	r.round.Hands[partnerSeat] = hand
	if p := r.seats[partnerSeat]; p != nil {
		p.Hand = hand
	}
}

func (r *Room) advanceBidPass() error {
	r.round.BidderPassCount++
	if r.round.BidderPassCount < 4 {
		r.round.CurrentTurn = (r.round.CurrentTurn + 1) % 4
		return nil
	}

	if r.round.BidRound == 1 {
		r.round.BidRound = 2
		r.round.BidderPassCount = 0
		r.round.CurrentTurn = (r.round.DealerSeat + 1) % 4
		return nil
	}

	// All four passed in both rounds: redeal, rotate dealer.
	r.startRound((r.round.DealerSeat + 1) % 4)
	return nil
}

func (r *Room) handleKawesh(a Action) error {
	if r.round == nil || r.round.Phase != PhaseBidding {
		return errOutOfTurn("KAWESH may only be declared during bidding")
	}
	hand := r.round.Hands[a.Seat]
	if hasCourtCard(hand) {
		return errIllegalMove("seat holds a court card, KAWESH is not eligible")
	}
	r.startRound(r.round.DealerSeat)
	return nil
}

func hasCourtCard(hand []rules.Card) bool {
	for _, c := range hand {
		switch c.Rank {
		case rules.Ace, rules.King, rules.Queen, rules.Jack, rules.Ten:
			return true
		}
	}
	return false
}

func (r *Room) handleDouble(a Action) error {
	if r.round == nil || r.round.Phase != PhaseDoubling {
		return errOutOfTurn("not in the doubling phase")
	}
	bidderTeam := r.round.Bid.BidderSeat % 2
	if a.Seat%2 == bidderTeam {
		return errOutOfTurn("only the opposing team may double")
	}

	payload, _ := a.Payload.(DoublePayload)
	if !payload.Raise {
		return r.endDoublingStartPlay()
	}

	switch r.round.Bid.DoublingLevel {
	case DoublingNone:
		r.round.Bid.DoublingLevel = DoublingDouble
	case DoublingDouble:
		r.round.Bid.DoublingLevel = DoublingTriple
	case DoublingTriple:
		r.round.Bid.DoublingLevel = DoublingQuad
	case DoublingQuad:
		r.round.Bid.DoublingLevel = DoublingGahwa
	default:
		return errIllegalMove("doubling is already at GAHWA")
	}
	r.round.Bid.DoublerSeat = a.Seat

	if r.round.Bid.DoublingLevel == DoublingGahwa {
		doublerTeam := a.Seat % 2
		result := rules.ComputeRoundScore(rules.RoundScoreParams{
			GahwaCalled: true, GahwaCallingTeam: doublerTeam,
		})
		if result.MatchLoserTeam == 0 {
			r.match.WinningTeam = 1
		} else {
			r.match.WinningTeam = 0
		}
		r.match.Over = true
		r.state = StateFinished
		r.round.Phase = PhaseGameOver
		return nil
	}

	return nil
}

func (r *Room) endDoublingStartPlay() error {
	r.round.Phase = PhasePlaying
	r.round.CurrentTurn = (r.round.DealerSeat + 1) % 4
	return nil
}
