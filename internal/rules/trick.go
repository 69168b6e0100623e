package rules

// TrickWinner returns the seat that wins a completed trick of plays, given
// the round's mode and trump suit (trumpSuit is ignored when mode is Sun).
// plays must be in play order with plays[0] the lead.
func TrickWinner(plays []TablePlay, mode Mode, trumpSuit Suit) int {
	if len(plays) == 0 {
		return -1
	}
	leadSuit := plays[0].Card.Suit
	best := plays[0]
	bestIsTrump := mode == Hokum && best.Card.Suit == trumpSuit

	for _, p := range plays[1:] {
		isTrump := mode == Hokum && p.Card.Suit == trumpSuit
		switch {
		case isTrump && !bestIsTrump:
			best, bestIsTrump = p, true
		case isTrump && bestIsTrump:
			if HokumTrumpStrength(p.Card.Rank) > HokumTrumpStrength(best.Card.Rank) {
				best = p
			}
		case !isTrump && bestIsTrump:
			// best stays: a trump always beats a plain follow.
		default:
			// Neither card is trump: only a lead-suit follow can beat the
			// current best, ranked in SUN order (HOKUM off-suit ranking
			// matches SUN ranking too).
			if p.Card.Suit == leadSuit && sunStrength[p.Card.Rank] > sunStrength[best.Card.Rank] {
				best = p
			}
		}
	}
	return best.Seat
}

// TrickPoints returns the abnat value of a completed trick, counting trump
// card values in HOKUM mode and SUN card values otherwise. isLast adds the
// final-trick +10 bonus (spec §3 Round.lastTrickBonus).
func TrickPoints(plays []TablePlay, mode Mode, trumpSuit Suit, isLast bool) int {
	total := 0
	for _, p := range plays {
		if mode == Hokum && p.Card.Suit == trumpSuit {
			total += hokumTrumpPoints[p.Card.Rank]
		} else {
			total += sunCardPoints[p.Card.Rank]
		}
	}
	if isLast {
		total += 10
	}
	return total
}
