package rules

// Violation names why a candidate move is illegal. The empty Violation ("")
// paired with ok=true means the move is legal.
type Violation string

const (
	ViolationNone              Violation = ""
	ViolationMustFollowSuit    Violation = "MUST_FOLLOW_SUIT"
	ViolationMustPlayTrump     Violation = "MUST_PLAY_TRUMP"
	ViolationMustOvertrump     Violation = "MUST_OVERTRUMP"
	ViolationCannotLeadTrump   Violation = "CANNOT_LEAD_TRUMP"
	ViolationCardNotInHand     Violation = "CARD_NOT_IN_HAND"
)

// TablePlay is one (seat, card) entry already on the table in the current trick.
type TablePlay struct {
	Seat int
	Card Card
}

func isLegalLead(card Card, hand []Card, mode Mode, trumpSuit Suit, doublingLevel int) (bool, Violation) {
	if mode == Hokum && doublingLevel >= 2 && card.Suit == trumpSuit {
		if hasNonTrump(hand, trumpSuit) {
			return false, ViolationCannotLeadTrump
		}
	}
	return true, ViolationNone
}

// IsLegalMove reports whether actingSeat playing card is legal for a hand
// holding the given cards, given what is already on the table this trick,
// the round's mode, trump suit (meaningless when mode is Sun), and current
// doubling level (spec §4.1). actingSeat is needed to evaluate the HOKUM
// no-overtrump partner exception: a seat need not overtrump its own
// partner's winning trump.
func IsLegalMove(actingSeat int, card Card, hand []Card, table []TablePlay, mode Mode, trumpSuit Suit, doublingLevel int) (bool, Violation) {
	if !contains(hand, card) {
		return false, ViolationCardNotInHand
	}
	if len(table) == 0 {
		return isLegalLead(card, hand, mode, trumpSuit, doublingLevel)
	}

	leadSuit := table[0].Card.Suit
	if suitPresent(hand, leadSuit) {
		if card.Suit != leadSuit {
			return false, ViolationMustFollowSuit
		}
		return true, ViolationNone
	}

	if mode != Hokum {
		return true, ViolationNone
	}

	hasTrump := suitPresent(hand, trumpSuit)
	if !hasTrump {
		return true, ViolationNone
	}
	if card.Suit != trumpSuit {
		return false, ViolationMustPlayTrump
	}

	highestTrumpSeat, highestTrumpRank, anyTrumpPlayed := highestTrumpOnTable(table, trumpSuit)
	if !anyTrumpPlayed {
		return true, ViolationNone
	}
	if isPartner(actingSeat, highestTrumpSeat) {
		return true, ViolationNone
	}
	if HokumTrumpStrength(card.Rank) <= highestTrumpRank && hasHigherTrump(hand, trumpSuit, highestTrumpRank) {
		return false, ViolationMustOvertrump
	}
	return true, ViolationNone
}

func highestTrumpOnTable(table []TablePlay, trumpSuit Suit) (seat int, strength int, any bool) {
	best := -1
	bestSeat := -1
	for _, play := range table {
		if play.Card.Suit != trumpSuit {
			continue
		}
		s := HokumTrumpStrength(play.Card.Rank)
		if s > best {
			best = s
			bestSeat = play.Seat
		}
	}
	if bestSeat == -1 {
		return -1, -1, false
	}
	return bestSeat, best, true
}

func hasHigherTrump(hand []Card, trumpSuit Suit, minStrength int) bool {
	for _, c := range hand {
		if c.Suit == trumpSuit && HokumTrumpStrength(c.Rank) > minStrength {
			return true
		}
	}
	return false
}

func hasNonTrump(hand []Card, trumpSuit Suit) bool {
	for _, c := range hand {
		if c.Suit != trumpSuit {
			return true
		}
	}
	return false
}

func suitPresent(hand []Card, suit Suit) bool {
	for _, c := range hand {
		if c.Suit == suit {
			return true
		}
	}
	return false
}

func contains(hand []Card, card Card) bool {
	for _, c := range hand {
		if c == card {
			return true
		}
	}
	return false
}

// isPartner reports whether two seats are teammates: {0,2} and {1,3}.
func isPartner(a, b int) bool {
	if a < 0 || b < 0 {
		return false
	}
	return a%2 == b%2
}
