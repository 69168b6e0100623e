package rules

import "testing"

func TestIsLegalMoveFollowSuit(t *testing.T) {
	t.Parallel()
	hand := []Card{{Hearts, King}, {Spades, Ace}}
	table := []TablePlay{{Seat: 1, Card: Card{Hearts, Ten}}}

	ok, v := IsLegalMove(0, Card{Hearts, King}, hand, table, Sun, Clubs, 1)
	if !ok || v != ViolationNone {
		t.Errorf("following suit should be legal, got ok=%v v=%v", ok, v)
	}

	ok, v = IsLegalMove(0, Card{Spades, Ace}, hand, table, Sun, Clubs, 1)
	if ok || v != ViolationMustFollowSuit {
		t.Errorf("off-suit while holding lead suit should be illegal, got ok=%v v=%v", ok, v)
	}
}

func TestIsLegalMoveCardNotInHand(t *testing.T) {
	t.Parallel()
	hand := []Card{{Hearts, King}}
	ok, v := IsLegalMove(0, Card{Spades, Ace}, hand, nil, Sun, Clubs, 1)
	if ok || v != ViolationCardNotInHand {
		t.Errorf("playing a card not in hand should be rejected, got ok=%v v=%v", ok, v)
	}
}

func TestIsLegalMoveHokumMustTrump(t *testing.T) {
	t.Parallel()
	// Void of lead suit, holds trump: must play trump.
	hand := []Card{{Spades, Seven}, {Clubs, King}}
	table := []TablePlay{{Seat: 1, Card: Card{Hearts, Ten}}}

	ok, v := IsLegalMove(0, Card{Clubs, King}, hand, table, Hokum, Spades, 1)
	if ok || v != ViolationMustPlayTrump {
		t.Errorf("holding trump while void should force trump, got ok=%v v=%v", ok, v)
	}

	ok, v = IsLegalMove(0, Card{Spades, Seven}, hand, table, Hokum, Spades, 1)
	if !ok || v != ViolationNone {
		t.Errorf("playing the held trump should be legal, got ok=%v v=%v", ok, v)
	}
}

func TestIsLegalMoveHokumOvertrump(t *testing.T) {
	t.Parallel()
	// Seat 2 is void of lead suit and holds two trumps; opponent seat 1 already
	// played trump, so seat 2 must play a higher trump if it has one.
	hand := []Card{{Spades, Seven}, {Spades, Ace}}
	table := []TablePlay{
		{Seat: 0, Card: Card{Hearts, Ten}},
		{Seat: 1, Card: Card{Spades, King}},
	}

	ok, v := IsLegalMove(2, Card{Spades, Seven}, hand, table, Hokum, Spades, 1)
	if ok || v != ViolationMustOvertrump {
		t.Errorf("must overtrump when a higher trump is held, got ok=%v v=%v", ok, v)
	}

	ok, v = IsLegalMove(2, Card{Spades, Ace}, hand, table, Hokum, Spades, 1)
	if !ok || v != ViolationNone {
		t.Errorf("playing the higher trump should satisfy overtrump, got ok=%v v=%v", ok, v)
	}
}

func TestIsLegalMoveNoOvertrumpWhenPartnerWinning(t *testing.T) {
	t.Parallel()
	// Seat 2's partner is seat 0; seat 0 already holds the best trump on the
	// table, so seat 2 is free to underplay.
	hand := []Card{{Spades, Seven}, {Spades, Ace}}
	table := []TablePlay{
		{Seat: 1, Card: Card{Hearts, Ten}},
		{Seat: 0, Card: Card{Spades, Ace}},
	}

	ok, v := IsLegalMove(2, Card{Spades, Seven}, hand, table, Hokum, Spades, 1)
	if !ok || v != ViolationNone {
		t.Errorf("no overtrump obligation when partner is already winning, got ok=%v v=%v", ok, v)
	}
}

func TestIsLegalMoveSunNoTrumpObligation(t *testing.T) {
	t.Parallel()
	// SUN has no trump suit: void of lead suit means anything goes.
	hand := []Card{{Clubs, Seven}, {Diamonds, Ace}}
	table := []TablePlay{{Seat: 1, Card: Card{Hearts, Ten}}}

	ok, v := IsLegalMove(0, Card{Clubs, Seven}, hand, table, Sun, Clubs, 1)
	if !ok || v != ViolationNone {
		t.Errorf("SUN void discard should be legal, got ok=%v v=%v", ok, v)
	}
}
