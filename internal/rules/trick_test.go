package rules

import "testing"

func TestTrickWinnerHokumTrumpCut(t *testing.T) {
	t.Parallel()
	// S1: Mode HOKUM, trump = hearts. Plays (A♠, 7♥, K♠, A♦); the 7♥ cuts
	// in and wins despite being the lowest-ranked card played.
	plays := []TablePlay{
		{Seat: 0, Card: Card{Spades, Ace}},
		{Seat: 1, Card: Card{Hearts, Seven}},
		{Seat: 2, Card: Card{Spades, King}},
		{Seat: 3, Card: Card{Diamonds, Ace}},
	}

	winner := TrickWinner(plays, Hokum, Hearts)
	if winner != 1 {
		t.Errorf("expected seat 1 (7♥ cutting in) to win, got seat %d", winner)
	}

	points := TrickPoints(plays, Hokum, Hearts, false)
	if points != 26 {
		t.Errorf("expected 26 abnat (11+0+4+11), got %d", points)
	}

	withBonus := TrickPoints(plays, Hokum, Hearts, true)
	if withBonus != 36 {
		t.Errorf("expected 36 abnat with last-trick bonus, got %d", withBonus)
	}
}

func TestTrickWinnerSunFollowsRank(t *testing.T) {
	t.Parallel()
	plays := []TablePlay{
		{Seat: 0, Card: Card{Clubs, Jack}},
		{Seat: 1, Card: Card{Clubs, Ace}},
		{Seat: 2, Card: Card{Hearts, King}}, // off-suit discard, cannot win
		{Seat: 3, Card: Card{Clubs, Seven}},
	}

	winner := TrickWinner(plays, Sun, Clubs)
	if winner != 1 {
		t.Errorf("expected seat 1 (A♣) to win, got seat %d", winner)
	}
}

func TestTrickWinnerHigherTrumpBeatsLowerTrump(t *testing.T) {
	t.Parallel()
	plays := []TablePlay{
		{Seat: 0, Card: Card{Hearts, Ten}},
		{Seat: 1, Card: Card{Spades, King}}, // trump, weaker
		{Seat: 2, Card: Card{Spades, Jack}}, // trump, strongest HOKUM trump
		{Seat: 3, Card: Card{Hearts, Ace}},
	}

	winner := TrickWinner(plays, Hokum, Spades)
	if winner != 2 {
		t.Errorf("expected seat 2 (J♠, top HOKUM trump) to win, got seat %d", winner)
	}
}
