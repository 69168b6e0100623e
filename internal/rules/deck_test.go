package rules

import (
	"math/rand"
	"testing"
)

func TestDeckDeal(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(42))
	deck := NewDeck(rng)

	hand1 := deck.Deal(8)
	if len(hand1) != 8 {
		t.Fatalf("expected 8 cards, got %d", len(hand1))
	}
	hand2 := deck.Deal(8)
	for _, c1 := range hand1 {
		for _, c2 := range hand2 {
			if c1 == c2 {
				t.Errorf("dealt %s twice", c1)
			}
		}
	}

	if deck.CardsRemaining() != 16 {
		t.Errorf("expected 16 remaining, got %d", deck.CardsRemaining())
	}

	rest := deck.Deal(16)
	if len(rest) != 16 {
		t.Fatalf("expected 16 cards, got %d", len(rest))
	}

	if extra := deck.Deal(1); extra != nil {
		t.Error("should not be able to deal from an exhausted deck")
	}
}

func TestDeckShuffleDeterministic(t *testing.T) {
	t.Parallel()
	d1 := NewDeck(rand.New(rand.NewSource(7)))
	d2 := NewDeck(rand.New(rand.NewSource(7)))

	h1 := d1.Deal(32)
	h2 := d2.Deal(32)
	for i := range h1 {
		if h1[i] != h2[i] {
			t.Fatalf("same seed produced different deal at index %d: %s vs %s", i, h1[i], h2[i])
		}
	}
}

func TestDeckFloorCard(t *testing.T) {
	t.Parallel()
	deck := NewDeck(rand.New(rand.NewSource(1)))
	deck.Deal(20)

	peeked, ok := deck.FloorCard()
	if !ok {
		t.Fatal("expected a floor card with 12 cards left")
	}
	dealt := deck.Deal(1)
	if dealt[0] != peeked {
		t.Errorf("FloorCard() should peek the next dealt card: got %s, dealt %s", peeked, dealt[0])
	}

	deck.Deal(11)
	if _, ok := deck.FloorCard(); ok {
		t.Error("FloorCard() should report false on an exhausted deck")
	}
}
