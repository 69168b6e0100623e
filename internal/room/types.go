// Package room implements one Room's single-writer game state machine
// (spec §4.2-§4.4): seat and round lifecycle, bidding, doubling, trick
// play, project declarations, the Qayd dispute sub-machine, and scoring.
// All mutation happens inside the room loop goroutine started by Run; every
// other caller only ever touches the bounded SubmitAction channel and the
// read-only Subscribe broadcast.
package room

import (
	"time"

	"github.com/baloot/server/internal/rules"
)

// Phase is a step of the per-round state machine (spec §4.3).
type Phase string

const (
	PhaseWaiting          Phase = "WAITING"
	PhaseBidding          Phase = "BIDDING"
	PhaseDoubling         Phase = "DOUBLING"
	PhaseVariantSelection Phase = "VARIANT_SELECTION"
	PhasePlaying          Phase = "PLAYING"
	PhaseQayd             Phase = "QAYD"
	PhaseScoring          Phase = "SCORING"
	PhaseGameOver         Phase = "GAME_OVER"
)

// DoublingLevel tracks the 1x-4x escalation plus the terminal GAHWA step.
type DoublingLevel int

const (
	DoublingNone   DoublingLevel = 1
	DoublingDouble DoublingLevel = 2
	DoublingTriple DoublingLevel = 3
	DoublingQuad   DoublingLevel = 4
	DoublingGahwa  DoublingLevel = 100
)

// Player is one occupied or bot-held seat.
type Player struct {
	Seat               int
	DisplayName        string
	IsBot              bool
	SessionID          string
	Hand               []rules.Card
	TricksWon          int
	Disconnected       bool
	DisconnectDeadline time.Time
}

// BidType names the committed trump mode, or the still-undecided state.
type BidType string

const (
	BidNone   BidType = "NONE"
	BidSun    BidType = "SUN"
	BidHokum  BidType = "HOKUM"
	BidAshkal BidType = "ASHKAL"
)

// Bid is the round's committed (or in-progress) contract.
type Bid struct {
	Type          BidType
	TrumpSuit     rules.Suit
	BidderSeat    int
	DoublingLevel DoublingLevel
	DoublerSeat   int // seat that last raised the doubling level, -1 if none
}

// TrickPlay is one (seat, card) entry within the round's current or a
// completed trick.
type TrickPlay struct {
	Seat int
	Card rules.Card
}

// CompletedTrick is a closed 4-play trick.
type CompletedTrick struct {
	Plays      []TrickPlay
	WinnerSeat int
	Points     int
}

// Declaration is one seat's recorded project declarations for the round.
type Declaration struct {
	Seat     int
	Projects []rules.Project
}

// Round is the live state of the round in progress.
type Round struct {
	DealerSeat   int
	Bid          Bid
	Tricks       []CompletedTrick
	Table        []TrickPlay
	Declarations map[int][]rules.Project
	FloorCard    rules.Card
	HasFloorCard bool
	Phase        Phase
	StartedAt    time.Time
	Seed         int64

	Hands [4][]rules.Card

	CurrentTurn int
	BidderPassCount int
	BidRound        int // 1 or 2

	SawaClaimSeat     int // -1 if none
	SawaDeadline      time.Time
	SawaAwardedTeam   int // -1 if no early-claim award happened this round
	SawaAwardedPoints int

	Qayd *QaydState
}

// TeamScores is the cumulative match point tally (seats {0,2}=us, {1,3}=them).
type TeamScores struct {
	Us   int
	Them int
}

// RoundHistoryEntry records one scored round for the match log.
type RoundHistoryEntry struct {
	BidType    BidType
	BidderTeam int
	UsGP       int
	ThemGP     int
	Kaboot     bool
}

// Match is the best-of-target game across rounds.
type Match struct {
	TeamScores   TeamScores
	RoundHistory []RoundHistoryEntry
	TargetScore  int
	Over         bool
	WinningTeam  int // 0 = us, 1 = them, -1 if not over
}

// Settings are the room's per-match configurable knobs (spec snapshot
// "settings" field).
type Settings struct {
	TurnDuration    time.Duration
	DisconnectGrace time.Duration
	StrictMode      bool
	SoundEnabled    bool
	BotDifficulty   string
}

// RegistryState is the room's coarse lifecycle state as seen by C6.
type RegistryState string

const (
	StateLobby    RegistryState = "LOBBY"
	StateActive   RegistryState = "ACTIVE"
	StateFinished RegistryState = "FINISHED"
	// StateGone marks a room evicted after a panic in the room loop (spec §7).
	StateGone RegistryState = "GONE"
)
