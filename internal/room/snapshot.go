package room

import "github.com/baloot/server/internal/rules"

// PlayerView is one seat as visible to a particular observer: hand is only
// populated for the observer's own seat, everyone else gets a card count.
type PlayerView struct {
	Seat         int
	DisplayName  string
	IsBot        bool
	Connected    bool
	TricksWon    int
	HandCount    int
	Hand         []rules.Card // populated only for the requesting seat
}

// SawaView mirrors an outstanding claim-Sawa window, if one is open.
type SawaView struct {
	ClaimSeat int
	Deadline  int64 // unix millis, 0 if no claim outstanding
}

// QaydView is the observer-facing projection of QaydState.
type QaydView struct {
	Step         QaydStep
	ReporterSeat int
	MenuOption   QaydMenuOption
	Violation    ViolationType
	Verdict      *Verdict
}

// Snapshot is the full observer-scoped view of a Room broadcast after every
// mutation (spec §4.8 "game_update" event payload).
type Snapshot struct {
	RoomID  string
	Version uint64
	State   RegistryState

	Players     [4]PlayerView
	Phase       Phase
	BidType     BidType
	TrumpSuit   rules.Suit
	BidderSeat  int
	DoublingLvl DoublingLevel

	DealerSeat    int
	CurrentTurn   int
	TableCards    []TrickPlay
	RoundTricks   []CompletedTrick
	Declarations  map[int][]rules.Project
	FloorCard     rules.Card
	HasFloorCard  bool

	TeamScores   TeamScores
	RoundHistory []RoundHistoryEntry
	TargetScore  int
	MatchOver    bool
	WinningTeam  int

	Sawa *SawaView
	Qayd *QaydView

	Settings Settings
}

func (r *Room) buildSnapshot(observerSeat int) Snapshot {
	snap := Snapshot{
		RoomID:   r.ID,
		Version:  r.version,
		State:    r.state,
		Settings: r.settings,
	}

	for i, p := range r.seats {
		if p == nil {
			continue
		}
		view := PlayerView{
			Seat: p.Seat, DisplayName: p.DisplayName, IsBot: p.IsBot,
			Connected: !p.Disconnected, TricksWon: p.TricksWon, HandCount: len(p.Hand),
		}
		if i == observerSeat {
			view.Hand = p.Hand
		}
		snap.Players[i] = view
	}

	if r.match != nil {
		snap.TeamScores = r.match.TeamScores
		snap.RoundHistory = r.match.RoundHistory
		snap.TargetScore = r.match.TargetScore
		snap.MatchOver = r.match.Over
		snap.WinningTeam = r.match.WinningTeam
	}

	if r.round != nil {
		snap.Phase = r.round.Phase
		snap.BidType = r.round.Bid.Type
		snap.TrumpSuit = r.round.Bid.TrumpSuit
		snap.BidderSeat = r.round.Bid.BidderSeat
		snap.DoublingLvl = r.round.Bid.DoublingLevel
		snap.DealerSeat = r.round.DealerSeat
		snap.CurrentTurn = r.round.CurrentTurn
		snap.TableCards = r.round.Table
		snap.RoundTricks = r.round.Tricks
		snap.Declarations = r.round.Declarations
		snap.FloorCard = r.round.FloorCard
		snap.HasFloorCard = r.round.HasFloorCard

		if r.round.SawaClaimSeat >= 0 {
			snap.Sawa = &SawaView{ClaimSeat: r.round.SawaClaimSeat, Deadline: r.round.SawaDeadline.UnixMilli()}
		}
		if r.round.Qayd != nil {
			snap.Qayd = &QaydView{
				Step: r.round.Qayd.Step, ReporterSeat: r.round.Qayd.ReporterSeat,
				MenuOption: r.round.Qayd.MenuOption, Violation: r.round.Qayd.Violation,
				Verdict: r.round.Qayd.Verdict,
			}
		}
	} else {
		snap.WinningTeam = -1
	}

	return snap
}
