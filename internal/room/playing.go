package room

import (
	"time"

	"github.com/baloot/server/internal/rules"
)

// PlayPayload is the payload for ActionPlay.
type PlayPayload struct {
	Card rules.Card
}

// DeclareProjectPayload is the payload for ActionDeclareProject: the seat
// asserts it holds these melds, checked against its actual hand.
type DeclareProjectPayload struct {
	Projects []rules.Project
}

// SawaResponsePayload is the payload for ActionSawaResponse.
type SawaResponsePayload struct {
	Accept bool
}

func (r *Room) handlePlay(a Action) error {
	if r.round == nil || r.round.Phase != PhasePlaying {
		return errOutOfTurn("not in the playing phase")
	}
	if r.round.SawaClaimSeat >= 0 {
		return errOutOfTurn("a sawa claim is pending response")
	}
	if a.Seat != r.round.CurrentTurn {
		return errOutOfTurn("not this seat's turn to play")
	}
	payload, _ := a.Payload.(PlayPayload)
	return r.playCard(a.Seat, payload.Card)
}

func (r *Room) mode() rules.Mode {
	if r.round.Bid.Type == BidHokum {
		return rules.Hokum
	}
	return rules.Sun
}

func (r *Room) playCard(seat int, card rules.Card) error {
	hand := r.round.Hands[seat]
	idx := -1
	for i, c := range hand {
		if c == card {
			idx = i
			break
		}
	}
	if idx == -1 {
		return errIllegalMove("card is not in seat's hand")
	}

	mode := r.mode()
	ok, violation := rules.IsLegalMove(seat, card, hand, r.tablePlays(), mode, r.round.Bid.TrumpSuit, int(r.round.Bid.DoublingLevel))
	if !ok {
		return apperrIllegalMoveViolation(violation)
	}

	hand = append(hand[:idx], hand[idx+1:]...)
	r.round.Hands[seat] = hand
	if p := r.seats[seat]; p != nil {
		p.Hand = hand
	}
	r.round.Table = append(r.round.Table, TrickPlay{Seat: seat, Card: card})

	if len(r.round.Table) < 4 {
		r.round.CurrentTurn = (seat + 1) % 4
		return nil
	}
	return r.resolveTrick()
}

func (r *Room) resolveTrick() error {
	mode := r.mode()
	plays := r.tablePlays()
	isLast := len(r.round.Tricks) == 7
	winner := rules.TrickWinner(plays, mode, r.round.Bid.TrumpSuit)
	points := rules.TrickPoints(plays, mode, r.round.Bid.TrumpSuit, isLast)

	r.round.Tricks = append(r.round.Tricks, CompletedTrick{
		Plays: r.round.Table, WinnerSeat: winner, Points: points,
	})
	r.round.Table = nil
	if p := r.seats[winner]; p != nil {
		p.TricksWon++
	}
	r.round.CurrentTurn = winner

	if len(r.round.Tricks) == 8 {
		return r.scoreRound()
	}
	return nil
}

func (r *Room) handleDeclareProject(a Action) error {
	if r.round == nil || r.round.Phase != PhasePlaying {
		return errOutOfTurn("projects may only be declared during play")
	}
	payload, _ := a.Payload.(DeclareProjectPayload)
	hand := r.seats[a.Seat].Hand
	eligible := rules.DetectProjects(hand, r.round.Bid.TrumpSuit, r.mode())

	for _, claimed := range payload.Projects {
		found := false
		for _, e := range eligible {
			if e.Type == claimed.Type && e.Suit == claimed.Suit {
				found = true
				break
			}
		}
		if !found {
			return errIllegalMove("declared project is not supported by the seat's hand")
		}
	}
	r.round.Declarations[a.Seat] = payload.Projects
	return nil
}

func (r *Room) handleDeclareAkka(a Action) error {
	if r.round == nil || r.round.Phase != PhasePlaying {
		return errOutOfTurn("AKKA may only be declared during play")
	}
	if r.round.Bid.Type != BidHokum {
		return errIllegalMove("AKKA only applies to a HOKUM contract")
	}
	if len(r.round.Table) != 0 {
		return errOutOfTurn("AKKA may only be declared between tricks")
	}
	if !r.holdsAllOutstandingTrumps(a.Seat) {
		return errIllegalMove("seat does not hold every outstanding trump card")
	}
	return r.awardRemainingTricksToTeam(a.Seat % 2)
}

func (r *Room) holdsAllOutstandingTrumps(seat int) bool {
	trumpSuit := r.round.Bid.TrumpSuit
	played := 0
	for _, t := range r.round.Tricks {
		for _, p := range t.Plays {
			if p.Card.Suit == trumpSuit {
				played++
			}
		}
	}
	remaining := 8 - played
	if remaining == 0 {
		return false
	}
	held := 0
	for _, c := range r.round.Hands[seat] {
		if c.Suit == trumpSuit {
			held++
		}
	}
	return held == remaining
}

func (r *Room) handleClaimSawa(a Action) error {
	if r.round == nil || r.round.Phase != PhasePlaying {
		return errOutOfTurn("sawa may only be claimed during play")
	}
	if len(r.round.Table) != 0 {
		return errOutOfTurn("sawa may only be claimed between tricks")
	}
	if r.round.SawaClaimSeat >= 0 {
		return errOutOfTurn("a sawa claim is already pending")
	}
	r.round.SawaClaimSeat = a.Seat
	r.round.SawaDeadline = r.clock().Add(30 * time.Second)
	return nil
}

func (r *Room) handleSawaResponse(a Action) error {
	if r.round == nil || r.round.SawaClaimSeat < 0 {
		return errOutOfTurn("no sawa claim is pending")
	}
	if a.Seat%2 == r.round.SawaClaimSeat%2 {
		return errOutOfTurn("only the opposing team may respond to a sawa claim")
	}
	payload, _ := a.Payload.(SawaResponsePayload)
	claimant := r.round.SawaClaimSeat
	if !payload.Accept {
		r.round.SawaClaimSeat = -1
		return nil
	}
	r.round.SawaClaimSeat = -1
	return r.awardRemainingTricksToTeam(claimant % 2)
}

// awardRemainingTricksToTeam ends the round early (an accepted Sawa claim or
// a validated Akka claim), crediting team with every point still live in any
// hand plus the final-trick bonus.
func (r *Room) awardRemainingTricksToTeam(team int) error {
	mode := r.mode()
	pts := 0
	for _, hand := range r.round.Hands {
		for _, c := range hand {
			pts += cardPoints(c, mode, r.round.Bid.TrumpSuit)
		}
	}
	pts += 10
	r.round.SawaAwardedTeam = team
	r.round.SawaAwardedPoints = pts
	for i := range r.round.Hands {
		r.round.Hands[i] = nil
	}
	return r.scoreRound()
}

func (r *Room) scoreRound() error {
	mode := r.mode()
	bidderTeam := r.round.Bid.BidderSeat % 2

	var teamPoints, teamTricks [2]int
	for _, t := range r.round.Tricks {
		team := t.WinnerSeat % 2
		teamPoints[team] += t.Points
		teamTricks[team]++
	}
	if r.round.SawaAwardedTeam >= 0 {
		teamPoints[r.round.SawaAwardedTeam] += r.round.SawaAwardedPoints
	}

	kabootTeam := -1
	switch {
	case teamTricks[0] == 8:
		kabootTeam = 0
	case teamTricks[1] == 8:
		kabootTeam = 1
	}

	teams := [2]rules.TeamDeclarations{{Team: 0}, {Team: 1}}
	for seat, projects := range r.round.Declarations {
		team := seat % 2
		teams[team].Projects = append(teams[team].Projects, projects...)
	}
	scoredA, scoredB := rules.ResolveDeclarationConflicts(teams)
	scored := [2][]rules.Project{scoredA, scoredB}

	defenderTeam := 1 - bidderTeam
	result := rules.ComputeRoundScore(rules.RoundScoreParams{
		Mode:               mode,
		BidderTeam:         bidderTeam,
		BidderAbnat:        teamPoints[bidderTeam],
		DefenderAbnat:      teamPoints[defenderTeam],
		KabootTeam:         kabootTeam,
		DoublingMultiplier: doublingMultiplier(r.round.Bid.DoublingLevel),
		BidderProjectsGP:   sumProjectGP(scored[bidderTeam]),
		DefenderProjectsGP: sumProjectGP(scored[defenderTeam]),
		BidderHasBaloot:    hasBaloot(scored[bidderTeam]),
		DefenderHasBaloot:  hasBaloot(scored[defenderTeam]),
	})

	usGP, themGP := result.BidderGP, result.DefenderGP
	if bidderTeam == 1 {
		usGP, themGP = result.DefenderGP, result.BidderGP
	}
	r.match.TeamScores.Us += usGP
	r.match.TeamScores.Them += themGP
	r.match.RoundHistory = append(r.match.RoundHistory, RoundHistoryEntry{
		BidType: r.round.Bid.Type, BidderTeam: bidderTeam,
		UsGP: usGP, ThemGP: themGP, Kaboot: kabootTeam >= 0,
	})

	r.advanceToNextRoundOrGameOver()
	return nil
}

func doublingMultiplier(level DoublingLevel) int {
	switch level {
	case DoublingDouble:
		return 2
	case DoublingTriple:
		return 3
	case DoublingQuad:
		return 4
	default:
		return 1
	}
}

func sumProjectGP(projects []rules.Project) int {
	sum := 0
	for _, p := range projects {
		sum += p.Value
	}
	return sum
}

func hasBaloot(projects []rules.Project) bool {
	for _, p := range projects {
		if p.Type == rules.ProjectBaloot {
			return true
		}
	}
	return false
}

func apperrIllegalMoveViolation(v rules.Violation) error {
	return errIllegalMove(string(v))
}
