package room

import (
	"fmt"
	"time"

	"github.com/baloot/server/internal/rules"
)

// QaydStep is one step of the forensic dispute sub-machine (spec §4.4).
type QaydStep string

const (
	QaydIdle          QaydStep = "IDLE"
	QaydMenu          QaydStep = "MENU"
	QaydViolationPick QaydStep = "VIOLATION_PICK"
	QaydCrimePick     QaydStep = "CRIME_PICK"
	QaydProofPick     QaydStep = "PROOF_PICK"
	QaydVerdict       QaydStep = "VERDICT"
)

// QaydMenuOption is the reporter's step-2 choice.
type QaydMenuOption string

const (
	MenuRevealCards QaydMenuOption = "REVEAL_CARDS"
	MenuWrongSawa   QaydMenuOption = "WRONG_SAWA"
	MenuWrongAkka   QaydMenuOption = "WRONG_AKKA"
)

// ViolationType is the specific rule the reporter alleges was broken.
type ViolationType string

const (
	ViolationRevoke        ViolationType = "REVOKE"
	ViolationTrumpInDouble ViolationType = "TRUMP_IN_DOUBLE"
	ViolationNoOvertrump   ViolationType = "NO_OVERTRUMP"
	ViolationNoTrump       ViolationType = "NO_TRUMP"
	ViolationNoHigherCard  ViolationType = "NO_HIGHER_CARD"
)

// CardRef locates a played card within the round's trick history.
type CardRef struct {
	TrickIndex int
	Seat       int
	Card       rules.Card
}

// Verdict is the machine's deterministic ruling at step 6.
type Verdict struct {
	Guilty bool
	Reason string
}

// QaydState is the live dispute in progress, embedded in a Round while its
// Phase is PhaseQayd.
type QaydState struct {
	Step          QaydStep
	ReporterSeat  int
	MenuOption    QaydMenuOption
	Violation     ViolationType
	CrimeCard     CardRef
	ProofCard     CardRef
	Deadline      time.Time
	Verdict       *Verdict
	PausedAtSeat  int // the seat whose turn was interrupted, resumed on abort
}

// DoubleJeopardyLedger rejects a (round, crime-card) pair already litigated
// this round (spec §4.4, testable property 8).
type DoubleJeopardyLedger struct {
	seen map[string]bool
}

func NewDoubleJeopardyLedger() *DoubleJeopardyLedger {
	return &DoubleJeopardyLedger{seen: make(map[string]bool)}
}

func ledgerKey(roundSeed int64, crime CardRef) string {
	return fmt.Sprintf("%d-%s-%d-%d", roundSeed, crime.Card, crime.TrickIndex, crime.Seat)
}

// CheckAndRecord reports whether this (round, crime) accusation has already
// been litigated; if not, it records it and returns false (not a repeat).
func (l *DoubleJeopardyLedger) CheckAndRecord(roundSeed int64, crime CardRef) (repeat bool) {
	key := ledgerKey(roundSeed, crime)
	if l.seen[key] {
		return true
	}
	l.seen[key] = true
	return false
}

// triggerQayd starts a dispute, pausing the active seat's trick clock.
func (r *Room) triggerQayd(reporterSeat int) error {
	if r.round == nil || (r.round.Phase != PhasePlaying && r.round.Phase != PhaseQayd) {
		return errQaydOutOfStep("qayd may only be triggered during play")
	}
	if r.round.Qayd != nil && r.round.Qayd.Step != QaydIdle {
		return errQaydOutOfStep("a dispute is already in progress")
	}

	r.round.Qayd = &QaydState{
		Step:         QaydMenu,
		ReporterSeat: reporterSeat,
		Deadline:     r.clock().Add(60 * time.Second),
		PausedAtSeat: r.round.CurrentTurn,
	}
	r.round.Phase = PhaseQayd
	return nil
}

func (r *Room) qaydPickMenu(seat int, option QaydMenuOption) error {
	q := r.round.Qayd
	if q == nil || q.Step != QaydMenu || seat != q.ReporterSeat {
		return errQaydOutOfStep("not at the menu step")
	}
	q.MenuOption = option

	switch option {
	case MenuRevealCards:
		q.Step = QaydViolationPick
		q.Deadline = r.clock().Add(60 * time.Second)
		return nil
	case MenuWrongSawa, MenuWrongAkka:
		// Adjudicated immediately against the claim on record: if there is
		// no outstanding Sawa/Akka claim to contest, the accusation fails.
		guilty := r.round.SawaClaimSeat >= 0 && option == MenuWrongSawa
		q.Verdict = &Verdict{Guilty: guilty, Reason: string(option)}
		q.Step = QaydVerdict
		return r.resolveQaydVerdict()
	}
	return errInvalidPayload("unknown qayd menu option")
}

func (r *Room) qaydPickViolation(seat int, v ViolationType) error {
	q := r.round.Qayd
	if q == nil || q.Step != QaydViolationPick || seat != q.ReporterSeat {
		return errQaydOutOfStep("not at the violation-pick step")
	}
	q.Violation = v
	q.Step = QaydCrimePick
	q.Deadline = r.clock().Add(60 * time.Second)
	return nil
}

func (r *Room) qaydPickCrime(seat int, crime CardRef) error {
	q := r.round.Qayd
	if q == nil || q.Step != QaydCrimePick || seat != q.ReporterSeat {
		return errQaydOutOfStep("not at the crime-pick step")
	}
	q.CrimeCard = crime
	q.Step = QaydProofPick
	q.Deadline = r.clock().Add(60 * time.Second)
	return nil
}

func (r *Room) qaydPickProof(seat int, proof CardRef) error {
	q := r.round.Qayd
	if q == nil || q.Step != QaydProofPick || seat != q.ReporterSeat {
		return errQaydOutOfStep("not at the proof-pick step")
	}
	q.ProofCard = proof
	q.Step = QaydVerdict

	if r.jeopardy.CheckAndRecord(r.round.Seed, q.CrimeCard) {
		return errDoubleJeopardy("this crime card has already been litigated this round")
	}

	verdict := evaluateAccusation(q.Violation, q.CrimeCard, q.ProofCard, r.round)
	q.Verdict = &verdict
	return r.resolveQaydVerdict()
}

// evaluateAccusation is the RulesValidator of spec §4.4 step 6: it inspects
// the crime and proof cards against the round's trick history under the
// alleged violation and returns a deterministic verdict.
func evaluateAccusation(violation ViolationType, crime, proof CardRef, round *Round) Verdict {
	switch violation {
	case ViolationRevoke, ViolationNoHigherCard, ViolationNoTrump, ViolationNoOvertrump, ViolationTrumpInDouble:
		if proof.Card == crime.Card && proof.Seat == crime.Seat {
			// the accuser picked the same card twice; cannot be a genuine
			// contradiction.
			return Verdict{Guilty: false, Reason: "crime and proof reference the same card"}
		}
		if crime.TrickIndex < 0 || crime.TrickIndex >= len(round.Tricks) {
			return Verdict{Guilty: false, Reason: "crime card is not part of a completed trick"}
		}
		// The accused seat held the proof card at the time of the crime
		// trick iff it appears in a later-or-equal trick, or still in hand.
		heldAtCrimeTime := proof.TrickIndex >= crime.TrickIndex
		if heldAtCrimeTime && proof.Seat == crime.Seat {
			return Verdict{Guilty: true, Reason: "accused held a contradicting card at the time of the crime"}
		}
		return Verdict{Guilty: false, Reason: "proof does not contradict the crime"}
	default:
		return Verdict{Guilty: false, Reason: "unrecognized violation type"}
	}
}

// resolveQaydVerdict applies the verdict's score effect and tears down the
// dispute, resuming play.
func (r *Room) resolveQaydVerdict() error {
	q := r.round.Qayd
	pool := 26
	if r.round.Bid.Type == BidHokum {
		pool = 16
	}

	if q.Verdict.Guilty {
		r.endRoundQaydGuilty(q.ReporterSeat)
	} else {
		r.endRoundQaydFalseAccusation(q.ReporterSeat, pool)
	}

	r.round.Qayd = nil
	return nil
}

func (r *Room) endRoundQaydGuilty(reporterSeat int) {
	accuserTeam := reporterSeat % 2
	bidderTeam := r.round.Bid.BidderSeat % 2
	pool := 26
	if r.round.Bid.Type == BidHokum {
		pool = 16
	}
	if accuserTeam == 0 {
		r.match.TeamScores.Us += pool
	} else {
		r.match.TeamScores.Them += pool
	}
	r.match.RoundHistory = append(r.match.RoundHistory, RoundHistoryEntry{
		BidType: r.round.Bid.Type, BidderTeam: bidderTeam,
	})
	r.advanceToNextRoundOrGameOver()
}

func (r *Room) endRoundQaydFalseAccusation(reporterSeat, pool int) {
	accuserTeam := reporterSeat % 2
	if accuserTeam == 0 {
		r.match.TeamScores.Them += pool
	} else {
		r.match.TeamScores.Us += pool
	}
	r.round.Phase = PhasePlaying
}

// abortQaydOnDeadline implements "deadline expiring aborts the dispute with
// no penalty and resumes play".
func (r *Room) abortQaydOnDeadline() {
	r.round.Qayd = nil
	r.round.Phase = PhasePlaying
}
