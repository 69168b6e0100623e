package bot

import (
	"context"

	"github.com/baloot/server/internal/room"
	"github.com/baloot/server/internal/rules"
)

// Strategy decides one action for a Job. The in-process worker pool uses
// Heuristic by default; a real deployment instead runs bot workers as a
// separate process speaking the botsdk contract over the wire (spec §6),
// and never touches Strategy at all.
type Strategy interface {
	Decide(ctx context.Context, job Job) (Reply, error)
}

// Heuristic is a deliberately simple legal-move picker: pass whenever
// passing is legal, otherwise play the lowest-ranked legal card. It exists
// so the orchestrator has somewhere to route jobs when no external worker
// is configured; it is not a card-play AI.
type Heuristic struct{}

func (Heuristic) Decide(_ context.Context, job Job) (Reply, error) {
	seat := job.Snapshot.Players[job.Seat]

	switch job.Snapshot.Phase {
	case room.PhaseBidding:
		return Reply{JobID: job.ID, Action: room.ActionBid, BidType: room.BidNone}, nil
	case room.PhaseDoubling:
		no := false
		return Reply{JobID: job.ID, Action: room.ActionDouble, Raise: &no}, nil
	case room.PhasePlaying:
		return decidePlay(job, seat.Hand)
	default:
		return Reply{JobID: job.ID, Action: room.ActionPlay}, nil
	}
}

func decidePlay(job Job, hand []rules.Card) (Reply, error) {
	mode := rules.Sun
	if job.Snapshot.BidType == room.BidHokum {
		mode = rules.Hokum
	}
	table := make([]rules.TablePlay, len(job.Snapshot.TableCards))
	for i, t := range job.Snapshot.TableCards {
		table[i] = rules.TablePlay{Seat: t.Seat, Card: t.Card}
	}

	var best rules.Card
	found := false
	for _, c := range hand {
		ok, _ := rules.IsLegalMove(job.Seat, c, hand, table, mode, job.Snapshot.TrumpSuit, int(job.Snapshot.DoublingLvl))
		if !ok {
			continue
		}
		if !found || rules.SunStrength(c.Rank) < rules.SunStrength(best.Rank) {
			best, found = c, true
		}
	}
	if !found && len(hand) > 0 {
		best = hand[0]
		found = true
	}
	if !found {
		return Reply{}, nil
	}
	id := best.ID()
	return Reply{JobID: job.ID, Action: room.ActionPlay, CardID: &id}, nil
}
