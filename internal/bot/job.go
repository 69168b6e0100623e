// Package bot implements the Bot Orchestrator (C5, spec §4.5): after every
// room transition that lands on a bot seat, it builds an immutable
// snapshot, schedules a decision on a worker pool via a job submission
// contract, and injects the worker's reply back into the room loop as if
// it were a client action. It never blocks the room loop: RequestDecision
// only enqueues, and the room's own turn-timeout auto-play (spec §4.3)
// covers a worker that never replies.
package bot

import (
	"time"

	"github.com/baloot/server/internal/room"
)

// Job is one decision request handed to a worker (in-process or, for the
// external contract, over botsdk's wire format): spec §4.5 point 2.
type Job struct {
	ID             string
	RoomID         string
	Seat           int
	Snapshot       room.Snapshot
	AllowedActions []string
	Deadline       time.Time
}

// Reply is a worker's decision for one Job. Exactly one of the optional
// fields is meaningful, selected by Action. Reasoning is free text
// surfaced to clients as a bot_speak event (spec §6).
type Reply struct {
	JobID     string
	Action    room.ActionKind
	CardID    *uint8
	BidType   room.BidType
	TrumpSuit *uint8 // rules.Suit, kept untyped here to avoid a hard rules dependency in the wire contract
	Raise     *bool
	Accept    *bool
	Projects  []ProjectClaim
	Reasoning string
}

// ProjectClaim mirrors rules.Project's wire shape without importing rules
// into the job/reply contract, which botsdk also uses for out-of-process
// workers that should not need the whole rules package.
type ProjectClaim struct {
	Type  string
	Suit  uint8 // rules.Suit; meaningless for BALOOT/FOUR_HUNDRED
	Cards []uint8
}
