package room

import "github.com/baloot/server/internal/apperr"

func errInvalidPayload(msg string) error { return apperr.New(apperr.InvalidPayload, msg) }
func errNotSeated(msg string) error      { return apperr.New(apperr.NotSeated, msg) }
func errOutOfTurn(msg string) error      { return apperr.New(apperr.OutOfTurn, msg) }
func errIllegalMove(msg string) error    { return apperr.New(apperr.IllegalMove, msg) }
func errQaydOutOfStep(msg string) error  { return apperr.New(apperr.QaydOutOfStep, msg) }
func errDoubleJeopardy(msg string) error { return apperr.New(apperr.DoubleJeopardy, msg) }
func errBusy(msg string) error           { return apperr.New(apperr.Busy, msg) }
func errSessionUnknown(msg string) error { return apperr.New(apperr.SessionUnknown, msg) }

func apperrRoomFull() error { return apperr.New(apperr.RoomFull, "room has no empty seats") }
func apperrRoomGone(msg string) *apperr.Error { return apperr.New(apperr.RoomGone, msg) }
