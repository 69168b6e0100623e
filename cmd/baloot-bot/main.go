// Command baloot-bot is the reference external Bot Agent worker (spec §6):
// it dials a running server's /bot endpoint over botsdk and answers every
// job with a simple legal-move heuristic. It exists so the external worker
// contract has a runnable counterpart, the way the teacher ships sdk/bot.go
// alongside its own in-process bot pool.
package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog"

	"github.com/baloot/server/internal/botsdk"
	"github.com/baloot/server/internal/room"
	"github.com/baloot/server/internal/rules"
)

type CLI struct {
	Server string `kong:"default='ws://localhost:8080/bot',help='Gateway bot endpoint to dial'"`
	Debug  bool   `kong:"help='Enable debug logging'"`
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("baloot-bot"),
		kong.Description("External Baloot bot worker"),
		kong.UsageOnError(),
	)

	level := zerolog.InfoLevel
	if cli.Debug {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().
		Timestamp().
		Logger()

	client, err := botsdk.Dial(cli.Server, heuristic{}, logger)
	kctx.FatalIfErrorf(err)

	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info().Msg("shutting down baloot-bot")
		cancel()
		_ = client.Close()
	}()

	logger.Info().Str("server", cli.Server).Msg("baloot-bot connected")
	if err := client.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Fatal().Err(err).Msg("bot worker exited")
	}
}

// heuristic mirrors internal/bot.Heuristic's decision logic over the wire
// contract instead of the in-process Job/Reply types.
type heuristic struct{}

func (heuristic) Decide(_ context.Context, job botsdk.Job) (botsdk.Reply, error) {
	var snap room.Snapshot
	if err := json.Unmarshal(job.Snapshot, &snap); err != nil {
		return botsdk.Reply{}, err
	}

	switch snap.Phase {
	case room.PhaseBidding:
		return reply(job, room.ActionBid, map[string]any{"bidType": room.BidNone})
	case room.PhaseDoubling:
		return reply(job, room.ActionDouble, map[string]any{"raise": false})
	case room.PhasePlaying:
		return decidePlay(job, snap)
	default:
		return reply(job, room.ActionPlay, nil)
	}
}

func decidePlay(job botsdk.Job, snap room.Snapshot) (botsdk.Reply, error) {
	hand := snap.Players[job.Seat].Hand

	mode := rules.Sun
	if snap.BidType == room.BidHokum {
		mode = rules.Hokum
	}
	table := make([]rules.TablePlay, len(snap.TableCards))
	for i, t := range snap.TableCards {
		table[i] = rules.TablePlay{Seat: t.Seat, Card: t.Card}
	}

	var best rules.Card
	found := false
	for _, c := range hand {
		ok, _ := rules.IsLegalMove(job.Seat, c, hand, table, mode, snap.TrumpSuit, int(snap.DoublingLvl))
		if !ok {
			continue
		}
		if !found || rules.SunStrength(c.Rank) < rules.SunStrength(best.Rank) {
			best, found = c, true
		}
	}
	if !found && len(hand) > 0 {
		best, found = hand[0], true
	}
	if !found {
		return reply(job, room.ActionPlay, nil)
	}
	return reply(job, room.ActionPlay, map[string]any{"cardId": best.ID()})
}

func reply(job botsdk.Job, action room.ActionKind, payload map[string]any) (botsdk.Reply, error) {
	r := botsdk.Reply{JobID: job.JobID, Action: string(action)}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return botsdk.Reply{}, err
		}
		r.Payload = data
	}
	return r, nil
}
