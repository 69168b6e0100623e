package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/baloot/server/internal/bot"
	"github.com/baloot/server/internal/room"
)

// wireJob and wireReply are the JSON shapes exchanged with an external bot
// worker over /bot, matching botsdk.Job/botsdk.Reply (spec §6 Bot Agent
// contract). Kept as separate wire types here (rather than importing
// botsdk) since the gateway is the server side of that contract and
// botsdk is deliberately the client-only reference implementation.
type wireJob struct {
	JobID          string          `json:"jobId"`
	RoomID         string          `json:"roomId"`
	Seat           int             `json:"seat"`
	Snapshot       json.RawMessage `json:"snapshot"`
	AllowedActions []string        `json:"allowedActions"`
	DeadlineUnixMS int64           `json:"deadline"`
}

type wireReply struct {
	JobID     string          `json:"jobId"`
	Action    string          `json:"action"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Reasoning string          `json:"reasoning,omitempty"`
}

// handleBotSocket upgrades an external bot worker connection: it streams
// bot.Job values from the orchestrator's queue out over the wire and reads
// back replies, translating between the in-process bot.Job/bot.Reply
// shapes used by internal/bot and the wire envelope external workers speak.
func (g *Gateway) handleBotSocket(w http.ResponseWriter, r *http.Request) {
	wsConn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Error().Err(err).Msg("bot websocket upgrade failed")
		return
	}
	defer func() { _ = wsConn.Close() }()

	if g.bots == nil {
		_ = wsConn.Close()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go g.botReadLoop(ctx, wsConn)
	g.botWriteLoop(ctx, wsConn)
}

func (g *Gateway) botWriteLoop(ctx context.Context, wsConn *websocket.Conn) {
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-g.bots.Jobs():
			if !ok {
				return
			}
			snap, err := json.Marshal(job.Snapshot)
			if err != nil {
				g.logger.Warn().Err(err).Msg("failed to marshal bot job snapshot")
				continue
			}
			wj := wireJob{
				JobID:          job.ID,
				RoomID:         job.RoomID,
				Seat:           job.Seat,
				Snapshot:       snap,
				AllowedActions: job.AllowedActions,
				DeadlineUnixMS: job.Deadline.UnixMilli(),
			}
			_ = wsConn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := wsConn.WriteJSON(wj); err != nil {
				g.logger.Warn().Err(err).Msg("failed to publish bot job, worker likely disconnected")
				return
			}
		}
	}
}

func (g *Gateway) botReadLoop(ctx context.Context, wsConn *websocket.Conn) {
	for {
		var wr wireReply
		if err := wsConn.ReadJSON(&wr); err != nil {
			return
		}
		reply, err := decodeReply(wr)
		if err != nil {
			g.logger.Warn().Err(err).Str("job_id", wr.JobID).Msg("malformed bot reply, dropping")
			continue
		}
		if err := g.bots.Submit(ctx, reply); err != nil {
			g.logger.Warn().Err(err).Str("job_id", wr.JobID).Msg("bot reply submission failed")
		}
	}
}

// decodeReply turns the wire envelope into bot.Reply, routing the raw
// payload into whichever field matches reply.Action.
func decodeReply(wr wireReply) (bot.Reply, error) {
	reply := bot.Reply{JobID: wr.JobID, Action: room.ActionKind(wr.Action), Reasoning: wr.Reasoning}
	if len(wr.Payload) == 0 {
		return reply, nil
	}

	var generic struct {
		CardID    *uint8             `json:"cardId"`
		BidType   string             `json:"bidType"`
		TrumpSuit *uint8             `json:"trumpSuit"`
		Raise     *bool              `json:"raise"`
		Accept    *bool              `json:"accept"`
		Projects  []bot.ProjectClaim `json:"projects"`
	}
	if err := json.Unmarshal(wr.Payload, &generic); err != nil {
		return bot.Reply{}, err
	}
	reply.CardID = generic.CardID
	if generic.BidType != "" {
		reply.BidType = room.BidType(generic.BidType)
	}
	reply.TrumpSuit = generic.TrumpSuit
	reply.Raise = generic.Raise
	reply.Accept = generic.Accept
	reply.Projects = generic.Projects
	return reply, nil
}
