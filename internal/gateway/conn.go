package gateway

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"github.com/baloot/server/internal/apperr"
	"github.com/baloot/server/internal/ratelimit"
	"github.com/baloot/server/internal/room"
	"github.com/baloot/server/internal/rules"
)

// InEvent is the envelope every client message arrives wrapped in (spec
// §4.8 events-in: "{name, seq, payload}").
type InEvent struct {
	Name    string          `json:"name"`
	Seq     int64           `json:"seq"`
	Payload json.RawMessage `json:"payload"`
}

// OutEvent is the envelope every server-originated message is wrapped in.
type OutEvent struct {
	Name    string `json:"name"`
	Seq     int64  `json:"seq,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

type errorPayload struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// conn is one player's live websocket connection, pumping InEvents in and
// OutEvents out, mirrored on the teacher's Connection (connection.go).
type conn struct {
	sessionID string
	ws        *websocket.Conn
	gw        *Gateway

	send   chan OutEvent
	ctx    context.Context
	cancel context.CancelFunc

	roomID string
	events <-chan room.RoomEvent
}

func newConn(sessionID string, ws *websocket.Conn, gw *Gateway) *conn {
	ctx, cancel := context.WithCancel(context.Background())
	return &conn{
		sessionID: sessionID,
		ws:        ws,
		gw:        gw,
		send:      make(chan OutEvent, 256),
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (c *conn) run() {
	go c.writePump()
	c.readPump()
}

func (c *conn) close() {
	c.cancel()
	if r, ok := c.gw.registry.FindByRoom(c.roomID); ok {
		r.Unsubscribe(c.sessionID)
	}
}

func (c *conn) sendEvent(name string, payload any) {
	select {
	case c.send <- OutEvent{Name: name, Payload: payload}:
	case <-c.ctx.Done():
	default:
		c.gw.logger.Warn().Str("session_id", c.sessionID).Msg("send buffer full, dropping event")
	}
}

func (c *conn) sendError(err error) {
	k := apperr.KindOf(err)
	c.sendEvent("error", errorPayload{Kind: string(k), Message: err.Error()})
}

func (c *conn) readPump() {
	defer c.close()

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var in InEvent
		if err := c.ws.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.gw.logger.Debug().Err(err).Str("session_id", c.sessionID).Msg("websocket closed")
			}
			return
		}
		c.handleEvent(in)
	}
}

func (c *conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case out, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteJSON(out); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

// subscribeToRoom wires this connection's outbound channel to the room's
// broadcast (spec §4.8 out-event "game_update"), forwarding ROOM_GONE too.
func (c *conn) subscribeToRoom(roomID string) {
	r, ok := c.gw.registry.FindByRoom(roomID)
	if !ok {
		c.sendError(apperr.New(apperr.RoomGone, "room no longer exists"))
		return
	}
	c.roomID = roomID
	c.events = r.Subscribe(c.sessionID)
	go c.pumpRoomEvents()
}

func (c *conn) pumpRoomEvents() {
	for evt := range c.events {
		if evt.Err != nil {
			c.sendEvent("error", errorPayload{Kind: string(evt.Err.Kind), Message: evt.Err.Message})
			continue
		}
		c.sendEvent("game_update", evt.Snapshot)
	}
}

func (c *conn) tryReconnect(ctx context.Context) {
	if c.gw.sessions == nil {
		return
	}
	r, seat, err := c.gw.sessions.Reconnect(ctx, c.sessionID)
	if err != nil {
		c.sendError(err)
		return
	}
	c.roomID = r.ID
	c.events = r.Subscribe(c.sessionID)
	go c.pumpRoomEvents()
	c.sendEvent("reconnected", matchFoundPayload{RoomID: r.ID, Seat: seat})
}

func (c *conn) currentRoom() (*room.Room, bool) {
	if c.roomID == "" {
		return nil, false
	}
	return c.gw.registry.FindByRoom(c.roomID)
}

func (c *conn) submit(ctx context.Context, kind room.ActionKind, payload any) {
	r, ok := c.currentRoom()
	if !ok {
		c.sendError(apperr.New(apperr.RoomGone, "not currently in a room"))
		return
	}
	err := r.SubmitAction(ctx, room.Action{SessionID: c.sessionID, Kind: kind, Payload: payload})
	if err != nil {
		c.sendError(err)
	}
}

// handleEvent decodes and routes one inbound InEvent (spec §4.8).
func (c *conn) handleEvent(in InEvent) {
	ctx, cancel := context.WithTimeout(c.ctx, 5*time.Second)
	defer cancel()

	switch in.Name {
	case "queue_join":
		c.handleQueueJoin(ctx, in.Payload)
	case "queue_leave":
		c.gw.matchmaker.Leave(c.sessionID)
	case "queue_status":
		size, wait := c.gw.matchmaker.Status()
		c.sendEvent("queue_status", queueStatusPayload{Size: size, AvgWaitMS: wait.Milliseconds()})
	case "reconnect":
		c.tryReconnect(ctx)
	case "leave_room":
		c.submit(ctx, room.ActionLeave, nil)
	case "add_bot_seat":
		var p addBotSeatPayload
		if err := json.Unmarshal(in.Payload, &p); err != nil {
			c.sendError(apperr.New(apperr.InvalidPayload, "malformed add_bot_seat payload"))
			return
		}
		c.submit(ctx, room.ActionAddBotSeat, room.AddBotSeatPayload{Seat: p.Seat, Difficulty: p.Difficulty})
	case "bid":
		c.handleBid(ctx, in.Payload)
	case "double":
		var p doublePayload
		if err := json.Unmarshal(in.Payload, &p); err != nil {
			c.sendError(apperr.New(apperr.InvalidPayload, "malformed double payload"))
			return
		}
		c.submit(ctx, room.ActionDouble, room.DoublePayload{Raise: p.Raise})
	case "kawesh":
		c.submit(ctx, room.ActionKawesh, nil)
	case "play":
		if err := c.gw.limitCheck(ctx, c.sessionID, ratelimit.EventPlay); err != nil {
			c.sendError(err)
			return
		}
		var p playPayload
		if err := json.Unmarshal(in.Payload, &p); err != nil {
			c.sendError(apperr.New(apperr.InvalidPayload, "malformed play payload"))
			return
		}
		c.submit(ctx, room.ActionPlay, room.PlayPayload{Card: rules.CardByID(p.CardID)})
	case "declare_project":
		c.handleDeclareProject(ctx, in.Payload)
	case "declare_akka":
		c.submit(ctx, room.ActionDeclareAkka, nil)
	case "claim_sawa":
		c.submit(ctx, room.ActionClaimSawa, nil)
	case "sawa_response":
		var p sawaResponsePayload
		if err := json.Unmarshal(in.Payload, &p); err != nil {
			c.sendError(apperr.New(apperr.InvalidPayload, "malformed sawa_response payload"))
			return
		}
		c.submit(ctx, room.ActionSawaResponse, room.SawaResponsePayload{Accept: p.Accept})
	case "qayd_trigger":
		c.submit(ctx, room.ActionQaydTrigger, nil)
	case "qayd_menu":
		var p qaydMenuPayload
		if err := json.Unmarshal(in.Payload, &p); err != nil {
			c.sendError(apperr.New(apperr.InvalidPayload, "malformed qayd_menu payload"))
			return
		}
		c.submit(ctx, room.ActionQaydMenu, room.QaydMenuOption(p.Option))
	case "qayd_violation":
		var p qaydViolationPayload
		if err := json.Unmarshal(in.Payload, &p); err != nil {
			c.sendError(apperr.New(apperr.InvalidPayload, "malformed qayd_violation payload"))
			return
		}
		c.submit(ctx, room.ActionQaydViolation, room.ViolationType(p.Violation))
	case "qayd_crime":
		c.submitCardRef(ctx, room.ActionQaydCrime, in.Payload)
	case "qayd_proof":
		c.submitCardRef(ctx, room.ActionQaydProof, in.Payload)
	case "chat":
		c.handleChat(ctx, in.Payload)
	default:
		c.sendError(apperr.New(apperr.InvalidPayload, "unknown event name "+in.Name))
	}
}

func (c *conn) handleQueueJoin(ctx context.Context, raw json.RawMessage) {
	var p queueJoinPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		c.sendError(apperr.New(apperr.InvalidPayload, "malformed queue_join payload"))
		return
	}
	size, err := c.gw.matchmaker.Join(ctx, c.sessionID, p.DisplayName, p.Elo)
	if err != nil {
		c.sendError(err)
		return
	}
	c.sendEvent("queue_joined", queueStatusPayload{Size: size})
}

func (c *conn) handleBid(ctx context.Context, raw json.RawMessage) {
	var p bidPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		c.sendError(apperr.New(apperr.InvalidPayload, "malformed bid payload"))
		return
	}
	payload := room.BidPayload{Type: room.BidType(p.Type), TrumpSuit: rules.Suit(p.TrumpSuit)}
	c.submit(ctx, room.ActionBid, payload)
}

func (c *conn) handleDeclareProject(ctx context.Context, raw json.RawMessage) {
	var p declareProjectPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		c.sendError(apperr.New(apperr.InvalidPayload, "malformed declare_project payload"))
		return
	}
	projects := make([]rules.Project, 0, len(p.Projects))
	for _, pc := range p.Projects {
		cards := make([]rules.Card, 0, len(pc.Cards))
		for _, id := range pc.Cards {
			cards = append(cards, rules.CardByID(id))
		}
		projects = append(projects, rules.Project{Type: rules.ProjectType(pc.Type), Suit: rules.Suit(pc.Suit), Cards: cards})
	}
	c.submit(ctx, room.ActionDeclareProject, room.DeclareProjectPayload{Projects: projects})
}

func (c *conn) submitCardRef(ctx context.Context, kind room.ActionKind, raw json.RawMessage) {
	var p cardRefPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		c.sendError(apperr.New(apperr.InvalidPayload, "malformed card reference payload"))
		return
	}
	c.submit(ctx, kind, room.CardRef{TrickIndex: p.TrickIndex, Seat: p.Seat, Card: rules.CardByID(p.CardID)})
}

// handleChat is a stateless rate-limited relay: chat has no game-state
// effect, so it never touches the room loop, only fellow subscribers of
// the same room (spec §4.9 "chat" bucket; no chat persistence or
// moderation is in scope).
func (c *conn) handleChat(ctx context.Context, raw json.RawMessage) {
	if err := c.gw.limitCheck(ctx, c.sessionID, ratelimit.EventChat); err != nil {
		c.sendError(err)
		return
	}
	var p chatPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		c.sendError(apperr.New(apperr.InvalidPayload, "malformed chat payload"))
		return
	}
	if c.roomID == "" {
		return
	}
	c.gw.broadcastChat(c.roomID, c.sessionID, p.Text)
}

func (g *Gateway) limitCheck(ctx context.Context, sessionID string, kind ratelimit.EventKind) error {
	if g.limiter == nil {
		return nil
	}
	return g.limiter.Allow(ctx, sessionID, kind)
}

func (g *Gateway) broadcastChat(roomID, fromSessionID, text string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for sid, c := range g.conns {
		if c.roomID == roomID {
			c.sendEvent("chat", chatRelayPayload{From: fromSessionID, Text: text})
		}
		_ = sid
	}
}

type queueJoinPayload struct {
	DisplayName string `json:"displayName"`
	Elo         int    `json:"elo"`
}

type queueStatusPayload struct {
	Size      int   `json:"size"`
	AvgWaitMS int64 `json:"avgWaitMs,omitempty"`
}

type addBotSeatPayload struct {
	Seat       int    `json:"seat"`
	Difficulty string `json:"difficulty"`
}

type bidPayload struct {
	Type      string `json:"type"`
	TrumpSuit uint8  `json:"trumpSuit"`
}

type doublePayload struct {
	Raise bool `json:"raise"`
}

type playPayload struct {
	CardID uint8 `json:"cardId"`
}

type projectClaimPayload struct {
	Type  string  `json:"type"`
	Suit  uint8   `json:"suit"`
	Cards []uint8 `json:"cards"`
}

type declareProjectPayload struct {
	Projects []projectClaimPayload `json:"projects"`
}

type sawaResponsePayload struct {
	Accept bool `json:"accept"`
}

type qaydMenuPayload struct {
	Option string `json:"option"`
}

type qaydViolationPayload struct {
	Violation string `json:"violation"`
}

type cardRefPayload struct {
	TrickIndex int   `json:"trickIndex"`
	Seat       int   `json:"seat"`
	CardID     uint8 `json:"cardId"`
}

type chatPayload struct {
	Text string `json:"text"`
}

type chatRelayPayload struct {
	From string `json:"from"`
	Text string `json:"text"`
}
