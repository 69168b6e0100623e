// Package gateway implements the Event Gateway (C8, spec §4.8): the single
// websocket front door that turns client JSON events into room.Action
// submissions and room/matchmaker state into outbound JSON events, plus a
// second endpoint bridging external bot workers to the in-process
// orchestrator's job queue. Grounded in the teacher's own server.go
// route table and connection.go read/write pumps.
package gateway

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/baloot/server/internal/bot"
	"github.com/baloot/server/internal/matchmaker"
	"github.com/baloot/server/internal/ratelimit"
	"github.com/baloot/server/internal/room"
	"github.com/baloot/server/internal/session"
)

// Registry is the narrow capability the gateway needs from the room
// registry (C6), kept as an interface for the same reason room.BotDispatcher
// and session.RoomLookup are.
type Registry interface {
	FindByRoom(roomID string) (*room.Room, bool)
	FindBySession(sessionID string) (*room.Room, bool)
	BindSession(sessionID, roomID string)
	UnbindSession(sessionID string)
}

// Gateway owns the HTTP server and every live websocket connection.
type Gateway struct {
	mux        *http.ServeMux
	httpServer *http.Server
	upgrader   websocket.Upgrader

	registry   Registry
	matchmaker *matchmaker.Matchmaker
	sessions   *session.Store
	limiter    *ratelimit.Limiter
	bots       *bot.Dispatcher
	settings   room.Settings

	logger zerolog.Logger

	routesOnce sync.Once
	mu         sync.Mutex
	conns      map[string]*conn // sessionId -> conn, for match_found/chat fan-out
}

// New builds a Gateway. corsOrigins lists the origins allowed to upgrade;
// an empty list allows any origin (spec §6 default, matching the teacher's
// permissive demo CheckOrigin).
func New(registry Registry, mm *matchmaker.Matchmaker, sessions *session.Store, limiter *ratelimit.Limiter, bots *bot.Dispatcher, settings room.Settings, corsOrigins []string, logger zerolog.Logger) *Gateway {
	g := &Gateway{
		mux:        http.NewServeMux(),
		registry:   registry,
		matchmaker: mm,
		sessions:   sessions,
		limiter:    limiter,
		bots:       bots,
		settings:   settings,
		logger:     logger.With().Str("component", "gateway").Logger(),
		conns:      make(map[string]*conn),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     buildOriginCheck(corsOrigins),
		},
	}
	go g.pumpMatchFound()
	return g
}

func buildOriginCheck(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[strings.TrimSpace(o)] = true
	}
	return func(r *http.Request) bool {
		return set[r.Header.Get("Origin")]
	}
}

func (g *Gateway) ensureRoutes() {
	g.routesOnce.Do(func() {
		g.mux.HandleFunc("/ws", g.handlePlayerSocket)
		g.mux.HandleFunc("/bot", g.handleBotSocket)
		g.mux.HandleFunc("/health", g.handleHealth)
	})
}

// Serve starts the HTTP server on addr and blocks until it stops.
func (g *Gateway) Serve(addr string) error {
	g.ensureRoutes()
	g.httpServer = &http.Server{Addr: addr, Handler: g.mux}
	g.logger.Info().Str("addr", addr).Msg("gateway listening")
	err := g.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the HTTP server.
func (g *Gateway) Shutdown(ctx context.Context) error {
	if g.httpServer == nil {
		return nil
	}
	return g.httpServer.Shutdown(ctx)
}

func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK\n"))
}

// handlePlayerSocket upgrades a player connection. A session id is carried
// as the ?session= query parameter so it survives reconnects (spec §4.10);
// a first-time client omits it and is issued a fresh one.
func (g *Gateway) handlePlayerSocket(w http.ResponseWriter, r *http.Request) {
	wsConn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	sessionID := r.URL.Query().Get("session")
	resumed := sessionID != ""
	if !resumed {
		sessionID = uuid.NewString()
	}

	c := newConn(sessionID, wsConn, g)
	g.register(c)
	defer g.unregister(sessionID)

	c.sendEvent("session", sessionPayload{SessionID: sessionID})

	if resumed {
		c.tryReconnect(context.Background())
	}

	c.run()
}

type sessionPayload struct {
	SessionID string `json:"sessionId"`
}

func (g *Gateway) register(c *conn) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.conns[c.sessionID] = c
}

func (g *Gateway) unregister(sessionID string) {
	g.mu.Lock()
	c, ok := g.conns[sessionID]
	if ok {
		delete(g.conns, sessionID)
	}
	g.mu.Unlock()
	if ok {
		c.close()
	}
}

func (g *Gateway) connFor(sessionID string) (*conn, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.conns[sessionID]
	return c, ok
}

// pumpMatchFound relays the matchmaker's pairing notifications to whichever
// connection is still open for that session (spec §4.8 out-event
// match_found), and binds the session into the registry/session store.
func (g *Gateway) pumpMatchFound() {
	for mf := range g.matchmaker.Found() {
		g.registry.BindSession(mf.SessionID, mf.RoomID)
		if g.sessions != nil {
			_ = g.sessions.Bind(context.Background(), mf.SessionID, mf.RoomID, mf.Seat)
		}
		if c, ok := g.connFor(mf.SessionID); ok {
			c.sendEvent("match_found", matchFoundPayload{RoomID: mf.RoomID, Seat: mf.Seat})
			c.subscribeToRoom(mf.RoomID)
		}
	}
}

type matchFoundPayload struct {
	RoomID string `json:"roomId"`
	Seat   int    `json:"seat"`
}

const writeWait = 10 * time.Second
const pongWait = 60 * time.Second
const pingPeriod = (pongWait * 9) / 10
const maxMessageSize = 8192
