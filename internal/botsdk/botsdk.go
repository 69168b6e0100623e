// Package botsdk is the external Bot Agent contract of spec §6: a worker
// process consumes jobs from a queue and must publish exactly one reply
// per job within its deadline. The worker may be written in any language;
// this package is the reference Go client, mirrored on the teacher's own
// sdk package (a bot is just another websocket client, here dialing the
// gateway's dedicated bot endpoint instead of the player one).
package botsdk

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Job is the wire shape of one decision request (spec §6 Bot Agent
// contract: "{snapshot, seat, allowedActions, deadline}").
type Job struct {
	JobID          string          `json:"jobId"`
	RoomID         string          `json:"roomId"`
	Seat           int             `json:"seat"`
	Snapshot       json.RawMessage `json:"snapshot"`
	AllowedActions []string        `json:"allowedActions"`
	DeadlineUnixMS int64           `json:"deadline"`
}

// Deadline converts DeadlineUnixMS to a time.Time.
func (j Job) Deadline() time.Time {
	return time.UnixMilli(j.DeadlineUnixMS)
}

// Reply is the wire shape of a worker's one-and-only response to a Job
// (spec §6: "{action, payload, reasoning?}").
type Reply struct {
	JobID     string          `json:"jobId"`
	Action    string          `json:"action"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Reasoning string          `json:"reasoning,omitempty"`
}

// Handler is implemented by the bot's decision logic: given a Job, return
// the Reply to publish. Handlers should respect ctx's deadline, which the
// client binds to the job's own deadline.
type Handler interface {
	Decide(ctx context.Context, job Job) (Reply, error)
}

// Client is a minimal worker-process client: it dials the gateway's bot
// endpoint, reads Jobs, and writes back exactly one Reply per Job.
type Client struct {
	conn    *websocket.Conn
	handler Handler
	logger  zerolog.Logger

	mu sync.Mutex
}

// Dial connects to serverURL (a ws:// or wss:// bot endpoint, e.g.
// ws://host:port/bot) and returns a Client ready to Run.
func Dial(serverURL string, handler Handler, logger zerolog.Logger) (*Client, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn, handler: handler, logger: logger.With().Str("component", "botsdk_client").Logger()}, nil
}

// Run reads jobs until ctx is cancelled or the connection closes, spawning
// one goroutine per job so a slow Decide call never delays the next job's
// read (the server-side orchestrator already bounds each job by its own
// deadline; overrunning it just means the room's turn-timeout auto-play
// wins the race).
func (c *Client) Run(ctx context.Context) error {
	defer c.conn.Close()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		var job Job
		if err := c.conn.ReadJSON(&job); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error().Err(err).Msg("bot worker connection closed unexpectedly")
			}
			return err
		}

		go c.handle(ctx, job)
	}
}

func (c *Client) handle(ctx context.Context, job Job) {
	jobCtx, cancel := context.WithDeadline(ctx, job.Deadline())
	defer cancel()

	reply, err := c.handler.Decide(jobCtx, job)
	if err != nil {
		c.logger.Warn().Err(err).Str("job_id", job.JobID).Msg("handler failed to decide, job will time out server-side")
		return
	}
	reply.JobID = job.JobID

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.WriteJSON(reply); err != nil {
		c.logger.Warn().Err(err).Str("job_id", job.JobID).Msg("failed to publish reply")
	}
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return errors.New("botsdk: not connected")
	}
	return c.conn.Close()
}
