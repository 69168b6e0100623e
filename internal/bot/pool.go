package bot

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// WorkerPool drains a Dispatcher's job queue with a fixed number of
// concurrent workers, fanning decisions out across seats and rooms so one
// slow Strategy.Decide call never delays every other bot's turn (spec §4.5:
// "the orchestrator never blocks the room loop thread", and the domain
// stack's errgroup-based fan-out). Used for the in-process Heuristic
// strategy; an external deployment instead runs botsdk workers consuming
// the same queue over the wire.
type WorkerPool struct {
	dispatcher *Dispatcher
	strategy   Strategy
	concurrency int
	logger      zerolog.Logger
}

func NewWorkerPool(d *Dispatcher, strategy Strategy, concurrency int, logger zerolog.Logger) *WorkerPool {
	if concurrency <= 0 {
		concurrency = 4
	}
	if strategy == nil {
		strategy = Heuristic{}
	}
	return &WorkerPool{dispatcher: d, strategy: strategy, concurrency: concurrency, logger: logger.With().Str("component", "bot_pool").Logger()}
}

// Run drains jobs until ctx is cancelled, fanning them out across
// p.concurrency goroutines via errgroup.
func (p *WorkerPool) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.concurrency; i++ {
		g.Go(func() error {
			return p.worker(ctx)
		})
	}
	return g.Wait()
}

func (p *WorkerPool) worker(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case job, ok := <-p.dispatcher.Jobs():
			if !ok {
				return nil
			}
			p.handle(ctx, job)
		}
	}
}

func (p *WorkerPool) handle(ctx context.Context, job Job) {
	jobCtx, cancel := context.WithDeadline(ctx, job.Deadline)
	defer cancel()

	reply, err := p.strategy.Decide(jobCtx, job)
	if err != nil {
		p.logger.Warn().Err(err).Str("room_id", job.RoomID).Int("seat", job.Seat).Msg("bot strategy failed, deferring to turn-timeout auto-play")
		return
	}
	if err := p.dispatcher.Submit(ctx, reply); err != nil {
		p.logger.Warn().Err(err).Str("room_id", job.RoomID).Int("seat", job.Seat).Msg("bot reply submission failed")
	}
}
