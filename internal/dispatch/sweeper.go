package dispatch

import (
	"context"
	"time"

	"payout-engine/internal/core/ports"

	"github.com/rs/zerolog"
)

// Sweeper periodically enqueues a retry-sweep task. Going through the
// queue means exactly one worker executes each sweep even when several
// instances run a sweeper.
type Sweeper struct {
	dispatcher ports.TaskDispatcher
	interval   time.Duration
	log        zerolog.Logger
}

// NewSweeper creates a sweeper with the given tick interval.
func NewSweeper(dispatcher ports.TaskDispatcher, interval time.Duration, log zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Sweeper{
		dispatcher: dispatcher,
		interval:   interval,
		log:        log,
	}
}

// Run ticks until ctx is canceled. Blocking; run it in a goroutine.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info().Dur("interval", s.interval).Msg("retry sweeper started")
	for {
		select {
		case <-ctx.Done():
			s.log.Debug().Msg("retry sweeper stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Sweeper) tick(ctx context.Context) {
	taskID, err := s.dispatcher.Enqueue(ctx, ports.TaskKindRetrySweep, struct{}{})
	if err != nil {
		s.log.Error().Err(err).Msg("enqueue retry sweep failed")
		return
	}
	s.log.Debug().Str("task_id", taskID).Msg("retry sweep enqueued")
}
