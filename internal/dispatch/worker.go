// Package dispatch runs the asynchronous side of the payout engine:
// a worker pool consuming the task queue and a periodic sweeper that
// schedules retry sweeps.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"payout-engine/internal/core/ports"

	"github.com/rs/zerolog"
)

// maxDeliveries bounds redelivery of a failing task before it is dropped.
const maxDeliveries = 5

// dequeueBackoff is the pause after a queue error before polling again.
const dequeueBackoff = time.Second

// TaskSource is the consuming side of the task queue. Dequeue blocks
// until a task arrives or ctx is done; Requeue pushes a task back for
// redelivery.
type TaskSource interface {
	Dequeue(ctx context.Context) (*ports.Task, error)
	Requeue(ctx context.Context, task *ports.Task) error
}

// Pool consumes tasks with a fixed set of workers. Delivery is
// at-least-once: a task whose handler errors is requeued up to
// maxDeliveries times, and the handlers it drives are idempotent.
type Pool struct {
	source    TaskSource
	payoutSvc ports.PayoutService
	workers   int
	log       zerolog.Logger
	wg        sync.WaitGroup
}

// NewPool creates a worker pool.
func NewPool(source TaskSource, payoutSvc ports.PayoutService, workers int, log zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	return &Pool{
		source:    source,
		payoutSvc: payoutSvc,
		workers:   workers,
		log:       log,
	}
}

// Start launches the workers. They run until ctx is canceled.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			p.run(ctx, id)
		}(i)
	}
	p.log.Info().Int("workers", p.workers).Msg("dispatch workers started")
}

// Wait blocks until all workers have exited.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) run(ctx context.Context, id int) {
	log := p.log.With().Int("worker", id).Logger()
	for {
		task, err := p.source.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Debug().Msg("worker shutting down")
				return
			}
			log.Error().Err(err).Msg("dequeue failed, backing off")
			select {
			case <-ctx.Done():
				return
			case <-time.After(dequeueBackoff):
			}
			continue
		}
		if task == nil {
			continue
		}

		if err := p.Handle(ctx, task); err != nil {
			p.redeliver(ctx, log, task, err)
		}
	}
}

// Handle executes one task. Exported so queued work can be driven
// synchronously in tests.
func (p *Pool) Handle(ctx context.Context, task *ports.Task) error {
	switch task.Kind {
	case ports.TaskKindProcess:
		var payload ports.ProcessTaskPayload
		if err := json.Unmarshal(task.Payload, &payload); err != nil {
			p.log.Error().Err(err).Str("task_id", task.ID).Msg("malformed process payload, dropping")
			return nil
		}
		return p.payoutSvc.RunAttempt(ctx, payload.PayoutID)

	case ports.TaskKindBatch:
		var payload ports.BatchTaskPayload
		if err := json.Unmarshal(task.Payload, &payload); err != nil {
			p.log.Error().Err(err).Str("task_id", task.ID).Msg("malformed batch payload, dropping")
			return nil
		}
		return p.payoutSvc.RunBatch(ctx, payload.PayoutIDs)

	case ports.TaskKindRetrySweep:
		_, err := p.payoutSvc.SweepRetries(ctx)
		return err

	default:
		p.log.Warn().Str("kind", task.Kind).Str("task_id", task.ID).Msg("unknown task kind, dropping")
		return nil
	}
}

func (p *Pool) redeliver(ctx context.Context, log zerolog.Logger, task *ports.Task, cause error) {
	if errors.Is(cause, context.Canceled) {
		return
	}

	task.Deliveries++
	if task.Deliveries >= maxDeliveries {
		log.Error().
			Err(cause).
			Str("task_id", task.ID).
			Str("kind", task.Kind).
			Int("deliveries", task.Deliveries).
			Msg("task exceeded delivery limit, dropping")
		return
	}

	if err := p.source.Requeue(ctx, task); err != nil {
		log.Error().Err(err).Str("task_id", task.ID).Msg("requeue failed, task lost")
		return
	}
	log.Warn().
		Err(cause).
		Str("task_id", task.ID).
		Int("deliveries", task.Deliveries).
		Msg("task failed, requeued")
}
