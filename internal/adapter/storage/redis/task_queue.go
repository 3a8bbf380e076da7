package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"payout-engine/internal/core/ports"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// dequeueBlock bounds each BRPOP so the consumer loop can observe
// context cancellation.
const dequeueBlock = 2 * time.Second

// TaskQueue is a Redis-list-backed task queue. The producer side
// implements ports.TaskDispatcher; the consumer side implements
// dispatch.TaskSource. LPUSH + BRPOP gives FIFO, at-least-once delivery
// across any number of worker processes.
type TaskQueue struct {
	client *goredis.Client
	key    string
}

// NewTaskQueue creates a task queue on the given Redis list key.
func NewTaskQueue(client *goredis.Client, key string) *TaskQueue {
	return &TaskQueue{client: client, key: key}
}

// Enqueue wraps the payload in a task envelope and pushes it onto the
// queue. Returns the generated task ID.
func (q *TaskQueue) Enqueue(ctx context.Context, kind string, payload any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal task payload: %w", err)
	}

	task := &ports.Task{
		ID:         uuid.NewString(),
		Kind:       kind,
		Payload:    body,
		EnqueuedAt: time.Now().UTC(),
	}
	if err := q.push(ctx, task); err != nil {
		return "", err
	}
	return task.ID, nil
}

// Dequeue blocks until a task is available or ctx is done.
func (q *TaskQueue) Dequeue(ctx context.Context) (*ports.Task, error) {
	for {
		res, err := q.client.BRPop(ctx, dequeueBlock, q.key).Result()
		if err != nil {
			if err == goredis.Nil {
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				default:
					continue
				}
			}
			return nil, fmt.Errorf("redis dequeue: %w", err)
		}

		// BRPop returns [key, value].
		task := &ports.Task{}
		if err := json.Unmarshal([]byte(res[1]), task); err != nil {
			return nil, fmt.Errorf("unmarshal task: %w", err)
		}
		return task, nil
	}
}

// Requeue pushes a previously delivered task back onto the queue,
// preserving its ID and delivery count.
func (q *TaskQueue) Requeue(ctx context.Context, task *ports.Task) error {
	return q.push(ctx, task)
}

func (q *TaskQueue) push(ctx context.Context, task *ports.Task) error {
	raw, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, raw).Err(); err != nil {
		return fmt.Errorf("redis enqueue: %w", err)
	}
	return nil
}

// Len reports the number of queued tasks, for health and monitoring.
func (q *TaskQueue) Len(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis queue length: %w", err)
	}
	return n, nil
}
