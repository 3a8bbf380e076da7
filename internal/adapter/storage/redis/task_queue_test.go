package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"payout-engine/internal/core/ports"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T) *TaskQueue {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	return NewTaskQueue(client, "payout:tasks")
}

func TestTaskQueue_EnqueueDequeue(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	payoutID := uuid.New()
	taskID, err := q.Enqueue(ctx, ports.TaskKindProcess, ports.ProcessTaskPayload{
		PayoutID: payoutID,
		Attempt:  1,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, taskID)

	task, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, taskID, task.ID)
	assert.Equal(t, ports.TaskKindProcess, task.Kind)
	assert.Equal(t, 0, task.Deliveries)

	var payload ports.ProcessTaskPayload
	require.NoError(t, json.Unmarshal(task.Payload, &payload))
	assert.Equal(t, payoutID, payload.PayoutID)
	assert.Equal(t, 1, payload.Attempt)
}

func TestTaskQueue_FIFOOrder(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	first, err := q.Enqueue(ctx, ports.TaskKindRetrySweep, struct{}{})
	require.NoError(t, err)
	second, err := q.Enqueue(ctx, ports.TaskKindRetrySweep, struct{}{})
	require.NoError(t, err)

	task, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, task.ID)

	task, err = q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, second, task.ID)
}

func TestTaskQueue_DequeueHonorsContext(t *testing.T) {
	q := newTestQueue(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := q.Dequeue(ctx)
	assert.Error(t, err)
}

func TestTaskQueue_RequeuePreservesEnvelope(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	taskID, err := q.Enqueue(ctx, ports.TaskKindBatch, ports.BatchTaskPayload{
		PayoutIDs: []uuid.UUID{uuid.New()},
	})
	require.NoError(t, err)

	task, err := q.Dequeue(ctx)
	require.NoError(t, err)

	task.Deliveries++
	require.NoError(t, q.Requeue(ctx, task))

	redelivered, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, taskID, redelivered.ID)
	assert.Equal(t, 1, redelivered.Deliveries)
}

func TestTaskQueue_Len(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = q.Enqueue(ctx, ports.TaskKindRetrySweep, struct{}{})
	require.NoError(t, err)

	n, err = q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
