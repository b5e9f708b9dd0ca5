package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisBroker implements Broker on top of Redis, the conventional backing
// store for a Celery-style broker. Each task is a hash at key "yourmoment:task:<id>";
// queues are tracked only for accounting since task state, not queue
// membership, is what the coordinator and enforcer actually consult.
type RedisBroker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisBroker wraps an existing Redis client. ttl bounds how long a
// terminal task's record is retained before Inspect reports
// ErrTaskNotFound — an expired task is treated as terminal.
func NewRedisBroker(client *redis.Client, ttl time.Duration) *RedisBroker {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisBroker{client: client, ttl: ttl}
}

func taskKey(taskID string) string {
	return "yourmoment:task:" + taskID
}

// Enqueue implements Broker.
func (b *RedisBroker) Enqueue(ctx context.Context, queue string, processID string) (string, error) {
	taskID := uuid.New().String()
	now := time.Now()

	err := b.client.HSet(ctx, taskKey(taskID), map[string]any{
		"queue":       queue,
		"process_id":  processID,
		"state":       string(TaskPending),
		"enqueued_at": now.Format(time.RFC3339Nano),
	}).Err()
	if err != nil {
		return "", fmt.Errorf("broker: enqueue: %w", err)
	}
	if err := b.client.Expire(ctx, taskKey(taskID), b.ttl).Err(); err != nil {
		return "", fmt.Errorf("broker: set task ttl: %w", err)
	}
	if err := b.client.LPush(ctx, "yourmoment:queue:"+queue, taskID).Err(); err != nil {
		return "", fmt.Errorf("broker: push queue entry: %w", err)
	}
	return taskID, nil
}

// Inspect implements Broker.
func (b *RedisBroker) Inspect(ctx context.Context, taskID string) (TaskInfo, error) {
	fields, err := b.client.HGetAll(ctx, taskKey(taskID)).Result()
	if err != nil {
		return TaskInfo{}, fmt.Errorf("broker: inspect: %w", err)
	}
	if len(fields) == 0 {
		return TaskInfo{}, ErrTaskNotFound
	}

	enqueuedAt, _ := time.Parse(time.RFC3339Nano, fields["enqueued_at"])
	return TaskInfo{
		ID:         taskID,
		Queue:      fields["queue"],
		ProcessID:  fields["process_id"],
		State:      TaskState(fields["state"]),
		EnqueuedAt: enqueuedAt,
	}, nil
}

// Revoke implements Broker. Idempotent: revoking an already-terminal task is
// a no-op, and revoking an unknown task is not an error.
func (b *RedisBroker) Revoke(ctx context.Context, taskID string) error {
	return b.setStateUnlessTerminal(ctx, taskID, TaskRevoked)
}

// MarkStarted implements Broker.
func (b *RedisBroker) MarkStarted(ctx context.Context, taskID string) error {
	return b.setStateUnlessTerminal(ctx, taskID, TaskStarted)
}

// MarkSuccess implements Broker.
func (b *RedisBroker) MarkSuccess(ctx context.Context, taskID string) error {
	return b.setStateUnlessTerminal(ctx, taskID, TaskSuccess)
}

// MarkFailure implements Broker.
func (b *RedisBroker) MarkFailure(ctx context.Context, taskID string) error {
	return b.setStateUnlessTerminal(ctx, taskID, TaskFailure)
}

// MarkRetry implements Broker.
func (b *RedisBroker) MarkRetry(ctx context.Context, taskID string) error {
	return b.setStateUnlessTerminal(ctx, taskID, TaskRetry)
}

func (b *RedisBroker) setStateUnlessTerminal(ctx context.Context, taskID string, next TaskState) error {
	current, err := b.client.HGet(ctx, taskKey(taskID), "state").Result()
	if err == redis.Nil {
		// Unknown task: revoke is still idempotent-success; anything else is
		// a no-op since there is nothing left to mark.
		return nil
	}
	if err != nil {
		return fmt.Errorf("broker: read state: %w", err)
	}
	if TaskState(current).Terminal() {
		return nil
	}
	if err := b.client.HSet(ctx, taskKey(taskID), "state", string(next)).Err(); err != nil {
		return fmt.Errorf("broker: set state: %w", err)
	}
	return nil
}
