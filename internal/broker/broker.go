// Package broker implements the work broker contract the pipeline relies on:
// durable task enqueue, task-id-addressable state, broker-side revoke, and
// multiple named queues.
package broker

import (
	"context"
	"errors"
	"time"
)

// TaskState is the broker-reported lifecycle state of a dispatched task.
type TaskState string

// Task states.
const (
	TaskPending TaskState = "PENDING"
	TaskStarted TaskState = "STARTED"
	TaskSuccess TaskState = "SUCCESS"
	TaskFailure TaskState = "FAILURE"
	TaskRetry   TaskState = "RETRY"
	TaskRevoked TaskState = "REVOKED"
)

// InFlight reports whether a task in this state is still being worked, i.e.
// re-dispatching it would risk a double-spawn.
func (s TaskState) InFlight() bool {
	switch s {
	case TaskPending, TaskStarted, TaskRetry:
		return true
	default:
		return false
	}
}

// Terminal reports whether a task in this state will never change again.
func (s TaskState) Terminal() bool {
	switch s {
	case TaskSuccess, TaskFailure, TaskRevoked:
		return true
	default:
		return false
	}
}

// Queue names.
const (
	QueueDiscovery   = "discovery"
	QueuePreparation = "preparation"
	QueueGeneration  = "generation"
	QueuePosting     = "posting"
	QueueTimeouts    = "timeouts"
	QueueScheduler   = "scheduler"
	QueueSessions    = "sessions"
)

// ErrTaskNotFound is returned by Inspect when a task id is unknown to the
// broker (expired or never existed) — callers treat this as a terminal,
// not-in-flight state.
var ErrTaskNotFound = errors.New("broker: task not found")

// TaskInfo is a snapshot of a dispatched task.
type TaskInfo struct {
	ID         string
	Queue      string
	ProcessID  string
	State      TaskState
	EnqueuedAt time.Time
}

// Broker is the work-queue contract the coordinator and stage workers share.
// Any implementation offering durable enqueue, per-task state inspection, and
// idempotent revoke satisfies it.
type Broker interface {
	// Enqueue durably schedules a task for processID on the given queue and
	// returns its broker-assigned id.
	Enqueue(ctx context.Context, queue string, processID string) (taskID string, err error)

	// Inspect returns the current state of a previously enqueued task.
	// Returns ErrTaskNotFound if the broker has no record of taskID.
	Inspect(ctx context.Context, taskID string) (TaskInfo, error)

	// Revoke idempotently marks a task REVOKED, signalling any worker still
	// processing it to stop at its next checkpoint.
	Revoke(ctx context.Context, taskID string) error

	// MarkStarted, MarkSuccess, MarkFailure, and MarkRetry are called by the
	// worker side to report task completion. They are no-ops (not errors) if
	// the task was concurrently revoked, since revoke always wins.
	MarkStarted(ctx context.Context, taskID string) error
	MarkSuccess(ctx context.Context, taskID string) error
	MarkFailure(ctx context.Context, taskID string) error
	MarkRetry(ctx context.Context, taskID string) error
}
