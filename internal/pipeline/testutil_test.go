package pipeline

import (
	"context"
	"database/sql/driver"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/yourmoment/core/internal/broker"
	"github.com/yourmoment/core/internal/store"
)

func newMockStore(t *testing.T) (*store.Store, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New(sqlmock.ValueConverterOption(idListConverter{}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	db := sqlx.NewDb(mockDB, "sqlmock")
	return store.FromDB(db), mock
}

// idListConverter lets the []string id lists the store binds to "= ANY($1)"
// through sqlmock, whose default converter rejects slices other than []byte.
type idListConverter struct{}

func (idListConverter) ConvertValue(v any) (driver.Value, error) {
	if ids, ok := v.([]string); ok {
		return pq.Array(ids).Value()
	}
	return driver.DefaultParameterConverter.ConvertValue(v)
}

// fakeBroker is a deterministic in-memory Broker for coordinator/timeout
// enforcer tests, avoiding the need for a real Redis instance in unit tests
// that only exercise task-state bookkeeping.
type fakeBroker struct {
	mu    sync.Mutex
	tasks map[string]broker.TaskInfo

	InspectErr error // forced error returned by every Inspect call
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{tasks: make(map[string]broker.TaskInfo)}
}

func (b *fakeBroker) Enqueue(_ context.Context, queue, processID string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := uuid.New().String()
	b.tasks[id] = broker.TaskInfo{ID: id, Queue: queue, ProcessID: processID, State: broker.TaskPending}
	return id, nil
}

func (b *fakeBroker) Inspect(_ context.Context, taskID string) (broker.TaskInfo, error) {
	if b.InspectErr != nil {
		return broker.TaskInfo{}, b.InspectErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	info, ok := b.tasks[taskID]
	if !ok {
		return broker.TaskInfo{}, broker.ErrTaskNotFound
	}
	return info, nil
}

func (b *fakeBroker) Revoke(_ context.Context, taskID string) error {
	return b.setState(taskID, broker.TaskRevoked)
}

func (b *fakeBroker) MarkStarted(_ context.Context, taskID string) error {
	return b.setState(taskID, broker.TaskStarted)
}

func (b *fakeBroker) MarkSuccess(_ context.Context, taskID string) error {
	return b.setState(taskID, broker.TaskSuccess)
}

func (b *fakeBroker) MarkFailure(_ context.Context, taskID string) error {
	return b.setState(taskID, broker.TaskFailure)
}

func (b *fakeBroker) MarkRetry(_ context.Context, taskID string) error {
	return b.setState(taskID, broker.TaskRetry)
}

func (b *fakeBroker) setState(taskID string, state broker.TaskState) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	info, ok := b.tasks[taskID]
	if !ok {
		return nil
	}
	if info.State.Terminal() {
		return nil
	}
	info.State = state
	b.tasks[taskID] = info
	return nil
}

func (b *fakeBroker) stateOf(taskID string) broker.TaskState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tasks[taskID].State
}

var _ broker.Broker = (*fakeBroker)(nil)
