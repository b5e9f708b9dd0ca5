package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/yourmoment/core/internal/broker"
)

func TestTimeoutEnforcer_Tick_StopsExpiredProcessAndRevokesTasks(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()
	now := time.Now()
	expiresAt := now.Add(-time.Minute)

	discoveryTask := "task-d"
	mock.ExpectQuery(`SELECT id, user_id, name`).WillReturnRows(
		sqlmock.NewRows(processRowColumns()).AddRow(
			"p1", "u1", "proc", "", "l1", false, 60, "RUNNING", nil, now, expiresAt, nil,
			&discoveryTask, nil, nil, nil, 0, 0, 0, 0, 0, 0, 0, 0, nil, now, now))

	mock.ExpectExec(`UPDATE monitoring_processes`).WillReturnResult(sqlmock.NewResult(0, 1))

	b := newFakeBroker()
	b.tasks[discoveryTask] = broker.TaskInfo{ID: discoveryTask, State: broker.TaskStarted}

	e := NewTimeoutEnforcer(s, b, nil, nil)
	require.NoError(t, e.Tick(ctx))

	require.Equal(t, broker.TaskRevoked, b.stateOf(discoveryTask))
	require.NoError(t, mock.ExpectationsWereMet())
}
