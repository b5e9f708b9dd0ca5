package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/yourmoment/core/internal/models"
)

func TestStore_StartProcess_SetsExpiresAtFromDuration(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()
	now := time.Now()

	mock.ExpectExec(`UPDATE monitoring_processes`).
		WithArgs("p1", now, 10).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.StartProcess(ctx, "p1", now, 10)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_StopProcess_ClearsStageTaskIDs(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()
	now := time.Now()

	mock.ExpectExec(`UPDATE monitoring_processes`).
		WithArgs("p1", now, string(models.StopReasonManual)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.StopProcess(ctx, "p1", now, models.StopReasonManual)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_SetStageTaskID_RejectsUnknownStage(t *testing.T) {
	s, _ := newMockStore(t)
	err := s.SetStageTaskID(context.Background(), "p1", models.Stage("bogus"), "task-1")
	require.Error(t, err)
}

func TestStore_IncrementArticlesDiscovered_UsesAtomicArithmetic(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectExec(`UPDATE monitoring_processes SET articles_discovered = articles_discovered \+ \$2`).
		WithArgs("p1", 3).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.IncrementArticlesDiscovered(ctx, "p1", 3)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
