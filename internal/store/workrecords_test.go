package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/yourmoment/core/internal/models"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	db := sqlx.NewDb(mockDB, "sqlmock")
	return FromDB(db), mock
}

func TestStore_InsertDiscovered_SkipsDuplicatesViaRowsAffected(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	records := []NewWorkRecord{
		{ProcessID: "p1", UserID: "u1", CredentialID: "c1", TemplateID: "t1", LLMProviderID: "l1", UpstreamArticleID: "a1", ArticleTitle: "A1", ArticleURL: "http://x/a1"},
		{ProcessID: "p1", UserID: "u1", CredentialID: "c1", TemplateID: "t1", LLMProviderID: "l1", UpstreamArticleID: "a2", ArticleTitle: "A2", ArticleURL: "http://x/a2"},
	}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO work_records`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO work_records`).WillReturnResult(sqlmock.NewResult(0, 0)) // duplicate, ON CONFLICT DO NOTHING
	mock.ExpectCommit()

	inserted, err := s.InsertDiscovered(ctx, records)
	require.NoError(t, err)
	require.Equal(t, 1, inserted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_MarkPrepared_GuardsOnCurrentStatus(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()
	now := time.Now()

	mock.ExpectExec(`UPDATE work_records`).
		WithArgs("r1", "content", "<html/>", sqlmock.AnyArg(), now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.MarkPrepared(ctx, "r1", "content", "<html/>", nil, now)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_MarkFailed_IncrementsRetryCount(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()
	now := time.Now()

	mock.ExpectExec(`UPDATE work_records`).
		WithArgs("r1", string(models.RecordDiscovered), "boom", now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.MarkFailed(ctx, "r1", models.RecordDiscovered, "boom", now)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_IncrementPostingRetry_ReturnsNewCount(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	rows := sqlmock.NewRows([]string{"retry_count"}).AddRow(2)
	mock.ExpectQuery(`UPDATE work_records SET retry_count`).WithArgs("r1").WillReturnRows(rows)

	count, err := s.IncrementPostingRetry(ctx, "r1")
	require.NoError(t, err)
	require.Equal(t, 2, count)
	require.NoError(t, mock.ExpectationsWereMet())
}
