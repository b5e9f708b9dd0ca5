package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/yourmoment/core/internal/upstream"
)

func TestDiscoveryWorker_Run_InsertsNewRecordsAndBumpsCounter(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT p.id`).WithArgs("p1").WillReturnRows(
		sqlmock.NewRows([]string{"id", "user_id", "llm_provider_id", "generate_only", "filters", "credential_ids", "template_ids"}).
			AddRow("p1", "u1", "l1", false, []byte(`{}`), `{c1}`, `{t1}`))

	fake := upstream.NewFakeAdapter()
	fake.Articles["c1"] = []upstream.ArticleMeta{{UpstreamArticleID: "a1", Title: "Title"}}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO work_records`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectExec(`UPDATE monitoring_processes SET articles_discovered`).WithArgs("p1", 1).WillReturnResult(sqlmock.NewResult(0, 1))

	w := NewDiscoveryWorker(s, fake)
	require.NoError(t, w.Run(ctx, "p1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDiscoveryWorker_Run_IsolatesPerCredentialFailure(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT p.id`).WithArgs("p1").WillReturnRows(
		sqlmock.NewRows([]string{"id", "user_id", "llm_provider_id", "generate_only", "filters", "credential_ids", "template_ids"}).
			AddRow("p1", "u1", "l1", false, []byte(`{}`), `{c1,c2}`, `{t1}`))

	fake := upstream.NewFakeAdapter()
	fake.ListErr["c1"] = &upstream.TransientError{Cause: errors.New("timeout")}
	fake.Articles["c2"] = []upstream.ArticleMeta{{UpstreamArticleID: "a2", Title: "Title 2"}}

	mock.ExpectExec(`UPDATE monitoring_processes SET errors_discovery`).WithArgs("p1", 1).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO work_records`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectExec(`UPDATE monitoring_processes SET articles_discovered`).WithArgs("p1", 1).WillReturnResult(sqlmock.NewResult(0, 1))

	w := NewDiscoveryWorker(s, fake)
	require.NoError(t, w.Run(ctx, "p1"))
	require.NoError(t, mock.ExpectationsWereMet())
}
