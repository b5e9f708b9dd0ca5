package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/yourmoment/core/internal/crypto"
	"github.com/yourmoment/core/internal/models"
	"github.com/yourmoment/core/internal/redact"
	"github.com/yourmoment/core/internal/upstream"
)

func TestPostingWorker_Run_PostsAndMarksPosted(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()
	now := time.Now()
	env := testEnvelope(t)

	encPassword, err := env.Encrypt("c1", "credential.password", "pw")
	require.NoError(t, err)

	comment := "[AI] a comment"
	mock.ExpectQuery(`SELECT id, process_id`).WithArgs("p1", string(models.RecordGenerated)).WillReturnRows(
		sqlmock.NewRows(workRecordRows()).AddRow(
			"r1", "p1", "u1", "c1", "t1", "l1", "a1", "T", "A", "cat", "http://x",
			nil, "body", nil, nil, &comment, nil, nil, nil, nil, nil, string(models.RecordGenerated), nil, 0, nil, nil, nil, now, now))

	mock.ExpectQuery(`SELECT id, user_id, display_name`).WithArgs(sqlmock.AnyArg()).WillReturnRows(
		sqlmock.NewRows([]string{"id", "user_id", "display_name", "username", "password_encrypted", "is_active", "created_at", "last_used_at"}).
			AddRow("c1", "u1", "Acct", "user1", encPassword, true, now, nil))

	mock.ExpectExec(`UPDATE work_records`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE monitoring_processes SET comments_posted`).WithArgs("p1", 1).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE upstream_credentials SET last_used_at`).WithArgs("c1").WillReturnResult(sqlmock.NewResult(0, 1))

	fake := upstream.NewFakeAdapter()

	w := NewPostingWorker(s, fake, env, 0, 3)
	require.NoError(t, w.Run(ctx, "p1"))
	require.Len(t, fake.Posted, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostingWorker_PostOne_GivesUpAfterMaxRetries(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()
	env := testEnvelope(t)
	comment := "[AI] a comment"

	rec := models.WorkRecord{
		ID: "r1", ProcessID: "p1", CredentialID: "c1", UpstreamArticleID: "a1",
		CommentContent: &comment, Status: models.RecordGenerated,
	}
	cred := models.UpstreamCredential{ID: "c1"}
	credByID := map[string]models.UpstreamCredential{"c1": cred}
	passwords := map[string]string{"c1": "hunter2"}
	scrubber := redact.NewScrubber("hunter2")

	fake := upstream.NewFakeAdapter()
	fake.PostErr["a1"] = &upstream.TransientError{Cause: errors.New("503")}

	mock.ExpectQuery(`UPDATE work_records SET retry_count`).WithArgs("r1").WillReturnRows(
		sqlmock.NewRows([]string{"retry_count"}).AddRow(3))
	mock.ExpectExec(`UPDATE monitoring_processes SET errors_posting`).WithArgs("p1", 1).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE work_records`).WillReturnResult(sqlmock.NewResult(0, 1))

	w := NewPostingWorker(s, fake, env, 0, 3)
	w.postOne(ctx, "p1", rec, credByID, passwords, scrubber)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostingWorker_PostOne_RedactsCredentialPasswordFromFailureMessage(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()
	comment := "[AI] a comment"

	rec := models.WorkRecord{
		ID: "r1", ProcessID: "p1", CredentialID: "c1", UpstreamArticleID: "a1",
		CommentContent: &comment, Status: models.RecordGenerated,
	}
	credByID := map[string]models.UpstreamCredential{"c1": {ID: "c1"}}
	passwords := map[string]string{"c1": "hunter2"}
	scrubber := redact.NewScrubber("hunter2")

	fake := upstream.NewFakeAdapter()
	fake.PostErr["a1"] = &upstream.PermanentError{Cause: errors.New("upstream rejected credential password hunter2")}

	mock.ExpectExec(`UPDATE work_records`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE monitoring_processes SET errors_posting`).WithArgs("p1", 1).WillReturnResult(sqlmock.NewResult(0, 1))

	w := NewPostingWorker(s, fake, testEnvelope(t), 0, 3)
	w.postOne(ctx, "p1", rec, credByID, passwords, scrubber)
	require.NoError(t, mock.ExpectationsWereMet())

	storedMessage := classifyMessage(fake.PostErr["a1"], scrubber)
	require.NotContains(t, storedMessage, "hunter2")
	require.Contains(t, storedMessage, redact.Placeholder)
}
