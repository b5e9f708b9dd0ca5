package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/yourmoment/core/internal/broker"
	"github.com/yourmoment/core/internal/models"
	"github.com/yourmoment/core/internal/store"
)

func newMockStore(t *testing.T) (*store.Store, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	db := sqlx.NewDb(mockDB, "sqlmock")
	return store.FromDB(db), mock
}

// fakeBroker is a minimal in-memory Broker recording Revoke calls, for the
// lifecycle service's stop() path.
type fakeBroker struct {
	mu      sync.Mutex
	revoked []string
}

func (b *fakeBroker) Enqueue(context.Context, string, string) (string, error) { return "", nil }
func (b *fakeBroker) Inspect(context.Context, string) (broker.TaskInfo, error) {
	return broker.TaskInfo{}, broker.ErrTaskNotFound
}
func (b *fakeBroker) Revoke(_ context.Context, taskID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.revoked = append(b.revoked, taskID)
	return nil
}
func (b *fakeBroker) MarkStarted(context.Context, string) error { return nil }
func (b *fakeBroker) MarkSuccess(context.Context, string) error { return nil }
func (b *fakeBroker) MarkFailure(context.Context, string) error { return nil }
func (b *fakeBroker) MarkRetry(context.Context, string) error   { return nil }

var _ broker.Broker = (*fakeBroker)(nil)

func TestProcessLifecycleService_Start_RejectsProcessWithNoCredentials(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT p.id`).WithArgs("p1").WillReturnRows(
		sqlmock.NewRows([]string{"id", "user_id", "llm_provider_id", "generate_only", "filters", "credential_ids", "template_ids"}).
			AddRow("p1", "u1", "l1", false, []byte(`{}`), `{}`, `{t1}`))

	mock.ExpectExec(`UPDATE monitoring_processes SET status = 'FAILED'`).WithArgs("p1", sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT id, user_id, name`).WithArgs("p1").WillReturnRows(
		sqlmock.NewRows(processRowColumns()).AddRow(
			"p1", "u1", "proc", "", "l1", false, 60, "CREATED", nil, nil, nil, nil,
			nil, nil, nil, nil, 0, 0, 0, 0, 0, 0, 0, 0, nil, time.Now(), time.Now()))

	svc := NewProcessLifecycleService(s, &fakeBroker{}, nil, 5)
	err := svc.Start(ctx, "p1")
	require.ErrorIs(t, err, ErrValidation)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessLifecycleService_Start_RejectsWhenOverUserCap(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT p.id`).WithArgs("p1").WillReturnRows(
		sqlmock.NewRows([]string{"id", "user_id", "llm_provider_id", "generate_only", "filters", "credential_ids", "template_ids"}).
			AddRow("p1", "u1", "l1", false, []byte(`{}`), `{c1}`, `{t1}`))

	mock.ExpectQuery(`SELECT id, user_id, vendor_tag`).WithArgs("l1").WillReturnRows(
		sqlmock.NewRows([]string{"id", "user_id", "vendor_tag", "model_name", "api_key_encrypted", "temperature", "max_tokens", "json_mode", "is_active"}).
			AddRow("l1", "u1", string(models.VendorOpenAI), "gpt", "", 0.7, 500, false, true))

	mock.ExpectQuery(`SELECT count\(\*\)`).WithArgs("u1").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))

	mock.ExpectExec(`UPDATE monitoring_processes SET status = 'FAILED'`).WithArgs("p1", sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT id, user_id, name`).WithArgs("p1").WillReturnRows(
		sqlmock.NewRows(processRowColumns()).AddRow(
			"p1", "u1", "proc", "", "l1", false, 60, "CREATED", nil, nil, nil, nil,
			nil, nil, nil, nil, 0, 0, 0, 0, 0, 0, 0, 0, nil, time.Now(), time.Now()))

	svc := NewProcessLifecycleService(s, &fakeBroker{}, nil, 5)
	err := svc.Start(ctx, "p1")
	require.ErrorIs(t, err, ErrValidation)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessLifecycleService_Stop_RevokesEveryInFlightStage(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()
	now := time.Now()

	discoveryTask := "task-d"
	postingTask := "task-p"
	mock.ExpectQuery(`SELECT id, user_id, name`).WithArgs("p1").WillReturnRows(
		sqlmock.NewRows(processRowColumns()).AddRow(
			"p1", "u1", "proc", "", "l1", false, 60, "RUNNING", nil, now, now.Add(time.Hour), nil,
			&discoveryTask, nil, nil, &postingTask, 0, 0, 0, 0, 0, 0, 0, 0, nil, now, now))

	mock.ExpectExec(`UPDATE monitoring_processes SET status = 'STOPPED'`).WithArgs("p1", sqlmock.AnyArg(), string(models.StopReasonManual)).WillReturnResult(sqlmock.NewResult(0, 1))

	fb := &fakeBroker{}
	svc := NewProcessLifecycleService(s, fb, nil, 5)
	require.NoError(t, svc.Stop(ctx, "p1"))
	require.ElementsMatch(t, []string{discoveryTask, postingTask}, fb.revoked)
	require.NoError(t, mock.ExpectationsWereMet())
}

func processRowColumns() []string {
	return []string{
		"id", "user_id", "name", "description", "llm_provider_id", "generate_only", "max_duration_minutes",
		"status", "stop_reason", "started_at", "expires_at", "stopped_at",
		"discovery_task_id", "preparation_task_id", "generation_task_id", "posting_task_id",
		"articles_discovered", "articles_prepared", "comments_generated", "comments_posted",
		"errors_discovery", "errors_preparation", "errors_generation", "errors_posting",
		"error_message", "created_at", "updated_at",
	}
}
