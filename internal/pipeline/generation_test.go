package pipeline

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/yourmoment/core/internal/crypto"
	"github.com/yourmoment/core/internal/llmadapter"
	"github.com/yourmoment/core/internal/models"
	"github.com/yourmoment/core/internal/prompt"
)

func testEnvelope(t *testing.T) *crypto.Envelope {
	t.Helper()
	env, err := crypto.NewEnvelope(make([]byte, 32))
	require.NoError(t, err)
	return env
}

func TestGenerationWorker_Run_PrependsDisclosurePrefix(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()
	now := time.Now()
	env := testEnvelope(t)

	apiKey, err := env.Encrypt("l1", "llmprovider.api_key", "secret")
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT id, process_id`).WithArgs("p1", string(models.RecordPrepared)).WillReturnRows(
		sqlmock.NewRows(workRecordRows()).AddRow(
			"r1", "p1", "u1", "c1", "t1", "l1", "a1", "T", "A", "cat", "http://x",
			nil, "article body", nil, nil, nil, nil, nil, nil, nil, nil, string(models.RecordPrepared), nil, 0, nil, nil, nil, now, now))

	mock.ExpectQuery(`SELECT id, user_id, vendor_tag`).WithArgs(sqlmock.AnyArg()).WillReturnRows(
		sqlmock.NewRows([]string{"id", "user_id", "vendor_tag", "model_name", "api_key_encrypted", "temperature", "max_tokens", "json_mode", "is_active"}).
			AddRow("l1", "u1", string(models.VendorOpenAI), "gpt", apiKey, 0.7, 500, false, true))
	mock.ExpectQuery(`SELECT id, owner_user_id`).WithArgs(sqlmock.AnyArg()).WillReturnRows(
		sqlmock.NewRows([]string{"id", "owner_user_id", "name", "system_prompt", "user_prompt_template", "is_system"}).
			AddRow("t1", nil, "default", "system", "Write about {article_title}", true))

	mock.ExpectExec(`UPDATE work_records`).
		WithArgs("r1", "[AI] a witty comment", "gpt", string(models.VendorOpenAI), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE monitoring_processes SET comments_generated`).WithArgs("p1", 1).WillReturnResult(sqlmock.NewResult(0, 1))

	fake := llmadapter.NewFakeAdapter("a witty comment")
	factory := llmadapter.FactoryFunc(func(vendorTag, key string) (llmadapter.Adapter, error) {
		require.Equal(t, "secret", key)
		return fake, nil
	})

	w := NewGenerationWorker(s, env, factory, prompt.NewRenderer(), "[AI] ")
	require.NoError(t, w.Run(ctx, "p1"))
	require.Equal(t, 1, fake.CallCount())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGenerationWorker_Run_FailsOnEmptyText(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()
	now := time.Now()
	env := testEnvelope(t)

	apiKey, err := env.Encrypt("l1", "llmprovider.api_key", "secret")
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT id, process_id`).WithArgs("p1", string(models.RecordPrepared)).WillReturnRows(
		sqlmock.NewRows(workRecordRows()).AddRow(
			"r1", "p1", "u1", "c1", "t1", "l1", "a1", "T", "A", "cat", "http://x",
			nil, "article body", nil, nil, nil, nil, nil, nil, nil, nil, string(models.RecordPrepared), nil, 0, nil, nil, nil, now, now))

	mock.ExpectQuery(`SELECT id, user_id, vendor_tag`).WithArgs(sqlmock.AnyArg()).WillReturnRows(
		sqlmock.NewRows([]string{"id", "user_id", "vendor_tag", "model_name", "api_key_encrypted", "temperature", "max_tokens", "json_mode", "is_active"}).
			AddRow("l1", "u1", string(models.VendorOpenAI), "gpt", apiKey, 0.7, 500, false, true))
	mock.ExpectQuery(`SELECT id, owner_user_id`).WithArgs(sqlmock.AnyArg()).WillReturnRows(
		sqlmock.NewRows([]string{"id", "owner_user_id", "name", "system_prompt", "user_prompt_template", "is_system"}).
			AddRow("t1", nil, "default", "system", "Write about {article_title}", true))

	mock.ExpectExec(`UPDATE work_records`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE monitoring_processes SET errors_generation`).WithArgs("p1", 1).WillReturnResult(sqlmock.NewResult(0, 1))

	fake := llmadapter.NewFakeAdapter("   ")
	factory := llmadapter.FactoryFunc(func(vendorTag, key string) (llmadapter.Adapter, error) { return fake, nil })

	w := NewGenerationWorker(s, env, factory, prompt.NewRenderer(), "[AI] ")
	require.NoError(t, w.Run(ctx, "p1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExcerpt_TruncatesToRuneLimit(t *testing.T) {
	s := strings.Repeat("x", 10)
	require.Equal(t, "xxxxx", excerpt(s, 5))
	require.Equal(t, s, excerpt(s, 50))
}
