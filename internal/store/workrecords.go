package store

import (
	"context"
	"fmt"
	"time"

	"github.com/yourmoment/core/internal/models"
)

// NewWorkRecord is the metadata-only shape the discovery worker builds for
// each newly-seen (article, template) pair, before any content is fetched.
type NewWorkRecord struct {
	ProcessID         string
	UserID            string
	CredentialID      string
	TemplateID        string
	LLMProviderID     string
	UpstreamArticleID string
	ArticleTitle      string
	ArticleAuthor     string
	ArticleCategory   string
	ArticleURL        string
	ArticleEditedAt   *time.Time
}

// InsertDiscovered batch-inserts prospective work records, skipping any that
// violate the (process_id, credential_id, template_id, upstream_article_id)
// uniqueness constraint. Returns the count actually inserted. Single
// transaction, budget <500ms.
func (s *Store) InsertDiscovered(ctx context.Context, records []NewWorkRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: insert discovered: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const q = `
		INSERT INTO work_records (
			process_id, user_id, credential_id, template_id, llm_provider_id,
			upstream_article_id, article_title, article_author, article_category,
			article_url, article_edited_at, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 'discovered')
		ON CONFLICT (process_id, credential_id, template_id, upstream_article_id) DO NOTHING`

	inserted := 0
	for _, r := range records {
		res, err := tx.ExecContext(ctx, q,
			r.ProcessID, r.UserID, r.CredentialID, r.TemplateID, r.LLMProviderID,
			r.UpstreamArticleID, r.ArticleTitle, r.ArticleAuthor, r.ArticleCategory,
			r.ArticleURL, r.ArticleEditedAt)
		if err != nil {
			return 0, fmt.Errorf("store: insert discovered: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("store: insert discovered: rows affected: %w", err)
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: insert discovered: commit: %w", err)
	}
	return inserted, nil
}

// ListByStatus reads the current snapshot of records in the given status for
// a process. Caller closes over the results before doing any external I/O.
func (s *Store) ListByStatus(ctx context.Context, processID string, status models.WorkRecordStatus) ([]models.WorkRecord, error) {
	var records []models.WorkRecord
	const q = `
		SELECT id, process_id, user_id, credential_id, template_id, llm_provider_id,
		       upstream_article_id, article_title, article_author, article_category, article_url,
		       article_edited_at, article_content, article_raw_html, article_published_at,
		       comment_content, upstream_comment_id, ai_model_name, ai_vendor_tag,
		       generation_tokens, generation_time_ms, status, error_message, retry_count,
		       article_scraped_at, posted_at, failed_at, created_at, updated_at
		FROM work_records WHERE process_id = $1 AND status = $2`
	if err := s.db.SelectContext(ctx, &records, q, processID, string(status)); err != nil {
		return nil, fmt.Errorf("store: list by status: %w", err)
	}
	return records, nil
}

// MarkPrepared transitions a record from discovered to prepared with its
// fetched content. The WHERE clause only matches a record still in
// "discovered", making a racing double-update a no-op. Single-record update,
// budget <50ms.
func (s *Store) MarkPrepared(ctx context.Context, id string, content, rawHTML string, publishedAt *time.Time, now time.Time) error {
	const q = `
		UPDATE work_records
		SET article_content = $2, article_raw_html = $3, article_published_at = $4,
		    article_scraped_at = $5, status = 'prepared', updated_at = $5
		WHERE id = $1 AND status = 'discovered'`
	_, err := s.db.ExecContext(ctx, q, id, content, rawHTML, publishedAt, now)
	if err != nil {
		return fmt.Errorf("store: mark prepared: %w", err)
	}
	return nil
}

// MarkFailed transitions a record to failed from the given expected current
// status, bumping retry_count. fromStatus guards against a concurrent
// transition racing this write.
func (s *Store) MarkFailed(ctx context.Context, id string, fromStatus models.WorkRecordStatus, errMsg string, now time.Time) error {
	const q = `
		UPDATE work_records
		SET status = 'failed', error_message = $3, failed_at = $4, retry_count = retry_count + 1, updated_at = $4
		WHERE id = $1 AND status = $2`
	_, err := s.db.ExecContext(ctx, q, id, string(fromStatus), errMsg, now)
	if err != nil {
		return fmt.Errorf("store: mark failed: %w", err)
	}
	return nil
}

// MarkGenerated transitions a record from prepared to generated with the
// produced comment.
func (s *Store) MarkGenerated(ctx context.Context, id string, commentContent, modelName, vendorTag string, tokens, timeMs int, now time.Time) error {
	const q = `
		UPDATE work_records
		SET comment_content = $2, ai_model_name = $3, ai_vendor_tag = $4,
		    generation_tokens = $5, generation_time_ms = $6, status = 'generated', updated_at = $7
		WHERE id = $1 AND status = 'prepared'`
	_, err := s.db.ExecContext(ctx, q, id, commentContent, modelName, vendorTag, tokens, timeMs, now)
	if err != nil {
		return fmt.Errorf("store: mark generated: %w", err)
	}
	return nil
}

// MarkPosted transitions a record from generated to posted, recording the
// synthesized idempotency marker.
func (s *Store) MarkPosted(ctx context.Context, id, marker string, now time.Time) error {
	const q = `
		UPDATE work_records
		SET upstream_comment_id = $2, posted_at = $3, status = 'posted', updated_at = $3
		WHERE id = $1 AND status = 'generated'`
	_, err := s.db.ExecContext(ctx, q, id, marker, now)
	if err != nil {
		return fmt.Errorf("store: mark posted: %w", err)
	}
	return nil
}

// MarkFailedFinal transitions a record to failed without bumping retry_count,
// for the posting retry-exhaustion path where IncrementPostingRetry has
// already recorded this attempt.
func (s *Store) MarkFailedFinal(ctx context.Context, id string, fromStatus models.WorkRecordStatus, errMsg string, now time.Time) error {
	const q = `
		UPDATE work_records
		SET status = 'failed', error_message = $3, failed_at = $4, updated_at = $4
		WHERE id = $1 AND status = $2`
	_, err := s.db.ExecContext(ctx, q, id, string(fromStatus), errMsg, now)
	if err != nil {
		return fmt.Errorf("store: mark failed final: %w", err)
	}
	return nil
}

// StatusCounts tallies WorkRecords for a process by status, the single
// aggregation query behind the lifecycle service's status() operation.
type StatusCounts struct {
	Discovered int `db:"discovered"`
	Prepared   int `db:"prepared"`
	Generated  int `db:"generated"`
	Posted     int `db:"posted"`
	Failed     int `db:"failed"`
}

// CountWorkRecordsByStatus returns the per-status record counts for a
// process in one round trip.
func (s *Store) CountWorkRecordsByStatus(ctx context.Context, processID string) (StatusCounts, error) {
	var counts StatusCounts
	const q = `
		SELECT
			count(*) FILTER (WHERE status = 'discovered') AS discovered,
			count(*) FILTER (WHERE status = 'prepared')   AS prepared,
			count(*) FILTER (WHERE status = 'generated')  AS generated,
			count(*) FILTER (WHERE status = 'posted')     AS posted,
			count(*) FILTER (WHERE status = 'failed')     AS failed
		FROM work_records WHERE process_id = $1`
	if err := s.db.GetContext(ctx, &counts, q, processID); err != nil {
		return StatusCounts{}, fmt.Errorf("store: count work records by status: %w", err)
	}
	return counts, nil
}

// IncrementPostingRetry bumps retry_count on a transient posting failure
// without changing status, leaving the record eligible for the next
// coordinator tick to retry. Returns the resulting retry_count.
func (s *Store) IncrementPostingRetry(ctx context.Context, id string) (int, error) {
	var retryCount int
	const q = `
		UPDATE work_records SET retry_count = retry_count + 1, updated_at = now()
		WHERE id = $1 AND status = 'generated'
		RETURNING retry_count`
	if err := s.db.GetContext(ctx, &retryCount, q, id); err != nil {
		return 0, fmt.Errorf("store: increment posting retry: %w", err)
	}
	return retryCount, nil
}
