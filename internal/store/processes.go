package store

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/yourmoment/core/internal/models"
)

// processRow mirrors the monitoring_processes table layout; scanning into it
// directly (rather than models.MonitoringProcess) keeps the db tags private
// to this package and lets id-set/filter columns be assembled separately.
type processRow struct {
	ID                 string     `db:"id"`
	UserID             string     `db:"user_id"`
	Name               string     `db:"name"`
	Description        string     `db:"description"`
	LLMProviderID      string     `db:"llm_provider_id"`
	GenerateOnly       bool       `db:"generate_only"`
	MaxDurationMinutes int        `db:"max_duration_minutes"`
	Status             string     `db:"status"`
	StopReason         *string    `db:"stop_reason"`
	StartedAt          *time.Time `db:"started_at"`
	ExpiresAt          *time.Time `db:"expires_at"`
	StoppedAt          *time.Time `db:"stopped_at"`
	DiscoveryTaskID    *string    `db:"discovery_task_id"`
	PreparationTaskID  *string    `db:"preparation_task_id"`
	GenerationTaskID   *string    `db:"generation_task_id"`
	PostingTaskID      *string    `db:"posting_task_id"`
	ArticlesDiscovered int        `db:"articles_discovered"`
	ArticlesPrepared   int        `db:"articles_prepared"`
	CommentsGenerated  int        `db:"comments_generated"`
	CommentsPosted     int        `db:"comments_posted"`
	ErrorsDiscovery    int        `db:"errors_discovery"`
	ErrorsPreparation  int        `db:"errors_preparation"`
	ErrorsGeneration   int        `db:"errors_generation"`
	ErrorsPosting      int        `db:"errors_posting"`
	ErrorMessage       *string    `db:"error_message"`
	CreatedAt          time.Time  `db:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at"`
}

func (r processRow) toModel() models.MonitoringProcess {
	var stopReason *models.StopReason
	if r.StopReason != nil {
		sr := models.StopReason(*r.StopReason)
		stopReason = &sr
	}
	return models.MonitoringProcess{
		ID:                 r.ID,
		UserID:             r.UserID,
		Name:               r.Name,
		Description:        r.Description,
		LLMProviderID:      r.LLMProviderID,
		GenerateOnly:       r.GenerateOnly,
		MaxDurationMinutes: r.MaxDurationMinutes,
		Status:             models.ProcessStatus(r.Status),
		StopReason:         stopReason,
		StartedAt:          r.StartedAt,
		ExpiresAt:          r.ExpiresAt,
		StoppedAt:          r.StoppedAt,
		StageTaskIDs: models.StageTaskIDs{
			Discovery:   r.DiscoveryTaskID,
			Preparation: r.PreparationTaskID,
			Generation:  r.GenerationTaskID,
			Posting:     r.PostingTaskID,
		},
		Counters: models.ProcessCounters{
			ArticlesDiscovered: r.ArticlesDiscovered,
			ArticlesPrepared:   r.ArticlesPrepared,
			CommentsGenerated:  r.CommentsGenerated,
			CommentsPosted:     r.CommentsPosted,
			ErrorsByStage: models.ErrorCounters{
				Discovery:   r.ErrorsDiscovery,
				Preparation: r.ErrorsPreparation,
				Generation:  r.ErrorsGeneration,
				Posting:     r.ErrorsPosting,
			},
		},
		ErrorMessage: r.ErrorMessage,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

const processColumns = `
	id, user_id, name, description, llm_provider_id, generate_only, max_duration_minutes,
	status, stop_reason, started_at, expires_at, stopped_at,
	discovery_task_id, preparation_task_id, generation_task_id, posting_task_id,
	articles_discovered, articles_prepared, comments_generated, comments_posted,
	errors_discovery, errors_preparation, errors_generation, errors_posting,
	error_message, created_at, updated_at`

// ProcessConfig is the immutable snapshot a stage worker loads once at the
// start of its run, before any external I/O — the "config read" pattern.
type ProcessConfig struct {
	ID            string
	UserID        string
	LLMProviderID string
	CredentialIDs []string
	TemplateIDs   []string
	Filters       models.ProcessFilters
	GenerateOnly  bool
}

// LoadProcessConfig reads a process's worker-relevant configuration in one
// round trip. Budget <100ms.
func (s *Store) LoadProcessConfig(ctx context.Context, processID string) (ProcessConfig, error) {
	var row struct {
		ID            string         `db:"id"`
		UserID        string         `db:"user_id"`
		LLMProviderID string         `db:"llm_provider_id"`
		GenerateOnly  bool           `db:"generate_only"`
		FiltersJSON   []byte         `db:"filters"`
		CredentialIDs pq.StringArray `db:"credential_ids"`
		TemplateIDs   pq.StringArray `db:"template_ids"`
	}

	const q = `
		SELECT p.id, p.user_id, p.llm_provider_id, p.generate_only, p.filters,
		       COALESCE(ARRAY_AGG(DISTINCT pc.credential_id) FILTER (WHERE pc.credential_id IS NOT NULL), '{}') AS credential_ids,
		       COALESCE(ARRAY_AGG(DISTINCT pt.template_id) FILTER (WHERE pt.template_id IS NOT NULL), '{}') AS template_ids
		FROM monitoring_processes p
		LEFT JOIN monitoring_process_credentials pc ON pc.process_id = p.id
		LEFT JOIN monitoring_process_templates pt ON pt.process_id = p.id
		WHERE p.id = $1
		GROUP BY p.id`

	if err := s.db.GetContext(ctx, &row, q, processID); err != nil {
		return ProcessConfig{}, fmt.Errorf("store: load process config: %w", err)
	}

	var filters models.ProcessFilters
	if err := unmarshalFilters(row.FiltersJSON, &filters); err != nil {
		return ProcessConfig{}, fmt.Errorf("store: decode filters: %w", err)
	}

	return ProcessConfig{
		ID:            row.ID,
		UserID:        row.UserID,
		LLMProviderID: row.LLMProviderID,
		CredentialIDs: []string(row.CredentialIDs),
		TemplateIDs:   []string(row.TemplateIDs),
		Filters:       filters,
		GenerateOnly:  row.GenerateOnly,
	}, nil
}

// GetProcess reads the full process row, used by the lifecycle service's
// status() operation.
func (s *Store) GetProcess(ctx context.Context, processID string) (*models.MonitoringProcess, error) {
	var row processRow
	q := fmt.Sprintf(`SELECT %s FROM monitoring_processes WHERE id = $1`, processColumns)
	if err := s.db.GetContext(ctx, &row, q, processID); err != nil {
		return nil, fmt.Errorf("store: get process: %w", err)
	}
	model := row.toModel()
	return &model, nil
}

// ListRunning returns every RUNNING process, for the coordinator's tick.
func (s *Store) ListRunning(ctx context.Context) ([]models.MonitoringProcess, error) {
	var rows []processRow
	q := fmt.Sprintf(`SELECT %s FROM monitoring_processes WHERE status = 'RUNNING'`, processColumns)
	if err := s.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, fmt.Errorf("store: list running processes: %w", err)
	}
	out := make([]models.MonitoringProcess, len(rows))
	for i, r := range rows {
		out[i] = r.toModel()
	}
	return out, nil
}

// ListExpiredRunning returns RUNNING processes whose expires_at has passed,
// for the timeout enforcer.
func (s *Store) ListExpiredRunning(ctx context.Context, now time.Time) ([]models.MonitoringProcess, error) {
	var rows []processRow
	q := fmt.Sprintf(`SELECT %s FROM monitoring_processes WHERE status = 'RUNNING' AND expires_at <= $1`, processColumns)
	if err := s.db.SelectContext(ctx, &rows, q, now); err != nil {
		return nil, fmt.Errorf("store: list expired processes: %w", err)
	}
	out := make([]models.MonitoringProcess, len(rows))
	for i, r := range rows {
		out[i] = r.toModel()
	}
	return out, nil
}

// CountRunningByUser reports how many processes owned by userID are
// currently RUNNING, for the start() operation's max_processes_per_user cap.
func (s *Store) CountRunningByUser(ctx context.Context, userID string) (int, error) {
	var n int
	const q = `SELECT count(*) FROM monitoring_processes WHERE user_id = $1 AND status = 'RUNNING'`
	if err := s.db.GetContext(ctx, &n, q, userID); err != nil {
		return 0, fmt.Errorf("store: count running by user: %w", err)
	}
	return n, nil
}

// StartProcess transitions a process to RUNNING. Caller has already
// validated configuration (non-empty credentials/templates, provider
// ownership) — this call only performs the write.
func (s *Store) StartProcess(ctx context.Context, processID string, now time.Time, maxDurationMinutes int) error {
	const q = `
		UPDATE monitoring_processes
		SET status = 'RUNNING', started_at = $2, expires_at = $2 + make_interval(mins => $3), updated_at = $2
		WHERE id = $1`
	_, err := s.db.ExecContext(ctx, q, processID, now, maxDurationMinutes)
	if err != nil {
		return fmt.Errorf("store: start process: %w", err)
	}
	return nil
}

// StopProcess transitions a process to STOPPED and clears its stage task ids.
func (s *Store) StopProcess(ctx context.Context, processID string, now time.Time, reason models.StopReason) error {
	const q = `
		UPDATE monitoring_processes
		SET status = 'STOPPED', stopped_at = $2, stop_reason = $3, updated_at = $2,
		    discovery_task_id = NULL, preparation_task_id = NULL,
		    generation_task_id = NULL, posting_task_id = NULL
		WHERE id = $1`
	_, err := s.db.ExecContext(ctx, q, processID, now, string(reason))
	if err != nil {
		return fmt.Errorf("store: stop process: %w", err)
	}
	return nil
}

// MarkProcessFailed records a configuration-level failure — used at start()
// when validation fails, per the error taxonomy's "process never reaches
// RUNNING" rule.
func (s *Store) MarkProcessFailed(ctx context.Context, processID string, message string) error {
	const q = `UPDATE monitoring_processes SET status = 'FAILED', error_message = $2, updated_at = now() WHERE id = $1`
	_, err := s.db.ExecContext(ctx, q, processID, message)
	if err != nil {
		return fmt.Errorf("store: mark process failed: %w", err)
	}
	return nil
}

var stageTaskColumn = map[models.Stage]string{
	models.StageDiscovery:   "discovery_task_id",
	models.StagePreparation: "preparation_task_id",
	models.StageGeneration:  "generation_task_id",
	models.StagePosting:     "posting_task_id",
}

// SetStageTaskID atomically persists a newly-dispatched task id for one
// stage of a process.
func (s *Store) SetStageTaskID(ctx context.Context, processID string, stage models.Stage, taskID string) error {
	column, ok := stageTaskColumn[stage]
	if !ok {
		return fmt.Errorf("store: unknown stage %q", stage)
	}
	q := fmt.Sprintf(`UPDATE monitoring_processes SET %s = $2, updated_at = now() WHERE id = $1`, column)
	if _, err := s.db.ExecContext(ctx, q, processID, taskID); err != nil {
		return fmt.Errorf("store: set stage task id: %w", err)
	}
	return nil
}

// ClearStageTaskIDs clears all four stage task ids. The timeout enforcer and
// manual stop clear them through StopProcess instead.
func (s *Store) ClearStageTaskIDs(ctx context.Context, processID string) error {
	const q = `
		UPDATE monitoring_processes
		SET discovery_task_id = NULL, preparation_task_id = NULL,
		    generation_task_id = NULL, posting_task_id = NULL, updated_at = now()
		WHERE id = $1`
	_, err := s.db.ExecContext(ctx, q, processID)
	if err != nil {
		return fmt.Errorf("store: clear stage task ids: %w", err)
	}
	return nil
}

// IncrementArticlesDiscovered bumps the discovery counter by delta inserted
// records, using atomic column arithmetic rather than read-modify-write.
func (s *Store) IncrementArticlesDiscovered(ctx context.Context, processID string, delta int) error {
	return s.incrementColumn(ctx, processID, "articles_discovered", delta)
}

// IncrementArticlesPrepared bumps the preparation counter by one.
func (s *Store) IncrementArticlesPrepared(ctx context.Context, processID string) error {
	return s.incrementColumn(ctx, processID, "articles_prepared", 1)
}

// IncrementCommentsGenerated bumps the generation counter by one.
func (s *Store) IncrementCommentsGenerated(ctx context.Context, processID string) error {
	return s.incrementColumn(ctx, processID, "comments_generated", 1)
}

// IncrementCommentsPosted bumps the posting counter by one.
func (s *Store) IncrementCommentsPosted(ctx context.Context, processID string) error {
	return s.incrementColumn(ctx, processID, "comments_posted", 1)
}

var stageErrorColumn = map[models.Stage]string{
	models.StageDiscovery:   "errors_discovery",
	models.StagePreparation: "errors_preparation",
	models.StageGeneration:  "errors_generation",
	models.StagePosting:     "errors_posting",
}

// IncrementStageError bumps the per-stage error counter by one.
func (s *Store) IncrementStageError(ctx context.Context, processID string, stage models.Stage) error {
	column, ok := stageErrorColumn[stage]
	if !ok {
		return fmt.Errorf("store: unknown stage %q", stage)
	}
	return s.incrementColumn(ctx, processID, column, 1)
}

func (s *Store) incrementColumn(ctx context.Context, processID, column string, delta int) error {
	q := fmt.Sprintf(`UPDATE monitoring_processes SET %s = %s + $2, updated_at = now() WHERE id = $1`, column, column)
	if _, err := s.db.ExecContext(ctx, q, processID, delta); err != nil {
		return fmt.Errorf("store: increment %s: %w", column, err)
	}
	return nil
}

// NewProcess is the input to CreateProcess: the fields an operator supplies
// when configuring a monitoring process, before it has ever run.
type NewProcess struct {
	UserID             string
	Name               string
	Description        string
	LLMProviderID      string
	CredentialIDs      []string
	TemplateIDs        []string
	Filters            models.ProcessFilters
	GenerateOnly       bool
	MaxDurationMinutes int
}

// CreateProcess inserts a new process in CREATED status along with its
// credential/template associations, in one transaction.
func (s *Store) CreateProcess(ctx context.Context, p NewProcess) (string, error) {
	filtersJSON, err := marshalFilters(p.Filters)
	if err != nil {
		return "", fmt.Errorf("store: create process: encode filters: %w", err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("store: create process: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var id string
	const insertProcess = `
		INSERT INTO monitoring_processes (user_id, name, description, llm_provider_id, filters, generate_only, max_duration_minutes)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	err = tx.GetContext(ctx, &id, insertProcess,
		p.UserID, p.Name, p.Description, p.LLMProviderID, filtersJSON, p.GenerateOnly, p.MaxDurationMinutes)
	if err != nil {
		return "", fmt.Errorf("store: create process: %w", err)
	}

	for _, credentialID := range p.CredentialIDs {
		const q = `INSERT INTO monitoring_process_credentials (process_id, credential_id) VALUES ($1, $2)`
		if _, err := tx.ExecContext(ctx, q, id, credentialID); err != nil {
			return "", fmt.Errorf("store: create process: link credential: %w", err)
		}
	}
	for _, templateID := range p.TemplateIDs {
		const q = `INSERT INTO monitoring_process_templates (process_id, template_id) VALUES ($1, $2)`
		if _, err := tx.ExecContext(ctx, q, id, templateID); err != nil {
			return "", fmt.Errorf("store: create process: link template: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("store: create process: commit: %w", err)
	}
	return id, nil
}
