package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/yourmoment/core/internal/models"
	"github.com/yourmoment/core/internal/store"
	"github.com/yourmoment/core/internal/telemetry"
	"github.com/yourmoment/core/internal/upstream"
)

// DiscoveryWorker enumerates, for each credential on a process, upstream
// articles matching its filters, fanning out to one prospective WorkRecord
// per (article, template) pair.
type DiscoveryWorker struct {
	store    *store.Store
	upstream upstream.Adapter
	logger   *slog.Logger
}

// NewDiscoveryWorker builds a DiscoveryWorker.
func NewDiscoveryWorker(s *store.Store, a upstream.Adapter) *DiscoveryWorker {
	return &DiscoveryWorker{
		store:    s,
		upstream: a,
		logger:   slog.Default().With("component", "discovery"),
	}
}

// Run implements StageRunner.
func (w *DiscoveryWorker) Run(ctx context.Context, processID string) error {
	cfg, err := w.store.LoadProcessConfig(ctx, processID)
	if err != nil {
		return fmt.Errorf("pipeline: discovery: load config: %w", err)
	}

	var prospective []store.NewWorkRecord
	for _, credentialID := range cfg.CredentialIDs {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		articles, err := w.upstream.ListArticles(ctx, credentialID, cfg.Filters)
		if err != nil {
			// Per-credential failures never abort other credentials.
			w.recordError(ctx, processID, credentialID, err)
			continue
		}

		for _, article := range articles {
			for _, templateID := range cfg.TemplateIDs {
				prospective = append(prospective, store.NewWorkRecord{
					ProcessID:         processID,
					UserID:            cfg.UserID,
					CredentialID:      credentialID,
					TemplateID:        templateID,
					LLMProviderID:     cfg.LLMProviderID,
					UpstreamArticleID: article.UpstreamArticleID,
					ArticleTitle:      article.Title,
					ArticleAuthor:     article.Author,
					ArticleCategory:   article.Category,
					ArticleURL:        article.URL,
					ArticleEditedAt:   article.EditedAt,
				})
			}
		}
	}

	if len(prospective) == 0 {
		return nil
	}

	inserted, err := w.store.InsertDiscovered(ctx, prospective)
	if err != nil {
		return fmt.Errorf("pipeline: discovery: insert: %w", err)
	}
	if inserted == 0 {
		return nil
	}
	if err := w.store.IncrementArticlesDiscovered(ctx, processID, inserted); err != nil {
		return fmt.Errorf("pipeline: discovery: increment counter: %w", err)
	}
	return nil
}

func (w *DiscoveryWorker) recordError(ctx context.Context, processID, credentialID string, err error) {
	w.logger.Warn("list articles failed", "process_id", processID, "credential_id", credentialID,
		"error", noSecretsScrubber.Scrub(err.Error()))
	telemetry.StageErrorsTotal.WithLabelValues(string(models.StageDiscovery), errKind(err)).Inc()
	if incErr := w.store.IncrementStageError(ctx, processID, models.StageDiscovery); incErr != nil {
		w.logger.Error("increment stage error counter failed", "error", incErr)
	}
}
