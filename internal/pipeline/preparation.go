package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/yourmoment/core/internal/models"
	"github.com/yourmoment/core/internal/redact"
	"github.com/yourmoment/core/internal/store"
	"github.com/yourmoment/core/internal/telemetry"
	"github.com/yourmoment/core/internal/upstream"
)

// noSecretsScrubber is used where a failure path holds no decrypted secret
// of its own (the scraping adapter owns credential decryption, not this
// worker) but generic secret-shaped substrings should still be caught.
var noSecretsScrubber = redact.NewScrubber()

// PreparationWorker fetches full article content: for each discovered record,
// fetch the full article body with a per-credential rate limit and
// transition to prepared or failed. No DB session is ever held across the
// upstream HTTP call.
type PreparationWorker struct {
	store    *store.Store
	upstream upstream.Adapter
	rate     time.Duration
	logger   *slog.Logger

	limitersMu sync.Mutex
	limiters   map[string]*rate.Limiter
}

// NewPreparationWorker builds a PreparationWorker. rPrep is R_prep, the
// minimum delay between upstream fetches for a single credential; zero
// disables rate limiting.
func NewPreparationWorker(s *store.Store, a upstream.Adapter, rPrep time.Duration) *PreparationWorker {
	return &PreparationWorker{
		store:    s,
		upstream: a,
		rate:     rPrep,
		logger:   slog.Default().With("component", "preparation"),
		limiters: make(map[string]*rate.Limiter),
	}
}

func (w *PreparationWorker) limiterFor(credentialID string) *rate.Limiter {
	w.limitersMu.Lock()
	defer w.limitersMu.Unlock()
	l, ok := w.limiters[credentialID]
	if !ok {
		l = newRateLimiter(w.rate)
		w.limiters[credentialID] = l
	}
	return l
}

// newRateLimiter builds a rate.Limiter allowing one event per interval, or
// an effectively-unlimited limiter when interval is zero.
func newRateLimiter(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

// Run implements StageRunner. Per-credential limiters live on the worker and
// are reused across runs, so throttling carries over from one coordinator
// tick to the next.
func (w *PreparationWorker) Run(ctx context.Context, processID string) error {
	records, err := w.store.ListByStatus(ctx, processID, models.RecordDiscovered)
	if err != nil {
		return fmt.Errorf("pipeline: preparation: list discovered: %w", err)
	}

	for _, rec := range records {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := w.limiterFor(rec.CredentialID).Wait(ctx); err != nil {
			return ctx.Err()
		}

		content, err := w.upstream.FetchArticleContent(ctx, rec.CredentialID, rec.UpstreamArticleID)
		now := time.Now()
		if err != nil {
			w.fail(ctx, processID, rec.ID, err, now)
			continue
		}

		if err := w.store.MarkPrepared(ctx, rec.ID, content.Content, content.RawHTML, content.PublishedAt, now); err != nil {
			w.logger.Error("mark prepared failed", "work_record_id", rec.ID, "error", err)
			continue
		}
		if err := w.store.IncrementArticlesPrepared(ctx, processID); err != nil {
			w.logger.Error("increment articles prepared failed", "process_id", processID, "error", err)
		}
	}
	return nil
}

func (w *PreparationWorker) fail(ctx context.Context, processID, recordID string, cause error, now time.Time) {
	telemetry.StageErrorsTotal.WithLabelValues(string(models.StagePreparation), errKind(cause)).Inc()
	if err := w.store.MarkFailed(ctx, recordID, models.RecordDiscovered, classifyMessage(cause, noSecretsScrubber), now); err != nil {
		w.logger.Error("mark failed failed", "work_record_id", recordID, "error", err)
	}
	if err := w.store.IncrementStageError(ctx, processID, models.StagePreparation); err != nil {
		w.logger.Error("increment stage error counter failed", "process_id", processID, "error", err)
	}
}
