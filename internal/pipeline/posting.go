package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/yourmoment/core/internal/crypto"
	"github.com/yourmoment/core/internal/models"
	"github.com/yourmoment/core/internal/redact"
	"github.com/yourmoment/core/internal/store"
	"github.com/yourmoment/core/internal/telemetry"
	"github.com/yourmoment/core/internal/upstream"
)

// PostingWorker submits comments upstream: for each generated record on a
// process that posts, submit the comment upstream with an idempotency
// marker and a per-credential rate limit, making at most maxRetries attempts
// across coordinator ticks before giving up.
type PostingWorker struct {
	store      *store.Store
	upstream   upstream.Adapter
	crypto     *crypto.Envelope
	rate       time.Duration
	maxRetries int
	logger     *slog.Logger

	limitersMu sync.Mutex
	limiters   map[string]*rate.Limiter
}

// NewPostingWorker builds a PostingWorker. rPost is R_post; maxRetries is
// N_retry, the retry budget before a record is marked failed.
func NewPostingWorker(s *store.Store, a upstream.Adapter, env *crypto.Envelope, rPost time.Duration, maxRetries int) *PostingWorker {
	return &PostingWorker{
		store:      s,
		upstream:   a,
		crypto:     env,
		rate:       rPost,
		maxRetries: maxRetries,
		logger:     slog.Default().With("component", "posting"),
		limiters:   make(map[string]*rate.Limiter),
	}
}

func (w *PostingWorker) limiterFor(credentialID string) *rate.Limiter {
	w.limitersMu.Lock()
	defer w.limitersMu.Unlock()
	l, ok := w.limiters[credentialID]
	if !ok {
		l = newRateLimiter(w.rate)
		w.limiters[credentialID] = l
	}
	return l
}

// Run implements StageRunner.
func (w *PostingWorker) Run(ctx context.Context, processID string) error {
	records, err := w.store.ListByStatus(ctx, processID, models.RecordGenerated)
	if err != nil {
		return fmt.Errorf("pipeline: posting: list generated: %w", err)
	}
	if len(records) == 0 {
		return nil
	}

	credentialIDs := distinctValues(records, func(r models.WorkRecord) string { return r.CredentialID })
	credentials, err := w.store.ListCredentials(ctx, credentialIDs)
	if err != nil {
		return fmt.Errorf("pipeline: posting: load credentials: %w", err)
	}

	credByID := make(map[string]models.UpstreamCredential, len(credentials))
	passwords := make(map[string]string, len(credentials))
	for _, c := range credentials {
		credByID[c.ID] = c
		if pw, err := w.crypto.Decrypt(c.ID, "credential.password", c.PasswordEncrypted); err == nil {
			passwords[c.ID] = pw
		}
	}
	scrubber := redact.NewScrubber(passwordValues(passwords)...)

	for _, rec := range records {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		w.postOne(ctx, processID, rec, credByID, passwords, scrubber)
	}
	return nil
}

func (w *PostingWorker) postOne(ctx context.Context, processID string, rec models.WorkRecord, credByID map[string]models.UpstreamCredential, passwords map[string]string, scrubber *redact.Scrubber) {
	if _, ok := credByID[rec.CredentialID]; !ok {
		w.failFinal(ctx, processID, rec.ID, "upstream credential not found")
		return
	}
	if _, ok := passwords[rec.CredentialID]; !ok {
		w.failFinal(ctx, processID, rec.ID, "decrypt upstream credential password failed")
		return
	}
	if rec.CommentContent == nil {
		w.failFinal(ctx, processID, rec.ID, "generated record has no comment content")
		return
	}

	if err := w.limiterFor(rec.CredentialID).Wait(ctx); err != nil {
		return
	}

	err := w.upstream.PostComment(ctx, rec.CredentialID, rec.UpstreamArticleID, *rec.CommentContent)
	now := time.Now()
	if err == nil {
		marker := idempotencyMarker(processID, rec.UpstreamArticleID, rec.ID)
		if mErr := w.store.MarkPosted(ctx, rec.ID, marker, now); mErr != nil {
			w.logger.Error("mark posted failed", "work_record_id", rec.ID, "error", mErr)
			return
		}
		if cErr := w.store.IncrementCommentsPosted(ctx, processID); cErr != nil {
			w.logger.Error("increment comments posted failed", "process_id", processID, "error", cErr)
		}
		if tErr := w.store.TouchCredential(ctx, rec.CredentialID); tErr != nil {
			w.logger.Error("touch credential failed", "credential_id", rec.CredentialID, "error", tErr)
		}
		return
	}

	telemetry.StageErrorsTotal.WithLabelValues(string(models.StagePosting), errKind(err)).Inc()

	if upstream.IsPermanent(err) {
		w.failFinal(ctx, processID, rec.ID, classifyMessage(err, scrubber))
		return
	}

	// Transient failure: bump retry_count and leave status=generated so the
	// coordinator's next tick retries it, unless the retry budget is spent.
	retryCount, incErr := w.store.IncrementPostingRetry(ctx, rec.ID)
	if incErr != nil {
		w.logger.Error("increment posting retry failed", "work_record_id", rec.ID, "error", incErr)
		return
	}
	if err := w.store.IncrementStageError(ctx, processID, models.StagePosting); err != nil {
		w.logger.Error("increment stage error counter failed", "process_id", processID, "error", err)
	}
	if retryCount >= w.maxRetries {
		if fErr := w.store.MarkFailedFinal(ctx, rec.ID, models.RecordGenerated, classifyMessage(err, scrubber), now); fErr != nil {
			w.logger.Error("mark failed final failed", "work_record_id", rec.ID, "error", fErr)
		}
	}
}

func (w *PostingWorker) failFinal(ctx context.Context, processID, recordID, message string) {
	if err := w.store.MarkFailed(ctx, recordID, models.RecordGenerated, message, time.Now()); err != nil {
		w.logger.Error("mark failed failed", "work_record_id", recordID, "error", err)
	}
	if err := w.store.IncrementStageError(ctx, processID, models.StagePosting); err != nil {
		w.logger.Error("increment stage error counter failed", "process_id", processID, "error", err)
	}
}

// passwordValues collects the decrypted credential passwords for this run,
// for building the failure-path Scrubber.
func passwordValues(passwords map[string]string) []string {
	out := make([]string, 0, len(passwords))
	for _, pw := range passwords {
		out = append(out, pw)
	}
	return out
}

// idempotencyMarker synthesizes a deterministic comment identifier since
// the upstream never returns a stable one of its own.
func idempotencyMarker(processID, upstreamArticleID, workRecordID string) string {
	h := sha256.New()
	h.Write([]byte(processID))
	h.Write([]byte{0})
	h.Write([]byte(upstreamArticleID))
	h.Write([]byte{0})
	h.Write([]byte(workRecordID))
	return hex.EncodeToString(h.Sum(nil))
}
