package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/yourmoment/core/internal/crypto"
	"github.com/yourmoment/core/internal/llmadapter"
	"github.com/yourmoment/core/internal/models"
	"github.com/yourmoment/core/internal/prompt"
	"github.com/yourmoment/core/internal/redact"
	"github.com/yourmoment/core/internal/store"
	"github.com/yourmoment/core/internal/telemetry"
)

const excerptLength = 500

// GenerationWorker, for each prepared record, renders the template, calls
// the LLM, and validates and stores the result.
type GenerationWorker struct {
	store         *store.Store
	crypto        *crypto.Envelope
	adapters      llmadapter.Factory
	renderer      *prompt.Renderer
	commentPrefix string
	logger        *slog.Logger
}

// NewGenerationWorker builds a GenerationWorker. commentPrefix is
// AI_COMMENT_PREFIX — the mandated disclosure prefix every stored comment
// must begin with.
func NewGenerationWorker(s *store.Store, env *crypto.Envelope, adapters llmadapter.Factory, renderer *prompt.Renderer, commentPrefix string) *GenerationWorker {
	return &GenerationWorker{
		store:         s,
		crypto:        env,
		adapters:      adapters,
		renderer:      renderer,
		commentPrefix: commentPrefix,
		logger:        slog.Default().With("component", "generation"),
	}
}

// Run implements StageRunner.
func (w *GenerationWorker) Run(ctx context.Context, processID string) error {
	records, err := w.store.ListByStatus(ctx, processID, models.RecordPrepared)
	if err != nil {
		return fmt.Errorf("pipeline: generation: list prepared: %w", err)
	}
	if len(records) == 0 {
		return nil
	}

	providers, err := w.store.ListLLMProviders(ctx, distinctValues(records, func(r models.WorkRecord) string { return r.LLMProviderID }))
	if err != nil {
		return fmt.Errorf("pipeline: generation: load providers: %w", err)
	}
	templates, err := w.store.ListTemplates(ctx, distinctValues(records, func(r models.WorkRecord) string { return r.TemplateID }))
	if err != nil {
		return fmt.Errorf("pipeline: generation: load templates: %w", err)
	}

	providerByID := make(map[string]models.LLMProviderConfig, len(providers))
	for _, p := range providers {
		providerByID[p.ID] = p
	}
	templateByID := make(map[string]models.PromptTemplate, len(templates))
	for _, t := range templates {
		templateByID[t.ID] = t
	}

	adapterByProvider := make(map[string]llmadapter.Adapter)
	var knownSecrets []string

	for _, rec := range records {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		w.generateOne(ctx, processID, rec, providerByID, templateByID, adapterByProvider, &knownSecrets)
	}
	return nil
}

func (w *GenerationWorker) generateOne(
	ctx context.Context,
	processID string,
	rec models.WorkRecord,
	providerByID map[string]models.LLMProviderConfig,
	templateByID map[string]models.PromptTemplate,
	adapterByProvider map[string]llmadapter.Adapter,
	knownSecrets *[]string,
) {
	provider, ok := providerByID[rec.LLMProviderID]
	if !ok {
		w.fail(ctx, processID, rec.ID, "llm provider config not found")
		return
	}
	template, ok := templateByID[rec.TemplateID]
	if !ok {
		w.fail(ctx, processID, rec.ID, "prompt template not found")
		return
	}

	adapter, ok := adapterByProvider[provider.ID]
	if !ok {
		apiKey, err := w.crypto.Decrypt(provider.ID, "llmprovider.api_key", provider.APIKeyEncrypted)
		if err != nil {
			w.fail(ctx, processID, rec.ID, "decrypt llm provider api key failed")
			return
		}
		*knownSecrets = append(*knownSecrets, apiKey)
		adapter, err = w.adapters.ForProvider(string(provider.VendorTag), apiKey)
		if err != nil {
			w.fail(ctx, processID, rec.ID, "build llm adapter failed: "+redact.NewScrubber(*knownSecrets...).Scrub(err.Error()))
			return
		}
		adapterByProvider[provider.ID] = adapter
	}

	userPrompt := w.renderer.Render(template.UserPromptTemplate, prompt.ArticleContext{
		ArticleTitle:    rec.ArticleTitle,
		ArticleAuthor:   rec.ArticleAuthor,
		ArticleContent:  derefString(rec.ArticleContent),
		ArticleExcerpt:  excerpt(derefString(rec.ArticleContent), excerptLength),
		ArticleCategory: rec.ArticleCategory,
		CurrentDate:     time.Now().Format("2006-01-02"),
	})

	result, err := adapter.Generate(ctx, template.SystemPrompt, userPrompt, llmadapter.ModelParams{
		Model:       provider.ModelName,
		Temperature: provider.Temperature,
		MaxTokens:   provider.MaxTokens,
		JSONMode:    provider.JSONMode,
	})
	now := time.Now()
	if err != nil {
		telemetry.StageErrorsTotal.WithLabelValues(string(models.StageGeneration), errKind(err)).Inc()
		w.fail(ctx, processID, rec.ID, classifyMessage(err, redact.NewScrubber(*knownSecrets...)))
		return
	}

	text := strings.TrimSpace(result.Text)
	if text == "" {
		w.fail(ctx, processID, rec.ID, "llm returned empty text")
		return
	}
	if !strings.HasPrefix(text, w.commentPrefix) {
		text = w.commentPrefix + text
	}

	totalTokens := result.PromptTokens + result.CompletionTokens
	err = w.store.MarkGenerated(ctx, rec.ID, text, provider.ModelName, string(provider.VendorTag), totalTokens, int(result.Latency.Milliseconds()), now)
	if err != nil {
		w.logger.Error("mark generated failed", "work_record_id", rec.ID, "error", err)
		return
	}
	if err := w.store.IncrementCommentsGenerated(ctx, processID); err != nil {
		w.logger.Error("increment comments generated failed", "process_id", processID, "error", err)
	}
}

func (w *GenerationWorker) fail(ctx context.Context, processID, recordID, message string) {
	if err := w.store.MarkFailed(ctx, recordID, models.RecordPrepared, message, time.Now()); err != nil {
		w.logger.Error("mark failed failed", "work_record_id", recordID, "error", err)
	}
	if err := w.store.IncrementStageError(ctx, processID, models.StageGeneration); err != nil {
		w.logger.Error("increment stage error counter failed", "process_id", processID, "error", err)
	}
}

// distinctValues collects the unique values key(r) returns across records,
// preserving first-seen order.
func distinctValues(records []models.WorkRecord, key func(models.WorkRecord) string) []string {
	seen := make(map[string]struct{}, len(records))
	out := make([]string, 0, len(records))
	for _, r := range records {
		v := key(r)
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// excerpt trims s to at most n runes, for the {article_excerpt} placeholder.
func excerpt(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
