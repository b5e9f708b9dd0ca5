// yourmoment-core runs the content-monitoring pipeline: the coordinator,
// the four stage workers, and the timeout enforcer, behind a minimal HTTP
// surface for health and metrics.
package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/yourmoment/core/internal/broker"
	"github.com/yourmoment/core/internal/config"
	"github.com/yourmoment/core/internal/crypto"
	"github.com/yourmoment/core/internal/llmadapter"
	"github.com/yourmoment/core/internal/models"
	"github.com/yourmoment/core/internal/notify"
	"github.com/yourmoment/core/internal/pipeline"
	"github.com/yourmoment/core/internal/prompt"
	"github.com/yourmoment/core/internal/services"
	"github.com/yourmoment/core/internal/store"
	"github.com/yourmoment/core/internal/telemetry"
	"github.com/yourmoment/core/internal/upstream"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("Warning: could not load %s: %v", envPath, err)
		log.Printf("Continuing with existing environment variables...")
	} else {
		log.Printf("Loaded environment from %s", envPath)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		log.Fatalf("Failed to initialize configuration: %v", err)
	}
	gin.SetMode(cfg.GinMode)

	masterKey, err := hex.DecodeString(cfg.MasterKeyHex)
	if err != nil {
		log.Fatalf("Failed to decode YOURMOMENT_MASTER_KEY: %v", err)
	}
	envelope, err := crypto.NewEnvelope(masterKey)
	if err != nil {
		log.Fatalf("Failed to build credential envelope: %v", err)
	}

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}()
	slog.Info("connected to PostgreSQL, migrations applied")

	redisOpts, err := redis.ParseURL(cfg.BrokerURL)
	if err != nil {
		log.Fatalf("Failed to parse BROKER_URL: %v", err)
	}
	redisClient := redis.NewClient(redisOpts)
	defer func() {
		if err := redisClient.Close(); err != nil {
			log.Printf("Error closing broker connection: %v", err)
		}
	}()
	taskBroker := broker.NewRedisBroker(redisClient, cfg.BrokerTaskTTL())

	var notifier *notify.Notifier
	if cfg.Slack.Enabled {
		notifier = notify.New(os.Getenv(cfg.Slack.TokenEnv), cfg.Slack.Channel)
	}

	renderer := prompt.NewRenderer()
	upstreamAdapter := upstream.NewFakeAdapter()
	llmFactory := buildLLMFactory(cfg.Builtin)

	discoveryWorker := pipeline.NewDiscoveryWorker(db, upstreamAdapter)
	preparationWorker := pipeline.NewPreparationWorker(db, upstreamAdapter, cfg.Pipeline.PreparationRate)
	generationWorker := pipeline.NewGenerationWorker(db, envelope, llmFactory, renderer, cfg.Pipeline.CommentPrefix)
	postingWorker := pipeline.NewPostingWorker(db, upstreamAdapter, envelope, cfg.Pipeline.PostingRate, cfg.Pipeline.MaxRetries)

	dispatcher := pipeline.NewDispatcher(taskBroker, discoveryWorker, preparationWorker, generationWorker, postingWorker)
	coordinator := pipeline.NewCoordinator(db, taskBroker, dispatcher)
	timeoutEnforcer := pipeline.NewTimeoutEnforcer(db, taskBroker, dispatcher, notifier)
	lifecycle := services.NewProcessLifecycleService(db, taskBroker, notifier, cfg.Pipeline.MaxProcessesPerUser)
	_ = lifecycle // exercised by the HTTP process-control routes registered below

	for _, c := range telemetry.All() {
		_ = prometheus.Register(c)
	}

	stopTicks := runTickers(ctx, cfg, coordinator, timeoutEnforcer)
	defer stopTicks()

	router := buildRouter(cfg, db, lifecycle)

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("HTTP server listening", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	<-ctx.Done()
	slog.Info("shutdown signal received, draining")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP server did not shut down cleanly", "error", err)
	}
}

// runTickers starts the coordinator and timeout-enforcer loops on their
// configured cadences, stopping both when ctx is cancelled.
func runTickers(ctx context.Context, cfg *config.Config, coordinator *pipeline.Coordinator, enforcer *pipeline.TimeoutEnforcer) func() {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		ticker := time.NewTicker(cfg.Pipeline.TriggerInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := coordinator.Tick(ctx); err != nil {
					slog.Error("coordinator tick failed", "error", err)
				}
			}
		}
	}()

	go func() {
		defer wg.Done()
		ticker := time.NewTicker(cfg.Pipeline.TimeoutInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := enforcer.Tick(ctx); err != nil {
					slog.Error("timeout enforcer tick failed", "error", err)
				}
			}
		}
	}()

	return wg.Wait
}

func buildRouter(cfg *config.Config, db *store.Store, lifecycle *services.ProcessLifecycleService) *gin.Engine {
	router := gin.Default()

	router.GET("/health", func(c *gin.Context) {
		reqCtx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		if err := db.DB().PingContext(reqCtx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "database": "unreachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "database": "reachable"})
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.POST("/processes/:id/start", func(c *gin.Context) {
		if err := lifecycle.Start(c.Request.Context(), c.Param("id")); err != nil {
			c.JSON(statusForLifecycleErr(err), gin.H{"error": err.Error()})
			return
		}
		c.Status(http.StatusAccepted)
	})

	router.POST("/processes/:id/stop", func(c *gin.Context) {
		if err := lifecycle.Stop(c.Request.Context(), c.Param("id")); err != nil {
			c.JSON(statusForLifecycleErr(err), gin.H{"error": err.Error()})
			return
		}
		c.Status(http.StatusAccepted)
	})

	_ = cfg
	return router
}

func statusForLifecycleErr(err error) int {
	if errors.Is(err, services.ErrValidation) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// buildLLMFactory wires the generic HTTPAdapter default to the two built-in
// vendors, filling in each vendor's wire format as a RequestBuilder/
// ResponseParser pair. Endpoints are the vendors' public chat-completion
// URLs; Builtin supplies the fallback model name when a provider row omits
// one.
func buildLLMFactory(builtin *config.BuiltinConfig) llmadapter.Factory {
	endpoints := map[models.LLMVendor]string{
		models.VendorOpenAI:  "https://api.openai.com/v1/chat/completions",
		models.VendorMistral: "https://api.mistral.ai/v1/chat/completions",
	}

	return llmadapter.FactoryFunc(func(vendorTag, apiKey string) (llmadapter.Adapter, error) {
		vendor := models.LLMVendor(vendorTag)
		endpoint, ok := endpoints[vendor]
		if !ok {
			return nil, fmt.Errorf("llmadapter: unsupported vendor %q", vendorTag)
		}

		defaults := builtin.VendorDefaults[vendorTag]
		adapter := llmadapter.NewHTTPAdapter(endpoint, apiKey)
		adapter.RequestBuilder = func(systemPrompt, userPrompt string, params llmadapter.ModelParams) any {
			model := params.Model
			if model == "" {
				model = defaults.ModelName
			}
			req := map[string]any{
				"model": model,
				"messages": []map[string]string{
					{"role": "system", "content": systemPrompt},
					{"role": "user", "content": userPrompt},
				},
				"temperature": params.Temperature,
				"max_tokens":  params.MaxTokens,
			}
			if params.JSONMode {
				req["response_format"] = map[string]string{"type": "json_object"}
			}
			return req
		}
		adapter.ResponseParser = func(body []byte) (string, int, int, error) {
			var parsed struct {
				Choices []struct {
					Message struct {
						Content string `json:"content"`
					} `json:"message"`
				} `json:"choices"`
				Usage struct {
					PromptTokens     int `json:"prompt_tokens"`
					CompletionTokens int `json:"completion_tokens"`
				} `json:"usage"`
			}
			if err := json.Unmarshal(body, &parsed); err != nil {
				return "", 0, 0, err
			}
			if len(parsed.Choices) == 0 {
				return "", 0, 0, fmt.Errorf("llmadapter: no choices in response")
			}
			return parsed.Choices[0].Message.Content, parsed.Usage.PromptTokens, parsed.Usage.CompletionTokens, nil
		}
		return adapter, nil
	})
}
