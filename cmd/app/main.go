// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ai-chat-backend/internal/config"
	"ai-chat-backend/internal/domain/ports/adapter"
	aiAdapters "ai-chat-backend/internal/infra/adapters/ai"
	pg "ai-chat-backend/internal/infra/db/postgres"
	"ai-chat-backend/internal/infra/logging"
	"ai-chat-backend/internal/infra/metrics"
	red "ai-chat-backend/internal/infra/redis"
	"ai-chat-backend/internal/infra/sched"
	"ai-chat-backend/internal/infra/security"
	"ai-chat-backend/internal/infra/web"
	"ai-chat-backend/internal/infra/worker"
	"ai-chat-backend/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (scripted generator without provider keys)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("[DEV MODE] Enabled")
	}
	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis (optional: cache and rate limiting degrade without it) ----
	var (
		threadCache *red.ThreadCache
		rateLimiter *red.RateLimiter
	)
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		defer redisClient.Close()
		threadCache = red.NewThreadCache(redisClient, cfg.Redis.TTL)
		rateLimiter = red.NewRateLimiter(redisClient)
	} else {
		logger.Warn().Msg("redis.url not set; history cache and rate limiting disabled")
	}

	// ---- Encryption at rest ----
	var encSvc *security.EncryptionService
	if cfg.Security.EncryptionKey != "" {
		encSvc, err = security.NewEncryptionService(cfg.Security.EncryptionKey)
		if err != nil {
			logger.Fatal().Err(err).Msg("encryption")
		}
	} else {
		logger.Warn().Msg("security.encryption_key not set; turn content stored as plaintext")
	}

	// ---- Repository ----
	threadRepo := pg.NewThreadRepo(pool, threadCache, encSvc)

	// ---- Generator chain (providers -> router -> concurrency limit) ----
	gen, err := buildGenerator(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("generator")
	}
	gen = aiAdapters.NewLimitedGenerator(gen, cfg.AI.ConcurrentLimit)

	// ---- Use case ----
	locks := usecase.NewThreadLocks()
	chatUC := usecase.NewChatUseCase(threadRepo, gen, locks, cfg.AI.DefaultModel, cfg.AI.HistoryBudget, logger)

	// ---- Retention worker ----
	if cfg.Retention.MaxIdle > 0 {
		purgePool := worker.NewPool(cfg.Retention.Workers, logger)
		purgePool.Start(ctx)
		defer purgePool.Stop()
		retention := sched.NewRetentionWorker(cfg.Retention.MaxIdle, cfg.Retention.Interval, threadRepo, locks, purgePool, logger)
		go func() { _ = retention.Run(ctx) }()
	}

	// ---- HTTP server ----
	auth := web.NewAuthManager(cfg.Admin.Secret, !cfg.Runtime.Dev, cfg.Admin.TokenTTL)
	srv := web.NewServer(chatUC, threadRepo, gen.ListModels, rateLimiter, cfg.RateLimit, cfg.Server.StreamWriteTimeout, auth, cfg.Admin.APIKey, logger)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		logger.Info().Str("addr", addr).Str("model", cfg.AI.DefaultModel).Msg("http listening")
		if err := srv.Listen(ctx, addr, cfg.Server.ReadTimeout, cfg.Server.WriteTimeout); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()
	// Give the server a moment to drain in-flight streams.
	time.Sleep(200 * time.Millisecond)
}

// buildGenerator wires whichever providers have keys behind the model router.
// Dev mode without keys falls back to the scripted echo generator.
func buildGenerator(ctx context.Context, cfg *config.Config) (adapter.Generator, error) {
	byProvider := map[string]adapter.Generator{}
	defaultProvider := ""

	if cfg.AI.OpenAIKey != "" {
		oa, err := aiAdapters.NewOpenAIAdapter(cfg.AI.OpenAIKey, cfg.AI.OpenAIBaseURL, cfg.AI.DefaultModel, cfg.AI.MaxOutputTokens)
		if err != nil {
			return nil, fmt.Errorf("openai adapter: %w", err)
		}
		byProvider["openai"] = oa
		defaultProvider = "openai"
	}
	if cfg.AI.GeminiKey != "" {
		ga, err := aiAdapters.NewGeminiAdapter(ctx, cfg.AI.GeminiKey, cfg.AI.GeminiURL, cfg.AI.DefaultModel, cfg.AI.MaxOutputTokens)
		if err != nil {
			return nil, fmt.Errorf("gemini adapter: %w", err)
		}
		byProvider["gemini"] = ga
		if defaultProvider == "" {
			defaultProvider = "gemini"
		}
	}

	if len(byProvider) == 0 {
		if !cfg.Runtime.Dev {
			return nil, fmt.Errorf("no AI provider configured")
		}
		return aiAdapters.NewScriptGenerator(0), nil
	}
	return aiAdapters.NewMultiGenerator(defaultProvider, byProvider, nil), nil
}
