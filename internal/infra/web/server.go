package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"ai-chat-backend/internal/config"
	"ai-chat-backend/internal/domain"
	"ai-chat-backend/internal/domain/ports/repository"
	"ai-chat-backend/internal/infra/logging"
	red "ai-chat-backend/internal/infra/redis"
	"ai-chat-backend/internal/usecase"
)

type Server struct {
	chatUC        usecase.ChatUseCase
	threads       repository.ThreadRepository
	models        func(ctx context.Context) ([]string, error)
	limiter       *red.RateLimiter
	rlCfg         config.RateLimitConfig
	streamTimeout time.Duration
	auth          *AuthManager
	apiKey        string
	log           *zerolog.Logger
}

func NewServer(
	chatUC usecase.ChatUseCase,
	threads repository.ThreadRepository,
	models func(ctx context.Context) ([]string, error),
	limiter *red.RateLimiter,
	rlCfg config.RateLimitConfig,
	streamTimeout time.Duration,
	auth *AuthManager,
	apiKey string,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		chatUC:        chatUC,
		threads:       threads,
		models:        models,
		limiter:       limiter,
		rlCfg:         rlCfg,
		streamTimeout: streamTimeout,
		auth:          auth,
		apiKey:        apiKey,
		log:           logger,
	}
}

// Router builds the full route tree: the public chat surface, the model
// catalog, and the token-guarded admin surface.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.traceMiddleware)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, struct {
			Status string `json:"status"`
		}{Status: "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/chat", s.handleChat)
		r.Post("/chat/stream", s.handleChatStream)
		r.Get("/threads/{threadID}", s.handleThreadGet)
		r.Get("/models", modelsListHandler(s.models))

		r.Post("/admin/token", s.handleAdminToken)
		r.Group(func(r chi.Router) {
			r.Use(s.auth.Middleware)
			r.Get("/admin/threads", threadsListHandler(s.threads))
			r.Delete("/admin/threads/{threadID}", threadDeleteHandler(s.threads))
		})
	})

	return r
}

// traceMiddleware stamps every request with a trace id carried through logs.
func (s *Server) traceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logging.WithTraceID(r.Context(), uuid.NewString())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// allow applies the per-thread fixed-window limit. A limiter outage fails
// open; losing rate limiting is better than refusing all chat traffic.
func (s *Server) allow(ctx context.Context, threadID string) error {
	if s.limiter == nil || s.rlCfg.PerThread <= 0 {
		return nil
	}
	ok, err := s.limiter.Allow(ctx, red.ThreadRequestKey(threadID), s.rlCfg.PerThread, s.rlCfg.Window)
	if err != nil {
		s.log.Warn().Err(err).Msg("rate limiter unavailable, failing open")
		return nil
	}
	if !ok {
		return domain.ErrRateLimited
	}
	return nil
}

func threadIDParam(r *http.Request) string {
	return chi.URLParam(r, "threadID")
}

// Listen starts the HTTP server and shuts it down when ctx is cancelled.
func (s *Server) Listen(ctx context.Context, addr string, readTimeout, writeTimeout time.Duration) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
