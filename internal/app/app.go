package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/prepforge/exam-portal/internal/auth"
	"github.com/prepforge/exam-portal/internal/auth/jwt"
	"github.com/prepforge/exam-portal/internal/config"
	"github.com/prepforge/exam-portal/internal/dashboard"
	"github.com/prepforge/exam-portal/internal/db/repository"
	"github.com/prepforge/exam-portal/internal/exam"
	"github.com/prepforge/exam-portal/internal/exam/gemini"
	"github.com/prepforge/exam-portal/internal/logging"
	"github.com/prepforge/exam-portal/internal/server"
	ws "github.com/prepforge/exam-portal/pkg/http/ws"
)

// Application aggregates shared infrastructure (DB, cache, HTTP server).
type Application struct {
	cfg    *config.App
	logger zerolog.Logger

	pool  *pgxpool.Pool
	redis *redis.Client
	http  *http.Server
}

// New bootstraps configs, logger, Postgres, Redis and the HTTP server.
func New(ctx context.Context, cfg *config.App) (*Application, error) {
	logger := logging.New(cfg.Name, cfg.Env)
	logger.Info().Msg("starting application bootstrap")

	connString := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s pool_max_conns=10",
		cfg.Postgres.Host, cfg.Postgres.Port, cfg.Postgres.User, cfg.Postgres.Password, cfg.Postgres.Database, cfg.Postgres.SSLMode)

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})

	userRepo := repository.NewUserRepository(pool)
	examRepo := repository.NewExamRepository(pool)
	resultRepo := repository.NewResultRepository(pool)

	sessionStore := auth.NewSessionStore(redisClient, cfg.Security.MaxUserSessions, cfg.Security.TokenTTL, logger)

	authSvc := auth.NewService(userRepo, auth.ServiceOptions{
		TokenConfig: jwt.TokenConfig{
			Secret: []byte(cfg.Security.JWTSecret),
			TTL:    cfg.Security.TokenTTL,
			Issuer: cfg.Name,
		},
		Sessions: sessionStore,
	}, logger)

	var oauthSvc *auth.OAuthService
	if cfg.OAuth.GoogleClientID != "" && cfg.OAuth.GoogleClientSecret != "" {
		redirectURL := cfg.OAuth.GoogleRedirectURL
		if redirectURL == "" {
			redirectURL = fmt.Sprintf("http://%s/v1/oauth/google/callback", cfg.HTTPAddr)
		}
		oauthSvc = auth.NewOAuthService(cfg.OAuth.GoogleClientID, cfg.OAuth.GoogleClientSecret, redirectURL, logger)
		logger.Info().Msg("OAuth service initialized")
	} else {
		logger.Warn().Msg("OAuth not configured (missing GOOGLE_OAUTH_CLIENT_ID or GOOGLE_OAUTH_CLIENT_SECRET)")
	}
	authHandlers := auth.NewHTTPHandlers(authSvc, oauthSvc, logger)

	if cfg.Gemini.APIKey == "" {
		logger.Warn().Msg("GEMINI_API_KEY not set; question generation will fall back to placeholders")
	}
	modelClient := gemini.NewClient(gemini.Config{
		APIKey:  cfg.Gemini.APIKey,
		Model:   cfg.Gemini.Model,
		BaseURL: cfg.Gemini.BaseURL,
		Timeout: cfg.Gemini.Timeout,
	}, logger)

	wsHub := ws.NewHub(logger)
	statusTracker := exam.NewStatusTracker(redisClient, wsHub, logger)

	generator := exam.NewGenerator(modelClient, exam.GeneratorOptions{
		ChunkSize:          cfg.Generation.ChunkSize,
		MaxAttempts:        cfg.Generation.MaxAttempts,
		CallTimeout:        cfg.Gemini.Timeout,
		ChunkDelay:         cfg.Generation.ChunkDelay,
		SubjectConcurrency: cfg.Generation.SubjectConcurrency,
	}, statusTracker, logger)

	examSvc := exam.NewService(examRepo, resultRepo, generator, logger)
	examHandlers := exam.NewHTTPHandlers(examSvc, statusTracker, wsHub, authSvc, logger)

	dashboardSvc := dashboard.NewService(examRepo, resultRepo, redisClient, logger, dashboard.ServiceOptions{})
	dashboardHandler := dashboard.NewHTTPHandler(dashboardSvc, logger)

	apiServer := server.NewHTTPServer(cfg, logger, pool, redisClient, authHandlers, authSvc, examHandlers, dashboardHandler)

	return &Application{
		cfg:    cfg,
		logger: logger,
		pool:   pool,
		redis:  redisClient,
		http:   apiServer,
	}, nil
}

// Run starts the HTTP server and waits for termination signals.
func (a *Application) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info().Str("addr", a.cfg.HTTPAddr).Msg("http server listening")
		if err := a.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		a.logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
		a.logger.Warn().Msg("context canceled")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.GracefulShutdownTimeout)
	defer cancel()

	if err := a.http.Shutdown(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("http shutdown error")
	}

	a.pool.Close()
	if err := a.redis.Close(); err != nil {
		a.logger.Error().Err(err).Msg("redis shutdown error")
	}

	a.logger.Info().Msg("shutdown complete")
	return nil
}
