package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/prepforge/exam-portal/internal/auth"
	"github.com/prepforge/exam-portal/internal/config"
	"github.com/prepforge/exam-portal/internal/dashboard"
	"github.com/prepforge/exam-portal/internal/exam"
)

// NewHTTPServer wires all API routes. Exam and dashboard routes sit behind
// the auth middleware; handlers enforce ownership on top of that.
func NewHTTPServer(cfg *config.App, logger zerolog.Logger, pool *pgxpool.Pool, rdb *redis.Client, authHandlers *auth.HTTPHandlers, authSvc *auth.Service, examHandlers *exam.HTTPHandlers, dashboardHandler *dashboard.HTTPHandler) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := pingDependencies(r.Context(), pool, rdb); err != nil {
			logger.Error().Err(err).Msg("dependency ping failed")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"degraded"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	mux.Handle("GET /metrics", promhttp.Handler())

	// Auth endpoints
	mux.HandleFunc("POST /v1/auth/register", authHandlers.Register)
	mux.HandleFunc("POST /v1/auth/login", authHandlers.Login)
	mux.HandleFunc("POST /v1/auth/logout", authHandlers.Logout)
	mux.HandleFunc("POST /v1/auth/logout-others", authHandlers.LogoutOthers)
	mux.HandleFunc("GET /v1/auth/sessions", authHandlers.GetSessions)
	mux.HandleFunc("GET /v1/oauth/{provider}/start", authHandlers.OAuthStart)
	mux.HandleFunc("GET /v1/oauth/{provider}/callback", authHandlers.OAuthCallback)
	mux.HandleFunc("GET /v1/auth/me", authHandlers.GetMe)

	// Exam lifecycle endpoints
	mux.HandleFunc("POST /v1/exams", examHandlers.Create)
	mux.HandleFunc("GET /v1/exams/{id}", examHandlers.Get)
	mux.HandleFunc("POST /v1/exams/{id}/start", examHandlers.Start)
	mux.HandleFunc("POST /v1/exams/{id}/submit", examHandlers.Submit)
	mux.HandleFunc("GET /v1/exams/{id}/result", examHandlers.Result)
	mux.HandleFunc("GET /v1/exams/{id}/generation-status", examHandlers.GenerationStatus)

	// WebSocket endpoint (token passed as query param, not header)
	mux.HandleFunc("GET /ws/exams", examHandlers.HandleWebSocket)

	mux.HandleFunc("GET /v1/dashboard", dashboardHandler.HandleGet)

	var handler http.Handler = mux
	handler = auth.Middleware(authSvc, logger)(handler)
	handler = corsMiddleware(cfg.CORS)(handler)

	return &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: handler,
	}
}

func pingDependencies(ctx context.Context, pool *pgxpool.Pool, rdb *redis.Client) error {
	if err := pool.Ping(ctx); err != nil {
		return err
	}
	if err := rdb.Ping(ctx).Err(); err != nil {
		return err
	}
	return nil
}

// corsMiddleware applies the configured CORS policy and short-circuits
// preflight requests.
func corsMiddleware(cfg config.CORS) func(http.Handler) http.Handler {
	allowedOrigins := make(map[string]bool, len(cfg.AllowedOrigins))
	allowAll := false
	for _, origin := range cfg.AllowedOrigins {
		if origin == "*" {
			allowAll = true
		}
		allowedOrigins[origin] = true
	}
	methods := strings.Join(cfg.AllowedMethods, ", ")
	headers := strings.Join(cfg.AllowedHeaders, ", ")
	maxAge := strconv.Itoa(cfg.MaxAge)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && (allowAll || allowedOrigins[origin]) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
				if cfg.AllowCredentials {
					w.Header().Set("Access-Control-Allow-Credentials", "true")
				}
				if r.Method == http.MethodOptions {
					w.Header().Set("Access-Control-Allow-Methods", methods)
					w.Header().Set("Access-Control-Allow-Headers", headers)
					w.Header().Set("Access-Control-Max-Age", maxAge)
					w.WriteHeader(http.StatusNoContent)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
