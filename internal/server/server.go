// Package server assembles the HTTP API: routes, middleware chain and the
// websocket endpoint.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/auricex/auricex/internal/domain"
	"github.com/auricex/auricex/internal/server/handler"
	"github.com/auricex/auricex/internal/server/middleware"
	"github.com/auricex/auricex/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port            int
	CORSOrigins     []string
	APIKey          string // empty disables authentication
	AdminAPIKey     string
	RateLimit       int // requests per window per client, 0 disables
	RateLimitWindow time.Duration
}

// Handlers aggregates the handlers the server registers.
type Handlers struct {
	Health  *handler.HealthHandler
	Trades  *handler.TradeHandler
	Account *handler.AccountHandler
	Admin   *handler.AdminHandler
}

// Server is the HTTP + websocket API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a Server with all routes registered and the middleware chain
// applied (rate limit, auth, logging, CORS, outermost last).
func New(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health (no auth).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Trade lifecycle.
	mux.HandleFunc("POST /api/trades", handlers.Trades.OpenTrade)
	mux.HandleFunc("GET /api/trades", handlers.Trades.ListTrades)
	mux.HandleFunc("GET /api/trades/{id}", handlers.Trades.GetTrade)

	// Account.
	mux.HandleFunc("GET /api/account/{user_id}", handlers.Account.GetAccount)

	// Admin console.
	mux.HandleFunc("POST /api/admin/trades/{id}/settle", handlers.Admin.SettleTrade)
	mux.HandleFunc("POST /api/admin/trades/{id}/reject", handlers.Admin.RejectTrade)
	mux.HandleFunc("POST /api/admin/settle-expired", handlers.Admin.SettleExpired)
	mux.HandleFunc("POST /api/admin/users/{id}/adjust", handlers.Admin.AdjustBalance)
	mux.HandleFunc("PUT /api/admin/users/{id}/outcome-mode", handlers.Admin.SetOutcomeMode)
	mux.HandleFunc("PUT /api/admin/users/{id}/kyc", handlers.Admin.SetKyc)
	mux.HandleFunc("GET /api/admin/audit", handlers.Admin.ListAudit)

	// Event stream.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
	if limiter != nil && cfg.RateLimit > 0 {
		window := cfg.RateLimitWindow
		if window <= 0 {
			window = time.Second
		}
		h = middleware.RateLimit(limiter, cfg.RateLimit, window)(h)
	}
	h = middleware.Auth(cfg.APIKey, cfg.AdminAPIKey)(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      h,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

// Start listens for requests and blocks until the server stops.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
