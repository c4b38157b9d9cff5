// Package server exposes the console's view API: read endpoints the
// dashboard pages render from, and action endpoints for the few mutations
// the user can trigger (auth, broker link, rules, alert acknowledgement).
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/tradementor/console/internal/clients/mentor"
	"github.com/tradementor/console/internal/domain"
	"github.com/tradementor/console/internal/router"
	"github.com/tradementor/console/internal/stores"
)

// streamStatus exposes the connection state of the event stream.
type streamStatus interface {
	State() mentor.ConnState
	Connect(token string)
	Disconnect()
}

// tradeFetcher fetches single trades that fell out of the live window.
type tradeFetcher interface {
	GetTrade(ctx context.Context, id string) (domain.Trade, error)
}

// Deps is everything the server reads from and acts on.
type Deps struct {
	Auth     *stores.AuthStore
	Trades   *stores.TradesStore
	Alerts   *stores.AlertsStore
	Settings *stores.SettingsStore
	Panel    *stores.AIPanelStore
	Stats    *stores.StatsStore
	Syncer   *stores.Syncer
	Stream   streamStatus
	Backend  tradeFetcher
	Tray     *router.MemoryNotifier
}

// Server is the console's HTTP server.
type Server struct {
	router  *chi.Mux
	server  *http.Server
	log     zerolog.Logger
	deps    Deps
	started time.Time
}

// New creates the server listening on the given port.
func New(port int, deps Deps, devMode bool, log zerolog.Logger) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		log:     log.With().Str("component", "server").Logger(),
		deps:    deps,
		started: time.Now(),
	}

	s.setupMiddleware(devMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the route tree, for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start blocks serving HTTP until Shutdown is called.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP server starting")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown drains connections and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("HTTP server shutting down")
	return s.server.Shutdown(ctx)
}

func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	})
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", s.handleLogin)
			r.Post("/register", s.handleRegister)
			r.Post("/logout", s.handleLogout)
			r.Get("/session", s.handleSession)
		})

		r.Route("/trades", func(r chi.Router) {
			r.Get("/", s.handleTrades)
			r.Post("/refresh", s.handleTradesRefresh)
			r.Get("/{id}", s.handleTrade)
		})

		r.Route("/alerts", func(r chi.Router) {
			r.Get("/", s.handleAlerts)
			r.Post("/{id}/ack", s.handleAlertAck)
			r.Post("/ack-all", s.handleAlertAckAll)
			r.Delete("/", s.handleAlertsClear)
		})

		r.Route("/account", func(r chi.Router) {
			r.Get("/", s.handleAccount)
			r.Post("/connect", s.handleAccountConnect)
			r.Delete("/", s.handleAccountDisconnect)
		})

		r.Route("/rules", func(r chi.Router) {
			r.Get("/", s.handleRules)
			r.Put("/", s.handleRulesUpdate)
		})

		r.Get("/readiness", s.handleReadiness)

		r.Route("/panel", func(r chi.Router) {
			r.Get("/", s.handlePanel)
			r.Post("/select/{id}", s.handlePanelSelect)
			r.Delete("/", s.handlePanelClose)
		})

		r.Route("/stats", func(r chi.Router) {
			r.Get("/overview", s.handleStatsOverview)
			r.Get("/daily", s.handleStatsDaily)
			r.Get("/weekly", s.handleStatsWeekly)
		})

		r.Route("/analytics", func(r chi.Router) {
			r.Get("/equity", s.handleEquity)
			r.Get("/breakdown", s.handleBreakdown)
			r.Get("/rdist", s.handleRDistribution)
			r.Get("/heatmap", s.handleHeatmap)
			r.Get("/streak", s.handleStreak)
			r.Get("/sizing", s.handleSizing)
			r.Get("/patterns", s.handlePatternCosts)
			r.Get("/summary", s.handleSummary)
		})

		r.Get("/notifications", s.handleNotifications)
		r.Get("/stream", s.handleStreamState)
	})
}
