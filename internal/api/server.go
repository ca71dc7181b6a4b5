// Package api serves the deployment workspace over HTTP and relays session
// snapshots to dashboard clients over a websocket.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"

	"github.com/launchdeck/launchdeck/internal/api/handlers"
	"github.com/launchdeck/launchdeck/internal/api/middleware"
	"github.com/launchdeck/launchdeck/internal/app/workspace"
	"github.com/launchdeck/launchdeck/internal/pkg/logger"
)

// Config configures the API server.
type Config struct {
	Host    string
	Port    int
	Verbose bool
	Version string
	// Token, when set, is required as a bearer token on /api and /ws.
	Token          string
	AllowedOrigins []string
	RateLimit      float64
	RateBurst      int
	RequestTimeout time.Duration
	Logger         *slog.Logger
}

// Server is the HTTP front of a Workspace.
type Server struct {
	config     Config
	logger     *slog.Logger
	router     *chi.Mux
	httpServer *http.Server
	ws         *workspace.Workspace
	hub        *handlers.WebSocketHub
	limiter    *middleware.RateLimiter
	cancel     context.CancelFunc
}

// NewServer creates a server for ws and starts relaying its session
// snapshots to websocket clients.
func NewServer(cfg Config, ws *workspace.Workspace) *Server {
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 20
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 40
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		config:  cfg,
		logger:  cfg.Logger,
		ws:      ws,
		hub:     handlers.NewWebSocketHub(cfg.Logger, cfg.AllowedOrigins...),
		limiter: middleware.NewRateLimiter(cfg.RateLimit, cfg.RateBurst),
		cancel:  cancel,
	}
	if sess := ws.Session(); sess != nil {
		s.hub.RelaySession(ctx, sess)
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(s.logger, s.config.Verbose))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.TimeoutWithExclusions(s.config.RequestTimeout, "/ws/"))

	origins := s.config.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:*", "http://127.0.0.1:*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", handlers.NewHealthHandler(s.config.Version, s.ws).HandleHealth)

	r.Group(func(r chi.Router) {
		r.Use(middleware.BearerToken(s.config.Token))
		r.Use(s.limiter.Handler)

		r.Route("/api/v1", func(r chi.Router) {
			r.Use(middleware.BodyLimit(0))
			r.Get("/", func(w http.ResponseWriter, r *http.Request) {
				render.JSON(w, r, map[string]string{
					"status":  "ok",
					"version": "v1",
				})
			})
			handlers.NewSessionHandler(s.ws).RegisterRoutes(r)
			handlers.NewDraftHandler(s.ws).RegisterRoutes(r)
		})

		r.Get("/ws/session", s.hub.HandleSessionWebSocket(s.ws.Session))
	})

	s.router = r
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.config.Host, fmt.Sprint(s.config.Port))
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("starting server", "addr", addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the relay, disconnects websocket clients and drains HTTP
// requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")
	s.cancel()
	s.hub.Close()
	s.limiter.Stop()

	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Router returns the HTTP handler, for tests and embedding.
func (s *Server) Router() *chi.Mux {
	return s.router
}
