package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/epitrello/epitrello/internal/access"
	"github.com/epitrello/epitrello/internal/api/stream"
	v1 "github.com/epitrello/epitrello/internal/api/v1"
	"github.com/epitrello/epitrello/internal/auth"
	"github.com/epitrello/epitrello/internal/config"
	"github.com/epitrello/epitrello/internal/events"
	"github.com/epitrello/epitrello/internal/history"
	"github.com/epitrello/epitrello/internal/notify"
	"github.com/epitrello/epitrello/internal/server/middleware"
	redisstore "github.com/epitrello/epitrello/internal/store/redis"
)

// Server is the HTTP server that wires all application routes and middleware.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	store      *redisstore.Store
	auth       *auth.Service
	bus        *events.Bus
	cfg        *config.Config
}

// New creates a Server with all routes wired.
// webAssets may be nil; when provided, the web client is served on all
// unmatched routes (embedded via go:embed for single-binary distribution).
func New(
	ctx context.Context,
	cfg *config.Config,
	store *redisstore.Store,
	bus *events.Bus,
	histLog *history.Log,
	authSvc *auth.Service,
	notifier *notify.Notifier,
	providers map[string]v1.OAuthExchanger,
	webAssets fs.FS,
) *Server {
	router := chi.NewRouter()

	// Global middleware stack.
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(chimw.Logger)
	router.Use(chimw.Recoverer)
	router.Use(middleware.Metrics)
	router.Use(cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler)

	checker := access.NewChecker(store.Boards(), store.Users())

	s := &Server{
		router: router,
		store:  store,
		auth:   authSvc,
		bus:    bus,
		cfg:    cfg,
		httpServer: &http.Server{
			Addr:         cfg.Server.Addr,
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
	}

	// Mount API routes on /api/v1 with two sub-groups:
	// 1. Unauthenticated group for session bootstrap.
	// 2. Authenticated group for everything else.
	router.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimitByIP(ctx, 10, 30))

			authConfig := huma.DefaultConfig("Epitrello Auth API", "1.0.0")
			authConfig.Servers = []*huma.Server{
				{URL: "/api/v1"},
			}
			authAPI := humachi.New(r, authConfig)
			registerAuthRoutes(authAPI, authSvc, providers)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.Session.Secret))
			r.Use(middleware.RateLimit(ctx, 100, 200))

			apiConfig := huma.DefaultConfig("Epitrello API", "1.0.0")
			apiConfig.Servers = []*huma.Server{
				{URL: "/api/v1"},
			}
			api := humachi.New(r, apiConfig)
			registerAPIRoutes(api, store, checker, bus, histLog, notifier)
		})
	})

	// Realtime routes. SSE clients authenticate with the token query
	// parameter the auth middleware accepts for EventSource.
	router.Route("/events", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.Session.Secret))
		registerStreamRoutes(r, stream.NewHandler(bus, checker))
	})

	// Runtime profiling, admins only.
	router.Route("/debug", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.Session.Secret))
		r.Use(middleware.RequireAdmin())
		r.Mount("/", chimw.Profiler())
	})

	// Prometheus scrape endpoint (unauthenticated, like /healthz).
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Serve the embedded web client on all unmatched routes.
	// This must be the last route registered so API routes take priority.
	if webAssets != nil {
		router.NotFound(spaFileServer(webAssets).ServeHTTP)
		log.Info().Msg("embedded web client enabled")
	}

	return s
}

// Start begins listening for HTTP requests.
func (s *Server) Start(_ context.Context) error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.Start: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}
