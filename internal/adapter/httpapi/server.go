package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/finsim/papertrade-backend/internal/usecase/trading"
)

// Config holds server configuration
type Config struct {
	Port     int
	Log      zerolog.Logger
	Trading  *trading.Service
	Resolver IdentityResolver
}

// Server exposes the trading engine over HTTP. It carries no business logic:
// handlers decode input, call the trading service, and map domain errors to
// status codes.
type Server struct {
	router  *chi.Mux
	server  *http.Server
	log     zerolog.Logger
	trading *trading.Service
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		log:     cfg.Log.With().Str("component", "httpapi").Logger(),
		trading: cfg.Trading,
	}

	s.setupMiddleware()
	s.setupRoutes(cfg.Resolver)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
}

// setupRoutes configures all routes
func (s *Server) setupRoutes(resolver IdentityResolver) {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api/trading", func(r chi.Router) {
		r.Use(authMiddleware(resolver))
		r.Get("/portfolio", s.handleGetPortfolio)
		r.Post("/buy", s.handleBuy)
		r.Post("/sell", s.handleSell)
		r.Get("/positions", s.handleListPositions)
		r.Get("/transactions", s.handleListTransactions)
	})
}

// loggingMiddleware logs each request with method, path, status and duration
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
