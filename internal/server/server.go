package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/michaelbrown/pairpad/internal/config"
	"github.com/michaelbrown/pairpad/internal/sandbox"
	"github.com/michaelbrown/pairpad/internal/session"
	"github.com/michaelbrown/pairpad/internal/suggest"
)

// Deps are the components the HTTP surface fronts.
type Deps struct {
	Registry  *session.Registry
	Endpoint  *session.Endpoint
	Sandbox   sandbox.Sandbox
	Suggester suggest.Suggester
	Metrics   http.Handler // optional
	Logger    *zap.Logger
}

// Server is the HTTP and WebSocket server for pairpad.
type Server struct {
	cfg       *config.Config
	registry  *session.Registry
	endpoint  *session.Endpoint
	sandbox   sandbox.Sandbox
	suggester suggest.Suggester
	metrics   http.Handler
	logger    *zap.Logger
	validate  *validator.Validate
	upgrader  websocket.Upgrader
	router    chi.Router

	mu     sync.Mutex // guards http and closed between Start and Shutdown
	http   *http.Server
	closed bool

	// baseCtx is cancelled on shutdown so hijacked sockets stop relaying.
	baseCtx    context.Context
	cancelBase context.CancelFunc
}

// New creates a new Server.
func New(cfg *config.Config, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:        cfg,
		registry:   deps.Registry,
		endpoint:   deps.Endpoint,
		sandbox:    deps.Sandbox,
		suggester:  deps.Suggester,
		metrics:    deps.Metrics,
		logger:     logger.Named("server"),
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		router:     chi.NewRouter(),
		baseCtx:    ctx,
		cancelBase: cancel,
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}
	s.setupRoutes()
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	r := s.router

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(s.corsOptions()))

	// WebSocket (no JSON content-type)
	r.Get("/ws/{room}", s.handleWebSocket)

	r.Group(func(r chi.Router) {
		r.Use(jsonContentType)

		r.Post("/run", s.handleRun)
		r.Post("/debug", s.handleDebug)
		r.Get("/healthz", s.handleHealth)

		r.Route("/api", func(r chi.Router) {
			r.Get("/rooms", s.handleListRooms)
			r.Get("/languages", s.handleListLanguages)
		})
	})

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}
}

func (s *Server) corsOptions() cors.Options {
	c := s.cfg.CORS
	return cors.Options{
		AllowedOrigins:   c.AllowedOrigins,
		AllowedMethods:   c.AllowedMethods,
		AllowedHeaders:   c.AllowedHeaders,
		AllowCredentials: c.AllowCredentials,
		MaxAge:           300,
	}
}

// checkOrigin applies the CORS origin list to WebSocket upgrades. Requests
// without an Origin header come from non-browser clients and are allowed.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || s.cfg.CORS.AllowsAnyOrigin() {
		return true
	}
	for _, o := range s.cfg.CORS.AllowedOrigins {
		if o == origin {
			return true
		}
	}
	return false
}

// jsonContentType sets Content-Type to application/json for API routes.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// Start begins listening on the given port. It returns
// http.ErrServerClosed once Shutdown has been called, including when
// Shutdown ran first.
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	hs := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return http.ErrServerClosed
	}
	s.http = hs
	s.mu.Unlock()

	s.logger.Info("pairpad server starting", zap.String("addr", addr))
	return hs.ListenAndServe()
}

// Shutdown disconnects every participant, then drains HTTP requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")
	s.mu.Lock()
	s.closed = true
	hs := s.http
	s.mu.Unlock()

	s.cancelBase()
	s.registry.CloseAll()

	if hs == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	return hs.Shutdown(shutdownCtx)
}
