// Package server implements the roster HTTP server: REST API, auth, and SSE live events.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/GoCodeAlone/roster/comms"
	"github.com/GoCodeAlone/roster/config"
	"github.com/GoCodeAlone/roster/server/api"
	"github.com/GoCodeAlone/roster/server/ws"
	"github.com/GoCodeAlone/roster/task"
)

// Server is the roster HTTP server.
type Server struct {
	cfg     config.Config
	router  chi.Router
	httpSrv *http.Server
	logger  *slog.Logger
	users   map[string]config.UserConfig

	engine      *task.Engine
	departments api.DepartmentStore
	bus         comms.Bus
	hub         *ws.Hub
	unsubscribe func()

	routesOnce sync.Once

	// JWT secret caching
	secretOnce      sync.Once
	generatedSecret string

	startTime time.Time
	version   string
}

// New creates a new Server with the given config and logger. A nil logger
// discards output.
func New(cfg config.Config, ver string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	users := make(map[string]config.UserConfig, len(cfg.Auth.Users))
	for _, u := range cfg.Auth.Users {
		users[u.Username] = u
	}
	return &Server{
		cfg:       cfg,
		router:    chi.NewRouter(),
		logger:    logger,
		users:     users,
		hub:       ws.NewHub(logger),
		startTime: time.Now(),
		version:   ver,
	}
}

// SetEngine attaches the task lifecycle engine.
func (s *Server) SetEngine(e *task.Engine) {
	s.engine = e
}

// SetDepartments attaches the department directory.
func (s *Server) SetDepartments(d api.DepartmentStore) {
	s.departments = d
}

// SetBus attaches the event bus. Published events are forwarded to SSE clients.
func (s *Server) SetBus(bus comms.Bus) {
	s.bus = bus
}

// Handler returns the fully routed HTTP handler. Routes are registered on
// first call; attach dependencies before calling it.
func (s *Server) Handler() http.Handler {
	s.routesOnce.Do(s.registerRoutes)
	return s.router
}

// Start registers routes and begins listening.
func (s *Server) Start() error {
	addr := s.cfg.Server.Addr
	if addr == "" {
		addr = ":9090"
	}
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
	}
	s.logger.Info("server listening", slog.String("addr", addr))
	return s.httpSrv.ListenAndServe()
}

// Stop detaches from the bus and gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// registerRoutes sets up all HTTP routes.
func (s *Server) registerRoutes() {
	h := &api.Handlers{
		Engine:      s.engine,
		Departments: s.departments,
		Bus:         s.bus,
		Logger:      s.logger,
		Version:     s.version,
		StartAt:     s.startTime,
	}

	if s.bus != nil {
		s.unsubscribe = s.bus.Subscribe(func(_ context.Context, ev *comms.Event) error {
			s.hub.Broadcast(ws.Event{Type: string(ev.Type), Scope: ev.DepartmentID, Payload: ev})
			return nil
		})
	}

	r := s.router
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	r.Use(s.cors)

	// Public routes (no auth required)
	r.Post("/api/auth/login", s.handleLogin)
	r.Get("/api/status", h.StatusHandler())

	// SSE: EventSource can't set headers, so the token may come as ?token=
	r.Get("/events", s.handleSSE)

	// Protected API
	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/api/auth/me", s.handleMe)
		h.RegisterRoutes(r)
	})
}

// handleSSE authenticates the stream and hands it to the hub, scoped to the
// caller's department unless the caller is an admin.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r, true)
	if token == "" {
		writeJSONError(w, http.StatusUnauthorized, "token required")
		return
	}
	c, err := verifyJWT(s.jwtSecret(), token)
	if err != nil {
		writeJSONError(w, http.StatusUnauthorized, "invalid token: "+err.Error())
		return
	}
	s.hub.ServeSSE(w, r, task.ScopeFor(c.actor()))
}

// requestLogger tags each request with an X-Request-ID and logs it on completion.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		s.logger.Info("http request",
			slog.String("request_id", id),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Int("bytes", ww.BytesWritten()),
			slog.Duration("duration", time.Since(start)),
		)
	})
}

// cors answers browser preflights for the configured front-end origin.
func (s *Server) cors(next http.Handler) http.Handler {
	origin := s.cfg.Server.CORSOrigin
	if origin == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONError writes a JSON error response.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
