// Package api exposes the task engine over HTTP: task CRUD and lifecycle,
// trade logs, account and quote queries.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/hollisw/quanttask/internal/broker"
	"github.com/hollisw/quanttask/internal/models"
	"github.com/hollisw/quanttask/internal/risk"
	"github.com/hollisw/quanttask/internal/scheduler"
	"github.com/hollisw/quanttask/internal/storage"
)

// Config holds the HTTP server settings.
type Config struct {
	Port      int
	AuthToken string
}

// Server is the HTTP front end. It never touches workers directly; all
// lifecycle operations go through the scheduler.
type Server struct {
	router     *chi.Mux
	server     *http.Server
	sched      *scheduler.Scheduler
	storage    storage.Interface
	brokerages map[models.AccountKind]broker.Brokerage
	risk       *risk.Gate
	logger     *logrus.Logger
	port       int
	authToken  string
}

// NewServer wires the routes and middleware.
func NewServer(cfg Config, sched *scheduler.Scheduler, store storage.Interface,
	brokerages map[models.AccountKind]broker.Brokerage, gate *risk.Gate,
	logger *logrus.Logger) *Server {
	s := &Server{
		router:     chi.NewRouter(),
		sched:      sched,
		storage:    store,
		brokerages: brokerages,
		risk:       gate,
		logger:     logger,
		port:       cfg.Port,
		authToken:  cfg.AuthToken,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))

	if s.authToken != "" {
		s.router.Use(s.authMiddleware)
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/tasks", s.handleCreateTask)
		r.Get("/tasks", s.handleListTasks)
		r.Get("/tasks/{id}", s.handleGetTask)
		r.Delete("/tasks/{id}", s.handleDeleteTask)
		r.Post("/tasks/{id}/start", s.handleStartTask)
		r.Post("/tasks/{id}/pause", s.handlePauseTask)
		r.Post("/tasks/{id}/stop", s.handleStopTask)
		r.Get("/tasks/{id}/logs", s.handleListLogs)

		r.Get("/account/balance", s.handleBalance)
		r.Get("/account/positions", s.handlePositions)
		r.Get("/quote/price", s.handleQuote)
		r.Get("/strategies", s.handleStrategies)
		r.Get("/status", s.handleStatus)
	})

	s.router.Get("/health", s.handleHealth)
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		token := r.Header.Get("X-Auth-Token")
		if token == "" {
			token = r.URL.Query().Get("token")
		}

		if token != s.authToken {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Start blocks serving HTTP until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Infof("Starting API server on port %d", s.port)
	return s.server.ListenAndServe()
}

// Shutdown drains in-flight requests until the context expires.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// Router exposes the handler tree, mainly for tests.
func (s *Server) Router() http.Handler { return s.router }

// envelope is the uniform response body for every /api endpoint.
type envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func (s *Server) respond(w http.ResponseWriter, status int, env envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}

func (s *Server) respondData(w http.ResponseWriter, data interface{}) {
	s.respond(w, http.StatusOK, envelope{Success: true, Data: data})
}

func (s *Server) respondMessage(w http.ResponseWriter, message string) {
	s.respond(w, http.StatusOK, envelope{Success: true, Message: message})
}

func (s *Server) respondError(w http.ResponseWriter, status int, err error) {
	s.respond(w, status, envelope{Success: false, Message: err.Error()})
}
