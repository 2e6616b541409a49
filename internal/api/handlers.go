package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hollisw/quanttask/internal/broker"
	"github.com/hollisw/quanttask/internal/market"
	"github.com/hollisw/quanttask/internal/models"
	"github.com/hollisw/quanttask/internal/scheduler"
	"github.com/hollisw/quanttask/internal/storage"
	"github.com/hollisw/quanttask/internal/strategy"
)

// createTaskRequest is the POST /api/tasks body.
type createTaskRequest struct {
	Account  string   `json:"account"`
	Market   string   `json:"market"`
	Symbols  []string `json:"symbols"`
	Strategy string   `json:"strategy"`
}

// startTaskRequest is the optional POST /api/tasks/{id}/start body. An empty
// or absent session list starts the task in continuous mode.
type startTaskRequest struct {
	Sessions []string `json:"sessions"`
}

// taskView decorates the persisted task with the live registry state.
type taskView struct {
	models.Task
	WorkerRunning bool `json:"worker_running"`
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Errorf("decoding request: %w", err))
		return
	}

	task := &models.Task{
		Account:  models.AccountKind(req.Account),
		Market:   models.Market(req.Market),
		Symbols:  req.Symbols,
		Strategy: req.Strategy,
	}
	id, err := s.sched.Create(task)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err)
		return
	}
	s.respond(w, http.StatusCreated, envelope{Success: true, Data: taskView{Task: *task, WorkerRunning: false}, Message: fmt.Sprintf("task %d created", id)})
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.storage.ListTasks()
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err)
		return
	}
	views := make([]taskView, 0, len(tasks))
	for _, task := range tasks {
		views = append(views, taskView{Task: task, WorkerRunning: s.sched.IsRunning(task.ID)})
	}
	s.respondData(w, views)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := s.taskID(w, r)
	if !ok {
		return
	}
	task, err := s.storage.GetTask(id)
	if err != nil {
		s.respondError(w, statusFor(err), err)
		return
	}
	s.respondData(w, taskView{Task: *task, WorkerRunning: s.sched.IsRunning(id)})
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := s.taskID(w, r)
	if !ok {
		return
	}
	if err := s.sched.Delete(id); err != nil {
		s.respondError(w, statusFor(err), err)
		return
	}
	s.respondMessage(w, fmt.Sprintf("task %d deleted", id))
}

func (s *Server) handleStartTask(w http.ResponseWriter, r *http.Request) {
	id, ok := s.taskID(w, r)
	if !ok {
		return
	}

	var req startTaskRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.respondError(w, http.StatusBadRequest, fmt.Errorf("decoding request: %w", err))
			return
		}
	}
	sessions, err := market.ParseSessions(req.Sessions)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err)
		return
	}

	if err := s.sched.Start(id, sessions); err != nil {
		s.respondError(w, statusFor(err), err)
		return
	}
	s.respondMessage(w, fmt.Sprintf("task %d started", id))
}

func (s *Server) handlePauseTask(w http.ResponseWriter, r *http.Request) {
	id, ok := s.taskID(w, r)
	if !ok {
		return
	}
	if err := s.sched.Pause(id); err != nil {
		s.respondError(w, statusFor(err), err)
		return
	}
	s.respondMessage(w, fmt.Sprintf("task %d paused", id))
}

func (s *Server) handleStopTask(w http.ResponseWriter, r *http.Request) {
	id, ok := s.taskID(w, r)
	if !ok {
		return
	}
	if err := s.sched.Stop(id); err != nil {
		s.respondError(w, statusFor(err), err)
		return
	}
	s.respondMessage(w, fmt.Sprintf("task %d stopped", id))
}

func (s *Server) handleListLogs(w http.ResponseWriter, r *http.Request) {
	id, ok := s.taskID(w, r)
	if !ok {
		return
	}
	if _, err := s.storage.GetTask(id); err != nil {
		s.respondError(w, statusFor(err), err)
		return
	}
	logs, err := s.storage.ListLogs(id)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err)
		return
	}
	s.respondData(w, logs)
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	brokerage, ok := s.brokerage(w, r)
	if !ok {
		return
	}
	bal, err := brokerage.Gateway.AccountBalance(r.Context())
	if err != nil {
		s.respondError(w, http.StatusBadGateway, err)
		return
	}
	s.respondData(w, bal)
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	brokerage, ok := s.brokerage(w, r)
	if !ok {
		return
	}
	positions, err := brokerage.Gateway.Positions(r.Context(), splitSymbols(r.URL.Query().Get("symbols")))
	if err != nil {
		s.respondError(w, http.StatusBadGateway, err)
		return
	}
	s.respondData(w, positions)
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	brokerage, ok := s.brokerage(w, r)
	if !ok {
		return
	}
	symbols := splitSymbols(r.URL.Query().Get("symbols"))
	if len(symbols) == 0 {
		s.respondError(w, http.StatusBadRequest, errors.New("symbols query parameter is required"))
		return
	}
	quotes, err := brokerage.Quotes.Quote(r.Context(), symbols)
	if err != nil {
		s.respondError(w, http.StatusBadGateway, err)
		return
	}
	s.respondData(w, quotes)
}

func (s *Server) handleStrategies(w http.ResponseWriter, r *http.Request) {
	s.respondData(w, strategy.List())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.respondData(w, map[string]interface{}{
		"running_tasks": s.sched.RunningCount(),
		"daily_trades":  s.risk.DailyTrades(),
		"time":          time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(health); err != nil {
		s.logger.WithError(err).Error("Failed to encode health response")
	}
}

// taskID parses the {id} route parameter, responding 400 on garbage.
func (s *Server) taskID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		s.respondError(w, http.StatusBadRequest, fmt.Errorf("invalid task id %q", raw))
		return 0, false
	}
	return id, true
}

// brokerage resolves the account query parameter (default paper) to a wired
// brokerage, responding 400 when none exists.
func (s *Server) brokerage(w http.ResponseWriter, r *http.Request) (broker.Brokerage, bool) {
	kind := models.AccountKind(r.URL.Query().Get("account"))
	if kind == "" {
		kind = models.AccountPaper
	}
	b, ok := s.brokerages[kind]
	if !ok {
		s.respondError(w, http.StatusBadRequest,
			fmt.Errorf("no brokerage configured for account %q", kind))
		return broker.Brokerage{}, false
	}
	return b, true
}

func splitSymbols(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	symbols := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			symbols = append(symbols, trimmed)
		}
	}
	return symbols
}

// statusFor maps lifecycle and storage errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrTaskNotFound):
		return http.StatusNotFound
	case errors.Is(err, scheduler.ErrTaskTerminal):
		return http.StatusConflict
	case errors.Is(err, scheduler.ErrNoBrokerage):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
