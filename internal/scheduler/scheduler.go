// Package scheduler owns the task lifecycle: it maps persisted tasks to
// running worker goroutines and enforces the status state machine around
// start, pause, stop and delete.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hollisw/quanttask/internal/broker"
	"github.com/hollisw/quanttask/internal/executor"
	"github.com/hollisw/quanttask/internal/indicator"
	"github.com/hollisw/quanttask/internal/market"
	"github.com/hollisw/quanttask/internal/models"
	"github.com/hollisw/quanttask/internal/risk"
	"github.com/hollisw/quanttask/internal/storage"
	"github.com/hollisw/quanttask/internal/strategy"
)

// Config tunes worker behavior. Zero values fall back to the defaults.
type Config struct {
	ErrorThreshold  int           // consecutive failed iterations before ERROR
	ErrorBackoff    time.Duration // sleep after a failed iteration
	JoinTimeout     time.Duration // bounded wait for a worker to exit
	PersistInterval time.Duration // cadence of run-state snapshots
}

// DefaultConfig are the stock scheduler parameters.
var DefaultConfig = Config{
	ErrorThreshold:  5,
	ErrorBackoff:    60 * time.Second,
	JoinTimeout:     5 * time.Second,
	PersistInterval: 5 * time.Minute,
}

func (c Config) normalized() Config {
	if c.ErrorThreshold <= 0 {
		c.ErrorThreshold = DefaultConfig.ErrorThreshold
	}
	if c.ErrorBackoff <= 0 {
		c.ErrorBackoff = DefaultConfig.ErrorBackoff
	}
	if c.JoinTimeout <= 0 {
		c.JoinTimeout = DefaultConfig.JoinTimeout
	}
	if c.PersistInterval <= 0 {
		c.PersistInterval = DefaultConfig.PersistInterval
	}
	return c
}

// Lifecycle errors callers can match with errors.Is.
var (
	// ErrTaskTerminal is returned for start/pause/stop against a task in a
	// terminal state.
	ErrTaskTerminal = errors.New("task is in a terminal state")
	// ErrNoBrokerage is returned when no brokerage is wired for the task's
	// account kind.
	ErrNoBrokerage = errors.New("no brokerage configured for account kind")
)

// Deps are the shared collaborators handed to every worker.
type Deps struct {
	Store      storage.Interface
	Clock      *market.Clock
	Risk       *risk.Gate
	Brokerages map[models.AccountKind]broker.Brokerage
	Logger     *logrus.Logger

	Strategy  strategy.Params
	Indicator indicator.Config
}

// worker is one registry entry. cancel signals the goroutine; done is closed
// by the goroutine on exit.
type worker struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Scheduler is the single authority over which tasks have live workers. All
// lifecycle operations serialize on one mutex, so concurrent API calls see a
// consistent registry.
type Scheduler struct {
	mu      sync.Mutex
	cfg     Config
	deps    Deps
	workers map[int64]*worker
}

// New builds a scheduler. Logger defaults to a fresh logrus instance and
// Clock to the standard market clock when nil.
func New(cfg Config, deps Deps) *Scheduler {
	if deps.Logger == nil {
		deps.Logger = logrus.New()
	}
	if deps.Clock == nil {
		deps.Clock = market.NewClock()
	}
	return &Scheduler{
		cfg:     cfg.normalized(),
		deps:    deps,
		workers: make(map[int64]*worker),
	}
}

// Create validates and persists a new task in the CREATED state. The account,
// market, symbol set and strategy are immutable from here on.
func (s *Scheduler) Create(task *models.Task) (int64, error) {
	if err := task.ValidateSpec(); err != nil {
		return 0, err
	}
	if !strategy.Known(task.Strategy) {
		return 0, fmt.Errorf("unknown strategy %q", task.Strategy)
	}
	if _, ok := s.deps.Brokerages[task.Account]; !ok {
		return 0, fmt.Errorf("%w: %s", ErrNoBrokerage, task.Account)
	}

	task.Status = models.StatusCreated
	id, err := s.deps.Store.CreateTask(task)
	if err != nil {
		return 0, fmt.Errorf("persisting task: %w", err)
	}
	s.deps.Logger.WithFields(logrus.Fields{
		"task_id":  id,
		"account":  task.Account,
		"strategy": task.Strategy,
		"symbols":  task.Symbols,
	}).Info("task created")
	return id, nil
}

// Start spawns a worker for the task, restricted to the given sessions (nil
// means continuous). Starting a task that already has a live worker is a
// no-op; starting a terminal task fails.
func (s *Scheduler) Start(id int64, sessions []market.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.workers[id]; ok {
		return nil
	}

	task, err := s.deps.Store.GetTask(id)
	if err != nil {
		return err
	}
	if task.Status.Terminal() {
		return fmt.Errorf("%w: %s", ErrTaskTerminal, task.Status)
	}
	// A RUNNING row with no registry entry is stale state from a previous
	// process; the registry is authoritative, so starting it is legal.
	if task.Status != models.StatusRunning && !models.CanTransition(task.Status, models.StatusRunning) {
		return fmt.Errorf("cannot start task in state %s", task.Status)
	}

	brokerage, ok := s.deps.Brokerages[task.Account]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoBrokerage, task.Account)
	}

	env, err := s.buildEnv(task, brokerage, sessions)
	if err != nil {
		return err
	}

	if err := s.deps.Store.UpdateStatus(id, models.StatusRunning); err != nil {
		return fmt.Errorf("persisting status: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &worker{cancel: cancel, done: make(chan struct{})}
	s.workers[id] = w
	go s.run(ctx, w, env)

	env.log.WithField("sessions", sessions).Info("task started")
	return nil
}

// buildEnv assembles the per-worker pipeline: the restored indicator store,
// the strategy bound to it, and the executor bound to the task's gateway.
func (s *Scheduler) buildEnv(task *models.Task, brokerage broker.Brokerage, sessions []market.Session) (*runEnv, error) {
	indic, err := indicator.Restore(s.deps.Indicator, task.RunState)
	if err != nil {
		return nil, fmt.Errorf("restoring run state: %w", err)
	}

	log := s.deps.Logger.WithField("task_id", task.ID)
	strat, err := strategy.New(task.Strategy, strategy.Deps{
		Store:     indic,
		Positions: &gatewayPositions{gateway: brokerage.Gateway, log: log},
	}, s.deps.Strategy)
	if err != nil {
		return nil, err
	}

	return &runEnv{
		task:      task,
		sessions:  sessions,
		indic:     indic,
		strat:     strat,
		exec:      executor.New(brokerage.Gateway, s.deps.Store, s.deps.Logger),
		brokerage: brokerage,
		log:       log,
	}, nil
}

// Pause cancels the task's worker and records the PAUSED state. Pausing an
// already paused task is a no-op.
func (s *Scheduler) Pause(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, err := s.deps.Store.GetTask(id)
	if err != nil {
		return err
	}
	switch {
	case task.Status == models.StatusPaused:
		return nil
	case task.Status.Terminal():
		return fmt.Errorf("%w: %s", ErrTaskTerminal, task.Status)
	case task.Status != models.StatusRunning:
		return fmt.Errorf("cannot pause task in state %s", task.Status)
	}

	s.stopWorkerLocked(id)
	if err := s.deps.Store.UpdateStatus(id, models.StatusPaused); err != nil {
		return fmt.Errorf("persisting status: %w", err)
	}
	s.deps.Logger.WithField("task_id", id).Info("task paused")
	return nil
}

// Stop cancels the task's worker and records the terminal STOPPED state.
// Stopping an already stopped task succeeds without side effects; stopping a
// task in ERROR fails.
func (s *Scheduler) Stop(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, err := s.deps.Store.GetTask(id)
	if err != nil {
		return err
	}
	switch task.Status {
	case models.StatusStopped:
		return nil
	case models.StatusError:
		return fmt.Errorf("%w: %s", ErrTaskTerminal, task.Status)
	}

	s.stopWorkerLocked(id)
	if err := s.deps.Store.UpdateStatus(id, models.StatusStopped); err != nil {
		return fmt.Errorf("persisting status: %w", err)
	}
	s.deps.Logger.WithField("task_id", id).Info("task stopped")
	return nil
}

// Delete stops any live worker, then removes the task and its audit log
// entries in bulk.
func (s *Scheduler) Delete(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.deps.Store.GetTask(id); err != nil {
		return err
	}
	s.stopWorkerLocked(id)
	if err := s.deps.Store.DeleteTask(id); err != nil {
		return fmt.Errorf("deleting task: %w", err)
	}
	s.deps.Logger.WithField("task_id", id).Info("task deleted")
	return nil
}

// IsRunning reports whether the task currently has a live worker.
func (s *Scheduler) IsRunning(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.workers[id]
	return ok
}

// RunningCount returns the number of live workers.
func (s *Scheduler) RunningCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.workers)
}

// Resume restarts workers for tasks persisted as RUNNING, for process
// restarts. Session restrictions are not persisted, so resumed tasks poll
// continuously. Failures are logged per task and do not abort the sweep.
func (s *Scheduler) Resume() error {
	tasks, err := s.deps.Store.ListTasks()
	if err != nil {
		return fmt.Errorf("listing tasks: %w", err)
	}
	for _, task := range tasks {
		if task.Status != models.StatusRunning {
			continue
		}
		if err := s.Start(task.ID, nil); err != nil {
			s.deps.Logger.WithField("task_id", task.ID).WithError(err).
				Error("failed to resume task")
		}
	}
	return nil
}

// Shutdown cancels every worker and waits (bounded) for each to exit.
// Persisted statuses are left untouched so RUNNING tasks resume on restart.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.workers {
		s.stopWorkerLocked(id)
	}
}

// stopWorkerLocked cancels the worker and waits up to JoinTimeout for it to
// exit. The registry entry is removed either way; a worker stuck past the
// timeout can no longer be reached and is logged, not waited on.
func (s *Scheduler) stopWorkerLocked(id int64) {
	w, ok := s.workers[id]
	if !ok {
		return
	}
	w.cancel()
	select {
	case <-w.done:
	case <-time.After(s.cfg.JoinTimeout):
		s.deps.Logger.WithField("task_id", id).
			Warnf("worker did not exit within %s, abandoning", s.cfg.JoinTimeout)
	}
	delete(s.workers, id)
}

// reap removes the registry entry when a worker exits on its own, e.g. after
// hitting the error threshold. The entry is only removed if it still refers
// to this worker; a lifecycle call may already have replaced or removed it.
func (s *Scheduler) reap(id int64, w *worker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.workers[id] == w {
		delete(s.workers, id)
	}
}

// gatewayPositions adapts the brokerage gateway to the strategy's
// PositionSource. Lookups are bounded so a hung gateway cannot stall the
// worker indefinitely.
type gatewayPositions struct {
	gateway broker.Gateway
	log     *logrus.Entry
}

func (p *gatewayPositions) AvailablePosition(symbol string) (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), executor.DefaultCallTimeout)
	defer cancel()

	items, err := p.gateway.Positions(ctx, []string{symbol})
	if err != nil {
		p.log.WithField("symbol", symbol).WithError(err).Warn("position lookup failed")
		return 0, err
	}
	for _, item := range items {
		if item.Symbol == symbol {
			return item.AvailableQuantity, nil
		}
	}
	return 0, nil
}
