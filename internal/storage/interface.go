// Package storage persists tasks and their trade audit logs.
package storage

import (
	"errors"

	"github.com/hollisw/quanttask/internal/models"
)

// ErrTaskNotFound is returned when an operation references a task id that
// does not exist.
var ErrTaskNotFound = errors.New("task not found")

// Interface is the persistence contract the engine consumes.
//
// Implementations must be safe for concurrent use: the scheduler, every task
// worker and the HTTP API call these methods from their own goroutines.
type Interface interface {
	// Task management
	CreateTask(task *models.Task) (int64, error)
	GetTask(id int64) (*models.Task, error)
	ListTasks() ([]models.Task, error)
	UpdateStatus(id int64, status models.TaskStatus) error
	UpdateRunState(id int64, blob []byte) error
	// DeleteTask removes the task and, in bulk, its audit log entries.
	DeleteTask(id int64) error

	// Trade audit log (append-only; entries are never mutated)
	AppendLog(entry models.TradeLog) (int64, error)
	ListLogs(taskID int64) ([]models.TradeLog, error)

	Close() error
}

// Ensure the provided implementations satisfy Interface.
var (
	_ Interface = (*SQLiteStorage)(nil)
	_ Interface = (*MockStorage)(nil)
)
