package models

import "fmt"

// TaskStatus represents the lifecycle state of a task.
type TaskStatus string

const (
	// StatusCreated is the initial state before the first start.
	StatusCreated TaskStatus = "created"
	// StatusRunning means a worker goroutine is polling for the task.
	StatusRunning TaskStatus = "running"
	// StatusPaused means the worker was cancelled but the task may resume.
	StatusPaused TaskStatus = "paused"
	// StatusStopped is terminal; only deletion is allowed afterwards.
	StatusStopped TaskStatus = "stopped"
	// StatusError is terminal, entered when the consecutive-error count
	// passes the configured threshold.
	StatusError TaskStatus = "error"
)

// StatusTransition defines one valid lifecycle transition.
type StatusTransition struct {
	From      TaskStatus
	To        TaskStatus
	Condition string
}

// ValidStatusTransitions is the full task lifecycle table.
var ValidStatusTransitions = []StatusTransition{
	{StatusCreated, StatusRunning, "start"},
	{StatusPaused, StatusRunning, "start"},
	{StatusRunning, StatusPaused, "pause"},

	{StatusRunning, StatusStopped, "stop"},
	{StatusPaused, StatusStopped, "stop"},
	{StatusCreated, StatusStopped, "stop"},

	{StatusRunning, StatusError, "error_threshold"},
}

// Terminal reports whether the status has no outgoing transitions.
// Terminal tasks can only be deleted.
func (s TaskStatus) Terminal() bool {
	return s == StatusStopped || s == StatusError
}

// Valid reports whether the status is one of the known values.
func (s TaskStatus) Valid() bool {
	switch s {
	case StatusCreated, StatusRunning, StatusPaused, StatusStopped, StatusError:
		return true
	}
	return false
}

// CanTransition reports whether from -> to is in the lifecycle table.
func CanTransition(from, to TaskStatus) bool {
	for _, tr := range ValidStatusTransitions {
		if tr.From == from && tr.To == to {
			return true
		}
	}
	return false
}

// Transition validates and applies a status change on the task.
func (t *Task) Transition(to TaskStatus) error {
	if !CanTransition(t.Status, to) {
		return fmt.Errorf("invalid task transition from %s to %s", t.Status, to)
	}
	t.Status = to
	return nil
}
