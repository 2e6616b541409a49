package storage

import (
	"fmt"
	"sync"
	"time"

	"github.com/hollisw/quanttask/internal/models"
)

// MockStorage implements Interface in memory for testing. Error fields let
// tests inject failures on specific operations.
type MockStorage struct {
	mu sync.Mutex

	CreateError error
	UpdateError error
	AppendError error

	tasks      map[int64]*models.Task
	logs       map[int64][]models.TradeLog
	nextTaskID int64
	nextLogID  int64
}

// NewMockStorage creates an empty mock store.
func NewMockStorage() *MockStorage {
	return &MockStorage{
		tasks: make(map[int64]*models.Task),
		logs:  make(map[int64][]models.TradeLog),
	}
}

// CreateTask implements Interface.
func (m *MockStorage) CreateTask(task *models.Task) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateError != nil {
		return 0, m.CreateError
	}
	m.nextTaskID++
	cp := *task
	cp.ID = m.nextTaskID
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	cp.Symbols = append([]string(nil), task.Symbols...)
	m.tasks[cp.ID] = &cp
	task.ID = cp.ID
	task.CreatedAt = cp.CreatedAt
	return cp.ID, nil
}

// GetTask implements Interface.
func (m *MockStorage) GetTask(id int64) (*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	cp := *task
	cp.Symbols = append([]string(nil), task.Symbols...)
	return &cp, nil
}

// ListTasks implements Interface.
func (m *MockStorage) ListTasks() ([]models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tasks := make([]models.Task, 0, len(m.tasks))
	for id := int64(1); id <= m.nextTaskID; id++ {
		if task, ok := m.tasks[id]; ok {
			tasks = append(tasks, *task)
		}
	}
	return tasks, nil
}

// UpdateStatus implements Interface.
func (m *MockStorage) UpdateStatus(id int64, status models.TaskStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdateError != nil {
		return m.UpdateError
	}
	task, ok := m.tasks[id]
	if !ok {
		return fmt.Errorf("task %d: %w", id, ErrTaskNotFound)
	}
	task.Status = status
	return nil
}

// UpdateRunState implements Interface.
func (m *MockStorage) UpdateRunState(id int64, blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdateError != nil {
		return m.UpdateError
	}
	task, ok := m.tasks[id]
	if !ok {
		return fmt.Errorf("task %d: %w", id, ErrTaskNotFound)
	}
	task.RunState = append([]byte(nil), blob...)
	return nil
}

// DeleteTask implements Interface.
func (m *MockStorage) DeleteTask(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[id]; !ok {
		return fmt.Errorf("task %d: %w", id, ErrTaskNotFound)
	}
	delete(m.tasks, id)
	delete(m.logs, id)
	return nil
}

// AppendLog implements Interface.
func (m *MockStorage) AppendLog(entry models.TradeLog) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AppendError != nil {
		return 0, m.AppendError
	}
	m.nextLogID++
	entry.ID = m.nextLogID
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	m.logs[entry.TaskID] = append(m.logs[entry.TaskID], entry)
	return entry.ID, nil
}

// ListLogs implements Interface.
func (m *MockStorage) ListLogs(taskID int64) ([]models.TradeLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.TradeLog(nil), m.logs[taskID]...), nil
}

// Close implements Interface.
func (m *MockStorage) Close() error { return nil }
