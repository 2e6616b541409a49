package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hollisw/quanttask/internal/models"
)

// Schema creates the task and audit-log tables. Symbols and run-state are
// stored as JSON text, matching the persisted task shape.
const Schema = `
CREATE TABLE IF NOT EXISTS task (
	task_id INTEGER PRIMARY KEY AUTOINCREMENT,
	account TEXT NOT NULL,
	market TEXT NOT NULL,
	symbols TEXT NOT NULL,
	strategy TEXT NOT NULL,
	status TEXT NOT NULL,
	run_state TEXT NOT NULL DEFAULT '{}',
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS task_log (
	log_id INTEGER PRIMARY KEY AUTOINCREMENT,
	task_id INTEGER NOT NULL REFERENCES task(task_id),
	symbol TEXT NOT NULL,
	op TEXT NOT NULL,
	price REAL NOT NULL,
	qty INTEGER NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_task_log_task ON task_log(task_id, created_at);
`

// SQLiteStorage persists tasks and audit logs in a single SQLite file.
// database/sql serializes access; all methods are goroutine-safe.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLite opens (creating if needed) the database at path and ensures the
// schema exists. Use ":memory:" for tests.
func NewSQLite(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	// One connection serializes writers and keeps ":memory:" databases from
	// splitting across pooled connections.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &SQLiteStorage{db: db}, nil
}

// CreateTask inserts the task and returns its generated id.
func (s *SQLiteStorage) CreateTask(task *models.Task) (int64, error) {
	symbols, err := json.Marshal(task.Symbols)
	if err != nil {
		return 0, fmt.Errorf("encoding symbols: %w", err)
	}
	runState := task.RunState
	if len(runState) == 0 {
		runState = []byte("{}")
	}
	createdAt := task.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	res, err := s.db.Exec(`
		INSERT INTO task (account, market, symbols, strategy, status, run_state, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(task.Account), string(task.Market), string(symbols),
		task.Strategy, string(task.Status), string(runState), createdAt,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting task: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading task id: %w", err)
	}
	task.ID = id
	task.CreatedAt = createdAt
	return id, nil
}

func scanTask(row interface{ Scan(...any) error }) (*models.Task, error) {
	var (
		task     models.Task
		symbols  string
		runState string
	)
	err := row.Scan(&task.ID, (*string)(&task.Account), (*string)(&task.Market),
		&symbols, &task.Strategy, (*string)(&task.Status), &runState, &task.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(symbols), &task.Symbols); err != nil {
		return nil, fmt.Errorf("decoding symbols: %w", err)
	}
	task.RunState = json.RawMessage(runState)
	return &task, nil
}

const taskColumns = "task_id, account, market, symbols, strategy, status, run_state, created_at"

// GetTask fetches one task or ErrTaskNotFound.
func (s *SQLiteStorage) GetTask(id int64) (*models.Task, error) {
	row := s.db.QueryRow("SELECT "+taskColumns+" FROM task WHERE task_id = ?", id)
	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying task %d: %w", id, err)
	}
	return task, nil
}

// ListTasks returns every task, oldest first.
func (s *SQLiteStorage) ListTasks() ([]models.Task, error) {
	rows, err := s.db.Query("SELECT " + taskColumns + " FROM task ORDER BY task_id ASC")
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning task: %w", err)
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

// UpdateStatus persists a status change.
func (s *SQLiteStorage) UpdateStatus(id int64, status models.TaskStatus) error {
	res, err := s.db.Exec("UPDATE task SET status = ? WHERE task_id = ?", string(status), id)
	if err != nil {
		return fmt.Errorf("updating task %d status: %w", id, err)
	}
	return checkAffected(res, id)
}

// UpdateRunState persists the serialized indicator state for restart
// continuity.
func (s *SQLiteStorage) UpdateRunState(id int64, blob []byte) error {
	if len(blob) == 0 {
		blob = []byte("{}")
	}
	res, err := s.db.Exec("UPDATE task SET run_state = ? WHERE task_id = ?", string(blob), id)
	if err != nil {
		return fmt.Errorf("updating task %d run state: %w", id, err)
	}
	return checkAffected(res, id)
}

// DeleteTask removes the task and all of its audit log entries.
func (s *SQLiteStorage) DeleteTask(id int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning delete: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.Exec("DELETE FROM task_log WHERE task_id = ?", id); err != nil {
		return fmt.Errorf("deleting task %d logs: %w", id, err)
	}
	res, err := tx.Exec("DELETE FROM task WHERE task_id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting task %d: %w", id, err)
	}
	if err := checkAffected(res, id); err != nil {
		return err
	}
	return tx.Commit()
}

// AppendLog inserts one audit entry and returns its id.
func (s *SQLiteStorage) AppendLog(entry models.TradeLog) (int64, error) {
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	res, err := s.db.Exec(`
		INSERT INTO task_log (task_id, symbol, op, price, qty, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		entry.TaskID, entry.Symbol, string(entry.Op), entry.Price, entry.Quantity, createdAt,
	)
	if err != nil {
		return 0, fmt.Errorf("appending trade log: %w", err)
	}
	return res.LastInsertId()
}

// ListLogs returns the task's audit entries, oldest first.
func (s *SQLiteStorage) ListLogs(taskID int64) ([]models.TradeLog, error) {
	rows, err := s.db.Query(`
		SELECT log_id, task_id, symbol, op, price, qty, created_at
		FROM task_log WHERE task_id = ? ORDER BY created_at ASC, log_id ASC`, taskID)
	if err != nil {
		return nil, fmt.Errorf("listing logs for task %d: %w", taskID, err)
	}
	defer rows.Close()

	var logs []models.TradeLog
	for rows.Next() {
		var entry models.TradeLog
		if err := rows.Scan(&entry.ID, &entry.TaskID, &entry.Symbol,
			(*string)(&entry.Op), &entry.Price, &entry.Quantity, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning trade log: %w", err)
		}
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}

// Close releases the database handle.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func checkAffected(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("task %d: %w", id, ErrTaskNotFound)
	}
	return nil
}
