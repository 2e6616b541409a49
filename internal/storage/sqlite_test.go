package storage

import (
	"errors"
	"testing"
	"time"

	"github.com/hollisw/quanttask/internal/models"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleTask() *models.Task {
	return &models.Task{
		Account:  models.AccountPaper,
		Market:   models.MarketUS,
		Symbols:  []string{"AAPL.US", "TSLA.US"},
		Strategy: "SimpleMA",
		Status:   models.StatusCreated,
	}
}

func TestCreateAndGetTask(t *testing.T) {
	store := newTestStorage(t)

	task := sampleTask()
	id, err := store.CreateTask(task)
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	if id == 0 {
		t.Fatal("CreateTask returned zero id")
	}
	if task.ID != id {
		t.Errorf("task.ID = %d, want %d", task.ID, id)
	}
	if task.CreatedAt.IsZero() {
		t.Error("CreateTask did not set CreatedAt")
	}

	got, err := store.GetTask(id)
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if got.Account != models.AccountPaper || got.Market != models.MarketUS {
		t.Errorf("round-tripped task = %+v", got)
	}
	if len(got.Symbols) != 2 || got.Symbols[0] != "AAPL.US" || got.Symbols[1] != "TSLA.US" {
		t.Errorf("Symbols = %v", got.Symbols)
	}
	if got.Status != models.StatusCreated {
		t.Errorf("Status = %s, want %s", got.Status, models.StatusCreated)
	}
	if string(got.RunState) != "{}" {
		t.Errorf("RunState = %q, want default {}", got.RunState)
	}
}

func TestGetTaskNotFound(t *testing.T) {
	store := newTestStorage(t)
	if _, err := store.GetTask(42); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("err = %v, want ErrTaskNotFound", err)
	}
}

func TestListTasksOrdered(t *testing.T) {
	store := newTestStorage(t)

	for _, symbol := range []string{"AAPL.US", "TSLA.US", "700.HK"} {
		task := sampleTask()
		task.Symbols = []string{symbol}
		if _, err := store.CreateTask(task); err != nil {
			t.Fatalf("CreateTask failed: %v", err)
		}
	}

	tasks, err := store.ListTasks()
	if err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}
	if len(tasks) != 3 {
		t.Fatalf("listed %d tasks, want 3", len(tasks))
	}
	for i, task := range tasks {
		if task.ID != int64(i+1) {
			t.Errorf("task %d has id %d, want ascending ids", i, task.ID)
		}
	}
}

func TestUpdateStatus(t *testing.T) {
	store := newTestStorage(t)
	id, _ := store.CreateTask(sampleTask())

	if err := store.UpdateStatus(id, models.StatusRunning); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}
	got, _ := store.GetTask(id)
	if got.Status != models.StatusRunning {
		t.Errorf("Status = %s, want %s", got.Status, models.StatusRunning)
	}

	if err := store.UpdateStatus(99, models.StatusRunning); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("err = %v, want ErrTaskNotFound", err)
	}
}

func TestUpdateRunState(t *testing.T) {
	store := newTestStorage(t)
	id, _ := store.CreateTask(sampleTask())

	blob := []byte(`{"AAPL.US":{"price_history":[10,11]}}`)
	if err := store.UpdateRunState(id, blob); err != nil {
		t.Fatalf("UpdateRunState failed: %v", err)
	}
	got, _ := store.GetTask(id)
	if string(got.RunState) != string(blob) {
		t.Errorf("RunState = %s, want %s", got.RunState, blob)
	}

	if err := store.UpdateRunState(99, blob); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("err = %v, want ErrTaskNotFound", err)
	}
}

func TestAppendAndListLogs(t *testing.T) {
	store := newTestStorage(t)
	id, _ := store.CreateTask(sampleTask())

	base := time.Date(2026, time.January, 15, 14, 30, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		entry := models.TradeLog{
			TaskID:    id,
			Symbol:    "AAPL.US",
			Op:        models.SideBuy,
			Price:     10 + float64(i),
			Quantity:  int64(i + 1),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		logID, err := store.AppendLog(entry)
		if err != nil {
			t.Fatalf("AppendLog failed: %v", err)
		}
		if logID == 0 {
			t.Fatal("AppendLog returned zero id")
		}
	}

	logs, err := store.ListLogs(id)
	if err != nil {
		t.Fatalf("ListLogs failed: %v", err)
	}
	if len(logs) != 3 {
		t.Fatalf("listed %d logs, want 3", len(logs))
	}
	for i, entry := range logs {
		if entry.Price != 10+float64(i) {
			t.Errorf("log %d out of order: price %v", i, entry.Price)
		}
		if entry.TaskID != id || entry.Op != models.SideBuy {
			t.Errorf("log %d = %+v", i, entry)
		}
	}

	other, err := store.ListLogs(id + 1)
	if err != nil {
		t.Fatalf("ListLogs(other) failed: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("other task has %d logs, want 0", len(other))
	}
}

func TestDeleteTaskCascades(t *testing.T) {
	store := newTestStorage(t)
	id, _ := store.CreateTask(sampleTask())
	_, _ = store.AppendLog(models.TradeLog{TaskID: id, Symbol: "AAPL.US", Op: models.SideSell, Price: 10, Quantity: 1})

	if err := store.DeleteTask(id); err != nil {
		t.Fatalf("DeleteTask failed: %v", err)
	}
	if _, err := store.GetTask(id); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("deleted task still readable: %v", err)
	}
	logs, _ := store.ListLogs(id)
	if len(logs) != 0 {
		t.Errorf("deleted task retains %d logs", len(logs))
	}

	if err := store.DeleteTask(id); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("second delete err = %v, want ErrTaskNotFound", err)
	}
}
