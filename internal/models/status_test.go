package models

import "testing"

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from TaskStatus
		to   TaskStatus
		want bool
	}{
		{"created to running", StatusCreated, StatusRunning, true},
		{"paused to running", StatusPaused, StatusRunning, true},
		{"running to paused", StatusRunning, StatusPaused, true},
		{"running to stopped", StatusRunning, StatusStopped, true},
		{"paused to stopped", StatusPaused, StatusStopped, true},
		{"created to stopped", StatusCreated, StatusStopped, true},
		{"running to error", StatusRunning, StatusError, true},

		{"created to paused", StatusCreated, StatusPaused, false},
		{"stopped to running", StatusStopped, StatusRunning, false},
		{"error to running", StatusError, StatusRunning, false},
		{"stopped to stopped", StatusStopped, StatusStopped, false},
		{"paused to error", StatusPaused, StatusError, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanTransition(tc.from, tc.to); got != tc.want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
			}
		})
	}
}

func TestTerminal(t *testing.T) {
	for _, status := range []TaskStatus{StatusStopped, StatusError} {
		if !status.Terminal() {
			t.Errorf("%s should be terminal", status)
		}
	}
	for _, status := range []TaskStatus{StatusCreated, StatusRunning, StatusPaused} {
		if status.Terminal() {
			t.Errorf("%s should not be terminal", status)
		}
	}
}

func TestTaskTransition(t *testing.T) {
	task := &Task{Status: StatusCreated}

	if err := task.Transition(StatusRunning); err != nil {
		t.Fatalf("created -> running failed: %v", err)
	}
	if task.Status != StatusRunning {
		t.Errorf("status = %s, want %s", task.Status, StatusRunning)
	}

	if err := task.Transition(StatusCreated); err == nil {
		t.Error("expected error transitioning running -> created")
	}
	if task.Status != StatusRunning {
		t.Errorf("failed transition mutated status to %s", task.Status)
	}
}

func TestValidateSpec(t *testing.T) {
	valid := Task{
		Account:  AccountPaper,
		Market:   MarketUS,
		Symbols:  []string{"AAPL.US"},
		Strategy: "SimpleMA",
	}
	if err := valid.ValidateSpec(); err != nil {
		t.Fatalf("valid task rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Task)
	}{
		{"bad account", func(task *Task) { task.Account = "margin" }},
		{"bad market", func(task *Task) { task.Market = "JP" }},
		{"no symbols", func(task *Task) { task.Symbols = nil }},
		{"no strategy", func(task *Task) { task.Strategy = "" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			task := valid
			tc.mutate(&task)
			if err := task.ValidateSpec(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestSignalNotional(t *testing.T) {
	sig := Signal{Symbol: "AAPL.US", Side: SideBuy, Quantity: 90, Price: 11.0}
	if got := sig.Notional(); got != 990.0 {
		t.Errorf("Notional() = %v, want 990", got)
	}
}
