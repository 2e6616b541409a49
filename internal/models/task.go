// Package models provides data structures and state management for trading tasks.
package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// AccountKind selects which brokerage account a task trades against.
type AccountKind string

const (
	// AccountLive trades with real money.
	AccountLive AccountKind = "live"
	// AccountPaper trades against the simulated account.
	AccountPaper AccountKind = "paper"
)

// Valid reports whether the account kind is one of the known values.
func (k AccountKind) Valid() bool {
	return k == AccountLive || k == AccountPaper
}

// Market identifies the exchange a task's symbols belong to.
type Market string

const (
	// MarketUS is the US equity market (Eastern time sessions).
	MarketUS Market = "US"
	// MarketHK is the Hong Kong equity market.
	MarketHK Market = "HK"
)

// Valid reports whether the market is one of the known values.
func (m Market) Valid() bool {
	return m == MarketUS || m == MarketHK
}

// Side is the direction of an order or trade.
type Side string

const (
	// SideBuy opens or adds to a position.
	SideBuy Side = "buy"
	// SideSell reduces or closes a position.
	SideSell Side = "sell"
)

// Task is a strategy-execution task: a set of symbols polled on a cadence and
// fed through a signal strategy. Account, market and strategy are immutable
// after creation; only status and run-state change over a task's life.
type Task struct {
	ID        int64           `json:"task_id"`
	Account   AccountKind     `json:"account"`
	Market    Market          `json:"market"`
	Symbols   []string        `json:"symbols"`
	Strategy  string          `json:"strategy"`
	Status    TaskStatus      `json:"status"`
	RunState  json.RawMessage `json:"run_state,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Signal is a sized, priced trade intent produced by the strategy pipeline,
// ready for risk admission and execution.
type Signal struct {
	Symbol   string
	Side     Side
	Quantity int64
	Price    float64
}

// Notional returns the monetary value of the signal (price * quantity).
func (s Signal) Notional() float64 {
	return s.Price * float64(s.Quantity)
}

// OrderType is the brokerage order type.
type OrderType string

const (
	// OrderTypeLimit submits at a fixed limit price.
	OrderTypeLimit OrderType = "LO"
	// OrderTypeMarket submits at the prevailing market price.
	OrderTypeMarket OrderType = "MO"
)

// Order is the ephemeral submission payload handed to the trade gateway.
// It is not persisted by the engine; the audit trail records the fill terms.
type Order struct {
	Symbol      string
	Side        Side
	Quantity    int64
	LimitPrice  *float64 // nil for market orders
	Type        OrderType
	TimeInForce string
	Tag         string // client-side correlation id
}

// TradeLog is one append-only audit record, written after a successful
// submission. Entries are never mutated; they are deleted only in bulk with
// the owning task.
type TradeLog struct {
	ID        int64     `json:"log_id"`
	TaskID    int64     `json:"task_id"`
	Symbol    string    `json:"symbol"`
	Op        Side      `json:"operation"`
	Price     float64   `json:"price"`
	Quantity  int64     `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
}

// ValidateSpec checks the immutable fields of a task being created.
func (t *Task) ValidateSpec() error {
	if !t.Account.Valid() {
		return fmt.Errorf("invalid account kind %q", t.Account)
	}
	if !t.Market.Valid() {
		return fmt.Errorf("invalid market %q", t.Market)
	}
	if len(t.Symbols) == 0 {
		return fmt.Errorf("task requires at least one symbol")
	}
	if t.Strategy == "" {
		return fmt.Errorf("task requires a strategy name")
	}
	return nil
}
