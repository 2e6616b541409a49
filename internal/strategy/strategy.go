// Package strategy turns indicator state into trade decisions. Strategies are
// pure deciders: they size intent in notional or share terms but never touch
// the gateway themselves.
package strategy

import (
	"fmt"
	"sort"

	"github.com/hollisw/quanttask/internal/indicator"
)

// Action is what a strategy wants done for a symbol this tick.
type Action int

const (
	// Hold takes no action.
	Hold Action = iota
	// Buy opens or adds to a position for a target notional amount.
	Buy
	// Sell reduces a position by an explicit share quantity.
	Sell
)

// String implements fmt.Stringer for log output.
func (a Action) String() string {
	switch a {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return "hold"
	}
}

// Decision is the outcome of one Decide call. Amount is set for Buy (target
// notional, sized into shares downstream); Quantity is set for Sell.
type Decision struct {
	Action   Action
	Amount   float64
	Quantity int64
}

// PositionSource answers how many shares of a symbol are available to sell.
// Task workers back this with the brokerage gateway.
type PositionSource interface {
	AvailablePosition(symbol string) (int64, error)
}

// Strategy produces a decision for a symbol from the current indicator state.
// Implementations are owned by a single task worker and need no locking.
type Strategy interface {
	Name() string
	Decide(symbol string) Decision
}

// Deps are the collaborators every strategy receives at construction.
type Deps struct {
	Store     *indicator.Store
	Positions PositionSource
}

// Params tunes strategy sizing. Zero values fall back to per-strategy
// defaults.
type Params struct {
	BuyNotional float64 // target notional per buy signal
	SellCap     int64   // max shares sold per sell signal
}

type factory func(deps Deps, params Params) Strategy

var registry = map[string]factory{
	"SimpleMA": newMACross,
}

// New builds the named strategy, or errors when the name is unknown.
func New(name string, deps Deps, params Params) (Strategy, error) {
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q", name)
	}
	return f(deps, params), nil
}

// Known reports whether a strategy name is registered.
func Known(name string) bool {
	_, ok := registry[name]
	return ok
}

// List returns the registered strategy names, sorted.
func List() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
