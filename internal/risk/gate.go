// Package risk provides admission control over strategy signals before they
// reach the trade gateway.
package risk

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/hollisw/quanttask/internal/models"
)

// Limits configures the gate. Zero values fall back to the defaults.
type Limits struct {
	MaxDailyTrades   int     // admitted trades per day across all tasks
	MaxTradeNotional float64 // per-trade notional cap
	MaxPositionFrac  float64 // BUY notional as a fraction of account value
}

// DefaultLimits are the stock risk parameters.
var DefaultLimits = Limits{
	MaxDailyTrades:   50,
	MaxTradeNotional: 100000,
	MaxPositionFrac:  0.2,
}

// Gate admits or rejects signals against the configured limits. It is shared
// by all task workers, so the daily counter is mutex-protected. The counter
// only resets via ResetDaily; scheduling that reset is the caller's job.
type Gate struct {
	mu     sync.Mutex
	limits Limits
	daily  int
	logger *logrus.Logger
}

// NewGate builds a gate with the given limits.
func NewGate(limits Limits, logger *logrus.Logger) *Gate {
	if limits.MaxDailyTrades <= 0 {
		limits.MaxDailyTrades = DefaultLimits.MaxDailyTrades
	}
	if limits.MaxTradeNotional <= 0 {
		limits.MaxTradeNotional = DefaultLimits.MaxTradeNotional
	}
	if limits.MaxPositionFrac <= 0 {
		limits.MaxPositionFrac = DefaultLimits.MaxPositionFrac
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Gate{limits: limits, logger: logger}
}

// Admit checks the signal against the daily trade count, the per-trade
// notional cap and, for buys, the position-concentration cap. A rejection
// logs a warning and has no side effect; an admission increments the daily
// counter.
func (g *Gate) Admit(sig models.Signal, accountValue float64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	log := g.logger.WithFields(logrus.Fields{
		"symbol":   sig.Symbol,
		"side":     sig.Side,
		"quantity": sig.Quantity,
	})

	if g.daily >= g.limits.MaxDailyTrades {
		log.Warnf("risk: daily trade limit reached (%d)", g.limits.MaxDailyTrades)
		return false
	}

	notional := sig.Notional()
	if notional > g.limits.MaxTradeNotional {
		log.Warnf("risk: trade notional %.2f exceeds cap %.2f", notional, g.limits.MaxTradeNotional)
		return false
	}

	if sig.Side == models.SideBuy {
		if accountValue <= 0 {
			log.Warn("risk: account value unavailable, rejecting buy")
			return false
		}
		if frac := notional / accountValue; frac > g.limits.MaxPositionFrac {
			log.Warnf("risk: position fraction %.2f%% exceeds cap %.2f%%",
				frac*100, g.limits.MaxPositionFrac*100)
			return false
		}
	}

	g.daily++
	return true
}

// DailyTrades returns the number of trades admitted since the last reset.
func (g *Gate) DailyTrades() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.daily
}

// ResetDaily zeroes the daily trade counter. Called by an external
// scheduling collaborator at each market day boundary.
func (g *Gate) ResetDaily() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.daily = 0
}
