package broker

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/hollisw/quanttask/internal/models"
)

// CircuitBreakerGateway wraps a Gateway so a flapping brokerage API trips
// open instead of stalling every task worker behind it.
type CircuitBreakerGateway struct {
	gateway Gateway
	breaker *gobreaker.CircuitBreaker
}

// CircuitBreakerSettings configures trip behavior.
type CircuitBreakerSettings struct {
	MaxRequests  uint32        // max requests allowed when half-open
	Interval     time.Duration // counts reset interval
	Timeout      time.Duration // open-state duration
	MinRequests  uint32        // min requests before tripping
	FailureRatio float64       // failure ratio threshold
}

// DefaultCircuitBreakerSettings are sensible defaults for a coarse poller.
var DefaultCircuitBreakerSettings = CircuitBreakerSettings{
	MaxRequests:  3,
	Interval:     60 * time.Second,
	Timeout:      30 * time.Second,
	MinRequests:  5,
	FailureRatio: 0.6,
}

// execBreaker is a generic helper for the breaker wrapper methods.
func execBreaker[T any](breaker *gobreaker.CircuitBreaker, fn func() (T, error)) (T, error) {
	var zero T
	res, err := breaker.Execute(func() (interface{}, error) { return fn() })
	if err != nil {
		return zero, err
	}
	v, ok := res.(T)
	if !ok {
		return zero, errors.New("circuit breaker: type assertion failed")
	}
	return v, nil
}

// NewCircuitBreakerGateway wraps gateway with the given settings.
func NewCircuitBreakerGateway(gateway Gateway, settings CircuitBreakerSettings, logger *logrus.Logger) *CircuitBreakerGateway {
	gbSettings := gobreaker.Settings{
		Name:        "TradeGateway",
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests == 0 || counts.Requests < settings.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= settings.FailureRatio
		},
	}
	if logger != nil {
		gbSettings.OnStateChange = func(name string, from, to gobreaker.State) {
			logger.Warnf("circuit breaker %s changed from %s to %s", name, from, to)
		}
	}
	return &CircuitBreakerGateway{
		gateway: gateway,
		breaker: gobreaker.NewCircuitBreaker(gbSettings),
	}
}

// SubmitOrder wraps the underlying gateway call with the circuit breaker.
func (c *CircuitBreakerGateway) SubmitOrder(ctx context.Context, order models.Order) (string, error) {
	return execBreaker(c.breaker, func() (string, error) { return c.gateway.SubmitOrder(ctx, order) })
}

// Positions wraps the underlying gateway call with the circuit breaker.
func (c *CircuitBreakerGateway) Positions(ctx context.Context, symbols []string) ([]PositionItem, error) {
	return execBreaker(c.breaker, func() ([]PositionItem, error) { return c.gateway.Positions(ctx, symbols) })
}

// AccountBalance wraps the underlying gateway call with the circuit breaker.
func (c *CircuitBreakerGateway) AccountBalance(ctx context.Context) (Balance, error) {
	return execBreaker(c.breaker, func() (Balance, error) { return c.gateway.AccountBalance(ctx) })
}

// Ensure CircuitBreakerGateway implements Gateway at compile time.
var _ Gateway = (*CircuitBreakerGateway)(nil)
