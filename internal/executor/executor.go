// Package executor converts admitted signals into gateway submissions and
// audit log entries.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/hollisw/quanttask/internal/broker"
	"github.com/hollisw/quanttask/internal/models"
	"github.com/hollisw/quanttask/internal/storage"
)

// DefaultCallTimeout bounds a single gateway submission.
const DefaultCallTimeout = 10 * time.Second

// Executor submits sized orders through the trade gateway and records the
// audit trail. A failed submission is returned without retry: the next poll
// cycle is the retry boundary.
type Executor struct {
	gateway     broker.Gateway
	store       storage.Interface
	logger      *logrus.Logger
	callTimeout time.Duration
}

// New creates an executor over the given gateway and store.
func New(gateway broker.Gateway, store storage.Interface, logger *logrus.Logger) *Executor {
	if logger == nil {
		logger = logrus.New()
	}
	return &Executor{
		gateway:     gateway,
		store:       store,
		logger:      logger,
		callTimeout: DefaultCallTimeout,
	}
}

// Execute submits a day limit order at the signal price. On success it
// appends a TradeLog entry for the task and returns the broker order id.
func (e *Executor) Execute(ctx context.Context, taskID int64, sig models.Signal) (string, error) {
	if sig.Quantity <= 0 {
		return "", fmt.Errorf("signal quantity must be positive, got %d", sig.Quantity)
	}

	price := sig.Price
	order := models.Order{
		Symbol:      sig.Symbol,
		Side:        sig.Side,
		Quantity:    sig.Quantity,
		LimitPrice:  &price,
		Type:        models.OrderTypeLimit,
		TimeInForce: "day",
		Tag:         uuid.New().String(),
	}

	callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()

	orderID, err := e.gateway.SubmitOrder(callCtx, order)
	if err != nil {
		return "", fmt.Errorf("submitting %s order for %s: %w", sig.Side, sig.Symbol, err)
	}

	e.logger.WithFields(logrus.Fields{
		"task_id":  taskID,
		"symbol":   sig.Symbol,
		"side":     sig.Side,
		"quantity": sig.Quantity,
		"price":    sig.Price,
		"order_id": orderID,
	}).Info("order submitted")

	entry := models.TradeLog{
		TaskID:    taskID,
		Symbol:    sig.Symbol,
		Op:        sig.Side,
		Price:     sig.Price,
		Quantity:  sig.Quantity,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := e.store.AppendLog(entry); err != nil {
		// The order is live; losing the audit row must not look like a
		// failed trade. Surface it loudly and move on.
		e.logger.WithError(err).WithField("order_id", orderID).
			Error("order submitted but audit log append failed")
	}

	return orderID, nil
}
