package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hollisw/quanttask/internal/broker"
	"github.com/hollisw/quanttask/internal/executor"
	"github.com/hollisw/quanttask/internal/indicator"
	"github.com/hollisw/quanttask/internal/market"
	"github.com/hollisw/quanttask/internal/models"
	"github.com/hollisw/quanttask/internal/sizing"
	"github.com/hollisw/quanttask/internal/strategy"
)

// runEnv is the per-worker pipeline state. It is owned by a single goroutine;
// only the scheduler's shared deps (store, risk gate) need their own locking.
type runEnv struct {
	task      *models.Task
	sessions  []market.Session
	indic     *indicator.Store
	strat     strategy.Strategy
	exec      *executor.Executor
	brokerage broker.Brokerage
	log       *logrus.Entry
}

// run is the worker goroutine body. It polls until cancelled or until the
// consecutive-error threshold moves the task into ERROR. The done channel is
// closed before reap so lifecycle calls blocked on join never deadlock
// against the registry mutex.
func (s *Scheduler) run(ctx context.Context, w *worker, env *runEnv) {
	defer s.reap(env.task.ID, w)
	defer close(w.done)
	defer s.persistRunState(env)

	errCount := 0
	lastPersist := time.Now()

	for {
		anyTradable, err := s.runIteration(ctx, env)
		if ctx.Err() != nil {
			return
		}

		if err != nil {
			errCount++
			env.log.WithError(err).Errorf("task iteration failed (%d/%d)",
				errCount, s.cfg.ErrorThreshold)
			if errCount >= s.cfg.ErrorThreshold {
				env.log.Error("consecutive error threshold reached, task entering error state")
				if uerr := s.deps.Store.UpdateStatus(env.task.ID, models.StatusError); uerr != nil {
					env.log.WithError(uerr).Error("failed to persist error state")
				}
				return
			}
			if !sleepCtx(ctx, s.cfg.ErrorBackoff) {
				return
			}
			continue
		}
		errCount = 0

		if time.Since(lastPersist) >= s.cfg.PersistInterval {
			s.persistRunState(env)
			lastPersist = time.Now()
		}

		if !sleepCtx(ctx, s.deps.Clock.PollInterval(anyTradable)) {
			return
		}
	}
}

// runIteration runs one poll cycle over the task's symbols. Symbols outside
// their enabled sessions are skipped; the first collaborator failure aborts
// the cycle so the error counter and backoff see it. Panics out of strategy
// or indicator code are converted to iteration errors.
func (s *Scheduler) runIteration(ctx context.Context, env *runEnv) (anyTradable bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in task pipeline: %v", r)
		}
	}()

	now := time.Now()
	for _, symbol := range env.task.Symbols {
		if ctx.Err() != nil {
			return anyTradable, nil
		}
		if !s.deps.Clock.IsTradable(symbol, now, env.sessions) {
			continue
		}
		anyTradable = true
		if err := s.pollSymbol(ctx, env, symbol, now); err != nil {
			return anyTradable, err
		}
	}
	return anyTradable, nil
}

// pollSymbol runs the pipeline for one symbol: quote, indicator update,
// strategy decision, sizing, risk admission, execution. A missing quote or a
// zero-sized or rejected signal ends the pipeline quietly; collaborator
// failures are returned.
func (s *Scheduler) pollSymbol(ctx context.Context, env *runEnv, symbol string, now time.Time) error {
	quotes, err := env.brokerage.Quotes.Quote(ctx, []string{symbol})
	if err != nil {
		return fmt.Errorf("quoting %s: %w", symbol, err)
	}
	q, ok := quotes[symbol]
	if !ok {
		env.log.WithField("symbol", symbol).Warn("no quote returned")
		return nil
	}

	session, _ := s.deps.Clock.SessionFor(symbol, now)
	price := q.ForSession(session)
	if price == nil || *price <= 0 {
		env.log.WithFields(logrus.Fields{"symbol": symbol, "session": session}).
			Debug("no usable price for session")
		return nil
	}

	env.indic.Update(symbol, *price)
	decision := env.strat.Decide(symbol)

	var sig models.Signal
	switch decision.Action {
	case strategy.Buy:
		info, err := env.brokerage.Quotes.StaticInfo(ctx, symbol)
		if err != nil {
			return fmt.Errorf("static info for %s: %w", symbol, err)
		}
		qty := sizing.Size(decision.Amount, *price, info.LotSize)
		if qty == 0 {
			env.log.WithFields(logrus.Fields{
				"symbol": symbol,
				"amount": decision.Amount,
				"price":  *price,
				"lot":    info.LotSize,
			}).Info("buy signal sized to zero, skipping")
			return nil
		}
		sig = models.Signal{Symbol: symbol, Side: models.SideBuy, Quantity: qty, Price: *price}
	case strategy.Sell:
		sig = models.Signal{Symbol: symbol, Side: models.SideSell, Quantity: decision.Quantity, Price: *price}
	default:
		return nil
	}

	bal, err := env.brokerage.Gateway.AccountBalance(ctx)
	if err != nil {
		return fmt.Errorf("account balance: %w", err)
	}
	if !s.deps.Risk.Admit(sig, bal.NetAssets) {
		return nil
	}

	if _, err := env.exec.Execute(ctx, env.task.ID, sig); err != nil {
		return fmt.Errorf("executing %s %s: %w", sig.Side, symbol, err)
	}
	return nil
}

// persistRunState snapshots the indicator state into the task row so a
// restart resumes with warm windows instead of a cold LongPeriod wait.
func (s *Scheduler) persistRunState(env *runEnv) {
	blob, err := env.indic.Snapshot()
	if err != nil {
		env.log.WithError(err).Error("failed to snapshot run state")
		return
	}
	if err := s.deps.Store.UpdateRunState(env.task.ID, blob); err != nil {
		env.log.WithError(err).Error("failed to persist run state")
	}
}

// sleepCtx sleeps for d or until the context is cancelled, reporting whether
// the full duration elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
