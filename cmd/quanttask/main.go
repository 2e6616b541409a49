package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/hollisw/quanttask/internal/api"
	"github.com/hollisw/quanttask/internal/broker"
	"github.com/hollisw/quanttask/internal/config"
	"github.com/hollisw/quanttask/internal/indicator"
	"github.com/hollisw/quanttask/internal/market"
	"github.com/hollisw/quanttask/internal/models"
	"github.com/hollisw/quanttask/internal/risk"
	"github.com/hollisw/quanttask/internal/scheduler"
	"github.com/hollisw/quanttask/internal/storage"
	"github.com/hollisw/quanttask/internal/strategy"
)

const (
	defaultDBPath       = "data/quanttask.db"
	defaultAPIPort      = 8080
	defaultPaperCash    = 100000.0
	shutdownGracePeriod = 15 * time.Second
)

func main() {
	var configPath string
	var resume bool
	flag.StringVar(&configPath, "config", "config.yaml", "Path to configuration file")
	flag.BoolVar(&resume, "resume", true, "Restart workers for tasks persisted as running")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if cfg.Environment.LogLevel != "" {
		level, err := logrus.ParseLevel(cfg.Environment.LogLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level %q: %v", cfg.Environment.LogLevel, err)
		}
		logger.SetLevel(level)
	}

	if err := run(cfg, logger, resume); err != nil {
		logger.Fatalf("Engine error: %v", err)
	}
	logger.Info("Engine stopped")
}

func run(cfg *config.Config, logger *logrus.Logger, resume bool) error {
	store, err := openStorage(cfg)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close storage")
		}
	}()

	clock := market.NewClock()
	clock.ActiveInterval = config.Duration(cfg.Scheduler.ActivePollInterval, clock.ActiveInterval)
	clock.IdleInterval = config.Duration(cfg.Scheduler.IdlePollInterval, clock.IdleInterval)

	gate := risk.NewGate(risk.Limits{
		MaxDailyTrades:   cfg.Risk.MaxDailyTrades,
		MaxTradeNotional: cfg.Risk.MaxTradeNotional,
		MaxPositionFrac:  cfg.Risk.MaxPositionFrac,
	}, logger)

	brokerages := map[models.AccountKind]broker.Brokerage{
		models.AccountPaper: paperBrokerage(cfg, logger),
	}

	sched := scheduler.New(scheduler.Config{
		ErrorThreshold:  cfg.Scheduler.ErrorThreshold,
		ErrorBackoff:    config.Duration(cfg.Scheduler.ErrorBackoff, 0),
		JoinTimeout:     config.Duration(cfg.Scheduler.JoinTimeout, 0),
		PersistInterval: config.Duration(cfg.Scheduler.PersistInterval, 0),
	}, scheduler.Deps{
		Store:      store,
		Clock:      clock,
		Risk:       gate,
		Brokerages: brokerages,
		Logger:     logger,
		Strategy: strategy.Params{
			BuyNotional: cfg.Strategy.BuyNotional,
			SellCap:     cfg.Strategy.SellCap,
		},
		Indicator: indicator.Config{
			ShortPeriod: cfg.Strategy.ShortPeriod,
			LongPeriod:  cfg.Strategy.LongPeriod,
			MAHistory:   cfg.Strategy.MAHistory,
		},
	})

	if resume {
		if err := sched.Resume(); err != nil {
			logger.WithError(err).Warn("Failed to resume running tasks")
		}
	}

	port := cfg.API.Port
	if port == 0 {
		port = defaultAPIPort
	}
	server := api.NewServer(api.Config{Port: port, AuthToken: cfg.API.AuthToken},
		sched, store, brokerages, gate, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		runDailyReset(ctx, gate, logger)
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutdown signal received, stopping engine...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("API server shutdown failed")
		}

		sched.Shutdown()
		return nil
	})

	return g.Wait()
}

func openStorage(cfg *config.Config) (storage.Interface, error) {
	path := cfg.Storage.Path
	if path == "" {
		path = defaultDBPath
	}
	return storage.NewSQLite(path)
}

// paperBrokerage assembles the simulated account: a static quote source
// behind the rate limiter and the paper gateway behind the circuit breaker,
// so paper trading exercises the same decorators a live gateway would.
func paperBrokerage(cfg *config.Config, logger *logrus.Logger) broker.Brokerage {
	cash := cfg.Broker.PaperCash
	if cash <= 0 {
		cash = defaultPaperCash
	}

	quotes := broker.NewStaticQuoteSource()
	gateway := broker.NewPaperGateway(cash, "USD")

	var quoteSource broker.QuoteSource = quotes
	if cfg.Broker.QuoteRate > 0 {
		burst := cfg.Broker.QuoteBurst
		if burst <= 0 {
			burst = 1
		}
		quoteSource = broker.NewRateLimitedQuoteSource(quotes, cfg.Broker.QuoteRate, burst)
	}

	settings := broker.DefaultCircuitBreakerSettings
	if cfg.Broker.BreakerMaxReq > 0 {
		settings.MaxRequests = cfg.Broker.BreakerMaxReq
	}

	return broker.Brokerage{
		Quotes:  quoteSource,
		Gateway: broker.NewCircuitBreakerGateway(gateway, settings, logger),
	}
}

// runDailyReset zeroes the risk gate's daily trade counter at each US market
// midnight so the cap spans one trading day, not process lifetime.
func runDailyReset(ctx context.Context, gate *risk.Gate, logger *logrus.Logger) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.FixedZone("ET", -5*60*60)
	}

	for {
		now := time.Now().In(loc)
		next := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc).Add(24 * time.Hour)

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			gate.ResetDaily()
			logger.Info("Daily trade counter reset")
		}
	}
}
