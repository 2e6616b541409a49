// Package config provides configuration management for the task engine.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// Config represents the complete application configuration.
type Config struct {
	Environment EnvironmentConfig `yaml:"environment"`
	Broker      BrokerConfig      `yaml:"broker"`
	Strategy    StrategyConfig    `yaml:"strategy"`
	Risk        RiskConfig        `yaml:"risk"`
	Scheduler   SchedulerConfig   `yaml:"scheduler"`
	Storage     StorageConfig     `yaml:"storage"`
	API         APIConfig         `yaml:"api"`
}

// EnvironmentConfig defines the environment settings.
type EnvironmentConfig struct {
	LogLevel string `yaml:"log_level"` // debug | info | warn | error
}

// BrokerConfig defines brokerage settings. Only the paper brokerage is
// configured here; a live gateway is wired in code when an SDK client is
// available.
type BrokerConfig struct {
	PaperCash     float64 `yaml:"paper_cash"`      // starting cash of the simulated account
	QuoteRate     float64 `yaml:"quote_rate"`      // quote requests per second, 0 disables limiting
	QuoteBurst    int     `yaml:"quote_burst"`     // rate limiter burst size
	BreakerMaxReq uint32  `yaml:"breaker_max_req"` // half-open probe count for the gateway breaker
}

// StrategyConfig defines signal strategy parameters.
type StrategyConfig struct {
	ShortPeriod int     `yaml:"short_period"` // samples in the short moving average
	LongPeriod  int     `yaml:"long_period"`  // samples in the long moving average
	MAHistory   int     `yaml:"ma_history"`   // retained MA samples per symbol
	BuyNotional float64 `yaml:"buy_notional"` // target notional per buy signal
	SellCap     int64   `yaml:"sell_cap"`     // max shares sold per sell signal
}

// RiskConfig defines risk management parameters.
type RiskConfig struct {
	MaxDailyTrades   int     `yaml:"max_daily_trades"`
	MaxTradeNotional float64 `yaml:"max_trade_notional"`
	MaxPositionFrac  float64 `yaml:"max_position_frac"`
}

// SchedulerConfig defines worker cadence and failure handling.
type SchedulerConfig struct {
	ActivePollInterval string `yaml:"active_poll_interval"` // e.g. "60s"
	IdlePollInterval   string `yaml:"idle_poll_interval"`   // e.g. "600s"
	ErrorThreshold     int    `yaml:"error_threshold"`
	ErrorBackoff       string `yaml:"error_backoff"`
	JoinTimeout        string `yaml:"join_timeout"`
	PersistInterval    string `yaml:"persist_interval"`
}

// StorageConfig defines where the task database lives.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// APIConfig defines the HTTP API settings.
type APIConfig struct {
	Port      int    `yaml:"port"`
	AuthToken string `yaml:"auth_token"` // empty disables auth
}

// Load reads and parses the configuration file from the specified path.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	data, err := os.ReadFile(configPath) // #nosec G304 -- configPath is a user-provided config file path
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var config Config
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(&config); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// Validate checks that all configuration values are valid and consistent.
// Zero values mean "use the built-in default" and pass validation.
func (c *Config) Validate() error {
	// Environment validation
	switch c.Environment.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("environment.log_level must be one of debug, info, warn, error")
	}

	// Broker validation
	if c.Broker.PaperCash < 0 {
		return fmt.Errorf("broker.paper_cash must be >= 0")
	}
	if c.Broker.QuoteRate < 0 {
		return fmt.Errorf("broker.quote_rate must be >= 0")
	}
	if c.Broker.QuoteBurst < 0 {
		return fmt.Errorf("broker.quote_burst must be >= 0")
	}

	// Strategy validation
	if c.Strategy.ShortPeriod < 0 || c.Strategy.LongPeriod < 0 {
		return fmt.Errorf("strategy periods must be >= 0")
	}
	if c.Strategy.ShortPeriod > 0 && c.Strategy.LongPeriod > 0 &&
		c.Strategy.ShortPeriod >= c.Strategy.LongPeriod {
		return fmt.Errorf("strategy.short_period (%d) must be < strategy.long_period (%d)",
			c.Strategy.ShortPeriod, c.Strategy.LongPeriod)
	}
	if c.Strategy.BuyNotional < 0 {
		return fmt.Errorf("strategy.buy_notional must be >= 0")
	}
	if c.Strategy.SellCap < 0 {
		return fmt.Errorf("strategy.sell_cap must be >= 0")
	}

	// Risk validation
	if c.Risk.MaxDailyTrades < 0 {
		return fmt.Errorf("risk.max_daily_trades must be >= 0")
	}
	if c.Risk.MaxTradeNotional < 0 {
		return fmt.Errorf("risk.max_trade_notional must be >= 0")
	}
	if c.Risk.MaxPositionFrac < 0 || c.Risk.MaxPositionFrac > 1.0 {
		return fmt.Errorf("risk.max_position_frac must be between 0 and 1.0")
	}

	// Scheduler validation
	for _, d := range []struct {
		name  string
		value string
	}{
		{"scheduler.active_poll_interval", c.Scheduler.ActivePollInterval},
		{"scheduler.idle_poll_interval", c.Scheduler.IdlePollInterval},
		{"scheduler.error_backoff", c.Scheduler.ErrorBackoff},
		{"scheduler.join_timeout", c.Scheduler.JoinTimeout},
		{"scheduler.persist_interval", c.Scheduler.PersistInterval},
	} {
		if d.value == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.value)
		if err != nil {
			return fmt.Errorf("%s invalid: %w", d.name, err)
		}
		if parsed <= 0 {
			return fmt.Errorf("%s must be > 0", d.name)
		}
	}
	if c.Scheduler.ErrorThreshold < 0 {
		return fmt.Errorf("scheduler.error_threshold must be >= 0")
	}

	// API validation
	if c.API.Port < 0 || c.API.Port > 65535 {
		return fmt.Errorf("api.port must be between 0 and 65535")
	}

	return nil
}

// Duration parses a duration field, returning fallback when the field is
// empty. Validate has already rejected malformed values.
func Duration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
