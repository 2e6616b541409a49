// Package indicator keeps per-symbol rolling price history and moving-average
// history for one task. A Store is owned by a single task worker and is never
// shared across goroutines, so it does no locking.
package indicator

import (
	"encoding/json"
	"fmt"
)

// Config bounds the rolling windows.
type Config struct {
	ShortPeriod int // samples in the short moving average
	LongPeriod  int // samples in the long moving average
	MAHistory   int // retained MA samples per symbol
}

// DefaultConfig mirrors the stock SimpleMA parameters.
var DefaultConfig = Config{
	ShortPeriod: 5,
	LongPeriod:  20,
	MAHistory:   10,
}

func (c Config) normalized() Config {
	if c.ShortPeriod <= 0 {
		c.ShortPeriod = DefaultConfig.ShortPeriod
	}
	if c.LongPeriod <= c.ShortPeriod {
		c.LongPeriod = DefaultConfig.LongPeriod
	}
	if c.MAHistory <= 0 {
		c.MAHistory = DefaultConfig.MAHistory
	}
	return c
}

// record is the per-symbol rolling state. Prices are capped at twice the long
// period; the MA histories at MAHistory samples.
type record struct {
	Prices  []float64 `json:"price_history"`
	ShortMA []float64 `json:"short_ma_history"`
	LongMA  []float64 `json:"long_ma_history"`
}

// Store holds indicator state for every symbol of one task.
type Store struct {
	cfg     Config
	records map[string]*record
}

// MAStats is the crossover input: the current short/long moving averages and
// the values they held one update ago. Prev* are computed over the price
// window excluding the most recent sample, so a crossover always compares
// against the state as it stood before the latest tick.
type MAStats struct {
	Short     float64
	Long      float64
	PrevShort float64
	PrevLong  float64
}

// New creates an empty store.
func New(cfg Config) *Store {
	return &Store{cfg: cfg.normalized(), records: make(map[string]*record)}
}

// Config returns the window configuration the store was built with.
func (s *Store) Config() Config { return s.cfg }

// Update appends a closing price for the symbol, evicting the oldest sample
// beyond capacity, and extends the MA histories once enough samples exist.
func (s *Store) Update(symbol string, price float64) {
	rec := s.records[symbol]
	if rec == nil {
		rec = &record{}
		s.records[symbol] = rec
	}

	rec.Prices = append(rec.Prices, price)
	if maxPrices := s.cfg.LongPeriod * 2; len(rec.Prices) > maxPrices {
		rec.Prices = rec.Prices[len(rec.Prices)-maxPrices:]
	}

	if short, ok := mean(rec.Prices, s.cfg.ShortPeriod); ok {
		rec.ShortMA = appendBounded(rec.ShortMA, short, s.cfg.MAHistory)
	}
	if long, ok := mean(rec.Prices, s.cfg.LongPeriod); ok {
		rec.LongMA = appendBounded(rec.LongMA, long, s.cfg.MAHistory)
	}
}

// SampleCount returns how many prices are currently held for the symbol.
func (s *Store) SampleCount(symbol string) int {
	if rec := s.records[symbol]; rec != nil {
		return len(rec.Prices)
	}
	return 0
}

// MAStats returns the crossover inputs for the symbol. It reports false until
// at least LongPeriod+1 samples exist, the minimum needed for both the current
// and the previous window to be fully defined.
func (s *Store) MAStats(symbol string) (MAStats, bool) {
	rec := s.records[symbol]
	if rec == nil || len(rec.Prices) < s.cfg.LongPeriod+1 {
		return MAStats{}, false
	}

	prev := rec.Prices[:len(rec.Prices)-1]
	short, _ := mean(rec.Prices, s.cfg.ShortPeriod)
	long, _ := mean(rec.Prices, s.cfg.LongPeriod)
	prevShort, _ := mean(prev, s.cfg.ShortPeriod)
	prevLong, _ := mean(prev, s.cfg.LongPeriod)

	return MAStats{Short: short, Long: long, PrevShort: prevShort, PrevLong: prevLong}, true
}

// Snapshot serializes the full rolling state as the task's run-state blob.
func (s *Store) Snapshot() ([]byte, error) {
	return json.Marshal(s.records)
}

// Restore builds a store from a run-state blob produced by Snapshot. A nil or
// empty blob yields an empty store, so fresh tasks need no special casing.
func Restore(cfg Config, blob []byte) (*Store, error) {
	s := New(cfg)
	if len(blob) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(blob, &s.records); err != nil {
		return nil, fmt.Errorf("decoding run state: %w", err)
	}
	if s.records == nil {
		s.records = make(map[string]*record)
	}
	return s, nil
}

// mean returns the arithmetic mean of the trailing n values, false when fewer
// than n samples exist.
func mean(prices []float64, n int) (float64, bool) {
	if len(prices) < n || n <= 0 {
		return 0, false
	}
	var sum float64
	for _, p := range prices[len(prices)-n:] {
		sum += p
	}
	return sum / float64(n), true
}

func appendBounded(vals []float64, v float64, limit int) []float64 {
	vals = append(vals, v)
	if len(vals) > limit {
		vals = vals[len(vals)-limit:]
	}
	return vals
}
