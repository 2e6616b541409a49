package strategy

import (
	"errors"
	"testing"

	"github.com/hollisw/quanttask/internal/indicator"
)

var testIndicatorConfig = indicator.Config{ShortPeriod: 2, LongPeriod: 4, MAHistory: 10}

// stubPositions is a canned PositionSource.
type stubPositions struct {
	held int64
	err  error
}

func (s *stubPositions) AvailablePosition(string) (int64, error) {
	return s.held, s.err
}

func newTestStrategy(t *testing.T, positions PositionSource, params Params) (Strategy, *indicator.Store) {
	t.Helper()
	store := indicator.New(testIndicatorConfig)
	strat, err := New("SimpleMA", Deps{Store: store, Positions: positions}, params)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return strat, store
}

func TestGoldenCrossFiresOnce(t *testing.T) {
	strat, store := newTestStrategy(t, &stubPositions{}, Params{BuyNotional: 1000})

	prices := []float64{10, 10, 10, 10, 11, 12}
	wantBuyAt := 4 // first sample where short rises through long with a warm window

	for i, price := range prices {
		store.Update("AAPL.US", price)
		decision := strat.Decide("AAPL.US")
		if i == wantBuyAt {
			if decision.Action != Buy {
				t.Fatalf("sample %d: Action = %s, want buy", i, decision.Action)
			}
			if decision.Amount != 1000 {
				t.Errorf("sample %d: Amount = %v, want 1000", i, decision.Amount)
			}
		} else if decision.Action != Hold {
			t.Errorf("sample %d: Action = %s, want hold", i, decision.Action)
		}
	}
}

func TestDeathCrossSellsCapped(t *testing.T) {
	positions := &stubPositions{held: 50}
	strat, store := newTestStrategy(t, positions, Params{SellCap: 5})

	prices := []float64{12, 12, 12, 12, 11, 9}
	var sells []Decision
	for _, price := range prices {
		store.Update("AAPL.US", price)
		if decision := strat.Decide("AAPL.US"); decision.Action == Sell {
			sells = append(sells, decision)
		}
	}

	if len(sells) != 1 {
		t.Fatalf("sell count = %d, want exactly 1", len(sells))
	}
	if sells[0].Quantity != 5 {
		t.Errorf("sell quantity = %d, want cap 5", sells[0].Quantity)
	}
}

func TestDeathCrossSellsHeldBelowCap(t *testing.T) {
	positions := &stubPositions{held: 3}
	strat, store := newTestStrategy(t, positions, Params{SellCap: 5})

	for _, price := range []float64{12, 12, 12, 12, 11, 9} {
		store.Update("AAPL.US", price)
		if decision := strat.Decide("AAPL.US"); decision.Action == Sell {
			if decision.Quantity != 3 {
				t.Errorf("sell quantity = %d, want held 3", decision.Quantity)
			}
			return
		}
	}
	t.Fatal("no sell decision produced")
}

func TestDeathCrossHoldsWithoutPosition(t *testing.T) {
	tests := []struct {
		name      string
		positions *stubPositions
	}{
		{"nothing held", &stubPositions{held: 0}},
		{"lookup error", &stubPositions{held: 10, err: errors.New("gateway down")}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			strat, store := newTestStrategy(t, tc.positions, Params{})
			for _, price := range []float64{12, 12, 12, 12, 11, 9} {
				store.Update("AAPL.US", price)
				if decision := strat.Decide("AAPL.US"); decision.Action != Hold {
					t.Fatalf("Action = %s, want hold", decision.Action)
				}
			}
		})
	}
}

func TestDecideColdWindowHolds(t *testing.T) {
	strat, store := newTestStrategy(t, &stubPositions{}, Params{})
	store.Update("AAPL.US", 10)
	if decision := strat.Decide("AAPL.US"); decision.Action != Hold {
		t.Errorf("Action = %s, want hold before warm-up", decision.Action)
	}
}

func TestParamDefaults(t *testing.T) {
	strat, _ := newTestStrategy(t, &stubPositions{}, Params{})
	cross, ok := strat.(*MACross)
	if !ok {
		t.Fatalf("SimpleMA built %T, want *MACross", strat)
	}
	if cross.buyNotional != DefaultBuyNotional {
		t.Errorf("buyNotional = %v, want %v", cross.buyNotional, DefaultBuyNotional)
	}
	if cross.sellCap != DefaultSellCap {
		t.Errorf("sellCap = %v, want %v", cross.sellCap, DefaultSellCap)
	}
}

func TestRegistry(t *testing.T) {
	if !Known("SimpleMA") {
		t.Error("SimpleMA should be registered")
	}
	if Known("Momentum") {
		t.Error("Momentum should not be registered")
	}

	if _, err := New("Momentum", Deps{}, Params{}); err == nil {
		t.Error("expected error for unknown strategy")
	}

	names := List()
	if len(names) != 1 || names[0] != "SimpleMA" {
		t.Errorf("List() = %v, want [SimpleMA]", names)
	}
}
