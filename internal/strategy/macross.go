package strategy

// Default sizing for the moving-average crossover strategy.
const (
	DefaultBuyNotional = 1000.0
	DefaultSellCap     = 5
)

// MACross is the dual moving-average crossover strategy. A golden cross
// (short MA rising through the long MA) buys a fixed notional; a death cross
// sells up to SellCap shares of whatever is held. Each crossing fires exactly
// once because the previous-window comparison flips only at the crossing tick.
type MACross struct {
	deps        Deps
	buyNotional float64
	sellCap     int64
}

func newMACross(deps Deps, params Params) Strategy {
	if params.BuyNotional <= 0 {
		params.BuyNotional = DefaultBuyNotional
	}
	if params.SellCap <= 0 {
		params.SellCap = DefaultSellCap
	}
	return &MACross{deps: deps, buyNotional: params.BuyNotional, sellCap: params.SellCap}
}

// Name implements Strategy.
func (m *MACross) Name() string { return "SimpleMA" }

// Decide implements Strategy. It holds until the indicator window is warm,
// then reports a crossing by comparing the current MA ordering against the
// ordering one sample ago.
func (m *MACross) Decide(symbol string) Decision {
	stats, ok := m.deps.Store.MAStats(symbol)
	if !ok {
		return Decision{Action: Hold}
	}

	if stats.Short > stats.Long && stats.PrevShort <= stats.PrevLong {
		return Decision{Action: Buy, Amount: m.buyNotional}
	}

	if stats.Short < stats.Long && stats.PrevShort >= stats.PrevLong {
		held, err := m.deps.Positions.AvailablePosition(symbol)
		if err != nil || held <= 0 {
			return Decision{Action: Hold}
		}
		qty := held
		if qty > m.sellCap {
			qty = m.sellCap
		}
		return Decision{Action: Sell, Quantity: qty}
	}

	return Decision{Action: Hold}
}
