// Package broker defines the collaborator contracts the engine consumes from
// a brokerage: quote retrieval and order/account operations. The engine never
// owns a wire protocol; concrete SDK clients implement these interfaces.
package broker

import (
	"context"

	"github.com/hollisw/quanttask/internal/market"
	"github.com/hollisw/quanttask/internal/models"
)

// QuotePrices carries the per-session last prices for one symbol. Sessions
// without a quote (e.g. an unsubscribed overnight feed) are nil.
type QuotePrices struct {
	Regular    *float64 `json:"regular_price"`
	PreMarket  *float64 `json:"pre_market_price"`
	PostMarket *float64 `json:"post_market_price"`
	Overnight  *float64 `json:"overnight_price"`
}

// ForSession returns the price relevant to the given trading session. HK
// sessions and anything unrecognized map to the regular price.
func (q QuotePrices) ForSession(session market.Session) *float64 {
	switch session {
	case market.SessionPreMarket:
		return q.PreMarket
	case market.SessionPostMarket:
		return q.PostMarket
	case market.SessionOvernight:
		return q.Overnight
	default:
		return q.Regular
	}
}

// StaticInfo is the slow-moving reference data the sizer needs.
type StaticInfo struct {
	LotSize int64 `json:"lot_size"`
}

// QuoteSource retrieves market data. Implementations must be safe for
// concurrent calls from multiple task workers.
type QuoteSource interface {
	Quote(ctx context.Context, symbols []string) (map[string]QuotePrices, error)
	StaticInfo(ctx context.Context, symbol string) (StaticInfo, error)
}

// PositionItem is one holding as reported by the gateway.
type PositionItem struct {
	Symbol            string  `json:"symbol"`
	Quantity          int64   `json:"quantity"`
	AvailableQuantity int64   `json:"available_quantity"`
	CostPrice         float64 `json:"cost_price"`
}

// Balance is the account snapshot used for risk checks.
type Balance struct {
	TotalCash float64 `json:"total_cash"`
	BuyPower  float64 `json:"buy_power"`
	NetAssets float64 `json:"net_assets"`
	Currency  string  `json:"currency"`
}

// Gateway submits orders and answers account queries. Calls block the task
// worker that issues them; implementations must be safe for concurrent use.
type Gateway interface {
	SubmitOrder(ctx context.Context, order models.Order) (string, error)
	Positions(ctx context.Context, symbols []string) ([]PositionItem, error)
	AccountBalance(ctx context.Context) (Balance, error)
}

// Brokerage bundles the two collaborator halves for one account kind.
type Brokerage struct {
	Quotes  QuoteSource
	Gateway Gateway
}
