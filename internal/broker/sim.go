package broker

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/hollisw/quanttask/internal/models"
)

// PaperGateway is an in-memory brokerage used for paper accounts and tests.
// It fills every limit order immediately at its limit price and keeps simple
// cash/position bookkeeping.
type PaperGateway struct {
	mu        sync.Mutex
	cash      float64
	currency  string
	positions map[string]*paperPosition
}

type paperPosition struct {
	quantity  int64
	costPrice float64
}

// NewPaperGateway creates a paper account with the given starting cash.
func NewPaperGateway(startingCash float64, currency string) *PaperGateway {
	if currency == "" {
		currency = "USD"
	}
	return &PaperGateway{
		cash:      startingCash,
		currency:  currency,
		positions: make(map[string]*paperPosition),
	}
}

// SubmitOrder fills the order against the paper book and returns a generated
// order id. Market orders are rejected: the engine always prices its orders.
func (p *PaperGateway) SubmitOrder(_ context.Context, order models.Order) (string, error) {
	if order.Quantity <= 0 {
		return "", fmt.Errorf("paper: order quantity must be positive, got %d", order.Quantity)
	}
	if order.LimitPrice == nil {
		return "", fmt.Errorf("paper: market orders are not supported")
	}
	price := *order.LimitPrice

	p.mu.Lock()
	defer p.mu.Unlock()

	cost := price * float64(order.Quantity)
	pos := p.positions[order.Symbol]

	switch order.Side {
	case models.SideBuy:
		if cost > p.cash {
			return "", fmt.Errorf("paper: insufficient cash %.2f for order cost %.2f", p.cash, cost)
		}
		if pos == nil {
			pos = &paperPosition{}
			p.positions[order.Symbol] = pos
		}
		// Average in the new lot.
		total := pos.costPrice*float64(pos.quantity) + cost
		pos.quantity += order.Quantity
		pos.costPrice = total / float64(pos.quantity)
		p.cash -= cost
	case models.SideSell:
		if pos == nil || pos.quantity < order.Quantity {
			return "", fmt.Errorf("paper: insufficient position in %s", order.Symbol)
		}
		pos.quantity -= order.Quantity
		p.cash += cost
		if pos.quantity == 0 {
			delete(p.positions, order.Symbol)
		}
	default:
		return "", fmt.Errorf("paper: unknown order side %q", order.Side)
	}

	return uuid.New().String(), nil
}

// Positions returns holdings, filtered to the given symbols when non-empty.
func (p *PaperGateway) Positions(_ context.Context, symbols []string) ([]PositionItem, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	want := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		want[s] = true
	}

	items := make([]PositionItem, 0, len(p.positions))
	for symbol, pos := range p.positions {
		if len(symbols) > 0 && !want[symbol] {
			continue
		}
		items = append(items, PositionItem{
			Symbol:            symbol,
			Quantity:          pos.quantity,
			AvailableQuantity: pos.quantity,
			CostPrice:         pos.costPrice,
		})
	}
	return items, nil
}

// AccountBalance reports cash plus positions valued at cost.
func (p *PaperGateway) AccountBalance(_ context.Context) (Balance, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	net := p.cash
	for _, pos := range p.positions {
		net += pos.costPrice * float64(pos.quantity)
	}
	return Balance{
		TotalCash: p.cash,
		BuyPower:  p.cash,
		NetAssets: net,
		Currency:  p.currency,
	}, nil
}

var _ Gateway = (*PaperGateway)(nil)

// StaticQuoteSource serves quotes from an in-memory table. It backs the paper
// brokerage and tests; SetPrice feeds it new ticks.
type StaticQuoteSource struct {
	mu       sync.RWMutex
	prices   map[string]QuotePrices
	lotSizes map[string]int64
}

// NewStaticQuoteSource creates an empty quote table.
func NewStaticQuoteSource() *StaticQuoteSource {
	return &StaticQuoteSource{
		prices:   make(map[string]QuotePrices),
		lotSizes: make(map[string]int64),
	}
}

// SetPrice publishes the same last price for every session of the symbol.
func (s *StaticQuoteSource) SetPrice(symbol string, price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := price
	s.prices[symbol] = QuotePrices{Regular: &p, PreMarket: &p, PostMarket: &p, Overnight: &p}
}

// SetQuote publishes a full per-session quote for the symbol.
func (s *StaticQuoteSource) SetQuote(symbol string, quote QuotePrices) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[symbol] = quote
}

// SetLotSize sets the lot size reported for the symbol (default 1).
func (s *StaticQuoteSource) SetLotSize(symbol string, lotSize int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lotSizes[symbol] = lotSize
}

// Quote returns the stored quotes for the requested symbols. Symbols without
// a stored quote are omitted, matching provider behavior for unknown codes.
func (s *StaticQuoteSource) Quote(_ context.Context, symbols []string) (map[string]QuotePrices, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]QuotePrices, len(symbols))
	for _, symbol := range symbols {
		if q, ok := s.prices[symbol]; ok {
			out[symbol] = q
		}
	}
	return out, nil
}

// StaticInfo returns the configured lot size, defaulting to 1.
func (s *StaticQuoteSource) StaticInfo(_ context.Context, symbol string) (StaticInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if lot, ok := s.lotSizes[symbol]; ok {
		return StaticInfo{LotSize: lot}, nil
	}
	return StaticInfo{LotSize: 1}, nil
}

var _ QuoteSource = (*StaticQuoteSource)(nil)
