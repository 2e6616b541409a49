package broker

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimitedQuoteSource throttles quote retrieval across all task workers so
// a burst of concurrent tasks stays inside the provider's request budget.
type RateLimitedQuoteSource struct {
	source  QuoteSource
	limiter *rate.Limiter
}

// NewRateLimitedQuoteSource wraps source with a shared token bucket. rps is
// requests per second; burst is the bucket depth.
func NewRateLimitedQuoteSource(source QuoteSource, rps float64, burst int) *RateLimitedQuoteSource {
	if rps <= 0 {
		rps = 10
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimitedQuoteSource{
		source:  source,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Quote blocks until the limiter admits the call, then delegates.
func (r *RateLimitedQuoteSource) Quote(ctx context.Context, symbols []string) (map[string]QuotePrices, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("quote rate limit: %w", err)
	}
	return r.source.Quote(ctx, symbols)
}

// StaticInfo blocks until the limiter admits the call, then delegates.
func (r *RateLimitedQuoteSource) StaticInfo(ctx context.Context, symbol string) (StaticInfo, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return StaticInfo{}, fmt.Errorf("quote rate limit: %w", err)
	}
	return r.source.StaticInfo(ctx, symbol)
}

var _ QuoteSource = (*RateLimitedQuoteSource)(nil)
