package provider

import (
	"context"
	"sync"

	"stockfinder/pkg/model"
)

// CachingProvider wraps a Provider with an in-memory cache for GetDailyCandles.
// Held symbols and the screening universe overlap, so each symbol is fetched
// once per run with the widest window.
type CachingProvider struct {
	inner   Provider
	mu      sync.Mutex
	cache   map[string][]model.Candle
	maxDays int
}

// NewCachingProvider creates a caching wrapper. maxDays is the number of
// sessions always fetched.
func NewCachingProvider(inner Provider, maxDays int) *CachingProvider {
	return &CachingProvider{
		inner:   inner,
		cache:   make(map[string][]model.Candle),
		maxDays: maxDays,
	}
}

func (p *CachingProvider) Name() string { return p.inner.Name() }

// GetDailyCandles serves from cache or fetches maxDays from the inner provider.
// Errors are not cached.
func (p *CachingProvider) GetDailyCandles(ctx context.Context, symbol string, days int) ([]model.Candle, error) {
	p.mu.Lock()
	cached, ok := p.cache[symbol]
	p.mu.Unlock()
	if ok {
		return tail(cached, days), nil
	}

	fetchDays := p.maxDays
	if days > fetchDays {
		fetchDays = days
	}

	candles, err := p.inner.GetDailyCandles(ctx, symbol, fetchDays)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.cache[symbol] = candles
	p.mu.Unlock()

	return tail(candles, days), nil
}

// Len returns the number of cached symbols
func (p *CachingProvider) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.cache)
}

func tail(candles []model.Candle, days int) []model.Candle {
	if days > 0 && len(candles) > days {
		return candles[len(candles)-days:]
	}
	return candles
}
