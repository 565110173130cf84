package provider

import (
	"context"
	"errors"
	"log"

	"stockfinder/pkg/model"
)

// FallbackProvider tries multiple providers in order
type FallbackProvider struct {
	providers []Provider
}

// NewFallbackProvider creates a new fallback provider
func NewFallbackProvider(providers ...Provider) *FallbackProvider {
	return &FallbackProvider{providers: providers}
}

// Name returns the combined provider name
func (f *FallbackProvider) Name() string {
	return "fallback"
}

// Providers returns the chain in order
func (f *FallbackProvider) Providers() []Provider {
	return f.providers
}

// GetDailyCandles tries each provider in order; cancellation stops the chain.
// When every provider fails, a no-data error from any of them is returned
// (the symbol has no history, so a later provider's outage is not fatal);
// otherwise the last error.
func (f *FallbackProvider) GetDailyCandles(ctx context.Context, symbol string, days int) ([]model.Candle, error) {
	if len(f.providers) == 0 {
		return nil, errors.New("no data providers configured")
	}

	var lastErr, noData error
	for i, p := range f.providers {
		data, err := p.GetDailyCandles(ctx, symbol, days)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, err
		}
		if noData == nil && IsNoData(err) {
			noData = err
		}
		if i < len(f.providers)-1 {
			log.Printf("[FETCH] %s %s failed, trying %s: %v", p.Name(), symbol, f.providers[i+1].Name(), err)
		}
	}
	if noData != nil {
		return nil, noData
	}
	return nil, lastErr
}
