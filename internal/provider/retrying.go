package provider

import (
	"context"
	"errors"
	"log"

	"stockfinder/internal/retry"
	"stockfinder/pkg/model"
)

// RetryingProvider retries retryable failures with exponential backoff.
// Exhausted retries become *UpstreamFetchError; non-retryable errors pass
// through unchanged.
type RetryingProvider struct {
	inner  Provider
	policy retry.Policy
}

// NewRetryingProvider wraps inner with the given policy
func NewRetryingProvider(inner Provider, policy retry.Policy) *RetryingProvider {
	return &RetryingProvider{inner: inner, policy: policy}
}

func (p *RetryingProvider) Name() string { return p.inner.Name() }

// GetDailyCandles fetches with retries
func (p *RetryingProvider) GetDailyCandles(ctx context.Context, symbol string, days int) ([]model.Candle, error) {
	var candles []model.Candle
	attempts, err := retry.Do(ctx, p.policy, func(ctx context.Context) error {
		c, err := p.inner.GetDailyCandles(ctx, symbol, days)
		if err == nil {
			candles = c
			return nil
		}
		if !IsRetryable(err) {
			return retry.Permanent(err)
		}
		log.Printf("[FETCH] %s %s failed: %v", p.inner.Name(), symbol, err)
		return err
	})
	if err == nil {
		return candles, nil
	}
	if !IsRetryable(err) || ctx.Err() != nil {
		return nil, err
	}
	return nil, &UpstreamFetchError{Provider: p.inner.Name(), Symbol: symbol, Attempts: attempts, Err: err}
}

// IsNoData reports whether err means the symbol has no history
func IsNoData(err error) bool {
	return errors.Is(err, ErrNoData)
}
