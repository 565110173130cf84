package provider

import (
	"context"
	"errors"
	"fmt"

	"stockfinder/pkg/model"
)

// Provider defines the interface for market data providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// GetDailyCandles fetches daily OHLCV data (oldest -> newest) covering
	// at most the given number of sessions
	GetDailyCandles(ctx context.Context, symbol string, days int) ([]model.Candle, error)
}

// ErrNoData is returned when the provider has no history for a symbol
var ErrNoData = errors.New("no data available")

// ProviderError represents a provider-specific error
type ProviderError struct {
	Provider  string
	Err       error
	Retryable bool
}

func (e *ProviderError) Error() string {
	return e.Provider + ": " + e.Err.Error()
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// UpstreamFetchError is returned once retries against a provider are exhausted.
// Callers must treat it as fatal for the cycle rather than as "no signal".
type UpstreamFetchError struct {
	Provider string
	Symbol   string
	Attempts int
	Err      error
}

func (e *UpstreamFetchError) Error() string {
	return fmt.Sprintf("%s: fetching %s failed after %d attempts: %v", e.Provider, e.Symbol, e.Attempts, e.Err)
}

func (e *UpstreamFetchError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err is worth another attempt.
// Non-provider errors (transport, decoding) are treated as retryable.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return true
}
