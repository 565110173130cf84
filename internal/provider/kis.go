package provider

import (
	"context"
	"fmt"

	"stockfinder/internal/broker/kis"
	"stockfinder/pkg/model"
)

// KISProvider serves daily candles from the KIS overseas price API
type KISProvider struct {
	client *kis.Client
}

// NewKISProvider wraps an existing KIS client (token and rate limit are shared)
func NewKISProvider(client *kis.Client) *KISProvider {
	return &KISProvider{client: client}
}

func (p *KISProvider) Name() string {
	return "kis"
}

// GetDailyCandles 해외주식 일봉 조회
func (p *KISProvider) GetDailyCandles(ctx context.Context, symbol string, days int) ([]model.Candle, error) {
	prices, err := p.client.GetDailyPrices(ctx, symbol, days)
	if err != nil {
		return nil, err
	}
	if len(prices) == 0 {
		return nil, &ProviderError{
			Provider:  p.Name(),
			Err:       fmt.Errorf("%s: %w", symbol, ErrNoData),
			Retryable: false,
		}
	}

	candles := make([]model.Candle, len(prices))
	for i, d := range prices {
		candles[i] = model.Candle{
			Time:   d.Date,
			Open:   d.Open,
			High:   d.High,
			Low:    d.Low,
			Close:  d.Close,
			Volume: d.Volume,
		}
	}
	return candles, nil
}
