package analyzer

import (
	"time"

	"stockfinder/pkg/model"
)

// risingCandles generates n daily bars with steadily rising close and volume
func risingCandles(n int) []model.Candle {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	candles := make([]model.Candle, n)
	for i := 0; i < n; i++ {
		c := 50 + float64(i)*0.5
		candles[i] = model.Candle{
			Time:   start.AddDate(0, 0, i),
			Open:   c - 0.2,
			High:   c + 1,
			Low:    c - 1,
			Close:  c,
			Volume: int64(1000 + i*10),
		}
	}
	return candles
}

func closesOnly(closes ...float64) []model.Candle {
	candles := make([]model.Candle, len(closes))
	for i, c := range closes {
		candles[i] = model.Candle{Open: c, High: c, Low: c, Close: c, Volume: 100}
	}
	return candles
}
