package analyzer

import (
	"math"

	"stockfinder/pkg/model"
)

// 52주 = 252 거래일
const TradingDaysPerYear = 252

// CalculateMA calculates Simple Moving Average for the given period.
// Returns 0 when there are not enough candles.
func CalculateMA(candles []model.Candle, period int) float64 {
	return CalculateMAAt(candles, period, 0)
}

// CalculateMAAt calculates the SMA as it stood `offset` sessions ago.
// offset 0 is the latest bar.
func CalculateMAAt(candles []model.Candle, period, offset int) float64 {
	if period <= 0 || offset < 0 {
		return 0
	}
	end := len(candles) - offset
	if end < period {
		return 0
	}

	var sum float64
	for i := end - period; i < end; i++ {
		sum += candles[i].Close
	}
	return sum / float64(period)
}

// CalculateATR calculates Average True Range over the given period.
// Returns 0 when there are not enough candles.
func CalculateATR(candles []model.Candle, period int) float64 {
	if period <= 0 || len(candles) < period+1 {
		return 0
	}

	var sum float64
	for i := len(candles) - period; i < len(candles); i++ {
		prevClose := candles[i-1].Close
		tr := candles[i].High - candles[i].Low
		tr = math.Max(tr, math.Abs(candles[i].High-prevClose))
		tr = math.Max(tr, math.Abs(candles[i].Low-prevClose))
		sum += tr
	}
	return sum / float64(period)
}

// HighLow returns the highest high and lowest low over the last `period` candles
// (or all candles when fewer are available).
func HighLow(candles []model.Candle, period int) (high, low float64) {
	if len(candles) == 0 {
		return 0, 0
	}
	start := 0
	if period > 0 && len(candles) > period {
		start = len(candles) - period
	}

	high = candles[start].High
	low = candles[start].Low
	for _, c := range candles[start+1:] {
		if c.High > high {
			high = c.High
		}
		if c.Low < low {
			low = c.Low
		}
	}
	return high, low
}

// PriceVolumeCorrelation returns the percentage of sessions in the last `window`
// candles where close and volume moved in the same direction (both diffs >= 0
// or both < 0). The first session of the window has no diff and counts as a
// mismatch. ok is false when fewer than `window` candles are available.
func PriceVolumeCorrelation(candles []model.Candle, window int) (pct float64, ok bool) {
	if window < 2 || len(candles) < window {
		return 0, false
	}

	tail := candles[len(candles)-window:]
	matches := 0
	for i := 1; i < len(tail); i++ {
		priceDiff := tail[i].Close - tail[i-1].Close
		volDiff := tail[i].Volume - tail[i-1].Volume
		if (priceDiff >= 0 && volDiff >= 0) || (priceDiff < 0 && volDiff < 0) {
			matches++
		}
	}
	return float64(matches) / float64(window) * 100, true
}

// VolumeDirectionDays counts, among the last `window` sessions whose volume is
// above the window average, how many closed up (>= previous close) and how many
// closed down.
func VolumeDirectionDays(candles []model.Candle, window int) (up, down int) {
	if window <= 0 || len(candles) == 0 {
		return 0, 0
	}
	start := 0
	if len(candles) > window {
		start = len(candles) - window
	}

	var sum int64
	for _, c := range candles[start:] {
		sum += c.Volume
	}
	avg := float64(sum) / float64(len(candles)-start)

	for i := start; i < len(candles); i++ {
		if i == start || float64(candles[i].Volume) <= avg {
			continue
		}
		if candles[i].Close >= candles[i-1].Close {
			up++
		} else {
			down++
		}
	}
	return up, down
}
