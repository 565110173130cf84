package analyzer

import (
	"fmt"
	"strings"

	"stockfinder/pkg/model"
)

// MA200 상승 판단 기준: 약 한 달 전 (21 거래일)
const MA200LookbackSessions = 21

// SignalConfig configures per-symbol signal construction
type SignalConfig struct {
	Trend        TrendConfig
	AVSL         AVSLConfig
	HoldMargin   float64 // relaxation applied to already-held symbols
	ATRPeriod    int
	VolumeWindow int
}

// Signals is everything the decision engine needs to know about one symbol
type Signals struct {
	Symbol           string      `json:"symbol"`
	Price            float64     `json:"price"`
	ATR              float64     `json:"atr"`
	Input            TrendInput  `json:"-"`
	Buy              TrendResult `json:"buy"`  // strict screen
	Hold             TrendResult `json:"hold"` // relaxed screen
	AVSL             AVSLResult  `json:"avsl"`
	InsufficientData bool        `json:"insufficient_data"`
}

// Correlation returns the price/volume correlation of a window, if computed
func (s *Signals) Correlation(window int) (float64, bool) {
	for i, w := range s.AVSL.Windows {
		if w == window {
			return s.AVSL.Correlations[i], true
		}
	}
	return 0, false
}

// ShortCorrelation returns the correlation of the shortest computed window
func (s *Signals) ShortCorrelation() (float64, bool) {
	if len(s.AVSL.Correlations) == 0 {
		return 0, false
	}
	return s.AVSL.Correlations[len(s.AVSL.Correlations)-1], true
}

// SignalBuilder turns daily candles into Signals
type SignalBuilder struct {
	config SignalConfig
	trend  *TrendValidator
	avsl   *SupportLevelEvaluator
}

// NewSignalBuilder creates a builder
func NewSignalBuilder(cfg SignalConfig) *SignalBuilder {
	if cfg.ATRPeriod <= 0 {
		cfg.ATRPeriod = 14
	}
	if cfg.VolumeWindow <= 0 {
		cfg.VolumeWindow = 200
	}
	return &SignalBuilder{
		config: cfg,
		trend:  NewTrendValidator(cfg.Trend),
		avsl:   NewSupportLevelEvaluator(cfg.AVSL),
	}
}

// Build computes signals from candles ordered oldest -> newest.
// A nil Signals with a *DataQualityError means the symbol has no usable price.
// A non-nil Signals with a *DataQualityError means the price is usable but the
// history is too short for some indicators (InsufficientData is set).
func (b *SignalBuilder) Build(symbol string, candles []model.Candle) (*Signals, error) {
	if len(candles) == 0 {
		return nil, &DataQualityError{Symbol: symbol, Reason: "no candles"}
	}
	price := model.LastClose(candles)
	if price <= 0 {
		return nil, &DataQualityError{Symbol: symbol, Reason: fmt.Sprintf("invalid last close %.4f", price)}
	}

	high, low := HighLow(candles, TradingDaysPerYear)
	up, down := VolumeDirectionDays(candles, b.config.VolumeWindow)
	in := TrendInput{
		Symbol:         symbol,
		Price:          price,
		MA50:           CalculateMA(candles, 50),
		MA150:          CalculateMA(candles, 150),
		MA200:          CalculateMA(candles, 200),
		MA200Prior:     CalculateMAAt(candles, 200, MA200LookbackSessions),
		High52:         high,
		Low52:          low,
		VolumeUpDays:   up,
		VolumeDownDays: down,
	}

	s := &Signals{
		Symbol: symbol,
		Price:  price,
		ATR:    CalculateATR(candles, b.config.ATRPeriod),
		Input:  in,
		Buy:    b.trend.Validate(in, 0),
		Hold:   b.trend.Validate(in, b.config.HoldMargin),
	}

	var series []float64
	var windows []int
	var missing []string
	for _, w := range b.avsl.Windows() {
		pct, ok := PriceVolumeCorrelation(candles, w)
		if !ok {
			missing = append(missing, fmt.Sprintf("corr%d", w))
			continue
		}
		windows = append(windows, w)
		series = append(series, pct)
	}
	s.AVSL = b.avsl.Evaluate(series)
	s.AVSL.Windows = windows

	var reasons []string
	if s.Hold.InsufficientData {
		reasons = append(reasons, s.Hold.Reason)
	}
	if len(missing) > 0 {
		reasons = append(reasons, fmt.Sprintf("%d candles, missing %s", len(candles), strings.Join(missing, ",")))
	}
	if len(reasons) > 0 {
		s.InsufficientData = true
		return s, &DataQualityError{Symbol: symbol, Reason: strings.Join(reasons, "; ")}
	}
	return s, nil
}
