package analyzer

import "fmt"

// TrendConfig holds the trend template thresholds
type TrendConfig struct {
	HighThresholdRatio float64 // price >= ratio * 52w high
	LowIncreasePct     float64 // price >= 52w low * (1 + pct/100)
	MinPriceThreshold  float64 // 52w low below this is treated as missing data
}

// DefaultTrendConfig returns the standard Minervini thresholds
func DefaultTrendConfig() TrendConfig {
	return TrendConfig{
		HighThresholdRatio: 0.75,
		LowIncreasePct:     30,
		MinPriceThreshold:  0.01,
	}
}

// TrendInput is the per-symbol market snapshot the template is judged on
type TrendInput struct {
	Symbol         string
	Price          float64
	MA50           float64
	MA150          float64
	MA200          float64
	MA200Prior     float64 // MA200 as of ~1 month (21 sessions) earlier
	High52         float64
	Low52          float64
	VolumeUpDays   int
	VolumeDownDays int
}

// TrendResult reports each trend condition independently
type TrendResult struct {
	Symbol                   string  `json:"symbol"`
	Margin                   float64 `json:"margin"`
	MAOrderOK                bool    `json:"ma_order_ok"`
	PriceAboveMAs            bool    `json:"price_above_mas"`
	PriceWithinHighThreshold bool    `json:"price_within_high_threshold"`
	PriceAboveLowThreshold   bool    `json:"price_above_low_threshold"`
	MA200Rising              bool    `json:"ma200_rising"`
	VolumeConfirmed          bool    `json:"volume_confirmed"`
	TrendValid               bool    `json:"trend_valid"`
	InsufficientData         bool    `json:"insufficient_data"`
	Reason                   string  `json:"reason,omitempty"`
}

// Condition is a single named boolean, used for the audit trail
type Condition struct {
	Name  string
	Value bool
}

// Conditions returns every sub-condition in a stable order
func (r TrendResult) Conditions() []Condition {
	return []Condition{
		{"ma_order_ok", r.MAOrderOK},
		{"price_above_mas", r.PriceAboveMAs},
		{"price_within_high_threshold", r.PriceWithinHighThreshold},
		{"price_above_low_threshold", r.PriceAboveLowThreshold},
		{"ma200_rising", r.MA200Rising},
		{"volume_confirmed", r.VolumeConfirmed},
		{"insufficient_data", r.InsufficientData},
		{"trend_valid", r.TrendValid},
	}
}

// TrendValidator evaluates the trend template
type TrendValidator struct {
	config TrendConfig
}

// NewTrendValidator creates a validator
func NewTrendValidator(cfg TrendConfig) *TrendValidator {
	return &TrendValidator{config: cfg}
}

// Validate judges the input with a relaxation margin.
// margin 0 is the strict buy screen; 0.1 relaxes every threshold by 10%
// for symbols already held.
func (v *TrendValidator) Validate(in TrendInput, margin float64) TrendResult {
	result := TrendResult{Symbol: in.Symbol, Margin: margin}
	relax := 1 - margin

	// MA 하나라도 0이면 히스토리 부족
	if in.MA50 == 0 || in.MA150 == 0 || in.MA200 == 0 || in.MA200Prior == 0 {
		result.InsufficientData = true
		result.Reason = fmt.Sprintf("moving average unavailable (ma50=%.2f ma150=%.2f ma200=%.2f ma200_prior=%.2f)",
			in.MA50, in.MA150, in.MA200, in.MA200Prior)
		return result
	}
	if in.Price <= 0 || in.High52 <= 0 {
		result.InsufficientData = true
		result.Reason = fmt.Sprintf("invalid price %.4f or 52w high %.4f", in.Price, in.High52)
		return result
	}

	result.MAOrderOK = in.MA50 > in.MA150*relax && in.MA150 > in.MA200*relax
	result.PriceAboveMAs = in.Price >= in.MA50*relax &&
		in.Price >= in.MA150*relax &&
		in.Price >= in.MA200*relax
	result.PriceWithinHighThreshold = in.Price >= in.High52*v.config.HighThresholdRatio*relax
	result.MA200Rising = in.MA200 >= in.MA200Prior*relax
	result.VolumeConfirmed = float64(in.VolumeUpDays) >= float64(in.VolumeDownDays)*relax

	if in.Low52 < v.config.MinPriceThreshold {
		// 저가가 0 근처면 상승률 계산 불가
		result.PriceAboveLowThreshold = false
		result.InsufficientData = true
		result.Reason = fmt.Sprintf("52w low %.4f below minimum %.4f", in.Low52, v.config.MinPriceThreshold)
	} else {
		increasePct := (in.Price - in.Low52) / in.Low52 * 100
		result.PriceAboveLowThreshold = increasePct >= v.config.LowIncreasePct*relax
	}

	result.TrendValid = !result.InsufficientData &&
		result.MAOrderOK &&
		result.PriceAboveMAs &&
		result.PriceWithinHighThreshold &&
		result.PriceAboveLowThreshold &&
		result.MA200Rising &&
		result.VolumeConfirmed
	return result
}
