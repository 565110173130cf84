package trader

import (
	"fmt"
	"math"
)

// SellReason 매도 사유
type SellReason string

const (
	ReasonNone     SellReason = "NONE"
	ReasonStopLoss SellReason = "STOP_LOSS"
	ReasonTrailing SellReason = "TRAILING"
	ReasonAVSL     SellReason = "AVSL"
	ReasonTrend    SellReason = "TREND"
)

// SellDecision is the outcome for one held symbol.
// Quantity > 0 if and only if Reason != NONE.
type SellDecision struct {
	Symbol   string     `json:"symbol"`
	Reason   SellReason `json:"reason"`
	Quantity int        `json:"quantity"`
	LossPct  float64    `json:"loss_pct"` // unrealized pct at decision time
	Detail   string     `json:"detail,omitempty"`
}

// IsSell reports whether the decision sells anything
func (d SellDecision) IsSell() bool {
	return d.Reason != ReasonNone && d.Quantity > 0
}

func hold(symbol string, lossPct float64) SellDecision {
	return SellDecision{Symbol: symbol, Reason: ReasonNone, LossPct: lossPct}
}

// SellConfig 매도 규칙 설정
type SellConfig struct {
	StopLossPct   float64 // 0.07 = -7%
	TrailingPct   float64 // fallback margin below the high-water mark
	ATRMultiplier float64 // ATR 기반 마진 (0이면 TrailingPct 사용)
	ActivationPct float64 // peak gain required before trailing applies
}

// SellDecisionEngine applies the sell rules in strict priority:
// STOP_LOSS > TRAILING > AVSL > TREND. First match wins.
type SellDecisionEngine struct {
	config SellConfig
}

// NewSellDecisionEngine creates an engine
func NewSellDecisionEngine(cfg SellConfig) *SellDecisionEngine {
	return &SellDecisionEngine{config: cfg}
}

// Decide evaluates one position. trailing may be nil when no high-water mark
// is stored yet. Decide never mutates state.
func (e *SellDecisionEngine) Decide(pos Position, trailing *TrailingState, sig MarketSignal) SellDecision {
	lossPct := pos.UnrealizedPct()
	if pos.Quantity <= 0 {
		return hold(pos.Symbol, lossPct)
	}

	if pos.HasPrices() {
		// 1. 손절
		if lossPct <= -e.config.StopLossPct {
			return e.sell(pos, ReasonStopLoss, lossPct,
				fmt.Sprintf("loss %.2f%% <= -%.2f%%", lossPct*100, e.config.StopLossPct*100))
		}

		// 2. 트레일링 스탑
		stored := 0.0
		if trailing != nil {
			stored = trailing.HighestPrice
		}
		if stop, active := e.TrailingStop(pos, stored, sig.ATR); active && pos.CurrentPrice <= stop {
			return e.sell(pos, ReasonTrailing, lossPct,
				fmt.Sprintf("price %.2f <= stop %.2f", pos.CurrentPrice, stop))
		}
	}

	// 3. 지지선 붕괴
	if sig.AVSLBroken {
		return e.sell(pos, ReasonAVSL, lossPct, "price/volume support lost")
	}

	// 4. 추세 이탈 (데이터 부족 시 판단 보류)
	if !sig.TrendValid && !sig.InsufficientData {
		return e.sell(pos, ReasonTrend, lossPct, "trend template failed")
	}

	return hold(pos.Symbol, lossPct)
}

// TrailingStop returns the stop level and whether trailing is active.
// The high-water mark is max(stored, entry, current). The margin is
// ATR*multiplier/high when both are positive, otherwise TrailingPct.
// Trailing only applies once the peak gain reaches ActivationPct.
func (e *SellDecisionEngine) TrailingStop(pos Position, storedHigh, atr float64) (float64, bool) {
	if !pos.HasPrices() {
		return 0, false
	}
	high := math.Max(storedHigh, math.Max(pos.EntryPrice, pos.CurrentPrice))

	margin := e.config.TrailingPct
	if atr > 0 && e.config.ATRMultiplier > 0 {
		margin = atr * e.config.ATRMultiplier / high
	}
	if margin <= 0 {
		return 0, false
	}

	peakGain := (high - pos.EntryPrice) / pos.EntryPrice
	if peakGain < e.config.ActivationPct {
		return 0, false
	}
	return high * (1 - margin), true
}

func (e *SellDecisionEngine) sell(pos Position, reason SellReason, lossPct float64, detail string) SellDecision {
	// 전량 매도
	return SellDecision{
		Symbol:   pos.Symbol,
		Reason:   reason,
		Quantity: pos.Quantity,
		LossPct:  lossPct,
		Detail:   detail,
	}
}
