package trader

// Position is a held lot as reported by the broker snapshot
type Position struct {
	Symbol       string  `json:"symbol"`
	EntryPrice   float64 `json:"entry_price"`
	CurrentPrice float64 `json:"current_price"`
	Quantity     int     `json:"quantity"`
}

// UnrealizedPct returns (current - entry) / entry as a fraction.
// Returns 0 when prices are not usable.
func (p Position) UnrealizedPct() float64 {
	if p.EntryPrice <= 0 || p.CurrentPrice <= 0 {
		return 0
	}
	return (p.CurrentPrice - p.EntryPrice) / p.EntryPrice
}

// HasPrices reports whether price-based rules can be evaluated
func (p Position) HasPrices() bool {
	return p.EntryPrice > 0 && p.CurrentPrice > 0
}

// MarketSignal is the per-symbol market judgement fed to the sell engine
type MarketSignal struct {
	ATR              float64 `json:"atr"`
	AVSLBroken       bool    `json:"avsl_broken"`
	TrendValid       bool    `json:"trend_valid"`
	InsufficientData bool    `json:"insufficient_data"`
}
