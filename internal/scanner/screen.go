package scanner

import (
	"sort"

	"stockfinder/internal/analyzer"
	"stockfinder/internal/trader"
)

// Screening splits scan results into the inputs of a trading cycle
type Screening struct {
	Candidates []trader.BuyCandidate
	Market     map[string]trader.MarketSignal
}

// Screen builds buy candidates and market signals for held symbols.
// A symbol is a buy candidate when the strict trend template holds and the
// short-window correlation reaches the strict threshold; its weight is that
// correlation. Held symbols stay when the relaxed trend template holds and
// the short-window correlation reaches the relaxed threshold.
func Screen(res *Result, held map[string]int, strictThreshold, relaxedThreshold float64) Screening {
	sc := Screening{Market: make(map[string]trader.MarketSignal)}

	for symbol, sig := range res.Signals {
		if _, ok := held[symbol]; ok {
			sc.Market[symbol] = MarketSignalOf(sig, relaxedThreshold)
		}

		corr, ok := sig.ShortCorrelation()
		if !ok || !sig.Buy.TrendValid || corr < strictThreshold {
			continue
		}
		sc.Candidates = append(sc.Candidates, trader.BuyCandidate{
			Symbol:          symbol,
			CurrentPrice:    sig.Price,
			CurrentQuantity: held[symbol],
			Weight:          corr,
		})
	}

	sort.Slice(sc.Candidates, func(i, j int) bool {
		return sc.Candidates[i].Symbol < sc.Candidates[j].Symbol
	})
	return sc
}

// MarketSignalOf converts analyzer signals to the sell engine's view.
// TREND fails when either the relaxed template or the short-window
// correlation (< relaxedThreshold) fails. Without that correlation the
// trend judgement is treated as insufficient data.
func MarketSignalOf(sig *analyzer.Signals, relaxedThreshold float64) trader.MarketSignal {
	corr, ok := sig.ShortCorrelation()
	return trader.MarketSignal{
		ATR:              sig.ATR,
		AVSLBroken:       sig.AVSL.Broken,
		TrendValid:       sig.Hold.TrendValid && ok && corr >= relaxedThreshold,
		InsufficientData: sig.InsufficientData || !ok,
	}
}
