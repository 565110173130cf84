package scanner

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"stockfinder/internal/analyzer"
	"stockfinder/internal/provider"
	"stockfinder/internal/trader"
	"stockfinder/pkg/model"
)

type stubProvider struct {
	candles map[string][]model.Candle
	errs    map[string]error
	calls   int32
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) GetDailyCandles(ctx context.Context, symbol string, days int) ([]model.Candle, error) {
	atomic.AddInt32(&p.calls, 1)
	if err, ok := p.errs[symbol]; ok {
		return nil, err
	}
	if c, ok := p.candles[symbol]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("%s: %w", symbol, provider.ErrNoData)
}

// trendCandles generates n bars; step > 0 rises, step < 0 falls
func trendCandles(n int, base, step float64) []model.Candle {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	candles := make([]model.Candle, n)
	for i := 0; i < n; i++ {
		c := base + float64(i)*step
		candles[i] = model.Candle{
			Time:   start.AddDate(0, 0, i),
			Open:   c,
			High:   c + 1,
			Low:    c - 1,
			Close:  c,
			Volume: int64(1000 + i*10),
		}
	}
	return candles
}

func testBuilder() *analyzer.SignalBuilder {
	return analyzer.NewSignalBuilder(analyzer.SignalConfig{
		Trend: analyzer.DefaultTrendConfig(),
		AVSL: analyzer.AVSLConfig{
			Windows:          []int{50, 100, 200},
			StrictThreshold:  50,
			RelaxedThreshold: 40,
		},
		HoldMargin: 0.1,
	})
}

func testStocks(symbols ...string) []model.Stock {
	stocks := make([]model.Stock, len(symbols))
	for i, s := range symbols {
		stocks[i] = model.Stock{Symbol: s}
	}
	return stocks
}

func TestScanner_CollectsSignalsAndDataErrors(t *testing.T) {
	p := &stubProvider{candles: map[string][]model.Candle{
		"NVDA": trendCandles(260, 50, 0.5),
		"IPO":  trendCandles(60, 20, 0.1),
	}}
	s := NewScanner(p, testBuilder(), 4, 0, time.Minute)

	var progress int32
	s.SetProgressCallback(func(scanned, total int) {
		atomic.StoreInt32(&progress, int32(scanned))
	})

	res, err := s.Scan(context.Background(), testStocks("NVDA", "IPO", "GONE"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if res.Scanned != 3 || atomic.LoadInt32(&progress) != 3 {
		t.Errorf("Expected 3 scanned, got %d (progress %d)", res.Scanned, progress)
	}
	if _, ok := res.Signal("NVDA"); !ok {
		t.Error("Expected NVDA signals")
	}
	if sig, ok := res.Signal("IPO"); !ok || !sig.InsufficientData {
		t.Error("Expected IPO signals flagged insufficient")
	}
	if _, ok := res.Signal("GONE"); ok {
		t.Error("Expected no signals for symbol without data")
	}

	if len(res.DataErrors) != 2 {
		t.Fatalf("Expected 2 data errors, got %d", len(res.DataErrors))
	}
	if res.DataErrors[0].Symbol != "GONE" || res.DataErrors[1].Symbol != "IPO" {
		t.Errorf("Expected sorted GONE, IPO, got %s, %s", res.DataErrors[0].Symbol, res.DataErrors[1].Symbol)
	}
}

func TestScanner_UpstreamFailureAborts(t *testing.T) {
	upstream := &provider.UpstreamFetchError{Provider: "stub", Symbol: "AAPL", Attempts: 5, Err: errors.New("503")}
	p := &stubProvider{
		candles: map[string][]model.Candle{"NVDA": trendCandles(260, 50, 0.5)},
		errs:    map[string]error{"AAPL": upstream},
	}
	s := NewScanner(p, testBuilder(), 1, 0, time.Minute)

	res, err := s.Scan(context.Background(), testStocks("AAPL", "NVDA"))
	if res != nil {
		t.Error("Expected no result on upstream failure")
	}
	var ufe *provider.UpstreamFetchError
	if !errors.As(err, &ufe) {
		t.Fatalf("Expected UpstreamFetchError, got %v", err)
	}
	if ufe.Symbol != "AAPL" {
		t.Errorf("Expected AAPL, got %s", ufe.Symbol)
	}
}

func TestScreen_BuyCandidatesAndHeldSignals(t *testing.T) {
	p := &stubProvider{candles: map[string][]model.Candle{
		"NVDA": trendCandles(260, 50, 0.5),
		"DOWN": trendCandles(260, 200, -0.5),
	}}
	res, err := NewScanner(p, testBuilder(), 2, 0, time.Minute).Scan(context.Background(), testStocks("NVDA", "DOWN"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	sc := Screen(res, map[string]int{"DOWN": 10, "NVDA": 3}, 50, 40)

	if len(sc.Candidates) != 1 {
		t.Fatalf("Expected 1 candidate, got %+v", sc.Candidates)
	}
	c := sc.Candidates[0]
	if c.Symbol != "NVDA" || c.CurrentQuantity != 3 || c.CurrentPrice != 179.5 {
		t.Errorf("Unexpected candidate: %+v", c)
	}
	if c.Weight < 97.99 || c.Weight > 98.01 {
		t.Errorf("Expected weight ~98, got %f", c.Weight)
	}

	down, ok := sc.Market["DOWN"]
	if !ok {
		t.Fatal("Expected market signal for held DOWN")
	}
	if down.TrendValid {
		t.Error("Expected falling symbol to fail the hold screen")
	}
	if !sc.Market["NVDA"].TrendValid {
		t.Error("Expected NVDA to pass the hold screen")
	}
}

func TestScreen_HoldRequiresRelaxedCorrelation(t *testing.T) {
	weak := &analyzer.Signals{
		Symbol: "WEAK",
		Price:  101,
		Hold:   analyzer.TrendResult{TrendValid: true},
		AVSL: analyzer.AVSLResult{
			Windows:      []int{200, 100, 50},
			Correlations: []float64{45, 42, 30},
			Peak:         45,
			Latest:       30,
			Evaluated:    true,
		},
	}
	steady := &analyzer.Signals{
		Symbol: "STEADY",
		Price:  101,
		Hold:   analyzer.TrendResult{TrendValid: true},
		AVSL: analyzer.AVSLResult{
			Windows:      []int{200, 100, 50},
			Correlations: []float64{45, 42, 41},
			Evaluated:    true,
		},
	}
	short := &analyzer.Signals{
		Symbol: "SHORT",
		Price:  101,
		Hold:   analyzer.TrendResult{TrendValid: true},
	}
	res := &Result{Signals: map[string]*analyzer.Signals{"WEAK": weak, "STEADY": steady, "SHORT": short}}

	sc := Screen(res, map[string]int{"WEAK": 5, "STEADY": 5, "SHORT": 5}, 50, 40)

	if sc.Market["WEAK"].TrendValid || sc.Market["WEAK"].InsufficientData {
		t.Errorf("Expected WEAK to fail the hold screen on correlation 30, got %+v", sc.Market["WEAK"])
	}
	if !sc.Market["STEADY"].TrendValid {
		t.Errorf("Expected STEADY to pass with correlation 41, got %+v", sc.Market["STEADY"])
	}
	if !sc.Market["SHORT"].InsufficientData {
		t.Errorf("Expected missing correlation to mark insufficient data, got %+v", sc.Market["SHORT"])
	}

	engine := trader.NewSellDecisionEngine(trader.SellConfig{StopLossPct: 0.07, TrailingPct: 0.10, ActivationPct: 0.05})
	pos := trader.Position{Symbol: "WEAK", EntryPrice: 100, CurrentPrice: 101, Quantity: 5}
	if d := engine.Decide(pos, nil, sc.Market["WEAK"]); d.Reason != trader.ReasonTrend {
		t.Errorf("Expected TREND sell, got %s", d.Reason)
	}
	pos.Symbol = "SHORT"
	if d := engine.Decide(pos, nil, sc.Market["SHORT"]); d.Reason != trader.ReasonNone {
		t.Errorf("Expected hold without correlation data, got %s", d.Reason)
	}
}
