package scanner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"stockfinder/internal/analyzer"
	"stockfinder/internal/provider"
	"stockfinder/pkg/model"
)

// 52주 고저 + MA200 한 달 전 값을 계산할 수 있는 최소 히스토리
const DefaultHistoryDays = analyzer.TradingDaysPerYear + analyzer.MA200LookbackSessions + 10

// ProgressCallback is called with progress updates
type ProgressCallback func(scanned, total int)

// Result 스캔 결과
type Result struct {
	Signals    map[string]*analyzer.Signals
	DataErrors []*analyzer.DataQualityError // sorted by symbol
	Scanned    int
	ScanTime   time.Duration
}

// Signal returns the signals of a symbol, if any
func (r *Result) Signal(symbol string) (*analyzer.Signals, bool) {
	s, ok := r.Signals[symbol]
	return s, ok
}

// Scanner fetches daily candles in parallel and builds per-symbol signals
type Scanner struct {
	provider     provider.Provider
	builder      *analyzer.SignalBuilder
	workers      int
	days         int
	timeout      time.Duration
	progressFunc ProgressCallback
}

// NewScanner creates a new scanner
func NewScanner(p provider.Provider, b *analyzer.SignalBuilder, workers, days int, timeout time.Duration) *Scanner {
	if workers < 1 {
		workers = 1
	}
	if days <= 0 {
		days = DefaultHistoryDays
	}
	return &Scanner{
		provider: p,
		builder:  b,
		workers:  workers,
		days:     days,
		timeout:  timeout,
	}
}

// SetProgressCallback sets the progress callback function
func (s *Scanner) SetProgressCallback(fn ProgressCallback) {
	s.progressFunc = fn
}

type scanOutcome struct {
	symbol  string
	signals *analyzer.Signals
	dqErr   *analyzer.DataQualityError
	fatal   error
}

// Scan evaluates every stock. Missing or short history is collected per symbol
// as a DataQualityError; any other fetch failure cancels the scan and is returned.
func (s *Scanner) Scan(ctx context.Context, stocks []model.Stock) (*Result, error) {
	startTime := time.Now()
	result := &Result{Signals: make(map[string]*analyzer.Signals)}
	if len(stocks) == 0 {
		return result, nil
	}

	if s.timeout > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, s.timeout)
		defer cancelTimeout()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobChan := make(chan model.Stock, len(stocks))
	resultChan := make(chan scanOutcome, len(stocks))
	for _, stock := range stocks {
		jobChan <- stock
	}
	close(jobChan)

	var scannedCount int64

	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for stock := range jobChan {
				if ctx.Err() != nil {
					return
				}
				out := s.scanOne(ctx, stock.Symbol)
				if out.fatal != nil {
					cancel()
				}
				resultChan <- out

				count := atomic.AddInt64(&scannedCount, 1)
				if s.progressFunc != nil {
					s.progressFunc(int(count), len(stocks))
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	var fatal error
	for out := range resultChan {
		result.Scanned++
		if out.fatal != nil {
			if fatal == nil || errors.Is(fatal, context.Canceled) {
				fatal = out.fatal
			}
			continue
		}
		if out.signals != nil {
			result.Signals[out.symbol] = out.signals
		}
		if out.dqErr != nil {
			result.DataErrors = append(result.DataErrors, out.dqErr)
		}
	}
	result.ScanTime = time.Since(startTime)

	if fatal == nil && ctx.Err() != nil && result.Scanned < len(stocks) {
		fatal = ctx.Err()
	}
	if fatal != nil {
		return nil, fatal
	}

	sort.Slice(result.DataErrors, func(i, j int) bool {
		return result.DataErrors[i].Symbol < result.DataErrors[j].Symbol
	})
	log.Printf("[SCAN] %d symbols in %s (%d with data issues)",
		result.Scanned, result.ScanTime.Round(time.Millisecond), len(result.DataErrors))
	return result, nil
}

func (s *Scanner) scanOne(ctx context.Context, symbol string) scanOutcome {
	out := scanOutcome{symbol: symbol}

	candles, err := s.provider.GetDailyCandles(ctx, symbol, s.days)
	if err != nil {
		if provider.IsNoData(err) {
			out.dqErr = &analyzer.DataQualityError{Symbol: symbol, Reason: err.Error()}
			return out
		}
		out.fatal = fmt.Errorf("fetch %s: %w", symbol, err)
		return out
	}

	sig, err := s.builder.Build(symbol, candles)
	out.signals = sig
	var dq *analyzer.DataQualityError
	if errors.As(err, &dq) {
		out.dqErr = dq
	}
	return out
}
