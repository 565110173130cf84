package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"stockfinder/internal/retry"
	"stockfinder/pkg/model"
)

const yahooFixture = `{"chart":{"result":[{"meta":{"symbol":"AAPL"},
"timestamp":[1704205800,1704292200,1704378600],
"indicators":{"quote":[{
"open":[185.0,184.2,null],
"high":[186.0,185.5,183.0],
"low":[183.5,183.4,181.9],
"close":[185.6,184.3,182.0],
"volume":[1000,1200,null]}]}}],"error":null}}`

func TestYahooProvider_GetDailyCandles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/AAPL") {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("interval") != "1d" {
			t.Errorf("Expected daily interval, got %s", r.URL.Query().Get("interval"))
		}
		fmt.Fprint(w, yahooFixture)
	}))
	defer srv.Close()

	p := NewYahooProvider(600, 5*time.Second).WithBaseURL(srv.URL)
	candles, err := p.GetDailyCandles(context.Background(), "AAPL", 10)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	// 세 번째 봉은 open 이 null -> 제외
	if len(candles) != 2 {
		t.Fatalf("Expected 2 candles, got %d", len(candles))
	}
	if candles[0].Close != 185.6 || candles[1].Volume != 1200 {
		t.Errorf("Unexpected candles: %+v", candles)
	}
	if !candles[0].Time.Before(candles[1].Time) {
		t.Error("Expected candles sorted oldest first")
	}
}

func TestYahooProvider_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	p := NewYahooProvider(600, 5*time.Second).WithBaseURL(srv.URL)
	_, err := p.GetDailyCandles(context.Background(), "NOPE", 10)

	if !IsNoData(err) {
		t.Errorf("Expected no-data error, got %v", err)
	}
	if IsRetryable(err) {
		t.Error("Expected 404 not retryable")
	}
}

func TestYahooProvider_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewYahooProvider(600, 5*time.Second).WithBaseURL(srv.URL)
	_, err := p.GetDailyCandles(context.Background(), "AAPL", 10)

	var pe *ProviderError
	if !errors.As(err, &pe) || !pe.Retryable {
		t.Errorf("Expected retryable ProviderError, got %v", err)
	}
}

// stubProvider fails a fixed number of times before succeeding
type stubProvider struct {
	failures int32
	calls    int32
	err      error
	candles  []model.Candle
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) GetDailyCandles(ctx context.Context, symbol string, days int) ([]model.Candle, error) {
	n := atomic.AddInt32(&s.calls, 1)
	if n <= s.failures {
		return nil, s.err
	}
	return s.candles, nil
}

func fastRetry(attempts int) retry.Policy {
	return retry.Policy{MaxAttempts: attempts, MinDelay: time.Millisecond, MaxDelay: time.Millisecond}
}

func TestRetryingProvider_RecoversFromTransientErrors(t *testing.T) {
	stub := &stubProvider{
		failures: 2,
		err:      &ProviderError{Provider: "stub", Err: errors.New("reset"), Retryable: true},
		candles:  []model.Candle{{Close: 1}},
	}

	candles, err := NewRetryingProvider(stub, fastRetry(5)).GetDailyCandles(context.Background(), "X", 5)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(candles) != 1 || stub.calls != 3 {
		t.Errorf("Expected success on third call, got %d candles after %d calls", len(candles), stub.calls)
	}
}

func TestRetryingProvider_ExhaustedBecomesUpstreamFetchError(t *testing.T) {
	stub := &stubProvider{
		failures: 100,
		err:      &ProviderError{Provider: "stub", Err: errors.New("503"), Retryable: true},
	}

	_, err := NewRetryingProvider(stub, fastRetry(3)).GetDailyCandles(context.Background(), "X", 5)

	var ufe *UpstreamFetchError
	if !errors.As(err, &ufe) {
		t.Fatalf("Expected UpstreamFetchError, got %v", err)
	}
	if ufe.Attempts != 3 || ufe.Symbol != "X" || ufe.Provider != "stub" {
		t.Errorf("Unexpected error fields: %+v", ufe)
	}
}

func TestRetryingProvider_NoDataNotRetried(t *testing.T) {
	stub := &stubProvider{
		failures: 100,
		err:      &ProviderError{Provider: "stub", Err: ErrNoData, Retryable: false},
	}

	_, err := NewRetryingProvider(stub, fastRetry(5)).GetDailyCandles(context.Background(), "X", 5)
	if stub.calls != 1 {
		t.Errorf("Expected a single call, got %d", stub.calls)
	}
	if !IsNoData(err) {
		t.Errorf("Expected no-data error passed through, got %v", err)
	}
	var ufe *UpstreamFetchError
	if errors.As(err, &ufe) {
		t.Error("Expected no-data not to be reported as an upstream failure")
	}
}

func TestCachingProvider_FetchesOnce(t *testing.T) {
	candles := make([]model.Candle, 300)
	for i := range candles {
		candles[i].Close = float64(i + 1)
	}
	stub := &stubProvider{candles: candles}
	p := NewCachingProvider(stub, 300)

	first, _ := p.GetDailyCandles(context.Background(), "AAPL", 250)
	second, _ := p.GetDailyCandles(context.Background(), "AAPL", 50)

	if stub.calls != 1 {
		t.Errorf("Expected one upstream call, got %d", stub.calls)
	}
	if len(first) != 250 || len(second) != 50 {
		t.Errorf("Expected tails of 250 and 50, got %d and %d", len(first), len(second))
	}
	if second[len(second)-1].Close != 300 {
		t.Errorf("Expected latest candle last, got %f", second[len(second)-1].Close)
	}
}

func TestCachingProvider_ErrorsNotCached(t *testing.T) {
	stub := &stubProvider{failures: 1, err: errors.New("boom"), candles: []model.Candle{{Close: 1}}}
	p := NewCachingProvider(stub, 10)

	if _, err := p.GetDailyCandles(context.Background(), "X", 10); err == nil {
		t.Fatal("Expected first call to fail")
	}
	if _, err := p.GetDailyCandles(context.Background(), "X", 10); err != nil {
		t.Errorf("Expected second call to refetch, got %v", err)
	}
	if p.Len() != 1 {
		t.Errorf("Expected 1 cached symbol, got %d", p.Len())
	}
}
