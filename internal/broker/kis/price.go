package kis

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"
)

// 해외주식 기간별시세
const (
	TrIDOverseasDailyPrice = "HHDFS76240000"
	dailyPricePath         = "/uapi/overseas-price/v1/quotations/dailyprice"
	dailyPricePageSize     = 100 // 1회 조회 최대 건수
)

// 시세 조회용 거래소 코드 (주문용 코드와 다름)
var priceExchangeCodes = map[string]string{
	ExchangeNASDAQ: "NAS",
	ExchangeNYSE:   "NYS",
	ExchangeAMEX:   "AMS",
}

// DailyPrice 일봉 한 건
type DailyPrice struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// dailyPriceResponse 기간별시세 응답
type dailyPriceResponse struct {
	apiStatus
	Output2 []struct {
		XYMD string `json:"xymd"` // 일자 YYYYMMDD
		CLOS string `json:"clos"` // 종가
		OPEN string `json:"open"`
		HIGH string `json:"high"`
		LOW  string `json:"low"`
		TVOL string `json:"tvol"` // 거래량
	} `json:"output2"`
}

// SetExchanges 종목별 거래소 등록 (유니버스 CSV 기준). 잔고에서 확인된 값이 우선
func (c *Client) SetExchanges(m map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for sym, ex := range m {
		if _, ok := c.symbolExch[sym]; !ok {
			c.symbolExch[sym] = NormalizeExchange(ex)
		}
	}
}

func (c *Client) priceExchangeFor(symbol string) string {
	c.mu.RLock()
	ex, ok := c.symbolExch[symbol]
	c.mu.RUnlock()
	if !ok {
		ex = ExchangeNASDAQ
	}
	return priceExchangeCodes[ex]
}

// GetDailyPrices 수정주가 일봉 조회 (과거 -> 최신). 100건씩 과거로 페이지 조회
func (c *Client) GetDailyPrices(ctx context.Context, symbol string, days int) ([]DailyPrice, error) {
	excd := c.priceExchangeFor(symbol)
	seen := make(map[string]bool)
	var prices []DailyPrice

	bymd := ""
	for len(prices) < days {
		q := url.Values{}
		q.Set("AUTH", "")
		q.Set("EXCD", excd)
		q.Set("SYMB", symbol)
		q.Set("GUBN", "0") // 일
		q.Set("BYMD", bymd)
		q.Set("MODP", "1") // 수정주가

		var resp dailyPriceResponse
		if err := c.call(ctx, http.MethodGet, dailyPricePath, q, TrIDOverseasDailyPrice, nil, &resp); err != nil {
			return nil, fmt.Errorf("daily price %s: %w", symbol, err)
		}

		var oldest time.Time
		added := 0
		for _, row := range resp.Output2 {
			d, err := time.Parse("20060102", row.XYMD)
			if err != nil || seen[row.XYMD] {
				continue
			}
			closePrice := parseFloat(row.CLOS)
			if closePrice <= 0 {
				continue
			}
			seen[row.XYMD] = true
			prices = append(prices, DailyPrice{
				Date:   d,
				Open:   parseFloat(row.OPEN),
				High:   parseFloat(row.HIGH),
				Low:    parseFloat(row.LOW),
				Close:  closePrice,
				Volume: int64(parseFloat(row.TVOL)),
			})
			added++
			if oldest.IsZero() || d.Before(oldest) {
				oldest = d
			}
		}

		if added == 0 || len(resp.Output2) < dailyPricePageSize {
			break
		}
		bymd = oldest.AddDate(0, 0, -1).Format("20060102")
	}

	// KIS 는 최신 -> 과거 순
	sort.Slice(prices, func(i, j int) bool { return prices[i].Date.Before(prices[j].Date) })
	if len(prices) > days {
		prices = prices[len(prices)-days:]
	}
	return prices, nil
}
