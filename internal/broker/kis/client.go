package kis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"stockfinder/internal/broker"
	"stockfinder/internal/ratelimit"
)

const (
	orderPath       = "/uapi/overseas-stock/v1/trading/order"
	balancePath     = "/uapi/overseas-stock/v1/trading/inquire-balance"
	buyingPowerPath = "/uapi/overseas-stock/v1/trading/inquire-psamount"
)

// Options KIS 클라이언트 설정
type Options struct {
	BaseURL           string
	TokenCacheDir     string
	Exchanges         []string // 잔고 합산 대상
	RequestsPerMinute int
	Timeout           time.Duration
}

// Client KIS 해외주식 API 클라이언트
type Client struct {
	creds     Credentials
	baseURL   string
	exchanges []string
	tokens    *TokenManager
	http      *http.Client
	limiter   *ratelimit.Limiter

	mu         sync.RWMutex
	symbolExch map[string]string // 종목별 거래소 (잔고 > 유니버스)
}

// NewClient KIS 클라이언트 생성
func NewClient(creds Credentials, opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = BaseURL
	}
	if len(opts.Exchanges) == 0 {
		opts.Exchanges = DefaultExchanges
	}
	if opts.RequestsPerMinute <= 0 {
		opts.RequestsPerMinute = 300 // 초당 5회
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	return &Client{
		creds:      creds,
		baseURL:    opts.BaseURL,
		exchanges:  opts.Exchanges,
		tokens:     NewTokenManager(creds, opts.BaseURL, opts.TokenCacheDir),
		http:       &http.Client{Timeout: opts.Timeout},
		limiter:    ratelimit.NewLimiter("kis", opts.RequestsPerMinute),
		symbolExch: make(map[string]string),
	}
}

// Name 브로커 이름
func (c *Client) Name() string {
	return "kis"
}

// statusChecker 응답 구조체 (apiStatus 내장)
type statusChecker interface {
	check(trID string) error
}

// call sends one request and decodes the response into out.
// A non-zero rt_cd comes back as *APIError.
func (c *Client) call(ctx context.Context, method, path string, query url.Values, trID string, in any, out statusChecker) error {
	raw, err := c.send(ctx, method, path, query, trID, in)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s response: %w", trID, err)
	}
	return out.check(trID)
}

// send 인증 헤더를 붙여 요청, 2xx 본문 반환
func (c *Client) send(ctx context.Context, method, path string, query url.Values, trID string, in any) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}
	token, err := c.tokens.GetToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("get token: %w", err)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var payload io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encode %s request: %w", trID, err)
		}
		payload = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, payload)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", trID, err)
	}
	h := req.Header
	h.Set("Content-Type", "application/json; charset=utf-8")
	h.Set("authorization", "Bearer "+token)
	h.Set("appkey", c.creds.AppKey)
	h.Set("appsecret", c.creds.AppSecret)
	h.Set("tr_id", trID)
	h.Set("custtype", "P") // 개인

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", trID, err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		c.limiter.ResetBackoff()
		return raw, nil
	case http.StatusTooManyRequests:
		c.limiter.SignalRateLimited()
		return nil, fmt.Errorf("%s rate limited: %s", trID, string(raw))
	case http.StatusUnauthorized:
		c.tokens.Invalidate()
		return nil, fmt.Errorf("%s unauthorized: %s", trID, string(raw))
	default:
		return nil, fmt.Errorf("%s status %d: %s", trID, resp.StatusCode, string(raw))
	}
}

// account 계좌번호 XXXXXXXX-XX 를 (CANO, ACNT_PRDT_CD) 로 분리
func (c *Client) account() (string, string, error) {
	cano, prdt, ok := strings.Cut(c.creds.AccountNo, "-")
	if !ok || cano == "" || prdt == "" || strings.Contains(prdt, "-") {
		return "", "", fmt.Errorf("invalid account number %q (expected XXXXXXXX-XX)", c.creds.AccountNo)
	}
	return cano, prdt, nil
}

func accountQuery(cano, prdt string) url.Values {
	q := url.Values{}
	q.Set("CANO", cano)
	q.Set("ACNT_PRDT_CD", prdt)
	return q
}

// exchangeFor 주문 거래소 결정: 지정값 > 알려진 값 > 나스닥
func (c *Client) exchangeFor(order broker.Order) string {
	if order.Exchange != "" {
		return NormalizeExchange(order.Exchange)
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if ex, ok := c.symbolExch[order.Symbol]; ok {
		return ex
	}
	return ExchangeNASDAQ
}

// NormalizeExchange maps listing names (Nasdaq, NYSE, 나스닥, 뉴욕) to KIS codes
func NormalizeExchange(name string) string {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "NYSE", "NYS", "뉴욕":
		return ExchangeNYSE
	case "AMEX", "AMS", "아멕스":
		return ExchangeAMEX
	default:
		return ExchangeNASDAQ
	}
}

// PlaceOrder submits a market (price "0") or limit order.
// A rejection returns both a result with status "rejected" and an error.
func (c *Client) PlaceOrder(ctx context.Context, order broker.Order) (*broker.OrderResult, error) {
	cano, prdt, err := c.account()
	if err != nil {
		return nil, err
	}
	if order.Quantity <= 0 {
		return nil, fmt.Errorf("invalid quantity %d for %s", order.Quantity, order.Symbol)
	}

	trID := TrIDSellReal
	if order.Side == broker.OrderSideBuy {
		trID = TrIDBuyReal
	}

	body := orderRequest{
		CANO:            cano,
		ACNT:            prdt,
		OVRS_EXCG_CD:    c.exchangeFor(order),
		PDNO:            order.Symbol,
		ORD_QTY:         strconv.Itoa(order.Quantity),
		OVRS_ORD_UNPR:   strconv.FormatFloat(order.LimitPrice, 'f', 2, 64),
		ORD_SVR_DVSN_CD: "0",
		ORD_DVSN:        "00", // 지정가
	}
	if order.Type == broker.OrderTypeMarket {
		body.OVRS_ORD_UNPR = "0"
		body.ORD_DVSN = "01"
	}

	result := &broker.OrderResult{
		Symbol:      order.Symbol,
		Side:        order.Side,
		Type:        order.Type,
		Quantity:    order.Quantity,
		SubmittedAt: time.Now(),
	}

	var resp orderResponse
	err = c.call(ctx, http.MethodPost, orderPath, nil, trID, body, &resp)
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr):
		result.Status = "rejected"
		result.Message = fmt.Sprintf("[%s] %s", apiErr.Code, apiErr.Message)
		return result, fmt.Errorf("order %s %s: %w", order.Side, order.Symbol, err)
	case err != nil:
		return nil, fmt.Errorf("order %s %s: %w", order.Side, order.Symbol, err)
	}

	result.OrderID = resp.Output.ODNO
	result.Status = "submitted"
	result.Message = resp.Msg1
	return result, nil
}

// GetBalance merges holdings over the configured exchanges (first row per
// symbol wins) and reads the account-level USD buying power once.
func (c *Client) GetBalance(ctx context.Context) (*broker.AccountBalance, error) {
	cano, prdt, err := c.account()
	if err != nil {
		return nil, err
	}

	balance := &broker.AccountBalance{Currency: "USD"}
	seen := make(map[string]bool)

	for _, exch := range c.exchanges {
		q := accountQuery(cano, prdt)
		q.Set("OVRS_EXCG_CD", exch)
		q.Set("TR_CRCY_CD", "USD")
		q.Set("CTX_AREA_FK200", "")
		q.Set("CTX_AREA_NK200", "")

		var resp balanceResponse
		if err := c.call(ctx, http.MethodGet, balancePath, q, TrIDBalanceReal, nil, &resp); err != nil {
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				// 만료 토큰이 rt_cd 로 오는 경우가 있어 다음 호출에서 재발급
				c.tokens.Invalidate()
			}
			return nil, fmt.Errorf("balance %s: %w", exch, err)
		}

		for _, row := range resp.Output1 {
			qty := parseFloat(row.OVRS_CBLC_QTY)
			if qty <= 0 || seen[row.OVRS_PDNO] {
				continue
			}
			seen[row.OVRS_PDNO] = true

			listed := exch
			if row.OVRS_EXCG_CD != "" {
				listed = NormalizeExchange(row.OVRS_EXCG_CD)
			}
			c.mu.Lock()
			c.symbolExch[row.OVRS_PDNO] = listed
			c.mu.Unlock()

			pos := broker.Position{
				Symbol:       row.OVRS_PDNO,
				Exchange:     listed,
				Quantity:     int(qty),
				AvgCost:      parseFloat(row.PCHS_AVG_PRIC),
				CurrentPrice: parseFloat(row.NOW_PRIC2),
				MarketValue:  parseFloat(row.OVRS_STCK_EVLU_AMT),
			}
			balance.Positions = append(balance.Positions, pos)
			balance.TotalEquity += pos.MarketValue
		}
	}

	cash, err := c.buyingPower(ctx, cano, prdt)
	if err != nil {
		return nil, fmt.Errorf("buying power: %w", err)
	}
	balance.CashBalance = cash
	balance.TotalEquity += cash

	log.Printf("[KIS] Balance: %d positions across %v, cash $%.2f", len(balance.Positions), c.exchanges, cash)
	return balance, nil
}

// buyingPower 외화 주문가능금액 (USD)
func (c *Client) buyingPower(ctx context.Context, cano, prdt string) (float64, error) {
	q := accountQuery(cano, prdt)
	q.Set("OVRS_EXCG_CD", ExchangeNASDAQ)
	q.Set("OVRS_ORD_UNPR", "0")
	q.Set("ITEM_CD", "AAPL") // 종목 지정 필수, 금액은 계좌 단위

	var resp buyingPowerResponse
	if err := c.call(ctx, http.MethodGet, buyingPowerPath, q, TrIDBuyingPower, nil, &resp); err != nil {
		return 0, err
	}
	return parseFloat(resp.Output.ORD_PSBL_FRCR_AMT), nil
}

// parseFloat KIS 숫자 문자열 (빈 값 = 0)
func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}
