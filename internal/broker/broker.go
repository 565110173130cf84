package broker

import (
	"context"
	"time"
)

// OrderType 주문 유형
type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
)

// OrderSide 매수/매도
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// Order 주문 요청
type Order struct {
	Symbol     string
	Exchange   string // 비어 있으면 브로커가 판단
	Side       OrderSide
	Type       OrderType
	Quantity   int
	LimitPrice float64 // limit 주문시 가격
	Reason     string  // 매도 사유 등 (로그용)
}

// OrderResult 주문 결과
type OrderResult struct {
	OrderID     string    `json:"order_id"`
	Symbol      string    `json:"symbol"`
	Side        OrderSide `json:"side"`
	Type        OrderType `json:"type"`
	Quantity    int       `json:"quantity"`
	Status      string    `json:"status"` // submitted, simulated, rejected
	Message     string    `json:"message,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Position 보유 포지션
type Position struct {
	Symbol       string  `json:"symbol"`
	Exchange     string  `json:"exchange"`
	Quantity     int     `json:"quantity"`
	AvgCost      float64 `json:"avg_cost"`
	CurrentPrice float64 `json:"current_price"`
	MarketValue  float64 `json:"market_value"`
}

// AccountBalance 계좌 잔고 (거래소별 합산)
type AccountBalance struct {
	Currency    string     `json:"currency"`
	CashBalance float64    `json:"cash_balance"`
	TotalEquity float64    `json:"total_equity"`
	Positions   []Position `json:"positions"`
}

// Broker 브로커 인터페이스
type Broker interface {
	// Name 브로커 이름
	Name() string

	// PlaceOrder 주문 제출
	PlaceOrder(ctx context.Context, order Order) (*OrderResult, error)

	// GetBalance 보유 종목 + 현금
	GetBalance(ctx context.Context) (*AccountBalance, error)
}
