package trader

import (
	"context"
	"fmt"
	"log"
	"strings"

	"stockfinder/internal/broker"
	"stockfinder/internal/retry"
)

// ExecutionResult 주문 실행 결과
type ExecutionResult struct {
	Order   broker.Order        `json:"order"`
	Result  *broker.OrderResult `json:"result,omitempty"`
	Success bool                `json:"success"`
	Error   string              `json:"error,omitempty"`
}

// Executor turns cycle decisions into broker orders.
// dryRun 이면 브로커를 호출하지 않는다.
type Executor struct {
	broker    broker.Broker
	dryRun    bool
	policy    retry.Policy
	exchanges map[string]string
}

// NewExecutor 생성자. b may be nil in dry-run mode.
func NewExecutor(b broker.Broker, dryRun bool, policy retry.Policy) *Executor {
	return &Executor{
		broker:    b,
		dryRun:    dryRun,
		policy:    policy,
		exchanges: make(map[string]string),
	}
}

// SetExchanges 종목별 상장 거래소 (유니버스 CSV 기준)
func (e *Executor) SetExchanges(m map[string]string) {
	for sym, ex := range m {
		e.exchanges[sym] = ex
	}
}

// DryRun reports whether orders are simulated
func (e *Executor) DryRun() bool {
	return e.dryRun
}

// Execute 단일 주문 실행
func (e *Executor) Execute(ctx context.Context, order broker.Order) ExecutionResult {
	result := ExecutionResult{Order: order}

	if e.dryRun {
		result.Success = true
		result.Result = &broker.OrderResult{
			OrderID:  "DRY-RUN",
			Symbol:   order.Symbol,
			Side:     order.Side,
			Type:     order.Type,
			Quantity: order.Quantity,
			Status:   "simulated",
			Message:  "Dry-run mode - no actual order placed",
		}
		log.Printf("[DRY-RUN] %s %s %d shares @ $%.2f (%s)",
			strings.ToUpper(string(order.Side)), order.Symbol, order.Quantity, order.LimitPrice, order.Reason)
		return result
	}
	if e.broker == nil {
		result.Error = "no broker configured"
		return result
	}

	var orderResult *broker.OrderResult
	attempts, err := retry.Do(ctx, e.policy, func(ctx context.Context) error {
		res, err := e.broker.PlaceOrder(ctx, order)
		if res != nil && res.Status == "rejected" {
			// 거부된 주문은 재시도해도 같은 결과
			orderResult = res
			if err == nil {
				err = fmt.Errorf("rejected: %s", res.Message)
			}
			return retry.Permanent(err)
		}
		if err != nil {
			return err
		}
		orderResult = res
		return nil
	})
	result.Result = orderResult
	if err != nil {
		result.Error = fmt.Sprintf("place order (%d attempts): %v", attempts, err)
		log.Printf("[ORDER] %s %s failed: %v", order.Side, order.Symbol, err)
		return result
	}

	result.Success = orderResult != nil
	log.Printf("[ORDER] %s %s %d shares submitted (id %s)", order.Side, order.Symbol, order.Quantity, orderResult.OrderID)
	return result
}

// ExecuteSells 매도는 항상 전량 시장가
func (e *Executor) ExecuteSells(ctx context.Context, sells []SellDecision) []ExecutionResult {
	results := make([]ExecutionResult, 0, len(sells))
	for _, d := range sells {
		if !d.IsSell() || d.Quantity <= 0 {
			continue
		}
		results = append(results, e.Execute(ctx, broker.Order{
			Symbol:   d.Symbol,
			Exchange: e.exchanges[d.Symbol],
			Side:     broker.OrderSideSell,
			Type:     broker.OrderTypeMarket,
			Quantity: d.Quantity,
			Reason:   string(d.Reason),
		}))
	}
	return results
}

// ExecuteBuys 매수는 현재가 지정가
func (e *Executor) ExecuteBuys(ctx context.Context, buys []AllocationResult) []ExecutionResult {
	results := make([]ExecutionResult, 0, len(buys))
	for _, b := range buys {
		if b.SharesToBuy <= 0 {
			continue
		}
		reason := "add"
		if b.IsNewBuy {
			reason = "new"
		}
		results = append(results, e.Execute(ctx, broker.Order{
			Symbol:     b.Symbol,
			Exchange:   e.exchanges[b.Symbol],
			Side:       broker.OrderSideBuy,
			Type:       broker.OrderTypeLimit,
			Quantity:   b.SharesToBuy,
			LimitPrice: b.CurrentPrice,
			Reason:     reason,
		}))
	}
	return results
}
