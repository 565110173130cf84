package trader

import (
	"github.com/shopspring/decimal"
)

// AllocationResult 종목별 매수 지시
type AllocationResult struct {
	Symbol           string          `json:"symbol"`
	CurrentPrice     float64         `json:"current_price"`
	CurrentQuantity  int             `json:"current_quantity"`
	InvestmentAmount decimal.Decimal `json:"investment_amount"`
	TargetQuantity   int             `json:"target_quantity"`
	SharesToBuy      int             `json:"shares_to_buy"`
	IsNewBuy         bool            `json:"is_new_buy"`
	ActualInvestment decimal.Decimal `json:"actual_investment"`
}

// PositionSizer converts an investment amount into a share count
type PositionSizer struct{}

// NewPositionSizer 생성자
func NewPositionSizer() *PositionSizer {
	return &PositionSizer{}
}

// Size computes target = floor(investment / price).
// New buy (no current quantity): buy the target.
// Additional buy: buy max(target - current, 0).
func (p *PositionSizer) Size(c BuyCandidate, investment decimal.Decimal) AllocationResult {
	result := AllocationResult{
		Symbol:           c.Symbol,
		CurrentPrice:     c.CurrentPrice,
		CurrentQuantity:  c.CurrentQuantity,
		InvestmentAmount: investment,
		IsNewBuy:         c.CurrentQuantity == 0,
		ActualInvestment: decimal.Zero,
	}
	if c.CurrentPrice <= 0 || !investment.IsPositive() {
		return result
	}

	price := decimal.NewFromFloat(c.CurrentPrice)
	result.TargetQuantity = int(investment.Div(price).Floor().IntPart())

	if result.IsNewBuy {
		result.SharesToBuy = result.TargetQuantity
	} else if result.TargetQuantity > c.CurrentQuantity {
		result.SharesToBuy = result.TargetQuantity - c.CurrentQuantity
	}

	result.ActualInvestment = price.Mul(decimal.NewFromInt(int64(result.SharesToBuy)))
	return result
}

// SizePlan sizes every allocation of a plan
func (p *PositionSizer) SizePlan(plan AllocationPlan) []AllocationResult {
	results := make([]AllocationResult, 0, len(plan.Allocations))
	for _, a := range plan.Allocations {
		results = append(results, p.Size(a.Candidate, a.Amount))
	}
	return results
}

// BuySummary 매수 요약
type BuySummary struct {
	Orders          int             `json:"orders"`
	NewBuys         int             `json:"new_buys"`
	AdditionalBuys  int             `json:"additional_buys"`
	TotalShares     int             `json:"total_shares"`
	TotalInvestment decimal.Decimal `json:"total_investment"`
	TotalActual     decimal.Decimal `json:"total_actual"`
}

// Summarize totals the sizing results that actually buy something
func Summarize(results []AllocationResult) BuySummary {
	s := BuySummary{TotalInvestment: decimal.Zero, TotalActual: decimal.Zero}
	for _, r := range results {
		s.TotalInvestment = s.TotalInvestment.Add(r.InvestmentAmount)
		if r.SharesToBuy <= 0 {
			continue
		}
		s.Orders++
		if r.IsNewBuy {
			s.NewBuys++
		} else {
			s.AdditionalBuys++
		}
		s.TotalShares += r.SharesToBuy
		s.TotalActual = s.TotalActual.Add(r.ActualInvestment)
	}
	return s
}
