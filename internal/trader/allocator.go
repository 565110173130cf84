package trader

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// DistributionMode 투자금 배분 방식
type DistributionMode string

const (
	DistributionEqual        DistributionMode = "equal"
	DistributionProportional DistributionMode = "proportional"
)

// ParseDistributionMode parses a mode name (case-insensitive)
func ParseDistributionMode(s string) (DistributionMode, error) {
	switch DistributionMode(strings.ToLower(strings.TrimSpace(s))) {
	case DistributionEqual:
		return DistributionEqual, nil
	case DistributionProportional:
		return DistributionProportional, nil
	}
	return "", fmt.Errorf("unknown distribution mode %q (want equal or proportional)", s)
}

// AllocatorConfig 배분 설정
type AllocatorConfig struct {
	ReserveRatio  float64 // 현금 보유 비율 (0.1 = 10%)
	MinInvestment float64 // 종목당 최소 투자금
	MaxInvestment float64 // 종목당 최대 투자금 (0 = 제한 없음)
	Mode          DistributionMode
}

// BuyCandidate is a screened symbol eligible for buying
type BuyCandidate struct {
	Symbol          string  `json:"symbol"`
	CurrentPrice    float64 `json:"current_price"`
	CurrentQuantity int     `json:"current_quantity"`
	Weight          float64 `json:"weight"` // proportional mode only
}

// Allocation is the investment amount assigned to one candidate
type Allocation struct {
	Candidate BuyCandidate    `json:"candidate"`
	Amount    decimal.Decimal `json:"amount"`
}

// DroppedCandidate is a candidate removed by the allocator, with the reason
type DroppedCandidate struct {
	Symbol string          `json:"symbol"`
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason"`
}

// AllocationPlan is the allocator output
type AllocationPlan struct {
	Mode        DistributionMode   `json:"mode"`
	Balance     decimal.Decimal    `json:"balance"`
	Investable  decimal.Decimal    `json:"investable"`
	Allocated   decimal.Decimal    `json:"allocated"`
	Allocations []Allocation       `json:"allocations"`
	Dropped     []DroppedCandidate `json:"dropped,omitempty"`
}

// InvestmentAllocator splits the investable balance across candidates
type InvestmentAllocator struct {
	config AllocatorConfig
}

// NewInvestmentAllocator creates an allocator
func NewInvestmentAllocator(cfg AllocatorConfig) *InvestmentAllocator {
	return &InvestmentAllocator{config: cfg}
}

// Allocate distributes balance*(1-reserve) across the candidates.
// Each amount is truncated to cents and capped at MaxInvestment; amounts
// below MinInvestment or below one share are dropped with a reason.
// The sum of allocations never exceeds the investable balance.
func (a *InvestmentAllocator) Allocate(candidates []BuyCandidate, balance decimal.Decimal) AllocationPlan {
	plan := AllocationPlan{
		Mode:      a.config.Mode,
		Balance:   balance,
		Allocated: decimal.Zero,
	}

	investable := balance.Mul(decimal.NewFromFloat(1 - a.config.ReserveRatio)).Truncate(2)
	if investable.IsNegative() {
		investable = decimal.Zero
	}
	plan.Investable = investable

	ordered := make([]BuyCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.CurrentPrice <= 0 {
			plan.Dropped = append(plan.Dropped, DroppedCandidate{Symbol: c.Symbol, Amount: decimal.Zero, Reason: "invalid price"})
			continue
		}
		ordered = append(ordered, c)
	}
	if len(ordered) == 0 || !investable.IsPositive() {
		for _, c := range ordered {
			plan.Dropped = append(plan.Dropped, DroppedCandidate{Symbol: c.Symbol, Amount: decimal.Zero, Reason: "no investable balance"})
		}
		return plan
	}

	// 가중치 내림차순, 동률은 심볼 순
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Weight != ordered[j].Weight {
			return ordered[i].Weight > ordered[j].Weight
		}
		return ordered[i].Symbol < ordered[j].Symbol
	})

	shares := a.shares(ordered, investable)

	minInv := decimal.NewFromFloat(a.config.MinInvestment)
	maxInv := decimal.NewFromFloat(a.config.MaxInvestment)
	for i, c := range ordered {
		amount := shares[i].Truncate(2)
		if maxInv.IsPositive() && amount.GreaterThan(maxInv) {
			amount = maxInv
		}

		price := decimal.NewFromFloat(c.CurrentPrice)
		switch {
		case !amount.IsPositive():
			plan.Dropped = append(plan.Dropped, DroppedCandidate{Symbol: c.Symbol, Amount: amount, Reason: "zero weight"})
			continue
		case amount.LessThan(minInv):
			plan.Dropped = append(plan.Dropped, DroppedCandidate{
				Symbol: c.Symbol, Amount: amount,
				Reason: fmt.Sprintf("below minimum investment %s", minInv.StringFixed(2)),
			})
			continue
		case price.GreaterThan(amount):
			plan.Dropped = append(plan.Dropped, DroppedCandidate{
				Symbol: c.Symbol, Amount: amount,
				Reason: fmt.Sprintf("price %s exceeds allocation", price.StringFixed(2)),
			})
			continue
		}

		plan.Allocations = append(plan.Allocations, Allocation{Candidate: c, Amount: amount})
		plan.Allocated = plan.Allocated.Add(amount)
	}
	return plan
}

// shares returns the raw (untruncated) share of investable per candidate
func (a *InvestmentAllocator) shares(ordered []BuyCandidate, investable decimal.Decimal) []decimal.Decimal {
	out := make([]decimal.Decimal, len(ordered))

	if a.config.Mode == DistributionProportional {
		total := decimal.Zero
		for _, c := range ordered {
			if c.Weight > 0 {
				total = total.Add(decimal.NewFromFloat(c.Weight))
			}
		}
		if total.IsPositive() {
			for i, c := range ordered {
				if c.Weight <= 0 {
					out[i] = decimal.Zero
					continue
				}
				out[i] = investable.Mul(decimal.NewFromFloat(c.Weight)).Div(total)
			}
			return out
		}
		// 가중치가 모두 0 이하면 균등 배분
	}

	each := investable.Div(decimal.NewFromInt(int64(len(ordered))))
	for i := range out {
		out[i] = each
	}
	return out
}
