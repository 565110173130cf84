package trader

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestInvestmentAllocator_Equal(t *testing.T) {
	a := NewInvestmentAllocator(AllocatorConfig{ReserveRatio: 0.1, MinInvestment: 100, Mode: DistributionEqual})
	cands := []BuyCandidate{
		{Symbol: "AAA", CurrentPrice: 10},
		{Symbol: "BBB", CurrentPrice: 20},
		{Symbol: "CCC", CurrentPrice: 30},
	}

	plan := a.Allocate(cands, decimal.NewFromInt(10000))
	if !plan.Investable.Equal(decimal.NewFromInt(9000)) {
		t.Errorf("Expected investable 9000, got %s", plan.Investable)
	}
	if len(plan.Allocations) != 3 {
		t.Fatalf("Expected 3 allocations, got %d", len(plan.Allocations))
	}
	for _, al := range plan.Allocations {
		if !al.Amount.Equal(decimal.NewFromInt(3000)) {
			t.Errorf("Expected 3000 for %s, got %s", al.Candidate.Symbol, al.Amount)
		}
	}
}

func TestInvestmentAllocator_Proportional(t *testing.T) {
	a := NewInvestmentAllocator(AllocatorConfig{Mode: DistributionProportional})
	cands := []BuyCandidate{
		{Symbol: "LOW", CurrentPrice: 10, Weight: 1},
		{Symbol: "HIGH", CurrentPrice: 10, Weight: 3},
	}

	plan := a.Allocate(cands, decimal.NewFromInt(10000))
	if len(plan.Allocations) != 2 {
		t.Fatalf("Expected 2 allocations, got %d", len(plan.Allocations))
	}
	if plan.Allocations[0].Candidate.Symbol != "HIGH" {
		t.Errorf("Expected heaviest weight first, got %s", plan.Allocations[0].Candidate.Symbol)
	}
	if !plan.Allocations[0].Amount.Equal(decimal.NewFromInt(7500)) {
		t.Errorf("Expected 7500 for HIGH, got %s", plan.Allocations[0].Amount)
	}
	if !plan.Allocations[1].Amount.Equal(decimal.NewFromInt(2500)) {
		t.Errorf("Expected 2500 for LOW, got %s", plan.Allocations[1].Amount)
	}
}

func TestInvestmentAllocator_ProportionalTieBreak(t *testing.T) {
	a := NewInvestmentAllocator(AllocatorConfig{Mode: DistributionProportional})
	cands := []BuyCandidate{
		{Symbol: "ZZZ", CurrentPrice: 1, Weight: 2},
		{Symbol: "AAA", CurrentPrice: 1, Weight: 2},
	}

	plan := a.Allocate(cands, decimal.NewFromInt(1000))
	if plan.Allocations[0].Candidate.Symbol != "AAA" {
		t.Errorf("Expected ties broken by symbol, got %s first", plan.Allocations[0].Candidate.Symbol)
	}
}

func TestInvestmentAllocator_ProportionalZeroWeightsFallback(t *testing.T) {
	a := NewInvestmentAllocator(AllocatorConfig{Mode: DistributionProportional})
	cands := []BuyCandidate{
		{Symbol: "A", CurrentPrice: 1},
		{Symbol: "B", CurrentPrice: 1},
	}

	plan := a.Allocate(cands, decimal.NewFromInt(1000))
	for _, al := range plan.Allocations {
		if !al.Amount.Equal(decimal.NewFromInt(500)) {
			t.Errorf("Expected equal fallback 500, got %s", al.Amount)
		}
	}
}

func TestInvestmentAllocator_ClampAndDrop(t *testing.T) {
	a := NewInvestmentAllocator(AllocatorConfig{MinInvestment: 100, MaxInvestment: 2000, Mode: DistributionEqual})
	cands := []BuyCandidate{
		{Symbol: "CHEAP", CurrentPrice: 10},
		{Symbol: "PRICEY", CurrentPrice: 5000},
	}

	plan := a.Allocate(cands, decimal.NewFromInt(10000))
	if len(plan.Allocations) != 1 || plan.Allocations[0].Candidate.Symbol != "CHEAP" {
		t.Fatalf("Expected only CHEAP allocated, got %+v", plan.Allocations)
	}
	if !plan.Allocations[0].Amount.Equal(decimal.NewFromInt(2000)) {
		t.Errorf("Expected cap at 2000, got %s", plan.Allocations[0].Amount)
	}
	if len(plan.Dropped) != 1 || plan.Dropped[0].Symbol != "PRICEY" {
		t.Errorf("Expected PRICEY dropped for price, got %+v", plan.Dropped)
	}
}

func TestInvestmentAllocator_BelowMinimum(t *testing.T) {
	a := NewInvestmentAllocator(AllocatorConfig{MinInvestment: 100, Mode: DistributionEqual})
	cands := []BuyCandidate{
		{Symbol: "A", CurrentPrice: 1},
		{Symbol: "B", CurrentPrice: 1},
		{Symbol: "C", CurrentPrice: 1},
	}

	plan := a.Allocate(cands, decimal.NewFromInt(250))
	if len(plan.Allocations) != 0 {
		t.Errorf("Expected all dropped below minimum, got %d allocations", len(plan.Allocations))
	}
	if len(plan.Dropped) != 3 {
		t.Errorf("Expected 3 dropped candidates reported, got %d", len(plan.Dropped))
	}
}

func TestInvestmentAllocator_SumNeverExceedsInvestable(t *testing.T) {
	a := NewInvestmentAllocator(AllocatorConfig{Mode: DistributionProportional})
	cands := []BuyCandidate{
		{Symbol: "A", CurrentPrice: 1, Weight: 1},
		{Symbol: "B", CurrentPrice: 1, Weight: 1},
		{Symbol: "C", CurrentPrice: 1, Weight: 1},
	}

	plan := a.Allocate(cands, decimal.NewFromInt(100))
	if plan.Allocated.GreaterThan(plan.Investable) {
		t.Errorf("Allocated %s exceeds investable %s", plan.Allocated, plan.Investable)
	}
	if !plan.Allocated.Equal(decimal.RequireFromString("99.99")) {
		t.Errorf("Expected 3 x 33.33 = 99.99, got %s", plan.Allocated)
	}
}

func TestInvestmentAllocator_InvalidPrice(t *testing.T) {
	a := NewInvestmentAllocator(AllocatorConfig{Mode: DistributionEqual})
	plan := a.Allocate([]BuyCandidate{{Symbol: "BAD"}}, decimal.NewFromInt(1000))
	if len(plan.Allocations) != 0 || len(plan.Dropped) != 1 {
		t.Errorf("Expected BAD dropped for invalid price, got %+v", plan)
	}
}

func TestParseDistributionMode(t *testing.T) {
	if m, err := ParseDistributionMode("EQUAL"); err != nil || m != DistributionEqual {
		t.Errorf("Expected equal, got %s (%v)", m, err)
	}
	if _, err := ParseDistributionMode("random"); err == nil {
		t.Error("Expected error for unknown mode")
	}
}
