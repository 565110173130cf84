package trader

import (
	"log"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// CycleInput is the per-cycle snapshot handed to the engine
type CycleInput struct {
	Today      time.Time
	Positions  []Position
	Signals    map[string]MarketSignal // held symbols; missing entry = no market judgement
	Candidates []BuyCandidate
	Balance    decimal.Decimal
}

// StateChanges lists the state mutations applied after evaluation
type StateChanges struct {
	TrailingCreated []string `json:"trailing_created,omitempty"`
	TrailingRaised  []string `json:"trailing_raised,omitempty"`
	TrailingCleared []string `json:"trailing_cleared,omitempty"`
	CooldownsOpened []string `json:"cooldowns_opened,omitempty"`
}

// Empty reports whether nothing changed
func (c StateChanges) Empty() bool {
	return len(c.TrailingCreated) == 0 && len(c.TrailingRaised) == 0 &&
		len(c.TrailingCleared) == 0 && len(c.CooldownsOpened) == 0
}

// SkippedCandidate is a buy candidate excluded before allocation
type SkippedCandidate struct {
	Symbol string `json:"symbol"`
	Reason string `json:"reason"`
}

// CycleResult is everything one cycle produced
type CycleResult struct {
	Decisions map[string]SellDecision `json:"decisions"`
	Skipped   []SkippedCandidate      `json:"skipped,omitempty"`
	Plan      AllocationPlan          `json:"plan"`
	Buys      []AllocationResult      `json:"buys"`
	Changes   StateChanges            `json:"changes"`
}

// Sells returns the firing decisions sorted by symbol
func (r *CycleResult) Sells() []SellDecision {
	var out []SellDecision
	for _, d := range r.Decisions {
		if d.IsSell() {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Cycle runs one evaluation pass: sells, state mutation, then buys.
type Cycle struct {
	sell      *SellDecisionEngine
	trailing  *TrailingStore
	cooldowns *CooldownTracker
	allocator *InvestmentAllocator
	sizer     *PositionSizer
	workers   int
}

// NewCycle wires the engine components
func NewCycle(sell *SellDecisionEngine, trailing *TrailingStore, cooldowns *CooldownTracker,
	allocator *InvestmentAllocator, sizer *PositionSizer, workers int) *Cycle {
	if workers < 1 {
		workers = 1
	}
	return &Cycle{
		sell:      sell,
		trailing:  trailing,
		cooldowns: cooldowns,
		allocator: allocator,
		sizer:     sizer,
		workers:   workers,
	}
}

// Run evaluates every position, applies the state mutations serially, and
// plans buys. Buy planning sees the cooldowns as they stood before this
// cycle; symbols sold in this cycle are never bought back in the same cycle.
func (c *Cycle) Run(in CycleInput) *CycleResult {
	decisions := c.EvaluateSells(in.Positions, in.Signals)

	result := &CycleResult{Decisions: decisions}
	result.Skipped, result.Plan, result.Buys = c.PlanBuys(in.Candidates, in.Balance, in.Today, decisions)
	result.Changes = c.ApplySells(in.Positions, decisions, in.Today)
	return result
}

// EvaluateSells decides every position on a worker pool. No state is mutated.
func (c *Cycle) EvaluateSells(positions []Position, signals map[string]MarketSignal) map[string]SellDecision {
	decisions := make(map[string]SellDecision, len(positions))
	if len(positions) == 0 {
		return decisions
	}

	trailing := c.trailing.Snapshot()

	jobChan := make(chan Position, len(positions))
	resultChan := make(chan SellDecision, len(positions))
	for _, p := range positions {
		jobChan <- p
	}
	close(jobChan)

	var wg sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for pos := range jobChan {
				var st *TrailingState
				if s, ok := trailing[pos.Symbol]; ok {
					st = &s
				}
				sig, ok := signals[pos.Symbol]
				if !ok {
					// 시그널 없음: 가격 기반 규칙만 적용
					sig = MarketSignal{TrendValid: true, InsufficientData: true}
				}
				resultChan <- c.sell.Decide(pos, st, sig)
			}
		}()
	}

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	for d := range resultChan {
		decisions[d.Symbol] = d
	}
	return decisions
}

// ApplySells performs the post-evaluation mutations:
// sell -> clear trailing, STOP_LOSS -> open cooldown, hold -> raise trailing.
func (c *Cycle) ApplySells(positions []Position, decisions map[string]SellDecision, today time.Time) StateChanges {
	var changes StateChanges

	ordered := append([]Position(nil), positions...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Symbol < ordered[j].Symbol })

	for _, pos := range ordered {
		d, ok := decisions[pos.Symbol]
		if !ok {
			continue
		}

		if d.IsSell() {
			if c.trailing.Clear(pos.Symbol) {
				changes.TrailingCleared = append(changes.TrailingCleared, pos.Symbol)
			}
			if d.Reason == ReasonStopLoss {
				st := c.cooldowns.Record(pos.Symbol, d.LossPct, today)
				changes.CooldownsOpened = append(changes.CooldownsOpened, pos.Symbol)
				log.Printf("[STATE] %s cooldown %d days (loss %.2f%%)", pos.Symbol, st.DurationDays, d.LossPct*100)
			}
			continue
		}

		if pos.Quantity <= 0 {
			continue
		}
		_, existed := c.trailing.Get(pos.Symbol)
		if st, changed := c.trailing.Observe(pos.Symbol, pos.EntryPrice, pos.CurrentPrice, today); changed {
			if existed {
				changes.TrailingRaised = append(changes.TrailingRaised, pos.Symbol)
			} else {
				changes.TrailingCreated = append(changes.TrailingCreated, pos.Symbol)
			}
			log.Printf("[STATE] %s high-water mark $%.2f", pos.Symbol, st.HighestPrice)
		}
	}
	return changes
}

// PlanBuys filters candidates (cooldown, sold this cycle), allocates the
// balance and sizes each allocation.
func (c *Cycle) PlanBuys(candidates []BuyCandidate, balance decimal.Decimal, today time.Time,
	decisions map[string]SellDecision) ([]SkippedCandidate, AllocationPlan, []AllocationResult) {
	var skipped []SkippedCandidate
	eligible := make([]BuyCandidate, 0, len(candidates))

	for _, cand := range candidates {
		if d, ok := decisions[cand.Symbol]; ok && d.IsSell() {
			skipped = append(skipped, SkippedCandidate{Symbol: cand.Symbol, Reason: "sold this cycle (" + string(d.Reason) + ")"})
			continue
		}
		if st, ok := c.cooldowns.Get(cand.Symbol); ok && st.Active(today) {
			skipped = append(skipped, SkippedCandidate{
				Symbol: cand.Symbol,
				Reason: "cooldown until " + st.Until().Format("2006-01-02"),
			})
			continue
		}
		eligible = append(eligible, cand)
	}

	plan := c.allocator.Allocate(eligible, balance)
	for _, d := range plan.Dropped {
		log.Printf("[ALLOC] dropped %s: %s", d.Symbol, d.Reason)
	}
	return skipped, plan, c.sizer.SizePlan(plan)
}
