package trader

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"
)

// Cooldown duration modes
const (
	CooldownStep   = "step"
	CooldownLinear = "linear"
)

// 쿨다운 기간 하한/상한 (설정으로 넓힐 수 없음)
const (
	CooldownFloorDays = 5
	CooldownCapDays   = 60
)

// CooldownState is an active re-buy lockout after a stop-loss.
// cooldown_days may be absent in older files; it is then derived from loss_pct.
type CooldownState struct {
	StartDate    Date    `json:"last_stop_loss_date"`
	LossPct      float64 `json:"loss_pct"`
	DurationDays int     `json:"cooldown_days,omitempty"`
}

// Until returns the first date the symbol may be bought again
func (c CooldownState) Until() time.Time {
	return dateOnly(c.StartDate.Time).AddDate(0, 0, c.DurationDays)
}

// Active reports whether today falls inside the lockout
func (c CooldownState) Active(today time.Time) bool {
	return dateOnly(today).Before(c.Until())
}

// RemainingDays returns whole days left (0 when expired)
func (c CooldownState) RemainingDays(today time.Time) int {
	if !c.Active(today) {
		return 0
	}
	return int(c.Until().Sub(dateOnly(today)).Hours() / 24)
}

// CooldownSchedule maps stop-loss severity to a lockout length
type CooldownSchedule struct {
	Mode           string
	BaseDays       int
	StepDays       int     // step: extra days per block
	StepPct        float64 // step: block size (0.10 = 10%)
	DaysPerLossPct float64 // linear: days per 1% loss
	MinDays        int
	MaxDays        int
}

// DefaultCooldownSchedule 5일 + 10% 손실당 5일, 최대 60일
func DefaultCooldownSchedule() CooldownSchedule {
	return CooldownSchedule{
		Mode:           CooldownStep,
		BaseDays:       5,
		StepDays:       5,
		StepPct:        0.10,
		DaysPerLossPct: 1,
		MinDays:        5,
		MaxDays:        60,
	}
}

// Validate checks the schedule
func (s CooldownSchedule) Validate() error {
	switch s.Mode {
	case CooldownStep:
		if s.StepPct <= 0 {
			return fmt.Errorf("cooldown step_pct must be positive")
		}
	case CooldownLinear:
		if s.DaysPerLossPct < 0 {
			return fmt.Errorf("cooldown days_per_loss_pct must not be negative")
		}
	default:
		return fmt.Errorf("unknown cooldown mode %q", s.Mode)
	}
	if s.MinDays < CooldownFloorDays || s.MaxDays > CooldownCapDays || s.MaxDays < s.MinDays {
		return fmt.Errorf("cooldown bounds must satisfy %d <= min_days <= max_days <= %d, got min=%d max=%d",
			CooldownFloorDays, CooldownCapDays, s.MinDays, s.MaxDays)
	}
	return nil
}

// Duration returns the lockout length in days for a loss fraction
// (e.g. -0.15). The result is non-decreasing in loss severity, clamped to
// [MinDays, MaxDays] and always within [CooldownFloorDays, CooldownCapDays].
func (s CooldownSchedule) Duration(lossPct float64) int {
	severity := math.Max(-lossPct, 0)

	days := s.BaseDays
	switch s.Mode {
	case CooldownLinear:
		days += int(math.Ceil(severity*100*s.DaysPerLossPct - 1e-9))
	default:
		// 0.30/0.10 이 2.999.. 로 떨어지지 않도록 보정
		blocks := int(math.Floor(severity/s.StepPct + 1e-9))
		days += blocks * s.StepDays
	}

	if days < s.MinDays {
		days = s.MinDays
	}
	if days > s.MaxDays {
		days = s.MaxDays
	}
	return min(max(days, CooldownFloorDays), CooldownCapDays)
}

// CooldownTracker keeps per-symbol lockouts in memory.
type CooldownTracker struct {
	mu       sync.RWMutex
	schedule CooldownSchedule
	entries  map[string]CooldownState
}

// NewCooldownTracker creates an empty tracker
func NewCooldownTracker(schedule CooldownSchedule) *CooldownTracker {
	return &CooldownTracker{
		schedule: schedule,
		entries:  make(map[string]CooldownState),
	}
}

// Load replaces the tracker contents. Entries without a duration get one
// from their recorded loss.
func (t *CooldownTracker) Load(entries map[string]CooldownState) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries = make(map[string]CooldownState, len(entries))
	for sym, st := range entries {
		if st.DurationDays <= 0 {
			st.DurationDays = t.schedule.Duration(st.LossPct)
		}
		t.entries[sym] = st
	}
}

// Merge folds entries in. Per symbol the most recent stop-loss wins
// (on the same day, the longer lockout).
func (t *CooldownTracker) Merge(entries map[string]CooldownState) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for sym, st := range entries {
		if st.DurationDays <= 0 {
			st.DurationDays = t.schedule.Duration(st.LossPct)
		}
		cur, ok := t.entries[sym]
		switch {
		case !ok, st.StartDate.After(cur.StartDate.Time):
			t.entries[sym] = st
		case st.StartDate.Equal(cur.StartDate.Time) && st.DurationDays > cur.DurationDays:
			t.entries[sym] = st
		}
	}
}

// Snapshot returns a copy of all entries
func (t *CooldownTracker) Snapshot() map[string]CooldownState {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]CooldownState, len(t.entries))
	for sym, st := range t.entries {
		out[sym] = st
	}
	return out
}

// Record opens (or overwrites) a lockout starting today
func (t *CooldownTracker) Record(symbol string, lossPct float64, today time.Time) CooldownState {
	st := CooldownState{
		StartDate:    NewDate(today),
		DurationDays: t.schedule.Duration(lossPct),
		LossPct:      lossPct,
	}

	t.mu.Lock()
	t.entries[symbol] = st
	t.mu.Unlock()
	return st
}

// Get returns the stored lockout for a symbol, active or not
func (t *CooldownTracker) Get(symbol string) (CooldownState, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	st, ok := t.entries[symbol]
	return st, ok
}

// InCooldown reports whether the symbol is blocked from buying today
func (t *CooldownTracker) InCooldown(symbol string, today time.Time) bool {
	st, ok := t.Get(symbol)
	return ok && st.Active(today)
}

// Prune removes expired lockouts and returns the removed symbols
func (t *CooldownTracker) Prune(today time.Time) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var removed []string
	for sym, st := range t.entries {
		if !st.Active(today) {
			delete(t.entries, sym)
			removed = append(removed, sym)
		}
	}
	sort.Strings(removed)
	return removed
}

// Len returns the number of stored lockouts
func (t *CooldownTracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}
