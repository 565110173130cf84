package trader

import (
	"sort"
	"sync"
	"time"
)

// TrailingState is the high-water mark of a held symbol
type TrailingState struct {
	HighestPrice float64 `json:"highest_close"`
	LastUpdate   Date    `json:"last_update"`
}

// TrailingStore keeps per-symbol high-water marks in memory.
// Persistence is handled by the caller (see store.JSONFile).
type TrailingStore struct {
	mu      sync.RWMutex
	entries map[string]TrailingState
}

// NewTrailingStore creates an empty store
func NewTrailingStore() *TrailingStore {
	return &TrailingStore{entries: make(map[string]TrailingState)}
}

// Load replaces the store contents
func (s *TrailingStore) Load(entries map[string]TrailingState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]TrailingState, len(entries))
	for sym, st := range entries {
		s.entries[sym] = st
	}
}

// Merge folds entries in, keeping the higher mark per symbol
func (s *TrailingStore) Merge(entries map[string]TrailingState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for sym, st := range entries {
		cur, ok := s.entries[sym]
		if !ok || st.HighestPrice > cur.HighestPrice {
			s.entries[sym] = st
		}
	}
}

// Snapshot returns a copy of all entries
func (s *TrailingStore) Snapshot() map[string]TrailingState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]TrailingState, len(s.entries))
	for sym, st := range s.entries {
		out[sym] = st
	}
	return out
}

// Get returns the entry for a symbol
func (s *TrailingStore) Get(symbol string) (TrailingState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.entries[symbol]
	return st, ok
}

// Observe creates the entry at max(entry, price) or raises it when price is a
// new high. Re-observing the same price is a no-op.
func (s *TrailingStore) Observe(symbol string, entryPrice, price float64, today time.Time) (TrailingState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.entries[symbol]
	if price <= 0 {
		return cur, false
	}
	if !ok {
		high := price
		if entryPrice > high {
			high = entryPrice
		}
		st := TrailingState{HighestPrice: high, LastUpdate: NewDate(today)}
		s.entries[symbol] = st
		return st, true
	}
	if price > cur.HighestPrice {
		cur.HighestPrice = price
		cur.LastUpdate = NewDate(today)
		s.entries[symbol] = cur
		return cur, true
	}
	return cur, false
}

// Clear removes a symbol (after a sell)
func (s *TrailingStore) Clear(symbol string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[symbol]; !ok {
		return false
	}
	delete(s.entries, symbol)
	return true
}

// Symbols returns the tracked symbols sorted
func (s *TrailingStore) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.entries))
	for sym := range s.entries {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of tracked symbols
func (s *TrailingStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
