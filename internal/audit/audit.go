package audit

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"stockfinder/internal/analyzer"
)

// Stage 기록 단계
const (
	StageBuyScreen  = "buy_screen"
	StageHoldScreen = "hold_screen"
	StageAVSL       = "avsl"
	StageSell       = "sell"
	StageCooldown   = "cooldown"
	StageAllocation = "allocation"
	StageOrder      = "order"
)

// Check is one named boolean sub-condition
type Check struct {
	Name  string `json:"name"`
	Value bool   `json:"value"`
}

// Entry 감사 레코드 한 줄
type Entry struct {
	RunID   string    `json:"run_id"`
	Time    time.Time `json:"time"`
	Symbol  string    `json:"symbol"`
	Stage   string    `json:"stage"`
	Outcome string    `json:"outcome"`
	Detail  string    `json:"detail,omitempty"`
	Checks  []Check   `json:"checks,omitempty"`
}

// Log collects the audit trail of one run
type Log struct {
	runID string
	now   func() time.Time

	mu      sync.Mutex
	entries []Entry
}

// New starts a log with a fresh run ID
func New() *Log {
	return &Log{
		runID: uuid.NewString(),
		now:   time.Now,
	}
}

// RunID 실행 ID
func (l *Log) RunID() string {
	return l.runID
}

// Record appends an entry without sub-conditions
func (l *Log) Record(symbol, stage, outcome, detail string) {
	l.append(Entry{Symbol: symbol, Stage: stage, Outcome: outcome, Detail: detail})
}

// RecordConditions appends an entry carrying every sub-condition in order
func (l *Log) RecordConditions(symbol, stage, outcome string, conds []analyzer.Condition) {
	checks := make([]Check, len(conds))
	for i, c := range conds {
		checks[i] = Check{Name: c.Name, Value: c.Value}
	}
	l.append(Entry{Symbol: symbol, Stage: stage, Outcome: outcome, Checks: checks})
}

func (l *Log) append(e Entry) {
	e.RunID = l.runID
	e.Time = l.now()

	l.mu.Lock()
	l.entries = append(l.entries, e)
	l.mu.Unlock()
}

// Entries returns a copy of the recorded entries
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Entry(nil), l.entries...)
}

// Len 레코드 수
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// WriteJSONLines writes one JSON object per line
func (l *Log) WriteJSONLines(w io.Writer) error {
	enc := json.NewEncoder(w)
	for _, e := range l.Entries() {
		if err := enc.Encode(e); err != nil {
			return fmt.Errorf("encode audit entry: %w", err)
		}
	}
	return nil
}

// AppendToFile appends the run to a JSON lines file
func (l *Log) AppendToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create audit dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open audit file: %w", err)
	}
	if err := l.WriteJSONLines(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
