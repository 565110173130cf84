package analyzer

import "sort"

// AVSLConfig holds the support-level thresholds
type AVSLConfig struct {
	Windows          []int   // correlation windows in sessions, e.g. 50/100/200
	StrictThreshold  float64 // accumulation level (%)
	RelaxedThreshold float64 // breakdown level (%)
}

// AVSLResult is the outcome of a support-level evaluation
type AVSLResult struct {
	Windows      []int     `json:"windows"`      // longest -> shortest
	Correlations []float64 `json:"correlations"` // aligned with Windows
	Peak         float64   `json:"peak"`
	Latest       float64   `json:"latest"`
	Broken       bool      `json:"broken"`
	Evaluated    bool      `json:"evaluated"`
}

// SupportLevelEvaluator detects a loss of price/volume support (AVSL)
type SupportLevelEvaluator struct {
	config AVSLConfig
}

// NewSupportLevelEvaluator creates an evaluator
func NewSupportLevelEvaluator(cfg AVSLConfig) *SupportLevelEvaluator {
	return &SupportLevelEvaluator{config: cfg}
}

// Windows returns the configured windows ordered longest -> shortest
func (e *SupportLevelEvaluator) Windows() []int {
	windows := append([]int(nil), e.config.Windows...)
	sort.Sort(sort.Reverse(sort.IntSlice(windows)))
	return windows
}

// Evaluate checks a correlation series ordered from the longest window to the
// shortest. Support is broken when the most recent value is below the relaxed
// threshold while an earlier value had reached the strict threshold.
func (e *SupportLevelEvaluator) Evaluate(series []float64) AVSLResult {
	result := AVSLResult{Correlations: series}
	if len(series) < 2 {
		return result
	}
	result.Evaluated = true
	result.Latest = series[len(series)-1]

	result.Peak = series[0]
	for _, v := range series[:len(series)-1] {
		if v > result.Peak {
			result.Peak = v
		}
	}

	result.Broken = result.Latest < e.config.RelaxedThreshold &&
		result.Peak >= e.config.StrictThreshold
	return result
}

// Conditions returns the audit conditions for the evaluation
func (r AVSLResult) Conditions() []Condition {
	return []Condition{
		{"avsl_evaluated", r.Evaluated},
		{"avsl_broken", r.Broken},
	}
}
