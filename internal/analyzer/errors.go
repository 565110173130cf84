package analyzer

import "fmt"

// DataQualityError marks a symbol whose market data cannot support evaluation.
// The symbol is excluded from trend/AVSL judgement for the cycle; the run continues.
type DataQualityError struct {
	Symbol string
	Reason string
}

func (e *DataQualityError) Error() string {
	return fmt.Sprintf("data quality: %s: %s", e.Symbol, e.Reason)
}
