package symbols

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"stockfinder/pkg/model"
)

// Loader reads the screening universe from CSV files.
// 첫 행은 헤더. 1열 종목코드, 2열 종목명, 3열 거래소(선택).
type Loader struct {
	patterns []string
}

// NewLoader creates a loader over glob patterns (e.g. portfolio/**/*.csv)
func NewLoader(patterns ...string) *Loader {
	return &Loader{patterns: patterns}
}

// Load returns the de-duplicated universe in file order
func (l *Loader) Load() ([]model.Stock, error) {
	files, err := l.files()
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no universe files match %v", l.patterns)
	}

	seen := make(map[string]bool)
	var stocks []model.Stock
	for _, path := range files {
		loaded, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		added := 0
		for _, s := range loaded {
			if seen[s.Symbol] {
				continue
			}
			seen[s.Symbol] = true
			stocks = append(stocks, s)
			added++
		}
		log.Printf("[UNIVERSE] %s: %d symbols (%d new)", path, len(loaded), added)
	}
	return stocks, nil
}

func (l *Loader) files() ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	for _, pattern := range l.patterns {
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return nil, fmt.Errorf("glob %s: %w", pattern, err)
		}
		sort.Strings(matches)
		for _, m := range matches {
			m = filepath.Clean(m)
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}
	return files, nil
}

// LoadFile reads one CSV file, skipping the header row
func LoadFile(path string) ([]model.Stock, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var stocks []model.Stock
	for row := 0; ; row++ {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		if row == 0 || len(record) == 0 {
			continue
		}

		symbol := NormalizeSymbol(record[0])
		if !isValidSymbol(symbol) {
			continue
		}
		s := model.Stock{Symbol: symbol, Source: path}
		if len(record) > 1 {
			s.Name = strings.TrimSpace(record[1])
		}
		if len(record) > 2 {
			s.Exchange = strings.TrimSpace(record[2])
		}
		stocks = append(stocks, s)
	}
	return stocks, nil
}

// LoadSymbols builds stocks from an explicit list
func LoadSymbols(symbols []string) []model.Stock {
	stocks := make([]model.Stock, 0, len(symbols))
	for _, sym := range symbols {
		sym = NormalizeSymbol(sym)
		if isValidSymbol(sym) {
			stocks = append(stocks, model.Stock{Symbol: sym})
		}
	}
	return stocks
}

// NormalizeSymbol strips the "-US" suffix and maps class shares "BRK/B" to "BRK-B"
func NormalizeSymbol(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.TrimPrefix(s, "\ufeff")
	s = strings.TrimSuffix(s, "-US")
	return strings.ReplaceAll(s, "/", "-")
}

// isValidSymbol checks if a symbol is a plain ticker (letters, digits, '-' or '.')
func isValidSymbol(symbol string) bool {
	if len(symbol) == 0 || len(symbol) > 10 {
		return false
	}
	for _, c := range symbol {
		if !((c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '-' || c == '.') {
			return false
		}
	}
	return true
}
