package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"stockfinder/internal/analyzer"
	"stockfinder/internal/retry"
	"stockfinder/internal/trader"
)

// ConfigurationError lists every missing or invalid parameter at once
type ConfigurationError struct {
	Missing []string
	Invalid []string
}

func (e *ConfigurationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing required parameters: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "invalid parameters: "+strings.Join(e.Invalid, "; "))
	}
	return "configuration: " + strings.Join(parts, "; ")
}

func (e *ConfigurationError) empty() bool {
	return len(e.Missing) == 0 && len(e.Invalid) == 0
}

// Config represents the application configuration
type Config struct {
	Strategy   StrategyConfig   `yaml:"strategy"`
	Investment InvestmentConfig `yaml:"investment"`
	Cooldown   CooldownConfig   `yaml:"cooldown"`
	API        APIConfig        `yaml:"api"`
	Scanner    ScannerConfig    `yaml:"scanner"`
	Universe   UniverseConfig   `yaml:"universe"`
	Paths      PathsConfig      `yaml:"paths"`
	KIS        KISConfig        `yaml:"kis"`
	Telegram   TelegramConfig   `yaml:"telegram"`
}

// StrategyConfig 매도/추세 판단 파라미터. 포인터 필드는 필수값
type StrategyConfig struct {
	StopLossPct        *float64 `yaml:"stop_loss_pct"`
	TrailingPct        *float64 `yaml:"trailing_pct"`
	ATRMultiplier      *float64 `yaml:"atr_multiplier"`
	ActivationPct      float64  `yaml:"activation_pct"`
	PartialExitRatio   float64  `yaml:"partial_exit_ratio"` // 0 또는 1 (전량)
	ATRPeriod          int      `yaml:"atr_period"`
	HighThresholdRatio float64  `yaml:"high_threshold_ratio"`
	LowIncreasePct     float64  `yaml:"low_increase_pct"`
	MinPriceThreshold  float64  `yaml:"min_price_threshold"`
	HoldMargin         float64  `yaml:"hold_margin"`
	CorrelationWindows []int    `yaml:"correlation_windows"`
	CorrelationStrict  *float64 `yaml:"correlation_strict"`
	CorrelationRelaxed *float64 `yaml:"correlation_relaxed"`
}

// InvestmentConfig 매수 배분 파라미터 (모두 필수)
type InvestmentConfig struct {
	ReserveRatio  *float64 `yaml:"reserve_ratio"`
	MinInvestment *float64 `yaml:"min_investment"`
	MaxInvestment *float64 `yaml:"max_investment"` // 0 = 제한 없음
	Distribution  string   `yaml:"distribution"`   // equal, proportional
}

// CooldownConfig 손절 후 재매수 금지 기간
type CooldownConfig struct {
	Mode           string  `yaml:"mode"` // step, linear
	BaseDays       int     `yaml:"base_days"`
	StepDays       int     `yaml:"step_days"`
	StepPct        float64 `yaml:"step_pct"`
	DaysPerLossPct float64 `yaml:"days_per_loss_pct"`
	MinDays        int     `yaml:"min_days"`
	MaxDays        int     `yaml:"max_days"`
}

// APIConfig 외부 API 재시도/속도 제한
type APIConfig struct {
	MaxRetries    int           `yaml:"max_retries"`
	RetryDelay    time.Duration `yaml:"retry_delay"`
	MaxRetryDelay time.Duration `yaml:"max_retry_delay"`
	Timeout       time.Duration `yaml:"timeout"`
	YahooRate     int           `yaml:"yahoo_rate_limit"` // requests per minute
	KISRate       int           `yaml:"kis_rate_limit"`   // requests per minute
	KISFallback   bool          `yaml:"kis_fallback"`     // Yahoo 실패 시 KIS 일봉 사용
}

// ScannerConfig holds scanner settings
type ScannerConfig struct {
	Workers     int           `yaml:"workers"`
	Timeout     time.Duration `yaml:"timeout"`
	HistoryDays int           `yaml:"history_days"`
}

// UniverseConfig 후보 종목 CSV
type UniverseConfig struct {
	Files []string `yaml:"files"`
}

// PathsConfig 상태 파일 경로
type PathsConfig struct {
	TrailingState string `yaml:"trailing_state"`
	CooldownState string `yaml:"cooldown_state"`
	AuditLog      string `yaml:"audit_log"`
}

// KISConfig 한국투자증권. 인증 정보는 환경변수에서만 읽는다
type KISConfig struct {
	BaseURL       string   `yaml:"base_url"`
	TokenCacheDir string   `yaml:"token_cache_dir"`
	Exchanges     []string `yaml:"exchanges"`

	AppKey    string `yaml:"-"`
	AppSecret string `yaml:"-"`
	AccountNo string `yaml:"-"`
}

// TelegramConfig 알림
type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	APIURL  string `yaml:"api_url"`

	Token  string `yaml:"-"`
	ChatID int64  `yaml:"-"`
}

// DefaultConfig returns the defaults for optional parameters.
// Decision parameters (stop loss, thresholds, investment) have no default.
func DefaultConfig() *Config {
	trend := analyzer.DefaultTrendConfig()
	cd := trader.DefaultCooldownSchedule()
	return &Config{
		Strategy: StrategyConfig{
			ATRPeriod:          14,
			HighThresholdRatio: trend.HighThresholdRatio,
			LowIncreasePct:     trend.LowIncreasePct,
			MinPriceThreshold:  trend.MinPriceThreshold,
			HoldMargin:         0.1,
			CorrelationWindows: []int{50, 100, 200},
		},
		Cooldown: CooldownConfig{
			Mode:           cd.Mode,
			BaseDays:       cd.BaseDays,
			StepDays:       cd.StepDays,
			StepPct:        cd.StepPct,
			DaysPerLossPct: cd.DaysPerLossPct,
			MinDays:        cd.MinDays,
			MaxDays:        cd.MaxDays,
		},
		API: APIConfig{
			MaxRetries:    5,
			RetryDelay:    time.Second,
			MaxRetryDelay: 30 * time.Second,
			Timeout:       30 * time.Second,
			YahooRate:     100,
			KISRate:       300,
			KISFallback:   true,
		},
		Scanner: ScannerConfig{
			Workers: 10,
			Timeout: 10 * time.Minute,
		},
		Universe: UniverseConfig{
			Files: []string{"portfolio/**/*.csv"},
		},
		Paths: PathsConfig{
			TrailingState: "data/trailing_state.json",
			CooldownState: "data/stop_loss_log.json",
			AuditLog:      "logs/audit.jsonl",
		},
		Telegram: TelegramConfig{Enabled: true},
	}
}

// 환경변수 이름과 기존 별칭
var envAliases = map[string][]string{
	"KIS_APP_KEY":        {"ki_app_key"},
	"KIS_APP_SECRET":     {"ki_app_secret_key"},
	"KIS_ACCOUNT_NO":     {"account_number"},
	"TELEGRAM_BOT_TOKEN": {"telegram_api_key"},
	"TELEGRAM_CHAT_ID":   {"telegram_manager_id"},
}

// Getenv returns the first non-empty value of key or its aliases
func Getenv(key string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	for _, alias := range envAliases[key] {
		if v := strings.TrimSpace(os.Getenv(alias)); v != "" {
			return v
		}
	}
	return ""
}

// LoadEnv loads a .env file when present. Existing variables win.
func LoadEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// Load loads configuration from a YAML file and credentials from the environment
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &ConfigurationError{Missing: []string{"config file " + path}}
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.KIS.AppKey = Getenv("KIS_APP_KEY")
	cfg.KIS.AppSecret = Getenv("KIS_APP_SECRET")
	cfg.KIS.AccountNo = Getenv("KIS_ACCOUNT_NO")
	cfg.Telegram.Token = Getenv("TELEGRAM_BOT_TOKEN")
	if raw := Getenv("TELEGRAM_CHAT_ID"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, &ConfigurationError{Invalid: []string{fmt.Sprintf("TELEGRAM_CHAT_ID %q is not a number", raw)}}
		}
		cfg.Telegram.ChatID = id
	}

	return cfg, nil
}

// Validate checks decision parameters. It never fills in a missing value.
func (c *Config) Validate() error {
	e := &ConfigurationError{}
	missing := func(name string, v *float64) {
		if v == nil {
			e.Missing = append(e.Missing, name)
		}
	}
	invalid := func(format string, args ...interface{}) {
		e.Invalid = append(e.Invalid, fmt.Sprintf(format, args...))
	}

	s := c.Strategy
	missing("strategy.stop_loss_pct", s.StopLossPct)
	missing("strategy.trailing_pct", s.TrailingPct)
	missing("strategy.atr_multiplier", s.ATRMultiplier)
	missing("strategy.correlation_strict", s.CorrelationStrict)
	missing("strategy.correlation_relaxed", s.CorrelationRelaxed)

	inv := c.Investment
	missing("investment.reserve_ratio", inv.ReserveRatio)
	missing("investment.min_investment", inv.MinInvestment)
	missing("investment.max_investment", inv.MaxInvestment)
	if strings.TrimSpace(inv.Distribution) == "" {
		e.Missing = append(e.Missing, "investment.distribution")
	} else if _, err := trader.ParseDistributionMode(inv.Distribution); err != nil {
		invalid("investment.distribution: %v", err)
	}

	if s.StopLossPct != nil && (*s.StopLossPct <= 0 || *s.StopLossPct >= 1) {
		invalid("strategy.stop_loss_pct must be in (0, 1), got %v", *s.StopLossPct)
	}
	if s.TrailingPct != nil && (*s.TrailingPct <= 0 || *s.TrailingPct >= 1) {
		invalid("strategy.trailing_pct must be in (0, 1), got %v", *s.TrailingPct)
	}
	if s.ATRMultiplier != nil && *s.ATRMultiplier < 0 {
		invalid("strategy.atr_multiplier must not be negative, got %v", *s.ATRMultiplier)
	}
	if s.ActivationPct < 0 {
		invalid("strategy.activation_pct must not be negative, got %v", s.ActivationPct)
	}
	if s.PartialExitRatio != 0 && s.PartialExitRatio != 1 {
		invalid("strategy.partial_exit_ratio %v not supported (full exit only: 0 or 1)", s.PartialExitRatio)
	}
	if s.HoldMargin < 0 || s.HoldMargin >= 1 {
		invalid("strategy.hold_margin must be in [0, 1), got %v", s.HoldMargin)
	}
	if len(s.CorrelationWindows) < 2 {
		invalid("strategy.correlation_windows needs at least 2 windows, got %v", s.CorrelationWindows)
	}
	for _, w := range s.CorrelationWindows {
		if w < 2 {
			invalid("strategy.correlation_windows entries must be >= 2, got %d", w)
		}
	}
	if s.CorrelationStrict != nil && s.CorrelationRelaxed != nil && *s.CorrelationRelaxed > *s.CorrelationStrict {
		invalid("strategy.correlation_relaxed (%v) must not exceed correlation_strict (%v)",
			*s.CorrelationRelaxed, *s.CorrelationStrict)
	}

	if inv.ReserveRatio != nil && (*inv.ReserveRatio < 0 || *inv.ReserveRatio >= 1) {
		invalid("investment.reserve_ratio must be in [0, 1), got %v", *inv.ReserveRatio)
	}
	if inv.MinInvestment != nil && *inv.MinInvestment < 0 {
		invalid("investment.min_investment must not be negative, got %v", *inv.MinInvestment)
	}
	if inv.MaxInvestment != nil && *inv.MaxInvestment < 0 {
		invalid("investment.max_investment must not be negative, got %v", *inv.MaxInvestment)
	}
	if inv.MinInvestment != nil && inv.MaxInvestment != nil && *inv.MaxInvestment > 0 && *inv.MaxInvestment < *inv.MinInvestment {
		invalid("investment.max_investment (%v) below min_investment (%v)", *inv.MaxInvestment, *inv.MinInvestment)
	}

	if err := c.CooldownSchedule().Validate(); err != nil {
		invalid("cooldown: %v", err)
	}
	if c.API.MaxRetries < 1 {
		invalid("api.max_retries must be at least 1")
	}
	if c.Scanner.Workers < 1 {
		invalid("scanner.workers must be at least 1")
	}
	if len(c.Universe.Files) == 0 {
		e.Missing = append(e.Missing, "universe.files")
	}

	if e.empty() {
		return nil
	}
	return e
}

// RequireCredentials checks the secrets needed for the broker and notifier
func (c *Config) RequireCredentials() error {
	e := &ConfigurationError{}
	if c.KIS.AppKey == "" {
		e.Missing = append(e.Missing, "KIS_APP_KEY (or ki_app_key)")
	}
	if c.KIS.AppSecret == "" {
		e.Missing = append(e.Missing, "KIS_APP_SECRET (or ki_app_secret_key)")
	}
	if c.KIS.AccountNo == "" {
		e.Missing = append(e.Missing, "KIS_ACCOUNT_NO (or account_number)")
	}
	if c.Telegram.Enabled {
		if c.Telegram.Token == "" {
			e.Missing = append(e.Missing, "TELEGRAM_BOT_TOKEN (or telegram_api_key)")
		}
		if c.Telegram.ChatID == 0 {
			e.Missing = append(e.Missing, "TELEGRAM_CHAT_ID (or telegram_manager_id)")
		}
	}
	if e.empty() {
		return nil
	}
	return e
}

// SellConfig builds the sell engine configuration. Call after Validate.
func (c *Config) SellConfig() trader.SellConfig {
	return trader.SellConfig{
		StopLossPct:   *c.Strategy.StopLossPct,
		TrailingPct:   *c.Strategy.TrailingPct,
		ATRMultiplier: *c.Strategy.ATRMultiplier,
		ActivationPct: c.Strategy.ActivationPct,
	}
}

// SignalConfig builds the analyzer configuration. Call after Validate.
func (c *Config) SignalConfig() analyzer.SignalConfig {
	s := c.Strategy
	return analyzer.SignalConfig{
		Trend: analyzer.TrendConfig{
			HighThresholdRatio: s.HighThresholdRatio,
			LowIncreasePct:     s.LowIncreasePct,
			MinPriceThreshold:  s.MinPriceThreshold,
		},
		AVSL: analyzer.AVSLConfig{
			Windows:          s.CorrelationWindows,
			StrictThreshold:  *s.CorrelationStrict,
			RelaxedThreshold: *s.CorrelationRelaxed,
		},
		HoldMargin: s.HoldMargin,
		ATRPeriod:  s.ATRPeriod,
	}
}

// AllocatorConfig builds the allocator configuration. Call after Validate.
func (c *Config) AllocatorConfig() trader.AllocatorConfig {
	mode, _ := trader.ParseDistributionMode(c.Investment.Distribution)
	return trader.AllocatorConfig{
		ReserveRatio:  *c.Investment.ReserveRatio,
		MinInvestment: *c.Investment.MinInvestment,
		MaxInvestment: *c.Investment.MaxInvestment,
		Mode:          mode,
	}
}

// CooldownSchedule builds the cooldown schedule
func (c *Config) CooldownSchedule() trader.CooldownSchedule {
	return trader.CooldownSchedule{
		Mode:           strings.ToLower(c.Cooldown.Mode),
		BaseDays:       c.Cooldown.BaseDays,
		StepDays:       c.Cooldown.StepDays,
		StepPct:        c.Cooldown.StepPct,
		DaysPerLossPct: c.Cooldown.DaysPerLossPct,
		MinDays:        c.Cooldown.MinDays,
		MaxDays:        c.Cooldown.MaxDays,
	}
}

// RetryPolicy builds the fetch/order retry policy
func (c *Config) RetryPolicy() retry.Policy {
	p := retry.DefaultPolicy()
	p.MaxAttempts = c.API.MaxRetries
	if c.API.RetryDelay > 0 {
		p.MinDelay = c.API.RetryDelay
	}
	if c.API.MaxRetryDelay > 0 {
		p.MaxDelay = c.API.MaxRetryDelay
	}
	return p
}
