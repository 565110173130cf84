package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"stockfinder/internal/trader"
)

const fullYAML = `
strategy:
  stop_loss_pct: 0.07
  trailing_pct: 0.10
  atr_multiplier: 3
  activation_pct: 0.05
  correlation_strict: 50
  correlation_relaxed: 40
investment:
  reserve_ratio: 0.1
  min_investment: 100
  max_investment: 0
  distribution: proportional
cooldown:
  mode: linear
  base_days: 5
  days_per_loss_pct: 1
  min_days: 5
  max_days: 60
api:
  max_retries: 3
  retry_delay: 2s
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_FullConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, fullYAML))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Expected valid config, got %v", err)
	}

	sell := cfg.SellConfig()
	if sell.StopLossPct != 0.07 || sell.ATRMultiplier != 3 || sell.ActivationPct != 0.05 {
		t.Errorf("Unexpected sell config: %+v", sell)
	}
	if cfg.AllocatorConfig().Mode != trader.DistributionProportional {
		t.Errorf("Expected proportional mode, got %s", cfg.AllocatorConfig().Mode)
	}
	if cfg.CooldownSchedule().Mode != trader.CooldownLinear {
		t.Errorf("Expected linear cooldown, got %s", cfg.CooldownSchedule().Mode)
	}

	p := cfg.RetryPolicy()
	if p.MaxAttempts != 3 || p.MinDelay != 2*time.Second {
		t.Errorf("Unexpected retry policy: %+v", p)
	}

	// defaults
	if cfg.Paths.TrailingState != "data/trailing_state.json" || cfg.Paths.CooldownState != "data/stop_loss_log.json" {
		t.Errorf("Unexpected default paths: %+v", cfg.Paths)
	}
	sig := cfg.SignalConfig()
	if sig.HoldMargin != 0.1 || len(sig.AVSL.Windows) != 3 || sig.Trend.HighThresholdRatio != 0.75 {
		t.Errorf("Unexpected signal config: %+v", sig)
	}
}

func TestValidate_ListsEveryMissingParameter(t *testing.T) {
	cfg, err := Load(writeConfig(t, "scanner:\n  workers: 4\n"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	err = cfg.Validate()
	var ce *ConfigurationError
	if !errors.As(err, &ce) {
		t.Fatalf("Expected ConfigurationError, got %v", err)
	}

	want := []string{
		"strategy.stop_loss_pct", "strategy.trailing_pct", "strategy.atr_multiplier",
		"strategy.correlation_strict", "strategy.correlation_relaxed",
		"investment.reserve_ratio", "investment.min_investment", "investment.max_investment",
		"investment.distribution",
	}
	if len(ce.Missing) != len(want) {
		t.Fatalf("Expected %d missing, got %v", len(want), ce.Missing)
	}
	for i, w := range want {
		if ce.Missing[i] != w {
			t.Errorf("Missing[%d]: expected %s, got %s", i, w, ce.Missing[i])
		}
	}
}

func TestValidate_ZeroIsNotMissing(t *testing.T) {
	// max_investment 0 은 "제한 없음"으로 유효한 값
	cfg, err := Load(writeConfig(t, fullYAML))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Investment.MaxInvestment == nil || *cfg.Investment.MaxInvestment != 0 {
		t.Errorf("Expected explicit max_investment 0, got %v", cfg.Investment.MaxInvestment)
	}
}

func TestValidate_InvalidValues(t *testing.T) {
	yml := strings.Replace(fullYAML, "distribution: proportional", "distribution: random", 1)
	yml = strings.Replace(yml, "stop_loss_pct: 0.07", "stop_loss_pct: 1.5", 1)
	yml = strings.Replace(yml, "activation_pct: 0.05", "activation_pct: 0.05\n  partial_exit_ratio: 0.5", 1)

	cfg, err := Load(writeConfig(t, yml))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	err = cfg.Validate()
	var ce *ConfigurationError
	if !errors.As(err, &ce) {
		t.Fatalf("Expected ConfigurationError, got %v", err)
	}
	if len(ce.Missing) != 0 {
		t.Errorf("Expected nothing missing, got %v", ce.Missing)
	}
	if len(ce.Invalid) != 3 {
		t.Errorf("Expected 3 invalid entries, got %v", ce.Invalid)
	}
}

func TestValidate_CooldownBounds(t *testing.T) {
	cases := map[string]string{
		"min_days below floor": strings.Replace(fullYAML, "min_days: 5", "min_days: 1", 1),
		"max_days above cap":   strings.Replace(fullYAML, "max_days: 60", "max_days: 120", 1),
	}
	for name, yml := range cases {
		cfg, err := Load(writeConfig(t, yml))
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", name, err)
		}
		var ce *ConfigurationError
		if err := cfg.Validate(); !errors.As(err, &ce) {
			t.Errorf("%s: expected ConfigurationError, got %v", name, err)
			continue
		}
		if len(ce.Invalid) != 1 || !strings.Contains(ce.Invalid[0], "cooldown") {
			t.Errorf("%s: expected one cooldown entry, got %v", name, ce.Invalid)
		}
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	var ce *ConfigurationError
	if !errors.As(err, &ce) {
		t.Errorf("Expected ConfigurationError, got %v", err)
	}
}

func TestLoad_CredentialAliases(t *testing.T) {
	t.Setenv("KIS_APP_KEY", "")
	t.Setenv("ki_app_key", "alias-key")
	t.Setenv("KIS_APP_SECRET", "secret")
	t.Setenv("KIS_ACCOUNT_NO", "")
	t.Setenv("account_number", "12345678-01")
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("telegram_api_key", "bot-token")
	t.Setenv("TELEGRAM_CHAT_ID", "")
	t.Setenv("telegram_manager_id", "42")

	cfg, err := Load(writeConfig(t, fullYAML))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if cfg.KIS.AppKey != "alias-key" || cfg.KIS.AccountNo != "12345678-01" {
		t.Errorf("Expected alias credentials, got %+v", cfg.KIS)
	}
	if cfg.Telegram.Token != "bot-token" || cfg.Telegram.ChatID != 42 {
		t.Errorf("Expected telegram alias credentials, got %+v", cfg.Telegram)
	}
	if err := cfg.RequireCredentials(); err != nil {
		t.Errorf("Expected credentials complete, got %v", err)
	}
}

func TestRequireCredentials_Missing(t *testing.T) {
	for _, k := range []string{"KIS_APP_KEY", "ki_app_key", "KIS_APP_SECRET", "ki_app_secret_key",
		"KIS_ACCOUNT_NO", "account_number", "TELEGRAM_BOT_TOKEN", "telegram_api_key",
		"TELEGRAM_CHAT_ID", "telegram_manager_id"} {
		t.Setenv(k, "")
	}

	cfg, err := Load(writeConfig(t, fullYAML+"telegram:\n  enabled: false\n"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	err = cfg.RequireCredentials()
	var ce *ConfigurationError
	if !errors.As(err, &ce) {
		t.Fatalf("Expected ConfigurationError, got %v", err)
	}
	if len(ce.Missing) != 3 {
		t.Errorf("Expected 3 missing KIS credentials (telegram disabled), got %v", ce.Missing)
	}
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("STOCKFINDER_TEST_VAR=from-dotenv\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("STOCKFINDER_TEST_VAR", "")
	os.Unsetenv("STOCKFINDER_TEST_VAR")

	if err := LoadEnv(path); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got := os.Getenv("STOCKFINDER_TEST_VAR"); got != "from-dotenv" {
		t.Errorf("Expected from-dotenv, got %q", got)
	}
	if err := LoadEnv(filepath.Join(dir, "missing.env")); err != nil {
		t.Errorf("Expected missing .env to be ignored, got %v", err)
	}
}
