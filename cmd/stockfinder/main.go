package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"stockfinder/internal/config"
	"stockfinder/internal/market"
	"stockfinder/internal/provider"
	"stockfinder/internal/store"
)

var (
	cfgFile   string
	envFile   string
	format    string
	verbose   bool
	execute   bool
	todayArg  string
	prune     bool
	importDir string
)

// 종료 코드
const (
	exitError    = 1
	exitConfig   = 2
	exitUpstream = 3
	exitState    = 4
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "stockfinder",
		Short: "US stock trend screener with rule-based sell decisions",
		Long: `Stockfinder screens a US stock universe with a trend template and
price/volume correlation, decides sells for held positions
(STOP_LOSS > TRAILING > AVSL > TREND) and plans buys.

Examples:
  stockfinder run --config config.yaml
  stockfinder run --execute --format json
  stockfinder state --prune
  stockfinder state --import ../legacy/data`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "config file path")
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "dotenv file with credentials")
	rootCmd.PersistentFlags().StringVar(&todayArg, "today", "", "evaluation date YYYY-MM-DD (default: today)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run one evaluation cycle",
		RunE:  runCycle,
	}
	runCmd.Flags().BoolVar(&execute, "execute", false, "place orders through the broker (default: report only)")
	runCmd.Flags().StringVar(&format, "format", "table", "output format: table, json")
	runCmd.Flags().BoolVar(&verbose, "verbose", false, "show per-symbol conditions")

	stateCmd := &cobra.Command{
		Use:   "state",
		Short: "Show trailing and cooldown state",
		RunE:  showState,
	}
	stateCmd.Flags().BoolVar(&prune, "prune", false, "remove expired cooldowns and save")
	stateCmd.Flags().StringVar(&importDir, "import", "", "merge trailing_state.json and stop_loss_log.json from another data directory")

	rootCmd.AddCommand(runCmd, stateCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	var ce *config.ConfigurationError
	var ue *provider.UpstreamFetchError
	var se *store.CorruptStateError
	switch {
	case errors.As(err, &ce):
		return exitConfig
	case errors.As(err, &ue):
		fmt.Fprintf(os.Stderr, "Upstream %s failed for %s; no state was changed.\n", ue.Provider, ue.Symbol)
		return exitUpstream
	case errors.As(err, &se):
		fmt.Fprintf(os.Stderr, "Fix or remove %s before running again.\n", se.Path)
		return exitState
	default:
		return exitError
	}
}

// evaluationDate --today 또는 마지막 정규장 날짜
func evaluationDate() (time.Time, error) {
	if todayArg == "" {
		return market.DefaultSchedule().LastSessionDate(time.Now()), nil
	}
	d, err := time.Parse("2006-01-02", todayArg)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --today %q: %w", todayArg, err)
	}
	return d, nil
}

func loadConfig() (*config.Config, error) {
	if err := config.LoadEnv(envFile); err != nil {
		return nil, err
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
