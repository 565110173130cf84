package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"stockfinder/internal/config"
	"stockfinder/internal/store"
	"stockfinder/internal/trader"
)

// showState prints the persisted trailing and cooldown state.
// 결정 파라미터 없이도 볼 수 있도록 Validate 는 하지 않는다.
func showState(cmd *cobra.Command, args []string) error {
	if err := config.LoadEnv(envFile); err != nil {
		return err
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	schedule := cfg.CooldownSchedule()
	if err := schedule.Validate(); err != nil {
		return &config.ConfigurationError{Invalid: []string{"cooldown: " + err.Error()}}
	}
	today, err := evaluationDate()
	if err != nil {
		return err
	}

	trailingFile := store.NewJSONFile[trader.TrailingState](cfg.Paths.TrailingState)
	cooldownFile := store.NewJSONFile[trader.CooldownState](cfg.Paths.CooldownState)
	trailing := trader.NewTrailingStore()
	cooldowns := trader.NewCooldownTracker(schedule)
	if err := loadState(trailingFile, cooldownFile, trailing, cooldowns); err != nil {
		return err
	}

	if importDir != "" {
		if err := importState(importDir, trailing, cooldowns); err != nil {
			return err
		}
		if err := trailingFile.Save(trailing.Snapshot()); err != nil {
			return fmt.Errorf("saving trailing state: %w", err)
		}
		if err := cooldownFile.Save(cooldowns.Snapshot()); err != nil {
			return fmt.Errorf("saving cooldown state: %w", err)
		}
	}

	if prune {
		removed := cooldowns.Prune(today)
		if err := cooldownFile.Save(cooldowns.Snapshot()); err != nil {
			return fmt.Errorf("saving cooldown state: %w", err)
		}
		fmt.Printf("Pruned %d expired cooldowns\n\n", len(removed))
	}

	fmt.Printf("--- Trailing (%s) ---\n", trailingFile.Path())
	if trailing.Len() == 0 {
		fmt.Println("No trailing entries.")
	} else {
		table := tablewriter.NewTable(os.Stdout,
			tablewriter.WithHeader([]string{"Symbol", "Highest Close", "Last Update"}),
		)
		snap := trailing.Snapshot()
		for _, sym := range trailing.Symbols() {
			st := snap[sym]
			table.Append([]string{sym, fmt.Sprintf("$%.2f", st.HighestPrice), st.LastUpdate.Format("2006-01-02")})
		}
		table.Render()
	}

	fmt.Printf("\n--- Cooldowns (%s) ---\n", cooldownFile.Path())
	snap := cooldowns.Snapshot()
	if len(snap) == 0 {
		fmt.Println("No cooldowns.")
		return nil
	}
	symbols := make([]string, 0, len(snap))
	for sym := range snap {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	table := tablewriter.NewTable(os.Stdout,
		tablewriter.WithHeader([]string{"Symbol", "Stop Loss", "Loss", "Days", "Until", "Remaining"}),
	)
	for _, sym := range symbols {
		st := snap[sym]
		remaining := "expired"
		if st.Active(today) {
			remaining = fmt.Sprintf("%d days", st.RemainingDays(today))
		}
		table.Append([]string{
			sym,
			st.StartDate.Format("2006-01-02"),
			fmt.Sprintf("%.2f%%", st.LossPct*100),
			fmt.Sprintf("%d", st.DurationDays),
			st.Until().Format("2006-01-02"),
			remaining,
		})
	}
	table.Render()
	return nil
}

// importState merges trailing_state.json and stop_loss_log.json from dir.
// Higher marks and more recent stop-losses win.
func importState(dir string, trailing *trader.TrailingStore, cooldowns *trader.CooldownTracker) error {
	t, err := store.NewJSONFile[trader.TrailingState](filepath.Join(dir, "trailing_state.json")).Load()
	if err != nil {
		return fmt.Errorf("import trailing state: %w", err)
	}
	trailing.Merge(t)

	c, err := store.NewJSONFile[trader.CooldownState](filepath.Join(dir, "stop_loss_log.json")).Load()
	if err != nil {
		return fmt.Errorf("import cooldown state: %w", err)
	}
	cooldowns.Merge(c)

	fmt.Printf("Imported %d trailing entries and %d cooldowns from %s\n\n", len(t), len(c), dir)
	return nil
}
