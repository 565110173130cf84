package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"

	"stockfinder/internal/analyzer"
	"stockfinder/internal/trader"
)

func outputJSON(v interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func outputRunTable(r runReport, signals map[string]*analyzer.Signals) error {
	mode := "REPORT ONLY"
	if !r.DryRun {
		mode = "EXECUTE"
	}
	fmt.Printf("Run %s  %s  [%s]\n", r.RunID, r.Date, mode)
	fmt.Printf("Scanned %d symbols (%d with data issues)\n\n", r.Scanned, len(r.DataIssues))

	if verbose {
		outputSignals(signals)
	}

	if len(r.Positions) == 0 {
		fmt.Println("No positions held.")
	} else {
		fmt.Println("--- Positions ---")
		table := tablewriter.NewTable(os.Stdout,
			tablewriter.WithHeader([]string{"Symbol", "Qty", "Entry", "Current", "P/L", "Decision", "Detail"}),
		)
		positions := append([]trader.Position(nil), r.Positions...)
		sort.Slice(positions, func(i, j int) bool { return positions[i].Symbol < positions[j].Symbol })
		for _, p := range positions {
			d := r.Cycle.Decisions[p.Symbol]
			table.Append([]string{
				p.Symbol,
				fmt.Sprintf("%d", p.Quantity),
				fmt.Sprintf("$%.2f", p.EntryPrice),
				fmt.Sprintf("$%.2f", p.CurrentPrice),
				fmt.Sprintf("%+.2f%%", p.UnrealizedPct()*100),
				string(d.Reason),
				truncate(d.Detail, 50),
			})
		}
		table.Render()
	}

	fmt.Println("\n--- Buys ---")
	if len(r.Cycle.Buys) == 0 {
		fmt.Println("No buy allocations.")
	} else {
		table := tablewriter.NewTable(os.Stdout,
			tablewriter.WithHeader([]string{"Symbol", "Price", "Allocated", "Held", "Target", "Buy", "Type", "Cost"}),
		)
		for _, b := range r.Cycle.Buys {
			kind := "add"
			if b.IsNewBuy {
				kind = "new"
			}
			table.Append([]string{
				b.Symbol,
				fmt.Sprintf("$%.2f", b.CurrentPrice),
				"$" + b.InvestmentAmount.StringFixed(2),
				fmt.Sprintf("%d", b.CurrentQuantity),
				fmt.Sprintf("%d", b.TargetQuantity),
				fmt.Sprintf("%d", b.SharesToBuy),
				kind,
				"$" + b.ActualInvestment.StringFixed(2),
			})
		}
		table.Render()
	}

	plan := r.Cycle.Plan
	fmt.Printf("Balance $%s, investable $%s (%s), allocated $%s, cost $%s\n",
		plan.Balance.StringFixed(2), plan.Investable.StringFixed(2), plan.Mode,
		plan.Allocated.StringFixed(2), r.Summary.TotalActual.StringFixed(2))

	if len(r.Cycle.Skipped) > 0 || len(plan.Dropped) > 0 {
		fmt.Println("\n--- Not Bought ---")
		table := tablewriter.NewTable(os.Stdout,
			tablewriter.WithHeader([]string{"Symbol", "Reason"}),
		)
		for _, s := range r.Cycle.Skipped {
			table.Append([]string{s.Symbol, s.Reason})
		}
		for _, d := range plan.Dropped {
			table.Append([]string{d.Symbol, d.Reason})
		}
		table.Render()
	}

	if len(r.Orders) > 0 {
		fmt.Println("\n--- Orders ---")
		table := tablewriter.NewTable(os.Stdout,
			tablewriter.WithHeader([]string{"Symbol", "Side", "Type", "Qty", "Status", "Message"}),
		)
		for _, o := range r.Orders {
			status, msg := "failed", o.Error
			if o.Result != nil {
				status = o.Result.Status
				if msg == "" {
					msg = o.Result.Message
				}
			}
			table.Append([]string{
				o.Order.Symbol,
				string(o.Order.Side),
				string(o.Order.Type),
				fmt.Sprintf("%d", o.Order.Quantity),
				status,
				truncate(msg, 50),
			})
		}
		table.Render()
	}

	if !r.Cycle.Changes.Empty() {
		c := r.Cycle.Changes
		fmt.Println("\n--- State Changes ---")
		printList("trailing created", c.TrailingCreated)
		printList("trailing raised", c.TrailingRaised)
		printList("trailing cleared", c.TrailingCleared)
		printList("cooldown opened", c.CooldownsOpened)
	}

	if verbose && len(r.DataIssues) > 0 {
		fmt.Println("\n--- Data Issues ---")
		for _, issue := range r.DataIssues {
			fmt.Println("  " + issue)
		}
	}
	return nil
}

// outputSignals 종목별 조건 요약
func outputSignals(signals map[string]*analyzer.Signals) {
	symbols := make([]string, 0, len(signals))
	for s := range signals {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	fmt.Println("--- Signals ---")
	table := tablewriter.NewTable(os.Stdout,
		tablewriter.WithHeader([]string{"Symbol", "Price", "Buy", "Hold", "Corr", "AVSL", "Failed"}),
	)
	for _, sym := range symbols {
		sig := signals[sym]
		corr := "-"
		if v, ok := sig.ShortCorrelation(); ok {
			corr = fmt.Sprintf("%.0f%%", v)
		}
		avsl := "-"
		if sig.AVSL.Evaluated {
			avsl = yesNo(!sig.AVSL.Broken)
		}
		var failed []string
		for _, c := range sig.Buy.Conditions() {
			if !c.Value && c.Name != "trend_valid" && c.Name != "insufficient_data" {
				failed = append(failed, c.Name)
			}
		}
		if sig.InsufficientData {
			failed = append(failed, "insufficient_data")
		}
		table.Append([]string{
			sym,
			fmt.Sprintf("$%.2f", sig.Price),
			yesNo(sig.Buy.TrendValid),
			yesNo(sig.Hold.TrendValid),
			corr,
			avsl,
			truncate(strings.Join(failed, ","), 60),
		})
	}
	table.Render()
	fmt.Println()
}

func printList(label string, symbols []string) {
	if len(symbols) > 0 {
		fmt.Printf("  %-17s %s\n", label+":", strings.Join(symbols, ", "))
	}
}

func yesNo(b bool) string {
	if b {
		return "Y"
	}
	return "N"
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
