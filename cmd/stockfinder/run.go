package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"stockfinder/internal/analyzer"
	"stockfinder/internal/audit"
	"stockfinder/internal/broker"
	"stockfinder/internal/broker/kis"
	"stockfinder/internal/market"
	"stockfinder/internal/notify"
	"stockfinder/internal/provider"
	"stockfinder/internal/retry"
	"stockfinder/internal/scanner"
	"stockfinder/internal/store"
	"stockfinder/internal/symbols"
	"stockfinder/internal/trader"
	"stockfinder/pkg/model"
)

// runReport is what `run` prints
type runReport struct {
	RunID      string                   `json:"run_id"`
	Date       string                   `json:"date"`
	DryRun     bool                     `json:"dry_run"`
	Scanned    int                      `json:"scanned"`
	DataIssues []string                 `json:"data_issues,omitempty"`
	Positions  []trader.Position        `json:"positions"`
	Cycle      *trader.CycleResult      `json:"cycle"`
	Summary    trader.BuySummary        `json:"summary"`
	Orders     []trader.ExecutionResult `json:"orders,omitempty"`
}

func runCycle(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.RequireCredentials(); err != nil {
		return err
	}
	today, err := evaluationDate()
	if err != nil {
		return err
	}

	if market.DefaultSchedule().IsOpen(time.Now()) {
		log.Printf("[CYCLE] Warning: market is open; today's bar is incomplete")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nInterrupted. Stopping...")
		cancel()
	}()

	// 상태 로드: 손상된 파일은 빈 상태로 덮어쓰지 않고 중단
	trailingFile := store.NewJSONFile[trader.TrailingState](cfg.Paths.TrailingState)
	cooldownFile := store.NewJSONFile[trader.CooldownState](cfg.Paths.CooldownState)
	trailing := trader.NewTrailingStore()
	cooldowns := trader.NewCooldownTracker(cfg.CooldownSchedule())
	if err := loadState(trailingFile, cooldownFile, trailing, cooldowns); err != nil {
		return err
	}

	policy := cfg.RetryPolicy()
	kisClient := kis.NewClient(
		kis.Credentials{AppKey: cfg.KIS.AppKey, AppSecret: cfg.KIS.AppSecret, AccountNo: cfg.KIS.AccountNo},
		kis.Options{
			BaseURL:           cfg.KIS.BaseURL,
			TokenCacheDir:     cfg.KIS.TokenCacheDir,
			Exchanges:         cfg.KIS.Exchanges,
			RequestsPerMinute: cfg.API.KISRate,
			Timeout:           cfg.API.Timeout,
		},
	)

	balance, err := fetchBalance(ctx, kisClient, policy)
	if err != nil {
		return err
	}
	positions, held := toPositions(balance)

	universe, err := symbols.NewLoader(cfg.Universe.Files...).Load()
	if err != nil {
		return fmt.Errorf("loading universe: %w", err)
	}
	stocks := withHoldings(universe, balance.Positions)

	exchanges := exchangeMap(stocks)
	chain := []provider.Provider{
		provider.NewRetryingProvider(provider.NewYahooProvider(cfg.API.YahooRate, cfg.API.Timeout), policy),
	}
	if cfg.API.KISFallback {
		kisClient.SetExchanges(exchanges)
		chain = append(chain, provider.NewRetryingProvider(provider.NewKISProvider(kisClient), policy))
	}
	data := provider.NewCachingProvider(provider.NewFallbackProvider(chain...), cfg.Scanner.HistoryDays)
	s := scanner.NewScanner(data, analyzer.NewSignalBuilder(cfg.SignalConfig()),
		cfg.Scanner.Workers, cfg.Scanner.HistoryDays, cfg.Scanner.Timeout)

	bar := progressbar.NewOptions(len(stocks),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("Fetching"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]█[reset]",
			SaucerHead:    "[green]█[reset]",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
	s.SetProgressCallback(func(scanned, total int) {
		bar.Set(scanned)
	})

	// 조회 실패 시 상태 변경 없이 종료
	scan, err := s.Scan(ctx, stocks)
	bar.Finish()
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return fmt.Errorf("scanning: %w", err)
	}

	screening := scanner.Screen(scan, held, *cfg.Strategy.CorrelationStrict, *cfg.Strategy.CorrelationRelaxed)

	auditLog := audit.New()
	recordSignals(auditLog, scan)

	engine := trader.NewCycle(
		trader.NewSellDecisionEngine(cfg.SellConfig()),
		trailing,
		cooldowns,
		trader.NewInvestmentAllocator(cfg.AllocatorConfig()),
		trader.NewPositionSizer(),
		cfg.Scanner.Workers,
	)
	log.Printf("[CYCLE] %s run %s: %d positions, %d candidates, cash $%.2f",
		today.Format("2006-01-02"), auditLog.RunID(), len(positions), len(screening.Candidates), balance.CashBalance)

	result := engine.Run(trader.CycleInput{
		Today:      today,
		Positions:  positions,
		Signals:    screening.Market,
		Candidates: screening.Candidates,
		Balance:    decimal.NewFromFloat(balance.CashBalance),
	})
	recordCycle(auditLog, result)

	executor := trader.NewExecutor(kisClient, !execute, policy)
	executor.SetExchanges(exchanges)
	orders := executor.ExecuteSells(ctx, result.Sells())
	orders = append(orders, executor.ExecuteBuys(ctx, result.Buys)...)
	for _, o := range orders {
		outcome := "ok"
		if !o.Success {
			outcome = "failed"
		}
		auditLog.Record(o.Order.Symbol, audit.StageOrder, outcome, fmt.Sprintf("%s %d %s", o.Order.Side, o.Order.Quantity, o.Error))
	}

	if err := trailingFile.Save(trailing.Snapshot()); err != nil {
		return fmt.Errorf("saving trailing state: %w", err)
	}
	if err := cooldownFile.Save(cooldowns.Snapshot()); err != nil {
		return fmt.Errorf("saving cooldown state: %w", err)
	}
	if cfg.Paths.AuditLog != "" {
		if err := auditLog.AppendToFile(cfg.Paths.AuditLog); err != nil {
			log.Printf("[AUDIT] Warning: %v", err)
		}
	}

	if msg, ok := notify.BuildMessage(today, result.Sells(), result.Buys); ok {
		var n notify.Notifier = notify.LogNotifier{}
		if cfg.Telegram.Enabled {
			tn, err := notify.NewTelegramNotifier(cfg.Telegram.Token, cfg.Telegram.ChatID, cfg.Telegram.APIURL)
			if err != nil {
				return err
			}
			n = tn
		}
		if err := n.Notify(ctx, msg); err != nil {
			log.Printf("[NOTIFY] Warning: %v", err)
		}
	}

	report := runReport{
		RunID:     auditLog.RunID(),
		Date:      today.Format("2006-01-02"),
		DryRun:    executor.DryRun(),
		Scanned:   scan.Scanned,
		Positions: positions,
		Cycle:     result,
		Summary:   trader.Summarize(result.Buys),
		Orders:    orders,
	}
	for _, dq := range scan.DataErrors {
		report.DataIssues = append(report.DataIssues, dq.Error())
	}

	if format == "json" {
		return outputJSON(report)
	}
	return outputRunTable(report, scan.Signals)
}

func loadState(trailingFile *store.JSONFile[trader.TrailingState], cooldownFile *store.JSONFile[trader.CooldownState],
	trailing *trader.TrailingStore, cooldowns *trader.CooldownTracker) error {
	t, err := trailingFile.Load()
	if err != nil {
		return err
	}
	trailing.Load(t)

	c, err := cooldownFile.Load()
	if err != nil {
		return err
	}
	cooldowns.Load(c)
	return nil
}

// fetchBalance 잔고 조회 재시도. 실패하면 빈 잔고로 대체하지 않는다
func fetchBalance(ctx context.Context, b broker.Broker, policy retry.Policy) (*broker.AccountBalance, error) {
	var balance *broker.AccountBalance
	attempts, err := retry.Do(ctx, policy, func(ctx context.Context) error {
		bal, err := b.GetBalance(ctx)
		if err != nil {
			log.Printf("[KIS] balance failed: %v", err)
			return err
		}
		balance = bal
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &provider.UpstreamFetchError{Provider: b.Name(), Symbol: "account balance", Attempts: attempts, Err: err}
	}
	return balance, nil
}

func toPositions(balance *broker.AccountBalance) ([]trader.Position, map[string]int) {
	positions := make([]trader.Position, 0, len(balance.Positions))
	held := make(map[string]int, len(balance.Positions))
	for _, p := range balance.Positions {
		positions = append(positions, trader.Position{
			Symbol:       p.Symbol,
			EntryPrice:   p.AvgCost,
			CurrentPrice: p.CurrentPrice,
			Quantity:     p.Quantity,
		})
		held[p.Symbol] = p.Quantity
	}
	return positions, held
}

// withHoldings 보유 종목이 유니버스에 없어도 시그널을 계산하도록 추가
func withHoldings(universe []model.Stock, positions []broker.Position) []model.Stock {
	seen := make(map[string]bool, len(universe))
	stocks := append([]model.Stock(nil), universe...)
	for _, s := range universe {
		seen[s.Symbol] = true
	}
	for _, p := range positions {
		if !seen[p.Symbol] {
			seen[p.Symbol] = true
			stocks = append(stocks, model.Stock{Symbol: p.Symbol, Exchange: p.Exchange, Source: "holdings"})
		}
	}
	return stocks
}

func exchangeMap(stocks []model.Stock) map[string]string {
	m := make(map[string]string)
	for _, s := range stocks {
		if s.Exchange != "" {
			m[s.Symbol] = kis.NormalizeExchange(s.Exchange)
		}
	}
	return m
}

func recordSignals(l *audit.Log, scan *scanner.Result) {
	for _, dq := range scan.DataErrors {
		l.Record(dq.Symbol, "data_quality", "insufficient_data", dq.Reason)
	}
	for symbol, sig := range scan.Signals {
		l.RecordConditions(symbol, audit.StageBuyScreen, outcome(sig.Buy.TrendValid), sig.Buy.Conditions())
		l.RecordConditions(symbol, audit.StageHoldScreen, outcome(sig.Hold.TrendValid), sig.Hold.Conditions())
		l.RecordConditions(symbol, audit.StageAVSL, outcome(!sig.AVSL.Broken), sig.AVSL.Conditions())
	}
}

func recordCycle(l *audit.Log, result *trader.CycleResult) {
	for _, d := range result.Decisions {
		l.Record(d.Symbol, audit.StageSell, string(d.Reason), d.Detail)
	}
	for _, sk := range result.Skipped {
		l.Record(sk.Symbol, audit.StageCooldown, "skipped", sk.Reason)
	}
	for _, a := range result.Plan.Allocations {
		l.Record(a.Candidate.Symbol, audit.StageAllocation, "allocated", a.Amount.StringFixed(2))
	}
	for _, d := range result.Plan.Dropped {
		l.Record(d.Symbol, audit.StageAllocation, "dropped", d.Reason)
	}
}

func outcome(pass bool) string {
	if pass {
		return "pass"
	}
	return "fail"
}
