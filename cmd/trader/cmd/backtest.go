package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/quantbrew/trader/backtest"
	"github.com/quantbrew/trader/config"
	"github.com/quantbrew/trader/journal"
	"github.com/quantbrew/trader/market"
	"github.com/quantbrew/trader/risk"
	"github.com/quantbrew/trader/strategy"
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Run a strategy over a historical dataset",
	Long: `Backtest replays CSV bar data (optionally xz-compressed) against a
registered strategy, bar by bar, with exits evaluated before entries
and the risk policy engine gating every new position.

Example:
  trader backtest --data ./data --symbol RELIANCE --interval 5m \
      --start 2026-01-01 --end 2026-06-30 --strategy ema-cross-atr`,
	RunE: runBacktest,
}

var (
	btConfigPath string
	btDataDir    string
	btSymbol     string
	btExchange   string
	btInterval   string
	btStart      string
	btEnd        string
	btStrategy   string
	btCapital    float64
	btCostBps    float64
	btDBPath     string
	btNoRisk     bool
)

func init() {
	rootCmd.AddCommand(backtestCmd)

	backtestCmd.Flags().StringVarP(&btConfigPath, "config", "c", "", "config file (YAML or JSON); flags override")
	backtestCmd.Flags().StringVar(&btDataDir, "data", "./data", "directory of <SYMBOL>_<interval>.csv[.xz] datasets")
	backtestCmd.Flags().StringVarP(&btSymbol, "symbol", "y", "RELIANCE", "symbol to backtest")
	backtestCmd.Flags().StringVarP(&btExchange, "exchange", "x", "NSE", "exchange code")
	backtestCmd.Flags().StringVarP(&btInterval, "interval", "i", "5m", "bar interval (1m, 5m, 15m, 30m, 1h, 1d)")
	backtestCmd.Flags().StringVar(&btStart, "start", "", "start date YYYY-MM-DD (required)")
	backtestCmd.Flags().StringVar(&btEnd, "end", "", "end date YYYY-MM-DD (required)")
	backtestCmd.Flags().StringVarP(&btStrategy, "strategy", "s", "ema-cross-atr", "registered strategy name")
	backtestCmd.Flags().Float64VarP(&btCapital, "capital", "b", 100_000, "starting capital")
	backtestCmd.Flags().Float64Var(&btCostBps, "cost-bps", 10, "round-trip transaction cost in basis points")
	backtestCmd.Flags().StringVarP(&btDBPath, "db", "d", "", "optional SQLite journal path")
	backtestCmd.Flags().BoolVar(&btNoRisk, "no-risk", false, "disable the risk policy gate")

	backtestCmd.MarkFlagRequired("start")
	backtestCmd.MarkFlagRequired("end")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if btConfigPath != "" {
		loaded, err := config.LoadFromFile(btConfigPath)
		if err != nil {
			return err
		}
		cfg = loaded

		// The config file fills in whatever was not set explicitly
		// on the command line.
		if !cmd.Flags().Changed("data") && cfg.Backtest.DataDir != "" {
			btDataDir = cfg.Backtest.DataDir
		}
		if !cmd.Flags().Changed("cost-bps") {
			btCostBps = cfg.Backtest.CostBps
		}
		if !cmd.Flags().Changed("capital") {
			btCapital = cfg.Account.Capital
		}
		if !cmd.Flags().Changed("symbol") {
			btSymbol = cfg.Strategy.Symbol
		}
		if !cmd.Flags().Changed("interval") {
			btInterval = cfg.Strategy.Interval
		}
		if !cmd.Flags().Changed("strategy") {
			btStrategy = cfg.Strategy.Name
		}
		if !cmd.Flags().Changed("exchange") {
			btExchange = cfg.Account.Exchange
		}
	}

	interval, err := market.ParseInterval(btInterval)
	if err != nil {
		return err
	}

	start, err := time.Parse("2006-01-02", btStart)
	if err != nil {
		return fmt.Errorf("bad --start: %w", err)
	}
	end, err := time.Parse("2006-01-02", btEnd)
	if err != nil {
		return fmt.Errorf("bad --end: %w", err)
	}
	end = end.Add(24*time.Hour - time.Nanosecond)

	strat := strategy.Get(btStrategy)
	if strat == nil {
		return fmt.Errorf("unknown strategy %q", btStrategy)
	}

	provider := market.NewCSVProvider(btDataDir)

	engineCfg := backtest.Config{
		Capital:     btCapital,
		WarmupBars:  cfg.Backtest.WarmupBars,
		CostBps:     btCostBps,
		SLPct:       cfg.Backtest.SLPct,
		TPPct:       cfg.Backtest.TPPct,
		MaxHoldBars: cfg.Backtest.MaxHoldBars,
		BreakevenR:  cfg.Backtest.BreakevenR,
	}

	var opts []backtest.Option

	if !btNoRisk {
		mgr, err := risk.NewManager(risk.Config{
			Strategy:           btStrategy,
			Exchange:           btExchange,
			Capital:            btCapital,
			MaxDailyLossPct:    cfg.Risk.MaxDailyLossPct,
			MaxLossPerTradePct: cfg.Risk.MaxLossPerTradePct,
			TrailingStopPct:    cfg.Risk.TrailingStopPct,
			CooldownSeconds:    cfg.Risk.CooldownSeconds,
			SquareOffHour:      cfg.Risk.SquareOffHour,
			SquareOffMinute:    cfg.Risk.SquareOffMinute,
			PreCloseWindow:     cfg.Risk.PreCloseWindow(),
			StateDir:           cfg.Risk.StateDir,
		})
		if err != nil {
			return err
		}
		opts = append(opts, backtest.WithRiskManager(mgr))
		if cfg.Risk.SquareOffHour != 0 || cfg.Risk.SquareOffMinute != 0 {
			opts = append(opts, backtest.WithSquareOff(cfg.Risk.SquareOffHour, cfg.Risk.SquareOffMinute))
		}
	}

	var jnl journal.Journal
	switch {
	case btDBPath != "":
		j, err := journal.NewSQLite(btDBPath)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		jnl = j
	case btConfigPath != "" && cfg.Journal.Type == "sqlite":
		j, err := journal.NewSQLite(cfg.Journal.DBPath)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		jnl = j
	case btConfigPath != "" && cfg.Journal.Type == "csv":
		j, err := journal.NewCSV(cfg.Journal.TradesFile, cfg.Journal.EquityFile)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		jnl = j
	}
	if jnl != nil {
		defer jnl.Close()
		opts = append(opts, backtest.WithJournal(jnl))
	}

	engine, err := backtest.NewEngine(provider, engineCfg, opts...)
	if err != nil {
		return err
	}

	res, err := engine.Run(context.Background(), strat, btSymbol, btExchange, interval, start, end)
	if err != nil {
		return err
	}

	backtest.PrintResult(os.Stdout, res)
	return nil
}
