package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/quantbrew/trader/market"
)

// Config is the complete run configuration.
type Config struct {
	Account  AccountConfig  `json:"account" yaml:"account"`
	Strategy StrategyConfig `json:"strategy" yaml:"strategy"`
	Backtest BacktestConfig `json:"backtest" yaml:"backtest"`
	Risk     RiskConfig     `json:"risk" yaml:"risk"`
	Journal  JournalConfig  `json:"journal" yaml:"journal"`
}

type AccountConfig struct {
	Exchange string  `json:"exchange" yaml:"exchange"`
	Capital  float64 `json:"capital" yaml:"capital"`
}

type StrategyConfig struct {
	Name      string `json:"name" yaml:"name"`
	Symbol    string `json:"symbol" yaml:"symbol"`
	Interval  string `json:"interval" yaml:"interval"`
	Fast      int    `json:"fast,omitempty" yaml:"fast,omitempty"`
	Slow      int    `json:"slow,omitempty" yaml:"slow,omitempty"`
	ATRPeriod int    `json:"atr_period,omitempty" yaml:"atr_period,omitempty"`
}

type BacktestConfig struct {
	WarmupBars  int     `json:"warmup_bars" yaml:"warmup_bars"`
	CostBps     float64 `json:"cost_bps" yaml:"cost_bps"`
	SLPct       float64 `json:"sl_pct" yaml:"sl_pct"`
	TPPct       float64 `json:"tp_pct" yaml:"tp_pct"`
	MaxHoldBars int     `json:"max_hold_bars" yaml:"max_hold_bars"`
	BreakevenR  float64 `json:"breakeven_r" yaml:"breakeven_r"`
	DataDir     string  `json:"data_dir" yaml:"data_dir"`
}

type RiskConfig struct {
	MaxDailyLossPct    float64 `json:"max_daily_loss_pct" yaml:"max_daily_loss_pct"`
	MaxLossPerTradePct float64 `json:"max_loss_per_trade_pct" yaml:"max_loss_per_trade_pct"`
	TrailingStopPct    float64 `json:"trailing_stop_pct" yaml:"trailing_stop_pct"`
	CooldownSeconds    int     `json:"cooldown_seconds" yaml:"cooldown_seconds"`
	SquareOffHour      int     `json:"square_off_hour" yaml:"square_off_hour"`
	SquareOffMinute    int     `json:"square_off_minute" yaml:"square_off_minute"`
	PreCloseMinutes    int     `json:"pre_close_minutes" yaml:"pre_close_minutes"`
	StateDir           string  `json:"state_dir" yaml:"state_dir"`
}

// PreCloseWindow converts the configured minutes to a duration.
func (r RiskConfig) PreCloseWindow() time.Duration {
	return time.Duration(r.PreCloseMinutes) * time.Minute
}

type JournalConfig struct {
	Type       string `json:"type" yaml:"type"` // "none", "csv" or "sqlite"
	TradesFile string `json:"trades_file,omitempty" yaml:"trades_file,omitempty"`
	EquityFile string `json:"equity_file,omitempty" yaml:"equity_file,omitempty"`
	DBPath     string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

// LoadFromFile loads a config file, YAML first with a JSON fallback.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate fails fast on structural misconfiguration; everything else
// has defaults.
func (c *Config) Validate() error {
	if c.Account.Capital <= 0 {
		return fmt.Errorf("account.capital must be positive")
	}
	if strings.TrimSpace(c.Account.Exchange) == "" {
		return fmt.Errorf("account.exchange is required")
	}
	if strings.TrimSpace(c.Strategy.Name) == "" {
		return fmt.Errorf("strategy.name is required")
	}
	if strings.TrimSpace(c.Strategy.Symbol) == "" {
		return fmt.Errorf("strategy.symbol is required")
	}
	if _, err := market.ParseInterval(c.Strategy.Interval); err != nil {
		return fmt.Errorf("strategy.interval: %w", err)
	}
	switch c.Journal.Type {
	case "", "none":
	case "csv":
		if c.Journal.TradesFile == "" || c.Journal.EquityFile == "" {
			return fmt.Errorf("journal trades_file and equity_file required for csv type")
		}
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal db_path required for sqlite type")
		}
	default:
		return fmt.Errorf("journal.type must be 'none', 'csv' or 'sqlite'")
	}
	return nil
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Account: AccountConfig{
			Exchange: "NSE",
			Capital:  100000,
		},
		Strategy: StrategyConfig{
			Name:      "ema-cross-atr",
			Symbol:    "RELIANCE",
			Interval:  "5m",
			Fast:      10,
			Slow:      30,
			ATRPeriod: 14,
		},
		Backtest: BacktestConfig{
			WarmupBars: 50,
			CostBps:    10,
			SLPct:      2.0,
			TPPct:      2.0,
			DataDir:    "./data",
		},
		Risk: RiskConfig{
			MaxDailyLossPct:    5.0,
			MaxLossPerTradePct: 1.0,
			TrailingStopPct:    1.5,
			CooldownSeconds:    300,
			SquareOffHour:      15,
			SquareOffMinute:    15,
			PreCloseMinutes:    15,
			StateDir:           ".",
		},
		Journal: JournalConfig{
			Type: "none",
		},
	}
}
