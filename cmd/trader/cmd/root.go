package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "trader",
	Short: "Backtesting and risk-policy toolkit for retail algo trading",
	Long: `Trader replays historical bar data against pluggable strategies
under a strict no-look-ahead discipline, and enforces the same risk
policy (position sizing, stops, circuit breaker, cooldown, EOD
square-off) in backtests and live trading.

Commands:
  backtest   run a strategy over a historical dataset
  riskstate  dump the persisted risk state for a strategy
  squareoff  manually trigger the EOD square-off`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() error {
	return rootCmd.Execute()
}
