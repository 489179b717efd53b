package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/quantbrew/trader/risk"
)

var riskstateCmd = &cobra.Command{
	Use:   "riskstate",
	Short: "Dump the persisted risk state for a strategy",
	RunE:  runRiskState,
}

var (
	rsStrategy string
	rsExchange string
	rsCapital  float64
	rsStateDir string
)

func init() {
	rootCmd.AddCommand(riskstateCmd)

	riskstateCmd.Flags().StringVarP(&rsStrategy, "strategy", "s", "", "strategy name (required)")
	riskstateCmd.Flags().StringVarP(&rsExchange, "exchange", "x", "NSE", "exchange code")
	riskstateCmd.Flags().Float64VarP(&rsCapital, "capital", "b", 100_000, "account capital")
	riskstateCmd.Flags().StringVar(&rsStateDir, "state-dir", ".", "risk state directory")

	riskstateCmd.MarkFlagRequired("strategy")
}

func runRiskState(cmd *cobra.Command, args []string) error {
	mgr, err := risk.NewManager(risk.Config{
		Strategy: rsStrategy,
		Exchange: rsExchange,
		Capital:  rsCapital,
		StateDir: rsStateDir,
	})
	if err != nil {
		return err
	}

	st := mgr.Snapshot()

	fmt.Printf("State file:      %s\n", mgr.StatePath())
	fmt.Printf("Daily PnL:       %.2f\n", st.DailyPnL)
	fmt.Printf("Daily trades:    %d\n", st.DailyTrades)
	fmt.Printf("Last reset:      %s\n", st.LastResetDate)
	if !st.LastTradeTime.IsZero() {
		fmt.Printf("Last trade:      %s\n", st.LastTradeTime.Format(time.RFC3339))
	}
	fmt.Printf("Circuit breaker: %v\n", st.CircuitBreakerActive)

	if len(st.Positions) == 0 {
		fmt.Println("Open positions:  none")
		return nil
	}
	fmt.Println("Open positions:")
	for sym, pos := range st.Positions {
		fmt.Printf("  %-12s qty=%.2f entry=%.2f stop=%.2f trail=%.2f\n",
			sym, pos.Qty, pos.EntryPrice, pos.StopLoss, pos.TrailingStop)
	}
	return nil
}
