package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quantbrew/trader/risk"
)

var squareoffCmd = &cobra.Command{
	Use:   "squareoff",
	Short: "Manually trigger the EOD square-off for a strategy",
	Long: `Squareoff flattens every open position recorded in the strategy's
risk state, one order per position, side inferred from the sign of
the stored quantity. Without a broker wired in the orders are printed
(dry run) and exits are registered at the recorded entry price.`,
	RunE: runSquareOff,
}

var (
	soStrategy string
	soExchange string
	soCapital  float64
	soStateDir string
)

func init() {
	rootCmd.AddCommand(squareoffCmd)

	squareoffCmd.Flags().StringVarP(&soStrategy, "strategy", "s", "", "strategy name (required)")
	squareoffCmd.Flags().StringVarP(&soExchange, "exchange", "x", "NSE", "exchange code")
	squareoffCmd.Flags().Float64VarP(&soCapital, "capital", "b", 100_000, "account capital")
	squareoffCmd.Flags().StringVar(&soStateDir, "state-dir", ".", "risk state directory")

	squareoffCmd.MarkFlagRequired("strategy")
}

func runSquareOff(cmd *cobra.Command, args []string) error {
	mgr, err := risk.NewManager(risk.Config{
		Strategy: soStrategy,
		Exchange: soExchange,
		Capital:  soCapital,
		StateDir: soStateDir,
	})
	if err != nil {
		return err
	}

	exec := func(symbol, side string, qty float64) error {
		fmt.Printf("square-off order: %s %s %.2f\n", side, symbol, qty)
		return nil
	}

	// Cutoff 0:00 so a manual run always fires.
	so, err := risk.NewSquareOff(mgr, 0, 0, exec)
	if err != nil {
		return err
	}

	done, err := so.Run()
	if err != nil {
		return err
	}
	if !done {
		fmt.Println("no open positions to square off")
	}
	return nil
}
