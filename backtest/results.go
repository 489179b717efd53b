package backtest

import (
	"fmt"
	"io"
	"time"
)

// PrintResult writes a human-readable run report.
func PrintResult(w io.Writer, r *Result) {
	fmt.Fprintln(w, "==================================================")
	fmt.Fprintln(w, " Backtest Result")
	fmt.Fprintln(w, "==================================================")

	fmt.Fprintf(w, "Strategy:      %s\n", r.Strategy)
	fmt.Fprintf(w, "Symbol:        %s\n", r.Symbol)
	fmt.Fprintf(w, "Start:         %s\n", r.Start.Format(time.RFC3339))
	fmt.Fprintf(w, "End:           %s\n", r.End.Format(time.RFC3339))
	fmt.Fprintf(w, "Bars:          %d\n", r.BarsProcessed)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Trade Statistics")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Trades:        %d\n", len(r.Trades))
	fmt.Fprintf(w, "Wins:          %d\n", r.Metrics.Wins)
	fmt.Fprintf(w, "Losses:        %d\n", r.Metrics.Losses)
	fmt.Fprintf(w, "Win Rate:      %.2f%%\n", r.Metrics.WinRate)
	fmt.Fprintf(w, "Profit Factor: %.2f\n", r.Metrics.ProfitFactor)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Performance")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Return:        %.2f%%\n", r.Metrics.TotalReturnPct)
	fmt.Fprintf(w, "Max Drawdown:  %.2f%%\n", r.Metrics.MaxDrawdownPct)
	fmt.Fprintf(w, "Sharpe:        %.2f (trade-level)\n", r.Metrics.SharpeRatio)

	if r.RiskRejections > 0 {
		fmt.Fprintf(w, "Risk Rejects:  %d\n", r.RiskRejections)
	}

	if len(r.SignalErrors) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Signal errors (%d bars treated as HOLD)\n", len(r.SignalErrors))
		fmt.Fprintln(w, "--------------------------------------------------")
		for _, se := range r.SignalErrors {
			fmt.Fprintf(w, "- bar %d %s: %s\n", se.BarIdx, se.Time, se.Err)
		}
	}

	fmt.Fprintln(w)
}
