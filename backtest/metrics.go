package backtest

import "math"

// profitFactorCap stands in for an infinite profit factor when a run
// has profits but no losses.
const profitFactorCap = 9999.0

// tradingDaysPerYear annualizes the trade-level Sharpe ratio.
const tradingDaysPerYear = 252

// Metrics aggregates closed trades and the equity curve. All fields
// are pure functions of their inputs.
type Metrics struct {
	TotalReturnPct float64
	WinRate        float64
	ProfitFactor   float64
	MaxDrawdownPct float64

	// SharpeRatio here is a trade-level approximation: mean over
	// stdev of per-trade pnl_pct, annualized by sqrt(252). It is not
	// a bar-level Sharpe and will overstate smoothness for sparse
	// traders.
	SharpeRatio float64

	Wins        int
	Losses      int
	GrossProfit float64
	GrossLoss   float64
}

// ComputeMetrics summarizes a completed run. It never divides by
// zero: empty inputs produce zeroed metrics.
func ComputeMetrics(trades []Trade, equity []EquityPoint, capital float64) Metrics {
	var m Metrics

	for _, t := range trades {
		switch {
		case t.PnL > 0:
			m.Wins++
			m.GrossProfit += t.PnL
		case t.PnL < 0:
			m.Losses++
			m.GrossLoss += -t.PnL
		default:
			m.Losses++
		}
	}

	if n := len(trades); n > 0 {
		m.WinRate = float64(m.Wins) / float64(n) * 100
	}

	switch {
	case m.GrossLoss > 0:
		m.ProfitFactor = m.GrossProfit / m.GrossLoss
	case m.GrossProfit > 0:
		m.ProfitFactor = profitFactorCap
	}

	if capital > 0 && len(equity) > 0 {
		final := equity[len(equity)-1].Equity
		m.TotalReturnPct = (final - capital) / capital * 100
	}

	m.MaxDrawdownPct = maxDrawdownPct(equity)
	m.SharpeRatio = tradeSharpe(trades)

	return m
}

// maxDrawdownPct walks the equity curve with a strictly causal
// running peak: the peak at bar i only ever looks backward.
func maxDrawdownPct(equity []EquityPoint) float64 {
	var peak, maxDD float64
	for i, pt := range equity {
		if i == 0 || pt.Equity > peak {
			peak = pt.Equity
		}
		if peak <= 0 {
			continue
		}
		dd := (peak - pt.Equity) / peak * 100
		if dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

func tradeSharpe(trades []Trade) float64 {
	if len(trades) < 2 {
		return 0
	}

	var sum float64
	for _, t := range trades {
		sum += t.PnLPct
	}
	mean := sum / float64(len(trades))

	var sq float64
	for _, t := range trades {
		d := t.PnLPct - mean
		sq += d * d
	}
	std := math.Sqrt(sq / float64(len(trades)-1))
	if std == 0 {
		return 0
	}

	return mean / std * math.Sqrt(tradingDaysPerYear)
}
