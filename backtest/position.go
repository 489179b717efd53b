package backtest

import (
	"time"
)

// Side: +1 long, -1 short
type Side int8

const (
	Long  Side = +1
	Short Side = -1
)

func (s Side) String() string {
	if s == Short {
		return "SELL"
	}
	return "BUY"
}

// Exit reasons produced by the engine's rule chain.
const (
	ReasonStopLoss  = "STOP_LOSS"
	ReasonTakeProf  = "TAKE_PROFIT"
	ReasonTimeStop  = "TIME_STOP"
	ReasonSquareOff = "SQUARE_OFF"
	ReasonEndOfData = "END_OF_DATA"
)

// Position is the single open position of a backtest run. It is
// created when an entry signal passes the risk gate and destroyed by
// whichever exit rule fires first. Trailing-stop state lives in the
// risk manager, not here.
type Position struct {
	ID         string
	Symbol     string
	EntryTime  time.Time
	EntryPrice float64
	Quantity   float64 // signed: >0 long, <0 short
	StopLoss   float64
	TakeProfit float64
	ATR        float64
	EntryIdx   int

	breakevenDone bool
}

func (p *Position) Side() Side {
	if p.Quantity < 0 {
		return Short
	}
	return Long
}

// UnrealizedPnL marks the position against a price.
func (p *Position) UnrealizedPnL(price float64) float64 {
	return (price - p.EntryPrice) * p.Quantity
}

// Trade is the immutable snapshot of a closed position.
type Trade struct {
	ID         string
	Symbol     string
	EntryTime  time.Time
	ExitTime   time.Time
	EntryPrice float64
	ExitPrice  float64
	Quantity   float64
	Side       Side
	PnL        float64
	PnLPct     float64
	ExitReason string
}

// EquityPoint is one sample of the mark-to-market equity curve.
type EquityPoint struct {
	Time   time.Time
	Equity float64
}
