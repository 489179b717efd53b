package strategy

import (
	"time"

	"github.com/quantbrew/trader/market"
)

// Action is a trading decision for one bar.
type Action int

const (
	Hold Action = iota
	Buy
	Sell
)

func (a Action) String() string {
	switch a {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return "HOLD"
	}
}

// Signal is the output of one strategy evaluation. ATR and Quantity
// are optional hints; zero means "not provided" and the engine falls
// back to its defaults.
type Signal struct {
	Action   Action
	Score    float64
	ATR      float64
	Quantity float64
	Reason   string
}

// PositionView is the read-only slice of an open position handed to
// custom exit hooks.
type PositionView struct {
	Symbol     string
	EntryTime  time.Time
	EntryPrice float64
	Quantity   float64 // signed: >0 long, <0 short
	StopLoss   float64
	TakeProfit float64
	BarsHeld   int
	ATR        float64
}

func (p PositionView) Long() bool { return p.Quantity > 0 }

// ExitFunc is an optional strategy-supplied exit rule, evaluated
// before the engine's own exit chain. When exit is true, price may be
// 0 to mean "close at the bar's close".
type ExitFunc func(hist market.History, pos PositionView) (exit bool, reason string, price float64)

// Capabilities describes the optional hooks and risk parameters a
// strategy provides. Zero values mean "not provided"; the engine
// substitutes its configured defaults.
type Capabilities struct {
	CheckExit ExitFunc

	ATRSLMultiplier   float64
	ATRTPMultiplier   float64
	TimeStopBars      int
	BreakevenTriggerR float64
}

// Strategy is the signal-source contract: one required evaluation
// method plus a capability description. GenerateSignal sees history
// truncated through the current bar only.
type Strategy interface {
	Name() string
	Capabilities() Capabilities
	GenerateSignal(hist market.History, symbol string) (Signal, error)
}

var registry = make(map[string]Strategy)

func Register(name string, strat Strategy) {
	registry[name] = strat
}

func Get(name string) Strategy {
	return registry[name]
}
