package backtest

import (
	"math"

	"github.com/quantbrew/trader/market"
	"github.com/quantbrew/trader/strategy"
)

// exitDecision is the outcome of one bar's exit evaluation.
type exitDecision struct {
	price  float64
	reason string
	hit    bool
}

// evaluateExit runs the ordered exit chain against one bar, first
// match wins:
//
//	custom strategy hook -> time-stop -> breakeven tighten ->
//	stop-loss touch -> take-profit touch
//
// The breakeven step is an adjustment, not an exit: it may move the
// stop toward entry (one-directional) before the stop test runs.
// When stop and take are both touched inside the same bar the stop
// wins; which boundary traded first is unknowable from OHLC, so the
// pessimistic rule is kept deliberately.
func evaluateExit(pos *Position, c market.Candle, idx int, hist market.History, caps strategy.Capabilities, cfg Config) exitDecision {
	if caps.CheckExit != nil {
		view := strategy.PositionView{
			Symbol:     pos.Symbol,
			EntryTime:  pos.EntryTime,
			EntryPrice: pos.EntryPrice,
			Quantity:   pos.Quantity,
			StopLoss:   pos.StopLoss,
			TakeProfit: pos.TakeProfit,
			BarsHeld:   idx - pos.EntryIdx,
			ATR:        pos.ATR,
		}
		if exit, reason, price := caps.CheckExit(hist, view); exit {
			if price == 0 {
				price = c.Close
			}
			if reason == "" {
				reason = "STRATEGY_EXIT"
			}
			return exitDecision{price: price, reason: reason, hit: true}
		}
	}

	maxBars := caps.TimeStopBars
	if maxBars == 0 {
		maxBars = cfg.MaxHoldBars
	}
	if maxBars > 0 && idx-pos.EntryIdx >= maxBars {
		return exitDecision{price: c.Close, reason: ReasonTimeStop, hit: true}
	}

	applyBreakeven(pos, c, caps, cfg)

	long := pos.Quantity > 0
	if pos.StopLoss != 0 {
		if long && c.Low <= pos.StopLoss {
			return exitDecision{price: pos.StopLoss, reason: ReasonStopLoss, hit: true}
		}
		if !long && c.High >= pos.StopLoss {
			return exitDecision{price: pos.StopLoss, reason: ReasonStopLoss, hit: true}
		}
	}
	if pos.TakeProfit != 0 {
		if long && c.High >= pos.TakeProfit {
			return exitDecision{price: pos.TakeProfit, reason: ReasonTakeProf, hit: true}
		}
		if !long && c.Low <= pos.TakeProfit {
			return exitDecision{price: pos.TakeProfit, reason: ReasonTakeProf, hit: true}
		}
	}

	return exitDecision{}
}

// applyBreakeven tightens the stop to entry once price has moved the
// configured R-multiple in the position's favor. The shift happens at
// most once and never loosens the stop.
func applyBreakeven(pos *Position, c market.Candle, caps strategy.Capabilities, cfg Config) {
	if pos.breakevenDone || pos.StopLoss == 0 {
		return
	}

	triggerR := caps.BreakevenTriggerR
	if triggerR == 0 {
		triggerR = cfg.BreakevenR
	}
	if triggerR <= 0 {
		return
	}

	riskDist := math.Abs(pos.EntryPrice - pos.StopLoss)
	if riskDist == 0 {
		return
	}

	if pos.Quantity > 0 {
		if c.High >= pos.EntryPrice+triggerR*riskDist && pos.StopLoss < pos.EntryPrice {
			pos.StopLoss = pos.EntryPrice
			pos.breakevenDone = true
		}
	} else {
		if c.Low <= pos.EntryPrice-triggerR*riskDist && pos.StopLoss > pos.EntryPrice {
			pos.StopLoss = pos.EntryPrice
			pos.breakevenDone = true
		}
	}
}
