package strategy

import (
	"encoding/json"
	"math"

	"github.com/quantbrew/trader/indicators"
	"github.com/quantbrew/trader/market"
)

// EMACrossATR trades fast/slow EMA crossovers with ATR-derived
// brackets.
// - Enters long on an upward cross, short on a downward cross
// - Attaches ATR(period) to the signal so the engine can size brackets
// - Supplies a recross exit hook
type EMACrossATR struct {
	*EMACrossATRConfig
}

type EMACrossATRConfig struct {
	FastPeriod int `json:"fast-period"`
	SlowPeriod int `json:"slow-period"`
	ATRPeriod  int `json:"atr-period"`

	SLMultiplier      float64 `json:"sl-multiplier"`
	TPMultiplier      float64 `json:"tp-multiplier"`
	TimeStopBars      int     `json:"time-stop-bars"`
	BreakevenTriggerR float64 `json:"breakeven-trigger-r"`
}

func (c *EMACrossATRConfig) JSON() ([]byte, error) {
	return json.Marshal(c)
}

func EMACrossATRDefaults() *EMACrossATRConfig {
	return &EMACrossATRConfig{
		FastPeriod:        10,
		SlowPeriod:        30,
		ATRPeriod:         14,
		SLMultiplier:      1.5,
		TPMultiplier:      3.0,
		TimeStopBars:      0,
		BreakevenTriggerR: 1.0,
	}
}

func NewEMACrossATR(cfg *EMACrossATRConfig) *EMACrossATR {
	if cfg == nil {
		cfg = EMACrossATRDefaults()
	}
	if cfg.ATRPeriod == 0 {
		cfg.ATRPeriod = 14
	}
	return &EMACrossATR{EMACrossATRConfig: cfg}
}

func (s *EMACrossATR) Name() string { return "ema-cross-atr" }

func (s *EMACrossATR) Capabilities() Capabilities {
	return Capabilities{
		CheckExit:         s.checkExit,
		ATRSLMultiplier:   s.SLMultiplier,
		ATRTPMultiplier:   s.TPMultiplier,
		TimeStopBars:      s.TimeStopBars,
		BreakevenTriggerR: s.BreakevenTriggerR,
	}
}

func (s *EMACrossATR) GenerateSignal(hist market.History, _ string) (Signal, error) {
	prevDiff, diff, ok := s.emaDiffs(hist)
	if !ok {
		return Signal{Action: Hold}, nil
	}

	var atr float64
	if v, err := indicators.NewATR(s.ATRPeriod).FromHistory(hist); err == nil {
		atr = v
	}

	switch {
	case prevDiff <= 0 && diff > 0:
		return Signal{Action: Buy, Score: score(diff, hist), ATR: atr, Reason: "fast EMA crossed above slow"}, nil
	case prevDiff >= 0 && diff < 0:
		return Signal{Action: Sell, Score: score(diff, hist), ATR: atr, Reason: "fast EMA crossed below slow"}, nil
	}
	return Signal{Action: Hold}, nil
}

// checkExit closes the position when the EMAs recross against it.
func (s *EMACrossATR) checkExit(hist market.History, pos PositionView) (bool, string, float64) {
	_, diff, ok := s.emaDiffs(hist)
	if !ok {
		return false, "", 0
	}
	if pos.Long() && diff < 0 {
		return true, "EMA_RECROSS", 0
	}
	if !pos.Long() && diff > 0 {
		return true, "EMA_RECROSS", 0
	}
	return false, "", 0
}

// emaDiffs returns the fast-slow spread at the previous and current
// bar. ok is false until both EMAs are warmed up at both bars.
func (s *EMACrossATR) emaDiffs(hist market.History) (prevDiff, diff float64, ok bool) {
	if len(hist) < s.SlowPeriod+1 {
		return 0, 0, false
	}

	fast := indicators.NewEMA(s.FastPeriod)
	slow := indicators.NewEMA(s.SlowPeriod)

	for i, c := range hist {
		fast.Update(c)
		slow.Update(c)
		if i == len(hist)-2 {
			if !fast.Ready() || !slow.Ready() {
				return 0, 0, false
			}
			prevDiff = fast.Value() - slow.Value()
		}
	}
	if !fast.Ready() || !slow.Ready() {
		return 0, 0, false
	}
	return prevDiff, fast.Value() - slow.Value(), true
}

func score(diff float64, hist market.History) float64 {
	last := hist.Last().Close
	if last == 0 {
		return 0
	}
	return math.Abs(diff) / last
}

func init() {
	Register("ema-cross-atr", NewEMACrossATR(nil))
}
