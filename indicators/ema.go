package indicators

import (
	"fmt"

	"github.com/quantbrew/trader/market"
)

// EMA is a streaming exponential moving average over candle closes.
type EMA struct {
	period int
	mult   float64
	value  float64
	count  int
}

func NewEMA(period int) *EMA {
	return &EMA{
		period: period,
		mult:   2.0 / float64(period+1),
	}
}

func (e *EMA) Name() string {
	return fmt.Sprintf("EMA(%d)", e.period)
}

// Warmup returns the number of candles needed before Value is usable.
func (e *EMA) Warmup() int { return e.period }

func (e *EMA) Reset() {
	e.value = 0
	e.count = 0
}

func (e *EMA) Update(c market.Candle) {
	e.count++
	if e.count == 1 {
		e.value = c.Close
		return
	}
	e.value = (c.Close-e.value)*e.mult + e.value
}

func (e *EMA) Ready() bool {
	return e.count >= e.period
}

func (e *EMA) Value() float64 {
	if !e.Ready() {
		return 0
	}
	return e.value
}
