package market

import "time"

// Candle represents OHLC (Open, High, Low, Close) candlestick data for
// one bar of a historical series.
type Candle struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// History is an ordered, oldest-first series of candles.
type History []Candle

// Through returns the window of history up to and including bar i.
// The simulation loop uses it to hand strategies a view that contains
// no future bars.
func (h History) Through(i int) History {
	if i < 0 {
		return nil
	}
	if i >= len(h) {
		return h
	}
	return h[:i+1]
}

// Last returns the most recent candle. Callers must check Len first.
func (h History) Last() Candle {
	return h[len(h)-1]
}

func (h History) Len() int { return len(h) }

// Closes extracts the close series, oldest first.
func (h History) Closes() []float64 {
	out := make([]float64, len(h))
	for i, c := range h {
		out[i] = c.Close
	}
	return out
}
