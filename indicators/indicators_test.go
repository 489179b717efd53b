package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantbrew/trader/market"
)

func closesOnly(vals ...float64) []market.Candle {
	cs := make([]market.Candle, len(vals))
	for i, v := range vals {
		cs[i] = market.Candle{Open: v, High: v, Low: v, Close: v}
	}
	return cs
}

func TestEMAWarmupGate(t *testing.T) {
	e := NewEMA(3)
	assert.Equal(t, 3, e.Warmup())

	e.Update(market.Candle{Close: 10})
	e.Update(market.Candle{Close: 11})
	assert.False(t, e.Ready())
	assert.Zero(t, e.Value())

	e.Update(market.Candle{Close: 12})
	assert.True(t, e.Ready())
	assert.Positive(t, e.Value())
}

func TestEMASeedsAndSmooths(t *testing.T) {
	// period 3 -> multiplier 0.5, seed at the first close.
	e := NewEMA(3)
	for _, c := range closesOnly(10, 12, 14) {
		e.Update(c)
	}
	// 10 -> 11 -> 12.5
	assert.InDelta(t, 12.5, e.Value(), 1e-9)
}

func TestEMAConstantSeriesConverges(t *testing.T) {
	e := NewEMA(10)
	for i := 0; i < 50; i++ {
		e.Update(market.Candle{Close: 42})
	}
	assert.InDelta(t, 42, e.Value(), 1e-9)
}

func TestEMAReset(t *testing.T) {
	e := NewEMA(2)
	e.Update(market.Candle{Close: 100})
	e.Update(market.Candle{Close: 100})
	require.True(t, e.Ready())

	e.Reset()
	assert.False(t, e.Ready())
	assert.Zero(t, e.Value())
}

func TestATRWarmupNeedsPreviousCandle(t *testing.T) {
	a := NewATR(14)
	assert.Equal(t, 15, a.Warmup())

	for i := 0; i < 14; i++ {
		a.Update(market.Candle{High: 101, Low: 99, Close: 100})
	}
	assert.False(t, a.Ready(), "14 candles yield only 13 true ranges")

	a.Update(market.Candle{High: 101, Low: 99, Close: 100})
	assert.True(t, a.Ready())
}

func TestATRConstantRange(t *testing.T) {
	// Every bar spans exactly 2 points and closes mid-range, so every
	// true range is 2 and ATR settles there.
	a := NewATR(5)
	for i := 0; i < 20; i++ {
		a.Update(market.Candle{High: 101, Low: 99, Close: 100})
	}
	assert.InDelta(t, 2, a.Value(), 1e-9)
}

func TestATRGapUsesPreviousClose(t *testing.T) {
	a := NewATR(1)
	a.Update(market.Candle{High: 101, Low: 99, Close: 100})
	// Gap up: high-low is 1, but the distance from last close is 10.
	a.Update(market.Candle{High: 110, Low: 109, Close: 109.5})
	assert.InDelta(t, 10, a.Value(), 1e-9)
}

func TestATRFromHistory(t *testing.T) {
	h := make(market.History, 0, 16)
	for i := 0; i < 16; i++ {
		h = append(h, market.Candle{High: 102, Low: 98, Close: 100})
	}

	v, err := NewATR(14).FromHistory(h)
	require.NoError(t, err)
	assert.InDelta(t, 4, v, 1e-9)

	_, err = NewATR(14).FromHistory(h[:10])
	assert.Error(t, err)
}

func TestIndicatorNames(t *testing.T) {
	assert.Equal(t, "EMA(10)", NewEMA(10).Name())
	assert.Equal(t, "ATR(14)", NewATR(14).Name())
}
