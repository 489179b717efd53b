package risk

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type execRecorder struct {
	orders []string
	fail   bool
}

func (r *execRecorder) exec(symbol, side string, qty float64) error {
	if r.fail {
		return fmt.Errorf("broker down")
	}
	r.orders = append(r.orders, fmt.Sprintf("%s %s %.0f", side, symbol, qty))
	return nil
}

func TestSquareOffWaitsForCutoff(t *testing.T) {
	clock := &FixedClock{T: time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)}
	mgr := newTestManager(t, clock)
	require.NoError(t, mgr.RegisterEntry("RELIANCE", 10, 100, "BUY"))

	rec := &execRecorder{}
	so, err := NewSquareOff(mgr, 15, 15, rec.exec, WithSquareOffClock(clock))
	require.NoError(t, err)

	done, err := so.Run()
	require.NoError(t, err)
	assert.False(t, done)
	assert.Empty(t, rec.orders)
}

func TestSquareOffFlattensAndIsIdempotent(t *testing.T) {
	clock := &FixedClock{T: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)}
	mgr := newTestManager(t, clock)
	require.NoError(t, mgr.RegisterEntry("RELIANCE", 10, 100, "BUY"))
	require.NoError(t, mgr.RegisterEntry("SBIN", 20, 800, "SELL"))

	clock.T = time.Date(2026, 3, 2, 15, 20, 0, 0, time.UTC)

	rec := &execRecorder{}
	so, err := NewSquareOff(mgr, 15, 15, rec.exec, WithSquareOffClock(clock))
	require.NoError(t, err)

	done, err := so.Run()
	require.NoError(t, err)
	assert.True(t, done)
	assert.Len(t, rec.orders, 2)
	assert.Contains(t, rec.orders, "SELL RELIANCE 10") // long flattens with a sell
	assert.Contains(t, rec.orders, "BUY SBIN 20")      // short flattens with a buy
	assert.Empty(t, mgr.Snapshot().Positions)

	pnlBefore := mgr.Snapshot().DailyPnL

	// Second same-day call is a no-op even if positions reappear.
	require.NoError(t, mgr.RegisterEntry("TCS", 5, 4000, "BUY"))
	done, err = so.Run()
	require.NoError(t, err)
	assert.False(t, done)
	assert.Len(t, rec.orders, 2)
	assert.Equal(t, pnlBefore, mgr.Snapshot().DailyPnL)
}

func TestSquareOffRearmsNextDay(t *testing.T) {
	clock := &FixedClock{T: time.Date(2026, 3, 2, 15, 30, 0, 0, time.UTC)}
	mgr := newTestManager(t, clock)

	rec := &execRecorder{}
	so, err := NewSquareOff(mgr, 15, 15, rec.exec, WithSquareOffClock(clock))
	require.NoError(t, err)

	done, err := so.Run()
	require.NoError(t, err)
	assert.False(t, done) // nothing open, but the day is consumed

	require.NoError(t, mgr.RegisterEntry("RELIANCE", 10, 100, "BUY"))
	done, err = so.Run()
	require.NoError(t, err)
	assert.False(t, done, "same-day rerun must not fire")

	clock.T = clock.T.Add(24 * time.Hour)
	done, err = so.Run()
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, []string{"SELL RELIANCE 10"}, rec.orders)
}

func TestSquareOffFollowsManagerClock(t *testing.T) {
	mgr := newTestManager(t, testClock()) // 10:00
	require.NoError(t, mgr.RegisterEntry("RELIANCE", 10, 100, "BUY"))

	rec := &execRecorder{}
	so, err := NewSquareOff(mgr, 15, 15, rec.exec) // no clock of its own
	require.NoError(t, err)

	done, err := so.Run()
	require.NoError(t, err)
	assert.False(t, done, "manager clock still before cutoff")

	mgr.AdvanceTo(time.Date(2026, 3, 2, 15, 15, 0, 0, time.UTC))
	done, err = so.Run()
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, []string{"SELL RELIANCE 10"}, rec.orders)
}

func TestSquareOffQuoteFlowsIntoPnL(t *testing.T) {
	clock := &FixedClock{T: time.Date(2026, 3, 2, 15, 30, 0, 0, time.UTC)}
	mgr := newTestManager(t, clock)
	require.NoError(t, mgr.RegisterEntry("RELIANCE", 10, 100, "BUY"))

	rec := &execRecorder{}
	quote := func(symbol string) (float64, error) { return 110, nil }

	so, err := NewSquareOff(mgr, 15, 15, rec.exec,
		WithSquareOffClock(clock), WithQuote(quote))
	require.NoError(t, err)

	done, err := so.Run()
	require.NoError(t, err)
	assert.True(t, done)
	assert.InDelta(t, 100, mgr.Snapshot().DailyPnL, 1e-9) // (110-100)*10
}

func TestSquareOffExecFailureKeepsPosition(t *testing.T) {
	clock := &FixedClock{T: time.Date(2026, 3, 2, 15, 30, 0, 0, time.UTC)}
	mgr := newTestManager(t, clock)
	require.NoError(t, mgr.RegisterEntry("RELIANCE", 10, 100, "BUY"))

	rec := &execRecorder{fail: true}
	so, err := NewSquareOff(mgr, 15, 15, rec.exec, WithSquareOffClock(clock))
	require.NoError(t, err)

	done, err := so.Run()
	require.NoError(t, err)
	assert.False(t, done)
	assert.Contains(t, mgr.Snapshot().Positions, "RELIANCE")
}
