package risk

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, clock Clock) *Manager {
	t.Helper()
	mgr, err := NewManager(Config{
		Strategy:           "test-strat",
		Exchange:           "NSE",
		Capital:            100000,
		MaxDailyLossPct:    5.0,
		MaxLossPerTradePct: 1.0,
		TrailingStopPct:    1.5,
		CooldownSeconds:    300,
		StateDir:           t.TempDir(),
	}, WithClock(clock))
	require.NoError(t, err)
	return mgr
}

func testClock() *FixedClock {
	return &FixedClock{T: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)}
}

func TestConfigFailsFast(t *testing.T) {
	_, err := NewManager(Config{Strategy: "s", Exchange: "NSE"})
	require.Error(t, err)

	var cerr *ConfigError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "capital", cerr.Field)

	_, err = NewManager(Config{Strategy: "s", Capital: 1000})
	require.Error(t, err)
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "exchange", cerr.Field)
}

func TestCircuitBreakerTriggeredThenActive(t *testing.T) {
	clock := testClock()
	mgr := newTestManager(t, clock)

	// Drive daily_pnl to -6000 against a 5% of 100000 = 5000 limit.
	require.NoError(t, mgr.RegisterEntry("RELIANCE", 100, 100, "BUY"))
	pnl, err := mgr.RegisterExit("RELIANCE", 40)
	require.NoError(t, err)
	assert.InDelta(t, -6000, pnl, 1e-9)

	ok, reason := mgr.CanTrade()
	assert.False(t, ok)
	assert.Contains(t, reason, "CIRCUIT BREAKER TRIGGERED")

	ok, reason = mgr.CanTrade()
	assert.False(t, ok)
	assert.Contains(t, reason, "CIRCUIT BREAKER ACTIVE")

	// No same-day recovery, even if later trades would claw back.
	clock.Advance(2 * time.Hour)
	ok, reason = mgr.CanTrade()
	assert.False(t, ok)
	assert.Contains(t, reason, "CIRCUIT BREAKER ACTIVE")
}

func TestCircuitBreakerResetsNextDay(t *testing.T) {
	clock := testClock()
	mgr := newTestManager(t, clock)

	require.NoError(t, mgr.RegisterEntry("RELIANCE", 100, 100, "BUY"))
	_, err := mgr.RegisterExit("RELIANCE", 40)
	require.NoError(t, err)

	ok, _ := mgr.CanTrade()
	assert.False(t, ok)

	clock.Advance(24 * time.Hour)
	ok, reason := mgr.CanTrade()
	assert.True(t, ok, reason)

	st := mgr.Snapshot()
	assert.Zero(t, st.DailyPnL)
	assert.Zero(t, st.DailyTrades)
	assert.False(t, st.CircuitBreakerActive)
}

func TestCooldown(t *testing.T) {
	clock := testClock()
	mgr := newTestManager(t, clock)

	require.NoError(t, mgr.RegisterEntry("INFY", 10, 1500, "BUY"))
	_, err := mgr.RegisterExit("INFY", 1500)
	require.NoError(t, err)

	clock.Advance(time.Second)
	ok, reason := mgr.CanTrade()
	assert.False(t, ok)
	assert.Contains(t, reason, "COOLDOWN")

	clock.Advance(300 * time.Second) // now T+301s
	ok, reason = mgr.CanTrade()
	assert.True(t, ok, reason)
}

func TestPreCloseWindowRejectsEntries(t *testing.T) {
	clock := &FixedClock{T: time.Date(2026, 3, 2, 15, 5, 0, 0, time.UTC)}
	mgr, err := NewManager(Config{
		Strategy:        "test-strat",
		Exchange:        "NSE",
		Capital:         100000,
		SquareOffHour:   15,
		SquareOffMinute: 15,
		PreCloseWindow:  15 * time.Minute,
		StateDir:        t.TempDir(),
	}, WithClock(clock))
	require.NoError(t, err)

	ok, reason := mgr.CanTrade()
	assert.False(t, ok)
	assert.Contains(t, reason, "MARKET CLOSE")

	// Well before the window the gate is open.
	clock.T = time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC)
	ok, _ = mgr.CanTrade()
	assert.True(t, ok)
}

func TestRegisterEntryDefaultStop(t *testing.T) {
	mgr := newTestManager(t, testClock())

	require.NoError(t, mgr.RegisterEntry("TCS", 5, 4000, "BUY"))
	st := mgr.Snapshot()
	pos := st.Positions["TCS"]
	assert.InDelta(t, 3960, pos.StopLoss, 1e-9) // 4000 * (1 - 1%)
	assert.InDelta(t, 5, pos.Qty, 1e-9)

	require.NoError(t, mgr.RegisterEntry("SBIN", 10, 800, "SELL"))
	pos = mgr.Snapshot().Positions["SBIN"]
	assert.InDelta(t, 808, pos.StopLoss, 1e-9) // 800 * (1 + 1%)
	assert.InDelta(t, -10, pos.Qty, 1e-9)
}

func TestRegisterExitPnLBySide(t *testing.T) {
	mgr := newTestManager(t, testClock())

	require.NoError(t, mgr.RegisterEntry("LONG", 10, 100, "BUY"))
	pnl, err := mgr.RegisterExit("LONG", 110)
	require.NoError(t, err)
	assert.InDelta(t, 100, pnl, 1e-9)

	require.NoError(t, mgr.RegisterEntry("SHORT", 10, 100, "SELL"))
	pnl, err = mgr.RegisterExit("SHORT", 90)
	require.NoError(t, err)
	assert.InDelta(t, 100, pnl, 1e-9)

	st := mgr.Snapshot()
	assert.InDelta(t, 200, st.DailyPnL, 1e-9)
	assert.Empty(t, st.Positions)

	_, err = mgr.RegisterExit("LONG", 100)
	assert.Error(t, err)
}

func TestTrailingStopMonotonicity(t *testing.T) {
	mgr := newTestManager(t, testClock())

	require.NoError(t, mgr.RegisterEntry("RELIANCE", 10, 100, "BUY"))

	prev := 0.0
	for _, price := range []float64{101, 105, 103, 110, 108, 102} {
		stop, err := mgr.UpdateTrailingStop("RELIANCE", price)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, stop, prev, "long trailing stop moved down at price %v", price)
		prev = stop
	}
	// 110 * (1 - 1.5%) is the high-water mark.
	assert.InDelta(t, 110*0.985, prev, 1e-9)
}

func TestTrailingStopShortMirrored(t *testing.T) {
	mgr := newTestManager(t, testClock())

	require.NoError(t, mgr.RegisterEntry("RELIANCE", 10, 100, "SELL"))

	stop1, err := mgr.UpdateTrailingStop("RELIANCE", 95)
	require.NoError(t, err)
	stop2, err := mgr.UpdateTrailingStop("RELIANCE", 98)
	require.NoError(t, err)
	assert.Equal(t, stop1, stop2, "short trailing stop must never loosen")

	stop3, err := mgr.UpdateTrailingStop("RELIANCE", 90)
	require.NoError(t, err)
	assert.Less(t, stop3, stop1)
}

func TestCheckStopLossPrefersTrailing(t *testing.T) {
	mgr := newTestManager(t, testClock())

	require.NoError(t, mgr.RegisterEntry("RELIANCE", 10, 100, "BUY"))
	assert.False(t, mgr.CheckStopLoss("RELIANCE", 99.5)) // static stop is 99
	assert.True(t, mgr.CheckStopLoss("RELIANCE", 99))

	_, err := mgr.UpdateTrailingStop("RELIANCE", 110) // trail to 108.35
	require.NoError(t, err)
	assert.True(t, mgr.CheckStopLoss("RELIANCE", 108))
	assert.False(t, mgr.CheckStopLoss("RELIANCE", 109))
}

func TestStatePersistsAcrossManagers(t *testing.T) {
	dir := t.TempDir()
	clock := testClock()
	cfg := Config{
		Strategy: "persisted",
		Exchange: "NSE",
		Capital:  100000,
		StateDir: dir,
	}

	mgr, err := NewManager(cfg, WithClock(clock))
	require.NoError(t, err)
	require.NoError(t, mgr.RegisterEntry("RELIANCE", 10, 100, "BUY"))

	reloaded, err := NewManager(cfg, WithClock(clock))
	require.NoError(t, err)

	st := reloaded.Snapshot()
	require.Contains(t, st.Positions, "RELIANCE")
	assert.InDelta(t, 100, st.Positions["RELIANCE"].EntryPrice, 1e-9)
	assert.Equal(t, 1, st.DailyTrades)
}

func TestCorruptStateFallsBackAndKeepsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken_risk.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	mgr, err := NewManager(Config{
		Strategy: "broken",
		Exchange: "NSE",
		Capital:  100000,
		StateDir: dir,
	}, WithClock(testClock()))
	require.NoError(t, err)

	st := mgr.Snapshot()
	assert.Zero(t, st.DailyPnL)
	assert.Empty(t, st.Positions)

	// The malformed content survives for forensics.
	kept, err := os.ReadFile(path + ".corrupt")
	require.NoError(t, err)
	assert.Equal(t, "{not json", string(kept))
}
