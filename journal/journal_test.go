package journal

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTrade(id string, exit time.Time, pnl float64) TradeRecord {
	return TradeRecord{
		TradeID:    id,
		Strategy:   "ema-cross-atr",
		Symbol:     "RELIANCE",
		Quantity:   10,
		Side:       "LONG",
		EntryPrice: 100,
		ExitPrice:  100 + pnl/10,
		EntryTime:  exit.Add(-30 * time.Minute),
		ExitTime:   exit,
		PnL:        pnl,
		PnLPct:     pnl / 1000 * 100,
		Reason:     "TAKE_PROFIT",
	}
}

func TestSQLiteRoundTrip(t *testing.T) {
	j, err := NewSQLite(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	defer j.Close()

	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	require.NoError(t, j.RecordTrade(sampleTrade("t1", day.Add(10*time.Hour), 50)))
	require.NoError(t, j.RecordTrade(sampleTrade("t2", day.Add(14*time.Hour), -20)))
	require.NoError(t, j.RecordTrade(sampleTrade("t3", day.Add(34*time.Hour), 30)))

	got, err := j.ListTradesClosedBetween(day, day.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "t1", got[0].TradeID)
	assert.Equal(t, "t2", got[1].TradeID)
	assert.Equal(t, 50.0, got[0].PnL)
	assert.Equal(t, "TAKE_PROFIT", got[0].Reason)
	assert.True(t, got[0].ExitTime.Equal(day.Add(10*time.Hour)))
}

func TestSQLiteEquityInsert(t *testing.T) {
	j, err := NewSQLite(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	defer j.Close()

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, j.RecordEquity(EquitySnapshot{Time: now, Equity: 100500}))
	require.NoError(t, j.RecordEquity(EquitySnapshot{Time: now.Add(5 * time.Minute), Equity: 100750}))
}

func TestCSVWritesHeaderOncePerFile(t *testing.T) {
	dir := t.TempDir()
	trades := filepath.Join(dir, "trades.csv")
	equity := filepath.Join(dir, "equity.csv")

	day := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	j, err := NewCSV(trades, equity)
	require.NoError(t, err)
	require.NoError(t, j.RecordTrade(sampleTrade("t1", day, 50)))
	require.NoError(t, j.RecordEquity(EquitySnapshot{Time: day, Equity: 100050}))
	require.NoError(t, j.Close())

	// Reopening appends rows without repeating the header.
	j, err = NewCSV(trades, equity)
	require.NoError(t, err)
	require.NoError(t, j.RecordTrade(sampleTrade("t2", day.Add(time.Hour), -20)))
	require.NoError(t, j.Close())

	f, err := os.Open(trades)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "trade_id", rows[0][0])
	assert.Equal(t, "t1", rows[1][0])
	assert.Equal(t, "t2", rows[2][0])
	assert.Equal(t, "TAKE_PROFIT", rows[1][11])
}
