package journal

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"
)

// CSVJournal appends trades and equity snapshots to two CSV files.
// Rows are flushed on every record so a crash loses at most the row
// being written.
type CSVJournal struct {
	tradesFile *os.File
	equityFile *os.File
	trades     *csv.Writer
	equity     *csv.Writer
}

func NewCSV(tradesPath, equityPath string) (*CSVJournal, error) {
	tf, err := openAppend(tradesPath, []string{
		"trade_id", "strategy", "symbol", "quantity", "side",
		"entry_price", "exit_price", "entry_time", "exit_time",
		"pnl", "pnl_pct", "reason",
	})
	if err != nil {
		return nil, err
	}

	ef, err := openAppend(equityPath, []string{"time", "equity"})
	if err != nil {
		tf.Close()
		return nil, err
	}

	return &CSVJournal{
		tradesFile: tf,
		equityFile: ef,
		trades:     csv.NewWriter(tf),
		equity:     csv.NewWriter(ef),
	}, nil
}

func openAppend(path string, header []string) (*os.File, error) {
	info, statErr := os.Stat(path)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}

	// Write the header only for a new or empty file.
	if statErr != nil || info.Size() == 0 {
		w := csv.NewWriter(f)
		if err := w.Write(header); err != nil {
			f.Close()
			return nil, err
		}
		w.Flush()
		if err := w.Error(); err != nil {
			f.Close()
			return nil, err
		}
	}
	return f, nil
}

func (j *CSVJournal) RecordTrade(t TradeRecord) error {
	err := j.trades.Write([]string{
		t.TradeID,
		t.Strategy,
		t.Symbol,
		fmtFloat(t.Quantity),
		t.Side,
		fmtFloat(t.EntryPrice),
		fmtFloat(t.ExitPrice),
		t.EntryTime.Format(time.RFC3339),
		t.ExitTime.Format(time.RFC3339),
		fmtFloat(t.PnL),
		fmtFloat(t.PnLPct),
		t.Reason,
	})
	if err != nil {
		return err
	}
	j.trades.Flush()
	return j.trades.Error()
}

func (j *CSVJournal) RecordEquity(e EquitySnapshot) error {
	if err := j.equity.Write([]string{e.Time.Format(time.RFC3339), fmtFloat(e.Equity)}); err != nil {
		return err
	}
	j.equity.Flush()
	return j.equity.Error()
}

func (j *CSVJournal) Close() error {
	j.trades.Flush()
	j.equity.Flush()

	var firstErr error
	for _, c := range []interface{ Close() error }{j.tradesFile, j.equityFile} {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return fmt.Errorf("close journal: %w", firstErr)
	}
	return nil
}

func fmtFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
