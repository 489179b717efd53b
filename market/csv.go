package market

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ulikunitz/xz"
)

// CSVProvider loads bar datasets from a directory. Files are named
// <SYMBOL>_<interval>.csv with rows
//
//	time,open,high,low,close,volume
//
// where time is RFC3339. A .csv.xz variant is read transparently, so
// large datasets can stay compressed on disk.
//
// Bad lines are counted and skipped rather than aborting the load;
// single malformed rows must never kill a backtest.
type CSVProvider struct {
	Dir string

	badLines int
}

func NewCSVProvider(dir string) *CSVProvider {
	return &CSVProvider{Dir: dir}
}

// BadLines reports how many rows were dropped during the last load.
func (p *CSVProvider) BadLines() int { return p.badLines }

func (p *CSVProvider) History(_ context.Context, symbol, _ string, interval Interval, start, end time.Time) (History, error) {
	base := fmt.Sprintf("%s_%s.csv", strings.ToUpper(symbol), interval)

	plain := filepath.Join(p.Dir, base)
	packed := plain + ".xz"

	var (
		r      io.Reader
		closer io.Closer
	)
	switch {
	case exists(plain):
		f, err := os.Open(plain)
		if err != nil {
			return nil, err
		}
		r, closer = f, f
	case exists(packed):
		f, err := os.Open(packed)
		if err != nil {
			return nil, err
		}
		xr, err := xz.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("open %s: %w", packed, err)
		}
		r, closer = xr, f
	default:
		// No dataset file at all is "no data", not an error.
		return nil, nil
	}
	defer closer.Close()

	h, bad, err := parseCandles(r, start, end)
	p.badLines = bad
	if err != nil {
		return nil, err
	}
	sort.Slice(h, func(i, j int) bool { return h[i].Time.Before(h[j].Time) })
	return h, nil
}

func parseCandles(r io.Reader, start, end time.Time) (History, int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	var (
		h   History
		bad int
	)
	for {
		row, err := cr.Read()
		if err == io.EOF {
			return h, bad, nil
		}
		if err != nil {
			return nil, bad, err
		}
		if len(row) == 0 {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(row[0]), "time") {
			continue
		}
		c, ok := parseRow(row)
		if !ok {
			bad++
			continue
		}
		if c.Time.Before(start) || c.Time.After(end) {
			continue
		}
		h = append(h, c)
	}
}

func parseRow(row []string) (Candle, bool) {
	if len(row) < 5 {
		return Candle{}, false
	}

	t, err := time.Parse(time.RFC3339, strings.TrimSpace(row[0]))
	if err != nil {
		return Candle{}, false
	}

	vals := make([]float64, 0, 5)
	for _, s := range row[1:] {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return Candle{}, false
		}
		vals = append(vals, v)
	}

	c := Candle{
		Time:  t,
		Open:  vals[0],
		High:  vals[1],
		Low:   vals[2],
		Close: vals[3],
	}
	if len(vals) > 4 {
		c.Volume = vals[4]
	}
	return c, true
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
