package market

import (
	"context"
	"sort"
	"time"
)

// DataProvider supplies historical bars for a symbol. An empty result
// means "no data for the range", not an error; providers return errors
// only for structural failures (unreadable file, bad interval).
type DataProvider interface {
	History(ctx context.Context, symbol, exchange string, interval Interval, start, end time.Time) (History, error)
}

// MemoryProvider serves pre-loaded candles, keyed by symbol. It is the
// provider of choice for tests and synthetic price paths.
type MemoryProvider struct {
	Series map[string]History
}

func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{Series: make(map[string]History)}
}

func (m *MemoryProvider) Add(symbol string, h History) {
	m.Series[symbol] = h
}

func (m *MemoryProvider) History(_ context.Context, symbol, _ string, _ Interval, start, end time.Time) (History, error) {
	h := m.Series[symbol]
	var out History
	for _, c := range h {
		if c.Time.Before(start) || c.Time.After(end) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out, nil
}
