package journal

import "time"

// TradeRecord is one closed trade as persisted by a journal backend.
type TradeRecord struct {
	TradeID    string
	Strategy   string
	Symbol     string
	Quantity   float64
	Side       string
	EntryPrice float64
	ExitPrice  float64
	EntryTime  time.Time
	ExitTime   time.Time
	PnL        float64
	PnLPct     float64
	Reason     string
}

// EquitySnapshot is one point of the mark-to-market equity curve.
type EquitySnapshot struct {
	Time   time.Time
	Equity float64
}

type Journal interface {
	RecordTrade(TradeRecord) error
	RecordEquity(EquitySnapshot) error
	Close() error
}
