package backtest

import "fmt"

// DataError reports absent or unusable historical data. It is a
// structured result, not a panic: callers inspect it with errors.As.
type DataError struct {
	Symbol   string
	Interval string
	Reason   string
}

func (e *DataError) Error() string {
	return fmt.Sprintf("no usable data for %s %s: %s", e.Symbol, e.Interval, e.Reason)
}

// SignalError records a strategy failure on one bar. The bar was
// treated as HOLD; the error is kept for post-run inspection.
type SignalError struct {
	BarIdx int
	Time   string
	Err    string
}
