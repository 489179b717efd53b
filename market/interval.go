package market

import (
	"fmt"
	"time"
)

// Interval is a bar timeframe like "5m" or "1h".
type Interval string

const (
	M1  Interval = "1m"
	M5  Interval = "5m"
	M15 Interval = "15m"
	M30 Interval = "30m"
	H1  Interval = "1h"
	D1  Interval = "1d"
)

var intervalDurations = map[Interval]time.Duration{
	M1:  time.Minute,
	M5:  5 * time.Minute,
	M15: 15 * time.Minute,
	M30: 30 * time.Minute,
	H1:  time.Hour,
	D1:  24 * time.Hour,
}

// Duration returns the wall-clock length of one bar, or 0 for an
// unknown interval.
func (iv Interval) Duration() time.Duration {
	return intervalDurations[iv]
}

func (iv Interval) Valid() bool {
	_, ok := intervalDurations[iv]
	return ok
}

// ParseInterval validates a timeframe string.
func ParseInterval(s string) (Interval, error) {
	iv := Interval(s)
	if !iv.Valid() {
		return "", fmt.Errorf("unsupported interval %q (supported: 1m, 5m, 15m, 30m, 1h, 1d)", s)
	}
	return iv, nil
}
