package risk

import (
	"fmt"
	"log"
	"math"
	"time"
)

// ExecFunc places one flattening order. Side is "BUY" or "SELL"; qty
// is always positive.
type ExecFunc func(symbol, side string, qty float64) error

// QuoteFunc fetches a live price for the exit fill. When absent the
// square-off falls back to the recorded entry price.
type QuoteFunc func(symbol string) (float64, error)

// SquareOff force-flattens all open positions once per trading day at
// the cutoff time. It is armed until the cutoff passes, executes at
// most once per day, and re-arms the next day. Unless an explicit
// clock is injected it reads the manager's clock, so a backtest that
// advances the manager to bar time drives the square-off too.
type SquareOff struct {
	mgr   *Manager
	exec  ExecFunc
	quote QuoteFunc
	clock Clock

	hour, minute int
	executedDate string
}

type SquareOffOption func(*SquareOff)

func WithQuote(q QuoteFunc) SquareOffOption {
	return func(s *SquareOff) { s.quote = q }
}

func WithSquareOffClock(c Clock) SquareOffOption {
	return func(s *SquareOff) { s.clock = c }
}

func NewSquareOff(mgr *Manager, hour, minute int, exec ExecFunc, opts ...SquareOffOption) (*SquareOff, error) {
	if mgr == nil {
		return nil, fmt.Errorf("square-off: risk manager is required")
	}
	if exec == nil {
		return nil, fmt.Errorf("square-off: exec callback is required")
	}

	s := &SquareOff{
		mgr:    mgr,
		exec:   exec,
		hour:   hour,
		minute: minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *SquareOff) now() time.Time {
	if s.clock != nil {
		return s.clock.Now()
	}
	return s.mgr.now()
}

// Run checks the cutoff and flattens open positions if due. It
// returns true only when at least one position was flattened.
// Subsequent same-day calls are no-ops.
func (s *SquareOff) Run() (bool, error) {
	now := s.now()
	today := now.Format(dateLayout)

	if s.executedDate == today {
		return false, nil
	}

	cutoff := time.Date(now.Year(), now.Month(), now.Day(), s.hour, s.minute, 0, 0, now.Location())
	if now.Before(cutoff) {
		return false, nil
	}

	// Past the cutoff: this day is done whether or not anything is
	// open, so later calls today short-circuit.
	s.executedDate = today

	positions := s.mgr.OpenPositions()
	if len(positions) == 0 {
		return false, nil
	}

	flattened := 0
	for symbol, pos := range positions {
		side := "SELL"
		if pos.Qty < 0 {
			side = "BUY"
		}
		qty := math.Abs(pos.Qty)

		if err := s.exec(symbol, side, qty); err != nil {
			log.Printf("square-off: flatten %s failed: %v", symbol, err)
			continue
		}

		exitPrice := pos.EntryPrice
		if s.quote != nil {
			if px, err := s.quote(symbol); err == nil && px > 0 {
				exitPrice = px
			} else if err != nil {
				log.Printf("square-off: quote %s failed, assuming entry price: %v", symbol, err)
			}
		}

		if _, err := s.mgr.RegisterExit(symbol, exitPrice); err != nil {
			log.Printf("square-off: register exit %s: %v", symbol, err)
			continue
		}
		flattened++
	}

	return flattened > 0, nil
}
