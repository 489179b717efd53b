package risk

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

// PositionState is the persisted record of one open position.
type PositionState struct {
	Qty          float64 `json:"qty"`
	EntryPrice   float64 `json:"entry_price"`
	StopLoss     float64 `json:"stop_loss"`
	TrailingStop float64 `json:"trailing_stop"`
}

// State is the per-strategy daily risk state, rewritten wholesale to
// one JSON file on every mutation.
type State struct {
	Positions            map[string]PositionState `json:"positions"`
	DailyPnL             float64                  `json:"daily_pnl"`
	DailyTrades          int                      `json:"daily_trades"`
	LastResetDate        string                   `json:"last_reset_date"`
	LastTradeTime        time.Time                `json:"last_trade_time"`
	CircuitBreakerActive bool                     `json:"is_circuit_breaker_active"`
}

func newState() *State {
	return &State{Positions: make(map[string]PositionState)}
}

const dateLayout = "2006-01-02"

// loadState reads a persisted state file. A missing file yields a
// fresh state. A malformed file also yields a fresh state; the bad
// content is copied aside to <path>.corrupt for forensics before the
// write-through cycle replaces the original.
func loadState(path string) *State {
	data, err := os.ReadFile(path)
	if err != nil {
		return newState()
	}

	st := newState()
	if err := json.Unmarshal(data, st); err != nil {
		if werr := os.WriteFile(path+".corrupt", data, 0o644); werr != nil {
			log.Printf("risk: preserve corrupt state %s: %v", path, werr)
		}
		log.Printf("risk: malformed state file %s, starting from zeroed state: %v", path, err)
		return newState()
	}
	if st.Positions == nil {
		st.Positions = make(map[string]PositionState)
	}
	return st
}

// saveState writes the whole state atomically: marshal to a temp file
// in the same directory, then rename over the target.
func saveState(path string, st *State) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal risk state: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".risk-state-*")
	if err != nil {
		return fmt.Errorf("write risk state: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write risk state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write risk state: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write risk state: %w", err)
	}
	return nil
}
