package risk

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// ConfigError indicates structural misconfiguration. It is the only
// failure class that is allowed to abort construction.
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("risk config: %s: %s", e.Field, e.Msg)
}

// Config carries the per-strategy risk limits. Strategy, Exchange and
// Capital are required; the rest default sensibly.
type Config struct {
	Strategy string  `json:"strategy" yaml:"strategy"`
	Exchange string  `json:"exchange" yaml:"exchange"`
	Capital  float64 `json:"capital" yaml:"capital"`

	// Defaults: 5% daily loss, 1% per trade, 1.5% trailing stop,
	// 300s cooldown.
	MaxDailyLossPct    float64 `json:"max_daily_loss_pct" yaml:"max_daily_loss_pct"`
	MaxLossPerTradePct float64 `json:"max_loss_per_trade_pct" yaml:"max_loss_per_trade_pct"`
	TrailingStopPct    float64 `json:"trailing_stop_pct" yaml:"trailing_stop_pct"`
	CooldownSeconds    int     `json:"cooldown_seconds" yaml:"cooldown_seconds"`

	// Entries are rejected within PreCloseWindow of the square-off
	// cutoff. Hour/Minute of 0/0 disables the check.
	SquareOffHour   int           `json:"square_off_hour" yaml:"square_off_hour"`
	SquareOffMinute int           `json:"square_off_minute" yaml:"square_off_minute"`
	PreCloseWindow  time.Duration `json:"pre_close_window" yaml:"pre_close_window"`

	StateDir string `json:"state_dir" yaml:"state_dir"`
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Strategy) == "" {
		return &ConfigError{Field: "strategy", Msg: "is required"}
	}
	if strings.TrimSpace(c.Exchange) == "" {
		return &ConfigError{Field: "exchange", Msg: "is required"}
	}
	if c.Capital <= 0 {
		return &ConfigError{Field: "capital", Msg: "must be positive"}
	}
	return nil
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.MaxDailyLossPct == 0 {
		out.MaxDailyLossPct = 5.0
	}
	if out.MaxLossPerTradePct == 0 {
		out.MaxLossPerTradePct = 1.0
	}
	if out.TrailingStopPct == 0 {
		out.TrailingStopPct = 1.5
	}
	if out.CooldownSeconds == 0 {
		out.CooldownSeconds = 300
	}
	if out.PreCloseWindow == 0 {
		out.PreCloseWindow = 15 * time.Minute
	}
	if out.StateDir == "" {
		out.StateDir = "."
	}
	return out
}

// Manager is the risk policy engine: it gates entries, tracks open
// positions and daily P/L, and persists its state on every mutation.
// One Manager instance is the sole writer of its strategy's state
// file; callers enforce one process per strategy name.
type Manager struct {
	mu    sync.Mutex
	cfg   Config
	clock Clock
	state *State
	path  string
}

type Option func(*Manager)

func WithClock(c Clock) Option {
	return func(m *Manager) { m.clock = c }
}

func NewManager(cfg Config, opts ...Option) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	if err := os.MkdirAll(cfg.StateDir, 0o755); err != nil {
		return nil, fmt.Errorf("risk state dir: %w", err)
	}

	m := &Manager{
		cfg:   cfg,
		clock: SystemClock{},
		path:  filepath.Join(cfg.StateDir, cfg.Strategy+"_risk.json"),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.state = loadState(m.path)
	return m, nil
}

// StatePath returns the JSON file backing this manager.
func (m *Manager) StatePath() string { return m.path }

// AdvanceTo pins the manager's notion of now to t. The backtest
// engine calls it with each bar's timestamp so cooldowns, daily
// resets, the circuit breaker and the pre-close window all run on
// simulated time, exactly as they would on the wall clock live.
func (m *Manager) AdvanceTo(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if fc, ok := m.clock.(*FixedClock); ok {
		fc.T = t
		return
	}
	m.clock = &FixedClock{T: t}
}

func (m *Manager) now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clock.Now()
}

// Snapshot returns a copy of the current state after applying any
// pending daily reset.
func (m *Manager) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maybeResetLocked()

	cp := *m.state
	cp.Positions = make(map[string]PositionState, len(m.state.Positions))
	for k, v := range m.state.Positions {
		cp.Positions[k] = v
	}
	return cp
}

// CanTrade reports whether a new entry is allowed right now. Gate
// order: circuit breaker, market-close proximity, cooldown. The
// circuit breaker, once tripped, stays active for the rest of the
// day.
func (m *Manager) CanTrade() (bool, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maybeResetLocked()

	now := m.clock.Now()

	if m.state.CircuitBreakerActive {
		return false, "CIRCUIT BREAKER ACTIVE: trading halted for the day"
	}
	limit := m.cfg.Capital * m.cfg.MaxDailyLossPct / 100
	if m.state.DailyPnL <= -limit {
		m.state.CircuitBreakerActive = true
		m.persistLocked()
		return false, fmt.Sprintf("CIRCUIT BREAKER TRIGGERED: daily loss %.2f breached limit %.2f", m.state.DailyPnL, -limit)
	}

	if m.cfg.SquareOffHour != 0 || m.cfg.SquareOffMinute != 0 {
		cutoff := time.Date(now.Year(), now.Month(), now.Day(),
			m.cfg.SquareOffHour, m.cfg.SquareOffMinute, 0, 0, now.Location())
		if now.After(cutoff.Add(-m.cfg.PreCloseWindow)) {
			return false, fmt.Sprintf("MARKET CLOSE: within %s of square-off", m.cfg.PreCloseWindow)
		}
	}

	if !m.state.LastTradeTime.IsZero() {
		elapsed := now.Sub(m.state.LastTradeTime)
		cooldown := time.Duration(m.cfg.CooldownSeconds) * time.Second
		if elapsed < cooldown {
			return false, fmt.Sprintf("COOLDOWN: %.0fs since last trade, need %ds", elapsed.Seconds(), m.cfg.CooldownSeconds)
		}
	}

	return true, "OK"
}

// RegisterEntry records a new position with a default stop at
// entry*(1 -/+ max_loss_per_trade_pct) depending on side.
func (m *Manager) RegisterEntry(symbol string, qty, price float64, side string) error {
	if qty <= 0 {
		return fmt.Errorf("register entry: qty must be positive, got %v", qty)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.maybeResetLocked()

	signed := qty
	stop := price * (1 - m.cfg.MaxLossPerTradePct/100)
	if strings.EqualFold(side, "SELL") {
		signed = -qty
		stop = price * (1 + m.cfg.MaxLossPerTradePct/100)
	}

	m.state.Positions[symbol] = PositionState{
		Qty:        signed,
		EntryPrice: price,
		StopLoss:   stop,
	}
	m.state.DailyTrades++
	m.state.LastTradeTime = m.clock.Now()
	return m.persistLocked()
}

// RegisterExit closes a tracked position, folds the realized PnL into
// the daily total, and persists.
func (m *Manager) RegisterExit(symbol string, exitPrice float64) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maybeResetLocked()

	pos, ok := m.state.Positions[symbol]
	if !ok {
		return 0, fmt.Errorf("register exit: no open position for %s", symbol)
	}

	var pnl float64
	if pos.Qty > 0 {
		pnl = (exitPrice - pos.EntryPrice) * pos.Qty
	} else {
		pnl = (pos.EntryPrice - exitPrice) * -pos.Qty
	}

	m.state.DailyPnL += pnl
	delete(m.state.Positions, symbol)
	if err := m.persistLocked(); err != nil {
		return pnl, err
	}
	return pnl, nil
}

// UpdateTrailingStop ratchets the trailing stop toward the price.
// Long stops only ever move up, short stops only ever move down.
func (m *Manager) UpdateTrailingStop(symbol string, price float64) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maybeResetLocked()

	pos, ok := m.state.Positions[symbol]
	if !ok {
		return 0, fmt.Errorf("update trailing stop: no open position for %s", symbol)
	}

	var candidate float64
	if pos.Qty > 0 {
		candidate = price * (1 - m.cfg.TrailingStopPct/100)
		if pos.TrailingStop != 0 && candidate <= pos.TrailingStop {
			return pos.TrailingStop, nil
		}
	} else {
		candidate = price * (1 + m.cfg.TrailingStopPct/100)
		if pos.TrailingStop != 0 && candidate >= pos.TrailingStop {
			return pos.TrailingStop, nil
		}
	}

	pos.TrailingStop = candidate
	m.state.Positions[symbol] = pos
	if err := m.persistLocked(); err != nil {
		return candidate, err
	}
	return candidate, nil
}

// CheckStopLoss reports whether the price has touched the effective
// stop (trailing stop when set, static stop otherwise).
func (m *Manager) CheckStopLoss(symbol string, price float64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	pos, ok := m.state.Positions[symbol]
	if !ok {
		return false
	}

	stop := pos.StopLoss
	if pos.TrailingStop != 0 {
		stop = pos.TrailingStop
	}
	if stop == 0 {
		return false
	}

	if pos.Qty > 0 {
		return price <= stop
	}
	return price >= stop
}

// OpenPositions returns the tracked open positions.
func (m *Manager) OpenPositions() map[string]PositionState {
	return m.Snapshot().Positions
}

// maybeResetLocked zeroes the daily counters on the first access of a
// new calendar day. Open positions are deliberately kept; only the
// square-off handler flattens them.
func (m *Manager) maybeResetLocked() {
	today := m.clock.Now().Format(dateLayout)
	if m.state.LastResetDate == today {
		return
	}
	m.state.DailyPnL = 0
	m.state.DailyTrades = 0
	m.state.CircuitBreakerActive = false
	m.state.LastResetDate = today
	m.persistLocked()
}

// persistLocked writes through; a failed write is logged but never
// aborts the trading decision that caused it.
func (m *Manager) persistLocked() error {
	if err := saveState(m.path, m.state); err != nil {
		log.Printf("risk: persist state for %s: %v", m.cfg.Strategy, err)
		return err
	}
	return nil
}
