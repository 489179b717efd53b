package backtest

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/quantbrew/trader/journal"
	"github.com/quantbrew/trader/market"
	"github.com/quantbrew/trader/pkg/id"
	"github.com/quantbrew/trader/risk"
	"github.com/quantbrew/trader/strategy"
)

// Config controls the simulation loop.
type Config struct {
	Capital float64

	// Bars skipped before the first signal evaluation, so indicators
	// never run on an undefined window.
	WarmupBars int

	// Round-trip transaction cost in basis points. Each fill pays
	// half: buys at a markup, sells at a markdown. Deliberately a
	// flat model; the goal is repeatable cross-strategy ranking, not
	// realistic slippage.
	CostBps float64

	// Fixed bracket used when the signal carries no ATR.
	SLPct float64 // 2.0 = 2%
	TPPct float64

	// Engine-level defaults, overridden by strategy capabilities.
	MaxHoldBars int
	BreakevenR  float64

	DefaultQuantity float64
}

func (c Config) withDefaults() Config {
	if c.WarmupBars == 0 {
		c.WarmupBars = 50
	}
	if c.SLPct == 0 {
		c.SLPct = 2.0
	}
	if c.TPPct == 0 {
		c.TPPct = 2.0
	}
	if c.DefaultQuantity == 0 {
		c.DefaultQuantity = 1
	}
	return c
}

// Result is the complete outcome of one backtest run.
type Result struct {
	Symbol   string
	Strategy string
	Start    time.Time
	End      time.Time

	Trades      []Trade
	EquityCurve []EquityPoint
	Metrics     Metrics

	SignalErrors   []SignalError
	BarsProcessed  int
	RiskRejections int
}

// Engine replays a historical series bar by bar against a strategy.
// Exits are evaluated before entries, signals only ever see history
// through the current bar, and any position left open at data
// exhaustion is force-closed so trade counts are deterministic.
type Engine struct {
	provider market.DataProvider
	cfg      Config
	riskMgr  *risk.Manager
	journal  journal.Journal

	soEnabled        bool
	soHour, soMinute int
}

type Option func(*Engine)

// WithRiskManager gates entries through the same risk policy engine
// live trading uses, and mirrors entries/exits into its state. The
// engine advances the manager's clock to each bar's timestamp, so
// cooldowns, daily resets and the circuit breaker run on simulated
// time rather than the wall clock.
func WithRiskManager(m *risk.Manager) Option {
	return func(e *Engine) { e.riskMgr = m }
}

// WithSquareOff arms the end-of-day flatten at hour:minute bar time,
// mirroring the live EOD handler. It takes effect only when a risk
// manager is attached.
func WithSquareOff(hour, minute int) Option {
	return func(e *Engine) {
		e.soEnabled = true
		e.soHour, e.soMinute = hour, minute
	}
}

func WithJournal(j journal.Journal) Option {
	return func(e *Engine) { e.journal = j }
}

func NewEngine(provider market.DataProvider, cfg Config, opts ...Option) (*Engine, error) {
	if provider == nil {
		return nil, fmt.Errorf("backtest: data provider is required")
	}
	if cfg.Capital <= 0 {
		return nil, fmt.Errorf("backtest: capital must be positive, got %v", cfg.Capital)
	}

	e := &Engine{
		provider: provider,
		cfg:      cfg.withDefaults(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Run executes the bar-by-bar loop. Data problems come back as
// *DataError; a faulty strategy never aborts the run, its failed bars
// are held and recorded in Result.SignalErrors.
func (e *Engine) Run(ctx context.Context, strat strategy.Strategy, symbol, exchange string, interval market.Interval, start, end time.Time) (*Result, error) {
	if strat == nil {
		return nil, fmt.Errorf("backtest: strategy is required")
	}
	if !interval.Valid() {
		return nil, &DataError{Symbol: symbol, Interval: string(interval), Reason: "unsupported interval"}
	}

	hist, err := e.provider.History(ctx, symbol, exchange, interval, start, end)
	if err != nil {
		return nil, fmt.Errorf("backtest: load history: %w", err)
	}
	if len(hist) == 0 {
		return nil, &DataError{Symbol: symbol, Interval: string(interval), Reason: "no data in range"}
	}
	if len(hist) <= e.cfg.WarmupBars {
		return nil, &DataError{
			Symbol:   symbol,
			Interval: string(interval),
			Reason:   fmt.Sprintf("%d bars, need more than the %d-bar warm-up", len(hist), e.cfg.WarmupBars),
		}
	}

	caps := strat.Capabilities()

	res := &Result{
		Symbol:   symbol,
		Strategy: strat.Name(),
		Start:    hist[0].Time,
		End:      hist.Last().Time,
	}

	var (
		pos      *Position
		realized float64
		barClose float64
	)

	// The simulated square-off marks exits at the current bar's close;
	// order placement itself is a no-op here.
	var squareOff *risk.SquareOff
	if e.riskMgr != nil && e.soEnabled {
		noopExec := func(string, string, float64) error { return nil }
		markQuote := func(string) (float64, error) { return barClose, nil }
		var soErr error
		squareOff, soErr = risk.NewSquareOff(e.riskMgr, e.soHour, e.soMinute, noopExec, risk.WithQuote(markQuote))
		if soErr != nil {
			return nil, soErr
		}
	}

	for i := e.cfg.WarmupBars; i < len(hist); i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		c := hist[i]
		barClose = c.Close
		res.BarsProcessed++

		if e.riskMgr != nil {
			e.riskMgr.AdvanceTo(c.Time)
		}

		// 1) EOD square-off first: past the cutoff nothing else may
		// keep the position alive. The square-off has already
		// registered the exit with the risk manager, so only the
		// trade record remains.
		if squareOff != nil {
			flattened, soErr := squareOff.Run()
			if soErr != nil {
				log.Printf("backtest: square-off: %v", soErr)
			}
			if flattened && pos != nil {
				exit := e.exitFill(c.Close, pos.Quantity > 0)
				realized += e.recordTrade(res, pos, exit, c.Time, ReasonSquareOff)
				pos = nil
			}
		}

		// 2) Exits next, using only this bar's OHLC.
		if pos != nil {
			if d := evaluateExit(pos, c, i, hist.Through(i), caps, e.cfg); d.hit {
				exit := e.exitFill(d.price, pos.Quantity > 0)
				realized += e.closePosition(res, pos, exit, c.Time, d.reason)
				pos = nil
			}
		}

		// 3) Entries only when flat, with history truncated through
		// the current bar. Never future bars.
		if pos == nil {
			sig, sigErr := e.safeSignal(strat, hist.Through(i), symbol)
			if sigErr != nil {
				res.SignalErrors = append(res.SignalErrors, SignalError{
					BarIdx: i,
					Time:   c.Time.Format(time.RFC3339),
					Err:    sigErr.Error(),
				})
				sig = strategy.Signal{Action: strategy.Hold}
			}

			if sig.Action != strategy.Hold {
				if ok := e.allowEntry(res); ok {
					pos = e.openPosition(sig, caps, symbol, i, c)
				}
			}
		}

		// 4) Mark-to-market equity after this bar.
		equity := e.cfg.Capital + realized
		if pos != nil {
			equity += pos.UnrealizedPnL(c.Close)
		}
		res.EquityCurve = append(res.EquityCurve, EquityPoint{Time: c.Time, Equity: equity})
	}

	// Force-close at the final bar so every entry has a matching trade.
	if pos != nil {
		last := hist.Last()
		exit := e.exitFill(last.Close, pos.Quantity > 0)
		realized += e.closePosition(res, pos, exit, last.Time, ReasonEndOfData)
		pos = nil

		n := len(res.EquityCurve)
		res.EquityCurve[n-1].Equity = e.cfg.Capital + realized
	}

	res.Metrics = ComputeMetrics(res.Trades, res.EquityCurve, e.cfg.Capital)

	if e.journal != nil {
		for _, pt := range res.EquityCurve {
			if err := e.journal.RecordEquity(journal.EquitySnapshot{Time: pt.Time, Equity: pt.Equity}); err != nil {
				log.Printf("backtest: journal equity: %v", err)
				break
			}
		}
	}

	return res, nil
}

// safeSignal shields the loop from a panicking strategy: the bar is
// treated as HOLD and the panic surfaces as the bar's signal error.
func (e *Engine) safeSignal(strat strategy.Strategy, hist market.History, symbol string) (sig strategy.Signal, err error) {
	defer func() {
		if r := recover(); r != nil {
			sig = strategy.Signal{Action: strategy.Hold}
			err = fmt.Errorf("strategy panic: %v", r)
		}
	}()
	return strat.GenerateSignal(hist, symbol)
}

func (e *Engine) allowEntry(res *Result) bool {
	if e.riskMgr == nil {
		return true
	}
	ok, reason := e.riskMgr.CanTrade()
	if !ok {
		res.RiskRejections++
		log.Printf("backtest: entry rejected: %s", reason)
	}
	return ok
}

// entry/exit fills carry half the round-trip cost each: buys pay a
// markup, sells receive a markdown.
func (e *Engine) entryFill(price float64, long bool) float64 {
	half := e.cfg.CostBps / 2 / 10000
	if long {
		return price * (1 + half)
	}
	return price * (1 - half)
}

func (e *Engine) exitFill(price float64, long bool) float64 {
	half := e.cfg.CostBps / 2 / 10000
	if long {
		return price * (1 - half) // long exits sell
	}
	return price * (1 + half) // short exits buy to cover
}

func (e *Engine) openPosition(sig strategy.Signal, caps strategy.Capabilities, symbol string, idx int, c market.Candle) *Position {
	long := sig.Action == strategy.Buy
	entry := e.entryFill(c.Close, long)

	qty := sig.Quantity
	if qty <= 0 {
		qty = e.cfg.DefaultQuantity
	}
	if !long {
		qty = -qty
	}

	stop, take := e.bracket(entry, sig.ATR, caps, long)

	pos := &Position{
		ID:         id.New(),
		Symbol:     symbol,
		EntryTime:  c.Time,
		EntryPrice: entry,
		Quantity:   qty,
		StopLoss:   stop,
		TakeProfit: take,
		ATR:        sig.ATR,
		EntryIdx:   idx,
	}

	if e.riskMgr != nil {
		side := "BUY"
		if !long {
			side = "SELL"
		}
		if err := e.riskMgr.RegisterEntry(symbol, math.Abs(qty), entry, side); err != nil {
			log.Printf("backtest: register entry: %v", err)
		}
	}

	return pos
}

// bracket derives stop/take levels: ATR times the strategy's
// multipliers when the signal carries an ATR, otherwise the fixed
// percentage band.
func (e *Engine) bracket(entry, atr float64, caps strategy.Capabilities, long bool) (stop, take float64) {
	slMult := caps.ATRSLMultiplier
	tpMult := caps.ATRTPMultiplier

	if atr > 0 && slMult > 0 && tpMult > 0 {
		if long {
			return entry - atr*slMult, entry + atr*tpMult
		}
		return entry + atr*slMult, entry - atr*tpMult
	}

	sl := e.cfg.SLPct / 100
	tp := e.cfg.TPPct / 100
	if long {
		return entry * (1 - sl), entry * (1 + tp)
	}
	return entry * (1 + sl), entry * (1 - tp)
}

func (e *Engine) closePosition(res *Result, pos *Position, exitPrice float64, t time.Time, reason string) float64 {
	pnl := e.recordTrade(res, pos, exitPrice, t, reason)

	if e.riskMgr != nil {
		if _, err := e.riskMgr.RegisterExit(pos.Symbol, exitPrice); err != nil {
			log.Printf("backtest: register exit: %v", err)
		}
	}

	return pnl
}

// recordTrade books the closed trade without touching the risk state;
// the square-off path registers its own exits.
func (e *Engine) recordTrade(res *Result, pos *Position, exitPrice float64, t time.Time, reason string) float64 {
	pnl := (exitPrice - pos.EntryPrice) * pos.Quantity

	notional := pos.EntryPrice * pos.Quantity
	if notional < 0 {
		notional = -notional
	}
	pnlPct := 0.0
	if notional > 0 {
		pnlPct = pnl / notional * 100
	}

	tr := Trade{
		ID:         pos.ID,
		Symbol:     pos.Symbol,
		EntryTime:  pos.EntryTime,
		ExitTime:   t,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  exitPrice,
		Quantity:   pos.Quantity,
		Side:       pos.Side(),
		PnL:        pnl,
		PnLPct:     pnlPct,
		ExitReason: reason,
	}
	res.Trades = append(res.Trades, tr)

	if e.journal != nil {
		if err := e.journal.RecordTrade(journal.TradeRecord{
			TradeID:    tr.ID,
			Strategy:   res.Strategy,
			Symbol:     tr.Symbol,
			Quantity:   tr.Quantity,
			Side:       tr.Side.String(),
			EntryPrice: tr.EntryPrice,
			ExitPrice:  tr.ExitPrice,
			EntryTime:  tr.EntryTime,
			ExitTime:   tr.ExitTime,
			PnL:        tr.PnL,
			PnLPct:     tr.PnLPct,
			Reason:     tr.ExitReason,
		}); err != nil {
			log.Printf("backtest: journal trade: %v", err)
		}
	}

	return pnl
}
