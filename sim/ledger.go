package sim

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/papertrader/broker"
	"github.com/rustyeddy/papertrader/internal/id"
	"github.com/rustyeddy/papertrader/journal"
	"github.com/rustyeddy/papertrader/risk"
)

const (
	DefaultAccountID      = "paper-broker"
	DefaultAccountName    = "Paper Trading"
	DefaultInitialBalance = 1_000_000.0
	AccountType           = "PAPER"
)

// Options configures a Ledger. Zero fields take the defaults above.
type Options struct {
	AccountID      string
	Name           string
	InitialBalance float64
	MarginRate     float64

	// Policy defaults to DefaultPolicy when nil.
	Policy *Policy

	Journal journal.Journal
	Logger  *zerolog.Logger

	// Now stamps exit times and equity snapshots. Defaults to time.Now.
	Now func() time.Time
	IDs *id.Generator
}

// Ledger is the paper broker. It owns the cash balance, the trade log and
// the per-symbol positions. Every exported method takes the lock for its
// whole duration, so callers never observe a half-applied mutation.
type Ledger struct {
	mu sync.Mutex

	id      string
	name    string
	initial float64
	rate    float64
	policy  Policy

	balance   float64
	equity    float64
	margin    float64
	trades    []*broker.Trade
	byID      map[string]*broker.Trade
	positions map[string]*broker.Position
	connected bool
	// time of the replay bar under the cursor, 0 outside a replay
	barTime int64

	journal journal.Journal
	log     zerolog.Logger
	now     func() time.Time
	ids     *id.Generator
}

var _ broker.Broker = (*Ledger)(nil)

func NewLedger(opts Options) *Ledger {
	l := &Ledger{
		id:      opts.AccountID,
		name:    opts.Name,
		initial: opts.InitialBalance,
		rate:    opts.MarginRate,
		policy:  DefaultPolicy(),
		journal: opts.Journal,
		log:     zerolog.Nop(),
		now:     opts.Now,
		ids:     opts.IDs,
	}
	if l.id == "" {
		l.id = DefaultAccountID
	}
	if l.name == "" {
		l.name = DefaultAccountName
	}
	if l.initial <= 0 {
		l.initial = DefaultInitialBalance
	}
	if l.rate <= 0 {
		l.rate = risk.DefaultMarginRate
	}
	if opts.Policy != nil {
		l.policy = *opts.Policy
	}
	if l.journal == nil {
		l.journal = journal.Nop{}
	}
	if opts.Logger != nil {
		l.log = opts.Logger.With().Str("component", "ledger").Logger()
	}
	if l.now == nil {
		l.now = time.Now
	}
	if l.ids == nil {
		l.ids = id.NewGenerator(id.TradePrefix)
	}
	l.resetLocked()
	return l
}

func (l *Ledger) resetLocked() {
	l.balance = l.initial
	l.equity = l.initial
	l.margin = 0
	l.trades = nil
	l.byID = make(map[string]*broker.Trade)
	l.positions = make(map[string]*broker.Position)
	l.connected = false
}

// Reset restores the opening balance and drops every trade and position.
// The connection flag goes back to false as well.
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.resetLocked()
	l.log.Info().Float64("balance", l.balance).Msg("ledger reset")
	l.snapshotLocked()
}

func (l *Ledger) InitialBalance() float64 { return l.initial }
func (l *Ledger) MarginRate() float64     { return l.rate }
func (l *Ledger) Policy() Policy          { return l.policy }

func (l *Ledger) SetConnected(v bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.connected = v
}

func (l *Ledger) Connected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connected
}

func (l *Ledger) availableLocked() float64 { return l.balance - l.margin }

// PlaceTrade opens a trade at req.Price. The only business rejection is
// insufficient margin; malformed requests come back as ResultInvalidOrder.
// On rejection the ledger is unchanged.
func (l *Ledger) PlaceTrade(req broker.OrderRequest) (broker.Trade, broker.Result) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := req.Validate(); err != nil {
		l.log.Debug().Err(err).Msg("order rejected")
		return broker.Trade{}, broker.Reject(err)
	}
	if math.IsInf(req.Price, 0) {
		return broker.Trade{}, broker.Reject(fmt.Errorf("%w: price must be finite", broker.ErrInvalidOrder))
	}

	required := risk.MarginRequired(req.Price, req.Quantity, l.rate)
	if avail := l.availableLocked(); required > avail {
		l.log.Warn().
			Str("symbol", req.Symbol).
			Str("side", string(req.Side)).
			Int64("qty", req.Quantity).
			Float64("required", required).
			Float64("available", avail).
			Msg("insufficient margin")
		return broker.Trade{}, broker.Reject(fmt.Errorf("%w: need %.2f, available %.2f",
			broker.ErrInsufficientMargin, required, avail))
	}

	ts := req.BarTime
	if ts == 0 {
		ts = l.now().Unix()
	}

	t := &broker.Trade{
		ID:        l.ids.Next(),
		Symbol:    req.Symbol,
		Side:      req.Side,
		Price:     req.Price,
		Quantity:  req.Quantity,
		Timestamp: ts,
		Status:    broker.StatusOpen,
	}
	l.trades = append(l.trades, t)
	l.byID[t.ID] = t
	l.applyFillLocked(t)

	l.recomputeMarginLocked()
	l.revalueLocked()
	l.snapshotLocked()

	l.log.Debug().
		Str("trade", t.ID).
		Str("symbol", t.Symbol).
		Str("side", string(t.Side)).
		Int64("qty", t.Quantity).
		Float64("price", t.Price).
		Float64("margin", l.margin).
		Msg("trade opened")

	return t.Clone(), broker.Result{}
}

// CloseTrade closes one open trade at exitPrice. A missing or already
// closed id is a no-op reported as ResultTradeNotFound. Positions are left
// as they are; only CloseAllTrades touches them.
func (l *Ledger) CloseTrade(tradeID string, exitPrice float64) (broker.Trade, broker.Result) {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, ok := l.byID[tradeID]
	if !ok {
		return broker.Trade{}, broker.Reject(fmt.Errorf("%w: %s", broker.ErrTradeNotFound, tradeID))
	}
	if !t.IsOpen() {
		return t.Clone(), broker.Reject(fmt.Errorf("%w: %s", broker.ErrTradeClosed, tradeID))
	}
	if err := validExit(exitPrice); err != nil {
		return t.Clone(), broker.Reject(err)
	}

	l.closeTradeLocked(t, exitPrice, journal.ReasonManual)
	l.recomputeMarginLocked()
	l.revalueLocked()
	l.snapshotLocked()

	return t.Clone(), broker.Result{}
}

// CloseAllTrades closes every open trade at the same exitPrice in one
// batch. Under CloseAllResetsPositions the position map is emptied too,
// leaving equity equal to balance.
func (l *Ledger) CloseAllTrades(exitPrice float64) (broker.CloseAllResult, broker.Result) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var res broker.CloseAllResult
	if err := validExit(exitPrice); err != nil {
		return res, broker.Reject(err)
	}

	res.Closed = []broker.Trade{}
	for _, t := range l.trades {
		if !t.IsOpen() {
			continue
		}
		pnl, released := l.closeTradeLocked(t, exitPrice, journal.ReasonCloseAll)
		res.TotalPnL += pnl
		res.MarginReleased += released
		res.Closed = append(res.Closed, t.Clone())
	}

	if l.policy.CloseAllResetsPositions {
		l.positions = make(map[string]*broker.Position)
	}

	l.recomputeMarginLocked()
	l.revalueLocked()
	l.snapshotLocked()

	l.log.Info().
		Int("closed", len(res.Closed)).
		Float64("pnl", res.TotalPnL).
		Float64("released", res.MarginReleased).
		Msg("closed all trades")

	return res, broker.Result{}
}

func validExit(price float64) error {
	if !(price > 0) || math.IsInf(price, 0) {
		return fmt.Errorf("%w: exit price must be positive", broker.ErrInvalidOrder)
	}
	return nil
}

// SetCurrentPrice marks every open position at price.
func (l *Ledger) SetCurrentPrice(price float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !(price > 0) {
		return
	}
	for _, p := range l.positions {
		p.CurrentPrice = price
	}
	l.markedLocked()
}

// MarkSymbol marks only the position held in symbol, if any.
// SetBarTime records the replay bar under the cursor. Trades closed while
// it is set carry it as ExitBarTime.
func (l *Ledger) SetBarTime(ts int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.barTime = ts
}

func (l *Ledger) MarkSymbol(symbol string, price float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.positions[symbol]
	if !ok || !(price > 0) {
		return
	}
	p.CurrentPrice = price
	l.markedLocked()
}

func (l *Ledger) markedLocked() {
	before := l.equity
	l.revalueLocked()
	if l.equity != before {
		l.snapshotLocked()
	}
}

// Account returns a deep copy: positions sorted by symbol, trades in the
// order they were placed.
func (l *Ledger) Account() broker.Account {
	l.mu.Lock()
	defer l.mu.Unlock()

	a := broker.Account{
		ID:              l.id,
		Name:            l.name,
		Type:            AccountType,
		Balance:         l.balance,
		Equity:          l.equity,
		Margin:          l.margin,
		AvailableMargin: l.availableLocked(),
		Positions:       make([]broker.Position, 0, len(l.positions)),
		Trades:          make([]broker.Trade, 0, len(l.trades)),
		Connected:       l.connected,
	}
	for _, p := range l.positions {
		a.Positions = append(a.Positions, *p)
	}
	sort.Slice(a.Positions, func(i, j int) bool {
		return a.Positions[i].Symbol < a.Positions[j].Symbol
	})
	for _, t := range l.trades {
		a.Trades = append(a.Trades, t.Clone())
	}
	return a
}

func (l *Ledger) Trade(tradeID string) (broker.Trade, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, ok := l.byID[tradeID]
	if !ok {
		return broker.Trade{}, false
	}
	return t.Clone(), true
}

// TradeAt returns the n-th trade placed, counting from 1.
func (l *Ledger) TradeAt(n int) (broker.Trade, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if n < 1 || n > len(l.trades) {
		return broker.Trade{}, false
	}
	return l.trades[n-1].Clone(), true
}

func (l *Ledger) OpenTrades() []broker.Trade {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := []broker.Trade{}
	for _, t := range l.trades {
		if t.IsOpen() {
			out = append(out, t.Clone())
		}
	}
	return out
}
