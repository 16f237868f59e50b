package strategies

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/papertrader/broker"
	"github.com/rustyeddy/papertrader/market"
	"github.com/rustyeddy/papertrader/replay"
	"github.com/rustyeddy/papertrader/risk"
)

// Trader is the part of a replay session a Runner drives.
type Trader interface {
	Replay() replay.State
	Step(n int) replay.State
	Bar() (market.Bar, bool)
	Visible() []market.Bar
	Account() broker.Account
	Place(side broker.Side, qty int64) (broker.Trade, broker.Result)
	Close(tradeID string) (broker.Trade, broker.Result)
}

type RunnerOptions struct {
	// Quantity is the fixed order size. When zero the size comes from
	// RiskPct of equity against the default 1% stop.
	Quantity int64
	RiskPct  float64

	// LongOnly turns sell signals into exits only.
	LongOnly bool

	// Limits, when set, gate every entry. The day for the daily loss
	// limit is the UTC day of the bar, not the wall clock.
	Limits *risk.Limits

	Logger *zerolog.Logger
}

// SignalEvent is one non-hold decision and what the runner did with it.
type SignalEvent struct {
	Index    int           `json:"index"`
	Time     int64         `json:"time"`
	Decision Decision      `json:"decision"`
	TradeID  string        `json:"tradeId,omitempty"`
	Result   broker.Result `json:"result"`
	Risk     *risk.Check   `json:"risk,omitempty"`
}

type RunReport struct {
	Strategy string        `json:"strategy"`
	Bars     int           `json:"bars"`
	Opened   int           `json:"opened"`
	Closed   int           `json:"closed"`
	Rejected int           `json:"rejected"`
	Signals  []SignalEvent `json:"signals"`
	Final    replay.State  `json:"final"`
}

// Runner steps a session to the end of its series, one bar at a time, and
// trades the strategy's signals at each bar's close. It holds at most one
// trade of its own, reversing on an opposite signal.
type Runner struct {
	Strategy Strategy
	Options  RunnerOptions

	open   *broker.Trade
	closed int
	// realized P&L of the runner's own exits by UTC day number
	daily map[int64]float64
	log   zerolog.Logger
}

func NewRunner(s Strategy, opts RunnerOptions) *Runner {
	r := &Runner{Strategy: s, Options: opts, log: zerolog.Nop()}
	if opts.Logger != nil {
		r.log = opts.Logger.With().Str("component", "strategy").Str("strategy", s.Name()).Logger()
	}
	return r
}

// Run warms the strategy up on the bars already visible, then advances the
// cursor until the last bar. Orders the ledger refuses are counted in the
// report, not returned as errors.
func (r *Runner) Run(ctx context.Context, t Trader) (RunReport, error) {
	if r.Strategy == nil {
		return RunReport{}, fmt.Errorf("strategy: Strategy is required")
	}
	rep := RunReport{Strategy: r.Strategy.Name(), Signals: []SignalEvent{}}

	r.Strategy.Reset()
	r.open, r.closed = nil, 0
	r.daily = make(map[int64]float64)
	for _, b := range t.Visible() {
		r.Strategy.Update(b)
	}

	st := t.Replay()
	for !st.AtEnd() {
		if err := ctx.Err(); err != nil {
			rep.Final = st
			return rep, err
		}
		st = t.Step(1)
		b, ok := t.Bar()
		if !ok {
			break
		}
		rep.Bars++

		d := r.Strategy.Update(b)
		if d.Signal == Hold {
			continue
		}
		ev := r.act(t, d, b.Time)
		ev.Index, ev.Time = st.CurrentIndex, b.Time
		rep.Signals = append(rep.Signals, ev)
	}

	for _, ev := range rep.Signals {
		switch {
		case !ev.Result.OK():
			rep.Rejected++
		case ev.TradeID != "":
			rep.Opened++
		}
	}
	rep.Closed = r.closed
	rep.Final = st
	r.log.Info().
		Int("bars", rep.Bars).
		Int("signals", len(rep.Signals)).
		Int("opened", rep.Opened).
		Int("closed", rep.Closed).
		Msg("strategy run complete")
	return rep, nil
}

func (r *Runner) act(t Trader, d Decision, barTime int64) SignalEvent {
	side := broker.Buy
	if d.Signal == Sell {
		side = broker.Sell
	}
	ev := SignalEvent{Decision: d}

	if r.open != nil {
		if r.open.Side == side {
			ev.Result = broker.Result{Code: broker.ResultOK, Reason: "already " + string(side)}
			return ev
		}
		closed, res := t.Close(r.open.ID)
		if !res.OK() {
			ev.Result = res
			r.log.Warn().Str("trade", r.open.ID).Str("code", res.Code.String()).Msg("exit rejected")
			return ev
		}
		if closed.PnL != nil {
			r.daily[barTime/86400] += *closed.PnL
		}
		r.log.Debug().Str("trade", r.open.ID).Float64("price", d.Close).Msg("exit")
		r.open = nil
		r.closed++
	}

	if side == broker.Sell && r.Options.LongOnly {
		ev.Result = broker.Result{Code: broker.ResultOK, Reason: "long only"}
		return ev
	}

	qty := r.size(t, side, d.Close)
	if r.Options.Limits != nil {
		acct := t.Account()
		stop, target := risk.DefaultLevels(side, d.Close)
		check := risk.Evaluate(*r.Options.Limits, risk.RiskReward(side, d.Close, stop, target, qty), risk.Exposure{
			Equity:      acct.Equity,
			Margin:      acct.Margin,
			OpenTrades:  len(acct.OpenTrades()),
			DayRealized: r.daily[barTime/86400],
		})
		ev.Risk = &check
		if !check.Allowed {
			ev.Result = broker.Reject(fmt.Errorf("%w: %v", broker.ErrInvalidOrder, check.Err()))
			r.log.Info().Str("side", string(side)).Err(check.Err()).Msg("entry blocked")
			return ev
		}
	}

	tr, res := t.Place(side, qty)
	ev.Result = res
	if !res.OK() {
		r.log.Warn().Str("side", string(side)).Int64("quantity", qty).Str("code", res.Code.String()).Msg("entry rejected")
		return ev
	}
	ev.TradeID = tr.ID
	r.open = &tr
	r.log.Debug().Str("trade", tr.ID).Str("side", string(side)).Int64("quantity", qty).Float64("price", tr.Price).Msg("entry")
	return ev
}

func (r *Runner) size(t Trader, side broker.Side, price float64) int64 {
	if r.Options.Quantity > 0 {
		return r.Options.Quantity
	}
	pct := r.Options.RiskPct
	if pct <= 0 {
		pct = 0.01
	}
	stop, _ := risk.DefaultLevels(side, price)
	return risk.SizeForRisk(t.Account().Equity, pct, price, stop)
}
