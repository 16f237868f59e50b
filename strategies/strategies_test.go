package strategies

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/papertrader/broker"
	"github.com/rustyeddy/papertrader/market"
	"github.com/rustyeddy/papertrader/risk"
	"github.com/rustyeddy/papertrader/session"
)

// swing is flat, then falls, rises and falls again.
func swing() []float64 {
	closes := make([]float64, 0, 55)
	p := 100.0
	for i := 0; i < 10; i++ {
		closes = append(closes, p)
	}
	for i := 0; i < 15; i++ {
		p--
		closes = append(closes, p)
	}
	for i := 0; i < 15; i++ {
		p += 2
		closes = append(closes, p)
	}
	for i := 0; i < 15; i++ {
		p -= 2
		closes = append(closes, p)
	}
	return closes
}

func toBars(closes []float64) []market.Bar {
	bars := make([]market.Bar, len(closes))
	for i, c := range closes {
		bars[i] = market.Bar{Time: 1_700_000_000 + int64(i)*60, Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 100}
	}
	return bars
}

func signals(s Strategy, bars []market.Bar) []Decision {
	var out []Decision
	for _, b := range bars {
		if d := s.Update(b); d.Signal != Hold {
			out = append(out, d)
		}
	}
	return out
}

func TestEMACrossConfig(t *testing.T) {
	t.Parallel()

	_, err := NewEMACross(EMACrossConfig{FastPeriod: 0, SlowPeriod: 5})
	assert.Error(t, err)
	_, err = NewEMACross(EMACrossConfig{FastPeriod: 5, SlowPeriod: 5})
	assert.Error(t, err)
	_, err = NewEMACross(EMACrossConfig{FastPeriod: 3, SlowPeriod: 5, ADXPeriod: -1})
	assert.Error(t, err)

	x, err := NewEMACross(EMACrossConfig{FastPeriod: 3, SlowPeriod: 5})
	require.NoError(t, err)
	assert.Equal(t, "EMA_CROSS(3,5)", x.Name())

	x, err = NewEMACross(EMACrossConfig{FastPeriod: 3, SlowPeriod: 5, ADXPeriod: 14})
	require.NoError(t, err)
	assert.Equal(t, "EMA_CROSS_ADX(3,5,ADX14@20.0)", x.Name())
}

func TestEMACrossWarmupNoSignals(t *testing.T) {
	t.Parallel()

	x, err := NewEMACross(EMACrossConfig{FastPeriod: 3, SlowPeriod: 5})
	require.NoError(t, err)

	for _, b := range toBars([]float64{100, 101, 102, 103}) {
		d := x.Update(b)
		assert.Equal(t, Hold, d.Signal)
		assert.Equal(t, "warming up", d.Reason)
	}
	assert.False(t, x.Ready())
}

func TestEMACrossBaselineThenCrosses(t *testing.T) {
	t.Parallel()

	x, err := NewEMACross(EMACrossConfig{FastPeriod: 3, SlowPeriod: 5})
	require.NoError(t, err)

	events := signals(x, toBars(swing()))
	require.Len(t, events, 2)
	assert.Equal(t, Buy, events[0].Signal)
	assert.Greater(t, events[0].Fast, events[0].Slow)
	assert.Equal(t, Sell, events[1].Signal)
	assert.Less(t, events[1].Fast, events[1].Slow)

	// Reset replays identically.
	x.Reset()
	assert.False(t, x.Ready())
	assert.Equal(t, events, signals(x, toBars(swing())))
}

func TestEMACrossMinSpreadHolds(t *testing.T) {
	t.Parallel()

	x, err := NewEMACross(EMACrossConfig{FastPeriod: 3, SlowPeriod: 5, MinSpread: 1000})
	require.NoError(t, err)
	assert.Empty(t, signals(x, toBars(swing())))
}

func TestEMACrossADXFilter(t *testing.T) {
	t.Parallel()

	x, err := NewEMACross(EMACrossConfig{FastPeriod: 3, SlowPeriod: 5, ADXPeriod: 3, ADXThreshold: 1000})
	require.NoError(t, err)

	held := 0
	for _, b := range toBars(swing()) {
		d := x.Update(b)
		assert.Equal(t, Hold, d.Signal)
		if strings.HasPrefix(d.Reason, "adx") {
			held++
		}
	}
	assert.Equal(t, 2, held)
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	assert.Contains(t, Names(), "ema-cross")
	assert.Contains(t, Names(), "ema-cross-adx")
	assert.Contains(t, Names(), "noop")

	s, err := New("ema-cross")
	require.NoError(t, err)
	assert.Equal(t, "EMA_CROSS(9,21)", s.Name())

	a, _ := New("ema-cross")
	assert.NotSame(t, s, a)

	_, err = New("martingale")
	assert.Error(t, err)
}

func newSession(t *testing.T, connected bool) *session.Session {
	t.Helper()
	p, err := market.NewProviderFromBars(map[string][]market.Bar{"SWG": toBars(swing())})
	require.NoError(t, err)
	s, err := session.New(session.Options{Provider: p})
	require.NoError(t, err)
	t.Cleanup(s.Shutdown)
	s.SetConnected(connected)
	return s
}

func emaCross(t *testing.T) Strategy {
	t.Helper()
	x, err := NewEMACross(EMACrossConfig{FastPeriod: 3, SlowPeriod: 5})
	require.NoError(t, err)
	return x
}

func TestRunnerReversesOnCross(t *testing.T) {
	t.Parallel()

	sess := newSession(t, true)
	rep, err := NewRunner(emaCross(t), RunnerOptions{Quantity: 10}).Run(context.Background(), sess)
	require.NoError(t, err)

	assert.Equal(t, "EMA_CROSS(3,5)", rep.Strategy)
	assert.Equal(t, 54, rep.Bars)
	assert.Equal(t, 54, rep.Final.CurrentIndex)
	require.Len(t, rep.Signals, 2)
	assert.Equal(t, 2, rep.Opened)
	assert.Equal(t, 1, rep.Closed)
	assert.Zero(t, rep.Rejected)

	acct := sess.Account()
	require.Len(t, acct.Trades, 2)
	long, short := acct.Trades[0], acct.Trades[1]
	assert.Equal(t, broker.Buy, long.Side)
	assert.Equal(t, broker.StatusClosed, long.Status)
	require.NotNil(t, long.PnL)
	assert.Greater(t, *long.PnL, 0.0)
	assert.Equal(t, rep.Signals[0].TradeID, long.ID)

	assert.Equal(t, broker.Sell, short.Side)
	assert.True(t, short.IsOpen())
	assert.Equal(t, int64(10), short.Quantity)
}

func TestRunnerLongOnly(t *testing.T) {
	t.Parallel()

	sess := newSession(t, true)
	rep, err := NewRunner(emaCross(t), RunnerOptions{Quantity: 10, LongOnly: true}).Run(context.Background(), sess)
	require.NoError(t, err)

	assert.Equal(t, 1, rep.Opened)
	assert.Equal(t, 1, rep.Closed)
	assert.Empty(t, sess.Account().OpenTrades())
	assert.Equal(t, "long only", rep.Signals[1].Result.Reason)
}

func TestRunnerSizesFromRisk(t *testing.T) {
	t.Parallel()

	sess := newSession(t, true)
	rep, err := NewRunner(emaCross(t), RunnerOptions{LongOnly: true}).Run(context.Background(), sess)
	require.NoError(t, err)
	require.Equal(t, 1, rep.Opened)

	tr := sess.Account().Trades[0]
	// 1% of equity at a 1% stop is roughly equity / price units.
	assert.InDelta(t, 1_000_000/tr.Price, float64(tr.Quantity), 2)
}

func TestRunnerCountsRejections(t *testing.T) {
	t.Parallel()

	sess := newSession(t, false)
	rep, err := NewRunner(emaCross(t), RunnerOptions{Quantity: 10}).Run(context.Background(), sess)
	require.NoError(t, err)

	assert.Zero(t, rep.Opened)
	assert.Equal(t, 2, rep.Rejected)
	for _, ev := range rep.Signals {
		assert.ErrorIs(t, ev.Result.Err(), broker.ErrInvalidOrder)
	}
	assert.Empty(t, sess.Account().Trades)
}

func TestRunnerStopsOnCancel(t *testing.T) {
	t.Parallel()

	sess := newSession(t, true)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rep, err := NewRunner(Noop{}, RunnerOptions{}).Run(ctx, sess)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, rep.Bars)
	assert.Equal(t, 0, sess.Replay().CurrentIndex)
}

func TestRunnerRiskLimitsBlockEntries(t *testing.T) {
	t.Parallel()

	sess := newSession(t, true)
	limits := risk.Limits{MaxRiskPct: 0.0001}
	rep, err := NewRunner(emaCross(t), RunnerOptions{Quantity: 1000, Limits: &limits}).Run(context.Background(), sess)
	require.NoError(t, err)

	assert.Zero(t, rep.Opened)
	assert.Equal(t, 2, rep.Rejected)
	require.NotNil(t, rep.Signals[0].Risk)
	assert.False(t, rep.Signals[0].Risk.Allowed)
	assert.Equal(t, "RISK_TOO_HIGH", rep.Signals[0].Risk.Violations[0].Code)
	assert.Empty(t, sess.Account().Trades)

	sess = newSession(t, true)
	limits = risk.DefaultLimits()
	rep, err = NewRunner(emaCross(t), RunnerOptions{Quantity: 10, Limits: &limits}).Run(context.Background(), sess)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Opened)
	assert.True(t, rep.Signals[1].Risk.Allowed)
}
