package session

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/papertrader/broker"
	"github.com/rustyeddy/papertrader/indicators"
	"github.com/rustyeddy/papertrader/market"
	"github.com/rustyeddy/papertrader/replay"
	"github.com/rustyeddy/papertrader/sim"
)

const barStart = int64(1_700_000_000)

// linearBars closes at base+i on bar i, one bar a minute.
func linearBars(n int, base float64) []market.Bar {
	bars := make([]market.Bar, n)
	for i := range bars {
		c := base + float64(i)
		bars[i] = market.Bar{Time: barStart + int64(i)*60, Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 1000}
	}
	return bars
}

func barTime(i int) int64 { return barStart + int64(i)*60 }

func testProvider(t *testing.T) *market.Provider {
	t.Helper()
	p, err := market.NewProviderFromBars(map[string][]market.Bar{
		"AAA": linearBars(20, 100),
		"BBB": linearBars(8, 50),
	})
	require.NoError(t, err)
	return p
}

func newSession(t *testing.T, mutate func(*Options)) *Session {
	t.Helper()
	opts := Options{
		Provider:    testProvider(t),
		StartOffset: 5,
		Speeds:      map[int]time.Duration{1: time.Millisecond, 10: time.Hour},
	}
	if mutate != nil {
		mutate(&opts)
	}
	s, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(s.Shutdown)
	return s
}

func TestNewSession(t *testing.T) {
	t.Parallel()

	s := newSession(t, nil)
	assert.Equal(t, "AAA", s.Symbol())
	assert.Equal(t, 105.0, s.CurrentPrice())

	snap := s.Snapshot()
	assert.Equal(t, 5, snap.Replay.CurrentIndex)
	assert.Equal(t, 20, snap.Replay.TotalCandles)
	assert.Equal(t, barTime(5), snap.CurrentTime)
	assert.InDelta(t, 5.0/19*100, snap.Progress, 1e-9)
	assert.False(t, snap.Connected)
	assert.Equal(t, 1_000_000.0, snap.Account.Balance)

	_, err := New(Options{})
	assert.Error(t, err)
	_, err = New(Options{Provider: testProvider(t), Symbol: "ZZZ"})
	assert.ErrorIs(t, err, broker.ErrUnknownSymbol)
}

func TestVisibleFollowsCursor(t *testing.T) {
	t.Parallel()

	s := newSession(t, nil)
	assert.Len(t, s.Visible(), 6)
	s.Step(3)
	bars := s.Visible()
	require.Len(t, bars, 9)
	assert.Equal(t, 108.0, bars[len(bars)-1].Close)
}

func TestOrdersNeedConnection(t *testing.T) {
	t.Parallel()

	s := newSession(t, nil)
	_, res := s.Buy(1)
	assert.Equal(t, broker.ResultInvalidOrder, res.Code)
	assert.Contains(t, res.Reason, "not connected")
	assert.Empty(t, s.Account().Trades)

	s.SetConnected(true)
	assert.True(t, s.Connected())
	assert.True(t, s.Account().Connected)

	tr, res := s.Buy(2)
	require.True(t, res.OK())
	assert.Equal(t, "AAA", tr.Symbol)
	assert.Equal(t, 105.0, tr.Price)
	assert.Equal(t, barTime(5), tr.Timestamp)
}

func TestCursorMovesMarkTheLedger(t *testing.T) {
	t.Parallel()

	s := newSession(t, nil)
	s.SetConnected(true)
	tr, res := s.Buy(2)
	require.True(t, res.OK())

	s.Step(5)
	a := s.Account()
	require.Len(t, a.Positions, 1)
	assert.Equal(t, 110.0, a.Positions[0].CurrentPrice)
	assert.InDelta(t, 10.0, a.Positions[0].PnL, 1e-9)
	assert.InDelta(t, 1_000_010.0, a.Equity, 1e-9)

	sum := s.Summary()
	assert.InDelta(t, 10.0, sum.UnrealizedPnL, 1e-9)
	assert.Equal(t, 1, sum.OpenTrades)

	closed, res := s.Close(tr.ID)
	require.True(t, res.OK())
	assert.Equal(t, 110.0, *closed.ExitPrice)

	sum = s.Summary()
	assert.InDelta(t, 10.0, sum.RealizedPnL, 1e-9)
	assert.Zero(t, sum.UnrealizedPnL)
	assert.InDelta(t, 0.001, sum.TotalPercent, 1e-9)
	assert.Equal(t, 1, sum.Wins)
	assert.Equal(t, 100.0, sum.WinRate)
}

func TestCloseAllUsesCurrentPrice(t *testing.T) {
	t.Parallel()

	s := newSession(t, nil)
	s.SetConnected(true)
	s.Buy(1)
	s.Sell(3)
	s.Seek(15)

	out, res := s.CloseAll()
	require.True(t, res.OK())
	require.Len(t, out.Closed, 2)
	// long +10, short -30
	assert.InDelta(t, -20.0, out.TotalPnL, 1e-9)
	assert.Empty(t, s.Account().Positions)
}

func TestMarkersRespectCursor(t *testing.T) {
	t.Parallel()

	s := newSession(t, nil)
	s.SetConnected(true)

	first, _ := s.Buy(1)
	s.Step(3)
	_, res := s.Sell(2)
	require.True(t, res.OK())
	s.Seek(7)
	s.Close(first.ID)

	s.Seek(6)
	m := s.Markers()
	require.Len(t, m, 1)
	assert.Equal(t, barTime(5), m[0].Time)
	assert.Equal(t, "belowBar", m[0].Position)
	assert.Equal(t, "arrowUp", m[0].Shape)
	assert.Equal(t, "BUY @ 105.00", m[0].Text)

	s.Seek(8)
	m = s.Markers()
	require.Len(t, m, 3)
	assert.Equal(t, barTime(7), m[1].Time)
	assert.Equal(t, "square", m[1].Shape)
	assert.Equal(t, "aboveBar", m[1].Position)
	assert.Equal(t, "EXIT @ 107.00", m[1].Text)
	assert.Equal(t, "SELL @ 108.00", m[2].Text)
	assert.Equal(t, "aboveBar", m[2].Position)

	require.NoError(t, s.SelectSymbol("BBB"))
	assert.Empty(t, s.Markers())
}

func TestExitMarkerUsesBarTime(t *testing.T) {
	t.Parallel()

	ledger := sim.NewLedger(sim.Options{})
	s := newSession(t, func(o *Options) { o.Ledger = ledger })
	s.SetConnected(true)

	tr, res := s.Buy(1)
	require.True(t, res.OK())
	s.Step(2)
	closed, res := s.Close(tr.ID)
	require.True(t, res.OK())

	require.NotNil(t, closed.ExitBarTime)
	assert.Equal(t, barTime(7), *closed.ExitBarTime)
	require.NotNil(t, closed.ExitTimestamp)
	assert.Greater(t, *closed.ExitTimestamp, barTime(19))

	s.Seek(19)
	m := s.Markers()
	require.Len(t, m, 2)
	assert.Equal(t, "BUY @ 105.00", m[0].Text)
	assert.Equal(t, "EXIT @ 107.00", m[1].Text)
	assert.Equal(t, barTime(7), m[1].Time)
}

func TestResetKeepsConnection(t *testing.T) {
	t.Parallel()

	s := newSession(t, nil)
	s.SetConnected(true)
	s.Buy(1)
	s.Seek(12)

	s.Reset()
	snap := s.Snapshot()
	assert.Equal(t, 5, snap.Replay.CurrentIndex)
	assert.False(t, snap.Replay.IsPlaying)
	assert.Empty(t, snap.Account.Trades)
	assert.Equal(t, 1_000_000.0, snap.Account.Balance)
	assert.True(t, snap.Connected)
	assert.True(t, snap.Account.Connected)
}

func TestSelectSymbol(t *testing.T) {
	t.Parallel()

	s := newSession(t, nil)
	s.SetConnected(true)
	s.Buy(1)
	s.Seek(10)

	require.NoError(t, s.SelectSymbol("BBB"))
	st := s.Replay()
	assert.Equal(t, 5, st.CurrentIndex)
	assert.Equal(t, 8, st.TotalCandles)
	assert.Equal(t, 55.0, s.CurrentPrice())
	assert.Len(t, s.Account().OpenTrades(), 1, "switching symbol keeps trades")

	assert.ErrorIs(t, s.SelectSymbol("NOPE"), broker.ErrUnknownSymbol)
	assert.Equal(t, "BBB", s.Symbol())
}

func TestSubscribe(t *testing.T) {
	t.Parallel()

	s := newSession(t, nil)

	var mu sync.Mutex
	var kinds []EventKind
	cancel := s.Subscribe(func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		kinds = append(kinds, ev.Kind)
	})

	s.Step(1)
	s.SetConnected(true)
	s.Buy(1)
	s.ClearDrawings()
	require.NoError(t, s.SelectSymbol("BBB"))
	s.Reset()
	cancel()
	s.Step(1)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []EventKind{EventReplay, EventBroker, EventTrade, EventClearDrawings, EventSymbol, EventReset}, kinds)
}

func TestPlayToEndTicksEveryBar(t *testing.T) {
	t.Parallel()

	s := newSession(t, nil)
	ticks := 0
	s.Subscribe(func(ev Event) {
		if ev.Kind == EventTick {
			ticks++
		}
	})

	st := s.PlayToEnd()
	assert.Equal(t, 19, st.CurrentIndex)
	assert.False(t, st.IsPlaying)
	assert.Equal(t, 14, ticks)
	assert.Equal(t, 119.0, s.CurrentPrice())
}

func TestPlayRunsThePlayer(t *testing.T) {
	t.Parallel()

	s := newSession(t, nil)
	require.True(t, s.Play())
	require.Eventually(t, func() bool { return s.Replay().AtEnd() }, 2*time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return s.CurrentPrice() == 119.0 }, time.Second, time.Millisecond)
	assert.False(t, s.Play(), "nothing left to play")

	s.Reset()
	require.NoError(t, s.SetSpeed(10))
	require.True(t, s.Play())
	s.Pause()
	assert.False(t, s.Replay().IsPlaying)
	assert.Equal(t, 5, s.Replay().CurrentIndex)

	assert.ErrorIs(t, s.SetSpeed(3), replay.ErrUnsupportedSpeed)
}

func TestExitReplay(t *testing.T) {
	t.Parallel()

	s := newSession(t, nil)
	st := s.ExitReplay()
	assert.Equal(t, 19, st.CurrentIndex)
	assert.Equal(t, 119.0, s.CurrentPrice())
}

func TestRiskRewardAtCurrentPrice(t *testing.T) {
	t.Parallel()

	s := newSession(t, nil)
	s.Seek(0)

	p := s.RiskReward(broker.Buy, 0, 0, 10)
	assert.Equal(t, 100.0, p.Entry)
	assert.InDelta(t, 99.0, p.StopLoss, 1e-9)
	assert.InDelta(t, 102.0, p.TakeProfit, 1e-9)
	assert.InDelta(t, 2.0, p.Ratio, 1e-9)

	p = s.RiskReward(broker.Sell, 103, 94, 1)
	assert.InDelta(t, 2.0, p.Ratio, 1e-9)
}

func TestScriptDrivesSession(t *testing.T) {
	t.Parallel()

	s := newSession(t, nil)
	script := "CONNECT\nBUY,2\nSTEP,4\nCLOSE,#1\nSELL,1\nPLAY_TO_END\nCLOSE_ALL\n"

	rep, err := replay.Script(context.Background(), strings.NewReader(script), s, replay.ScriptOptions{Strict: true})
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Opened)
	assert.Equal(t, 2, rep.Closed)
	assert.Equal(t, 19, rep.Final.CurrentIndex)

	// long 2 from 105 to 109, short 1 from 109 to 119
	assert.InDelta(t, 1_000_000+8-10.0, s.Account().Balance, 1e-9)
}

func TestIndicatorStopsAtCursor(t *testing.T) {
	t.Parallel()

	s := newSession(t, nil)
	out, err := s.Indicator(indicators.Config{Type: "ema", Period: 2})
	require.NoError(t, err)
	line := out.Lines["value"]
	require.Len(t, line, 5)
	assert.Equal(t, barTime(5), line[len(line)-1].Time)

	s.Step(3)
	out, err = s.Indicator(indicators.Config{Type: "ema", Period: 2})
	require.NoError(t, err)
	assert.Len(t, out.Lines["value"], 8)

	_, err = s.Indicator(indicators.Config{Type: "macd"})
	assert.Error(t, err)
}
