package session

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rustyeddy/papertrader/broker"
)

func fp(v float64) *float64 { return &v }

func TestSummarize(t *testing.T) {
	t.Parallel()

	acct := broker.Account{
		Trades: []broker.Trade{
			{Symbol: "AAA", Side: broker.Buy, Price: 100, Quantity: 1, Status: broker.StatusClosed, PnL: fp(20)},
			{Symbol: "AAA", Side: broker.Sell, Price: 100, Quantity: 1, Status: broker.StatusClosed, PnL: fp(-5)},
			{Symbol: "AAA", Side: broker.Sell, Price: 100, Quantity: 2, Status: broker.StatusOpen},
			{Symbol: "BBB", Side: broker.Buy, Price: 10, Quantity: 10, Status: broker.StatusOpen},
			{Symbol: "CCC", Side: broker.Buy, Price: 10, Quantity: 10, Status: broker.StatusOpen},
		},
		Positions: []broker.Position{{Symbol: "BBB", Quantity: 10, AvgPrice: 10, CurrentPrice: 12}},
	}

	sum := summarize(acct, "AAA", 90, 1000)
	assert.InDelta(t, 15.0, sum.RealizedPnL, 1e-9)
	// AAA short at 90: +20, BBB at its mark: +20, CCC at entry: 0
	assert.InDelta(t, 40.0, sum.UnrealizedPnL, 1e-9)
	assert.InDelta(t, 55.0, sum.TotalPnL, 1e-9)
	assert.InDelta(t, 5.5, sum.TotalPercent, 1e-9)
	assert.Equal(t, 3, sum.OpenTrades)
	assert.Equal(t, 2, sum.ClosedTrades)
	assert.Equal(t, 1, sum.Wins)
	assert.Equal(t, 1, sum.Losses)
	assert.InDelta(t, 50.0, sum.WinRate, 1e-9)

	assert.Equal(t, Summary{}, summarize(broker.Account{}, "AAA", 1, 1000))
}
