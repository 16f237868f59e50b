package sim

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/rustyeddy/papertrader/broker"
)

func ledgerProps(t *testing.T) *gopter.Properties {
	t.Helper()
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	return gopter.NewProperties(parameters)
}

func sideOf(buy bool) broker.Side {
	if buy {
		return broker.Buy
	}
	return broker.Sell
}

// Closing a trade gives back exactly the margin it locked plus its P&L.
func TestProperty_MarginConservation(t *testing.T) {
	properties := ledgerProps(t)

	properties.Property("available margin after close = before open + pnl", prop.ForAll(
		func(buy bool, entry, exit float64, qty int64) bool {
			l, _ := newLedger(t, nil)
			before := l.Account().AvailableMargin

			tr, res := l.PlaceTrade(broker.OrderRequest{Symbol: "X", Side: sideOf(buy), Price: entry, Quantity: qty})
			if !res.OK() {
				return false
			}
			closed, res := l.CloseTrade(tr.ID, exit)
			if !res.OK() {
				return false
			}
			after := l.Account()
			return math.Abs(after.AvailableMargin-(before+*closed.PnL)) < 1e-6 &&
				math.Abs(after.Margin) < 1e-9
		},
		gen.Bool(),
		gen.Float64Range(1, 5000),
		gen.Float64Range(1, 5000),
		gen.Int64Range(1, 500),
	))

	properties.TestingRun(t)
}

// Orders that would overdraw available margin are refused and leave the
// ledger untouched.
func TestProperty_NoNegativeAvailableMargin(t *testing.T) {
	properties := ledgerProps(t)

	properties.Property("available margin never goes below zero", prop.ForAll(
		func(qtys []int64, price float64) bool {
			l, _ := newLedger(t, func(o *Options) { o.InitialBalance = 10_000 })
			for i, q := range qtys {
				before := l.Account()
				_, res := l.PlaceTrade(broker.OrderRequest{Symbol: "X", Side: sideOf(i%2 == 0), Price: price, Quantity: q})
				after := l.Account()
				if after.AvailableMargin < -1e-9 {
					return false
				}
				if res.Code == broker.ResultInsufficientMargin && len(after.Trades) != len(before.Trades) {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(30, gen.Int64Range(1, 200)),
		gen.Float64Range(1, 1000),
	))

	properties.TestingRun(t)
}

func TestProperty_IdempotentClose(t *testing.T) {
	properties := ledgerProps(t)

	properties.Property("second close changes nothing", prop.ForAll(
		func(buy bool, entry, exit, exit2 float64) bool {
			l, _ := newLedger(t, nil)
			tr, _ := l.PlaceTrade(broker.OrderRequest{Symbol: "X", Side: sideOf(buy), Price: entry, Quantity: 1})
			l.CloseTrade(tr.ID, exit)
			first := l.Account()

			_, res := l.CloseTrade(tr.ID, exit2)
			second := l.Account()
			return res.Code == broker.ResultTradeNotFound &&
				first.Balance == second.Balance &&
				first.Equity == second.Equity &&
				first.AvailableMargin == second.AvailableMargin &&
				*first.Trades[0].ExitPrice == *second.Trades[0].ExitPrice
		},
		gen.Bool(),
		gen.Float64Range(1, 1000),
		gen.Float64Range(1, 1000),
		gen.Float64Range(1, 1000),
	))

	properties.TestingRun(t)
}

// Equity always equals balance plus the unrealized P&L of every position.
func TestProperty_EquityIdentity(t *testing.T) {
	properties := ledgerProps(t)

	properties.Property("equity = balance + sum(position pnl)", prop.ForAll(
		func(prices []float64, mark float64) bool {
			l, _ := newLedger(t, nil)
			for i, p := range prices {
				l.PlaceTrade(broker.OrderRequest{Symbol: "X", Side: sideOf(i%3 != 0), Price: p, Quantity: int64(i%4 + 1)})
			}
			l.SetCurrentPrice(mark)
			if open := l.OpenTrades(); len(open) > 0 {
				l.CloseTrade(open[0].ID, mark)
			}

			a := l.Account()
			sum := a.Balance
			for _, p := range a.Positions {
				if p.Quantity == 0 {
					return false
				}
				sum += p.PnL
			}
			return math.Abs(a.Equity-sum) < 1e-6 &&
				math.Abs(a.AvailableMargin-(a.Balance-a.Margin)) < 1e-6
		},
		gen.SliceOfN(10, gen.Float64Range(10, 1000)),
		gen.Float64Range(10, 1000),
	))

	properties.TestingRun(t)
}
