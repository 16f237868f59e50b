package sim

import (
	"time"

	"github.com/rustyeddy/papertrader/broker"
	"github.com/rustyeddy/papertrader/journal"
	"github.com/rustyeddy/papertrader/risk"
)

// closeTradeLocked realizes t at exitPrice and credits the balance. The
// caller recomputes margin and equity afterwards.
func (l *Ledger) closeTradeLocked(t *broker.Trade, exitPrice float64, reason string) (pnl, released float64) {
	pnl = risk.TradePnL(t.Side, t.Price, exitPrice, t.Quantity)
	pct := risk.PnLPercent(pnl, t.Price, t.Quantity)
	released = risk.MarginRequired(t.Price, t.Quantity, l.rate)
	closedAt := l.now()
	exitTS := closedAt.Unix()

	t.Status = broker.StatusClosed
	t.ExitPrice = &exitPrice
	t.ExitTimestamp = &exitTS
	if l.barTime != 0 {
		bt := l.barTime
		t.ExitBarTime = &bt
	}
	t.PnL = &pnl
	t.PnLPercent = &pct

	l.balance += pnl

	err := l.journal.RecordTrade(journal.TradeRecord{
		TradeID:    t.ID,
		Symbol:     t.Symbol,
		Side:       string(t.Side),
		Quantity:   t.Quantity,
		EntryPrice: t.Price,
		ExitPrice:  exitPrice,
		OpenTime:   time.Unix(t.Timestamp, 0).UTC(),
		CloseTime:  closedAt.UTC(),
		RealizedPL: pnl,
		PnLPercent: pct,
		Reason:     reason,
	})
	if err != nil {
		l.log.Error().Err(err).Str("trade", t.ID).Msg("journal trade")
	}

	l.log.Debug().
		Str("trade", t.ID).
		Float64("exit", exitPrice).
		Float64("pnl", pnl).
		Str("reason", reason).
		Msg("trade closed")

	return pnl, released
}

func (l *Ledger) snapshotLocked() {
	open := 0
	for _, t := range l.trades {
		if t.IsOpen() {
			open++
		}
	}
	err := l.journal.RecordEquity(journal.EquitySnapshot{
		Time:            l.now().UTC(),
		Balance:         l.balance,
		Equity:          l.equity,
		Margin:          l.margin,
		AvailableMargin: l.availableLocked(),
		OpenTrades:      open,
	})
	if err != nil {
		l.log.Error().Err(err).Msg("journal equity")
	}
}
