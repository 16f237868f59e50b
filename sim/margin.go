package sim

import "github.com/rustyeddy/papertrader/risk"

// recomputeMarginLocked sums the margin locked by open trades. Available
// margin is always balance minus this figure.
func (l *Ledger) recomputeMarginLocked() {
	var used float64
	for _, t := range l.trades {
		if !t.IsOpen() {
			continue
		}
		used += risk.MarginRequired(t.Price, t.Quantity, l.rate)
	}
	l.margin = used
}

// revalueLocked marks every position at its current price and sets
// equity to balance plus their unrealized P&L.
func (l *Ledger) revalueLocked() {
	equity := l.balance
	for _, p := range l.positions {
		p.PnL, p.PnLPercent = positionPnL(*p)
		equity += p.PnL
	}
	l.equity = equity
}
