package sim

import "github.com/rustyeddy/papertrader/broker"

// applyFillLocked folds a newly opened trade into its symbol's position.
//
// A fill in the same direction adds to the position and may move the
// average price (see Policy). A fill against it only changes the quantity,
// which can flip the sign; the average price is kept. Zero quantity
// removes the position.
func (l *Ledger) applyFillLocked(t *broker.Trade) {
	signed := t.Side.Sign() * t.Quantity

	p, ok := l.positions[t.Symbol]
	if !ok {
		l.positions[t.Symbol] = &broker.Position{
			Symbol:       t.Symbol,
			Quantity:     signed,
			AvgPrice:     t.Price,
			CurrentPrice: t.Price,
		}
		return
	}

	qty := p.Quantity + signed
	if qty == 0 {
		delete(l.positions, t.Symbol)
		return
	}

	adding := (p.Quantity > 0) == (signed > 0)
	if adding && (t.Side == broker.Buy || !l.policy.AverageOnBuyOnly) {
		held := float64(absQty(p.Quantity))
		p.AvgPrice = (p.AvgPrice*held + t.Price*float64(t.Quantity)) / (held + float64(t.Quantity))
	}
	p.Quantity = qty
}

func absQty(q int64) int64 {
	if q < 0 {
		return -q
	}
	return q
}

// positionPnL uses the signed quantity, so shorts need no side branch.
func positionPnL(p broker.Position) (pnl, pct float64) {
	pnl = (p.CurrentPrice - p.AvgPrice) * float64(p.Quantity)
	basis := p.AvgPrice * float64(absQty(p.Quantity))
	if basis != 0 {
		pct = pnl / basis * 100
	}
	return pnl, pct
}
