package session

import (
	"github.com/rustyeddy/papertrader/broker"
	"github.com/rustyeddy/papertrader/risk"
)

// Buy opens a long on the selected symbol at the current bar's close.
func (s *Session) Buy(qty int64) (broker.Trade, broker.Result) {
	return s.place(broker.Buy, qty)
}

// Sell opens a short on the selected symbol at the current bar's close.
func (s *Session) Sell(qty int64) (broker.Trade, broker.Result) {
	return s.place(broker.Sell, qty)
}

// Place is Buy or Sell by side.
func (s *Session) Place(side broker.Side, qty int64) (broker.Trade, broker.Result) {
	return s.place(side, qty)
}

func (s *Session) place(side broker.Side, qty int64) (broker.Trade, broker.Result) {
	s.mu.Lock()
	if !s.connected {
		s.mu.Unlock()
		return broker.Trade{}, broker.Reject(broker.ErrNotConnected)
	}
	t, res := s.ledger.PlaceTrade(broker.OrderRequest{
		Symbol:   s.symbol,
		Side:     side,
		Price:    s.price,
		Quantity: qty,
		BarTime:  s.barTime,
	})
	s.mu.Unlock()

	if res.OK() {
		s.emit(EventTrade)
	}
	return t, res
}

// Close closes one trade at the current price.
func (s *Session) Close(tradeID string) (broker.Trade, broker.Result) {
	s.mu.Lock()
	t, res := s.ledger.CloseTrade(tradeID, s.price)
	s.mu.Unlock()

	if res.OK() {
		s.emit(EventTrade)
	}
	return t, res
}

// CloseAll closes every open trade at the current price, whatever its
// symbol.
func (s *Session) CloseAll() (broker.CloseAllResult, broker.Result) {
	s.mu.Lock()
	out, res := s.ledger.CloseAllTrades(s.price)
	s.mu.Unlock()

	if res.OK() {
		s.emit(EventTrade)
	}
	return out, res
}

func (s *Session) TradeAt(n int) (broker.Trade, bool) { return s.ledger.TradeAt(n) }

// RiskReward evaluates a plan at the current price. Zero stop and target
// take the default 1% stop and 2% target.
func (s *Session) RiskReward(side broker.Side, stop, target float64, qty int64) risk.Plan {
	entry := s.CurrentPrice()
	if stop == 0 && target == 0 {
		stop, target = risk.DefaultLevels(side, entry)
	}
	return risk.RiskReward(side, entry, stop, target, qty)
}
