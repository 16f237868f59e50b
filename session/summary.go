package session

import (
	"github.com/rustyeddy/papertrader/broker"
	"github.com/rustyeddy/papertrader/risk"
)

// Summary is the P&L header of the trading panel.
type Summary struct {
	RealizedPnL   float64 `json:"realizedPnl"`
	UnrealizedPnL float64 `json:"unrealizedPnl"`
	TotalPnL      float64 `json:"totalPnl"`
	TotalPercent  float64 `json:"totalPnlPercent"`
	OpenTrades    int     `json:"openTrades"`
	ClosedTrades  int     `json:"closedTrades"`
	Wins          int     `json:"wins"`
	Losses        int     `json:"losses"`
	WinRate       float64 `json:"winRate"`
}

func (s *Session) Summary() Summary {
	s.mu.Lock()
	symbol, price := s.symbol, s.price
	s.mu.Unlock()

	return summarize(s.ledger.Account(), symbol, price, s.ledger.InitialBalance())
}

// summarize values open trades one by one with the trade formula. Trades
// on the selected symbol use the current price; others use their
// position's last mark, or entry when there is none.
func summarize(acct broker.Account, symbol string, price, initial float64) Summary {
	var sum Summary
	for _, t := range acct.Trades {
		if !t.IsOpen() {
			sum.ClosedTrades++
			if t.PnL == nil {
				continue
			}
			sum.RealizedPnL += *t.PnL
			switch {
			case *t.PnL > 0:
				sum.Wins++
			case *t.PnL < 0:
				sum.Losses++
			}
			continue
		}

		sum.OpenTrades++
		mark := t.Price
		if t.Symbol == symbol && price > 0 {
			mark = price
		} else if p, ok := acct.Position(t.Symbol); ok && p.CurrentPrice > 0 {
			mark = p.CurrentPrice
		}
		sum.UnrealizedPnL += risk.TradePnL(t.Side, t.Price, mark, t.Quantity)
	}

	sum.TotalPnL = sum.RealizedPnL + sum.UnrealizedPnL
	if initial > 0 {
		sum.TotalPercent = sum.TotalPnL / initial * 100
	}
	if sum.ClosedTrades > 0 {
		sum.WinRate = float64(sum.Wins) / float64(sum.ClosedTrades) * 100
	}
	return sum
}
