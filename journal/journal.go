// journal/journal.go
package journal

import (
	"time"
)

// TradeRecord is written once per closed trade.
type TradeRecord struct {
	TradeID    string    `json:"tradeId"`
	Symbol     string    `json:"symbol"`
	Side       string    `json:"side"`
	Quantity   int64     `json:"quantity"`
	EntryPrice float64   `json:"entryPrice"`
	ExitPrice  float64   `json:"exitPrice"`
	OpenTime   time.Time `json:"openTime"`  // bar time of the entry
	CloseTime  time.Time `json:"closeTime"` // wall clock at close
	RealizedPL float64   `json:"realizedPnl"`
	PnLPercent float64   `json:"pnlPercent"`
	Reason     string    `json:"reason"`
}

// EquitySnapshot is written after every ledger mutation.
type EquitySnapshot struct {
	Time            time.Time `json:"time"`
	Balance         float64   `json:"balance"`
	Equity          float64   `json:"equity"`
	Margin          float64   `json:"margin"`
	AvailableMargin float64   `json:"availableMargin"`
	OpenTrades      int       `json:"openTrades"`
}

// Journal is an append-only audit sink. It is never read back into a
// session.
type Journal interface {
	RecordTrade(TradeRecord) error
	RecordEquity(EquitySnapshot) error
	Close() error
}

// Close reasons.
const (
	ReasonManual   = "MANUAL"
	ReasonCloseAll = "CLOSE_ALL"
)

// Nop discards everything.
type Nop struct{}

func (Nop) RecordTrade(TradeRecord) error     { return nil }
func (Nop) RecordEquity(EquitySnapshot) error { return nil }
func (Nop) Close() error                      { return nil }
