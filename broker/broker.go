package broker

import (
	"errors"
	"fmt"
	"strings"
)

// Broker is what the presentation layer drives. The paper ledger in
// package sim is the only implementation; every call is synchronous and
// atomic.
type Broker interface {
	Account() Account
	PlaceTrade(req OrderRequest) (Trade, Result)
	CloseTrade(tradeID string, exitPrice float64) (Trade, Result)
	CloseAllTrades(exitPrice float64) (CloseAllResult, Result)
}

type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// ParseSide accepts BUY/SELL in any case, plus LONG/SHORT.
func ParseSide(s string) (Side, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BUY", "LONG":
		return Buy, nil
	case "SELL", "SHORT":
		return Sell, nil
	}
	return "", fmt.Errorf("%w: unknown side %q", ErrInvalidOrder, s)
}

func (s Side) Valid() bool { return s == Buy || s == Sell }

// Sign is +1 for Buy and -1 for Sell.
func (s Side) Sign() int64 {
	if s == Sell {
		return -1
	}
	return 1
}

type Status string

const (
	StatusOpen   Status = "OPEN"
	StatusClosed Status = "CLOSED"
)

// Trade is one entry in the ledger's trade log. It is created OPEN and
// transitions to CLOSED exactly once; the exit fields are set by that
// transition and nil before it.
type Trade struct {
	ID        string  `json:"id"`
	Symbol    string  `json:"symbol"`
	Side      Side    `json:"side"`
	Price     float64 `json:"price"`
	Quantity  int64   `json:"quantity"`
	Timestamp int64   `json:"timestamp"`
	Status    Status  `json:"status"`

	ExitPrice     *float64 `json:"exitPrice,omitempty"`
	ExitTimestamp *int64   `json:"exitTimestamp,omitempty"`
	PnL           *float64 `json:"pnl,omitempty"`
	PnLPercent    *float64 `json:"pnlPercent,omitempty"`

	// ExitBarTime is the time of the replay bar the trade was closed on.
	// ExitTimestamp stays wall-clock.
	ExitBarTime *int64 `json:"exitBarTime,omitempty"`
}

func (t Trade) IsOpen() bool { return t.Status == StatusOpen }

// Notional is entry price times quantity.
func (t Trade) Notional() float64 { return t.Price * float64(t.Quantity) }

// Clone returns a copy that shares no pointers with t.
func (t Trade) Clone() Trade {
	c := t
	if t.ExitPrice != nil {
		v := *t.ExitPrice
		c.ExitPrice = &v
	}
	if t.ExitTimestamp != nil {
		v := *t.ExitTimestamp
		c.ExitTimestamp = &v
	}
	if t.ExitBarTime != nil {
		v := *t.ExitBarTime
		c.ExitBarTime = &v
	}
	if t.PnL != nil {
		v := *t.PnL
		c.PnL = &v
	}
	if t.PnLPercent != nil {
		v := *t.PnLPercent
		c.PnLPercent = &v
	}
	return c
}

// Position is the net exposure per symbol. Quantity is signed: positive
// is net long, negative net short. A zero quantity position never exists.
type Position struct {
	Symbol       string  `json:"symbol"`
	Quantity     int64   `json:"quantity"`
	AvgPrice     float64 `json:"avgPrice"`
	CurrentPrice float64 `json:"currentPrice"`
	PnL          float64 `json:"pnl"`
	PnLPercent   float64 `json:"pnlPercent"`
}

// Account is a point-in-time copy of the ledger.
type Account struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Type            string     `json:"type"`
	Balance         float64    `json:"balance"`
	Equity          float64    `json:"equity"`
	Margin          float64    `json:"margin"`
	AvailableMargin float64    `json:"availableMargin"`
	Positions       []Position `json:"positions"`
	Trades          []Trade    `json:"trades"`
	Connected       bool       `json:"connected"`
}

// OpenTrades filters the trade log.
func (a Account) OpenTrades() []Trade {
	var out []Trade
	for _, t := range a.Trades {
		if t.IsOpen() {
			out = append(out, t)
		}
	}
	return out
}

// Position looks up the position for symbol.
func (a Account) Position(symbol string) (Position, bool) {
	for _, p := range a.Positions {
		if p.Symbol == symbol {
			return p, true
		}
	}
	return Position{}, false
}

// OrderRequest opens a trade. BarTime is the replay bar under the cursor,
// not the wall clock.
type OrderRequest struct {
	Symbol   string
	Side     Side
	Price    float64
	Quantity int64
	BarTime  int64
}

func (r OrderRequest) Validate() error {
	switch {
	case r.Symbol == "":
		return fmt.Errorf("%w: symbol is required", ErrInvalidOrder)
	case !r.Side.Valid():
		return fmt.Errorf("%w: unknown side %q", ErrInvalidOrder, r.Side)
	case !(r.Price > 0):
		return fmt.Errorf("%w: price must be positive", ErrInvalidOrder)
	case r.Quantity <= 0:
		return fmt.Errorf("%w: quantity must be positive", ErrInvalidOrder)
	}
	return nil
}

// CloseAllResult summarizes one CloseAllTrades batch.
type CloseAllResult struct {
	Closed         []Trade `json:"closed"`
	TotalPnL       float64 `json:"totalPnl"`
	MarginReleased float64 `json:"marginReleased"`
}

var (
	ErrInsufficientMargin = errors.New("insufficient margin")
	ErrTradeNotFound      = errors.New("trade not found")
	ErrTradeClosed        = fmt.Errorf("%w: already closed", ErrTradeNotFound)
	ErrInvalidOrder       = errors.New("invalid order")
	ErrUnknownSymbol      = errors.New("unknown symbol")
	ErrNotConnected       = errors.New("broker not connected")
)

type ResultCode int

const (
	ResultOK ResultCode = iota
	ResultInsufficientMargin
	ResultTradeNotFound
	ResultInvalidOrder
)

func (c ResultCode) String() string {
	switch c {
	case ResultOK:
		return "OK"
	case ResultInsufficientMargin:
		return "INSUFFICIENT_MARGIN"
	case ResultTradeNotFound:
		return "TRADE_NOT_FOUND"
	case ResultInvalidOrder:
		return "INVALID_ORDER"
	}
	return fmt.Sprintf("ResultCode(%d)", int(c))
}

// Result tells the caller whether a ledger mutation was applied. Anything
// but ResultOK means the ledger is unchanged.
type Result struct {
	Code   ResultCode `json:"code"`
	Reason string     `json:"reason,omitempty"`
}

func (r Result) OK() bool { return r.Code == ResultOK }

// Err maps the result onto the package sentinels, nil for ResultOK.
func (r Result) Err() error {
	var base error
	switch r.Code {
	case ResultOK:
		return nil
	case ResultInsufficientMargin:
		base = ErrInsufficientMargin
	case ResultTradeNotFound:
		base = ErrTradeNotFound
	default:
		base = ErrInvalidOrder
	}
	if r.Reason == "" {
		return base
	}
	return fmt.Errorf("%w: %s", base, r.Reason)
}

// Reject builds a failed result from err, choosing the code from the
// sentinel it wraps.
func Reject(err error) Result {
	code := ResultInvalidOrder
	switch {
	case errors.Is(err, ErrInsufficientMargin):
		code = ResultInsufficientMargin
	case errors.Is(err, ErrTradeNotFound):
		code = ResultTradeNotFound
	}
	return Result{Code: code, Reason: err.Error()}
}
