package session

import (
	"fmt"

	"github.com/rustyeddy/papertrader/broker"
)

// Marker is a chart annotation for a trade entry or exit.
type Marker struct {
	Time     int64  `json:"time"`
	Position string `json:"position"`
	Color    string `json:"color"`
	Shape    string `json:"shape"`
	Text     string `json:"text"`
	Size     int    `json:"size"`
}

const (
	colorLong  = "#26a69a"
	colorShort = "#ef5350"
	colorExit  = "#ff9800"
)

// Markers returns entry and exit markers for trades on the selected symbol
// that happened at or before the bar under the cursor.
func (s *Session) Markers() []Marker {
	s.mu.Lock()
	symbol, now := s.symbol, s.barTime
	s.mu.Unlock()

	return buildMarkers(s.ledger.Account().Trades, symbol, now)
}

func buildMarkers(trades []broker.Trade, symbol string, now int64) []Marker {
	out := []Marker{}
	if now == 0 {
		return out
	}
	for _, t := range trades {
		if t.Symbol != symbol || t.Timestamp > now {
			continue
		}
		long := t.Side == broker.Buy

		m := Marker{
			Time:     t.Timestamp,
			Position: "aboveBar",
			Color:    colorShort,
			Shape:    "arrowDown",
			Text:     fmt.Sprintf("%s @ %.2f", t.Side, t.Price),
			Size:     1,
		}
		if long {
			m.Position, m.Color, m.Shape = "belowBar", colorLong, "arrowUp"
		}
		out = append(out, m)

		if t.IsOpen() || t.ExitBarTime == nil || *t.ExitBarTime > now {
			continue
		}
		exit := Marker{
			Time:     *t.ExitBarTime,
			Position: "belowBar",
			Color:    colorExit,
			Shape:    "square",
			Text:     fmt.Sprintf("EXIT @ %.2f", *t.ExitPrice),
			Size:     1,
		}
		if long {
			exit.Position = "aboveBar"
		}
		out = append(out, exit)
	}
	return out
}
