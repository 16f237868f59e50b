// Package strategies turns closed bars into trade signals. A Runner feeds
// a replay session's bars to a Strategy and trades its signals on the
// paper broker.
package strategies

import (
	"fmt"
	"sort"

	"github.com/rustyeddy/papertrader/market"
)

// Strategy is fed one closed bar at a time, oldest first.
type Strategy interface {
	Name() string
	Reset()
	Ready() bool
	Update(b market.Bar) Decision
}

type Signal int

const (
	Hold Signal = iota
	Buy
	Sell
)

func (s Signal) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return "HOLD"
	}
}

// Decision is a strategy's answer for one bar. Fast, Slow and ADX carry
// the indicator values behind it when the strategy has them.
type Decision struct {
	Signal Signal  `json:"signal"`
	Reason string  `json:"reason"`
	Close  float64 `json:"close"`
	Fast   float64 `json:"fast,omitempty"`
	Slow   float64 `json:"slow,omitempty"`
	ADX    float64 `json:"adx,omitempty"`
}

var registry = map[string]func() Strategy{
	"noop": func() Strategy { return Noop{} },
	"ema-cross": func() Strategy {
		s, _ := NewEMACross(EMACrossConfig{FastPeriod: 9, SlowPeriod: 21})
		return s
	},
	"ema-cross-adx": func() Strategy {
		s, _ := NewEMACross(EMACrossConfig{FastPeriod: 9, SlowPeriod: 21, ADXPeriod: 14, ADXThreshold: 20})
		return s
	},
}

// Register adds or replaces a named strategy constructor.
func Register(name string, fn func() Strategy) {
	registry[name] = fn
}

// New builds a fresh instance of the named strategy.
func New(name string) (Strategy, error) {
	fn, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q", name)
	}
	return fn(), nil
}

func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Noop never trades.
type Noop struct{}

func (Noop) Name() string { return "NOOP" }
func (Noop) Reset()       {}
func (Noop) Ready() bool  { return true }

func (Noop) Update(b market.Bar) Decision {
	return Decision{Signal: Hold, Reason: "noop", Close: b.Close}
}
