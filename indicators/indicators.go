// Package indicators computes chart overlays from bar series. Every
// indicator is streaming: it consumes one closed bar at a time, so the
// same code serves a full recompute and an incremental replay.
package indicators

import (
	"fmt"
	"strings"

	"github.com/rustyeddy/papertrader/market"
)

// Indicator computes a single streaming value from bars.
type Indicator interface {
	// Name returns a stable identifier like "EMA(20)".
	Name() string

	// Warmup returns how many updates are needed before Ready() can be true.
	Warmup() int

	Reset()

	// Update consumes the next closed bar.
	Update(b market.Bar)

	Ready() bool

	// Value is 0 until Ready.
	Value() float64
}

// Pane tells a chart where to draw an overlay.
type Pane string

const (
	PaneOverlay  Pane = "overlay"
	PaneSeparate Pane = "sep"
)

// Point is one indicator value at a bar time.
type Point struct {
	Time  int64   `json:"time"`
	Value float64 `json:"value"`
}

// Overlay is the rendered result of one indicator config. Single-line
// indicators use the "value" line.
type Overlay struct {
	Name  string             `json:"name"`
	Pane  Pane               `json:"pane"`
	Lines map[string][]Point `json:"lines"`
}

// Config selects an indicator. Mult is only used by Bollinger bands.
type Config struct {
	Type   string  `json:"type"`
	Period int     `json:"period"`
	Mult   float64 `json:"mult,omitempty"`
}

// Defaults per type, as the chart's indicator menu offers them.
var defaults = map[string]Config{
	"sma": {Type: "sma", Period: 20},
	"ema": {Type: "ema", Period: 20},
	"atr": {Type: "atr", Period: 14},
	"adx": {Type: "adx", Period: 14},
	"bb":  {Type: "bb", Period: 20, Mult: 2},
}

// Types lists the supported indicator types.
func Types() []string { return []string{"sma", "ema", "atr", "adx", "bb"} }

func (c Config) withDefaults() (Config, error) {
	c.Type = strings.ToLower(strings.TrimSpace(c.Type))
	d, ok := defaults[c.Type]
	if !ok {
		return c, fmt.Errorf("unknown indicator %q", c.Type)
	}
	if c.Period == 0 {
		c.Period = d.Period
	}
	if c.Mult == 0 {
		c.Mult = d.Mult
	}
	if c.Period < 1 {
		return c, fmt.Errorf("period must be positive, got %d", c.Period)
	}
	return c, nil
}

// Calc runs the configured indicator over bars.
func Calc(cfg Config, bars []market.Bar) (Overlay, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return Overlay{}, err
	}

	switch cfg.Type {
	case "bb":
		bb := NewBollinger(cfg.Period, cfg.Mult)
		out := Overlay{Name: bb.Name(), Pane: PaneOverlay, Lines: map[string][]Point{
			"upper": {}, "middle": {}, "lower": {},
		}}
		for _, b := range bars {
			bb.Update(b)
			if !bb.Ready() {
				continue
			}
			up, mid, lo := bb.Bands()
			out.Lines["upper"] = append(out.Lines["upper"], Point{b.Time, up})
			out.Lines["middle"] = append(out.Lines["middle"], Point{b.Time, mid})
			out.Lines["lower"] = append(out.Lines["lower"], Point{b.Time, lo})
		}
		return out, nil
	}

	var ind Indicator
	pane := PaneOverlay
	switch cfg.Type {
	case "sma":
		ind = NewMA(cfg.Period)
	case "ema":
		ind = NewEMA(cfg.Period)
	case "atr":
		ind, pane = NewATR(cfg.Period), PaneSeparate
	case "adx":
		ind, pane = NewADX(cfg.Period), PaneSeparate
	}
	return Overlay{
		Name:  ind.Name(),
		Pane:  pane,
		Lines: map[string][]Point{"value": Series(ind, bars)},
	}, nil
}

// Series feeds bars through ind and returns a point for every bar after
// warmup. ind is reset first.
func Series(ind Indicator, bars []market.Bar) []Point {
	ind.Reset()
	out := []Point{}
	for _, b := range bars {
		ind.Update(b)
		if ind.Ready() {
			out = append(out, Point{Time: b.Time, Value: ind.Value()})
		}
	}
	return out
}
