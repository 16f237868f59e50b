package strategies

import (
	"fmt"
	"math"

	"github.com/rustyeddy/papertrader/indicators"
	"github.com/rustyeddy/papertrader/market"
)

// EMACross signals when a fast EMA crosses a slow EMA. It fires only on the
// bar where the relationship flips, not on every bar while the EMAs stay
// crossed. With ADXPeriod set, crosses are held while the trend is weaker
// than ADXThreshold.
type EMACross struct {
	fast *indicators.ExponentialMA
	slow *indicators.ExponentialMA
	adx  *indicators.ADX

	// -1 fast below slow, +1 fast above, 0 not yet known
	prevRel int

	minSpread    float64
	adxThreshold float64
	name         string
}

type EMACrossConfig struct {
	FastPeriod int
	SlowPeriod int

	// MinSpread holds signals while |fast-slow| is below it. 0 disables.
	MinSpread float64

	ADXPeriod    int
	ADXThreshold float64
}

func NewEMACross(cfg EMACrossConfig) (*EMACross, error) {
	if cfg.FastPeriod <= 0 || cfg.SlowPeriod <= 0 {
		return nil, fmt.Errorf("ema cross: periods must be positive")
	}
	if cfg.FastPeriod >= cfg.SlowPeriod {
		return nil, fmt.Errorf("ema cross: fast period %d must be below slow period %d", cfg.FastPeriod, cfg.SlowPeriod)
	}
	if cfg.ADXPeriod < 0 {
		return nil, fmt.Errorf("ema cross: adx period must not be negative")
	}

	x := &EMACross{
		fast:      indicators.NewEMA(cfg.FastPeriod),
		slow:      indicators.NewEMA(cfg.SlowPeriod),
		minSpread: cfg.MinSpread,
		name:      fmt.Sprintf("EMA_CROSS(%d,%d)", cfg.FastPeriod, cfg.SlowPeriod),
	}
	if cfg.ADXPeriod > 0 {
		x.adx = indicators.NewADX(cfg.ADXPeriod)
		x.adxThreshold = cfg.ADXThreshold
		if x.adxThreshold <= 0 {
			x.adxThreshold = 20
		}
		x.name = fmt.Sprintf("EMA_CROSS_ADX(%d,%d,ADX%d@%.1f)", cfg.FastPeriod, cfg.SlowPeriod, cfg.ADXPeriod, x.adxThreshold)
	}
	return x, nil
}

func (x *EMACross) Name() string { return x.name }

func (x *EMACross) Reset() {
	x.fast.Reset()
	x.slow.Reset()
	if x.adx != nil {
		x.adx.Reset()
	}
	x.prevRel = 0
}

func (x *EMACross) Ready() bool {
	return x.fast.Ready() && x.slow.Ready()
}

func (x *EMACross) Update(b market.Bar) Decision {
	x.fast.Update(b)
	x.slow.Update(b)
	if x.adx != nil {
		x.adx.Update(b)
	}

	d := Decision{Signal: Hold, Close: b.Close}
	if !x.Ready() {
		d.Reason = "warming up"
		return d
	}

	d.Fast, d.Slow = x.fast.Value(), x.slow.Value()
	if x.adx != nil {
		d.ADX = x.adx.Value()
	}
	diff := d.Fast - d.Slow

	if x.minSpread > 0 && math.Abs(diff) < x.minSpread {
		d.Reason = "min-spread filter"
		return d
	}

	rel := 0
	if diff > 0 {
		rel = 1
	} else if diff < 0 {
		rel = -1
	}
	prev := x.prevRel
	x.prevRel = rel

	switch {
	case prev == 0:
		d.Reason = "baseline set"
		return d
	case prev == -1 && rel == 1:
		d.Signal, d.Reason = Buy, "fast EMA crossed above slow EMA"
	case prev == 1 && rel == -1:
		d.Signal, d.Reason = Sell, "fast EMA crossed below slow EMA"
	default:
		d.Reason = "no cross"
		return d
	}

	if x.adx != nil {
		if !x.adx.Ready() {
			d.Signal, d.Reason = Hold, "adx warming up"
		} else if d.ADX < x.adxThreshold {
			d.Signal, d.Reason = Hold, fmt.Sprintf("adx %.1f below %.1f", d.ADX, x.adxThreshold)
		}
	}
	return d
}
