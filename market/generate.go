package market

import (
	"math"
	"math/rand"
	"time"
)

const (
	// DefaultBars is the length of each generated series.
	DefaultBars = 2000
	// DefaultInterval is the bar width of generated series.
	DefaultInterval = 5 * time.Minute

	// levelLookback bars are used to place support and resistance.
	levelLookback = 100
	// rejectionCutoff is the fraction of the series after which resistance
	// stops rejecting, so late breakouts can happen.
	rejectionCutoff = 0.7
)

// GenOptions controls series generation.
//
// A zero Seed means "not reproducible": the caller is expected to pick one
// from the clock (see ResolveSeed). The same Seed, Start and Bars always
// produce the same series.
type GenOptions struct {
	Seed     int64
	Bars     int
	Interval time.Duration
	Start    time.Time
}

func (o GenOptions) withDefaults() GenOptions {
	if o.Bars <= 0 {
		o.Bars = DefaultBars
	}
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	if o.Start.IsZero() {
		// Six months back so the whole series lies in the past.
		o.Start = time.Now().Add(-180 * 24 * time.Hour).Truncate(o.Interval)
	}
	return o
}

// ResolveSeed returns seed, or a clock-derived seed when seed is zero.
// The bool reports whether the result is reproducible.
func ResolveSeed(seed int64) (int64, bool) {
	if seed != 0 {
		return seed, true
	}
	return time.Now().UnixNano(), false
}

// Generate builds a random walk for spec and then applies the
// support/resistance pass.
func Generate(spec SymbolSpec, rng *rand.Rand, opts GenOptions) []Bar {
	opts = opts.withDefaults()
	return addLevels(randomWalk(spec, rng, opts))
}

func randomWalk(spec SymbolSpec, rng *rand.Rand, opts GenOptions) []Bar {
	bars := make([]Bar, 0, opts.Bars)
	price := spec.StartPrice
	vol := spec.Volatility
	start := opts.Start.Unix()
	step := int64(opts.Interval / time.Second)

	for i := 0; i < opts.Bars; i++ {
		trend := spec.Drift + (rng.Float64()-0.5)*0.001
		change := (rng.Float64()-0.5)*2*vol + trend

		open := price
		close := open * (1 + change)

		wick := rng.Float64() * vol * 0.5
		high := math.Max(open, close) * (1 + wick)
		low := math.Min(open, close) * (1 - wick)

		// Bigger moves print more volume.
		move := math.Abs(close-open) / open
		volume := (100000 + rng.Float64()*500000) * (1 + move*10)

		bars = append(bars, Bar{
			Time:   start + int64(i)*step,
			Open:   round2(open),
			High:   round2(high),
			Low:    round2(low),
			Close:  round2(close),
			Volume: int64(math.Round(volume)),
		})
		price = close
	}
	return bars
}

// addLevels bounces bars off a support level and rejects them at a
// resistance level, both derived from the first levelLookback bars.
func addLevels(bars []Bar) []Bar {
	if len(bars) == 0 {
		return bars
	}

	n := min(levelLookback, len(bars))
	lo, hi := bars[0].Low, bars[0].High
	for _, b := range bars[1:n] {
		lo = math.Min(lo, b.Low)
		hi = math.Max(hi, b.High)
	}
	support := lo * 0.98
	resistance := hi * 1.02
	cutoff := float64(len(bars)) * rejectionCutoff

	out := make([]Bar, len(bars))
	for i, b := range bars {
		adj := b
		switch {
		case b.Low < support:
			bounce := (support - b.Low) * 0.5
			adj.Close = round2(b.Close + bounce)
			adj.Low = math.Min(support, math.Min(adj.Open, adj.Close))
			adj.High = math.Max(b.High, adj.Close)
		case b.High > resistance && float64(i) < cutoff:
			rejection := (b.High - resistance) * 0.3
			adj.Close = round2(b.Close - rejection)
			adj.High = math.Max(resistance, math.Max(adj.Open, adj.Close))
			adj.Low = math.Min(b.Low, adj.Close)
		}
		adj.Low = round2(adj.Low)
		adj.High = round2(adj.High)
		if adj.Validate() != nil {
			adj = b
		}
		out[i] = adj
	}
	return out
}
