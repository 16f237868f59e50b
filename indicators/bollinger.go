package indicators

import (
	"fmt"
	"math"

	"github.com/rustyeddy/papertrader/market"
)

// Bollinger is a streaming Bollinger band: an SMA of closes with bands
// mult population standard deviations either side.
type Bollinger struct {
	ma   *SimpleMA
	mult float64
}

func NewBollinger(period int, mult float64) *Bollinger {
	return &Bollinger{ma: NewMA(period), mult: mult}
}

func (b *Bollinger) Name() string {
	return fmt.Sprintf("BB(%d,%g)", b.ma.period, b.mult)
}

func (b *Bollinger) Warmup() int           { return b.ma.Warmup() }
func (b *Bollinger) Reset()                { b.ma.Reset() }
func (b *Bollinger) Update(bar market.Bar) { b.ma.Update(bar) }
func (b *Bollinger) Ready() bool           { return b.ma.Ready() }

// Value is the middle band.
func (b *Bollinger) Value() float64 { return b.ma.Value() }

// Bands returns upper, middle and lower. All are 0 until Ready.
func (b *Bollinger) Bands() (upper, middle, lower float64) {
	if !b.Ready() {
		return 0, 0, 0
	}
	middle = b.ma.Value()
	variance := 0.0
	for _, c := range b.ma.window {
		d := c - middle
		variance += d * d
	}
	sd := math.Sqrt(variance / float64(len(b.ma.window)))
	return middle + b.mult*sd, middle, middle - b.mult*sd
}
