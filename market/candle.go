package market

import (
	"fmt"
	"math"
	"time"
)

// Bar is one OHLCV sample. Time is the bar open in unix seconds and is
// strictly increasing within a series. Bars are never mutated once a
// series has been built.
type Bar struct {
	Time   int64   `json:"time" csv:"time"`
	Open   float64 `json:"open" csv:"open"`
	High   float64 `json:"high" csv:"high"`
	Low    float64 `json:"low" csv:"low"`
	Close  float64 `json:"close" csv:"close"`
	Volume int64   `json:"volume" csv:"volume"`
}

// Timestamp returns the bar open as a UTC time.
func (b Bar) Timestamp() time.Time {
	return time.Unix(b.Time, 0).UTC()
}

// Validate checks that every price is finite and positive and that volume
// is not negative.
func (b Bar) Validate() error {
	for _, p := range []float64{b.Open, b.High, b.Low, b.Close} {
		if math.IsNaN(p) || math.IsInf(p, 0) || p <= 0 {
			return fmt.Errorf("bar %d: price %v must be finite and positive", b.Time, p)
		}
	}
	if b.Volume < 0 {
		return fmt.Errorf("bar %d: negative volume %d", b.Time, b.Volume)
	}
	return nil
}

// ValidateSeries checks each bar and that times strictly increase.
func ValidateSeries(bars []Bar) error {
	for i, b := range bars {
		if err := b.Validate(); err != nil {
			return err
		}
		if i > 0 && b.Time <= bars[i-1].Time {
			return fmt.Errorf("bar %d: time %d not after %d", i, b.Time, bars[i-1].Time)
		}
	}
	return nil
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
