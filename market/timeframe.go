package market

import (
	"fmt"
	"strings"
	"time"
)

var timeframes = []struct {
	name string
	d    time.Duration
}{
	{"M1", time.Minute},
	{"M5", 5 * time.Minute},
	{"M15", 15 * time.Minute},
	{"M30", 30 * time.Minute},
	{"H1", time.Hour},
	{"H4", 4 * time.Hour},
	{"D1", 24 * time.Hour},
	{"W1", 7 * 24 * time.Hour},
}

// ParseTimeframe accepts chart names like "M5" or "H1" as well as Go
// durations like "15m".
func ParseTimeframe(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	for _, tf := range timeframes {
		if strings.EqualFold(s, tf.name) {
			return tf.d, nil
		}
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("unsupported timeframe %q", s)
	}
	if d%time.Second != 0 {
		return 0, fmt.Errorf("timeframe %q is not a whole number of seconds", s)
	}
	return d, nil
}

// TimeframeName maps d back to its chart name, or d.String() when it has
// none.
func TimeframeName(d time.Duration) string {
	for _, tf := range timeframes {
		if tf.d == d {
			return tf.name
		}
	}
	return d.String()
}

// Resample aggregates bars into tf buckets aligned to the unix epoch. A
// bucket takes the first open, the highest high, the lowest low, the last
// close and the summed volume; buckets with no bars are skipped.
func Resample(bars []Bar, tf time.Duration) ([]Bar, error) {
	step := int64(tf / time.Second)
	if step <= 0 {
		return nil, fmt.Errorf("timeframe must be at least one second, got %s", tf)
	}

	out := make([]Bar, 0, len(bars))
	for _, b := range bars {
		start := b.Time - mod(b.Time, step)
		n := len(out)
		if n == 0 || out[n-1].Time != start {
			out = append(out, Bar{Time: start, Open: b.Open, High: b.High, Low: b.Low, Close: b.Close, Volume: b.Volume})
			continue
		}
		cur := &out[n-1]
		cur.High = max(cur.High, b.High)
		cur.Low = min(cur.Low, b.Low)
		cur.Close = b.Close
		cur.Volume += b.Volume
	}
	return out, nil
}

// mod is the non-negative remainder, so pre-1970 bars bucket downwards.
func mod(a, b int64) int64 {
	r := a % b
	if r < 0 {
		r += b
	}
	return r
}
