package replay

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// DefaultStartOffset leaves lookback bars on screen when a session starts.
const DefaultStartOffset = 100

var ErrUnsupportedSpeed = errors.New("unsupported replay speed")

// DefaultSpeeds maps a speed multiplier to the delay between ticks.
func DefaultSpeeds() map[int]time.Duration {
	return map[int]time.Duration{
		1:  1000 * time.Millisecond,
		2:  500 * time.Millisecond,
		5:  200 * time.Millisecond,
		10: 100 * time.Millisecond,
	}
}

// State is a read-only view of the clock.
type State struct {
	IsPlaying    bool `json:"isPlaying"`
	Speed        int  `json:"speed"`
	CurrentIndex int  `json:"currentIndex"`
	TotalCandles int  `json:"totalCandles"`
}

// AtEnd reports whether the cursor sits on the last bar.
func (s State) AtEnd() bool { return s.TotalCandles == 0 || s.CurrentIndex >= s.TotalCandles-1 }

type ClockOptions struct {
	Total       int
	StartOffset int
	Speeds      map[int]time.Duration
	Speed       int
}

// Clock is the replay cursor. It is either STOPPED or PLAYING, and the
// index is kept inside [0, total-1] by clamping; no cursor operation
// fails. Reaching the last bar always leaves the clock STOPPED.
type Clock struct {
	mu sync.Mutex

	speeds      map[int]time.Duration
	startOffset int

	playing bool
	speed   int
	index   int
	total   int
}

func NewClock(opts ClockOptions) *Clock {
	c := &Clock{
		speeds:      opts.Speeds,
		startOffset: opts.StartOffset,
		speed:       opts.Speed,
		total:       opts.Total,
	}
	if len(c.speeds) == 0 {
		c.speeds = DefaultSpeeds()
	}
	if _, ok := c.speeds[c.speed]; !ok {
		c.speed = c.slowestLocked()
	}
	if c.startOffset < 0 {
		c.startOffset = 0
	}
	if c.total < 0 {
		c.total = 0
	}
	c.index = c.clampLocked(c.startOffset)
	return c
}

func (c *Clock) slowestLocked() int {
	best := 0
	for x := range c.speeds {
		if best == 0 || x < best {
			best = x
		}
	}
	return best
}

func (c *Clock) clampLocked(i int) int {
	if c.total <= 0 || i < 0 {
		return 0
	}
	if i > c.total-1 {
		return c.total - 1
	}
	return i
}

func (c *Clock) stateLocked() State {
	return State{
		IsPlaying:    c.playing,
		Speed:        c.speed,
		CurrentIndex: c.index,
		TotalCandles: c.total,
	}
}

func (c *Clock) atEndLocked() bool { return c.total == 0 || c.index >= c.total-1 }

func (c *Clock) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

// Play starts the clock unless the cursor is already on the last bar.
// It reports whether the clock is playing afterwards.
func (c *Clock) Play() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.atEndLocked() {
		c.playing = false
		return false
	}
	c.playing = true
	return true
}

func (c *Clock) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playing = false
}

// Tick advances one bar while playing. It reports whether the index
// moved; a stopped clock ignores ticks.
func (c *Clock) Tick() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.playing {
		return false
	}
	if c.atEndLocked() {
		c.playing = false
		return false
	}
	c.index++
	if c.atEndLocked() {
		c.index = c.clampLocked(c.index)
		c.playing = false
	}
	return true
}

// Step moves the cursor by n bars, backwards when n is negative.
func (c *Clock) Step(n int) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.moveLocked(c.index + n)
}

func (c *Clock) Seek(i int) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.moveLocked(i)
}

func (c *Clock) moveLocked(i int) State {
	c.index = c.clampLocked(i)
	if c.atEndLocked() {
		c.playing = false
	}
	return c.stateLocked()
}

// SetSpeed changes the tick cadence. A running player picks it up on its
// next tick.
func (c *Clock) SetSpeed(x int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.speeds[x]; !ok {
		return fmt.Errorf("%w: %dx", ErrUnsupportedSpeed, x)
	}
	c.speed = x
	return nil
}

// Interval is the delay between ticks at the current speed.
func (c *Clock) Interval() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speeds[c.speed]
}

// Speeds lists the supported multipliers in ascending order.
func (c *Clock) Speeds() []int {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]int, 0, len(c.speeds))
	for x := range c.speeds {
		out = append(out, x)
	}
	sort.Ints(out)
	return out
}

// Reset stops the clock and puts the cursor back on the start offset.
func (c *Clock) Reset() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.playing = false
	c.index = c.clampLocked(c.startOffset)
	return c.stateLocked()
}

// SwitchSymbol is Reset against a series of a different length.
func (c *Clock) SwitchSymbol(total int) State {
	c.mu.Lock()
	defer c.mu.Unlock()

	if total < 0 {
		total = 0
	}
	c.total = total
	c.playing = false
	c.index = c.clampLocked(c.startOffset)
	return c.stateLocked()
}
