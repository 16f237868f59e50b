package replay

import (
	"context"
	"sync"
	"time"
)

// Player ticks a Clock on a timer. The delay is read from the clock
// before every tick, so speed changes apply from the next tick on.
//
// onAdvance runs on the player goroutine after every tick that moved the
// cursor. It must not call Start or Stop.
type Player struct {
	clock     *Clock
	onAdvance func(State)

	// ctl serializes Start and Stop
	ctl sync.Mutex

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewPlayer(clock *Clock, onAdvance func(State)) *Player {
	return &Player{clock: clock, onAdvance: onAdvance}
}

// Start puts the clock in PLAYING and runs the timer loop until ctx is
// done, Stop is called, or the clock stops on its own. It returns false
// when the clock refused to play.
func (p *Player) Start(ctx context.Context) bool {
	p.ctl.Lock()
	defer p.ctl.Unlock()

	p.halt()

	if !p.clock.Play() {
		return false
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	p.mu.Lock()
	p.cancel = cancel
	p.done = done
	p.mu.Unlock()

	go p.run(ctx, done)
	return true
}

func (p *Player) run(ctx context.Context, done chan struct{}) {
	defer func() {
		p.mu.Lock()
		if p.done == done {
			p.cancel()
			p.cancel = nil
			p.done = nil
		}
		p.mu.Unlock()
		close(done)
	}()

	for {
		timer := time.NewTimer(p.clock.Interval())
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		moved := p.clock.Tick()
		st := p.clock.State()
		if moved && p.onAdvance != nil {
			p.onAdvance(st)
		}
		if !st.IsPlaying {
			return
		}
	}
}

// Stop ends the timer loop, waits for it to exit and pauses the clock.
func (p *Player) Stop() {
	p.ctl.Lock()
	defer p.ctl.Unlock()

	p.halt()
	p.clock.Pause()
}

func (p *Player) halt() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// Running reports whether the timer loop is active.
func (p *Player) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done != nil
}
