package session

import (
	"fmt"

	"github.com/rustyeddy/papertrader/broker"
	"github.com/rustyeddy/papertrader/replay"
)

var _ replay.Driver = (*Session)(nil)

// Play starts the timer-driven replay. It returns false at the end of the
// series.
func (s *Session) Play() bool {
	ok := s.player.Start(s.ctx)
	s.emit(EventReplay)
	return ok
}

func (s *Session) Pause() {
	s.player.Stop()
	s.emit(EventReplay)
}

func (s *Session) onTick(replay.State) {
	s.mu.Lock()
	s.syncLocked()
	s.mu.Unlock()
	s.emit(EventTick)
}

func (s *Session) Step(n int) replay.State {
	return s.move(func() replay.State { return s.clock.Step(n) })
}

func (s *Session) Seek(i int) replay.State {
	return s.move(func() replay.State { return s.clock.Seek(i) })
}

func (s *Session) move(fn func() replay.State) replay.State {
	s.mu.Lock()
	st := fn()
	s.syncLocked()
	s.mu.Unlock()

	s.emit(EventReplay)
	return st
}

// PlayToEnd advances bar by bar to the end of the series without a timer,
// marking the ledger on every bar.
func (s *Session) PlayToEnd() replay.State {
	s.player.Stop()
	if s.clock.Play() {
		for s.clock.Tick() {
			s.onTick(s.clock.State())
		}
	}
	return s.clock.State()
}

// ExitReplay stops playback and jumps to the last bar.
func (s *Session) ExitReplay() replay.State {
	s.player.Stop()
	return s.Seek(s.clock.State().TotalCandles - 1)
}

func (s *Session) SetSpeed(x int) error {
	if err := s.clock.SetSpeed(x); err != nil {
		return err
	}
	s.emit(EventReplay)
	return nil
}

// Reset rewinds the replay and restores the ledger to its opening
// balance. The broker connection survives a reset.
func (s *Session) Reset() {
	s.player.Stop()

	s.mu.Lock()
	s.clock.Reset()
	s.ledger.Reset()
	s.ledger.SetConnected(s.connected)
	s.syncLocked()
	s.mu.Unlock()

	s.log.Info().Msg("session reset")
	s.emit(EventReset)
}

// SelectSymbol switches the chart to symbol and rewinds the cursor. Open
// trades on other symbols stay open.
func (s *Session) SelectSymbol(symbol string) error {
	if _, ok := s.provider.Spec(symbol); !ok {
		return fmt.Errorf("%w: %q", broker.ErrUnknownSymbol, symbol)
	}
	s.player.Stop()

	s.mu.Lock()
	s.symbol = symbol
	s.clock.SwitchSymbol(s.provider.Total(symbol))
	s.syncLocked()
	s.mu.Unlock()

	s.log.Info().Str("symbol", symbol).Msg("symbol selected")
	s.emit(EventSymbol)
	return nil
}
