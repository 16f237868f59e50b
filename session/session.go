// Package session bundles one chart replay: the price series, the replay
// clock, the paper ledger and the selected symbol. Every cursor move marks
// the ledger at the close of the bar under the cursor.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/papertrader/broker"
	"github.com/rustyeddy/papertrader/market"
	"github.com/rustyeddy/papertrader/replay"
	"github.com/rustyeddy/papertrader/sim"
)

type Options struct {
	Provider *market.Provider
	// Ledger defaults to a fresh sim.Ledger with default options.
	Ledger *sim.Ledger

	// Symbol defaults to market.DefaultSymbol, or the provider's first
	// symbol when that is not loaded.
	Symbol      string
	StartOffset int
	Speeds      map[int]time.Duration
	Speed       int

	Logger *zerolog.Logger
}

// Session is safe for concurrent use. Methods that stop the player must
// not be called from a subscriber.
type Session struct {
	mu sync.Mutex

	provider *market.Provider
	ledger   *sim.Ledger
	clock    *replay.Clock
	player   *replay.Player

	symbol    string
	connected bool
	price     float64
	barTime   int64

	subMu   sync.Mutex
	subs    map[int]func(Event)
	nextSub int

	ctx    context.Context
	cancel context.CancelFunc
	log    zerolog.Logger
}

func New(opts Options) (*Session, error) {
	if opts.Provider == nil {
		return nil, fmt.Errorf("session: provider is required")
	}

	s := &Session{
		provider: opts.Provider,
		ledger:   opts.Ledger,
		subs:     make(map[int]func(Event)),
		log:      zerolog.Nop(),
	}
	if opts.Logger != nil {
		s.log = opts.Logger.With().Str("component", "session").Logger()
	}
	if s.ledger == nil {
		s.ledger = sim.NewLedger(sim.Options{Logger: opts.Logger})
	}

	s.symbol = opts.Symbol
	if s.symbol == "" {
		s.symbol = market.DefaultSymbol
		if _, ok := s.provider.Spec(s.symbol); !ok {
			if syms := s.provider.Symbols(); len(syms) > 0 {
				s.symbol = syms[0]
			}
		}
	}
	if _, ok := s.provider.Spec(s.symbol); !ok {
		return nil, fmt.Errorf("session: %w: %q", broker.ErrUnknownSymbol, s.symbol)
	}

	s.clock = replay.NewClock(replay.ClockOptions{
		Total:       s.provider.Total(s.symbol),
		StartOffset: opts.StartOffset,
		Speeds:      opts.Speeds,
		Speed:       opts.Speed,
	})
	s.player = replay.NewPlayer(s.clock, s.onTick)
	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.connected = s.ledger.Connected()
	s.syncLocked()
	return s, nil
}

// Shutdown stops the player. The session stays readable afterwards.
func (s *Session) Shutdown() {
	s.cancel()
	s.player.Stop()
}

func (s *Session) Provider() *market.Provider { return s.provider }
func (s *Session) Ledger() *sim.Ledger        { return s.ledger }

// syncLocked re-reads the bar under the cursor and marks the ledger at its
// close.
func (s *Session) syncLocked() {
	st := s.clock.State()
	b, ok := s.provider.BarAt(s.symbol, st.CurrentIndex)
	if !ok {
		s.price, s.barTime = 0, 0
		s.ledger.SetBarTime(0)
		return
	}
	s.price, s.barTime = b.Close, b.Time
	s.ledger.SetBarTime(b.Time)
	s.ledger.MarkSymbol(s.symbol, b.Close)
}

func (s *Session) Symbol() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.symbol
}

func (s *Session) CurrentPrice() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.price
}

func (s *Session) Replay() replay.State { return s.clock.State() }
func (s *Session) Speeds() []int        { return s.clock.Speeds() }

func (s *Session) Account() broker.Account { return s.ledger.Account() }

func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// SetConnected toggles the paper broker connection. Orders are refused
// while disconnected.
func (s *Session) SetConnected(v bool) {
	s.mu.Lock()
	s.connected = v
	s.ledger.SetConnected(v)
	s.mu.Unlock()

	s.log.Info().Bool("connected", v).Msg("paper broker")
	s.emit(EventBroker)
}

// Bar returns the bar under the cursor.
func (s *Session) Bar() (market.Bar, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.provider.BarAt(s.symbol, s.clock.State().CurrentIndex)
}

// Visible returns the bars from the start of the series up to the cursor.
func (s *Session) Visible() []market.Bar {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.provider.SliceUpTo(s.symbol, s.clock.State().CurrentIndex)
}

// Snapshot is everything a presentation layer renders.
type Snapshot struct {
	Symbol       string         `json:"symbol"`
	Replay       replay.State   `json:"replay"`
	CurrentTime  int64          `json:"currentTime"`
	CurrentPrice float64        `json:"currentPrice"`
	Progress     float64        `json:"progress"`
	Connected    bool           `json:"connected"`
	Account      broker.Account `json:"account"`
	Summary      Summary        `json:"summary"`
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	st := s.clock.State()
	acct := s.ledger.Account()
	snap := Snapshot{
		Symbol:       s.symbol,
		Replay:       st,
		CurrentTime:  s.barTime,
		CurrentPrice: s.price,
		Connected:    s.connected,
		Account:      acct,
		Summary:      summarize(acct, s.symbol, s.price, s.ledger.InitialBalance()),
	}
	if st.TotalCandles > 1 {
		snap.Progress = float64(st.CurrentIndex) / float64(st.TotalCandles-1) * 100
	}
	return snap
}
