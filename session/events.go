package session

type EventKind string

const (
	EventTick          EventKind = "tick"
	EventReplay        EventKind = "replay"
	EventSymbol        EventKind = "symbol"
	EventTrade         EventKind = "trade"
	EventBroker        EventKind = "broker"
	EventReset         EventKind = "reset"
	EventClearDrawings EventKind = "clearDrawings"
)

// Event carries the session state right after the change it names.
type Event struct {
	Kind     EventKind `json:"kind"`
	Snapshot Snapshot  `json:"snapshot"`
}

// Subscribe registers fn for every change. It returns a function that
// removes the subscription. fn runs on the goroutine that made the change,
// the replay player's included, and must not block.
func (s *Session) Subscribe(fn func(Event)) (cancel func()) {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

// ClearDrawings asks every subscriber to drop its chart drawings.
func (s *Session) ClearDrawings() { s.emit(EventClearDrawings) }

func (s *Session) emit(kind EventKind) {
	s.subMu.Lock()
	if len(s.subs) == 0 {
		s.subMu.Unlock()
		return
	}
	fns := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	ev := Event{Kind: kind, Snapshot: s.Snapshot()}
	for _, fn := range fns {
		fn(ev)
	}
}
