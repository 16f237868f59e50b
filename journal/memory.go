package journal

import "sync"

// Memory keeps records in process. The server reads trade and equity
// history from it.
type Memory struct {
	mu     sync.Mutex
	limit  int
	trades []TradeRecord
	equity []EquitySnapshot
	closed bool
}

func NewMemory() *Memory { return &Memory{} }

// NewMemoryLimit keeps only the latest limit records of each kind.
func NewMemoryLimit(limit int) *Memory { return &Memory{limit: limit} }

func (m *Memory) RecordTrade(t TradeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trades = trim(append(m.trades, t), m.limit)
	return nil
}

func (m *Memory) RecordEquity(e EquitySnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.equity = trim(append(m.equity, e), m.limit)
	return nil
}

func trim[T any](s []T, limit int) []T {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	return append(s[:0:0], s[len(s)-limit:]...)
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *Memory) Trades() []TradeRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]TradeRecord(nil), m.trades...)
}

func (m *Memory) Equity() []EquitySnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]EquitySnapshot(nil), m.equity...)
}

func (m *Memory) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Multi fans every record out to several journals. The first error wins
// but every journal is still written.
type Multi []Journal

func (m Multi) RecordTrade(t TradeRecord) error {
	var first error
	for _, j := range m {
		if err := j.RecordTrade(t); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m Multi) RecordEquity(e EquitySnapshot) error {
	var first error
	for _, j := range m {
		if err := j.RecordEquity(e); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m Multi) Close() error {
	var first error
	for _, j := range m {
		if err := j.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
