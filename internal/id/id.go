package id

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// TradePrefix is prepended to every trade id handed out by the ledger.
const TradePrefix = "trade-"

// Generator hands out prefixed ULIDs. ULIDs sort by creation time, so a
// trade log ordered by id is also ordered by placement.
type Generator struct {
	mu     sync.Mutex
	prefix string
	now    func() time.Time
	mono   io.Reader
}

// NewGenerator returns a generator whose entropy is seeded from crypto/rand.
func NewGenerator(prefix string) *Generator {
	var seed int64
	_ = binary.Read(cryptoRand.Reader, binary.LittleEndian, &seed)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return NewSeededGenerator(prefix, seed, time.Now)
}

// NewSeededGenerator is NewGenerator with a fixed seed and clock, which
// makes the produced ids reproducible in tests.
func NewSeededGenerator(prefix string, seed int64, now func() time.Time) *Generator {
	if now == nil {
		now = time.Now
	}
	return &Generator{
		prefix: prefix,
		now:    now,
		// Monotonic keeps ids generated within the same millisecond increasing.
		mono: ulid.Monotonic(rand.New(rand.NewSource(seed)), 0),
	}
}

// Next returns the next id.
func (g *Generator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	u, err := ulid.New(ulid.Timestamp(g.now().UTC()), g.mono)
	if err != nil {
		// Only happens if the clock goes backwards past the monotonic window
		// or the entropy source is exhausted.
		panic(err)
	}
	return g.prefix + u.String()
}
