package id

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGeneratorPrefixAndUniqueness(t *testing.T) {
	t.Parallel()

	g := NewGenerator(TradePrefix)
	seen := map[string]bool{}
	prev := ""
	for i := 0; i < 500; i++ {
		id := g.Next()
		assert.True(t, strings.HasPrefix(id, TradePrefix))
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
		if prev != "" {
			assert.Greater(t, id, prev)
		}
		prev = id
	}
}

func TestSeededGeneratorIsReproducible(t *testing.T) {
	t.Parallel()

	fixed := time.Date(2024, 5, 1, 9, 15, 0, 0, time.UTC)
	now := func() time.Time { return fixed }

	a := NewSeededGenerator("x-", 42, now)
	b := NewSeededGenerator("x-", 42, now)
	for i := 0; i < 10; i++ {
		assert.Equal(t, a.Next(), b.Next())
	}
}
