package cache

import (
	"testing"
	"time"

	"github.com/dnslab/recursor/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func q(name string) wire.Question {
	return wire.Question{Name: name, Type: wire.TypeA, Class: wire.ClassIN}
}

func msgFor(name, ip string) *wire.Message {
	return &wire.Message{
		Questions: []wire.Question{q(name)},
		Answers:   []wire.Record{{Name: name, Type: wire.TypeA, Class: wire.ClassIN, TTL: 60, Data: ip}},
	}
}

func TestPutThenGetSameGoroutine(t *testing.T) {
	c := New(10)
	c.Put(q("a.example.com"), msgFor("a.example.com", "1.2.3.4"), 60)

	got, ok := c.Get(q("a.example.com"))
	require.True(t, ok)
	assert.Equal(t, "1.2.3.4", got.Answers[0].Data)
}

func TestPutWithNonPositiveTTLIsImmediatelyExpired(t *testing.T) {
	c := New(10)
	c.Put(q("a.example.com"), msgFor("a.example.com", "1.2.3.4"), 0)

	_, ok := c.Get(q("a.example.com"))
	assert.False(t, ok)
}

func TestExpiryAfterSleep(t *testing.T) {
	c := New(10)
	c.Put(q("k"), msgFor("k", "1.1.1.1"), 1)

	_, ok := c.Get(q("k"))
	require.True(t, ok)

	time.Sleep(1200 * time.Millisecond)

	_, ok = c.Get(q("k"))
	assert.False(t, ok)
	assert.Equal(t, 0, c.Size())
}

func TestFIFOEvictionOnOverflow(t *testing.T) {
	c := New(3)
	c.Put(q("a"), msgFor("a", "1.1.1.1"), 60)
	c.Put(q("b"), msgFor("b", "1.1.1.2"), 60)
	c.Put(q("c"), msgFor("c", "1.1.1.3"), 60)
	c.Put(q("d"), msgFor("d", "1.1.1.4"), 60)

	_, ok := c.Get(q("a"))
	assert.False(t, ok, "oldest entry should have been evicted")

	for _, name := range []string{"b", "c", "d"} {
		_, ok := c.Get(q(name))
		assert.True(t, ok, "%s should still be present", name)
	}
	assert.Equal(t, 3, c.Size())
}

func TestReplaceRefreshesInsertionOrder(t *testing.T) {
	c := New(2)
	c.Put(q("a"), msgFor("a", "1.1.1.1"), 60)
	c.Put(q("b"), msgFor("b", "1.1.1.2"), 60)
	// Replacing "a" should move it to the back of insertion order, so the
	// next overflow evicts "b" instead.
	c.Put(q("a"), msgFor("a", "9.9.9.9"), 60)
	c.Put(q("c"), msgFor("c", "1.1.1.3"), 60)

	_, ok := c.Get(q("b"))
	assert.False(t, ok)
	got, ok := c.Get(q("a"))
	require.True(t, ok)
	assert.Equal(t, "9.9.9.9", got.Answers[0].Data)
}

func TestGetReturnsIndependentCopy(t *testing.T) {
	c := New(10)
	c.Put(q("a"), msgFor("a", "1.1.1.1"), 60)

	got, _ := c.Get(q("a"))
	got.ID = 42
	got.Answers[0].Data = "mutated"

	again, _ := c.Get(q("a"))
	assert.Equal(t, uint16(0), again.ID)
	assert.Equal(t, "1.1.1.1", again.Answers[0].Data)
}

func TestSweepRemovesExpiredEntries(t *testing.T) {
	c := New(10)
	c.Put(q("a"), msgFor("a", "1.1.1.1"), 0)
	c.Put(q("b"), msgFor("b", "1.1.1.2"), 60)

	c.Sweep()

	assert.Equal(t, 1, c.Size())
	_, ok := c.Get(q("b"))
	assert.True(t, ok)
}

func TestSizeNeverExceedsMaxAfterManyPuts(t *testing.T) {
	c := New(5)
	for i := 0; i < 100; i++ {
		c.Put(q(string(rune('a'+i%26))), msgFor("x", "1.1.1.1"), 60)
		assert.LessOrEqual(t, c.Size(), 5)
	}
}
