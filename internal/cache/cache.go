// Package cache implements the shared TTL-bounded, FIFO-eviction cache that
// sits between the server front-end and the iterative resolver.
package cache

import (
	"container/list"
	"sync"
	"time"

	"github.com/dnslab/recursor/internal/wire"
)

// entry is the value stored in the insertion-ordered list; the map index
// points into this list so eviction and replacement are both O(1).
type entry struct {
	question wire.Question
	message  *wire.Message
	expires  time.Time
}

// Cache is a bounded key/value store keyed by wire.Question. It evicts the
// oldest inserted entry on overflow (not strict LRU — see spec.md §9) and
// serializes every operation under a single mutex, matching spec.md §4.2's
// "reentrant mutex" requirement: Go's sync.Mutex isn't reentrant, so Get
// calls an unlocked sweep helper itself rather than re-acquiring the lock.
type Cache struct {
	mu      sync.Mutex
	maxSize int
	order   *list.List
	index   map[wire.Question]*list.Element
}

// New creates an empty cache bounded at maxSize entries.
func New(maxSize int) *Cache {
	return &Cache{
		maxSize: maxSize,
		order:   list.New(),
		index:   make(map[wire.Question]*list.Element),
	}
}

// Size returns the current number of non-swept entries. Sweeping is not
// forced, so a caller right after an expiration boundary may still see an
// entry that Get would no longer return.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Get returns the cached message for q, or (nil, false) if absent or
// expired. The returned message is a deep copy the caller may freely
// mutate (e.g. to rewrite the transaction id), per spec.md §3.
func (c *Cache) Get(q wire.Question) (*wire.Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sweepLocked()

	el, ok := c.index[q]
	if !ok {
		return nil, false
	}
	e := el.Value.(*entry)
	return cloneMessage(e.message), true
}

// Put stores value under key q with the given TTL. ttlSeconds <= 0 stores
// an already-expired entry, matching spec.md §4.2's invariant that such a
// Get immediately returns absent.
func (c *Cache) Put(q wire.Question, value *wire.Message, ttlSeconds int32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.index[q]; ok {
		c.order.Remove(el)
		delete(c.index, q)
	} else if c.order.Len() >= c.maxSize && c.maxSize > 0 {
		c.evictOldestLocked()
	}

	e := &entry{
		question: q,
		message:  cloneMessage(value),
		expires:  time.Now().Add(time.Duration(ttlSeconds) * time.Second),
	}
	c.index[q] = c.order.PushBack(e)
}

func (c *Cache) evictOldestLocked() {
	front := c.order.Front()
	if front == nil {
		return
	}
	c.order.Remove(front)
	delete(c.index, front.Value.(*entry).question)
}

// Sweep drops every expired entry. It is safe to call concurrently with
// Get/Put and is invoked both opportunistically (from Get) and by a
// background ticker (spec.md §4.2).
func (c *Cache) Sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweepLocked()
}

func (c *Cache) sweepLocked() {
	now := time.Now()
	for el := c.order.Front(); el != nil; {
		next := el.Next()
		if !now.Before(el.Value.(*entry).expires) {
			c.order.Remove(el)
			delete(c.index, el.Value.(*entry).question)
		}
		el = next
	}
}

// RunSweeper starts a background goroutine sweeping the cache on the given
// interval until stop is closed. The server owns the lifetime of this
// goroutine (spec.md §5: "a single background maintenance thread sweeps
// the cache every second").
func (c *Cache) RunSweeper(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}

func cloneMessage(m *wire.Message) *wire.Message {
	if m == nil {
		return nil
	}
	out := *m
	out.Questions = append([]wire.Question(nil), m.Questions...)
	out.Answers = append([]wire.Record(nil), m.Answers...)
	out.Authorities = append([]wire.Record(nil), m.Authorities...)
	out.Additional = append([]wire.Record(nil), m.Additional...)
	return &out
}
