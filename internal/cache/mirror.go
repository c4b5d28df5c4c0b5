package cache

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"time"

	"github.com/dnslab/recursor/internal/wire"
	"github.com/redis/go-redis/v9"
)

// invalidationChannel is the Redis pub/sub channel on which Publish announces
// the key of each mirrored entry, and which Subscribe listens on, grounded on
// the teacher's RedisCache/CacheInvalidator pattern. Nothing in this module
// subscribes to it; peers reach mirrored entries through Fetch.
const invalidationChannel = "recursor:cache:invalidate"

// Mirror optionally fans cache writes out to Redis so a fleet of resolver
// processes can share warm entries. It is additive: Publish drops errors and
// Fetch reports a miss on error, since the mirror is a latency optimization, never a
// correctness requirement (spec.md §4.2 doesn't mention it at all — this
// is the SPEC_FULL.md cache-mirror addition).
type Mirror struct {
	client *redis.Client
}

// NewMirror connects to the given Redis address. The connection is lazy;
// call Ping to verify reachability before relying on it.
func NewMirror(addr string) *Mirror {
	return &Mirror{client: redis.NewClient(&redis.Options{Addr: addr})}
}

// Ping verifies connectivity.
func (m *Mirror) Ping(ctx context.Context) error {
	return m.client.Ping(ctx).Err()
}

// Publish mirrors one resolved answer to Redis under a TTL matching the
// local cache entry's remaining lifetime.
func (m *Mirror) Publish(ctx context.Context, q wire.Question, msg *wire.Message, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(*msg); err != nil {
		return
	}
	key := mirrorKey(q)
	m.client.Set(ctx, key, buf.Bytes(), ttl)
	m.client.Publish(ctx, invalidationChannel, key)
}

// Fetch looks up a mirrored entry on a local cache miss.
func (m *Mirror) Fetch(ctx context.Context, q wire.Question) (*wire.Message, bool) {
	raw, err := m.client.Get(ctx, mirrorKey(q)).Bytes()
	if err != nil {
		return nil, false
	}
	var msg wire.Message
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&msg); err != nil {
		return nil, false
	}
	return &msg, true
}

// Subscribe returns the channel of invalidation keys published by peers.
func (m *Mirror) Subscribe(ctx context.Context) <-chan *redis.Message {
	return m.client.Subscribe(ctx, invalidationChannel).Channel()
}

// Close releases the underlying Redis connection.
func (m *Mirror) Close() error {
	return m.client.Close()
}

func mirrorKey(q wire.Question) string {
	return fmt.Sprintf("recursor:q:%s:%d:%d", q.Name, q.Type, q.Class)
}
