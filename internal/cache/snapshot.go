package cache

import (
	"encoding/gob"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dnslab/recursor/internal/wire"
)

// snapshotEntry and snapshotFile are the on-disk shape of the cache
// snapshot file (spec.md §6): "{maxsize, {key -> (value, absolute
// expiration)}}".
type snapshotEntry struct {
	Message   wire.Message
	ExpiresAt time.Time
}

type snapshotFile struct {
	MaxSize int
	Entries map[wire.Question]snapshotEntry
}

// Save atomically snapshots the cache to path: it writes to a temp file in
// the same directory and renames over the destination, so a crash mid-write
// never leaves a truncated snapshot (spec.md §4.2).
func (c *Cache) Save(path string) error {
	c.mu.Lock()
	snap := snapshotFile{
		MaxSize: c.maxSize,
		Entries: make(map[wire.Question]snapshotEntry, c.order.Len()),
	}
	now := time.Now()
	for el := c.order.Front(); el != nil; el = el.Next() {
		e := el.Value.(*entry)
		if !now.Before(e.expires) {
			continue
		}
		snap.Entries[e.question] = snapshotEntry{Message: *e.message, ExpiresAt: e.expires}
	}
	c.mu.Unlock()

	tmp, err := os.CreateTemp(dirOf(path), "cache-snapshot-*.tmp")
	if err != nil {
		return fmt.Errorf("cache: create snapshot temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once the rename below succeeds

	if err := gob.NewEncoder(tmp).Encode(snap); err != nil {
		tmp.Close()
		return fmt.Errorf("cache: encode snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("cache: close snapshot temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("cache: rename snapshot into place: %w", err)
	}
	return nil
}

// Load restores a cache previously written by Save. Insertion order within
// the snapshot is not preserved (maps don't order), which only matters for
// FIFO eviction order after a restart and is an accepted approximation.
// Any read error falls back to an empty cache, per spec.md §4.2 and §7
// (CacheIoError is logged, never fatal).
func Load(path string, fallbackMaxSize int) *Cache {
	f, err := os.Open(path)
	if err != nil {
		slog.Warn("cache: snapshot not loaded, starting empty", "path", path, "error", err)
		return New(fallbackMaxSize)
	}
	defer f.Close()

	var snap snapshotFile
	if err := gob.NewDecoder(f).Decode(&snap); err != nil {
		slog.Warn("cache: snapshot not loaded, starting empty", "path", path, "error", err)
		return New(fallbackMaxSize)
	}
	if snap.MaxSize <= 0 {
		snap.MaxSize = fallbackMaxSize
	}

	c := New(snap.MaxSize)
	now := time.Now()
	for q, e := range snap.Entries {
		if !now.Before(e.ExpiresAt) {
			continue
		}
		msg := e.Message
		c.index[q] = c.order.PushBack(&entry{question: q, message: &msg, expires: e.ExpiresAt})
	}
	return c
}

func dirOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}
