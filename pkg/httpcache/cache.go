// Package httpcache fetches upstream pages and APIs for the profiler with a
// shared on-disk cache, per-host rate limiting and retries.
package httpcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/codeGROOVE-dev/sfcache"
	"github.com/codeGROOVE-dev/sfcache/pkg/store/localfs"
	"github.com/codeGROOVE-dev/sfcache/pkg/store/null"
)

// cacheName names the on-disk store under the user cache dir.
const cacheName = "healthprofiler"

// Cacher is the cache every source client shares. GetSet runs fetch once
// per key even when several requests ask for it concurrently.
type Cacher interface {
	GetSet(ctx context.Context, key string, fetch func(context.Context) ([]byte, error), ttl ...time.Duration) ([]byte, error)
	TTL() time.Duration
}

// Cache is a two-tier (memory + disk) response cache.
type Cache struct {
	*sfcache.TieredCache[string, []byte]

	ttl time.Duration
}

// New opens the cache under the user cache dir, or the temp dir when that
// is unknown.
func New(ttl time.Duration) (*Cache, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return NewWithPath(ttl, filepath.Join(dir, cacheName))
}

// NewWithPath opens the cache in dir.
func NewWithPath(ttl time.Duration, dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	store, err := localfs.New[string, []byte](cacheName, dir)
	if err != nil {
		return nil, fmt.Errorf("open cache store: %w", err)
	}
	tc, err := sfcache.NewTiered[string, []byte](store, sfcache.TTL(ttl))
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}
	return &Cache{TieredCache: tc, ttl: ttl}, nil
}

// NewNull returns a Cache that persists nothing. Used for -no-cache runs.
func NewNull() *Cache {
	tc, err := sfcache.NewTiered[string, []byte](null.New[string, []byte]())
	if err != nil {
		panic("sfcache with null store: " + err.Error())
	}
	return &Cache{TieredCache: tc}
}

// TTL returns the entry lifetime.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Stats counts cache hits and misses for the process.
type Stats struct {
	Hits   int64
	Misses int64
}

var hits, misses atomic.Int64

// CacheStats returns the counters so far.
func CacheStats() Stats {
	return Stats{Hits: hits.Load(), Misses: misses.Load()}
}

// URLToKey hashes a cache key. Keys may contain API keys or auth headers,
// which must never be written to disk in the clear.
func URLToKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
