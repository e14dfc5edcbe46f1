package embed

import (
	"fmt"
	"hash/fnv"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// FileChunks is one file's chunked text, the unit the cache is keyed on.
type FileChunks struct {
	FileName string
	Chunks   []string
}

type entry struct {
	contentHash uint32
	vectors     [][]float32
	writtenAt   time.Time
}

// Cache is a content-addressed, time-bounded embedding cache. A lookup hits
// only when the key matches, the TTL has not expired, and the content hash is
// equal, so an edit that keeps file names and chunk counts identical still
// forces a miss.
type Cache struct {
	ttl     time.Duration
	entries *lru.Cache[string, *entry]
	hits    atomic.Uint64
	misses  atomic.Uint64
	stop    chan struct{}
	once    sync.Once
	now     func() time.Time
}

func NewCache(capacity int, ttl time.Duration) (*Cache, error) {
	inner, err := lru.New[string, *entry](capacity)
	if err != nil {
		return nil, err
	}
	c := &Cache{
		ttl:     ttl,
		entries: inner,
		stop:    make(chan struct{}),
		now:     time.Now,
	}
	go c.sweep()
	return c, nil
}

// Key derives the cache key from the multiset of (fileName, chunkCount)
// pairs; order of files does not matter.
func Key(files []FileChunks) string {
	parts := make([]string, 0, len(files))
	for _, f := range files {
		parts = append(parts, fmt.Sprintf("%s:%d", f.FileName, len(f.Chunks)))
	}
	sort.Strings(parts)
	return strings.Join(parts, ";")
}

// ContentHash computes a fast non-cryptographic 32-bit hash over the full
// chunk content, sorted by file name so file order does not matter.
func ContentHash(files []FileChunks) uint32 {
	sorted := make([]FileChunks, len(files))
	copy(sorted, files)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].FileName < sorted[j].FileName })

	h := fnv.New32a()
	for _, f := range sorted {
		h.Write([]byte(f.FileName))
		h.Write([]byte(":"))
		for _, chunk := range f.Chunks {
			h.Write([]byte(chunk))
		}
	}
	return h.Sum32()
}

func (c *Cache) Get(key string, contentHash uint32) ([][]float32, bool) {
	e, ok := c.entries.Get(key)
	if !ok || !c.valid(e, contentHash) {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return e.vectors, true
}

// Put overwrites any previous entry under the key.
func (c *Cache) Put(key string, contentHash uint32, vectors [][]float32) {
	c.entries.Add(key, &entry{
		contentHash: contentHash,
		vectors:     vectors,
		writtenAt:   c.now(),
	})
}

// Stats returns cumulative hit and miss counts.
func (c *Cache) Stats() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}

// Close stops the background sweeper.
func (c *Cache) Close() {
	c.once.Do(func() { close(c.stop) })
}

func (c *Cache) valid(e *entry, contentHash uint32) bool {
	return c.now().Sub(e.writtenAt) < c.ttl && e.contentHash == contentHash
}

func (c *Cache) sweep() {
	interval := c.ttl / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.evictExpired()
		}
	}
}

func (c *Cache) evictExpired() {
	now := c.now()
	for _, key := range c.entries.Keys() {
		e, ok := c.entries.Peek(key)
		if ok && now.Sub(e.writtenAt) >= c.ttl {
			c.entries.Remove(key)
			slog.Debug("evicted expired embedding cache entry", "key", key)
		}
	}
}
