// File path: internal/cache/cache.go
package cache

import (
	"container/list"
	"encoding/json"
	"sync"
	"time"

	"github.com/coastalgraphics/orderdesk/internal/common/telemetry"
)

// Cache is a bounded TTL store sitting in front of expensive calls. Expired
// entries are dropped opportunistically on access; once the byte cap is
// exceeded the least recently used entries are evicted until under cap.
type Cache struct {
	mu         sync.Mutex
	capBytes   int64
	totalBytes int64
	items      map[string]*list.Element
	ll         *list.List
	now        func() time.Time

	hits      int64
	misses    int64
	evictions int64
}

type entry struct {
	key       string
	value     interface{}
	createdAt time.Time
	expiresAt time.Time
	sizeBytes int64
}

// Stats reports cumulative cache behavior since the last reset.
type Stats struct {
	HitRate      float64       `json:"hit_rate"`
	Hits         int64         `json:"hits"`
	Misses       int64         `json:"misses"`
	Evictions    int64         `json:"evictions"`
	TotalEntries int           `json:"total_entries"`
	TotalBytes   int64         `json:"total_bytes"`
	AverageAge   time.Duration `json:"-"`
	AverageAgeMS int64         `json:"average_age_ms"`
}

const defaultCapBytes = 16 << 20

func New(capBytes int64) *Cache {
	if capBytes <= 0 {
		capBytes = defaultCapBytes
	}
	return &Cache{
		capBytes: capBytes,
		items:    make(map[string]*list.Element),
		ll:       list.New(),
		now:      time.Now,
	}
}

// NewWithClock pins the cache's notion of now. Tests use this to make TTL
// expiry deterministic.
func NewWithClock(capBytes int64, now func() time.Time) *Cache {
	c := New(capBytes)
	if now != nil {
		c.now = now
	}
	return c
}

func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	elem, ok := c.items[key]
	if !ok {
		c.misses++
		telemetry.RecordCacheLookup(false)
		return nil, false
	}
	ent := elem.Value.(*entry)
	if c.now().After(ent.expiresAt) {
		c.removeElement(elem)
		c.misses++
		telemetry.RecordCacheLookup(false)
		return nil, false
	}
	c.ll.MoveToFront(elem)
	c.hits++
	telemetry.RecordCacheLookup(true)
	return ent.value, true
}

func (c *Cache) Set(key string, value interface{}, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	size := estimateSize(value)
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if elem, ok := c.items[key]; ok {
		c.removeElement(elem)
	}
	ent := &entry{
		key:       key,
		value:     value,
		createdAt: now,
		expiresAt: now.Add(ttl),
		sizeBytes: size,
	}
	elem := c.ll.PushFront(ent)
	c.items[key] = elem
	c.totalBytes += size
	for c.totalBytes > c.capBytes && c.ll.Len() > 1 {
		tail := c.ll.Back()
		if tail == nil {
			break
		}
		c.removeElement(tail)
		c.evictions++
	}
}

func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.items[key]; ok {
		c.removeElement(elem)
	}
}

// Purge drops every entry but keeps the hit/miss counters.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element)
	c.ll = list.New()
	c.totalBytes = 0
}

func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	stats := Stats{
		Hits:         c.hits,
		Misses:       c.misses,
		Evictions:    c.evictions,
		TotalEntries: c.ll.Len(),
		TotalBytes:   c.totalBytes,
	}
	if lookups := c.hits + c.misses; lookups > 0 {
		stats.HitRate = float64(c.hits) / float64(lookups)
	}
	if c.ll.Len() > 0 {
		now := c.now()
		var total time.Duration
		for elem := c.ll.Front(); elem != nil; elem = elem.Next() {
			total += now.Sub(elem.Value.(*entry).createdAt)
		}
		stats.AverageAge = total / time.Duration(c.ll.Len())
		stats.AverageAgeMS = stats.AverageAge.Milliseconds()
	}
	return stats
}

func (c *Cache) removeElement(elem *list.Element) {
	ent := elem.Value.(*entry)
	c.ll.Remove(elem)
	delete(c.items, ent.key)
	c.totalBytes -= ent.sizeBytes
}

// estimateSize approximates an entry's footprint via its JSON encoding.
// Cached values are small result sets, so the encoding cost is negligible
// next to the calls the cache avoids.
func estimateSize(value interface{}) int64 {
	data, err := json.Marshal(value)
	if err != nil {
		return 64
	}
	return int64(len(data))
}
