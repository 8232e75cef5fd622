package idempotency

import (
	"sync"
	"time"
)

// DefaultTTL is how long a key keeps pointing at its chart.
const DefaultTTL = 24 * time.Hour

type entry struct {
	id      string
	expires time.Time
}

// Cache maps idempotency keys to the chart id they created.
type Cache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]entry
}

func NewCache(ttl time.Duration, now func() time.Time) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Cache{ttl: ttl, now: now, entries: map[string]entry{}}
}

// Resolve returns the id remembered for key when live(id) still holds, or
// runs create and remembers its result. Resolves are serialized so two
// concurrent requests with one key create a single chart.
func (c *Cache) Resolve(key string, live func(id string) bool, create func() (string, error)) (id string, replayed bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.sweepLocked(now)
	if e, ok := c.entries[key]; ok && live(e.id) {
		return e.id, true, nil
	}
	id, err = create()
	if err != nil {
		return "", false, err
	}
	c.entries[key] = entry{id: id, expires: now.Add(c.ttl)}
	return id, false, nil
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) sweepLocked(now time.Time) {
	for k, e := range c.entries {
		if !now.Before(e.expires) {
			delete(c.entries, k)
		}
	}
}
