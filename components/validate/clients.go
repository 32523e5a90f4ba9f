package validate

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type clientEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clients holds one token bucket per caller and forgets idle callers.
type clients struct {
	mu      sync.Mutex
	entries map[string]*clientEntry
	limit   rate.Limit
	burst   int
	idle    time.Duration
	now     func() time.Time
}

func newClients(limit rate.Limit, burst int, idle time.Duration) *clients {
	return &clients{
		entries: make(map[string]*clientEntry),
		limit:   limit,
		burst:   burst,
		idle:    idle,
		now:     time.Now,
	}
}

func (c *clients) enabled() bool {
	return c != nil && c.limit > 0
}

// allow reports whether key may proceed and, when it may not, how long until
// a token is available.
func (c *clients) allow(key string) (bool, time.Duration) {
	if !c.enabled() {
		return true, 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	entry, ok := c.entries[key]
	if !ok {
		entry = &clientEntry{limiter: rate.NewLimiter(c.limit, c.burst)}
		c.entries[key] = entry
	}
	entry.lastSeen = now

	res := entry.limiter.ReserveN(now, 1)
	if !res.OK() {
		return false, time.Second
	}
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// sweep removes callers idle for longer than the idle timeout.
func (c *clients) sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, entry := range c.entries {
		if now.Sub(entry.lastSeen) > c.idle {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

func (c *clients) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
