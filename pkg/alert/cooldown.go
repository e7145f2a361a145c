package alert

import (
	"sync"
	"time"
)

// CooldownTracker remembers when each alert key last fired. It lives in memory only, so every
// window starts over when the process restarts.
type CooldownTracker struct {
	mu        sync.Mutex
	lastFired map[string]time.Time
}

func NewCooldownTracker() *CooldownTracker {
	return &CooldownTracker{lastFired: map[string]time.Time{}}
}

// Ready reports whether key may fire at now given the window.
func (c *CooldownTracker) Ready(key string, now time.Time, window time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	last, ok := c.lastFired[key]
	return !ok || now.Sub(last) >= window
}

func (c *CooldownTracker) Mark(key string, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastFired[key] = now
}

// Prune forgets keys whose window has long passed.
func (c *CooldownTracker) Prune(now time.Time, olderThan time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for key, last := range c.lastFired {
		if now.Sub(last) > olderThan {
			delete(c.lastFired, key)
			removed++
		}
	}
	return removed
}

func (c *CooldownTracker) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastFired = map[string]time.Time{}
}
