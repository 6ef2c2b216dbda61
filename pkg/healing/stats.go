package healing

import "sync"

// Statistics is a point-in-time copy of the engine's healing counters
// and recent activity. Safe to hand out: it shares nothing with the
// live collector.
type Statistics struct {
	TotalHealingAttempts  int             `json:"total_healing_attempts"`
	TotalHealingSuccesses int             `json:"total_healings"`
	TotalHealingFailures  int             `json:"total_healing_failures"`
	CachedLocators        int             `json:"cached_locators"`
	RecentHealings        []HealingRecord `json:"recent_healings"`
}

// collector owns the process-lifetime healing counters and the
// bounded ring of recent records. Guarded by one mutex; updates are
// tiny and reads copy out.
type collector struct {
	mu        sync.Mutex
	attempts  int
	successes int
	failures  int

	// ring is a fixed-capacity buffer of the most recent records;
	// next is the slot the following record lands in.
	ring  []HealingRecord
	next  int
	count int
}

func newCollector(capacity int) *collector {
	if capacity <= 0 {
		capacity = 50
	}
	return &collector{ring: make([]HealingRecord, capacity)}
}

func (c *collector) recordAttempt() {
	c.mu.Lock()
	c.attempts++
	c.mu.Unlock()
}

func (c *collector) recordSuccess(rec HealingRecord) {
	c.mu.Lock()
	c.successes++
	c.ring[c.next] = rec
	c.next = (c.next + 1) % len(c.ring)
	if c.count < len(c.ring) {
		c.count++
	}
	c.mu.Unlock()
}

func (c *collector) recordFailure() {
	c.mu.Lock()
	c.failures++
	c.mu.Unlock()
}

// snapshot returns a consistent copy of the counters and the recent
// records in reverse-chronological order (newest first).
func (c *collector) snapshot(cachedLocators int) Statistics {
	c.mu.Lock()
	defer c.mu.Unlock()

	recent := make([]HealingRecord, 0, c.count)
	for i := 0; i < c.count; i++ {
		idx := (c.next - 1 - i + len(c.ring)) % len(c.ring)
		recent = append(recent, c.ring[idx])
	}

	return Statistics{
		TotalHealingAttempts:  c.attempts,
		TotalHealingSuccesses: c.successes,
		TotalHealingFailures:  c.failures,
		CachedLocators:        cachedLocators,
		RecentHealings:        recent,
	}
}
