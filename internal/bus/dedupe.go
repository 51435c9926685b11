package bus

import "sync"

// DedupeCache suppresses repeated message IDs with a bounded FIFO.
//
// Message IDs arrive in roughly chronological order and only "recently seen"
// matters, so a fixed-capacity ring is used instead of TTL expiry: it is
// memory-bounded and has no clock dependence. When the ring is full the
// oldest ID is evicted from both the queue and the set.
//
// Safe for concurrent use; webhook providers retry deliveries, so the same
// ID can race in from two handlers at once.
type DedupeCache struct {
	mu       sync.Mutex
	seen     map[string]struct{}
	queue    []string
	head     int
	capacity int
}

// NewDedupeCache creates a cache that remembers the last capacity IDs.
func NewDedupeCache(capacity int) *DedupeCache {
	if capacity <= 0 {
		capacity = 1
	}
	return &DedupeCache{
		seen:     make(map[string]struct{}, capacity),
		queue:    make([]string, 0, capacity),
		capacity: capacity,
	}
}

// Seen reports whether id has been recorded and is still within the window.
func (c *DedupeCache) Seen(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.seen[id]
	return ok
}

// Record marks id as seen. Idempotent: recording an already-seen ID does not
// change eviction order or cache size.
func (c *DedupeCache) Record(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.seen[id]; ok {
		return
	}

	if len(c.seen) >= c.capacity {
		oldest := c.queue[c.head]
		delete(c.seen, oldest)
		c.queue[c.head] = id
		c.head = (c.head + 1) % c.capacity
	} else {
		c.queue = append(c.queue, id)
	}
	c.seen[id] = struct{}{}
}

// CheckAndRecord atomically reports whether id was already seen and records
// it if not. This is the form webhook consumers use: a duplicate delivery
// must lose the race even when two handlers check concurrently.
func (c *DedupeCache) CheckAndRecord(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.seen[id]; ok {
		return true
	}

	if len(c.seen) >= c.capacity {
		oldest := c.queue[c.head]
		delete(c.seen, oldest)
		c.queue[c.head] = id
		c.head = (c.head + 1) % c.capacity
	} else {
		c.queue = append(c.queue, id)
	}
	c.seen[id] = struct{}{}
	return false
}

// Len returns the number of IDs currently tracked.
func (c *DedupeCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}
