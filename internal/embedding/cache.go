package embedding

// boundedCache is a fixed-capacity memoization cache with insertion-order
// eviction: when full, the oldest inserted entry is dropped. Deliberately
// not LRU; the contract only requires the cache to stay bounded.
//
// Not safe for concurrent use; the Generator serializes access.
type boundedCache struct {
	capacity int
	entries  map[string][]float32
	order    []string
}

func newBoundedCache(capacity int) *boundedCache {
	return &boundedCache{
		capacity: capacity,
		entries:  make(map[string][]float32, capacity),
	}
}

func (c *boundedCache) get(key string) ([]float32, bool) {
	vec, ok := c.entries[key]
	return vec, ok
}

func (c *boundedCache) put(key string, vec []float32) {
	if _, exists := c.entries[key]; exists {
		c.entries[key] = vec
		return
	}
	if len(c.entries) >= c.capacity && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	c.entries[key] = vec
	c.order = append(c.order, key)
}

func (c *boundedCache) len() int {
	return len(c.entries)
}

func (c *boundedCache) clear() {
	c.entries = make(map[string][]float32, c.capacity)
	c.order = nil
}
