package predictor

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Cache memoizes prediction results keyed by feature fingerprint for a fixed
// TTL. Concurrent misses for the same fingerprint are collapsed into a single
// upstream call, so within a TTL window the model service is invoked at most
// once per fingerprint.
type Cache struct {
	ttl   time.Duration
	now   func() time.Time
	group singleflight.Group

	mu      sync.RWMutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	result Result
	expiry time.Time
}

// NewCache constructs a prediction cache. A non-positive ttl falls back to
// one hour.
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
}

// GetOrCompute returns the cached result for fingerprint, invoking compute on
// miss or expiry and storing its result.
func (c *Cache) GetOrCompute(ctx context.Context, fingerprint string, compute func(ctx context.Context) (Result, error)) (Result, error) {
	if cached, ok := c.lookup(fingerprint); ok {
		return cached, nil
	}

	value, err, _ := c.group.Do(fingerprint, func() (interface{}, error) {
		// Re-check under the flight: an earlier caller may have populated
		// the entry between our miss and this call.
		if cached, ok := c.lookup(fingerprint); ok {
			return cached, nil
		}

		result, err := compute(ctx)
		if err != nil {
			return Result{}, err
		}

		c.mu.Lock()
		c.entries[fingerprint] = cacheEntry{result: result, expiry: c.now().Add(c.ttl)}
		c.mu.Unlock()
		return result, nil
	})
	if err != nil {
		return Result{}, err
	}
	return value.(Result), nil
}

// Len reports the number of live entries, sweeping expired ones.
func (c *Cache) Len() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, entry := range c.entries {
		if !entry.expiry.After(now) {
			delete(c.entries, key)
		}
	}
	return len(c.entries)
}

func (c *Cache) lookup(fingerprint string) (Result, bool) {
	c.mu.RLock()
	entry, ok := c.entries[fingerprint]
	c.mu.RUnlock()
	if !ok || !entry.expiry.After(c.now()) {
		return Result{}, false
	}
	return entry.result, true
}
