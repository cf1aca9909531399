package ocr

import "time"

// Cache memoizes per-frame recognition results so the same frame is never
// OCR'd twice within one extraction session. Misses are cached too: knowing a
// frame has no readable overlay is as useful as knowing its timestamp. One
// cache belongs to one session, so no locking is needed.
type Cache struct {
	entries map[int]cacheEntry
}

type cacheEntry struct {
	ts time.Time
	ok bool
}

// NewCache returns an empty session cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[int]cacheEntry)}
}

// GetOrCompute returns the cached result for a frame, invoking compute at
// most once per frame. Errors from compute (an unavailable engine) propagate
// uncached: they describe the engine, not the frame.
func (c *Cache) GetOrCompute(frame int, compute func() (time.Time, bool, error)) (time.Time, bool, error) {
	if e, hit := c.entries[frame]; hit {
		return e.ts, e.ok, nil
	}

	ts, ok, err := compute()
	if err != nil {
		return time.Time{}, false, err
	}

	c.entries[frame] = cacheEntry{ts: ts, ok: ok}
	return ts, ok, nil
}

// Len reports how many frames have been resolved so far.
func (c *Cache) Len() int {
	return len(c.entries)
}
