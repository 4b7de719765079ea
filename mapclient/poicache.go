package mapclient

import (
	"context"
	"time"
)

// DefaultPOICapacity bounds the client-side POI cache.
const DefaultPOICapacity = 200

// maxPOIFetch mirrors the server-side batch cap.
const maxPOIFetch = 100

// POIFetcher is the batch collaborator; *Client.FetchPOIs satisfies it.
type POIFetcher func(ctx context.Context, ids []int64) ([]POI, error)

type poiEntry struct {
	poi          POI
	lastAccessed time.Time
	seq          uint64 // breaks lastAccessed ties on coarse clocks
}

// POICache is a strict least-recently-used cache for POI entities fetched
// by id. It is an explicit object with constructor-defined capacity and an
// injectable clock, not a process-wide singleton. Not goroutine-safe: it
// lives on the orchestrator's event loop like the rest of the client state.
type POICache struct {
	capacity int
	clock    Clock
	fetch    POIFetcher
	entries  map[int64]*poiEntry
	seq      uint64
}

func NewPOICache(capacity int, clock Clock, fetch POIFetcher) *POICache {
	if capacity <= 0 {
		capacity = DefaultPOICapacity
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &POICache{
		capacity: capacity,
		clock:    clock,
		fetch:    fetch,
		entries:  make(map[int64]*poiEntry, capacity),
	}
}

// Get returns a cached entity, refreshing its recency.
func (c *POICache) Get(id int64) (POI, bool) {
	e, ok := c.entries[id]
	if !ok {
		return POI{}, false
	}
	c.touch(e)
	return e.poi, true
}

// Len reports how many entities are cached.
func (c *POICache) Len() int { return len(c.entries) }

// GetMany serves cached entries immediately and batch-fetches only the
// missing ids, split into batches of at most maxPOIFetch. On fetch failure
// the error propagates, but whatever was already resolved is still
// returned.
func (c *POICache) GetMany(ctx context.Context, ids []int64) ([]POI, error) {
	out := make([]POI, 0, len(ids))
	var missing []int64
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if p, ok := c.Get(id); ok {
			out = append(out, p)
		} else {
			missing = append(missing, id)
		}
	}

	for start := 0; start < len(missing); start += maxPOIFetch {
		end := start + maxPOIFetch
		if end > len(missing) {
			end = len(missing)
		}
		fetched, err := c.fetch(ctx, missing[start:end])
		if err != nil {
			return out, err
		}
		for _, p := range fetched {
			c.put(p)
			out = append(out, p)
		}
	}
	return out, nil
}

func (c *POICache) put(p POI) {
	if e, ok := c.entries[p.ID]; ok {
		e.poi = p
		c.touch(e)
		return
	}
	if len(c.entries) >= c.capacity {
		c.evictOldest()
	}
	c.seq++
	c.entries[p.ID] = &poiEntry{poi: p, lastAccessed: c.clock.Now(), seq: c.seq}
}

func (c *POICache) touch(e *poiEntry) {
	c.seq++
	e.lastAccessed = c.clock.Now()
	e.seq = c.seq
}

// evictOldest removes the entry accessed longest ago. It runs before the
// insert, so the incoming entry can never be the victim.
func (c *POICache) evictOldest() {
	var victim int64
	var oldest *poiEntry
	for id, e := range c.entries {
		if oldest == nil || e.seq < oldest.seq {
			victim, oldest = id, e
		}
	}
	if oldest != nil {
		delete(c.entries, victim)
	}
}
