// Package clustercache caches aggregation responses in redis with
// stale-while-revalidate semantics: a stale hit is still served while a
// background warm recomputes it, and a data-version counter invalidates
// every entry at once when listings change.
package clustercache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/yourorg/map-api/internal/geo"
)

// KV is the slice of the redis client the cache needs.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, val string, ttl time.Duration) error
	SetNX(ctx context.Context, key string, val string, ttl time.Duration) (bool, error)
	Incr(ctx context.Context, key string) (int64, error)
	IsNil(err error) bool
}

const versionKey = "clusters:version"

type envelope struct {
	Result geo.Result `json:"data"`
	Meta   struct {
		LastFetch  time.Time `json:"last_fetch_at"`
		StaleAfter time.Time `json:"stale_after"`
		Version    int64     `json:"version"`
	} `json:"meta"`
}

type Cache struct {
	kv         KV
	ttl        time.Duration
	staleAfter time.Duration
	log        zerolog.Logger
}

func New(kv KV, ttl, staleAfter time.Duration, log zerolog.Logger) *Cache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if staleAfter <= 0 {
		staleAfter = time.Minute
	}
	return &Cache{kv: kv, ttl: ttl, staleAfter: staleAfter, log: log}
}

// Get returns the cached result for a query key. stale means the entry is
// past its stale-after mark and a warm should be queued; a version
// mismatch counts as a miss outright. Redis trouble degrades to a miss.
func (c *Cache) Get(ctx context.Context, key string) (res geo.Result, stale bool, ok bool) {
	val, err := c.kv.Get(ctx, "clusters:q:"+key)
	if err != nil {
		if !c.kv.IsNil(err) {
			c.log.Warn().Err(err).Str("key", key).Msg("cluster cache read failed")
		}
		return geo.Result{}, false, false
	}
	var env envelope
	if err := json.Unmarshal([]byte(val), &env); err != nil {
		return geo.Result{}, false, false
	}
	if env.Meta.Version != c.version(ctx) {
		return geo.Result{}, false, false
	}
	return env.Result, time.Now().After(env.Meta.StaleAfter), true
}

// Put stores a freshly computed result under the current data version.
func (c *Cache) Put(ctx context.Context, key string, res geo.Result) {
	var env envelope
	env.Result = res
	env.Meta.LastFetch = time.Now()
	env.Meta.StaleAfter = env.Meta.LastFetch.Add(c.staleAfter)
	env.Meta.Version = c.version(ctx)
	b, err := json.Marshal(env)
	if err != nil {
		return
	}
	if err := c.kv.Set(ctx, "clusters:q:"+key, string(b), c.ttl); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cluster cache write failed")
	}
}

// TryLock takes a short per-key lock so concurrent misses do not stampede
// the store for the same viewport.
func (c *Cache) TryLock(ctx context.Context, key string) bool {
	ok, err := c.kv.SetNX(ctx, "clusters:lock:"+key, "1", 8*time.Second)
	if err != nil {
		return true // redis down: compute rather than refuse
	}
	return ok
}

// BumpVersion invalidates every cached entry by moving the data version.
func (c *Cache) BumpVersion(ctx context.Context) {
	if _, err := c.kv.Incr(ctx, versionKey); err != nil {
		c.log.Warn().Err(err).Msg("cluster cache version bump failed")
	}
}

func (c *Cache) version(ctx context.Context) int64 {
	val, err := c.kv.Get(ctx, versionKey)
	if err != nil {
		return 0
	}
	var v int64
	for _, ch := range val {
		if ch < '0' || ch > '9' {
			return 0
		}
		v = v*10 + int64(ch-'0')
	}
	return v
}
