package ranking

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"
)

var (
	cacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ranking_top_cache_hits_total",
		Help: "Top-10 leaderboard lookups served from memory.",
	})
	cacheMiss = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ranking_top_cache_miss_total",
		Help: "Top-10 leaderboard lookups that hit the database.",
	})
)

func init() {
	prometheus.MustRegister(cacheHits, cacheMiss)
}

type cachedTop struct {
	entries  []Entry
	loadedAt time.Time
}

// TopCache keeps the top-10 per project. Loads for the same project collapse
// into a single query.
type TopCache struct {
	mu    sync.RWMutex
	items map[string]*cachedTop
	gens  map[string]uint64
	ttl   time.Duration
	group singleflight.Group
	now   func() time.Time
}

func NewTopCache(ttl time.Duration) *TopCache {
	return &TopCache{
		items: make(map[string]*cachedTop),
		gens:  make(map[string]uint64),
		ttl:   ttl,
		now:   time.Now,
	}
}

func (c *TopCache) Get(projectID string) ([]Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v, ok := c.items[projectID]
	if !ok || (c.ttl > 0 && c.now().Sub(v.loadedAt) > c.ttl) {
		return nil, false
	}
	return v.entries, true
}

func (c *TopCache) Set(projectID string, entries []Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[projectID] = &cachedTop{entries: entries, loadedAt: c.now()}
}

// setIfCurrent drops entries loaded before the last invalidation.
func (c *TopCache) setIfCurrent(projectID string, gen uint64, entries []Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[projectID] != gen {
		return
	}
	c.items[projectID] = &cachedTop{entries: entries, loadedAt: c.now()}
}

func (c *TopCache) generation(projectID string) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gens[projectID]
}

func (c *TopCache) Invalidate(projectID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, projectID)
	c.gens[projectID]++
	c.group.Forget(projectID)
}

// Load returns the cached entries or calls fn once for concurrent callers.
func (c *TopCache) Load(projectID string, fn func() ([]Entry, error)) ([]Entry, error) {
	if v, ok := c.Get(projectID); ok {
		cacheHits.Inc()
		return v, nil
	}
	cacheMiss.Inc()

	gen := c.generation(projectID)
	v, err, _ := c.group.Do(projectID, func() (any, error) {
		entries, err := fn()
		if err != nil {
			return nil, err
		}
		c.setIfCurrent(projectID, gen, entries)
		return entries, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Entry), nil
}
