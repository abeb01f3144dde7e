// Package topologycache provides a TTL cache for environment topologies per namespace.
// Refreshed by every live stream update for that namespace.
//
// Each namespace has a generation that Invalidate bumps. A writer that read the generation
// before fetching stores with SetIfCurrent, so a build that started before an invalidation
// never repopulates the cache with the tree the invalidation was meant to drop.
package topologycache

import (
	"sync"
	"time"

	"github.com/vanshmadan/gke-connect/internal/models"
	"github.com/vanshmadan/gke-connect/internal/pkg/metrics"
)

type entry struct {
	resources []models.ResourceNode
	expAt     time.Time
}

// Cache holds topologies by namespace with TTL. Thread-safe.
type Cache struct {
	ttl   time.Duration
	now   func() time.Time
	mu    sync.RWMutex
	store map[string]*entry
	gens  map[string]uint64
}

// New returns a cache with the given TTL. If ttl <= 0, Get will always miss (cache disabled).
func New(ttl time.Duration) *Cache {
	return &Cache{
		ttl:   ttl,
		now:   time.Now,
		store: make(map[string]*entry),
		gens:  make(map[string]uint64),
	}
}

// Get returns a cached topology if the namespace exists and is not expired. Records hit/miss.
func (c *Cache) Get(namespace string) ([]models.ResourceNode, bool) {
	if c.ttl <= 0 {
		metrics.TopologyCacheMissesTotal.Inc()
		return nil, false
	}
	c.mu.RLock()
	e, ok := c.store[namespace]
	c.mu.RUnlock()
	if !ok || e == nil || c.now().After(e.expAt) {
		metrics.TopologyCacheMissesTotal.Inc()
		return nil, false
	}
	metrics.TopologyCacheHitsTotal.Inc()
	return e.resources, true
}

// Set stores the topology for namespace with TTL from cache config.
// Cached trees are shared between readers and must not be mutated.
func (c *Cache) Set(namespace string, resources []models.ResourceNode) {
	if c.ttl <= 0 || resources == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store[namespace] = &entry{resources: resources, expAt: c.now().Add(c.ttl)}
}

// Generation returns the invalidation generation of namespace.
func (c *Cache) Generation(namespace string) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gens[namespace]
}

// SetIfCurrent stores resources only if namespace is still at generation gen.
// It reports whether the tree was stored.
func (c *Cache) SetIfCurrent(namespace string, gen uint64, resources []models.ResourceNode) bool {
	if c.ttl <= 0 || resources == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[namespace] != gen {
		return false
	}
	c.store[namespace] = &entry{resources: resources, expAt: c.now().Add(c.ttl)}
	return true
}

// Invalidate removes the entry for namespace and bumps its generation.
func (c *Cache) Invalidate(namespace string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, namespace)
	c.gens[namespace]++
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}
