package store

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/changelens/impact-engine/pkg/model"
)

// CachedStore fronts Get with a TTL-bounded LRU. Put writes through to the
// backing store and invalidates the cached entry for that key, so readers
// never get a snapshot older than the TTL after a publish.
type CachedStore struct {
	backing *Store
	cache   *expirable.LRU[string, *model.Graph]
}

// NewCached wraps a store with a read-through cache of the given size and
// TTL.
func NewCached(backing *Store, size int, ttl time.Duration) *CachedStore {
	if size <= 0 {
		size = 128
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachedStore{
		backing: backing,
		cache:   expirable.NewLRU[string, *model.Graph](size, nil, ttl),
	}
}

// Put publishes through the backing store and drops the stale cache entry.
func (c *CachedStore) Put(repoID, branch string, g *model.Graph) (int64, error) {
	version, err := c.backing.Put(repoID, branch, g)
	if err != nil {
		return 0, err
	}
	c.cache.Remove(key(repoID, branch))
	return version, nil
}

// Get serves the current snapshot, from cache when fresh.
func (c *CachedStore) Get(repoID, branch string) (*model.Graph, error) {
	k := key(repoID, branch)
	if g, ok := c.cache.Get(k); ok {
		return g, nil
	}
	g, err := c.backing.Get(repoID, branch)
	if err != nil {
		return nil, err
	}
	c.cache.Add(k, g)
	return g, nil
}

// GetVersion bypasses the cache; historical versions are immutable and
// rarely re-read.
func (c *CachedStore) GetVersion(repoID, branch string, version int64) (*model.Graph, error) {
	return c.backing.GetVersion(repoID, branch, version)
}
