package rbac

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// matrixCacheSize comfortably fits every role type; the LRU bound only guards
// against unknown role values flooding the cache.
const matrixCacheSize = 64

// MatrixCache holds permission-matrix rows per role type for a bounded TTL.
// Admin edits on this instance invalidate the entry immediately; edits on
// other instances become visible after the TTL elapses.
type MatrixCache struct {
	entries *lru.LRU[RoleType, []Grant]
}

// NewMatrixCache builds a cache with the given TTL. A non-positive TTL
// returns nil, which disables caching entirely.
func NewMatrixCache(ttl time.Duration) *MatrixCache {
	if ttl <= 0 {
		return nil
	}
	return &MatrixCache{
		entries: lru.NewLRU[RoleType, []Grant](matrixCacheSize, nil, ttl),
	}
}

// Get returns the cached rows for a role type.
func (c *MatrixCache) Get(role RoleType) ([]Grant, bool) {
	if c == nil {
		return nil, false
	}
	return c.entries.Get(role)
}

// Put stores the rows for a role type.
func (c *MatrixCache) Put(role RoleType, grants []Grant) {
	if c == nil {
		return
	}
	c.entries.Add(role, grants)
}

// Invalidate drops the entry for a role type after a matrix edit.
func (c *MatrixCache) Invalidate(role RoleType) {
	if c == nil {
		return
	}
	c.entries.Remove(role)
}
