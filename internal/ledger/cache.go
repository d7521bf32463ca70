package ledger

import "sync"

// cacheEntry holds the cached reads for one asset. A dirty entry is
// stale: some write against the asset succeeded since the last read.
type cacheEntry struct {
	asset     *Asset
	ownership OwnershipType
	shares    *ShareholderSet
	dirty     bool
}

// assetCache is the per-asset read cache. Writes never update cached
// values; they only mark the entry dirty so the next read refetches.
type assetCache struct {
	mu      sync.Mutex
	entries map[uint64]*cacheEntry
}

func newAssetCache() *assetCache {
	return &assetCache{entries: make(map[uint64]*cacheEntry)}
}

func (c *assetCache) entry(id uint64) *cacheEntry {
	entry, ok := c.entries[id]
	if !ok {
		entry = &cacheEntry{}
		c.entries[id] = entry
	}
	return entry
}

// asset returns the cached asset if it is fresh.
func (c *assetCache) asset(id uint64) (Asset, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[id]
	if !ok || entry.dirty || entry.asset == nil {
		return Asset{}, false
	}
	return *entry.asset, true
}

// ownership returns the cached ownership type if it is fresh.
func (c *assetCache) ownership(id uint64) (OwnershipType, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[id]
	if !ok || entry.dirty || entry.ownership == OwnershipUnknown {
		return OwnershipUnknown, false
	}
	return entry.ownership, true
}

// shareholders returns the cached share distribution if it is fresh.
func (c *assetCache) shareholders(id uint64) (ShareholderSet, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[id]
	if !ok || entry.dirty || entry.shares == nil {
		return ShareholderSet{}, false
	}
	return *entry.shares, true
}

// putAsset stores a fresh read and clears the dirty flag.
func (c *assetCache) putAsset(id uint64, asset Asset) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry := c.entry(id)
	if entry.dirty {
		// A refetched read makes the whole entry fresh again; drop the
		// values that were not part of this read.
		entry.ownership = OwnershipUnknown
		entry.shares = nil
		entry.dirty = false
	}
	entry.asset = &asset
}

// putOwnership stores a fresh read and clears the dirty flag.
func (c *assetCache) putOwnership(id uint64, ownership OwnershipType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry := c.entry(id)
	if entry.dirty {
		entry.asset = nil
		entry.shares = nil
		entry.dirty = false
	}
	entry.ownership = ownership
}

// putShareholders stores a fresh read and clears the dirty flag.
func (c *assetCache) putShareholders(id uint64, set ShareholderSet) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry := c.entry(id)
	if entry.dirty {
		entry.asset = nil
		entry.ownership = OwnershipUnknown
		entry.dirty = false
	}
	entry.shares = &set
}

// markDirty invalidates the asset after a successful write.
func (c *assetCache) markDirty(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entry(id).dirty = true
}
