package nodecache

import "sync"

// Cache is the collaborator interface the network-map updater consumes:
// lookups by legal identity and by content hash, insertion, removal, and
// enumeration of known hashes. The updater treats every call as atomic and
// never synchronizes around it itself.
type Cache interface {
	NodeByLegalIdentity(legalIdentity string) (*SignedNodeInfo, Hash, bool)
	NodeByHash(h Hash) (*SignedNodeInfo, bool)
	AddNode(info *SignedNodeInfo) Hash
	RemoveNode(h Hash)
	AllHashes() []Hash
}

// MemoryCache is a thread-safe in-memory Cache implementation, keyed by
// content hash with a secondary index by legal identity.
type MemoryCache struct {
	mu        sync.RWMutex
	byHash    map[Hash]*SignedNodeInfo
	byIdentity map[string]Hash
}

// NewMemoryCache returns an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		byHash:     make(map[Hash]*SignedNodeInfo),
		byIdentity: make(map[string]Hash),
	}
}

func (c *MemoryCache) NodeByLegalIdentity(legalIdentity string) (*SignedNodeInfo, Hash, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.byIdentity[legalIdentity]
	if !ok {
		return nil, Hash{}, false
	}
	info, ok := c.byHash[h]
	return info, h, ok
}

func (c *MemoryCache) NodeByHash(h Hash) (*SignedNodeInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	info, ok := c.byHash[h]
	return info, ok
}

// AddNode inserts or replaces the entry for info's content hash and updates
// the legal-identity index for every identity info carries.
func (c *MemoryCache) AddNode(info *SignedNodeInfo) Hash {
	h := HashOf(info.Payload)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.byHash[h] = info
	node, err := decodePayload(info)
	if err == nil {
		for _, id := range node.LegalIdentities {
			c.byIdentity[id] = h
		}
	}
	return h
}

func (c *MemoryCache) RemoveNode(h Hash) {
	c.mu.Lock()
	defer c.mu.Unlock()
	info, ok := c.byHash[h]
	if !ok {
		return
	}
	delete(c.byHash, h)
	if node, err := decodePayload(info); err == nil {
		for _, id := range node.LegalIdentities {
			if c.byIdentity[id] == h {
				delete(c.byIdentity, id)
			}
		}
	}
}

func (c *MemoryCache) AllHashes() []Hash {
	c.mu.RLock()
	defer c.mu.RUnlock()
	hashes := make([]Hash, 0, len(c.byHash))
	for h := range c.byHash {
		hashes = append(hashes, h)
	}
	return hashes
}
