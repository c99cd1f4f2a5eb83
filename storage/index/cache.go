package index

import "github.com/dgraph-io/ristretto/v2"

// readCache is a read-through cache in front of BPlusTree.Get, sized in
// entry count rather than bytes since index values here are small and
// uniform. It never participates in tree correctness: Insert/Remove call
// invalidate directly instead of waiting on ristretto's cost-based
// eviction or TTL to catch up.
type readCache struct {
	c *ristretto.Cache[string, []byte]
}

func newReadCache(capacity int64) (*readCache, error) {
	if capacity <= 0 {
		capacity = 1024
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: capacity * 10,
		MaxCost:     capacity,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &readCache{c: c}, nil
}

func (rc *readCache) get(key []byte) ([]byte, bool) {
	v, ok := rc.c.Get(string(key))
	if !ok {
		return nil, false
	}
	return v, true
}

func (rc *readCache) set(key []byte, val []byte) {
	rc.c.Set(string(key), val, 1)
}

func (rc *readCache) invalidate(key []byte) {
	rc.c.Del(string(key))
}
