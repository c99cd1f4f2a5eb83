// Package hashtable implements a concurrent extendible hash directory,
// used by the buffer pool as its page_id -> frame_id index.
//
// Grounded on original_source/src/container/hash/extendible_hash_table.cpp
// (the BusTub reference this spec was distilled from): a directory of
// buckets addressed by the low bits of the key's hash, global depth G,
// per-bucket local depth L <= G, directory doubling when a full bucket's
// local depth equals the global depth, and bucket splitting with
// redistribution by the new bit. Buckets are never merged, matching
// spec.md section 4.1.
package hashtable

import (
	"hash/maphash"
	"sync"
)

var seed = maphash.MakeSeed()

// entry is one key/value pair stored in a bucket.
type entry[K comparable, V any] struct {
	key K
	val V
}

// bucket is a bounded, unordered list of entries sharing a directory
// index at the bucket's local depth.
type bucket[K comparable, V any] struct {
	depth int
	items []entry[K, V]
	limit int
}

func newBucket[K comparable, V any](limit, depth int) *bucket[K, V] {
	return &bucket[K, V]{depth: depth, limit: limit}
}

func (b *bucket[K, V]) find(key K) (V, bool) {
	for _, it := range b.items {
		if it.key == key {
			return it.val, true
		}
	}
	var zero V
	return zero, false
}

func (b *bucket[K, V]) remove(key K) bool {
	for i, it := range b.items {
		if it.key == key {
			b.items = append(b.items[:i], b.items[i+1:]...)
			return true
		}
	}
	return false
}

// insert updates an existing key in place, or appends if there is room.
// Returns false if the bucket is full and the key is not already present
// (the caller must then split).
func (b *bucket[K, V]) insert(key K, val V) bool {
	for i, it := range b.items {
		if it.key == key {
			b.items[i].val = val
			return true
		}
	}
	if len(b.items) >= b.limit {
		return false
	}
	b.items = append(b.items, entry[K, V]{key, val})
	return true
}

// Table is a concurrent map from K to V backed by an extendible hash
// directory. All operations are serialized by a single latch; simplicity
// over concurrency, as the original's comment notes.
type Table[K comparable, V any] struct {
	mu          sync.Mutex
	globalDepth int
	bucketSize  int
	numBuckets  int
	dir         []*bucket[K, V]
	hashOf      func(K) uint64
}

// New returns an empty table with the given per-bucket item capacity.
// hashOf computes the hash of a key; callers pick it per key type (e.g.
// HashInt64 for an int64-backed id) since Go generics have no built-in
// hash function for arbitrary comparable types.
func New[K comparable, V any](bucketSize int, hashOf func(K) uint64) *Table[K, V] {
	return &Table[K, V]{
		bucketSize: bucketSize,
		numBuckets: 1,
		dir:        []*bucket[K, V]{newBucket[K, V](bucketSize, 0)},
		hashOf:     hashOf,
	}
}

// HashInt64 hashes any int64-backed key type (PageID, FrameID, ...) via
// maphash, seeded once per process.
func HashInt64[K ~int64](key K) uint64 {
	var h maphash.Hash
	h.SetSeed(seed)
	var buf [8]byte
	v := uint64(key)
	for i := 0; i < 8; i++ {
		buf[i] = byte(v >> (8 * i))
	}
	h.Write(buf[:])
	return h.Sum64()
}

// HashString hashes a string key via maphash, seeded once per process.
func HashString(key string) uint64 {
	var h maphash.Hash
	h.SetSeed(seed)
	h.WriteString(key)
	return h.Sum64()
}

func (t *Table[K, V]) indexOf(key K) int {
	mask := (1 << t.globalDepth) - 1
	return int(t.hashOf(key)) & mask
}

// Find returns the value associated with key, if present.
func (t *Table[K, V]) Find(key K) (V, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dir[t.indexOf(key)].find(key)
}

// Remove deletes key, returning whether it was present.
func (t *Table[K, V]) Remove(key K) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dir[t.indexOf(key)].remove(key)
}

// Insert adds or updates key -> val, splitting and/or doubling the
// directory as many times as necessary.
func (t *Table[K, V]) Insert(key K, val V) {
	t.mu.Lock()
	defer t.mu.Unlock()

	index := t.indexOf(key)
	b := t.dir[index]
	for !b.insert(key, val) {
		if b.depth == t.globalDepth {
			t.globalDepth++
			oldSize := len(t.dir)
			t.dir = append(t.dir, make([]*bucket[K, V], oldSize)...)
			for i := oldSize; i < len(t.dir); i++ {
				t.dir[i] = t.dir[i-oldSize]
			}
		}
		b.depth++
		newB := newBucket[K, V](t.bucketSize, b.depth)
		t.numBuckets++
		mask := (1 << b.depth) - 1
		for i := range t.dir {
			if (index & mask) == (i & mask) {
				t.dir[i] = newB
			}
		}
		items := b.items
		b.items = nil
		for _, it := range items {
			if (index & mask) == (t.indexOf(it.key) & mask) {
				newB.insert(it.key, it.val)
			} else {
				b.items = append(b.items, it)
			}
		}

		index = t.indexOf(key)
		b = t.dir[index]
	}
}

// GlobalDepth returns the directory's current global depth.
func (t *Table[K, V]) GlobalDepth() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.globalDepth
}

// LocalDepth returns the local depth of the bucket at the given
// directory index.
func (t *Table[K, V]) LocalDepth(dirIndex int) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dir[dirIndex].depth
}

// NumBuckets returns the number of distinct buckets currently allocated.
func (t *Table[K, V]) NumBuckets() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.numBuckets
}
