// Package replacer implements the buffer pool's frame eviction policy.
//
// Grounded on original_source/src/buffer/lru_k_replacer.cpp (the BusTub
// reference this spec was distilled from): backward k-distance eviction,
// with +inf distance for frames seen fewer than k times and earliest
// overall access breaking ties among +inf frames. Per-frame bookkeeping
// follows the teacher's own accessOrder-slice LRU idiom in
// storage_engine/bufferpool/bufferpool.go, generalized from a single
// timestamp per frame to the last-k timestamps spec.md section 4.2 needs.
package replacer

import "sync"

const infDistance = -1

type record struct {
	frameID   int64
	history   []int64 // most recent access timestamp first, up to k entries
	evictable bool
}

// LRUKReplacer tracks which frames are eligible for eviction and selects a
// victim by backward k-distance. Frames must be registered via
// RecordAccess before any other method is called on them.
type LRUKReplacer struct {
	mu      sync.Mutex
	k       int
	size    int // max frames it manages; just a bound, not a backing array
	clock   int64
	records map[int64]*record
}

// New returns a replacer tracking up to numFrames frames with history depth k.
func New(numFrames int, k int) *LRUKReplacer {
	return &LRUKReplacer{
		k:       k,
		size:    numFrames,
		records: make(map[int64]*record),
	}
}

// RecordAccess logs an access to frameID at the current logical timestamp,
// creating a tracking record for frameID if this is its first access.
func (r *LRUKReplacer) RecordAccess(frameID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.clock++
	rec, ok := r.records[frameID]
	if !ok {
		rec = &record{frameID: frameID}
		r.records[frameID] = rec
	}
	rec.history = append([]int64{r.clock}, rec.history...)
	if len(rec.history) > r.k {
		rec.history = rec.history[:r.k]
	}
}

// kthTimestamp returns the timestamp of the k-th most recent access, or 0
// (with ok == false) if fewer than k accesses have been recorded.
func (r *record) kthTimestamp(k int) (int64, bool) {
	if len(r.history) < k {
		return 0, false
	}
	return r.history[k-1], true
}

func (r *record) earliestAccess() int64 {
	if len(r.history) == 0 {
		return 0
	}
	return r.history[len(r.history)-1]
}

// Evict selects a victim frame and removes its tracking record, returning
// (frameID, true). It returns (0, false) if no frame is currently
// evictable.
//
// Selection order: among evictable frames with fewer than k accesses
// (distance +inf), pick the one whose earliest recorded access is oldest;
// only if there are none of those, pick the evictable frame with the
// largest backward k-distance (i.e. the smallest k-th-most-recent
// timestamp).
func (r *LRUKReplacer) Evict() (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		bestInf     *record
		bestInfTime int64
		bestFinite  *record
		bestFinKth  int64
	)

	for _, rec := range r.records {
		if !rec.evictable {
			continue
		}
		if kth, ok := rec.kthTimestamp(r.k); ok {
			if bestFinite == nil || kth < bestFinKth {
				bestFinite = rec
				bestFinKth = kth
			}
			continue
		}
		t := rec.earliestAccess()
		if bestInf == nil || t < bestInfTime {
			bestInf = rec
			bestInfTime = t
		}
	}

	victim := bestInf
	if victim == nil {
		victim = bestFinite
	}
	if victim == nil {
		return 0, false
	}
	delete(r.records, victim.frameID)
	return victim.frameID, true
}

// SetEvictable marks frameID as evictable or pinned-in-place. It is a
// no-op if frameID has no tracking record.
func (r *LRUKReplacer) SetEvictable(frameID int64, evictable bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.records[frameID]; ok {
		rec.evictable = evictable
	}
}

// Remove drops frameID's tracking record outright, regardless of its
// evictable flag. Used when a page is deleted from the table, not merely
// evicted from cache.
func (r *LRUKReplacer) Remove(frameID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, frameID)
}

// Size returns the number of frames currently marked evictable.
func (r *LRUKReplacer) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, rec := range r.records {
		if rec.evictable {
			n++
		}
	}
	return n
}
