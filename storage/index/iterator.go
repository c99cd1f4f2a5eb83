package index

import "DaemonDB/storage/page"

// Iterator yields key/value pairs in ascending key order by walking the
// leaf level's next-pointer chain, one leaf page latched at a time.
type Iterator struct {
	t    *BPlusTree
	pg   *page.Page
	n    *node
	pos  int
	done bool
}

// Scan returns an iterator over all keys >= start (start == nil scans
// from the first key). The iterator holds a shared latch on at most one
// leaf page at a time, releasing each as it advances to the next.
func (t *BPlusTree) Scan(start []byte) (*Iterator, error) {
	it := &Iterator{t: t}

	findMin := start == nil
	searchKey := start
	if findMin {
		searchKey = nil
	}

	leafPg, leaf, chain, releaseRoot, err := t.descend(searchKey, opFind, findMin)
	t.releaseChain(chain, false)
	releaseRoot()
	if err != nil {
		return nil, err
	}

	it.pg = leafPg
	it.n = leaf
	if leaf == nil {
		it.done = true
		return it, nil
	}
	// pos is parked one before the first matching key; Next's leading
	// pos++ lands it on that key on the first call.
	it.pos = -1
	if !findMin {
		it.pos = lowerBound(leaf.keys, start, t.cmp) - 1
	}
	return it, nil
}

// Next advances the iterator, returning false once exhausted.
func (it *Iterator) Next() bool {
	if it.done || it.n == nil {
		return false
	}
	it.pos++
	for it.pos >= len(it.n.keys) {
		next := it.n.next
		it.t.release(it.pg, it.n, false, false)
		if next == page.Invalid {
			it.done = true
			it.n = nil
			return false
		}
		pg, ok := it.t.pool.FetchPage(next)
		if !ok {
			it.done = true
			it.n = nil
			return false
		}
		pg.RLatch()
		n, err := decodeNode(next, pg.Data())
		if err != nil {
			pg.RUnlatch()
			it.t.pool.UnpinPage(next, false)
			it.done = true
			it.n = nil
			return false
		}
		it.pg = pg
		it.n = n
		it.pos = 0
	}
	return true
}

// Key and Value return the current pair; valid only after Next returns
// true.
func (it *Iterator) Key() []byte   { return it.n.keys[it.pos] }
func (it *Iterator) Value() []byte { return it.n.values[it.pos] }

// Close releases the iterator's currently-held leaf latch, if any. Safe
// to call after exhaustion or before it (abandoning a scan early).
func (it *Iterator) Close() {
	if !it.done && it.n != nil {
		it.t.release(it.pg, it.n, false, false)
		it.n = nil
		it.done = true
	}
}
