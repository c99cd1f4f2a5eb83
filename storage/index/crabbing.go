package index

import (
	"DaemonDB/storage/page"
	"fmt"
)

// opKind distinguishes read descents from write descents: a write holds
// its latch chain until a "safe" node proves no split/merge will
// propagate further up; a read always releases its parent immediately
// (true hand-over-hand), matching original_source's IsExclusive/IsSafe
// split.
type opKind int

const (
	opFind opKind = iota
	opInsert
	opRemove
)

func (op opKind) exclusive() bool { return op != opFind }

// held is one page still pinned and latched partway through a descent,
// kept around only because its subtree might still need modifying.
type held struct {
	pg *page.Page
	n  *node
}

// descend walks from the root to key's leaf, applying crabbing: for a
// write op it keeps every ancestor that is not yet "safe" for op pinned
// and write-latched (in chain, root-to-leaf order), releasing the rest as
// soon as a safe node is reached; for a read it releases every ancestor
// immediately after fetching the next level down.
//
// Returns the leaf's node/page plus the still-held ancestor chain (empty
// for reads, and for writes whenever a safe node was found along the
// way). Caller must release the returned leaf and any remaining chain
// entries via t.release.
func (t *BPlusTree) descend(key []byte, op opKind, findMin bool) (leafPg *page.Page, leaf *node, chain []held, releaseRoot func(), err error) {
	exclusive := op.exclusive()
	if exclusive {
		t.rootMu.Lock()
	} else {
		t.rootMu.RLock()
	}
	rootLocked := true
	releaseRoot = func() {
		if rootLocked {
			if exclusive {
				t.rootMu.Unlock()
			} else {
				t.rootMu.RUnlock()
			}
			rootLocked = false
		}
	}

	if t.isEmpty() {
		releaseRoot()
		return nil, nil, nil, releaseRoot, nil
	}

	id := t.root
	for {
		pg, ok := t.pool.FetchPage(id)
		if !ok {
			t.releaseChain(chain, exclusive)
			releaseRoot()
			return nil, nil, nil, releaseRoot, fmt.Errorf("index: buffer pool exhausted fetching page %d", id)
		}
		if exclusive {
			pg.WLatch()
		} else {
			pg.RLatch()
		}
		n, derr := decodeNode(id, pg.Data())
		if derr != nil {
			if exclusive {
				pg.WUnlatch()
			} else {
				pg.RUnlatch()
			}
			t.pool.UnpinPage(id, false)
			t.releaseChain(chain, exclusive)
			releaseRoot()
			return nil, nil, nil, releaseRoot, derr
		}

		safe := !exclusive || t.isSafe(n, op)
		if safe {
			t.releaseChain(chain, exclusive)
			chain = chain[:0]
			releaseRoot()
		}
		chain = append(chain, held{pg: pg, n: n})

		if n.kind == nodeLeaf {
			return pg, n, chain[:len(chain)-1], releaseRoot, nil
		}
		if findMin {
			id = n.children[0]
		} else {
			id = n.children[lowerBoundChild(n, key, t.cmp)]
		}
	}
}

// lowerBoundChild returns the child index to descend into for key: the
// index of the first key greater than the search key, i.e. children[i]
// covers keys in [keys[i-1], keys[i]).
func lowerBoundChild(n *node, key []byte, cmp func(a, b []byte) int) int {
	i := lowerBound(n.keys, key, cmp)
	if i < len(n.keys) && cmp(n.keys[i], key) == 0 {
		return i + 1
	}
	return i
}

func (t *BPlusTree) isSafe(n *node, op opKind) bool {
	switch op {
	case opInsert:
		return len(n.keys) < t.maxFor(n.kind)
	case opRemove:
		if n.id == t.root {
			// A root that could empty or collapse keeps rootMu held, since
			// fixRoot would then rewrite the root id.
			if n.kind == nodeLeaf {
				return len(n.keys) > 1
			}
			return len(n.children) > 2
		}
		return len(n.keys) > t.minFor(n.kind)
	default:
		return true
	}
}

func (t *BPlusTree) releaseChain(chain []held, dirty bool) {
	for _, h := range chain {
		if dirty {
			h.pg.WUnlatch()
		} else {
			h.pg.RUnlatch()
		}
		t.pool.UnpinPage(h.pg.ID(), false)
	}
}

// release unpins and unlatches a single page acquired during a descent,
// writing back its node content first if dirty.
func (t *BPlusTree) release(pg *page.Page, n *node, exclusive bool, dirty bool) {
	if dirty {
		_ = encodeNode(n, pg.Data())
	}
	if exclusive {
		pg.WUnlatch()
	} else {
		pg.RUnlatch()
	}
	t.pool.UnpinPage(pg.ID(), dirty)
}
