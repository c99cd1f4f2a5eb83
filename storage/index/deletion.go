package index

import (
	"DaemonDB/storage/page"
	"errors"
	"fmt"
)

// ErrKeyNotFound is returned by Remove when key is absent from the tree.
var ErrKeyNotFound = errors.New("index: key not found")

// Remove deletes key, rebalancing by borrowing from a sibling or merging
// as needed, propagating underflow fixes up the write-latch chain held
// by descend -- the mirror image of Insert's split propagation.
func (t *BPlusTree) Remove(key []byte) error {
	if t.cache != nil {
		t.cache.invalidate(key)
	}

	leafPg, leaf, chain, releaseRoot, err := t.descend(key, opRemove, false)
	defer releaseRoot()
	if err != nil {
		return err
	}
	if leaf == nil {
		return ErrKeyNotFound
	}

	idx := exactIndex(leaf.keys, key, t.cmp)
	if idx < 0 {
		t.release(leafPg, leaf, true, false)
		t.releaseChain(chain, true)
		return ErrKeyNotFound
	}
	leaf.keys = removeAt(leaf.keys, idx)
	leaf.values = removeAt(leaf.values, idx)

	return t.fixUnderflow(leafPg, leaf, chain)
}

// fixUnderflow writes n back, borrowing from a sibling or merging if n
// has fallen below its minimum occupancy, and recurses up chain as
// underflow propagates to ancestors.
func (t *BPlusTree) fixUnderflow(pg *page.Page, n *node, chain []held) error {
	for {
		if n.id == t.root {
			return t.fixRoot(pg, n, chain)
		}

		if len(n.keys) >= t.minFor(n.kind) {
			t.release(pg, n, true, true)
			t.releaseChain(chain, true)
			return nil
		}

		ph := chain[len(chain)-1]
		chain = chain[:len(chain)-1]
		parent := ph.n
		idx := childIndexOf(parent, n.id)
		if idx < 0 {
			t.release(pg, n, true, true)
			t.release(ph.pg, parent, true, true)
			t.releaseChain(chain, true)
			return fmt.Errorf("index: internal error, child %d not found in parent %d", n.id, parent.id)
		}

		var (
			leftPg, rightPg     *page.Page
			leftN, rightN       *node
			err                 error
			haveLeft, haveRight bool
		)
		if idx > 0 {
			leftPg, leftN, err = t.fetchWrite(parent.children[idx-1])
			if err != nil {
				t.release(pg, n, true, true)
				t.release(ph.pg, parent, true, true)
				t.releaseChain(chain, true)
				return err
			}
			haveLeft = true
		}
		if idx < len(parent.children)-1 {
			rightPg, rightN, err = t.fetchWrite(parent.children[idx+1])
			if err != nil {
				if haveLeft {
					t.release(leftPg, leftN, true, false)
				}
				t.release(pg, n, true, true)
				t.release(ph.pg, parent, true, true)
				t.releaseChain(chain, true)
				return err
			}
			haveRight = true
		}

		switch {
		case haveLeft && len(leftN.keys) > t.minFor(n.kind):
			movedChild := borrowFromLeft(n, leftN, parent, idx)
			if haveRight {
				t.release(rightPg, rightN, true, false)
			}
			t.release(leftPg, leftN, true, true)
			if movedChild != page.Invalid {
				if err := t.reparent(movedChild, n.id); err != nil {
					t.release(pg, n, true, true)
					t.release(ph.pg, parent, true, true)
					t.releaseChain(chain, true)
					return err
				}
			}
			t.release(pg, n, true, true)
			t.release(ph.pg, parent, true, true)
			t.releaseChain(chain, true)
			return nil

		case haveRight && len(rightN.keys) > t.minFor(n.kind):
			movedChild := borrowFromRight(n, rightN, parent, idx)
			if haveLeft {
				t.release(leftPg, leftN, true, false)
			}
			t.release(rightPg, rightN, true, true)
			if movedChild != page.Invalid {
				if err := t.reparent(movedChild, n.id); err != nil {
					t.release(pg, n, true, true)
					t.release(ph.pg, parent, true, true)
					t.releaseChain(chain, true)
					return err
				}
			}
			t.release(pg, n, true, true)
			t.release(ph.pg, parent, true, true)
			t.releaseChain(chain, true)
			return nil

		case haveLeft:
			// Merge n into its left sibling.
			movedChildren := mergeRightIntoLeft(leftN, n, parent, idx-1)
			if haveRight {
				t.release(rightPg, rightN, true, false)
			}
			for _, c := range movedChildren {
				if err := t.reparent(c, leftN.id); err != nil {
					t.release(leftPg, leftN, true, true)
					t.release(ph.pg, parent, true, true)
					t.releaseChain(chain, true)
					return err
				}
			}
			pg.WUnlatch()
			t.pool.UnpinPage(n.id, false)
			t.pool.DeletePage(n.id)
			t.release(leftPg, leftN, true, true)
			pg, n = ph.pg, parent
			continue

		default:
			// Merge right sibling into n.
			movedChildren := mergeRightIntoLeft(n, rightN, parent, idx)
			for _, c := range movedChildren {
				if err := t.reparent(c, n.id); err != nil {
					t.release(pg, n, true, true)
					t.release(ph.pg, parent, true, true)
					t.releaseChain(chain, true)
					return err
				}
			}
			rightPg.WUnlatch()
			t.pool.UnpinPage(rightN.id, false)
			t.pool.DeletePage(rightN.id)
			t.release(pg, n, true, true)
			pg, n = ph.pg, parent
			continue
		}
	}
}

// fixRoot handles the two root-only underflow cases: an internal root
// left with a single child collapses (that child becomes the new root),
// and a leaf root left with zero keys empties the tree.
func (t *BPlusTree) fixRoot(pg *page.Page, n *node, chain []held) error {
	if n.kind == nodeInternal && len(n.children) == 1 {
		onlyChild := n.children[0]
		pg.WUnlatch()
		t.pool.UnpinPage(n.id, false)
		t.pool.DeletePage(n.id)
		t.releaseChain(chain, true)
		if err := t.setRoot(onlyChild); err != nil {
			return err
		}
		return t.reparent(onlyChild, page.Invalid)
	}
	if n.kind == nodeLeaf && len(n.keys) == 0 {
		pg.WUnlatch()
		t.pool.UnpinPage(n.id, false)
		t.pool.DeletePage(n.id)
		t.releaseChain(chain, true)
		return t.setRoot(page.Invalid)
	}
	t.release(pg, n, true, true)
	t.releaseChain(chain, true)
	return nil
}

func (t *BPlusTree) fetchWrite(id page.ID) (*page.Page, *node, error) {
	pg, ok := t.pool.FetchPage(id)
	if !ok {
		return nil, nil, fmt.Errorf("index: buffer pool exhausted fetching %d", id)
	}
	pg.WLatch()
	n, err := decodeNode(id, pg.Data())
	if err != nil {
		pg.WUnlatch()
		t.pool.UnpinPage(id, false)
		return nil, nil, err
	}
	return pg, n, nil
}

// borrowFromLeft moves left's last entry into the front of n, rotating
// the separator key through parent at idx-1 (parent.children[idx] == n).
// Returns the moved child's id for internal nodes (Invalid for leaves).
func borrowFromLeft(n, left, parent *node, idx int) page.ID {
	if n.kind == nodeLeaf {
		k := left.keys[len(left.keys)-1]
		v := left.values[len(left.values)-1]
		left.keys = left.keys[:len(left.keys)-1]
		left.values = left.values[:len(left.values)-1]
		n.keys = insertAt(n.keys, 0, k)
		n.values = insertAt(n.values, 0, v)
		parent.keys[idx-1] = n.keys[0]
		return page.Invalid
	}
	c := left.children[len(left.children)-1]
	left.children = left.children[:len(left.children)-1]
	upKey := left.keys[len(left.keys)-1]
	left.keys = left.keys[:len(left.keys)-1]
	n.keys = insertAt(n.keys, 0, parent.keys[idx-1])
	n.children = insertAt(n.children, 0, c)
	parent.keys[idx-1] = upKey
	return c
}

// borrowFromRight moves right's first entry into the end of n, rotating
// the separator key through parent at idx (parent.children[idx] == n).
// Returns the moved child's id for internal nodes (Invalid for leaves).
func borrowFromRight(n, right, parent *node, idx int) page.ID {
	if n.kind == nodeLeaf {
		k := right.keys[0]
		v := right.values[0]
		right.keys = removeAt(right.keys, 0)
		right.values = removeAt(right.values, 0)
		n.keys = append(n.keys, k)
		n.values = append(n.values, v)
		parent.keys[idx] = right.keys[0]
		return page.Invalid
	}
	c := right.children[0]
	right.children = removeAt(right.children, 0)
	upKey := right.keys[0]
	right.keys = removeAt(right.keys, 0)
	n.keys = append(n.keys, parent.keys[idx])
	n.children = append(n.children, c)
	parent.keys[idx] = upKey
	return c
}

// mergeRightIntoLeft appends right's entries onto left (left absorbs
// right) and removes the separator/child pair at parentIdx from parent.
// Returns the children that moved from right to left (empty for leaves),
// which the caller must reparent to left's id. Caller is responsible for
// deallocating right's page afterward.
func mergeRightIntoLeft(left, right, parent *node, parentIdx int) []page.ID {
	var moved []page.ID
	if left.kind == nodeLeaf {
		left.keys = append(left.keys, right.keys...)
		left.values = append(left.values, right.values...)
		left.next = right.next
	} else {
		left.keys = append(left.keys, parent.keys[parentIdx])
		left.keys = append(left.keys, right.keys...)
		left.children = append(left.children, right.children...)
		moved = right.children
	}
	parent.keys = removeAt(parent.keys, parentIdx)
	parent.children = removeAt(parent.children, parentIdx+1)
	return moved
}
