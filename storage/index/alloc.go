package index

import (
	"DaemonDB/storage/page"
	"fmt"
)

// newNode allocates a fresh page, writes a blank node of the given kind
// into it, and returns both still pinned and write-latched. Caller must
// release it via t.release once done.
func (t *BPlusTree) newNode(kind nodeType) (*page.Page, *node, error) {
	pg, ok := t.pool.NewPage()
	if !ok {
		return nil, nil, fmt.Errorf("index: buffer pool exhausted allocating a new node")
	}
	pg.WLatch()
	n := &node{id: pg.ID(), kind: kind, parent: page.Invalid, next: page.Invalid}
	if kind == nodeInternal {
		n.children = []page.ID{}
	}
	return pg, n, nil
}

// setRoot updates the tree's root id in memory and persists it to the
// disk manager's header registry. Caller must hold rootMu for write.
func (t *BPlusTree) setRoot(id page.ID) error {
	t.root = id
	return t.disk.SetRoot(t.name, id)
}
