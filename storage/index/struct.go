// Package index implements an on-disk B+-tree ordered index over the
// shared buffer pool, with latch crabbing for concurrent descent.
//
// Grounded on storage_engine/access/indexfile_manager/bplustree/struct.go
// for the node shape (sorted keys, children/values, leaf next pointer,
// parent back-pointer) and storage_engine/access/indexfile_manager/
// bplustree/node_to_index_page.go for the page codec layout; the
// crabbing protocol itself -- per-page RLatch/WLatch instead of the
// teacher's single tree-wide mutex, "safe node" ancestor release, and
// split/merge propagation along the held write-latch chain -- is
// transliterated from original_source/src/storage/index/b_plus_tree.cpp
// (FindLeafPage / CrabbingProtocolFetchPage / IsSafe /
// ReleasePagesInTransaction / InsertInParent / Remove).
package index

import (
	"DaemonDB/storage/buffer"
	"DaemonDB/storage/disk"
	"DaemonDB/storage/page"
	"bytes"
	"fmt"
	"sync"
)

type nodeType uint8

const (
	nodeLeaf nodeType = iota
	nodeInternal
)

// node is the decoded, in-memory form of one tree page.
type node struct {
	id       page.ID
	kind     nodeType
	keys     [][]byte
	children []page.ID // internal only; len == len(keys)+1
	values   [][]byte  // leaf only; len == len(keys)
	next     page.ID   // leaf only; Invalid if none
	parent   page.ID   // Invalid for the root
}

// BPlusTree is an ordered index keyed by []byte, comparing keys with cmp
// (bytes.Compare by default), stored as a chain of pages in a shared
// buffer pool and disk manager under one registered index name.
type BPlusTree struct {
	name string
	pool *buffer.Pool
	disk *disk.Manager
	cmp  func(a, b []byte) int

	leafMax     int
	leafMin     int
	internalMax int
	internalMin int

	rootMu sync.RWMutex
	root   page.ID

	cache *readCache // optional; nil when not configured
}

// Config holds the order parameters for a new or reopened tree. Leaf and
// internal node capacities can differ, matching spec.md's Insert/Remove
// invariants being parameterized per node kind.
type Config struct {
	LeafMax     int
	InternalMax int
}

// Open registers (or reattaches to) name in disk's header registry and
// returns a tree over pool/disk using it.
func Open(name string, pool *buffer.Pool, d *disk.Manager, cfg Config) (*BPlusTree, error) {
	if cfg.LeafMax < 2 || cfg.InternalMax < 2 {
		return nil, fmt.Errorf("index: leaf/internal max must be >= 2")
	}
	if err := d.RegisterIndex(name); err != nil {
		return nil, fmt.Errorf("index: register %q: %w", name, err)
	}
	root, _ := d.Root(name)

	return &BPlusTree{
		name:        name,
		pool:        pool,
		disk:        d,
		cmp:         bytes.Compare,
		leafMax:     cfg.LeafMax,
		leafMin:     (cfg.LeafMax + 1) / 2,
		internalMax: cfg.InternalMax,
		internalMin: (cfg.InternalMax + 1) / 2,
		root:        root,
	}, nil
}

// UseCache wraps Get with a read-through cache of the given capacity. It
// sits outside the tree's own correctness boundary: Insert/Remove
// invalidate the cached entry directly rather than relying on TTL.
func (t *BPlusTree) UseCache(capacity int64) error {
	c, err := newReadCache(capacity)
	if err != nil {
		return err
	}
	t.cache = c
	return nil
}

func (t *BPlusTree) isEmpty() bool { return t.root == page.Invalid }

func (t *BPlusTree) maxFor(k nodeType) int {
	if k == nodeLeaf {
		return t.leafMax
	}
	return t.internalMax
}

func (t *BPlusTree) minFor(k nodeType) int {
	if k == nodeLeaf {
		return t.leafMin
	}
	return t.internalMin
}
