// Package catalog maintains the name -> index mapping over one shared
// buffer pool and disk manager, so a caller can open several named
// B+-trees without juggling the underlying page plumbing itself.
//
// Grounded on storage_engine/catalog/main.go and structs.go's name ->
// metadata table (TableToFileId, nextFileID, persistence-on-register);
// reworked from a table/schema registry into an index registry since
// this module has no heap files or row schemas, only ordered indexes.
package catalog

import (
	"DaemonDB/storage/buffer"
	"DaemonDB/storage/disk"
	"DaemonDB/storage/index"
	"fmt"
	"sort"
	"sync"
)

// entry is one registered index's handle plus the config it was opened
// with.
type entry struct {
	tree *index.BPlusTree
	cfg  index.Config
}

// Catalog is the name -> index registry for one disk file. All indexes
// it hands out share pool and disk, matching the teacher's one
// CatalogManager per database root.
type Catalog struct {
	mu   sync.RWMutex
	pool *buffer.Pool
	disk *disk.Manager
	idx  map[string]*entry
}

// New returns an empty catalog over pool/disk. Both are shared by every
// index subsequently created or opened through it.
func New(pool *buffer.Pool, d *disk.Manager) *Catalog {
	return &Catalog{
		pool: pool,
		disk: d,
		idx:  make(map[string]*entry),
	}
}

// CreateIndex registers a brand-new index called name with the given
// order parameters. It is an error to create an index under a name
// already known to this catalog (in-memory) or to the backing disk file
// (RegisterIndex detects a persisted root and would silently reattach).
func (c *Catalog) CreateIndex(name string, cfg index.Config) (*index.BPlusTree, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.idx[name]; ok {
		return nil, fmt.Errorf("catalog: index %q already registered", name)
	}
	if _, exists := c.disk.Root(name); exists {
		return nil, fmt.Errorf("catalog: index %q already exists on disk", name)
	}

	tree, err := index.Open(name, c.pool, c.disk, cfg)
	if err != nil {
		return nil, fmt.Errorf("catalog: create %q: %w", name, err)
	}
	c.idx[name] = &entry{tree: tree, cfg: cfg}
	return tree, nil
}

// OpenIndex reattaches to an index previously created in this catalog or
// persisted under name on disk from an earlier run.
func (c *Catalog) OpenIndex(name string, cfg index.Config) (*index.BPlusTree, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.idx[name]; ok {
		return e.tree, nil
	}
	tree, err := index.Open(name, c.pool, c.disk, cfg)
	if err != nil {
		return nil, fmt.Errorf("catalog: open %q: %w", name, err)
	}
	c.idx[name] = &entry{tree: tree, cfg: cfg}
	return tree, nil
}

// Get returns a previously created/opened index by name.
func (c *Catalog) Get(name string) (*index.BPlusTree, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.idx[name]
	if !ok {
		return nil, false
	}
	return e.tree, true
}

// Names returns every index name registered in this catalog, sorted for
// deterministic listing (the teacher's SHOW TABLES equivalent).
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.idx))
	for name := range c.idx {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
