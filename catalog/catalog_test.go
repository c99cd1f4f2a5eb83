package catalog

import (
	"DaemonDB/storage/buffer"
	"DaemonDB/storage/disk"
	"DaemonDB/storage/index"
	"path/filepath"
	"testing"
)

func openCatalog(t *testing.T) *Catalog {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	d, err := disk.Open(path)
	if err != nil {
		t.Fatalf("disk.Open: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	pool := buffer.New(64, 2, d)
	return New(pool, d)
}

func TestCreateIndexThenGetReturnsSameTree(t *testing.T) {
	c := openCatalog(t)
	tree, err := c.CreateIndex("orders_pk", index.Config{LeafMax: 4, InternalMax: 4})
	if err != nil {
		t.Fatalf("CreateIndex: %v", err)
	}
	got, ok := c.Get("orders_pk")
	if !ok || got != tree {
		t.Fatalf("Get returned (%v, %v), want the tree just created", got, ok)
	}
}

func TestCreateIndexTwiceFails(t *testing.T) {
	c := openCatalog(t)
	if _, err := c.CreateIndex("orders_pk", index.Config{LeafMax: 4, InternalMax: 4}); err != nil {
		t.Fatalf("CreateIndex: %v", err)
	}
	if _, err := c.CreateIndex("orders_pk", index.Config{LeafMax: 4, InternalMax: 4}); err == nil {
		t.Fatalf("second CreateIndex with the same name should fail")
	}
}

func TestOpenIndexReattachesToExistingTree(t *testing.T) {
	c := openCatalog(t)
	tree, err := c.CreateIndex("orders_pk", index.Config{LeafMax: 4, InternalMax: 4})
	if err != nil {
		t.Fatalf("CreateIndex: %v", err)
	}
	if _, err := tree.Insert([]byte("k1"), []byte("v1")); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	reopened, err := c.OpenIndex("orders_pk", index.Config{LeafMax: 4, InternalMax: 4})
	if err != nil {
		t.Fatalf("OpenIndex: %v", err)
	}
	if reopened != tree {
		t.Fatalf("OpenIndex should return the already-registered tree, not a new one")
	}
	got, found, err := reopened.Get([]byte("k1"))
	if err != nil || !found || string(got) != "v1" {
		t.Fatalf("Get(k1) = (%q, %v, %v), want (v1, true, nil)", got, found, err)
	}
}

func TestNamesReturnsSortedRegisteredIndexes(t *testing.T) {
	c := openCatalog(t)
	if _, err := c.CreateIndex("orders_pk", index.Config{LeafMax: 4, InternalMax: 4}); err != nil {
		t.Fatalf("CreateIndex: %v", err)
	}
	if _, err := c.CreateIndex("accounts_pk", index.Config{LeafMax: 4, InternalMax: 4}); err != nil {
		t.Fatalf("CreateIndex: %v", err)
	}
	names := c.Names()
	if len(names) != 2 || names[0] != "accounts_pk" || names[1] != "orders_pk" {
		t.Fatalf("Names() = %v, want [accounts_pk orders_pk]", names)
	}
}
