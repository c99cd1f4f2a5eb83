package buffer

import (
	"DaemonDB/storage/disk"
	"DaemonDB/storage/page"
	"path/filepath"
	"testing"
)

func openPool(t *testing.T, capacity, k int) *Pool {
	t.Helper()
	d, err := disk.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("disk.Open: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return New(capacity, k, d)
}

// TestEvictionUnderPressure reproduces spec.md's scenario 1: a pool of
// size 3 is driven past capacity and an unpinned victim must be evicted
// to make room, while pinned pages are never touched.
func TestEvictionUnderPressure(t *testing.T) {
	p := openPool(t, 3, 2)

	var ids []page.ID
	for i := 0; i < 3; i++ {
		pg, ok := p.NewPage()
		if !ok {
			t.Fatalf("NewPage() #%d failed, want success", i)
		}
		ids = append(ids, pg.ID())
	}
	// Pool is now full and every page pinned; a fourth page cannot be
	// brought in since nothing is evictable.
	if _, ok := p.NewPage(); ok {
		t.Fatalf("NewPage() succeeded with all frames pinned, want failure")
	}

	// Unpin the first page so it becomes evictable.
	if !p.UnpinPage(ids[0], false) {
		t.Fatalf("UnpinPage(%d) = false, want true", ids[0])
	}

	pg, ok := p.NewPage()
	if !ok {
		t.Fatalf("NewPage() after unpin failed, want success")
	}
	ids = append(ids, pg.ID())

	// The evicted page must no longer be resident: fetching it must
	// reload from disk and succeed (pool has a free/evicted slot from
	// unpinning the other three).
	p.UnpinPage(ids[1], false)
	p.UnpinPage(ids[2], false)
	p.UnpinPage(ids[3], false)
	reloaded, ok := p.FetchPage(ids[0])
	if !ok {
		t.Fatalf("FetchPage(%d) after eviction failed, want success", ids[0])
	}
	p.UnpinPage(reloaded.ID(), false)
}

func TestNewPageIsPinned(t *testing.T) {
	p := openPool(t, 4, 2)
	pg, ok := p.NewPage()
	if !ok {
		t.Fatalf("NewPage() failed")
	}
	if pg.PinCount() != 1 {
		t.Errorf("PinCount() = %d, want 1", pg.PinCount())
	}
}

func TestFetchPageIncrementsPinCount(t *testing.T) {
	p := openPool(t, 4, 2)
	pg, _ := p.NewPage()
	id := pg.ID()
	p.UnpinPage(id, false)

	fetched, ok := p.FetchPage(id)
	if !ok {
		t.Fatalf("FetchPage(%d) failed", id)
	}
	if fetched.PinCount() != 1 {
		t.Errorf("PinCount() after Fetch = %d, want 1", fetched.PinCount())
	}
}

func TestUnpinUnknownPageIsNoopSuccess(t *testing.T) {
	p := openPool(t, 4, 2)
	if !p.UnpinPage(page.ID(9999), false) {
		t.Errorf("UnpinPage on non-resident page = false, want true")
	}
}

func TestUnpinAlreadyZeroFails(t *testing.T) {
	p := openPool(t, 4, 2)
	pg, _ := p.NewPage()
	id := pg.ID()
	p.UnpinPage(id, false)
	if p.UnpinPage(id, false) {
		t.Errorf("second UnpinPage on zero pin count = true, want false")
	}
}

func TestDeletePinnedPageFails(t *testing.T) {
	p := openPool(t, 4, 2)
	pg, _ := p.NewPage()
	if p.DeletePage(pg.ID()) {
		t.Errorf("DeletePage on pinned page = true, want false")
	}
}

func TestDeleteUnpinnedPageSucceedsAndFreesFrame(t *testing.T) {
	p := openPool(t, 4, 2)
	pg, _ := p.NewPage()
	id := pg.ID()
	p.UnpinPage(id, false)
	if !p.DeletePage(id) {
		t.Fatalf("DeletePage failed, want success")
	}
	if len(p.freeList) != 4 {
		t.Errorf("freeList size after delete = %d, want 4", len(p.freeList))
	}
}

func TestFlushPageClearsDirtyFlag(t *testing.T) {
	p := openPool(t, 4, 2)
	pg, _ := p.NewPage()
	pg.SetDirty(true)
	if !p.FlushPage(pg.ID()) {
		t.Fatalf("FlushPage failed")
	}
	if pg.IsDirty() {
		t.Errorf("page still dirty after FlushPage")
	}
}
