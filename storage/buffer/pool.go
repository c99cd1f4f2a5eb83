// Package buffer implements the buffer pool manager sitting between the
// B+-tree and the disk: a fixed-size frame array, a free list, a page
// table mapping page ids to resident frames, and an LRU-K replacer for
// choosing eviction victims once the free list runs dry.
//
// Grounded on storage_engine/bufferpool/bufferpool.go and structs.go for
// field layout, the "[BufferPool] HIT/MISS/EVICT" logging idiom, and the
// WALFlushedLSNGetter seam (kept per spec.md's note that "log hooks
// exist" even though WAL replay itself is out of scope); the exact
// free-list-then-replacer victim selection and page-table update order
// from original_source/src/buffer/buffer_pool_manager_instance.cpp.
package buffer

import (
	"DaemonDB/storage/disk"
	"DaemonDB/storage/hashtable"
	"DaemonDB/storage/page"
	"DaemonDB/storage/replacer"
	"fmt"
	"sync"
)

// WALFlushedLSNGetter is the seam through which a WAL implementation
// reports its flushed LSN. Pool queries it before each flush but does not
// gate on it (pages carry no LSN), and works with a nil getter, matching
// spec.md's note that redo/undo logging lives elsewhere.
type WALFlushedLSNGetter interface {
	GetFlushedLSN() uint64
}

// Pool is a fixed-capacity set of in-memory page frames backed by a disk
// manager, with LRU-K eviction once the free list is exhausted.
type Pool struct {
	mu sync.Mutex

	frames   []*page.Page
	freeList []page.FrameID
	table    *hashtable.Table[page.ID, page.FrameID]
	replacer *replacer.LRUKReplacer
	disk     *disk.Manager
	wal      WALFlushedLSNGetter
}

// New returns a pool of the given capacity (number of resident frames),
// evicting by backward k-distance once full.
func New(capacity int, k int, d *disk.Manager) *Pool {
	p := &Pool{
		frames:   make([]*page.Page, capacity),
		freeList: make([]page.FrameID, capacity),
		table:    hashtable.New[page.ID, page.FrameID](4, hashtable.HashInt64[page.ID]),
		replacer: replacer.New(capacity, k),
		disk:     d,
	}
	for i := 0; i < capacity; i++ {
		p.freeList[i] = page.FrameID(i)
	}
	return p
}

// SetWAL installs a flushed-LSN getter. Flushes and evictions proceed
// regardless of the LSN it reports.
func (p *Pool) SetWAL(w WALFlushedLSNGetter) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.wal = w
}

// takeFrame returns a free or evicted frame id ready for reuse, or
// (0, false) if every frame is pinned or the victim's dirty page could
// not be written back. Caller must hold p.mu.
func (p *Pool) takeFrame() (page.FrameID, bool) {
	if n := len(p.freeList); n > 0 {
		fid := p.freeList[n-1]
		p.freeList = p.freeList[:n-1]
		return fid, true
	}

	fid, ok := p.replacer.Evict()
	if !ok {
		return 0, false
	}
	frameID := page.FrameID(fid)
	old := p.frames[frameID]
	if old != nil {
		if old.IsDirty() {
			if !p.flushLocked(old) {
				fmt.Printf("[BufferPool] EVICT BLOCKED frameID=%d pageID=%d: dirty page could not be flushed\n", frameID, old.ID())
				p.replacer.RecordAccess(int64(frameID))
				p.replacer.SetEvictable(int64(frameID), true)
				return 0, false
			}
		}
		p.table.Remove(old.ID())
	}
	return frameID, true
}

func (p *Pool) flushLocked(pg *page.Page) bool {
	if p.wal != nil {
		// WAL gating would compare pg's LSN to p.wal.GetFlushedLSN() here;
		// spec.md places redo/undo logging out of scope, so Pool only
		// keeps the seam, not an LSN field on Page.
		_ = p.wal.GetFlushedLSN()
	}
	if err := p.disk.WritePage(pg); err != nil {
		fmt.Printf("[BufferPool] FLUSH FAILED pageID=%d: %v\n", pg.ID(), err)
		return false
	}
	pg.ClearDirty()
	return true
}

// NewPage allocates a fresh page on disk, installs it in a frame, pins
// it, and returns it. Returns (nil, false) if every frame is pinned.
func (p *Pool) NewPage() (*page.Page, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	frameID, ok := p.takeFrame()
	if !ok {
		return nil, false
	}

	id := p.disk.AllocatePage()
	pg := page.New(id)
	pg.Pin()
	p.frames[frameID] = pg
	p.table.Insert(id, frameID)
	p.replacer.RecordAccess(int64(frameID))
	p.replacer.SetEvictable(int64(frameID), false)
	fmt.Printf("[BufferPool] NEW  pageID=%d frameID=%d\n", id, frameID)
	return pg, true
}

// FetchPage returns id's page, pinning it, loading it from disk into a
// frame first if it is not already resident. Returns (nil, false) if id
// is not resident and every frame is pinned.
func (p *Pool) FetchPage(id page.ID) (*page.Page, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if frameID, ok := p.table.Find(id); ok {
		pg := p.frames[frameID]
		pg.Pin()
		p.replacer.RecordAccess(int64(frameID))
		p.replacer.SetEvictable(int64(frameID), false)
		fmt.Printf("[BufferPool] HIT  pageID=%d frameID=%d pinCount=%d\n", id, frameID, pg.PinCount())
		return pg, true
	}

	frameID, ok := p.takeFrame()
	if !ok {
		return nil, false
	}

	fmt.Printf("[BufferPool] MISS pageID=%d -- loading from disk\n", id)
	pg, err := p.disk.ReadPage(id)
	if err != nil {
		fmt.Printf("[BufferPool] FETCH FAILED pageID=%d: %v\n", id, err)
		p.freeList = append(p.freeList, frameID)
		return nil, false
	}

	pg.Pin()
	p.frames[frameID] = pg
	p.table.Insert(id, frameID)
	p.replacer.RecordAccess(int64(frameID))
	p.replacer.SetEvictable(int64(frameID), false)
	return pg, true
}

// UnpinPage decrements id's pin count, marking it evictable once the
// count reaches zero. isDirty, if true, sets the page's dirty flag.
// Returns false if id is resident but already unpinned.
func (p *Pool) UnpinPage(id page.ID, isDirty bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	frameID, ok := p.table.Find(id)
	if !ok {
		return true
	}
	pg := p.frames[frameID]
	if pg.PinCount() == 0 {
		return false
	}
	pg.Unpin()
	if isDirty {
		pg.SetDirty(true)
	}
	if pg.PinCount() == 0 {
		p.replacer.SetEvictable(int64(frameID), true)
	}
	return true
}

// FlushPage writes id's page to disk if resident, clearing its dirty
// flag. Returns false if id is not resident.
func (p *Pool) FlushPage(id page.ID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	frameID, ok := p.table.Find(id)
	if !ok {
		return false
	}
	return p.flushLocked(p.frames[frameID])
}

// FlushAllPages writes every dirty resident page to disk.
func (p *Pool) FlushAllPages() {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Printf("[BufferPool] FlushAllPages -- pool size=%d\n", len(p.frames))
	for _, pg := range p.frames {
		if pg != nil && pg.IsDirty() {
			p.flushLocked(pg)
		}
	}
}

// DeletePage removes id from the pool and frees it on disk. Returns
// false if id is resident and still pinned.
func (p *Pool) DeletePage(id page.ID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	frameID, ok := p.table.Find(id)
	if !ok {
		return true
	}
	pg := p.frames[frameID]
	if pg.PinCount() != 0 {
		return false
	}
	p.table.Remove(id)
	p.replacer.Remove(int64(frameID))
	p.freeList = append(p.freeList, frameID)
	p.frames[frameID] = nil
	p.disk.DeallocatePage(id)
	return true
}
