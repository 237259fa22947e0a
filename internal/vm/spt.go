package vm

import (
	"container/list"
	"sync"

	"github.com/google/btree"
	"github.com/pkg/errors"
	"golang.org/x/exp/maps"

	"github.com/ProdMoon/pintos-kaist-secondhalf/internal/vmlog"
)

// SupplementalPageTable is the per-process container of §3/§4.F: a hash
// index from va to Page, an ordered list of mmap region head pages for
// fast teardown, and the process-visible views of the frame table, swap
// pool and swap disk.
type SupplementalPageTable struct {
	sys   *System
	mmu   MMU
	frames *FrameTable
	metrics Metrics

	mu        sync.Mutex
	index     map[VA]*Page
	mmapHeads *list.List   // of *Page, insertion order, front = oldest
	regions   *btree.BTree // ordered by VA, for Regions()
}

// regionItem is the btree.Item backing the SPT's ordered mmap-region
// index, used only for range enumeration (Regions). Mmap's overlap check
// and Insert/Find/Remove use only the hash index, which remains the
// source of truth.
type regionItem struct {
	start VA
	count int
}

func (r regionItem) Less(than btree.Item) bool {
	return r.start < than.(regionItem).start
}

// NewSupplementalPageTable is supplemental_page_table_init: a fresh
// hash index, an empty mmap list, and the shared System view attached.
// Each process gets its own FrameTable (component B is per-process);
// the swap pool, disk and physical allocator inside sys are shared
// across every process's SPT.
func NewSupplementalPageTable(sys *System, mmu MMU) *SupplementalPageTable {
	spt := &SupplementalPageTable{
		sys:       sys,
		mmu:       mmu,
		index:     make(map[VA]*Page),
		mmapHeads: list.New(),
		regions:   btree.New(8),
	}
	spt.frames = NewFrameTable(sys.Alloc, spt.evictPage)
	return spt
}

// evictPage performs steps 2-4 of the eviction protocol (§4.B) on the
// page occupying a victim frame: swap it out through its variant,
// clear the MMU mapping, and break the page<->frame link. It is called
// by the frame table with frame_lock already released.
func (spt *SupplementalPageTable) evictPage(p *Page) error {
	if err := p.SwapOut(); err != nil {
		return errors.Wrap(err, "evict: swap_out")
	}
	spt.mmu.ClearPage(p.VA)
	p.Frame.Page = nil
	p.Frame = nil
	spt.metrics.addFrameEvicted()
	return nil
}

// Find is the O(1) expected hash lookup.
func (spt *SupplementalPageTable) Find(va VA) (*Page, bool) {
	spt.mu.Lock()
	defer spt.mu.Unlock()
	p, ok := spt.index[va.RoundDown()]
	return p, ok
}

// Insert adds page to the index, failing if its va is already present.
func (spt *SupplementalPageTable) Insert(page *Page) error {
	spt.mu.Lock()
	defer spt.mu.Unlock()
	if _, exists := spt.index[page.VA]; exists {
		return ErrDuplicateVA
	}
	page.owner = spt
	spt.index[page.VA] = page
	return nil
}

// Remove deletes page's va from the index and destroys it.
func (spt *SupplementalPageTable) Remove(page *Page) error {
	spt.mu.Lock()
	delete(spt.index, page.VA)
	spt.mu.Unlock()
	return page.Destroy()
}

// AllocWithInitializer is vm_alloc_page_with_initializer: it fails if a
// page already exists at va, otherwise creates an Uninit page wired to
// the requested post-init variant. If marker carries MarkerStack, the
// page is claimed immediately — stacks are never lazy.
func (spt *SupplementalPageTable) AllocWithInitializer(kind Kind, marker Marker, va VA, writable bool, init Initializer, aux interface{}) (bool, error) {
	va = va.RoundDown()
	if _, exists := spt.Find(va); exists {
		return false, ErrDuplicateVA
	}

	page := newMarkedUninitPage(spt, va, writable, kind, marker, init, aux)
	if err := spt.Insert(page); err != nil {
		return false, err
	}

	if marker&MarkerStack != 0 {
		if err := spt.Claim(page); err != nil {
			spt.mu.Lock()
			delete(spt.index, va)
			spt.mu.Unlock()
			return false, errors.Wrap(err, "alloc: claim stack page")
		}
	}
	return true, nil
}

// Alloc is the vm_alloc_page convenience wrapper: a bare anonymous page
// with no initializer and no aux.
func (spt *SupplementalPageTable) Alloc(marker Marker, va VA, writable bool) (bool, error) {
	return spt.AllocWithInitializer(KindAnon, marker, va, writable, nil, nil)
}

// Claim binds page to a fresh frame, installs the MMU mapping with the
// page's permission, and invokes the variant's SwapIn. It returns the
// SwapIn error unchanged (a short file read, for instance).
func (spt *SupplementalPageTable) Claim(page *Page) error {
	frame, err := spt.frames.Acquire()
	if err != nil {
		return errors.Wrap(err, "claim: acquire frame")
	}
	spt.metrics.addFrameAcquired()

	page.Frame = frame
	frame.Page = page

	if err := spt.mmu.SetPage(page.VA, frame.KVA, page.Writable); err != nil {
		page.Frame = nil
		frame.Page = nil
		_ = spt.frames.Release(frame)
		return errors.Wrap(err, "claim: install mapping")
	}

	if err := page.SwapIn(frame.KVA); err != nil {
		page.Frame = nil
		frame.Page = nil
		spt.mmu.ClearPage(page.VA)
		_ = spt.frames.Release(frame)
		return err
	}
	return nil
}

// ClaimVA looks up va and claims it; vm_claim_page.
func (spt *SupplementalPageTable) ClaimVA(va VA) (bool, error) {
	page, ok := spt.Find(va.RoundDown())
	if !ok {
		return false, ErrNotFound
	}
	if err := spt.Claim(page); err != nil {
		return false, err
	}
	return true, nil
}

// registerMmapHead records a fresh mmap region's head page in both the
// teardown list and the ordered region index.
func (spt *SupplementalPageTable) registerMmapHead(head *Page) {
	spt.mu.Lock()
	defer spt.mu.Unlock()
	spt.mmapHeads.PushBack(head)
	spt.regions.ReplaceOrInsert(regionItem{start: head.VA, count: head.PageCount})
}

func (spt *SupplementalPageTable) unregisterMmapHead(head *Page) {
	spt.mu.Lock()
	defer spt.mu.Unlock()
	for e := spt.mmapHeads.Front(); e != nil; e = e.Next() {
		if e.Value.(*Page) == head {
			spt.mmapHeads.Remove(e)
			break
		}
	}
	spt.regions.Delete(regionItem{start: head.VA})
}

// Region describes one mmap span, for introspection.
type Region struct {
	Start VA
	Count int
}

// Regions returns every live mmap region in ascending virtual-address
// order, backed by the btree index rather than a walk of the hash map.
func (spt *SupplementalPageTable) Regions() []Region {
	spt.mu.Lock()
	defer spt.mu.Unlock()
	var out []Region
	spt.regions.Ascend(func(item btree.Item) bool {
		r := item.(regionItem)
		out = append(out, Region{Start: r.start, Count: r.count})
		return true
	})
	return out
}

// Metrics returns a snapshot of this SPT's per-process counters.
func (spt *SupplementalPageTable) Metrics() Metrics {
	return spt.metrics.Snapshot()
}

// Kill is supplemental_page_table_kill: walk the mmap list front to
// back invoking Munmap on each head (performing dirty write-back), then
// destroy every remaining page and drop the index.
func (spt *SupplementalPageTable) Kill() {
	spt.mu.Lock()
	heads := make([]*Page, 0, spt.mmapHeads.Len())
	for e := spt.mmapHeads.Front(); e != nil; e = e.Next() {
		heads = append(heads, e.Value.(*Page))
	}
	spt.mu.Unlock()

	for _, head := range heads {
		if err := spt.Munmap(head.VA); err != nil {
			vmlog.Log.WithFields(map[string]interface{}{
				"va":    uintptr(head.VA),
				"error": err,
			}).Warn("kill: munmap of leftover region failed")
		}
	}

	spt.mu.Lock()
	remaining := maps.Values(spt.index)
	spt.index = make(map[VA]*Page)
	spt.mu.Unlock()

	for _, p := range remaining {
		if err := p.Destroy(); err != nil {
			vmlog.Log.WithFields(map[string]interface{}{
				"va":    uintptr(p.VA),
				"error": err,
			}).Warn("kill: destroy failed")
		}
	}
}
