package vm

import (
	"container/list"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/exp/slices"

	"github.com/ProdMoon/pintos-kaist-secondhalf/internal/vmlog"
)

// Frame owns one physical page and a back-reference to its occupying
// Page. It is created only by FrameTable.Acquire and destroyed only by
// FrameTable.Release or reused by eviction.
type Frame struct {
	KVA  []byte // the physical page's content, length PageSize
	Page *Page  // nil iff this frame is not yet linked to a page

	elem *list.Element // this frame's node in its owning FrameTable's list
}

// FrameTable is the per-process intrusive list of live frames of
// component B, protected by frame_lock. Victim selection is FIFO: the
// oldest acquired frame is always the first evicted. That policy lives
// entirely in Acquire's pop-front; swapping in clock or LRU later means
// replacing that one line, not the eviction protocol around it.
type FrameTable struct {
	mu    sync.Mutex
	frames *list.List // of *Frame, front = oldest
	alloc PhysicalAllocator

	// evict performs steps 2-4 of the eviction protocol on the page
	// occupying a victim frame: call the variant's SwapOut, clear the
	// MMU mapping, and break the page<->frame links. It does not
	// touch the frame table's list; Acquire does that.
	evict func(p *Page) error
}

// NewFrameTable constructs an empty frame table. evict is invoked with
// frame_lock already released, per §5's "no lock held across I/O".
func NewFrameTable(alloc PhysicalAllocator, evict func(p *Page) error) *FrameTable {
	return &FrameTable{
		frames: list.New(),
		alloc:  alloc,
		evict:  evict,
	}
}

// Acquire asks the physical allocator for a fresh page; if none is
// available, it evicts the oldest frame and reuses it. It never returns
// empty-handed: if both the allocator and eviction are exhausted (there
// is nothing left to evict), it panics.
func (t *FrameTable) Acquire() (*Frame, error) {
	if kva, ok := t.alloc.Get(); ok {
		f := &Frame{KVA: kva}
		t.mu.Lock()
		f.elem = t.frames.PushBack(f)
		t.mu.Unlock()
		return f, nil
	}

	t.mu.Lock()
	front := t.frames.Front()
	if front == nil {
		t.mu.Unlock()
		vmlog.Log.Error("frame table exhausted with nothing to evict")
		panic(memAndSwapFull)
	}
	victim := front.Value.(*Frame)
	t.frames.Remove(front)
	victim.elem = nil
	t.mu.Unlock()

	if victim.Page == nil {
		return nil, errors.New("vm: frame table: victim frame has no owning page")
	}
	if err := t.evict(victim.Page); err != nil {
		// Put the victim back at the front so it is tried again
		// rather than leaked.
		t.mu.Lock()
		victim.elem = t.frames.PushFront(victim)
		t.mu.Unlock()
		return nil, errors.Wrap(err, "evict victim frame")
	}

	t.mu.Lock()
	victim.elem = t.frames.PushBack(victim)
	t.mu.Unlock()
	return victim, nil
}

// Release removes f from the frame list and returns its physical page
// to the allocator.
func (t *FrameTable) Release(f *Frame) error {
	t.mu.Lock()
	if f.elem != nil {
		t.frames.Remove(f.elem)
		f.elem = nil
	}
	t.mu.Unlock()

	t.alloc.Put(f.KVA)
	f.KVA = nil
	f.Page = nil
	return nil
}

// Len returns the number of live frames, for diagnostics and tests.
func (t *FrameTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.frames.Len()
}

// ResidentVAs returns the virtual addresses currently occupying a frame,
// sorted ascending, for DumpProcess and diagnostics. Frames not yet
// linked to a page (Page == nil, between Acquire returning them and the
// caller linking them) are skipped; a victim being evicted is off the
// list altogether.
func (t *FrameTable) ResidentVAs() []VA {
	t.mu.Lock()
	vas := make([]VA, 0, t.frames.Len())
	for e := t.frames.Front(); e != nil; e = e.Next() {
		if f := e.Value.(*Frame); f.Page != nil {
			vas = append(vas, f.Page.VA)
		}
	}
	t.mu.Unlock()
	slices.Sort(vas)
	return vas
}
