package vm

// PageOps is the three-operation dispatch table of component C:
// swap_in, swap_out, destroy. Each Page holds exactly one PageOps,
// reassigned exactly once — by the Uninit variant's own SwapIn — when
// the page is first touched. That reassignment is the "explicit value
// replacement" §9's design notes call for: a plain field write at one
// well-known call site, not a generic or reflective vtable swap.
type PageOps interface {
	// SwapIn materializes the page's contents into kva, a frame that
	// is already linked to this page and already installed in the
	// MMU. It returns false via a non-nil error iff the fault should
	// fail (e.g. a short file read).
	SwapIn(kva []byte) error
	// SwapOut moves the page's contents out of its (still linked)
	// frame to its backing store, and records whatever bookkeeping
	// (a swap sector, a dirty-bit clear) is needed to swap it back in
	// later. It does not unlink the frame or clear the MMU mapping;
	// the frame table's eviction path does that around the call.
	SwapOut() error
	// Destroy releases everything this variant owns: a frame back to
	// the frame table, a swap slot back to the pool, a file handle
	// back to the filesystem. It is idempotent.
	Destroy() error
}

// Initializer is the aux-carrying setup hook a page's allocator may
// supply. It runs exactly once, right after the page's first SwapIn
// materializes its variant, mirroring vm_alloc_page_with_initializer's
// init callback.
type Initializer func(page *Page, aux interface{}) error

// FileAux is the Uninit payload carried by file-backed pages: the file
// handle (owned per-page, acquired via Duplicate at mmap time), the
// offset to read from, and the read/zero byte counts. ReadBytes +
// ZeroBytes always equals PageSize.
type FileAux struct {
	File      File
	Offset    int64
	ReadBytes int
	ZeroBytes int
}

// initPayload is the Uninit-carried descriptor of §3: a type selector,
// an initializer callback, and an aux record. Aux is nil for anonymous
// pages — per §9's open question 1, an anon page's aux never carries a
// file field at all, which removes that bug class rather than
// reproducing it.
type initPayload struct {
	kind Kind // KindAnon or KindFile
	init Initializer
	aux  interface{} // *FileAux for KindFile, nil for KindAnon
}

// Page is the central entity of §3: a virtual page that is either
// Uninit, Anon, or File, at most one of {resident frame, swap slot}
// backing it at a time (for File pages the swap slot is unused; the
// backing store is the file itself).
type Page struct {
	VA       VA
	Writable bool
	Kind     Kind
	Marker   Marker // sticky allocation hint, e.g. MarkerStack; survives the Uninit->variant transition

	Frame *Frame
	SecNo int // noSector iff not swapped (anon only)

	// PageCount is set only on the head page of an mmap region: the
	// number of pages spanned by that region. Zero on every other
	// page.
	PageCount int

	ops   PageOps
	payload initPayload

	owner *SupplementalPageTable
}

// newUninitPage allocates a page still in its lazy Uninit state, wired
// to transition to kind on first touch.
func newUninitPage(owner *SupplementalPageTable, va VA, writable bool, kind Kind, init Initializer, aux interface{}) *Page {
	return newMarkedUninitPage(owner, va, writable, kind, MarkerNone, init, aux)
}

// newMarkedUninitPage is newUninitPage plus a sticky marker, used by
// AllocWithInitializer so fork can later tell a stack page from an
// ordinary one without re-deriving it from context.
func newMarkedUninitPage(owner *SupplementalPageTable, va VA, writable bool, kind Kind, marker Marker, init Initializer, aux interface{}) *Page {
	p := &Page{
		VA:       va,
		Writable: writable,
		Kind:     KindUninit,
		Marker:   marker,
		SecNo:    noSector,
		owner:    owner,
		payload:  initPayload{kind: kind, init: init, aux: aux},
	}
	p.ops = &uninitPage{page: p}
	return p
}

// SwapIn dispatches to the page's current variant.
func (p *Page) SwapIn(kva []byte) error { return p.ops.SwapIn(kva) }

// SwapOut dispatches to the page's current variant.
func (p *Page) SwapOut() error { return p.ops.SwapOut() }

// Destroy dispatches to the page's current variant.
func (p *Page) Destroy() error { return p.ops.Destroy() }

// Resident reports whether the page currently occupies a frame.
func (p *Page) Resident() bool { return p.Frame != nil }

// Swapped reports whether the page's contents currently live in a swap
// slot. Always false for File pages.
func (p *Page) Swapped() bool { return p.SecNo != noSector }
