package vm

import (
	"github.com/mohae/deepcopy"
	"github.com/pkg/errors"
)

// Duplicate is supplemental_page_table_copy (component H): it walks
// every page of src, in no particular order, and installs an equivalent page into
// dst, then mirrors src's mmap head list onto dst's own pages. dst must
// be empty. It does not touch src at all; the caller (fork) is
// responsible for pausing src's process while this runs.
func (dst *SupplementalPageTable) Duplicate(src *SupplementalPageTable) error {
	src.mu.Lock()
	pages := make([]*Page, 0, len(src.index))
	for _, p := range src.index {
		pages = append(pages, p)
	}
	src.mu.Unlock()

	for _, p := range pages {
		var err error
		if p.Marker&MarkerStack != 0 {
			err = dst.duplicateStackPage(p)
		} else {
			err = dst.duplicateOrdinaryPage(p)
		}
		if err != nil {
			return errors.Wrapf(err, "fork: duplicate page %#x", uintptr(p.VA))
		}
	}

	src.mu.Lock()
	heads := make([]VA, 0, src.mmapHeads.Len())
	for e := src.mmapHeads.Front(); e != nil; e = e.Next() {
		heads = append(heads, e.Value.(*Page).VA)
	}
	src.mu.Unlock()

	for _, va := range heads {
		child, ok := dst.Find(va)
		if !ok {
			return errors.Errorf("fork: mmap head %#x missing in child", uintptr(va))
		}
		dst.registerMmapHead(child)
	}
	return nil
}

// duplicateStackPage handles a stack page: stacks are never lazy, so the
// parent page is always either resident or swapped, never Uninit. The
// child gets a fresh Anon page at the same va, claimed immediately, with
// the parent's bytes copied in directly rather than routed back through
// the parent's own frame/slot.
func (dst *SupplementalPageTable) duplicateStackPage(src *Page) error {
	ok, err := dst.AllocWithInitializer(KindAnon, MarkerStack, src.VA, src.Writable, nil, nil)
	if err != nil || !ok {
		return errors.Wrap(err, "duplicate stack page: alloc")
	}
	child, _ := dst.Find(src.VA)

	switch {
	case src.Resident():
		copy(child.Frame.KVA, src.Frame.KVA)
	case src.Swapped():
		if err := readSlotInto(src.owner.sys, src.SecNo, child.Frame.KVA); err != nil {
			return errors.Wrap(err, "duplicate stack page: read parent slot")
		}
	default:
		return errors.New("duplicate stack page: parent neither resident nor swapped")
	}
	return nil
}

// duplicateOrdinaryPage handles every non-stack page: allocate a fresh
// Uninit page in dst carrying the parent's original initializer, target
// kind, and writable flag (payload survives the parent's own Uninit ->
// variant transition, so this works whether or not the parent page has
// since been touched), then bring the child up to the parent's current
// residency:
//
//   - parent still Uninit: leave the child Uninit too, lazy.
//   - parent swapped: copy the swap slot, child stays swapped (lazy).
//   - parent resident: claim the child immediately and memcpy the frame.
func (dst *SupplementalPageTable) duplicateOrdinaryPage(src *Page) error {
	aux, err := duplicateAux(src)
	if err != nil {
		return errors.Wrap(err, "duplicate aux")
	}

	child := newUninitPage(dst, src.VA, src.Writable, src.payload.kind, src.payload.init, aux)
	child.PageCount = src.PageCount
	if err := dst.Insert(child); err != nil {
		return errors.Wrap(err, "duplicate page: insert")
	}

	switch {
	case src.Kind == KindUninit:
		return nil

	case src.Swapped():
		newSlot, err := Copy(src.owner.sys.Swap, src.owner.sys.Disk, src.owner.sys.io, Slot{SecNo: src.SecNo})
		if err != nil {
			return errors.Wrap(err, "duplicate page: copy swap slot")
		}
		// Materialize the child's variant without going through the
		// Uninit initializer (a swapped page's file/anon state is
		// already established; only the slot needs a fresh owner).
		child.Kind = src.Kind
		switch src.Kind {
		case KindAnon:
			child.ops = &anonPage{page: child}
		case KindFile:
			fileAux, _ := aux.(*FileAux)
			child.ops = &filePage{page: child, aux: fileAux}
		}
		child.SecNo = newSlot.SecNo
		return nil

	case src.Resident():
		if err := dst.Claim(child); err != nil {
			return errors.Wrap(err, "duplicate page: claim")
		}
		copy(child.Frame.KVA, src.Frame.KVA)
		return nil

	default:
		return errors.New("duplicate page: parent variant neither swapped nor resident")
	}
}

// duplicateAux produces the child's own copy of the parent's Uninit
// payload aux. Anon pages carry no aux (open question 1: an anon page's
// aux never names a file), so there is nothing to duplicate. File pages
// carry a *FileAux; deepcopy.Copy clones its scalar fields (Offset,
// ReadBytes, ZeroBytes) without hand-rolling that copy here, and the
// File handle itself is then replaced with a genuine OS-level duplicate
// rather than the shallow interface copy deepcopy would otherwise leave
// pointing at the parent's handle.
func duplicateAux(src *Page) (interface{}, error) {
	fileAux, ok := src.payload.aux.(*FileAux)
	if !ok || fileAux == nil {
		return nil, nil
	}

	cloned, ok := deepcopy.Copy(fileAux).(*FileAux)
	if !ok {
		return nil, errors.New("duplicate aux: unexpected deep-copy result type")
	}

	var dup File
	err := src.owner.sys.withFS(func() error {
		var dupErr error
		dup, dupErr = fileAux.File.Duplicate()
		return dupErr
	})
	if err != nil {
		return nil, errors.Wrap(err, "duplicate aux: duplicate file handle")
	}
	cloned.File = dup
	return cloned, nil
}

// readSlotInto reads a swap slot's contents into kva without freeing the
// slot, for the stack-fork path where the parent must keep its own
// swapped copy untouched.
func readSlotInto(sys *System, secNo int, kva []byte) error {
	return sys.io.do(func() error {
		return readSectors(sys.Disk, secNo, kva)
	})
}
