package vm

import "github.com/pkg/errors"

// anonPage is backed by the swap device (component D). Its data lives
// either in its (already-linked) frame or, once evicted, in a swap
// slot named by page.SecNo — never both at once.
type anonPage struct {
	page *Page
}

// SwapIn locates the slot holding this page's contents (if any), frees
// it, and reads its eight sectors into kva. A page that has never been
// swapped out is simply zero-filled — this is also how a freshly
// allocated anonymous page gets its initial all-zero content on first
// fault.
func (a *anonPage) SwapIn(kva []byte) error {
	p := a.page
	sys := p.owner.sys

	if !p.Swapped() {
		for i := range kva {
			kva[i] = 0
		}
		return nil
	}

	slot := Slot{SecNo: p.SecNo}
	err := sys.io.do(func() error {
		return readSectors(sys.Disk, slot.SecNo, kva)
	})
	if err != nil {
		return errors.Wrap(err, "anon page: swap-in")
	}
	sys.Swap.Free(slot)
	p.SecNo = noSector
	p.owner.metrics.addSwapIn()
	return nil
}

// SwapOut allocates a free slot, records its sector on the page, and
// writes the frame's eight sectors to the swap disk.
func (a *anonPage) SwapOut() error {
	p := a.page
	sys := p.owner.sys

	if p.Frame == nil {
		return errors.New("vm: anon page: swap-out with no resident frame")
	}
	slot := sys.Swap.Alloc()
	err := sys.io.do(func() error {
		return writeSectors(sys.Disk, slot.SecNo, p.Frame.KVA)
	})
	if err != nil {
		sys.Swap.Free(slot)
		return errors.Wrap(err, "anon page: swap-out")
	}
	p.SecNo = slot.SecNo
	p.owner.metrics.addSwapOut()
	return nil
}

// Destroy frees the page's swap slot if it has one, otherwise removes
// its resident frame from the frame table.
func (a *anonPage) Destroy() error {
	p := a.page
	sys := p.owner.sys

	if p.Swapped() {
		sys.Swap.Free(Slot{SecNo: p.SecNo})
		p.SecNo = noSector
		return nil
	}
	if p.Frame != nil {
		f := p.Frame
		p.Frame = nil
		f.Page = nil
		return p.owner.frames.Release(f)
	}
	return nil
}
