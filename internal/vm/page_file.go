package vm

import "github.com/pkg/errors"

// filePage is backed by a file region (component E): read_bytes come
// from (file, offset), the remaining zero_bytes tail is always zero.
// Its backing store is the file itself; page.SecNo is never used.
type filePage struct {
	page   *Page
	aux    *FileAux
	closed bool
}

// SwapIn reads ReadBytes from (file, offset) into kva, zero-fills the
// tail, and preserves whatever the hardware dirty bit was before the
// read (it should be clear on first fault, but a re-fault after
// eviction must not lose a dirty bit the caller is relying on).
func (fp *filePage) SwapIn(kva []byte) error {
	p := fp.page
	mmu := p.owner.mmu

	dirty := mmu.IsDirty(p.VA)

	var n int
	err := p.owner.sys.withFS(func() error {
		var readErr error
		n, readErr = fp.aux.File.ReadAt(kva[:fp.aux.ReadBytes], fp.aux.Offset)
		return readErr
	})
	if err != nil || n != fp.aux.ReadBytes {
		return errors.Wrap(ErrShortRead, "file page: swap-in")
	}
	for i := fp.aux.ReadBytes; i < fp.aux.ReadBytes+fp.aux.ZeroBytes; i++ {
		kva[i] = 0
	}

	mmu.SetDirty(p.VA, dirty)
	return nil
}

// SwapOut writes ReadBytes back to (file, offset) iff the hardware
// dirty bit is set, then clears it. A clean page issues no I/O at all —
// this is P5.
func (fp *filePage) SwapOut() error {
	p := fp.page
	mmu := p.owner.mmu

	if !mmu.IsDirty(p.VA) {
		return nil
	}
	if p.Frame == nil {
		return errors.New("vm: file page: swap-out with no resident frame")
	}
	err := p.owner.sys.withFS(func() error {
		_, writeErr := fp.aux.File.WriteAt(p.Frame.KVA[:fp.aux.ReadBytes], fp.aux.Offset)
		return writeErr
	})
	if err != nil {
		return errors.Wrap(err, "file page: write-back")
	}
	mmu.SetDirty(p.VA, false)
	p.owner.metrics.addWriteBack(fp.aux.ReadBytes)
	return nil
}

// Destroy removes the frame from the frame table if resident, closes
// the per-page file handle exactly once, and drops the aux. Per §9's
// open question 3, munmap never closes this handle — only Destroy does,
// so a page torn down twice (once by an explicit munmap, once by SPT
// teardown) still closes its file exactly once.
func (fp *filePage) Destroy() error {
	p := fp.page

	if p.Frame != nil {
		f := p.Frame
		p.Frame = nil
		f.Page = nil
		if err := p.owner.frames.Release(f); err != nil {
			return errors.Wrap(err, "file page: release frame")
		}
	}
	if !fp.closed {
		fp.closed = true
		err := p.owner.sys.withFS(fp.aux.File.Close)
		if err != nil {
			return errors.Wrap(err, "file page: close backing file")
		}
	}
	return nil
}

// writeBackIfDirty is munmap's half of the destroy/write-back split of
// §4.E: write the page's content back if it is dirty and resident, and
// clear the MMU mapping. It never closes the file handle.
func (fp *filePage) writeBackIfDirty() error {
	p := fp.page
	mmu := p.owner.mmu

	if p.Resident() && mmu.IsDirty(p.VA) {
		err := p.owner.sys.withFS(func() error {
			_, writeErr := fp.aux.File.WriteAt(p.Frame.KVA[:fp.aux.ReadBytes], fp.aux.Offset)
			return writeErr
		})
		if err != nil {
			return errors.Wrap(err, "munmap: write-back")
		}
		mmu.SetDirty(p.VA, false)
		p.owner.metrics.addWriteBack(fp.aux.ReadBytes)
	}
	mmu.ClearPage(p.VA)
	return nil
}
