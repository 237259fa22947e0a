package vm

import (
	"github.com/pkg/errors"

	"github.com/ProdMoon/pintos-kaist-secondhalf/internal/vmlog"
)

// Mmap implements do_mmap (§4.E). Preconditions: addr is page-aligned,
// length > 0, file is non-nil, offset lies within the file. It computes
// read_bytes = min(length, file.length-offset), fails if that is <= 0,
// rounds the total span up to a page multiple with zero padding,
// rejects the call if any page in the span already exists in the SPT,
// then allocates one Uninit File page per page of the span, duplicating
// the file handle for each.
func (spt *SupplementalPageTable) Mmap(addr VA, length int, writable bool, file File, offset int64) (VA, error) {
	if addr != addr.RoundDown() {
		return 0, errors.New("vm: mmap: addr must be page-aligned")
	}
	if length <= 0 {
		return 0, errors.New("vm: mmap: length must be positive")
	}
	if file == nil {
		return 0, errors.New("vm: mmap: file must not be nil")
	}

	var fileLen int64
	if err := spt.sys.withFS(func() error {
		fileLen = file.Length()
		return nil
	}); err != nil {
		return 0, errors.Wrap(err, "mmap: file length")
	}
	if offset < 0 || offset > fileLen {
		return 0, errors.New("vm: mmap: offset outside file")
	}

	readTotal := int64(length)
	if remaining := fileLen - offset; remaining < readTotal {
		readTotal = remaining
	}
	if readTotal <= 0 {
		return 0, errors.New("vm: mmap: nothing to read at offset")
	}

	pageCount := (length + PageSize - 1) / PageSize

	// Reject if any page in the span already exists (P9).
	for i := 0; i < pageCount; i++ {
		va := addr.Add(i * PageSize)
		if _, exists := spt.Find(va); exists {
			return 0, ErrDuplicateVA
		}
	}

	pages := make([]*Page, 0, pageCount)
	remaining := readTotal
	for i := 0; i < pageCount; i++ {
		va := addr.Add(i * PageSize)

		readBytes := 0
		if remaining > 0 {
			readBytes = PageSize
			if remaining < int64(PageSize) {
				readBytes = int(remaining)
			}
			remaining -= int64(readBytes)
		}
		zeroBytes := PageSize - readBytes

		var dup File
		if err := spt.sys.withFS(func() error {
			var dupErr error
			dup, dupErr = file.Duplicate()
			return dupErr
		}); err != nil {
			spt.rollbackMmap(pages)
			return 0, errors.Wrap(err, "mmap: duplicate file handle")
		}

		aux := &FileAux{
			File:      dup,
			Offset:    offset + int64(i*PageSize),
			ReadBytes: readBytes,
			ZeroBytes: zeroBytes,
		}
		page := newUninitPage(spt, va, writable, KindFile, nil, aux)
		if err := spt.Insert(page); err != nil {
			_ = spt.sys.withFS(dup.Close)
			spt.rollbackMmap(pages)
			return 0, err
		}
		pages = append(pages, page)
	}

	head := pages[0]
	head.PageCount = pageCount
	spt.registerMmapHead(head)

	return addr, nil
}

// rollbackMmap undoes a partial Mmap: every page passed in was already
// inserted into spt.index by a prior iteration and is still an
// unfaulted uninitPage (nothing in this loop ever calls SwapIn), so
// Remove's call to Destroy is exactly the uninitPage.Destroy path that
// closes the page's already-duplicated FileAux handle. This also drops
// the page from spt.index, leaving Mmap's failure with no trace (§7
// error kind 1).
func (spt *SupplementalPageTable) rollbackMmap(pages []*Page) {
	for _, p := range pages {
		if err := spt.Remove(p); err != nil {
			vmlog.Log.WithFields(map[string]interface{}{
				"va":    uintptr(p.VA),
				"error": err,
			}).Warn("mmap: rollback failed to remove page")
		}
	}
}

// Munmap implements do_munmap (§4.E/§4.F). addr must be a previously
// returned mmap head. For each of PageCount pages, if resident and
// dirty, it writes ReadBytes back at Offset, then clears the MMU
// mapping. Only after every page has been written back does it remove
// each page from the SPT; that removal runs Destroy, which performs the
// page's one file-handle Close. Munmap never calls Close directly, per
// §9's open question 3.
func (spt *SupplementalPageTable) Munmap(addr VA) error {
	head, ok := spt.Find(addr)
	if !ok || head.PageCount == 0 {
		return ErrNotMmapHead
	}

	for i := 0; i < head.PageCount; i++ {
		va := addr.Add(i * PageSize)
		page, ok := spt.Find(va)
		if !ok {
			continue
		}
		fp, ok := page.ops.(*filePage)
		if !ok {
			continue // never faulted in (still Uninit): nothing to write back
		}
		if err := fp.writeBackIfDirty(); err != nil {
			return errors.Wrapf(err, "munmap: page %d", i)
		}
	}

	spt.unregisterMmapHead(head)

	for i := 0; i < head.PageCount; i++ {
		va := addr.Add(i * PageSize)
		if page, ok := spt.Find(va); ok {
			if err := spt.Remove(page); err != nil {
				return errors.Wrapf(err, "munmap: remove page %d", i)
			}
		}
	}
	return nil
}
