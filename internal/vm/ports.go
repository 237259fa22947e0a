package vm

// The interfaces below are the narrow external collaborators of §6: the
// MMU/page-table primitives, the physical page allocator, the
// filesystem's per-file handle, and the block device backing swap. The
// vm package never implements any of them; it is handed implementations
// by whatever embeds it.

// MMU models the five pml4_* primitives a page fault handler needs.
// One MMU instance corresponds to one process's page directory.
type MMU interface {
	// SetPage installs a mapping from va to the physical page kva,
	// with the given write permission. It replaces any prior mapping
	// for va.
	SetPage(va VA, kva []byte, writable bool) error
	// ClearPage removes any mapping for va. It is a no-op if none
	// exists.
	ClearPage(va VA)
	// IsDirty reports the mapping's hardware dirty bit for va. It is
	// false if va is unmapped.
	IsDirty(va VA) bool
	// SetDirty sets or clears the hardware dirty bit for va.
	SetDirty(va VA, dirty bool)
	// GetPage returns the physical page currently mapped at va, if
	// any.
	GetPage(va VA) (kva []byte, ok bool)
}

// PhysicalAllocator models palloc_get_page/palloc_free_page for the
// user pool.
type PhysicalAllocator interface {
	// Get returns a fresh, zeroed physical page, or ok=false if the
	// user pool is exhausted.
	Get() (kva []byte, ok bool)
	// Put returns a physical page to the pool.
	Put(kva []byte)
}

// File models the narrow slice of filesystem operations the file-backed
// engine needs: read_at, write_at, length, duplicate, close. The vm
// package calls every one of them with filesys_lock held: System.withFS
// acquires the caller-supplied lock around each single call and
// releases it afterwards.
type File interface {
	ReadAt(buf []byte, off int64) (n int, err error)
	WriteAt(buf []byte, off int64) (n int, err error)
	Length() int64
	Duplicate() (File, error)
	Close() error
}

// SwapDisk models the block device backing the swap area: disk_size,
// disk_read, disk_write. Sector size is fixed at SectorSize.
type SwapDisk interface {
	// Sectors returns the disk's capacity in sectors.
	Sectors() int
	ReadSector(sec int, buf []byte) error
	WriteSector(sec int, buf []byte) error
}
