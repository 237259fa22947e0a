package vm

import (
	"sync"

	"github.com/ProdMoon/pintos-kaist-secondhalf/internal/vmlog"
)

// System is the process-visible handle §9's design notes ask for: the
// swap pool, the swap disk, the physical allocator, and the external
// filesys_lock, centralized into one struct passed through the fault
// path rather than held as package-level globals. vm_init constructs
// exactly one System; every SupplementalPageTable is given a reference
// to it, and fork aliases that same reference into the child (only the
// per-process frame table is not shared — see NewSupplementalPageTable).
type System struct {
	Alloc PhysicalAllocator
	Disk  SwapDisk
	Swap  *SlotPool

	io *ioThrottle // serializes swap-disk sector transfers
	fs sync.Locker // filesys_lock; external, supplied by the caller
}

// Init is vm_init: the one-time system setup that seeds the swap slot
// pool from the disk's capacity. fs is the kernel's filesys_lock; if
// nil, a private mutex is used (useful for tests with no real
// filesystem contention to model).
func Init(alloc PhysicalAllocator, disk SwapDisk, fs sync.Locker) *System {
	if fs == nil {
		fs = &sync.Mutex{}
	}
	sys := &System{
		Alloc: alloc,
		Disk:  disk,
		Swap:  NewSlotPool(disk),
		io:    newIOThrottle(),
		fs:    fs,
	}
	vmlog.Log.Info("vm system initialized")
	return sys
}

// withFS runs fn with filesys_lock held, released before returning. Per
// §5, this lock is acquired and released explicitly around each file
// operation and is never held across swap_in/swap_out as a whole — only
// around the actual read/write/close/duplicate call inside them.
func (s *System) withFS(fn func() error) error {
	s.fs.Lock()
	defer s.fs.Unlock()
	return fn()
}
