// Package vmfake provides in-memory implementations of internal/vm's
// narrow ports (MMU, PhysicalAllocator, File, SwapDisk), the module's own
// "rest of the kernel". They exist so cmd/vmdemo and internal/vm's tests
// can exercise the whole subsystem without a real page table, physical
// pool, filesystem or disk.
package vmfake

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/ProdMoon/pintos-kaist-secondhalf/internal/vm"
)

// MMU is a plain map-backed stand-in for a page directory: it records
// mappings and dirty bits, nothing more.
type MMU struct {
	mu      sync.Mutex
	mapped  map[vm.VA][]byte
	writable map[vm.VA]bool
	dirty   map[vm.VA]bool
}

// NewMMU returns an empty MMU with no mappings installed.
func NewMMU() *MMU {
	return &MMU{
		mapped:   make(map[vm.VA][]byte),
		writable: make(map[vm.VA]bool),
		dirty:    make(map[vm.VA]bool),
	}
}

func (m *MMU) SetPage(va vm.VA, kva []byte, writable bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mapped[va] = kva
	m.writable[va] = writable
	m.dirty[va] = false
	return nil
}

func (m *MMU) ClearPage(va vm.VA) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.mapped, va)
	delete(m.writable, va)
	delete(m.dirty, va)
}

func (m *MMU) IsDirty(va vm.VA) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dirty[va]
}

func (m *MMU) SetDirty(va vm.VA, dirty bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.mapped[va]; ok {
		m.dirty[va] = dirty
	}
}

func (m *MMU) GetPage(va vm.VA) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kva, ok := m.mapped[va]
	return kva, ok
}

// Touch marks va dirty as if a real CPU had just performed a write
// through the mapping. Tests use this to simulate a dirtying store
// before an eviction or a munmap.
func (m *MMU) Touch(va vm.VA) {
	m.SetDirty(va, true)
}

// PhysicalAllocator is a fixed-size pool of zeroed byte slices, modeling
// palloc_get_page/palloc_free_page for the user pool.
type PhysicalAllocator struct {
	mu   sync.Mutex
	free [][]byte
}

// NewPhysicalAllocator returns an allocator seeded with n pages of
// vm.PageSize bytes each.
func NewPhysicalAllocator(n int) *PhysicalAllocator {
	a := &PhysicalAllocator{}
	for i := 0; i < n; i++ {
		a.free = append(a.free, make([]byte, vm.PageSize))
	}
	return a
}

func (a *PhysicalAllocator) Get() ([]byte, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.free) == 0 {
		return nil, false
	}
	last := len(a.free) - 1
	kva := a.free[last]
	a.free = a.free[:last]
	for i := range kva {
		kva[i] = 0
	}
	return kva, true
}

func (a *PhysicalAllocator) Put(kva []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.free = append(a.free, kva)
}

// Available reports the allocator's current free-page count.
func (a *PhysicalAllocator) Available() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.free)
}

// SwapDisk is an in-memory block device: a flat byte slice sliced into
// vm.SectorSize sectors.
type SwapDisk struct {
	mu   sync.Mutex
	data []byte
}

// NewSwapDisk returns a disk of the given sector capacity.
func NewSwapDisk(sectors int) *SwapDisk {
	return &SwapDisk{data: make([]byte, sectors*vm.SectorSize)}
}

func (d *SwapDisk) Sectors() int {
	return len(d.data) / vm.SectorSize
}

func (d *SwapDisk) ReadSector(sec int, buf []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	off := sec * vm.SectorSize
	if off < 0 || off+vm.SectorSize > len(d.data) {
		return errors.Errorf("vmfake: swap disk: sector %d out of range", sec)
	}
	copy(buf, d.data[off:off+vm.SectorSize])
	return nil
}

func (d *SwapDisk) WriteSector(sec int, buf []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	off := sec * vm.SectorSize
	if off < 0 || off+vm.SectorSize > len(d.data) {
		return errors.Errorf("vmfake: swap disk: sector %d out of range", sec)
	}
	copy(d.data[off:off+vm.SectorSize], buf)
	return nil
}

// File is an in-memory file backing mmap regions: a shared byte buffer,
// a per-handle open/closed flag, and a real Duplicate that shares the
// buffer but tracks its own closed state, mirroring what a duplicated
// struct file descriptor does against a shared inode.
type File struct {
	buf    *sharedBuf
	closed bool
}

type sharedBuf struct {
	mu   sync.Mutex
	data []byte
}

// NewFile returns a File whose content is a copy of data.
func NewFile(data []byte) *File {
	cp := make([]byte, len(data))
	copy(cp, data)
	return &File{buf: &sharedBuf{data: cp}}
}

func (f *File) ReadAt(buf []byte, off int64) (int, error) {
	if f.closed {
		return 0, errors.New("vmfake: file: read on closed handle")
	}
	f.buf.mu.Lock()
	defer f.buf.mu.Unlock()
	if off < 0 || off > int64(len(f.buf.data)) {
		return 0, errors.New("vmfake: file: read offset out of range")
	}
	n := copy(buf, f.buf.data[off:])
	return n, nil
}

func (f *File) WriteAt(buf []byte, off int64) (int, error) {
	if f.closed {
		return 0, errors.New("vmfake: file: write on closed handle")
	}
	f.buf.mu.Lock()
	defer f.buf.mu.Unlock()
	end := off + int64(len(buf))
	if end > int64(len(f.buf.data)) {
		grown := make([]byte, end)
		copy(grown, f.buf.data)
		f.buf.data = grown
	}
	n := copy(f.buf.data[off:end], buf)
	return n, nil
}

func (f *File) Length() int64 {
	f.buf.mu.Lock()
	defer f.buf.mu.Unlock()
	return int64(len(f.buf.data))
}

func (f *File) Duplicate() (vm.File, error) {
	if f.closed {
		return nil, errors.New("vmfake: file: duplicate of closed handle")
	}
	return &File{buf: f.buf}, nil
}

func (f *File) Close() error {
	if f.closed {
		return errors.New("vmfake: file: double close")
	}
	f.closed = true
	return nil
}

// Snapshot returns a copy of the file's current backing bytes, for
// assertions in tests.
func (f *File) Snapshot() []byte {
	f.buf.mu.Lock()
	defer f.buf.mu.Unlock()
	out := make([]byte, len(f.buf.data))
	copy(out, f.buf.data)
	return out
}
