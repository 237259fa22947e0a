package vm_test

import (
	"testing"

	"github.com/ProdMoon/pintos-kaist-secondhalf/internal/vm"
	"github.com/ProdMoon/pintos-kaist-secondhalf/internal/vmfake"
)

// testProcess bundles one SPT with the fakes backing it, for tests that
// need to reach into the MMU or physical pool directly.
type testProcess struct {
	sys   *vm.System
	mmu   *vmfake.MMU
	alloc *vmfake.PhysicalAllocator
	spt   *vm.SupplementalPageTable
}

func newTestProcess(t *testing.T, frames int) *testProcess {
	t.Helper()
	alloc := vmfake.NewPhysicalAllocator(frames)
	disk := vmfake.NewSwapDisk(1024)
	sys := vm.Init(alloc, disk, nil)
	mmu := vmfake.NewMMU()
	return &testProcess{
		sys:   sys,
		mmu:   mmu,
		alloc: alloc,
		spt:   vm.NewSupplementalPageTable(sys, mmu),
	}
}

// sharedTestProcess is like newTestProcess but shares an existing System,
// for fork tests where parent and child must see the same swap pool and
// disk while keeping separate frame tables.
func sharedTestProcess(sys *vm.System) *testProcess {
	mmu := vmfake.NewMMU()
	return &testProcess{
		sys: sys,
		mmu: mmu,
		spt: vm.NewSupplementalPageTable(sys, mmu),
	}
}
