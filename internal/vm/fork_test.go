package vm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ProdMoon/pintos-kaist-secondhalf/internal/vm"
	"github.com/ProdMoon/pintos-kaist-secondhalf/internal/vmfake"
)

// Scenario 5 / P7: content is equal right after fork, and a write in
// the child is not observed by the parent.
func TestForkContentEquivalenceAndCOWIsolation(t *testing.T) {
	alloc := vmfake.NewPhysicalAllocator(8)
	disk := vmfake.NewSwapDisk(80)
	sys := vm.Init(alloc, disk, nil)

	parent := sharedTestProcess(sys)
	const va = vm.VA(0x50000000)

	ok, err := parent.spt.Alloc(vm.MarkerNone, va, true)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = parent.spt.ClaimVA(va)
	require.NoError(t, err)
	require.True(t, ok)

	page, _ := parent.spt.Find(va)
	page.Frame.KVA[0] = 0x11

	child := sharedTestProcess(sys)
	require.NoError(t, child.spt.Duplicate(parent.spt))

	childPage, found := child.spt.Find(va)
	require.True(t, found)
	require.True(t, childPage.Resident())
	assert.Equal(t, byte(0x11), childPage.Frame.KVA[0]) // equal right after fork

	childPage.Frame.KVA[0] = 0x22
	parentPage, _ := parent.spt.Find(va)

	assert.Equal(t, byte(0x11), parentPage.Frame.KVA[0]) // parent unaffected by child write
	assert.Equal(t, byte(0x22), childPage.Frame.KVA[0])
}

func TestForkDuplicatesSwappedAnonPage(t *testing.T) {
	// Physical frames are a shared, not per-process, resource (open
	// question 2): once the parent's frame table claims one it keeps it
	// until an explicit Destroy releases it back to the allocator, so a
	// single-frame pool forces an eviction and then must be handed back
	// before the child can claim anything at all.
	alloc := vmfake.NewPhysicalAllocator(1)
	disk := vmfake.NewSwapDisk(80)
	sys := vm.Init(alloc, disk, nil)

	parent := sharedTestProcess(sys)
	const va = vm.VA(0x51000000)

	ok, err := parent.spt.Alloc(vm.MarkerNone, va, true)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = parent.spt.ClaimVA(va)
	require.NoError(t, err)
	require.True(t, ok)

	page, _ := parent.spt.Find(va)
	page.Frame.KVA[0] = 0x77

	// Evict it by claiming another page with the only frame.
	ok, err = parent.spt.Alloc(vm.MarkerNone, 0x52000000, true)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = parent.spt.ClaimVA(0x52000000)
	require.NoError(t, err)
	require.True(t, ok)

	page, _ = parent.spt.Find(va)
	require.True(t, page.Swapped())

	// Release the second page's frame so the allocator has something to
	// hand the child; otherwise the parent would hold the pool's only
	// frame forever.
	secondPage, _ := parent.spt.Find(0x52000000)
	require.NoError(t, parent.spt.Remove(secondPage))

	child := sharedTestProcess(sys)
	require.NoError(t, child.spt.Duplicate(parent.spt))

	childPage, found := child.spt.Find(va)
	require.True(t, found)
	assert.True(t, childPage.Swapped())

	ok, err = child.spt.ClaimVA(va)
	require.NoError(t, err)
	require.True(t, ok)
	childPage, _ = child.spt.Find(va)
	assert.Equal(t, byte(0x77), childPage.Frame.KVA[0])

	// The child's slot copy and swap-in leave the pool conserved (P8).
	pfree, pused := sys.Swap.Counts()
	assert.Equal(t, sys.Swap.Size(), pfree+pused)
}

func TestForkDuplicatesMmapRegion(t *testing.T) {
	alloc := vmfake.NewPhysicalAllocator(8)
	disk := vmfake.NewSwapDisk(80)
	sys := vm.Init(alloc, disk, nil)

	parent := sharedTestProcess(sys)
	file := vmfake.NewFile(make([]byte, vm.PageSize))

	addr, err := parent.spt.Mmap(0x60000000, vm.PageSize, true, file, 0)
	require.NoError(t, err)

	child := sharedTestProcess(sys)
	require.NoError(t, child.spt.Duplicate(parent.spt))

	regions := child.spt.Regions()
	require.Len(t, regions, 1)
	assert.Equal(t, addr, regions[0].Start)
}
