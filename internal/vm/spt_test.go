package vm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ProdMoon/pintos-kaist-secondhalf/internal/vm"
)

func TestAllocIsLazy(t *testing.T) {
	tp := newTestProcess(t, 4)

	ok, err := tp.spt.Alloc(vm.MarkerNone, 0x1000, true)
	require.NoError(t, err)
	require.True(t, ok)

	page, found := tp.spt.Find(0x1000)
	require.True(t, found)
	assert.False(t, page.Resident()) // P1: no frame until first access
	assert.Equal(t, vm.KindUninit, page.Kind)
}

func TestAllocDuplicateVARejected(t *testing.T) {
	tp := newTestProcess(t, 4)

	ok, err := tp.spt.Alloc(vm.MarkerNone, 0x2000, true)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = tp.spt.Alloc(vm.MarkerNone, 0x2000, true)
	assert.ErrorIs(t, err, vm.ErrDuplicateVA)
}

func TestClaimMaterializesAnonPageZeroed(t *testing.T) {
	tp := newTestProcess(t, 4)

	ok, err := tp.spt.Alloc(vm.MarkerNone, 0x3000, true)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = tp.spt.ClaimVA(0x3000)
	require.NoError(t, err)
	require.True(t, ok)

	page, _ := tp.spt.Find(0x3000)
	require.True(t, page.Resident())
	for _, b := range page.Frame.KVA {
		require.Equal(t, byte(0), b)
	}

	kva, ok := tp.mmu.GetPage(0x3000)
	require.True(t, ok)
	assert.Same(t, &page.Frame.KVA[0], &kva[0])
}

func TestEvictionTransparencyForAnonPages(t *testing.T) {
	// Scenario 3 / P3: 100 anon pages, each written with its index byte,
	// evicted by allocating more pages than the frame pool holds, then
	// read back with content preserved.
	const nPages = 100
	const nFrames = 4
	tp := newTestProcess(t, nFrames)

	vas := make([]vm.VA, nPages)
	for i := 0; i < nPages; i++ {
		va := vm.VA(0x40000000 + i*vm.PageSize)
		vas[i] = va
		ok, err := tp.spt.Alloc(vm.MarkerNone, va, true)
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = tp.spt.ClaimVA(va)
		require.NoError(t, err)
		require.True(t, ok)

		page, _ := tp.spt.Find(va)
		for j := range page.Frame.KVA {
			page.Frame.KVA[j] = byte(i)
		}
	}

	for _, va := range vas {
		ok, err := tp.spt.ClaimVA(va)
		require.NoError(t, err)
		require.True(t, ok)

		page, _ := tp.spt.Find(va)
		want := byte((va - 0x40000000) / vm.PageSize)
		for _, b := range page.Frame.KVA {
			require.Equal(t, want, b)
		}
	}
}

func TestKillDestroysEveryPage(t *testing.T) {
	tp := newTestProcess(t, 4)

	for i := 0; i < 3; i++ {
		va := vm.VA(0x5000 + i*vm.PageSize)
		ok, err := tp.spt.Alloc(vm.MarkerNone, va, true)
		require.NoError(t, err)
		require.True(t, ok)
		ok, err = tp.spt.ClaimVA(va)
		require.NoError(t, err)
		require.True(t, ok)
	}

	tp.spt.Kill()

	for i := 0; i < 3; i++ {
		va := vm.VA(0x5000 + i*vm.PageSize)
		_, found := tp.spt.Find(va)
		assert.False(t, found)
	}
	assert.Equal(t, 4, tp.alloc.Available())
}
