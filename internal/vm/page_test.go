package vm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ProdMoon/pintos-kaist-secondhalf/internal/vm"
)

func TestUninitPageInitializerRunsExactlyOnceAtFirstTouch(t *testing.T) {
	tp := newTestProcess(t, 1)

	calls := 0
	init := func(page *vm.Page, aux interface{}) error {
		calls++
		return nil
	}

	ok, err := tp.spt.AllocWithInitializer(vm.KindAnon, vm.MarkerNone, 0x80000000, true, init, nil)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = tp.spt.ClaimVA(0x80000000)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, calls)

	page, _ := tp.spt.Find(0x80000000)
	assert.Equal(t, vm.KindAnon, page.Kind)

	// A second fault on the same (already-materialized) page must not
	// re-run the initializer: evict it by claiming another page with the
	// only frame, then fault it back in.
	ok, err = tp.spt.Alloc(vm.MarkerNone, 0x81000000, true)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = tp.spt.ClaimVA(0x81000000)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = tp.spt.ClaimVA(0x80000000)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, calls)
}

func TestAnonPageDestroyReleasesFrame(t *testing.T) {
	tp := newTestProcess(t, 4)

	ok, err := tp.spt.Alloc(vm.MarkerNone, 0x82000000, true)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = tp.spt.ClaimVA(0x82000000)
	require.NoError(t, err)
	require.True(t, ok)

	page, _ := tp.spt.Find(0x82000000)
	require.NoError(t, tp.spt.Remove(page))
	assert.Equal(t, 4, tp.alloc.Available())

	_, found := tp.spt.Find(0x82000000)
	assert.False(t, found)
}

func TestAnonPageDestroyFreesSwapSlot(t *testing.T) {
	tp := newTestProcess(t, 1)

	ok, err := tp.spt.Alloc(vm.MarkerNone, 0x83000000, true)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = tp.spt.ClaimVA(0x83000000)
	require.NoError(t, err)
	require.True(t, ok)

	// Evict it by claiming a second page with the only frame.
	ok, err = tp.spt.Alloc(vm.MarkerNone, 0x84000000, true)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = tp.spt.ClaimVA(0x84000000)
	require.NoError(t, err)
	require.True(t, ok)

	page, _ := tp.spt.Find(0x83000000)
	require.True(t, page.Swapped())

	freeBefore, usedBefore := tp.sys.Swap.Counts()
	require.NoError(t, tp.spt.Remove(page))
	freeAfter, usedAfter := tp.sys.Swap.Counts()
	assert.Equal(t, freeBefore+1, freeAfter)
	assert.Equal(t, usedBefore-1, usedAfter)
}
