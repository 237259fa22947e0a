package vm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ProdMoon/pintos-kaist-secondhalf/internal/vm"
	"github.com/ProdMoon/pintos-kaist-secondhalf/internal/vmfake"
)

func TestFrameTableAcquireReleaseRoundTrip(t *testing.T) {
	alloc := vmfake.NewPhysicalAllocator(2)
	ft := vm.NewFrameTable(alloc, func(*vm.Page) error { return nil })

	f1, err := ft.Acquire()
	require.NoError(t, err)
	assert.Equal(t, 1, ft.Len())

	require.NoError(t, ft.Release(f1))
	assert.Equal(t, 0, ft.Len())
	assert.Equal(t, 2, alloc.Available())
}

func TestFrameTableEvictsOldestWhenAllocatorExhausted(t *testing.T) {
	alloc := vmfake.NewPhysicalAllocator(1)
	var evicted []*vm.Page
	ft := vm.NewFrameTable(alloc, func(p *vm.Page) error {
		evicted = append(evicted, p)
		return nil
	})

	f1, err := ft.Acquire()
	require.NoError(t, err)
	p1 := &vm.Page{VA: 0x1000}
	f1.Page = p1
	p1.Frame = f1

	f2, err := ft.Acquire()
	require.NoError(t, err)
	require.Len(t, evicted, 1)
	assert.Same(t, p1, evicted[0])
	assert.Same(t, f1, f2) // the same physical frame is reused
}

func TestFrameTablePanicsWhenNothingToEvict(t *testing.T) {
	alloc := vmfake.NewPhysicalAllocator(0)
	ft := vm.NewFrameTable(alloc, func(*vm.Page) error { return nil })

	assert.PanicsWithValue(t, "vm: memory and swap full", func() {
		_, _ = ft.Acquire()
	})
}
