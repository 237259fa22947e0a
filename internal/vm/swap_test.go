package vm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ProdMoon/pintos-kaist-secondhalf/internal/vm"
	"github.com/ProdMoon/pintos-kaist-secondhalf/internal/vmfake"
)

func TestSlotPoolConservation(t *testing.T) {
	disk := vmfake.NewSwapDisk(80) // 10 slots of 8 sectors each
	pool := vm.NewSlotPool(disk)
	require.Equal(t, 10, pool.Size())

	var taken []vm.Slot
	for i := 0; i < 6; i++ {
		taken = append(taken, pool.Alloc())
	}
	free, used := pool.Counts()
	assert.Equal(t, 4, free)
	assert.Equal(t, 6, used)
	assert.Equal(t, pool.Size(), free+used) // P8

	for _, s := range taken {
		pool.Free(s)
	}
	free, used = pool.Counts()
	assert.Equal(t, 10, free)
	assert.Equal(t, 0, used)
	assert.Equal(t, pool.Size(), free+used) // P8
}

func TestSlotPoolAllocPanicsWhenExhausted(t *testing.T) {
	disk := vmfake.NewSwapDisk(8) // exactly one slot
	pool := vm.NewSlotPool(disk)
	_ = pool.Alloc()

	assert.PanicsWithValue(t, "vm: memory and swap full", func() {
		pool.Alloc()
	})
}

func TestReadWriteSectorsRoundTrip(t *testing.T) {
	disk := vmfake.NewSwapDisk(16)
	pool := vm.NewSlotPool(disk)
	slot := pool.Alloc()

	page := make([]byte, vm.PageSize)
	for i := range page {
		page[i] = byte(i)
	}
	require.NoError(t, disk.WriteSector(slot.SecNo, page[:vm.SectorSize]))

	back := make([]byte, vm.SectorSize)
	require.NoError(t, disk.ReadSector(slot.SecNo, back))
	assert.Equal(t, page[:vm.SectorSize], back)
}
