package vm_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ProdMoon/pintos-kaist-secondhalf/internal/vm"
)

func TestDumpProcessRoundTrip(t *testing.T) {
	tp := newTestProcess(t, 4)

	vas := []vm.VA{0x70000000, 0x70001000, 0x70002000}
	for i, va := range vas {
		ok, err := tp.spt.Alloc(vm.MarkerNone, va, true)
		require.NoError(t, err)
		require.True(t, ok)
		ok, err = tp.spt.ClaimVA(va)
		require.NoError(t, err)
		require.True(t, ok)

		page, _ := tp.spt.Find(va)
		for j := range page.Frame.KVA {
			page.Frame.KVA[j] = byte(i + 1)
		}
	}

	var buf bytes.Buffer
	require.NoError(t, vm.DumpProcess(tp.spt, &buf))

	gotVAs, gotContents, err := vm.LoadDump(&buf)
	require.NoError(t, err)
	require.Len(t, gotVAs, 3)

	for i, va := range vas {
		assert.Equal(t, va, gotVAs[i])
		want := bytes.Repeat([]byte{byte(i + 1)}, vm.PageSize)
		assert.Equal(t, want, gotContents[i])
	}
}

func TestDumpProcessSkipsNonResidentPages(t *testing.T) {
	tp := newTestProcess(t, 4)

	ok, err := tp.spt.Alloc(vm.MarkerNone, 0x71000000, true)
	require.NoError(t, err)
	require.True(t, ok) // never claimed: stays Uninit, non-resident

	var buf bytes.Buffer
	require.NoError(t, vm.DumpProcess(tp.spt, &buf))
	assert.Equal(t, 0, buf.Len())
}
