package vm

import (
	"encoding/binary"
	"io"

	"github.com/golang/snappy"
	"github.com/pkg/errors"
)

// Each record of a memory dump is the on-disk shape of one resident page:
// its virtual address, followed by its snappy-compressed frame content.
// va (8 bytes) | compressed length (4 bytes) | compressed bytes.
const dumpRecordHeaderSize = 8 + 4

// DumpProcess is the teacher's crearMemoryDump, reinstated as an explicit
// diagnostic rather than something eviction calls automatically (§4.B
// forbids treating eviction as a full-process operation). It walks every
// currently resident frame in ascending virtual-address order and writes
// one snappy-compressed record per page to w. It takes no lock across the
// whole walk beyond what ResidentVAs and Find already take internally, so
// it is not atomic with respect to concurrent faults; callers that need a
// consistent snapshot must pause the process themselves, the way the
// teacher's suspenderProceso does before calling it.
func DumpProcess(spt *SupplementalPageTable, w io.Writer) error {
	vas := spt.frames.ResidentVAs()

	var hdr [dumpRecordHeaderSize]byte
	for _, va := range vas {
		page, ok := spt.Find(va)
		if !ok || !page.Resident() {
			continue // evicted between ResidentVAs and this lookup
		}

		compressed := snappy.Encode(nil, page.Frame.KVA)

		binary.BigEndian.PutUint64(hdr[0:8], uint64(va))
		binary.BigEndian.PutUint32(hdr[8:12], uint32(len(compressed)))
		if _, err := w.Write(hdr[:]); err != nil {
			return errors.Wrapf(err, "dump: write header for page %#x", uintptr(va))
		}
		if _, err := w.Write(compressed); err != nil {
			return errors.Wrapf(err, "dump: write payload for page %#x", uintptr(va))
		}
	}
	return nil
}

// LoadDump reads back a stream written by DumpProcess, returning the
// pages in file order as (va, decompressed PageSize-byte content) pairs.
// It is used by tests to check DumpProcess's output round-trips, and
// could equally seed a fresh process's frames from a prior dump.
func LoadDump(r io.Reader) ([]VA, [][]byte, error) {
	var vas []VA
	var contents [][]byte

	var hdr [dumpRecordHeaderSize]byte
	for {
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			if err == io.EOF {
				break
			}
			return nil, nil, errors.Wrap(err, "load dump: read header")
		}
		va := VA(binary.BigEndian.Uint64(hdr[0:8]))
		length := binary.BigEndian.Uint32(hdr[8:12])

		compressed := make([]byte, length)
		if _, err := io.ReadFull(r, compressed); err != nil {
			return nil, nil, errors.Wrapf(err, "load dump: read payload for page %#x", uintptr(va))
		}
		decoded, err := snappy.Decode(nil, compressed)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "load dump: decompress page %#x", uintptr(va))
		}

		vas = append(vas, va)
		contents = append(contents, decoded)
	}
	return vas, contents, nil
}
