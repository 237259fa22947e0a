package vm

import "github.com/pkg/errors"

// The five error kinds of §7. Kinds 1, 4 and 5 (duplicate VA, access
// violation, fork failure) surface as these sentinels or booleans;
// kind 2 (short file read) surfaces as ErrShortRead; kind 3 (frame and
// swap exhaustion) is not one of these — it panics, per spec, and has
// no sentinel.
var (
	// ErrDuplicateVA is returned by Alloc, AllocWithInitializer and
	// Mmap when the target address already has a page in the SPT.
	ErrDuplicateVA = errors.New("vm: page already exists at this address")

	// ErrShortRead is returned by the file-backed engine's SwapIn when
	// the backing file yields fewer bytes than ReadBytes.
	ErrShortRead = errors.New("vm: short read from backing file")

	// ErrNotFound is returned when an operation names a va with no
	// SPT entry.
	ErrNotFound = errors.New("vm: no page at this address")

	// ErrNotMmapHead is returned by Munmap when addr does not name a
	// page that heads an mmap region.
	ErrNotMmapHead = errors.New("vm: address is not an mmap region head")

	// ErrAccessViolation is returned by the fault handler for real
	// page faults: no SPT entry, or a user write to a read-only page.
	ErrAccessViolation = errors.New("vm: access violation")
)

// memAndSwapFull is the panic value raised when both a physical frame
// and a swap slot are unavailable. §4.A and §4.B both call this
// "treated as a panic here"; there is no recovery path.
const memAndSwapFull = "vm: memory and swap full"
