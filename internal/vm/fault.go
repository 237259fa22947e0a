package vm

// StackFloor and UserStackTop bound the region the user stack may grow
// into (§6's type constants). A real kernel picks these to fit its own
// address-space layout; these defaults follow the pintos-kaist
// convention this module's module path is named after.
const (
	UserStackTop VA = 0x47480000
	oneMiB           = 1 << 20
	StackFloor   VA  = UserStackTop - oneMiB
)

// TryHandleFault is vm_try_handle_fault / the try_handle contract of
// §4.G. rsp is the faulting thread's current stack pointer, needed only
// for the stack-growth predicate. It returns false for a real page
// fault that should terminate the process: no SPT entry, or a user
// write to a non-writable present page.
func (spt *SupplementalPageTable) TryHandleFault(addr VA, user, write, notPresent bool, rsp VA) bool {
	return spt.tryHandleFault(addr, user, write, notPresent, rsp) == nil
}

// tryHandleFault is the error-returning core TryHandleFault wraps: it
// distinguishes a growable stack fault or a claimable existing page
// from ErrAccessViolation, kind 4 of §7 (no SPT entry, or a user write
// to a non-writable present page). notPresent is part of the §6 contract
// signature but this handler already discriminates missing-vs-present
// by whether Find succeeds, so it is otherwise unused here.
func (spt *SupplementalPageTable) tryHandleFault(addr VA, user, write, notPresent bool, rsp VA) error {
	spt.metrics.addFault()

	if isStackGrowth(addr, rsp) {
		if !spt.growStack(addr, rsp) {
			return ErrAccessViolation
		}
		return nil
	}

	page, ok := spt.Find(addr.RoundDown())
	if !ok {
		return ErrAccessViolation
	}
	if user && write && !page.Writable {
		return ErrAccessViolation
	}
	if err := spt.Claim(page); err != nil {
		return err
	}
	return nil
}

// isStackGrowth implements the stack-growth predicate verbatim,
// including the rsp-8==addr push heuristic. §9's design note 4: this is
// a known workaround for lacking precise instruction decoding, kept
// exactly as specified rather than "fixed."
func isStackGrowth(addr, rsp VA) bool {
	if rsp-8 == addr {
		return true
	}
	return addr >= StackFloor && addr < UserStackTop && rsp <= addr
}

// growStack rounds addr down; if that page is already in the SPT (a
// previously evicted stack page), it is claimed directly. Otherwise
// fresh anonymous pages are allocated one page at a time, walking up
// from the rounded address until an already-present page (the current
// top of the stack) or UserStackTop is reached. The STACK marker makes
// vm_alloc_page_with_initializer claim each page as it is created. An
// address at or above UserStackTop is not grown.
func (spt *SupplementalPageTable) growStack(addr, rsp VA) bool {
	rounded := addr.RoundDown()

	if page, ok := spt.Find(rounded); ok {
		return spt.Claim(page) == nil
	}
	if rounded >= UserStackTop {
		return false
	}

	for va := rounded; va < UserStackTop; va += PageSize {
		if _, ok := spt.Find(va); ok {
			break
		}
		if va < StackFloor {
			return false
		}
		ok, err := spt.AllocWithInitializer(KindAnon, MarkerStack, va, true, nil, nil)
		if err != nil || !ok {
			return false
		}
	}
	return true
}
