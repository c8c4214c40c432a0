package paging

import (
	"mazkernel/internal/hal"
	"mazkernel/internal/klog"
	"mazkernel/internal/pmm"
)

// HandleWriteFault resolves a write fault against va in as (spec §4.3 COW
// resolution, property P9): if the faulting page is not COW at all this
// is a genuine protection fault and is reported as ErrNotCOW so the
// syscall/task layer can deliver SIGSEGV. Otherwise:
//
//   - if the frame's reference count is 1 (no sibling address space still
//     shares it), the fault is resolved in place: clear COW, set Write.
//   - otherwise a fresh frame is allocated, the old frame's contents are
//     copied into it, the old frame's reference count is dropped by one,
//     and va is remapped onto the new, exclusively-owned, writable frame.
func HandleWriteFault(as *AddressSpace, va hal.VAddr) error {
	mu.Lock()
	defer mu.Unlock()

	table, idx, ok := walkExisting(as.root, va)
	if !ok {
		return ErrNotMapped
	}
	pa, flags := hal.DecodePTE(pteAt(table, idx, entrySize))
	if !flags.Has(hal.FlagPresent) {
		return ErrNotPresent
	}
	if !flags.Has(hal.FlagCOW) {
		return ErrNotCOW
	}

	if pmm.FrameGetRefcount(pa) <= 1 {
		resolved := flags.Without(hal.FlagCOW).With(hal.FlagWrite)
		setPTEAt(table, idx, entrySize, hal.EncodePTE(pa, resolved))
		klog.Debugf("paging", "cow fault resolved in place at %x", uint64(va))
		return nil
	}

	newPA, ok := pmm.AllocFrame()
	if !ok {
		return ErrNoMemory
	}
	copyFrameContents(newPA.PFN(), pa.PFN())
	pmm.FrameRefDec(pa)

	resolved := flags.Without(hal.FlagCOW).With(hal.FlagWrite)
	setPTEAt(table, idx, entrySize, hal.EncodePTE(newPA, resolved))
	FlushTLB(va)
	klog.Debugf("paging", "cow fault copied frame at %x", uint64(va))
	return nil
}
