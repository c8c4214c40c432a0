package paging

import (
	"sync"

	"mazkernel/internal/hal"
	"mazkernel/internal/klog"
	"mazkernel/internal/pmm"
)

var (
	mu      sync.Mutex
	current *AddressSpace
)

// CreateSpace allocates a fresh, empty address space (spec §4.3). The root
// table starts with no entries in either half; the kernel's upper-half
// mappings are installed by the caller immediately afterward by calling
// MapPage on the shared kernel range, or by CloneSpace when forking.
func CreateSpace() (*AddressSpace, error) {
	root, err := newTable()
	if err != nil {
		return nil, err
	}
	return &AddressSpace{root: root}, nil
}

// DestroySpace tears down every mapping in as and frees every frame it
// owned, including its own page-table frames (spec §4.3 teardown order:
// leaves first, then tables, then the root). Frames that are still
// referenced elsewhere (shared kernel mappings, or a COW page with another
// owner) are only refcount-decremented, matching internal/pmm's free
// semantics.
func DestroySpace(as *AddressSpace) {
	mu.Lock()
	defer mu.Unlock()
	destroyLevel(as.root, 0)
	releaseFrame(as.root)
	pmm.FreeFrame(as.root.PAddr())
}

func destroyLevel(table hal.PFN, level int) {
	for idx := 0; idx < entriesPerLevel; idx++ {
		// The kernel's shared upper half is never torn down by a user
		// address space: it does not own those frames.
		if level == 0 && idx >= kernelSplitIndex() {
			continue
		}
		raw := pteAt(table, idx, entrySize)
		pa, flags := hal.DecodePTE(raw)
		if !flags.Has(hal.FlagPresent) {
			continue
		}
		if level < levels-1 {
			destroyLevel(pa.PFN(), level+1)
			releaseFrame(pa.PFN())
			pmm.FreeFrame(pa)
			continue
		}
		releaseFrame(pa.PFN())
		pmm.FreeFrame(pa)
	}
}

// SwitchSpace makes as the active address space, updating the root
// register (TLB flush is implicit in a real root-register reload; the
// host simulator models that as a full MemoryBarrier per spec §4.1).
func SwitchSpace(as *AddressSpace) {
	mu.Lock()
	defer mu.Unlock()
	current = as
	hal.MemoryBarrier()
}

// CurrentSpace returns the active address space.
func CurrentSpace() *AddressSpace {
	mu.Lock()
	defer mu.Unlock()
	return current
}

// ResetForTest discards the active address space and every simulated
// frame's backing bytes. Exported for other packages' tests (internal/task)
// that need a clean paging state between cases; paging's own tests use the
// unexported resetTest helper instead.
func ResetForTest() {
	mu.Lock()
	current = nil
	mu.Unlock()
	resetBackingStoreForTest()
}

// MapPage installs a leaf mapping va -> pa with flags in as, allocating
// intermediate page-table levels as needed. The mapping takes over the
// reference the caller holds on pa from internal/pmm's allocation (it
// does not take a new one), mirroring the teacher's refcounted frame
// ownership (spec §4.2/§4.3): UnmapPage or DestroySpace drops that
// reference, and CloneSpace adds one per COW sibling, so the page stays
// allocated for as long as any mapping still points at it.
func MapPage(as *AddressSpace, va hal.VAddr, pa hal.PAddr, flags hal.Flags) error {
	if uint64(va)%hal.PageSize != 0 || uint64(pa)%hal.PageSize != 0 {
		return ErrUnaligned
	}
	mu.Lock()
	defer mu.Unlock()

	table, idx, err := walkCreate(as.root, va)
	if err != nil {
		return err
	}
	existing, existingFlags := hal.DecodePTE(pteAt(table, idx, entrySize))
	if existingFlags.Has(hal.FlagPresent) && existing != pa {
		// Replacing a mapping releases the old frame's reference.
		pmm.FreeFrame(existing)
	}
	setPTEAt(table, idx, entrySize, hal.EncodePTE(pa, flags.With(hal.FlagPresent)))
	return nil
}

// UnmapPage clears va's leaf mapping in as and drops its frame reference,
// returning the physical address that had been mapped.
func UnmapPage(as *AddressSpace, va hal.VAddr) (hal.PAddr, error) {
	mu.Lock()
	defer mu.Unlock()

	table, idx, ok := walkExisting(as.root, va)
	if !ok {
		return 0, ErrNotMapped
	}
	pa, flags := hal.DecodePTE(pteAt(table, idx, entrySize))
	if !flags.Has(hal.FlagPresent) {
		return 0, ErrNotMapped
	}
	setPTEAt(table, idx, entrySize, 0)
	FlushTLB(va)
	pmm.FreeFrame(pa)
	return pa, nil
}

// QueryPage reports the physical address and flags va currently maps to.
func QueryPage(as *AddressSpace, va hal.VAddr) (hal.PAddr, hal.Flags, bool) {
	mu.Lock()
	defer mu.Unlock()

	table, idx, ok := walkExisting(as.root, va)
	if !ok {
		return 0, 0, false
	}
	pa, flags := hal.DecodePTE(pteAt(table, idx, entrySize))
	return pa, flags, flags.Has(hal.FlagPresent)
}

// FlushTLB invalidates any cached translation for va. There is no
// per-address TLB on the host simulator; a memory barrier stands in for
// the invalidation instruction (INVLPG / TLBI VAE1).
func FlushTLB(va hal.VAddr) {
	_ = va
	hal.MemoryBarrier()
}

// CloneSpace implements fork's address-space duplication (spec §4.5):
// the shared kernel upper half is copied by reference (the child's root
// gets the parent's top-level entries as-is, with no refcount taken on
// those tables, since DestroySpace never walks the kernel half), and every
// present user leaf mapping is marked read-only and COW in both the
// parent and the child, with the underlying frame's refcount incremented
// so the frame outlives either address space alone.
func CloneSpace(as *AddressSpace) (*AddressSpace, error) {
	mu.Lock()
	defer mu.Unlock()

	child, err := newTable()
	if err != nil {
		return nil, err
	}

	for idx := kernelSplitIndex(); idx < entriesPerLevel; idx++ {
		raw := pteAt(as.root, idx, entrySize)
		if _, flags := hal.DecodePTE(raw); flags.Has(hal.FlagPresent) {
			setPTEAt(child, idx, entrySize, raw)
		}
	}

	if err := cloneUserSubtree(as.root, child, 0); err != nil {
		return nil, err
	}

	klog.Debugf("paging", "cloned address space")
	return &AddressSpace{root: child}, nil
}

// cloneUserSubtree walks the user half (indices below kernelSplitIndex at
// the top level, every index at deeper levels) of src into a freshly
// allocated mirror rooted at dst, converting every present leaf into a
// shared, read-only, COW mapping.
func cloneUserSubtree(src, dst hal.PFN, level int) error {
	limit := entriesPerLevel
	if level == 0 {
		limit = kernelSplitIndex()
	}
	for idx := 0; idx < limit; idx++ {
		raw := pteAt(src, idx, entrySize)
		pa, flags := hal.DecodePTE(raw)
		if !flags.Has(hal.FlagPresent) {
			continue
		}
		if level < levels-1 {
			childTable, err := newTable()
			if err != nil {
				return err
			}
			setPTEAt(dst, idx, entrySize, hal.EncodePTE(childTable.PAddr(), tableFlags))
			if err := cloneUserSubtree(pa.PFN(), childTable, level+1); err != nil {
				return err
			}
			continue
		}
		cow := flags.Without(hal.FlagWrite).With(hal.FlagCOW)
		setPTEAt(src, idx, entrySize, hal.EncodePTE(pa, cow))
		setPTEAt(dst, idx, entrySize, hal.EncodePTE(pa, cow))
		pmm.FrameRefInc(pa)
	}
	return nil
}
