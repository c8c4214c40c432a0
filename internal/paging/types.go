// Package paging implements the virtual memory manager (spec §4.3): a
// generic multi-level page-table walker parameterized over
// internal/hal's per-architecture geometry (2 levels/1024 entries on
// i686, 4 levels/512 entries on x86_64 and ARM64), address-space
// creation/cloning/destruction, and copy-on-write page-fault handling.
//
// The walker itself never special-cases an architecture: it only asks
// hal for level count, fan-out and entry size, and asks hal to
// encode/decode leaf entries. Only internal/hal knows what the bits mean.
package paging

import (
	"errors"
	"math/bits"

	"mazkernel/internal/hal"
	"mazkernel/internal/pmm"
)

var (
	ErrNoMemory   = errors.New("paging: out of frames")
	ErrNotMapped  = errors.New("paging: address not mapped")
	ErrNotPresent = errors.New("paging: page not present")
	ErrNotCOW     = errors.New("paging: fault on a non-COW page")
	ErrUnaligned  = errors.New("paging: address not page-aligned")
)

// AddressSpace is one process's (or the kernel's) page-table root.
type AddressSpace struct {
	root hal.PFN
}

// Handle returns the opaque value hal.ContextSwitch expects as an
// AddressSpace root register.
func (as *AddressSpace) Handle() hal.AddressSpace {
	if as == nil {
		return hal.NoAddressSpace
	}
	return hal.AddressSpace(as.root.PAddr())
}

var (
	levels          = hal.PgtableLevels()
	entriesPerLevel = hal.PgtableEntriesPerLevel()
	entrySize       = hal.PgtableEntrySize()
	bitsPerLevel    = bits.Len(uint(entriesPerLevel - 1))
)

// kernelSplitIndex is the top-level table index at which user-space
// mappings end and the shared kernel half begins: indices below it are
// per-process, indices at or above it are cloned by reference on fork
// (spec §4.3 "upper half shared, lower half copy-on-write").
func kernelSplitIndex() int { return entriesPerLevel / 2 }

// levelIndex extracts the index into the table at the given level (0 =
// top level, levels-1 = leaf) for virtual address va.
func levelIndex(va hal.VAddr, level int) int {
	shift := 12 + (levels-1-level)*bitsPerLevel
	return int((uint64(va) >> uint(shift)) & uint64(entriesPerLevel-1))
}

// tableFlags are the permissive flags installed on non-leaf (table
// descriptor) entries; access restriction is enforced only at the leaf.
const tableFlags = hal.FlagPresent | hal.FlagWrite | hal.FlagUser

// newTable allocates and zeroes one page-table-sized frame.
func newTable() (hal.PFN, error) {
	pa, ok := pmm.AllocFrame()
	if !ok {
		return 0, ErrNoMemory
	}
	pfn := pa.PFN()
	zeroFrame(pfn)
	return pfn, nil
}
