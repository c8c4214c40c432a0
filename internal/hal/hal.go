package hal

import "fmt"

// Init surface. cpu_init, interrupt_init, mmu_init are called once, in that
// order, by the kernel entry point (spec §4.1). None of the three is
// idempotent; a second call is a programming error and panics rather than
// silently succeeding, matching the "Unrecoverable: HAL init called twice"
// entry in spec §7.
var (
	cpuInitialized       bool
	interruptInitialized bool
	mmuInitialized       bool
)

// CPUInit performs architecture-specific CPU bring-up (GDT/IDT-equivalent
// setup, FPU/SIMD enablement, per-arch CPU feature gating). Implemented per
// architecture in hal_<arch>.go.
func CPUInit() {
	if cpuInitialized {
		panic("hal: CPUInit called twice")
	}
	archCPUInit()
	cpuInitialized = true
}

// InterruptInit installs the architecture's trap/exception/interrupt
// dispatch table. Must run after CPUInit.
func InterruptInit() {
	if interruptInitialized {
		panic("hal: InterruptInit called twice")
	}
	archInterruptInit()
	interruptInitialized = true
}

// MMUInit brings up the architecture's translation hardware (enabling
// paging/the MMU, installing the kernel's own root table). Must run after
// CPUInit.
func MMUInit() {
	if mmuInitialized {
		panic("hal: MMUInit called twice")
	}
	archMMUInit()
	mmuInitialized = true
}

func CPUInitialized() bool       { return cpuInitialized }
func InterruptInitialized() bool { return interruptInitialized }
func MMUInitialized() bool       { return mmuInitialized }

// resetForTest undoes Init* latches so package tests can exercise the
// double-init panic path repeatedly. Not part of the public contract.
func resetForTest() {
	cpuInitialized = false
	interruptInitialized = false
	mmuInitialized = false
}

// ArchName returns one of "i686"/"x86_64"/"arm64".
func ArchName() string { return archName }

// PointerSize returns 4 on i686, 8 on x86_64/arm64.
func PointerSize() int { return archPointerSize }

// Is64Bit derives from PointerSize.
func Is64Bit() bool { return PointerSize() == 8 }

// PgtableLevels returns 2 on i686, 4 on x86_64/arm64.
func PgtableLevels() int { return archPgtableLevels }

// PgtableEntriesPerLevel returns 1024 on i686, 512 on x86_64/arm64.
func PgtableEntriesPerLevel() int { return archPgtableEntriesPerLevel }

// PgtableEntrySize returns the on-the-wire size of one page-table entry in
// bytes: 4 on i686, 8 on x86_64/arm64.
func PgtableEntrySize() int { return archPgtableEntrySize }

func PgtableSupportsNX() bool        { return archSupportsNX }
func PgtableSupportsHugePages() bool { return archSupportsHugePages }

// HugePageSize is the architecture's huge-page granule (2 MiB on every
// supported architecture here).
const HugePageSize = 2 * 1024 * 1024

func (f Flags) GoString() string { return fmt.Sprintf("hal.Flags(%s)", f.String()) }
